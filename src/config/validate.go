package config

import (
	"fmt"
	"path/filepath"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"

	"github.com/sofmeright/setupenv/src/archive"
	"github.com/sofmeright/setupenv/src/fetch"
)

// Validate checks structural invariants of a loaded Config.
// All problems are reported together in a single error.
func Validate(cfg *Config) error {
	var errs []string

	// ── Installer ─────────────────────────────────────────────────────────

	if cfg.Python == "" {
		errs = append(errs, "python: must not be empty")
	}
	if cfg.Installer == "" {
		errs = append(errs, "installer: must not be empty")
	}

	// ── Conduits ──────────────────────────────────────────────────────────

	for i, r := range cfg.Conduits {
		if r.Prefix == "" {
			errs = append(errs, fmt.Sprintf("conduits[%d]: prefix is required", i))
		}
		if r.Conduit == "" {
			errs = append(errs, fmt.Sprintf("conduits[%d]: conduit is required", i))
		}
	}

	// ── Dependencies ──────────────────────────────────────────────────────

	dirs := make(map[string]string)
	deps := []struct {
		name     string
		dep      DependencyConfig
		cloned   bool
		archives []string
	}{
		{"gasnet", cfg.GASNet, true, nil},
		{"cmake", cfg.CMake, false, []string{ArchiveCMake}},
		{"llvm", cfg.LLVM, false, []string{ArchiveLLVM, ArchiveClang}},
		{"terra", cfg.Terra, true, nil},
	}

	for _, d := range deps {
		errs = append(errs, validateDependency(d.name, d.dep, d.cloned, d.archives)...)

		if d.dep.Dir == "" {
			continue
		}
		clean := filepath.Clean(d.dep.Dir)
		if other, ok := dirs[clean]; ok {
			errs = append(errs, fmt.Sprintf("%s.dir: %q is already used by %s", d.name, d.dep.Dir, other))
		}
		dirs[clean] = d.name
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDependency(name string, d DependencyConfig, cloned bool, archives []string) []string {
	var errs []string

	switch {
	case d.Dir == "":
		errs = append(errs, fmt.Sprintf("%s.dir: is required", name))
	case filepath.IsAbs(d.Dir):
		errs = append(errs, fmt.Sprintf("%s.dir: must be relative to root_dir, got %q", name, d.Dir))
	case escapesRoot(d.Dir):
		errs = append(errs, fmt.Sprintf("%s.dir: must stay inside root_dir, got %q", name, d.Dir))
	case filepath.Clean(d.Dir) == ".":
		errs = append(errs, fmt.Sprintf("%s.dir: must name a directory below root_dir, got %q", name, d.Dir))
	}

	if d.Version != "" {
		if _, err := masterminds.NewVersion(d.Version); err != nil {
			errs = append(errs, fmt.Sprintf("%s.version: %q is not a valid version", name, d.Version))
		}
	}

	if cloned {
		if d.Repo == "" {
			errs = append(errs, fmt.Sprintf("%s.repo: is required", name))
		}
		return errs
	}

	for _, want := range archives {
		a, ok := d.Archive(want)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s.archives: missing %q", name, want))
			continue
		}
		apath := fmt.Sprintf("%s.archives[%s]", name, want)
		if a.URL == "" {
			errs = append(errs, apath+": url is required")
		} else if _, err := a.Resolve(d.Version); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", apath, err))
		}
		if _, err := fetch.ParseDigest(a.Digest); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", apath, err))
		}
		if !archive.Supported(a.Format) {
			errs = append(errs, fmt.Sprintf("%s: unknown format %q (supported: %s)", apath, a.Format, strings.Join(archive.Formats(), ", ")))
		}
	}

	return errs
}

// escapesRoot reports whether the relative path dir climbs out of its base.
func escapesRoot(dir string) bool {
	clean := filepath.Clean(dir)
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}
