package config

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

// Archive names referenced by the provisioner.
const (
	ArchiveCMake = "cmake"
	ArchiveLLVM  = "llvm"
	ArchiveClang = "clang"
)

// DependencyConfig describes where one toolchain component comes from.
// Cloned components set Repo (and optionally Ref); downloaded components
// set Version and Archives.
type DependencyConfig struct {
	Dir      string          `yaml:"dir" toml:"dir"`
	Repo     string          `yaml:"repo,omitempty" toml:"repo,omitempty"`
	Ref      string          `yaml:"ref,omitempty" toml:"ref,omitempty"`
	Version  string          `yaml:"version,omitempty" toml:"version,omitempty"`
	Archives []ArchiveConfig `yaml:"archives,omitempty" toml:"archives,omitempty"`
}

// ArchiveConfig is a single downloadable source or binary tarball.
//
// URL may contain {version}, {major}, {minor} and {patch} placeholders,
// expanded from the owning dependency's Version.
type ArchiveConfig struct {
	Name   string `yaml:"name" toml:"name"`
	URL    string `yaml:"url" toml:"url"`
	Digest string `yaml:"digest" toml:"digest"`
	Format string `yaml:"format" toml:"format"` // gz | xz
}

// Archive returns the named archive.
func (d DependencyConfig) Archive(name string) (ArchiveConfig, bool) {
	for _, a := range d.Archives {
		if a.Name == name {
			return a, true
		}
	}
	return ArchiveConfig{}, false
}

// ResolvedArchive is an ArchiveConfig with its URL expanded.
type ResolvedArchive struct {
	ArchiveConfig
	FileName string // basename of the expanded URL
	Stem     string // FileName without the tarball extension
}

// Resolve expands the archive URL against version.
func (a ArchiveConfig) Resolve(version string) (ResolvedArchive, error) {
	raw, err := expandVersion(a.URL, version)
	if err != nil {
		return ResolvedArchive{}, fmt.Errorf("archive %s: %w", a.Name, err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ResolvedArchive{}, fmt.Errorf("archive %s: parsing url: %w", a.Name, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ResolvedArchive{}, fmt.Errorf("archive %s: url %q has no file name", a.Name, raw)
	}

	out := ResolvedArchive{ArchiveConfig: a, FileName: name, Stem: tarballStem(name)}
	out.URL = raw
	return out, nil
}

// expandVersion substitutes version placeholders in s.
func expandVersion(s, version string) (string, error) {
	if !strings.Contains(s, "{") {
		return s, nil
	}
	if version == "" {
		return "", fmt.Errorf("%q uses version placeholders but no version is set", s)
	}

	v, err := masterminds.NewVersion(version)
	if err != nil {
		return "", fmt.Errorf("invalid version %q: %w", version, err)
	}

	r := strings.NewReplacer(
		"{version}", version,
		"{major}", strconv.FormatUint(v.Major(), 10),
		"{minor}", strconv.FormatUint(v.Minor(), 10),
		"{patch}", strconv.FormatUint(v.Patch(), 10),
	)
	return r.Replace(s), nil
}

var tarballExts = []string{".tar.gz", ".tgz", ".tar.xz", ".txz"}

func tarballStem(name string) string {
	for _, ext := range tarballExts {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}
