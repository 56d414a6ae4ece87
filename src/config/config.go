// Package config loads and validates the setupenv configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".setupenv.yml"

// Config is the top-level setupenv configuration.
type Config struct {
	// RootDir is where dependency directories are created. Empty means the
	// working directory.
	RootDir string `yaml:"root_dir" toml:"root_dir"`

	// Python runs the installer script.
	Python string `yaml:"python" toml:"python"`

	// Installer is the installer script, relative to RootDir unless absolute.
	Installer string `yaml:"installer" toml:"installer"`

	// Conduits maps hostname prefixes to GASNet conduits. First match wins.
	Conduits []ConduitRule `yaml:"conduits" toml:"conduits"`

	GASNet DependencyConfig `yaml:"gasnet" toml:"gasnet"`
	CMake  DependencyConfig `yaml:"cmake" toml:"cmake"`
	LLVM   DependencyConfig `yaml:"llvm" toml:"llvm"`
	Terra  DependencyConfig `yaml:"terra" toml:"terra"`
}

// ConduitRule maps machines whose hostname starts with Prefix to Conduit.
type ConduitRule struct {
	Prefix  string `yaml:"prefix" toml:"prefix"`
	Conduit string `yaml:"conduit" toml:"conduit"`
}

// Load reads configuration from a YAML or TOML file.
// If path is empty, it tries the default file.
// Returns sensible defaults if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Defaults(), nil
		}
		return nil, err
	}

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Defaults returns the pinned toolchain used when no config file overrides it.
func Defaults() *Config {
	return &Config{
		Python:    "python",
		Installer: "install.py",
		Conduits:  DefaultConduits(),
		GASNet: DependencyConfig{
			Dir:  "gasnet",
			Repo: "https://github.com/StanfordLegion/gasnet.git",
		},
		CMake: DependencyConfig{
			Dir:     "cmake",
			Version: "3.7.2",
			Archives: []ArchiveConfig{{
				Name:   ArchiveCMake,
				URL:    "https://cmake.org/files/v{major}.{minor}/cmake-{version}-Linux-x86_64.tar.gz",
				Digest: "915bc981aab354821fb9fd28374a720fdb3aa180",
				Format: "gz",
			}},
		},
		LLVM: DependencyConfig{
			Dir:     "llvm",
			Version: "3.9.1",
			Archives: []ArchiveConfig{
				{
					Name:   ArchiveLLVM,
					URL:    "http://llvm.org/releases/{version}/llvm-{version}.src.tar.xz",
					Digest: "ce801cf456b8dacd565ce8df8288b4d90e7317ff",
					Format: "xz",
				},
				{
					Name:   ArchiveClang,
					URL:    "http://llvm.org/releases/{version}/cfe-{version}.src.tar.xz",
					Digest: "95e4be54b70f32cf98a8de36821ea5495b84add8",
					Format: "xz",
				},
			},
		},
		Terra: DependencyConfig{
			Dir:  "terra.build",
			Repo: "https://github.com/elliottslaughter/terra.git",
			Ref:  "compiler-sc17-snapshot",
		},
	}
}

// DefaultConduits returns the known supercomputer hostname prefixes.
func DefaultConduits() []ConduitRule {
	return []ConduitRule{
		{Prefix: "cori", Conduit: "aries"},
		{Prefix: "daint", Conduit: "aries"},
		{Prefix: "excalibur", Conduit: "aries"},
		{Prefix: "quartz", Conduit: "psm"},
	}
}

// InstallerPath resolves the installer script against root.
func (c *Config) InstallerPath(root string) string {
	if filepath.IsAbs(c.Installer) {
		return c.Installer
	}
	return filepath.Join(root, c.Installer)
}
