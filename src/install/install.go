// Package install hands the provisioned toolchain to the language installer.
package install

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/sofmeright/setupenv/src/runner"
)

// Options is the installer's keyword configuration.
type Options struct {
	GASNet      bool
	CUDA        bool
	OpenMP      bool
	HDF         bool
	TerraDir    string
	GASNetDir   string
	Conduit     string
	Debug       bool
	ThreadCount int
}

// Installer builds the downstream compiler against a provisioned toolchain.
type Installer interface {
	Install(ctx context.Context, opts Options) error
}

// Script runs install.py with the options translated to its flags.
type Script struct {
	Python string
	Path   string
	Runner runner.Runner
}

// Install runs the installer script from its own directory.
func (s *Script) Install(ctx context.Context, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}

	python := s.Python
	if python == "" {
		python = "python"
	}

	cmd := runner.Command{
		Name: python,
		Args: append([]string{s.Path}, Args(opts)...),
		Dir:  filepath.Dir(s.Path),
	}
	if err := s.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("installer: %w", err)
	}
	return nil
}

// Args translates opts to install.py command-line flags.
func Args(opts Options) []string {
	var args []string
	if opts.GASNet {
		args = append(args, "--gasnet")
		if opts.GASNetDir != "" {
			args = append(args, "--with-gasnet", opts.GASNetDir)
		}
		if opts.Conduit != "" {
			args = append(args, "--conduit", opts.Conduit)
		}
	}
	if opts.TerraDir != "" {
		args = append(args, "--with-terra", opts.TerraDir)
	}
	if opts.CUDA {
		args = append(args, "--cuda")
	}
	if opts.OpenMP {
		args = append(args, "--openmp")
	}
	if opts.HDF {
		args = append(args, "--hdf5")
	}
	if opts.Debug {
		args = append(args, "--debug")
	}
	if opts.ThreadCount > 0 {
		args = append(args, "-j", strconv.Itoa(opts.ThreadCount))
	}
	return args
}

func (o Options) validate() error {
	if o.GASNet && o.Conduit == "" {
		return fmt.Errorf("installer: gasnet enabled without a conduit")
	}
	return nil
}
