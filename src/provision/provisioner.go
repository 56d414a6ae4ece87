// Package provision drives a full toolchain provisioning run.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/sofmeright/setupenv/src/archive"
	"github.com/sofmeright/setupenv/src/config"
	"github.com/sofmeright/setupenv/src/env"
	"github.com/sofmeright/setupenv/src/fetch"
	"github.com/sofmeright/setupenv/src/gitrepo"
	"github.com/sofmeright/setupenv/src/install"
	"github.com/sofmeright/setupenv/src/output"
	"github.com/sofmeright/setupenv/src/runner"
)

// ErrIncomplete is returned when a dependency directory exists but was
// never marked complete, typically after an interrupted or failed run.
var ErrIncomplete = errors.New("dependency directory is incomplete")

// Fetcher downloads a file and verifies its digest.
type Fetcher interface {
	Download(ctx context.Context, destPath, url, digest string) error
}

// Extractor unpacks an archive of the given format into a directory.
type Extractor interface {
	Extract(ctx context.Context, destDir, archivePath, format string) error
}

// Cloner clones a repository, optionally at a branch or tag.
type Cloner interface {
	Clone(ctx context.Context, dir, url, ref string) error
}

// Provisioner ensures every toolchain dependency is built under RootDir and
// then runs the installer.
type Provisioner struct {
	Config  *config.Config
	Env     env.Environment
	RootDir string
	Threads int

	// Force rebuilds incomplete dependency directories instead of failing.
	Force bool
	// SkipInstall stops after the dependencies are provisioned.
	SkipInstall bool

	Conduits  *env.ConduitDiscoverer
	Runner    runner.Runner
	Fetcher   Fetcher
	Extractor Extractor
	Repos     Cloner
	Installer install.Installer

	Out   io.Writer
	Color bool
}

// New wires a Provisioner with the real network, git, archive and process
// implementations.
func New(cfg *config.Config, e env.Environment, rootDir string, verbose bool) *Provisioner {
	run := runner.NewExec(verbose)
	return &Provisioner{
		Config:    cfg,
		Env:       e,
		RootDir:   rootDir,
		Threads:   runtime.NumCPU(),
		Conduits:  env.NewConduitDiscoverer(cfg.Conduits),
		Runner:    run,
		Fetcher:   fetch.NewDownloader(verbose),
		Extractor: archive.Extractor{Verbose: verbose, Stderr: os.Stderr},
		Repos:     &gitrepo.Client{Verbose: verbose, Progress: os.Stderr, Stderr: os.Stderr},
		Installer: &install.Script{
			Python: cfg.Python,
			Path:   cfg.InstallerPath(rootDir),
			Runner: run,
		},
		Out:   os.Stdout,
		Color: output.UseColor(),
	}
}

// Run executes validate-env, discover-conduit, the four dependencies in
// order, and the installer. The first failure ends the run.
func (p *Provisioner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}
	defer func() { res.Duration = time.Since(start) }()

	if err := env.Validate(p.Env, p.out()); err != nil {
		return res, fmt.Errorf("validate-env: %w", err)
	}

	if p.Conduits == nil {
		p.Conduits = env.NewConduitDiscoverer(p.Config.Conduits)
	}
	conduit, err := p.Conduits.Discover(p.Env)
	if err != nil {
		return res, fmt.Errorf("discover-conduit: %w", err)
	}
	res.Conduit = conduit

	layout, err := NewLayout(p.RootDir, p.Config)
	if err != nil {
		return res, fmt.Errorf("resolving layout: %w", err)
	}
	res.Layout = layout

	if p.Threads <= 0 {
		p.Threads = runtime.NumCPU()
	}

	for _, dep := range p.dependencies(layout, conduit.Name) {
		step, err := p.ensure(ctx, dep)
		res.Steps = append(res.Steps, step)
		if err != nil {
			return res, err
		}
	}

	if p.SkipInstall {
		return res, nil
	}

	features := p.Env.Features()
	opts := install.Options{
		GASNet:      true,
		CUDA:        features.CUDA,
		OpenMP:      features.OpenMP,
		HDF:         features.HDF,
		TerraDir:    layout.Terra,
		GASNetDir:   layout.GASNetRelease,
		Conduit:     conduit.Name,
		Debug:       features.Debug,
		ThreadCount: p.Threads,
	}

	installStart := time.Now()
	output.SectionStart(p.out(), "setupenv_install", "install")
	err = p.Installer.Install(ctx, opts)
	output.SectionEnd(p.out(), "setupenv_install")

	step := StepResult{Name: "install", Dir: p.Config.InstallerPath(layout.Root), Duration: time.Since(installStart), Status: StatusSuccess}
	if err != nil {
		step.Status = StatusFailed
		step.Error = err
	}
	res.Steps = append(res.Steps, step)
	res.Installed = err == nil
	output.StepLine(p.out(), step.Name, step.Status, step.Dir, step.Duration, p.Color)
	if err != nil {
		return res, fmt.Errorf("install: %w", err)
	}
	return res, nil
}

// ensure builds dep unless its directory is already marked complete.
func (p *Provisioner) ensure(ctx context.Context, dep dependency) (step StepResult, err error) {
	start := time.Now()
	step = StepResult{Name: dep.name, Dir: dep.dir}
	defer func() {
		step.Duration = time.Since(start)
		step.Error = err
		output.StepLine(p.out(), step.Name, step.Status, step.Dir, step.Duration, p.Color)
	}()

	state, err := Inspect(dep.dir)
	if err != nil {
		step.Status = StatusFailed
		return step, fmt.Errorf("%s: %w", dep.name, err)
	}

	switch state {
	case StateComplete:
		step.Status = StatusCached
		if dep.check != "" {
			if _, err := os.Stat(dep.check); err != nil {
				step.Status = StatusFailed
				return step, fmt.Errorf("%s: marked complete but %s is missing", dep.name, dep.check)
			}
		}
		return step, nil

	case StateIncomplete:
		if !p.Force {
			step.Status = StatusFailed
			return step, fmt.Errorf("%s: %w: %s exists but was never finished; remove it or rerun with --force", dep.name, ErrIncomplete, dep.dir)
		}
		if err := os.RemoveAll(dep.dir); err != nil {
			step.Status = StatusFailed
			return step, fmt.Errorf("%s: removing incomplete %s: %w", dep.name, dep.dir, err)
		}
	}

	output.SectionStart(p.out(), "setupenv_"+dep.name, dep.name)
	err = dep.build(ctx)
	output.SectionEnd(p.out(), "setupenv_"+dep.name)
	if err != nil {
		step.Status = StatusFailed
		return step, fmt.Errorf("%s: %w", dep.name, err)
	}

	if dep.check != "" {
		if _, err := os.Stat(dep.check); err != nil {
			step.Status = StatusFailed
			return step, fmt.Errorf("%s: build finished but %s was not produced", dep.name, dep.check)
		}
	}

	err = MarkComplete(dep.dir, Marker{
		Name:      dep.name,
		Version:   dep.version,
		Ref:       dep.ref,
		Completed: time.Now().UTC(),
	})
	if err != nil {
		step.Status = StatusFailed
		return step, fmt.Errorf("%s: %w", dep.name, err)
	}

	step.Status = StatusSuccess
	return step, nil
}

func (p *Provisioner) out() io.Writer {
	if p.Out == nil {
		return io.Discard
	}
	return p.Out
}
