package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/setupenv/src/config"
	"github.com/sofmeright/setupenv/src/env"
	"github.com/sofmeright/setupenv/src/fetch"
	"github.com/sofmeright/setupenv/src/install"
	"github.com/sofmeright/setupenv/src/runner"
)

// harness records every external effect the provisioner requests and
// fakes the filesystem results a real tool would leave behind.
type harness struct {
	layout  Layout
	events  []string
	cmds    []runner.Command
	install []install.Options

	failRun   func(runner.Command) error
	failFetch func(dest string) error
}

func (h *harness) Run(_ context.Context, c runner.Command) error {
	h.cmds = append(h.cmds, c)
	h.events = append(h.events, "run "+filepath.Base(c.Dir)+": "+filepath.Base(c.Name)+" "+strings.Join(c.Args, " "))
	if h.failRun != nil {
		if err := h.failRun(c); err != nil {
			return err
		}
	}
	if c.Dir == h.layout.GASNet && c.Name == "make" {
		return os.MkdirAll(h.layout.GASNetRelease, 0o755)
	}
	return nil
}

func (h *harness) Download(_ context.Context, dest, url, digest string) error {
	h.events = append(h.events, "fetch "+filepath.Base(dest))
	if h.failFetch != nil {
		if err := h.failFetch(dest); err != nil {
			return err
		}
	}
	return os.WriteFile(dest, []byte(url), 0o644)
}

func (h *harness) Extract(_ context.Context, destDir, archivePath, format string) error {
	h.events = append(h.events, "extract "+filepath.Base(archivePath)+" ("+format+")")
	switch archivePath {
	case h.layout.CMakeTarball:
		return os.MkdirAll(filepath.Join(h.layout.CMakeInstall, "bin"), 0o755)
	case h.layout.LLVMTarball:
		return os.MkdirAll(filepath.Join(h.layout.LLVMSource, "tools"), 0o755)
	case h.layout.ClangTarball:
		return os.MkdirAll(h.layout.ClangSource, 0o755)
	}
	return fmt.Errorf("unexpected archive %s", archivePath)
}

func (h *harness) Clone(_ context.Context, dir, url, ref string) error {
	h.events = append(h.events, "clone "+filepath.Base(dir)+" "+ref)
	return os.MkdirAll(dir, 0o755)
}

func (h *harness) Install(_ context.Context, opts install.Options) error {
	h.events = append(h.events, "install")
	h.install = append(h.install, opts)
	return nil
}

func newHarness(t *testing.T, e env.Environment) (*harness, *Provisioner) {
	t.Helper()

	root := t.TempDir()
	cfg := config.Defaults()
	layout, err := NewLayout(root, cfg)
	require.NoError(t, err)

	h := &harness{layout: layout}
	p := &Provisioner{
		Config:  cfg,
		Env:     e,
		RootDir: root,
		Threads: 4,
		Conduits: &env.ConduitDiscoverer{
			Rules:    cfg.Conduits,
			Hostname: func() (string, error) { return "workstation", nil },
		},
		Runner:    h,
		Fetcher:   h,
		Extractor: h,
		Repos:     h,
		Installer: h,
	}
	return h, p
}

func baseEnv() env.Environment {
	return env.Environment{"CC": "gcc", "CXX": "g++", "CONDUIT": "psm"}
}

var fullRun = []string{
	"clone gasnet ",
	"run gasnet: make CONDUIT=psm",
	"fetch cmake-3.7.2-Linux-x86_64.tar.gz",
	"extract cmake-3.7.2-Linux-x86_64.tar.gz (gz)",
	"fetch llvm-3.9.1.src.tar.xz",
	"fetch cfe-3.9.1.src.tar.xz",
	"extract llvm-3.9.1.src.tar.xz (xz)",
	"extract cfe-3.9.1.src.tar.xz (xz)",
	"run build: cmake -DCMAKE_INSTALL_PREFIX=%s -DCMAKE_BUILD_TYPE=Release -DLLVM_ENABLE_ZLIB=OFF -DLLVM_ENABLE_TERMINFO=OFF %s",
	"run build: make -j 4",
	"run build: make install",
	"clone terra.build compiler-sc17-snapshot",
	"run terra.build: make LLVM_CONFIG=%s CLANG=%s -j 4",
	"install",
}

func expectedFullRun(l Layout) []string {
	out := make([]string, len(fullRun))
	copy(out, fullRun)
	out[8] = fmt.Sprintf(out[8], l.LLVMInstall, l.LLVMSource)
	out[12] = fmt.Sprintf(out[12],
		filepath.Join(l.LLVMInstall, "bin", "llvm-config"),
		filepath.Join(l.LLVMInstall, "bin", "clang"))
	return out
}

func TestRunFromScratch(t *testing.T) {
	h, p := newHarness(t, baseEnv())

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, expectedFullRun(h.layout), h.events)

	require.Len(t, h.install, 1)
	assert.Equal(t, install.Options{
		GASNet:      true,
		TerraDir:    h.layout.Terra,
		GASNetDir:   h.layout.GASNetRelease,
		Conduit:     "psm",
		ThreadCount: 4,
	}, h.install[0])

	assert.True(t, res.Installed)
	assert.Equal(t, env.SourceOverride, res.Conduit.Source)
	for _, s := range res.Steps {
		assert.Equal(t, StatusSuccess, s.Status, s.Name)
	}

	assert.DirExists(t, filepath.Join(h.layout.LLVMSource, "tools", "clang"), "clang merged into llvm tree")
	assert.NoDirExists(t, h.layout.ClangSource)

	for _, d := range h.layout.Dependencies() {
		state, err := Inspect(d.Dir)
		require.NoError(t, err)
		assert.Equal(t, StateComplete, state, d.Name)
	}

	m, err := ReadMarker(h.layout.Terra)
	require.NoError(t, err)
	assert.Equal(t, "compiler-sc17-snapshot", m.Ref)
}

func TestRunIsIdempotent(t *testing.T) {
	h, p := newHarness(t, baseEnv())

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	h.events = nil
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"install"}, h.events)
	for _, s := range res.Steps[:4] {
		assert.Equal(t, StatusCached, s.Status, s.Name)
	}
}

func TestRunFeatureFlags(t *testing.T) {
	e := baseEnv()
	e["USE_CUDA"] = "1"
	e["USE_OPENMP"] = "1"
	e["USE_HDF"] = "true"
	e["DEBUG"] = "1"
	h, p := newHarness(t, e)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	got := h.install[0]
	assert.True(t, got.CUDA)
	assert.True(t, got.OpenMP)
	assert.False(t, got.HDF, "only \"1\" enables a feature")
	assert.True(t, got.Debug)
}

func TestRunValidationStopsBeforeAnyWork(t *testing.T) {
	for name, e := range map[string]env.Environment{
		"no CC":     {"CXX": "g++", "CONDUIT": "psm"},
		"no CXX":    {"CC": "gcc", "CONDUIT": "psm"},
		"LG_RT_DIR": {"CC": "gcc", "CXX": "g++", "CONDUIT": "psm", "LG_RT_DIR": "/x"},
	} {
		t.Run(name, func(t *testing.T) {
			h, p := newHarness(t, e)
			_, err := p.Run(context.Background())
			require.Error(t, err)
			assert.Empty(t, h.events)
		})
	}
}

func TestRunUnknownConduit(t *testing.T) {
	h, p := newHarness(t, env.Environment{"CC": "gcc", "CXX": "g++"})

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, env.ErrNoConduit)
	assert.Empty(t, h.events)
}

func TestRunCrayUsesHostCompilers(t *testing.T) {
	e := baseEnv()
	e["CC"], e["CXX"] = "cc", "CC"
	e["CRAYPE_VERSION"] = "2.5.9"
	e["HOST_CC"], e["HOST_CXX"] = "gcc", "g++"
	h, p := newHarness(t, e)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	byDir := map[string][]runner.Command{}
	for _, c := range h.cmds {
		byDir[c.Dir] = append(byDir[c.Dir], c)
	}

	assert.Nil(t, byDir[h.layout.GASNet][0].Env, "gasnet inherits the wrapper compilers")

	configure := byDir[h.layout.LLVMBuild][0]
	assert.Contains(t, configure.Env, "CC=gcc")
	assert.Contains(t, configure.Env, "CXX=g++")

	terra := byDir[h.layout.Terra][0]
	assert.Contains(t, terra.Env, "CC=gcc")
	assert.Contains(t, terra.Env, "CXX=g++")
}

func TestRunBuildFailureIsFatalAndLeavesNoMarker(t *testing.T) {
	h, p := newHarness(t, baseEnv())
	h.failRun = func(c runner.Command) error {
		if c.Name == "make" && len(c.Args) > 0 && c.Args[0] == "-j" && c.Dir == h.layout.LLVMBuild {
			return errors.New("exit status 2")
		}
		return nil
	}

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llvm")
	assert.Contains(t, err.Error(), "exit status 2")
	assert.Empty(t, h.install)
	assert.NotContains(t, h.events, "clone terra.build compiler-sc17-snapshot")

	last := res.Steps[len(res.Steps)-1]
	assert.Equal(t, DepLLVM, last.Name)
	assert.Equal(t, StatusFailed, last.Status)

	state, err := Inspect(h.layout.LLVM)
	require.NoError(t, err)
	assert.Equal(t, StateIncomplete, state)

	// A rerun refuses to trust the half-built tree.
	h.failRun = nil
	_, err = p.Run(context.Background())
	require.ErrorIs(t, err, ErrIncomplete)

	// --force discards it and rebuilds only llvm and terra.
	h.events = nil
	p.Force = true
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fetch llvm-3.9.1.src.tar.xz", h.events[0])
	assert.Equal(t, "install", h.events[len(h.events)-1])
}

func TestRunDigestMismatchStopsBeforeExtract(t *testing.T) {
	h, p := newHarness(t, baseEnv())
	h.failFetch = func(dest string) error {
		if dest == h.layout.CMakeTarball {
			return fmt.Errorf("%s: %w", dest, fetch.ErrDigestMismatch)
		}
		return nil
	}

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, fetch.ErrDigestMismatch)
	assert.Equal(t, "fetch cmake-3.7.2-Linux-x86_64.tar.gz", h.events[len(h.events)-1])
}

func TestRunMissingPostcondition(t *testing.T) {
	h, p := newHarness(t, baseEnv())
	// Pretend the gasnet makefile succeeded without producing release/.
	p.Runner = runnerFunc(func(ctx context.Context, c runner.Command) error {
		h.events = append(h.events, "run "+c.String())
		return nil
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release")

	state, err := Inspect(h.layout.GASNet)
	require.NoError(t, err)
	assert.Equal(t, StateIncomplete, state)
}

func TestRunSkipInstall(t *testing.T) {
	h, p := newHarness(t, baseEnv())
	p.SkipInstall = true

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.install)
	assert.False(t, res.Installed)
	assert.Len(t, res.Steps, 4)
}

type runnerFunc func(ctx context.Context, c runner.Command) error

func (f runnerFunc) Run(ctx context.Context, c runner.Command) error { return f(ctx, c) }
