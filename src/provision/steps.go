package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sofmeright/setupenv/src/runner"
)

// dependency is one "ensure" state of the provisioning run.
type dependency struct {
	name    string
	dir     string
	version string
	ref     string
	// check must exist once build has returned.
	check string
	build func(ctx context.Context) error
}

func (p *Provisioner) dependencies(l Layout, conduit string) []dependency {
	return []dependency{
		{
			name:  DepGASNet,
			dir:   l.GASNet,
			ref:   p.Config.GASNet.Ref,
			check: l.GASNetRelease,
			build: func(ctx context.Context) error { return p.buildGASNet(ctx, l, conduit) },
		},
		{
			name:    DepCMake,
			dir:     l.CMake,
			version: p.Config.CMake.Version,
			check:   l.CMakeInstall,
			build:   func(ctx context.Context) error { return p.fetchCMake(ctx, l) },
		},
		{
			name:    DepLLVM,
			dir:     l.LLVM,
			version: p.Config.LLVM.Version,
			check:   l.LLVMInstall,
			build:   func(ctx context.Context) error { return p.buildLLVM(ctx, l) },
		},
		{
			name:  DepTerra,
			dir:   l.Terra,
			ref:   p.Config.Terra.Ref,
			build: func(ctx context.Context) error { return p.buildTerra(ctx, l) },
		},
	}
}

// buildGASNet clones the runtime and builds it for the conduit. The
// makefile installs into release/.
func (p *Provisioner) buildGASNet(ctx context.Context, l Layout, conduit string) error {
	if err := p.Repos.Clone(ctx, l.GASNet, p.Config.GASNet.Repo, p.Config.GASNet.Ref); err != nil {
		return err
	}
	return p.Runner.Run(ctx, runner.Command{
		Name: "make",
		Args: []string{"CONDUIT=" + conduit},
		Dir:  l.GASNet,
	})
}

// fetchCMake unpacks the prebuilt Linux distribution; nothing is compiled.
func (p *Provisioner) fetchCMake(ctx context.Context, l Layout) error {
	if err := os.MkdirAll(l.CMake, 0o755); err != nil {
		return err
	}

	a := l.CMakeArchive
	if err := p.Fetcher.Download(ctx, l.CMakeTarball, a.URL, a.Digest); err != nil {
		return err
	}
	return p.Extractor.Extract(ctx, l.CMake, l.CMakeTarball, a.Format)
}

// buildLLVM assembles LLVM with Clang in tools/clang, then configures with
// the provisioned cmake and installs into install/.
func (p *Provisioner) buildLLVM(ctx context.Context, l Layout) error {
	if err := os.MkdirAll(l.LLVM, 0o755); err != nil {
		return err
	}

	if err := p.Fetcher.Download(ctx, l.LLVMTarball, l.LLVMArchive.URL, l.LLVMArchive.Digest); err != nil {
		return err
	}
	if err := p.Fetcher.Download(ctx, l.ClangTarball, l.ClangArchive.URL, l.ClangArchive.Digest); err != nil {
		return err
	}
	if err := p.Extractor.Extract(ctx, l.LLVM, l.LLVMTarball, l.LLVMArchive.Format); err != nil {
		return err
	}
	if err := p.Extractor.Extract(ctx, l.LLVM, l.ClangTarball, l.ClangArchive.Format); err != nil {
		return err
	}

	if err := os.Rename(l.ClangSource, filepath.Join(l.LLVMSource, "tools", "clang")); err != nil {
		return fmt.Errorf("merging clang into llvm source tree: %w", err)
	}

	for _, dir := range []string{l.LLVMBuild, l.LLVMInstall} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			return err
		}
	}

	configure := runner.Command{
		Name: l.CMakeExe,
		Args: []string{
			"-DCMAKE_INSTALL_PREFIX=" + l.LLVMInstall,
			"-DCMAKE_BUILD_TYPE=Release",
			"-DLLVM_ENABLE_ZLIB=OFF",
			"-DLLVM_ENABLE_TERMINFO=OFF",
			l.LLVMSource,
		},
		Dir: l.LLVMBuild,
		Env: p.Env.HostCompilerEnv(),
	}
	if err := p.Runner.Run(ctx, configure); err != nil {
		return err
	}

	if err := p.Runner.Run(ctx, runner.Command{
		Name: "make",
		Args: []string{"-j", strconv.Itoa(p.Threads)},
		Dir:  l.LLVMBuild,
	}); err != nil {
		return err
	}

	return p.Runner.Run(ctx, runner.Command{
		Name: "make",
		Args: []string{"install"},
		Dir:  l.LLVMBuild,
	})
}

// buildTerra clones the pinned Terra snapshot and builds it against the
// provisioned LLVM.
func (p *Provisioner) buildTerra(ctx context.Context, l Layout) error {
	if err := p.Repos.Clone(ctx, l.Terra, p.Config.Terra.Repo, p.Config.Terra.Ref); err != nil {
		return err
	}
	return p.Runner.Run(ctx, runner.Command{
		Name: "make",
		Args: []string{
			"LLVM_CONFIG=" + filepath.Join(l.LLVMInstall, "bin", "llvm-config"),
			"CLANG=" + filepath.Join(l.LLVMInstall, "bin", "clang"),
			"-j", strconv.Itoa(p.Threads),
		},
		Dir: l.Terra,
		Env: p.Env.HostCompilerEnv(),
	})
}
