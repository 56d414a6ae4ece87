package provision

import (
	"fmt"
	"path/filepath"

	"github.com/sofmeright/setupenv/src/config"
)

// Dependency names, in provisioning order.
const (
	DepGASNet = "gasnet"
	DepCMake  = "cmake"
	DepLLVM   = "llvm"
	DepTerra  = "terra"
)

// Layout is the resolved on-disk location of every provisioned artifact.
type Layout struct {
	Root string

	GASNet        string // clone
	GASNetRelease string // built runtime handed to the installer

	CMake        string
	CMakeTarball string
	CMakeInstall string // extracted binary distribution
	CMakeExe     string

	LLVM         string
	LLVMTarball  string
	LLVMSource   string
	ClangTarball string
	ClangSource  string // extracted next to LLVMSource, then moved into it
	LLVMBuild    string
	LLVMInstall  string

	Terra string // clone, built in place

	CMakeArchive config.ResolvedArchive
	LLVMArchive  config.ResolvedArchive
	ClangArchive config.ResolvedArchive
}

// NewLayout resolves every path under root. root is made absolute.
func NewLayout(root string, cfg *config.Config) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, err
	}

	l := Layout{Root: abs}

	l.CMakeArchive, err = resolveArchive(cfg.CMake, config.ArchiveCMake)
	if err != nil {
		return Layout{}, err
	}
	l.LLVMArchive, err = resolveArchive(cfg.LLVM, config.ArchiveLLVM)
	if err != nil {
		return Layout{}, err
	}
	l.ClangArchive, err = resolveArchive(cfg.LLVM, config.ArchiveClang)
	if err != nil {
		return Layout{}, err
	}

	l.GASNet = filepath.Join(abs, cfg.GASNet.Dir)
	l.GASNetRelease = filepath.Join(l.GASNet, "release")

	l.CMake = filepath.Join(abs, cfg.CMake.Dir)
	l.CMakeTarball = filepath.Join(l.CMake, l.CMakeArchive.FileName)
	l.CMakeInstall = filepath.Join(l.CMake, l.CMakeArchive.Stem)
	l.CMakeExe = filepath.Join(l.CMakeInstall, "bin", "cmake")

	l.LLVM = filepath.Join(abs, cfg.LLVM.Dir)
	l.LLVMTarball = filepath.Join(l.LLVM, l.LLVMArchive.FileName)
	l.LLVMSource = filepath.Join(l.LLVM, l.LLVMArchive.Stem)
	l.ClangTarball = filepath.Join(l.LLVM, l.ClangArchive.FileName)
	l.ClangSource = filepath.Join(l.LLVM, l.ClangArchive.Stem)
	l.LLVMBuild = filepath.Join(l.LLVM, "build")
	l.LLVMInstall = filepath.Join(l.LLVM, "install")

	l.Terra = filepath.Join(abs, cfg.Terra.Dir)

	return l, nil
}

// DependencyDir names a dependency and its completion-marked directory.
type DependencyDir struct {
	Name   string
	Dir    string
	Cloned bool
}

// Dependencies lists the dependency directories in provisioning order.
func (l Layout) Dependencies() []DependencyDir {
	return []DependencyDir{
		{Name: DepGASNet, Dir: l.GASNet, Cloned: true},
		{Name: DepCMake, Dir: l.CMake},
		{Name: DepLLVM, Dir: l.LLVM},
		{Name: DepTerra, Dir: l.Terra, Cloned: true},
	}
}

func resolveArchive(d config.DependencyConfig, name string) (config.ResolvedArchive, error) {
	a, ok := d.Archive(name)
	if !ok {
		return config.ResolvedArchive{}, fmt.Errorf("no %q archive configured", name)
	}
	return a.Resolve(d.Version)
}
