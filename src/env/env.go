// Package env reads and validates the developer's shell environment.
package env

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Variables consulted by the provisioner.
const (
	VarCC          = "CC"
	VarCXX         = "CXX"
	VarHostCC      = "HOST_CC"
	VarHostCXX     = "HOST_CXX"
	VarLegionRT    = "LG_RT_DIR"
	VarCrayVersion = "CRAYPE_VERSION"
	VarConduit     = "CONDUIT"
	VarUseCUDA     = "USE_CUDA"
	VarUseOpenMP   = "USE_OPENMP"
	VarUseHDF      = "USE_HDF"
	VarDebug       = "DEBUG"
)

var (
	// ErrMissingVar marks a required variable that is not set.
	ErrMissingVar = errors.New("required environment variable is not set")

	// ErrForbiddenVar marks a variable that must not be set.
	ErrForbiddenVar = errors.New("environment variable must not be set")
)

// Environment is a read-only snapshot of process environment variables.
type Environment map[string]string

// FromOS snapshots the current process environment.
func FromOS() Environment {
	return Parse(os.Environ())
}

// Parse builds an Environment from KEY=VALUE pairs. Later entries win.
func Parse(pairs []string) Environment {
	e := make(Environment, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		e[k] = v
	}
	return e
}

// Lookup returns the value of name and whether it is set at all.
func (e Environment) Lookup(name string) (string, bool) {
	v, ok := e[name]
	return v, ok
}

// Has reports whether name is set, even to the empty string.
func (e Environment) Has(name string) bool {
	_, ok := e[name]
	return ok
}

// Enabled reports whether name is set to exactly "1".
func (e Environment) Enabled(name string) bool {
	return e[name] == "1"
}

// IsCray reports whether the host uses the Cray programming environment,
// whose compiler wrappers cannot build the toolchain directly.
func (e Environment) IsCray() bool {
	return e.Has(VarCrayVersion)
}

// With returns the environment as KEY=VALUE pairs with overrides applied,
// sorted by key, ready for exec.Cmd.Env.
func (e Environment) With(overrides map[string]string) []string {
	merged := make(map[string]string, len(e)+len(overrides))
	for k, v := range e {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}

// HostCompilerEnv returns the child environment for builds that must not
// use the Cray wrappers: CC and CXX replaced by HOST_CC and HOST_CXX.
// On other hosts it returns nil, meaning the parent environment is
// inherited unchanged.
func (e Environment) HostCompilerEnv() []string {
	if !e.IsCray() {
		return nil
	}
	return e.With(map[string]string{
		VarCC:  e[VarHostCC],
		VarCXX: e[VarHostCXX],
	})
}

// Features are the optional installer toggles.
type Features struct {
	CUDA   bool
	OpenMP bool
	HDF    bool
	Debug  bool
}

// Features reads the USE_* and DEBUG toggles.
func (e Environment) Features() Features {
	return Features{
		CUDA:   e.Enabled(VarUseCUDA),
		OpenMP: e.Enabled(VarUseOpenMP),
		HDF:    e.Enabled(VarUseHDF),
		Debug:  e.Enabled(VarDebug),
	}
}

// CrayNotice is printed when a Cray host is detected.
const CrayNotice = `This system has been detected as a Cray system.

Note: The Cray wrappers are broken for various purposes
(particularly, dynamically linked libraries). For this
reason this tool requires that HOST_CC and HOST_CXX
be set to the underlying compilers (GCC and G++, etc.).
`

// Validate checks the environment in a fixed order and stops at the first
// unmet condition. On Cray hosts the notice is written to w before the
// host compiler variables are checked.
func Validate(e Environment, w io.Writer) error {
	for _, name := range []string{VarCC, VarCXX} {
		if !e.Has(name) {
			return missing(name)
		}
	}
	if e.Has(VarLegionRT) {
		return fmt.Errorf("please unset %s in your environment: %w", VarLegionRT, ErrForbiddenVar)
	}

	if !e.IsCray() {
		return nil
	}

	if w != nil {
		fmt.Fprint(w, CrayNotice)
	}
	for _, name := range []string{VarHostCC, VarHostCXX} {
		if !e.Has(name) {
			return missing(name)
		}
	}
	return nil
}

func missing(name string) error {
	return fmt.Errorf("please set %s in your environment: %w", name, ErrMissingVar)
}
