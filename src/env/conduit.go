package env

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sofmeright/setupenv/src/config"
)

// ErrNoConduit is returned when neither CONDUIT nor the hostname table
// identifies a conduit.
var ErrNoConduit = errors.New("cannot determine GASNet conduit")

// ConduitSource describes where a discovered conduit came from.
type ConduitSource string

const (
	SourceOverride ConduitSource = "override"
	SourceHostname ConduitSource = "hostname"
)

// Conduit is the result of discovery.
type Conduit struct {
	Name     string
	Source   ConduitSource
	Hostname string // set when Source is SourceHostname
	Prefix   string // matched rule prefix
}

// ConduitDiscoverer picks the GASNet conduit for this machine.
type ConduitDiscoverer struct {
	Rules    []config.ConduitRule
	Hostname func() (string, error)
}

// NewConduitDiscoverer uses rules (or the built-in table when empty) and
// the OS hostname.
func NewConduitDiscoverer(rules []config.ConduitRule) *ConduitDiscoverer {
	if len(rules) == 0 {
		rules = config.DefaultConduits()
	}
	return &ConduitDiscoverer{Rules: rules, Hostname: os.Hostname}
}

// Discover resolves the conduit. An explicit CONDUIT wins unconditionally
// and the hostname is not consulted; otherwise the first rule whose prefix
// matches the hostname is used.
func (d *ConduitDiscoverer) Discover(e Environment) (Conduit, error) {
	if v, ok := e.Lookup(VarConduit); ok {
		return Conduit{Name: v, Source: SourceOverride}, nil
	}

	hostnameFn := d.Hostname
	if hostnameFn == nil {
		hostnameFn = os.Hostname
	}
	host, err := hostnameFn()
	if err != nil {
		return Conduit{}, fmt.Errorf("reading hostname: %w", err)
	}

	for _, r := range d.Rules {
		if strings.HasPrefix(host, r.Prefix) {
			return Conduit{Name: r.Conduit, Source: SourceHostname, Hostname: host, Prefix: r.Prefix}, nil
		}
	}
	return Conduit{}, fmt.Errorf("please set %s in your environment (hostname %q is not recognized): %w", VarConduit, host, ErrNoConduit)
}
