package dut

import (
	"fmt"
	"net"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/errors"
)

// Lookup finds a registered DUT by identity.
type Lookup interface {
	Get(id string) (Descriptor, bool, error)
}

// Target is a DUT addressed for one operation: its identity when known,
// and how to reach it.
type Target struct {
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	Descriptor Descriptor `json:"descriptor" yaml:"descriptor"`
}

// Label is the identity when known, else the address.
func (t Target) Label() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Descriptor.Address()
}

// ResolveTarget turns a free-form DUT argument into a Target. Registered
// identities win. Anything else shaped like an identity (underscores are
// never valid in a hostname) is an unknown id; the rest is parsed as an
// address. lookup may be nil.
func ResolveTarget(raw string, lookup Lookup, defaults Descriptor) (Target, error) {
	raw = strings.TrimSpace(raw)

	if lookup != nil && raw != "" {
		d, ok, err := lookup.Get(raw)
		if err != nil {
			return Target{}, err
		}
		if ok {
			return Target{ID: raw, Descriptor: d}, nil
		}
	}

	if looksLikeID(raw) {
		return Target{}, errors.New(errors.ErrUnknownID,
			fmt.Sprintf("DUT '%s' isn't in the registry", raw),
			"Add it first: dutctl dut list --add <host>, or see: dutctl dut list --ids")
	}

	d, err := ParseDescriptor(raw, defaults)
	if err != nil {
		return Target{}, err
	}
	return Target{Descriptor: d}, nil
}

// ResolveTargets resolves each raw argument, stopping at the first error.
func ResolveTargets(raws []string, lookup Lookup, defaults Descriptor) ([]Target, error) {
	targets := make([]Target, 0, len(raws))
	for _, raw := range raws {
		t, err := ResolveTarget(raw, lookup, defaults)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func looksLikeID(raw string) bool {
	if !strings.Contains(raw, "_") {
		return false
	}
	host := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	return net.ParseIP(host) == nil
}
