// Package fleet keeps the registry honest: it adds DUTs under their
// resolved identity and reconciles cached addresses against what
// actually answers there now.
package fleet

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/host"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/internal/registry"
	"golang.org/x/sync/errgroup"
)

// Status is a registry entry's live state. It is derived, never stored.
type Status int

const (
	// Offline means resolution at the cached address failed or timed out.
	Offline Status = iota
	// Online means the cached address still answers with the cached identity.
	Online
	// AddressReused means the cached address now belongs to another DUT.
	AddressReused
)

func (s Status) String() string {
	switch s {
	case Online:
		return "Online"
	case AddressReused:
		return "AddressReused"
	default:
		return "Offline"
	}
}

// MarshalText renders the status name in JSON and YAML.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mode selects what Reconcile does with its findings.
type Mode int

const (
	// ModeStatus reports and leaves the registry alone.
	ModeStatus Mode = iota
	// ModeUpdate also removes AddressReused entries.
	ModeUpdate
)

// Store is the registry surface the manager needs.
type Store interface {
	Entries() ([]registry.Entry, error)
	Set(id string, d dut.Descriptor) error
	Remove(id string) (bool, error)
}

// IDResolver resolves attributes of one DUT.
type IDResolver interface {
	Resolve(ctx context.Context, d dut.Descriptor, names []string) (dut.Attributes, error)
}

// Report is one entry's reconciliation result.
type Report struct {
	ID         string         `json:"id" yaml:"id"`
	Status     Status         `json:"status" yaml:"status"`
	Descriptor dut.Descriptor `json:"descriptor" yaml:"descriptor"`
	// Found is the identity that answered at the address, when it resolved.
	Found string `json:"found,omitempty" yaml:"found,omitempty"`
	// Reason explains an Offline status.
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Removed bool   `json:"removed,omitempty" yaml:"removed,omitempty"`
}

// Manager adds and reconciles registry entries.
type Manager struct {
	Store    Store
	Resolver IDResolver
	// Timeout bounds each entry's resolution.
	Timeout time.Duration
	// MaxParallel caps concurrent resolutions. 0 is unbounded.
	MaxParallel int
	Log         logger.Logger
}

func (m *Manager) log() logger.Logger {
	if m.Log == nil {
		return logger.Noop()
	}
	return m.Log
}

func (m *Manager) timeout() time.Duration {
	if m.Timeout <= 0 {
		return 15 * time.Second
	}
	return m.Timeout
}

// Add resolves d's identity and registers it. Re-adding an identity
// replaces its descriptor.
func (m *Manager) Add(ctx context.Context, d dut.Descriptor) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()

	attrs, err := m.Resolver.Resolve(ctx, d, []string{dut.AttrDutID})
	if err != nil {
		return "", errors.Wrap(err, fmt.Sprintf("Couldn't identify the DUT at %s", d.Address()))
	}
	id := attrs.ID()
	if err := m.Store.Set(id, d); err != nil {
		return "", err
	}
	m.log().Info("registered %s at %s", id, d.Address())
	return id, nil
}

// Reconcile checks every registry entry concurrently against a snapshot
// taken up front. In ModeUpdate, AddressReused entries are removed once all
// probes have finished; Offline entries are kept. Reports are sorted by id.
func (m *Manager) Reconcile(ctx context.Context, mode Mode) ([]Report, error) {
	entries, err := m.Store.Entries()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	m.log().Debug("reconcile %s: checking %d entries", runID, len(entries))

	reports := make([]Report, len(entries))
	g := new(errgroup.Group)
	if m.MaxParallel > 0 {
		g.SetLimit(m.MaxParallel)
	}
	for i, e := range entries {
		g.Go(func() error {
			reports[i] = m.check(ctx, e)
			return nil
		})
	}
	_ = g.Wait()

	if mode == ModeUpdate {
		for i := range reports {
			if reports[i].Status != AddressReused {
				continue
			}
			if _, err := m.Store.Remove(reports[i].ID); err != nil {
				return reports, err
			}
			reports[i].Removed = true
			m.log().Info("reconcile %s: removed %s, %s now answers as %s",
				runID, reports[i].ID, reports[i].Descriptor.Address(), reports[i].Found)
		}
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })
	return reports, nil
}

func (m *Manager) check(ctx context.Context, e registry.Entry) Report {
	r := Report{ID: e.ID, Descriptor: e.Descriptor}

	pctx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()

	attrs, err := m.Resolver.Resolve(pctx, e.Descriptor, []string{dut.AttrDutID})
	switch {
	case err != nil:
		r.Status = Offline
		r.Reason = host.Classify(err).String()
	case attrs.ID() == e.ID:
		r.Status = Online
		r.Found = attrs.ID()
	default:
		r.Status = AddressReused
		r.Found = attrs.ID()
	}
	return r
}

// Removed returns the ids of removed entries.
func Removed(reports []Report) []string {
	var ids []string
	for _, r := range reports {
		if r.Removed {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
