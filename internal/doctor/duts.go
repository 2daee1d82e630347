package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/host"
	"github.com/rileyhilliard/dutctl/internal/registry"
)

// DefaultDUTTimeout bounds one DUT's identity resolution.
const DefaultDUTTimeout = 15 * time.Second

// IDResolver resolves the identity currently answering at a descriptor.
type IDResolver interface {
	ResolveID(ctx context.Context, d dut.Descriptor) (string, error)
}

// DUTCheck verifies a registered DUT still answers at its cached address
// with its cached identity.
type DUTCheck struct {
	Entry    registry.Entry
	Resolver IDResolver
	Timeout  time.Duration
}

func (c *DUTCheck) Name() string     { return "dut_" + c.Entry.ID }
func (c *DUTCheck) Category() string { return "FLEET" }

func (c *DUTCheck) Run(ctx context.Context) CheckResult {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultDUTTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := c.Entry.Descriptor.Address()
	id, err := c.Resolver.ResolveID(ctx, c.Entry.Descriptor)
	if err != nil {
		reason := host.Classify(err)
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s at %s: %s", c.Entry.ID, addr, reason),
			Suggestion: suggestionFor(reason),
		}
	}

	if id != c.Entry.ID {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%s: %s now answers as %s", c.Entry.ID, addr, id),
			Suggestion: "Drop the stale entry: dutctl dut list --update",
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s at %s", c.Entry.ID, addr),
	}
}

func (c *DUTCheck) Fix() error {
	return nil // Network issues can't be auto-fixed
}

func suggestionFor(reason host.ProbeFailReason) string {
	switch reason {
	case host.ProbeFailRefused:
		return "sshd may not be running; is the DUT booted into a test image?"
	case host.ProbeFailAuth:
		return "Check ssh.identity_file points at the testing key"
	case host.ProbeFailHostKey:
		return "The DUT was likely re-imaged; remove its known_hosts entry"
	case host.ProbeFailTimeout, host.ProbeFailUnreachable:
		return "DUT may be offline or its address changed; try 'dutctl dut discover'"
	case host.ProbeFailQuery:
		return "The DUT answered but its identity couldn't be read"
	default:
		return "Rerun with -v to see the SSH exchange"
	}
}

// NewDUTChecks creates one check per registry entry.
func NewDUTChecks(entries []registry.Entry, resolver IDResolver, timeout time.Duration) []Check {
	checks := make([]Check, 0, len(entries))
	for _, e := range entries {
		checks = append(checks, &DUTCheck{Entry: e, Resolver: resolver, Timeout: timeout})
	}
	return checks
}
