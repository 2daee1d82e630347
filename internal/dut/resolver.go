package dut

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/internal/util"
	"github.com/rileyhilliard/dutctl/pkg/sshutil"
)

// Dialer opens an SSH connection to a DUT.
type Dialer interface {
	Dial(ctx context.Context, d Descriptor) (sshutil.SSHClient, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, d Descriptor) (sshutil.SSHClient, error)

// Dial calls f.
func (f DialFunc) Dial(ctx context.Context, d Descriptor) (sshutil.SSHClient, error) {
	return f(ctx, d)
}

// Resolver queries DUT attributes over SSH, one remote command per
// attribute. Any failed query fails the whole resolution; a DUT is never
// reported with a subset of what was asked for.
type Resolver struct {
	dialer Dialer
	log    logger.Logger
	now    func() time.Time
}

// NewResolver creates a Resolver. A nil logger discards output.
func NewResolver(dialer Dialer, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Noop()
	}
	return &Resolver{dialer: dialer, log: log, now: time.Now}
}

// ValidateAttributes reports every unknown attribute name together.
func ValidateAttributes(names []string) error {
	var unknown []string
	for _, name := range names {
		if !IsKnownAttribute(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown %s: %s", util.Pluralize(len(unknown), "attribute", "attributes"), strings.Join(unknown, ", ")),
			"Known attributes: "+strings.Join(KnownAttributes(), ", "))
	}
	return nil
}

// Resolve connects to d and queries names. Names are validated before
// dialing. Cancelling ctx closes the connection, which interrupts any
// query in flight.
func (r *Resolver) Resolve(ctx context.Context, d Descriptor, names []string) (Attributes, error) {
	names = util.Dedupe(names)
	if err := ValidateAttributes(names); err != nil {
		return nil, err
	}

	client, err := r.dialer.Dial(ctx, d)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	return r.query(ctx, client, d, names)
}

// ResolveClient queries names over an already open connection. The caller
// keeps ownership of client.
func (r *Resolver) ResolveClient(ctx context.Context, client sshutil.SSHClient, names []string) (Attributes, error) {
	names = util.Dedupe(names)
	if err := ValidateAttributes(names); err != nil {
		return nil, err
	}
	return r.query(ctx, client, Descriptor{Host: client.GetHost()}, names)
}

// ResolveID resolves only dut_id.
func (r *Resolver) ResolveID(ctx context.Context, d Descriptor) (string, error) {
	attrs, err := r.Resolve(ctx, d, []string{AttrDutID})
	if err != nil {
		return "", err
	}
	return attrs.ID(), nil
}

func (r *Resolver) query(ctx context.Context, client sshutil.SSHClient, d Descriptor, names []string) (Attributes, error) {
	attrs := make(Attributes, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConnectivity,
				fmt.Sprintf("Resolving %s on %s timed out", name, d.Host),
				"The DUT answered too slowly. Raise discovery.probe_timeout if it is just slow.")
		}

		if name == AttrTimestamp {
			attrs[name] = r.now().Format(time.RFC3339)
			continue
		}

		value, err := r.queryOne(ctx, client, d, name)
		if err != nil {
			return nil, err
		}
		r.log.Debug("%s: %s = %s", d.Host, name, value)
		attrs[name] = value
	}
	return attrs, nil
}

func (r *Resolver) queryOne(ctx context.Context, client sshutil.SSHClient, d Descriptor, name string) (string, error) {
	cmd := queries[name]
	stdout, stderr, code, err := client.Exec(cmd)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.WrapWithCode(ctx.Err(), errors.ErrConnectivity,
				fmt.Sprintf("Resolving %s on %s timed out", name, d.Host),
				"The DUT answered too slowly. Raise discovery.probe_timeout if it is just slow.")
		}
		return "", errors.WrapWithCode(err, errors.ErrResolution,
			fmt.Sprintf("Querying %s on %s failed", name, d.Host), "")
	}
	if code != 0 {
		return "", errors.New(errors.ErrResolution,
			fmt.Sprintf("Querying %s on %s exited %d", name, d.Host, code),
			strings.TrimSpace(string(stderr)))
	}

	value := strings.TrimSpace(string(stdout))
	if value == "" || (name == AttrDutID && !validID(value)) {
		return "", errors.New(errors.ErrResolution,
			fmt.Sprintf("Querying %s on %s returned %q", name, d.Host, value),
			"Is this a ChromeOS test image?")
	}
	return value, nil
}

// validID rejects ids missing their model or serial half.
func validID(id string) bool {
	return !strings.HasPrefix(id, "_") && !strings.HasSuffix(id, "_") && strings.Contains(id, "_")
}
