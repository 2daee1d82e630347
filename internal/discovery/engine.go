// Package discovery finds DUTs: it enumerates candidate addresses, probes
// them all concurrently through the identity resolver, and keeps the ones
// that answer. It can also run the whole procedure on a remote host.
package discovery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/host"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/internal/util"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// AttributeResolver resolves attributes of one DUT.
type AttributeResolver interface {
	Resolve(ctx context.Context, d dut.Descriptor, names []string) (dut.Attributes, error)
}

// Options tunes a probe run.
type Options struct {
	// ProbeTimeout bounds each candidate, connect included.
	ProbeTimeout time.Duration
	// MaxParallel caps concurrent probes. 0 is one goroutine per candidate.
	MaxParallel int
	// DialRate caps probe starts per second. 0 is unlimited.
	DialRate float64
	// ExtraAttributes are resolved on top of the canonical set.
	ExtraAttributes []string
	// Defaults fills port and identity file for bare hosts.
	Defaults dut.Descriptor
}

// Result is one DUT that resolved.
type Result struct {
	Descriptor dut.Descriptor
	Attributes dut.Attributes
}

// Report is the outcome of a probe run.
type Report struct {
	RunID     string
	Attempted int
	Resolved  int
	Results   []Result
	Elapsed   time.Duration
}

// Attributes returns each result's attributes, in result order.
func (r *Report) Attributes() []dut.Attributes {
	out := make([]dut.Attributes, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Attributes
	}
	return out
}

// Engine probes candidates.
type Engine struct {
	resolver AttributeResolver
	opts     Options
	log      logger.Logger
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(resolver AttributeResolver, opts Options, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Noop()
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 15 * time.Second
	}
	return &Engine{resolver: resolver, opts: opts, log: log}
}

// Names is the canonical attribute set plus the extras, without repeats.
func (e *Engine) Names() []string {
	return util.Dedupe(append(append([]string(nil), dut.CanonicalAttributes...), e.opts.ExtraAttributes...))
}

// Probe resolves every candidate concurrently. A candidate that fails or
// times out is dropped and never affects its siblings; Probe itself only
// fails on invalid attribute names. Results keep candidate order.
func (e *Engine) Probe(ctx context.Context, candidates []string) (*Report, error) {
	names := e.Names()
	if err := dut.ValidateAttributes(names); err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString()}
	start := time.Now()

	var descs []dut.Descriptor
	seen := make(map[dut.Descriptor]bool)
	for _, c := range candidates {
		d, err := dut.ParseDescriptor(c, e.opts.Defaults)
		if err != nil {
			e.log.Debug("run %s: skipping candidate %q: %v", report.RunID, c, err)
			continue
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		descs = append(descs, d)
	}
	report.Attempted = len(descs)
	e.log.Debug("run %s: probing %d candidates", report.RunID, len(descs))

	var limiter *rate.Limiter
	if e.opts.DialRate > 0 {
		burst := int(e.opts.DialRate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(e.opts.DialRate), burst)
	}

	// One slot per candidate; goroutines never share a slot, so no lock.
	slots := make([]dut.Attributes, len(descs))

	g := new(errgroup.Group)
	if e.opts.MaxParallel > 0 {
		g.SetLimit(e.opts.MaxParallel)
	}
	for i, d := range descs {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return nil
				}
			}
			pctx, cancel := context.WithTimeout(ctx, e.opts.ProbeTimeout)
			defer cancel()

			attrs, err := e.resolver.Resolve(pctx, d, names)
			if err != nil {
				e.log.Debug("run %s: %s: %s", report.RunID, d.Address(), host.Classify(err))
				return nil
			}
			slots[i] = attrs
			return nil
		})
	}
	_ = g.Wait()

	for i, attrs := range slots {
		if attrs != nil {
			report.Results = append(report.Results, Result{Descriptor: descs[i], Attributes: attrs})
		}
	}
	report.Resolved = len(report.Results)
	report.Elapsed = time.Since(start)
	e.log.Debug("run %s: %d of %d resolved in %s", report.RunID, report.Resolved, report.Attempted, report.Elapsed.Round(time.Millisecond))
	return report, nil
}
