package monitor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/dutctl/internal/config"
	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/pkg/sshutil"
)

// Defaults for a monitor session.
const (
	DefaultBasePort = 4022
	DefaultInterval = 5 * time.Second
	// ForwardRemote is where every forwarded port lands on the DUT.
	ForwardRemote = "localhost:22"
)

// Session is one monitored DUT. Port is exclusively owned by the session
// until the monitor is closed.
type Session struct {
	Target dut.Target
	Port   int

	client sshutil.SSHClient
	tunnel sshutil.Tunnel
}

// Label names the session in output.
func (s *Session) Label() string {
	return s.Target.Label()
}

// State is a row's health.
type State string

const (
	StateOnline     State = "online"
	StateError      State = "error"
	StateTunnelDown State = "tunnel down"
)

// Row is one target's result for a cycle.
type Row struct {
	Label   string
	Address string
	Port    int
	State   State
	Status  Status
	Err     error
}

// Summary is the status line, or the error for failed rows.
func (r Row) Summary() string {
	if r.Err != nil {
		return firstLine(r.Err.Error())
	}
	return r.Status.Summary()
}

// Monitor holds every session open for its lifetime.
type Monitor struct {
	// MaxCycles stops Run after that many cycles when positive.
	MaxCycles int

	sessions []*Session
	log      logger.Logger
	now      func() time.Time

	closeOnce sync.Once
}

// New dials every target and opens its forward on basePort+i. It fails
// fast: the first target that can't be dialed or forwarded closes the
// sessions already opened.
func New(ctx context.Context, dialer dut.Dialer, targets []dut.Target, basePort int, log logger.Logger) (*Monitor, error) {
	if len(targets) == 0 {
		return nil, errors.New(errors.ErrConfig,
			"No DUTs to monitor",
			"Pass one or more DUT ids or addresses.")
	}
	if basePort == 0 {
		basePort = DefaultBasePort
	}
	if err := config.ValidateMonitorPorts(basePort, len(targets)); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Noop()
	}

	m := &Monitor{log: log, now: time.Now}
	for i, t := range targets {
		s, err := open(ctx, dialer, t, basePort+i)
		if err != nil {
			m.Close()
			return nil, err
		}
		log.Debug("monitoring %s on 127.0.0.1:%d", s.Label(), s.Port)
		m.sessions = append(m.sessions, s)
	}
	return m, nil
}

func open(ctx context.Context, dialer dut.Dialer, t dut.Target, port int) (*Session, error) {
	client, err := dialer.Dial(ctx, t.Descriptor)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Monitor: can't connect to %s", t.Label()))
	}
	tunnel, err := client.Forward(port, ForwardRemote)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, fmt.Sprintf("Monitor: can't forward port %d to %s", port, t.Label()))
	}
	return &Session{Target: t, Port: port, client: client, tunnel: tunnel}, nil
}

// Sessions returns the open sessions in target order.
func (m *Monitor) Sessions() []*Session {
	return append([]*Session(nil), m.sessions...)
}

// Cycle polls every target in order.
func (m *Monitor) Cycle(ctx context.Context) []Row {
	rows := make([]Row, 0, len(m.sessions))
	for _, s := range m.sessions {
		if ctx.Err() != nil {
			break
		}
		rows = append(rows, m.poll(s))
	}
	return rows
}

func (m *Monitor) poll(s *Session) Row {
	row := Row{
		Label:   s.Label(),
		Address: s.Target.Descriptor.Address(),
		Port:    s.Port,
		State:   StateOnline,
	}

	if exited, reason := s.tunnel.Exited(); exited {
		row.State = StateTunnelDown
		if reason == nil {
			reason = stderrors.New("forward closed")
		}
		row.Err = fmt.Errorf("port %d: %w", s.Port, reason)
		return row
	}

	stdout, stderr, code, err := s.client.Exec(StatusCommand())
	switch {
	case err != nil:
		row.Err = err
	case code != 0:
		row.Err = fmt.Errorf("status command exited %d: %s", code, strings.TrimSpace(string(stderr)))
	default:
		row.Status, row.Err = ParseStatus(string(stdout))
	}
	if row.Err != nil {
		row.State = StateError
		m.log.Debug("poll %s: %v", row.Label, row.Err)
	}
	return row
}

// Renderer displays one cycle's rows.
type Renderer interface {
	Render(rows []Row, at time.Time) error
}

// Refresher is a Renderer that can ask for the next cycle early.
type Refresher interface {
	Refresh() <-chan struct{}
}

// Run renders a cycle immediately and then every interval until ctx is
// done, returning ctx.Err(). With MaxCycles set it returns nil after that
// many cycles.
func (m *Monitor) Run(ctx context.Context, interval time.Duration, r Renderer) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	var refresh <-chan struct{}
	if rf, ok := r.(Refresher); ok {
		refresh = rf.Refresh()
	}

	for cycles := 0; ; {
		rows := m.Cycle(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Render(rows, m.now()); err != nil {
			return err
		}
		cycles++
		if m.MaxCycles > 0 && cycles >= m.MaxCycles {
			return nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-refresh:
			timer.Stop()
		}
	}
}

// Close tears down every forward and connection. Safe to call more than once.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		for _, s := range m.sessions {
			if s.tunnel != nil {
				s.tunnel.Close()
			}
			if s.client != nil {
				s.client.Close()
			}
		}
	})
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "✗"))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
