package testing

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	dutErrors "github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// ErrClosed is returned by every call on a closed MockClient.
var ErrClosed = errors.New("connection closed")

// MockClient simulates an SSH connection to a DUT. Commands are answered
// from canned responses; anything unmatched exits 127.
type MockClient struct {
	mu        sync.Mutex
	host      string
	address   string
	closed    bool
	closedCh  chan struct{}
	responses map[string]CommandResponse
	patterns  []string // insertion order, so the first registered regex wins
	commands  []string
	stdins    map[string][]byte
	tunnels   []*MockTunnel
	uploads   []Transfer
	downloads []Transfer

	// Delay is applied before every Exec. Closing the client ends the wait early.
	Delay time.Duration

	// ShellError is returned by Shell.
	ShellError error

	// ForwardError is returned by Forward.
	ForwardError error

	// TransferError is returned by Upload and Download.
	TransferError error
}

// Transfer records one Upload or Download call.
type Transfer struct {
	Paths []string
	Dir   string
}

// NewMockClient creates a mock client for host.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:      host,
		address:   host + ":22",
		closedCh:  make(chan struct{}),
		responses: make(map[string]CommandResponse),
		stdins:    make(map[string][]byte),
	}
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.responses[pattern]; !ok {
		m.patterns = append(m.patterns, pattern)
	}
	m.responses[pattern] = resp
}

// SetOutput is shorthand for a successful command printing out.
func (m *MockClient) SetOutput(pattern, out string) {
	m.SetCommandResponse(pattern, CommandResponse{Stdout: []byte(out)})
}

// Exec answers cmd from the registered responses.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-m.closedCh:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, ErrClosed
	}
	m.commands = append(m.commands, cmd)

	if resp, ok := m.responses[cmd]; ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}
	for _, pattern := range m.patterns {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			resp := m.responses[pattern]
			return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
		}
	}
	return nil, []byte(fmt.Sprintf("mock: command not found: %s", cmd)), 127, nil
}

// ExecStream runs a command and writes output to the provided writers.
func (m *MockClient) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	out, errOut, code, execErr := m.Exec(cmd)
	if execErr != nil {
		return -1, execErr
	}
	if stdout != nil && len(out) > 0 {
		_, _ = stdout.Write(out)
	}
	if stderr != nil && len(errOut) > 0 {
		_, _ = stderr.Write(errOut)
	}
	return code, nil
}

// ExecInteractive records whatever stdin supplies, then behaves like ExecStream.
func (m *MockClient) ExecInteractive(cmd string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error) {
	if stdin != nil {
		data, _ := io.ReadAll(stdin)
		m.mu.Lock()
		m.stdins[cmd] = data
		m.mu.Unlock()
	}
	return m.ExecStream(cmd, stdout, stderr)
}

// Shell records a "<shell>" command and returns ShellError.
func (m *MockClient) Shell(stdin io.Reader, stdout, stderr io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.commands = append(m.commands, "<shell>")
	return m.ShellError
}

// Forward returns a MockTunnel bound to localPort.
func (m *MockClient) Forward(localPort int, remoteAddr string) (sshutil.Tunnel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.ForwardError != nil {
		return nil, m.ForwardError
	}
	t := &MockTunnel{Port: localPort, Remote: remoteAddr}
	m.tunnels = append(m.tunnels, t)
	return t, nil
}

// Upload records the call.
func (m *MockClient) Upload(localPaths []string, remoteDir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.uploads = append(m.uploads, Transfer{Paths: append([]string(nil), localPaths...), Dir: remoteDir})
	return m.TransferError
}

// Download records the call.
func (m *MockClient) Download(remotePaths []string, localDir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.downloads = append(m.downloads, Transfer{Paths: append([]string(nil), remotePaths...), Dir: localDir})
	return m.TransferError
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// IsClosed reports whether Close was called.
func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Commands returns every command run so far, in order.
func (m *MockClient) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// Stdin returns what ExecInteractive read for cmd.
func (m *MockClient) Stdin(cmd string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stdins[cmd]
}

// Tunnels returns every tunnel opened through Forward.
func (m *MockClient) Tunnels() []*MockTunnel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockTunnel(nil), m.tunnels...)
}

// Uploads returns every Upload call.
func (m *MockClient) Uploads() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transfer(nil), m.uploads...)
}

// Downloads returns every Download call.
func (m *MockClient) Downloads() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transfer(nil), m.downloads...)
}

// MockTunnel is a fake port forward. Tests end it with Kill or Close.
type MockTunnel struct {
	Port   int
	Remote string

	mu     sync.Mutex
	exited bool
	reason error
}

func (t *MockTunnel) LocalPort() int { return t.Port }

func (t *MockTunnel) Exited() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exited, t.reason
}

func (t *MockTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exited = true
	return nil
}

// Kill makes the tunnel report it exited because of reason.
func (t *MockTunnel) Kill(reason error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exited = true
	t.reason = reason
}

// IsClosed reports whether the tunnel has stopped.
func (t *MockTunnel) IsClosed() bool {
	exited, _ := t.Exited()
	return exited
}

// unreachable builds the error a real dial returns for a dead host.
func unreachable(host string) error {
	return dutErrors.New(dutErrors.ErrConnectivity,
		fmt.Sprintf("Can't reach '%s'", host),
		"mock: no client registered for this host")
}
