package testing

import (
	"context"
	"sync"
	"time"

	dutErrors "github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/pkg/sshutil"
)

// MockDialer hands out registered MockClients by host. Hosts without a
// client fail with a connectivity error, the way an offline DUT does.
type MockDialer struct {
	mu      sync.Mutex
	clients map[string]*MockClient
	errs    map[string]error
	delays  map[string]time.Duration
	dials   []string
}

// NewMockDialer creates an empty dialer.
func NewMockDialer() *MockDialer {
	return &MockDialer{
		clients: make(map[string]*MockClient),
		errs:    make(map[string]error),
		delays:  make(map[string]time.Duration),
	}
}

// AddClient registers client for host and returns it.
func (d *MockDialer) AddClient(host string, client *MockClient) *MockClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[host] = client
	return client
}

// SetError makes dials to host fail with err.
func (d *MockDialer) SetError(host string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[host] = err
}

// SetDelay makes dials to host wait before answering. A dial whose context
// ends first fails with a connectivity error.
func (d *MockDialer) SetDelay(host string, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays[host] = delay
}

// DialHost connects to host.
func (d *MockDialer) DialHost(ctx context.Context, host string) (sshutil.SSHClient, error) {
	d.mu.Lock()
	d.dials = append(d.dials, host)
	client := d.clients[host]
	err := d.errs[host]
	delay := d.delays[host]
	d.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, dutErrors.WrapWithCode(ctx.Err(), dutErrors.ErrConnectivity,
				"SSH handshake with '"+host+"' was interrupted", "")
		}
	}
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, unreachable(host)
	}
	return client, nil
}

// Dials returns every host dialed so far, in order.
func (d *MockDialer) Dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}
