// Package duttest wires the sshutil mocks into dut types for tests.
package duttest

import (
	"context"

	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/pkg/sshutil"
	sshtest "github.com/rileyhilliard/dutctl/pkg/sshutil/testing"
)

// Dialer dials descriptors through md, keyed by host.
func Dialer(md *sshtest.MockDialer) dut.Dialer {
	return dut.DialFunc(func(ctx context.Context, d dut.Descriptor) (sshutil.SSHClient, error) {
		return md.DialHost(ctx, d.Host)
	})
}

// Device is a fake ChromeOS DUT's answers.
type Device struct {
	Model  string
	Serial string
	HWID   string
	// Extra answers any other attribute by name.
	Extra map[string]string
}

// ID is the dut_id the device reports.
func (dev Device) ID() string {
	return dev.Model + "_" + dev.Serial
}

// NewClient returns a client for host that answers attribute queries
// as dev.
func NewClient(host string, dev Device) *sshtest.MockClient {
	client := sshtest.NewMockClient(host)
	Answer(client, dev)
	return client
}

// Answer registers dev's attribute answers on client.
func Answer(client *sshtest.MockClient, dev Device) {
	answers := map[string]string{
		dut.AttrDutID:   dev.ID(),
		dut.AttrModel:   dev.Model,
		dut.AttrSerial:  dev.Serial,
		dut.AttrHWID:    dev.HWID,
		dut.AttrRelease: dev.Model + "-release/R120-15662.0.0",
		dut.AttrMAC:     "00:11:22:33:44:55",
	}
	for name, value := range dev.Extra {
		answers[name] = value
	}
	for name, value := range answers {
		if cmd, ok := dut.QueryCommand(name); ok {
			client.SetOutput(cmd, value+"\n")
		}
	}
}

// Add registers a device at host on md and returns its client.
func Add(md *sshtest.MockDialer, host string, dev Device) *sshtest.MockClient {
	return md.AddClient(host, NewClient(host, dev))
}
