package testing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	dutErrors "github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/pkg/sshutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ sshutil.SSHClient = (*MockClient)(nil)
var _ sshutil.Tunnel = (*MockTunnel)(nil)

func TestMockClient_Responses(t *testing.T) {
	client := NewMockClient("dut1")
	client.SetOutput("crossystem hwid", "EVE E2A-F3B")
	client.SetCommandResponse(`^vpd -g .*`, CommandResponse{Stdout: []byte("SN123\n")})
	client.SetCommandResponse("false", CommandResponse{ExitCode: 1, Stderr: []byte("nope")})

	tests := []struct {
		name     string
		cmd      string
		wantOut  string
		wantCode int
	}{
		{"exact match", "crossystem hwid", "EVE E2A-F3B", 0},
		{"regex match", "vpd -g serial_number", "SN123\n", 0},
		{"non-zero exit", "false", "", 1},
		{"unmatched", "uptime", "", 127},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, code, err := client.Exec(tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, string(out))
			assert.Equal(t, tt.wantCode, code)
		})
	}

	assert.Equal(t, []string{"crossystem hwid", "vpd -g serial_number", "false", "uptime"}, client.Commands())
}

func TestMockClient_ExecStreamAndInteractive(t *testing.T) {
	client := NewMockClient("dut1")
	client.SetCommandResponse("cat > x", CommandResponse{Stdout: []byte("ok"), Stderr: []byte("warn")})

	var stdout, stderr bytes.Buffer
	code, err := client.ExecInteractive("cat > x", strings.NewReader("payload"), &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "ok", stdout.String())
	assert.Equal(t, "warn", stderr.String())
	assert.Equal(t, "payload", string(client.Stdin("cat > x")))
}

func TestMockClient_Closed(t *testing.T) {
	client := NewMockClient("dut1")
	require.NoError(t, client.Close())
	assert.True(t, client.IsClosed())

	_, _, _, err := client.Exec("true")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = client.Forward(4022, "localhost:22")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, client.Upload([]string{"a"}, "~/"), ErrClosed)
}

func TestMockClient_CloseInterruptsDelay(t *testing.T) {
	client := NewMockClient("dut1")
	client.Delay = time.Minute

	go func() {
		time.Sleep(10 * time.Millisecond)
		client.Close()
	}()

	start := time.Now()
	_, _, _, err := client.Exec("true")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMockClient_ForwardAndTransfers(t *testing.T) {
	client := NewMockClient("dut1")

	tun, err := client.Forward(4022, "localhost:22")
	require.NoError(t, err)
	assert.Equal(t, 4022, tun.LocalPort())

	exited, _ := tun.Exited()
	assert.False(t, exited)

	client.Tunnels()[0].Kill(errors.New("dropped"))
	exited, reason := tun.Exited()
	assert.True(t, exited)
	assert.EqualError(t, reason, "dropped")

	require.NoError(t, client.Upload([]string{"/tmp/a", "/tmp/b"}, "~/"))
	require.NoError(t, client.Download([]string{"/var/log/messages"}, "."))
	assert.Equal(t, []Transfer{{Paths: []string{"/tmp/a", "/tmp/b"}, Dir: "~/"}}, client.Uploads())
	assert.Equal(t, []Transfer{{Paths: []string{"/var/log/messages"}, Dir: "."}}, client.Downloads())

	client.ForwardError = errors.New("port in use")
	_, err = client.Forward(4023, "localhost:22")
	assert.EqualError(t, err, "port in use")
}

func TestMockDialer(t *testing.T) {
	d := NewMockDialer()
	client := d.AddClient("10.0.0.1", NewMockClient("10.0.0.1"))
	d.SetError("10.0.0.2", dutErrors.New(dutErrors.ErrAuth, "denied", ""))
	d.SetDelay("10.0.0.3", time.Minute)

	got, err := d.DialHost(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Same(t, client, got)

	_, err = d.DialHost(context.Background(), "10.0.0.2")
	assert.True(t, dutErrors.IsCode(err, dutErrors.ErrAuth))

	_, err = d.DialHost(context.Background(), "10.0.0.9")
	assert.True(t, dutErrors.IsCode(err, dutErrors.ErrConnectivity))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.DialHost(ctx, "10.0.0.3")
	assert.True(t, dutErrors.IsCode(err, dutErrors.ErrConnectivity))

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.9", "10.0.0.3"}, d.Dials())
}
