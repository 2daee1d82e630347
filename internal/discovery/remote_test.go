package discovery

import (
	"bytes"
	"context"
	"testing"

	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/dut/duttest"
	"github.com/rileyhilliard/dutctl/internal/errors"
	sshtest "github.com/rileyhilliard/dutctl/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	assert.Equal(t, "~/'dutctl' dut discover", Command("/usr/local/bin/dutctl", "", nil))
	assert.Equal(t, "~/'dutctl' dut discover --interface 'eth1' 'board' 'arch'",
		Command("/opt/dutctl", "eth1", []string{"board", "arch"}))
}

func TestDelegate_Run(t *testing.T) {
	md := sshtest.NewMockDialer()
	client := md.AddClient("jump", sshtest.NewMockClient("jump"))
	client.SetCommandResponse(`^~/'dutctl' dut discover`, sshtest.CommandResponse{
		Stdout: []byte(`[{"dut_id":"eve_SN1"}]`),
		Stderr: []byte("Discovery completed with 1 DUTs\n"),
	})

	var stdout, stderr bytes.Buffer
	d := &Delegate{
		Dialer:     duttest.Dialer(md),
		Executable: func() (string, error) { return "/usr/local/bin/dutctl", nil },
		Stdout:     &stdout,
		Stderr:     &stderr,
	}

	err := d.Run(context.Background(), dut.Descriptor{Host: "jump", Port: 22}, "eth1", []string{"board"})
	require.NoError(t, err)

	assert.Equal(t, []sshtest.Transfer{{Paths: []string{"/usr/local/bin/dutctl"}, Dir: "~/"}}, client.Uploads())
	assert.Equal(t, []string{"~/'dutctl' dut discover --interface 'eth1' 'board'"}, client.Commands())
	assert.Equal(t, `[{"dut_id":"eve_SN1"}]`, stdout.String())
	assert.Contains(t, stderr.String(), "Discovery completed")
	assert.True(t, client.IsClosed())
}

func TestDelegate_Failures(t *testing.T) {
	exe := func() (string, error) { return "/bin/dutctl", nil }

	t.Run("unreachable", func(t *testing.T) {
		d := &Delegate{Dialer: duttest.Dialer(sshtest.NewMockDialer()), Executable: exe}
		err := d.Run(context.Background(), dut.Descriptor{Host: "jump"}, "", nil)
		assert.True(t, errors.IsCode(err, errors.ErrConnectivity))
	})

	t.Run("remote exits non-zero", func(t *testing.T) {
		md := sshtest.NewMockDialer()
		client := md.AddClient("jump", sshtest.NewMockClient("jump"))
		client.SetCommandResponse(`dut discover`, sshtest.CommandResponse{ExitCode: 2})
		d := &Delegate{Dialer: duttest.Dialer(md), Executable: exe}

		err := d.Run(context.Background(), dut.Descriptor{Host: "jump"}, "", nil)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrExec))
		assert.Contains(t, err.Error(), "exited 2")
	})

	t.Run("upload fails", func(t *testing.T) {
		md := sshtest.NewMockDialer()
		client := md.AddClient("jump", sshtest.NewMockClient("jump"))
		client.TransferError = errors.New(errors.ErrExec, "disk full", "")
		d := &Delegate{Dialer: duttest.Dialer(md), Executable: exe}

		err := d.Run(context.Background(), dut.Descriptor{Host: "jump"}, "", nil)
		assert.True(t, errors.IsCode(err, errors.ErrExec))
		assert.Empty(t, client.Commands(), "nothing runs after a failed upload")
	})
}
