package exec

import (
	stderrors "errors"
	"testing"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCommandNotFound(t *testing.T) {
	tests := []struct {
		name      string
		stderr    string
		exitCode  int
		wantCmd   string
		wantFound bool
	}{
		{name: "bash", stderr: "bash: kmsvnc: command not found", exitCode: 127, wantCmd: "kmsvnc", wantFound: true},
		{name: "dash", stderr: "sh: 1: zcat: not found", exitCode: 127, wantCmd: "zcat", wantFound: true},
		{name: "-bash no such file", stderr: "-bash: /usr/local/bin/tast: No such file or directory", exitCode: 127, wantCmd: "/usr/local/bin/tast", wantFound: true},
		{name: "generic", stderr: "modprobe: not found", exitCode: 127, wantCmd: "modprobe", wantFound: true},
		{name: "127 without a pattern", stderr: "something odd", exitCode: 127, wantFound: true},
		{name: "other exit code", stderr: "bash: kmsvnc: command not found", exitCode: 1},
		{name: "success", exitCode: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, found := IsCommandNotFound(tt.stderr, tt.exitCode)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantCmd, cmd)
		})
	}
}

func TestIsDependencyNotFound(t *testing.T) {
	tests := []struct {
		name      string
		stderr    string
		wantCmd   string
		wantFound bool
	}{
		{name: "sh script", stderr: "/bin/sh: zcat: not found", wantCmd: "zcat", wantFound: true},
		{name: "env shebang", stderr: "env: python3: No such file or directory", wantCmd: "python3", wantFound: true},
		{name: "unrelated", stderr: "gzip: /proc/config.gz: No such file or directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, found := IsDependencyNotFound(tt.stderr)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantCmd, cmd)
		})
	}
}

func structured(t *testing.T, err error) *errors.Error {
	t.Helper()
	var e *errors.Error
	require.True(t, stderrors.As(err, &e), "want a structured error, got %v", err)
	return e
}

func TestRemoteFailure(t *testing.T) {
	t.Run("missing command", func(t *testing.T) {
		e := structured(t, RemoteFailure("kmsvnc", "eve_NXAB12", "bash: kmsvnc: command not found\n", 127))
		assert.Equal(t, errors.ErrExec, e.Code)
		assert.Equal(t, "'kmsvnc' not found on eve_NXAB12", e.Message)
		assert.Contains(t, e.Suggestion, "test images")
	})

	t.Run("falls back to the first word", func(t *testing.T) {
		e := structured(t, RemoteFailure("tast run", "10.0.0.1:22", "", 127))
		assert.Equal(t, "'tast' not found on 10.0.0.1:22", e.Message)
	})

	t.Run("plain failure", func(t *testing.T) {
		e := structured(t, RemoteFailure("zcat /proc/config.gz", "eve_NXAB12", "gzip: no such file\n", 1))
		assert.Equal(t, "'zcat /proc/config.gz' exited 1 on eve_NXAB12", e.Message)
		assert.Equal(t, "gzip: no such file", e.Suggestion)
	})
}
