package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConfigFileCheck(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()
	t.Setenv("HOME", home)

	t.Run("explicit path missing", func(t *testing.T) {
		result := (&ConfigFileCheck{ConfigPath: filepath.Join(home, "nope.yaml")}).Run(ctx)
		assert.Equal(t, StatusFail, result.Status)
		assert.Contains(t, result.Message, "nope.yaml")
	})

	t.Run("no file anywhere", func(t *testing.T) {
		check := &ConfigFileCheck{}
		result := check.Run(ctx)
		assert.Equal(t, StatusWarn, result.Status)
		assert.True(t, result.Fixable)

		require.NoError(t, check.Fix())
		assert.FileExists(t, filepath.Join(home, ".config", "dutctl", "config.yaml"))
		assert.Equal(t, StatusPass, check.Run(ctx).Status)
	})

	t.Run("explicit path found", func(t *testing.T) {
		path := filepath.Join(home, "lab.yaml")
		writeFile(t, path, "version: 1\n")
		result := (&ConfigFileCheck{ConfigPath: path}).Run(ctx)
		assert.Equal(t, StatusPass, result.Status)
		assert.Contains(t, result.Message, path)
	})
}

func TestConfigSchemaCheck(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	tests := []struct {
		name    string
		content string
		want    CheckStatus
		message string
	}{
		{name: "valid", content: "version: 1\nssh:\n  port: 2222\n", want: StatusPass},
		{name: "bad port", content: "version: 1\nssh:\n  port: 70000\n", want: StatusFail, message: "ssh.port"},
		{name: "future version", content: "version: 9\n", want: StatusFail, message: "future"},
		{name: "old version", content: "version: 0\n", want: StatusWarn, message: "older"},
		{name: "not yaml", content: "ssh: [unclosed\n", want: StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			writeFile(t, path, tt.content)

			result := (&ConfigSchemaCheck{ConfigPath: path}).Run(context.Background())
			assert.Equal(t, tt.want, result.Status, result.Message)
			if tt.message != "" {
				assert.Contains(t, result.Message, tt.message)
			}
		})
	}
}
