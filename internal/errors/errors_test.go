package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConnectivity,
		ErrAuth,
		ErrResolution,
		ErrUnknownID,
		ErrInvalidAction,
		ErrConfig,
		ErrRegistry,
		ErrExec,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Invalid port in target 'dut:abc'",
			suggestion: "Use host[:port], e.g. 192.168.0.10:22",
		},
		{
			name:       "unknown identifier",
			code:       ErrUnknownID,
			message:    "DUT 'eve_ABC123' is not registered",
			suggestion: "Run 'dutctl dut list' to see registered DUTs",
		},
		{
			name:       "invalid action",
			code:       ErrInvalidAction,
			message:    "Unknown action: [frobnicate]",
			suggestion: "See 'dutctl dut do --list-actions'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		expectedParts []string
		notExpected   []string
	}{
		{
			name:          "message and suggestion",
			err:           New(ErrConfig, "Invalid configuration", "Check config.yaml syntax"),
			expectedParts: []string{"✗", "Invalid configuration", "Check config.yaml syntax"},
		},
		{
			name:          "cause is included",
			err:           WrapWithCode(errors.New("i/o timeout"), ErrConnectivity, "Can't reach 10.0.0.5:22", ""),
			expectedParts: []string{"Can't reach 10.0.0.5:22", "i/o timeout"},
		},
		{
			name:          "no suggestion",
			err:           New(ErrExec, "Command failed", ""),
			expectedParts: []string{"Command failed"},
			notExpected:   []string{"\n\n  \n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := tt.err.Error()
			for _, part := range tt.expectedParts {
				assert.Contains(t, output, part)
			}
			for _, part := range tt.notExpected {
				assert.NotContains(t, output, part)
			}
		})
	}
}

func TestErrorMessageStructure(t *testing.T) {
	err := WrapWithCode(
		errors.New("connection refused"),
		ErrConnectivity,
		"Can't reach 'eve_ABC' at 10.0.0.5:22",
		"Is the DUT powered on?",
	)

	lines := strings.Split(err.Error(), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "✗"), "first line should start with failure symbol")
	assert.Contains(t, lines[0], "Can't reach")
}

func TestWrap(t *testing.T) {
	t.Run("plain cause defaults to exec", func(t *testing.T) {
		cause := errors.New("boom")
		wrapped := Wrap(cause, "DUT action: reboot")
		assert.Equal(t, ErrExec, wrapped.Code)
		assert.Equal(t, cause, wrapped.Cause)
	})

	t.Run("structured cause keeps its code", func(t *testing.T) {
		cause := New(ErrAuth, "Auth rejected", "")
		wrapped := Wrap(cause, "DUT action: login")
		assert.Equal(t, ErrAuth, wrapped.Code)
	})
}

func TestErrorsIsAndAs(t *testing.T) {
	cause := errors.New("specific error")
	wrapped := WrapWithCode(cause, ErrRegistry, "Registry unreadable", "")

	assert.True(t, errors.Is(wrapped, cause))

	var e *Error
	require.True(t, errors.As(fmt.Errorf("outer: %w", wrapped), &e))
	assert.Equal(t, ErrRegistry, e.Code)
}

func TestIsCode(t *testing.T) {
	err := New(ErrConfig, "Config error", "")

	assert.True(t, IsCode(err, ErrConfig))
	assert.False(t, IsCode(err, ErrAuth))
	assert.False(t, IsCode(errors.New("standard error"), ErrConfig))
	assert.False(t, IsCode(nil, ErrConfig))
	assert.True(t, IsCode(fmt.Errorf("ctx: %w", err), ErrConfig))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "", CodeOf(nil))
	assert.Equal(t, "", CodeOf(errors.New("x")))
	assert.Equal(t, ErrResolution, CodeOf(New(ErrResolution, "x", "")))
}

func TestExitError(t *testing.T) {
	tests := []struct {
		code    int
		wantMsg string
	}{
		{0, "exit code 0"},
		{1, "exit code 1"},
		{137, "exit code 137"},
	}

	for _, tt := range tests {
		t.Run(tt.wantMsg, func(t *testing.T) {
			err := NewExitError(tt.code)
			assert.Equal(t, tt.wantMsg, err.Error())

			code, ok := GetExitCode(fmt.Errorf("wrapped: %w", err))
			assert.True(t, ok)
			assert.Equal(t, tt.code, code)
		})
	}

	_, ok := GetExitCode(New(ErrExec, "x", ""))
	assert.False(t, ok)
	_, ok = GetExitCode(nil)
	assert.False(t, ok)
}
