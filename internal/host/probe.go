package host

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/errors"
)

// ProbeError represents a failed probe with categorized failure reason.
type ProbeError struct {
	Target string
	Reason ProbeFailReason
	Cause  error
}

// ProbeFailReason categorizes why a probe failed.
type ProbeFailReason int

const (
	ProbeFailUnknown ProbeFailReason = iota
	ProbeFailTimeout
	ProbeFailRefused
	ProbeFailUnreachable
	ProbeFailAuth
	ProbeFailHostKey
	ProbeFailQuery
)

// String returns a human-readable description of the failure reason.
func (r ProbeFailReason) String() string {
	switch r {
	case ProbeFailTimeout:
		return "timed out"
	case ProbeFailRefused:
		return "connection refused"
	case ProbeFailUnreachable:
		return "host unreachable"
	case ProbeFailAuth:
		return "authentication failed"
	case ProbeFailHostKey:
		return "host key verification failed"
	case ProbeFailQuery:
		return "attribute query failed"
	default:
		return "unknown error"
	}
}

func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("probe %s failed: %s (%v)", e.Target, e.Reason, e.Cause)
	}
	return fmt.Sprintf("probe %s failed: %s", e.Target, e.Reason)
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// NewProbeError categorizes err for target. Returns nil for a nil err.
func NewProbeError(target string, err error) *ProbeError {
	if err == nil {
		return nil
	}
	return &ProbeError{Target: target, Reason: Classify(err), Cause: err}
}

// Classify works out why a dial or resolution failed, from the structured
// error code where there is one and the message text otherwise.
func Classify(err error) ProbeFailReason {
	if err == nil {
		return ProbeFailUnknown
	}

	errStr := strings.ToLower(err.Error())

	if stderrors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out") {
		return ProbeFailTimeout
	}

	if strings.Contains(errStr, "connection refused") {
		return ProbeFailRefused
	}

	if strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "host is down") {
		return ProbeFailUnreachable
	}

	if strings.Contains(errStr, "host key") {
		return ProbeFailHostKey
	}

	if errors.IsCode(err, errors.ErrAuth) ||
		strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods") ||
		strings.Contains(errStr, "permission denied") {
		return ProbeFailAuth
	}

	if errors.IsCode(err, errors.ErrResolution) {
		return ProbeFailQuery
	}

	if errors.IsCode(err, errors.ErrConnectivity) {
		return ProbeFailUnreachable
	}

	return ProbeFailUnknown
}
