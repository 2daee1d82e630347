package exec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/errors"
)

// Output runs name with args on this machine, without a shell, and returns
// its stdout. A non-zero exit is an ErrExec error carrying stderr.
func Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	command := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	runErr := command.Run()
	if runErr == nil {
		return stdout.Bytes(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	line := strings.TrimSpace(strings.Join(append([]string{name}, args...), " "))
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return stdout.Bytes(), errors.New(errors.ErrExec,
			fmt.Sprintf("'%s' exited %d", line, exitErr.ExitCode()),
			strings.TrimSpace(stderr.String()))
	}
	return nil, errors.WrapWithCode(runErr, errors.ErrExec,
		fmt.Sprintf("Couldn't run '%s'", line),
		"Make sure it is installed and on PATH.")
}
