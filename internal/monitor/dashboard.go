package monitor

import (
	"context"
	stderrors "errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/dutctl/internal/errors"
)

// Dashboard renders cycles into a running Bubble Tea program.
type Dashboard struct {
	program *tea.Program
	refresh chan struct{}
}

// Render implements Renderer.
func (d *Dashboard) Render(rows []Row, at time.Time) error {
	d.program.Send(rowsMsg{rows: rows, at: at})
	return nil
}

// Refresh implements Refresher.
func (d *Dashboard) Refresh() <-chan struct{} {
	return d.refresh
}

// RunDashboard shows the dashboard in the alternate screen until the
// operator quits or ctx is done. Quitting is a normal exit.
func RunDashboard(ctx context.Context, m *Monitor, interval time.Duration, header string, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(header, interval)
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	d := &Dashboard{
		program: tea.NewProgram(model, opts...),
		refresh: model.refresh,
	}

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- m.Run(ctx, interval, d)
		// Take the screen down when the loop ends on its own.
		d.program.Quit()
	}()

	_, err := d.program.Run()
	cancel()
	runErr := <-loopErr

	if err != nil && !stderrors.Is(err, tea.ErrProgramKilled) && !stderrors.Is(err, context.Canceled) {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Monitor dashboard failed",
			"Try again without a TTY to use the plain renderer.")
	}
	if runErr != nil && !stderrors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
