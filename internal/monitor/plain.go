package monitor

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Plain redraws the whole terminal each cycle: clear, header, one line per
// target. Used when stdout is not a TTY or the dashboard is disabled.
type Plain struct {
	out    *termenv.Output
	header string
	// Clear is false for logs and pipes, where each cycle is appended.
	Clear bool
}

// NewPlain writes to w. Clearing is on when w is a terminal.
func NewPlain(w io.Writer, header string) *Plain {
	isTTY := false
	if f, ok := w.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return &Plain{out: termenv.NewOutput(w), header: header, Clear: isTTY}
}

// Render implements Renderer.
func (p *Plain) Render(rows []Row, at time.Time) error {
	if p.Clear {
		p.out.ClearScreen()
		p.out.MoveCursor(1, 1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", p.out.String(p.header).Bold(), at.Format("2006-01-02 15:04:05"))
	for _, r := range rows {
		marker := stateStyle(r.State).Render(stateSymbol(r.State))
		fmt.Fprintf(&b, "%s %-24s %-28s %5d  %s\n", marker, r.Label, r.Address, r.Port, r.Summary())
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}
