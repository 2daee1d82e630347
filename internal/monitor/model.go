package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/dutctl/internal/ui"
)

// Columns shown by both renderers.
var Columns = []ui.TableColumn{
	{Title: "", Width: 2},
	{Title: "DUT", Width: 24},
	{Title: "ADDRESS", Width: 28},
	{Title: "PORT", Width: 6},
	{Title: "STATUS", Width: 60},
}

// Cells renders the row for a table.
func (r Row) Cells() []string {
	return []string{
		stateSymbol(r.State),
		r.Label,
		r.Address,
		strconv.Itoa(r.Port),
		r.Summary(),
	}
}

// Model is the Bubble Tea model for the monitoring dashboard.
type Model struct {
	header     string
	interval   time.Duration
	table      table.Model
	rows       []Row
	lastUpdate time.Time
	refresh    chan struct{}
	width      int
	quitting   bool
}

// rowsMsg carries one completed cycle.
type rowsMsg struct {
	rows []Row
	at   time.Time
}

// NewModel creates a dashboard model with an empty table.
func NewModel(header string, interval time.Duration) Model {
	return Model{
		header:   header,
		interval: interval,
		table:    ui.NewTable(Columns, nil),
		refresh:  make(chan struct{}, 1),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case rowsMsg:
		m.rows = msg.rows
		m.lastUpdate = msg.at
		tableRows := make([]table.Row, len(msg.rows))
		for i, r := range msg.rows {
			tableRows[i] = table.Row(r.Cells())
		}
		m.table.SetRows(tableRows)
		// The header and its bottom border count against the height.
		m.table.SetHeight(len(tableRows) + 2)
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	updated := "waiting for first poll"
	if !m.lastUpdate.IsZero() {
		updated = "updated " + m.lastUpdate.Format("15:04:05")
	}
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s  %s", m.header, updated)))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")
	b.WriteString(FooterStyle.Render(fmt.Sprintf("every %s  •  r refresh  •  q quit", m.interval)))
	return b.String()
}

// Rows returns the rows from the last cycle.
func (m Model) Rows() []Row {
	return m.rows
}
