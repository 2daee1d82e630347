package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Separator used to split batched command output.
const OutputSeparator = "---"

// StatusCommand returns the batched command polled from every target.
// Output sections are separated by "---":
// 0. CHROMEOS_RELEASE_BOARD from /etc/lsb-release
// 1. CHROMEOS_RELEASE_VERSION from /etc/lsb-release
// 2. /proc/uptime
// 3. /proc/loadavg
func StatusCommand() string {
	return `sed -n 's/^CHROMEOS_RELEASE_BOARD=//p' /etc/lsb-release; echo "---"; ` +
		`sed -n 's/^CHROMEOS_RELEASE_VERSION=//p' /etc/lsb-release; echo "---"; ` +
		`cat /proc/uptime; echo "---"; cat /proc/loadavg`
}

// Status is one poll of a DUT.
type Status struct {
	Board   string
	Version string
	Uptime  time.Duration
	Load1   float64
}

// ParseStatus splits StatusCommand output into a Status.
func ParseStatus(out string) (Status, error) {
	sections := strings.Split(out, OutputSeparator)
	if len(sections) < 4 {
		return Status{}, fmt.Errorf("expected 4 sections in status output, got %d", len(sections))
	}

	st := Status{
		Board:   strings.TrimSpace(sections[0]),
		Version: strings.TrimSpace(sections[1]),
	}

	uptime := strings.Fields(sections[2])
	if len(uptime) == 0 {
		return Status{}, fmt.Errorf("empty /proc/uptime")
	}
	secs, err := strconv.ParseFloat(uptime[0], 64)
	if err != nil {
		return Status{}, fmt.Errorf("failed to parse uptime %q: %w", uptime[0], err)
	}
	st.Uptime = time.Duration(secs * float64(time.Second)).Truncate(time.Second)

	load := strings.Fields(sections[3])
	if len(load) == 0 {
		return Status{}, fmt.Errorf("empty /proc/loadavg")
	}
	st.Load1, err = strconv.ParseFloat(load[0], 64)
	if err != nil {
		return Status{}, fmt.Errorf("failed to parse load average %q: %w", load[0], err)
	}

	return st, nil
}

// Summary is the status as a single line.
func (s Status) Summary() string {
	board := s.Board
	if board == "" {
		board = "?"
	}
	version := s.Version
	if version == "" {
		version = "?"
	}
	return fmt.Sprintf("%s %s up %s load %.2f", board, version, FormatUptime(s.Uptime), s.Load1)
}

// FormatUptime renders d as "3d4h", "5h12m" or "7m".
func FormatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
