package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/dutctl/internal/monitor"
	"github.com/spf13/cobra"
)

var (
	monitorInterval time.Duration
	monitorBasePort int
	monitorPlain    bool
	monitorCycles   int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor DUT...",
	Short: "Watch the status of DUTs live",
	Long: `Connect to every DUT, forward a local port to each one's SSH port, and
redraw their status (board, version, uptime, load) on an interval.

Local ports are assigned in order from --base-port. A DUT that stops
answering shows its error instead of ending the monitor.

In a terminal the dashboard takes the screen; press r to refresh now and
q to quit. Elsewhere, or with --plain, each cycle is printed as text.

Examples:
  dutctl dut monitor eve_NXAB12 192.168.7.2
  dutctl dut monitor --interval 10s --base-port 5022 eve_NXAB12
  dutctl dut monitor --plain --cycles 1 eve_NXAB12`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeDUTArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return monitorCommand(cmd, args)
	},
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "time between polls (default from monitor.interval, 5s)")
	monitorCmd.Flags().IntVar(&monitorBasePort, "base-port", 0, "first local port to forward (default from monitor.base_port, 4022)")
	monitorCmd.Flags().BoolVar(&monitorPlain, "plain", false, "print text instead of the dashboard")
	monitorCmd.Flags().IntVar(&monitorCycles, "cycles", 0, "stop after this many polls (0 runs until interrupted)")
	dutCmd.AddCommand(monitorCmd)
}

func monitorCommand(cmd *cobra.Command, raws []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	targets, err := a.targets(raws)
	if err != nil {
		return err
	}

	interval := monitorInterval
	if interval <= 0 {
		interval = a.cfg.Monitor.Interval
	}
	basePort := monitorBasePort
	if basePort == 0 {
		basePort = a.cfg.Monitor.BasePort
	}

	ctx := cmd.Context()
	m, err := monitor.New(ctx, a.dialer, targets, basePort, a.log)
	if err != nil {
		return err
	}
	defer m.Close()
	m.MaxCycles = monitorCycles

	labels := make([]string, len(targets))
	for i, t := range targets {
		labels[i] = t.Label()
	}
	header := fmt.Sprintf("dutctl monitor: %s", strings.Join(labels, ", "))

	if monitorPlain || !isTerminal(a.stdout) {
		return m.Run(ctx, interval, monitor.NewPlain(a.stdout, header))
	}
	return monitor.RunDashboard(ctx, m, interval, header)
}
