package cli

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/dutctl/internal/discovery"
	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/spf13/cobra"
)

type discoverOptions struct {
	Interface  string
	Remote     string
	TargetList string
	Format     string
	Ping       bool
	NoSave     bool
}

var discoverOpts discoverOptions

var discoverCmd = &cobra.Command{
	Use:   "discover [extra-attribute...]",
	Short: "Find DUTs on the network",
	Long: `Probe every address on an interface's subnet (plus IPv6 link-local
neighbours) and print the DUTs that answer, as a JSON array.

Candidates come from one of:
  the local subnet      default; --interface picks the interface
  --target-list FILE    one address per line, '-' for stdin
  --remote HOST         run the scan on HOST, for networks only it can see

Every DUT found is recorded in the registry unless --no-save is given.
Extra attribute names are resolved on top of the canonical set.

Examples:
  dutctl dut discover
  dutctl dut discover --interface eth1 board uptime
  dutctl dut discover --remote labstation --format yaml
  cat addrs.txt | dutctl dut discover --target-list -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return discoverCommand(cmd, discoverOpts, args)
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverOpts.Interface, "interface", "", "network interface to scan (default: the default route's)")
	discoverCmd.Flags().StringVar(&discoverOpts.Remote, "remote", "", "run the scan on this machine instead")
	discoverCmd.Flags().StringVar(&discoverOpts.TargetList, "target-list", "", "file of addresses to probe, '-' for stdin")
	discoverCmd.Flags().StringVar(&discoverOpts.Format, "format", FormatJSON, "output format: json or yaml")
	discoverCmd.Flags().BoolVar(&discoverOpts.Ping, "ping", false, "skip IPv4 addresses that don't answer ICMP")
	discoverCmd.Flags().BoolVar(&discoverOpts.NoSave, "no-save", false, "don't record found DUTs in the registry")
	discoverCmd.MarkFlagsMutuallyExclusive("remote", "target-list")
	dutCmd.AddCommand(discoverCmd)
}

func discoverCommand(cmd *cobra.Command, opts discoverOptions, extra []string) error {
	if err := checkFormat(opts.Format, FormatJSON, FormatYAML); err != nil {
		return err
	}
	if err := dut.ValidateAttributes(extra); err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	iface := opts.Interface
	if iface == "" {
		iface = a.cfg.Discovery.Interface
	}

	if opts.Remote != "" {
		return discoverRemote(ctx, a, opts.Remote, iface, extra)
	}

	candidates, err := discoverCandidates(ctx, a, opts, iface)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "Found %d candidates. Checking...\n", len(candidates))

	engine := discovery.NewEngine(a.resolver(), discovery.Options{
		ProbeTimeout:    a.cfg.Discovery.ProbeTimeout,
		MaxParallel:     a.cfg.Discovery.MaxParallel,
		DialRate:        a.cfg.Discovery.DialRate,
		ExtraAttributes: extra,
		Defaults:        a.defaults(),
	}, a.log)
	report, err := engine.Probe(ctx, candidates)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "Discovery completed with %d DUTs\n", report.Resolved)

	if !opts.NoSave && len(report.Results) > 0 {
		if err := saveDiscovered(a, report); err != nil {
			return err
		}
	}

	attrs := report.Attributes()
	if attrs == nil {
		attrs = []dut.Attributes{}
	}
	return writeStructured(a.stdout, opts.Format, attrs)
}

func discoverRemote(ctx context.Context, a *app, remote, iface string, extra []string) error {
	t, err := a.target(remote)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "Using remote machine: %s\n", t.Label())
	d := &discovery.Delegate{
		Dialer: a.dialer,
		Stdout: a.stdout,
		Stderr: a.stderr,
	}
	return d.Run(ctx, t.Descriptor, iface, extra)
}

func discoverCandidates(ctx context.Context, a *app, opts discoverOptions, iface string) ([]string, error) {
	if opts.TargetList != "" {
		return discovery.OpenList(opts.TargetList, a.stdin)
	}

	scanner := discovery.NewScanner(a.cfg.Discovery.MaxSubnetHosts, a.log)
	candidates, picked, err := scanner.Candidates(ctx, iface)
	if err != nil {
		return nil, err
	}
	a.log.Info("scanning %s (%s)", picked.Name, picked.Addr)

	if opts.Ping || a.cfg.Discovery.PingSweep {
		sweeper := discovery.NewSweeper(a.cfg.SSH.ConnectTimeout, a.cfg.Discovery.MaxParallel, a.log)
		candidates = sweeper.Filter(ctx, candidates)
	}
	return candidates, nil
}

// saveDiscovered records every found DUT, replacing stale addresses.
func saveDiscovered(a *app, report *discovery.Report) error {
	store, err := a.openRegistry()
	if err != nil {
		return err
	}
	defer store.Close()

	for _, r := range report.Results {
		id := r.Attributes.ID()
		if id == "" {
			continue
		}
		if err := store.Set(id, r.Descriptor); err != nil {
			return errors.Wrap(err, fmt.Sprintf("Couldn't record %s in the registry", id))
		}
	}
	a.log.Debug("recorded %d DUTs in %s", len(report.Results), store.Path())
	return nil
}
