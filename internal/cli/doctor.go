package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/dutctl/internal/config"
	"github.com/rileyhilliard/dutctl/internal/doctor"
	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/internal/registry"
	"github.com/rileyhilliard/dutctl/internal/ui"
	"github.com/spf13/cobra"
)

type doctorOptions struct {
	Fix     bool
	Offline bool
	Format  string
}

var doctorOpts doctorOptions

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the config, SSH key, registry and registered DUTs",
	Long: `Run health checks and report what needs fixing.

Every registered DUT is resolved at its cached address unless --offline
is given. Exits 1 when any check fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd, doctorOpts)
	},
}

func init() {
	f := doctorCmd.Flags()
	f.BoolVar(&doctorOpts.Fix, "fix", false, "attempt automatic fixes where possible")
	f.BoolVar(&doctorOpts.Offline, "offline", false, "skip contacting registered DUTs")
	f.StringVar(&doctorOpts.Format, "format", FormatTable, "output format: table or json")
	rootCmd.AddCommand(doctorCmd)
}

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

func doctorCommand(cmd *cobra.Command, opts doctorOptions) error {
	if err := checkFormat(opts.Format, FormatTable, FormatJSON); err != nil {
		return err
	}
	ctx := cmd.Context()
	log := logger.Default()

	// A broken config is reported by the checks; the rest runs on defaults.
	cfg, _, err := config.LoadAndValidate(Config())
	if err != nil {
		cfg = config.DefaultConfig()
		cfg.SSH.IdentityFile = config.ExpandTilde(cfg.SSH.IdentityFile)
		cfg.Registry.Path = config.ExpandTilde(cfg.Registry.Path)
	}

	local := []doctor.Check{
		&doctor.ConfigFileCheck{ConfigPath: Config()},
		&doctor.ConfigSchemaCheck{ConfigPath: Config()},
	}
	local = append(local, doctor.NewSSHChecks(cfg.SSH.IdentityFile)...)
	local = append(local, &doctor.RegistryCheck{Path: cfg.Registry.Path})

	results := doctor.RunAll(ctx, local)
	if opts.Fix {
		fixed, err := doctor.FixAll(local, results)
		if err != nil {
			log.Warn("fix failed: %v", err)
		}
		if len(fixed) > 0 {
			log.Info("fixed %s", strings.Join(fixed, ", "))
			results = doctor.RunAll(ctx, local)
		}
	}

	if !opts.Offline {
		entries := registeredEntries(cfg.Registry.Path)
		if len(entries) > 0 {
			resolver := dut.NewResolver(newDialer(cfg.SSH, log), log)
			fleet := doctor.NewDUTChecks(entries, resolver, cfg.Discovery.ProbeTimeout)
			results = append(results, doctor.RunAllParallel(ctx, fleet)...)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Format == FormatJSON {
		if err := writeStructured(out, FormatJSON, doctorOutput(results)); err != nil {
			return err
		}
	} else {
		renderDoctor(out, results, opts.Fix)
	}

	if doctor.HasFailures(results) {
		return errors.NewExitError(1)
	}
	return nil
}

// registeredEntries lists the registry without creating it.
func registeredEntries(path string) []registry.Entry {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	store, err := registry.Open(path)
	if err != nil {
		return nil
	}
	defer store.Close()
	entries, err := store.Entries()
	if err != nil {
		return nil
	}
	return entries
}

func doctorOutput(results []doctor.CheckResult) DoctorOutput {
	order, grouped := doctor.GroupByCategory(results)
	output := DoctorOutput{Categories: make([]CategoryOutput, 0, len(order))}
	for _, cat := range order {
		output.Categories = append(output.Categories, CategoryOutput{Name: cat, Results: grouped[cat]})
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Fixable:  doctor.FixableCount(results),
		AllClear: !doctor.HasIssues(results),
	}
	return output
}

func renderDoctor(w io.Writer, results []doctor.CheckResult, fixed bool) {
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(w, headerStyle.Render("dutctl diagnostic report"))
	fmt.Fprintln(w)

	order, grouped := doctor.GroupByCategory(results)
	for _, cat := range order {
		fmt.Fprintln(w, headerStyle.Render(cat))
		for _, r := range grouped[cat] {
			renderCheckResult(w, r)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("━", 60))
	if !doctor.HasIssues(results) {
		fmt.Fprintf(w, "%s %s\n", ui.Success(ui.SymbolSuccess), doctor.Summary(results))
		return
	}
	fmt.Fprintf(w, "%s %s\n", ui.Failure(ui.SymbolFail), doctor.Summary(results))
	if doctor.FixableCount(results) > 0 && !fixed {
		fmt.Fprintf(w, "\n  Run with %s to attempt automatic fixes where possible.\n", ui.Muted("--fix"))
	}
}

func renderCheckResult(w io.Writer, r doctor.CheckResult) {
	var symbol string
	switch r.Status {
	case doctor.StatusPass:
		symbol = ui.Success(ui.SymbolComplete)
	case doctor.StatusWarn:
		symbol = ui.Warning(ui.SymbolComplete)
	default:
		symbol = ui.Failure(ui.SymbolFail)
	}

	fmt.Fprintf(w, "  %s %s\n", symbol, r.Message)
	if r.Suggestion != "" && r.Status != doctor.StatusPass {
		for _, line := range strings.Split(r.Suggestion, "\n") {
			fmt.Fprintf(w, "    %s\n", ui.Muted(line))
		}
	}
}
