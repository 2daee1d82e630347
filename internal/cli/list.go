package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/fleet"
	"github.com/rileyhilliard/dutctl/internal/registry"
	"github.com/rileyhilliard/dutctl/internal/ui"
	"github.com/rileyhilliard/dutctl/internal/util"
	"github.com/spf13/cobra"
)

// pickInteractively is --remove's value when the flag is given bare.
const pickInteractively = "?"

type listOptions struct {
	IDs    bool
	Add    string
	Remove string
	Clear  bool
	Yes    bool
	Status bool
	Update bool
	Format string
}

var listOpts listOptions

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show and edit the DUT registry",
	Long: `Show the registered DUTs, or change the registry.

With no flags, prints every entry. The other modes are exclusive:
  --ids            print registered ids only, one per line
  --add ADDR       identify the DUT at ADDR and register it
  --remove [ID]    unregister ID; pick from a list when ID is omitted
  --clear          unregister everything
  --status         check every entry is still where the registry says
  --update         like --status, then drop entries whose address now
                   answers as a different DUT

Examples:
  dutctl dut list
  dutctl dut list --add 192.168.7.2
  dutctl dut list --status --format json
  dutctl dut list --clear --yes`,
	Args: func(cmd *cobra.Command, args []string) error {
		// A bare --remove swallows no value, so "--remove ID" leaves ID here.
		if listOpts.Remove == pickInteractively {
			return cobra.MaximumNArgs(1)(cmd, args)
		}
		return cobra.NoArgs(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		listOpts.Remove = strings.TrimSpace(listOpts.Remove)
		if cmd.Flags().Changed("remove") && listOpts.Remove == "" {
			listOpts.Remove = pickInteractively
		}
		if listOpts.Remove == pickInteractively && len(args) == 1 {
			listOpts.Remove = args[0]
		}
		return listCommand(cmd, listOpts)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listOpts.IDs, "ids", false, "print registered ids only")
	listCmd.Flags().StringVar(&listOpts.Add, "add", "", "register the DUT at this address")
	listCmd.Flags().StringVar(&listOpts.Remove, "remove", "", "unregister this id")
	listCmd.Flags().Lookup("remove").NoOptDefVal = pickInteractively
	listCmd.Flags().BoolVar(&listOpts.Clear, "clear", false, "unregister every DUT")
	listCmd.Flags().BoolVarP(&listOpts.Yes, "yes", "y", false, "don't ask before --clear")
	listCmd.Flags().BoolVar(&listOpts.Status, "status", false, "check every entry")
	listCmd.Flags().BoolVar(&listOpts.Update, "update", false, "check every entry and drop reused addresses")
	listCmd.Flags().StringVar(&listOpts.Format, "format", FormatTable, "output format: table, json or yaml")
	listCmd.MarkFlagsMutuallyExclusive("ids", "add", "remove", "clear", "status", "update")
	dutCmd.AddCommand(listCmd)
}

func listCommand(cmd *cobra.Command, opts listOptions) error {
	if err := checkFormat(opts.Format, FormatTable, FormatJSON, FormatYAML); err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	store, err := a.openRegistry()
	if err != nil {
		return err
	}
	defer store.Close()

	mgr := &fleet.Manager{
		Store:       store,
		Resolver:    a.resolver(),
		Timeout:     a.cfg.Discovery.ProbeTimeout,
		MaxParallel: a.cfg.Discovery.MaxParallel,
		Log:         a.log,
	}
	ctx := cmd.Context()

	switch {
	case opts.IDs:
		return listIDs(a.stdout, store)
	case opts.Add != "":
		return addDUT(ctx, a, mgr, opts.Add)
	case opts.Remove != "":
		return removeDUT(a, store, opts.Remove)
	case opts.Clear:
		return clearRegistry(a, store, opts.Yes)
	case opts.Status:
		return reconcile(ctx, a, store, mgr, fleet.ModeStatus, opts.Format)
	case opts.Update:
		return reconcile(ctx, a, store, mgr, fleet.ModeUpdate, opts.Format)
	default:
		return listEntries(a.stdout, store, opts.Format)
	}
}

func listIDs(w io.Writer, store *registry.Store) error {
	ids, err := store.IDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	return nil
}

func listEntries(w io.Writer, store *registry.Store, format string) error {
	entries, err := store.Entries()
	if err != nil {
		return err
	}
	if format != FormatTable {
		if entries == nil {
			entries = []registry.Entry{}
		}
		return writeStructured(w, format, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No DUTs registered. Add one with 'dutctl dut list --add <address>' or run 'dutctl dut discover'.")
		return nil
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.ID, e.Descriptor.Address(), e.Descriptor.IdentityFile, e.UpdatedAt.Local().Format(time.DateTime)}
	}
	fmt.Fprintln(w, ui.RenderTable([]ui.TableColumn{
		{Title: "ID", Width: 32},
		{Title: "ADDRESS"},
		{Title: "IDENTITY"},
		{Title: "UPDATED"},
	}, rows))
	return nil
}

func addDUT(ctx context.Context, a *app, mgr *fleet.Manager, raw string) error {
	d, err := dut.ParseDescriptor(raw, a.defaults())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "Checking DutInfo of %s...\n", d.Address())
	id, err := mgr.Add(ctx, d)
	if err != nil {
		return err
	}
	desc, err := json.Marshal(d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Added: %s %s\n", id, desc)
	return nil
}

func removeDUT(a *app, store *registry.Store, id string) error {
	if id == pickInteractively {
		picked, err := pickRegistered(store)
		if err != nil {
			return err
		}
		id = picked
	}

	removed, err := store.Remove(id)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(a.stderr, "%s wasn't registered, nothing to remove\n", id)
		return nil
	}
	fmt.Fprintf(a.stdout, "Removed: %s\n", id)
	return nil
}

// pickRegistered asks which registered DUT to act on.
func pickRegistered(store *registry.Store) (string, error) {
	ids, err := store.IDs()
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", errors.New(errors.ErrRegistry, "No DUTs registered", "")
	}
	if !interactive() {
		return "", errors.New(errors.ErrConfig,
			"--remove needs an id when not run from a terminal",
			"Registered: "+strings.Join(ids, ", "))
	}
	return selectDUT("Remove which DUT?", ids)
}

func clearRegistry(a *app, store *registry.Store, yes bool) error {
	if !yes {
		if !interactive() {
			return errors.New(errors.ErrConfig,
				"Refusing to clear the registry without confirmation",
				"Pass --yes to clear it non-interactively.")
		}
		proceed, err := confirm(fmt.Sprintf("Remove every DUT from %s?", store.Path()))
		if err != nil {
			return err
		}
		if !proceed {
			return nil
		}
	}
	n, err := store.Clear()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Cleared %d %s\n", n, util.Pluralize(n, "DUT", "DUTs"))
	return nil
}

func reconcile(ctx context.Context, a *app, store *registry.Store, mgr *fleet.Manager, mode fleet.Mode, format string) error {
	ids, err := store.IDs()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "Checking status of %d %s. It will take a minute...\n", len(ids), util.Pluralize(len(ids), "DUT", "DUTs"))

	reports, err := mgr.Reconcile(ctx, mode)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if removed := fleet.Removed(reports); len(removed) > 0 {
			fmt.Fprintf(a.stderr, "Stopped early. Already removed: %s\n", strings.Join(removed, ", "))
		}
		return err
	}

	if format != FormatTable {
		if reports == nil {
			reports = []fleet.Report{}
		}
		return writeStructured(a.stdout, format, reports)
	}

	rows := make([][]string, len(reports))
	for i, r := range reports {
		rows[i] = []string{r.ID, r.Descriptor.Address(), r.Status.String(), statusNote(r)}
	}
	fmt.Fprintln(a.stdout, ui.RenderTable([]ui.TableColumn{
		{Title: "ID", Width: 32},
		{Title: "ADDRESS"},
		{Title: "STATUS"},
		{Title: "NOTE"},
	}, rows))

	if mode == fleet.ModeUpdate {
		fmt.Fprintf(a.stdout, "\nFollowing DUTs are removed: %s\n", util.JoinOrNone(fleet.Removed(reports)))
	}
	return nil
}

func statusNote(r fleet.Report) string {
	switch r.Status {
	case fleet.Offline:
		return r.Reason
	case fleet.AddressReused:
		return "now " + r.Found
	default:
		return ""
	}
}
