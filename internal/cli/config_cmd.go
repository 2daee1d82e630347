package cli

import (
	"fmt"

	"github.com/rileyhilliard/dutctl/internal/config"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the dutctl config file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Find(Config())
		if err != nil {
			return err
		}
		if path == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "none (defaults in use; create %s to change them)\n", config.DefaultPath())
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config, environment overrides included",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := config.LoadAndValidate(Config())
		if err != nil {
			return err
		}
		return writeYAML(cmd.OutOrStdout(), cfg)
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	Long: `Write the default config to --config, or to ~/.config/dutctl/config.yaml.
An existing file is left alone unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := Config()
		if path == "" {
			path = config.DefaultPath()
		}
		if path == "" {
			return errors.New(errors.ErrConfig, "Can't locate a home directory for the config file", "Pass --config PATH.")
		}
		return writeDefaultConfig(cmd, path, configInitForce)
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configPathCmd, configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func writeDefaultConfig(cmd *cobra.Command, path string, force bool) error {
	if err := config.WriteDefault(path, force); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
