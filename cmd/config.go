package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/funproject/fun/internal/config"
)

func (r *runner) configCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the fun configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Long: `Write a commented default configuration file.

Without a path the file is written to ` + config.LocalConfigPath + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.LocalConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefaultConfig(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	addPathCmd := &cobra.Command{
		Use:   "add-path DIR",
		Short: "Add a plugin directory to the configuration",
		Long: `Append DIR to plugins.paths in the configuration file in use,
or in ` + config.LocalConfigPath + ` when no file was found. Comments and
other settings in the file are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving %s: %w", args[0], err)
			}
			path := r.configPath()
			if err := config.AddPluginPath(path, dir); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", dir, path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if r.cfgPath != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", r.cfgPath)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(r.viper.AllSettings()); err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			return enc.Close()
		},
	}

	configCmd.AddCommand(initCmd, addPathCmd, showCmd)
	return configCmd
}

// configPath is the file config commands edit: the one loaded, else the
// local default.
func (r *runner) configPath() string {
	if r.cfgPath != "" {
		return r.cfgPath
	}
	return config.LocalConfigPath
}
