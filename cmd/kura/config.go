package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration values",
		Long:  `Read and write configuration values. An environment variable named after the uppercased key overrides the stored value.`,
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Resolve a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.config()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0], false)
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), v)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Store a configuration value",
		Long:  `Store a configuration value. The value is read as JSON when it parses, otherwise as a plain string; --string forces a string.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetBool("string")
			cfg, sel, err := a.config()
			if err != nil {
				return err
			}
			unlock, err := a.lock(cmd, sel)
			if err != nil {
				return err
			}
			defer unlock()

			if err := cfg.SetParam(args[0], parseArg(args[1], raw)); err != nil {
				return err
			}
			warnShadowed(cmd, args[0])
			return nil
		},
	}
	setCmd.Flags().Bool("string", false, "store the value as a string without JSON parsing")

	deleteCmd := &cobra.Command{
		Use:   "delete [key]",
		Short: "Remove a stored configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sel, err := a.config()
			if err != nil {
				return err
			}
			unlock, err := a.lock(cmd, sel)
			if err != nil {
				return err
			}
			defer unlock()
			return cfg.Delete(args[0])
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Dump stored configuration values",
		Long:  `Print every value persisted in the config store as YAML. Environment overrides are not applied.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.config()
			if err != nil {
				return err
			}
			values, err := cfg.LoadValues()
			if err != nil {
				return err
			}
			if len(values) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No configuration values stored.")
				return nil
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(values); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show where values are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sel, err := a.config()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:      %s%s\n", cfg.Path(), missingMark(cfg.Exists()))
			fmt.Fprintf(out, "secrets:     %s%s\n", cfg.SecretsPath(), missingMark(cfg.SecretsExist()))
			fmt.Fprintf(out, "permissions: %s\n", permissionsPath(sel))
			return nil
		},
	}

	configCmd.AddCommand(getCmd, setCmd, deleteCmd, listCmd, pathCmd)
	return configCmd
}

func missingMark(exists bool) string {
	if exists {
		return ""
	}
	return " (not created yet)"
}
