package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSecretCmd(a *app) *cobra.Command {
	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets",
		Long:  `Read and write secrets held in the system keyring, or in secrets.yaml when the keyring is disabled.`,
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Resolve a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.config()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0], true)
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), v)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Store a secret",
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

			if err := cfg.SetSecret(args[0], parseArg(args[1], raw)); err != nil {
				return err
			}
			warnShadowed(cmd, args[0])
			return nil
		},
	}
	setCmd.Flags().Bool("string", false, "store the value as a string without JSON parsing")

	deleteCmd := &cobra.Command{
		Use:   "delete [key]",
		Short: "Remove a stored secret",
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
			return cfg.DeleteSecret(args[0])
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored secret",
		Args:  cobra.NoArgs,
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
			return cfg.ClearSecrets()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored secret names",
		Long:  `Print the names of stored secrets. Values are never printed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.config()
			if err != nil {
				return err
			}
			secrets, err := cfg.LoadSecrets()
			if err != nil {
				return err
			}
			if len(secrets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No secrets stored.")
				return nil
			}
			for _, k := range sortedKeys(secrets) {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	secretCmd.AddCommand(getCmd, setCmd, deleteCmd, clearCmd, listCmd)
	return secretCmd
}
