package main

import (
	"context"
	"fmt"

	"github.com/harunnryd/kura/internal/backend"
	"github.com/harunnryd/kura/internal/config"
	kuraErrors "github.com/harunnryd/kura/internal/errors"
	"github.com/harunnryd/kura/internal/logger"
	"github.com/harunnryd/kura/internal/metrics"
	"github.com/harunnryd/kura/internal/permission"
	"github.com/harunnryd/kura/internal/settings"
	"github.com/harunnryd/kura/internal/store"

	"github.com/spf13/cobra"
)

// app carries the state resolved by the root command for its subcommands.
type app struct {
	settings *settings.Settings
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "kura",
		Short: "Configuration, secrets and tool permissions",
		Long: `kura resolves configuration values and secrets from the environment and
local storage, and remembers allow/deny decisions for tool calls.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load(cmd)
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}
			a.settings = s

			noColor, _ := cmd.Flags().GetBool("no-color")
			logger.SetupWriter(cmd.ErrOrStderr(), s.LogLevel, noColor)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if show, _ := cmd.Flags().GetBool("metrics"); show {
				return metrics.WriteText(cmd.ErrOrStderr())
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("log_level", settings.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("config_dir", "", "config directory (default is $XDG_CONFIG_HOME/kura or ~/.config/kura)")
	flags.String("keyring_service", settings.DefaultKeyringService, "keyring service holding the secrets credential")
	flags.Bool("in-memory", false, "keep config, secrets and permissions in memory (same as "+settings.EnvInMemory+")")
	flags.Bool("disable-keyring", false, "store secrets in secrets.yaml (same as "+settings.EnvDisableKeyring+")")
	flags.Bool("no-color", false, "disable colored log output")
	flags.Bool("metrics", false, "print counters to stderr after the command")

	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newSecretCmd(a))
	rootCmd.AddCommand(newPermissionCmd(a))
	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		reportError(rootCmd, err)
		return 1
	}
	return 0
}

func reportError(cmd *cobra.Command, err error) {
	mapper := kuraErrors.NewDefaultErrorMapper()
	err = mapper.MapError(err)

	category := mapper.Category(err)
	if category == "Unknown" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error (%s): %v\n", category, err)
	if mapper.IsFatal(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Stored values could not be read or written; check the config directory and keyring.")
	}
}

func (a *app) selection() (backend.Selection, error) {
	if a.settings == nil {
		return backend.Selection{}, fmt.Errorf("settings are not loaded")
	}
	return backend.Detect(a.settings)
}

func (a *app) config() (*config.Config, backend.Selection, error) {
	sel, err := a.selection()
	if err != nil {
		return nil, sel, err
	}
	cfg, err := config.FromSelection(sel)
	if err != nil {
		return nil, sel, err
	}
	return cfg, sel, nil
}

// openPermissions opens the permission store while holding the CLI lock.
// Opening prunes expired records and may rewrite the file, so read-only
// commands lock too. The returned func releases the lock.
func (a *app) openPermissions(cmd *cobra.Command) (*permission.Store, func(), error) {
	sel, err := a.selection()
	if err != nil {
		return nil, nil, err
	}
	unlock, err := a.lock(cmd, sel)
	if err != nil {
		return nil, nil, err
	}
	perms, err := permission.Open(sel.Permissions)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return perms, unlock, nil
}

func permissionsPath(sel backend.Selection) string {
	switch st := sel.Permissions.(type) {
	case backend.PermissionDir:
		return st.Path()
	default:
		return backend.InMemoryPath
	}
}

// lock serializes mutating commands sharing the config directory. In-memory
// runs have nothing to guard.
func (a *app) lock(cmd *cobra.Command, sel backend.Selection) (func(), error) {
	if sel.InMemory() {
		return func() {}, nil
	}

	lockCfg, err := store.FileLockConfigFrom(a.settings)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	fl, err := store.NewFileLock(ctx, sel.Dir, lockCfg)
	if err != nil {
		return nil, err
	}
	return fl.Unlock, nil
}
