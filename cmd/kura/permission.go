package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/harunnryd/kura/internal/permission"
	"github.com/harunnryd/kura/internal/settings"

	"github.com/spf13/cobra"
)

func newPermissionCmd(a *app) *cobra.Command {
	permissionCmd := &cobra.Command{
		Use:   "permission",
		Short: "Inspect and record tool permissions",
		Long:  `Check, record and prune allow/deny decisions for tool calls. A decision applies to one tool invoked with one exact set of arguments.`,
	}

	checkCmd := &cobra.Command{
		Use:   "check [tool] [arguments-json]",
		Short: "Look up the decision for a tool call",
		Long:  `Print "allowed", "denied" or "unknown" for the tool call. Arguments default to {}.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			call, err := toolCallFromArgs(args)
			if err != nil {
				return err
			}
			perms, unlock, err := a.openPermissions(cmd)
			if err != nil {
				return err
			}
			defer unlock()

			allowed, ok := perms.Check(call)
			switch {
			case !ok:
				fmt.Fprintln(cmd.OutOrStdout(), "unknown")
			case allowed:
				fmt.Fprintln(cmd.OutOrStdout(), "allowed")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "denied")
			}
			return nil
		},
	}

	recordCmd := &cobra.Command{
		Use:   "record [tool] [arguments-json]",
		Short: "Record a decision for a tool call",
		Long:  `Record an allow (--allow) or deny (--deny) decision. --ttl limits how long it applies; 0 never expires.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			allow, _ := cmd.Flags().GetBool("allow")
			deny, _ := cmd.Flags().GetBool("deny")
			if allow == deny {
				return fmt.Errorf("exactly one of --allow or --deny is required")
			}

			ttlFlag, _ := cmd.Flags().GetString("ttl")
			ttl, err := settings.DurationOrDefault(ttlFlag, a.settings.PermissionTTL)
			if err != nil {
				return fmt.Errorf("invalid --ttl: %w", err)
			}

			call, err := toolCallFromArgs(args)
			if err != nil {
				return err
			}
			perms, unlock, err := a.openPermissions(cmd)
			if err != nil {
				return err
			}
			defer unlock()
			slog.Debug("Recording permission", "call_id", call.ID, "tool", call.Name, "allow", allow, "ttl", ttl)
			return perms.Record(call, allow, ttl)
		},
	}
	recordCmd.Flags().Bool("allow", false, "allow the tool call")
	recordCmd.Flags().Bool("deny", false, "deny the tool call")
	recordCmd.Flags().String("ttl", "", "how long the decision applies, e.g. 30m or 3600 (default from permission_ttl)")

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the store already prunes.
			perms, unlock, err := a.openPermissions(cmd)
			if err != nil {
				return err
			}
			defer unlock()
			if err := perms.CleanupExpired(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d tool call(s) with active decisions\n", perms.Len())
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list [tool]",
		Short: "List recorded decisions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolName := ""
			if len(args) == 1 {
				toolName = args[0]
			}
			perms, unlock, err := a.openPermissions(cmd)
			if err != nil {
				return err
			}
			defer unlock()

			records := perms.Records(toolName)
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No permissions recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TOOL\tDECISION\tRECORDED\tEXPIRES\tCONTEXT")
			for _, r := range records {
				decision := "deny"
				if r.Allowed {
					decision = "allow"
				}
				expires := "never"
				if r.Expiry != nil {
					expires = formatUnix(*r.Expiry)
				}
				desc := r.ReadableContext
				if desc == "" {
					desc = r.ContextHash[:min(12, len(r.ContextHash))]
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ToolName, decision, formatUnix(r.Timestamp), expires, desc)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d decision(s)\n", len(records))
			return nil
		},
	}

	permissionCmd.AddCommand(checkCmd, recordCmd, cleanupCmd, listCmd)
	return permissionCmd
}

// toolCallFromArgs builds a ToolCall from [tool] [arguments]. Arguments that
// are not JSON are taken as a JSON string.
func toolCallFromArgs(args []string) (permission.ToolCall, error) {
	if len(args) == 1 {
		return permission.NewToolCall(args[0], map[string]any{})
	}
	return permission.NewToolCall(args[0], parseArg(args[1], false))
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).Format("2006-01-02 15:04:05")
}
