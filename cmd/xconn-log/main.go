// Command xconn-log views and analyzes connection attempt event logs.
//
// Event logs are written by xconn when event_log is set in its settings
// file (or XCONN_EVENT_LOG in the environment).
//
// Usage:
//
//	xconn-log <command> [flags] <file.xlog>
//
// Commands:
//
//	view     View events in human-readable format
//	export   Export events to JSON lines or CSV
//	stats    Show per-account attempt statistics
//
// Examples:
//
//	# View all attempts of one account
//	xconn-log view --account alice@example.org attempts.xlog
//
//	# View faults from the last hour
//	xconn-log view --category error --since 1h attempts.xlog
//
//	# Export one attempt to JSONL
//	xconn-log export --attempt 3f2a9c1e attempts.xlog
//
//	# Show statistics
//	xconn-log stats attempts.xlog
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xconn/xconn-go/cmd/xconn-log/commands"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags commands.FilterFlags

	root := &cobra.Command{
		Use:           "xconn-log",
		Short:         "xconn-log views and analyzes connection attempt event logs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.Account, "account", "", "Filter by account (bare address)")
	root.PersistentFlags().StringVar(&flags.AttemptID, "attempt", "", "Filter by attempt ID prefix")
	root.PersistentFlags().StringVar(&flags.Category, "category", "", "Filter by category (state, config, error, outcome)")
	root.PersistentFlags().StringVar(&flags.Since, "since", "", "Only events at or after this time (RFC 3339 or duration ago, e.g. 1h)")
	root.PersistentFlags().StringVar(&flags.Until, "until", "", "Only events before this time (RFC 3339 or duration ago)")

	root.AddCommand(&cobra.Command{
		Use:     "view <file.xlog>",
		Short:   "View events in human-readable format",
		Example: "xconn-log view --account alice@example.org attempts.xlog",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.Filter()
			if err != nil {
				return err
			}
			return commands.RunView(args[0], filter, cmd.OutOrStdout())
		},
	})

	var format, output string
	export := &cobra.Command{
		Use:     "export <file.xlog>",
		Short:   "Export events to JSON lines or CSV",
		Example: "xconn-log export --format csv -o attempts.csv attempts.xlog",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.Filter()
			if err != nil {
				return err
			}
			return commands.RunExport(args[0], filter, format, output, cmd.OutOrStdout())
		},
	}
	export.Flags().StringVar(&format, "format", "jsonl", "Output format (jsonl, csv)")
	export.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	root.AddCommand(export)

	root.AddCommand(&cobra.Command{
		Use:   "stats <file.xlog>",
		Short: "Show per-account attempt statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.Filter()
			if err != nil {
				return err
			}
			return commands.RunStats(args[0], filter, cmd.OutOrStdout())
		},
	})

	return root
}
