package main

import (
	"github.com/spf13/cobra"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	LogLevel   string // overrides log.level when set
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "haltwatch",
		Short: "Mirror and manage trading halts",
		Long: `haltwatch keeps a live, categorized copy of trading halts from the halt
service push stream and submits halt mutations with idempotent retries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "configs/haltwatch.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")

	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newSubmitCommand(opts))
	cmd.AddCommand(newTicketCommand(opts))
	cmd.AddCommand(newHaltsCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}
