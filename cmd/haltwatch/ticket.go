package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/haltwatch/internal/api"
)

func newTicketCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ticket",
		Short: "Request a stream ticket and print the stream URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ticket, err := a.client.StreamTicket(ctx)
			if err != nil {
				return err
			}
			u, err := api.StreamURL(a.cfg.Stream.URL, ticket)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
}
