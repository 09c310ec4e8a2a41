package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rickgao/haltwatch/internal/model"
	"github.com/rickgao/haltwatch/internal/reconcile"
)

func newHaltsCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "halts",
		Short: "Fetch all halts and print them by collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.client.ListHalts(ctx)
			if err != nil {
				return err
			}
			return printSnapshot(cmd.OutOrStdout(), reconcile.Categorize(records))
		},
	}
}

func printSnapshot(w io.Writer, snap model.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tHALT ID\tSYMBOL\tTYPE\tSTATUS\tHALT TIME\tRESUMPTION\tFLAGS")
	for _, name := range model.CollectionNames {
		for _, r := range *snap.Collection(name) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				name, r.HaltID, r.Symbol, r.HaltType, r.Status,
				displayTime(r.HaltTime), displayTime(r.ResumptionTime), flags(r))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts := snap.Counts()
	_, err := fmt.Fprintf(w, "\nactiveReg=%d (non-extended %d) activeSSCB=%d pending=%d lifted=%d\n",
		counts[model.CollectionActiveReg], snap.NonExtendedCount(),
		counts[model.CollectionActiveSSCB], counts[model.CollectionPending], counts[model.CollectionLifted])
	return err
}

func displayTime(ts *model.Timestamp) string {
	if ts == nil {
		return "-"
	}
	return ts.Display()
}

func flags(r model.HaltRecord) string {
	switch {
	case r.ExtendedHalt && r.RemainedHalt:
		return "extended,remained"
	case r.ExtendedHalt:
		return "extended"
	case r.RemainedHalt:
		return "remained"
	}
	return "-"
}
