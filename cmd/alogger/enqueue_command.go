package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var priority int

	cmd := &cobra.Command{
		Use:   "enqueue URL [URL...]",
		Short: "Add source URLs to the ingest queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ids, err := store.Enqueue(cmd.Context(), args, priority)
			if err != nil {
				return err
			}
			for i, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued job %d: %s\n", id, args[i])
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Claim priority (higher runs first)")
	return cmd
}
