package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"alogger/internal/config"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a sample config and initialize the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			samplePath, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(samplePath); errors.Is(err, os.ErrNotExist) {
				if err := config.CreateSample(samplePath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", samplePath)
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Database ready at %s\n", store.Path())
			return nil
		},
	}
}
