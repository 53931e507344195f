package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"alogger/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue health and in-flight jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			snapshot, err := store.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, snapshot)
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Queued", "Downloading", "Transcribing", "Done", "Failed"},
				[][]string{{
					statusCount(snapshot.Counts, queue.StatusQueued),
					statusCount(snapshot.Counts, queue.StatusDownloading),
					statusCount(snapshot.Counts, queue.StatusTranscribing),
					statusCount(snapshot.Counts, queue.StatusDone),
					statusCount(snapshot.Counts, queue.StatusFailed),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
			))

			if len(snapshot.ActiveJobs) > 0 {
				rows := make([][]string, 0, len(snapshot.ActiveJobs))
				for _, job := range snapshot.ActiveJobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						string(job.Status),
						truncate(job.SourceURL, 60),
						formatDuration(job.Elapsed),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "URL", "Elapsed"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
				))
			}

			if snapshot.SampleSize > 0 {
				fmt.Fprintf(out, "Completion over last %d jobs: avg %s, median %s\n",
					snapshot.SampleSize,
					formatDuration(snapshot.AvgDuration),
					formatDuration(snapshot.MedianDuration))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of tables")
	return cmd
}
