package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		limit     int
		byContent bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search TEXT",
		Short: "Search indexed transcripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			out := cmd.OutOrStdout()

			if byContent {
				matches, err := store.SearchContent(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(out, matches)
				}
				if len(matches) == 0 {
					fmt.Fprintln(out, "No matches.")
					return nil
				}
				rows := make([][]string, 0, len(matches))
				for _, match := range matches {
					rows = append(rows, []string{
						match.ContentID,
						truncate(match.Title, 50),
						strconv.Itoa(match.MatchCount),
						formatOffset(match.FirstStartMS),
						truncate(match.MediaPath, 50),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Content", "Title", "Hits", "First", "Media"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			}

			matches, err := store.SearchSegments(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, matches)
			}
			if len(matches) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			rows := make([][]string, 0, len(matches))
			for _, match := range matches {
				rows = append(rows, []string{
					match.ContentID,
					formatOffset(match.StartMS),
					truncate(match.Text, 70),
					truncate(match.Title, 40),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Content", "At", "Text", "Title"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum matches (0 uses the default)")
	cmd.Flags().BoolVar(&byContent, "content", false, "Group matches by content item")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func formatOffset(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
