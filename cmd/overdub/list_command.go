package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"overdub/internal/credits"
	"overdub/internal/jobs"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dubbing jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilters(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store, _ *credits.Ledger) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No jobs found.")
					return nil
				}

				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(items))
				for _, job := range items {
					cost := "-"
					if job.Cost > 0 {
						cost = strconv.Itoa(job.Cost)
					}
					rows = append(rows, []string{
						shortID(job.ID),
						job.SourceName(),
						formatStatus(job.Status, colorize),
						fmt.Sprintf("%d%%", job.Progress),
						job.Step,
						formatDuration(job.Duration),
						cost,
						formatTimestamp(job.UpdatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "SOURCE", "STATUS", "PROGRESS", "STEP", "LENGTH", "COST", "UPDATED"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func parseStatusFilters(values []string) ([]jobs.Status, error) {
	statuses := make([]jobs.Status, 0, len(values))
	for _, value := range values {
		status, ok := jobs.ParseStatus(strings.TrimSpace(value))
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
