package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"overdub/internal/credits"
	"overdub/internal/jobs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize daemon and job queue health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store, _ *credits.Ledger) error {
				summary, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				daemonState := "not running"
				pidPath := filepath.Join(cfg.Paths.LogDir, "overdub.pid")
				if _, err := os.Stat(pidPath); err == nil {
					daemonState = "running (pid file present)"
				}
				fmt.Fprintf(out, "Daemon: %s\n", daemonState)
				fmt.Fprintf(out, "Database: %s\n", store.Path())

				rows := [][]string{
					{"Waiting", strconv.Itoa(summary.Waiting)},
					{"Processing", strconv.Itoa(summary.Processing)},
					{"Awaiting review", strconv.Itoa(summary.Paused)},
					{"Retrying", strconv.Itoa(summary.Retrying)},
					{"Failed", strconv.Itoa(summary.Failed)},
					{"Completed", strconv.Itoa(summary.Completed)},
					{"Total", strconv.Itoa(summary.Total)},
				}
				fmt.Fprintln(out, renderTable(
					[]string{"JOBS", "COUNT"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
