package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"overdub/internal/credits"
	"overdub/internal/jobs"
	"overdub/internal/pipeline"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry ID",
		Short: "Restart a failed job from the stage where it broke",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store, _ *credits.Ledger) error {
				job, err := findJob(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				restarted, err := store.RestartFailed(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s restarted at %s\n", shortID(restarted.ID), restarted.Status)
				return nil
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Show where a job left off and what to do next",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store, _ *credits.Ledger) error {
				job, err := findJob(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch pipeline.ResumeTarget(job.Status) {
				case pipeline.ViewFailure:
					fmt.Fprintf(out, "Job %s failed: %s\n", shortID(job.ID), job.LastError)
					fmt.Fprintf(out, "Retry with `overdub retry %s` or remove it with `overdub delete %s`.\n",
						shortID(job.ID), shortID(job.ID))
				case pipeline.ViewOutput:
					printJobDetails(out, job)
				default:
					printJobDetails(out, job)
					if job.Status == jobs.StatusTranscribingDone {
						printScriptPreview(out, job)
					}
				}
				return nil
			})
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a job, its staged media, and any credit hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store, ledger *credits.Ledger) error {
				job, err := findJob(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				if err := ledger.Release(cmd.Context(), job.ID); err != nil {
					return fmt.Errorf("release credit hold: %w", err)
				}
				if _, err := store.Remove(cmd.Context(), job.ID); err != nil {
					return err
				}
				if cfg.Paths.StagingDir != "" {
					if err := os.RemoveAll(filepath.Join(cfg.Paths.StagingDir, job.ID)); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warn: staged media not removed: %v\n", err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s deleted\n", shortID(job.ID))
				return nil
			})
		},
	}
}
