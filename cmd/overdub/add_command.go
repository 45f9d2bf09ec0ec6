package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"overdub/internal/credits"
	"overdub/internal/jobs"
	"overdub/internal/language"
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".mov":  {},
	".avi":  {},
	".webm": {},
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var languageFlag string

	cmd := &cobra.Command{
		Use:   "add FILE",
		Short: "Queue a media file for dubbing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("source file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}

			// The target language is committed at `start`; validating
			// it here catches typos before transcription runs.
			plannedLanguage := strings.TrimSpace(languageFlag)
			if plannedLanguage != "" {
				normalized, err := language.Normalize(plannedLanguage)
				if err != nil {
					return err
				}
				plannedLanguage = normalized
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *jobs.Store, _ *credits.Ledger) error {
				mediaType := jobs.MediaAudio
				if _, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]; ok {
					mediaType = jobs.MediaVideo
				}
				job := jobs.New(ctx.uid(), path, mediaType, cfg.Dubbing.MaxRetries)
				if err := store.Create(cmd.Context(), job); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued %s as job %s\n", filepath.Base(path), shortID(job.ID))
				if plannedLanguage != "" {
					fmt.Fprintf(out, "Planned target language: %s (confirm with `overdub start %s --language %s`)\n",
						language.DisplayName(plannedLanguage), shortID(job.ID), plannedLanguage)
				}
				fmt.Fprintln(out, "The daemon will transcribe it; run `overdub show` when the transcript is ready.")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Planned target language (validated now, committed at start)")
	return cmd
}
