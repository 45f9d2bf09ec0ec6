package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"overdub/internal/credits"
	"overdub/internal/jobs"
	"overdub/internal/language"
	"overdub/internal/pipeline"
	"overdub/internal/selection"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var showScript bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a job's details and transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store, _ *credits.Ledger) error {
				job, err := findJob(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printJobDetails(out, job)
				if showScript || job.Status == jobs.StatusTranscribingDone {
					printScriptPreview(out, job)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showScript, "script", false, "Always render the transcript script preview")
	return cmd
}

func printJobDetails(out io.Writer, job *jobs.Job) {
	colorize := shouldColorize(out)

	fmt.Fprintf(out, "Job %s\n", job.ID)
	rows := [][]string{
		{"Source", job.SourceName()},
		{"Media", string(job.MediaType)},
		{"Status", formatStatus(job.Status, colorize)},
		{"Step", job.Step},
		{"Progress", fmt.Sprintf("%d%%", job.Progress)},
		{"Length", formatDuration(job.Duration)},
		{"Size", formatSize(job.FileSize)},
	}
	if job.DetectedLanguage != "" {
		rows = append(rows, []string{"Detected language", language.DisplayName(job.DetectedLanguage)})
	}
	if job.Selection != nil {
		rows = append(rows, []string{"Target language", language.DisplayName(job.Selection.TargetLanguage)})
		if job.Selection.TranslateAll {
			rows = append(rows, []string{"Scope", "entire transcript"})
		} else {
			rows = append(rows, []string{"Scope", fmt.Sprintf("%d filter(s)", len(job.Selection.Filters))})
		}
	}
	if job.Cost > 0 {
		rows = append(rows, []string{"Cost", strconv.Itoa(job.Cost) + " credits"})
	}
	if job.Clone != nil {
		rows = append(rows, []string{"Chunks", fmt.Sprintf("%d/%d cloned", job.Clone.CompletedChunks, job.Clone.TotalChunks)})
	}
	if job.Output != nil && job.Output.FinalMediaPath != "" {
		rows = append(rows, []string{"Output", job.Output.FinalMediaPath})
	}
	if job.LastError != "" {
		rows = append(rows, []string{"Last error", job.LastError})
	}
	if job.Status == jobs.StatusRetrying && job.NextRetryAt != nil {
		rows = append(rows, []string{"Next retry", formatTimestamp(*job.NextRetryAt)})
	}
	rows = append(rows, []string{"Updated", formatTimestamp(job.UpdatedAt)})
	fmt.Fprintln(out, renderTable([]string{"FIELD", "VALUE"}, rows, nil))

	if len(job.Speakers) > 0 {
		speakerRows := make([][]string, 0, len(job.Speakers))
		for _, sp := range job.Speakers {
			voice := "-"
			if job.Selection != nil {
				if choice, ok := job.Selection.VoiceMapping[sp.ID]; ok {
					if choice.Type == jobs.VoiceOriginal {
						voice = "original"
					} else {
						voice = choice.CharacterID
					}
				}
			}
			speakerRows = append(speakerRows, []string{
				sp.ID,
				formatDuration(sp.TotalDuration),
				strconv.Itoa(sp.SegmentCount),
				voice,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"SPEAKER", "SPOKEN", "SEGMENTS", "VOICE"},
			speakerRows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
		))
	}

	fmt.Fprintln(out, nextActionHint(job))
}

func printScriptPreview(out io.Writer, job *jobs.Job) {
	if len(job.Transcript) == 0 {
		fmt.Fprintln(out, "No transcript yet.")
		return
	}
	segments := job.Transcript
	title := "Transcript"
	if job.Selection != nil {
		segments = selection.Select(job)
		title = "Selected script"
	}
	fmt.Fprintf(out, "%s (%d segments, %s):\n", title, len(segments), formatDuration(selection.TotalDuration(segments)))
	fmt.Fprintln(out, selection.RenderScript(segments))
}

func nextActionHint(job *jobs.Job) string {
	switch pipeline.ResumeTarget(job.Status) {
	case pipeline.ViewFailure:
		return fmt.Sprintf("Job failed. Retry with `overdub retry %s` or remove it with `overdub delete %s`.",
			shortID(job.ID), shortID(job.ID))
	case pipeline.ViewOutput:
		if job.Status == jobs.StatusCompleted {
			return "Dub complete."
		}
		return "Processing; check back with `overdub show` or `overdub list`."
	default:
		switch job.Status {
		case jobs.StatusTranscribingDone:
			return fmt.Sprintf("Transcript ready. Start dubbing with `overdub start %s`.", shortID(job.ID))
		case jobs.StatusClustering:
			return "Applying your selection; check back with `overdub show`."
		default:
			return "Waiting for transcription."
		}
	}
}
