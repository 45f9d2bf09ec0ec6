package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"overdub/internal/credits"
	"overdub/internal/jobs"
	"overdub/internal/language"
	"overdub/internal/selection"
	"overdub/internal/services"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var (
		languageFlag string
		translateAll bool
		speakerFlags []string
		rangeFlags   []string
		voiceFlags   []string
	)

	cmd := &cobra.Command{
		Use:   "start ID",
		Short: "Finalize the segment selection and start dubbing",
		Long: "Commits the target language, segment filters, and voice mapping for a job\n" +
			"paused at transcript review, reserves the credit cost, and hands the job\n" +
			"back to the pipeline.",
		Args: cobra.ExactArgs(1),
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
				if job.Status != jobs.StatusTranscribingDone {
					return fmt.Errorf("job %s is %s; only jobs paused at transcript review can be started",
						shortID(job.ID), job.Status)
				}

				target := strings.TrimSpace(languageFlag)
				if target == "" {
					target = cfg.Dubbing.DefaultTargetLanguage
				}
				normalized, err := language.Normalize(target)
				if err != nil {
					return err
				}

				sel, err := buildSelection(normalized, translateAll, speakerFlags, rangeFlags, voiceFlags)
				if err != nil {
					return err
				}

				selected := selection.SelectSegments(job.Transcript, sel.Filters)
				if sel.TranslateAll {
					selected = job.Transcript
				}
				if len(selected) == 0 {
					return errors.New("selection matches no transcript segments; adjust --speaker/--range or pass --translate-all")
				}

				job.Selection = sel
				hasTranslation := job.NeedsTranslation()
				cost, err := credits.Cost(job.Duration, hasTranslation, job.IsVideo())
				if err != nil {
					return err
				}

				if err := ledger.Reserve(cmd.Context(), job.UID, job.ID, cost); err != nil {
					if errors.Is(err, services.ErrInsufficientCredits) {
						balance, balErr := ledger.Balance(cmd.Context(), job.UID)
						if balErr == nil {
							return fmt.Errorf("insufficient credits: job costs %d, %d available (grant more with `overdub credits grant`)",
								cost, balance.Available())
						}
					}
					return err
				}

				job.Cost = cost
				if err := store.Transition(cmd.Context(), job, jobs.StatusTranscribingDone, jobs.StatusClustering); err != nil {
					// Undo the hold so a validation race does not leak credits.
					_ = ledger.Release(cmd.Context(), job.ID)
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job %s started: %d segment(s), %s", shortID(job.ID), len(selected), language.DisplayName(normalized))
				if !hasTranslation {
					fmt.Fprint(out, " (no translation needed)")
				}
				fmt.Fprintf(out, "\nReserved %d credit(s); they are charged when cloning begins.\n", cost)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Target language (defaults to configuration)")
	cmd.Flags().BoolVar(&translateAll, "translate-all", false, "Process the entire transcript")
	cmd.Flags().StringSliceVar(&speakerFlags, "speaker", nil, "Include all segments for a speaker (repeatable)")
	cmd.Flags().StringSliceVar(&rangeFlags, "range", nil, "Include segments fully inside START:END seconds (repeatable)")
	cmd.Flags().StringSliceVar(&voiceFlags, "voice", nil, "Map a speaker to a voice character as SPEAKER=CHARACTER (repeatable); unmapped speakers keep their own voice")
	return cmd
}

func buildSelection(target string, translateAll bool, speakers, ranges, voices []string) (*jobs.Selection, error) {
	sel := &jobs.Selection{
		TargetLanguage: target,
		TranslateAll:   translateAll,
	}

	if translateAll && (len(speakers) > 0 || len(ranges) > 0) {
		return nil, errors.New("--translate-all cannot be combined with --speaker or --range")
	}
	if !translateAll && len(speakers) == 0 && len(ranges) == 0 {
		return nil, errors.New("pass --translate-all, or narrow the selection with --speaker/--range")
	}

	for _, speaker := range speakers {
		speaker = strings.TrimSpace(speaker)
		if speaker == "" {
			return nil, errors.New("empty --speaker value")
		}
		sel.Filters = append(sel.Filters, jobs.SegmentFilter{Type: jobs.FilterSpeaker, SpeakerID: speaker})
	}
	for _, value := range ranges {
		filter, err := parseRangeFilter(value)
		if err != nil {
			return nil, err
		}
		sel.Filters = append(sel.Filters, filter)
	}

	if len(voices) > 0 {
		sel.VoiceMapping = make(map[string]jobs.VoiceChoice, len(voices))
	}
	for _, value := range voices {
		speaker, character, ok := strings.Cut(value, "=")
		speaker = strings.TrimSpace(speaker)
		character = strings.TrimSpace(character)
		if !ok || speaker == "" || character == "" {
			return nil, fmt.Errorf("invalid --voice %q, expected SPEAKER=CHARACTER", value)
		}
		sel.VoiceMapping[speaker] = jobs.VoiceChoice{Type: jobs.VoiceCharacter, CharacterID: character}
	}
	return sel, nil
}

func parseRangeFilter(value string) (jobs.SegmentFilter, error) {
	startText, endText, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return jobs.SegmentFilter{}, fmt.Errorf("invalid --range %q, expected START:END", value)
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(startText), 64)
	if err != nil {
		return jobs.SegmentFilter{}, fmt.Errorf("invalid range start %q", startText)
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(endText), 64)
	if err != nil {
		return jobs.SegmentFilter{}, fmt.Errorf("invalid range end %q", endText)
	}
	if end <= start || start < 0 {
		return jobs.SegmentFilter{}, fmt.Errorf("range %q must satisfy 0 <= start < end", value)
	}
	return jobs.SegmentFilter{Type: jobs.FilterTimeRange, StartTime: &start, EndTime: &end}, nil
}
