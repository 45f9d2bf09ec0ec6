package selection

import (
	"fmt"
	"sort"
	"strings"

	"overdub/internal/jobs"
)

// Select applies the job's selection to its transcript. When translateAll is
// set the filters are bypassed and the full transcript is returned.
func Select(job *jobs.Job) []jobs.TranscriptSegment {
	if job == nil || job.Selection == nil {
		return nil
	}
	if job.Selection.TranslateAll {
		out := make([]jobs.TranscriptSegment, len(job.Transcript))
		copy(out, job.Transcript)
		return out
	}
	return SelectSegments(job.Transcript, job.Selection.Filters)
}

// SelectSegments computes the union of every filter's matches, deduplicated
// by segment start time and sorted ascending. A filter with missing required
// fields contributes no matches; it never errors. Segments within one
// transcript are non-overlapping, so start time identifies a segment.
func SelectSegments(transcript []jobs.TranscriptSegment, filters []jobs.SegmentFilter) []jobs.TranscriptSegment {
	if len(transcript) == 0 || len(filters) == 0 {
		return nil
	}

	matched := make(map[float64]jobs.TranscriptSegment)
	for _, filter := range filters {
		for _, seg := range matchFilter(transcript, filter) {
			if _, seen := matched[seg.StartTime]; !seen {
				matched[seg.StartTime] = seg
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	out := make([]jobs.TranscriptSegment, 0, len(matched))
	for _, seg := range matched {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func matchFilter(transcript []jobs.TranscriptSegment, filter jobs.SegmentFilter) []jobs.TranscriptSegment {
	var out []jobs.TranscriptSegment
	switch filter.Type {
	case jobs.FilterSpeaker:
		if filter.SpeakerID == "" {
			return nil
		}
		for _, seg := range transcript {
			if seg.SpeakerID == filter.SpeakerID {
				out = append(out, seg)
			}
		}
	case jobs.FilterTimeRange:
		if filter.StartTime == nil || filter.EndTime == nil {
			return nil
		}
		// Full containment, not overlap.
		for _, seg := range transcript {
			if seg.StartTime >= *filter.StartTime && seg.EndTime <= *filter.EndTime {
				out = append(out, seg)
			}
		}
	}
	return out
}

// SelectedSpeakers returns the distinct speaker IDs of the given segments in
// order of first appearance.
func SelectedSpeakers(segments []jobs.TranscriptSegment) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, seg := range segments {
		if _, ok := seen[seg.SpeakerID]; ok {
			continue
		}
		seen[seg.SpeakerID] = struct{}{}
		out = append(out, seg.SpeakerID)
	}
	return out
}

// RenderScript produces the preview text of a selection, one line per
// segment in sorted order.
func RenderScript(segments []jobs.TranscriptSegment) string {
	if len(segments) == 0 {
		return ""
	}
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", seg.SpeakerID, seg.Text)
	}
	return b.String()
}

// TotalDuration sums the selected segments' durations in seconds.
func TotalDuration(segments []jobs.TranscriptSegment) float64 {
	var total float64
	for _, seg := range segments {
		if seg.EndTime > seg.StartTime {
			total += seg.EndTime - seg.StartTime
		}
	}
	return total
}
