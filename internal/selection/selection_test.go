package selection_test

import (
	"reflect"
	"testing"

	"overdub/internal/jobs"
	"overdub/internal/selection"
)

func seg(speaker string, start, end float64, text string) jobs.TranscriptSegment {
	return jobs.TranscriptSegment{SpeakerID: speaker, Text: text, StartTime: start, EndTime: end, Confidence: 0.9}
}

func f64(v float64) *float64 { return &v }

func sampleTranscript() []jobs.TranscriptSegment {
	return []jobs.TranscriptSegment{
		seg("speaker_1", 0, 5, "first"),
		seg("speaker_2", 5, 10, "second"),
		seg("speaker_1", 10, 15, "third"),
	}
}

func TestSpeakerFilter(t *testing.T) {
	got := selection.SelectSegments(sampleTranscript(), []jobs.SegmentFilter{
		{Type: jobs.FilterSpeaker, SpeakerID: "speaker_1"},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(got))
	}
	if got[0].StartTime != 0 || got[1].StartTime != 10 {
		t.Fatalf("expected segments at 0 and 10, got %v and %v", got[0].StartTime, got[1].StartTime)
	}
	for _, s := range got {
		if s.SpeakerID != "speaker_1" {
			t.Fatalf("unexpected speaker %s", s.SpeakerID)
		}
	}
}

func TestTimeRangeRequiresFullContainment(t *testing.T) {
	got := selection.SelectSegments(sampleTranscript(), []jobs.SegmentFilter{
		{Type: jobs.FilterTimeRange, StartTime: f64(4), EndTime: f64(12)},
	})
	if len(got) != 1 {
		t.Fatalf("expected only the fully contained segment, got %d", len(got))
	}
	if got[0].StartTime != 5 || got[0].EndTime != 10 {
		t.Fatalf("expected segment [5,10], got [%v,%v]", got[0].StartTime, got[0].EndTime)
	}
	for _, s := range got {
		if s.StartTime < 4 || s.EndTime > 12 {
			t.Fatalf("segment [%v,%v] escapes the range", s.StartTime, s.EndTime)
		}
	}
}

func TestUnionDeduplicatesAndSorts(t *testing.T) {
	got := selection.SelectSegments(sampleTranscript(), []jobs.SegmentFilter{
		{Type: jobs.FilterTimeRange, StartTime: f64(8), EndTime: f64(20)},
		{Type: jobs.FilterSpeaker, SpeakerID: "speaker_1"},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct segments, got %d", len(got))
	}
	if got[0].StartTime != 0 || got[1].StartTime != 10 {
		t.Fatalf("expected ascending order 0,10, got %v,%v", got[0].StartTime, got[1].StartTime)
	}
}

func TestIncompleteFilterMatchesNothing(t *testing.T) {
	cases := []struct {
		name   string
		filter jobs.SegmentFilter
	}{
		{"speaker without id", jobs.SegmentFilter{Type: jobs.FilterSpeaker}},
		{"timerange without start", jobs.SegmentFilter{Type: jobs.FilterTimeRange, EndTime: f64(10)}},
		{"timerange without end", jobs.SegmentFilter{Type: jobs.FilterTimeRange, StartTime: f64(0)}},
		{"unknown type", jobs.SegmentFilter{Type: "whatever"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := selection.SelectSegments(sampleTranscript(), []jobs.SegmentFilter{tc.filter}); len(got) != 0 {
				t.Fatalf("expected no matches, got %d", len(got))
			}
		})
	}
}

func TestSelectIsIdempotent(t *testing.T) {
	filters := []jobs.SegmentFilter{{Type: jobs.FilterSpeaker, SpeakerID: "speaker_1"}}
	once := selection.SelectSegments(sampleTranscript(), filters)
	twice := selection.SelectSegments(once, filters)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("expected idempotent selection, got %v then %v", once, twice)
	}
}

func TestTranslateAllBypassesFilters(t *testing.T) {
	job := jobs.New("user-1", "/tmp/a.wav", jobs.MediaAudio, 3)
	job.Transcript = sampleTranscript()
	job.Selection = &jobs.Selection{
		TargetLanguage: "es",
		TranslateAll:   true,
		Filters:        []jobs.SegmentFilter{{Type: jobs.FilterSpeaker, SpeakerID: "speaker_2"}},
	}
	got := selection.Select(job)
	if len(got) != 3 {
		t.Fatalf("expected full transcript, got %d segments", len(got))
	}
}

func TestSelectedSpeakersFirstAppearanceOrder(t *testing.T) {
	speakers := selection.SelectedSpeakers(sampleTranscript())
	if !reflect.DeepEqual(speakers, []string{"speaker_1", "speaker_2"}) {
		t.Fatalf("unexpected speaker order: %v", speakers)
	}
}

func TestRenderScript(t *testing.T) {
	script := selection.RenderScript(sampleTranscript()[:2])
	want := "speaker_1: first\nspeaker_2: second"
	if script != want {
		t.Fatalf("unexpected script:\n%s", script)
	}
	if selection.RenderScript(nil) != "" {
		t.Fatal("expected empty script for no segments")
	}
}

func TestTotalDuration(t *testing.T) {
	if got := selection.TotalDuration(sampleTranscript()); got != 15 {
		t.Fatalf("expected 15 seconds, got %v", got)
	}
}
