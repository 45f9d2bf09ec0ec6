package jobs

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"overdub/internal/language"
)

// Status represents the lifecycle of a dubbing job.
type Status string

const (
	StatusUploading        Status = "uploading"
	StatusExtracting       Status = "extracting"
	StatusTranscribing     Status = "transcribing"
	StatusTranscribingDone Status = "transcribing_done"
	StatusClustering       Status = "clustering"
	StatusTranslating      Status = "translating"
	StatusCloning          Status = "cloning"
	StatusMerging          Status = "merging"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusRetrying         Status = "retrying"
)

var allStatuses = []Status{
	StatusUploading,
	StatusExtracting,
	StatusTranscribing,
	StatusTranscribingDone,
	StatusClustering,
	StatusTranslating,
	StatusCloning,
	StatusMerging,
	StatusCompleted,
	StatusFailed,
	StatusRetrying,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// MediaType distinguishes audio-only uploads from video uploads.
type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// TranscriptSegment is one transcribed utterance.
type TranscriptSegment struct {
	SpeakerID      string  `json:"speakerId"`
	Text           string  `json:"text"`
	TranslatedText string  `json:"translatedText,omitempty"`
	StartTime      float64 `json:"startTime"`
	EndTime        float64 `json:"endTime"`
	Confidence     float64 `json:"confidence"`
}

// SpeakerInfo describes one clustered speaker.
type SpeakerInfo struct {
	ID            string  `json:"id"`
	VoiceSample   string  `json:"voiceSample,omitempty"`
	TotalDuration float64 `json:"totalDuration"`
	SegmentCount  int     `json:"segmentCount"`
}

// FilterType discriminates segment filter variants.
type FilterType string

const (
	FilterSpeaker   FilterType = "speaker"
	FilterTimeRange FilterType = "timerange"
)

// SegmentFilter selects transcript segments by speaker or by time range.
// Missing required fields make the filter match nothing rather than error.
type SegmentFilter struct {
	Type      FilterType `json:"type"`
	SpeakerID string     `json:"speakerId,omitempty"`
	StartTime *float64   `json:"startTime,omitempty"`
	EndTime   *float64   `json:"endTime,omitempty"`
}

// VoiceChoiceType discriminates voice mapping variants.
type VoiceChoiceType string

const (
	VoiceCharacter VoiceChoiceType = "character"
	VoiceOriginal  VoiceChoiceType = "original"
)

// VoiceChoice is the per-speaker dubbing voice decision.
type VoiceChoice struct {
	Type        VoiceChoiceType `json:"type"`
	CharacterID string          `json:"characterId,omitempty"`
}

// Selection captures the user's configuration recorded at transcribing_done:
// which segments to process, into which language, with which voices.
type Selection struct {
	TargetLanguage string                 `json:"targetLanguage"`
	TranslateAll   bool                   `json:"translateAll"`
	Filters        []SegmentFilter        `json:"segmentFilters,omitempty"`
	VoiceMapping   map[string]VoiceChoice `json:"voiceMapping,omitempty"`
	ScriptEdited   bool                   `json:"scriptEdited,omitempty"`
}

// ChunkStatus is the lifecycle of one voice-clone chunk.
type ChunkStatus string

const (
	ChunkPending    ChunkStatus = "pending"
	ChunkProcessing ChunkStatus = "processing"
	ChunkCompleted  ChunkStatus = "completed"
	ChunkFailed     ChunkStatus = "failed"
)

// ClonedChunk is one unit of voice-cloning work, bounded to at most four
// distinct speakers by the chunk planner.
type ClonedChunk struct {
	ChunkID      int         `json:"chunkId"`
	Speakers     []string    `json:"speakers"`
	Text         string      `json:"text"`
	CharacterIDs []string    `json:"characterIds,omitempty"`
	AudioPath    string      `json:"audioPath,omitempty"`
	Status       ChunkStatus `json:"status"`
	Error        string      `json:"error,omitempty"`
}

// CloneState tracks chunked cloning progress. Present only from cloning on.
type CloneState struct {
	TotalChunks     int           `json:"totalChunks"`
	CompletedChunks int           `json:"completedChunks"`
	Chunks          []ClonedChunk `json:"clonedAudioChunks"`
}

// Output holds the artifacts produced by the final stages.
type Output struct {
	ClonedAudioPath string `json:"clonedAudioPath,omitempty"`
	FinalMediaPath  string `json:"finalMediaPath,omitempty"`
}

// Job is one dubbing request, persisted as a single row.
//
// The Selection, Clone, and Output sub-records are stage payloads: nil
// until the pipeline reaches the stage that produces them. Validate
// enforces which payloads are legal for the current status.
type Job struct {
	ID  string
	UID string

	Status   Status
	Step     string
	Progress int

	MediaType        MediaType
	SourcePath       string
	AudioPath        string
	Duration         float64
	FileSize         int64
	DetectedLanguage string

	Transcript []TranscriptSegment
	Speakers   []SpeakerInfo
	Selection  *Selection
	Clone      *CloneState
	Output     *Output

	Cost int

	RetryCount       int
	MaxRetries       int
	RetriesExhausted bool
	RetryStage       Status
	NextRetryAt      *time.Time
	LastError        string

	LastHeartbeat *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ExpiresAt     *time.Time
}

// New constructs a job in the uploading state.
func New(uid, sourcePath string, mediaType MediaType, maxRetries int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.NewString(),
		UID:        uid,
		Status:     StatusUploading,
		Step:       "Uploading media",
		MediaType:  mediaType,
		SourcePath: sourcePath,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// SourceName returns the base name of the uploaded media file.
func (j *Job) SourceName() string {
	if j.SourcePath == "" {
		return ""
	}
	return filepath.Base(j.SourcePath)
}

// IsVideo reports whether the job's source media carries a video stream.
func (j *Job) IsVideo() bool {
	return j.MediaType == MediaVideo
}

// NeedsTranslation reports whether the selected target language differs
// from the language detected at transcription. Comparison uses the same
// tag normalization as the translation skip in the pipeline.
func (j *Job) NeedsTranslation() bool {
	if j.Selection == nil || j.Selection.TargetLanguage == "" {
		return false
	}
	return !language.Equal(j.Selection.TargetLanguage, j.DetectedLanguage)
}

// SpeakerByID looks up a clustered speaker.
func (j *Job) SpeakerByID(id string) (SpeakerInfo, bool) {
	for _, sp := range j.Speakers {
		if sp.ID == id {
			return sp, true
		}
	}
	return SpeakerInfo{}, false
}

// SetStep updates the human-readable progress description and raises
// progress to at least pct. Progress never decreases within a stage.
func (j *Job) SetStep(step string, pct int) {
	j.Step = step
	if pct > j.Progress {
		if pct > 100 {
			pct = 100
		}
		j.Progress = pct
	}
}

// ResetProgress is only legal when re-entering a stage from scratch.
func (j *Job) ResetProgress(step string) {
	j.Step = step
	j.Progress = 0
}

// SetFailed marks the job failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.LastError = message
	j.Step = "Failed"
	j.LastHeartbeat = nil
	j.NextRetryAt = nil
}
