package jobs

import "fmt"

// stageOrder is the forward progression of the pipeline. transcribing_done
// is a pause state: the manager never claims it, only an explicit user
// start advances it.
var stageOrder = []Status{
	StatusUploading,
	StatusExtracting,
	StatusTranscribing,
	StatusTranscribingDone,
	StatusClustering,
	StatusTranslating,
	StatusCloning,
	StatusMerging,
	StatusCompleted,
}

var processingStatuses = map[Status]struct{}{
	StatusUploading:    {},
	StatusExtracting:   {},
	StatusTranscribing: {},
	StatusClustering:   {},
	StatusTranslating:  {},
	StatusCloning:      {},
	StatusMerging:      {},
}

// legalTransitions enumerates every permitted status change. Forward moves
// follow stageOrder; clustering may skip translating when no translation is
// needed; failed is reachable from every non-terminal state; retrying
// re-enters the stage that failed.
var legalTransitions = map[Status][]Status{
	StatusUploading:        {StatusExtracting, StatusFailed, StatusRetrying},
	StatusExtracting:       {StatusTranscribing, StatusFailed, StatusRetrying},
	StatusTranscribing:     {StatusTranscribingDone, StatusFailed, StatusRetrying},
	StatusTranscribingDone: {StatusClustering, StatusFailed},
	StatusClustering:       {StatusTranslating, StatusCloning, StatusFailed, StatusRetrying},
	StatusTranslating:      {StatusCloning, StatusFailed, StatusRetrying},
	StatusCloning:          {StatusMerging, StatusFailed, StatusRetrying},
	StatusMerging:          {StatusCompleted, StatusFailed, StatusRetrying},
	StatusRetrying: {
		StatusUploading, StatusExtracting, StatusTranscribing,
		StatusClustering, StatusTranslating, StatusCloning, StatusMerging,
		StatusFailed,
	},
	StatusFailed:    {StatusRetrying, StatusUploading, StatusExtracting, StatusTranscribing, StatusClustering, StatusTranslating, StatusCloning, StatusMerging},
	StatusCompleted: {},
}

// CanTransition reports whether from → to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a descriptive error for illegal status changes.
func ValidateTransition(from, to Status) error {
	if _, ok := statusSet[from]; !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if _, ok := statusSet[to]; !ok {
		return fmt.Errorf("unknown status %q", to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal transition %s → %s", from, to)
	}
	return nil
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status Status) bool {
	return len(legalTransitions[status]) == 0
}

// IsProcessing reports whether the status reflects a stage the daemon drives.
func IsProcessing(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// NextStage returns the forward successor of a stage in the pipeline order.
func NextStage(status Status) (Status, bool) {
	for i, s := range stageOrder {
		if s == status && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// Validate checks the structural invariants of a job record: payloads only
// present for statuses that may carry them, chunk accounting consistent,
// and every filter or chunk speaker known once clustering has run.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job id is empty")
	}
	if _, ok := statusSet[j.Status]; !ok {
		return fmt.Errorf("unknown status %q", j.Status)
	}
	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("progress %d out of range", j.Progress)
	}
	if err := j.validatePayloads(); err != nil {
		return err
	}
	if err := j.validateSpeakersReferenced(); err != nil {
		return err
	}
	if j.Clone != nil {
		if j.Clone.CompletedChunks > j.Clone.TotalChunks {
			return fmt.Errorf("completed chunks %d exceed total %d", j.Clone.CompletedChunks, j.Clone.TotalChunks)
		}
		if j.Status == StatusCompleted {
			for _, chunk := range j.Clone.Chunks {
				if chunk.Status != ChunkCompleted {
					return fmt.Errorf("chunk %d is %s on a completed job", chunk.ChunkID, chunk.Status)
				}
			}
		}
	}
	return nil
}

func (j *Job) validatePayloads() error {
	switch j.Status {
	case StatusUploading, StatusExtracting, StatusTranscribing:
		if j.Selection != nil {
			return fmt.Errorf("selection payload not valid in %s", j.Status)
		}
		fallthrough
	case StatusTranscribingDone, StatusClustering, StatusTranslating:
		if j.Clone != nil {
			return fmt.Errorf("clone payload not valid in %s", j.Status)
		}
	case StatusCloning, StatusMerging:
		if j.Selection == nil {
			return fmt.Errorf("selection payload required in %s", j.Status)
		}
	case StatusCompleted:
		if j.Output == nil {
			return fmt.Errorf("output payload required in %s", j.Status)
		}
	}
	return nil
}

func (j *Job) validateSpeakersReferenced() error {
	if len(j.Speakers) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(j.Speakers))
	for _, sp := range j.Speakers {
		known[sp.ID] = struct{}{}
	}
	if j.Selection != nil {
		for _, f := range j.Selection.Filters {
			if f.Type == FilterSpeaker && f.SpeakerID != "" {
				if _, ok := known[f.SpeakerID]; !ok {
					return fmt.Errorf("filter references unknown speaker %q", f.SpeakerID)
				}
			}
		}
		for speakerID := range j.Selection.VoiceMapping {
			if _, ok := known[speakerID]; !ok {
				return fmt.Errorf("voice mapping references unknown speaker %q", speakerID)
			}
		}
	}
	if j.Clone != nil {
		for _, chunk := range j.Clone.Chunks {
			for _, sp := range chunk.Speakers {
				if _, ok := known[sp]; !ok {
					return fmt.Errorf("chunk %d references unknown speaker %q", chunk.ChunkID, sp)
				}
			}
		}
	}
	return nil
}
