package chunking

import (
	"fmt"

	"overdub/internal/jobs"
	"overdub/internal/services"
)

// DefaultMaxSpeakersPerChunk is the cloning service's hard bound on distinct
// voices per invocation.
const DefaultMaxSpeakersPerChunk = 4

// Chunk is one voice cloning work unit: a run of consecutive segments whose
// distinct speakers fit within the per-call bound.
type Chunk struct {
	ID       int
	Speakers []string
	Segments []jobs.TranscriptSegment
}

// Plan partitions segments into chunks by iterating in time order and
// greedily extending the open chunk while its speaker set has room. Segments
// are never reordered, so concatenating the chunks reproduces the input.
func Plan(segments []jobs.TranscriptSegment, maxSpeakersPerChunk int) ([]Chunk, error) {
	if maxSpeakersPerChunk <= 0 {
		return nil, services.Wrap(services.ErrValidation, "", "plan chunks",
			fmt.Sprintf("max speakers per chunk must be positive, got %d", maxSpeakersPerChunk), nil)
	}
	if len(segments) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	current := Chunk{ID: 0}
	speakers := make(map[string]struct{})

	for _, seg := range segments {
		if seg.SpeakerID == "" {
			return nil, services.Wrap(services.ErrValidation, "", "plan chunks",
				fmt.Sprintf("segment at %.2fs has no speaker", seg.StartTime), nil)
		}
		if _, known := speakers[seg.SpeakerID]; !known && len(speakers) >= maxSpeakersPerChunk {
			chunks = append(chunks, current)
			current = Chunk{ID: len(chunks)}
			speakers = make(map[string]struct{})
		}
		if _, known := speakers[seg.SpeakerID]; !known {
			speakers[seg.SpeakerID] = struct{}{}
			current.Speakers = append(current.Speakers, seg.SpeakerID)
		}
		current.Segments = append(current.Segments, seg)
	}
	chunks = append(chunks, current)
	return chunks, nil
}

// BuildCloneState converts a chunk plan into the persisted cloning payload,
// every chunk starting out pending. Character voice choices are recorded per
// chunk so the cloning call can map each speaker to the right voice.
func BuildCloneState(chunks []Chunk, mapping map[string]jobs.VoiceChoice) *jobs.CloneState {
	state := &jobs.CloneState{
		TotalChunks: len(chunks),
		Chunks:      make([]jobs.ClonedChunk, 0, len(chunks)),
	}
	for _, chunk := range chunks {
		record := jobs.ClonedChunk{
			ChunkID:  chunk.ID,
			Speakers: append([]string(nil), chunk.Speakers...),
			Text:     chunkText(chunk),
			Status:   jobs.ChunkPending,
		}
		for _, speaker := range chunk.Speakers {
			if choice, ok := mapping[speaker]; ok && choice.Type == jobs.VoiceCharacter && choice.CharacterID != "" {
				record.CharacterIDs = append(record.CharacterIDs, choice.CharacterID)
			}
		}
		state.Chunks = append(state.Chunks, record)
	}
	return state
}

func chunkText(chunk Chunk) string {
	var out string
	for i, seg := range chunk.Segments {
		text := seg.TranslatedText
		if text == "" {
			text = seg.Text
		}
		if i > 0 {
			out += " "
		}
		out += text
	}
	return out
}
