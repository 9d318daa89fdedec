package usecase

import (
	"time"

	"echomic/internal/domain"
	"echomic/internal/pipeline"
)

type activeSession struct {
	id        string
	startedAt time.Time
}

// Processed is a stopped, processed recording waiting for transcription.
type Processed struct {
	SessionID     string
	StartedAt     time.Time
	Duration      time.Duration
	SampleRate    int
	SampleCount   int
	DroppedChunks uint64
	UsedVAD       bool
	Audio         pipeline.Result
	Saved         []string
}

// Empty reports whether there is nothing worth transcribing.
func (p Processed) Empty() bool {
	if p.UsedVAD {
		return len(p.Audio.Segments) == 0
	}
	return p.SampleCount == 0
}

func (p Processed) record(transcript string, outcome domain.SessionStateReason) domain.SessionRecord {
	return domain.SessionRecord{
		ID:            p.SessionID,
		StartedAt:     p.StartedAt,
		Duration:      p.Duration,
		SampleRate:    p.SampleRate,
		Segments:      len(p.Audio.Segments),
		DroppedChunks: p.DroppedChunks,
		Transcript:    transcript,
		Outcome:       string(outcome),
	}
}
