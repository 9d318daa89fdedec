package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"echomic/internal/ports"
	"echomic/internal/resample"
)

// transcriptAggregator keeps per-segment text by index so the joined
// transcript follows segment order.
type transcriptAggregator struct {
	parts []string
}

func newTranscriptAggregator(n int) *transcriptAggregator {
	return &transcriptAggregator{parts: make([]string, n)}
}

func (a *transcriptAggregator) Set(index int, text string) {
	if index < 0 || index >= len(a.parts) {
		return
	}
	a.parts[index] = strings.TrimSpace(text)
}

func (a *transcriptAggregator) Text() string {
	nonEmpty := make([]string, 0, len(a.parts))
	for _, p := range a.parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// transcriptionRequests returns one request per segment, or one for the
// whole recording when VAD was off.
func transcriptionRequests(p Processed) []ports.TranscriptionRequest {
	if !p.UsedVAD {
		return []ports.TranscriptionRequest{{WAV: p.Audio.RawWAV, SampleRate: p.SampleRate, Samples: p.Audio.RawSamples}}
	}
	reqs := make([]ports.TranscriptionRequest, len(p.Audio.Segments))
	for i := range p.Audio.Segments {
		reqs[i] = ports.TranscriptionRequest{
			WAV:        p.Audio.Segments[i],
			Samples:    p.Audio.SegmentSamples[i],
			SampleRate: resample.TargetRate,
		}
	}
	return reqs
}

// transcribeAll sends requests in order. A failed segment does not stop the
// rest; the joined error is returned next to whatever text was produced.
func transcribeAll(ctx context.Context, t ports.Transcriber, reqs []ports.TranscriptionRequest, events ports.EventSink) (string, error) {
	agg := newTranscriptAggregator(len(reqs))
	var errs []error
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		text, err := t.Transcribe(ctx, req)
		if err != nil {
			slog.Warn("[session] segment transcription failed", "provider", t.Name(), "segment", i, "error", err)
			errs = append(errs, fmt.Errorf("segment %d: %w", i, err))
			continue
		}
		agg.Set(i, text)
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			events.SegmentTranscribed(i, trimmed)
		}
	}
	return agg.Text(), errors.Join(errs...)
}
