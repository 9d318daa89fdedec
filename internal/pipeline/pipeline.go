// Package pipeline turns a finished recording into WAV payloads: the raw
// capture and, when VAD is enabled, one 16 kHz WAV per speech segment.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"echomic/internal/audio"
	"echomic/internal/domain"
	"echomic/internal/resample"
	"echomic/internal/vad"
)

// Options controls Process.
type Options struct {
	UseVAD     bool
	Classifier vad.Classifier
}

// Result is the processed form of one recording.
type Result struct {
	// RawWAV is the whole capture at its native rate.
	RawWAV     []byte
	RawSamples []float32
	// Segments holds one 16 kHz WAV per utterance, in order.
	Segments [][]byte
	// SegmentSamples are the PCM samples behind Segments.
	SegmentSamples [][]float32
	Elapsed        time.Duration
}

// Process encodes the raw recording and, with VAD enabled, resamples it to
// 16 kHz and splits it into utterances.
func Process(rec domain.Recording, opts Options) (Result, error) {
	start := time.Now()
	raw, err := audio.EncodeWAV(rec.Samples, rec.SampleRate)
	if err != nil {
		return Result{}, err
	}
	res := Result{RawWAV: raw, RawSamples: rec.Samples}
	if !opts.UseVAD || len(rec.Samples) == 0 {
		res.Elapsed = time.Since(start)
		return res, nil
	}

	mono16k, err := resample.Resample(rec.Samples, rec.SampleRate)
	if err != nil {
		return Result{}, err
	}

	segmenter := vad.NewSegmenter(opts.Classifier)
	segments := segmenter.Process(mono16k)
	if last, ok := segmenter.Finish(); ok {
		segments = append(segments, last)
	}

	for i, seg := range segments {
		wav, err := audio.EncodeWAV(seg, resample.TargetRate)
		if err != nil {
			return Result{}, fmt.Errorf("segment %d: %w", i, err)
		}
		res.Segments = append(res.Segments, wav)
		res.SegmentSamples = append(res.SegmentSamples, seg)
	}
	res.Elapsed = time.Since(start)
	slog.Info("[pipeline] recording processed",
		"input_samples", len(rec.Samples),
		"input_rate", rec.SampleRate,
		"resampled", len(mono16k),
		"segments", len(res.Segments),
		"elapsed", res.Elapsed,
	)
	return res, nil
}
