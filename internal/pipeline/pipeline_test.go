package pipeline

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"echomic/internal/audio"
	"echomic/internal/domain"
	"echomic/internal/resample"
)

func speechLike(rate int, silence, speech time.Duration) []float32 {
	n := func(d time.Duration) int { return int(d.Seconds() * float64(rate)) }
	out := make([]float32, 0, 2*n(silence)+n(speech))
	out = append(out, make([]float32, n(silence))...)
	for i := 0; i < n(speech); i++ {
		out = append(out, float32(0.4*math.Sin(2*math.Pi*300*float64(i)/float64(rate))))
	}
	return append(out, make([]float32, n(silence))...)
}

func TestProcessWithoutVAD(t *testing.T) {
	t.Parallel()

	rec := domain.Recording{Samples: []float32{0.1, 0.2, 0.3}, SampleRate: 44100}
	res, err := Process(rec, Options{})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(res.Segments) != 0 {
		t.Fatalf("expected no segments without vad")
	}
	_, rate, err := audio.DecodeWAV(bytes.NewReader(res.RawWAV))
	if err != nil {
		t.Fatalf("raw wav unreadable: %v", err)
	}
	if rate != 44100 {
		t.Fatalf("raw wav should keep the native rate, got %d", rate)
	}
}

func TestProcessWithVADFindsUtterance(t *testing.T) {
	t.Parallel()

	rec := domain.Recording{Samples: speechLike(48000, 500*time.Millisecond, time.Second), SampleRate: 48000}
	res, err := Process(rec, Options{UseVAD: true})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(res.Segments) != 1 || len(res.SegmentSamples) != 1 {
		t.Fatalf("expected one segment, got %d", len(res.Segments))
	}
	samples, rate, err := audio.DecodeWAV(bytes.NewReader(res.Segments[0]))
	if err != nil {
		t.Fatalf("segment wav unreadable: %v", err)
	}
	if rate != resample.TargetRate {
		t.Fatalf("segment rate %d, want %d", rate, resample.TargetRate)
	}
	// Roughly one second of speech plus up to the hangover of trailing frames.
	if len(samples) < 14000 || len(samples) > 16000+512*11 {
		t.Fatalf("unexpected segment length %d", len(samples))
	}
}

func TestProcessSilenceHasNoSegments(t *testing.T) {
	t.Parallel()

	rec := domain.Recording{Samples: make([]float32, 32000), SampleRate: 16000}
	res, err := Process(rec, Options{UseVAD: true})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(res.Segments) != 0 {
		t.Fatalf("expected no segments, got %d", len(res.Segments))
	}
	if len(res.RawWAV) != 44+2*32000 {
		t.Fatalf("unexpected raw wav size %d", len(res.RawWAV))
	}
}

func TestProcessRejectsBadRate(t *testing.T) {
	t.Parallel()

	_, err := Process(domain.Recording{Samples: []float32{0.1}, SampleRate: 0}, Options{UseVAD: true})
	if !errors.Is(err, audio.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
}

func TestSaveWritesRawAndSegments(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "recordings")
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	paths, err := Save(dir, at, Result{RawWAV: []byte("raw"), Segments: [][]byte{[]byte("a"), []byte("b")}})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	want := []string{
		"recording_20260304_050607_raw.wav",
		"recording_20260304_050607_segment_0.wav",
		"recording_20260304_050607_segment_1.wav",
	}
	if len(paths) != len(want) {
		t.Fatalf("unexpected paths: %v", paths)
	}
	for i, name := range want {
		if filepath.Base(paths[i]) != name {
			t.Fatalf("path %d: got %s want %s", i, filepath.Base(paths[i]), name)
		}
		if _, err := os.Stat(paths[i]); err != nil {
			t.Fatalf("missing file %s: %v", paths[i], err)
		}
	}
}
