package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"echomic/internal/domain"
	"echomic/internal/ringbuf"
)

const (
	// TargetSampleRate is the rate segmentation and transcription run at.
	TargetSampleRate = 16000
	// DefaultMaxSeconds bounds one session's ring buffer.
	DefaultMaxSeconds = 300
)

// Capture owns the default input device for the duration of one recording.
type Capture struct {
	host Host

	mu         sync.Mutex
	maxSeconds int
	session    *captureSession
}

type captureSession struct {
	device    string
	cfg       StreamConfig
	stream    Stream
	ring      *ringbuf.Buffer
	sink      *callbackSink
	startedAt time.Time
}

func NewCapture(host Host, maxSeconds int) *Capture {
	if maxSeconds <= 0 {
		maxSeconds = DefaultMaxSeconds
	}
	return &Capture{host: host, maxSeconds: maxSeconds}
}

// SetMaxDuration changes the ring buffer size used by the next Start.
func (c *Capture) SetMaxDuration(seconds int) {
	if seconds <= 0 {
		seconds = DefaultMaxSeconds
	}
	c.mu.Lock()
	c.maxSeconds = seconds
	c.mu.Unlock()
}

// Active reports whether a stream is currently open.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Start opens the default input device at its native config and begins
// writing normalized mono samples into a fresh ring buffer.
func (c *Capture) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return ErrCaptureActive
	}

	device, err := c.host.DefaultInput()
	if err != nil {
		if errors.Is(err, ErrNoInputDevice) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNoInputDevice, err)
	}
	if device == nil {
		return ErrNoInputDevice
	}

	cfg, err := device.DefaultConfig()
	if err != nil {
		return fmt.Errorf("%w: default config for %q: %w", ErrStreamBuild, device.Name(), err)
	}
	if !cfg.Format.Supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.Format)
	}
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return fmt.Errorf("%w: invalid config %d Hz x %d channels", ErrStreamBuild, cfg.SampleRate, cfg.Channels)
	}

	ring := ringbuf.New(c.maxSeconds * TargetSampleRate)
	sink := newCallbackSink(ring, cfg.Channels, 4096)
	stream, err := device.OpenInput(cfg, sink)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStreamBuild, err)
	}
	if err := stream.Play(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("%w: play: %w", ErrStreamBuild, err)
	}

	c.session = &captureSession{
		device:    device.Name(),
		cfg:       cfg,
		stream:    stream,
		ring:      ring,
		sink:      sink,
		startedAt: time.Now(),
	}
	slog.Info("[audio] capture started",
		"device", device.Name(),
		"sampleRate", cfg.SampleRate,
		"channels", cfg.Channels,
		"format", cfg.Format.String(),
		"bufferSamples", ring.Cap(),
	)
	return nil
}

// Stop pauses and closes the stream, then drains every buffered sample.
// Samples are returned even when the platform reports a stop error.
func (c *Capture) Stop() (domain.Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s == nil {
		return domain.Recording{}, ErrNotCapturing
	}
	c.session = nil

	pauseErr := s.stream.Pause()
	closeErr := s.stream.Close()

	rec := domain.Recording{
		Samples:       s.ring.Drain(),
		SampleRate:    s.cfg.SampleRate,
		DroppedChunks: s.sink.dropped.Load(),
		StartedAt:     s.startedAt,
	}

	if rec.DroppedChunks > 0 {
		slog.Warn("[audio] ring buffer full, chunks dropped",
			"dropped", rec.DroppedChunks,
			"chunks", s.sink.chunks.Load(),
		)
	}
	if n := s.sink.panics.Load(); n > 0 {
		slog.Error("[audio] recovered panics in capture callback", "count", n)
	}
	slog.Info("[audio] capture stopped",
		"device", s.device,
		"samples", len(rec.Samples),
		"duration", rec.Duration().String(),
	)

	if err := errors.Join(pauseErr, closeErr); err != nil {
		return rec, fmt.Errorf("stop capture: %w", err)
	}
	return rec, nil
}

// Clear discards buffered samples without stopping the stream.
func (c *Capture) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return
	}
	n := c.session.ring.Discard()
	slog.Debug("[audio] buffer cleared", "samples", n)
}
