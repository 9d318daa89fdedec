// Package ffmpeg captures the microphone by running ffmpeg and decoding its
// s16le stdout. The reader goroutine stands in for the device thread.
package ffmpeg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"echomic/internal/audio"
)

const chunkFrames = 1024

// Config selects the ffmpeg input and output shape.
type Config struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
}

// Host exposes ffmpeg's configured input as the default device.
type Host struct {
	cfg Config
}

func NewHost(cfg Config) *Host {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.TargetSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return &Host{cfg: cfg}
}

func (h *Host) DefaultInput() (audio.Device, error) {
	if _, err := exec.LookPath(h.cfg.Command); err != nil {
		return nil, fmt.Errorf("%w: %s not available: %w", audio.ErrNoInputDevice, h.cfg.Command, err)
	}
	return &device{cfg: h.cfg}, nil
}

type device struct {
	cfg Config
}

func (d *device) Name() string {
	return d.cfg.InputFormat + ":" + d.cfg.InputDevice
}

func (d *device) DefaultConfig() (audio.StreamConfig, error) {
	return audio.StreamConfig{
		SampleRate: d.cfg.SampleRate,
		Channels:   d.cfg.Channels,
		Format:     audio.FormatInt16,
	}, nil
}

func (d *device) OpenInput(cfg audio.StreamConfig, sink audio.Sink) (audio.Stream, error) {
	if cfg.Format != audio.FormatInt16 {
		return nil, fmt.Errorf("%w: ffmpeg streams deliver i16, not %s", audio.ErrUnsupportedFormat, cfg.Format)
	}
	return &stream{
		command: d.cfg.Command,
		args: []string{
			"-nostdin",
			"-hide_banner",
			"-loglevel", "warning",
			"-f", d.cfg.InputFormat,
			"-i", d.cfg.InputDevice,
			"-ac", strconv.Itoa(cfg.Channels),
			"-ar", strconv.Itoa(cfg.SampleRate),
			"-f", "s16le",
			"-",
		},
		channels: cfg.Channels,
		sink:     sink,
	}, nil
}

type stream struct {
	command  string
	args     []string
	channels int
	sink     audio.Sink

	process  *os.Process
	stdout   io.ReadCloser
	stderr   bytes.Buffer
	waitErr  chan error
	pumpDone chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	stopErr   error
}

// Play starts ffmpeg and fails if it exits during the first 250ms.
func (s *stream) Play() error {
	err := errors.New("stream already started")
	s.startOnce.Do(func() {
		err = s.start()
	})
	return err
}

func (s *stream) start() error {
	cmd := exec.Command(s.command, s.args...)
	cmd.Stderr = &s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	s.process = cmd.Process
	s.stdout = stdout
	s.pumpDone = make(chan struct{})
	go s.pump()

	s.waitErr = make(chan error, 1)
	go func() {
		<-s.pumpDone
		s.waitErr <- cmd.Wait()
		close(s.waitErr)
	}()

	select {
	case <-s.pumpDone:
		err := <-s.waitErr
		s.stopOnce.Do(func() {})
		if err != nil {
			return fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimOutput(s.stderr.String()))
		}
		return errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}
	return nil
}

// pump decodes whole frames from stdout and hands them to the sink.
func (s *stream) pump() {
	defer close(s.pumpDone)

	frameBytes := 2 * s.channels
	raw := make([]byte, chunkFrames*frameBytes)
	samples := make([]int16, chunkFrames*s.channels)
	for {
		n, err := io.ReadFull(s.stdout, raw)
		n -= n % frameBytes
		if n > 0 {
			for i := 0; i < n/2; i++ {
				samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
			}
			s.sink.WriteInt16(samples[:n/2])
		}
		if err != nil {
			return
		}
	}
}

// Pause interrupts ffmpeg, escalating to kill after 1.2s, and waits for the
// reader to finish so no sink call happens after it returns.
func (s *stream) Pause() error {
	if s.process == nil {
		return nil
	}
	s.stopOnce.Do(func() {
		_ = s.process.Signal(os.Interrupt)

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			_ = s.process.Kill()
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimOutput(s.stderr.String()))
		}
	})
	return s.stopErr
}

func (s *stream) Close() error {
	err := s.Pause()
	if s.stdout != nil {
		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && err == nil {
			err = closeErr
		}
	}
	return err
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimOutput(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
