// Package portaudio opens the system default microphone through PortAudio.
package portaudio

import (
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"echomic/internal/audio"
)

// Host initializes PortAudio lazily and hands out the default input device.
type Host struct {
	format audio.SampleFormat

	mu          sync.Mutex
	initialized bool
}

// NewHost returns a host whose streams deliver the given format. PortAudio
// converts from the device's native format; it cannot deliver uint16.
func NewHost(format audio.SampleFormat) *Host {
	if format == audio.FormatUnknown {
		format = audio.FormatFloat32
	}
	return &Host{format: format}
}

func (h *Host) DefaultInput() (audio.Device, error) {
	h.mu.Lock()
	if !h.initialized {
		if err := pa.Initialize(); err != nil {
			h.mu.Unlock()
			return nil, fmt.Errorf("portaudio init failed: %w", err)
		}
		h.initialized = true
	}
	h.mu.Unlock()

	info, err := pa.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrNoInputDevice, err)
	}
	if info == nil || info.MaxInputChannels < 1 {
		return nil, audio.ErrNoInputDevice
	}
	return &device{info: info, format: h.format}, nil
}

// Close releases PortAudio if it was initialized.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.initialized {
		return nil
	}
	h.initialized = false
	return pa.Terminate()
}

type device struct {
	info   *pa.DeviceInfo
	format audio.SampleFormat
}

func (d *device) Name() string {
	return d.info.Name
}

func (d *device) DefaultConfig() (audio.StreamConfig, error) {
	if d.info.DefaultSampleRate <= 0 {
		return audio.StreamConfig{}, fmt.Errorf("device %q reports no default sample rate", d.info.Name)
	}
	return audio.StreamConfig{
		SampleRate: int(d.info.DefaultSampleRate),
		Channels:   1,
		Format:     d.format,
	}, nil
}

func (d *device) OpenInput(cfg audio.StreamConfig, sink audio.Sink) (audio.Stream, error) {
	params := pa.LowLatencyParameters(d.info, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)

	var callback any
	switch cfg.Format {
	case audio.FormatFloat32:
		callback = func(in []float32) { sink.WriteFloat32(in) }
	case audio.FormatInt16:
		callback = func(in []int16) { sink.WriteInt16(in) }
	default:
		return nil, fmt.Errorf("%w: portaudio cannot deliver %s", audio.ErrUnsupportedFormat, cfg.Format)
	}

	s, err := pa.OpenStream(params, callback)
	if err != nil {
		return nil, err
	}
	return &stream{s: s}, nil
}

type stream struct {
	s *pa.Stream
}

func (s *stream) Play() error  { return s.s.Start() }
func (s *stream) Pause() error { return s.s.Stop() }
func (s *stream) Close() error { return s.s.Close() }
