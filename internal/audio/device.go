package audio

import (
	"errors"
	"fmt"
)

var (
	ErrNoInputDevice     = errors.New("no input device available")
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	ErrStreamBuild       = errors.New("failed to build input stream")
	ErrCaptureActive     = errors.New("capture already running")
	ErrNotCapturing      = errors.New("capture is not running")
)

// SampleFormat is the native sample encoding a device delivers.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatFloat32
	FormatInt16
	FormatUint16
	FormatInt32
	FormatUint8
)

func (f SampleFormat) String() string {
	switch f {
	case FormatFloat32:
		return "f32"
	case FormatInt16:
		return "i16"
	case FormatUint16:
		return "u16"
	case FormatInt32:
		return "i32"
	case FormatUint8:
		return "u8"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Supported reports whether capture can normalize this format.
func (f SampleFormat) Supported() bool {
	return f == FormatFloat32 || f == FormatInt16 || f == FormatUint16
}

// ParseSampleFormat maps config strings such as "f32" or "int16" to a format.
func ParseSampleFormat(value string) (SampleFormat, error) {
	switch value {
	case "f32", "float32":
		return FormatFloat32, nil
	case "i16", "int16", "s16":
		return FormatInt16, nil
	case "u16", "uint16":
		return FormatUint16, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
	}
}

// StreamConfig is the rate, channel count and format a stream runs at.
type StreamConfig struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
}

// Host resolves the platform's default input device.
type Host interface {
	DefaultInput() (Device, error)
}

// Device is an input device that can open a callback-driven stream.
type Device interface {
	Name() string
	DefaultConfig() (StreamConfig, error)
	OpenInput(cfg StreamConfig, sink Sink) (Stream, error)
}

// Stream is an open device stream. Pause must not return until the device
// has stopped invoking the sink.
type Stream interface {
	Play() error
	Pause() error
	Close() error
}

// Sink receives interleaved sample chunks from the device's real-time
// thread. Exactly one method matching the stream format is called per chunk.
// Implementations must not block.
type Sink interface {
	WriteFloat32(data []float32)
	WriteInt16(data []int16)
	WriteUint16(data []uint16)
}
