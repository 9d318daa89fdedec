package audio

import (
	"sync/atomic"

	"echomic/internal/ringbuf"
)

// callbackSink runs on the device thread: convert, down-mix, one TryWrite.
type callbackSink struct {
	ring     *ringbuf.Buffer
	channels int
	scratch  []float32

	chunks  atomic.Uint64
	dropped atomic.Uint64
	panics  atomic.Uint64
}

func newCallbackSink(ring *ringbuf.Buffer, channels int, framesHint int) *callbackSink {
	if channels < 1 {
		channels = 1
	}
	return &callbackSink{
		ring:     ring,
		channels: channels,
		scratch:  make([]float32, framesHint),
	}
}

func (s *callbackSink) WriteFloat32(data []float32) {
	defer s.guard()
	if s.channels == 1 {
		s.push(data)
		return
	}
	s.push(downmix(s.frames(len(data)), data, s.channels, func(v float32) float32 { return v }))
}

func (s *callbackSink) WriteInt16(data []int16) {
	defer s.guard()
	s.push(downmix(s.frames(len(data)), data, s.channels, int16ToFloat))
}

func (s *callbackSink) WriteUint16(data []uint16) {
	defer s.guard()
	s.push(downmix(s.frames(len(data)), data, s.channels, uint16ToFloat))
}

func (s *callbackSink) push(chunk []float32) {
	s.chunks.Add(1)
	if !s.ring.TryWrite(chunk) {
		s.dropped.Add(1)
	}
}

// frames returns scratch space for one callback. It only allocates when a
// device delivers a larger buffer than any seen before.
func (s *callbackSink) frames(samples int) []float32 {
	n := samples / s.channels
	if cap(s.scratch) < n {
		s.scratch = make([]float32, n)
	}
	return s.scratch[:n]
}

func (s *callbackSink) guard() {
	if r := recover(); r != nil {
		s.panics.Add(1)
	}
}

func downmix[T float32 | int16 | uint16](dst []float32, src []T, channels int, conv func(T) float32) []float32 {
	if channels == 1 {
		for i := range dst {
			dst[i] = conv(src[i])
		}
		return dst
	}
	scale := 1 / float32(channels)
	for f := range dst {
		base := f * channels
		var sum float32
		for c := 0; c < channels; c++ {
			sum += conv(src[base+c])
		}
		dst[f] = sum * scale
	}
	return dst
}

func int16ToFloat(v int16) float32 {
	return float32(v) / 32768
}

func uint16ToFloat(v uint16) float32 {
	return (float32(v) - 32768) / 32768
}
