// Package resample converts captured audio to the 16 kHz rate the VAD and
// transcription providers expect.
package resample

import (
	"errors"
	"fmt"
	"math"
)

const (
	// TargetRate is the only output rate.
	TargetRate = 16000

	chunkSize    = 1024
	sincLen      = 256
	oversampling = 256
	cutoff       = 0.95
)

var ErrInvalidRate = errors.New("invalid sample rate")

// Resample converts mono samples from fromRate to TargetRate. Input already
// at TargetRate is returned as is. Each call starts from fresh filter state.
func Resample(samples []float32, fromRate int) ([]float32, error) {
	if fromRate <= 0 {
		return nil, fmt.Errorf("%w: %d Hz", ErrInvalidRate, fromRate)
	}
	if fromRate == TargetRate {
		return samples, nil
	}

	r := newSinc(fromRate, TargetRate)
	out := make([]float32, 0, len(samples)*TargetRate/fromRate+1)
	chunk := make([]float32, chunkSize)
	for start := 0; start < len(samples); start += chunkSize {
		n := copy(chunk, samples[start:min(start+chunkSize, len(samples))])
		clear(chunk[n:])

		produced := r.process(chunk)
		if n < chunkSize {
			// The padded tail would otherwise add output for samples that never existed.
			if want := n * TargetRate / fromRate; len(produced) > want {
				produced = produced[:want]
			}
		}
		out = append(out, produced...)
	}
	return out, nil
}

// sinc is a streaming windowed-sinc interpolator with a precomputed,
// oversampled kernel table. Output sample m sits at input position m*step.
type sinc struct {
	step   float64
	kernel [oversampling + 1][sincLen]float32

	history  []float32
	base     int64
	produced int64
	out      []float32
}

func newSinc(from, to int) *sinc {
	ratio := float64(to) / float64(from)
	fc := cutoff * math.Min(1, ratio)

	r := &sinc{step: float64(from) / float64(to)}
	const half = sincLen / 2
	for k := 0; k <= oversampling; k++ {
		frac := float64(k) / oversampling
		var row [sincLen]float64
		var sum float64
		for j := 0; j < sincLen; j++ {
			x := float64(j-half+1) - frac
			row[j] = fc * sincPi(fc*x) * window((x+half)/sincLen)
			sum += row[j]
		}
		for j := range row {
			r.kernel[k][j] = float32(row[j] / sum)
		}
	}
	return r
}

// process appends one chunk and returns every output sample whose full
// kernel support is now available. The returned slice is reused.
func (r *sinc) process(chunk []float32) []float32 {
	const half = sincLen / 2
	r.history = append(r.history, chunk...)
	end := r.base + int64(len(r.history))

	r.out = r.out[:0]
	for {
		pos := float64(r.produced) * r.step
		i0 := int64(math.Floor(pos))
		if i0+half >= end {
			break
		}
		r.out = append(r.out, r.interpolate(i0, pos-float64(i0)))
		r.produced++
	}

	keep := int64(math.Floor(float64(r.produced)*r.step)) - half + 1
	if drop := keep - r.base; drop > 0 {
		drop = min(drop, int64(len(r.history)))
		n := copy(r.history, r.history[drop:])
		r.history = r.history[:n]
		r.base += drop
	}
	return r.out
}

func (r *sinc) interpolate(i0 int64, frac float64) float32 {
	const half = sincLen / 2
	pos := frac * oversampling
	k := int(pos)
	t := float32(pos - float64(k))
	a, b := &r.kernel[k], &r.kernel[k+1]

	start := i0 - half + 1 - r.base
	var acc float32
	for j := 0; j < sincLen; j++ {
		idx := start + int64(j)
		if idx < 0 {
			continue
		}
		w := a[j] + t*(b[j]-a[j])
		acc += r.history[idx] * w
	}
	return acc
}

func sincPi(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// window is a squared 4-term Blackman-Harris window over t in [0, 1].
func window(t float64) float64 {
	const (
		a0 = 0.35875
		a1 = 0.48829
		a2 = 0.14128
		a3 = 0.01168
	)
	w := a0 - a1*math.Cos(2*math.Pi*t) + a2*math.Cos(4*math.Pi*t) - a3*math.Cos(6*math.Pi*t)
	return w * w
}
