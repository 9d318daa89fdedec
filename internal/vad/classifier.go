// Package vad splits 16 kHz audio into speech segments.
package vad

import "math"

// Classifier scores one frame with the probability that it contains speech.
type Classifier interface {
	Predict(frame []float32) float32
}

// EnergyClassifier maps frame loudness in dBFS through a logistic curve
// centred on ThresholdDB.
type EnergyClassifier struct {
	ThresholdDB float64
	// Slope is the dB distance that moves the probability from 0.5 to ~0.73.
	Slope float64
}

func NewEnergyClassifier() EnergyClassifier {
	return EnergyClassifier{ThresholdDB: -40, Slope: 3}
}

func (c EnergyClassifier) Predict(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	if rms == 0 {
		return 0
	}
	slope := c.Slope
	if slope <= 0 {
		slope = 1
	}
	db := 20 * math.Log10(rms)
	return float32(1 / (1 + math.Exp(-(db-c.ThresholdDB)/slope)))
}
