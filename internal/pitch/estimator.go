// SPDX-License-Identifier: MIT

// Package pitch turns recent raw audio into a smoothed fundamental-frequency
// estimate and keeps the resulting time series.
package pitch

import (
	"errors"
	"math"
)

// ErrWindowTooShort is returned when the sample buffer cannot hold a single
// analysis frame for the configured pitch range.
var ErrWindowTooShort = errors.New("pitch: window too short for analysis")

// Estimate is the outcome of one estimator run.
type Estimate struct {
	Hz     float64 // Median of voiced frame estimates; NaN when Voiced is 0.
	Voiced int     // Number of frames that passed the voicing checks.
	Frames int     // Number of frames analysed.
}

// NoEstimate is the result when no frame was voiced.
var NoEstimate = Estimate{Hz: math.NaN()}

// OK reports whether the estimate carries a pitch.
func (e Estimate) OK() bool {
	return e.Voiced > 0 && e.Hz > 0 && !math.IsNaN(e.Hz)
}

// Estimator derives a single fundamental frequency from a window of samples.
// Implementations may keep scratch state and need not be safe for concurrent
// use.
type Estimator interface {
	Estimate(samples []float32, sampleRate float64) (Estimate, error)
}
