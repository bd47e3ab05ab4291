// SPDX-License-Identifier: MIT
package pitch

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// NSDFConfig tunes the NSDFEstimator.
type NSDFConfig struct {
	Floor      float64 // Lowest detectable pitch in Hz; also sets the frame length.
	Ceiling    float64 // Highest detectable pitch in Hz.
	SubWindows int     // Frames spread evenly over the input.
	Clarity    float64 // Minimum normalized peak height for a voiced frame.
	Silence    float64 // Frame peak below this fraction of the input peak is unvoiced.
}

// DefaultNSDFConfig returns the settings used when nothing is configured.
func DefaultNSDFConfig() NSDFConfig {
	return NSDFConfig{
		Floor:      75,
		Ceiling:    600,
		SubWindows: 4,
		Clarity:    0.6,
		Silence:    0.03,
	}
}

// NSDFEstimator estimates pitch with the normalized square difference
// function and McLeod's peak picking. The input is split into SubWindows
// frames of 3/Floor seconds, each frame is voiced or not, and the result is
// the median of the voiced frame frequencies.
//
// Scratch buffers are reused between calls, so an estimator must not be
// shared between goroutines.
type NSDFEstimator struct {
	cfg NSDFConfig

	signal []float64
	nsdf   []float64
	peaks  []int
	voiced []float64
}

var _ Estimator = (*NSDFEstimator)(nil)

// NewNSDFEstimator validates cfg and returns an estimator.
func NewNSDFEstimator(cfg NSDFConfig) (*NSDFEstimator, error) {
	if cfg.Floor <= 0 {
		return nil, fmt.Errorf("pitch floor must be positive, got %v", cfg.Floor)
	}
	if cfg.Ceiling <= cfg.Floor {
		return nil, fmt.Errorf("pitch ceiling %v must be above floor %v", cfg.Ceiling, cfg.Floor)
	}
	if cfg.SubWindows < 1 {
		return nil, fmt.Errorf("sub-window count must be at least 1, got %d", cfg.SubWindows)
	}
	if cfg.Clarity <= 0 || cfg.Clarity >= 1 {
		return nil, fmt.Errorf("clarity threshold must be in (0, 1), got %v", cfg.Clarity)
	}
	if cfg.Silence < 0 || cfg.Silence >= 1 {
		return nil, fmt.Errorf("silence threshold must be in [0, 1), got %v", cfg.Silence)
	}
	return &NSDFEstimator{
		cfg:    cfg,
		voiced: make([]float64, 0, cfg.SubWindows),
	}, nil
}

// Config returns the estimator settings.
func (e *NSDFEstimator) Config() NSDFConfig { return e.cfg }

// Estimate implements Estimator. An all-silent or unvoiced input yields
// NoEstimate with a nil error.
func (e *NSDFEstimator) Estimate(samples []float32, sampleRate float64) (Estimate, error) {
	if sampleRate <= 0 {
		return NoEstimate, fmt.Errorf("pitch: invalid sample rate %v", sampleRate)
	}

	minLag := int(math.Floor(sampleRate / e.cfg.Ceiling))
	if minLag < 1 {
		minLag = 1
	}
	frame := min(int(3*sampleRate/e.cfg.Floor), len(samples))
	if frame < 2*minLag+3 {
		return NoEstimate, fmt.Errorf("%w: %d samples, need %d", ErrWindowTooShort, len(samples), 2*minLag+3)
	}
	maxLag := min(int(math.Ceil(sampleRate/e.cfg.Floor)), frame/2)

	e.load(samples)
	globalPeak := peak(e.signal)
	if globalPeak == 0 {
		return Estimate{Hz: math.NaN(), Frames: e.cfg.SubWindows}, nil
	}

	e.voiced = e.voiced[:0]
	frames := e.cfg.SubWindows
	for i := range frames {
		start := 0
		if frames > 1 {
			start = i * (len(samples) - frame) / (frames - 1)
		}
		x := e.signal[start : start+frame]

		if peak(x) < e.cfg.Silence*globalPeak {
			continue
		}
		if hz, ok := e.frameFrequency(x, sampleRate, minLag, maxLag); ok {
			e.voiced = append(e.voiced, hz)
		}
	}

	if len(e.voiced) == 0 {
		return Estimate{Hz: math.NaN(), Frames: frames}, nil
	}
	return Estimate{Hz: median(e.voiced), Voiced: len(e.voiced), Frames: frames}, nil
}

// load widens samples to float64, zeroing anything non-finite.
func (e *NSDFEstimator) load(samples []float32) {
	if cap(e.signal) < len(samples) {
		e.signal = make([]float64, len(samples))
	}
	e.signal = e.signal[:len(samples)]
	for i, v := range samples {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			f = 0
		}
		e.signal[i] = f
	}
}

// frameFrequency returns the pitch of one frame, or false if the frame is
// not clearly periodic within [minLag, maxLag].
func (e *NSDFEstimator) frameFrequency(x []float64, sampleRate float64, minLag, maxLag int) (float64, bool) {
	n := maxLag + 2
	if n > len(x) {
		n = len(x)
	}
	if cap(e.nsdf) < n {
		e.nsdf = make([]float64, n)
	}
	nsdf := e.nsdf[:n]

	// m(tau) = sum over the overlap of x[j]^2 + x[j+tau]^2, updated
	// incrementally as the overlap shrinks.
	w := len(x)
	m := 2 * floats.Dot(x, x)
	if m == 0 {
		return 0, false
	}
	for tau := range n {
		if tau > 0 {
			m -= x[tau-1]*x[tau-1] + x[w-tau]*x[w-tau]
		}
		if m <= 0 {
			nsdf[tau] = 0
			continue
		}
		nsdf[tau] = 2 * floats.Dot(x[:w-tau], x[tau:]) / m
	}

	peaks := e.keyMaxima(nsdf)
	if len(peaks) == 0 {
		return 0, false
	}

	highest := 0.0
	for _, p := range peaks {
		highest = max(highest, nsdf[p])
	}
	best := -1
	for _, p := range peaks {
		if nsdf[p] >= 0.9*highest {
			best = p
			break
		}
	}
	// A period shorter than minLag is above the ceiling, not a sub-octave.
	if best < minLag || nsdf[best] < e.cfg.Clarity {
		return 0, false
	}

	lag := float64(best) + parabolicOffset(nsdf[best-1], nsdf[best], nsdf[best+1])
	if lag <= 0 {
		return 0, false
	}
	hz := sampleRate / lag
	if hz < e.cfg.Floor || hz > e.cfg.Ceiling {
		return 0, false
	}
	return hz, true
}

// keyMaxima records the highest point of every positive lobe after the first
// negative excursion. Lobes still rising at the end of the range are ignored.
// NaN counts as not positive, so every loop advances.
func (e *NSDFEstimator) keyMaxima(nsdf []float64) []int {
	e.peaks = e.peaks[:0]
	n := len(nsdf)

	tau := 1
	for tau < n && nsdf[tau] > 0 {
		tau++
	}
	for tau < n {
		for tau < n && !(nsdf[tau] > 0) {
			tau++
		}
		if tau >= n {
			break
		}
		best := tau
		for tau < n && nsdf[tau] > 0 {
			if nsdf[tau] > nsdf[best] {
				best = tau
			}
			tau++
		}
		if best < n-1 {
			e.peaks = append(e.peaks, best)
		}
	}
	return e.peaks
}

// parabolicOffset returns the vertex offset in (-1, 1) of the parabola
// through three equally spaced points centred on b.
func parabolicOffset(a, b, c float64) float64 {
	d := a - 2*b + c
	if d == 0 {
		return 0
	}
	off := 0.5 * (a - c) / d
	return max(-1, min(1, off))
}

// peak is the largest absolute sample, the L-infinity norm.
func peak(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Norm(x, math.Inf(1))
}

// median sorts v in place. Even lengths average the two middle values.
func median(v []float64) float64 {
	slices.Sort(v)
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}
