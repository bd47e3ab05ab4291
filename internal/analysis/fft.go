// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"pitchscope/internal/log"
	"pitchscope/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the window applied to each block before the FFT.
type WindowFunc int

const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
	Rectangular
)

var windowNames = map[WindowFunc]string{
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
	Rectangular:     "rectangular",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. Unknown
// names return Hann and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// Transform turns one audio block into one spectrogram column: window over
// the newest min(block, fftSize) samples, zero-padded real FFT of fftSize
// points, magnitude scaled by gain/fftSize and clamped to [0, 1]. Non-finite
// samples are treated as silence.
//
// A Transform is owned by the audio callback and is not safe for concurrent
// use. All buffers are allocated up front; Column does not allocate unless
// the block length changes.
type Transform struct {
	fft        *fourier.FFT
	fftSize    int
	sampleRate float64
	windowType WindowFunc

	window []float64    // Coefficients for the current block length.
	input  []float64    // Windowed, zero-padded FFT input.
	coeffs []complex128 // fftSize/2 + 1 complex bins.
}

// NewTransform creates a Transform for blocks of blockSize samples.
func NewTransform(fftSize, blockSize int, sampleRate float64, windowType WindowFunc) (*Transform, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	log.Debugf("analysis: transform fft=%d block=%d rate=%.0f window=%s",
		fftSize, blockSize, sampleRate, windowType)

	return &Transform{
		fft:        fourier.NewFFT(fftSize),
		fftSize:    fftSize,
		sampleRate: sampleRate,
		windowType: windowType,
		window:     windowCoefficients(min(blockSize, fftSize), windowType),
		input:      make([]float64, fftSize),
		coeffs:     make([]complex128, fftSize/2+1),
	}, nil
}

// Column writes the scaled magnitude spectrum of block into dst, which must
// hold Bins() values. Blocks longer than the FFT keep only their newest
// fftSize samples; shorter blocks are zero-padded.
func (t *Transform) Column(dst []float64, block []float32, gain float64) {
	if len(block) > t.fftSize {
		block = block[len(block)-t.fftSize:]
	}
	if len(block) != len(t.window) {
		t.window = windowCoefficients(len(block), t.windowType)
	}

	for i, v := range block {
		x := float64(v)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			x = 0
		}
		t.input[i] = x * t.window[i]
	}
	clear(t.input[len(block):])

	t.fft.Coefficients(t.coeffs, t.input)

	scale := gain / float64(t.fftSize)
	for i, c := range t.coeffs[:len(dst)] {
		dst[i] = clamp01(cmplx.Abs(c) * scale)
	}
}

// Bins is the number of values Column produces.
func (t *Transform) Bins() int {
	return len(t.coeffs)
}

// FrequencyForBin returns the center frequency of bin i: i * sampleRate / fftSize.
func (t *Transform) FrequencyForBin(i int) float64 {
	if i < 0 || i >= len(t.coeffs) {
		return 0
	}
	return float64(i) * t.sampleRate / float64(t.fftSize)
}

// FFTSize returns the number of FFT points.
func (t *Transform) FFTSize() int {
	return t.fftSize
}

// SampleRate returns the configured sample rate in Hz.
func (t *Transform) SampleRate() float64 {
	return t.sampleRate
}

// windowCoefficients returns n coefficients of the selected window. The gonum
// window functions scale a sequence in place, so they start from ones.
func windowCoefficients(n int, windowType WindowFunc) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	if n < 2 {
		return coeffs
	}

	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Rectangular:
	default:
		log.Warnf("analysis: unknown window function %d, defaulting to hann", windowType)
		window.Hann(coeffs)
	}
	return coeffs
}

// clamp01 maps NaN to 0.
func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
