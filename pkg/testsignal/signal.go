// SPDX-License-Identifier: MIT

// Package testsignal generates deterministic float32 audio used by tests and
// benchmarks across the module.
package testsignal

import "math"

// Sine returns size samples of a sine at frequency Hz with the given peak
// amplitude, starting at phase zero.
func Sine(size int, sampleRate, frequency, amplitude float64) []float32 {
	return SineAt(size, 0, sampleRate, frequency, amplitude)
}

// SineAt is Sine starting at sample offset, so consecutive calls produce a
// phase-continuous signal when fed block by block.
func SineAt(size, offset int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(offset+i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// Harmonic returns a 440 Hz fundamental with its second and third harmonics.
func Harmonic(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// Silence returns size zero samples.
func Silence(size int) []float32 {
	return make([]float32, size)
}

// Blocks splits samples into consecutive blocks of blockSize, zero-padding
// the last one.
func Blocks(samples []float32, blockSize int) [][]float32 {
	var blocks [][]float32
	for start := 0; start < len(samples); start += blockSize {
		block := make([]float32, blockSize)
		copy(block, samples[start:])
		blocks = append(blocks, block)
	}
	return blocks
}

// PeakBin returns the index of the largest value in mags[start:end+1]. The
// range is clamped to the slice; an empty slice yields 0.
func PeakBin(mags []float64, start, end int) int {
	if len(mags) == 0 {
		return 0
	}
	if start < 0 {
		start = 0
	}
	if end >= len(mags) {
		end = len(mags) - 1
	}

	peak := start
	for bin := start + 1; bin <= end; bin++ {
		if mags[bin] > mags[peak] {
			peak = bin
		}
	}
	return peak
}
