// SPDX-License-Identifier: MIT
package testsignal

import (
	"math"
	"testing"
)

const testSampleRate = 44100

func TestSineZeroCrossings(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 4096, 44100, 440.0},
		{"Middle C", 4096, 44100, 261.63},
		{"High Sample Rate", 4096, 192000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sine(tt.size, tt.sampleRate, tt.frequency, 0.8)
			if len(got) != tt.size {
				t.Fatalf("len = %d, want %d", len(got), tt.size)
			}

			crossings := 0
			for i := 1; i < len(got); i++ {
				if (got[i-1] < 0) != (got[i] < 0) {
					crossings++
				}
			}

			expected := 2 * float64(tt.size) * tt.frequency / tt.sampleRate
			if math.Abs(float64(crossings)-expected) > 0.2*expected {
				t.Errorf("zero crossings = %d, expected about %.1f", crossings, expected)
			}
		})
	}
}

func TestSineAtIsPhaseContinuous(t *testing.T) {
	whole := Sine(2048, testSampleRate, 440, 1)
	second := SineAt(1024, 1024, testSampleRate, 440, 1)
	for i := range second {
		if second[i] != whole[1024+i] {
			t.Fatalf("sample %d = %v, want %v", i, second[i], whole[1024+i])
		}
	}
}

func TestHarmonicPeak(t *testing.T) {
	got := Harmonic(1024, testSampleRate)
	var peak float32
	for _, v := range got {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 || peak > 1 {
		t.Errorf("peak = %v, want (0, 1]", peak)
	}
}

func TestBlocksPadsTail(t *testing.T) {
	samples := make([]float32, 10)
	for i := range samples {
		samples[i] = 1
	}

	blocks := Blocks(samples, 4)
	if len(blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(blocks))
	}
	last := blocks[2]
	if last[0] != 1 || last[1] != 1 || last[2] != 0 || last[3] != 0 {
		t.Errorf("last block = %v, want [1 1 0 0]", last)
	}
}

func TestPeakBin(t *testing.T) {
	const size = 1024
	mags := make([]float64, size)
	for i := range mags {
		mags[i] = math.Exp(-0.01 * math.Pow(float64(i-size/4), 2))
	}

	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", mags, 0, size - 1, size / 4},
		{"Negative Start", mags, -10, size - 1, size / 4},
		{"Out of Range End", mags, 0, size * 2, size / 4},
		{"Empty Slice", nil, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeakBin(tt.mags, tt.start, tt.end); got != tt.expected {
				t.Errorf("PeakBin() = %d, want %d", got, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		PeakBin(mags, 0, size-1)
	})
	if allocs > 0 {
		t.Errorf("PeakBin allocated: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkSine(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		Sine(1024, testSampleRate, 440, 0.5)
	}
}
