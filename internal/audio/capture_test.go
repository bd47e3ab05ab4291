// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"pitchscope/internal/analysis"
	"pitchscope/internal/config"
	"pitchscope/internal/notes"
	"pitchscope/internal/pitch"
	"pitchscope/internal/spectrogram"
	"pitchscope/pkg/testsignal"
)

const (
	testSampleRate = 44100.0
	testBlockSize  = 1024
)

type recordingLogger struct {
	mu     sync.Mutex
	warns  []string
	debugs []string
}

func (l *recordingLogger) Debugf(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, fmt.Sprintf(format, v...))
}

func (l *recordingLogger) Warnf(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, v...))
}

// stepClock advances by one block period on every call.
func stepClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * 23 * time.Millisecond)
	}
}

type estimatorFunc func([]float32, float64) (pitch.Estimate, error)

func (f estimatorFunc) Estimate(s []float32, sr float64) (pitch.Estimate, error) { return f(s, sr) }

type fixture struct {
	capture     *Capture
	spectrogram *spectrogram.Buffer
	history     *pitch.History
	gain        *Gain
	log         *recordingLogger
}

func newFixture(t *testing.T, est pitch.Estimator, gain float64) *fixture {
	t.Helper()
	cfg := config.Default()

	transform, err := analysis.NewTransform(cfg.Spectrogram.FFTSize, testBlockSize, testSampleRate, analysis.Hann)
	if err != nil {
		t.Fatal(err)
	}
	spectro, err := spectrogram.New(transform.Bins(), cfg.NBlocks())
	if err != nil {
		t.Fatal(err)
	}
	if est == nil {
		est, err = pitch.NewNSDFEstimator(pitch.DefaultNSDFConfig())
		if err != nil {
			t.Fatal(err)
		}
	}

	f := &fixture{
		spectrogram: spectro,
		history:     pitch.NewHistory(cfg.NBlocks()),
		gain:        NewGain(gain, cfg.Gain.Min, cfg.Gain.Max),
		log:         &recordingLogger{},
	}
	f.capture, err = NewCapture(CaptureOptions{
		Transform:      transform,
		Spectrogram:    spectro,
		Window:         pitch.NewWindow(cfg.PitchWindowSize()),
		History:        f.history,
		Estimator:      est,
		Gain:           f.gain,
		IntervalBlocks: cfg.Pitch.IntervalBlocks,
		Log:            f.log,
		Clock:          stepClock(time.Unix(1700000000, 0)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func maxValue(s *spectrogram.Snapshot) float64 {
	m := 0.0
	for _, row := range s.Data {
		for _, v := range row {
			m = max(m, v)
		}
	}
	return m
}

func TestCaptureSilence(t *testing.T) {
	f := newFixture(t, nil, 10)
	silence := testsignal.Silence(testBlockSize)
	for range 50 {
		f.capture.Process(silence, nil)
	}

	snap := f.spectrogram.Snapshot()
	if got := len(snap.Data[0]); got != 215 {
		t.Errorf("columns = %d, want 215", got)
	}
	if m := maxValue(snap); m > 1e-9 {
		t.Errorf("max intensity = %v, want ~0", m)
	}

	history := f.history.Snapshot()
	if len(history) != 10 {
		t.Fatalf("history length = %d, want 10", len(history))
	}
	for i, s := range history {
		if !math.IsNaN(s.Hz) || s.Valid() {
			t.Errorf("sample %d = %v, want NaN", i, s.Hz)
		}
	}
	if f.capture.Blocks() != 50 {
		t.Errorf("Blocks = %d, want 50", f.capture.Blocks())
	}
}

func TestCaptureGainRaisesIntensity(t *testing.T) {
	f := newFixture(t, nil, 10)
	signal := testsignal.Sine(testBlockSize*20, testSampleRate, 440, 0.01)
	blocks := testsignal.Blocks(signal, testBlockSize)

	for _, b := range blocks[:10] {
		f.capture.Process(b, nil)
	}
	snap := f.spectrogram.Snapshot()
	last := len(snap.Data[0]) - 1
	low := snap.Column(last)

	f.gain.Set(100)
	for _, b := range blocks[10:] {
		f.capture.Process(b, nil)
	}
	snap = f.spectrogram.Snapshot()
	high := snap.Column(last)

	peak := testsignal.PeakBin(low, 1, len(low)-1)
	if low[peak] <= 0 || low[peak] >= 1 {
		t.Fatalf("gain 10 peak = %v, want strictly inside (0, 1)", low[peak])
	}
	if high[peak] <= low[peak] {
		t.Errorf("gain 100 peak %v not above gain 10 peak %v", high[peak], low[peak])
	}

	// Columns written before the change keep their intensity.
	old := snap.Column(last - 10)
	for i := range low {
		if old[i] != low[i] {
			t.Fatalf("bin %d of an earlier column changed: %v -> %v", i, low[i], old[i])
		}
	}
}

func TestCapturePassThrough(t *testing.T) {
	f := newFixture(t, nil, 10)
	in := testsignal.Sine(testBlockSize, testSampleRate, 440, 0.5)
	out := make([]float32, testBlockSize)

	f.capture.Process(in, out)

	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if f.capture.Mismatches() != 0 {
		t.Errorf("Mismatches = %d, want 0", f.capture.Mismatches())
	}
}

func TestCaptureBufferSizeMismatch(t *testing.T) {
	f := newFixture(t, nil, 10)
	in := testsignal.Sine(testBlockSize, testSampleRate, 440, 0.5)
	out := make([]float32, testBlockSize/2)

	f.capture.Process(in, out)

	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v, want untouched", i, v)
		}
	}
	if f.capture.Mismatches() != 1 {
		t.Errorf("Mismatches = %d, want 1", f.capture.Mismatches())
	}
	if len(f.log.warns) != 1 || !strings.Contains(f.log.warns[0], ErrBufferSizeMismatch.Error()) {
		t.Errorf("warnings = %q", f.log.warns)
	}
	// The rest of the block is still processed.
	if f.spectrogram.Pushes() != 1 {
		t.Errorf("Pushes = %d, want 1", f.spectrogram.Pushes())
	}
}

func TestCaptureEstimatesEveryInterval(t *testing.T) {
	calls := 0
	est := estimatorFunc(func(s []float32, sr float64) (pitch.Estimate, error) {
		calls++
		if sr != testSampleRate {
			t.Errorf("sample rate = %v", sr)
		}
		return pitch.Estimate{Hz: 200, Voiced: 1, Frames: 1}, nil
	})
	f := newFixture(t, est, 10)
	for range 12 {
		f.capture.Process(testsignal.Silence(testBlockSize), nil)
	}

	if calls != 2 {
		t.Errorf("estimator calls = %d, want 2", calls)
	}
	history := f.history.Snapshot()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if !history[1].Time.After(history[0].Time) {
		t.Errorf("timestamps not increasing: %v, %v", history[0].Time, history[1].Time)
	}
}

func TestCaptureWindowGrowsToCapacity(t *testing.T) {
	var lengths []int
	est := estimatorFunc(func(s []float32, _ float64) (pitch.Estimate, error) {
		lengths = append(lengths, len(s))
		return pitch.NoEstimate, nil
	})
	f := newFixture(t, est, 10)
	for range 20 {
		f.capture.Process(testsignal.Silence(testBlockSize), nil)
	}

	want := []int{5 * testBlockSize, 10 * testBlockSize, 13230, 13230}
	if fmt.Sprint(lengths) != fmt.Sprint(want) {
		t.Errorf("window lengths = %v, want %v", lengths, want)
	}
}

func TestCaptureEstimatorFailures(t *testing.T) {
	tests := []struct {
		name string
		est  estimatorFunc
	}{
		{"error", func([]float32, float64) (pitch.Estimate, error) {
			return pitch.Estimate{Hz: 300}, errors.New("boom")
		}},
		{"panic", func([]float32, float64) (pitch.Estimate, error) {
			panic("estimator bug")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.est, 10)
			for range 5 {
				f.capture.Process(testsignal.Silence(testBlockSize), nil)
			}

			latest, ok := f.history.Latest()
			if !ok {
				t.Fatal("no history sample recorded")
			}
			if latest.Valid() {
				t.Errorf("sample = %v, want invalid", latest.Hz)
			}
			if f.capture.Failures() != 1 {
				t.Errorf("Failures = %d, want 1", f.capture.Failures())
			}
		})
	}
}

func TestCaptureTracksSine(t *testing.T) {
	f := newFixture(t, nil, 10)
	for i := range 25 {
		f.capture.Process(testsignal.SineAt(testBlockSize, i*testBlockSize, testSampleRate, 440, 0.5), nil)
	}

	latest, ok := f.history.Latest()
	if !ok || math.Abs(latest.Hz-440) > 3 {
		t.Errorf("latest pitch = %+v, want ~440 Hz", latest)
	}
	if name := notes.Name(latest.Hz); name != "A4" {
		t.Errorf("latest note = %q, want A4", name)
	}
}

func TestCaptureNonFiniteBlocks(t *testing.T) {
	f := newFixture(t, nil, 10)
	blocks := make([][]float32, 25)
	for i := range blocks {
		blocks[i] = testsignal.SineAt(testBlockSize, i*testBlockSize, testSampleRate, 440, 0.5)
	}
	blocks[3][10] = float32(math.NaN())
	blocks[7][0] = float32(math.Inf(1))
	blocks[12][500] = float32(math.Inf(-1))
	blocks[20][1023] = float32(math.NaN())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, b := range blocks {
			f.capture.Process(b, nil)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Process did not return for blocks with non-finite samples")
	}

	snap := f.spectrogram.Snapshot()
	for bin, row := range snap.Data {
		for col, v := range row {
			if math.IsNaN(v) || v < 0 || v > 1 {
				t.Fatalf("bin %d column %d = %v outside [0, 1]", bin, col, v)
			}
		}
	}

	latest, ok := f.history.Latest()
	if !ok || math.Abs(latest.Hz-440) > 3 {
		t.Errorf("latest pitch = %+v, want ~440 Hz", latest)
	}
	if name := notes.Name(latest.Hz); name != "A4" {
		t.Errorf("latest note = %q, want A4", name)
	}
	if f.capture.Failures() != 0 {
		t.Errorf("Failures = %d, want 0", f.capture.Failures())
	}
}

func TestNewCaptureValidation(t *testing.T) {
	if _, err := NewCapture(CaptureOptions{}); err == nil {
		t.Error("expected error for empty options")
	}

	transform, _ := analysis.NewTransform(1024, 1024, testSampleRate, analysis.Hann)
	wrongBins, _ := spectrogram.New(10, 10)
	est, _ := pitch.NewNSDFEstimator(pitch.DefaultNSDFConfig())
	_, err := NewCapture(CaptureOptions{
		Transform:      transform,
		Spectrogram:    wrongBins,
		Window:         pitch.NewWindow(100),
		History:        pitch.NewHistory(10),
		Estimator:      est,
		Gain:           NewGain(10, 1, 100),
		IntervalBlocks: 5,
	})
	if err == nil {
		t.Error("expected error for bin count mismatch")
	}
}

func TestCaptureHotPath(t *testing.T) {
	f := newFixture(t, nil, 10)
	silence := testsignal.Silence(testBlockSize)
	out := make([]float32, testBlockSize)
	for range 20 {
		f.capture.Process(silence, out)
	}

	allocs := testing.AllocsPerRun(100, func() {
		f.capture.Process(silence, out)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Process, got %.1f", allocs)
	}
}

func BenchmarkCaptureProcess(b *testing.B) {
	cfg := config.Default()
	transform, _ := analysis.NewTransform(1024, testBlockSize, testSampleRate, analysis.Hann)
	spectro, _ := spectrogram.New(transform.Bins(), cfg.NBlocks())
	est, _ := pitch.NewNSDFEstimator(pitch.DefaultNSDFConfig())
	c, _ := NewCapture(CaptureOptions{
		Transform:      transform,
		Spectrogram:    spectro,
		Window:         pitch.NewWindow(cfg.PitchWindowSize()),
		History:        pitch.NewHistory(cfg.NBlocks()),
		Estimator:      est,
		Gain:           NewGain(10, 1, 100),
		IntervalBlocks: cfg.Pitch.IntervalBlocks,
	})
	block := testsignal.Sine(testBlockSize, testSampleRate, 440, 0.5)

	b.ReportAllocs()
	for b.Loop() {
		c.Process(block, nil)
	}
}
