// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"pitchscope/internal/analysis"
	"pitchscope/internal/pitch"
	"pitchscope/internal/spectrogram"
)

// ErrBufferSizeMismatch is reported when the output buffer handed to the
// callback is not the same length as the input.
var ErrBufferSizeMismatch = errors.New("audio: output buffer size does not match input")

// Logger receives diagnostics from the audio callback. Implementations must
// not block; log.Async is the intended one.
type Logger interface {
	Debugf(format string, v ...any)
	Warnf(format string, v ...any)
}

type discardLogger struct{}

func (discardLogger) Debugf(string, ...any) {}
func (discardLogger) Warnf(string, ...any)  {}

// CaptureOptions wires a Capture to the state it updates. All pointer fields
// except Log and Clock are required.
type CaptureOptions struct {
	Transform      *analysis.Transform
	Spectrogram    *spectrogram.Buffer
	Window         *pitch.Window
	History        *pitch.History
	Estimator      pitch.Estimator
	Gain           *Gain
	IntervalBlocks int              // Blocks between pitch estimates.
	Log            Logger           // Defaults to discarding everything.
	Clock          func() time.Time // Defaults to time.Now.
}

// Capture is the per-block processing run from the audio callback: monitor
// pass-through, one spectrogram column, the sliding pitch window and a
// periodic pitch estimate. Process must be called from a single goroutine.
type Capture struct {
	transform   *analysis.Transform
	spectrogram *spectrogram.Buffer
	window      *pitch.Window
	history     *pitch.History
	estimator   pitch.Estimator
	gain        *Gain
	interval    uint64
	log         Logger
	now         func() time.Time

	// Scratch reused on every block.
	column  []float64
	samples []float32

	blocks     atomic.Uint64
	mismatches atomic.Uint64
	failures   atomic.Uint64
}

// NewCapture checks opts and preallocates the per-block scratch buffers.
func NewCapture(opts CaptureOptions) (*Capture, error) {
	switch {
	case opts.Transform == nil:
		return nil, fmt.Errorf("capture: transform is required")
	case opts.Spectrogram == nil:
		return nil, fmt.Errorf("capture: spectrogram buffer is required")
	case opts.Window == nil:
		return nil, fmt.Errorf("capture: pitch window is required")
	case opts.History == nil:
		return nil, fmt.Errorf("capture: pitch history is required")
	case opts.Estimator == nil:
		return nil, fmt.Errorf("capture: pitch estimator is required")
	case opts.Gain == nil:
		return nil, fmt.Errorf("capture: gain is required")
	case opts.IntervalBlocks < 1:
		return nil, fmt.Errorf("capture: interval must be at least 1 block, got %d", opts.IntervalBlocks)
	}
	if opts.Transform.Bins() != opts.Spectrogram.Bins() {
		return nil, fmt.Errorf("capture: transform has %d bins, spectrogram %d",
			opts.Transform.Bins(), opts.Spectrogram.Bins())
	}

	c := &Capture{
		transform:   opts.Transform,
		spectrogram: opts.Spectrogram,
		window:      opts.Window,
		history:     opts.History,
		estimator:   opts.Estimator,
		gain:        opts.Gain,
		interval:    uint64(opts.IntervalBlocks),
		log:         opts.Log,
		now:         opts.Clock,
		column:      make([]float64, opts.Transform.Bins()),
		samples:     make([]float32, 0, opts.Window.Cap()),
	}
	if c.log == nil {
		c.log = discardLogger{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Process handles one block. out is the monitor output and may be nil when
// the stream has no output channels. Process never panics and never blocks.
func (c *Capture) Process(in, out []float32) {
	n := c.blocks.Add(1)

	if out != nil {
		if len(out) == len(in) {
			copy(out, in)
		} else {
			c.mismatches.Add(1)
			c.log.Warnf("%v: in=%d out=%d", ErrBufferSizeMismatch, len(in), len(out))
		}
	}

	c.transform.Column(c.column, in, c.gain.Value())
	c.spectrogram.Push(c.column)

	c.window.Append(in)

	if n%c.interval == 0 {
		c.samples = c.window.Samples(c.samples)
		est := c.estimate(c.samples)
		c.history.Append(pitch.Sample{Time: c.now(), Hz: est.Hz})
	}
}

// estimate runs the estimator, turning errors and panics into NoEstimate.
func (c *Capture) estimate(samples []float32) (est pitch.Estimate) {
	defer func() {
		if r := recover(); r != nil {
			c.failures.Add(1)
			c.log.Warnf("pitch estimator panicked: %v", r)
			est = pitch.NoEstimate
		}
	}()

	var err error
	est, err = c.estimator.Estimate(samples, c.transform.SampleRate())
	if err != nil {
		c.failures.Add(1)
		c.log.Debugf("pitch estimate failed: %v", err)
		return pitch.NoEstimate
	}
	return est
}

// Blocks returns the number of blocks processed.
func (c *Capture) Blocks() uint64 { return c.blocks.Load() }

// Mismatches returns how many blocks had an output buffer of the wrong size.
func (c *Capture) Mismatches() uint64 { return c.mismatches.Load() }

// Failures returns how many pitch estimates errored or panicked.
func (c *Capture) Failures() uint64 { return c.failures.Load() }

// SampleRate returns the rate the capture was configured for.
func (c *Capture) SampleRate() float64 { return c.transform.SampleRate() }
