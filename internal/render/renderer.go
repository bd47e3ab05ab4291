// SPDX-License-Identifier: MIT

// Package render turns the shared spectrogram and pitch history into display
// frames on a fixed schedule, independent of the audio callback.
package render

import (
	"fmt"
	"time"

	"pitchscope/internal/display"
	applog "pitchscope/internal/log"
	"pitchscope/internal/notes"
	"pitchscope/internal/pitch"
	"pitchscope/internal/spectrogram"
)

// NoPitchLabel is shown when no valid pitch is visible.
var NoPitchLabel = fmt.Sprintf("Pitch: %s Hz (%s)", notes.NoPitch, notes.NoPitch)

// Options wires a Renderer. Gain and Clock are optional.
type Options struct {
	Spectrogram *spectrogram.Buffer
	History     *pitch.History
	Surface     display.Surface
	Gain        display.Control  // Shown in the title when set.
	Duration    time.Duration    // Visible scrollback.
	SampleRate  float64          // Sets the top of the frequency axis to Nyquist.
	Interval    time.Duration    // Render period, shown in the title.
	Clock       func() time.Time // Defaults to time.Now.
}

// Renderer builds one frame per Render call. All buffers are owned by the
// renderer and reused, so it is not safe for concurrent Render calls.
type Renderer struct {
	spectrogram *spectrogram.Buffer
	history     *pitch.History
	surface     display.Surface
	gain        display.Control
	duration    time.Duration
	nyquist     float64
	interval    time.Duration
	now         func() time.Time

	snap    *spectrogram.Snapshot
	samples []pitch.Sample
	xs, ys  []float64
}

// NewRenderer validates opts and preallocates the snapshot buffers.
func NewRenderer(opts Options) (*Renderer, error) {
	switch {
	case opts.Spectrogram == nil:
		return nil, fmt.Errorf("renderer: spectrogram buffer is required")
	case opts.History == nil:
		return nil, fmt.Errorf("renderer: pitch history is required")
	case opts.Surface == nil:
		return nil, fmt.Errorf("renderer: surface is required")
	case opts.Duration <= 0:
		return nil, fmt.Errorf("renderer: duration must be positive, got %s", opts.Duration)
	case opts.SampleRate <= 0:
		return nil, fmt.Errorf("renderer: sample rate must be positive, got %v", opts.SampleRate)
	}

	r := &Renderer{
		spectrogram: opts.Spectrogram,
		history:     opts.History,
		surface:     opts.Surface,
		gain:        opts.Gain,
		duration:    opts.Duration,
		nyquist:     opts.SampleRate / 2,
		interval:    opts.Interval,
		now:         opts.Clock,
		snap:        opts.Spectrogram.NewSnapshot(),
		samples:     make([]pitch.Sample, 0, opts.History.Cap()),
		xs:          make([]float64, 0, opts.History.Cap()),
		ys:          make([]float64, 0, opts.History.Cap()),
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Render snapshots shared state, maps it onto the visible window ending now
// and commits one frame. The time axis of both the image and the pitch
// points runs from 0 (now - duration) to duration (now) in seconds.
func (r *Renderer) Render() error {
	if err := r.spectrogram.SnapshotInto(r.snap); err != nil {
		return err
	}
	r.samples = r.history.SnapshotInto(r.samples)

	now := r.now()
	start := now.Add(-r.duration)

	r.surface.SetImage(display.Image{
		Data: r.snap.Data,
		Extent: display.Extent{
			XMin: 0,
			XMax: r.duration.Seconds(),
			YMin: 0,
			YMax: r.nyquist,
		},
	})

	r.xs, r.ys = r.xs[:0], r.ys[:0]
	for _, s := range r.samples {
		if !s.Valid() || s.Time.Before(start) || s.Time.After(now) {
			continue
		}
		r.xs = append(r.xs, s.Time.Sub(start).Seconds())
		r.ys = append(r.ys, s.Hz)
	}

	if len(r.ys) > 0 {
		latest := r.ys[len(r.ys)-1]
		r.surface.SetPitch(r.xs, r.ys)
		r.surface.SetLabel(fmt.Sprintf("Pitch: %.1f Hz (%s)", latest, notes.Name(latest)))
	} else {
		r.surface.SetPitch(nil, nil)
		r.surface.SetLabel(NoPitchLabel)
	}
	r.surface.SetTitle(r.title())

	if applog.Enabled(applog.LevelDebug) {
		applog.Debugf("Render: %d of %d pitch points visible", len(r.xs), len(r.samples))
	}
	if err := r.surface.Commit(); err != nil {
		return fmt.Errorf("failed to commit frame: %w", err)
	}
	return nil
}

func (r *Renderer) title() string {
	title := "Spectrogram"
	if r.gain != nil {
		title += fmt.Sprintf(" | Gain: %.0f", r.gain.Value())
	}
	if r.interval > 0 {
		title += fmt.Sprintf(" | Interval: %d ms", r.interval.Milliseconds())
	}
	return title
}
