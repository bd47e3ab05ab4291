// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"pitchscope/cmd"
	"pitchscope/internal/analysis"
	"pitchscope/internal/audio"
	"pitchscope/internal/config"
	"pitchscope/internal/display"
	"pitchscope/internal/log"
	"pitchscope/internal/notes"
	"pitchscope/internal/pitch"
	"pitchscope/internal/render"
	"pitchscope/internal/spectrogram"
	"pitchscope/internal/tui"
	"pitchscope/pkg/build"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
)

// Queue depth for diagnostics raised on the audio thread.
const asyncLogSize = 256

// main is the entry point. The program flow is divided into three phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands (list, pick)
//   - Build the pipeline and acquire the audio source
//
// 2. Concurrent Phase (Hot Path):
//   - Audio callback feeds the spectrogram and pitch history
//   - Render loop draws on its own ticker
//   - Terminal UI handles input and the gain slider
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or UI quit
//   - Stop the render loop and the source
//   - Release the audio device and flush logs
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}

	// One thread for the audio callback, one for rendering and UI.
	runtime.GOMAXPROCS(max(2, runtime.GOMAXPROCS(0)))

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if opts.Command == "" {
		return
	}

	cfg := opts.Config
	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}
	log.Debugf("Starting %s", build.Get())

	if err := execute(opts); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

// execute runs the selected command. Resources are released by defers so
// every exit path, including errors, cleans up.
func execute(opts *cmd.Options) error {
	cfg := opts.Config

	switch opts.Command {
	case cmd.CommandList:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout, opts.InputsOnly)

	case cmd.CommandPick:
		sel, err := pickDevice()
		if err != nil {
			if errors.Is(err, tui.ErrPickCancelled) {
				return nil
			}
			return err
		}
		cfg.Audio.InputDevice = sel.Device.ID
		cfg.Audio.SampleRate = sel.SampleRate
		cfg.Audio.InputFile = ""
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		log.Infof("Selected input device [%d] %s at %.0f Hz", sel.Device.ID, sel.Device.Name, sel.SampleRate)
	}

	return run(cfg)
}

func pickDevice() (tui.Selection, error) {
	if err := audio.Initialize(); err != nil {
		return tui.Selection{}, err
	}
	defer audio.Terminate()

	devices, err := audio.InputDevices()
	if err != nil {
		return tui.Selection{}, err
	}
	return tui.PickDevice(devices)
}

// pipeline is the shared state between the audio thread and the renderer.
type pipeline struct {
	spectrogram *spectrogram.Buffer
	history     *pitch.History
	gain        *audio.Gain
	capture     *audio.Capture
}

func newPipeline(cfg *config.Config, diag audio.Logger) (*pipeline, error) {
	windowType, err := analysis.ParseWindowFunc(cfg.Spectrogram.Window)
	if err != nil {
		return nil, err
	}
	transform, err := analysis.NewTransform(cfg.Spectrogram.FFTSize, cfg.Audio.BlockSize, cfg.Audio.SampleRate, windowType)
	if err != nil {
		return nil, err
	}
	spectro, err := spectrogram.New(cfg.FreqBins(), cfg.NBlocks())
	if err != nil {
		return nil, err
	}
	estimator, err := pitch.NewNSDFEstimator(pitch.NSDFConfig{
		Floor:      cfg.Pitch.FloorHz,
		Ceiling:    cfg.Pitch.CeilingHz,
		SubWindows: cfg.Pitch.SubWindows,
		Clarity:    cfg.Pitch.Clarity,
		Silence:    cfg.Pitch.Silence,
	})
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		spectrogram: spectro,
		history:     pitch.NewHistory(cfg.NBlocks()),
		gain:        audio.NewGain(cfg.Gain.Default, cfg.Gain.Min, cfg.Gain.Max),
	}
	p.capture, err = audio.NewCapture(audio.CaptureOptions{
		Transform:      transform,
		Spectrogram:    spectro,
		Window:         pitch.NewWindow(cfg.PitchWindowSize()),
		History:        p.history,
		Estimator:      estimator,
		Gain:           p.gain,
		IntervalBlocks: cfg.Pitch.IntervalBlocks,
		Log:            diag,
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Pipeline: %d-point FFT, %d bins of %.1f Hz x %d columns, pitch window %d samples every %d blocks",
		transform.FFTSize(), spectro.Bins(), transform.FrequencyForBin(1), spectro.Columns(),
		cfg.PitchWindowSize(), cfg.Pitch.IntervalBlocks)
	return p, nil
}

// run is the visualizer: acquire, run both loops, release.
func run(cfg *config.Config) error {
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	useTUI := !cfg.Display.Headless && isatty.IsTerminal(os.Stdout.Fd())
	if useTUI {
		// The UI owns the screen, so logs go to a file.
		logFile, err := os.OpenFile(cfg.Display.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(logFile)
		defer func() {
			log.SetOutput(os.Stderr)
			logFile.Close()
		}()
	}

	diag := log.NewAsync(asyncLogSize)
	defer diag.Close()

	p, err := newPipeline(cfg, diag)
	if err != nil {
		return err
	}

	source, sourceName, finished, err := openSource(cfg, p.capture)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			log.Errorf("Error closing audio source: %v", err)
		}
	}()

	var (
		surface   display.Surface
		tuiScreen *tui.Surface
	)
	if useTUI {
		tuiScreen = tui.NewSurface(ctx, tui.SurfaceOptions{
			Gain: p.gain,
			Slider: display.Slider{
				Label:   "Gain",
				Min:     cfg.Gain.Min,
				Max:     cfg.Gain.Max,
				Step:    cfg.Gain.Step,
				Default: cfg.Gain.Default,
			},
			MaxHz:  cfg.Display.MaxHz,
			Source: sourceName,
		})
		surface = tuiScreen
	} else {
		logSurface := display.NewLogSurface()
		defer logSurface.Close()
		surface = logSurface
	}

	renderer, err := render.NewRenderer(render.Options{
		Spectrogram: p.spectrogram,
		History:     p.history,
		Surface:     surface,
		Gain:        p.gain,
		Duration:    cfg.Spectrogram.Duration,
		SampleRate:  cfg.Audio.SampleRate,
		Interval:    cfg.Display.Interval,
	})
	if err != nil {
		return err
	}
	loop := render.NewLoop(renderer, cfg.Display.Interval)

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// CRITICAL: once the source starts, Capture.Process runs on the audio
	// thread until Close.
	if err := source.Start(); err != nil {
		return err
	}
	log.Infof("Capturing from %s", sourceName)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return loop.Run(gctx)
	})
	if tuiScreen != nil {
		g.Go(func() error {
			defer cancel()
			return tuiScreen.Run()
		})
	}
	if finished != nil && !useTUI {
		g.Go(func() error {
			select {
			case <-finished:
				cancel()
			case <-gctx.Done():
			}
			return nil
		})
	}

	err = g.Wait()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	log.Infof("Stopped after %d blocks, %d columns (%d buffer mismatches, %d failed estimates, %d frames)",
		p.capture.Blocks(), p.spectrogram.Pushes(), p.capture.Mismatches(), p.capture.Failures(), loop.Frames())
	if last, ok := p.history.Latest(); ok && last.Valid() {
		log.Infof("Last pitch: %.1f Hz (%s) at %s", last.Hz, notes.Name(last.Hz), last.Time.Format(time.TimeOnly))
	}
	return err
}

// openSource returns the WAV file source when configured, otherwise the
// PortAudio engine. finished is non-nil only for a file that ends.
func openSource(cfg *config.Config, capture *audio.Capture) (audio.Source, string, <-chan struct{}, error) {
	if cfg.Audio.InputFile != "" {
		src, err := audio.OpenFile(cfg.Audio.InputFile, capture, audio.FileOptions{
			BlockSize: cfg.Audio.BlockSize,
			Loop:      cfg.Audio.Loop,
		})
		if err != nil {
			return nil, "", nil, err
		}
		var finished <-chan struct{}
		if !cfg.Audio.Loop {
			finished = src.Done()
		}
		return src, cfg.Audio.InputFile, finished, nil
	}

	if err := audio.Initialize(); err != nil {
		return nil, "", nil, err
	}
	engine, err := audio.NewEngine(audio.EngineConfig{
		Device:     cfg.Audio.InputDevice,
		SampleRate: cfg.Audio.SampleRate,
		BlockSize:  cfg.Audio.BlockSize,
		LowLatency: cfg.Audio.LowLatency,
		Monitor:    cfg.Audio.Monitor,
	}, capture)
	if err != nil {
		audio.Terminate()
		return nil, "", nil, err
	}
	return &terminatingSource{Engine: engine}, engine.DeviceName(), nil, nil
}

// terminatingSource releases the PortAudio subsystem after the stream.
type terminatingSource struct {
	*audio.Engine
}

func (s *terminatingSource) Close() error {
	err := s.Engine.Close()
	if termErr := audio.Terminate(); err == nil {
		err = termErr
	}
	return err
}
