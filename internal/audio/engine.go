// SPDX-License-Identifier: MIT
/*
Package audio feeds live or recorded audio into the analysis pipeline.

Capture is the per-block work shared by every source. Engine drives it from a
PortAudio callback; FileSource replays a WAV file at real-time pace.

Thread Safety:
  - Capture.Process runs on the audio thread only
  - Gain is atomic; the spectrogram and pitch history lock for bounded copies
  - Scratch buffers are allocated up front, not in the callback
*/
package audio

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"pitchscope/internal/log"

	"github.com/gordonklaus/portaudio"
)

// Source delivers blocks to a Capture until closed.
type Source interface {
	Start() error
	Close() error
}

// EngineConfig selects the device and stream shape.
type EngineConfig struct {
	Device     int     // PortAudio index, config.DefaultDeviceID for the default input.
	SampleRate float64 // Hz.
	BlockSize  int     // Frames per callback.
	LowLatency bool    // Use the device's low input latency.
	Monitor    bool    // Echo input to the default output device.
}

// Engine is a mono PortAudio stream driving a Capture. PortAudio must be
// initialized before NewEngine and terminated after Close.
type Engine struct {
	cfg     EngineConfig
	capture *Capture

	inputDevice  *portaudio.DeviceInfo
	outputDevice *portaudio.DeviceInfo // nil when not monitoring.
	inputLatency time.Duration

	mu     sync.Mutex
	stream *portaudio.Stream
}

var _ Source = (*Engine)(nil)

// NewEngine resolves the devices for cfg. A missing output device disables
// monitoring with a warning instead of failing.
func NewEngine(cfg EngineConfig, capture *Capture) (*Engine, error) {
	if capture == nil {
		return nil, fmt.Errorf("engine: capture is required")
	}
	inputDevice, err := InputDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		capture:     capture,
		inputDevice: inputDevice,
	}
	if cfg.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}

	if cfg.Monitor {
		out, err := paDefaultOutputDeviceFunc()
		switch {
		case err != nil:
			log.Warnf("No output device for monitoring, continuing without pass-through: %v", err)
		case out == nil || out.MaxOutputChannels < 1:
			log.Warnf("Default output device has no channels, continuing without pass-through")
		default:
			e.outputDevice = out
		}
	}

	log.Infof("Input device: %s (%.0f Hz default, %.1f ms latency)",
		inputDevice.Name, inputDevice.DefaultSampleRate, e.inputLatency.Seconds()*1000)
	return e, nil
}

// DeviceName returns the resolved input device name.
func (e *Engine) DeviceName() string { return e.inputDevice.Name }

// Start opens and starts the stream. On failure nothing is left open.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream != nil {
		return nil
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   e.inputDevice,
			Channels: 1,
			Latency:  e.inputLatency,
		},
		FramesPerBuffer: e.cfg.BlockSize,
		SampleRate:      e.cfg.SampleRate,
	}

	var (
		stream *portaudio.Stream
		err    error
	)
	if e.outputDevice != nil {
		params.Output = portaudio.StreamDeviceParameters{
			Device:   e.outputDevice,
			Channels: 1,
			Latency:  e.outputDevice.DefaultLowOutputLatency,
		}
		stream, err = portaudio.OpenStream(params, e.processDuplex)
		if err != nil {
			log.Warnf("Monitoring stream on %s failed, continuing without pass-through: %v", e.outputDevice.Name, err)
			e.outputDevice = nil
			params.Output = portaudio.StreamDeviceParameters{}
		}
	}
	if e.outputDevice == nil {
		stream, err = portaudio.OpenStream(params, e.processInput)
	}
	if err != nil {
		return &DeviceError{Op: "open", Device: e.cfg.Device, Err: err}
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return &DeviceError{Op: "start", Device: e.cfg.Device, Err: err}
	}
	e.stream = stream
	return nil
}

// Close stops and releases the stream. Safe to call more than once and
// before Start.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return nil
	}
	stream := e.stream
	e.stream = nil

	stopErr := stream.Stop()
	closeErr := stream.Close()
	if stopErr != nil {
		return &DeviceError{Op: "stop", Device: e.cfg.Device, Err: stopErr}
	}
	if closeErr != nil {
		return &DeviceError{Op: "close", Device: e.cfg.Device, Err: closeErr}
	}
	return nil
}

// processDuplex and processInput are the PortAudio callbacks. They run on
// the host audio thread and must not allocate or block.
func (e *Engine) processDuplex(in, out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.capture.Process(in, out)
}

func (e *Engine) processInput(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.capture.Process(in, nil)
}
