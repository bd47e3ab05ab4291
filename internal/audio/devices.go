// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"pitchscope/internal/config"

	"github.com/gordonklaus/portaudio"
)

// Swapped out in tests so device lookup can run without a sound card.
var (
	paDevicesFunc             = portaudio.Devices
	paDefaultInputDeviceFunc  = portaudio.DefaultInputDevice
	paDefaultOutputDeviceFunc = portaudio.DefaultOutputDevice
)

var (
	// ErrDeviceUnavailable means the requested device index does not exist
	// or the host has no default input.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrNoInputChannels means the device exists but cannot record.
	ErrNoInputChannels = errors.New("device has no input channels")
)

// DeviceError describes a failure to find, open or start an audio device.
type DeviceError struct {
	Op     string // "lookup", "open", "start", "stop" or "close".
	Device int    // Requested index, config.DefaultDeviceID for the default.
	Err    error
}

func (e *DeviceError) Error() string {
	name := fmt.Sprintf("%d", e.Device)
	if e.Device == config.DefaultDeviceID {
		name = "default"
	}
	return fmt.Sprintf("audio device %s: %s: %v", name, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Device is a host audio device as shown to the user.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowInputLatency   time.Duration
	HighInputLatency  time.Duration
}

// IsInput reports whether the device can record.
func (d Device) IsInput() bool { return d.MaxInputChannels > 0 }

// Kind returns "Input", "Output" or "Input/Output".
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	}
	return "Unknown"
}

// HostDevices returns every device PortAudio reports, indexed by position.
// PortAudio must be initialized.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowInputLatency:   info.DefaultLowInputLatency,
			HighInputLatency:  info.DefaultHighInputLatency,
		}
	}
	return devices, nil
}

// InputDevices returns the devices that have at least one input channel.
func InputDevices() ([]Device, error) {
	all, err := HostDevices()
	if err != nil {
		return nil, err
	}
	return filterInputs(all), nil
}

func filterInputs(devices []Device) []Device {
	inputs := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.IsInput() {
			inputs = append(inputs, d)
		}
	}
	return inputs
}

// InputDevice resolves deviceID to a PortAudio device able to record.
// config.DefaultDeviceID selects the host default input. Failures are
// returned as *DeviceError.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	fail := func(err error) (*portaudio.DeviceInfo, error) {
		return nil, &DeviceError{Op: "lookup", Device: deviceID, Err: err}
	}

	if deviceID == config.DefaultDeviceID {
		device, err := paDefaultInputDeviceFunc()
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrDeviceUnavailable, err))
		}
		if device == nil || device.MaxInputChannels < 1 {
			return fail(ErrNoInputChannels)
		}
		return device, nil
	}

	devices, err := paDevicesFunc()
	if err != nil {
		return fail(err)
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return fail(fmt.Errorf("%w: invalid device ID %d", ErrDeviceUnavailable, deviceID))
	}
	if devices[deviceID].MaxInputChannels < 1 {
		return fail(fmt.Errorf("%w: %q does not support input", ErrNoInputChannels, devices[deviceID].Name))
	}
	return devices[deviceID], nil
}

// ListDevices writes a human-readable device listing to w. When inputsOnly
// is set, devices without input channels are skipped.
func ListDevices(w io.Writer, inputsOnly bool) error {
	devices, err := HostDevices()
	if err != nil {
		return err
	}
	if inputsOnly {
		devices = filterInputs(devices)
	}
	return writeDeviceList(w, devices)
}

func writeDeviceList(w io.Writer, devices []Device) error {
	if _, err := fmt.Fprintf(w, "\nAvailable Audio Devices\n\n"); err != nil {
		return err
	}
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No devices found")
		return err
	}
	for _, d := range devices {
		_, err := fmt.Fprintf(w,
			"[%d] %s (%s)\n"+
				"    Input channels: %d, Output channels: %d\n"+
				"    Default sample rate: %.0f Hz\n"+
				"    Latency: Low=%.2fms, High=%.2fms\n\n",
			d.ID, d.Name, d.Kind(),
			d.MaxInputChannels, d.MaxOutputChannels,
			d.DefaultSampleRate,
			d.LowInputLatency.Seconds()*1000,
			d.HighInputLatency.Seconds()*1000)
		if err != nil {
			return err
		}
	}
	return nil
}
