// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"pitchscope/internal/config"

	"github.com/gordonklaus/portaudio"
)

func mockDevices(t *testing.T, infos []*portaudio.DeviceInfo, err error) {
	t.Helper()
	orig := paDevicesFunc
	t.Cleanup(func() { paDevicesFunc = orig })
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return infos, err
	}
}

func mockDefaultInput(t *testing.T, info *portaudio.DeviceInfo, err error) {
	t.Helper()
	orig := paDefaultInputDeviceFunc
	t.Cleanup(func() { paDefaultInputDeviceFunc = orig })
	paDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return info, err
	}
}

func testDeviceInfos() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 44100,
			DefaultLowInputLatency: 5 * time.Millisecond, DefaultHighInputLatency: 20 * time.Millisecond},
		{Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{Name: "USB Interface", MaxInputChannels: 4, MaxOutputChannels: 4, DefaultSampleRate: 96000},
	}
}

func TestHostDevices(t *testing.T) {
	mockDevices(t, testDeviceInfos(), nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
	}
	if devices[0].LowInputLatency != 5*time.Millisecond {
		t.Errorf("low latency = %v", devices[0].LowInputLatency)
	}
}

func TestHostDevicesError(t *testing.T) {
	mockDevices(t, nil, fmt.Errorf("mock error"))

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevices(t *testing.T) {
	mockDevices(t, testDeviceInfos(), nil)

	inputs, err := InputDevices()
	if err != nil {
		t.Fatal(err)
	}
	if len(inputs) != 2 || inputs[0].ID != 0 || inputs[1].ID != 2 {
		t.Errorf("inputs = %+v, want devices 0 and 2", inputs)
	}
}

func TestDeviceKind(t *testing.T) {
	tests := []struct {
		in, out int
		want    string
	}{
		{2, 0, "Input"},
		{0, 2, "Output"},
		{1, 1, "Input/Output"},
		{0, 0, "Unknown"},
	}
	for _, tt := range tests {
		d := Device{MaxInputChannels: tt.in, MaxOutputChannels: tt.out}
		if got := d.Kind(); got != tt.want {
			t.Errorf("Kind(%d in, %d out) = %q, want %q", tt.in, tt.out, got, tt.want)
		}
	}
}

func TestInputDevice(t *testing.T) {
	mockDevices(t, testDeviceInfos(), nil)
	mockDefaultInput(t, testDeviceInfos()[0], nil)

	t.Run("Default input device", func(t *testing.T) {
		dev, err := InputDevice(config.DefaultDeviceID)
		if err != nil {
			t.Fatal(err)
		}
		if dev.Name != "Built-in Microphone" {
			t.Errorf("default device = %q", dev.Name)
		}
	})

	t.Run("Valid input device", func(t *testing.T) {
		dev, err := InputDevice(2)
		if err != nil {
			t.Fatalf("InputDevice(2) error: %v", err)
		}
		if dev.Name != "USB Interface" {
			t.Errorf("device = %q", dev.Name)
		}
	})

	tests := []struct {
		name string
		id   int
		want error
	}{
		{"Negative ID", -2, ErrDeviceUnavailable},
		{"Too high ID", 13, ErrDeviceUnavailable},
		{"Non-input device", 1, ErrNoInputChannels},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			var devErr *DeviceError
			if !errors.As(err, &devErr) {
				t.Fatalf("err %T is not *DeviceError", err)
			}
			if devErr.Op != "lookup" || devErr.Device != tt.id {
				t.Errorf("DeviceError = %+v", devErr)
			}
		})
	}
}

func TestInputDeviceDefaultError(t *testing.T) {
	mockDefaultInput(t, nil, fmt.Errorf("mock default input error"))

	_, err := InputDevice(config.DefaultDeviceID)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
	if err == nil || !strings.Contains(err.Error(), "audio device default: lookup") {
		t.Errorf("error text = %v", err)
	}
}

func TestWriteDeviceList(t *testing.T) {
	devices := []Device{{
		ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 44100,
		LowInputLatency: 5 * time.Millisecond, HighInputLatency: 20 * time.Millisecond,
	}}
	var buf bytes.Buffer
	if err := writeDeviceList(&buf, devices); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"Input channels: 2, Output channels: 0",
		"Default sample rate: 44100 Hz",
		"Latency: Low=5.00ms, High=20.00ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestListDevicesInputsOnly(t *testing.T) {
	mockDevices(t, testDeviceInfos(), nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf, true); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Built-in Output") {
		t.Errorf("output-only device listed:\n%s", buf.String())
	}
}
