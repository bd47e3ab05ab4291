// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"pitchscope/internal/log"
	"pitchscope/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Hardware and processing limits.
const (
	DefaultDeviceID = -1     // -1 represents the system default input device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBlockSize    = 8192   // Maximum frames per callback
	MaxFFTSize      = 32768
)

// DefaultPath is the file LoadConfig looks for when no path is given.
const DefaultPath = "pitchscope.yaml"

// Config is read once at startup and never reloaded.
type Config struct {
	LogLevel    string            `yaml:"log_level"`   // "debug", "info", "warn" or "error".
	Audio       AudioConfig       `yaml:"audio"`       // Capture settings.
	Spectrogram SpectrogramConfig `yaml:"spectrogram"` // Rolling spectrogram settings.
	Pitch       PitchConfig       `yaml:"pitch"`       // Pitch window and estimator settings.
	Gain        GainConfig        `yaml:"gain"`        // Visualization gain slider.
	Display     DisplayConfig     `yaml:"display"`     // Render loop and surface settings.
}

// AudioConfig holds settings related to the capture stream.
type AudioConfig struct {
	InputDevice int     `yaml:"input_device"` // PortAudio device index (-1 for default).
	SampleRate  float64 `yaml:"sample_rate"`  // Sample rate in Hz.
	BlockSize   int     `yaml:"block_size"`   // Frames per callback.
	LowLatency  bool    `yaml:"low_latency"`  // Request the device's low input latency.
	Monitor     bool    `yaml:"monitor"`      // Echo input to the output device.
	InputFile   string  `yaml:"input_file"`   // Replay a WAV file instead of opening a device.
	Loop        bool    `yaml:"loop"`         // Restart the WAV file when it ends.
}

// SpectrogramConfig holds settings for the rolling spectrogram.
type SpectrogramConfig struct {
	FFTSize  int           `yaml:"fft_size"` // Points per FFT, power of two.
	Duration time.Duration `yaml:"duration"` // Scrollback shown at once.
	Window   string        `yaml:"window"`   // Window function name, see analysis.ParseWindowFunc.
}

// PitchConfig holds settings for the sliding pitch window and estimator.
type PitchConfig struct {
	FloorHz        float64       `yaml:"floor_hz"`        // Lowest detectable pitch.
	CeilingHz      float64       `yaml:"ceiling_hz"`      // Highest detectable pitch.
	IntervalBlocks int           `yaml:"interval_blocks"` // Blocks between estimates.
	BufferDuration time.Duration `yaml:"buffer_duration"` // Samples fed to each estimate.
	SubWindows     int           `yaml:"sub_windows"`     // Analysis frames per estimate.
	Clarity        float64       `yaml:"clarity"`         // Voicing threshold, 0..1.
	Silence        float64       `yaml:"silence"`         // Silence threshold relative to buffer peak.
}

// GainConfig describes the gain slider.
type GainConfig struct {
	Default float64 `yaml:"default"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Step    float64 `yaml:"step"`
}

// DisplayConfig holds settings for the render loop and the surface.
type DisplayConfig struct {
	Interval time.Duration `yaml:"interval"` // Render period.
	MaxHz    float64       `yaml:"max_hz"`   // Upper edge of the visible frequency range.
	Headless bool          `yaml:"headless"` // Log labels instead of drawing.
	LogFile  string        `yaml:"log_file"` // Log destination while the terminal UI owns the screen.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice: DefaultDeviceID,
			SampleRate:  44100,
			BlockSize:   1024,
			Monitor:     true,
		},
		Spectrogram: SpectrogramConfig{
			FFTSize:  1024,
			Duration: 5 * time.Second,
			Window:   "hann",
		},
		Pitch: PitchConfig{
			FloorHz:        75,
			CeilingHz:      600,
			IntervalBlocks: 5,
			BufferDuration: 300 * time.Millisecond,
			SubWindows:     4,
			Clarity:        0.6,
			Silence:        0.03,
		},
		Gain: GainConfig{
			Default: 10,
			Min:     1,
			Max:     100,
			Step:    1,
		},
		Display: DisplayConfig{
			Interval: 50 * time.Millisecond,
			MaxHz:    15000,
			LogFile:  "pitchscope.log",
		},
	}
}

// LoadConfig loads configuration from the YAML file at path. An empty path
// tries DefaultPath and falls back to the built-in defaults when it does not
// exist. Environment overrides are applied after the file, then the result
// is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every field against the pipeline's limits.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.BlockSize <= 0 || a.BlockSize > MaxBlockSize {
		return fmt.Errorf("audio.block_size %d outside [1, %d]", a.BlockSize, MaxBlockSize)
	}
	if a.InputDevice < DefaultDeviceID {
		return fmt.Errorf("audio.input_device %d is invalid", a.InputDevice)
	}

	s := c.Spectrogram
	if !bitint.IsPowerOfTwo(s.FFTSize) || s.FFTSize < 2 || s.FFTSize > MaxFFTSize {
		return fmt.Errorf("spectrogram.fft_size %d must be a power of two in [2, %d] (try %d)",
			s.FFTSize, MaxFFTSize, bitint.NextPowerOfTwo(s.FFTSize))
	}
	if c.NBlocks() < 1 {
		return fmt.Errorf("spectrogram.duration %s is shorter than one block", s.Duration)
	}

	p := c.Pitch
	nyquist := a.SampleRate / 2
	if p.FloorHz <= 0 || p.CeilingHz <= p.FloorHz || p.CeilingHz >= nyquist {
		return fmt.Errorf("pitch range [%.1f, %.1f] Hz must satisfy 0 < floor < ceiling < %.0f",
			p.FloorHz, p.CeilingHz, nyquist)
	}
	if p.IntervalBlocks < 1 {
		return errors.New("pitch.interval_blocks must be at least 1")
	}
	if c.PitchWindowSize() < 1 {
		return fmt.Errorf("pitch.buffer_duration %s holds no samples", p.BufferDuration)
	}
	if p.SubWindows < 1 {
		return errors.New("pitch.sub_windows must be at least 1")
	}
	if p.Clarity <= 0 || p.Clarity >= 1 {
		return fmt.Errorf("pitch.clarity %.2f outside (0, 1)", p.Clarity)
	}
	if p.Silence < 0 || p.Silence >= 1 {
		return fmt.Errorf("pitch.silence %.2f outside [0, 1)", p.Silence)
	}

	g := c.Gain
	if g.Min <= 0 || g.Max <= g.Min || g.Step <= 0 {
		return fmt.Errorf("gain range [%.1f, %.1f] step %.1f is invalid", g.Min, g.Max, g.Step)
	}
	if g.Default < g.Min || g.Default > g.Max {
		return fmt.Errorf("gain.default %.1f outside [%.1f, %.1f]", g.Default, g.Min, g.Max)
	}

	d := c.Display
	if d.Interval <= 0 {
		return errors.New("display.interval must be positive")
	}
	if d.MaxHz <= 0 {
		return errors.New("display.max_hz must be positive")
	}
	return nil
}

// NBlocks is the number of spectrogram columns and the pitch history
// capacity: int(duration * sampleRate / blockSize).
func (c *Config) NBlocks() int {
	return int(c.Spectrogram.Duration.Seconds() * c.Audio.SampleRate / float64(c.Audio.BlockSize))
}

// FreqBins is the number of spectrogram rows, fftSize/2 + 1.
func (c *Config) FreqBins() int {
	return c.Spectrogram.FFTSize/2 + 1
}

// PitchWindowSize is the pitch window capacity in samples.
func (c *Config) PitchWindowSize() int {
	return int(c.Audio.SampleRate * c.Pitch.BufferDuration.Seconds())
}

// BlockPeriod is the wall-clock duration of one block.
func (c *Config) BlockPeriod() time.Duration {
	return time.Duration(float64(c.Audio.BlockSize) / c.Audio.SampleRate * float64(time.Second))
}

// applyEnvOverrides applies PITCHSCOPE_* variables on top of the file.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("PITCHSCOPE_LOG_LEVEL"); ok {
		c.LogLevel = val
		log.Debugf("config: log_level overridden from env: %s", val)
	}
	if val, ok := os.LookupEnv("PITCHSCOPE_INPUT_DEVICE"); ok {
		if id, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = id
			log.Debugf("config: audio.input_device overridden from env: %d", id)
		}
	}
	if val, ok := os.LookupEnv("PITCHSCOPE_INPUT_FILE"); ok {
		c.Audio.InputFile = val
		log.Debugf("config: audio.input_file overridden from env: %s", val)
	}
	if val, ok := os.LookupEnv("PITCHSCOPE_GAIN"); ok {
		if g, err := strconv.ParseFloat(val, 64); err == nil {
			c.Gain.Default = g
			log.Debugf("config: gain.default overridden from env: %.1f", g)
		}
	}
	if val, ok := os.LookupEnv("PITCHSCOPE_HEADLESS"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Display.Headless = b
			log.Debugf("config: display.headless overridden from env: %v", b)
		}
	}
}
