// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"pitchscope/internal/log"

	"github.com/go-audio/wav"
)

// FileOptions configures a FileSource.
type FileOptions struct {
	BlockSize int           // Frames per block handed to Capture.
	Loop      bool          // Restart from the beginning at end of file.
	Interval  time.Duration // Delay between blocks; zero means real time.
}

// FileSource replays a WAV file into a Capture as if it came from a device.
// Only channel 0 is used. The file must match the capture sample rate.
type FileSource struct {
	path       string
	capture    *Capture
	opts       FileOptions
	samples    []float32
	sampleRate float64

	block []float32
	pos   int

	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	finished chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

var _ Source = (*FileSource)(nil)

// OpenFile decodes path fully into memory.
func OpenFile(path string, capture *Capture, opts FileOptions) (*FileSource, error) {
	if capture == nil {
		return nil, fmt.Errorf("file source: capture is required")
	}
	if opts.BlockSize < 1 {
		return nil, fmt.Errorf("file source: invalid block size %d", opts.BlockSize)
	}

	samples, sampleRate, err := decodeWAV(path)
	if err != nil {
		return nil, err
	}
	if sampleRate != capture.SampleRate() {
		return nil, fmt.Errorf("file source: %s is %.0f Hz, capture expects %.0f Hz",
			path, sampleRate, capture.SampleRate())
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("file source: %s has no samples", path)
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Duration(float64(opts.BlockSize) / sampleRate * float64(time.Second))
	}

	log.Infof("Input file: %s (%.1f s at %.0f Hz)", path, float64(len(samples))/sampleRate, sampleRate)
	return &FileSource{
		path:       path,
		capture:    capture,
		opts:       opts,
		samples:    samples,
		sampleRate: sampleRate,
		block:      make([]float32, opts.BlockSize),
		stop:       make(chan struct{}),
		finished:   make(chan struct{}),
	}, nil
}

// decodeWAV returns channel 0 of a PCM WAV file scaled to [-1, 1).
func decodeWAV(path string) ([]float32, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("failed to decode input file %s: not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode input file %s: %w", path, err)
	}

	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return nil, 0, fmt.Errorf("failed to decode input file %s: unsupported bit depth %d", path, bitDepth)
	}

	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 {
		// 8-bit PCM is unsigned.
		offset = 128
	}

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32((float64(buf.Data[i*channels]) - offset) / scale)
	}
	return samples, float64(dec.SampleRate), nil
}

// Frames returns the number of decoded frames.
func (s *FileSource) Frames() int { return len(s.samples) }

// Start begins paced playback on a background goroutine.
func (s *FileSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	s.wg.Add(1)
	go s.run()
	return nil
}

func (s *FileSource) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.next() {
				close(s.finished)
				log.Infof("Input file %s finished after %d blocks", s.path, s.capture.Blocks())
				return
			}
		case <-s.stop:
			return
		}
	}
}

// next feeds one block and reports whether playback should continue.
func (s *FileSource) next() bool {
	if s.pos >= len(s.samples) {
		if !s.opts.Loop {
			return false
		}
		s.pos = 0
	}
	n := copy(s.block, s.samples[s.pos:])
	clear(s.block[n:])
	s.pos += len(s.block)
	s.capture.Process(s.block, nil)
	return true
}

// ProcessAll feeds every remaining block immediately, ignoring Loop, and
// returns the number of blocks processed. It must not be mixed with Start.
func (s *FileSource) ProcessAll() int {
	blocks := 0
	for s.pos < len(s.samples) {
		s.next()
		blocks++
	}
	return blocks
}

// Done is closed when playback reaches the end of a non-looping file.
func (s *FileSource) Done() <-chan struct{} { return s.finished }

// Close stops playback. Safe to call more than once.
func (s *FileSource) Close() error {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}
