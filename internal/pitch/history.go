// SPDX-License-Identifier: MIT
package pitch

import (
	"math"
	"sync"
	"time"
)

// Sample is one pitch estimate stamped with the wall-clock time it was made.
// Hz is NaN when no voiced frame was found.
type Sample struct {
	Time time.Time
	Hz   float64
}

// Valid reports whether the sample carries a usable pitch.
func (s Sample) Valid() bool {
	return s.Hz > 0 && !math.IsNaN(s.Hz) && !math.IsInf(s.Hz, 0)
}

// History is a bounded FIFO of pitch samples written by the audio thread and
// read by the render loop. Appending to a full history evicts the oldest
// sample.
type History struct {
	mu    sync.Mutex
	items []Sample
	head  int
	n     int
}

// NewHistory allocates a history holding at most capacity samples.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{items: make([]Sample, capacity)}
}

// Append stores s as the newest sample. A timestamp earlier than the newest
// stored one is raised to it so the sequence stays non-decreasing.
func (h *History) Append(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := len(h.items)
	if h.n > 0 {
		last := h.items[(h.head+h.n-1)%c]
		if s.Time.Before(last.Time) {
			s.Time = last.Time
		}
	}

	if h.n < c {
		h.items[(h.head+h.n)%c] = s
		h.n++
		return
	}
	h.items[h.head] = s
	h.head = (h.head + 1) % c
}

// Len returns the number of stored samples.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

// Cap returns the fixed capacity.
func (h *History) Cap() int { return len(h.items) }

// Latest returns the newest sample, if any.
func (h *History) Latest() (Sample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.n == 0 {
		return Sample{}, false
	}
	return h.items[(h.head+h.n-1)%len(h.items)], true
}

// SnapshotInto appends the stored samples oldest-first to dst[:0] and returns
// the result. Passing a slice with capacity Cap avoids allocation.
func (h *History) SnapshotInto(dst []Sample) []Sample {
	dst = dst[:0]

	h.mu.Lock()
	defer h.mu.Unlock()

	c := len(h.items)
	end := h.head + h.n
	if end <= c {
		return append(dst, h.items[h.head:end]...)
	}
	dst = append(dst, h.items[h.head:]...)
	return append(dst, h.items[:end-c]...)
}

// Snapshot returns a freshly allocated copy of the stored samples.
func (h *History) Snapshot() []Sample {
	return h.SnapshotInto(make([]Sample, 0, len(h.items)))
}
