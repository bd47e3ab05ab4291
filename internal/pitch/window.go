// SPDX-License-Identifier: MIT
package pitch

// Window is the sliding buffer of the most recent raw samples fed to the
// estimator. Its backing array is allocated once; when full, the oldest
// samples are overwritten. A Window is owned by the audio thread and is not
// safe for concurrent use.
type Window struct {
	buf  []float32
	head int // Index of the oldest sample once the ring is full.
	n    int
}

// NewWindow allocates a window holding at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]float32, capacity)}
}

// Append adds block after the retained samples, dropping from the front
// whatever exceeds the capacity.
func (w *Window) Append(block []float32) {
	c := len(w.buf)
	if len(block) >= c {
		copy(w.buf, block[len(block)-c:])
		w.head = 0
		w.n = c
		return
	}

	// Write position is one past the newest sample.
	pos := (w.head + w.n) % c
	first := copy(w.buf[pos:], block)
	copy(w.buf, block[first:])

	w.n += len(block)
	if w.n > c {
		w.head = (w.head + w.n - c) % c
		w.n = c
	}
}

// Len returns the number of retained samples.
func (w *Window) Len() int { return w.n }

// Cap returns the fixed capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Samples copies the retained samples oldest-first into dst and returns the
// filled slice. dst is grown only if its capacity is below Len.
func (w *Window) Samples(dst []float32) []float32 {
	if cap(dst) < w.n {
		dst = make([]float32, w.n)
	}
	dst = dst[:w.n]

	c := len(w.buf)
	end := w.head + w.n
	if end <= c {
		copy(dst, w.buf[w.head:end])
	} else {
		k := copy(dst, w.buf[w.head:])
		copy(dst[k:], w.buf[:end-c])
	}
	return dst
}
