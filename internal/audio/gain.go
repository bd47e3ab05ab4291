// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gain is the visualization gain shared between the UI (writer) and the
// audio callback (reader). It is stored as float64 bits in an atomic so
// neither side ever waits on the other.
type Gain struct {
	bits     atomic.Uint64
	min, max float64
}

// NewGain returns a gain bounded to [lo, hi] starting at initial (clamped).
// Bounds are swapped if given in the wrong order.
func NewGain(initial, lo, hi float64) *Gain {
	if lo > hi {
		lo, hi = hi, lo
	}
	g := &Gain{min: lo, max: hi}
	g.Set(initial)
	return g
}

// Set stores v clamped to the gain range and returns the stored value.
// NaN is treated as the minimum.
func (g *Gain) Set(v float64) float64 {
	if math.IsNaN(v) {
		v = g.min
	}
	v = max(g.min, min(g.max, v))
	g.bits.Store(math.Float64bits(v))
	return v
}

// Value returns the current gain.
func (g *Gain) Value() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Add shifts the gain by delta and returns the clamped result.
func (g *Gain) Add(delta float64) float64 {
	return g.Set(g.Value() + delta)
}

func (g *Gain) Min() float64 { return g.min }
func (g *Gain) Max() float64 { return g.max }
