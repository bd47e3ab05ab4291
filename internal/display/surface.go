// SPDX-License-Identifier: MIT

// Package display defines what the render loop draws into and provides the
// surfaces that do not need a terminal.
package display

// Extent maps image columns to seconds and rows to Hz.
type Extent struct {
	XMin, XMax float64 // Time, seconds.
	YMin, YMax float64 // Frequency, Hz.
}

// Image is a frequency x time intensity matrix, Data[bin][column] with bin 0
// at YMin and column 0 at XMin. Values are in [0, 1].
type Image struct {
	Data   [][]float64
	Extent Extent
}

// Surface receives one frame at a time. Set calls stage data and Commit
// publishes it. The caller reuses the slices it passes once Commit returns,
// so a surface that keeps them must copy.
type Surface interface {
	SetImage(img Image)
	SetPitch(xs, ys []float64)
	SetLabel(label string)
	SetTitle(title string)
	Commit() error
}

// Slider describes a bounded scalar control.
type Slider struct {
	Label   string
	Min     float64
	Max     float64
	Step    float64
	Default float64
}

// Control reads and writes the value behind a Slider. Set returns the value
// actually stored after clamping.
type Control interface {
	Value() float64
	Set(v float64) float64
}

// Frame is one committed set of display data.
type Frame struct {
	Image  Image
	PitchX []float64
	PitchY []float64
	Label  string
	Title  string
}

// CopyInto deep-copies f into dst, reusing dst's storage where it is large
// enough.
func (f *Frame) CopyInto(dst *Frame) {
	dst.Image.Extent = f.Image.Extent
	dst.Image.Data = copyMatrix(dst.Image.Data, f.Image.Data)
	dst.PitchX = append(dst.PitchX[:0], f.PitchX...)
	dst.PitchY = append(dst.PitchY[:0], f.PitchY...)
	dst.Label = f.Label
	dst.Title = f.Title
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() Frame {
	var c Frame
	f.CopyInto(&c)
	return c
}

func copyMatrix(dst, src [][]float64) [][]float64 {
	if len(src) == 0 {
		return dst[:0]
	}
	if cap(dst) < len(src) {
		dst = make([][]float64, len(src))
	}
	dst = dst[:len(src)]
	for i, row := range src {
		dst[i] = append(dst[i][:0], row...)
	}
	return dst
}

// Staging collects Set calls for surfaces that only act on Commit. Embed it
// and read Pending from the Commit implementation.
type Staging struct {
	pending Frame
}

func (s *Staging) SetImage(img Image)        { s.pending.Image = img }
func (s *Staging) SetPitch(xs, ys []float64) { s.pending.PitchX, s.pending.PitchY = xs, ys }
func (s *Staging) SetLabel(label string)     { s.pending.Label = label }
func (s *Staging) SetTitle(title string)     { s.pending.Title = title }

// Pending returns the staged frame. Its slices belong to the caller of the
// Set methods.
func (s *Staging) Pending() *Frame { return &s.pending }
