// Package notes maps frequencies to 12-tone equal temperament note names
// referenced to A4 = 440 Hz.
package notes

import (
	"fmt"
	"math"
)

// NoPitch is returned by Name when there is no usable frequency.
const NoPitch = "—"

const (
	referenceHz   = 440.0
	referenceMIDI = 69
)

var names = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is a frequency resolved to its nearest equal-tempered note.
type Note struct {
	Name      string  // Pitch class, e.g. "A" or "C#"
	Octave    int     // Scientific octave, 4 for A4
	Number    int     // MIDI note number
	Frequency float64 // Input frequency in Hz
	Cents     float64 // Deviation from the tempered note, -50..+50
}

// String returns the name with octave, e.g. "A4".
func (n Note) String() string {
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}

// FromFrequency resolves hz to a Note. It returns false for hz <= 0, NaN and
// infinities.
func FromFrequency(hz float64) (Note, bool) {
	if !(hz > 0) || math.IsInf(hz, 0) {
		return Note{}, false
	}

	exact := 12*math.Log2(hz/referenceHz) + referenceMIDI
	number := int(math.Round(exact))

	// Floor division keeps octaves correct below MIDI 0.
	index := ((number % 12) + 12) % 12
	octave := int(math.Floor(float64(number)/12)) - 1

	return Note{
		Name:      names[index],
		Octave:    octave,
		Number:    number,
		Frequency: hz,
		Cents:     100 * (exact - float64(number)),
	}, true
}

// Name returns the note name for hz, or NoPitch.
func Name(hz float64) string {
	n, ok := FromFrequency(hz)
	if !ok {
		return NoPitch
	}
	return n.String()
}
