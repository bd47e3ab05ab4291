// SPDX-License-Identifier: MIT

// Package spectrogram holds the rolling intensity matrix shared between the
// audio callback (single writer) and the render loop (reader).
package spectrogram

import (
	"fmt"
	"sync"
)

// Buffer is a fixed-size bins x columns matrix of intensities in [0, 1].
// Each Push discards the oldest column and appends the newest; readers get
// the columns oldest-first through SnapshotInto.
//
// Storage is a row-major ring indexed by head, so a push writes one value per
// row instead of shifting the whole matrix. The mutex is held only for a
// single column write or a single snapshot copy, never across blocking calls.
type Buffer struct {
	mu      sync.Mutex
	bins    int
	columns int
	data    []float64 // data[row*columns + col]
	head    int       // Ring index of the oldest column, the next one overwritten.
	pushes  uint64
}

// New allocates a zeroed buffer. The size is fixed for the buffer's lifetime.
func New(bins, columns int) (*Buffer, error) {
	if bins < 1 || columns < 1 {
		return nil, fmt.Errorf("spectrogram: invalid size %dx%d", bins, columns)
	}
	return &Buffer{
		bins:    bins,
		columns: columns,
		data:    make([]float64, bins*columns),
	}, nil
}

// Bins returns the number of frequency rows.
func (b *Buffer) Bins() int { return b.bins }

// Columns returns the number of time columns (n_blocks).
func (b *Buffer) Columns() int { return b.columns }

// Push writes column as the newest time slice. Values are clamped to [0, 1]
// with NaN stored as zero; missing trailing bins are written as zero and
// extra values are ignored.
func (b *Buffer) Push(column []float64) {
	b.mu.Lock()
	col := b.head
	for row := range b.bins {
		v := 0.0
		if row < len(column) && column[row] > 0 {
			v = min(column[row], 1)
		}
		b.data[row*b.columns+col] = v
	}
	b.head++
	if b.head == b.columns {
		b.head = 0
	}
	b.pushes++
	b.mu.Unlock()
}

// Pushes returns the number of columns written since creation.
func (b *Buffer) Pushes() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pushes
}

// Snapshot is a reader-owned copy of the matrix. Data[bin][col] with column
// 0 the oldest and column Columns-1 the newest.
type Snapshot struct {
	Data   [][]float64
	Pushes uint64 // Buffer.Pushes at the time of the copy.
}

// NewSnapshot allocates a snapshot sized for b, for reuse with SnapshotInto.
func (b *Buffer) NewSnapshot() *Snapshot {
	backing := make([]float64, b.bins*b.columns)
	rows := make([][]float64, b.bins)
	for i := range rows {
		rows[i] = backing[i*b.columns : (i+1)*b.columns]
	}
	return &Snapshot{Data: rows}
}

// SnapshotInto copies the matrix into dst in temporal order without
// allocating. dst must come from NewSnapshot on the same buffer.
func (b *Buffer) SnapshotInto(dst *Snapshot) error {
	cols := 0
	if len(dst.Data) > 0 {
		cols = len(dst.Data[0])
	}
	if len(dst.Data) != b.bins || cols != b.columns {
		return fmt.Errorf("spectrogram: snapshot is %dx%d, want %dx%d",
			len(dst.Data), cols, b.bins, b.columns)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tail := b.columns - b.head
	for row := range b.bins {
		src := b.data[row*b.columns : (row+1)*b.columns]
		out := dst.Data[row]
		copy(out, src[b.head:])
		copy(out[tail:], src[:b.head])
	}
	dst.Pushes = b.pushes
	return nil
}

// Snapshot returns a freshly allocated copy of the matrix.
func (b *Buffer) Snapshot() *Snapshot {
	s := b.NewSnapshot()
	_ = b.SnapshotInto(s)
	return s
}

// Column returns a copy of time column col (0 = oldest) from a snapshot.
func (s *Snapshot) Column(col int) []float64 {
	out := make([]float64, len(s.Data))
	for row := range s.Data {
		out[row] = s.Data[row][col]
	}
	return out
}
