// SPDX-License-Identifier: MIT
package display

import "sync"

// Recorder keeps a deep copy of every committed frame. CommitErr, if set, is
// returned from Commit after the frame is recorded.
type Recorder struct {
	Staging

	mu        sync.Mutex
	frames    []Frame
	CommitErr error
}

var _ Surface = (*Recorder)(nil)

func (r *Recorder) Commit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, r.Pending().Clone())
	return r.CommitErr
}

// Frames returns the recorded frames, oldest first.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Last returns the most recent frame.
func (r *Recorder) Last() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

// Len returns the number of recorded frames.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}
