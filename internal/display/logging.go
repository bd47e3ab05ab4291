// SPDX-License-Identifier: MIT
package display

import (
	"sync"

	applog "pitchscope/internal/log"
)

// LogSurface is the headless surface: it writes the label to the log
// whenever it changes and drops the image.
type LogSurface struct {
	Staging

	mu      sync.Mutex
	label   string
	title   string
	commits uint64
}

var _ Surface = (*LogSurface)(nil)

// NewLogSurface creates a LogSurface.
func NewLogSurface() *LogSurface {
	applog.Infof("Display: using log surface")
	return &LogSurface{}
}

// Commit logs label changes at info level and title changes at debug level.
func (s *LogSurface) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.Pending()
	s.commits++
	if f.Title != s.title {
		s.title = f.Title
		applog.Debugf("Display: %s", f.Title)
	}
	if f.Label != s.label {
		s.label = f.Label
		applog.Infof("Display: %s (%d points)", f.Label, len(f.PitchX))
	}
	return nil
}

// Commits returns the number of frames committed.
func (s *LogSurface) Commits() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Label returns the most recently committed label.
func (s *LogSurface) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

// Close is a no-op.
func (s *LogSurface) Close() error {
	applog.Debugf("Display: log surface closed after %d frames", s.Commits())
	return nil
}
