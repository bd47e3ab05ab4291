// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type entry struct {
	level  LogLevel
	format string
	args   []any
}

// Async hands log entries from a real-time goroutine to a background writer.
// Submitting never blocks: when the queue is full the entry is counted as
// dropped and discarded. Formatting happens on the writer goroutine.
type Async struct {
	queue   chan entry
	dropped atomic.Uint64
	done    chan struct{}
	once    sync.Once
}

// NewAsync starts a writer goroutine draining a queue of the given size.
func NewAsync(size int) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{
		queue: make(chan entry, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.queue {
		output(e.level, fmt.Sprintf(e.format, e.args...))
	}
}

func (a *Async) submit(level LogLevel, format string, args []any) {
	if !Enabled(level) {
		return
	}
	select {
	case a.queue <- entry{level: level, format: format, args: args}:
	default:
		a.dropped.Add(1)
	}
}

func (a *Async) Debugf(format string, v ...any) { a.submit(LevelDebug, format, v) }
func (a *Async) Infof(format string, v ...any)  { a.submit(LevelInfo, format, v) }
func (a *Async) Warnf(format string, v ...any)  { a.submit(LevelWarn, format, v) }
func (a *Async) Errorf(format string, v ...any) { a.submit(LevelError, format, v) }

// Dropped returns how many entries were discarded because the queue was full.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close flushes queued entries and stops the writer. Submitting after Close
// panics, so Close only once every producer has stopped.
func (a *Async) Close() error {
	a.once.Do(func() {
		close(a.queue)
		<-a.done
		if n := a.dropped.Load(); n > 0 {
			Warnf("log: %d async entries dropped", n)
		}
	})
	return nil
}
