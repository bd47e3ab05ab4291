// SPDX-License-Identifier: MIT
package render

import (
	"context"
	"sync"
	"time"

	applog "pitchscope/internal/log"
)

// Frame is anything that draws once per tick.
type Frame interface {
	Render() error
}

// Loop calls Render on a fixed interval from its own goroutine. A Render
// error stops the loop; it is reported by Err and closes Done.
type Loop struct {
	frame    Frame
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{} // Closed by Stop.
	exited   chan struct{} // Closed when the goroutine returns.
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	err    error
	frames uint64
}

// NewLoop creates a stopped loop. A non-positive interval defaults to 50ms.
func NewLoop(frame Frame, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = 50 * time.Millisecond
		applog.Warnf("Render: invalid interval, defaulting to %s", interval)
	}
	return &Loop{
		frame:    frame,
		interval: interval,
		exited:   make(chan struct{}),
	}
}

// Start launches the render goroutine. Calling Start on a running or
// finished loop does nothing.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.ticker != nil {
		l.mu.Unlock()
		applog.Warnf("Render: Start called but already running.")
		return
	}

	l.ticker = time.NewTicker(l.interval)
	l.doneChan = make(chan struct{})
	ticker := l.ticker
	doneChan := l.doneChan
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(l.exited)
		applog.Debugf("Render: loop started (Interval: %s)", l.interval)
		for {
			select {
			case <-ticker.C:
				if err := l.frame.Render(); err != nil {
					applog.Errorf("Render: %v", err)
					l.mu.Lock()
					l.err = err
					l.mu.Unlock()
					return
				}
				l.mu.Lock()
				l.frames++
				l.mu.Unlock()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it. Safe to call more than once.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if l.ticker == nil {
		l.mu.Unlock()
		return nil
	}
	l.stopOnce.Do(func() {
		close(l.doneChan)
		l.ticker.Stop()
	})
	l.mu.Unlock()

	l.wg.Wait()
	applog.Debugf("Render: loop stopped after %d frames", l.Frames())
	return nil
}

// Run starts the loop and blocks until ctx is cancelled or a frame fails.
// It returns the render error, if any.
func (l *Loop) Run(ctx context.Context) error {
	l.Start()
	select {
	case <-ctx.Done():
	case <-l.exited:
	}
	l.Stop()
	return l.Err()
}

// Done is closed when the render goroutine exits.
func (l *Loop) Done() <-chan struct{} { return l.exited }

// Err returns the error that stopped the loop, or nil.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Frames returns the number of frames committed.
func (l *Loop) Frames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}
