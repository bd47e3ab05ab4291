// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
)

// syncBuffer lets the async writer goroutine and the test share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureOutput(t *testing.T, level LogLevel) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	prev := GetLevel()
	SetOutput(buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})
	return buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, LevelWarn)

	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	Warnf("shown %d", 3)
	Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains filtered messages: %q", out)
	}
	if !strings.Contains(out, "[WARN]  shown 3") || !strings.Contains(out, "[ERROR] shown 4") {
		t.Errorf("output missing expected messages: %q", out)
	}
}

func TestAsyncFlushesOnClose(t *testing.T) {
	buf := captureOutput(t, LevelDebug)

	a := NewAsync(8)
	a.Debugf("block %d", 7)
	a.Warnf("mismatch %s", "out")
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "block 7") || !strings.Contains(out, "mismatch out") {
		t.Errorf("async output missing entries: %q", out)
	}
}

func TestAsyncSkipsDisabledLevels(t *testing.T) {
	buf := captureOutput(t, LevelError)

	a := NewAsync(4)
	a.Debugf("quiet")
	_ = a.Close()

	if strings.Contains(buf.String(), "quiet") {
		t.Errorf("disabled level was written: %q", buf.String())
	}
	if a.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", a.Dropped())
	}
}

func TestAsyncCloseIsIdempotent(t *testing.T) {
	captureOutput(t, LevelInfo)
	a := NewAsync(1)
	_ = a.Close()
	if err := a.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
