package testutil

import (
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// NewTestLogger returns a debug-level logger that writes to t.Log, so
// gateway and handler logs show up only for failing tests or with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	logger, _ := NewRecordingLogger(t)
	return logger
}

// LogRecorder keeps every line written through a recording logger.
type LogRecorder struct {
	mu    sync.Mutex
	lines []string
}

// NewRecordingLogger is NewTestLogger plus a recorder for asserting on
// what was logged.
func NewRecordingLogger(t testing.TB) (*slog.Logger, *LogRecorder) {
	t.Helper()
	rec := &LogRecorder{}
	h := slog.NewTextHandler(testWriter{t: t, rec: rec}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), rec
}

// Lines returns the recorded log lines.
func (r *LogRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Contains reports whether any recorded line contains all of parts.
func (r *LogRecorder) Contains(parts ...string) bool {
	for _, line := range r.Lines() {
		matched := true
		for _, p := range parts {
			if !strings.Contains(line, p) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

type testWriter struct {
	t   testing.TB
	rec *LogRecorder
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	line := strings.TrimRight(string(p), "\n")
	w.rec.mu.Lock()
	w.rec.lines = append(w.rec.lines, line)
	w.rec.mu.Unlock()
	w.t.Log(line)
	return len(p), nil
}
