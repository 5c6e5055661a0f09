// Package logging builds the key/value logger that is injected into the
// finder, page objects, scenario runner and activities.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"go.temporal.io/sdk/log"
)

// New returns a logger writing text lines at or above level to w
func New(level string, w io.Writer) log.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return log.NewStructuredLogger(slog.New(handler))
}

// ParseLevel maps a config level name to a slog level. Unknown names fall
// back to warn, which keeps runs quiet except for lookup failures.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// ForRun scopes a logger to one scenario run
func ForRun(logger log.Logger, runID string) log.Logger {
	return log.With(logger, "run_id", runID)
}

// Entry is one line captured by a Recorder
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]string
}

// Recorder is a log.Logger that keeps every entry in memory
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

var _ log.Logger = (*Recorder)(nil)

// NewRecorder returns an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Debug(msg string, keyvals ...interface{}) { r.add("DEBUG", msg, keyvals) }
func (r *Recorder) Info(msg string, keyvals ...interface{})  { r.add("INFO", msg, keyvals) }
func (r *Recorder) Warn(msg string, keyvals ...interface{})  { r.add("WARN", msg, keyvals) }
func (r *Recorder) Error(msg string, keyvals ...interface{}) { r.add("ERROR", msg, keyvals) }

func (r *Recorder) add(level, msg string, keyvals []interface{}) {
	fields := make(map[string]string, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		fields[fmt.Sprint(keyvals[i])] = fmt.Sprint(keyvals[i+1])
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

// Entries returns a copy of everything logged so far
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Last returns the most recent entry at level
func (r *Recorder) Last(level string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Level == level {
			return r.entries[i], true
		}
	}
	return Entry{}, false
}
