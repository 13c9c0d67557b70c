package security

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	errx "github.com/HealthAssistant-core/server/internal/core/error"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
)

const timeLayout = "2006-01-02 15:04:05"

// Event is one security log entry.
type Event struct {
	Time      time.Time
	Type      string
	Details   string
	UserInput string
}

// Format renders the entry the way it is appended to the log file.
func (e Event) Format() string {
	return fmt.Sprintf("[%s] %s: %s\nUser Input: '%s'\n", e.Time.Format(timeLayout), e.Type, e.Details, e.UserInput)
}

// Log is an append-only security event log. Entries are kept in memory for
// the session and mirrored to a writer (normally a file).
type Log struct {
	mu      sync.Mutex
	out     io.Writer
	entries []Event
	now     func() time.Time
}

// NewLog appends to out; a nil writer keeps entries in memory only.
func NewLog(out io.Writer) *Log {
	return &Log{out: out, now: time.Now}
}

// OpenFileLog opens path in append mode.
func OpenFileLog(path string) (*Log, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, errx.WrapPersistence(fmt.Errorf("open security log %s: %w", path, err))
	}
	return NewLog(f), f, nil
}

// Record appends one event. A write failure is logged and returned but the
// in-memory entry is kept.
func (l *Log) Record(eventType, userInput, details string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := Event{Time: l.now(), Type: eventType, Details: details, UserInput: userInput}
	l.entries = append(l.entries, ev)
	if l.out == nil {
		return nil
	}
	if _, err := io.WriteString(l.out, ev.Format()+"\n"); err != nil {
		logx.Error().Err(err).Str("event_type", eventType).Msg("failed to write security log")
		return errx.WrapPersistence(fmt.Errorf("write security log: %w", err))
	}
	return nil
}

// Entries returns a copy of the events recorded in this session.
func (l *Log) Entries() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}
