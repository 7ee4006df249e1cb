package state

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// EventLog is the process-wide durable record of non-fatal failures: tool
// errors, provider failures and undelivered notifications, each with a
// timestamp and domain context. Domain loops share it, so appends are
// serialized.
type EventLog struct {
	sink io.WriteCloser
	mu   sync.Mutex
	now  func() time.Time
}

func NewEventLog(baseDir string) *EventLog {
	return &EventLog{
		sink: &lumberjack.Logger{
			Filename:   filepath.Join(baseDir, "events.log"),
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     90,
			Compress:   true,
		},
		now: time.Now,
	}
}

// NewEventLogWithWriter is used by tests to capture entries.
func NewEventLogWithWriter(w io.WriteCloser) *EventLog {
	return &EventLog{sink: w, now: time.Now}
}

// Append writes one timestamped entry. Append itself is best-effort: a
// failing event log must not take the monitor down with it.
func (e *EventLog) Append(domain, kind, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ts := e.now().UTC().Format(time.RFC3339)
	fmt.Fprintf(e.sink, "%s domain=%s kind=%s %s\n", ts, domain, kind, detail)
}

func (e *EventLog) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sink.Close()
}
