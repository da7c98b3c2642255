// Package audit appends JSON lines to day-partitioned log files so operators
// can trace what was sent and acknowledged.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Categories written by the gateway.
const (
	Outgoing    = "outgoing"
	OutgoingAck = "outgoing-ack"
	MKAuth      = "mk-auth"
)

// TimeFormat is the entry timestamp layout: ISO 8601 UTC with milliseconds.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Logger writes audit entries under a directory. Write failures are logged
// and otherwise ignored.
type Logger struct {
	dir string
	log *zap.Logger
	now func() time.Time
	mu  sync.Mutex
}

// New creates a Logger rooted at dir. The directory is created on first write.
func New(dir string, log *zap.Logger) *Logger {
	return &Logger{dir: dir, log: log, now: time.Now}
}

// Path returns the file an entry in category would be written to right now.
func (l *Logger) Path(category string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s-%s.log", category, l.now().UTC().Format("2006-01-02")))
}

// Append writes record as one line, adding a timestamp unless the record
// carries one.
func (l *Logger) Append(category string, record map[string]any) {
	entry := make(map[string]any, len(record)+1)
	for k, v := range record {
		entry[k] = v
	}
	if _, ok := entry["timestamp"]; !ok {
		entry["timestamp"] = l.now().UTC().Format(TimeFormat)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		l.log.Warn("audit entry not serializable", zap.String("category", category), zap.Error(err))
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.write(category, line); err != nil {
		l.log.Warn("audit write failed", zap.String("category", category), zap.Error(err))
	}
}

func (l *Logger) write(category string, line []byte) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path(category), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
