// Package audit records user actions against the risk service as JSON lines.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EventType names an audited action.
type EventType string

const (
	EventLogin             EventType = "LOGIN"
	EventLogout            EventType = "LOGOUT"
	EventDemoToggled       EventType = "DEMO_TOGGLED"
	EventReportDownloaded  EventType = "REPORT_DOWNLOADED"
	EventFeedbackSubmitted EventType = "FEEDBACK_SUBMITTED"
	EventFeedbackUpdated   EventType = "FEEDBACK_UPDATED"
	EventBrokerConnected   EventType = "BROKER_CONNECTED"
	EventRiskRulesChanged  EventType = "RISK_RULES_CHANGED"
)

// Event is a single audit entry.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      EventType              `json:"event_type"`
	SessionID string                 `json:"session_id"`
	User      string                 `json:"user,omitempty"`
	AccountID string                 `json:"account_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
}

// Config holds audit file rotation settings.
type Config struct {
	Path       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultConfig keeps a year of audit history next to path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		MaxSize:    10,
		MaxBackups: 12,
		MaxAge:     365,
		Compress:   true,
	}
}

// Logger writes audit events. A nil *Logger discards everything.
type Logger struct {
	mu        sync.Mutex
	w         io.Writer
	closer    io.Closer
	sessionID string
	now       func() time.Time
}

// Open creates a rotating audit log at cfg.Path.
func Open(cfg Config) (*Logger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	l := New(lj)
	l.closer = lj
	return l, nil
}

// New writes audit events to w.
func New(w io.Writer) *Logger {
	return &Logger{w: w, sessionID: uuid.NewString(), now: time.Now}
}

// SessionID identifies the process that wrote an event.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// Record writes one event. Timestamp and SessionID are filled in.
func (l *Logger) Record(ctx context.Context, e Event) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Timestamp = l.now().UTC()
	e.SessionID = l.sessionID

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}
	if _, err := l.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	return nil
}

// Outcome records e with Success and Error derived from err.
func (l *Logger) Outcome(ctx context.Context, e Event, err error) error {
	e.Success = err == nil
	if err != nil {
		e.Error = err.Error()
	}
	return l.Record(ctx, e)
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
