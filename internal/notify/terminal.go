package notify

import (
	"context"
	"io"
	"sync"
	"time"
)

// TerminalChannel keeps recent notifications as toasts for the watch view
// and rings the terminal bell for risk and error notifications.
type TerminalChannel struct {
	mu            sync.RWMutex
	notifications []Notification
	maxVisible    int
	ttl           time.Duration
	bell          io.Writer
	now           func() time.Time
}

// NewTerminalChannel creates a TerminalChannel. A nil bell writer disables the bell.
func NewTerminalChannel(maxVisible int, ttl time.Duration, bell io.Writer) *TerminalChannel {
	if maxVisible <= 0 {
		maxVisible = 3
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &TerminalChannel{
		maxVisible: maxVisible,
		ttl:        ttl,
		bell:       bell,
		now:        time.Now,
	}
}

func (t *TerminalChannel) Name() string    { return "terminal" }
func (t *TerminalChannel) IsEnabled() bool { return true }

// Send adds a toast, dropping expired and surplus ones.
func (t *TerminalChannel) Send(ctx context.Context, n Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n.Timestamp.IsZero() {
		n.Timestamp = t.now()
	}
	t.notifications = append(t.activeLocked(), n)
	if len(t.notifications) > t.maxVisible {
		t.notifications = t.notifications[len(t.notifications)-t.maxVisible:]
	}

	if t.bell != nil && (n.Type == NotificationRisk || n.Type == NotificationError) {
		_, _ = io.WriteString(t.bell, "\a")
	}
	return nil
}

// Visible returns the toasts that have not expired, oldest first.
func (t *TerminalChannel) Visible() []Notification {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeLocked()
}

// Clear drops every toast.
func (t *TerminalChannel) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notifications = nil
}

func (t *TerminalChannel) activeLocked() []Notification {
	now := t.now()
	active := make([]Notification, 0, len(t.notifications))
	for _, n := range t.notifications {
		if now.Sub(n.Timestamp) < t.ttl {
			active = append(active, n)
		}
	}
	return active
}
