// Package notify publishes dashboard transitions (lock, connection freeze,
// risk status changes) to external channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"risklock/internal/config"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendError(ctx context.Context, err error, context string) error
	Close() error
}

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	ID        string                 `json:"id"`
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	// NotificationRisk covers risk status changes and the breach lock.
	NotificationRisk NotificationType = "risk"
	// NotificationConnection covers the broker link freezing or recovering.
	NotificationConnection NotificationType = "connection"
	// NotificationError covers the risk service becoming unreachable.
	NotificationError NotificationType = "error"
	NotificationInfo  NotificationType = "info"
)

// NotificationLevel represents the notification level filter.
type NotificationLevel string

const (
	LevelAll        NotificationLevel = "all"
	LevelRiskOnly   NotificationLevel = "risk_only"
	LevelErrorsOnly NotificationLevel = "errors_only"
)

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []NotificationChannel
	level    NotificationLevel
	logger   zerolog.Logger
	mu       sync.RWMutex
	closers  []func() error
}

// NewMultiNotifier creates a MultiNotifier with the channels enabled in cfg.
// A NATS server that cannot be reached is logged and skipped.
func NewMultiNotifier(cfg config.NotificationConfig, logger zerolog.Logger) *MultiNotifier {
	mn := &MultiNotifier{
		level:  NotificationLevel(cfg.Level),
		logger: logger.With().Str("component", "notify").Logger(),
	}
	if mn.level == "" {
		mn.level = LevelAll
	}

	mn.channels = append(mn.channels, NewLogChannel(mn.logger))

	if cfg.WebhookURL != "" {
		mn.channels = append(mn.channels, NewWebhookChannel(cfg.WebhookURL))
	}
	if cfg.NATSURL != "" {
		ch, err := NewNATSChannel(cfg.NATSURL, cfg.NATSSubject, mn.logger)
		if err != nil {
			mn.logger.Warn().Err(err).Str("url", cfg.NATSURL).Msg("NATS unavailable, skipping channel")
		} else {
			mn.channels = append(mn.channels, ch)
			mn.closers = append(mn.closers, ch.Close)
		}
	}

	return mn
}

// NewMultiNotifierWithChannels creates a MultiNotifier over the given channels.
func NewMultiNotifierWithChannels(level NotificationLevel, channels ...NotificationChannel) *MultiNotifier {
	if level == "" {
		level = LevelAll
	}
	return &MultiNotifier{channels: channels, level: level, logger: zerolog.Nop()}
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Channels returns the names of the configured channels.
func (mn *MultiNotifier) Channels() []string {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	names := make([]string, 0, len(mn.channels))
	for _, ch := range mn.channels {
		names = append(names, ch.Name())
	}
	return names
}

// shouldSend checks if a notification should be sent based on the level filter.
func (mn *MultiNotifier) shouldSend(notifType NotificationType) bool {
	switch mn.level {
	case LevelRiskOnly:
		return notifType == NotificationRisk || notifType == NotificationConnection
	case LevelErrorsOnly:
		return notifType == NotificationError
	default:
		return true
	}
}

// Send sends a notification to all enabled channels.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if !mn.shouldSend(n.Type) {
		return nil
	}

	if n.ID == "" {
		n.ID = NewID()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if ch.IsEnabled() {
			if err := ch.Send(ctx, n); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendError sends an error notification.
func (mn *MultiNotifier) SendError(ctx context.Context, err error, errContext string) error {
	return mn.Send(ctx, Notification{
		Type:    NotificationError,
		Title:   "Risk service unreachable",
		Message: fmt.Sprintf("%s: %v", errContext, err),
		Data: map[string]interface{}{
			"context": errContext,
			"error":   err.Error(),
		},
	})
}

// Close releases channel connections.
func (mn *MultiNotifier) Close() error {
	var firstErr error
	for _, c := range mn.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NoOpNotifier is a notifier that does nothing.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

func (n *NoOpNotifier) Send(ctx context.Context, notif Notification) error          { return nil }
func (n *NoOpNotifier) SendError(ctx context.Context, err error, context string) error { return nil }
func (n *NoOpNotifier) Close() error                                                  { return nil }

// Fanout sends every notification to each notifier, each applying its own
// level filter.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = NewID()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	var errs []error
	for _, notifier := range f {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) SendError(ctx context.Context, err error, errContext string) error {
	var errs []error
	for _, notifier := range f {
		if e := notifier.SendError(ctx, err, errContext); e != nil {
			errs = append(errs, e)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, notifier := range f {
		if err := notifier.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
