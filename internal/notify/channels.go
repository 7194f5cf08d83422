package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"risklock/pkg/utils"
)

// LogChannel writes notifications to the structured log.
type LogChannel struct {
	logger zerolog.Logger
}

// NewLogChannel creates a LogChannel.
func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (l *LogChannel) Name() string    { return "log" }
func (l *LogChannel) IsEnabled() bool { return true }

func (l *LogChannel) Send(ctx context.Context, n Notification) error {
	event := l.logger.Info()
	if n.Type == NotificationError {
		event = l.logger.Warn()
	}
	event.
		Str("event", "notification").
		Str("id", n.ID).
		Str("type", string(n.Type)).
		Str("title", n.Title).
		Fields(n.Data).
		Msg(n.Message)
	return nil
}

// WebhookChannel posts notifications as JSON.
type WebhookChannel struct {
	url    string
	client *resty.Client
	retry  utils.RetryConfig
}

// NewWebhookChannel creates a WebhookChannel.
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		url: url,
		client: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json"),
		retry: utils.DefaultRetryConfig(),
	}
}

func (w *WebhookChannel) Name() string    { return "webhook" }
func (w *WebhookChannel) IsEnabled() bool { return w.url != "" }

func (w *WebhookChannel) Send(ctx context.Context, n Notification) error {
	payload := map[string]interface{}{
		"id":        n.ID,
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	return utils.Retry(ctx, w.retry, func() error {
		resp, err := w.client.R().SetContext(ctx).SetBody(payload).Post(w.url)
		if err != nil {
			return fmt.Errorf("failed to send webhook: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode())
		}
		return nil
	})
}

// NATSChannel publishes notifications to "<subject>.<type>".
type NATSChannel struct {
	nc      *nats.Conn
	subject string
}

// NewNATSChannel connects to a NATS server.
func NewNATSChannel(url, subject string, logger zerolog.Logger) (*NATSChannel, error) {
	nc, err := nats.Connect(url,
		nats.Name("risklock-terminal"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewNATSChannelWithConn(nc, subject), nil
}

// NewNATSChannelWithConn wraps an existing connection.
func NewNATSChannelWithConn(nc *nats.Conn, subject string) *NATSChannel {
	if subject == "" {
		subject = "risklock.dashboard"
	}
	return &NATSChannel{nc: nc, subject: subject}
}

// Subject returns the subject a notification type is published on.
func (c *NATSChannel) Subject(t NotificationType) string {
	return c.subject + "." + string(t)
}

func (c *NATSChannel) Name() string    { return "nats" }
func (c *NATSChannel) IsEnabled() bool { return c.nc != nil && !c.nc.IsClosed() }

func (c *NATSChannel) Send(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg := nats.NewMsg(c.Subject(n.Type))
	msg.Header.Set(nats.MsgIdHdr, n.ID)
	msg.Data = data
	if err := c.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close drains the connection.
func (c *NATSChannel) Close() error {
	if c.nc == nil || c.nc.IsClosed() {
		return nil
	}
	return c.nc.Drain()
}
