// Package events publishes training log notifications to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectSetsRecorded is published after a training message is stored.
	SubjectSetsRecorded = "liftlog.sets.recorded"
	// SubjectExportCreated is published after an export artifact is replaced.
	SubjectExportCreated = "liftlog.export.created"
)

// SetsRecorded describes one stored training message.
type SetsRecorded struct {
	SenderID string `json:"sender_id"`
	Sets     int64  `json:"sets"`
	Location string `json:"location"`
	Date     string `json:"date"`
}

// ExportCreated describes a published export artifact.
type ExportCreated struct {
	URL     string `json:"url"`
	Entries int    `json:"entries"`
}

// Publisher sends a JSON-encoded notification.
type Publisher interface {
	Publish(subject string, data any) error
}

// Nop discards every notification. It is used when NATS is not configured.
type Nop struct{}

func (Nop) Publish(string, any) error { return nil }

// Client is a NATS-backed Publisher.
type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewClient connects to url, retrying in the background if the server is
// not reachable yet.
func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("liftlog"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: nc, logger: logger}, nil
}

// Publish marshals data to JSON and publishes it on subject.
func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (c *Client) Close() {
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
