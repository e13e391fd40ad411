// Package line talks to the LINE Messaging API.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultAPIURL = "https://api.line.me"

const maxAttempts = 3

// Client sends replies and read receipts on behalf of the bot.
type Client struct {
	token   string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
	backoff func(attempt int) time.Duration
}

// NewClient creates a client authenticated with a channel access token.
func NewClient(token string, logger *slog.Logger) *Client {
	return &Client{
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		apiURL: defaultAPIURL,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt-1)) * time.Second
		},
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reply sends a single text message using a webhook reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	body, err := json.Marshal(map[string]any{
		"replyToken": replyToken,
		"messages":   []textMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	if err := c.post(ctx, "/v2/bot/message/reply", body); err != nil {
		return fmt.Errorf("line reply: %w", err)
	}
	c.logger.Debug("replied to line message")
	return nil
}

// MarkAsRead marks the chat up to the message carrying token as read.
// An empty token is skipped.
func (c *Client) MarkAsRead(ctx context.Context, markAsReadToken string) error {
	if markAsReadToken == "" {
		c.logger.Debug("no markAsReadToken, skipping mark as read")
		return nil
	}
	body, err := json.Marshal(map[string]string{"markAsReadToken": markAsReadToken})
	if err != nil {
		return fmt.Errorf("marshal mark as read: %w", err)
	}
	if err := c.post(ctx, "/v2/bot/chat/markAsRead", body); err != nil {
		return fmt.Errorf("line mark as read: %w", err)
	}
	return nil
}

// APIError is a non-2xx response from the Messaging API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// post sends body to path, retrying transport errors and 5xx responses.
func (c *Client) post(ctx context.Context, path string, body []byte) error {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = &APIError{StatusCode: resp.StatusCode, Message: apiMessage(respBody)}
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

// apiMessage extracts the "message" field of an error body, falling back to
// the raw body.
func apiMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return string(bytes.TrimSpace(body))
}
