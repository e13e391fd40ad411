package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// LINE webhook event and message type discriminators.
const (
	LineEventMessage = "message"
	LineMessageText  = "text"
)

// ErrMalformedEvent is returned when an event claims a known variant but is
// missing fields that variant requires.
var ErrMalformedEvent = errors.New("malformed webhook event")

// LineWebhook is the top-level LINE Messaging API webhook body. Events are
// kept raw until DecodeWebhook has checked their shape.
type LineWebhook struct {
	Destination string            `json:"destination"`
	Events      []json.RawMessage `json:"events"`
}

// Event is a decoded webhook event. Implementations are TextMessageEvent and
// OtherEvent.
type Event interface {
	EventType() string
}

// TextMessageEvent is a text message sent by a user.
type TextMessageEvent struct {
	WebhookEventID  string
	ReplyToken      string
	SenderID        string
	Text            string
	MarkAsReadToken string
	IsRedelivery    bool
}

func (TextMessageEvent) EventType() string { return LineEventMessage }

// OtherEvent is any event the bot does not act on (follow, sticker, image...).
type OtherEvent struct {
	Type        string
	MessageType string
}

func (e OtherEvent) EventType() string { return e.Type }

// lineEvent mirrors the subset of the LINE event object we read.
type lineEvent struct {
	Type            string `json:"type"`
	WebhookEventID  string `json:"webhookEventId"`
	ReplyToken      string `json:"replyToken"`
	DeliveryContext struct {
		IsRedelivery bool `json:"isRedelivery"`
	} `json:"deliveryContext"`
	Source struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	} `json:"source"`
	Message *struct {
		Type            string  `json:"type"`
		ID              string  `json:"id"`
		Text            *string `json:"text"`
		MarkAsReadToken string  `json:"markAsReadToken"`
	} `json:"message"`
}

// DecodeWebhook parses a webhook body and decodes every event into its typed
// variant. Any event that cannot be decoded fails the whole body.
func DecodeWebhook(body []byte) ([]Event, error) {
	var hook LineWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("decoding webhook body: %w", err)
	}
	events := make([]Event, 0, len(hook.Events))
	for i, raw := range hook.Events {
		evt, err := DecodeEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, evt)
	}
	return events, nil
}

// DecodeEvent decodes a single raw event, probing type and message.type to
// pick the variant.
func DecodeEvent(raw json.RawMessage) (Event, error) {
	var e lineEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	if e.Type != LineEventMessage || e.Message == nil || e.Message.Type != LineMessageText {
		other := OtherEvent{Type: e.Type}
		if e.Message != nil {
			other.MessageType = e.Message.Type
		}
		return other, nil
	}

	switch {
	case e.Message.Text == nil:
		return nil, fmt.Errorf("%w: text message without text", ErrMalformedEvent)
	case e.Source.UserID == "":
		return nil, fmt.Errorf("%w: text message without source.userId", ErrMalformedEvent)
	case e.ReplyToken == "":
		return nil, fmt.Errorf("%w: text message without replyToken", ErrMalformedEvent)
	}

	return TextMessageEvent{
		WebhookEventID:  e.WebhookEventID,
		ReplyToken:      e.ReplyToken,
		SenderID:        e.Source.UserID,
		Text:            *e.Message.Text,
		MarkAsReadToken: e.Message.MarkAsReadToken,
		IsRedelivery:    e.DeliveryContext.IsRedelivery,
	}, nil
}
