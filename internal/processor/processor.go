// Package processor routes LINE webhook events to ingest and export and
// replies to the sender.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/liftlog/internal/events"
	"github.com/claude/liftlog/internal/export"
	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/ingest/textlog"
	"github.com/claude/liftlog/internal/models"
)

// ExportCommand is the exact message text that triggers an export.
const ExportCommand = "json書き出し"

// Reply texts.
const (
	replyRecorded       = "登録したよ！💪"
	replyRejectedPrefix = "フォーマット間違ってるよ！📝"
	replyExported       = "✅ Jsonファイルを作成しました！\nこちらからダウンロードできます👇\n"
	replyExportFailed   = "❌ エクスポート失敗: "
)

// ErrUnauthorizedSender is returned for events from senders outside the allowlist.
var ErrUnauthorizedSender = errors.New("unauthorized sender")

// Outcome names what happened to one event.
type Outcome string

const (
	OutcomeIgnored      Outcome = "ignored"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeNormal       Outcome = "normal"
	OutcomeRecorded     Outcome = "recorded"
	OutcomeRejected     Outcome = "rejected"
	OutcomeExported     Outcome = "exported"
	OutcomeExportFailed Outcome = "export_failed"
)

// AllowlistSource loads the set of permitted sender IDs.
type AllowlistSource interface {
	AllowedSenders(ctx context.Context) (map[string]struct{}, error)
}

// Ingester parses and stores one training message.
type Ingester interface {
	Ingest(ctx context.Context, senderID, text string) (*ingest.Result, error)
}

// Exporter publishes the aggregated training history.
type Exporter interface {
	Export(ctx context.Context) (*export.Result, error)
}

// Messenger delivers replies and read receipts.
type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	MarkAsRead(ctx context.Context, markAsReadToken string) error
}

// Processor handles the events of one webhook delivery in order.
type Processor struct {
	allowlist AllowlistSource
	ingester  Ingester
	exporter  Exporter
	messenger Messenger
	events    events.Publisher
	logger    *slog.Logger
}

// New creates a processor. publisher may be nil.
func New(allowlist AllowlistSource, ingester Ingester, exporter Exporter, messenger Messenger, publisher events.Publisher, logger *slog.Logger) *Processor {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Processor{
		allowlist: allowlist,
		ingester:  ingester,
		exporter:  exporter,
		messenger: messenger,
		events:    publisher,
		logger:    logger,
	}
}

// IsAllowed reports whether senderID is in the allowlist.
func IsAllowed(senderID string, allowed map[string]struct{}) bool {
	_, ok := allowed[senderID]
	return ok
}

// HandleEvents processes evts sequentially. The allowlist is loaded once per
// call. Per-event failures are turned into replies or log lines; only a
// failure to load the allowlist is returned.
func (p *Processor) HandleEvents(ctx context.Context, evts []models.Event) ([]Outcome, error) {
	if len(evts) == 0 {
		return nil, nil
	}
	allowed, err := p.allowlist.AllowedSenders(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading allowed senders: %w", err)
	}

	outcomes := make([]Outcome, 0, len(evts))
	for _, evt := range evts {
		outcome, err := p.HandleEvent(ctx, evt, allowed)
		if errors.Is(err, ErrUnauthorizedSender) {
			p.logger.Warn("unauthorized sender", "sender", evt.(models.TextMessageEvent).SenderID)
		} else if err != nil {
			p.logger.Error("event failed", "outcome", outcome, "error", err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// HandleEvent processes a single event against a loaded allowlist.
func (p *Processor) HandleEvent(ctx context.Context, evt models.Event, allowed map[string]struct{}) (Outcome, error) {
	msg, ok := evt.(models.TextMessageEvent)
	if !ok {
		p.logger.Debug("ignoring event", "type", evt.EventType())
		return OutcomeIgnored, nil
	}
	if !IsAllowed(msg.SenderID, allowed) {
		return OutcomeUnauthorized, ErrUnauthorizedSender
	}

	switch {
	case msg.Text == ExportCommand:
		return p.handleExport(ctx, msg)
	case textlog.IsTrainingRecord(msg.Text):
		return p.handleTrainingLog(ctx, msg)
	default:
		p.logger.Info("normal message, no reply", "sender", msg.SenderID)
		return OutcomeNormal, nil
	}
}

func (p *Processor) handleExport(ctx context.Context, msg models.TextMessageEvent) (Outcome, error) {
	result, err := p.exporter.Export(ctx)
	if err != nil {
		p.logger.Error("export failed", "sender", msg.SenderID, "error", err)
		p.reply(ctx, msg, replyExportFailed+err.Error())
		return OutcomeExportFailed, nil
	}

	p.reply(ctx, msg, replyExported+result.URL)
	p.publish(events.SubjectExportCreated, events.ExportCreated{URL: result.URL, Entries: result.Entries})
	return OutcomeExported, nil
}

func (p *Processor) handleTrainingLog(ctx context.Context, msg models.TextMessageEvent) (Outcome, error) {
	if err := p.messenger.MarkAsRead(ctx, msg.MarkAsReadToken); err != nil {
		p.logger.Warn("mark as read failed", "sender", msg.SenderID, "error", err)
	}

	result, err := p.ingester.Ingest(ctx, msg.SenderID, msg.Text)
	if err != nil {
		var fe *textlog.FormatError
		if errors.As(err, &fe) {
			p.logger.Info("training log rejected", "sender", msg.SenderID, "line", fe.Line, "reason", fe.Msg)
		} else {
			p.logger.Error("storing training log failed", "sender", msg.SenderID, "error", err)
		}
		p.reply(ctx, msg, replyRejectedPrefix+"-> "+err.Error())
		return OutcomeRejected, nil
	}

	p.reply(ctx, msg, replyRecorded)
	if result.SetsInserted > 0 {
		p.publish(events.SubjectSetsRecorded, events.SetsRecorded{
			SenderID: msg.SenderID,
			Sets:     result.SetsInserted,
			Location: result.Location,
			Date:     result.Date,
		})
	}
	return OutcomeRecorded, nil
}

// reply failures are logged and never change the outcome.
func (p *Processor) reply(ctx context.Context, msg models.TextMessageEvent, text string) {
	if err := p.messenger.Reply(ctx, msg.ReplyToken, text); err != nil {
		p.logger.Error("reply failed", "sender", msg.SenderID, "error", err)
	}
}

func (p *Processor) publish(subject string, data any) {
	if err := p.events.Publish(subject, data); err != nil {
		p.logger.Warn("publishing event failed", "subject", subject, "error", err)
	}
}
