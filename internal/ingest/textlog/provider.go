package textlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
)

// Appender stores parsed records as new rows of the training log.
type Appender interface {
	AppendTrainingRecords(ctx context.Context, records []models.TrainingRecord) (int64, error)
}

// Provider parses chat training logs and appends them to the store.
type Provider struct {
	store Appender
	loc   *time.Location
	now   func() time.Time
	log   *slog.Logger
}

// NewProvider creates a new training log ingest provider. loc is the time
// zone used to infer the year of headers without one.
func NewProvider(store Appender, loc *time.Location, log *slog.Logger) *Provider {
	if loc == nil {
		loc = time.UTC
	}
	return &Provider{store: store, loc: loc, now: time.Now, log: log}
}

// Ingest parses one message and appends all of its sets in a single batch.
// A *FormatError is returned unwrapped so callers can show it to the sender.
func (p *Provider) Ingest(ctx context.Context, senderID, text string) (*ingest.Result, error) {
	records, err := Parse(senderID, text, p.now().In(p.loc))
	if err != nil {
		return nil, err
	}

	result := &ingest.Result{SetsReceived: len(records)}
	exercises := map[string]struct{}{}
	for _, r := range records {
		exercises[r.Exercise] = struct{}{}
	}
	result.Exercises = len(exercises)

	if len(records) == 0 {
		result.Message = "no workout lines"
		return result, nil
	}
	result.Date = records[0].Date.Format(time.DateOnly)
	result.Location = records[0].Location

	inserted, err := p.store.AppendTrainingRecords(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("appending training records: %w", err)
	}
	result.SetsInserted = inserted

	p.log.Info("training log stored",
		"sender", senderID,
		"date", result.Date,
		"location", result.Location,
		"sets", inserted,
	)
	return result, nil
}
