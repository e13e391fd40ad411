package textlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
)

type fakeAppender struct {
	batches [][]models.TrainingRecord
	err     error
}

func (f *fakeAppender) AppendTrainingRecords(_ context.Context, records []models.TrainingRecord) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.batches = append(f.batches, records)
	return int64(len(records)), nil
}

func newTestProvider(store Appender) *Provider {
	p := NewProvider(store, tokyo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.now = func() time.Time { return refNow }
	return p
}

// TestProviderIngest verifies all sets of one message are appended as a single batch.
func TestProviderIngest(t *testing.T) {
	store := &fakeAppender{}
	p := newTestProvider(store)

	result, err := p.Ingest(context.Background(), "u1", "8/1 PowerGym\nBench 100:5,110:3\nSquat 120:5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(store.batches))
	}
	if len(store.batches[0]) != 3 {
		t.Errorf("batch size = %d, want 3", len(store.batches[0]))
	}
	if result.SetsReceived != 3 || result.SetsInserted != 3 {
		t.Errorf("result = %+v, want 3 received / 3 inserted", result)
	}
	if result.Exercises != 2 {
		t.Errorf("exercises = %d, want 2", result.Exercises)
	}
	if got := store.batches[0][0].Date.Format(time.DateOnly); got != "2025-08-01" {
		t.Errorf("date = %s, want 2025-08-01", got)
	}
	if result.Date != "2025-08-01" || result.Location != "PowerGym" {
		t.Errorf("session = %s %s, want 2025-08-01 PowerGym", result.Date, result.Location)
	}
}

// TestProviderIngestFormatError verifies nothing is stored when parsing fails.
func TestProviderIngestFormatError(t *testing.T) {
	store := &fakeAppender{}
	p := newTestProvider(store)

	_, err := p.Ingest(context.Background(), "u1", "8/1 PowerGym\nBench abc:5")
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FormatError", err)
	}
	if len(store.batches) != 0 {
		t.Errorf("batches = %d, want 0", len(store.batches))
	}
}

// TestProviderIngestHeaderOnly verifies an empty workout body skips the store.
func TestProviderIngestHeaderOnly(t *testing.T) {
	store := &fakeAppender{}
	p := newTestProvider(store)

	result, err := p.Ingest(context.Background(), "u1", "8/1 PowerGym")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.batches) != 0 {
		t.Errorf("batches = %d, want 0", len(store.batches))
	}
	if result.SetsReceived != 0 {
		t.Errorf("sets received = %d, want 0", result.SetsReceived)
	}
}

// TestProviderIngestStoreError verifies store failures are wrapped, not hidden.
func TestProviderIngestStoreError(t *testing.T) {
	sentinel := errors.New("lock timeout")
	p := newTestProvider(&fakeAppender{err: sentinel})

	_, err := p.Ingest(context.Background(), "u1", "8/1 PowerGym\nBench 100:5")
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want wrapped sentinel", err)
	}
}
