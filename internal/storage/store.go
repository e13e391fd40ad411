package storage

import (
	"context"
	"errors"
	"time"

	"github.com/claude/liftlog/internal/models"
)

var (
	// ErrNotFound is returned when a table or other required resource is missing.
	ErrNotFound = errors.New("resource not found")

	// ErrLockTimeout is returned when the append lock cannot be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for training log lock")

	// ErrEmptySenderID is returned when adding a blank sender to the allowlist.
	ErrEmptySenderID = errors.New("sender id is empty")
)

// DefaultLockTimeout bounds the wait for the append lock.
const DefaultLockTimeout = 30 * time.Second

// Store is the training log and sender allowlist. *DB (Postgres) and
// *SQLiteDB both satisfy it.
type Store interface {
	// AppendTrainingRecords writes records as new rows after the current last
	// row, holding an exclusive lock for the whole batch.
	AppendTrainingRecords(ctx context.Context, records []models.TrainingRecord) (int64, error)
	// QueryTrainingRecords returns stored rows in append order. Rows missing
	// sender, date, location or exercise are skipped.
	QueryTrainingRecords(ctx context.Context, filter models.RecordFilter) ([]models.TrainingRecord, error)

	AllowedSenders(ctx context.Context) (map[string]struct{}, error)
	AddAllowedSender(ctx context.Context, senderID string) error
	RemoveAllowedSender(ctx context.Context, senderID string) (bool, error)

	// Location is the time zone stored dates are interpreted in.
	Location() *time.Location
	Close() error
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*SQLiteDB)(nil)
)

// Options configures either store backend.
type Options struct {
	Location    *time.Location
	LockTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = DefaultLockTimeout
	}
	return o
}

// topSetValue is the stored flag: 1 for the top set, NULL otherwise.
func topSetValue(r models.TrainingRecord) any {
	if r.IsTopSet {
		return 1
	}
	return nil
}

// storedRow holds one row as read back, with every column nullable.
type storedRow struct {
	SenderID *string
	Date     *time.Time
	Location *string
	Exercise *string
	Weight   *float64
	Reps     *int
	TopSet   *int
}

// record converts a row to a TrainingRecord in loc. ok is false for rows
// missing an essential column.
func (r storedRow) record(loc *time.Location) (models.TrainingRecord, bool) {
	if r.SenderID == nil || *r.SenderID == "" ||
		r.Date == nil ||
		r.Location == nil || *r.Location == "" ||
		r.Exercise == nil || *r.Exercise == "" ||
		r.Weight == nil || r.Reps == nil {
		return models.TrainingRecord{}, false
	}
	d := *r.Date
	return models.TrainingRecord{
		SenderID: *r.SenderID,
		Date:     time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc),
		Location: *r.Location,
		Exercise: *r.Exercise,
		Weight:   *r.Weight,
		Reps:     *r.Reps,
		IsTopSet: r.TopSet != nil && *r.TopSet == 1,
	}, true
}

// dateBound formats an optional filter bound as YYYY-MM-DD in loc.
func dateBound(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(time.DateOnly)
}
