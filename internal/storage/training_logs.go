package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/claude/liftlog/internal/models"
)

// trainingLogLockKey identifies the advisory lock serializing appends.
const trainingLogLockKey int64 = 0x6c6966746c6f67

// AppendTrainingRecords writes records after the last existing row. The
// advisory lock is held until commit so concurrent batches never interleave.
func (db *DB) AppendTrainingRecords(ctx context.Context, records []models.TrainingRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", db.lockTimeout.Milliseconds())); err != nil {
		return 0, fmt.Errorf("setting lock timeout: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, trainingLogLockKey); err != nil {
		return 0, fmt.Errorf("acquiring training log lock: %w", pgError(err))
	}

	var last int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(row_num), 0) FROM training_logs`).Scan(&last); err != nil {
		return 0, fmt.Errorf("finding last row: %w", pgError(err))
	}

	query := `INSERT INTO training_logs (row_num, sender_id, session_date, location,
		exercise, weight, reps, top_set) VALUES `
	args := make([]any, 0, len(records)*8)
	valueStrings := make([]string, 0, len(records))

	for i, r := range records {
		base := i * 8
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d::date,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args, last+int64(i)+1, r.SenderID, r.Date.In(db.loc).Format(time.DateOnly),
			r.Location, r.Exercise, r.Weight, r.Reps, topSetValue(r))
	}
	query += strings.Join(valueStrings, ",")

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting training records: %w", pgError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing training records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// QueryTrainingRecords returns rows matching filter in append order.
func (db *DB) QueryTrainingRecords(ctx context.Context, filter models.RecordFilter) ([]models.TrainingRecord, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.SenderID != "" {
		add("sender_id = $%d", filter.SenderID)
	}
	if filter.Exercise != "" {
		add("strpos(lower(exercise), lower($%d)) > 0", filter.Exercise)
	}
	if s := dateBound(filter.Start, db.loc); s != "" {
		add("session_date >= $%d::date", s)
	}
	if e := dateBound(filter.End, db.loc); e != "" {
		add("session_date < $%d::date", e)
	}

	query := `SELECT sender_id, session_date, location, exercise, weight, reps, top_set
		FROM training_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY row_num"

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying training records: %w", pgError(err))
	}
	defer rows.Close()

	var result []models.TrainingRecord
	for rows.Next() {
		var r storedRow
		if err := rows.Scan(&r.SenderID, &r.Date, &r.Location, &r.Exercise,
			&r.Weight, &r.Reps, &r.TopSet); err != nil {
			return nil, fmt.Errorf("scanning training record: %w", err)
		}
		if rec, ok := r.record(db.loc); ok {
			result = append(result, rec)
		}
	}
	return result, rows.Err()
}

// pgError maps Postgres error codes onto the package sentinels.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "55P03": // lock_not_available
		return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
	case "42P01": // undefined_table
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
	}
	return err
}
