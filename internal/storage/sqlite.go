package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/claude/liftlog/internal/models"
)

// SQLiteDB is the single-file training log used for local deployments and tests.
type SQLiteDB struct {
	db  *sql.DB
	loc *time.Location
}

// OpenSQLite opens (or creates) the database file at path. Write transactions
// start with BEGIN IMMEDIATE and wait up to opts.LockTimeout for the file lock.
func OpenSQLite(path string, opts Options) (*SQLiteDB, error) {
	opts = opts.withDefaults()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=immediate",
		path, opts.LockTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	return &SQLiteDB{db: db, loc: opts.Location}, nil
}

// Close closes the database.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Location returns the zone session dates are interpreted in.
func (s *SQLiteDB) Location() *time.Location {
	return s.loc
}

// AppendTrainingRecords writes records after the last existing row inside
// one immediate transaction.
func (s *SQLiteDB) AppendTrainingRecords(ctx context.Context, records []models.TrainingRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("acquiring training log lock: %w", sqliteError(err))
	}
	defer tx.Rollback()

	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(row_num), 0) FROM training_logs`).Scan(&last); err != nil {
		return 0, fmt.Errorf("finding last row: %w", sqliteError(err))
	}

	query := `INSERT INTO training_logs (row_num, sender_id, session_date, location,
		exercise, weight, reps, top_set) VALUES `
	args := make([]any, 0, len(records)*8)
	valueStrings := make([]string, 0, len(records))
	for i, r := range records {
		valueStrings = append(valueStrings, "(?,?,?,?,?,?,?,?)")
		args = append(args, last+int64(i)+1, r.SenderID, r.Date.In(s.loc).Format(time.DateOnly),
			r.Location, r.Exercise, r.Weight, r.Reps, topSetValue(r))
	}
	query += strings.Join(valueStrings, ",")

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting training records: %w", sqliteError(err))
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing training records: %w", sqliteError(err))
	}
	return res.RowsAffected()
}

// QueryTrainingRecords returns rows matching filter in append order.
func (s *SQLiteDB) QueryTrainingRecords(ctx context.Context, filter models.RecordFilter) ([]models.TrainingRecord, error) {
	var conds []string
	var args []any
	if filter.SenderID != "" {
		conds = append(conds, "sender_id = ?")
		args = append(args, filter.SenderID)
	}
	if filter.Exercise != "" {
		conds = append(conds, "instr(lower(exercise), lower(?)) > 0")
		args = append(args, filter.Exercise)
	}
	if v := dateBound(filter.Start, s.loc); v != "" {
		conds = append(conds, "session_date >= ?")
		args = append(args, v)
	}
	if v := dateBound(filter.End, s.loc); v != "" {
		conds = append(conds, "session_date < ?")
		args = append(args, v)
	}

	query := `SELECT sender_id, session_date, location, exercise, weight, reps, top_set
		FROM training_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY row_num"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying training records: %w", sqliteError(err))
	}
	defer rows.Close()

	var result []models.TrainingRecord
	for rows.Next() {
		var r storedRow
		var date *string
		if err := rows.Scan(&r.SenderID, &date, &r.Location, &r.Exercise,
			&r.Weight, &r.Reps, &r.TopSet); err != nil {
			return nil, fmt.Errorf("scanning training record: %w", err)
		}
		if date != nil {
			if d, err := time.ParseInLocation(time.DateOnly, *date, s.loc); err == nil {
				r.Date = &d
			}
		}
		if rec, ok := r.record(s.loc); ok {
			result = append(result, rec)
		}
	}
	return result, rows.Err()
}

// AllowedSenders returns the set of sender IDs permitted to use the bot.
func (s *SQLiteDB) AllowedSenders(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, allowedSendersQuery)
	if err != nil {
		return nil, fmt.Errorf("querying allowed senders: %w", sqliteError(err))
	}
	defer rows.Close()

	result := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning allowed sender: %w", err)
		}
		result[id] = struct{}{}
	}
	return result, rows.Err()
}

// AddAllowedSender adds a sender to the allowlist. Adding twice is a no-op.
func (s *SQLiteDB) AddAllowedSender(ctx context.Context, senderID string) error {
	if strings.TrimSpace(senderID) == "" {
		return ErrEmptySenderID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO allowed_senders (sender_id) VALUES (?)`, senderID)
	if err != nil {
		return fmt.Errorf("adding allowed sender: %w", sqliteError(err))
	}
	return nil
}

// RemoveAllowedSender removes a sender and reports whether it was present.
func (s *SQLiteDB) RemoveAllowedSender(ctx context.Context, senderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM allowed_senders WHERE sender_id = ?`, senderID)
	if err != nil {
		return false, fmt.Errorf("removing allowed sender: %w", sqliteError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// sqliteError maps SQLite result codes onto the package sentinels.
func sqliteError(err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) && sqlErr.Code()&0xff == sqlite3.SQLITE_BUSY {
		return fmt.Errorf("%w: %s", ErrLockTimeout, sqlErr.Error())
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked"):
		return fmt.Errorf("%w: %s", ErrLockTimeout, msg)
	case strings.Contains(msg, "no such table"):
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return err
}
