package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgxpool.Pool and provides repository methods.
type DB struct {
	Pool *pgxpool.Pool

	loc         *time.Location
	lockTimeout time.Duration
}

// New creates a new DB with a connection pool.
func New(ctx context.Context, dsn string, opts Options) (*DB, error) {
	opts = opts.withDefaults()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{Pool: pool, loc: opts.Location, lockTimeout: opts.LockTimeout}, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// Location returns the zone session dates are interpreted in.
func (db *DB) Location() *time.Location {
	return db.loc
}
