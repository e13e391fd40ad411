package storage

import (
	"context"
	"fmt"
)

// Drivers accepted by Open and Migrate.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Migrate applies pending migrations for driver. target is a Postgres DSN or
// a SQLite file path.
func Migrate(driver, target string) error {
	switch driver {
	case DriverPostgres:
		return RunMigrations(target)
	case DriverSQLite:
		return RunSQLiteMigrations(target)
	default:
		return fmt.Errorf("unknown store driver %q", driver)
	}
}

// Open connects to the training log backend selected by driver.
func Open(ctx context.Context, driver, target string, opts Options) (Store, error) {
	switch driver {
	case DriverPostgres:
		db, err := New(ctx, target, opts)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverSQLite:
		db, err := OpenSQLite(target, opts)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
