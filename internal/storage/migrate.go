package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// RunMigrations applies all pending Postgres migrations.
func RunMigrations(dsn string) error {
	return runMigrations("migrations/postgres", dsn)
}

// RunSQLiteMigrations applies all pending migrations to the SQLite file at path.
func RunSQLiteMigrations(path string) error {
	return runMigrations("migrations/sqlite", "sqlite://"+path)
}

func runMigrations(dir, databaseURL string) error {
	src, err := iofs.New(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("opening migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
