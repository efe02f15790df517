package store

import (
	"database/sql"
	"fmt"

	"github.com/hyperengineering/grmsync/migrations"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies all pending migrations for the dialect using goose
// and the embedded SQL files from the migrations package.
func RunMigrations(db *sql.DB, d Dialect) error {
	// Disable goose's default logging to avoid stdout noise
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect(d.gooseDialect()); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, d.migrationDir()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
