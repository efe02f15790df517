package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres connects to PostgreSQL through the pgx stdlib driver and runs
// migrations.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db, Postgres); err != nil {
		db.Close()
		return nil, err
	}

	return newSQLStore(db, Postgres, opts...), nil
}

// Open opens the store for a configured driver. target is a file path for
// SQLite and a DSN for PostgreSQL.
func Open(ctx context.Context, driver, target string, opts ...Option) (*SQLStore, error) {
	d, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	if d == Postgres {
		return OpenPostgres(ctx, target, opts...)
	}
	return NewSQLiteStore(target, opts...)
}
