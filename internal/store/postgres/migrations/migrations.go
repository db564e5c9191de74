// Package migrations holds the Postgres schema, applied with bun's migrator.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// Up applies every pending migration to the database at dsn.
func Up(ctx context.Context, dsn string) error {
	return run(ctx, dsn, func(m *migrate.Migrator) error {
		group, err := m.Migrate(ctx)
		if err != nil {
			return err
		}

		if group.IsZero() {
			slog.InfoContext(ctx, "migrations: nothing to apply")
			return nil
		}

		slog.InfoContext(ctx, "migrations: applied", "group", group.String())
		return nil
	})
}

// Down rolls back the last applied migration group.
func Down(ctx context.Context, dsn string) error {
	return run(ctx, dsn, func(m *migrate.Migrator) error {
		group, err := m.Rollback(ctx)
		if err != nil {
			return err
		}

		slog.InfoContext(ctx, "migrations: rolled back", "group", group.String())
		return nil
	})
}

func run(ctx context.Context, dsn string, fn func(m *migrate.Migrator) error) error {
	if dsn == "" {
		return fmt.Errorf("migrations: postgres dsn not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	m := migrate.NewMigrator(db, Migrations)
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("migrations: init: %w", err)
	}

	if err := m.Lock(ctx); err != nil {
		return fmt.Errorf("migrations: lock: %w", err)
	}
	defer func() {
		_ = m.Unlock(ctx)
	}()

	return fn(m)
}
