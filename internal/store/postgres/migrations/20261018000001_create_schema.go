package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

var (
	//go:embed 20261018000001_create_schema.up.sql
	createSchemaSQL string

	//go:embed 20261018000001_create_schema.down.sql
	dropSchemaSQL string
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createSchemaSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, dropSchemaSQL)
			return err
		},
	)
}
