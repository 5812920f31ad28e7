package persist

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending goose migration embedded under
// internal/persist/migrations.
func Migrate(ctx context.Context, d *DB) error {
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("persist: set dialect: %w", err)
	}
	goose.SetBaseFS(migrationsFS)

	db := stdlib.OpenDBFromPool(d.Pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("persist: migrate: %w", err)
	}
	return nil
}
