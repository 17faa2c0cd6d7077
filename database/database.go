// Package database owns the account schema.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// Execer is the part of *sql.DB used to clean up after a previous run.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migrate applies pending migrations and clears online markers left behind
// by a previous run of serverName.
func Migrate(ctx context.Context, dsn, serverName string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := Up(ctx, db); err != nil {
		return err
	}

	if _, err := ResetOnline(ctx, db, serverName); err != nil {
		return err
	}
	return nil
}

// Up applies all pending migrations.
func Up(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// ResetOnline removes every online marker owned by serverName. Markers of a
// crashed process would otherwise keep its accounts locked out.
func ResetOnline(ctx context.Context, db Execer, serverName string) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM online_accounts WHERE server_name = $1`, serverName)
	if err != nil {
		return 0, fmt.Errorf("failed to reset online accounts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reset online accounts: %w", err)
	}
	return n, nil
}
