package migrations

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Up applies all pending migrations to a ClickHouse database
func Up(db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Run executes a goose command against the embedded migrations
func Run(db *sql.DB, command string, args ...string) error {
	if err := setup(); err != nil {
		return err
	}
	if err := goose.Run(command, db, ".", args...); err != nil {
		return fmt.Errorf("failed to run %s: %w", command, err)
	}
	return nil
}

func setup() error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}
