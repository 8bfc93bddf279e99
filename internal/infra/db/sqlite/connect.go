package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/bryanwahyu/n0dr1e/internal/infra/db/sqlrepo"
)

// MemoryDSN is a private in-memory database, handy for tests.
const MemoryDSN = ":memory:"

// Connect opens a SQLite database at path. A single connection is used so
// writes never contend and :memory: databases stay shared.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = MemoryDSN
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	return sqlrepo.Migrate(ctx, db, sqlrepo.SQLite)
}
