package db

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens (or creates) a SQLite database and applies pending
// migrations. ":memory:" gives a private database that lives as long as the
// returned handle.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = "userapi.db"
	}
	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// An in-memory database lives exactly as long as its one connection.
	d.SetMaxOpenConns(1)
	d.SetConnMaxLifetime(0)

	if err := d.PingContext(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}

	// journal_mode may not be supported in some contexts (e.g., in-memory). Ignore errors.
	_, _ = d.ExecContext(ctx, `PRAGMA journal_mode=WAL`)
	if _, err := d.ExecContext(ctx, `PRAGMA busy_timeout=5000`); err != nil {
		_ = d.Close()
		return nil, err
	}
	if _, err := MigrateSQLite(ctx, d); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}
