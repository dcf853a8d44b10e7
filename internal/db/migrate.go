package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Versioned scripts live under migrations/<dialect>/ as
//
//	0001_name.up.sql / 0001_name.down.sql
//
//go:embed migrations
var migrationsFS embed.FS

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func migrationSource(d Dialect) (source.Driver, error) {
	src, err := iofs.New(migrationsFS, "migrations/"+string(d))
	if err != nil {
		return nil, fmt.Errorf("load %s migrations: %w", d, err)
	}
	return src, nil
}

// versions lists the embedded versions of src in ascending order.
func versions(src source.Driver) ([]uint, error) {
	v, err := src.First()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := []uint{v}
	for {
		v, err = src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// runner is one migrate instance over an embedded source plus the versions
// that source holds.
type runner struct {
	m        *migrate.Migrate
	versions []uint
}

func newRunner(d Dialect, dbName string, drv database.Driver) (*runner, error) {
	src, err := migrationSource(d)
	if err != nil {
		return nil, err
	}

	all, err := versions(src)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, drv)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("init migrations: %w", err)
	}

	return &runner{m: m, versions: all}, nil
}

// current is the applied version, 0 when nothing is applied. A dirty version
// means an earlier run failed half way and needs an operator.
func (r *runner) current() (uint, error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return 0, fmt.Errorf("schema version %d is dirty", v)
	}
	return v, nil
}

// stopOnCancel asks migrate to stop after the running script once ctx is done.
func (r *runner) stopOnCancel(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			r.m.GracefulStop <- true
		case <-done:
		}
	}()

	return fn()
}

// up applies every pending version and reports how many ran.
func (r *runner) up(ctx context.Context) (int, error) {
	before, err := r.current()
	if err != nil {
		return 0, err
	}

	err = r.stopOnCancel(ctx, r.m.Up)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}

	after, err := r.current()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, v := range r.versions {
		if v > before && v <= after {
			n++
		}
	}
	return n, nil
}

// down reverts the newest applied version and returns it, or 0 when nothing
// is applied.
func (r *runner) down(ctx context.Context) (int, error) {
	v, err := r.current()
	if err != nil || v == 0 {
		return 0, err
	}

	if err := r.stopOnCancel(ctx, func() error { return r.m.Steps(-1) }); err != nil {
		return 0, fmt.Errorf("rollback %04d: %w", v, err)
	}
	return int(v), nil
}

// sqliteRunner leaves d open: closing the migrate instance would close the
// caller's handle along with it.
func sqliteRunner(d *sql.DB) (*runner, error) {
	drv, err := sqlitemigrate.WithInstance(d, &sqlitemigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlite migration driver: %w", err)
	}
	return newRunner(SQLite, "sqlite3", drv)
}

// MigrateSQLite applies pending migrations and reports how many ran.
func MigrateSQLite(ctx context.Context, d *sql.DB) (int, error) {
	r, err := sqliteRunner(d)
	if err != nil {
		return 0, err
	}
	return r.up(ctx)
}

func RollbackSQLite(ctx context.Context, d *sql.DB) (int, error) {
	r, err := sqliteRunner(d)
	if err != nil {
		return 0, err
	}
	return r.down(ctx)
}

// withPostgresRunner borrows one connection from pool for the migrate lock and
// scripts, and hands it back when fn returns. The pool stays open.
func withPostgresRunner(ctx context.Context, pool *pgxpool.Pool, fn func(r *runner, ctx context.Context) (int, error)) (int, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)

	drv, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		_ = sqlDB.Close()
		return 0, fmt.Errorf("postgres migration driver: %w", err)
	}
	defer sqlDB.Close()

	r, err := newRunner(Postgres, "pgx5", drv)
	if err != nil {
		_ = drv.Close()
		return 0, err
	}
	defer r.m.Close()

	return fn(r, ctx)
}

// MigratePostgres applies pending migrations and reports how many ran.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	return withPostgresRunner(ctx, pool, (*runner).up)
}

func RollbackPostgres(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	return withPostgresRunner(ctx, pool, (*runner).down)
}
