// Package store implements the versioning core of the guidebook: the
// document, locale and geometry tables with their append-only archives,
// the version ledger, the association graph and the cache-version
// invalidation propagation. Every exported mutation runs as a single
// transaction; callers retry on ConcurrencyError.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"guidebook/internal/document"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db            *sql.DB
	lockTimeout   time.Duration
	geomTolerance float64
}

type Options struct {
	LockTimeout   time.Duration
	GeomTolerance float64
}

func Open(path string) (*Store, error) {
	return OpenWithOptions(path, Options{})
}

func OpenWithOptions(path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	if opts.GeomTolerance <= 0 {
		opts.GeomTolerance = document.DefaultGeomTolerance
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.LockTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{
		db:            db,
		lockTimeout:   opts.LockTimeout,
		geomTolerance: opts.GeomTolerance,
	}, nil
}

// Migrate applies pending schema migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, s.db)
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func now() int64 {
	return time.Now().Unix()
}
