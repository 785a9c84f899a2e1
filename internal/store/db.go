package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func isSQLiteBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_BUSY
	}
	return false
}

// queryRow and exec retry once on SQLITE_BUSY for reads outside a
// transaction. Statements inside a transaction are not retried: a busy
// error there aborts the whole transaction and surfaces to the caller.
func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	row := s.db.QueryRowContext(ctx, query, args...)
	if row.Err() != nil && isSQLiteBusy(row.Err()) {
		time.Sleep(40 * time.Millisecond)
		row = s.db.QueryRowContext(ctx, query, args...)
	}
	return row
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil && isSQLiteBusy(err) {
		time.Sleep(40 * time.Millisecond)
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	return rows, err
}

func (s *Store) beginTx(ctx context.Context, name string) (*sql.Tx, time.Time, error) {
	start := time.Now()
	slog.Debug("tx begin", "op", name)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("tx begin failed", "op", name, "err", err)
		return nil, start, err
	}
	return tx, start, nil
}

func (s *Store) commitTx(tx *sql.Tx, name string, start time.Time) error {
	if tx == nil {
		return sql.ErrTxDone
	}
	err := tx.Commit()
	slog.Debug("tx commit", "op", name, "duration_ms", time.Since(start).Milliseconds(), "err", err)
	return err
}

func (s *Store) rollbackTx(tx *sql.Tx, name string, start time.Time) {
	if tx == nil {
		return
	}
	err := tx.Rollback()
	if err != nil && err != sql.ErrTxDone {
		slog.Warn("tx rollback failed", "op", name, "duration_ms", time.Since(start).Milliseconds(), "err", err)
		return
	}
	slog.Debug("tx rollback", "op", name, "duration_ms", time.Since(start).Milliseconds())
}
