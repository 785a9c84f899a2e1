package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCacheVersion returns the monotonic staleness counter for a
// document and the time it last moved. External caches and the search
// sync compare it against what they indexed last.
func (s *Store) GetCacheVersion(ctx context.Context, documentID int64) (int64, time.Time, error) {
	var version, lastUpdated int64
	err := s.queryRow(ctx,
		`SELECT version, last_updated FROM cache_versions WHERE document_id = ?`,
		documentID).Scan(&version, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, &NotFoundError{What: "cache version for document", ID: documentID}
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("read cache version: %w", err)
	}
	return version, time.Unix(lastUpdated, 0), nil
}

// CacheVersionsSince lists documents whose cache version moved at or
// after the given time, for incremental index sync.
func (s *Store) CacheVersionsSince(ctx context.Context, since time.Time) (map[int64]int64, error) {
	rows, err := s.query(ctx,
		`SELECT document_id, version FROM cache_versions WHERE last_updated >= ?`,
		since.Unix())
	if err != nil {
		return nil, fmt.Errorf("read cache versions: %w", err)
	}
	defer rows.Close()
	versions := make(map[int64]int64)
	for rows.Next() {
		var id, version int64
		if err := rows.Scan(&id, &version); err != nil {
			return nil, fmt.Errorf("scan cache version: %w", err)
		}
		versions[id] = version
	}
	return versions, rows.Err()
}
