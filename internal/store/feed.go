package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"guidebook/internal/document"
)

// FeedChange is one entry of the activity feed: a document creation,
// update or merge, with a stable opaque id for syndication.
type FeedChange struct {
	ID           string
	DocumentID   int64
	DocumentType document.Type
	UserID       int64
	ChangeType   string
	Langs        []string
	WrittenAt    time.Time
}

// RecentChanges lists feed entries, most recent first.
func (s *Store) RecentChanges(ctx context.Context, limit int) ([]FeedChange, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx,
		`SELECT change_id, document_id, document_type, user_id, change_type, langs, written_at FROM documents_changes ORDER BY written_at DESC, change_id LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("read changes: %w", err)
	}
	defer rows.Close()
	var changes []FeedChange
	for rows.Next() {
		var c FeedChange
		var typ, langsRaw string
		var writtenAt int64
		if err := rows.Scan(&c.ID, &c.DocumentID, &typ, &c.UserID, &c.ChangeType, &langsRaw, &writtenAt); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		c.DocumentType = document.Type(typ)
		c.WrittenAt = time.Unix(writtenAt, 0)
		if err := json.Unmarshal([]byte(langsRaw), &c.Langs); err != nil {
			return nil, fmt.Errorf("decode change langs: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (s *Store) insertChangeTx(ctx context.Context, tx *sql.Tx, docID int64, typ document.Type, userID int64, changeType string, langs []string, ts int64) error {
	if langs == nil {
		langs = []string{}
	}
	langsRaw, err := json.Marshal(langs)
	if err != nil {
		return fmt.Errorf("encode change langs: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents_changes (change_id, document_id, document_type, user_id, change_type, langs, written_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), docID, string(typ), userID, changeType, string(langsRaw), ts); err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	return nil
}
