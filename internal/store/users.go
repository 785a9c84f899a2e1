package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"guidebook/internal/auth"
	"guidebook/internal/document"
)

// User is an account. Its id is the id of the user-profile document, so
// accounts participate in the association graph and the propagation
// rules like any other document.
type User struct {
	DocumentID int64
	Name       string
	Moderator  bool
}

// CreateUser creates the user-profile document and the account row in
// one transaction.
func (s *Store) CreateUser(ctx context.Context, name, password string, moderator bool) (int64, error) {
	if name == "" {
		return 0, &ValidationError{Field: "name", Reason: "name must not be empty"}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, &ValidationError{Field: "password", Reason: err.Error()}
	}

	tx, start, err := s.beginTx(ctx, "create user")
	if err != nil {
		return 0, err
	}
	defer s.rollbackTx(tx, "create user", start)

	docID, err := s.createDocumentTx(ctx, tx, document.TypeUserProfile, EditInput{
		Locales: []document.Locale{{Lang: "en", Title: name}},
		Comment: "user profile created",
	})
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (document_id, name, password_hash, moderator) VALUES (?, ?, ?, ?)`,
		docID, name, hash, moderator); err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	if err := s.commitTx(tx, "create user", start); err != nil {
		return 0, err
	}
	return docID, nil
}

// Authenticate checks credentials and returns the account.
func (s *Store) Authenticate(ctx context.Context, name, password string) (*User, error) {
	var u User
	var hash string
	err := s.queryRow(ctx,
		`SELECT document_id, name, password_hash, moderator FROM users WHERE name = ?`,
		name).Scan(&u.DocumentID, &u.Name, &hash, &u.Moderator)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{What: fmt.Sprintf("user %q", name)}
	}
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}
	if !auth.VerifyPassword(hash, password) {
		return nil, &PermissionError{UserID: u.DocumentID, Reason: "invalid credentials"}
	}
	return &u, nil
}

// IsModerator reports whether the user holds the moderator role. An
// unknown id is simply not a moderator.
func (s *Store) IsModerator(ctx context.Context, userID int64) (bool, error) {
	var moderator bool
	err := s.queryRow(ctx,
		`SELECT moderator FROM users WHERE document_id = ?`, userID).Scan(&moderator)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read user: %w", err)
	}
	return moderator, nil
}

func (s *Store) isModeratorTx(ctx context.Context, tx *sql.Tx, userID int64) (bool, error) {
	var moderator bool
	err := tx.QueryRowContext(ctx,
		`SELECT moderator FROM users WHERE document_id = ?`, userID).Scan(&moderator)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read user: %w", err)
	}
	return moderator, nil
}
