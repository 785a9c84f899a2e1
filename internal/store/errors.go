package store

import (
	"errors"
	"fmt"

	"guidebook/internal/document"
)

var (
	// ErrAlreadyLatest rejects reverting to the version that is
	// already current for the lang.
	ErrAlreadyLatest = errors.New("version is already the latest")
	// ErrLatestVersion rejects masking the only visible current
	// version of a lang.
	ErrLatestVersion = errors.New("cannot mask the latest version")
)

// ValidationError reports malformed input, rejected before storage is
// touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown document, version or association.
type NotFoundError struct {
	What string
	ID   int64
}

func (e *NotFoundError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s %d not found", e.What, e.ID)
	}
	return fmt.Sprintf("%s not found", e.What)
}

// ConcurrencyError reports a stale optimistic-lock version: the document
// was edited by someone else between read and write.
type ConcurrencyError struct {
	DocumentID int64
	Expected   int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("document %d was edited concurrently (expected version %d)", e.DocumentID, e.Expected)
}

// DuplicateAssociationError reports an edge that already exists in
// either direction.
type DuplicateAssociationError struct {
	ParentID int64
	ChildID  int64
}

func (e *DuplicateAssociationError) Error() string {
	return fmt.Sprintf("association between %d and %d already exists", e.ParentID, e.ChildID)
}

// InvalidAssociationTypeError reports a (parent, child) type pair that
// is not in the association whitelist.
type InvalidAssociationTypeError struct {
	ParentType document.Type
	ChildType  document.Type
}

func (e *InvalidAssociationTypeError) Error() string {
	return fmt.Sprintf("association between %q and %q documents is not allowed", e.ParentType, e.ChildType)
}

// StructuralIntegrityError blocks an association removal that would
// orphan a required relationship.
type StructuralIntegrityError struct {
	Reason string
}

func (e *StructuralIntegrityError) Error() string {
	return e.Reason
}

// PermissionError reports a requester lacking the role required for the
// operation.
type PermissionError struct {
	UserID int64
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %d: %s", e.UserID, e.Reason)
}
