package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"guidebook/internal/document"
)

// Association is a typed edge between two documents. Storage is
// directional; user-facing semantics are symmetric, so duplicate checks
// and lookups consider both orientations.
type Association struct {
	ParentID   int64
	ChildID    int64
	ParentType document.Type
	ChildType  document.Type
}

// validAssociations whitelists the (parent, child) type pairs an edge
// may be stored as. A submitted edge matching only the reversed pair is
// stored reversed.
var validAssociations = map[document.Type][]document.Type{
	document.TypeWaypoint: {
		document.TypeWaypoint, document.TypeRoute, document.TypeArticle,
		document.TypeImage, document.TypeBook, document.TypeXreport,
	},
	document.TypeRoute: {
		document.TypeRoute, document.TypeOuting, document.TypeArticle,
		document.TypeImage, document.TypeBook, document.TypeXreport,
	},
	document.TypeOuting: {
		document.TypeArticle, document.TypeImage, document.TypeXreport,
	},
	document.TypeUserProfile: {
		document.TypeOuting, document.TypeArticle, document.TypeImage,
		document.TypeXreport,
	},
	document.TypeArea: {
		document.TypeWaypoint, document.TypeRoute, document.TypeOuting,
		document.TypeImage, document.TypeArticle, document.TypeXreport,
	},
	document.TypeMap: {
		document.TypeWaypoint, document.TypeRoute, document.TypeOuting,
	},
	document.TypeArticle: {
		document.TypeImage,
	},
	document.TypeBook: {
		document.TypeImage,
	},
	document.TypeXreport: {
		document.TypeImage,
	},
}

func associationAllowed(parent, child document.Type) bool {
	for _, t := range validAssociations[parent] {
		if t == child {
			return true
		}
	}
	return false
}

// AddAssociation links two documents. Both must exist and not be
// redirected, the type pair must be whitelisted, and associations
// touching a user profile require the requester to be that user or a
// moderator. The new edge bumps the cache versions of both closures in
// the same transaction.
func (s *Store) AddAssociation(ctx context.Context, parentID, childID, userID int64) error {
	if parentID == childID {
		return &ValidationError{Field: "association", Reason: "cannot associate a document with itself"}
	}
	tx, start, err := s.beginTx(ctx, "add association")
	if err != nil {
		return err
	}
	defer s.rollbackTx(tx, "add association", start)

	parent, err := s.readDocRowTx(ctx, tx, parentID)
	if err != nil {
		return err
	}
	child, err := s.readDocRowTx(ctx, tx, childID)
	if err != nil {
		return err
	}
	if parent.redirectsTo != nil || child.redirectsTo != nil {
		return &ValidationError{Field: "association", Reason: "redirected documents cannot be associated"}
	}

	edge := Association{ParentID: parentID, ChildID: childID, ParentType: parent.typ, ChildType: child.typ}
	switch {
	case associationAllowed(parent.typ, child.typ):
		// stored as submitted
	case associationAllowed(child.typ, parent.typ):
		edge = Association{ParentID: childID, ChildID: parentID, ParentType: child.typ, ChildType: parent.typ}
	default:
		return &InvalidAssociationTypeError{ParentType: parent.typ, ChildType: child.typ}
	}

	if err := s.checkAssociationPermissionTx(ctx, tx, edge, userID); err != nil {
		return err
	}

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM associations WHERE (parent_document_id = ? AND child_document_id = ?) OR (parent_document_id = ? AND child_document_id = ?)`,
		parentID, childID, childID, parentID).Scan(&one)
	if err == nil {
		return &DuplicateAssociationError{ParentID: parentID, ChildID: childID}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check association: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO associations (parent_document_id, child_document_id, parent_document_type, child_document_type) VALUES (?, ?, ?, ?)`,
		edge.ParentID, edge.ChildID, string(edge.ParentType), string(edge.ChildType)); err != nil {
		return fmt.Errorf("insert association: %w", err)
	}
	if err := s.insertAssociationLogTx(ctx, tx, edge, userID, true, now()); err != nil {
		return err
	}
	if err := s.propagateAssociationTx(ctx, tx, edge); err != nil {
		return err
	}
	return s.commitTx(tx, "add association", start)
}

// RemoveAssociation deletes an edge. Removals that would orphan a
// required relationship are blocked: the route's designated main
// waypoint, the last waypoint of a route, the last route of an outing.
func (s *Store) RemoveAssociation(ctx context.Context, parentID, childID, userID int64) error {
	tx, start, err := s.beginTx(ctx, "remove association")
	if err != nil {
		return err
	}
	defer s.rollbackTx(tx, "remove association", start)

	var edge Association
	var ptype, ctype string
	err = tx.QueryRowContext(ctx,
		`SELECT parent_document_id, child_document_id, parent_document_type, child_document_type FROM associations WHERE (parent_document_id = ? AND child_document_id = ?) OR (parent_document_id = ? AND child_document_id = ?)`,
		parentID, childID, childID, parentID).Scan(&edge.ParentID, &edge.ChildID, &ptype, &ctype)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{What: fmt.Sprintf("association between %d and %d", parentID, childID)}
	}
	if err != nil {
		return fmt.Errorf("read association: %w", err)
	}
	edge.ParentType = document.Type(ptype)
	edge.ChildType = document.Type(ctype)

	if err := s.checkAssociationPermissionTx(ctx, tx, edge, userID); err != nil {
		return err
	}
	if err := s.checkRemovalGuardsTx(ctx, tx, edge); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM associations WHERE parent_document_id = ? AND child_document_id = ?`,
		edge.ParentID, edge.ChildID); err != nil {
		return fmt.Errorf("delete association: %w", err)
	}
	if err := s.insertAssociationLogTx(ctx, tx, edge, userID, false, now()); err != nil {
		return err
	}
	if err := s.propagateAssociationTx(ctx, tx, edge); err != nil {
		return err
	}
	return s.commitTx(tx, "remove association", start)
}

// checkAssociationPermissionTx enforces the role rule: edges touching a
// user profile may only be managed by that user or a moderator.
func (s *Store) checkAssociationPermissionTx(ctx context.Context, tx *sql.Tx, edge Association, userID int64) error {
	for _, side := range []struct {
		id  int64
		typ document.Type
	}{
		{edge.ParentID, edge.ParentType},
		{edge.ChildID, edge.ChildType},
	} {
		if side.typ != document.TypeUserProfile || side.id == userID {
			continue
		}
		mod, err := s.isModeratorTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !mod {
			return &PermissionError{UserID: userID, Reason: fmt.Sprintf("only user %d or a moderator may manage this association", side.id)}
		}
	}
	return nil
}

func (s *Store) checkRemovalGuardsTx(ctx context.Context, tx *sql.Tx, edge Association) error {
	if edge.ParentType == document.TypeWaypoint && edge.ChildType == document.TypeRoute {
		mainID, err := s.routeMainWaypointTx(ctx, tx, edge.ChildID)
		if err != nil {
			return err
		}
		if mainID != nil && *mainID == edge.ParentID {
			return &StructuralIntegrityError{Reason: fmt.Sprintf("waypoint %d is the main waypoint of route %d", edge.ParentID, edge.ChildID)}
		}
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM associations WHERE child_document_id = ? AND parent_document_type = ? AND child_document_type = ?`,
			edge.ChildID, string(document.TypeWaypoint), string(document.TypeRoute)).Scan(&count); err != nil {
			return fmt.Errorf("count route waypoints: %w", err)
		}
		if count <= 1 {
			return &StructuralIntegrityError{Reason: fmt.Sprintf("waypoint %d is the last waypoint of route %d", edge.ParentID, edge.ChildID)}
		}
	}
	if edge.ParentType == document.TypeRoute && edge.ChildType == document.TypeOuting {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM associations WHERE child_document_id = ? AND parent_document_type = ? AND child_document_type = ?`,
			edge.ChildID, string(document.TypeRoute), string(document.TypeOuting)).Scan(&count); err != nil {
			return fmt.Errorf("count outing routes: %w", err)
		}
		if count <= 1 {
			return &StructuralIntegrityError{Reason: fmt.Sprintf("route %d is the last route of outing %d", edge.ParentID, edge.ChildID)}
		}
	}
	return nil
}

func (s *Store) routeMainWaypointTx(ctx context.Context, tx *sql.Tx, routeID int64) (*int64, error) {
	var mainID sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT CAST(json_extract(figures, '$.main_waypoint_id') AS INTEGER) FROM documents WHERE document_id = ? AND json_extract(figures, '$.main_waypoint_id') IS NOT NULL`,
		routeID).Scan(&mainID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read main waypoint: %w", err)
	}
	if !mainID.Valid {
		return nil, nil
	}
	return &mainID.Int64, nil
}

func (s *Store) insertAssociationLogTx(ctx context.Context, tx *sql.Tx, edge Association, userID int64, creation bool, ts int64) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO association_log (parent_document_id, child_document_id, parent_document_type, child_document_type, user_id, is_creation, written_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		edge.ParentID, edge.ChildID, string(edge.ParentType), string(edge.ChildType), userID, creation, ts); err != nil {
		return fmt.Errorf("insert association log: %w", err)
	}
	return nil
}

// AssociationLogEntry is one row of the association audit trail.
type AssociationLogEntry struct {
	ParentID   int64
	ChildID    int64
	ParentType document.Type
	ChildType  document.Type
	UserID     int64
	IsCreation bool
	WrittenAt  int64
}

// AssociationHistory lists the audit trail for edges touching a
// document, most recent first.
func (s *Store) AssociationHistory(ctx context.Context, documentID int64) ([]AssociationLogEntry, error) {
	rows, err := s.query(ctx,
		`SELECT parent_document_id, child_document_id, parent_document_type, child_document_type, user_id, is_creation, written_at FROM association_log WHERE parent_document_id = ? OR child_document_id = ? ORDER BY id DESC`,
		documentID, documentID)
	if err != nil {
		return nil, fmt.Errorf("read association log: %w", err)
	}
	defer rows.Close()
	var entries []AssociationLogEntry
	for rows.Next() {
		var e AssociationLogEntry
		var ptype, ctype string
		if err := rows.Scan(&e.ParentID, &e.ChildID, &ptype, &ctype, &e.UserID, &e.IsCreation, &e.WrittenAt); err != nil {
			return nil, fmt.Errorf("scan association log: %w", err)
		}
		e.ParentType = document.Type(ptype)
		e.ChildType = document.Type(ctype)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
