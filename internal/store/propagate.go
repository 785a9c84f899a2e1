package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"guidebook/internal/document"
)

// Cache-version invalidation. Each rule computes a set of affected
// document ids and applies one batched UPDATE; a document matched by
// several rules is bumped once per rule. All of it runs inside the
// transaction of the triggering edit, so cache versions are never
// visible as stale relative to their trigger.

// propagateDocumentTx bumps the closure of a direct document edit: the
// document itself plus its one-hop neighbors, then the type-specific
// closure.
func (s *Store) propagateDocumentTx(ctx context.Context, tx *sql.Tx, id int64, typ document.Type) error {
	neighbors, err := s.neighborsTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := s.bumpCacheVersionsTx(ctx, tx, append(neighbors, id)); err != nil {
		return err
	}
	return s.propagateTypedTx(ctx, tx, id, typ)
}

// propagateAssociationTx bumps the closure of an edge add or removal:
// both endpoints and their one-hop neighbors as one set, then the
// type-specific closure of each endpoint.
func (s *Store) propagateAssociationTx(ctx context.Context, tx *sql.Tx, edge Association) error {
	set := []int64{edge.ParentID, edge.ChildID}
	for _, id := range []int64{edge.ParentID, edge.ChildID} {
		neighbors, err := s.neighborsTx(ctx, tx, id)
		if err != nil {
			return err
		}
		set = append(set, neighbors...)
	}
	if err := s.bumpCacheVersionsTx(ctx, tx, set); err != nil {
		return err
	}
	if err := s.propagateTypedTx(ctx, tx, edge.ParentID, edge.ParentType); err != nil {
		return err
	}
	return s.propagateTypedTx(ctx, tx, edge.ChildID, edge.ChildType)
}

func (s *Store) propagateTypedTx(ctx context.Context, tx *sql.Tx, id int64, typ document.Type) error {
	switch typ {
	case document.TypeWaypoint:
		// Routes inherit display data from their designated main
		// waypoint.
		routes, err := s.mainWaypointRoutesTx(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.bumpCacheVersionsTx(ctx, tx, routes)
	case document.TypeRoute:
		waypoints, err := s.waypointClosureForRoutesTx(ctx, tx, []int64{id})
		if err != nil {
			return err
		}
		return s.bumpCacheVersionsTx(ctx, tx, waypoints)
	case document.TypeOuting:
		routes, err := s.associatedRoutesTx(ctx, tx, id)
		if err != nil {
			return err
		}
		waypoints, err := s.waypointClosureForRoutesTx(ctx, tx, routes)
		if err != nil {
			return err
		}
		return s.bumpCacheVersionsTx(ctx, tx, waypoints)
	case document.TypeUserProfile:
		// Author info is denormalized into document views.
		edited, err := s.editedDocumentsTx(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.bumpCacheVersionsTx(ctx, tx, edited)
	}
	// Areas, maps and the remaining types are covered by the one-hop
	// rule alone.
	return nil
}

// neighborsTx returns the documents directly linked to id in either
// direction, excluding redirected documents.
func (s *Store) neighborsTx(ctx context.Context, tx *sql.Tx, id int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT a.child_document_id FROM associations a
		JOIN documents d ON d.document_id = a.child_document_id AND d.redirects_to IS NULL
		WHERE a.parent_document_id = ?
		UNION
		SELECT a.parent_document_id FROM associations a
		JOIN documents d ON d.document_id = a.parent_document_id AND d.redirects_to IS NULL
		WHERE a.child_document_id = ?`,
		id, id)
	if err != nil {
		return nil, fmt.Errorf("read neighbors: %w", err)
	}
	return collectIDs(rows)
}

// mainWaypointRoutesTx returns the routes designating waypointID as
// their main waypoint.
func (s *Store) mainWaypointRoutesTx(ctx context.Context, tx *sql.Tx, waypointID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT document_id FROM documents
		WHERE type = ? AND redirects_to IS NULL
		AND json_extract(figures, '$.main_waypoint_id') = ?`,
		string(document.TypeRoute), waypointID)
	if err != nil {
		return nil, fmt.Errorf("read main-waypoint routes: %w", err)
	}
	return collectIDs(rows)
}

// waypointClosureForRoutesTx returns the waypoint set whose aggregate
// display depends on the given routes: each route's main waypoint plus
// two levels of waypoint-hierarchy ancestors above it.
func (s *Store) waypointClosureForRoutesTx(ctx context.Context, tx *sql.Tx, routeIDs []int64) ([]int64, error) {
	if len(routeIDs) == 0 {
		return nil, nil
	}
	args := int64Args(routeIDs)
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
		SELECT CAST(json_extract(figures, '$.main_waypoint_id') AS INTEGER) FROM documents
		WHERE document_id IN (%s) AND redirects_to IS NULL
		AND json_extract(figures, '$.main_waypoint_id') IS NOT NULL`,
		placeholders(len(routeIDs))), args...)
	if err != nil {
		return nil, fmt.Errorf("read route main waypoints: %w", err)
	}
	mains, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}

	closure := append([]int64(nil), mains...)
	level := mains
	for i := 0; i < 2; i++ {
		parents, err := s.waypointParentsTx(ctx, tx, level)
		if err != nil {
			return nil, err
		}
		closure = append(closure, parents...)
		level = parents
	}
	return closure, nil
}

// waypointParentsTx returns the waypoints that are hierarchy parents of
// the given waypoints.
func (s *Store) waypointParentsTx(ctx context.Context, tx *sql.Tx, waypointIDs []int64) ([]int64, error) {
	if len(waypointIDs) == 0 {
		return nil, nil
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
		SELECT DISTINCT a.parent_document_id FROM associations a
		JOIN documents d ON d.document_id = a.parent_document_id AND d.redirects_to IS NULL
		WHERE a.parent_document_type = ? AND a.child_document_type = ?
		AND a.child_document_id IN (%s)`,
		placeholders(len(waypointIDs))),
		append([]any{string(document.TypeWaypoint), string(document.TypeWaypoint)}, int64Args(waypointIDs)...)...)
	if err != nil {
		return nil, fmt.Errorf("read waypoint parents: %w", err)
	}
	return collectIDs(rows)
}

// associatedRoutesTx returns the routes linked to an outing.
func (s *Store) associatedRoutesTx(ctx context.Context, tx *sql.Tx, outingID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT a.parent_document_id FROM associations a
		JOIN documents d ON d.document_id = a.parent_document_id AND d.redirects_to IS NULL
		WHERE a.child_document_id = ? AND a.parent_document_type = ?
		UNION
		SELECT a.child_document_id FROM associations a
		JOIN documents d ON d.document_id = a.child_document_id AND d.redirects_to IS NULL
		WHERE a.parent_document_id = ? AND a.child_document_type = ?`,
		outingID, string(document.TypeRoute), outingID, string(document.TypeRoute))
	if err != nil {
		return nil, fmt.Errorf("read outing routes: %w", err)
	}
	return collectIDs(rows)
}

// editedDocumentsTx returns every document the user has a ledger entry
// for, excluding the user's own profile (bumped by the one-hop rule).
func (s *Store) editedDocumentsTx(ctx context.Context, tx *sql.Tx, userID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT dv.document_id FROM documents_versions dv
		JOIN history_metadata hm ON hm.id = dv.history_metadata_id
		JOIN documents d ON d.document_id = dv.document_id AND d.redirects_to IS NULL
		WHERE hm.user_id = ? AND dv.document_id <> ?`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("read edited documents: %w", err)
	}
	return collectIDs(rows)
}

// bumpCacheVersionsTx applies one batched increment over the id set.
// Duplicates in ids count once; empty sets are a no-op.
func (s *Store) bumpCacheVersionsTx(ctx context.Context, tx *sql.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	unique := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE cache_versions SET version = version + 1, last_updated = ? WHERE document_id IN (%s)`,
		placeholders(len(unique))),
		append([]any{now()}, int64Args(unique)...)...)
	if err != nil {
		return fmt.Errorf("bump cache versions: %w", err)
	}
	return nil
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
