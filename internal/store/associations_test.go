package store

import (
	"context"
	"errors"
	"testing"

	"guidebook/internal/document"
)

func mustAssociate(t *testing.T, st *Store, parentID, childID, userID int64) {
	t.Helper()
	if err := st.AddAssociation(context.Background(), parentID, childID, userID); err != nil {
		t.Fatalf("associate %d-%d: %v", parentID, childID, err)
	}
}

func TestAddAssociationOrientationAndDuplicates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	waypoint := createWaypoint(t, st, "Dent Blanche", 4357)
	route := createRoute(t, st, "South Ridge", nil)

	// Submitted route-first, but only (waypoint, route) is a whitelisted
	// pair, so the edge is stored reversed.
	mustAssociate(t, st, route, waypoint, 101)
	if n := countRows(t, st, `SELECT COUNT(*) FROM associations WHERE parent_document_id = ? AND child_document_id = ?`, waypoint, route); n != 1 {
		t.Fatalf("expected the edge stored waypoint-first, found %d rows", n)
	}

	var dup *DuplicateAssociationError
	if err := st.AddAssociation(ctx, route, waypoint, 101); !errors.As(err, &dup) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := st.AddAssociation(ctx, waypoint, route, 101); !errors.As(err, &dup) {
		t.Fatalf("expected duplicate error for the reversed submission, got %v", err)
	}
}

func TestAddAssociationRejections(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	waypoint := createWaypoint(t, st, "Lone waypoint", 900)
	outing := createOuting(t, st, "Sunday stroll")

	var invalid *InvalidAssociationTypeError
	if err := st.AddAssociation(ctx, waypoint, outing, 101); !errors.As(err, &invalid) {
		t.Fatalf("expected invalid type pair, got %v", err)
	}
	var verr *ValidationError
	if err := st.AddAssociation(ctx, waypoint, waypoint, 101); !errors.As(err, &verr) {
		t.Fatalf("expected self-association rejection, got %v", err)
	}
	var nf *NotFoundError
	if err := st.AddAssociation(ctx, waypoint, 99999, 101); !errors.As(err, &nf) {
		t.Fatalf("expected not-found for the missing endpoint, got %v", err)
	}
}

func TestRemoveAssociationMainWaypointGuard(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	mainWP := createWaypoint(t, st, "Main", 3200)
	otherWP := createWaypoint(t, st, "Other", 3100)
	route := createRoute(t, st, "Normal Route", &mainWP)
	mustAssociate(t, st, mainWP, route, 101)
	mustAssociate(t, st, otherWP, route, 101)

	var sie *StructuralIntegrityError
	if err := st.RemoveAssociation(ctx, mainWP, route, 101); !errors.As(err, &sie) {
		t.Fatalf("expected the main-waypoint edge to be protected, got %v", err)
	}

	// Redesignating the main waypoint unblocks the removal.
	if _, _, err := st.UpdateDocument(ctx, route, 1, EditInput{
		Figures: document.RouteFigures{Activities: []string{"hiking"}, MainWaypointID: &otherWP},
		Comment: "new main waypoint",
		UserID:  101,
	}); err != nil {
		t.Fatalf("redesignate main waypoint: %v", err)
	}
	if err := st.RemoveAssociation(ctx, mainWP, route, 101); err != nil {
		t.Fatalf("remove former main waypoint: %v", err)
	}
	// The remaining waypoint is now both main and last.
	if err := st.RemoveAssociation(ctx, otherWP, route, 101); !errors.As(err, &sie) {
		t.Fatalf("expected the remaining waypoint edge to be protected, got %v", err)
	}
}

func TestRemoveAssociationLastWaypointGuard(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	waypoint := createWaypoint(t, st, "Only one", 2500)
	route := createRoute(t, st, "Traverse", nil)
	mustAssociate(t, st, waypoint, route, 101)

	var sie *StructuralIntegrityError
	if err := st.RemoveAssociation(ctx, waypoint, route, 101); !errors.As(err, &sie) {
		t.Fatalf("expected last-waypoint guard, got %v", err)
	}
}

func TestRemoveAssociationLastRouteGuard(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	route1 := createRoute(t, st, "Up", nil)
	route2 := createRoute(t, st, "Down", nil)
	outing := createOuting(t, st, "Long day")
	mustAssociate(t, st, route1, outing, 101)

	var sie *StructuralIntegrityError
	if err := st.RemoveAssociation(ctx, route1, outing, 101); !errors.As(err, &sie) {
		t.Fatalf("expected last-route guard, got %v", err)
	}
	mustAssociate(t, st, route2, outing, 101)
	if err := st.RemoveAssociation(ctx, route1, outing, 101); err != nil {
		t.Fatalf("remove with a second route present: %v", err)
	}
}

func TestRemoveAssociationNotFound(t *testing.T) {
	st := openTestStore(t)
	w1 := createWaypoint(t, st, "A", 100)
	w2 := createWaypoint(t, st, "B", 200)

	var nf *NotFoundError
	if err := st.RemoveAssociation(context.Background(), w1, w2, 101); !errors.As(err, &nf) {
		t.Fatalf("expected not-found for a missing edge, got %v", err)
	}
}

func TestUserProfileAssociationPermission(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	alice, err := st.CreateUser(ctx, "alice", "s3cret-pw", false)
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := st.CreateUser(ctx, "bob", "s3cret-pw", false)
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	mod, err := st.CreateUser(ctx, "mod", "s3cret-pw", true)
	if err != nil {
		t.Fatalf("create mod: %v", err)
	}
	outing := createOuting(t, st, "Alice's climb")

	var perm *PermissionError
	if err := st.AddAssociation(ctx, alice, outing, bob); !errors.As(err, &perm) {
		t.Fatalf("expected permission error for a third party, got %v", err)
	}
	if err := st.AddAssociation(ctx, alice, outing, alice); err != nil {
		t.Fatalf("owner associates own profile: %v", err)
	}
	if err := st.RemoveAssociation(ctx, alice, outing, bob); !errors.As(err, &perm) {
		t.Fatalf("expected permission error on removal, got %v", err)
	}
	if err := st.RemoveAssociation(ctx, alice, outing, mod); err != nil {
		t.Fatalf("moderator removes the edge: %v", err)
	}
}

func TestAssociationHistory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	parent := createWaypoint(t, st, "Summit", 3000)
	child := createWaypoint(t, st, "Pass", 2400)
	mustAssociate(t, st, parent, child, 101)
	if err := st.RemoveAssociation(ctx, parent, child, 102); err != nil {
		t.Fatalf("remove: %v", err)
	}

	entries, err := st.AssociationHistory(ctx, parent)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].IsCreation || entries[0].UserID != 102 {
		t.Fatalf("expected the removal first, got %+v", entries[0])
	}
	if !entries[1].IsCreation || entries[1].UserID != 101 {
		t.Fatalf("expected the creation second, got %+v", entries[1])
	}
}
