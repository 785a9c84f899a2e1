package store

import (
	"context"
	"testing"

	"guidebook/internal/document"
)

// Routes inherit display data from their main waypoint, so editing a
// route must reach the main waypoint twice (as neighbor and through the
// typed closure) and plain associated waypoints once.
func TestRouteEditPropagation(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	mainWP := createWaypoint(t, st, "Main summit", 3800)
	otherWP := createWaypoint(t, st, "Approach hut", 2600)
	unrelated := createWaypoint(t, st, "Far away", 1200)
	grandWP := createWaypoint(t, st, "Massif", 4000)
	route := createRoute(t, st, "North Face", &mainWP)
	mustAssociate(t, st, mainWP, route, 101)
	mustAssociate(t, st, otherWP, route, 101)
	mustAssociate(t, st, grandWP, mainWP, 101)

	before := map[int64]int64{}
	for _, id := range []int64{route, mainWP, otherWP, unrelated, grandWP} {
		before[id] = cacheVersion(t, st, id)
	}

	elevationMax := int64(3800)
	if _, _, err := st.UpdateDocument(ctx, route, 1, EditInput{
		Figures: document.RouteFigures{Activities: []string{"hiking"}, MainWaypointID: &mainWP, ElevationMax: &elevationMax},
		Comment: "measured the top",
		UserID:  101,
	}); err != nil {
		t.Fatalf("update route: %v", err)
	}

	deltas := map[int64]int64{
		route:     1, // the edited document itself
		mainWP:    2, // neighbor, and again via the main-waypoint closure
		otherWP:   1, // neighbor only
		grandWP:   1, // hierarchy ancestor of the main waypoint
		unrelated: 0,
	}
	for id, want := range deltas {
		if got := cacheVersion(t, st, id) - before[id]; got != want {
			t.Errorf("document %d: cache delta %d, want %d", id, got, want)
		}
	}
}

func TestWaypointEditPropagation(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	waypoint := createWaypoint(t, st, "Col", 2100)
	route := createRoute(t, st, "Via the col", &waypoint)
	mustAssociate(t, st, waypoint, route, 101)

	before := cacheVersion(t, st, route)
	elevation := int64(2105)
	if _, _, err := st.UpdateDocument(ctx, waypoint, 1, EditInput{
		Figures: document.WaypointFigures{Elevation: &elevation},
		UserID:  101,
	}); err != nil {
		t.Fatalf("update waypoint: %v", err)
	}
	// Once as neighbor, once as a route designating it main.
	if got := cacheVersion(t, st, route) - before; got != 2 {
		t.Errorf("route cache delta %d, want 2", got)
	}
}

func TestOutingEditPropagation(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	waypoint := createWaypoint(t, st, "Summit", 3500)
	route := createRoute(t, st, "Classic", &waypoint)
	outing := createOuting(t, st, "Trip report")
	mustAssociate(t, st, waypoint, route, 101)
	mustAssociate(t, st, route, outing, 101)

	before := map[int64]int64{
		outing:   cacheVersion(t, st, outing),
		route:    cacheVersion(t, st, route),
		waypoint: cacheVersion(t, st, waypoint),
	}
	if _, _, err := st.UpdateDocument(ctx, outing, 1, EditInput{
		Figures: document.OutingFigures{Activities: []string{"hiking"}, DateStart: "2024-07-14", DateEnd: "2024-07-15"},
		UserID:  101,
	}); err != nil {
		t.Fatalf("update outing: %v", err)
	}
	for id, want := range map[int64]int64{outing: 1, route: 1, waypoint: 1} {
		if got := cacheVersion(t, st, id) - before[id]; got != want {
			t.Errorf("document %d: cache delta %d, want %d", id, got, want)
		}
	}
}

func TestUserProfileEditPropagation(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	alice, err := st.CreateUser(ctx, "alice", "s3cret-pw", false)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	waypoint, _, err := st.CreateDocument(ctx, document.TypeWaypoint, EditInput{
		Figures: document.WaypointFigures{},
		Locales: []document.Locale{{Lang: "en", Title: "Alice's waypoint"}},
		UserID:  alice,
	})
	if err != nil {
		t.Fatalf("create waypoint: %v", err)
	}
	if cv := cacheVersion(t, st, waypoint); cv != 1 {
		t.Fatalf("expected fresh cache version 1, got %d", cv)
	}

	// Author info is denormalized, so a profile edit reaches everything
	// the user ever edited.
	if _, _, err := st.UpdateDocument(ctx, alice, 1, EditInput{
		Locales: []document.Locale{{Lang: "en", Title: "alice", Summary: "Likes long ridges."}},
		UserID:  alice,
	}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if cv := cacheVersion(t, st, waypoint); cv != 2 {
		t.Errorf("expected the edited waypoint bumped to 2, got %d", cv)
	}
	if cv := cacheVersion(t, st, alice); cv != 2 {
		t.Errorf("expected the profile itself bumped to 2, got %d", cv)
	}
}

// The life of a small graph, checked end to end: creation starts at 1,
// a new edge reaches both endpoints, a figure edit reaches the neighbor.
func TestPropagationEndToEnd(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	w1 := createWaypoint(t, st, "First", 2203)
	w2 := createWaypoint(t, st, "Second", 1800)
	if cv := cacheVersion(t, st, w1); cv != 1 {
		t.Fatalf("expected cache version 1 after create, got %d", cv)
	}

	mustAssociate(t, st, w1, w2, 101)
	if cv := cacheVersion(t, st, w1); cv != 2 {
		t.Fatalf("expected w1 at 2 after the association, got %d", cv)
	}
	if cv := cacheVersion(t, st, w2); cv != 2 {
		t.Fatalf("expected w2 at 2 after the association, got %d", cv)
	}

	elevation := int64(2300)
	newVersion, _, err := st.UpdateDocument(ctx, w1, 1, EditInput{
		Figures: document.WaypointFigures{Elevation: &elevation},
		Comment: "corrected elevation",
		UserID:  101,
	})
	if err != nil {
		t.Fatalf("update w1: %v", err)
	}
	if newVersion != 2 {
		t.Fatalf("expected figure version 2, got %d", newVersion)
	}
	if cv := cacheVersion(t, st, w1); cv != 3 {
		t.Errorf("expected w1 at 3 after the edit, got %d", cv)
	}
	if cv := cacheVersion(t, st, w2); cv != 3 {
		t.Errorf("expected w2 at 3 after the edit, got %d", cv)
	}
	if n := countRows(t, st, `SELECT COUNT(*) FROM archive_documents WHERE document_id = ?`, w1); n != 2 {
		t.Errorf("expected two archived document states, got %d", n)
	}
}
