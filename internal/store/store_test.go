package store

import (
	"context"
	"path/filepath"
	"testing"

	"guidebook/internal/document"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "guidebook.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createWaypoint(t *testing.T, st *Store, title string, elevation int64) int64 {
	t.Helper()
	id, version, err := st.CreateDocument(context.Background(), document.TypeWaypoint, EditInput{
		Figures: document.WaypointFigures{Elevation: &elevation},
		Locales: []document.Locale{{Lang: "en", Title: title}},
		Comment: "created",
		UserID:  101,
	})
	if err != nil {
		t.Fatalf("create waypoint %q: %v", title, err)
	}
	if version != 1 {
		t.Fatalf("expected initial version 1, got %d", version)
	}
	return id
}

func createRoute(t *testing.T, st *Store, title string, mainWaypointID *int64) int64 {
	t.Helper()
	id, _, err := st.CreateDocument(context.Background(), document.TypeRoute, EditInput{
		Figures: document.RouteFigures{Activities: []string{"hiking"}, MainWaypointID: mainWaypointID},
		Locales: []document.Locale{{Lang: "en", Title: title}},
		Comment: "created",
		UserID:  101,
	})
	if err != nil {
		t.Fatalf("create route %q: %v", title, err)
	}
	return id
}

func createOuting(t *testing.T, st *Store, title string) int64 {
	t.Helper()
	id, _, err := st.CreateDocument(context.Background(), document.TypeOuting, EditInput{
		Figures: document.OutingFigures{Activities: []string{"hiking"}, DateStart: "2024-07-14"},
		Locales: []document.Locale{{Lang: "en", Title: title}},
		Comment: "created",
		UserID:  101,
	})
	if err != nil {
		t.Fatalf("create outing %q: %v", title, err)
	}
	return id
}

func cacheVersion(t *testing.T, st *Store, id int64) int64 {
	t.Helper()
	version, _, err := st.GetCacheVersion(context.Background(), id)
	if err != nil {
		t.Fatalf("cache version of %d: %v", id, err)
	}
	return version
}

func countRows(t *testing.T, st *Store, query string, args ...any) int {
	t.Helper()
	var count int
	if err := st.db.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatalf("count query %q: %v", query, err)
	}
	return count
}
