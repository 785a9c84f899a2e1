package store

import (
	"context"
	"testing"

	"guidebook/internal/document"
)

func TestRecentChanges(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	waypoint := createWaypoint(t, st, "Feed peak", 2000)
	createRoute(t, st, "Feed route", nil)
	updateElevation(t, st, waypoint, 1, 2100)

	changes, err := st.RecentChanges(ctx, 0)
	if err != nil {
		t.Fatalf("recent changes: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("expected 3 feed entries, got %d", len(changes))
	}

	byType := map[string]int{}
	seen := map[string]bool{}
	for _, c := range changes {
		byType[c.ChangeType]++
		if c.ID == "" || seen[c.ID] {
			t.Fatalf("expected unique opaque change ids, got %q", c.ID)
		}
		seen[c.ID] = true
		if c.UserID != 101 {
			t.Errorf("unexpected user on %q entry: %d", c.ChangeType, c.UserID)
		}
		if len(c.Langs) != 1 || c.Langs[0] != "en" {
			t.Errorf("unexpected langs on %q entry: %v", c.ChangeType, c.Langs)
		}
	}
	if byType["created"] != 2 || byType["updated"] != 1 {
		t.Fatalf("unexpected change type counts: %v", byType)
	}

	limited, err := st.RecentChanges(ctx, 2)
	if err != nil {
		t.Fatalf("recent changes with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected the limit applied, got %d entries", len(limited))
	}
}

func TestMergeFeedEntry(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	source := createWaypoint(t, st, "Duplicate", 2000)
	target := createWaypoint(t, st, "Canonical", 2000)
	if err := st.MergeDocument(ctx, source, target, 101); err != nil {
		t.Fatalf("merge: %v", err)
	}

	changes, err := st.RecentChanges(ctx, 10)
	if err != nil {
		t.Fatalf("recent changes: %v", err)
	}
	var merged *FeedChange
	for i := range changes {
		if changes[i].ChangeType == "merged" {
			merged = &changes[i]
		}
	}
	if merged == nil {
		t.Fatal("expected a merged feed entry")
	}
	if merged.DocumentID != source || merged.DocumentType != document.TypeWaypoint {
		t.Fatalf("unexpected merged entry: %+v", merged)
	}
	if len(merged.Langs) != 0 {
		t.Fatalf("expected no langs on a merge entry, got %v", merged.Langs)
	}
}
