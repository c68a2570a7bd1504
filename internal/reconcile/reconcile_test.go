package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/hashcards/internal/collection"
	"github.com/conorfennell/hashcards/internal/scheduler"
	"github.com/conorfennell/hashcards/internal/storage"
)

func setup(t *testing.T) (*collection.Collection, *storage.DB) {
	t.Helper()
	root := t.TempDir()
	content := "Q: kept\nA: yes\n\nQ: also kept\nA: yes\n"
	if err := os.WriteFile(filepath.Join(root, "deck.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write deck: %v", err)
	}
	cards, err := collection.Open(root)
	if err != nil {
		t.Fatalf("collection.Open() returned an unexpected error: %v", err)
	}
	db, err := storage.Open(filepath.Join(root, storage.Filename))
	if err != nil {
		t.Fatalf("storage.Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reviewed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	r := scheduler.Record{
		State:        scheduler.Review,
		Due:          reviewed.Add(scheduler.Day),
		Interval:     scheduler.Day,
		Ease:         2.5,
		Reps:         1,
		LastReviewed: reviewed,
	}
	ctx := context.Background()
	hashes := []string{cards.Cards()[0].Hash, "0000orphan", "ffffgone"}
	for _, h := range hashes {
		if err := db.Put(ctx, h, r); err != nil {
			t.Fatalf("Put(%s) returned an unexpected error: %v", h, err)
		}
	}
	return cards, db
}

func TestFindOrphans(t *testing.T) {
	cards, db := setup(t)

	report, err := FindOrphans(context.Background(), cards, db)
	if err != nil {
		t.Fatalf("FindOrphans() returned an unexpected error: %v", err)
	}
	if report.Records != 3 {
		t.Errorf("Expected 3 records, got %d", report.Records)
	}
	if len(report.Orphans) != 2 || report.Orphans[0].Hash != "0000orphan" || report.Orphans[1].Hash != "ffffgone" {
		t.Errorf("Unexpected orphans %+v", report.Orphans)
	}
}

func TestDeleteOrphans(t *testing.T) {
	cards, db := setup(t)
	ctx := context.Background()

	deleted, err := DeleteOrphans(ctx, cards, db)
	if err != nil {
		t.Fatalf("DeleteOrphans() returned an unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deletions, got %d", deleted)
	}

	report, err := FindOrphans(ctx, cards, db)
	if err != nil {
		t.Fatalf("FindOrphans() returned an unexpected error: %v", err)
	}
	if report.Records != 1 || len(report.Orphans) != 0 {
		t.Errorf("Expected only the live record to remain, got %+v", report)
	}
	if _, ok, _ := db.Get(ctx, cards.Cards()[0].Hash); !ok {
		t.Error("Expected the live record to survive")
	}
}

func TestDeleteOrphansNothingToDo(t *testing.T) {
	cards, db := setup(t)
	ctx := context.Background()
	if _, err := DeleteOrphans(ctx, cards, db); err != nil {
		t.Fatalf("DeleteOrphans() returned an unexpected error: %v", err)
	}

	deleted, err := DeleteOrphans(ctx, cards, db)
	if err != nil || deleted != 0 {
		t.Errorf("Expected a second run to delete nothing, got %d, %v", deleted, err)
	}
}
