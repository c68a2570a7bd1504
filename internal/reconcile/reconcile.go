// Package reconcile compares stored review records with the cards of a
// collection.
package reconcile

import (
	"context"
	"iter"
	"log/slog"

	"github.com/conorfennell/hashcards/internal/storage"
)

// Store is the part of the review-state store reconciliation needs.
type Store interface {
	All(ctx context.Context) iter.Seq2[storage.Entry, error]
	Delete(ctx context.Context, hash string) error
}

// Cards reports whether a fingerprint belongs to a card of the collection.
type Cards interface {
	Contains(hash string) bool
}

// Report is the outcome of a scan.
type Report struct {
	// Records is the number of stored records.
	Records int
	// Orphans are records whose card no longer exists, in fingerprint order.
	Orphans []storage.Entry
}

// FindOrphans lists the records that match no card.
func FindOrphans(ctx context.Context, cards Cards, store Store) (Report, error) {
	var report Report
	for e, err := range store.All(ctx) {
		if err != nil {
			return Report{}, err
		}
		report.Records++
		if !cards.Contains(e.Hash) {
			report.Orphans = append(report.Orphans, e)
		}
	}
	slog.Debug("orphan scan complete", "records", report.Records, "orphans", len(report.Orphans))
	return report, nil
}

// DeleteOrphans removes every orphan record and returns how many were
// removed. The scan finishes before the first delete.
func DeleteOrphans(ctx context.Context, cards Cards, store Store) (int, error) {
	report, err := FindOrphans(ctx, cards, store)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, orphan := range report.Orphans {
		if err := store.Delete(ctx, orphan.Hash); err != nil {
			return deleted, err
		}
		slog.Info("Orphaned record deleted", "hash", orphan.Hash, "last_reviewed", orphan.Record.LastReviewed)
		deleted++
	}

	slog.Info("reconciliation complete",
		"records", report.Records,
		"orphaned_deleted", deleted,
	)
	return deleted, nil
}
