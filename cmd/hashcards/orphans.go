package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/conorfennell/hashcards/internal/reconcile"
)

func runOrphansList(args []string, stdout, stderr io.Writer) int {
	fs, verbose := newFlagSet("orphans list", "List the fingerprints of review records that match no card.", stderr)
	if code := parseArgs(fs, args); code >= 0 {
		return code
	}
	setupLogging(stderr, *verbose)

	cards, err := openCollection(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	db, err := openExistingStore(cards.Root)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if db == nil {
		return 0
	}
	defer db.Close()

	report, err := reconcile.FindOrphans(context.Background(), cards, db)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, orphan := range report.Orphans {
		if *verbose {
			fmt.Fprintf(stdout, "%s\tlast reviewed %s\n", orphan.Hash, humanize.Time(orphan.Record.LastReviewed))
			continue
		}
		fmt.Fprintln(stdout, orphan.Hash)
	}
	return 0
}

func runOrphansDelete(args []string, stdout, stderr io.Writer) int {
	fs, verbose := newFlagSet("orphans delete", "Remove review records that match no card.", stderr)
	if code := parseArgs(fs, args); code >= 0 {
		return code
	}
	setupLogging(stderr, *verbose)

	cards, err := openCollection(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	// Deleting against a partially parsed collection would drop the records
	// of every card in a broken file.
	if err := cards.Err(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	db, err := openExistingStore(cards.Root)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if db == nil {
		fmt.Fprintln(stdout, "Deleted 0 orphaned records")
		return 0
	}
	defer db.Close()

	deleted, err := reconcile.DeleteOrphans(context.Background(), cards, db)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Deleted %s\n", english.Plural(deleted, "orphaned record", ""))
	return 0
}
