package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/conorfennell/hashcards/internal/reconcile"
)

func runCheck(args []string, stdout, stderr io.Writer) int {
	fs, verbose := newFlagSet("check", "Check the integrity of a collection.", stderr)
	if code := parseArgs(fs, args); code >= 0 {
		return code
	}
	setupLogging(stderr, *verbose)

	cards, err := openCollection(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	for _, problem := range cards.Problems() {
		fmt.Fprintf(stdout, "error: %v\n", problem)
	}
	for _, dup := range cards.Duplicates {
		fmt.Fprintf(stdout, "duplicate: %s:%d repeats %s:%d\n",
			dup.Card.Path, dup.Card.Line, dup.Original.Path, dup.Original.Line)
	}

	decks := map[string]bool{}
	for _, c := range cards.Cards() {
		decks[c.Deck] = true
	}
	fmt.Fprintf(stdout, "%s in %s\n",
		english.Plural(len(cards.Cards()), "card", ""),
		english.Plural(len(decks), "deck", ""))

	db, err := openExistingStore(cards.Root)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if db != nil {
		defer db.Close()
		report, err := reconcile.FindOrphans(context.Background(), cards, db)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "%s review records, %s\n",
			humanize.Comma(int64(report.Records)),
			english.Plural(len(report.Orphans), "orphan", ""))
		if len(report.Orphans) > 0 {
			fmt.Fprintln(stdout, "Run 'hashcards orphans delete' to remove orphaned records.")
		}
	}

	if len(cards.Problems()) > 0 || len(cards.Duplicates) > 0 {
		fmt.Fprintf(stdout, "%s found\n", english.Plural(len(cards.Problems())+len(cards.Duplicates), "problem", ""))
		return 1
	}
	fmt.Fprintln(stdout, "ok")
	return 0
}
