package drill

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/conorfennell/hashcards/internal/domain"
	"github.com/conorfennell/hashcards/internal/scheduler"
)

var now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func basicCard(hash, deck string) domain.Card {
	return domain.Card{
		Kind:     domain.Basic,
		Question: "question " + hash,
		Answer:   "answer " + hash,
		Hash:     hash,
		NoteHash: hash,
		Deck:     deck,
	}
}

func clozeCard(hash, note, deck string) domain.Card {
	return domain.Card{
		Kind:     domain.Cloze,
		Text:     "alpha beta",
		Deletion: domain.Deletion{Start: 0, End: 5},
		Hash:     hash,
		NoteHash: note,
		Deck:     deck,
	}
}

func scheduled(state scheduler.State, due time.Time) scheduler.Record {
	return scheduler.Record{State: state, Due: due, Interval: scheduler.Day, Ease: 2.5, Reps: 1}
}

func TestBuildOrdering(t *testing.T) {
	cards := []domain.Card{
		basicCard("n1", "d"),
		basicCard("r1", "d"),
		basicCard("l1", "d"),
		basicCard("r2", "d"),
		basicCard("future", "d"),
		basicCard("l2", "d"),
	}
	records := map[string]scheduler.Record{
		"r1":     scheduled(scheduler.Review, now.Add(-time.Hour)),
		"r2":     scheduled(scheduler.Review, now.Add(-48*time.Hour)),
		"l1":     scheduled(scheduler.Learning, now.Add(-time.Minute)),
		"l2":     scheduled(scheduler.Relearning, now.Add(-10*time.Minute)),
		"future": scheduled(scheduler.Review, now.Add(time.Hour)),
	}

	plan := Build(cards, records, Options{Now: now})

	want := []string{"l2", "l1", "r2", "r1", "n1"}
	if !slices.Equal(plan.Queue, want) {
		t.Errorf("Expected queue %v, got %v", want, plan.Queue)
	}
	if len(plan.New) != 1 || !plan.New["n1"] {
		t.Errorf("Expected only n1 to be new, got %v", plan.New)
	}
}

func TestBuildDueBoundary(t *testing.T) {
	cards := []domain.Card{basicCard("edge", "d")}
	records := map[string]scheduler.Record{"edge": scheduled(scheduler.Review, now)}

	plan := Build(cards, records, Options{Now: now})
	if !slices.Equal(plan.Queue, []string{"edge"}) {
		t.Errorf("Expected a card due exactly now to be queued, got %v", plan.Queue)
	}
}

func TestBuildLimits(t *testing.T) {
	var cards []domain.Card
	records := map[string]scheduler.Record{}
	for i := range 5 {
		h := fmt.Sprintf("new%d", i)
		cards = append(cards, basicCard(h, "d"))
	}
	for i := range 3 {
		h := fmt.Sprintf("rev%d", i)
		cards = append(cards, basicCard(h, "d"))
		records[h] = scheduled(scheduler.Review, now.Add(-time.Duration(i+1)*time.Hour))
	}

	testCases := []struct {
		name      string
		opts      Options
		wantLen   int
		wantNew   int
		wantFirst string
	}{
		{"no limits", Options{Now: now}, 8, 5, "rev2"},
		{"new limit", Options{Now: now, NewCardLimit: 2}, 5, 2, "rev2"},
		{"card limit", Options{Now: now, CardLimit: 4}, 4, 1, "rev2"},
		{"card limit below reviews", Options{Now: now, CardLimit: 2}, 2, 0, "rev2"},
		{"zero new", Options{Now: now, NewCardLimit: 0, CardLimit: 3}, 3, 0, "rev2"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan := Build(cards, records, tc.opts)
			if len(plan.Queue) != tc.wantLen {
				t.Errorf("Expected %d queued, got %d (%v)", tc.wantLen, len(plan.Queue), plan.Queue)
			}
			if len(plan.New) != tc.wantNew {
				t.Errorf("Expected %d new, got %d", tc.wantNew, len(plan.New))
			}
			if plan.Queue[0] != tc.wantFirst {
				t.Errorf("Expected %s first, got %s", tc.wantFirst, plan.Queue[0])
			}
		})
	}
}

func TestBuildDeckFilter(t *testing.T) {
	cards := []domain.Card{
		basicCard("a", "geo"),
		basicCard("b", "geo/europe"),
		basicCard("c", "geography"),
		basicCard("d", "math"),
	}

	plan := Build(cards, nil, Options{Now: now, DeckFilter: "geo"})
	got := slices.Sorted(slices.Values(plan.Queue))
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Expected geo and geo/europe cards, got %v", got)
	}
}

func TestBuildSiblings(t *testing.T) {
	cards := []domain.Card{
		clozeCard("c1", "note", "d"),
		clozeCard("c2", "note", "d"),
		clozeCard("c3", "lonely", "d"),
		basicCard("b1", "d"),
	}

	t.Run("bury on", func(t *testing.T) {
		plan := Build(cards, nil, Options{Now: now, BurySiblings: true})
		if !slices.Equal(plan.Siblings["note"], []string{"c1", "c2"}) {
			t.Errorf("Expected c1 and c2 grouped, got %v", plan.Siblings)
		}
		if _, ok := plan.Siblings["lonely"]; ok {
			t.Error("Expected single-card notes to be left out")
		}
		if plan.NoteOf["c2"] != "note" {
			t.Errorf("Expected c2 to map to its note, got %q", plan.NoteOf["c2"])
		}
	})

	t.Run("bury off", func(t *testing.T) {
		plan := Build(cards, nil, Options{Now: now})
		if len(plan.Siblings) != 0 || len(plan.NoteOf) != 0 {
			t.Errorf("Expected no sibling index, got %v", plan.Siblings)
		}
	})
}

func TestBuildShuffleIsDeterministic(t *testing.T) {
	var cards []domain.Card
	for i := range 20 {
		cards = append(cards, basicCard(fmt.Sprintf("card%02d", i), "d"))
	}

	a := Build(cards, nil, Options{Now: now, Shuffle: true})
	b := Build(cards, nil, Options{Now: now, Shuffle: true})
	if !slices.Equal(a.Queue, b.Queue) {
		t.Error("Expected the same start time to give the same order")
	}

	plain := Build(cards, nil, Options{Now: now})
	if !slices.IsSorted(plain.Queue) {
		t.Errorf("Expected unshuffled new cards in fingerprint order, got %v", plain.Queue)
	}
}

func TestBuildProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "cards")
		var cards []domain.Card
		records := map[string]scheduler.Record{}
		for i := range n {
			h := fmt.Sprintf("h%03d", i)
			cards = append(cards, basicCard(h, "d"))
			switch rapid.IntRange(0, 3).Draw(t, "kind") {
			case 1:
				offset := time.Duration(rapid.IntRange(-100, 100).Draw(t, "offset")) * time.Hour
				records[h] = scheduled(scheduler.Review, now.Add(offset))
			case 2:
				offset := time.Duration(rapid.IntRange(-100, 100).Draw(t, "offset")) * time.Minute
				records[h] = scheduled(scheduler.Learning, now.Add(offset))
			}
		}
		opts := Options{
			Now:          now,
			CardLimit:    rapid.IntRange(0, 10).Draw(t, "cardLimit"),
			NewCardLimit: rapid.IntRange(0, 10).Draw(t, "newLimit"),
			Shuffle:      rapid.Bool().Draw(t, "shuffle"),
		}

		plan := Build(cards, records, opts)

		if opts.CardLimit > 0 && len(plan.Queue) > opts.CardLimit {
			t.Fatalf("queue of %d exceeds card limit %d", len(plan.Queue), opts.CardLimit)
		}
		if opts.NewCardLimit > 0 && len(plan.New) > opts.NewCardLimit {
			t.Fatalf("%d new cards exceed new limit %d", len(plan.New), opts.NewCardLimit)
		}
		seen := map[string]bool{}
		sawNew := false
		for _, h := range plan.Queue {
			if seen[h] {
				t.Fatalf("card %s queued twice", h)
			}
			seen[h] = true
			r, ok := records[h]
			if ok && !scheduler.IsDue(r, now) {
				t.Fatalf("card %s queued but not due", h)
			}
			if plan.New[h] {
				sawNew = true
			} else if sawNew {
				t.Fatalf("scheduled card %s queued after a new card", h)
			}
		}
	})
}
