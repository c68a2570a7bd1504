// Package drill builds review sessions and runs them.
package drill

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/conorfennell/hashcards/internal/collection"
	"github.com/conorfennell/hashcards/internal/domain"
	"github.com/conorfennell/hashcards/internal/scheduler"
)

// Options select and order the cards of a session. Zero limits mean no limit.
type Options struct {
	CardLimit    int
	NewCardLimit int
	DeckFilter   string
	Shuffle      bool
	BurySiblings bool
	// Now is frozen for the whole session.
	Now time.Time
}

// Plan is the outcome of Build.
type Plan struct {
	Queue []string
	// New holds the queued fingerprints that have never been answered.
	New map[string]bool
	// NoteOf and Siblings index sibling groups among the queued cards.
	// Both are empty unless sibling burial is on.
	NoteOf   map[string]string
	Siblings map[string][]string
}

type dueCard struct {
	hash string
	due  time.Time
}

// Build selects the cards due at opts.Now and orders them: learning cards
// first, then reviews, then new cards.
func Build(cards []domain.Card, records map[string]scheduler.Record, opts Options) Plan {
	var (
		newCards []string
		learning []dueCard
		review   []dueCard
	)
	for _, card := range cards {
		if !collection.InDeck(card.Deck, opts.DeckFilter) {
			continue
		}
		r, ok := records[card.Hash]
		switch {
		case !ok || r.State == scheduler.New:
			newCards = append(newCards, card.Hash)
		case !scheduler.IsDue(r, opts.Now):
		case r.State == scheduler.Learning || r.State == scheduler.Relearning:
			learning = append(learning, dueCard{card.Hash, r.Due})
		case r.State == scheduler.Review:
			review = append(review, dueCard{card.Hash, r.Due})
		}
	}

	slices.Sort(newCards)
	if opts.Shuffle {
		seed := uint64(opts.Now.UnixNano())
		rng := rand.New(rand.NewPCG(seed, seed>>32))
		rng.Shuffle(len(newCards), func(i, j int) {
			newCards[i], newCards[j] = newCards[j], newCards[i]
		})
	}
	if opts.NewCardLimit > 0 && len(newCards) > opts.NewCardLimit {
		newCards = newCards[:opts.NewCardLimit]
	}

	byDue := func(a, b dueCard) int {
		if c := a.due.Compare(b.due); c != 0 {
			return c
		}
		return cmp.Compare(a.hash, b.hash)
	}
	slices.SortFunc(learning, byDue)
	slices.SortFunc(review, byDue)

	queue := make([]string, 0, len(learning)+len(review)+len(newCards))
	for _, d := range learning {
		queue = append(queue, d.hash)
	}
	for _, d := range review {
		queue = append(queue, d.hash)
	}
	queue = append(queue, newCards...)
	if opts.CardLimit > 0 && len(queue) > opts.CardLimit {
		queue = queue[:opts.CardLimit]
	}

	plan := Plan{
		Queue:    queue,
		New:      make(map[string]bool),
		NoteOf:   make(map[string]string),
		Siblings: make(map[string][]string),
	}
	queued := make(map[string]bool, len(queue))
	for _, hash := range queue {
		queued[hash] = true
	}
	for _, hash := range newCards {
		if queued[hash] {
			plan.New[hash] = true
		}
	}

	if opts.BurySiblings {
		members := make(map[string][]string)
		for _, card := range cards {
			if queued[card.Hash] {
				members[card.NoteHash] = append(members[card.NoteHash], card.Hash)
			}
		}
		for note, hashes := range members {
			if len(hashes) < 2 {
				continue
			}
			plan.Siblings[note] = hashes
			for _, hash := range hashes {
				plan.NoteOf[hash] = note
			}
		}
	}

	return plan
}
