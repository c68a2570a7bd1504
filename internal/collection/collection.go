// Package collection loads the cards of a collection directory.
package collection

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/conorfennell/hashcards/internal/domain"
	apperrors "github.com/conorfennell/hashcards/internal/errors"
	"github.com/conorfennell/hashcards/internal/knol"
	"github.com/conorfennell/hashcards/internal/parser"
)

// Duplicate records a card whose fingerprint was already taken by an
// earlier card.
type Duplicate struct {
	Card     domain.Card
	Original domain.Card
}

// Collection is an immutable snapshot of the cards in a directory.
type Collection struct {
	Root       string
	Duplicates []Duplicate

	cards    []domain.Card
	byHash   map[string]int
	problems []error
}

// ResolveDirectory turns the optional DIRECTORY argument into an absolute
// path, defaulting to the working directory.
func ResolveDirectory(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeCollectionRead, "failed to determine working directory", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeCollectionRead, "failed to resolve "+dir, err)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", apperrors.New(apperrors.CodeCollectionNotFound, "collection directory does not exist: "+abs)
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeCollectionRead, "failed to stat "+abs, err)
	}
	if !info.IsDir() {
		return "", apperrors.New(apperrors.CodeCollectionNotFound, "not a directory: "+abs)
	}
	return abs, nil
}

// Open walks root and parses every markdown file that is neither hidden nor
// ignored by a .gitignore. Parse problems do not fail Open; they are kept
// for Err and Problems so that check can report all of them.
func Open(root string) (*Collection, error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.New(apperrors.CodeCollectionNotFound, "collection directory does not exist: "+root)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCollectionRead, "failed to stat "+root, err)
	}
	if !info.IsDir() {
		return nil, apperrors.New(apperrors.CodeCollectionNotFound, "not a directory: "+root)
	}

	patterns, err := gitignore.ReadPatterns(osfs.New(root), nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCollectionRead, "failed to read .gitignore files", err)
	}
	ignored := gitignore.NewMatcher(patterns)

	c := &Collection{Root: root, byHash: make(map[string]int)}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err // Propagate errors from WalkDir
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(d.Name(), ".") || ignored.Match(strings.Split(rel, "/"), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			c.problems = append(c.problems, fmt.Errorf("%s: %w", rel, parseErr))
		}
		deck := strings.TrimSuffix(rel, filepath.Ext(rel))
		for _, card := range fileCards {
			card.Deck = deck
			card.Path = rel
			card.Hash = knol.Hash(card)
			card.NoteHash = knol.NoteHash(card)
			c.add(card)
		}
		return nil
	})
	if walkErr != nil {
		return nil, apperrors.Wrap(apperrors.CodeCollectionRead, "failed to walk "+root, walkErr)
	}

	slog.Debug("collection loaded",
		"path", root,
		"cards", len(c.cards),
		"duplicates", len(c.Duplicates),
		"problems", len(c.problems),
	)
	return c, nil
}

func (c *Collection) add(card domain.Card) {
	if i, taken := c.byHash[card.Hash]; taken {
		c.Duplicates = append(c.Duplicates, Duplicate{Card: card, Original: c.cards[i]})
		return
	}
	c.byHash[card.Hash] = len(c.cards)
	c.cards = append(c.cards, card)
}

// Err reports whether any card source failed to parse.
func (c *Collection) Err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return apperrors.Wrap(apperrors.CodeCollectionMalformed,
		fmt.Sprintf("%d card source problem(s) in %s", len(c.problems), c.Root),
		errors.Join(c.problems...))
}

// Problems lists every parse error, prefixed with the relative file path.
func (c *Collection) Problems() []error {
	return c.problems
}

// Cards returns the unique cards in walk order.
func (c *Collection) Cards() []domain.Card {
	return c.cards
}

// Card looks a card up by fingerprint.
func (c *Collection) Card(hash string) (domain.Card, bool) {
	i, ok := c.byHash[hash]
	if !ok {
		return domain.Card{}, false
	}
	return c.cards[i], true
}

// Contains reports whether a fingerprint belongs to a card of the collection.
func (c *Collection) Contains(hash string) bool {
	_, ok := c.byHash[hash]
	return ok
}

// InDeck reports whether deck equals filter or descends from it.
func InDeck(deck, filter string) bool {
	filter = strings.Trim(filter, "/")
	if filter == "" {
		return true
	}
	return deck == filter || strings.HasPrefix(deck, filter+"/")
}
