package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/hashcards/internal/domain"
)

// normalizePart trims whitespace, lowercases, and normalizes line endings.
func normalizePart(part string) string {
	p := strings.ToLower(part)
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\r\n", "\n")
	return p
}

// Normalize concatenates the card's identifying content after cleaning each
// part. The kind is part of the content so that a basic card and a cloze card
// can never collide. Deck and path are deliberately absent: moving a card
// must not change its identity.
func Normalize(card domain.Card) string {
	switch card.Kind {
	case domain.Cloze:
		pos := fmt.Sprintf("%d:%d", card.Deletion.Start, card.Deletion.End)
		return strings.Join([]string{"cloze", normalizePart(card.Text), pos}, "\n")
	default:
		return strings.Join([]string{"basic", normalizePart(card.Question), normalizePart(card.Answer)}, "\n")
	}
}

// NormalizeNote returns the content shared by all cards of the card's note.
func NormalizeNote(card domain.Card) string {
	if card.Kind == domain.Cloze {
		return strings.Join([]string{"cloze", normalizePart(card.Text)}, "\n")
	}
	return Normalize(card)
}

// Hash takes a card, normalizes it, and returns its SHA-256 hash as a hex string.
func Hash(card domain.Card) string {
	return sum(Normalize(card))
}

// NoteHash returns the fingerprint of the note the card was generated from.
func NoteHash(card domain.Card) string {
	return sum(NormalizeNote(card))
}

func sum(s string) string {
	hashBytes := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", hashBytes)
}
