package domain

// Kind distinguishes the two note types a collection may contain.
type Kind int

const (
	Basic Kind = iota
	Cloze
)

func (k Kind) String() string {
	if k == Cloze {
		return "cloze"
	}
	return "basic"
}

// Deletion is a byte range into a cloze note's bracket-free text.
type Deletion struct {
	Start int
	End   int
}

// Card represents a single reviewable unit produced from a note.
//
// Basic cards carry Question and Answer. Cloze cards carry the note Text and
// the Deletion hidden on the front.
type Card struct {
	Kind     Kind
	Question string
	Answer   string
	Text     string
	Deletion Deletion

	// Hash is the card fingerprint; NoteHash is shared by every card
	// generated from the same note.
	Hash     string
	NoteHash string

	Deck string
	Path string
	Line int
}

// Hidden returns the text removed from the front of a cloze card.
func (c Card) Hidden() string {
	if c.Kind != Cloze {
		return ""
	}
	return c.Text[c.Deletion.Start:c.Deletion.End]
}
