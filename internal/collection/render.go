package collection

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/conorfennell/hashcards/internal/domain"
)

// Private-use runes mark the cloze deletion through markdown rendering.
const (
	markOpen  = "\uE000"
	markClose = "\uE001"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Rendered is a card's HTML front and back.
type Rendered struct {
	Front string
	Back  string
}

// Render converts a card to HTML. A cloze front hides the deletion behind
// "[...]"; its back highlights the deletion.
func Render(card domain.Card) (Rendered, error) {
	if card.Kind != domain.Cloze {
		front, err := toHTML(card.Question)
		if err != nil {
			return Rendered{}, err
		}
		back, err := toHTML(card.Answer)
		if err != nil {
			return Rendered{}, err
		}
		return Rendered{Front: front, Back: back}, nil
	}

	before := card.Text[:card.Deletion.Start]
	after := card.Text[card.Deletion.End:]

	front, err := toHTML(before + markOpen + markClose + after)
	if err != nil {
		return Rendered{}, err
	}
	front = strings.Replace(front, markOpen+markClose, `<span class="cloze">[...]</span>`, 1)

	back, err := toHTML(before + markOpen + card.Hidden() + markClose + after)
	if err != nil {
		return Rendered{}, err
	}
	back = strings.NewReplacer(markOpen, `<span class="cloze-reveal">`, markClose, `</span>`).Replace(back)

	return Rendered{Front: front, Back: back}, nil
}

func toHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
