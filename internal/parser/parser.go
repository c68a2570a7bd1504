package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/hashcards/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	clozePrefix    = "C:"
	separator      = "---"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingCloze
)

// ParseError describes a malformed note at a given line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. Cards come back
// without hashes, deck or path; those depend on where the file lives.
//
// Every malformed note is reported; the returned error joins them.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var (
		cards      []domain.Card
		errs       []error
		question   string
		answer     string
		noteLine   int
		block      []string
		lineNumber int
	)
	currentState := seeking

	flushBlock := func() {
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch currentState {
		case readingQuestion:
			question = content
		case readingAnswer:
			answer = content
		case readingCloze:
			question = content
		}
		block = nil
	}

	finishNote := func() {
		flushBlock()
		switch currentState {
		case readingQuestion:
			errs = append(errs, &ParseError{Line: noteLine, Msg: "question without an answer"})
		case readingAnswer:
			cards = append(cards, domain.Card{
				Kind:     domain.Basic,
				Question: question,
				Answer:   answer,
				Line:     noteLine,
			})
		case readingCloze:
			text, deletions := ExtractDeletions(question)
			if len(deletions) == 0 {
				errs = append(errs, &ParseError{Line: noteLine, Msg: "cloze note without deletions"})
				break
			}
			for _, d := range deletions {
				cards = append(cards, domain.Card{
					Kind:     domain.Cloze,
					Text:     text,
					Deletion: d,
					Line:     noteLine,
				})
			}
		}
		question, answer = "", ""
		currentState = seeking
	}

	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()

		switch {
		case line == separator:
			finishNote()
		case strings.HasPrefix(line, questionPrefix):
			finishNote() // A new question always starts a new card
			currentState = readingQuestion
			noteLine = lineNumber
			block = append(block, trimPrefix(line, questionPrefix))
		case strings.HasPrefix(line, clozePrefix):
			finishNote()
			currentState = readingCloze
			noteLine = lineNumber
			block = append(block, trimPrefix(line, clozePrefix))
		case strings.HasPrefix(line, answerPrefix):
			if currentState != readingQuestion {
				errs = append(errs, &ParseError{Line: lineNumber, Msg: "answer without a question"})
				continue
			}
			flushBlock()
			currentState = readingAnswer
			block = append(block, trimPrefix(line, answerPrefix))
		default:
			if currentState != seeking {
				block = append(block, line)
			}
		}
	}

	finishNote() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, errors.Join(errs...)
}

func trimPrefix(line, prefix string) string {
	content := line[len(prefix):]
	return strings.TrimPrefix(content, " ")
}

// ExtractDeletions removes cloze brackets from text and returns the
// bracket-free text along with the byte range of every deletion in it.
// Markdown links and images keep their brackets.
func ExtractDeletions(text string) (string, []domain.Deletion) {
	var (
		clean     strings.Builder
		deletions []domain.Deletion
	)
	for i := 0; i < len(text); {
		if text[i] != '[' || (i > 0 && text[i-1] == '!') {
			clean.WriteByte(text[i])
			i++
			continue
		}
		rest := text[i+1:]
		end := strings.IndexByte(rest, ']')
		if end <= 0 || strings.IndexByte(rest[:end], '[') >= 0 {
			clean.WriteByte(text[i])
			i++
			continue
		}
		closing := i + 1 + end
		if closing+1 < len(text) && text[closing+1] == '(' {
			clean.WriteString(text[i : closing+1])
			i = closing + 1
			continue
		}
		start := clean.Len()
		clean.WriteString(rest[:end])
		deletions = append(deletions, domain.Deletion{Start: start, End: clean.Len()})
		i = closing + 1
	}
	return clean.String(), deletions
}
