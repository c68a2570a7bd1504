package drill

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/conorfennell/hashcards/internal/collection"
	"github.com/conorfennell/hashcards/internal/domain"
	apperrors "github.com/conorfennell/hashcards/internal/errors"
	"github.com/conorfennell/hashcards/internal/scheduler"
)

// ErrStale is returned when an answer names a card other than the one at
// the head of the queue.
var ErrStale = apperrors.New(apperrors.CodeClientStale, "answer does not match the current card")

// RecordStore is the part of the review-state store a session needs.
type RecordStore interface {
	Load(ctx context.Context) (map[string]scheduler.Record, error)
	Get(ctx context.Context, hash string) (scheduler.Record, bool, error)
	Put(ctx context.Context, hash string, r scheduler.Record) error
}

// Cards is the part of a collection a session needs.
type Cards interface {
	Cards() []domain.Card
	Card(hash string) (domain.Card, bool)
}

// Config is everything a session is started with.
type Config struct {
	Options
	Controls scheduler.AnswerControls
	Params   scheduler.Params
}

// Progress counts what happened so far in a session.
type Progress struct {
	Answered    int `json:"answered"`
	Remaining   int `json:"remaining"`
	NewAnswered int `json:"new_answered"`
}

// CardView is what the learner sees of the card at the head of the queue.
type CardView struct {
	Hash   string            `json:"fingerprint"`
	Deck   string            `json:"deck"`
	Front  string            `json:"front"`
	Back   string            `json:"back"`
	IsNew  bool              `json:"is_new"`
	Grades []scheduler.Grade `json:"grades"`
}

// View is the state of the session after an operation. Card is nil once
// the session is completed.
type View struct {
	Card     *CardView
	Progress Progress
}

// Completed reports whether there is nothing left to show.
func (v View) Completed() bool {
	return v.Card == nil
}

// Session holds the mutable state of one drill session. Answer and Skip
// hold the lock exclusively, Peek and Progress share it.
type Session struct {
	store    RecordStore
	cards    Cards
	params   scheduler.Params
	controls scheduler.AnswerControls
	opts     Options

	mu          sync.RWMutex
	queue       []string
	newCards    map[string]bool
	noteOf      map[string]string
	siblings    map[string][]string
	bury        map[string]bool
	answered    int
	newAnswered int
}

// NewSession loads every review record once and builds the queue.
func NewSession(ctx context.Context, cards Cards, store RecordStore, cfg Config) (*Session, error) {
	records, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	plan := Build(cards.Cards(), records, cfg.Options)

	slog.Info("session built",
		"queued", len(plan.Queue),
		"new", len(plan.New),
		"deck", cfg.DeckFilter,
		"started_at", cfg.Now.Format(time.RFC3339),
	)

	return &Session{
		store:    store,
		cards:    cards,
		params:   cfg.Params,
		controls: cfg.Controls,
		opts:     cfg.Options,
		queue:    plan.Queue,
		newCards: plan.New,
		noteOf:   plan.NoteOf,
		siblings: plan.Siblings,
		bury:     make(map[string]bool),
	}, nil
}

// StartedAt is the frozen instant used for every due check and answer.
func (s *Session) StartedAt() time.Time {
	return s.opts.Now
}

// Controls returns the answer controls the session was started with.
func (s *Session) Controls() scheduler.AnswerControls {
	return s.controls
}

// Peek returns the card at the head of the queue without removing it.
func (s *Session) Peek(ctx context.Context) (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peekLocked()
}

// Answer grades the card at the head of the queue. The updated record is
// written before the queue changes; if the write fails the session is left
// exactly as it was.
func (s *Session) Answer(ctx context.Context, hash string, grade scheduler.Grade) (View, error) {
	resolved, err := s.controls.Resolve(grade)
	if err != nil {
		return View{}, apperrors.Wrap(apperrors.CodeClientBadGrade, "unknown grade", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completedLocked() || s.queue[0] != hash {
		return View{}, ErrStale
	}

	// A started write is never abandoned because the client went away.
	writeCtx := context.WithoutCancel(ctx)
	record, ok, err := s.store.Get(writeCtx, hash)
	if err != nil {
		return View{}, err
	}
	if !ok {
		record = s.params.NewRecord()
	}
	next := s.params.Apply(record, resolved, s.opts.Now)
	if err := s.store.Put(writeCtx, hash, next); err != nil {
		return View{}, err
	}

	s.queue = s.queue[1:]
	s.answered++
	if s.newCards[hash] {
		s.newAnswered++
		delete(s.newCards, hash)
	}
	if s.opts.BurySiblings {
		s.burySiblingsLocked(hash)
	}
	if resolved == scheduler.Again && s.controls == scheduler.Full {
		s.queue = append(s.queue, hash)
	}

	slog.Debug("card answered",
		"hash", hash,
		"grade", resolved.String(),
		"state", next.State.String(),
		"due", next.Due.Format(time.RFC3339),
	)
	return s.peekLocked()
}

// Skip moves the head of the queue to its tail without touching the store.
func (s *Session) Skip(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.completedLocked() {
		s.queue = append(s.queue[1:], s.queue[0])
	}
	return s.peekLocked()
}

// Progress reports the session counters.
func (s *Session) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progressLocked()
}

func (s *Session) completedLocked() bool {
	if len(s.queue) == 0 {
		return true
	}
	return s.opts.CardLimit > 0 && s.answered >= s.opts.CardLimit
}

func (s *Session) progressLocked() Progress {
	remaining := len(s.queue)
	if s.opts.CardLimit > 0 {
		remaining = max(0, min(remaining, s.opts.CardLimit-s.answered))
	}
	return Progress{
		Answered:    s.answered,
		Remaining:   remaining,
		NewAnswered: s.newAnswered,
	}
}

func (s *Session) peekLocked() (View, error) {
	if s.completedLocked() {
		return View{Progress: s.progressLocked()}, nil
	}

	hash := s.queue[0]
	card, ok := s.cards.Card(hash)
	if !ok {
		return View{}, apperrors.New(apperrors.CodeInternal, "queued card missing from collection: "+hash)
	}
	rendered, err := collection.Render(card)
	if err != nil {
		return View{}, apperrors.Wrap(apperrors.CodeInternal, "failed to render card "+hash, err)
	}

	return View{
		Card: &CardView{
			Hash:   hash,
			Deck:   card.Deck,
			Front:  rendered.Front,
			Back:   rendered.Back,
			IsNew:  s.newCards[hash],
			Grades: s.controls.Grades(),
		},
		Progress: s.progressLocked(),
	}, nil
}

// burySiblingsLocked suppresses every other card of the answered card's
// note for the rest of the session.
func (s *Session) burySiblingsLocked(hash string) {
	note, ok := s.noteOf[hash]
	if !ok {
		return
	}
	for _, sibling := range s.siblings[note] {
		if sibling != hash {
			s.bury[sibling] = true
		}
	}
	kept := s.queue[:0]
	for _, queued := range s.queue {
		if !s.bury[queued] {
			kept = append(kept, queued)
		}
	}
	s.queue = kept
}
