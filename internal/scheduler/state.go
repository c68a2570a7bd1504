package scheduler

import (
	"fmt"
	"time"
)

// State is the learning stage of a card.
type State int

const (
	New State = iota
	Learning
	Review
	Relearning
)

var (
	stateNames  = [...]string{New: "new", Learning: "learning", Review: "review", Relearning: "relearning"}
	stateByName = map[string]State{
		"new":        New,
		"learning":   Learning,
		"review":     Review,
		"relearning": Relearning,
	}
)

func (s State) isValid() bool {
	return s >= New && s <= Relearning
}

func (s State) String() string {
	if s.isValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.isValid() {
		return nil, fmt.Errorf("scheduler: invalid state: %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, ok := stateByName[string(text)]
	if !ok {
		return fmt.Errorf("scheduler: invalid state: %q", text)
	}
	*s = v
	return nil
}

// Record is the spaced-repetition state of one card.
type Record struct {
	State        State         `json:"state"`
	Due          time.Time     `json:"due"`
	Interval     time.Duration `json:"interval"`
	Ease         float64       `json:"ease"`
	Reps         int           `json:"reps"`
	Lapses       int           `json:"lapses"`
	LastReviewed time.Time     `json:"last_reviewed,omitzero"`

	// Step indexes the learning or relearning step list.
	Step int `json:"step"`
	// LapseInterval is the interval a relearning card graduates back to.
	LapseInterval time.Duration `json:"lapse_interval"`
}

// NewRecord is the implicit record of a card that has never been answered:
// due since forever, no interval, initial ease.
func (p Params) NewRecord() Record {
	return Record{State: New, Ease: p.InitialEase}
}

// IsNew reports whether the card has never left the New state.
func (r Record) IsNew() bool {
	return r.State == New
}

// Validate checks the record invariants. Records read from disk go through
// this before reaching the scheduler.
func (r Record) Validate() error {
	switch {
	case !r.State.isValid():
		return fmt.Errorf("invalid state %d", int(r.State))
	case r.Ease < MinEase:
		return fmt.Errorf("ease %.2f below minimum %.2f", r.Ease, MinEase)
	case r.Interval < 0 || r.LapseInterval < 0:
		return fmt.Errorf("negative interval")
	case r.Reps < 0 || r.Lapses < 0 || r.Step < 0:
		return fmt.Errorf("negative counter")
	case r.State == New && (r.Reps != 0 || r.Lapses != 0):
		return fmt.Errorf("new card with %d reps and %d lapses", r.Reps, r.Lapses)
	}
	return nil
}
