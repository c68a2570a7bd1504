package scheduler

import (
	"encoding"
	"errors"
	"fmt"
)

// ErrInvalidGrade is returned when a grade name is not recognized or not
// offered by the active answer controls.
var ErrInvalidGrade = errors.New("scheduler: invalid grade")

// Grade is the user's response to a card review.
type Grade int

const (
	Again Grade = iota + 1 // Failed to recall.
	Hard                   // Recalled with significant difficulty.
	Good                   // Recalled with some effort.
	Easy                   // Recalled effortlessly.
)

var (
	gradeNames  = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}
	gradeByName = map[string]Grade{
		"again": Again,
		"hard":  Hard,
		"good":  Good,
		"easy":  Easy,
	}
)

var (
	_ fmt.Stringer             = Grade(0)
	_ encoding.TextMarshaler   = Grade(0)
	_ encoding.TextUnmarshaler = (*Grade)(nil)
)

// IsValid reports whether g is one of Again through Easy.
func (g Grade) IsValid() bool {
	return g >= Again && g <= Easy
}

func (g Grade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// MarshalText implements encoding.TextMarshaler. JSON encodes a Grade as a
// lowercase string through this method.
func (g Grade) MarshalText() ([]byte, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGrade, int(g))
	}
	return []byte(gradeNames[g]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Grade) UnmarshalText(text []byte) error {
	v, err := ParseGrade(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// ParseGrade looks up a grade by its lowercase name.
func ParseGrade(name string) (Grade, error) {
	v, ok := gradeByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, name)
	}
	return v, nil
}

// AnswerControls selects the grade alphabet shown to the learner.
type AnswerControls int

const (
	// Full offers Again, Hard, Good and Easy.
	Full AnswerControls = iota
	// Binary offers Again and Good. Hard and Easy, if submitted anyway,
	// collapse into Good.
	Binary
)

// ParseAnswerControls accepts "full" or "binary".
func ParseAnswerControls(s string) (AnswerControls, error) {
	switch s {
	case "full":
		return Full, nil
	case "binary":
		return Binary, nil
	default:
		return Full, fmt.Errorf("unknown answer controls %q (want full or binary)", s)
	}
}

func (c AnswerControls) String() string {
	if c == Binary {
		return "binary"
	}
	return "full"
}

// Grades returns the grades offered to the learner, in display order.
func (c AnswerControls) Grades() []Grade {
	if c == Binary {
		return []Grade{Again, Good}
	}
	return []Grade{Again, Hard, Good, Easy}
}

// Resolve maps a submitted grade to its Full counterpart.
func (c AnswerControls) Resolve(g Grade) (Grade, error) {
	if !g.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidGrade, int(g))
	}
	if c == Binary && (g == Hard || g == Easy) {
		return Good, nil
	}
	return g, nil
}
