package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// MinEase is the floor every ease factor is clamped to.
const MinEase = 1.3

// Day is the unit review intervals are rounded to.
const Day = 24 * time.Hour

// ParamsVersion identifies the default constants below. Bump it whenever a
// default changes so stored schedules can be traced to the rules that made them.
const ParamsVersion = 1

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("scheduler: parameters out of bounds")

// Params holds the scheduling constants. Treat a Params value as immutable
// once handed to a session.
type Params struct {
	Version int

	InitialEase     float64
	LearningSteps   []time.Duration
	RelearningSteps []time.Duration

	// GraduatingInterval is used when a card leaves its last learning step.
	GraduatingInterval time.Duration
	// EasyInterval is used when a learning card is answered Easy.
	EasyInterval time.Duration

	EasyBonus      float64
	HardMultiplier float64

	// LapseMultiplier scales the pre-lapse interval into the interval a
	// relearning card graduates back to, clamped below by MinLapseInterval.
	LapseMultiplier  float64
	MinLapseInterval time.Duration

	MaxInterval time.Duration
}

// DefaultParams provides the default scheduling constants.
func DefaultParams() Params {
	return Params{
		Version:            ParamsVersion,
		InitialEase:        2.5,
		LearningSteps:      []time.Duration{1 * time.Minute, 10 * time.Minute},
		RelearningSteps:    []time.Duration{10 * time.Minute},
		GraduatingInterval: 1 * Day,
		EasyInterval:       4 * Day,
		EasyBonus:          1.3,
		HardMultiplier:     1.2,
		LapseMultiplier:    0.5,
		MinLapseInterval:   1 * Day,
		MaxInterval:        36500 * Day,
	}
}

// Validate checks that every constant is usable.
func (p Params) Validate() error {
	switch {
	case p.InitialEase < MinEase:
		return fmt.Errorf("%w: initial ease %.2f below %.2f", ErrInvalidParams, p.InitialEase, MinEase)
	case len(p.LearningSteps) == 0 || len(p.RelearningSteps) == 0:
		return fmt.Errorf("%w: learning and relearning steps must not be empty", ErrInvalidParams)
	case p.EasyBonus < 1 || p.HardMultiplier < 1:
		return fmt.Errorf("%w: easy bonus and hard multiplier must be at least 1", ErrInvalidParams)
	case p.LapseMultiplier < 0:
		return fmt.Errorf("%w: negative lapse multiplier", ErrInvalidParams)
	case p.GraduatingInterval < Day || p.EasyInterval < Day || p.MinLapseInterval < Day:
		return fmt.Errorf("%w: review intervals must be at least one day", ErrInvalidParams)
	case p.MaxInterval < p.EasyInterval:
		return fmt.Errorf("%w: maximum interval below easy interval", ErrInvalidParams)
	}
	for _, step := range append(append([]time.Duration{}, p.LearningSteps...), p.RelearningSteps...) {
		if step < time.Minute {
			return fmt.Errorf("%w: learning step %s shorter than a minute", ErrInvalidParams, step)
		}
	}
	return nil
}
