// Package scheduler computes spaced-repetition schedules.
//
// Everything here is pure: no I/O and no clock access. Callers pass the
// instant a review happened, which keeps sessions replayable.
package scheduler

import (
	"fmt"
	"math"
	"time"
)

// IsDue reports whether a card should be reviewed at now.
func IsDue(r Record, now time.Time) bool {
	return r.State == New || !r.Due.After(now)
}

// Apply returns the record that results from answering r with grade g at now.
// It panics on an invalid grade or if the result breaks a record invariant;
// both indicate a bug in the caller or in the scheduler.
func (p Params) Apply(r Record, g Grade, now time.Time) Record {
	if !g.IsValid() {
		panic(fmt.Sprintf("scheduler: apply with invalid grade %d", int(g)))
	}

	var next Record
	switch r.State {
	case New, Learning:
		next = p.learn(r, g)
	case Review:
		next = p.review(r, g)
	case Relearning:
		next = p.relearn(r, g)
	default:
		panic(fmt.Sprintf("scheduler: apply on invalid state %d", int(r.State)))
	}

	next.LastReviewed = now
	next.Due = now.Add(next.Interval)

	if err := next.Validate(); err != nil {
		panic(fmt.Sprintf("scheduler: invariant violated after %s on %s card: %v", g, r.State, err))
	}
	return next
}

// learn handles New and Learning cards. A new card sits before the first
// step, so Good moves it onto step zero rather than past it.
func (p Params) learn(r Record, g Grade) Record {
	step := clampStep(r.Step, p.LearningSteps)
	switch g {
	case Again:
		step = 0
	case Hard:
		if r.State == New {
			step = 0
		}
	case Good:
		if r.State != New {
			step++
		}
		if step >= len(p.LearningSteps) {
			return p.graduate(r, p.GraduatingInterval)
		}
	case Easy:
		return p.graduate(r, p.EasyInterval)
	}
	r.State = Learning
	r.Step = step
	r.Interval = p.roundMinutes(p.LearningSteps[step])
	return r
}

func (p Params) review(r Record, g Grade) Record {
	switch g {
	case Again:
		r.State = Relearning
		r.Step = 0
		r.Lapses++
		r.Ease = math.Max(MinEase, r.Ease-0.20)
		lapse := p.roundDays(float64(r.Interval) * p.LapseMultiplier)
		r.LapseInterval = max(lapse, p.roundDays(float64(p.MinLapseInterval)))
		r.Interval = p.roundMinutes(p.RelearningSteps[0])
	case Hard:
		r.Interval = p.grow(r.Interval, p.HardMultiplier)
		r.Ease = math.Max(MinEase, r.Ease-0.15)
	case Good:
		r.Interval = p.grow(r.Interval, r.Ease)
		r.Reps++
	case Easy:
		r.Interval = p.grow(r.Interval, r.Ease*p.EasyBonus)
		r.Ease += 0.15
		r.Reps++
	}
	return r
}

func (p Params) relearn(r Record, g Grade) Record {
	step := clampStep(r.Step, p.RelearningSteps)
	lapse := r.LapseInterval
	if lapse < p.MinLapseInterval {
		lapse = p.MinLapseInterval
	}
	switch g {
	case Again:
		step = 0
	case Good:
		step++
		if step >= len(p.RelearningSteps) {
			return p.graduate(r, lapse)
		}
	case Easy:
		return p.graduate(r, lapse)
	}
	r.Step = step
	r.Interval = p.roundMinutes(p.RelearningSteps[step])
	return r
}

func (p Params) graduate(r Record, interval time.Duration) Record {
	r.State = Review
	r.Step = 0
	r.LapseInterval = 0
	r.Interval = p.roundDays(float64(interval))
	r.Reps++
	return r
}

// grow multiplies a review interval, never shrinking it below its own
// rounded value.
func (p Params) grow(interval time.Duration, factor float64) time.Duration {
	return max(p.roundDays(float64(interval)*factor), p.roundDays(float64(interval)))
}

// roundDays rounds to the nearest whole day, at least one, at most MaxInterval.
func (p Params) roundDays(d float64) time.Duration {
	days := math.Round(d / float64(Day))
	if days < 1 {
		days = 1
	}
	if limit := math.Floor(float64(p.MaxInterval) / float64(Day)); days > limit {
		days = limit
	}
	return time.Duration(days) * Day
}

// roundMinutes rounds to the nearest minute, at most MaxInterval.
func (p Params) roundMinutes(d time.Duration) time.Duration {
	return min(d.Round(time.Minute), p.MaxInterval)
}

func clampStep(step int, steps []time.Duration) int {
	if step < 0 {
		return 0
	}
	if step >= len(steps) {
		return len(steps) - 1
	}
	return step
}
