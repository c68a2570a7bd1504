package scheduler

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func reviewRecord(interval time.Duration, ease float64) Record {
	return Record{State: Review, Interval: interval, Ease: ease, Reps: 3, Due: t0}
}

func TestApplyNewCard(t *testing.T) {
	p := DefaultParams()

	testCases := []struct {
		name     string
		grade    Grade
		state    State
		interval time.Duration
		reps     int
	}{
		{"Again", Again, Learning, time.Minute, 0},
		{"Hard", Hard, Learning, time.Minute, 0},
		{"Good", Good, Learning, time.Minute, 0},
		{"Easy", Easy, Review, 4 * Day, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Apply(p.NewRecord(), tc.grade, t0)
			if got.State != tc.state {
				t.Errorf("Expected state %s, got %s", tc.state, got.State)
			}
			if got.Interval != tc.interval {
				t.Errorf("Expected interval %s, got %s", tc.interval, got.Interval)
			}
			if got.Reps != tc.reps {
				t.Errorf("Expected %d reps, got %d", tc.reps, got.Reps)
			}
			if !got.Due.Equal(t0.Add(tc.interval)) {
				t.Errorf("Expected due %s, got %s", t0.Add(tc.interval), got.Due)
			}
			if !got.LastReviewed.Equal(t0) {
				t.Errorf("Expected last reviewed %s, got %s", t0, got.LastReviewed)
			}
		})
	}
}

func TestApplyLearningSteps(t *testing.T) {
	p := DefaultParams()

	r := p.Apply(p.NewRecord(), Good, t0)
	if r.Step != 0 || r.Interval != time.Minute {
		t.Fatalf("Expected first step, got step %d interval %s", r.Step, r.Interval)
	}

	r = p.Apply(r, Good, t0)
	if r.State != Learning || r.Step != 1 || r.Interval != 10*time.Minute {
		t.Fatalf("Expected second step, got %s step %d interval %s", r.State, r.Step, r.Interval)
	}

	hard := p.Apply(r, Hard, t0)
	if hard.Step != 1 || hard.Interval != 10*time.Minute {
		t.Errorf("Expected Hard to repeat the step, got step %d interval %s", hard.Step, hard.Interval)
	}

	again := p.Apply(r, Again, t0)
	if again.Step != 0 || again.Interval != time.Minute {
		t.Errorf("Expected Again to reset, got step %d interval %s", again.Step, again.Interval)
	}

	r = p.Apply(r, Good, t0)
	if r.State != Review || r.Interval != Day || r.Reps != 1 {
		t.Errorf("Expected graduation to a one day review, got %s interval %s reps %d", r.State, r.Interval, r.Reps)
	}
}

func TestApplyReview(t *testing.T) {
	p := DefaultParams()

	testCases := []struct {
		name     string
		grade    Grade
		state    State
		interval time.Duration
		ease     float64
		reps     int
		lapses   int
	}{
		{"Again", Again, Relearning, 10 * time.Minute, 2.3, 3, 1},
		{"Hard", Hard, Review, 12 * Day, 2.35, 3, 0},
		{"Good", Good, Review, 25 * Day, 2.5, 4, 0},
		{"Easy", Easy, Review, 33 * Day, 2.65, 4, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Apply(reviewRecord(10*Day, 2.5), tc.grade, t0)
			if got.State != tc.state {
				t.Errorf("Expected state %s, got %s", tc.state, got.State)
			}
			if got.Interval != tc.interval {
				t.Errorf("Expected interval %s, got %s", tc.interval, got.Interval)
			}
			if math.Abs(got.Ease-tc.ease) > 1e-9 {
				t.Errorf("Expected ease %.2f, got %.2f", tc.ease, got.Ease)
			}
			if got.Reps != tc.reps || got.Lapses != tc.lapses {
				t.Errorf("Expected reps/lapses %d/%d, got %d/%d", tc.reps, tc.lapses, got.Reps, got.Lapses)
			}
			if !got.Due.Equal(t0.Add(tc.interval)) {
				t.Errorf("Expected due %s, got %s", t0.Add(tc.interval), got.Due)
			}
		})
	}
}

func TestApplyLapseAndRelearn(t *testing.T) {
	p := DefaultParams()

	lapsed := p.Apply(reviewRecord(10*Day, 2.5), Again, t0)
	if lapsed.LapseInterval != 5*Day {
		t.Fatalf("Expected lapse interval of 5 days, got %s", lapsed.LapseInterval)
	}

	later := t0.Add(10 * time.Minute)
	back := p.Apply(lapsed, Good, later)
	if back.State != Review {
		t.Fatalf("Expected Review after relearning, got %s", back.State)
	}
	if back.Interval != 5*Day {
		t.Errorf("Expected 5 day interval, got %s", back.Interval)
	}
	if !back.Due.Equal(later.Add(5 * Day)) {
		t.Errorf("Expected due %s, got %s", later.Add(5*Day), back.Due)
	}

	short := p.Apply(reviewRecord(Day, 2.5), Again, t0)
	if short.LapseInterval != p.MinLapseInterval {
		t.Errorf("Expected lapse interval clamped to %s, got %s", p.MinLapseInterval, short.LapseInterval)
	}
}

func TestApplyClamps(t *testing.T) {
	p := DefaultParams()

	t.Run("ease floor", func(t *testing.T) {
		got := p.Apply(reviewRecord(10*Day, MinEase), Again, t0)
		if got.Ease != MinEase {
			t.Errorf("Expected ease to stay at %.2f, got %.2f", MinEase, got.Ease)
		}
	})

	t.Run("maximum interval", func(t *testing.T) {
		got := p.Apply(reviewRecord(30000*Day, 2.5), Good, t0)
		if got.Interval != p.MaxInterval {
			t.Errorf("Expected interval clamped to %s, got %s", p.MaxInterval, got.Interval)
		}
	})
}

func TestApplyInvalidGradePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected Apply to panic on an invalid grade")
		}
	}()
	p := DefaultParams()
	p.Apply(p.NewRecord(), Grade(9), t0)
}

func TestIsDue(t *testing.T) {
	p := DefaultParams()
	if !IsDue(p.NewRecord(), t0) {
		t.Error("Expected a new card to be due")
	}
	r := reviewRecord(Day, 2.5)
	r.Due = t0
	if !IsDue(r, t0) {
		t.Error("Expected a card due now to be due")
	}
	r.Due = t0.Add(time.Second)
	if IsDue(r, t0) {
		t.Error("Expected a card due in the future not to be due")
	}
}

func TestAnswerControls(t *testing.T) {
	if got := len(Full.Grades()); got != 4 {
		t.Errorf("Expected 4 full grades, got %d", got)
	}
	if got := Binary.Grades(); len(got) != 2 || got[0] != Again || got[1] != Good {
		t.Errorf("Unexpected binary grades %v", got)
	}

	for _, g := range []Grade{Hard, Easy} {
		resolved, err := Binary.Resolve(g)
		if err != nil || resolved != Good {
			t.Errorf("Expected binary %s to collapse into good, got %s (%v)", g, resolved, err)
		}
		resolved, err = Full.Resolve(g)
		if err != nil || resolved != g {
			t.Errorf("Expected full %s to stay, got %s (%v)", g, resolved, err)
		}
	}

	if _, err := Full.Resolve(Grade(0)); !errors.Is(err, ErrInvalidGrade) {
		t.Errorf("Expected ErrInvalidGrade, got %v", err)
	}

	if _, err := ParseAnswerControls("ternary"); err == nil {
		t.Error("Expected an error for unknown answer controls")
	}
}

func TestGradeJSON(t *testing.T) {
	var body struct {
		Grade Grade `json:"grade"`
	}
	if err := json.Unmarshal([]byte(`{"grade":"easy"}`), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if body.Grade != Easy {
		t.Errorf("Expected easy, got %s", body.Grade)
	}

	err := json.Unmarshal([]byte(`{"grade":"perfect"}`), &body)
	if !errors.Is(err, ErrInvalidGrade) {
		t.Errorf("Expected ErrInvalidGrade, got %v", err)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("Expected default params to be valid, got %v", err)
	}

	p := DefaultParams()
	p.LearningSteps = nil
	if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}

	p = DefaultParams()
	p.InitialEase = 1.0
	if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}
}

func recordGenerator(p Params) *rapid.Generator[Record] {
	return rapid.Custom(func(t *rapid.T) Record {
		state := rapid.SampledFrom([]State{New, Learning, Review, Relearning}).Draw(t, "state")
		if state == New {
			return p.NewRecord()
		}
		return Record{
			State:         state,
			Due:           t0.Add(time.Duration(rapid.IntRange(-1000, 1000).Draw(t, "dueHours")) * time.Hour),
			Interval:      time.Duration(rapid.IntRange(0, 40000).Draw(t, "intervalDays")) * Day,
			Ease:          rapid.Float64Range(MinEase, 4.0).Draw(t, "ease"),
			Reps:          rapid.IntRange(0, 50).Draw(t, "reps"),
			Lapses:        rapid.IntRange(0, 20).Draw(t, "lapses"),
			Step:          rapid.IntRange(0, 3).Draw(t, "step"),
			LapseInterval: time.Duration(rapid.IntRange(0, 100).Draw(t, "lapseDays")) * Day,
		}
	})
}

func TestApplyProperties(t *testing.T) {
	p := DefaultParams()
	rapid.Check(t, func(t *rapid.T) {
		r := recordGenerator(p).Draw(t, "record")
		g := rapid.SampledFrom([]Grade{Again, Hard, Good, Easy}).Draw(t, "grade")
		now := t0.Add(time.Duration(rapid.IntRange(0, 100000).Draw(t, "minutes")) * time.Minute)

		got := p.Apply(r, g, now)
		if got.Ease < MinEase {
			t.Fatalf("ease %.3f below minimum", got.Ease)
		}
		if got.Due.Before(now) {
			t.Fatalf("due %s before now %s", got.Due, now)
		}
		if got.Interval > p.MaxInterval {
			t.Fatalf("interval %s above maximum", got.Interval)
		}
		if got.State == New {
			t.Fatal("answered card stayed new")
		}
	})
}

func TestSuccessiveGoodNeverShrinks(t *testing.T) {
	p := DefaultParams()
	rapid.Check(t, func(t *rapid.T) {
		r := reviewRecord(
			time.Duration(rapid.IntRange(1, 5000).Draw(t, "days"))*Day,
			rapid.Float64Range(MinEase, 4.0).Draw(t, "ease"),
		)
		answers := rapid.IntRange(1, 10).Draw(t, "answers")
		now := t0
		previous := r.Interval
		for i := 0; i < answers; i++ {
			r = p.Apply(r, Good, now)
			if r.Interval < previous {
				t.Fatalf("interval shrank from %s to %s", previous, r.Interval)
			}
			previous = r.Interval
			now = r.Due
		}
	})
}

func TestLapseRoundTrip(t *testing.T) {
	p := DefaultParams()
	rapid.Check(t, func(t *rapid.T) {
		r := reviewRecord(
			time.Duration(rapid.IntRange(1, 5000).Draw(t, "days"))*Day,
			rapid.Float64Range(MinEase, 4.0).Draw(t, "ease"),
		)
		lapsed := p.Apply(r, Again, t0)
		if lapsed.State != Relearning {
			t.Fatalf("expected relearning, got %s", lapsed.State)
		}
		back := p.Apply(lapsed, Good, lapsed.Due)
		if back.State != Review {
			t.Fatalf("expected review, got %s", back.State)
		}
	})
}
