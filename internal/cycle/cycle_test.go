package cycle

import (
	"errors"
	"testing"
	"time"
)

var base = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

// onDay returns a timestamp at noon of the given cycle day.
func onDay(day int) time.Time {
	return base.Add(time.Duration(day-1)*24*time.Hour + 12*time.Hour)
}

func activeEvent(id string, now time.Time) Event {
	return Event{ID: id, Start: now.Add(-30 * time.Minute), End: now.Add(time.Hour)}
}

func TestDayDerivation(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base}

	cases := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 1},
		{23 * time.Hour, 1},
		{24 * time.Hour, 2},
		{6 * 24 * time.Hour, 7},
		{7 * 24 * time.Hour, 1},   // elapsed-day-7 wraps to day 1
		{8 * 24 * time.Hour, 2},   // no day 8
		{13 * 24 * time.Hour, 7},
	}
	for _, c := range cases {
		if got := m.DayOf(st, base.Add(c.elapsed)); got != c.want {
			t.Fatalf("DayOf(+%v) = %d, want %d", c.elapsed, got, c.want)
		}
	}
}

func TestDayClampsOnClockSkew(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base}
	if got := m.DayOf(st, base.Add(-time.Hour)); got != 1 {
		t.Fatalf("expected clamp to day 1, got %d", got)
	}
}

func TestPhaseMapping(t *testing.T) {
	want := map[int]Phase{
		1: PhaseSilence,
		2: PhaseSilence,
		3: PhaseIntervention,
		4: PhaseIntervention,
		5: PhaseIntervention,
		6: PhaseSilence, // buffer day
		7: PhaseReflection,
	}
	for day, phase := range want {
		if got := PhaseOf(day); got != phase {
			t.Fatalf("PhaseOf(%d) = %s, want %s", day, got, phase)
		}
	}
}

func TestTriggerOnDropAndActiveEvent(t *testing.T) {
	// day=4, current=40, baseline=50 (ratio 0.8), one active event.
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base}
	now := onDay(4)

	res, next := m.EvaluateTrigger(st, Reading{Current: 40, Baseline: 50}, []Event{activeEvent("ev-1", now)}, now)
	if !res.ShouldDisplay {
		t.Fatalf("expected display, got suppressed: %s", res.Reason)
	}
	if res.EventID != "ev-1" {
		t.Fatalf("expected ev-1, got %s", res.EventID)
	}
	if !next.LastBrakeDisplay.Equal(now) {
		t.Fatal("expected LastBrakeDisplay stamped at now")
	}
	if next.PendingEventID != "ev-1" {
		t.Fatalf("expected pending event ev-1, got %q", next.PendingEventID)
	}
}

func TestNoTriggerOnInsufficientDrop(t *testing.T) {
	// ratio 0.92 with an active high-stakes event.
	m := NewMachine(DefaultConfig())
	now := onDay(4)

	res, _ := m.EvaluateTrigger(State{CycleStart: base}, Reading{Current: 46, Baseline: 50}, []Event{activeEvent("ev-1", now)}, now)
	if res.ShouldDisplay {
		t.Fatal("expected suppression on insufficient drop")
	}
}

func TestNoTriggerWithoutEvent(t *testing.T) {
	// deep drop but an empty event set.
	m := NewMachine(DefaultConfig())
	now := onDay(4)

	res, _ := m.EvaluateTrigger(State{CycleStart: base}, Reading{Current: 35, Baseline: 50}, nil, now)
	if res.ShouldDisplay {
		t.Fatal("expected suppression with no active events")
	}
}

func TestNoTriggerOutsideInterventionDays(t *testing.T) {
	m := NewMachine(DefaultConfig())
	for _, day := range []int{1, 2, 6, 7} {
		now := onDay(day)
		res, next := m.EvaluateTrigger(State{CycleStart: base}, Reading{Current: 25, Baseline: 50}, []Event{activeEvent("ev-1", now)}, now)
		if res.ShouldDisplay {
			t.Fatalf("day %d: expected suppression regardless of conditions", day)
		}
		if !next.LastBrakeDisplay.IsZero() {
			t.Fatalf("day %d: state must not change outside intervention phase", day)
		}
	}
}

func TestTriggerSuppressedOnZeroBaseline(t *testing.T) {
	m := NewMachine(DefaultConfig())
	now := onDay(4)
	res, _ := m.EvaluateTrigger(State{CycleStart: base}, Reading{Current: 40, Baseline: 0}, []Event{activeEvent("ev-1", now)}, now)
	if res.ShouldDisplay {
		t.Fatal("expected suppression on undefined drop ratio")
	}
}

func TestTriggerIdempotentAcrossPolls(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base}
	now := onDay(4)
	reading := Reading{Current: 40, Baseline: 50}
	events := []Event{activeEvent("ev-1", now)}

	for i := 0; i < 5; i++ {
		var res TriggerResult
		res, st = m.EvaluateTrigger(st, reading, events, now.Add(time.Duration(i)*time.Minute))
		if !res.ShouldDisplay {
			t.Fatalf("poll %d: display toggled off without an intervening decision", i)
		}
	}
}

func TestEventSelectionDeterministic(t *testing.T) {
	m := NewMachine(DefaultConfig())
	now := onDay(4)
	early := Event{ID: "zz", Start: now.Add(-2 * time.Hour), End: now.Add(time.Hour)}
	late := Event{ID: "aa", Start: now.Add(-time.Hour), End: now.Add(time.Hour)}
	tieA := Event{ID: "aa", Start: now.Add(-time.Hour), End: now.Add(time.Hour)}
	tieB := Event{ID: "ab", Start: now.Add(-time.Hour), End: now.Add(time.Hour)}

	res, _ := m.EvaluateTrigger(State{CycleStart: base}, Reading{Current: 40, Baseline: 50}, []Event{late, early}, now)
	if res.EventID != "zz" {
		t.Fatalf("expected earliest start to win, got %s", res.EventID)
	}

	res, _ = m.EvaluateTrigger(State{CycleStart: base}, Reading{Current: 40, Baseline: 50}, []Event{tieB, tieA}, now)
	if res.EventID != "aa" {
		t.Fatalf("expected smallest id on tie, got %s", res.EventID)
	}
}

func TestProceedLocksPerEvent(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base}
	now := onDay(4)
	reading := Reading{Current: 40, Baseline: 50}
	eventX := activeEvent("ev-x", now)

	res, st := m.EvaluateTrigger(st, reading, []Event{eventX}, now)
	if !res.ShouldDisplay {
		t.Fatalf("setup: expected display: %s", res.Reason)
	}

	out, st, err := m.ApplyDecision(st, DecisionProceed, now)
	if err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}
	if out.Status != "decision_locked" {
		t.Fatalf("expected decision_locked, got %s", out.Status)
	}
	if st.LockedEventID != "ev-x" {
		t.Fatalf("expected lock on ev-x, got %q", st.LockedEventID)
	}
	if !out.RecheckAt.IsZero() {
		t.Fatal("Proceed must not schedule a recheck")
	}

	// Identical inputs, same event: suppressed by the lock.
	res, st = m.EvaluateTrigger(st, reading, []Event{eventX}, now.Add(time.Minute))
	if res.ShouldDisplay {
		t.Fatal("expected suppression while locked event is active")
	}

	// Event X expired; event Y with the same conditions triggers again.
	later := now.Add(2 * time.Hour)
	eventY := activeEvent("ev-y", later)
	res, st = m.EvaluateTrigger(st, reading, []Event{eventY}, later)
	if !res.ShouldDisplay {
		t.Fatalf("expected new event to trigger after lock cleared: %s", res.Reason)
	}
	if res.EventID != "ev-y" {
		t.Fatalf("expected ev-y, got %s", res.EventID)
	}
	if st.LockedEventID != "" {
		t.Fatalf("expected lock cleared, got %q", st.LockedEventID)
	}
}

func TestDelayStartsCoolingPeriod(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base}
	now := onDay(4)
	reading := Reading{Current: 40, Baseline: 50}

	_, st = m.EvaluateTrigger(st, reading, []Event{activeEvent("ev-1", now)}, now)
	out, st, err := m.ApplyDecision(st, DecisionDelay, now)
	if err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}
	if out.Status != "cooling_period_activated" {
		t.Fatalf("expected cooling_period_activated, got %s", out.Status)
	}
	if !out.RecheckAt.Equal(now.Add(20 * time.Minute)) {
		t.Fatalf("expected recheck at T+20m exactly, got %v", out.RecheckAt)
	}
	if !st.CoolingActive || !st.CoolingStart.Equal(now) {
		t.Fatal("expected cooling period active from now")
	}
	if out.Record.Type != DecisionDelay || out.Record.Day != 4 {
		t.Fatalf("unexpected record: %+v", out.Record)
	}
}

func TestCoolingPeriodExpiry(t *testing.T) {
	m := NewMachine(DefaultConfig())
	now := onDay(4)
	st := State{CycleStart: base, CoolingActive: true, CoolingStart: now}
	reading := Reading{Current: 40, Baseline: 50}

	at := now.Add(19*time.Minute + 59*time.Second)
	res, _ := m.EvaluateTrigger(st, reading, []Event{activeEvent("ev-1", at)}, at)
	if res.ShouldDisplay {
		t.Fatal("expected suppression at T+19m59s")
	}

	at = now.Add(20*time.Minute + time.Second)
	res, next := m.EvaluateTrigger(st, reading, []Event{activeEvent("ev-1", at)}, at)
	if !res.ShouldDisplay {
		t.Fatalf("expected display at T+20m01s: %s", res.Reason)
	}
	if next.CoolingActive {
		t.Fatal("expected cooling period cleared after expiry")
	}
}

func TestDecisionRejectedWithoutPendingTrigger(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base}

	_, next, err := m.ApplyDecision(st, DecisionProceed, onDay(4))
	if !errors.Is(err, ErrNoPendingTrigger) {
		t.Fatalf("expected ErrNoPendingTrigger, got %v", err)
	}
	if next != st {
		t.Fatal("rejection must not mutate state")
	}
}

func TestDecisionRejectedOnInvalidType(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base, PendingEventID: "ev-1", LastBrakeDisplay: onDay(4)}

	_, next, err := m.ApplyDecision(st, DecisionType("Maybe"), onDay(4))
	if !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
	if next != st {
		t.Fatal("rejection must not mutate state")
	}
}

func TestDoubleDecisionRejected(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base}
	now := onDay(4)

	_, st = m.EvaluateTrigger(st, Reading{Current: 40, Baseline: 50}, []Event{activeEvent("ev-1", now)}, now)
	_, st, err := m.ApplyDecision(st, DecisionDelay, now)
	if err != nil {
		t.Fatalf("first decision: %v", err)
	}
	_, _, err = m.ApplyDecision(st, DecisionDelay, now.Add(time.Second))
	if !errors.Is(err, ErrNoPendingTrigger) {
		t.Fatalf("expected second submission rejected, got %v", err)
	}
}

func TestReflectionResetsCycle(t *testing.T) {
	m := NewMachine(DefaultConfig())
	now := onDay(7)
	st := State{
		CycleStart:     base,
		CoolingActive:  true,
		CoolingStart:   now.Add(-5 * time.Minute),
		LockedEventID:  "ev-1",
		PendingEventID: "ev-2",
	}

	out, st, err := m.ApplyReflection(st, ReflectionSkip, now)
	if err != nil {
		t.Fatalf("ApplyReflection: %v", err)
	}
	if out.Status != "reflection_recorded" {
		t.Fatalf("expected reflection_recorded, got %s", out.Status)
	}
	if !out.Record.CycleStart.Equal(base) {
		t.Fatalf("record must reference the closed cycle, got %v", out.Record.CycleStart)
	}
	if !st.CycleStart.Equal(now) {
		t.Fatalf("expected new cycle start at now, got %v", st.CycleStart)
	}
	if st.CoolingActive || st.LockedEventID != "" || st.PendingEventID != "" {
		t.Fatalf("expected suppressors cleared on reset: %+v", st)
	}
	if got := m.DayOf(st, now); got != 1 {
		t.Fatalf("expected day 1 after reset, got %d", got)
	}

	// Round-trip: the new cycle's day 1 is never interruptible.
	res, _ := m.EvaluateTrigger(st, Reading{Current: 30, Baseline: 50}, []Event{activeEvent("ev-3", now)}, now.Add(time.Minute))
	if res.ShouldDisplay {
		t.Fatal("expected suppression on the new cycle's day 1")
	}
}

func TestReflectionResetUnconditionalAcrossResponses(t *testing.T) {
	m := NewMachine(DefaultConfig())
	for _, resp := range []ReflectionResponse{ReflectionYes, ReflectionNo, ReflectionSkip} {
		now := onDay(7)
		_, st, err := m.ApplyReflection(State{CycleStart: base}, resp, now)
		if err != nil {
			t.Fatalf("%s: %v", resp, err)
		}
		if !st.CycleStart.Equal(now) {
			t.Fatalf("%s: expected reset regardless of response", resp)
		}
	}
}

func TestReflectionRejectedOutsideDaySeven(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base}

	_, next, err := m.ApplyReflection(st, ReflectionYes, onDay(4))
	if !errors.Is(err, ErrOutsideReflection) {
		t.Fatalf("expected ErrOutsideReflection, got %v", err)
	}
	if next != st {
		t.Fatal("rejection must not mutate state")
	}

	_, _, err = m.ApplyReflection(st, ReflectionResponse("Perhaps"), onDay(7))
	if !errors.Is(err, ErrInvalidReflection) {
		t.Fatalf("expected ErrInvalidReflection, got %v", err)
	}
}

func TestReflectionWindow(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base}
	day7 := base.Add(6 * 24 * time.Hour)

	cases := []struct {
		at   time.Time
		want bool
	}{
		{day7.Add(8*time.Hour + 59*time.Minute), false},
		{day7.Add(9 * time.Hour), true},
		{day7.Add(9*time.Hour + 4*time.Minute + 59*time.Second), true},
		{day7.Add(9*time.Hour + 5*time.Minute), false},
		{base.Add(9 * time.Hour), false}, // right hour, wrong day
	}
	for _, c := range cases {
		if got := m.ReflectionWindowOpen(st, c.at, time.UTC); got != c.want {
			t.Fatalf("ReflectionWindowOpen(%v) = %v, want %v", c.at, got, c.want)
		}
	}
}

func TestReflectionWindowLocalTime(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := State{CycleStart: base}
	loc := time.FixedZone("UTC+2", 2*3600)

	// 07:30 UTC on day 7 is 09:30 local: outside the window.
	at := base.Add(6*24*time.Hour + 7*time.Hour + 30*time.Minute)
	if m.ReflectionWindowOpen(st, at, loc) {
		t.Fatal("09:30 local should be outside the window")
	}

	// 07:02 UTC on day 7 is 09:02 local: inside.
	at = base.Add(6*24*time.Hour + 7*time.Hour + 2*time.Minute)
	if !m.ReflectionWindowOpen(st, at, loc) {
		t.Fatal("09:02 local should be inside the window")
	}
}
