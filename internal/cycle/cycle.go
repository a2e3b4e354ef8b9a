package cycle

import (
	"fmt"
	"time"
)

// #region machine
// Machine evaluates brake triggers and applies decisions and reflections
// for one user's cycle state. All methods are pure: they take now as an
// argument and return the next state instead of mutating shared memory.
type Machine struct {
	config Config
}

// NewMachine creates a machine with the given configuration.
func NewMachine(config Config) *Machine {
	return &Machine{config: config}
}

// Config returns the machine's configuration.
func (m *Machine) Config() Config {
	return m.config
}

// #endregion machine

// #region day-phase

// DayOf derives the current cycle day (1-based) from the cycle start.
// The day is always recomputed, never stored. A clock reading before the
// cycle start clamps to day 1.
func (m *Machine) DayOf(state State, now time.Time) int {
	if now.Before(state.CycleStart) {
		return 1
	}
	elapsed := int(now.Sub(state.CycleStart) / (24 * time.Hour))
	return elapsed%m.config.CycleDays + 1
}

// PhaseOf maps a cycle day to its phase. Day 6 is a silent buffer day:
// not interruptible, not yet reflection.
func PhaseOf(day int) Phase {
	switch {
	case day >= 3 && day <= 5:
		return PhaseIntervention
	case day == 7:
		return PhaseReflection
	default:
		return PhaseSilence
	}
}

// #endregion day-phase

// #region evaluate

// EvaluateTrigger runs one brake-trigger evaluation pass: phase guard,
// then the two independent suppressors (cooling period, proceed lock),
// then the combined vitals-drop AND active-event condition. Returns the
// result and the next state; the state changes only when a suppressor
// self-clears or a display is stamped.
func (m *Machine) EvaluateTrigger(state State, reading Reading, events []Event, now time.Time) (TriggerResult, State) {
	day := m.DayOf(state, now)
	res := TriggerResult{Day: day, Phase: PhaseOf(day)}

	// Silence and Reflection phases are never interruptible, even when the
	// raw conditions hold.
	if res.Phase != PhaseIntervention {
		res.Reason = fmt.Sprintf("phase %s is not interruptible", res.Phase)
		return res, state
	}

	// Cooling period: a one-shot suppressor, cleared on expiry rather than
	// re-armed.
	if state.CoolingActive {
		if now.Sub(state.CoolingStart) < m.config.CoolingPeriod {
			res.Reason = "cooling period active"
			return res, state
		}
		state.CoolingActive = false
		state.CoolingStart = time.Time{}
	}

	// Proceed lock: suppress while the locked event is still active. The
	// lock clears itself once that event has ended.
	if state.LockedEventID != "" {
		if eventActive(events, state.LockedEventID) {
			res.Reason = "decision locked for event " + state.LockedEventID
			return res, state
		}
		state.LockedEventID = ""
	}

	// Undefined drop ratio suppresses rather than dividing by zero.
	if reading.Baseline <= 0 {
		res.Reason = "baseline unavailable"
		return res, state
	}

	dropRatio := reading.Current / reading.Baseline
	target := selectEvent(events, now)

	// Both conditions are required: stress alone or a high-stakes event
	// alone never interrupts.
	if dropRatio > m.config.DropThreshold {
		res.Reason = fmt.Sprintf("drop ratio %.2f above threshold %.2f", dropRatio, m.config.DropThreshold)
		return res, state
	}
	if target == nil {
		res.Reason = "no active high-stakes event"
		return res, state
	}

	state.LastBrakeDisplay = now
	state.PendingEventID = target.ID

	res.ShouldDisplay = true
	res.EventID = target.ID
	res.Reason = fmt.Sprintf("drop ratio %.2f with active event %s", dropRatio, target.ID)
	return res, state
}

// #endregion evaluate

// #region apply-decision

// ApplyDecision records a Proceed or Delay against the pending trigger.
// Proceed locks the pending event; Delay starts the cooling period and
// returns the exact re-check time. Both clear the pending trigger, so a
// repeated submission is rejected instead of double-applied. Rejections
// leave the state untouched.
func (m *Machine) ApplyDecision(state State, decision DecisionType, now time.Time) (DecisionOutcome, State, error) {
	if !decision.Valid() {
		return DecisionOutcome{}, state, ErrInvalidDecision
	}
	if state.PendingEventID == "" || state.LastBrakeDisplay.IsZero() {
		return DecisionOutcome{}, state, ErrNoPendingTrigger
	}

	out := DecisionOutcome{
		Record: DecisionRecord{
			Timestamp: now,
			Type:      decision,
			Day:       m.DayOf(state, now),
		},
	}

	switch decision {
	case DecisionProceed:
		state.LockedEventID = state.PendingEventID
		out.Status = "decision_locked"
	case DecisionDelay:
		state.CoolingActive = true
		state.CoolingStart = now
		out.Status = "cooling_period_activated"
		out.RecheckAt = now.Add(m.config.CoolingPeriod)
	}

	state.PendingEventID = ""
	state.LastBrakeDisplay = time.Time{}
	return out, state, nil
}

// #endregion apply-decision

// #region apply-reflection

// ApplyReflection records a day-7 reflection and unconditionally resets
// the cycle. The response value is informational only; Yes, No, and Skip
// all reset the same way. Submissions outside day 7 are rejected with no
// state change.
func (m *Machine) ApplyReflection(state State, response ReflectionResponse, now time.Time) (ReflectionOutcome, State, error) {
	if !response.Valid() {
		return ReflectionOutcome{}, state, ErrInvalidReflection
	}
	if PhaseOf(m.DayOf(state, now)) != PhaseReflection {
		return ReflectionOutcome{}, state, ErrOutsideReflection
	}

	out := ReflectionOutcome{
		Status:        "reflection_recorded",
		NewCycleStart: now,
		Record: ReflectionRecord{
			Timestamp:  now,
			Response:   response,
			CycleStart: state.CycleStart,
		},
	}
	return out, m.Reset(state, now), nil
}

// Reset starts a fresh cycle at now: day 1, no cooling period, no lock,
// no pending trigger.
func (m *Machine) Reset(_ State, now time.Time) State {
	return State{CycleStart: now}
}

// #endregion apply-reflection

// #region reflection-window

// ReflectionWindowOpen reports whether the reflection prompt should be
// shown: day 7, local time within [ReflectionHour:00:00, +ReflectionWindow).
func (m *Machine) ReflectionWindowOpen(state State, now time.Time, loc *time.Location) bool {
	if PhaseOf(m.DayOf(state, now)) != PhaseReflection {
		return false
	}
	local := now.In(loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), m.config.ReflectionHour, 0, 0, 0, loc)
	return !local.Before(open) && local.Sub(open) < m.config.ReflectionWindow
}

// #endregion reflection-window

// #region helpers

// eventActive reports whether the event with the given id is in the
// currently-active set.
func eventActive(events []Event, id string) bool {
	for _, e := range events {
		if e.ID == id {
			return true
		}
	}
	return false
}

// selectEvent picks the highest-priority active event deterministically:
// earliest start time, then lexicographically smallest id.
func selectEvent(events []Event, now time.Time) *Event {
	var best *Event
	for i := range events {
		e := &events[i]
		if e.Start.After(now) {
			continue
		}
		if !e.End.IsZero() && e.End.Before(now) {
			continue
		}
		if best == nil {
			best = e
			continue
		}
		if e.Start.Before(best.Start) || (e.Start.Equal(best.Start) && e.ID < best.ID) {
			best = e
		}
	}
	return best
}

// #endregion helpers
