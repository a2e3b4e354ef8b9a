package replay

import (
	"time"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/cycle"
)

// #region types

// Step is one timeline entry to replay: a poll, a decision submission, or
// a reflection submission, all at an explicit timestamp.
type Step struct {
	ID       string
	At       time.Time
	Kind     string
	Reading  cycle.Reading
	Events   []cycle.Event
	Decision cycle.DecisionType
	Response cycle.ReflectionResponse
}

// Result captures the outcome of replaying one step.
type Result struct {
	StepID string
	At     time.Time
	Day    int
	Phase  cycle.Phase

	// Action is one of "display", "suppressed", "decision_locked",
	// "cooling_period_activated", "reflection_recorded", "rejected".
	Action string
	Reason string
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalSteps     int
	Displays       int
	Suppressions   int
	ProceedLocks   int
	CoolingPeriods int
	Reflections    int
	Rejections     int
	FinalState     cycle.State
}

// #endregion types

// #region replay

// Replay drives the timeline through the machine step by step, entirely
// in-memory. Rejected steps carry the rejection reason and leave the state
// unchanged, same as the controller would.
func Replay(startState cycle.State, steps []Step, config cycle.Config) []Result {
	machine := cycle.NewMachine(config)
	current := startState
	results := make([]Result, 0, len(steps))

	for _, step := range steps {
		res := Result{
			StepID: step.ID,
			At:     step.At,
			Day:    machine.DayOf(current, step.At),
		}
		res.Phase = cycle.PhaseOf(res.Day)

		switch step.Kind {
		case "poll":
			trigger, next := machine.EvaluateTrigger(current, step.Reading, step.Events, step.At)
			current = next
			if trigger.ShouldDisplay {
				res.Action = "display"
			} else {
				res.Action = "suppressed"
			}
			res.Reason = trigger.Reason

		case "decision":
			out, next, err := machine.ApplyDecision(current, step.Decision, step.At)
			if err != nil {
				res.Action = "rejected"
				res.Reason = err.Error()
				break
			}
			current = next
			res.Action = out.Status

		case "reflection":
			out, next, err := machine.ApplyReflection(current, step.Response, step.At)
			if err != nil {
				res.Action = "rejected"
				res.Reason = err.Error()
				break
			}
			current = next
			res.Action = out.Status
		}

		results = append(results, res)
	}

	return results
}

// FinalState re-runs the timeline and returns the state after the last
// step. Split from Replay so callers that only want results pay nothing.
func FinalState(startState cycle.State, steps []Step, config cycle.Config) cycle.State {
	machine := cycle.NewMachine(config)
	current := startState
	for _, step := range steps {
		switch step.Kind {
		case "poll":
			_, current = machine.EvaluateTrigger(current, step.Reading, step.Events, step.At)
		case "decision":
			if _, next, err := machine.ApplyDecision(current, step.Decision, step.At); err == nil {
				current = next
			}
		case "reflection":
			if _, next, err := machine.ApplyReflection(current, step.Response, step.At); err == nil {
				current = next
			}
		}
	}
	return current
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, finalState cycle.State) Summary {
	s := Summary{
		TotalSteps: len(results),
		FinalState: finalState,
	}
	for _, r := range results {
		switch r.Action {
		case "display":
			s.Displays++
		case "suppressed":
			s.Suppressions++
		case "decision_locked":
			s.ProceedLocks++
		case "cooling_period_activated":
			s.CoolingPeriods++
		case "reflection_recorded":
			s.Reflections++
		case "rejected":
			s.Rejections++
		}
	}
	return s
}

// #endregion replay
