package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/cycle"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a starting
// cycle state, a machine configuration, and a timeline of steps with
// explicit timestamps. Wall clocks never enter a replay run.
type Fixture struct {
	Description     string                  `json:"description"`
	StartState      FixtureStartState       `json:"start_state"`
	Config          FixtureConfig           `json:"config"`
	Steps           []FixtureStep           `json:"steps"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureStartState is the JSON-serializable initial cycle state.
type FixtureStartState struct {
	CycleStart    time.Time `json:"cycle_start"`
	CoolingActive bool      `json:"cooling_active"`
	CoolingStart  time.Time `json:"cooling_start"`
	LockedEventID string    `json:"locked_event_id"`
}

// FixtureConfig mirrors cycle.Config with JSON tags. Zero values fall back
// to the defaults, so fixtures only state what they override.
type FixtureConfig struct {
	DropThreshold    float64 `json:"drop_threshold"`
	CoolingMinutes   int     `json:"cooling_minutes"`
	CycleDays        int     `json:"cycle_days"`
	ReflectionHour   int     `json:"reflection_hour"`
	ReflectionWindow int     `json:"reflection_window_minutes"`
}

// FixtureStep is one timeline entry. Kind selects which fields apply:
// "poll" uses Reading and Events, "decision" uses Decision, "reflection"
// uses Response.
type FixtureStep struct {
	ID       string         `json:"id"`
	At       time.Time      `json:"at"`
	Kind     string         `json:"kind"`
	Reading  FixtureReading `json:"reading"`
	Events   []FixtureEvent `json:"events,omitempty"`
	Decision string         `json:"decision,omitempty"`
	Response string         `json:"response,omitempty"`
}

// FixtureReading mirrors cycle.Reading with JSON tags.
type FixtureReading struct {
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
}

// FixtureEvent mirrors cycle.Event with JSON tags.
type FixtureEvent struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end,omitzero"`
}

// FixtureExpectedResult captures the expected action per step.
type FixtureExpectedResult struct {
	StepID string `json:"step_id"`
	Action string `json:"action"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for i, step := range f.Steps {
		switch step.Kind {
		case "poll", "decision", "reflection":
		default:
			return nil, fmt.Errorf("fixture %s: step %d has unknown kind %q", path, i, step.Kind)
		}
		if step.At.IsZero() {
			return nil, fmt.Errorf("fixture %s: step %d has no timestamp", path, i)
		}
	}
	return &f, nil
}

// ToState converts a FixtureStartState to a domain cycle.State.
func (s *FixtureStartState) ToState() cycle.State {
	return cycle.State{
		CycleStart:    s.CycleStart,
		CoolingActive: s.CoolingActive,
		CoolingStart:  s.CoolingStart,
		LockedEventID: s.LockedEventID,
	}
}

// ToConfig converts a FixtureConfig to a cycle.Config, filling unset
// fields from the defaults.
func (fc *FixtureConfig) ToConfig() cycle.Config {
	cfg := cycle.DefaultConfig()
	if fc.DropThreshold > 0 {
		cfg.DropThreshold = fc.DropThreshold
	}
	if fc.CoolingMinutes > 0 {
		cfg.CoolingPeriod = time.Duration(fc.CoolingMinutes) * time.Minute
	}
	if fc.CycleDays > 0 {
		cfg.CycleDays = fc.CycleDays
	}
	if fc.ReflectionHour > 0 {
		cfg.ReflectionHour = fc.ReflectionHour
	}
	if fc.ReflectionWindow > 0 {
		cfg.ReflectionWindow = time.Duration(fc.ReflectionWindow) * time.Minute
	}
	return cfg
}

// ToStep converts a FixtureStep to a domain Step.
func (fs *FixtureStep) ToStep() Step {
	step := Step{
		ID:   fs.ID,
		At:   fs.At,
		Kind: fs.Kind,
		Reading: cycle.Reading{
			Current:  fs.Reading.Current,
			Baseline: fs.Reading.Baseline,
		},
		Decision: cycle.DecisionType(fs.Decision),
		Response: cycle.ReflectionResponse(fs.Response),
	}
	for _, e := range fs.Events {
		step.Events = append(step.Events, cycle.Event{ID: e.ID, Start: e.Start, End: e.End})
	}
	return step
}

// #endregion fixture-loader
