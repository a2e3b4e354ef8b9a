package cycle

import (
	"errors"
	"time"
)

// #region phase
// Phase is the behavioral mode implied by the current cycle day.
type Phase string

const (
	PhaseSilence      Phase = "silence"
	PhaseIntervention Phase = "intervention"
	PhaseReflection   Phase = "reflection"
)

// #endregion phase

// #region decision-type
// DecisionType enumerates the two brake-screen responses.
type DecisionType string

const (
	DecisionProceed DecisionType = "Proceed"
	DecisionDelay   DecisionType = "Delay"
)

// Valid reports whether d is one of the two recognized decision types.
func (d DecisionType) Valid() bool {
	return d == DecisionProceed || d == DecisionDelay
}

// #endregion decision-type

// #region reflection-response
// ReflectionResponse enumerates the day-7 reflection answers.
type ReflectionResponse string

const (
	ReflectionYes  ReflectionResponse = "Yes"
	ReflectionNo   ReflectionResponse = "No"
	ReflectionSkip ReflectionResponse = "Skip"
)

// Valid reports whether r is one of the three recognized responses.
func (r ReflectionResponse) Valid() bool {
	return r == ReflectionYes || r == ReflectionNo || r == ReflectionSkip
}

// #endregion reflection-response

// #region state
// State is the per-user cycle state. It is a value type: every operation
// takes the current state and returns the next one, so callers decide when
// a mutation is committed.
type State struct {
	CycleStart       time.Time // day 1 of the current 7-day cycle
	CoolingActive    bool      // true for 20 minutes after a Delay
	CoolingStart     time.Time // when the cooling period began
	LockedEventID    string    // event locked by a Proceed; "" = no lock
	PendingEventID   string    // event behind the most recent brake display
	LastBrakeDisplay time.Time // stamp of the most recent trigger display
}

// #endregion state

// #region inputs
// Reading is a vitals sample with its rolling baseline, same units (ms).
type Reading struct {
	Current  float64
	Baseline float64
}

// Event is a currently-active high-stakes calendar entry. Titles never
// reach this package; only the id and the active window do.
type Event struct {
	ID    string
	Start time.Time
	End   time.Time
}

// #endregion inputs

// #region results
// TriggerResult is the output of one trigger evaluation pass.
type TriggerResult struct {
	ShouldDisplay bool
	EventID       string // set when ShouldDisplay is true
	Day           int
	Phase         Phase
	Reason        string // why display was shown or suppressed (for logging)
}

// DecisionOutcome describes the effect of an applied decision.
type DecisionOutcome struct {
	Status    string    // "decision_locked" | "cooling_period_activated"
	RecheckAt time.Time // next evaluation hint after a Delay; zero otherwise
	Record    DecisionRecord
}

// ReflectionOutcome describes the effect of an applied reflection.
type ReflectionOutcome struct {
	Status        string // "reflection_recorded"
	NewCycleStart time.Time
	Record        ReflectionRecord
}

// #endregion results

// #region records
// DecisionRecord is the minimal append-only decision log entry.
// No event content, no physiological values.
type DecisionRecord struct {
	Timestamp time.Time
	Type      DecisionType
	Day       int
}

// ReflectionRecord is the append-only reflection log entry. CycleStart
// identifies the cycle the reflection closes out.
type ReflectionRecord struct {
	Timestamp  time.Time
	Response   ReflectionResponse
	CycleStart time.Time
}

// #endregion records

// #region config
// Config holds the thresholds and windows for cycle evaluation.
type Config struct {
	DropThreshold    float64       // trigger when current/baseline <= this
	CoolingPeriod    time.Duration // suppression window after a Delay
	CycleDays        int           // length of one cycle
	ReflectionHour   int           // local hour the reflection window opens
	ReflectionWindow time.Duration // how long the reflection window stays open
}

// DefaultConfig returns the v0.1 constants.
func DefaultConfig() Config {
	return Config{
		DropThreshold:    0.8,
		CoolingPeriod:    20 * time.Minute,
		CycleDays:        7,
		ReflectionHour:   9,
		ReflectionWindow: 5 * time.Minute,
	}
}

// #endregion config

// #region errors
var (
	// ErrInvalidDecision rejects decision types outside {Proceed, Delay}.
	ErrInvalidDecision = errors.New("invalid decision type")

	// ErrNoPendingTrigger rejects a decision when no brake display is pending.
	ErrNoPendingTrigger = errors.New("no pending trigger")

	// ErrInvalidReflection rejects responses outside {Yes, No, Skip}.
	ErrInvalidReflection = errors.New("invalid reflection response")

	// ErrOutsideReflection rejects reflections submitted outside day 7.
	ErrOutsideReflection = errors.New("reflection only valid on day 7")
)

// #endregion errors
