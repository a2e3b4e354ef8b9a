// Package sources defines the two collaborator contracts the cycle
// controller consumes — vitals readings and active high-stakes calendar
// events — plus deterministic simulated adapters for demo use and static
// fakes for tests. Adapters may fail independently; the controller treats
// any failure as "no data" and never lets it force an interruption.
package sources

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/cycle"
)

// ErrUnavailable indicates the upstream source could not be read.
// Callers suppress the trigger and leave state unchanged.
var ErrUnavailable = errors.New("source unavailable")

// VitalsSource yields the current vitals reading and its rolling baseline
// for a user.
type VitalsSource interface {
	Read(ctx context.Context, userID string, now time.Time) (cycle.Reading, error)
}

// EventSource yields the set of currently-active high-stakes events for a
// user. An empty slice is a valid result.
type EventSource interface {
	ActiveHighStakes(ctx context.Context, userID string, now time.Time) ([]cycle.Event, error)
}

// Sample is a single timestamped vitals measurement, used to build
// rolling baselines.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// RawEvent is a calendar entry before high-stakes filtering. Titles stay
// inside this package; only ids and windows cross into the core.
type RawEvent struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
}
