package sources

import (
	"math"
	"strings"
	"time"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/cycle"
)

// #region classifier

// triggerKeywords mark a calendar title as high-stakes when present
// (case-insensitive).
var triggerKeywords = []string{"board", "negotiation", "review", "high-stakes"}

// IsHighStakes reports whether a calendar title warrants elevated caution:
// it contains one of the trigger keywords, or carries the explicit "!"
// prefix users add to opt an event in manually.
func IsHighStakes(title string) bool {
	if strings.HasPrefix(title, "!") {
		return true
	}
	lower := strings.ToLower(title)
	for _, kw := range triggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// FilterHighStakes reduces raw calendar entries to the currently-active
// high-stakes set, dropping titles in the process.
func FilterHighStakes(events []RawEvent, now time.Time) []cycle.Event {
	var out []cycle.Event
	for _, e := range events {
		if !IsHighStakes(e.Title) {
			continue
		}
		if e.Start.After(now) || e.End.Before(now) {
			continue
		}
		out = append(out, cycle.Event{ID: e.ID, Start: e.Start, End: e.End})
	}
	return out
}

// #endregion classifier

// #region baseline

// BaselineMean computes the rolling baseline mean over a sample window.
// Returns 0 for an empty window.
func BaselineMean(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	return sum / float64(len(samples))
}

// BaselineStdDev computes the population standard deviation over a sample
// window. Returns 0 for an empty window.
func BaselineStdDev(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	mean := BaselineMean(samples)
	var variance float64
	for _, s := range samples {
		d := s.Value - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	return math.Sqrt(variance)
}

// #endregion baseline
