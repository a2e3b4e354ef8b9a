package sources

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/cycle"
)

// #region sim-config

// SimConfig tunes the simulated adapters. Values are chosen so a demo run
// crosses the trigger threshold during the scheduled meeting block and
// stays above it otherwise.
type SimConfig struct {
	BaselineMs    float64       // resting HRV baseline in milliseconds
	DipDepth      float64       // fractional drop at the bottom of a stress dip
	MeetingHour   int           // local hour the daily high-stakes block starts
	MeetingLength time.Duration // how long the block lasts
}

// DefaultSimConfig returns the demo defaults: a 50ms baseline dipping 30%
// during a one-hour 14:00 meeting block.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		BaselineMs:    50,
		DipDepth:      0.3,
		MeetingHour:   14,
		MeetingLength: time.Hour,
	}
}

// #endregion sim-config

// #region sim-vitals

// SimVitals is a deterministic vitals source: a slow sinusoid around the
// baseline, with a pronounced dip during the simulated meeting block. The
// same (userID, now) always produces the same reading, which keeps demo
// runs and replay fixtures reproducible.
type SimVitals struct {
	config SimConfig
}

// NewSimVitals creates a simulated vitals source.
func NewSimVitals(config SimConfig) *SimVitals {
	return &SimVitals{config: config}
}

// Read returns the simulated reading for the given instant.
func (s *SimVitals) Read(_ context.Context, userID string, now time.Time) (cycle.Reading, error) {
	base := s.baseline(userID, now)

	// ±4% daily sinusoid.
	minuteOfDay := float64(now.Hour()*60 + now.Minute())
	wave := math.Sin(minuteOfDay/1440*2*math.Pi) * 0.04 * base

	current := base + wave
	if s.inMeetingBlock(now) {
		current = base * (1 - s.config.DipDepth)
	}

	return cycle.Reading{Current: current, Baseline: base}, nil
}

// baseline is the mean over a synthetic seven-morning sample window, the
// same rolling-mean shape a real wearable adapter would feed in.
func (s *SimVitals) baseline(userID string, now time.Time) float64 {
	// Per-user offset so users do not move in lockstep.
	offset := float64(userSeed(userID)%7) * 0.6

	window := make([]Sample, 0, 7)
	for i := 1; i <= 7; i++ {
		day := now.AddDate(0, 0, -i)
		wobble := math.Sin(float64(day.YearDay())) * 0.5
		window = append(window, Sample{
			Timestamp: time.Date(day.Year(), day.Month(), day.Day(), 7, 0, 0, 0, day.Location()),
			Value:     s.config.BaselineMs + offset + wobble,
		})
	}
	return BaselineMean(window)
}

func (s *SimVitals) inMeetingBlock(now time.Time) bool {
	start := time.Date(now.Year(), now.Month(), now.Day(), s.config.MeetingHour, 0, 0, 0, now.Location())
	return !now.Before(start) && now.Before(start.Add(s.config.MeetingLength))
}

// #endregion sim-vitals

// #region sim-events

// SimEvents is a deterministic event source: one high-stakes block per day
// at the configured hour, on weekdays only.
type SimEvents struct {
	config SimConfig
}

// NewSimEvents creates a simulated event source.
func NewSimEvents(config SimConfig) *SimEvents {
	return &SimEvents{config: config}
}

// ActiveHighStakes returns the simulated calendar for the day pushed
// through the same classifier a real calendar adapter uses: the daily
// review block passes, the mundane entries do not.
func (s *SimEvents) ActiveHighStakes(_ context.Context, userID string, now time.Time) ([]cycle.Event, error) {
	wd := now.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return nil, nil
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), s.config.MeetingHour, 0, 0, 0, now.Location())
	day := start.Format("2006-01-02")
	raw := []RawEvent{
		{
			ID:    fmt.Sprintf("sim-%s-%s", userID, day),
			Title: "Quarterly review",
			Start: start,
			End:   start.Add(s.config.MeetingLength),
		},
		{
			ID:    fmt.Sprintf("sim-sync-%s-%s", userID, day),
			Title: "Team sync",
			Start: start.Add(-2 * time.Hour),
			End:   start.Add(-90 * time.Minute),
		},
	}
	return FilterHighStakes(raw, now), nil
}

// #endregion sim-events

// #region helpers

func userSeed(userID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return h.Sum32()
}

// #endregion helpers
