package sources

import (
	"context"
	"time"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/cycle"
)

// StaticVitals returns a fixed reading, or Err when set. Test double.
type StaticVitals struct {
	Reading cycle.Reading
	Err     error
	Calls   int
}

// Read returns the configured reading or error.
func (f *StaticVitals) Read(_ context.Context, _ string, _ time.Time) (cycle.Reading, error) {
	f.Calls++
	if f.Err != nil {
		return cycle.Reading{}, f.Err
	}
	return f.Reading, nil
}

// StaticEvents returns a fixed event set, or Err when set. Test double.
type StaticEvents struct {
	Events []cycle.Event
	Err    error
	Calls  int
}

// ActiveHighStakes returns the configured events or error.
func (f *StaticEvents) ActiveHighStakes(_ context.Context, _ string, _ time.Time) ([]cycle.Event, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Events, nil
}
