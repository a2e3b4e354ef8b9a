package controller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// #region poller

// Poller drives the controller on a fixed cadence: a trigger-evaluation
// pass per user every Interval, and a coarser reflection-window pass every
// ReflectionInterval. Rechecks scheduled by a Delay need no timer of their
// own — the cooling-period expiry is re-derived from persisted state on
// the next pass, so a restart loses nothing.
type Poller struct {
	ctrl               *Controller
	interval           time.Duration
	reflectionInterval time.Duration
	logger             *zap.Logger

	// prompted dedupes reflection prompts to one per user per window.
	prompted map[string]string
}

// NewPoller creates a poller with the given cadences.
func NewPoller(ctrl *Controller, interval, reflectionInterval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		ctrl:               ctrl,
		interval:           interval,
		reflectionInterval: reflectionInterval,
		logger:             logger,
		prompted:           make(map[string]string),
	}
}

// Run blocks until ctx is cancelled, ticking both passes.
func (p *Poller) Run(ctx context.Context) error {
	triggers := time.NewTicker(p.interval)
	defer triggers.Stop()
	reflections := time.NewTicker(p.reflectionInterval)
	defer reflections.Stop()

	p.logger.Info("poller started",
		zap.Duration("interval", p.interval),
		zap.Duration("reflection_interval", p.reflectionInterval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return ctx.Err()
		case <-triggers.C:
			p.PollTriggers(ctx)
		case <-reflections.C:
			p.PollReflections()
		}
	}
}

// #endregion poller

// #region passes

// PollTriggers runs one trigger-evaluation pass over all users. Per-user
// failures are logged and skipped; one bad user never stalls the rest.
func (p *Poller) PollTriggers(ctx context.Context) {
	users, err := p.ctrl.Users()
	if err != nil {
		p.logger.Error("list users failed", zap.Error(err))
		return
	}
	for _, u := range users {
		if ctx.Err() != nil {
			return
		}
		if _, err := p.ctrl.CheckTrigger(ctx, u.ID); err != nil {
			p.logger.Error("trigger check failed",
				zap.String("user", u.ID), zap.Error(err))
		}
	}
}

// PollReflections publishes a reflection prompt for every user whose local
// window is open, at most once per window.
func (p *Poller) PollReflections() {
	users, err := p.ctrl.Users()
	if err != nil {
		p.logger.Error("list users failed", zap.Error(err))
		return
	}
	for _, u := range users {
		event, due, err := p.ctrl.ReflectionPrompt(u.ID)
		if err != nil {
			p.logger.Error("reflection check failed",
				zap.String("user", u.ID), zap.Error(err))
			continue
		}
		if !due {
			continue
		}
		key := windowKey(event.CycleStart, event.Timestamp)
		if p.prompted[u.ID] == key {
			continue
		}
		p.prompted[u.ID] = key
		p.ctrl.PublishReflection(event)
		p.logger.Info("reflection prompt published", zap.String("user", u.ID))
	}
}

// windowKey identifies one reflection window: a cycle plus the local date
// the window opened.
func windowKey(cycleStart, at time.Time) string {
	return fmt.Sprintf("%d-%s", cycleStart.Unix(), at.Format("2006-01-02"))
}

// #endregion passes
