// Package controller coordinates the four public cycle operations for all
// users: trigger checks, decisions, reflections, and state reads. It owns
// per-user serialization, persistence, and prompt fan-out; all cycle logic
// lives in the pure cycle package.
package controller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/cycle"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/notify"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/sources"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/state"
)

// #region controller-struct

// Controller is the single writer for every user's cycle state. Operations
// on one user are serialized through a per-user lock; different users
// proceed in parallel.
type Controller struct {
	store     *state.Store
	machine   *cycle.Machine
	vitals    sources.VitalsSource
	events    sources.EventSource
	publisher notify.Publisher
	logger    *zap.Logger
	nowFn     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option tweaks controller construction.
type Option func(*Controller)

// WithNow overrides the clock, for deterministic tests.
func WithNow(fn func() time.Time) Option {
	return func(c *Controller) { c.nowFn = fn }
}

// WithConfig overrides the cycle configuration.
func WithConfig(cfg cycle.Config) Option {
	return func(c *Controller) { c.machine = cycle.NewMachine(cfg) }
}

// New creates a fully wired controller.
func New(store *state.Store, vitals sources.VitalsSource, events sources.EventSource, publisher notify.Publisher, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		machine:   cycle.NewMachine(cycle.DefaultConfig()),
		vitals:    vitals,
		events:    events,
		publisher: publisher,
		logger:    logger,
		nowFn:     time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// userLock returns the serialization lock for one user, creating it on
// first use.
func (c *Controller) userLock(userID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[userID] = l
	}
	return l
}

// #endregion controller-struct

// #region result-types

// TriggerStatus is the response to a trigger check.
type TriggerStatus struct {
	ShouldDisplay bool        `json:"should_display"`
	EventID       string      `json:"event_id,omitempty"`
	CurrentDay    int         `json:"current_day"`
	Phase         cycle.Phase `json:"phase"`
	Timestamp     time.Time   `json:"timestamp"`
}

// DecisionStatus is the response to a recorded decision.
type DecisionStatus struct {
	Status        string    `json:"status"`
	NextAction    string    `json:"next_action"`
	ReTriggerTime time.Time `json:"re_trigger_time,omitzero"`
}

// ReflectionStatus is the response to a recorded reflection.
type ReflectionStatus struct {
	Status        string    `json:"status"`
	NewCycleStart time.Time `json:"new_cycle_start"`
	CurrentDay    int       `json:"current_day"`
}

// StateSummary is the read-only view of a user's cycle state.
type StateSummary struct {
	UserID              string      `json:"user_id"`
	CurrentDay          int         `json:"current_day"`
	Phase               cycle.Phase `json:"phase"`
	CycleStart          time.Time   `json:"cycle_start"`
	CoolingPeriodActive bool        `json:"cooling_period_active"`
	DecisionLocked      bool        `json:"decision_locked"`
}

// #endregion result-types

// #region users

// CreateUser registers a user; their cycle starts now.
func (c *Controller) CreateUser(userID, timezone string) (state.UserRecord, error) {
	rec, err := c.store.CreateUser(userID, timezone, c.nowFn())
	if err != nil {
		return state.UserRecord{}, err
	}
	c.logger.Info("user registered", zap.String("user", userID), zap.String("tz", rec.Timezone))
	return rec, nil
}

// Users lists all registered users.
func (c *Controller) Users() ([]state.UserRecord, error) {
	return c.store.ListUsers()
}

// #endregion users

// #region check-trigger

// CheckTrigger runs one evaluation pass for a user. Source failures are
// absorbed: the trigger is suppressed, state is left unchanged, and only a
// log line records the failure. The system fails toward "no interruption",
// never toward forcing one.
func (c *Controller) CheckTrigger(ctx context.Context, userID string) (TriggerStatus, error) {
	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := c.nowFn()
	st, err := c.store.GetCycleState(userID)
	if err != nil {
		return TriggerStatus{}, err
	}

	day := c.machine.DayOf(st, now)
	status := TriggerStatus{CurrentDay: day, Phase: cycle.PhaseOf(day), Timestamp: now}

	reading, err := c.vitals.Read(ctx, userID, now)
	if err != nil {
		c.logger.Warn("vitals unavailable, trigger suppressed",
			zap.String("user", userID), zap.Error(err))
		return status, nil
	}
	events, err := c.events.ActiveHighStakes(ctx, userID, now)
	if err != nil {
		c.logger.Warn("events unavailable, trigger suppressed",
			zap.String("user", userID), zap.Error(err))
		return status, nil
	}

	res, next := c.machine.EvaluateTrigger(st, reading, events, now)
	if next != st {
		if err := c.store.SaveCycleState(userID, next, now); err != nil {
			return TriggerStatus{}, err
		}
	}

	if res.ShouldDisplay {
		status.ShouldDisplay = true
		status.EventID = res.EventID
		// Publish only on the first display for this pending event;
		// repeated polls re-stamp but do not re-prompt.
		if st.PendingEventID != res.EventID {
			c.publishBrake(notify.BrakeEvent{
				UserID:    userID,
				EventID:   res.EventID,
				Day:       res.Day,
				Timestamp: now,
			})
		}
	}

	c.logger.Debug("trigger evaluated",
		zap.String("user", userID),
		zap.Int("day", res.Day),
		zap.String("phase", string(res.Phase)),
		zap.Bool("display", res.ShouldDisplay),
		zap.String("reason", res.Reason))

	return status, nil
}

// #endregion check-trigger

// #region record-decision

// RecordDecision applies a Proceed or Delay to the pending trigger.
// Exactly one decision record is appended on success; rejections change
// nothing.
func (c *Controller) RecordDecision(userID string, decision cycle.DecisionType) (DecisionStatus, error) {
	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := c.nowFn()
	st, err := c.store.GetCycleState(userID)
	if err != nil {
		return DecisionStatus{}, err
	}

	out, next, err := c.machine.ApplyDecision(st, decision, now)
	if err != nil {
		return DecisionStatus{}, err
	}

	if err := c.store.SaveCycleState(userID, next, now); err != nil {
		return DecisionStatus{}, err
	}
	if err := c.store.AppendDecision(userID, out.Record); err != nil {
		return DecisionStatus{}, err
	}

	status := DecisionStatus{Status: out.Status}
	switch decision {
	case cycle.DecisionProceed:
		status.NextAction = "no_further_interventions"
	case cycle.DecisionDelay:
		status.NextAction = "recheck_after_cooling"
		status.ReTriggerTime = out.RecheckAt
	}

	c.logger.Info("decision recorded",
		zap.String("user", userID),
		zap.String("decision", string(decision)),
		zap.Int("day", out.Record.Day))

	return status, nil
}

// #endregion record-decision

// #region record-reflection

// RecordReflection applies a day-7 reflection and resets the cycle.
func (c *Controller) RecordReflection(userID string, response cycle.ReflectionResponse) (ReflectionStatus, error) {
	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := c.nowFn()
	st, err := c.store.GetCycleState(userID)
	if err != nil {
		return ReflectionStatus{}, err
	}

	out, next, err := c.machine.ApplyReflection(st, response, now)
	if err != nil {
		return ReflectionStatus{}, err
	}

	if err := c.store.SaveCycleState(userID, next, now); err != nil {
		return ReflectionStatus{}, err
	}
	if err := c.store.AppendReflection(userID, out.Record); err != nil {
		return ReflectionStatus{}, err
	}

	c.logger.Info("reflection recorded, cycle reset",
		zap.String("user", userID),
		zap.String("response", string(response)))

	return ReflectionStatus{
		Status:        out.Status,
		NewCycleStart: out.NewCycleStart,
		CurrentDay:    1,
	}, nil
}

// #endregion record-reflection

// #region state-read

// GetState returns the read-only state summary for a user.
func (c *Controller) GetState(userID string) (StateSummary, error) {
	st, err := c.store.GetCycleState(userID)
	if err != nil {
		return StateSummary{}, err
	}
	now := c.nowFn()
	day := c.machine.DayOf(st, now)
	return StateSummary{
		UserID:              userID,
		CurrentDay:          day,
		Phase:               cycle.PhaseOf(day),
		CycleStart:          st.CycleStart,
		CoolingPeriodActive: st.CoolingActive && now.Sub(st.CoolingStart) < c.machine.Config().CoolingPeriod,
		DecisionLocked:      st.LockedEventID != "",
	}, nil
}

// ResetCycle starts a fresh cycle for a user on explicit request.
func (c *Controller) ResetCycle(userID string) (StateSummary, error) {
	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := c.nowFn()
	st, err := c.store.GetCycleState(userID)
	if err != nil {
		return StateSummary{}, err
	}
	next := c.machine.Reset(st, now)
	if err := c.store.SaveCycleState(userID, next, now); err != nil {
		return StateSummary{}, err
	}

	c.logger.Info("cycle reset", zap.String("user", userID))
	return StateSummary{
		UserID:     userID,
		CurrentDay: 1,
		Phase:      cycle.PhaseOf(1),
		CycleStart: now,
	}, nil
}

// DecisionHistory returns the most recent decision records.
func (c *Controller) DecisionHistory(userID string, limit int) ([]cycle.DecisionRecord, error) {
	if _, err := c.store.GetUser(userID); err != nil {
		return nil, err
	}
	return c.store.ListDecisions(userID, limit)
}

// ReflectionHistory returns the most recent reflection records.
func (c *Controller) ReflectionHistory(userID string, limit int) ([]cycle.ReflectionRecord, error) {
	if _, err := c.store.GetUser(userID); err != nil {
		return nil, err
	}
	return c.store.ListReflections(userID, limit)
}

// #endregion state-read

// #region reflection-prompt

// ReflectionPrompt reports whether the user's local reflection window is
// open right now and, if so, returns the prompt payload.
func (c *Controller) ReflectionPrompt(userID string) (notify.ReflectionEvent, bool, error) {
	user, err := c.store.GetUser(userID)
	if err != nil {
		return notify.ReflectionEvent{}, false, err
	}
	st, err := c.store.GetCycleState(userID)
	if err != nil {
		return notify.ReflectionEvent{}, false, err
	}

	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now := c.nowFn()
	if !c.machine.ReflectionWindowOpen(st, now, loc) {
		return notify.ReflectionEvent{}, false, nil
	}
	return notify.ReflectionEvent{
		UserID:     userID,
		Day:        c.machine.DayOf(st, now),
		CycleStart: st.CycleStart,
		Timestamp:  now,
	}, true, nil
}

// PublishReflection fans out a reflection prompt. Best-effort.
func (c *Controller) PublishReflection(event notify.ReflectionEvent) {
	if err := c.publisher.PublishReflection(event); err != nil {
		c.logger.Warn("reflection publish failed",
			zap.String("user", event.UserID), zap.Error(err))
	}
}

func (c *Controller) publishBrake(event notify.BrakeEvent) {
	if err := c.publisher.PublishBrake(event); err != nil {
		c.logger.Warn("brake publish failed",
			zap.String("user", event.UserID), zap.Error(err))
	}
}

// #endregion reflection-prompt
