// Package sched triggers pipeline stages on fixed intervals and enforces
// single-runner-at-a-time semantics across process instances with
// lease-based locks in the shared cache.
package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/dera1992/new-aggregator-app/internal/monitor"
	"github.com/dera1992/new-aggregator-app/internal/news"
)

// Stage is one registered pipeline stage.
type Stage struct {
	ID string
	// Interval is the fixed trigger period.
	Interval time.Duration
	// Lease bounds the lock lifetime. It must outlast the stage's
	// worst-case runtime and stay shorter than Interval; neither bound is
	// enforced at runtime.
	Lease time.Duration
	Run   func(ctx context.Context) error
}

// Coordinator owns the cron triggers, the per-stage lease locks, and the
// reporting of run outcomes to monitoring.
type Coordinator struct {
	cache    news.Cache // nil runs every trigger unconditionally
	monitor  *monitor.Monitor
	logger   *zap.Logger
	cron     *cron.Cron
	slots    map[string]chan struct{}
	newToken func() string
}

// New constructs a Coordinator. A nil cache puts it in degraded
// single-process mode: every trigger runs, with no cross-process exclusion.
func New(cache news.Cache, mon *monitor.Monitor, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cache:    cache,
		monitor:  mon,
		logger:   logger,
		cron:     cron.New(),
		slots:    make(map[string]chan struct{}),
		newToken: func() string { return uuid.NewString() },
	}
}

// Register adds a stage to the trigger schedule.
func (c *Coordinator) Register(stage Stage) error {
	if stage.ID == "" || stage.Run == nil {
		return fmt.Errorf("stage id and run func are required")
	}
	if _, ok := c.slots[stage.ID]; ok {
		return fmt.Errorf("stage %s already registered", stage.ID)
	}

	slot := make(chan struct{}, 1)
	slot <- struct{}{}
	c.slots[stage.ID] = slot

	_, err := c.cron.AddFunc(fmt.Sprintf("@every %s", stage.Interval), func() {
		c.trigger(context.Background(), stage)
	})
	if err != nil {
		return fmt.Errorf("schedule stage %s: %w", stage.ID, err)
	}
	c.logger.Info("stage registered",
		zap.String("stage", stage.ID),
		zap.Duration("interval", stage.Interval),
		zap.Duration("lease", stage.Lease))
	return nil
}

// Start begins firing triggers.
func (c *Coordinator) Start() {
	c.cron.Start()
}

// Stop halts triggers and waits for in-flight stage bodies, bounded by ctx.
func (c *Coordinator) Stop(ctx context.Context) {
	done := c.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("shutdown deadline reached with stages still running")
	}
}

func lockKey(stageID string) string {
	return "locks:" + stageID
}

// trigger drives one stage trigger through its state machine:
// Idle -> LockAttempt -> {Skipped | Running -> {Succeeded | Failed}},
// with Missed when no executor slot is available.
func (c *Coordinator) trigger(ctx context.Context, stage Stage) {
	slot := c.slots[stage.ID]
	select {
	case <-slot:
	default:
		// The previous run of this stage still occupies the executor.
		c.monitor.RecordMissed(ctx, stage.ID)
		c.monitor.Alert(ctx, stage.ID, "Job execution missed.", "")
		return
	}
	defer func() { slot <- struct{}{} }()

	if c.cache != nil {
		token := c.newToken()
		acquired, err := c.cache.SetNX(ctx, lockKey(stage.ID), token, stage.Lease)
		if err != nil {
			// Without the lock verdict we cannot guarantee exclusion, so
			// the run is withheld and the fault surfaced.
			c.monitor.RecordFailure(ctx, stage.ID, fmt.Sprintf("lock backend: %v", err))
			c.monitor.Alert(ctx, stage.ID, "Lock backend unavailable.", err.Error())
			return
		}
		if !acquired {
			c.logger.Debug("trigger skipped: lock held elsewhere", zap.String("stage", stage.ID))
			c.monitor.RecordSkipped(stage.ID)
			return
		}
		defer c.release(ctx, stage.ID, token)
	}

	c.monitor.RecordRun(ctx, stage.ID)
	start := time.Now()
	err := c.runBody(ctx, stage)
	monitor.ObserveDuration(stage.ID, time.Since(start))

	if err != nil {
		c.logger.Error("stage failed", zap.String("stage", stage.ID), zap.Error(err))
		c.monitor.RecordFailure(ctx, stage.ID, err.Error())
		c.monitor.Alert(ctx, stage.ID, err.Error(), "")
		return
	}
	c.monitor.RecordSuccess(ctx, stage.ID)
}

// runBody executes the stage body, converting a panic into an error so a
// single bad run cannot take the scheduler down.
func (c *Coordinator) runBody(ctx context.Context, stage Stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", stage.ID, r)
		}
	}()
	return stage.Run(ctx)
}

// release deletes the stage lock, but only while it still holds this run's
// token. If the lease already expired and a later run re-acquired the key,
// the newer lock is left alone.
func (c *Coordinator) release(ctx context.Context, stageID, token string) {
	key := lockKey(stageID)
	current, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("lock release read failed", zap.String("stage", stageID), zap.Error(err))
		return
	}
	if !ok || current != token {
		return
	}
	if err := c.cache.Del(ctx, key); err != nil {
		c.logger.Warn("lock release failed", zap.String("stage", stageID), zap.Error(err))
	}
}
