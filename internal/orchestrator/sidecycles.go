// File: internal/orchestrator/sidecycles.go
// Description: Side-cycle entry points and the interval scheduler. Repair
// cycles target files implicated by the weakness watcher; pattern cycles ask
// the proposer for an established idiom. Both reuse the full gate sequence,
// never a shortened one.

package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
)

// Clock abstracts time for the scheduler so tests can drive ticks
// deterministically.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the scheduler consumes.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (rt realTicker) C() <-chan time.Time { return rt.t.C }
func (rt realTicker) Stop()               { rt.t.Stop() }

// RealClock is the wall-clock implementation used outside tests.
func RealClock() Clock { return realClock{} }

// EnqueueRepair registers a weak-spot target for the next repair cycle.
// Targets outside the configured set or already queued are dropped.
func (o *Orchestrator) EnqueueRepair(file string) {
	if !o.isTarget(file) {
		o.logger.Debug("Ignoring weak spot outside the target set.", zap.String("file", file))
		return
	}
	select {
	case o.repairQueue <- file:
		o.logger.Info("Weak spot queued for repair.", zap.String("file", file))
	default:
		o.logger.Debug("Repair queue full; dropping weak spot.", zap.String("file", file))
	}
}

func (o *Orchestrator) isTarget(file string) bool {
	for _, t := range o.cfg.TargetFiles {
		if t == file {
			return true
		}
	}
	return false
}

// RunRepairCycle runs one cycle with repair framing against the oldest queued
// weak spot. With an empty queue it is a no-op.
func (o *Orchestrator) RunRepairCycle(ctx context.Context) (*schemas.EvolutionLogEntry, error) {
	select {
	case file := <-o.repairQueue:
		return o.runCycleForFile(ctx, file, framingRepair)
	default:
		o.logger.Debug("No weak spots queued; skipping repair cycle.")
		return nil, nil
	}
}

// RunPatternCycle runs one cycle with pattern framing against the next
// rotation target.
func (o *Orchestrator) RunPatternCycle(ctx context.Context) (*schemas.EvolutionLogEntry, error) {
	return o.runCycleForFile(ctx, o.nextTarget(), framingPattern)
}

// Scheduler drives the orchestrator on fixed cadences until its context is
// cancelled. Cycles run sequentially on the scheduler goroutine; the per-file
// locks would serialize them anyway, and sequencing keeps the journal ordered.
type Scheduler struct {
	logger *zap.Logger
	orch   *Orchestrator
	clock  Clock

	cycleInterval   time.Duration
	repairInterval  time.Duration
	patternInterval time.Duration
}

// NewScheduler wires a scheduler. Intervals of zero disable the corresponding
// cadence.
func NewScheduler(logger *zap.Logger, orch *Orchestrator, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{
		logger:          logger.Named("scheduler"),
		orch:            orch,
		clock:           clock,
		cycleInterval:   orch.cfg.CycleInterval,
		repairInterval:  orch.cfg.RepairInterval,
		patternInterval: orch.cfg.PatternInterval,
	}
}

// Run blocks until ctx is cancelled, dispatching cycles as their tickers
// fire. It returns ctx.Err() on shutdown and any unrecoverable cycle error
// immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	var disabled <-chan time.Time = make(chan time.Time) // never fires

	mainC, repairC, patternC := disabled, disabled, disabled
	if s.cycleInterval > 0 {
		t := s.clock.NewTicker(s.cycleInterval)
		defer t.Stop()
		mainC = t.C()
	}
	if s.repairInterval > 0 {
		t := s.clock.NewTicker(s.repairInterval)
		defer t.Stop()
		repairC = t.C()
	}
	if s.patternInterval > 0 {
		t := s.clock.NewTicker(s.patternInterval)
		defer t.Stop()
		patternC = t.C()
	}

	s.logger.Info("Scheduler started.",
		zap.Duration("cycle_interval", s.cycleInterval),
		zap.Duration("repair_interval", s.repairInterval),
		zap.Duration("pattern_interval", s.patternInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopping.")
			return ctx.Err()
		case <-mainC:
			if err := s.dispatch(ctx, "main", s.orch.RunOneCycle); err != nil {
				return err
			}
		case <-repairC:
			if err := s.dispatch(ctx, "repair", s.orch.RunRepairCycle); err != nil {
				return err
			}
		case <-patternC:
			if err := s.dispatch(ctx, "pattern", s.orch.RunPatternCycle); err != nil {
				return err
			}
		}
	}
}

// dispatch runs one cycle function. Ordinary rejections are already journaled
// by the orchestrator, and transient failures are logged here and absorbed so
// the loop proceeds to its next scheduled cycle; only a failed backup
// restoration propagates and stops the scheduler.
func (s *Scheduler) dispatch(ctx context.Context, kind string, run func(context.Context) (*schemas.EvolutionLogEntry, error)) error {
	entry, err := run(ctx)
	if err != nil {
		var rf *restoreFailure
		if errors.As(err, &rf) {
			s.logger.Error("Cycle failed unrecoverably.", zap.String("kind", kind), zap.Error(err))
			return err
		}
		s.logger.Warn("Cycle failed; continuing on schedule.", zap.String("kind", kind), zap.Error(err))
		return nil
	}
	if entry != nil {
		s.logger.Debug("Cycle finished.", zap.String("kind", kind), zap.String("outcome", string(entry.Outcome)))
	}
	return nil
}
