// Package scheduler runs periodic ingestion sweeps over all active sources.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/huanews/newsingest/internal/ingest"
)

// Trigger is the slice of the orchestrator the scheduler drives.
type Trigger interface {
	RunAll(ctx context.Context) ([]ingest.RunSummary, error)
}

// Scheduler sweeps all active sources at a fixed interval. Per-source
// failures are already swallowed inside RunAll, so one bad feed never
// blocks the others.
type Scheduler struct {
	trigger  Trigger
	interval time.Duration
	logger   *zap.Logger
	done     chan struct{}
}

// New builds a scheduler. Interval must be positive.
func New(trigger Trigger, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		trigger:  trigger,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine. The first sweep runs
// one full interval after Start; manual triggers cover the gap.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-ctx.Done():
				s.logger.Info("scheduler stopped")
				return
			}
		}
	}()
}

// Wait blocks until the sweep loop has exited.
func (s *Scheduler) Wait() {
	<-s.done
}

func (s *Scheduler) sweep(ctx context.Context) {
	start := time.Now()
	summaries, err := s.trigger.RunAll(ctx)
	if err != nil {
		s.logger.Warn("scheduled sweep aborted", zap.Error(err))
		return
	}
	var created, failed int
	for _, summary := range summaries {
		created += summary.Created
		if summary.Status == ingest.RunFailed {
			failed++
		}
	}
	s.logger.Info("scheduled sweep complete",
		zap.Int("sources", len(summaries)),
		zap.Int("created", created),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)))
}
