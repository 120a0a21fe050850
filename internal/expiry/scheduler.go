// Package expiry runs periodic sweeps such as deleting ended events.
package expiry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/hostbot/pkg/logger"
	"github.com/capitalize-ai/hostbot/pkg/metrics"
)

// Sweeper performs one sweep cycle.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// SweeperFunc adapts a function to Sweeper.
type SweeperFunc func(ctx context.Context) error

// Sweep implements Sweeper.
func (f SweeperFunc) Sweep(ctx context.Context) error { return f(ctx) }

// Scheduler calls a Sweeper on a fixed interval. A failed or panicking cycle
// is logged and the next one still runs.
type Scheduler struct {
	name     string
	interval time.Duration
	sweeper  Sweeper
	logger   *logger.Logger
}

// New creates a scheduler.
func New(name string, interval time.Duration, sweeper Sweeper, log *logger.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	if sweeper == nil {
		return nil, fmt.Errorf("sweeper must not be nil")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		sweeper:  sweeper,
		logger:   log.With(zap.String("sweeper", name)),
	}, nil
}

// Run sweeps every interval until ctx is done. The first sweep happens one
// interval after Run is called.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			_ = s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
		metrics.RecordSweep(s.name, err)
		if err != nil {
			s.logger.Error("sweep failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
			return
		}
		s.logger.Debug("sweep finished", zap.Duration("elapsed", time.Since(start)))
	}()

	return s.sweeper.Sweep(ctx)
}
