package service

import (
	"context"
	"sync"
	"time"

	"github.com/yoozak/yoozak-backend/internal/catalog/events"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

// PriceRecomputer is implemented by CatalogService
type PriceRecomputer interface {
	RecomputeAll(ctx context.Context) ([]events.PriceChange, error)
	NextPriceBoundary(ctx context.Context) (time.Time, error)
}

// PriceScheduler recomputes promoted prices so that promotions starting or
// ending between catalog mutations take effect. It wakes at the next
// promotion boundary, or after interval when that comes first.
type PriceScheduler struct {
	recomputer PriceRecomputer
	interval   time.Duration
	logger     *logger.Logger
	cancel     context.CancelFunc
	done       chan struct{}
	mu         sync.Mutex
}

// NewPriceScheduler creates a new price scheduler
func NewPriceScheduler(recomputer PriceRecomputer, interval time.Duration, log *logger.Logger) *PriceScheduler {
	return &PriceScheduler{
		recomputer: recomputer,
		interval:   interval,
		logger:     log,
	}
}

// Start starts the scheduler in a background goroutine.
// A first pass runs immediately.
func (s *PriceScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("price scheduler started")

		timer := time.NewTimer(s.runCycle(ctx))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("price scheduler stopped")
				return
			case <-timer.C:
				timer.Reset(s.runCycle(ctx))
			}
		}
	}()
}

// Stop stops the scheduler and waits for the running cycle to finish
func (s *PriceScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// runCycle recomputes prices and returns how long to sleep before the next cycle
func (s *PriceScheduler) runCycle(ctx context.Context) time.Duration {
	start := time.Now()

	changes, err := s.recomputer.RecomputeAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("price recompute cycle failed")
		}
		return s.interval
	}

	if len(changes) > 0 {
		s.logger.Info().
			Int("changed", len(changes)).
			Dur("duration", time.Since(start)).
			Msg("price recompute cycle completed")
	}

	next, err := s.recomputer.NextPriceBoundary(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("failed to look up next promotion boundary")
		}
		return s.interval
	}
	return s.wait(next, time.Now())
}

// wait picks the sleep until the boundary when it falls before the next
// regular cycle.
func (s *PriceScheduler) wait(boundary, now time.Time) time.Duration {
	if boundary.IsZero() {
		return s.interval
	}
	d := boundary.Sub(now)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	if d > s.interval {
		return s.interval
	}
	return d
}
