package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yoozak/yoozak-backend/internal/catalog/events"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

type countingRecomputer struct {
	calls    atomic.Int32
	err      error
	boundary time.Time
}

func (c *countingRecomputer) NextPriceBoundary(ctx context.Context) (time.Time, error) {
	return c.boundary, nil
}

func (c *countingRecomputer) RecomputeAll(ctx context.Context) ([]events.PriceChange, error) {
	c.calls.Add(1)
	return []events.PriceChange{{ArticleID: "a1"}}, c.err
}

func TestPriceScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	rec := &countingRecomputer{}
	s := NewPriceScheduler(rec, 10*time.Millisecond, logger.Nop())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return rec.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := rec.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, rec.calls.Load(), "no cycles after Stop")
}

func TestPriceScheduler_SurvivesErrors(t *testing.T) {
	rec := &countingRecomputer{err: errors.New("db down")}
	s := NewPriceScheduler(rec, 5*time.Millisecond, logger.Nop())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return rec.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestPriceScheduler_WakesAtPromotionBoundary(t *testing.T) {
	rec := &countingRecomputer{boundary: time.Now().Add(20 * time.Millisecond)}
	s := NewPriceScheduler(rec, time.Hour, logger.Nop())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return rec.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestPriceScheduler_Wait(t *testing.T) {
	s := NewPriceScheduler(&countingRecomputer{}, time.Minute, logger.Nop())
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Minute, s.wait(time.Time{}, now))
	assert.Equal(t, 10*time.Second, s.wait(now.Add(10*time.Second), now))
	assert.Equal(t, time.Minute, s.wait(now.Add(time.Hour), now))
	assert.Equal(t, time.Millisecond, s.wait(now.Add(-time.Second), now))
}

func TestPriceScheduler_StopWithoutStart(t *testing.T) {
	s := NewPriceScheduler(&countingRecomputer{}, time.Minute, logger.Nop())
	assert.NotPanics(t, s.Stop)
}

func TestUniqueSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, uniqueSorted([]string{"c", "a", "", "b", "a"}))
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []string{"a"}, difference([]string{"a", "b"}, []string{"b", "c"}))
	assert.Nil(t, difference([]string{"b"}, []string{"b"}))
}
