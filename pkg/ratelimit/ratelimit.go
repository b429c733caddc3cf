package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Class identifies an independently paced group of outbound calls.
type Class string

const (
	// ClassSearch paces text-search API calls.
	ClassSearch Class = "search"
	// ClassDetail paces per-place detail API calls.
	ClassDetail Class = "detail"
)

// Default minimum spacing between consecutive calls of the same class.
const (
	DefaultSearchInterval = 1200 * time.Millisecond
	DefaultDetailInterval = 800 * time.Millisecond
)

// milestoneEvery controls how often the running call total is logged.
const milestoneEvery = 10

// Limiter enforces a minimum interval between consecutive calls of the same
// class. Classes are paced independently. It is safe for concurrent use: a
// caller reserves the next slot under the lock and sleeps outside it, so
// spacing holds even when multiple goroutines share a class.
type Limiter struct {
	logger *slog.Logger

	mu        sync.Mutex
	intervals map[Class]time.Duration
	next      map[Class]time.Time
	calls     int64
}

// NewLimiter creates a limiter with the given per-class intervals. Classes
// absent from the map are never delayed. A nil logger falls back to
// slog.Default().
func NewLimiter(intervals map[Class]time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	copied := make(map[Class]time.Duration, len(intervals))
	for c, d := range intervals {
		if d > 0 {
			copied[c] = d
		}
	}
	return &Limiter{
		logger:    logger,
		intervals: copied,
		next:      make(map[Class]time.Time),
	}
}

// DefaultIntervals returns the standard spacing for the search and detail
// API classes.
func DefaultIntervals() map[Class]time.Duration {
	return map[Class]time.Duration{
		ClassSearch: DefaultSearchInterval,
		ClassDetail: DefaultDetailInterval,
	}
}

// Wait blocks until the class's minimum interval has elapsed since the
// previous call of the same class, or until the context is canceled. The
// wait is always bounded by the class interval.
func (l *Limiter) Wait(ctx context.Context, class Class) error {
	l.mu.Lock()

	now := time.Now()
	at := now
	if t, ok := l.next[class]; ok && t.After(now) {
		at = t
	}
	if interval, ok := l.intervals[class]; ok {
		l.next[class] = at.Add(interval)
	}

	l.calls++
	if l.calls%milestoneEvery == 0 {
		l.logger.Info("api call milestone", "calls", l.calls)
	}

	l.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Calls returns the total number of calls admitted so far across all classes.
func (l *Limiter) Calls() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Sleep pauses for d or until the context is canceled. It is used for fixed
// politeness delays that are not tied to a limiter class.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
