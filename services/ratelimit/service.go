package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Result is the outcome of a single admission check
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter enforces a fixed per-minute request budget for each caller key.
// Counters live in memory only; a restart clears them, which is acceptable
// for an abuse brake in front of the proxy.
type Limiter struct {
	limit  int
	logger *zap.Logger

	mu      sync.Mutex
	windows map[string]*window

	// now is swappable in tests
	now func() time.Time
}

type window struct {
	start time.Time
	count int
}

// NewLimiter creates a limiter that admits perMinute requests per key
func NewLimiter(perMinute int, logger *zap.Logger) *Limiter {
	return &Limiter{
		limit:   perMinute,
		logger:  logger,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Check admits or rejects one request for the given key, counting it when
// admitted. Windows are fixed and aligned on the wall-clock minute, so every
// key resets at the same instant regardless of when it first called.
func (l *Limiter) Check(key string) Result {
	now := l.now()
	windowStart := now.Truncate(time.Minute)
	resetAt := windowStart.Add(time.Minute)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.start.Before(windowStart) {
		w = &window{start: windowStart}
		l.windows[key] = w
	}

	if w.count >= l.limit {
		return Result{
			Allowed:   false,
			Limit:     l.limit,
			Remaining: 0,
			ResetAt:   resetAt,
		}
	}

	w.count++
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - w.count,
		ResetAt:   resetAt,
	}
}

// Sweep removes windows that ended before the current minute and reports how
// many were dropped. It bounds memory when the caller population churns.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Truncate(time.Minute)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if w.start.Before(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// StartSweeper sweeps expired windows on the given interval until ctx is
// cancelled. It blocks, so run it in its own goroutine.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.Info("started rate limit sweeper",
		zap.Duration("interval", interval),
		zap.Int("requests_per_minute", l.limit))

	for {
		select {
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.logger.Debug("swept expired rate limit windows",
					zap.Int("removed", removed))
			}
		case <-ctx.Done():
			l.logger.Info("rate limit sweeper stopped")
			return
		}
	}
}
