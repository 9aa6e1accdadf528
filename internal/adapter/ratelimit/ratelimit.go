// Package ratelimit implements port.RateLimiter over a shared Redis counter, with
// an in-process fallback for single-instance deployments.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WindowCounter is satisfied by storage.RedisAdapter.
type WindowCounter interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// FixedWindow allows limit hits per key per window, counted in a shared store.
type FixedWindow struct {
	counter WindowCounter
	limit   int64
	window  time.Duration
}

func NewFixedWindow(counter WindowCounter, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{counter: counter, limit: int64(limit), window: window}
}

func (f *FixedWindow) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	count, ttl, err := f.counter.IncrementWindow(ctx, key, f.window)
	if err != nil {
		return false, 0, err
	}
	return count <= f.limit, ttl, nil
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local is a per-process token bucket per key. State is lost on restart.
type Local struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	every   time.Duration
	burst   int
	idleTTL time.Duration
}

func NewLocal(limit int, window time.Duration) *Local {
	if limit < 1 {
		limit = 1
	}
	return &Local{
		entries: make(map[string]*localEntry),
		every:   window / time.Duration(limit),
		burst:   limit,
		idleTTL: 2 * window,
	}
}

func (l *Local) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now

	return e.limiter.AllowN(now, 1), l.every, nil
}

// Sweep drops limiters idle for longer than twice the window.
func (l *Local) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.idleTTL)
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *Local) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep()
		}
	}
}
