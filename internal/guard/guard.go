// Package guard throttles workflow mutations per caller.
package guard

import (
	"sync"
	"time"

	"github.com/licitaflow/stagegate/internal/domain"
)

// GuardConfig holds the mutation rate limit. A limit of zero disables it.
type GuardConfig struct {
	RateLimitPerMinute int
}

// Guard enforces a fixed 60-second window rate limit per key.
type Guard struct {
	Config GuardConfig
	Now    func() time.Time

	mu         sync.Mutex
	rateCounts map[string]*rateBucket
	lastSweep  int64
}

type rateBucket struct {
	count       int
	windowStart int64
}

// NewGuard creates a Guard with the given limits.
func NewGuard(cfg GuardConfig) *Guard {
	return &Guard{
		Config:     cfg,
		Now:        time.Now,
		rateCounts: make(map[string]*rateBucket),
	}
}

// CheckRateLimit counts one mutation for key and returns
// ErrRateLimitExceeded once the window's budget is spent.
func (g *Guard) CheckRateLimit(key string) error {
	if g.Config.RateLimitPerMinute <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.Now().Unix()
	g.sweep(now)

	bucket, ok := g.rateCounts[key]
	if !ok {
		g.rateCounts[key] = &rateBucket{count: 1, windowStart: now}
		return nil
	}

	if now-bucket.windowStart >= 60 {
		bucket.count = 1
		bucket.windowStart = now
		return nil
	}

	if bucket.count >= g.Config.RateLimitPerMinute {
		return domain.ErrRateLimitExceeded
	}

	bucket.count++
	return nil
}

// sweep drops buckets whose window has ended, at most once per window.
func (g *Guard) sweep(now int64) {
	if now-g.lastSweep < 60 {
		return
	}
	for key, b := range g.rateCounts {
		if now-b.windowStart >= 60 {
			delete(g.rateCounts, key)
		}
	}
	g.lastSweep = now
}

// Reset forgets the window of key.
func (g *Guard) Reset(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rateCounts, key)
}
