package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a per-key token bucket refilled at limit/minute. Buckets idle
// for more than ten minutes are dropped by a background sweep.
type Limiter struct {
	store sync.Map // map[string]*bucket
	limit int
	stop  chan struct{}
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
}

func New(perMinute int) *Limiter {
	l := &Limiter{
		limit: perMinute,
		stop:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			now := time.Now()
			l.store.Range(func(key, value interface{}) bool {
				b := value.(*bucket)
				b.mu.Lock()
				if now.Sub(b.lastAccess) > 10*time.Minute {
					l.store.Delete(key)
				}
				b.mu.Unlock()
				return true
			})
		}
	}
}

func (l *Limiter) Allow(key string) bool {
	now := time.Now()

	val, _ := l.store.LoadOrStore(key, &bucket{
		tokens:     l.limit,
		lastRefill: now,
		lastAccess: now,
	})

	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastAccess = now

	refillRate := float64(l.limit) / 60.0
	refill := int(now.Sub(b.lastRefill).Seconds() * refillRate)
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.limit {
			b.tokens = l.limit
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func (l *Limiter) Close() {
	close(l.stop)
}
