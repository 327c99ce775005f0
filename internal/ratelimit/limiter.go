package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a per-subject token-bucket rate limiter. Each subject key gets
// an independent bucket that refills continuously up to a capacity ceiling.
// Buckets idle longer than the TTL are evicted; eviction is behaviorally
// equivalent to a fresh full bucket on next use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	refill  rate.Limit
	burst   int
	idleTTL time.Duration
	stop    chan struct{}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a Limiter refilling refillPerSec tokens per second up
// to capacity per subject. Idle buckets are swept every idleTTL.
func NewLimiter(refillPerSec float64, capacity int, idleTTL time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		refill:  rate.Limit(refillPerSec),
		burst:   capacity,
		idleTTL: idleTTL,
		stop:    make(chan struct{}),
	}
	if idleTTL > 0 {
		go l.sweepLoop()
	}
	return l
}

// Allow charges cost tokens against the subject's bucket. On denial it
// reports the wait until enough tokens accrue; nothing is charged. A cost
// exceeding capacity can never be granted and is denied with retryAfter 0.
func (l *Limiter) Allow(subjectKey string, cost int) (bool, time.Duration) {
	lim := l.get(subjectKey)

	now := time.Now()
	r := lim.ReserveN(now, cost)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *Limiter) get(subjectKey string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[subjectKey]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.refill, l.burst)}
		l.buckets[subjectKey] = b
	}
	b.lastSeen = time.Now()
	return b.lim
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle(time.Now())
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

// Close stops the background sweeper.
func (l *Limiter) Close() {
	close(l.stop)
}
