package ratelimit

import (
	"testing"
	"time"
)

func TestBurstThenDeny(t *testing.T) {
	l := NewLimiter(1, 10, 0)

	// Capacity 10, refill 1/s: the first 10 calls pass, then denials with
	// increasing retryAfter until refill catches up.
	for i := 0; i < 10; i++ {
		ok, _ := l.Allow("agent-1", 1)
		if !ok {
			t.Fatalf("call %d should be allowed within burst", i)
		}
	}

	var last time.Duration
	for i := 0; i < 3; i++ {
		ok, retry := l.Allow("agent-1", 1)
		if ok {
			t.Fatalf("call %d should be denied after burst exhausted", i)
		}
		if retry <= 0 {
			t.Errorf("denied call should report positive retryAfter, got %s", retry)
		}
		if retry < last {
			t.Errorf("retryAfter should not decrease across immediate retries: %s then %s", last, retry)
		}
		last = retry
	}
}

func TestDenialDoesNotCharge(t *testing.T) {
	l := NewLimiter(1000, 5, 0)

	for i := 0; i < 5; i++ {
		l.Allow("agent-1", 1)
	}
	// Repeated denials must not dig the bucket deeper: after the refill
	// interval one call is allowed again.
	for i := 0; i < 50; i++ {
		l.Allow("agent-1", 1)
	}
	time.Sleep(5 * time.Millisecond) // 1000/s refill → a few tokens back
	ok, _ := l.Allow("agent-1", 1)
	if !ok {
		t.Error("bucket should refill despite prior denials")
	}
}

func TestSubjectsIndependent(t *testing.T) {
	l := NewLimiter(1, 1, 0)

	if ok, _ := l.Allow("agent-1", 1); !ok {
		t.Fatal("first call for agent-1 should pass")
	}
	if ok, _ := l.Allow("agent-1", 1); ok {
		t.Fatal("second call for agent-1 should be denied")
	}
	if ok, _ := l.Allow("agent-2", 1); !ok {
		t.Error("agent-2 has an independent bucket and should pass")
	}
}

func TestCostAboveCapacity(t *testing.T) {
	l := NewLimiter(1, 5, 0)

	ok, retry := l.Allow("agent-1", 6)
	if ok {
		t.Error("cost above capacity can never be granted")
	}
	if retry != 0 {
		t.Errorf("impossible cost reports retryAfter 0, got %s", retry)
	}
}

func TestEvictionEquivalentToFreshBucket(t *testing.T) {
	l := NewLimiter(0.001, 1, time.Hour)

	l.Allow("agent-1", 1)
	if ok, _ := l.Allow("agent-1", 1); ok {
		t.Fatal("bucket should be empty")
	}

	l.evictIdle(time.Now().Add(2 * time.Hour))

	if ok, _ := l.Allow("agent-1", 1); !ok {
		t.Error("after eviction the subject should see a fresh full bucket")
	}
}

func TestGrantedCostBounded(t *testing.T) {
	const capacity = 10
	l := NewLimiter(100, capacity, 0)

	start := time.Now()
	granted := 0
	for time.Since(start) < 50*time.Millisecond {
		if ok, _ := l.Allow("agent-1", 1); ok {
			granted++
		}
	}
	elapsed := time.Since(start).Seconds()
	bound := capacity + int(elapsed*100) + 1
	if granted > bound {
		t.Errorf("granted %d exceeds capacity+window*refill bound %d", granted, bound)
	}
}
