package gateway

import (
	"testing"
	"time"
)

func TestEvaluateWindowThrottle(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	failures := []time.Time{
		now.Add(-1 * time.Minute),
		now.Add(-2 * time.Minute),
		now.Add(-6 * time.Minute),
	}

	blocked, retry := evaluateWindowThrottle(now, failures, 2, 5*time.Minute)
	if !blocked {
		t.Fatalf("expected window throttle to block")
	}
	if retry != 3*time.Minute {
		t.Fatalf("expected retry=3m, got %v", retry)
	}

	blocked, retry = evaluateWindowThrottle(now, failures, 3, 5*time.Minute)
	if blocked {
		t.Fatalf("expected window throttle to allow")
	}
	if retry != 0 {
		t.Fatalf("expected retry=0, got %v", retry)
	}
}

func TestFailureLimiter_BlocksAndRecovers(t *testing.T) {
	l := newFailureLimiter(2, time.Minute)
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	if blocked, _ := l.Blocked("203.0.113.9", now); blocked {
		t.Fatalf("fresh key must not be blocked")
	}
	l.Fail("203.0.113.9", now)
	l.Fail("203.0.113.9", now.Add(10*time.Second))

	blocked, retry := l.Blocked("203.0.113.9", now.Add(20*time.Second))
	if !blocked || retry != 40*time.Second {
		t.Fatalf("expected block with retry=40s, got blocked=%v retry=%v", blocked, retry)
	}
	if blocked, _ := l.Blocked("198.51.100.1", now.Add(20*time.Second)); blocked {
		t.Fatalf("other keys must not be affected")
	}
	if blocked, _ := l.Blocked("203.0.113.9", now.Add(61*time.Second)); blocked {
		t.Fatalf("expected block to clear after the window")
	}
}

func TestFailureLimiter_DisabledIsNil(t *testing.T) {
	l := newFailureLimiter(0, time.Minute)
	if l != nil {
		t.Fatalf("expected nil limiter when disabled")
	}
	l.Fail("x", time.Now())
	if blocked, _ := l.Blocked("x", time.Now()); blocked {
		t.Fatalf("nil limiter must never block")
	}
}
