package gateway

import (
	"sync"
	"time"
)

// failureLimiter throttles clients that keep presenting a wrong shared secret.
// It keeps a sliding window of failure timestamps per client key.
type failureLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	max      int
	window   time.Duration
}

func newFailureLimiter(max int, window time.Duration) *failureLimiter {
	if max <= 0 || window <= 0 {
		return nil
	}
	return &failureLimiter{
		failures: make(map[string][]time.Time),
		max:      max,
		window:   window,
	}
}

// Blocked reports whether key is currently throttled and for how long.
func (l *failureLimiter) Blocked(key string, now time.Time) (bool, time.Duration) {
	if l == nil || key == "" {
		return false, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.prune(key, now)
	return evaluateWindowThrottle(now, events, l.max, l.window)
}

// Fail records one failed attempt for key.
func (l *failureLimiter) Fail(key string, now time.Time) {
	if l == nil || key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.prune(key, now)
	l.failures[key] = append(events, now)
}

// prune drops events outside the window. Callers hold l.mu.
func (l *failureLimiter) prune(key string, now time.Time) []time.Time {
	cut := now.Add(-l.window)
	events := l.failures[key]
	dst := events[:0]
	for _, t := range events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	if len(dst) == 0 {
		delete(l.failures, key)
		return nil
	}
	l.failures[key] = dst
	return dst
}

// evaluateWindowThrottle blocks once max failures fall inside window. The retry delay is
// the time until the oldest counted failure leaves the window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)
	var inWindow []time.Time
	for _, t := range failures {
		if t.After(cut) {
			inWindow = append(inWindow, t)
		}
	}
	if len(inWindow) < max {
		return false, 0
	}

	oldest := inWindow[0]
	for _, t := range inWindow[1:] {
		if t.Before(oldest) {
			oldest = t
		}
	}
	return true, oldest.Add(window).Sub(now)
}
