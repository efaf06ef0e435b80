// Package ratelimit provides per-key admission control for login attempts.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter admits at most one caller per key per window. Decisions are
// immediate; exceeding the window re-arms the key rather than counting
// against a quota. Safe for concurrent use from unrelated callers.
type Limiter struct {
	window time.Duration
	keys   sync.Map // map[string]*keyState
}

type keyState struct {
	limiter *rate.Limiter
	// lastSeen holds unix nanoseconds; Allow and Sweep touch it from
	// different goroutines.
	lastSeen atomic.Int64
}

// NewLimiter creates a limiter granting one admission per window per key.
func NewLimiter(window time.Duration) *Limiter {
	return &Limiter{window: window}
}

// Allow reports whether the caller identified by key is admitted. Concurrent
// callers with the same key inside one window see at most one true.
func (l *Limiter) Allow(key string) bool {
	ks := l.state(key)
	ks.lastSeen.Store(time.Now().UnixNano())
	return ks.limiter.Allow()
}

func (l *Limiter) state(key string) *keyState {
	if v, ok := l.keys.Load(key); ok {
		return v.(*keyState)
	}
	// One token per window, no burst beyond the single admission.
	fresh := &keyState{limiter: rate.NewLimiter(rate.Every(l.window), 1)}
	v, _ := l.keys.LoadOrStore(key, fresh)
	return v.(*keyState)
}

// Sweep drops keys idle for longer than maxIdle. Callers run it on a
// schedule to bound memory for one-off keys.
func (l *Limiter) Sweep(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle).UnixNano()
	l.keys.Range(func(key, value any) bool {
		if value.(*keyState).lastSeen.Load() < cutoff {
			l.keys.Delete(key)
		}
		return true
	})
}
