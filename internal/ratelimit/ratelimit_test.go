package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_SingleAdmissionPerWindow(t *testing.T) {
	l := NewLimiter(time.Hour)

	assert.True(t, l.Allow("127.0.0.1"))
	assert.False(t, l.Allow("127.0.0.1"))
	assert.False(t, l.Allow("127.0.0.1"))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(time.Hour)

	assert.True(t, l.Allow("host-a"))
	assert.True(t, l.Allow("host-b"))
	assert.False(t, l.Allow("host-a"))
	assert.False(t, l.Allow("host-b"))
}

func TestLimiter_WindowElapsedResetsEligibility(t *testing.T) {
	l := NewLimiter(20 * time.Millisecond)

	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow("k"))
}

func TestLimiter_ConcurrentCallersOneWinner(t *testing.T) {
	l := NewLimiter(time.Hour)

	const callers = 64
	var admitted atomic.Int64
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			if l.Allow("contended") {
				admitted.Add(1)
			}
		}()
	}
	start.Done()
	done.Wait()

	assert.Equal(t, int64(1), admitted.Load())
}

// Exercises Allow and Sweep touching the same key from many goroutines; run
// with -race to detect unsynchronized access to the per-key bookkeeping.
func TestLimiter_AllowAndSweepConcurrently(t *testing.T) {
	l := NewLimiter(time.Hour)

	const callers = 16
	var done sync.WaitGroup
	done.Add(callers + 1)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			for j := 0; j < 100; j++ {
				l.Allow("shared")
			}
		}()
	}
	go func() {
		defer done.Done()
		for j := 0; j < 100; j++ {
			l.Sweep(time.Hour)
		}
	}()
	done.Wait()

	// The key stayed fresh throughout, so its window is still spent.
	assert.False(t, l.Allow("shared"))
}

func TestLimiter_Sweep(t *testing.T) {
	l := NewLimiter(time.Hour)
	l.Allow("stale")
	time.Sleep(10 * time.Millisecond)

	l.Sweep(time.Nanosecond)

	// The key was dropped, so a fresh admission is available.
	assert.True(t, l.Allow("stale"))
}
