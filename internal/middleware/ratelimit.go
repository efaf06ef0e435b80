package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for the edge rate limiter.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate (tokens added per second).
	RequestsPerSecond float64
	// Burst is the maximum number of requests allowed in a burst.
	Burst int
}

type clientLimiter struct {
	limiter *rate.Limiter
	// lastSeen holds unix nanoseconds; requests and sweeps touch it from
	// different goroutines.
	lastSeen atomic.Int64
}

// Entries idle past clientIdleTTL are dropped inline every sweepInterval
// requests. Sweeping on the request path keeps the middleware free of
// background goroutines and their lifecycle.
const (
	clientIdleTTL = 10 * time.Minute
	sweepInterval = 4096
)

// RateLimiter enforces a per-client token-bucket limit at the HTTP edge.
// This is coarse volumetric protection for every route; the login endpoint
// additionally applies its own per-host attempt gate.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	var clients sync.Map // map[string]*clientLimiter
	var requests atomic.Int64

	sweep := func() {
		cutoff := time.Now().Add(-clientIdleTTL).UnixNano()
		clients.Range(func(key, value any) bool {
			if value.(*clientLimiter).lastSeen.Load() < cutoff {
				clients.Delete(key)
			}
			return true
		})
	}

	getLimiter := func(ip string) *rate.Limiter {
		v, ok := clients.Load(ip)
		if !ok {
			v, _ = clients.LoadOrStore(ip, &clientLimiter{
				limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
			})
		}
		cl := v.(*clientLimiter)
		cl.lastSeen.Store(time.Now().UnixNano())
		return cl.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requests.Add(1)%sweepInterval == 0 {
				sweep()
			}
			limiter := getLimiter(ClientHost(r))
			if !limiter.Allow() {
				writeTooManyRequests(w)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			next.ServeHTTP(w, r)
		})
	}
}

// ClientHost extracts the client address from the request, stripping the
// port. Only RemoteAddr is consulted; X-Forwarded-For is spoofable and would
// let a client dodge both the edge limit and the login attempt gate.
func ClientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    http.StatusTooManyRequests,
		"message": "rate limit exceeded",
	})
}
