// Package ratelimit coordinates REST request quotas across concurrent
// callers. It tracks one bucket per route key plus a global gate applying to
// every route, both driven by server-supplied rate-limit headers.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/driftwire-io/driftwire"
)

// Rate-limit response headers consumed by Observe.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderResetAfter = "X-RateLimit-Reset-After"
	HeaderGlobal     = "X-RateLimit-Global"
	HeaderBucket     = "X-RateLimit-Bucket"
)

// Config defines steady-state request pacing, applied before the
// header-driven gates.
type Config struct {
	// RequestsPerSecond defines how many requests may be admitted per second.
	RequestsPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity).
	Burst int
	// Enabled determines if pacing is active. Header-driven gates always are.
	Enabled bool
}

// DefaultConfig returns the default pacing configuration.
// Allows 50 requests per second with burst of 50.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerSecond: 50,
		Burst:             50,
		Enabled:           true,
	}
}

// NoPacing returns a configuration with steady-state pacing disabled.
func NoPacing() *Config {
	return &Config{
		Enabled: false,
	}
}

// gate is a time-based block shared by every caller of one bucket key.
// A zero until means unblocked.
type gate struct {
	mu    sync.Mutex
	until time.Time
}

// wait suspends the caller until the gate's block has elapsed. Re-checks
// after waking in case the block was extended while waiting.
func (g *gate) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		remaining := time.Until(g.until)
		if remaining <= 0 {
			g.until = time.Time{}
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// block marks the gate blocked for d from now. Never shortens an existing
// block.
func (g *gate) block(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(g.until) {
		g.until = until
	}
}

func (g *gate) blocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Now().Before(g.until)
}

// Limiter gates outgoing REST calls on per-route buckets and a global limit.
//
// Buckets are created lazily on first use and never block until the server
// has signalled a limit for them. All state is safe for concurrent use.
type Limiter struct {
	pacer  *rate.Limiter // nil when pacing disabled
	logger *slog.Logger

	mu      sync.Mutex
	global  gate
	buckets map[string]*gate
	hashes  map[string]string // route identity -> server-declared bucket hash
}

// New creates a Limiter. If cfg is nil, DefaultConfig() is used. If logger is
// nil, slog.Default() is used.
func New(cfg *Config, logger *slog.Logger) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	var pacer *rate.Limiter
	if cfg.Enabled {
		pacer = rate.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}

	return &Limiter{
		pacer:   pacer,
		logger:  logger,
		buckets: make(map[string]*gate),
		hashes:  make(map[string]string),
	}
}

// Acquire blocks until both the global limit and the route's bucket are
// unblocked, then grants the permit. First use of a never-seen bucket does
// not block.
func (l *Limiter) Acquire(ctx context.Context, route driftwire.Route) error {
	if l.pacer != nil {
		if err := l.pacer.Wait(ctx); err != nil {
			return err
		}
	}

	if l.global.blocked() {
		l.logger.Warn("rate limit: waiting on global limit")
	}
	if err := l.global.wait(ctx); err != nil {
		return err
	}

	g, key := l.bucketFor(route)
	if g.blocked() {
		l.logger.Warn("rate limit: waiting on bucket", "bucket", key)
	}
	return g.wait(ctx)
}

// Observe feeds a response's status and rate-limit headers back into the
// limiter. A 429 blocks the global gate or the route's bucket for the
// server-supplied reset duration; an exhausted remaining quota blocks the
// bucket pre-emptively. A server-declared bucket hash is recorded and used
// for the route's future key computation unless the caller supplied a
// shared-bucket override.
func (l *Limiter) Observe(route driftwire.Route, status int, headers http.Header) {
	resetAfter := parseResetAfter(headers.Get(HeaderResetAfter))

	if hash := headers.Get(HeaderBucket); hash != "" {
		l.mu.Lock()
		l.hashes[route.Identity()] = hash
		l.mu.Unlock()
	}

	if status == http.StatusTooManyRequests {
		if isGlobal(headers.Get(HeaderGlobal)) {
			l.logger.Warn("rate limit: global limit hit, locking down all requests",
				"reset_after", resetAfter)
			l.global.block(resetAfter)
			return
		}
		g, key := l.bucketFor(route)
		l.logger.Warn("rate limit: route limit hit, locking down bucket",
			"bucket", key, "reset_after", resetAfter)
		g.block(resetAfter)
		return
	}

	if headers.Get(HeaderRemaining) == "0" && resetAfter > 0 {
		g, key := l.bucketFor(route)
		l.logger.Debug("rate limit: quota exhausted, locking down bucket",
			"bucket", key, "reset_after", resetAfter)
		g.block(resetAfter)
	}
}

// bucketFor returns the gate for the route's key, creating it unblocked on
// first use.
func (l *Limiter) bucketFor(route driftwire.Route) (*gate, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := l.key(route)
	g, ok := l.buckets[key]
	if !ok {
		g = &gate{}
		l.buckets[key] = g
	}
	return g, key
}

// key computes the route's bucket key. A caller-supplied shared-bucket
// override wins over a learned server hash.
func (l *Limiter) key(route driftwire.Route) string {
	if route.SharedBucket == "" {
		if hash, ok := l.hashes[route.Identity()]; ok {
			r := route
			r.SharedBucket = hash
			return r.BucketKey()
		}
	}
	return route.BucketKey()
}

func parseResetAfter(v string) time.Duration {
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func isGlobal(v string) bool {
	return v == "true" || v == "1" || v == "True"
}
