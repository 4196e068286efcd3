package unit_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/driftwire-io/driftwire"
	"github.com/driftwire-io/driftwire/internal/ratelimit"
)

// TestLimiterSerializesHotBucket verifies that many concurrent callers on a
// rate-limited bucket all sit out the block together instead of racing past
// it.
func TestLimiterSerializesHotBucket(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(ratelimit.NoPacing(), nil)
	route := driftwire.Route{
		Method:    driftwire.MethodPost,
		Path:      "/channels/55/messages",
		ChannelID: "55",
	}

	h := http.Header{}
	h.Set(ratelimit.HeaderResetAfter, "0.25")
	l.Observe(route, http.StatusTooManyRequests, h)

	const callers = 16
	var wg sync.WaitGroup
	start := time.Now()
	errs := make([]error, callers)
	waits := make([]time.Duration, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = l.Acquire(context.Background(), route)
			waits[n] = time.Since(start)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: Acquire() error = %v", i, errs[i])
		}
		if waits[i] < 250*time.Millisecond {
			t.Errorf("caller %d acquired after %v, want >= 250ms", i, waits[i])
		}
	}
}

// TestLimiterPacing verifies steady-state pacing throttles a burst that
// exceeds the configured budget.
func TestLimiterPacing(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(&ratelimit.Config{
		RequestsPerSecond: 10,
		Burst:             1,
		Enabled:           true,
	}, nil)
	route := driftwire.Route{Method: driftwire.MethodGet, Path: "/gateway"}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(context.Background(), route); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}
	// Burst of 1 at 10/s means the third permit lands at ~200ms.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("3 acquires took %v, want >= 150ms under pacing", elapsed)
	}
}

// TestLimiterGlobalThenRoute verifies a global lockdown holds every route
// while a later per-route block only holds its own.
func TestLimiterGlobalThenRoute(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(ratelimit.NoPacing(), nil)
	a := driftwire.Route{Method: driftwire.MethodGet, Path: "/channels/1", ChannelID: "1"}
	b := driftwire.Route{Method: driftwire.MethodGet, Path: "/guilds/2", GuildID: "2"}

	h := http.Header{}
	h.Set(ratelimit.HeaderResetAfter, "0.2")
	h.Set(ratelimit.HeaderGlobal, "true")
	l.Observe(a, http.StatusTooManyRequests, h)

	start := time.Now()
	if err := l.Acquire(context.Background(), b); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("global block held %v, want >= 200ms", elapsed)
	}

	// After the global block clears, an a-only block must not touch b.
	h2 := http.Header{}
	h2.Set(ratelimit.HeaderResetAfter, "0.5")
	l.Observe(a, http.StatusTooManyRequests, h2)

	start = time.Now()
	if err := l.Acquire(context.Background(), b); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("unrelated route waited %v, want no wait", elapsed)
	}
}
