package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/container-tracker/internal/resilience"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	breaker := resilience.NewBreaker(2, 0.5, time.Minute).WithTarget("ocean-test-recover").WithClock(clock.Now)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.False(t, breaker.Allow(ctx), "breaker should open after threshold exceeded")

	clock.Advance(time.Minute)
	require.True(t, breaker.Allow(ctx), "first call after cool off is the trial call")
	require.False(t, breaker.Allow(ctx), "only one trial call while half open")
	require.Equal(t, resilience.HalfOpen, breaker.State())

	breaker.Report(ctx, true)
	require.Equal(t, resilience.Closed, breaker.State())
	require.True(t, breaker.Allow(ctx))

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues("ocean-test-recover")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("ocean-test-recover", "half_open", "closed")))
}

func TestBreakerFailedTrialCallReopens(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	breaker := resilience.NewBreaker(1, 0.5, time.Second).WithTarget("ocean-test-reopen").WithClock(clock.Now)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	clock.Advance(time.Second)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.Equal(t, resilience.Open, breaker.State())
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("ocean-test-reopen")))
}

func TestBreakerSetSharesPerTarget(t *testing.T) {
	t.Parallel()

	set := &resilience.BreakerSet{MinRequests: 1, FailureRatio: 0.5, OpenFor: time.Minute}
	require.Same(t, set.For("ocean-af"), set.For("ocean-af"))
	require.NotSame(t, set.For("ocean-af"), set.For("ocean-ft"))
}

func TestGuardedClientRejectsWhenOpen(t *testing.T) {
	t.Parallel()

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(1, 0.5, time.Hour).WithTarget("guarded-open")
	client := resilience.GuardedClient{Client: srv.Client(), Breaker: breaker, Timeout: time.Second}
	ctx := context.Background()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, cancel, err := client.Do(ctx, req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	_ = resp.Body.Close()
	cancel()

	_, cancel, err = client.Do(ctx, req)
	cancel()
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, 1, hits)
}
