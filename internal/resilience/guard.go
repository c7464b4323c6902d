package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// GuardedClient issues a single HTTP attempt behind a breaker with a
// per-call timeout. It never retries. 5xx responses and transport errors
// count as breaker failures; the response is still returned to the caller
// so it can classify the status itself.
type GuardedClient struct {
	Client  *http.Client
	Breaker *Breaker
	Timeout time.Duration
}

// Do executes req. The returned cancel func must be called once the
// response body has been consumed.
func (g GuardedClient) Do(ctx context.Context, req *http.Request) (*http.Response, context.CancelFunc, error) {
	if g.Client == nil {
		return nil, func() {}, errors.New("resilience: http client not configured")
	}
	if g.Breaker != nil && !g.Breaker.Allow(ctx) {
		return nil, func() {}, ErrOpenCircuit
	}

	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if g.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, g.Timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	resp, err := g.Client.Do(req.WithContext(callCtx))
	if err != nil {
		g.report(ctx, false)
		cancel()
		return nil, func() {}, fmt.Errorf("http %s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	g.report(ctx, resp.StatusCode < http.StatusInternalServerError)
	return resp, cancel, nil
}

func (g GuardedClient) report(ctx context.Context, ok bool) {
	if g.Breaker != nil {
		g.Breaker.Report(ctx, ok)
	}
}
