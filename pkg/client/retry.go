package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/shopify-connector/pkg/metrics"
	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for throttle retries.
var (
	throttleRetriesTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "shopify_throttle_retries_total",
		Help: "Total number of requests re-issued after a 429",
	})

	throttleBackoffSeconds = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "shopify_throttle_backoff_seconds",
		Help:    "Backoff duration after a 429 in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	retryExhaustedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "shopify_retry_exhausted_total",
		Help: "Total number of calls abandoned after exceeding the throttle backoff limit",
	})
)

// Execute runs one logical GraphQL call: wait for the local budget, send,
// and on 429 back off, distrust the estimate and try again. It returns the
// response together with the budget state the caller should pass to its next call.
//
// Only throttling is retried. Auth, upstream, GraphQL, malformed and network
// failures are returned on the first occurrence.
func (c *Client) Execute(ctx context.Context, shop, token, query string, variables map[string]any, state ratelimit.State) (*Response, ratelimit.State, error) {
	working := state
	if working.IsZero() {
		working = ratelimit.NewState(c.now())
	}

	var (
		throttledSince time.Time
		lastThrottle   error
	)
	for attempt := 1; ; attempt++ {
		var err error
		working, err = c.admit(ctx, shop, working)
		if err != nil {
			return nil, working, withThrottle(err, lastThrottle)
		}

		resp, err := c.send(ctx, shop, token, query, variables)
		if err == nil {
			working = working.ApplyCost(resp.Cost, c.now())
			if attempt > 1 {
				c.logger.Info().
					Str("shop", shop).
					Int("attempt", attempt).
					Msg("Request succeeded after throttling")
			}
			return resp, working, nil
		}

		if errors.Is(err, ErrContextCancelled) {
			return nil, working, withThrottle(err, lastThrottle)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !shouldRetry(apiErr.Class) {
			if IsAuthInvalid(err) {
				c.logger.Warn().Str("shop", shop).Msg("Access token rejected")
			}
			return nil, working, err
		}

		backoff := apiErr.RetryAfter
		if throttledSince.IsZero() {
			throttledSince = c.now()
		}
		throttledFor := c.now().Sub(throttledSince) + backoff
		if c.config.MaxThrottleWait > 0 && throttledFor > c.config.MaxThrottleWait {
			retryExhaustedTotal.Inc()
			c.logger.Warn().
				Str("shop", shop).
				Int("attempts", attempt).
				Dur("throttled_for", throttledFor).
				Msg("Throttle backoff limit exceeded")
			return nil, working, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
		}

		throttleRetriesTotal.Inc()
		throttleBackoffSeconds.Observe(backoff.Seconds())
		c.logger.Warn().
			Str("shop", shop).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Shopify throttled request, backing off")

		lastThrottle = err
		if err := sleep(ctx, backoff); err != nil {
			return nil, working, withThrottle(err, lastThrottle)
		}
		working = working.Exhausted(c.now())
	}
}

// admit blocks until the budget estimate allows a request.
func (c *Client) admit(ctx context.Context, shop string, state ratelimit.State) (ratelimit.State, error) {
	for {
		proceed, wait, updated := ratelimit.Admit(state, c.now())
		state = updated
		if proceed {
			return state, nil
		}

		ratelimit.AdmissionWaits.Inc()
		ratelimit.AdmissionWaitSeconds.Observe(wait.Seconds())
		c.logger.Debug().
			Str("shop", shop).
			Float64("available", state.Available).
			Dur("wait", wait).
			Msg("Query budget low, delaying request")

		if err := sleep(ctx, wait); err != nil {
			return state, err
		}
	}
}

// withThrottle attaches the last 429 to a cancellation that happened while
// the call was backing off from it.
func withThrottle(err, throttle error) error {
	if throttle == nil {
		return err
	}
	return fmt.Errorf("%w (while throttled: %w)", err, throttle)
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}
