package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/courtsight/nba-stats-ingest/pkg/ratelimit"
	"github.com/courtsight/nba-stats-ingest/pkg/statsapi"
)

var (
	// ErrRetryExhausted indicates all retry attempts failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_retries_total",
		Help: "Total number of retry attempts",
	})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_retry_backoff_seconds",
		Help:    "Backoff duration before retries",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 60},
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)

const maxBackoff = 60 * time.Second

// Fetcher runs upstream calls under the shared rate limit with
// exponential backoff retries. Every attempt, including retries,
// consumes a rate limit slot first.
type Fetcher struct {
	limiter *ratelimit.Limiter
	retries int
	logger  zerolog.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a Fetcher. retries is the total number of
// attempts; values below 1 are clamped to 1.
func NewFetcher(limiter *ratelimit.Limiter, retries int) *Fetcher {
	if limiter == nil {
		panic("limiter cannot be nil")
	}
	if retries < 1 {
		retries = 1
	}
	return &Fetcher{
		limiter: limiter,
		retries: retries,
		logger:  log.With().Str("component", "fetch").Logger(),
		sleep:   sleepCtx,
	}
}

// Call executes op under the rate limit, retrying transient failures
// with exponential backoff. Permanent failures return immediately.
func (f *Fetcher) Call(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 0; attempt < f.retries; attempt++ {
		f.limiter.Wait()

		err := op()
		if err == nil {
			if attempt > 0 {
				f.logger.Info().
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !statsapi.IsTransient(err) {
			return lastErr
		}

		if attempt+1 >= f.retries {
			break
		}

		retriesTotal.Inc()
		backoff := backoffFor(attempt)
		retryBackoffSeconds.Observe(backoff.Seconds())

		f.logger.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		if err := f.sleep(ctx, backoff); err != nil {
			return err
		}
	}

	retryExhaustedTotal.Inc()
	f.logger.Warn().
		Err(lastErr).
		Int("attempts", f.retries).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, f.retries, lastErr)
}

// FetchEndpoint runs ep.Fetch under Call and returns the decoded
// response.
func (f *Fetcher) FetchEndpoint(ctx context.Context, ep *statsapi.Endpoint) (*statsapi.Response, error) {
	var resp *statsapi.Response
	err := f.Call(ctx, func() error {
		r, err := ep.Fetch(ctx)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// CreateEndpoint builds an endpoint and validates it with a fetch
// under the retry policy. The validated response stays cached on the
// endpoint, so the construction cost is one upstream call, not two.
func (f *Fetcher) CreateEndpoint(ctx context.Context, client *statsapi.Client, path string, params url.Values) (*statsapi.Endpoint, error) {
	ep := client.NewEndpoint(path, params)
	if _, err := f.FetchEndpoint(ctx, ep); err != nil {
		return nil, fmt.Errorf("validate endpoint %s: %w", path, err)
	}
	return ep, nil
}

// backoffFor returns 2^(attempt+1) seconds capped at maxBackoff.
func backoffFor(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt+1))) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
