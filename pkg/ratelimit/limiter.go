// Package ratelimit implements sliding-window admission control for
// outbound stats API calls. A single Limiter is shared by every worker
// in the process so the combined call rate never exceeds what the API
// tolerates before throttling the caller's IP.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for admission control.
var (
	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_rate_limit_wait_seconds",
		Help:    "Time spent blocked waiting for rate limit admission",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_rate_limit_throttles_total",
		Help: "Total number of admissions that had to sleep",
	})
)

// Limiter admits at most maxRequests calls within any trailing interval.
// It is safe for concurrent use; all workers share one instance.
type Limiter struct {
	maxRequests int
	interval    time.Duration

	mu     sync.Mutex
	stamps []time.Time
}

// New creates a Limiter allowing maxRequests calls per trailing interval.
func New(maxRequests int, interval time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	return &Limiter{
		maxRequests: maxRequests,
		interval:    interval,
		stamps:      make([]time.Time, 0, maxRequests),
	}
}

// Wait blocks until fewer than maxRequests timestamps fall within the
// trailing interval, then records a new timestamp and returns.
//
// There is no fairness queue: blocked goroutines sleep outside the lock
// and contend freshly on wake-up. There is no cancellation; a blocked
// caller always eventually proceeds.
func (l *Limiter) Wait() {
	start := time.Now()
	throttled := false

	for {
		l.mu.Lock()
		now := time.Now()
		l.prune(now)

		if len(l.stamps) < l.maxRequests {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			if throttled {
				rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
			}
			return
		}

		sleep := l.interval - now.Sub(l.stamps[0])
		l.mu.Unlock()

		if !throttled {
			throttled = true
			rateLimitThrottlesTotal.Inc()
			log.Debug().
				Dur("sleep", sleep).
				Int("max_requests", l.maxRequests).
				Dur("interval", l.interval).
				Msg("Rate limit reached, sleeping")
		}

		if sleep > 0 {
			time.Sleep(sleep)
		}
	}
}

// InWindow reports how many admissions currently fall inside the
// trailing interval. Intended for tests and diagnostics.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(time.Now())
	return len(l.stamps)
}

// prune drops timestamps older than the trailing interval.
// Caller must hold l.mu.
func (l *Limiter) prune(now time.Time) {
	cut := 0
	for cut < len(l.stamps) && now.Sub(l.stamps[cut]) >= l.interval {
		cut++
	}
	if cut > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[cut:]...)
	}
}
