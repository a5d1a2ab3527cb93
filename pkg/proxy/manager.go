package proxy

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for proxy pool operations.
var (
	proxySelectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_proxy_selections_total",
		Help: "Total proxy selections by mode (healthy, fallback)",
	}, []string{"mode"})

	proxyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_proxy_failures_total",
		Help: "Total calls marked failed against a proxy",
	})

	proxyPoolResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_proxy_pool_resets_total",
		Help: "Total full pool resets triggered by proxy exhaustion",
	})
)

// Config holds the health policy for the proxy pool.
type Config struct {
	// MaxFails is the per-day failure count that blacklists a proxy.
	MaxFails int

	// ConsecutiveFailLimit blacklists a proxy after this many failures
	// in a row, regardless of its daily total.
	ConsecutiveFailLimit int

	// Cooldown is the minimum rest between two uses of the same proxy.
	Cooldown time.Duration

	// DailyCap is the maximum selections per proxy per day.
	DailyCap int

	// RefundFailedQuota, when true, returns a proxy's optimistically
	// consumed daily-quota unit on MarkFailed. The default keeps the
	// original behavior: a failed call still counts against the quota.
	RefundFailedQuota bool
}

// DefaultConfig returns the pool policy used in production.
func DefaultConfig() Config {
	return Config{
		MaxFails:             5,
		ConsecutiveFailLimit: 3,
		Cooldown:             10 * time.Minute,
		DailyCap:             1000,
	}
}

// Manager tracks a fixed pool of proxy endpoints. All methods are safe
// for concurrent use; the lock is held only for check-and-update, never
// across a network call.
type Manager struct {
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	endpoints []string
	records   map[string]*Record
	rng       *rand.Rand
	now       func() time.Time
}

// New creates a Manager for the given proxy endpoints.
// Returns an error if the pool is empty; that is a setup failure the
// caller must treat as fatal.
func New(endpoints []string, cfg Config) (*Manager, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("proxy pool is empty")
	}
	if cfg.MaxFails <= 0 {
		cfg.MaxFails = 5
	}
	if cfg.ConsecutiveFailLimit <= 0 {
		cfg.ConsecutiveFailLimit = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Minute
	}
	if cfg.DailyCap <= 0 {
		cfg.DailyCap = 1000
	}

	m := &Manager{
		cfg:       cfg,
		logger:    log.With().Str("component", "proxy-pool").Logger(),
		endpoints: append([]string(nil), endpoints...),
		records:   make(map[string]*Record, len(endpoints)),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
	now := m.now()
	for _, ep := range m.endpoints {
		m.records[ep] = newRecord(ep, now)
	}
	return m, nil
}

// GetHealthyProxy selects a proxy endpoint via weighted random draw over
// the healthy candidates, score = success_rate * (1 - used/cap), floor 1.
// Selection optimistically reserves usage: last_used, requests_today and
// total_requests are updated before the call outcome is known.
//
// When no candidate is healthy the whole pool is reset (with jittered
// last_used so proxies do not re-contend in lockstep) and a uniformly
// random endpoint is returned. Exhaustion is never fatal.
func (m *Manager) GetHealthyProxy() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	candidates := make([]string, 0, len(m.endpoints))
	scores := make([]float64, 0, len(m.endpoints))

	for _, ep := range m.endpoints {
		rec := m.records[ep]
		if rec.needsDailyReset(now) {
			rec.resetDaily(now)
		}
		if !m.healthy(rec, now) {
			continue
		}
		score := rec.SuccessRate * (1 - float64(rec.RequestsToday)/float64(m.cfg.DailyCap))
		if score < 1 {
			score = 1
		}
		candidates = append(candidates, ep)
		scores = append(scores, score)
	}

	if len(candidates) == 0 {
		m.logger.Warn().Msg("No healthy proxies available, resetting pool")
		m.resetAllLocked(now)
		proxyPoolResetsTotal.Inc()
		proxySelectionsTotal.WithLabelValues("fallback").Inc()
		selected := m.endpoints[m.rng.Intn(len(m.endpoints))]
		m.reserveLocked(selected, now)
		return selected
	}

	selected := m.weightedDrawLocked(candidates, scores)
	proxySelectionsTotal.WithLabelValues("healthy").Inc()
	m.reserveLocked(selected, now)
	return selected
}

// MarkSuccess records a successful call through the proxy.
func (m *Manager) MarkSuccess(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[endpoint]
	if !ok {
		return
	}
	rec.ConsecutiveFails = 0
	rec.recomputeSuccessRate()
}

// MarkFailed records a failed call through the proxy.
func (m *Manager) MarkFailed(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[endpoint]
	if !ok {
		return
	}
	rec.Fails++
	rec.ConsecutiveFails++
	if m.cfg.RefundFailedQuota && rec.RequestsToday > 0 {
		rec.RequestsToday--
	}
	rec.recomputeSuccessRate()
	proxyFailuresTotal.Inc()

	m.logger.Warn().
		Str("proxy", hostOf(endpoint)).
		Int("fails", rec.Fails).
		Int("consecutive_fails", rec.ConsecutiveFails).
		Float64("success_rate", rec.SuccessRate).
		Msg("Proxy call failed")
}

// Stats returns a copy of the record for an endpoint.
func (m *Manager) Stats(endpoint string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[endpoint]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Records returns copies of all records, in configuration order.
func (m *Manager) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.endpoints))
	for _, ep := range m.endpoints {
		out = append(out, *m.records[ep])
	}
	return out
}

// healthy applies the selection policy to one record.
func (m *Manager) healthy(rec *Record, now time.Time) bool {
	if rec.Fails >= m.cfg.MaxFails {
		return false
	}
	if rec.ConsecutiveFails >= m.cfg.ConsecutiveFailLimit {
		return false
	}
	if rec.RequestsToday >= m.cfg.DailyCap {
		return false
	}
	if rec.LastUsed != nil && now.Sub(*rec.LastUsed) <= m.cfg.Cooldown {
		return false
	}
	return true
}

// reserveLocked optimistically charges a selection to the record.
// Caller must hold m.mu.
func (m *Manager) reserveLocked(endpoint string, now time.Time) {
	rec := m.records[endpoint]
	used := now
	rec.LastUsed = &used
	rec.RequestsToday++
	rec.TotalRequests++
}

// weightedDrawLocked picks a candidate proportionally to its score.
// Caller must hold m.mu.
func (m *Manager) weightedDrawLocked(candidates []string, scores []float64) string {
	var total float64
	for _, s := range scores {
		total += s
	}
	r := m.rng.Float64() * total
	for i, s := range scores {
		r -= s
		if r < 0 {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// resetAllLocked clears every record and staggers last_used with random
// jitter so the pool does not come back in lockstep. Caller holds m.mu.
func (m *Manager) resetAllLocked(now time.Time) {
	for _, ep := range m.endpoints {
		rec := m.records[ep]
		rec.resetDaily(now)
		jittered := now.Add(-time.Duration(m.rng.Intn(300)) * time.Second)
		rec.LastUsed = &jittered
	}
	m.logger.Info().Int("pool_size", len(m.endpoints)).Msg("All proxy stats reset")
}

// hostOf strips credentials from a proxy URI for logging.
func hostOf(endpoint string) string {
	for i := len(endpoint) - 1; i >= 0; i-- {
		if endpoint[i] == '@' {
			return endpoint[i+1:]
		}
	}
	return endpoint
}
