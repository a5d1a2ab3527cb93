// Package config loads the pipeline configuration from the
// environment. Flags on the ingest command override individual fields.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full environment-driven pipeline configuration.
type Config struct {
	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// RedisURL enables payload caching and proxy stat snapshots when
	// set ("host:port"). Empty disables both.
	RedisURL string

	// ForceLocal disables proxies even when a pool is configured.
	ForceLocal bool

	// ForceProxy makes a missing proxy pool a startup error instead
	// of a silent fallback to direct calls.
	ForceProxy bool

	// MaxWorkers bounds batch concurrency.
	MaxWorkers int

	// RateLimitRequests and RateLimitInterval define the sliding
	// window shared by all workers.
	RateLimitRequests int
	RateLimitInterval time.Duration

	// Retries is the total attempt count per upstream call.
	Retries int

	// Proxy pool health thresholds.
	MaxFails             int
	ConsecutiveFailLimit int
	Cooldown             time.Duration
	DailyRequestCap      int

	// Proxies is the endpoint pool, either from PROXY_LIST directly
	// or assembled from PROXY_USERNAME/PASSWORD/HOST/PORTS.
	Proxies []string

	// LogLevel is the zerolog level name.
	LogLevel string

	// LogPretty enables human-readable console output.
	LogPretty bool
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		ForceLocal:           getEnvBool("FORCE_LOCAL", false),
		ForceProxy:           getEnvBool("FORCE_PROXY", false),
		MaxWorkers:           getEnvInt("MAX_WORKERS", 5),
		RateLimitRequests:    getEnvInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitInterval:    getEnvDuration("RATE_LIMIT_INTERVAL_SECONDS", 25*time.Second),
		Retries:              getEnvInt("FETCH_RETRIES", 3),
		MaxFails:             getEnvInt("PROXY_MAX_FAILS", 5),
		ConsecutiveFailLimit: getEnvInt("PROXY_CONSECUTIVE_FAIL_LIMIT", 3),
		Cooldown:             getEnvDuration("PROXY_COOLDOWN_SECONDS", 10*time.Minute),
		DailyRequestCap:      getEnvInt("PROXY_DAILY_REQUEST_CAP", 1000),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogPretty:            getEnvBool("LOG_PRETTY", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ForceLocal && cfg.ForceProxy {
		return Config{}, fmt.Errorf("FORCE_LOCAL and FORCE_PROXY are mutually exclusive")
	}

	cfg.Proxies = loadProxies()
	if cfg.ForceProxy && len(cfg.Proxies) == 0 {
		return Config{}, fmt.Errorf("FORCE_PROXY is set but no proxies are configured")
	}

	return cfg, nil
}

// loadProxies reads the pool from PROXY_LIST (comma-separated URLs) or
// assembles endpoints from PROXY_USERNAME, PROXY_PASSWORD, PROXY_HOST
// and PROXY_PORTS, one endpoint per port.
func loadProxies() []string {
	if list := os.Getenv("PROXY_LIST"); list != "" {
		var proxies []string
		for _, p := range strings.Split(list, ",") {
			if p = strings.TrimSpace(p); p != "" {
				proxies = append(proxies, p)
			}
		}
		return proxies
	}

	host := os.Getenv("PROXY_HOST")
	ports := os.Getenv("PROXY_PORTS")
	if host == "" || ports == "" {
		return nil
	}

	user := os.Getenv("PROXY_USERNAME")
	pass := os.Getenv("PROXY_PASSWORD")

	var proxies []string
	for _, port := range strings.Split(ports, ",") {
		if port = strings.TrimSpace(port); port == "" {
			continue
		}
		if user != "" {
			proxies = append(proxies, fmt.Sprintf("http://%s:%s@%s:%s", user, pass, host, port))
		} else {
			proxies = append(proxies, fmt.Sprintf("http://%s:%s", host, port))
		}
	}
	return proxies
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
