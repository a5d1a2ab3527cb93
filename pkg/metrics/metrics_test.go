package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/courtsight/nba-stats-ingest/pkg/proxy"
	_ "github.com/courtsight/nba-stats-ingest/pkg/ratelimit"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Fatal("Registry should not be nil")
	}
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

// Importing a pipeline package registers its collectors with the
// default registry. The proxy pool and rate limiter expose plain
// counters, so their families gather even before any traffic.
func TestIngestFamiliesRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	got := make(map[string]bool, len(families))
	for _, mf := range families {
		got[mf.GetName()] = true
	}

	for _, name := range []string{
		"ingest_proxy_failures_total",
		"ingest_proxy_pool_resets_total",
		"ingest_rate_limit_throttles_total",
	} {
		if !got[name] {
			t.Errorf("metric family %s not registered", name)
		}
	}
}
