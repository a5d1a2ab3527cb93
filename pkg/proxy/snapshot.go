package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// snapshotKeyPrefix namespaces proxy stats in Redis.
const snapshotKeyPrefix = "proxy_stats:"

// snapshotTTL expires stale snapshots after a day; daily counters are
// meaningless beyond that anyway.
const snapshotTTL = 24 * time.Hour

// SnapshotStore persists proxy records between runs so a restart does
// not forget which endpoints were burned. The pool works fully without
// one; snapshots are best-effort.
type SnapshotStore struct {
	redis *redis.Client
}

// NewSnapshotStore creates a Redis-backed snapshot store.
func NewSnapshotStore(redisClient *redis.Client) *SnapshotStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &SnapshotStore{redis: redisClient}
}

// Save writes every record to Redis under proxy_stats:<endpoint>.
func (s *SnapshotStore) Save(ctx context.Context, records []Record) error {
	pipe := s.redis.Pipeline()
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal proxy record: %w", err)
		}
		pipe.Set(ctx, snapshotKeyPrefix+rec.Endpoint, data, snapshotTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save proxy snapshot: %w", err)
	}
	return nil
}

// Load reads back the records for the given endpoints. Endpoints with
// no snapshot are simply absent from the result.
func (s *SnapshotStore) Load(ctx context.Context, endpoints []string) ([]Record, error) {
	records := make([]Record, 0, len(endpoints))
	for _, ep := range endpoints {
		data, err := s.redis.Get(ctx, snapshotKeyPrefix+ep).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load proxy snapshot: %w", err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			// Corrupt snapshot; skip rather than poison the pool.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Restore replaces the manager's records with a previously saved
// snapshot. Unknown endpoints are ignored; endpoints without a snapshot
// keep their fresh record.
func (m *Manager) Restore(records []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		if _, ok := m.records[rec.Endpoint]; !ok {
			continue
		}
		restored := rec
		m.records[rec.Endpoint] = &restored
	}
}
