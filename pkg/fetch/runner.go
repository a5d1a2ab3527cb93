package fetch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var batchOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_batch_outcomes_total",
	Help: "Per-entity batch outcomes",
}, []string{"task", "outcome"})

// Outcome is the per-entity result of one batch work item.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Summary aggregates the outcomes of one batch run. A batch never
// aborts on individual failures; FailedIDs lists the entities to
// re-run.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	FailedIDs []int64
	Duration  time.Duration
}

// Total returns the number of processed entities.
func (s Summary) Total() int {
	return s.Succeeded + s.Failed + s.Skipped
}

// Runner fans batch work out over a bounded worker pool. One failed
// entity never stops the batch; a panicking work item is recorded as
// a failure and its worker keeps going.
type Runner struct {
	workers int
	task    string
	logger  zerolog.Logger
}

// NewRunner creates a Runner with the given concurrency. task names
// the batch in logs and metrics. workers below 1 are clamped to 1.
func NewRunner(task string, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		workers: workers,
		task:    task,
		logger:  log.With().Str("component", "runner").Str("task", task).Logger(),
	}
}

// Run processes ids through work and aggregates outcomes. Workers
// drain the queue on context cancellation without starting new items;
// unprocessed ids are counted as failed.
func (r *Runner) Run(ctx context.Context, ids []int64, work func(ctx context.Context, id int64) Outcome) Summary {
	start := time.Now()

	r.logger.Info().
		Int("entities", len(ids)).
		Int("workers", r.workers).
		Msg("Starting batch")

	queue := make(chan int64)
	go func() {
		defer close(queue)
		for _, id := range ids {
			select {
			case queue <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		mu      sync.Mutex
		summary Summary
		done    int
	)
	record := func(id int64, outcome Outcome) {
		batchOutcomesTotal.WithLabelValues(r.task, outcome.String()).Inc()

		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case OutcomeSucceeded:
			summary.Succeeded++
		case OutcomeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
			summary.FailedIDs = append(summary.FailedIDs, id)
		}
		done++
		if done%50 == 0 {
			r.logger.Info().
				Int("done", done).
				Int("total", len(ids)).
				Msg("Batch progress")
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range queue {
				record(id, r.safeWork(ctx, id, work))
			}
		}()
	}
	wg.Wait()

	// Ids the feeder never handed out (context cancelled) count as failed.
	if missing := len(ids) - summary.Total(); missing > 0 {
		summary.Failed += missing
	}

	summary.Duration = time.Since(start)

	r.logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Dur("duration", summary.Duration).
		Msg("Batch complete")

	sort.Slice(summary.FailedIDs, func(i, j int) bool { return summary.FailedIDs[i] < summary.FailedIDs[j] })
	return summary
}

// safeWork runs one work item, converting a panic into a failure.
func (r *Runner) safeWork(ctx context.Context, id int64, work func(ctx context.Context, id int64) Outcome) (outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Int64("entity_id", id).
				Interface("panic", rec).
				Msg("Work item panicked")
			outcome = OutcomeFailed
		}
	}()
	return work(ctx, id)
}
