package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/courtsight/nba-stats-ingest/internal/testutil"
	"github.com/courtsight/nba-stats-ingest/pkg/ratelimit"
	"github.com/courtsight/nba-stats-ingest/pkg/statsapi"
)

// newTestFetcher returns a Fetcher whose backoff sleeps are recorded
// instead of slept.
func newTestFetcher(t *testing.T, retries int) (*Fetcher, *[]time.Duration) {
	t.Helper()
	f := NewFetcher(ratelimit.New(1000, time.Second), retries)
	var slept []time.Duration
	f.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return f, &slept
}

func transientErr() error {
	return &statsapi.APIError{StatusCode: 503, Class: statsapi.ErrorClassTransient, Message: "upstream unavailable"}
}

func permanentErr() error {
	return &statsapi.APIError{StatusCode: 400, Class: statsapi.ErrorClassPermanent, Message: "bad request"}
}

func TestFetcher_CallSucceedsFirstAttempt(t *testing.T) {
	f, slept := newTestFetcher(t, 3)

	calls := 0
	err := f.Call(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %d times, want 0", len(*slept))
	}
}

func TestFetcher_CallRetriesTransientThenSucceeds(t *testing.T) {
	f, slept := newTestFetcher(t, 3)

	calls := 0
	err := f.Call(context.Background(), func() error {
		calls++
		if calls <= 2 {
			return transientErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %d times, want %d", len(*slept), len(want))
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("backoff[%d] = %v, want %v", i, (*slept)[i], d)
		}
	}
}

func TestFetcher_CallPermanentErrorNoRetry(t *testing.T) {
	f, slept := newTestFetcher(t, 3)

	calls := 0
	err := f.Call(context.Background(), func() error {
		calls++
		return permanentErr()
	})
	if err == nil {
		t.Fatal("Call() = nil, want error")
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("permanent error should not be wrapped as retry exhaustion")
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %d times, want 0", len(*slept))
	}
}

func TestFetcher_CallExhaustsRetries(t *testing.T) {
	f, _ := newTestFetcher(t, 3)

	calls := 0
	err := f.Call(context.Background(), func() error {
		calls++
		return transientErr()
	})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Call() error = %v, want ErrRetryExhausted", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestFetcher_CallCancelledDuringBackoff(t *testing.T) {
	f := NewFetcher(ratelimit.New(1000, time.Second), 3)
	f.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Call(ctx, func() error {
		return transientErr()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Call() error = %v, want context.Canceled", err)
	}
}

func TestFetcher_EachAttemptConsumesRateLimitSlot(t *testing.T) {
	limiter := ratelimit.New(100, time.Second)
	f := NewFetcher(limiter, 3)
	f.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	_ = f.Call(context.Background(), func() error {
		return transientErr()
	})

	if got := limiter.InWindow(); got != 3 {
		t.Errorf("InWindow() = %d, want 3 (one slot per attempt)", got)
	}
}

func TestFetcher_FetchEndpointRetriesServerErrors(t *testing.T) {
	mock := testutil.NewMockStatsAPI()
	defer mock.Close()

	mock.SetHandler("/commonplayerinfo", testutil.NewFlakyHandler(2, testutil.NewTabularResponse(
		"CommonPlayerInfo",
		[]string{"PERSON_ID", "DISPLAY_FIRST_LAST"},
		[][]any{{2544, "LeBron James"}},
	)))

	client, err := statsapi.New(statsapi.Config{
		BaseURL:       mock.URL(),
		DirectTimeout: 5 * time.Second,
		ProxyTimeout:  5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("statsapi.New() error = %v", err)
	}

	f, _ := newTestFetcher(t, 3)
	resp, err := f.FetchEndpoint(context.Background(), client.NewEndpoint("commonplayerinfo", nil))
	if err != nil {
		t.Fatalf("FetchEndpoint() error = %v", err)
	}
	if resp == nil {
		t.Fatal("FetchEndpoint() returned nil response")
	}
	if got := mock.RequestCount("/commonplayerinfo"); got != 3 {
		t.Errorf("upstream saw %d requests, want 3", got)
	}
}

func TestFetcher_CreateEndpointValidates(t *testing.T) {
	mock := testutil.NewMockStatsAPI()
	defer mock.Close()

	mock.SetResponse("/commonplayerinfo", testutil.NewTabularResponse(
		"CommonPlayerInfo",
		[]string{"PERSON_ID"},
		[][]any{{2544}},
	))

	client, err := statsapi.New(statsapi.Config{
		BaseURL:       mock.URL(),
		DirectTimeout: 5 * time.Second,
		ProxyTimeout:  5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("statsapi.New() error = %v", err)
	}

	f, _ := newTestFetcher(t, 3)
	ep, err := f.CreateEndpoint(context.Background(), client, "commonplayerinfo", nil)
	if err != nil {
		t.Fatalf("CreateEndpoint() error = %v", err)
	}
	if ep.Response() == nil {
		t.Error("CreateEndpoint() left no cached response on the endpoint")
	}
	if got := mock.RequestCount("/commonplayerinfo"); got != 1 {
		t.Errorf("upstream saw %d requests, want 1", got)
	}

	// Permanent failure during validation surfaces immediately.
	mock.SetResponse("/badendpoint", testutil.MockResponse{StatusCode: 400, Body: `{"error": "bad"}`})
	if _, err := f.CreateEndpoint(context.Background(), client, "badendpoint", nil); err == nil {
		t.Fatal("CreateEndpoint() on failing endpoint = nil error, want error")
	}
}

func TestBackoffFor(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{4, 32 * time.Second},
		{5, 60 * time.Second},
		{10, 60 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := backoffFor(tt.attempt); got != tt.want {
				t.Errorf("backoffFor(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}
