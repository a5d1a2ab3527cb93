package fetch

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courtsight/nba-stats-ingest/internal/testutil"
	"github.com/courtsight/nba-stats-ingest/pkg/cache"
	"github.com/courtsight/nba-stats-ingest/pkg/ratelimit"
	"github.com/courtsight/nba-stats-ingest/pkg/statsapi"
	"github.com/courtsight/nba-stats-ingest/pkg/store"
)

func newFetchHarness(t *testing.T) (*testutil.MockStatsAPI, *statsapi.Client, *Fetcher, *testutil.MemStore) {
	t.Helper()

	mock := testutil.NewMockStatsAPI()
	t.Cleanup(mock.Close)

	client, err := statsapi.New(statsapi.Config{
		BaseURL:       mock.URL(),
		DirectTimeout: 5 * time.Second,
		ProxyTimeout:  5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("statsapi.New() error = %v", err)
	}

	fetcher := NewFetcher(ratelimit.New(1000, time.Second), 3)
	fetcher.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	return mock, client, fetcher, testutil.NewMemStore()
}

func playerInfoBody(name string) string {
	return `{
		"resource": "commonplayerinfo",
		"resultSets": [
			{
				"name": "CommonPlayerInfo",
				"headers": ["PERSON_ID", "DISPLAY_FIRST_LAST", "POSITION", "WEIGHT", "BIRTHDATE", "SEASON_EXP", "SCHOOL"],
				"rowSet": [[2544, "` + name + `", "Forward", "250", "1984-12-30T00:00:00", 20, "St. Vincent-St. Mary HS (OH)"]]
			},
			{
				"name": "AvailableSeasons",
				"headers": ["SEASON_ID"],
				"rowSet": [["22022"], ["22023"]]
			}
		]
	}`
}

func TestPlayerFetcher_FetchPlayerParsesBiography(t *testing.T) {
	mock, client, fetcher, memStore := newFetchHarness(t)
	mock.SetResponse("/commonplayerinfo", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       playerInfoBody("LeBron James"),
	})

	pf := NewPlayerFetcher(client, fetcher, memStore, nil)
	if outcome := pf.FetchPlayer(context.Background(), 2544); outcome != OutcomeSucceeded {
		t.Fatalf("FetchPlayer() = %v, want succeeded", outcome)
	}

	exists, _ := memStore.PlayerExists(context.Background(), 2544)
	if !exists {
		t.Fatal("player not persisted")
	}
	if memStore.PlayerCount() != 1 {
		t.Errorf("PlayerCount() = %d, want 1", memStore.PlayerCount())
	}
}

func TestPlayerFetcher_SkipsExistingPlayers(t *testing.T) {
	mock, client, fetcher, memStore := newFetchHarness(t)
	mock.SetResponse("/commonplayerinfo", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       playerInfoBody("Test Player"),
	})

	ids := make([]int64, 100)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	// The first ten are already persisted.
	for _, id := range ids[:10] {
		memStore.SeedPlayer(store.Player{PlayerID: id, Name: "Seeded"})
	}

	pf := NewPlayerFetcher(client, fetcher, memStore, nil)
	summary := pf.FetchPlayers(context.Background(), ids, 5)

	if summary.Skipped != 10 {
		t.Errorf("Skipped = %d, want 10", summary.Skipped)
	}
	if summary.Succeeded != 90 {
		t.Errorf("Succeeded = %d, want 90", summary.Succeeded)
	}
	if got := mock.RequestCount("/commonplayerinfo"); got != 90 {
		t.Errorf("upstream saw %d requests, want 90 (skips make no network call)", got)
	}
}

func TestPlayerFetcher_PlayerIndex(t *testing.T) {
	mock, client, fetcher, memStore := newFetchHarness(t)
	mock.SetResponse("/commonallplayers", testutil.NewTabularResponse(
		"CommonAllPlayers",
		[]string{"PERSON_ID", "DISPLAY_FIRST_LAST", "ROSTERSTATUS"},
		[][]any{
			{2544, "LeBron James", 1},
			{201939, "Stephen Curry", 1},
			{1629029, "Luka Doncic", 1},
		},
	))

	pf := NewPlayerFetcher(client, fetcher, memStore, nil)
	ids, err := pf.PlayerIndex(context.Background(), "2023-24")
	if err != nil {
		t.Fatalf("PlayerIndex() error = %v", err)
	}
	want := []int64{2544, 201939, 1629029}
	if len(ids) != len(want) {
		t.Fatalf("PlayerIndex() returned %d ids, want %d", len(ids), len(want))
	}
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], id)
		}
	}
}

// TestPlayerFetcher_InvalidCachedIndexRefetched plants a cache entry
// whose rowSet row is narrower than its header list. The index must
// evict it and fall back to the upstream fetch instead of handing the
// mismatched rows to the caller.
func TestPlayerFetcher_InvalidCachedIndexRefetched(t *testing.T) {
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := redisClient.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}
	t.Cleanup(func() {
		redisClient.FlushDB(context.Background())
		redisClient.Close()
	})

	mock, client, fetcher, memStore := newFetchHarness(t)
	mock.SetResponse("/commonallplayers", testutil.NewTabularResponse(
		"CommonAllPlayers",
		[]string{"PERSON_ID", "DISPLAY_FIRST_LAST"},
		[][]any{{2544, "LeBron James"}},
	))

	manager := cache.NewManager(redisClient)
	key := cache.Key{
		Endpoint: "commonallplayers",
		Params: url.Values{
			"LeagueID":            []string{"00"},
			"Season":              []string{"2023-24"},
			"IsOnlyCurrentSeason": []string{"1"},
		},
	}
	mangled := []byte(`{"resource":"commonallplayers","resultSets":[{"name":"CommonAllPlayers","headers":["PERSON_ID","DISPLAY_FIRST_LAST"],"rowSet":[[2544]]}]}`)
	if err := manager.Set(ctx, key, mangled, time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	pf := NewPlayerFetcher(client, fetcher, memStore, manager)
	ids, err := pf.PlayerIndex(ctx, "2023-24")
	if err != nil {
		t.Fatalf("PlayerIndex() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != 2544 {
		t.Fatalf("PlayerIndex() = %v, want [2544]", ids)
	}
	if got := mock.RequestCount("/commonallplayers"); got != 1 {
		t.Errorf("upstream saw %d requests, want 1 (mangled entry must be refetched)", got)
	}

	// The refetched payload replaces the mangled entry.
	data, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() after refetch error: %v", err)
	}
	if _, err := statsapi.Decode(data); err != nil {
		t.Errorf("cached entry after refetch is invalid: %v", err)
	}
}

func TestPlayerFetcher_FetchGameLogsResolvesTeam(t *testing.T) {
	mock, client, fetcher, memStore := newFetchHarness(t)
	memStore.SeedTeams([]store.Team{
		{TeamID: 1610612747, Name: "Los Angeles Lakers", Abbreviation: "LAL"},
		{TeamID: 1610612738, Name: "Boston Celtics", Abbreviation: "BOS"},
	})

	mock.SetResponse("/playergamelog", testutil.NewTabularResponse(
		"PlayerGameLog",
		[]string{"SEASON_ID", "Player_ID", "Game_ID", "GAME_DATE", "MATCHUP", "WL", "MIN", "PTS", "AST", "REB", "STL", "BLK", "TOV"},
		[][]any{
			{"22023", 2544, "0022300001", "DEC 25, 2023", "LAL vs. BOS", "W", "35:24", 28, 8, 11, 2, 1, 3},
			{"22023", 2544, "0022300002", "DEC 28, 2023", "LAL @ BOS", "L", "38", 31, 5, 9, 1, 0, 4},
		},
	))

	pf := NewPlayerFetcher(client, fetcher, memStore, nil)
	if outcome := pf.FetchGameLogs(context.Background(), 2544, "2023-24"); outcome != OutcomeSucceeded {
		t.Fatalf("FetchGameLogs() = %v, want succeeded", outcome)
	}

	if memStore.GameLogCount() != 2 {
		t.Fatalf("GameLogCount() = %d, want 2", memStore.GameLogCount())
	}

	exists, _ := memStore.GameLogExists(context.Background(), 2544, "2023-24")
	if !exists {
		t.Fatal("game logs not persisted under the requested season")
	}
}

func TestPlayerFetcher_GameLogSkipIfExists(t *testing.T) {
	mock, client, fetcher, memStore := newFetchHarness(t)
	memStore.SeedGameLog(store.GameLog{PlayerID: 2544, GameID: "0022300001", Season: "2023-24"})

	pf := NewPlayerFetcher(client, fetcher, memStore, nil)
	if outcome := pf.FetchGameLogs(context.Background(), 2544, "2023-24"); outcome != OutcomeSkipped {
		t.Fatalf("FetchGameLogs() = %v, want skipped", outcome)
	}
	if got := mock.TotalRequests(); got != 0 {
		t.Errorf("upstream saw %d requests, want 0", got)
	}
}

func TestPlayerFetcher_EmptySeasonIsNotAFailure(t *testing.T) {
	mock, client, fetcher, memStore := newFetchHarness(t)
	mock.SetResponse("/playergamelog", testutil.NewTabularResponse(
		"PlayerGameLog",
		[]string{"SEASON_ID", "Player_ID", "Game_ID"},
		[][]any{},
	))

	pf := NewPlayerFetcher(client, fetcher, memStore, nil)
	if outcome := pf.FetchGameLogs(context.Background(), 9999, "2023-24"); outcome != OutcomeSucceeded {
		t.Fatalf("FetchGameLogs() = %v, want succeeded", outcome)
	}
	if memStore.GameLogCount() != 0 {
		t.Errorf("GameLogCount() = %d, want 0", memStore.GameLogCount())
	}
}

func TestMinutesPlayedNormalization(t *testing.T) {
	tests := []struct {
		raw  any
		want string
	}{
		{"35:24", "35:24"},
		{"38", "38:00"},
		{float64(42), "42:00"},
		{nil, "00:00"},
	}
	for _, tt := range tests {
		row := statsapi.Row{"min": tt.raw}
		if got := minutesPlayed(row); got != tt.want {
			t.Errorf("minutesPlayed(%v) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestOwnTricode(t *testing.T) {
	tests := []struct {
		matchup string
		want    string
	}{
		{"LAL vs. BOS", "LAL"},
		{"LAL @ BOS", "LAL"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ownTricode(tt.matchup); got != tt.want {
			t.Errorf("ownTricode(%q) = %q, want %q", tt.matchup, got, tt.want)
		}
	}
}
