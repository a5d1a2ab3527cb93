package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/courtsight/nba-stats-ingest/pkg/cache"
	"github.com/courtsight/nba-stats-ingest/pkg/statsapi"
	"github.com/courtsight/nba-stats-ingest/pkg/store"
)

const (
	endpointAllPlayers = "commonallplayers"
	endpointPlayerInfo = "commonplayerinfo"
	endpointGameLog    = "playergamelog"

	playerIndexTTL = 6 * time.Hour
)

// PlayerFetcher acquires player biographies and per-game lines. All
// upstream calls go through the shared Fetcher, so they respect the
// rate limit and retry policy.
type PlayerFetcher struct {
	client  *statsapi.Client
	fetcher *Fetcher
	store   store.Store
	cache   *cache.Manager // optional, caches the league-wide index
	logger  zerolog.Logger
}

// NewPlayerFetcher creates a PlayerFetcher. cacheManager may be nil.
func NewPlayerFetcher(client *statsapi.Client, fetcher *Fetcher, st store.Store, cacheManager *cache.Manager) *PlayerFetcher {
	return &PlayerFetcher{
		client:  client,
		fetcher: fetcher,
		store:   st,
		cache:   cacheManager,
		logger:  log.With().Str("component", "player_fetcher").Logger(),
	}
}

// PlayerIndex returns the ids of all players active in the season.
// The league-wide index changes rarely, so the decoded payload is
// cached when a cache manager is configured.
func (pf *PlayerFetcher) PlayerIndex(ctx context.Context, season string) ([]int64, error) {
	params := url.Values{
		"LeagueID":            []string{"00"},
		"Season":              []string{season},
		"IsOnlyCurrentSeason": []string{"1"},
	}
	key := cache.Key{Endpoint: endpointAllPlayers, Params: params}

	resp, hit := pf.cachedIndex(ctx, key)
	if !hit {
		var err error
		resp, err = pf.fetcher.FetchEndpoint(ctx, pf.client.NewEndpoint(endpointAllPlayers, params))
		if err != nil {
			return nil, err
		}
		pf.storeIndex(ctx, key, resp)
	}

	set, ok := resp.Set("CommonAllPlayers")
	if !ok {
		set, ok = resp.Set("")
	}
	if !ok {
		return nil, errors.New("player index: no result set in response")
	}

	rows := set.Rows()
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if id := row.Int("person_id"); id > 0 {
			ids = append(ids, id)
		}
	}

	pf.logger.Info().
		Str("season", season).
		Int("players", len(ids)).
		Msg("Player index loaded")
	return ids, nil
}

func (pf *PlayerFetcher) cachedIndex(ctx context.Context, key cache.Key) (*statsapi.Response, bool) {
	if pf.cache == nil {
		return nil, false
	}
	data, err := pf.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			pf.logger.Warn().Err(err).Msg("Player index cache read failed")
		}
		return nil, false
	}
	// Decode validates row widths; a stale or mangled entry is evicted
	// and refetched rather than trusted.
	resp, err := statsapi.Decode(data)
	if err != nil {
		pf.logger.Warn().Err(err).Msg("Evicting invalid player index cache entry")
		_ = pf.cache.Delete(ctx, key)
		return nil, false
	}
	return resp, true
}

func (pf *PlayerFetcher) storeIndex(ctx context.Context, key cache.Key, resp *statsapi.Response) {
	if pf.cache == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := pf.cache.Set(ctx, key, data, playerIndexTTL); err != nil {
		pf.logger.Warn().Err(err).Msg("Player index cache write failed")
	}
}

// FetchPlayer acquires one player's biography. Players already
// persisted are skipped without an upstream call.
func (pf *PlayerFetcher) FetchPlayer(ctx context.Context, playerID int64) Outcome {
	exists, err := pf.store.PlayerExists(ctx, playerID)
	if err != nil {
		pf.logger.Error().Err(err).Int64("entity_id", playerID).Msg("Existence check failed")
		return OutcomeFailed
	}
	if exists {
		return OutcomeSkipped
	}

	params := url.Values{"PlayerID": []string{formatID(playerID)}}
	resp, err := pf.fetcher.FetchEndpoint(ctx, pf.client.NewEndpoint(endpointPlayerInfo, params))
	if err != nil {
		pf.logger.Warn().Err(err).Int64("entity_id", playerID).Msg("Player fetch failed")
		return OutcomeFailed
	}

	player, err := parsePlayer(resp, playerID)
	if err != nil {
		pf.logger.Warn().Err(err).Int64("entity_id", playerID).Msg("Player parse failed")
		return OutcomeFailed
	}

	if err := pf.store.UpsertPlayer(ctx, player); err != nil {
		pf.logger.Error().Err(err).Int64("entity_id", playerID).Msg("Player upsert failed")
		return OutcomeFailed
	}

	pf.logger.Debug().Int64("entity_id", playerID).Str("name", player.Name).Msg("Player stored")
	return OutcomeSucceeded
}

// FetchPlayers acquires biographies for all ids over a worker pool.
func (pf *PlayerFetcher) FetchPlayers(ctx context.Context, ids []int64, workers int) Summary {
	runner := NewRunner("players", workers)
	return runner.Run(ctx, ids, func(ctx context.Context, id int64) Outcome {
		return pf.FetchPlayer(ctx, id)
	})
}

// FetchGameLogs acquires one player's game lines for a season. A
// player with any persisted line in the season is skipped.
func (pf *PlayerFetcher) FetchGameLogs(ctx context.Context, playerID int64, season string) Outcome {
	exists, err := pf.store.GameLogExists(ctx, playerID, season)
	if err != nil {
		pf.logger.Error().Err(err).Int64("entity_id", playerID).Msg("Existence check failed")
		return OutcomeFailed
	}
	if exists {
		return OutcomeSkipped
	}

	params := url.Values{
		"PlayerID":   []string{formatID(playerID)},
		"Season":     []string{season},
		"SeasonType": []string{"Regular Season"},
	}
	resp, err := pf.fetcher.FetchEndpoint(ctx, pf.client.NewEndpoint(endpointGameLog, params))
	if err != nil {
		pf.logger.Warn().Err(err).Int64("entity_id", playerID).Str("season", season).Msg("Game log fetch failed")
		return OutcomeFailed
	}

	logs := pf.parseGameLogs(ctx, resp, playerID, season)
	if len(logs) == 0 {
		// A player with no appearances this season is not a failure.
		return OutcomeSucceeded
	}

	if err := pf.store.UpsertGameLogs(ctx, logs); err != nil {
		pf.logger.Error().Err(err).Int64("entity_id", playerID).Msg("Game log upsert failed")
		return OutcomeFailed
	}

	pf.logger.Debug().
		Int64("entity_id", playerID).
		Str("season", season).
		Int("games", len(logs)).
		Msg("Game logs stored")
	return OutcomeSucceeded
}

// FetchGameLogsBatch acquires game lines for all ids over a worker
// pool.
func (pf *PlayerFetcher) FetchGameLogsBatch(ctx context.Context, ids []int64, season string, workers int) Summary {
	runner := NewRunner("gamelogs", workers)
	return runner.Run(ctx, ids, func(ctx context.Context, id int64) Outcome {
		return pf.FetchGameLogs(ctx, id, season)
	})
}

// parsePlayer maps the CommonPlayerInfo result set to a Player record.
func parsePlayer(resp *statsapi.Response, playerID int64) (store.Player, error) {
	set, ok := resp.Set("CommonPlayerInfo")
	if !ok {
		return store.Player{}, errors.New("missing CommonPlayerInfo result set")
	}
	rows := set.Rows()
	if len(rows) == 0 {
		return store.Player{}, errors.New("empty CommonPlayerInfo result set")
	}
	row := rows[0]

	player := store.Player{
		PlayerID:   playerID,
		Name:       row.Str("display_first_last"),
		Position:   row.Str("position"),
		Weight:     int(row.Int("weight")),
		BornDate:   bornDate(row.Str("birthdate")),
		School:     row.Str("school"),
		Experience: int(row.Int("season_exp")),
	}
	player.Age = ageFrom(player.BornDate)

	if set, ok := resp.Set("AvailableSeasons"); ok {
		var seasons []string
		for _, r := range set.Rows() {
			if s := r.Str("season_id"); s != "" {
				seasons = append(seasons, s)
			}
		}
		player.AvailableSeasons = strings.Join(seasons, ",")
	}

	return player, player.Validate()
}

// parseGameLogs maps PlayerGameLog rows to GameLog records. The team
// is resolved from the matchup tricode; unknown tricodes leave the
// team unset rather than dropping the line.
func (pf *PlayerFetcher) parseGameLogs(ctx context.Context, resp *statsapi.Response, playerID int64, season string) []store.GameLog {
	set, ok := resp.Set("PlayerGameLog")
	if !ok {
		set, ok = resp.Set("")
	}
	if !ok {
		return nil
	}

	rows := set.Rows()
	logs := make([]store.GameLog, 0, len(rows))
	for _, row := range rows {
		gameLog := store.GameLog{
			PlayerID:      playerID,
			GameID:        row.Str("game_id"),
			Season:        season,
			Points:        int(row.Int("pts")),
			Assists:       int(row.Int("ast")),
			Rebounds:      int(row.Int("reb")),
			Steals:        int(row.Int("stl")),
			Blocks:        int(row.Int("blk")),
			Turnovers:     int(row.Int("tov")),
			MinutesPlayed: minutesPlayed(row),
		}
		if gameLog.GameID == "" {
			continue
		}

		if abbr := ownTricode(row.Str("matchup")); abbr != "" {
			teamID, err := pf.store.TeamIDByAbbreviation(ctx, abbr)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				pf.logger.Warn().Err(err).Str("tricode", abbr).Msg("Team lookup failed")
			}
			gameLog.TeamID = teamID
		}

		logs = append(logs, gameLog)
	}
	return logs
}

// minutesPlayed normalizes the MIN column, which arrives as "34:12",
// "34" or a bare number depending on the endpoint.
func minutesPlayed(row statsapi.Row) string {
	min := row.Str("min")
	if min == "" {
		return "00:00"
	}
	if !strings.Contains(min, ":") {
		min += ":00"
	}
	return min
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ownTricode extracts the player's own team tricode from a matchup
// string like "LAL vs. BOS" or "LAL @ BOS".
func ownTricode(matchup string) string {
	fields := strings.Fields(matchup)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// bornDate trims the timestamp suffix from "1984-12-30T00:00:00".
func bornDate(birthdate string) string {
	if i := strings.IndexByte(birthdate, 'T'); i >= 0 {
		return birthdate[:i]
	}
	return birthdate
}

// ageFrom computes full years since a "2006-01-02" date, 0 when the
// date does not parse.
func ageFrom(born string) int {
	t, err := time.Parse("2006-01-02", born)
	if err != nil {
		return 0
	}
	now := time.Now()
	age := now.Year() - t.Year()
	if now.YearDay() < t.YearDay() {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
