package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/courtsight/nba-stats-ingest/pkg/statsapi"
	"github.com/courtsight/nba-stats-ingest/pkg/store"
)

const endpointLeagueGameLog = "leaguegamelog"

// ScheduleFetcher acquires the season schedule and per-team box lines.
// Both come from the league-wide team game log, one upstream call per
// season.
type ScheduleFetcher struct {
	client  *statsapi.Client
	fetcher *Fetcher
	store   store.Store
	logger  zerolog.Logger
}

// NewScheduleFetcher creates a ScheduleFetcher.
func NewScheduleFetcher(client *statsapi.Client, fetcher *Fetcher, st store.Store) *ScheduleFetcher {
	return &ScheduleFetcher{
		client:  client,
		fetcher: fetcher,
		store:   st,
		logger:  log.With().Str("component", "schedule_fetcher").Logger(),
	}
}

// FetchSchedule acquires all played games of a season and persists one
// schedule row and one box line per team per game.
func (sf *ScheduleFetcher) FetchSchedule(ctx context.Context, season string) error {
	params := url.Values{
		"LeagueID":     []string{"00"},
		"Season":       []string{season},
		"SeasonType":   []string{"Regular Season"},
		"PlayerOrTeam": []string{"T"},
	}
	resp, err := sf.fetcher.FetchEndpoint(ctx, sf.client.NewEndpoint(endpointLeagueGameLog, params))
	if err != nil {
		return fmt.Errorf("fetch league game log: %w", err)
	}

	games, stats, err := sf.parseLeagueGameLog(ctx, resp, season)
	if err != nil {
		return err
	}

	if err := sf.store.UpsertSchedule(ctx, games); err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	for _, stat := range stats {
		if err := sf.store.UpsertTeamGameStat(ctx, stat); err != nil {
			return fmt.Errorf("upsert team game stat: %w", err)
		}
	}

	sf.logger.Info().
		Str("season", season).
		Int("games", len(games)).
		Msg("Schedule stored")
	return nil
}

// parseLeagueGameLog maps team rows to schedule and box line records.
// Each game appears twice, once per team; the opponent and final score
// are derived from the matchup and the plus-minus.
func (sf *ScheduleFetcher) parseLeagueGameLog(ctx context.Context, resp *statsapi.Response, season string) ([]store.ScheduledGame, []store.TeamGameStat, error) {
	set, ok := resp.Set("LeagueGameLog")
	if !ok {
		set, ok = resp.Set("")
	}
	if !ok {
		return nil, nil, errors.New("missing LeagueGameLog result set")
	}

	rows := set.Rows()
	games := make([]store.ScheduledGame, 0, len(rows))
	stats := make([]store.TeamGameStat, 0, len(rows))

	for _, row := range rows {
		gameID := row.Str("game_id")
		teamID := row.Int("team_id")
		if gameID == "" || teamID <= 0 {
			continue
		}

		matchup := row.Str("matchup")
		opponentID := sf.opponentID(ctx, matchup)

		gameDate, err := time.Parse("2006-01-02", row.Str("game_date"))
		if err != nil {
			sf.logger.Warn().
				Str("game_id", gameID).
				Str("game_date", row.Str("game_date")).
				Msg("Unparseable game date, skipping row")
			continue
		}

		points := int(row.Int("pts"))
		opponentPoints := points - int(row.Int("plus_minus"))

		games = append(games, store.ScheduledGame{
			GameID:         gameID,
			Season:         season,
			TeamID:         teamID,
			OpponentTeamID: opponentID,
			GameDate:       gameDate,
			HomeOrAway:     homeOrAway(matchup),
			Result:         row.Str("wl"),
			Score:          fmt.Sprintf("%d - %d", points, opponentPoints),
		})

		stats = append(stats, store.TeamGameStat{
			GameID:        gameID,
			TeamID:        teamID,
			OpponentID:    opponentID,
			Season:        season,
			Points:        points,
			Rebounds:      int(row.Int("reb")),
			Assists:       int(row.Int("ast")),
			FieldGoalPct:  row.Float("fg_pct"),
			ThreePointPct: row.Float("fg3_pct"),
		})
	}

	return games, stats, nil
}

// opponentID resolves the opponent tricode at the end of a matchup
// string. Unknown tricodes leave the opponent unset.
func (sf *ScheduleFetcher) opponentID(ctx context.Context, matchup string) int64 {
	fields := strings.Fields(matchup)
	if len(fields) == 0 {
		return 0
	}
	abbr := fields[len(fields)-1]
	id, err := sf.store.TeamIDByAbbreviation(ctx, abbr)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			sf.logger.Warn().Err(err).Str("tricode", abbr).Msg("Opponent lookup failed")
		}
		return 0
	}
	return id
}

// homeOrAway reads the matchup separator: "LAL vs. BOS" is a home
// game, "LAL @ BOS" an away game.
func homeOrAway(matchup string) string {
	if strings.Contains(matchup, "@") {
		return "A"
	}
	return "H"
}
