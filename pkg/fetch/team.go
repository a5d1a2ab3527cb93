package fetch

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/courtsight/nba-stats-ingest/pkg/statsapi"
	"github.com/courtsight/nba-stats-ingest/pkg/store"
)

const (
	endpointTeamRoster  = "commonteamroster"
	endpointTeamGameLog = "teamgamelog"
)

// leagueTeams is the fixed set of franchises. The upstream has no
// cheap teams endpoint, and the set changes only on expansion or
// relocation, so it ships as seed data.
var leagueTeams = []store.Team{
	{TeamID: 1610612737, Name: "Atlanta Hawks", Abbreviation: "ATL"},
	{TeamID: 1610612738, Name: "Boston Celtics", Abbreviation: "BOS"},
	{TeamID: 1610612739, Name: "Cleveland Cavaliers", Abbreviation: "CLE"},
	{TeamID: 1610612740, Name: "New Orleans Pelicans", Abbreviation: "NOP"},
	{TeamID: 1610612741, Name: "Chicago Bulls", Abbreviation: "CHI"},
	{TeamID: 1610612742, Name: "Dallas Mavericks", Abbreviation: "DAL"},
	{TeamID: 1610612743, Name: "Denver Nuggets", Abbreviation: "DEN"},
	{TeamID: 1610612744, Name: "Golden State Warriors", Abbreviation: "GSW"},
	{TeamID: 1610612745, Name: "Houston Rockets", Abbreviation: "HOU"},
	{TeamID: 1610612746, Name: "LA Clippers", Abbreviation: "LAC"},
	{TeamID: 1610612747, Name: "Los Angeles Lakers", Abbreviation: "LAL"},
	{TeamID: 1610612748, Name: "Miami Heat", Abbreviation: "MIA"},
	{TeamID: 1610612749, Name: "Milwaukee Bucks", Abbreviation: "MIL"},
	{TeamID: 1610612750, Name: "Minnesota Timberwolves", Abbreviation: "MIN"},
	{TeamID: 1610612751, Name: "Brooklyn Nets", Abbreviation: "BKN"},
	{TeamID: 1610612752, Name: "New York Knicks", Abbreviation: "NYK"},
	{TeamID: 1610612753, Name: "Orlando Magic", Abbreviation: "ORL"},
	{TeamID: 1610612754, Name: "Indiana Pacers", Abbreviation: "IND"},
	{TeamID: 1610612755, Name: "Philadelphia 76ers", Abbreviation: "PHI"},
	{TeamID: 1610612756, Name: "Phoenix Suns", Abbreviation: "PHX"},
	{TeamID: 1610612757, Name: "Portland Trail Blazers", Abbreviation: "POR"},
	{TeamID: 1610612758, Name: "Sacramento Kings", Abbreviation: "SAC"},
	{TeamID: 1610612759, Name: "San Antonio Spurs", Abbreviation: "SAS"},
	{TeamID: 1610612760, Name: "Oklahoma City Thunder", Abbreviation: "OKC"},
	{TeamID: 1610612761, Name: "Toronto Raptors", Abbreviation: "TOR"},
	{TeamID: 1610612762, Name: "Utah Jazz", Abbreviation: "UTA"},
	{TeamID: 1610612763, Name: "Memphis Grizzlies", Abbreviation: "MEM"},
	{TeamID: 1610612764, Name: "Washington Wizards", Abbreviation: "WAS"},
	{TeamID: 1610612765, Name: "Detroit Pistons", Abbreviation: "DET"},
	{TeamID: 1610612766, Name: "Charlotte Hornets", Abbreviation: "CHA"},
}

// TeamFetcher seeds the team table and acquires season rosters.
type TeamFetcher struct {
	client  *statsapi.Client
	fetcher *Fetcher
	store   store.Store
	logger  zerolog.Logger
}

// NewTeamFetcher creates a TeamFetcher.
func NewTeamFetcher(client *statsapi.Client, fetcher *Fetcher, st store.Store) *TeamFetcher {
	return &TeamFetcher{
		client:  client,
		fetcher: fetcher,
		store:   st,
		logger:  log.With().Str("component", "team_fetcher").Logger(),
	}
}

// SeedTeams upserts the franchise table. Idempotent; run before any
// task that resolves tricodes.
func (tf *TeamFetcher) SeedTeams(ctx context.Context) error {
	if err := tf.store.UpsertTeams(ctx, leagueTeams); err != nil {
		return err
	}
	tf.logger.Info().Int("teams", len(leagueTeams)).Msg("Teams seeded")
	return nil
}

// FetchRoster acquires one team's roster for a season.
func (tf *TeamFetcher) FetchRoster(ctx context.Context, teamID int64, season string) Outcome {
	params := url.Values{
		"TeamID": []string{formatID(teamID)},
		"Season": []string{season},
	}
	resp, err := tf.fetcher.FetchEndpoint(ctx, tf.client.NewEndpoint(endpointTeamRoster, params))
	if err != nil {
		tf.logger.Warn().Err(err).Int64("entity_id", teamID).Str("season", season).Msg("Roster fetch failed")
		return OutcomeFailed
	}

	entries, err := parseRoster(resp, teamID, season)
	if err != nil {
		tf.logger.Warn().Err(err).Int64("entity_id", teamID).Msg("Roster parse failed")
		return OutcomeFailed
	}
	if len(entries) == 0 {
		return OutcomeSucceeded
	}

	if err := tf.store.UpsertRoster(ctx, entries); err != nil {
		tf.logger.Error().Err(err).Int64("entity_id", teamID).Msg("Roster upsert failed")
		return OutcomeFailed
	}

	tf.logger.Debug().
		Int64("entity_id", teamID).
		Str("season", season).
		Int("players", len(entries)).
		Msg("Roster stored")
	return OutcomeSucceeded
}

// FetchRosters acquires all teams' rosters over a worker pool.
func (tf *TeamFetcher) FetchRosters(ctx context.Context, season string, workers int) (Summary, error) {
	teams, err := tf.store.ListTeams(ctx)
	if err != nil {
		return Summary{}, err
	}
	if len(teams) == 0 {
		return Summary{}, errors.New("no teams persisted, seed teams first")
	}

	ids := make([]int64, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.TeamID)
	}

	runner := NewRunner("rosters", workers)
	return runner.Run(ctx, ids, func(ctx context.Context, id int64) Outcome {
		return tf.FetchRoster(ctx, id, season)
	}), nil
}

// FetchTeamGameStats acquires one team's box lines for a season from
// its game log. The opponent comes from the schedule when present,
// falling back to the matchup tricode.
func (tf *TeamFetcher) FetchTeamGameStats(ctx context.Context, teamID int64, season string) Outcome {
	params := url.Values{
		"TeamID":     []string{formatID(teamID)},
		"Season":     []string{season},
		"SeasonType": []string{"Regular Season"},
	}
	resp, err := tf.fetcher.FetchEndpoint(ctx, tf.client.NewEndpoint(endpointTeamGameLog, params))
	if err != nil {
		tf.logger.Warn().Err(err).Int64("entity_id", teamID).Str("season", season).Msg("Team game log fetch failed")
		return OutcomeFailed
	}

	stats := tf.parseTeamGameLog(ctx, resp, teamID, season)
	for _, stat := range stats {
		if err := tf.store.UpsertTeamGameStat(ctx, stat); err != nil {
			tf.logger.Error().Err(err).Int64("entity_id", teamID).Str("game_id", stat.GameID).Msg("Team game stat upsert failed")
			return OutcomeFailed
		}
	}

	tf.logger.Debug().
		Int64("entity_id", teamID).
		Str("season", season).
		Int("games", len(stats)).
		Msg("Team game stats stored")
	return OutcomeSucceeded
}

// FetchAllTeamGameStats acquires box lines for every team over a
// worker pool.
func (tf *TeamFetcher) FetchAllTeamGameStats(ctx context.Context, season string, workers int) (Summary, error) {
	teams, err := tf.store.ListTeams(ctx)
	if err != nil {
		return Summary{}, err
	}
	if len(teams) == 0 {
		return Summary{}, errors.New("no teams persisted, seed teams first")
	}

	ids := make([]int64, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.TeamID)
	}

	runner := NewRunner("teamstats", workers)
	return runner.Run(ctx, ids, func(ctx context.Context, id int64) Outcome {
		return tf.FetchTeamGameStats(ctx, id, season)
	}), nil
}

// parseTeamGameLog maps TeamGameLog rows to TeamGameStat records.
func (tf *TeamFetcher) parseTeamGameLog(ctx context.Context, resp *statsapi.Response, teamID int64, season string) []store.TeamGameStat {
	set, ok := resp.Set("TeamGameLog")
	if !ok {
		set, ok = resp.Set("")
	}
	if !ok {
		return nil
	}

	rows := set.Rows()
	stats := make([]store.TeamGameStat, 0, len(rows))
	for _, row := range rows {
		gameID := row.Str("game_id")
		if gameID == "" {
			continue
		}
		stats = append(stats, store.TeamGameStat{
			GameID:        gameID,
			TeamID:        teamID,
			OpponentID:    tf.resolveOpponent(ctx, gameID, teamID, row.Str("matchup")),
			Season:        season,
			Points:        int(row.Int("pts")),
			Rebounds:      int(row.Int("reb")),
			Assists:       int(row.Int("ast")),
			FieldGoalPct:  row.Float("fg_pct"),
			ThreePointPct: row.Float("fg3_pct"),
		})
	}
	return stats
}

// resolveOpponent prefers the schedule, falling back to the matchup
// tricode when the game is not scheduled yet.
func (tf *TeamFetcher) resolveOpponent(ctx context.Context, gameID string, teamID int64, matchup string) int64 {
	if id, err := tf.store.OpponentTeamID(ctx, gameID, teamID); err == nil {
		return id
	}

	fields := strings.Fields(matchup)
	if len(fields) == 0 {
		return 0
	}
	id, err := tf.store.TeamIDByAbbreviation(ctx, fields[len(fields)-1])
	if err != nil {
		return 0
	}
	return id
}

// parseRoster maps CommonTeamRoster rows to RosterEntry records.
func parseRoster(resp *statsapi.Response, teamID int64, season string) ([]store.RosterEntry, error) {
	set, ok := resp.Set("CommonTeamRoster")
	if !ok {
		set, ok = resp.Set("")
	}
	if !ok {
		return nil, errors.New("missing CommonTeamRoster result set")
	}

	rows := set.Rows()
	entries := make([]store.RosterEntry, 0, len(rows))
	for _, row := range rows {
		playerID := row.Int("player_id")
		if playerID <= 0 {
			continue
		}
		entries = append(entries, store.RosterEntry{
			TeamID:       teamID,
			PlayerID:     playerID,
			PlayerName:   row.Str("player"),
			PlayerNumber: int(row.Int("num")),
			Position:     row.Str("position"),
			HowAcquired:  row.Str("how_acquired"),
			Season:       season,
		})
	}
	return entries, nil
}
