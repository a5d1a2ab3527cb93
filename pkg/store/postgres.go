package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Schema DDL. Composite primary keys carry the ON CONFLICT contracts.
const (
	ddlPlayers = `
		CREATE TABLE IF NOT EXISTS players (
			player_id BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			position VARCHAR(50),
			weight INT,
			born_date VARCHAR(25),
			age INT,
			exp INT,
			school VARCHAR(255),
			available_seasons TEXT
		)`

	ddlTeams = `
		CREATE TABLE IF NOT EXISTS teams (
			team_id BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			abbreviation VARCHAR(10) NOT NULL
		)`

	ddlGameLogs = `
		CREATE TABLE IF NOT EXISTS gamelogs (
			player_id BIGINT NOT NULL,
			game_id VARCHAR NOT NULL,
			team_id BIGINT NOT NULL,
			points INT DEFAULT 0,
			assists INT DEFAULT 0,
			rebounds INT DEFAULT 0,
			steals INT DEFAULT 0,
			blocks INT DEFAULT 0,
			turnovers INT DEFAULT 0,
			minutes_played VARCHAR DEFAULT '00:00',
			season VARCHAR NOT NULL,
			PRIMARY KEY (player_id, game_id)
		)`

	ddlRosters = `
		CREATE TABLE IF NOT EXISTS rosters (
			team_id BIGINT NOT NULL,
			player_id BIGINT NOT NULL,
			player_name VARCHAR(255),
			player_number INT DEFAULT 0,
			position VARCHAR(50),
			how_acquired VARCHAR(255),
			season VARCHAR NOT NULL,
			PRIMARY KEY (team_id, player_id, season)
		)`

	ddlSchedule = `
		CREATE TABLE IF NOT EXISTS game_schedule (
			game_id VARCHAR NOT NULL,
			season VARCHAR NOT NULL,
			team_id BIGINT NOT NULL,
			opponent_team_id BIGINT NOT NULL,
			game_date DATE NOT NULL,
			home_or_away CHAR(1) NOT NULL,
			result VARCHAR(1),
			score VARCHAR(20),
			PRIMARY KEY (game_id, team_id)
		)`

	ddlTeamGameStats = `
		CREATE TABLE IF NOT EXISTS team_game_stats (
			game_id VARCHAR NOT NULL,
			team_id BIGINT NOT NULL,
			opponent_team_id BIGINT,
			season VARCHAR NOT NULL,
			points INT DEFAULT 0,
			rebounds INT DEFAULT 0,
			assists INT DEFAULT 0,
			fg_pct DOUBLE PRECISION DEFAULT 0,
			fg3_pct DOUBLE PRECISION DEFAULT 0,
			PRIMARY KEY (game_id, team_id)
		)`
)

const (
	queryUpsertPlayer = `
		INSERT INTO players (player_id, name, position, weight, born_date, age, exp, school, available_seasons)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (player_id) DO UPDATE SET
			name = EXCLUDED.name,
			position = EXCLUDED.position,
			weight = EXCLUDED.weight,
			born_date = EXCLUDED.born_date,
			age = EXCLUDED.age,
			exp = EXCLUDED.exp,
			school = EXCLUDED.school,
			available_seasons = EXCLUDED.available_seasons`

	queryUpsertTeam = `
		INSERT INTO teams (team_id, name, abbreviation)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id) DO UPDATE SET
			name = EXCLUDED.name,
			abbreviation = EXCLUDED.abbreviation`

	queryUpsertGameLog = `
		INSERT INTO gamelogs (player_id, game_id, team_id, points, assists, rebounds, steals, blocks, turnovers, minutes_played, season)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (player_id, game_id) DO NOTHING`

	queryUpsertRosterEntry = `
		INSERT INTO rosters (team_id, player_id, player_name, player_number, position, how_acquired, season)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (team_id, player_id, season) DO UPDATE SET
			player_name = EXCLUDED.player_name,
			player_number = EXCLUDED.player_number,
			position = EXCLUDED.position,
			how_acquired = EXCLUDED.how_acquired`

	queryUpsertScheduledGame = `
		INSERT INTO game_schedule (game_id, season, team_id, opponent_team_id, game_date, home_or_away, result, score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id, team_id) DO UPDATE SET
			opponent_team_id = EXCLUDED.opponent_team_id,
			game_date = EXCLUDED.game_date,
			home_or_away = EXCLUDED.home_or_away,
			result = EXCLUDED.result,
			score = EXCLUDED.score`

	queryUpsertTeamGameStat = `
		INSERT INTO team_game_stats (game_id, team_id, opponent_team_id, season, points, rebounds, assists, fg_pct, fg3_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (game_id, team_id) DO UPDATE SET
			opponent_team_id = EXCLUDED.opponent_team_id,
			points = EXCLUDED.points,
			rebounds = EXCLUDED.rebounds,
			assists = EXCLUDED.assists,
			fg_pct = EXCLUDED.fg_pct,
			fg3_pct = EXCLUDED.fg3_pct`
)

// Postgres is the pgxpool-backed Store implementation. Connections are
// acquired and released per call from the pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgres connects to the database and verifies the connection.
// A failure here is fatal to the run.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Postgres{
		pool:   pool,
		logger: log.With().Str("component", "store").Logger(),
	}, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// CreateTables performs idempotent schema setup.
func (s *Postgres) CreateTables(ctx context.Context) error {
	for _, ddl := range []string{ddlPlayers, ddlTeams, ddlGameLogs, ddlRosters, ddlSchedule, ddlTeamGameStats} {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// PlayerExists reports whether a player row exists.
func (s *Postgres) PlayerExists(ctx context.Context, playerID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM players WHERE player_id = $1)`, playerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("player exists: %w", err)
	}
	return exists, nil
}

// GameLogExists reports whether any game log rows exist for a player in
// a season.
func (s *Postgres) GameLogExists(ctx context.Context, playerID int64, season string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM gamelogs WHERE player_id = $1 AND season = $2)`,
		playerID, season).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("game log exists: %w", err)
	}
	return exists, nil
}

// UpsertPlayer inserts or updates a player row.
func (s *Postgres) UpsertPlayer(ctx context.Context, p Player) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, queryUpsertPlayer,
		p.PlayerID, p.Name, p.Position, p.Weight, p.BornDate, p.Age, p.Experience, p.School, p.AvailableSeasons)
	if err != nil {
		return fmt.Errorf("upsert player %d: %w", p.PlayerID, err)
	}
	return nil
}

// UpsertTeams writes all teams in one batched round trip.
func (s *Postgres) UpsertTeams(ctx context.Context, teams []Team) error {
	if len(teams) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range teams {
		batch.Queue(queryUpsertTeam, t.TeamID, t.Name, t.Abbreviation)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert %d teams: %w", len(teams), err)
	}
	return nil
}

// UpsertGameLogs writes game logs in one batched round trip.
func (s *Postgres) UpsertGameLogs(ctx context.Context, logs []GameLog) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, g := range logs {
		if err := g.Validate(); err != nil {
			return err
		}
		batch.Queue(queryUpsertGameLog,
			g.PlayerID, g.GameID, g.TeamID, g.Points, g.Assists, g.Rebounds,
			g.Steals, g.Blocks, g.Turnovers, g.MinutesPlayed, g.Season)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert %d game logs: %w", len(logs), err)
	}
	return nil
}

// UpsertRoster writes roster entries in one batched round trip.
func (s *Postgres) UpsertRoster(ctx context.Context, entries []RosterEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
		batch.Queue(queryUpsertRosterEntry,
			e.TeamID, e.PlayerID, e.PlayerName, e.PlayerNumber, e.Position, e.HowAcquired, e.Season)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert %d roster entries: %w", len(entries), err)
	}
	return nil
}

// UpsertSchedule writes scheduled games in one batched round trip.
func (s *Postgres) UpsertSchedule(ctx context.Context, games []ScheduledGame) error {
	if len(games) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, g := range games {
		if err := g.Validate(); err != nil {
			return err
		}
		result := nullable(g.Result)
		score := nullable(g.Score)
		batch.Queue(queryUpsertScheduledGame,
			g.GameID, g.Season, g.TeamID, g.OpponentTeamID, g.GameDate, g.HomeOrAway, result, score)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert %d scheduled games: %w", len(games), err)
	}
	return nil
}

// UpsertTeamGameStat inserts or updates one team's box line.
func (s *Postgres) UpsertTeamGameStat(ctx context.Context, stat TeamGameStat) error {
	if err := stat.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, queryUpsertTeamGameStat,
		stat.GameID, stat.TeamID, stat.OpponentID, stat.Season,
		stat.Points, stat.Rebounds, stat.Assists, stat.FieldGoalPct, stat.ThreePointPct)
	if err != nil {
		return fmt.Errorf("upsert team game stat %s/%d: %w", stat.GameID, stat.TeamID, err)
	}
	return nil
}

// ListTeams returns all known teams.
func (s *Postgres) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := s.pool.Query(ctx, `SELECT team_id, name, abbreviation FROM teams ORDER BY team_id`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.TeamID, &t.Name, &t.Abbreviation); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// ListPlayerIDs returns the ids of all persisted players.
func (s *Postgres) ListPlayerIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT player_id FROM players ORDER BY player_id`)
	if err != nil {
		return nil, fmt.Errorf("list player ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan player id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TeamIDByAbbreviation resolves a team tricode to its id.
func (s *Postgres) TeamIDByAbbreviation(ctx context.Context, abbreviation string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT team_id FROM teams WHERE abbreviation = $1`, abbreviation).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("team by abbreviation %q: %w", abbreviation, err)
	}
	return id, nil
}

// OpponentTeamID resolves the other team of a scheduled game.
func (s *Postgres) OpponentTeamID(ctx context.Context, gameID string, teamID int64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT opponent_team_id FROM game_schedule WHERE game_id = $1 AND team_id = $2`,
		gameID, teamID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("opponent for game %s team %d: %w", gameID, teamID, err)
	}
	return id, nil
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
