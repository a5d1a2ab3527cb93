package store

import (
	"context"
	"errors"
)

// ErrNotFound indicates a lookup matched no row.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract the fetchers write through. All
// upserts are idempotent: keyed by natural composite keys, safe to call
// twice with identical data.
type Store interface {
	// CreateTables performs idempotent schema setup.
	CreateTables(ctx context.Context) error

	// PlayerExists reports whether a player is already persisted.
	PlayerExists(ctx context.Context, playerID int64) (bool, error)

	// GameLogExists reports whether any game log rows exist for a
	// player in a season.
	GameLogExists(ctx context.Context, playerID int64, season string) (bool, error)

	UpsertPlayer(ctx context.Context, p Player) error
	UpsertTeams(ctx context.Context, teams []Team) error
	UpsertGameLogs(ctx context.Context, logs []GameLog) error
	UpsertRoster(ctx context.Context, entries []RosterEntry) error
	UpsertSchedule(ctx context.Context, games []ScheduledGame) error
	UpsertTeamGameStat(ctx context.Context, stat TeamGameStat) error

	// ListTeams returns all known teams.
	ListTeams(ctx context.Context) ([]Team, error)

	// ListPlayerIDs returns the ids of all persisted players.
	ListPlayerIDs(ctx context.Context) ([]int64, error)

	// TeamIDByAbbreviation resolves a team tricode ("BOS") to its id.
	// Returns ErrNotFound for unknown tricodes.
	TeamIDByAbbreviation(ctx context.Context, abbreviation string) (int64, error)

	// OpponentTeamID resolves the other team of a scheduled game.
	// Returns ErrNotFound when the game is not in the schedule.
	OpponentTeamID(ctx context.Context, gameID string, teamID int64) (int64, error)
}
