// Package store defines the typed persistence records for ingested
// entities and the Store contract the fetchers write through. Records
// carry a fixed field list; there is no dynamic column matching.
package store

import (
	"fmt"
	"time"
)

// Player is one player's biographical record, keyed by PlayerID.
type Player struct {
	PlayerID         int64
	Name             string
	Position         string
	Weight           int
	BornDate         string
	Age              int
	Experience       int
	School           string
	AvailableSeasons string
}

// Validate checks the record's natural key.
func (p Player) Validate() error {
	if p.PlayerID <= 0 {
		return fmt.Errorf("player record: missing player_id")
	}
	if p.Name == "" {
		return fmt.Errorf("player record %d: missing name", p.PlayerID)
	}
	return nil
}

// GameLog is one player's line in one game, keyed by (PlayerID, GameID).
type GameLog struct {
	PlayerID      int64
	GameID        string
	TeamID        int64
	Points        int
	Assists       int
	Rebounds      int
	Steals        int
	Blocks        int
	Turnovers     int
	MinutesPlayed string
	Season        string
}

// Validate checks the record's natural key.
func (g GameLog) Validate() error {
	if g.PlayerID <= 0 || g.GameID == "" {
		return fmt.Errorf("game log record: missing player_id/game_id")
	}
	if g.Season == "" {
		return fmt.Errorf("game log record %d/%s: missing season", g.PlayerID, g.GameID)
	}
	return nil
}

// RosterEntry is one player's spot on a team roster for a season,
// keyed by (TeamID, PlayerID, Season).
type RosterEntry struct {
	TeamID       int64
	PlayerID     int64
	PlayerName   string
	PlayerNumber int
	Position     string
	HowAcquired  string
	Season       string
}

// Validate checks the record's natural key.
func (r RosterEntry) Validate() error {
	if r.TeamID <= 0 || r.PlayerID <= 0 || r.Season == "" {
		return fmt.Errorf("roster record: missing team_id/player_id/season")
	}
	return nil
}

// ScheduledGame is one team's view of one scheduled or played game,
// keyed by (GameID, TeamID).
type ScheduledGame struct {
	GameID         string
	Season         string
	TeamID         int64
	OpponentTeamID int64
	GameDate       time.Time
	HomeOrAway     string // "H" or "A"
	Result         string // "W", "L" or "" for future games
	Score          string // "108 - 102" or "" for future games
}

// Validate checks the record's natural key.
func (s ScheduledGame) Validate() error {
	if s.GameID == "" || s.TeamID <= 0 {
		return fmt.Errorf("schedule record: missing game_id/team_id")
	}
	if s.HomeOrAway != "H" && s.HomeOrAway != "A" {
		return fmt.Errorf("schedule record %s/%d: home_or_away must be H or A", s.GameID, s.TeamID)
	}
	return nil
}

// TeamGameStat is one team's box line for one game, keyed by
// (GameID, TeamID).
type TeamGameStat struct {
	GameID        string
	TeamID        int64
	OpponentID    int64
	Season        string
	Points        int
	Rebounds      int
	Assists       int
	FieldGoalPct  float64
	ThreePointPct float64
}

// Validate checks the record's natural key.
func (t TeamGameStat) Validate() error {
	if t.GameID == "" || t.TeamID <= 0 {
		return fmt.Errorf("team game stat record: missing game_id/team_id")
	}
	return nil
}

// Team is a league team, keyed by TeamID.
type Team struct {
	TeamID       int64
	Name         string
	Abbreviation string
}
