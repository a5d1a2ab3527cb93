package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/courtsight/nba-stats-ingest/pkg/store"
)

// MemStore is an in-memory store.Store for tests. It records every
// upsert and supports seeding rows to exercise skip-if-exists paths.
type MemStore struct {
	mu sync.Mutex

	players  map[int64]store.Player
	teams    map[int64]store.Team
	gameLogs map[string]store.GameLog // key player_id/game_id
	rosters  map[string]store.RosterEntry
	schedule map[string]store.ScheduledGame
	teamStat map[string]store.TeamGameStat

	// FailUpserts, when set, makes every write return an error.
	FailUpserts bool
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		players:  make(map[int64]store.Player),
		teams:    make(map[int64]store.Team),
		gameLogs: make(map[string]store.GameLog),
		rosters:  make(map[string]store.RosterEntry),
		schedule: make(map[string]store.ScheduledGame),
		teamStat: make(map[string]store.TeamGameStat),
	}
}

func (m *MemStore) CreateTables(ctx context.Context) error { return nil }

func (m *MemStore) PlayerExists(ctx context.Context, playerID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.players[playerID]
	return ok, nil
}

func (m *MemStore) GameLogExists(ctx context.Context, playerID int64, season string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.gameLogs {
		if g.PlayerID == playerID && g.Season == season {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) UpsertPlayer(ctx context.Context, p store.Player) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpserts {
		return fmt.Errorf("simulated write failure")
	}
	m.players[p.PlayerID] = p
	return nil
}

func (m *MemStore) UpsertTeams(ctx context.Context, teams []store.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpserts {
		return fmt.Errorf("simulated write failure")
	}
	for _, t := range teams {
		m.teams[t.TeamID] = t
	}
	return nil
}

func (m *MemStore) UpsertGameLogs(ctx context.Context, logs []store.GameLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpserts {
		return fmt.Errorf("simulated write failure")
	}
	for _, g := range logs {
		if err := g.Validate(); err != nil {
			return err
		}
		key := fmt.Sprintf("%d/%s", g.PlayerID, g.GameID)
		if _, ok := m.gameLogs[key]; ok {
			continue
		}
		m.gameLogs[key] = g
	}
	return nil
}

func (m *MemStore) UpsertRoster(ctx context.Context, entries []store.RosterEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpserts {
		return fmt.Errorf("simulated write failure")
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
		m.rosters[fmt.Sprintf("%d/%d/%s", e.TeamID, e.PlayerID, e.Season)] = e
	}
	return nil
}

func (m *MemStore) UpsertSchedule(ctx context.Context, games []store.ScheduledGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpserts {
		return fmt.Errorf("simulated write failure")
	}
	for _, g := range games {
		if err := g.Validate(); err != nil {
			return err
		}
		m.schedule[fmt.Sprintf("%s/%d", g.GameID, g.TeamID)] = g
	}
	return nil
}

func (m *MemStore) UpsertTeamGameStat(ctx context.Context, stat store.TeamGameStat) error {
	if err := stat.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpserts {
		return fmt.Errorf("simulated write failure")
	}
	m.teamStat[fmt.Sprintf("%s/%d", stat.GameID, stat.TeamID)] = stat
	return nil
}

func (m *MemStore) ListTeams(ctx context.Context) ([]store.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	teams := make([]store.Team, 0, len(m.teams))
	for _, t := range m.teams {
		teams = append(teams, t)
	}
	return teams, nil
}

func (m *MemStore) ListPlayerIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.players))
	for id := range m.players {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemStore) TeamIDByAbbreviation(ctx context.Context, abbreviation string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teams {
		if t.Abbreviation == abbreviation {
			return t.TeamID, nil
		}
	}
	return 0, store.ErrNotFound
}

func (m *MemStore) OpponentTeamID(ctx context.Context, gameID string, teamID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.schedule[fmt.Sprintf("%s/%d", gameID, teamID)]
	if !ok {
		return 0, store.ErrNotFound
	}
	return g.OpponentTeamID, nil
}

// SeedPlayer marks a player as already persisted.
func (m *MemStore) SeedPlayer(p store.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.PlayerID] = p
}

// SeedGameLog marks game logs as already persisted for a player/season.
func (m *MemStore) SeedGameLog(g store.GameLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gameLogs[fmt.Sprintf("%d/%s", g.PlayerID, g.GameID)] = g
}

// SeedTeams seeds the team table.
func (m *MemStore) SeedTeams(teams []store.Team) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range teams {
		m.teams[t.TeamID] = t
	}
}

// ScheduledGame returns one persisted schedule row.
func (m *MemStore) ScheduledGame(gameID string, teamID int64) (store.ScheduledGame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.schedule[fmt.Sprintf("%s/%d", gameID, teamID)]
	return g, ok
}

// PlayerCount reports how many players are persisted.
func (m *MemStore) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}

// GameLogCount reports how many game log rows are persisted.
func (m *MemStore) GameLogCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.gameLogs)
}

// RosterCount reports how many roster rows are persisted.
func (m *MemStore) RosterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rosters)
}

// ScheduleCount reports how many schedule rows are persisted.
func (m *MemStore) ScheduleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.schedule)
}

// TeamStatCount reports how many team box lines are persisted.
func (m *MemStore) TeamStatCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.teamStat)
}
