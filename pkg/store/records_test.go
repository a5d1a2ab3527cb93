package store

import (
	"strings"
	"testing"
	"time"
)

func TestPlayerValidate(t *testing.T) {
	tests := []struct {
		name    string
		player  Player
		wantErr string
	}{
		{
			name:   "valid",
			player: Player{PlayerID: 2544, Name: "LeBron James"},
		},
		{
			name:    "missing id",
			player:  Player{Name: "LeBron James"},
			wantErr: "player_id",
		},
		{
			name:    "missing name",
			player:  Player{PlayerID: 2544},
			wantErr: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.player.Validate()
			checkValidateErr(t, err, tt.wantErr)
		})
	}
}

func TestGameLogValidate(t *testing.T) {
	tests := []struct {
		name    string
		log     GameLog
		wantErr string
	}{
		{
			name: "valid",
			log:  GameLog{PlayerID: 2544, GameID: "0022300001", Season: "2023-24"},
		},
		{
			name:    "missing game id",
			log:     GameLog{PlayerID: 2544, Season: "2023-24"},
			wantErr: "game_id",
		},
		{
			name:    "missing season",
			log:     GameLog{PlayerID: 2544, GameID: "0022300001"},
			wantErr: "season",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.log.Validate()
			checkValidateErr(t, err, tt.wantErr)
		})
	}
}

func TestRosterEntryValidate(t *testing.T) {
	valid := RosterEntry{TeamID: 1610612747, PlayerID: 2544, Season: "2023-24"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	missing := RosterEntry{TeamID: 1610612747, PlayerID: 2544}
	if err := missing.Validate(); err == nil {
		t.Fatal("Validate() without season = nil, want error")
	}
}

func TestScheduledGameValidate(t *testing.T) {
	base := ScheduledGame{
		GameID:         "0022300001",
		Season:         "2023-24",
		TeamID:         1610612747,
		OpponentTeamID: 1610612738,
		GameDate:       time.Date(2023, 10, 24, 0, 0, 0, 0, time.UTC),
		HomeOrAway:     "H",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	away := base
	away.HomeOrAway = "A"
	if err := away.Validate(); err != nil {
		t.Fatalf("Validate() away = %v, want nil", err)
	}

	bad := base
	bad.HomeOrAway = "X"
	if err := bad.Validate(); err == nil {
		t.Fatal("Validate() with home_or_away=X = nil, want error")
	}

	noGame := base
	noGame.GameID = ""
	if err := noGame.Validate(); err == nil {
		t.Fatal("Validate() without game_id = nil, want error")
	}
}

func TestTeamGameStatValidate(t *testing.T) {
	valid := TeamGameStat{GameID: "0022300001", TeamID: 1610612747, Season: "2023-24"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	missing := TeamGameStat{GameID: "0022300001"}
	if err := missing.Validate(); err == nil {
		t.Fatal("Validate() without team_id = nil, want error")
	}
}

func checkValidateErr(t *testing.T, err error, want string) {
	t.Helper()
	if want == "" {
		if err != nil {
			t.Fatalf("Validate() = %v, want nil", err)
		}
		return
	}
	if err == nil {
		t.Fatalf("Validate() = nil, want error containing %q", want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("Validate() = %v, want error containing %q", err, want)
	}
}
