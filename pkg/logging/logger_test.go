package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("default level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("default config should emit JSON, not pretty output")
	}
}

func TestSetup_EmitsAtConfiguredLevel(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		emit  func(logger zerolog.Logger)
		want  string
	}{
		{
			name:  "debug_level",
			level: LevelDebug,
			emit:  func(l zerolog.Logger) { l.Debug().Int64("entity_id", 2544).Msg("Player stored") },
			want:  "Player stored",
		},
		{
			name:  "info_level",
			level: LevelInfo,
			emit:  func(l zerolog.Logger) { l.Info().Str("season", "2023-24").Msg("Player index loaded") },
			want:  "Player index loaded",
		},
		{
			name:  "warn_level",
			level: LevelWarn,
			emit:  func(l zerolog.Logger) { l.Warn().Str("proxy", "10.0.0.7:8080").Msg("Proxy call failed") },
			want:  "Proxy call failed",
		},
		{
			name:  "error_level",
			level: LevelError,
			emit:  func(l zerolog.Logger) { l.Error().Str("task", "gamelogs").Msg("Batch aborted") },
			want:  "Batch aborted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.emit(logger)

			if output := buf.String(); !strings.Contains(output, tt.want) {
				t.Errorf("output = %q, want it to contain %q", output, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_CarriesComponentAndFields(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("proxy-pool")
	logger.Info().
		Int64("entity_id", 1610612738).
		Str("season", "2023-24").
		Str("outcome", "succeeded").
		Msg("Roster stored")

	output := buf.String()
	for _, want := range []string{
		`"component":"proxy-pool"`,
		`"entity_id":1610612738`,
		`"season":"2023-24"`,
		`"outcome":"succeeded"`,
		"Roster stored",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output = %q, want it to contain %q", output, want)
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("player_fetcher")

	// Below the configured level, must not appear.
	logger.Debug().Int64("entity_id", 2544).Msg("Player stored")
	logger.Info().Str("season", "2023-24").Msg("Player index loaded")

	// At or above the configured level, must appear.
	logger.Warn().Int64("entity_id", 2544).Msg("Player fetch failed")
	logger.Error().Int64("entity_id", 2544).Msg("Player upsert failed")

	output := buf.String()
	if strings.Contains(output, "Player stored") {
		t.Error("debug entry should be filtered out at warn level")
	}
	if strings.Contains(output, "Player index loaded") {
		t.Error("info entry should be filtered out at warn level")
	}
	if !strings.Contains(output, "Player fetch failed") {
		t.Error("warn entry missing at warn level")
	}
	if !strings.Contains(output, "Player upsert failed") {
		t.Error("error entry missing at warn level")
	}
}
