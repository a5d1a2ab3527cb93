package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "endpoint no params",
			key: Key{
				Endpoint: "commonallplayers",
			},
			want: "nba:commonallplayers",
		},
		{
			name: "endpoint with one param",
			key: Key{
				Endpoint: "commonplayerinfo",
				Params:   url.Values{"PlayerID": []string{"2544"}},
			},
			want: "nba:commonplayerinfo:PlayerID=2544",
		},
		{
			name: "multiple params sorted",
			key: Key{
				Endpoint: "playergamelog",
				Params: url.Values{
					"Season":     []string{"2023-24"},
					"PlayerID":   []string{"2544"},
					"SeasonType": []string{"Regular Season"},
				},
			},
			want: "nba:playergamelog:PlayerID=2544:Season=2023-24:SeasonType=Regular Season",
		},
		{
			name: "leading slash normalized",
			key: Key{
				Endpoint: "/scoreboardv2/",
			},
			want: "nba:scoreboardv2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_StringDeterministic(t *testing.T) {
	key := Key{
		Endpoint: "playergamelog",
		Params: url.Values{
			"Season":   []string{"2023-24"},
			"PlayerID": []string{"2544"},
		},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}
