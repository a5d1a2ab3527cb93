package fetch

import (
	"fmt"
	"time"
)

// CurrentSeason returns the season string for now, e.g. "2023-24".
// A new season starts in October; before that the previous season is
// still current.
func CurrentSeason() string {
	return seasonAt(time.Now())
}

func seasonAt(t time.Time) string {
	year := t.Year()
	if t.Month() < time.October {
		year--
	}
	return SeasonString(year)
}

// SeasonString formats a season from its starting year: 2023 becomes
// "2023-24".
func SeasonString(startYear int) string {
	return fmt.Sprintf("%d-%02d", startYear, (startYear+1)%100)
}

// SeasonRange returns the season strings from startYear through
// endYear inclusive.
func SeasonRange(startYear, endYear int) []string {
	if endYear < startYear {
		return nil
	}
	seasons := make([]string, 0, endYear-startYear+1)
	for year := startYear; year <= endYear; year++ {
		seasons = append(seasons, SeasonString(year))
	}
	return seasons
}
