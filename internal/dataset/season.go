package dataset

import (
	"strings"
	"time"
)

// Season is a meteorological season label.
type Season string

const (
	Winter Season = "Winter"
	Spring Season = "Spring"
	Summer Season = "Summer"
	Fall   Season = "Fall"
)

// Seasons returns the fixed season cycle used for ordering.
func Seasons() []Season { return []Season{Winter, Spring, Summer, Fall} }

// SeasonOf derives the season of a month: Dec-Feb Winter, Mar-May Spring,
// Jun-Aug Summer, Sep-Nov Fall.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Fall
	}
}

// ParseSeason accepts the canonical labels in any case, plus "Autumn".
func ParseSeason(s string) (Season, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "winter":
		return Winter, true
	case "spring":
		return Spring, true
	case "summer":
		return Summer, true
	case "fall", "autumn":
		return Fall, true
	}
	return "", false
}

// SeasonRank is the position of a label in the season cycle, -1 if unknown.
func SeasonRank(label string) int {
	s, ok := ParseSeason(label)
	if !ok {
		return -1
	}
	for i, v := range Seasons() {
		if v == s {
			return i
		}
	}
	return -1
}
