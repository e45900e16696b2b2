// Package severity maps delay magnitudes to the ordered severity categories
// shared by analytics breakdowns and prediction results.
package severity

import (
	"fmt"
	"strings"
)

// Category is an ordered delay severity class.
type Category int

const (
	Minimal Category = iota
	Moderate
	Significant
	Severe
)

// Upper bounds (inclusive, minutes) of every band except Severe.
const (
	MinimalMax     = 5.0
	ModerateMax    = 15.0
	SignificantMax = 30.0
)

// Categorize returns the severity category for a delay in minutes.
// Each band includes its upper bound; Severe is open-ended above 30.
func Categorize(minutes float64) Category {
	switch {
	case minutes <= MinimalMax:
		return Minimal
	case minutes <= ModerateMax:
		return Moderate
	case minutes <= SignificantMax:
		return Significant
	default:
		return Severe
	}
}

// All returns every category in severity order.
func All() []Category {
	return []Category{Minimal, Moderate, Significant, Severe}
}

func (c Category) String() string {
	switch c {
	case Minimal:
		return "Minimal"
	case Moderate:
		return "Moderate"
	case Significant:
		return "Significant"
	case Severe:
		return "Severe"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Parse reads a category label case-insensitively.
func Parse(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return Minimal, true
	case "moderate":
		return Moderate, true
	case "significant":
		return Significant, true
	case "severe":
		return Severe, true
	}
	return 0, false
}

// Rank returns the position of a label in severity order, or -1 for unknown labels.
func Rank(label string) int {
	c, ok := Parse(label)
	if !ok {
		return -1
	}
	return int(c)
}

func (c Category) MarshalText() ([]byte, error) {
	if c < Minimal || c > Severe {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	v, ok := Parse(string(b))
	if !ok {
		return fmt.Errorf("unknown severity category %q", string(b))
	}
	*c = v
	return nil
}
