// Package features resolves a complete model input vector for a route selection by
// combining caller overrides, route history, dataset-wide statistics and defaults.
package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Value is a single feature value, numeric or categorical.
type Value struct {
	Num         float64
	Str         string
	Categorical bool
}

// Number builds a numeric value.
func Number(v float64) Value { return Value{Num: v} }

// Label builds a categorical value.
func Label(s string) Value { return Value{Str: s, Categorical: true} }

func (v Value) String() string {
	if v.Categorical {
		return v.Str
	}
	return strconv.FormatFloat(v.Num, 'f', -1, 64)
}

// Float returns the numeric value; categorical values parse their label.
func (v Value) Float() (float64, bool) {
	if !v.Categorical {
		return v.Num, true
	}
	f, err := strconv.ParseFloat(v.Str, 64)
	return f, err == nil
}

// MarshalJSON encodes numbers as JSON numbers and labels as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Categorical {
		return json.Marshal(v.Str)
	}
	return json.Marshal(v.Num)
}

// UnmarshalJSON accepts a JSON number or string.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Label(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("feature value must be a number or a string: %w", err)
	}
	*v = Number(f)
	return nil
}

// Vector maps feature names to values.
type Vector map[string]Value

// Names returns the feature names in lexical order.
func (v Vector) Names() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Tier records which fallback level produced a feature value.
type Tier int

const (
	TierOverride Tier = iota
	TierRoute
	TierDataset
	TierDefault
	// TierDerived marks values computed from the request time.
	TierDerived
)

var tierNames = [...]string{"override", "route", "dataset", "default", "derived"}

func (t Tier) String() string {
	if t >= 0 && int(t) < len(tierNames) {
		return tierNames[t]
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Tiers lists every tier in precedence order.
func Tiers() []Tier { return []Tier{TierOverride, TierRoute, TierDataset, TierDefault, TierDerived} }
