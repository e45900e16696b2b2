package dataset

import (
	"strings"
	"time"
)

// Column names as they appear in the published delay dataset.
const (
	ColDate           = "Date"
	ColDeparture      = "Departure station"
	ColArrival        = "Arrival station"
	ColService        = "Service"
	ColRoute          = "Route"
	ColArrivalDelay   = "Average delay of all trains at arrival"
	ColDepartureDelay = "Average delay of all trains at departure"
	ColScheduled      = "Number of scheduled trains"
	ColCancelled      = "Number of cancelled trains"
	ColJourneyTime    = "Average journey time"
	ColDelayedOver15  = "Number of trains delayed > 15min"
	ColDelayScore     = "Total_Delay_Score"
	ColSeason         = "Season"
	ColCategory       = "Delay_Category"

	// CausePrefix marks delay-cause percentage columns, e.g. "Pct delay due to external causes".
	CausePrefix = "Pct delay due to "
)

// Value is an optional numeric cell. OK is false when the column is absent or the
// cell was empty or unparseable.
type Value struct {
	V  float64
	OK bool
}

// Some wraps a present value.
func Some(v float64) Value { return Value{V: v, OK: true} }

// Route is the ordered (departure, arrival) pair.
type Route struct {
	Departure string `json:"departure"`
	Arrival   string `json:"arrival"`
}

// Key is the grouping and display key of the route.
func (r Route) Key() string { return r.Departure + " - " + r.Arrival }

func (r Route) String() string { return r.Key() }

// Causes maps a cause identifier (the column name without CausePrefix) to a
// percentage in [0,100].
type Causes map[string]float64

// Record is one historical trip-period observation.
type Record struct {
	Date    time.Time
	HasDate bool

	Departure string
	Arrival   string
	Service   string
	Route     Route
	// RouteLabel is the explicit Route column, when the dataset has one.
	RouteLabel string

	ArrivalDelay   Value
	DepartureDelay Value
	Scheduled      Value
	Cancelled      Value
	JourneyTime    Value
	DelayedOver15  Value
	DelayScore     Value

	Causes   Causes
	Season   Season
	Category string

	// Extra holds any other numeric column, Labels any other textual column.
	Extra  map[string]float64
	Labels map[string]string
}

type numericField func(*Record) Value

var numericFields = map[string]numericField{
	norm(ColArrivalDelay):   func(r *Record) Value { return r.ArrivalDelay },
	norm(ColDepartureDelay): func(r *Record) Value { return r.DepartureDelay },
	norm(ColScheduled):      func(r *Record) Value { return r.Scheduled },
	norm(ColCancelled):      func(r *Record) Value { return r.Cancelled },
	norm(ColJourneyTime):    func(r *Record) Value { return r.JourneyTime },
	norm(ColDelayedOver15):  func(r *Record) Value { return r.DelayedOver15 },
	norm(ColDelayScore):     func(r *Record) Value { return r.DelayScore },
}

// Numeric looks up a numeric column by name (case-insensitive).
func (r *Record) Numeric(name string) Value {
	key := norm(name)
	if f, ok := numericFields[key]; ok {
		return f(r)
	}
	if id, ok := CauseID(name); ok {
		return r.Cause(id)
	}
	if v, ok := r.Extra[strings.TrimSpace(name)]; ok {
		return Some(v)
	}
	for k, v := range r.Extra {
		if norm(k) == key {
			return Some(v)
		}
	}
	return Value{}
}

// Cause returns the percentage recorded for a cause identifier.
func (r *Record) Cause(id string) Value {
	if v, ok := r.Causes[id]; ok {
		return Some(v)
	}
	for k, v := range r.Causes {
		if strings.EqualFold(k, id) {
			return Some(v)
		}
	}
	return Value{}
}

// Label looks up a categorical column by name (case-insensitive). Empty means missing.
func (r *Record) Label(name string) string {
	switch norm(name) {
	case norm(ColDeparture):
		return r.Departure
	case norm(ColArrival):
		return r.Arrival
	case norm(ColService):
		return r.Service
	case norm(ColSeason):
		return string(r.Season)
	case norm(ColRoute):
		if r.Departure == "" || r.Arrival == "" {
			return ""
		}
		return r.Route.Key()
	case norm(ColCategory):
		return r.Category
	}
	if v, ok := r.Labels[strings.TrimSpace(name)]; ok {
		return v
	}
	for k, v := range r.Labels {
		if norm(k) == norm(name) {
			return v
		}
	}
	return ""
}

// CauseID extracts the cause identifier from a cause column name.
func CauseID(column string) (string, bool) {
	c := strings.TrimSpace(column)
	if len(c) <= len(CausePrefix) || !strings.EqualFold(c[:len(CausePrefix)], CausePrefix) {
		return "", false
	}
	return strings.TrimSpace(c[len(CausePrefix):]), true
}

// CauseColumn builds the column name for a cause identifier.
func CauseColumn(id string) string { return CausePrefix + id }

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
