package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/tardis-cli/internal/dataset"
	"github.com/KaramelBytes/tardis-cli/internal/severity"
)

// GroupKey selects the dimension records are grouped by.
type GroupKey int

const (
	ByMonth GroupKey = iota
	ByDepartureStation
	ByArrivalStation
	// ByStation counts a record under both its departure and arrival station.
	ByStation
	ByRoute
	BySeason
	ByCategory
	// ByCause groups cause percentages by cause identifier; the metric is ignored.
	ByCause
)

var groupKeyNames = map[GroupKey]string{
	ByMonth:            "month",
	ByDepartureStation: "departure",
	ByArrivalStation:   "arrival",
	ByStation:          "station",
	ByRoute:            "route",
	BySeason:           "season",
	ByCategory:         "category",
	ByCause:            "cause",
}

func (k GroupKey) String() string {
	if s, ok := groupKeyNames[k]; ok {
		return s
	}
	return fmt.Sprintf("GroupKey(%d)", int(k))
}

// ParseGroupKey reads a group key name as printed by String.
func ParseGroupKey(s string) (GroupKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range groupKeyNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown group key %q", s)
}

// Reducer folds the metric values of a group.
type Reducer int

const (
	Mean Reducer = iota
	Sum
	// Count counts non-missing metric values.
	Count
)

func (r Reducer) String() string {
	switch r {
	case Mean:
		return "mean"
	case Sum:
		return "sum"
	case Count:
		return "count"
	}
	return fmt.Sprintf("Reducer(%d)", int(r))
}

// ParseReducer reads a reducer name.
func ParseReducer(s string) (Reducer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean", "avg", "":
		return Mean, nil
	case "sum":
		return Sum, nil
	case "count":
		return Count, nil
	}
	return 0, fmt.Errorf("unknown reducer %q", s)
}

// Order selects the direction of TopK.
type Order int

const (
	Desc Order = iota
	Asc
)

// Metric names a numeric column.
type Metric string

const (
	ArrivalDelay   Metric = dataset.ColArrivalDelay
	DepartureDelay Metric = dataset.ColDepartureDelay
	Cancelled      Metric = dataset.ColCancelled
	Scheduled      Metric = dataset.ColScheduled
	JourneyTime    Metric = dataset.ColJourneyTime
	DelayedOver15  Metric = dataset.ColDelayedOver15
	DelayScore     Metric = dataset.ColDelayScore
)

// Of returns the metric value of a record.
func (m Metric) Of(r *dataset.Record) dataset.Value { return r.Numeric(string(m)) }

// Group is one aggregated entry.
type Group struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	// Count is the number of non-missing values reduced into Value.
	Count int `json:"count"`
}

type acc struct {
	sum float64
	n   int
}

// Aggregate groups the view and reduces the metric per group. Missing metric values
// are skipped and groups without any value are omitted. Seasons follow the season
// cycle, categories severity order, months chronological order, other keys lexical order.
func Aggregate(v View, key GroupKey, metric Metric, red Reducer) []Group {
	accs := map[string]*acc{}
	add := func(k string, val dataset.Value) {
		if k == "" || !val.OK {
			return
		}
		a := accs[k]
		if a == nil {
			a = &acc{}
			accs[k] = a
		}
		a.sum += val.V
		a.n++
	}
	v.Each(func(r *dataset.Record) {
		switch key {
		case ByCause:
			for id, pct := range r.Causes {
				add(id, dataset.Some(pct))
			}
		case ByStation:
			val := metric.Of(r)
			add(r.Departure, val)
			if r.Arrival != r.Departure {
				add(r.Arrival, val)
			}
		default:
			add(groupValue(r, key), metric.Of(r))
		}
	})
	out := make([]Group, 0, len(accs))
	for k, a := range accs {
		out = append(out, Group{Key: k, Value: reduce(a, red), Count: a.n})
	}
	sortGroups(out, key)
	return out
}

// TopK returns the k groups with the largest (Desc) or smallest (Asc) reduced value.
// Ties are broken by ascending key. k <= 0 returns every group.
func TopK(v View, key GroupKey, metric Metric, red Reducer, k int, order Order) []Group {
	gs := Aggregate(v, key, metric, red)
	sort.SliceStable(gs, func(i, j int) bool {
		if gs[i].Value == gs[j].Value {
			return gs[i].Key < gs[j].Key
		}
		if order == Asc {
			return gs[i].Value < gs[j].Value
		}
		return gs[i].Value > gs[j].Value
	})
	if k > 0 && len(gs) > k {
		gs = gs[:k]
	}
	return gs
}

func groupValue(r *dataset.Record, key GroupKey) string {
	switch key {
	case ByMonth:
		if !r.HasDate {
			return ""
		}
		return r.Date.Format("2006-01")
	case ByDepartureStation:
		return r.Departure
	case ByArrivalStation:
		return r.Arrival
	case ByRoute:
		if r.Departure == "" || r.Arrival == "" {
			return ""
		}
		return r.Route.Key()
	case BySeason:
		return string(r.Season)
	case ByCategory:
		return CategoryOf(r)
	}
	return ""
}

// CategoryOf returns the record's severity label: the dataset's own category column
// when present, otherwise the category of its arrival delay.
func CategoryOf(r *dataset.Record) string {
	if r.Category != "" {
		if c, ok := severity.Parse(r.Category); ok {
			return c.String()
		}
		return r.Category
	}
	if r.ArrivalDelay.OK {
		return severity.Categorize(r.ArrivalDelay.V).String()
	}
	return ""
}

func reduce(a *acc, red Reducer) float64 {
	switch red {
	case Sum:
		return a.sum
	case Count:
		return float64(a.n)
	default:
		return a.sum / float64(a.n)
	}
}

func sortGroups(gs []Group, key GroupKey) {
	var rank func(string) int
	switch key {
	case BySeason:
		rank = dataset.SeasonRank
	case ByCategory:
		rank = severity.Rank
	}
	sort.Slice(gs, func(i, j int) bool {
		if rank != nil {
			ri, rj := rank(gs[i].Key), rank(gs[j].Key)
			if ri < 0 {
				ri = 1 << 30
			}
			if rj < 0 {
				rj = 1 << 30
			}
			if ri != rj {
				return ri < rj
			}
		}
		return gs[i].Key < gs[j].Key
	})
}
