package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/tardis-cli/internal/dataset"
)

// DefaultTopK is the number of stations or routes listed in rankings.
const DefaultTopK = 15

// MaxCompareRoutes caps how many routes Compare accepts.
const MaxCompareRoutes = 5

// ErrTooManyRoutes is returned by Compare when more than the allowed routes are requested.
var ErrTooManyRoutes = errors.New("too many routes to compare")

// Overview holds the headline figures of a view.
type Overview struct {
	Records           int     `json:"records"`
	AverageDelay      Stat    `json:"average_delay"`
	CancelledTrains   Stat    `json:"cancelled_trains"`
	DelayedOver15     Stat    `json:"delayed_over_15"`
	AverageDelayScore Stat    `json:"average_delay_score"`
	MonthlyTrend      []Group `json:"monthly_trend"`
	Causes            []Group `json:"causes"`
}

// BuildOverview computes the key metrics, the monthly arrival-delay trend and the
// average share of each delay cause.
func BuildOverview(v View) Overview {
	return Overview{
		Records:           v.Len(),
		AverageDelay:      MeanOf(v, ArrivalDelay),
		CancelledTrains:   SumOf(v, Cancelled),
		DelayedOver15:     SumOf(v, DelayedOver15),
		AverageDelayScore: MeanOf(v, DelayScore),
		MonthlyTrend:      Aggregate(v, ByMonth, ArrivalDelay, Mean),
		Causes:            Aggregate(v, ByCause, "", Mean),
	}
}

// DelayAnalysis describes the arrival-delay distribution of a view.
type DelayAnalysis struct {
	Stats      *Summary `json:"stats,omitempty"`
	Seasons    []Group  `json:"seasons"`
	Categories []Group  `json:"categories"`
}

// AnalyzeDelays summarizes arrival delays, their seasonal pattern and how many records
// fall in each severity category.
func AnalyzeDelays(v View) DelayAnalysis {
	var da DelayAnalysis
	if s, ok := Describe(v, ArrivalDelay); ok {
		da.Stats = &s
	}
	da.Seasons = Aggregate(v, BySeason, ArrivalDelay, Mean)
	da.Categories = CategoryCounts(v)
	return da
}

// CategoryCounts counts records per severity category, in severity order.
func CategoryCounts(v View) []Group {
	counts := map[string]int{}
	v.Each(func(r *dataset.Record) {
		if c := CategoryOf(r); c != "" {
			counts[c]++
		}
	})
	out := make([]Group, 0, len(counts))
	for k, n := range counts {
		out = append(out, Group{Key: k, Value: float64(n), Count: n})
	}
	sortGroups(out, ByCategory)
	return out
}

// StationInsights ranks stations by average departure and arrival delay.
type StationInsights struct {
	TopDeparture []Group  `json:"top_departure"`
	TopArrival   []Group  `json:"top_arrival"`
	Stations     []string `json:"stations"`
}

// RankStations returns the k worst departure and arrival stations.
func RankStations(v View, k int) StationInsights {
	if k <= 0 {
		k = DefaultTopK
	}
	st := StationInsights{
		TopDeparture: TopK(v, ByDepartureStation, DepartureDelay, Mean, k, Desc),
		TopArrival:   TopK(v, ByArrivalStation, ArrivalDelay, Mean, k, Desc),
	}
	seen := map[string]bool{}
	for _, s := range append(v.Distinct(dataset.ColDeparture), v.Distinct(dataset.ColArrival)...) {
		if !seen[s] {
			seen[s] = true
			st.Stations = append(st.Stations, s)
		}
	}
	return st
}

// StationSide describes a station in one direction of travel.
type StationSide struct {
	Records      int     `json:"records"`
	AverageDelay Stat    `json:"average_delay"`
	Monthly      []Group `json:"monthly"`
}

// StationProfile describes a station as departure and as arrival.
type StationProfile struct {
	Station     string      `json:"station"`
	AsDeparture StationSide `json:"as_departure"`
	AsArrival   StationSide `json:"as_arrival"`
}

// ProfileStation computes the departure-delay profile of trips leaving the station and
// the arrival-delay profile of trips reaching it.
func ProfileStation(v View, station string) StationProfile {
	dep := v.Where(func(r *dataset.Record) bool { return r.Departure == station })
	arr := v.Where(func(r *dataset.Record) bool { return r.Arrival == station })
	return StationProfile{
		Station: station,
		AsDeparture: StationSide{
			Records:      dep.Len(),
			AverageDelay: MeanOf(dep, DepartureDelay),
			Monthly:      Aggregate(dep, ByMonth, DepartureDelay, Mean),
		},
		AsArrival: StationSide{
			Records:      arr.Len(),
			AverageDelay: MeanOf(arr, ArrivalDelay),
			Monthly:      Aggregate(arr, ByMonth, ArrivalDelay, Mean),
		},
	}
}

// RouteInsights ranks routes by average arrival delay.
type RouteInsights struct {
	Top    []Group  `json:"top"`
	Routes []string `json:"routes"`
}

// RankRoutes returns the k routes with the highest average arrival delay and every
// route of the view.
func RankRoutes(v View, k int) RouteInsights {
	if k <= 0 {
		k = DefaultTopK
	}
	return RouteInsights{
		Top:    TopK(v, ByRoute, ArrivalDelay, Mean, k, Desc),
		Routes: v.Distinct(dataset.ColRoute),
	}
}

// RouteSeries is a per-route list of groups (monthly means or cause shares).
type RouteSeries struct {
	Route  string  `json:"route"`
	Groups []Group `json:"groups"`
}

// RouteComparison compares selected routes.
type RouteComparison struct {
	Means   []Group       `json:"means"`
	Monthly []RouteSeries `json:"monthly"`
	Causes  []RouteSeries `json:"causes"`
}

// Compare computes the average arrival delay, the monthly trend and the cause breakdown
// of each selected route. Routes are "<departure> - <arrival>" keys.
func Compare(v View, routes []string) (RouteComparison, error) {
	if len(routes) > MaxCompareRoutes {
		return RouteComparison{}, fmt.Errorf("%w: %d requested, at most %d", ErrTooManyRoutes, len(routes), MaxCompareRoutes)
	}
	want := map[string]bool{}
	for _, r := range routes {
		want[strings.TrimSpace(r)] = true
	}
	sel := v.Where(func(r *dataset.Record) bool { return want[r.Route.Key()] })
	cmp := RouteComparison{Means: Aggregate(sel, ByRoute, ArrivalDelay, Mean)}
	for _, g := range cmp.Means {
		key := g.Key
		rv := sel.Where(func(r *dataset.Record) bool { return r.Route.Key() == key })
		cmp.Monthly = append(cmp.Monthly, RouteSeries{Route: key, Groups: Aggregate(rv, ByMonth, ArrivalDelay, Mean)})
		if causes := Aggregate(rv, ByCause, "", Mean); len(causes) > 0 {
			cmp.Causes = append(cmp.Causes, RouteSeries{Route: key, Groups: causes})
		}
	}
	return cmp, nil
}

// ParseRoute splits a "<departure> - <arrival>" key.
func ParseRoute(key string) (dataset.Route, error) {
	dep, arr, ok := strings.Cut(key, " - ")
	if !ok || strings.TrimSpace(dep) == "" || strings.TrimSpace(arr) == "" {
		return dataset.Route{}, fmt.Errorf("invalid route %q (want \"<departure> - <arrival>\")", key)
	}
	return dataset.Route{Departure: strings.TrimSpace(dep), Arrival: strings.TrimSpace(arr)}, nil
}
