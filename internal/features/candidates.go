package features

import (
	"fmt"

	"github.com/KaramelBytes/tardis-cli/internal/analysis"
	"github.com/KaramelBytes/tardis-cli/internal/dataset"
)

// Departures lists the departure stations of the view.
func Departures(view analysis.View) []string {
	return view.Distinct(dataset.ColDeparture)
}

// ArrivalCandidates lists the arrival stations reachable from departure in the view.
// When the departure has no recorded connection every arrival station is returned
// together with a warning.
func ArrivalCandidates(view analysis.View, departure string) ([]string, *Warning) {
	valid := view.Where(func(r *dataset.Record) bool { return r.Departure == departure }).
		Distinct(dataset.ColArrival)
	if len(valid) > 0 {
		return valid, nil
	}
	return view.Distinct(dataset.ColArrival), &Warning{
		Code:    WarnNoConnections,
		Message: fmt.Sprintf("no recorded connections from %s; showing all arrival stations", departure),
	}
}

// RouteStats are the historical figures shown next to a route selection.
type RouteStats struct {
	Route          dataset.Route `json:"route"`
	Records        int           `json:"records"`
	JourneyTime    analysis.Stat `json:"journey_time"`
	Scheduled      analysis.Stat `json:"scheduled"`
	Cancelled      analysis.Stat `json:"cancelled"`
	DepartureDelay analysis.Stat `json:"departure_delay"`
	// ArrivalDelay is shown for reference; it is the prediction target.
	ArrivalDelay analysis.Stat `json:"arrival_delay"`
}

// RouteProfile computes the mean route figures over the view.
func RouteProfile(view analysis.View, route dataset.Route) RouteStats {
	rv := view.Route(route)
	return RouteStats{
		Route:          route,
		Records:        rv.Len(),
		JourneyTime:    analysis.MeanOf(rv, analysis.JourneyTime),
		Scheduled:      analysis.MeanOf(rv, analysis.Scheduled),
		Cancelled:      analysis.MeanOf(rv, analysis.Cancelled),
		DepartureDelay: analysis.MeanOf(rv, analysis.DepartureDelay),
		ArrivalDelay:   analysis.MeanOf(rv, analysis.ArrivalDelay),
	}
}
