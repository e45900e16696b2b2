package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tardis-cli/internal/dataset"
)

var header = []string{
	"Date", "Service", "Departure station", "Arrival station",
	"Average delay of all trains at departure", "Average delay of all trains at arrival",
	"Number of cancelled trains", "Pct delay due to external causes", "Pct delay due to infrastructure",
}

var rows = [][]string{
	{"2023-01-15", "National", "A", "B", "2", "10", "1", "20", "30"},
	{"2023-02-15", "National", "A", "B", "4", "20", "0", "40", "10"},
	{"2023-07-01", "International", "C", "D", "8", "100", "3", "10", "50"},
	{"2023-04-10", "National", "B", "A", "1", "", "2", "", ""},
	{"2023-12-31", "International", "D", "C", "3", "50", "0", "5", "5"},
}

func fixture(t *testing.T) *dataset.Store {
	t.Helper()
	st, _, err := dataset.FromRows("trips.csv", header, rows, dataset.Options{})
	require.NoError(t, err)
	require.Equal(t, 5, st.Len())
	return st
}

func date(y int, m time.Month, d, h int) *time.Time {
	t := time.Date(y, m, d, h, 0, 0, 0, time.UTC)
	return &t
}

func keys(gs []Group) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.Key
	}
	return out
}

func TestFilterPredicates(t *testing.T) {
	st := fixture(t)

	assert.Equal(t, 5, Filter(st, Predicates{}).Len())
	assert.Equal(t, 3, Filter(st, Predicates{Station: "A"}).Len(), "departure or arrival")
	assert.Equal(t, 3, Filter(st, Predicates{Station: "B"}).Len())
	assert.True(t, Filter(st, Predicates{Station: "Z"}).Empty())
	assert.Equal(t, 2, Filter(st, Predicates{Service: "International"}).Len())

	// day granularity on both bounds
	v := Filter(st, Predicates{Start: date(2023, 1, 15, 18), End: date(2023, 7, 1, 0)})
	assert.Equal(t, 4, v.Len())
	assert.Equal(t, 1, Filter(st, Predicates{Start: date(2023, 12, 31, 0), End: date(2023, 12, 31, 0)}).Len())
}

func TestFilterIsMonotonic(t *testing.T) {
	st := fixture(t)
	loose := Filter(st, Predicates{Station: "A"})
	strict := Filter(st, Predicates{Station: "A", Start: date(2023, 2, 1, 0)})
	assert.LessOrEqual(t, strict.Len(), loose.Len())
	in := map[*dataset.Record]bool{}
	loose.Each(func(r *dataset.Record) { in[r] = true })
	strict.Each(func(r *dataset.Record) { assert.True(t, in[r]) })
}

func TestFilterRecordsWithoutDate(t *testing.T) {
	st, _, err := dataset.FromRows("x", header, [][]string{
		{"", "National", "A", "B", "1", "2", "0", "", ""},
		{"2023-03-01", "National", "A", "B", "1", "2", "0", "", ""},
	}, dataset.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, Filter(st, Predicates{Station: "A"}).Len())
	assert.Equal(t, 1, Filter(st, Predicates{End: date(2024, 1, 1, 0)}).Len())
}

func TestServiceFilterSkippedWithSingleService(t *testing.T) {
	st, _, err := dataset.FromRows("x", header, rows[:2], dataset.Options{})
	require.NoError(t, err)
	require.Len(t, st.Services(), 1)
	assert.Equal(t, 2, Filter(st, Predicates{Service: "International"}).Len())
}

func TestFilterNilStore(t *testing.T) {
	v := Filter(nil, Predicates{Station: "A"})
	assert.True(t, v.Empty())
	assert.Empty(t, Aggregate(v, ByRoute, ArrivalDelay, Mean))
	assert.False(t, BuildOverview(v).AverageDelay.Available)
}

func TestAggregateByRouteSkipsMissing(t *testing.T) {
	gs := Aggregate(All(fixture(t)), ByRoute, ArrivalDelay, Mean)
	require.Equal(t, []string{"A - B", "C - D", "D - C"}, keys(gs))
	assert.InDelta(t, 15, gs[0].Value, 1e-9)
	assert.Equal(t, 2, gs[0].Count)
}

func TestAggregateReducers(t *testing.T) {
	v := All(fixture(t))
	sum := Aggregate(v, ByDepartureStation, Cancelled, Sum)
	assert.Equal(t, []Group{{"A", 1, 2}, {"B", 2, 1}, {"C", 3, 1}, {"D", 0, 1}}, sum)

	both := Aggregate(v, ByStation, DepartureDelay, Count)
	assert.Equal(t, []Group{{"A", 3, 3}, {"B", 3, 3}, {"C", 2, 2}, {"D", 2, 2}}, both)
}

func TestAggregateMonthsAndSeasons(t *testing.T) {
	v := All(fixture(t))
	months := Aggregate(v, ByMonth, ArrivalDelay, Mean)
	assert.Equal(t, []string{"2023-01", "2023-02", "2023-07", "2023-12"}, keys(months))

	seasons := Aggregate(v, BySeason, ArrivalDelay, Mean)
	require.Equal(t, []string{"Winter", "Summer"}, keys(seasons))
	assert.InDelta(t, 80.0/3, seasons[0].Value, 1e-9)
}

func TestCategoryCountsInSeverityOrder(t *testing.T) {
	gs := CategoryCounts(All(fixture(t)))
	assert.Equal(t, []Group{{"Moderate", 1, 1}, {"Significant", 1, 1}, {"Severe", 2, 2}}, gs)
}

func TestCategoryOfPrefersExplicitLabel(t *testing.T) {
	r := &dataset.Record{ArrivalDelay: dataset.Some(3), Category: "severe"}
	assert.Equal(t, "Severe", CategoryOf(r))
	r.Category = ""
	assert.Equal(t, "Minimal", CategoryOf(r))
	assert.Equal(t, "", CategoryOf(&dataset.Record{}))
}

func TestAggregateCauses(t *testing.T) {
	gs := Aggregate(All(fixture(t)), ByCause, "", Mean)
	require.Equal(t, []string{"external causes", "infrastructure"}, keys(gs))
	assert.InDelta(t, 18.75, gs[0].Value, 1e-9)
	assert.InDelta(t, 23.75, gs[1].Value, 1e-9)
	assert.Equal(t, 4, gs[1].Count)
}

func TestTopKOrderingAndTies(t *testing.T) {
	v := All(fixture(t))
	top := TopK(v, ByRoute, ArrivalDelay, Mean, 2, Desc)
	assert.Equal(t, []string{"C - D", "D - C"}, keys(top))

	counts := TopK(v, ByArrivalStation, ArrivalDelay, Count, 0, Desc)
	assert.Equal(t, []string{"B", "C", "D"}, keys(counts))

	low := TopK(v, ByRoute, ArrivalDelay, Mean, 1, Asc)
	assert.Equal(t, []string{"A - B"}, keys(low))
}

func TestDescribe(t *testing.T) {
	s, ok := Describe(All(fixture(t)), ArrivalDelay)
	require.True(t, ok)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 100.0, s.Max)
	assert.InDelta(t, 45, s.Mean, 1e-9)
	assert.InDelta(t, 35, s.Median, 1e-9)
	assert.InDelta(t, 40.4145, s.Std, 1e-3)
	assert.Equal(t, 0, s.Outliers)

	_, ok = Describe(Filter(fixture(t), Predicates{Station: "Z"}), ArrivalDelay)
	assert.False(t, ok)
}

func TestBuildOverviewAvailability(t *testing.T) {
	o := BuildOverview(All(fixture(t)))
	assert.Equal(t, 5, o.Records)
	assert.Equal(t, Stat{Value: 45, Available: true}, o.AverageDelay)
	assert.Equal(t, Stat{Value: 6, Available: true}, o.CancelledTrains)
	assert.False(t, o.DelayedOver15.Available)
	assert.False(t, o.AverageDelayScore.Available)
	assert.Len(t, o.MonthlyTrend, 4)
	assert.Len(t, o.Causes, 2)

	md := o.Markdown()
	assert.Contains(t, md, "[KEY METRICS]")
	assert.Contains(t, md, "Trains > 15min late: N/A")
}

func TestAnalyzeDelays(t *testing.T) {
	da := AnalyzeDelays(All(fixture(t)))
	require.NotNil(t, da.Stats)
	assert.Len(t, da.Seasons, 2)
	assert.Len(t, da.Categories, 3)

	empty := AnalyzeDelays(Filter(fixture(t), Predicates{Station: "Z"}))
	assert.Nil(t, empty.Stats)
	assert.Contains(t, empty.Markdown(), "no arrival delay values")
}

func TestRankAndProfileStations(t *testing.T) {
	v := All(fixture(t))
	si := RankStations(v, 2)
	assert.Equal(t, []string{"C", "A"}, keys(si.TopDeparture), "ties by key")
	assert.Equal(t, []string{"D", "C"}, keys(si.TopArrival))
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, si.Stations)

	p := ProfileStation(v, "A")
	assert.Equal(t, 2, p.AsDeparture.Records)
	assert.Equal(t, Stat{Value: 3, Available: true}, p.AsDeparture.AverageDelay)
	assert.Equal(t, 1, p.AsArrival.Records)
	assert.False(t, p.AsArrival.AverageDelay.Available)
	assert.True(t, strings.HasPrefix(p.Markdown(), "[A AS DEPARTURE STATION]"))
}

func TestCompareRoutes(t *testing.T) {
	v := All(fixture(t))
	cmp, err := Compare(v, []string{"A - B", "C - D", "X - Y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A - B", "C - D"}, keys(cmp.Means))
	require.Len(t, cmp.Monthly, 2)
	assert.Equal(t, []string{"2023-01", "2023-02"}, keys(cmp.Monthly[0].Groups))
	require.Len(t, cmp.Causes, 2)

	_, err = Compare(v, []string{"1", "2", "3", "4", "5", "6"})
	assert.ErrorIs(t, err, ErrTooManyRoutes)
}

func TestRankRoutes(t *testing.T) {
	ri := RankRoutes(All(fixture(t)), 0)
	assert.Len(t, ri.Top, 3)
	assert.Equal(t, []string{"A - B", "B - A", "C - D", "D - C"}, ri.Routes)
}

func TestParseRoute(t *testing.T) {
	r, err := ParseRoute(" PARIS LYON - MARSEILLE ST CHARLES ")
	require.NoError(t, err)
	assert.Equal(t, dataset.Route{Departure: "PARIS LYON", Arrival: "MARSEILLE ST CHARLES"}, r)
	_, err = ParseRoute("PARIS")
	assert.Error(t, err)
}

func TestParseGroupKeyRoundTrip(t *testing.T) {
	for k := ByMonth; k <= ByCause; k++ {
		got, err := ParseGroupKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseGroupKey("weekday")
	assert.Error(t, err)
}
