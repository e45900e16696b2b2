package features

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tardis-cli/internal/analysis"
	"github.com/KaramelBytes/tardis-cli/internal/dataset"
	"github.com/KaramelBytes/tardis-cli/internal/severity"
)

const (
	depDelay = "Average delay of all trains at departure"
	weather  = "Pct delay due to weather"
)

func store(t *testing.T) *dataset.Store {
	t.Helper()
	header := []string{"Date", "Service", "Departure station", "Arrival station", depDelay,
		"Average delay of all trains at arrival", weather}
	rows := [][]string{
		{"2023-01-10", "National", "A", "B", "10", "12", "5"},
		{"2023-02-10", "TER", "A", "B", "20", "18", ""},
		{"2023-03-10", "National", "C", "D", "100", "90", "15"},
	}
	st, _, err := dataset.FromRows("trips.csv", header, rows, dataset.Options{})
	require.NoError(t, err)
	return st
}

func fixedClock() time.Time { return time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC) }

func newResolver(opts ...Option) *Resolver {
	return NewResolver(
		[]string{depDelay, weather, "Average journey time", FeatureYear, FeatureMonth},
		[]string{"Departure station", "Arrival station", "Service", "Platform"},
		append([]Option{WithClock(fixedClock)}, opts...)...,
	)
}

func TestResolveRouteMean(t *testing.T) {
	v := analysis.All(store(t))
	res, err := newResolver().Resolve(v, Request{Route: dataset.Route{Departure: "A", Arrival: "B"}})
	require.NoError(t, err)

	assert.Equal(t, Number(15), res.Vector[depDelay])
	assert.Equal(t, TierRoute, res.Tiers[depDelay])
	assert.Equal(t, severity.Moderate, severity.Categorize(res.Vector[depDelay].Num))
	assert.Equal(t, Number(5), res.Vector[weather])
	assert.Equal(t, 2, res.RouteRecords)
	assert.Empty(t, res.Warnings)

	// tie between National and TER resolves lexically
	assert.Equal(t, Label("National"), res.Vector["Service"])
	assert.Equal(t, TierRoute, res.Tiers["Service"])
	assert.NotEqual(t, uuid.Nil, res.ID)
}

func TestResolveZeroHistoryRouteIsTotal(t *testing.T) {
	r := newResolver()
	res, err := r.Resolve(analysis.All(store(t)), Request{Route: dataset.Route{Departure: "X", Arrival: "Y"}})
	require.NoError(t, err)

	require.Len(t, res.Vector, len(r.Required()))
	for _, name := range r.Required() {
		assert.Contains(t, res.Vector, name)
		assert.Contains(t, res.Tiers, name)
	}
	assert.InDelta(t, 130.0/3, res.Vector[depDelay].Num, 1e-9)
	assert.Equal(t, TierDataset, res.Tiers[depDelay])
	assert.Equal(t, Number(10), res.Vector[weather])
	assert.Equal(t, Label("X"), res.Vector["Departure station"])
	assert.Equal(t, TierOverride, res.Tiers["Arrival station"])
	assert.Equal(t, Label("National"), res.Vector["Service"])
	assert.Equal(t, 0, res.RouteRecords)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnNoRouteHistory, res.Warnings[0].Code)
}

func TestResolveDefaults(t *testing.T) {
	r := NewResolver([]string{"Pct delay due to strikes", "Average journey time"}, []string{"Platform"})
	res, err := r.Resolve(analysis.All(store(t)), Request{Route: dataset.Route{Departure: "A", Arrival: "B"}})
	require.NoError(t, err)
	assert.Equal(t, Number(DefaultCausePercent), res.Vector["Pct delay due to strikes"])
	assert.Equal(t, Number(0), res.Vector["Average journey time"])
	assert.Equal(t, Label(""), res.Vector["Platform"])
	for _, name := range r.Required() {
		assert.Equal(t, TierDefault, res.Tiers[name], name)
	}
}

func TestResolveOverridePrecedence(t *testing.T) {
	v := analysis.All(store(t))
	req := Request{
		Route: dataset.Route{Departure: "A", Arrival: "B"},
		Overrides: Vector{
			depDelay:               Number(3),
			"average journey time": Label("42.5"),
			"service":              Label("TGV"),
			FeatureYear:            Number(1999),
			"Departure station":    Label("Z"),
			"Unrelated":            Number(1),
		},
	}
	res, err := newResolver().Resolve(v, req)
	require.NoError(t, err)

	assert.Equal(t, Number(3), res.Vector[depDelay])
	assert.Equal(t, TierOverride, res.Tiers[depDelay])
	assert.Equal(t, Number(42.5), res.Vector["Average journey time"])
	assert.Equal(t, Label("TGV"), res.Vector["Service"])
	// clock and route selection win over overrides
	assert.Equal(t, Number(2025), res.Vector[FeatureYear])
	assert.Equal(t, Number(3), res.Vector[FeatureMonth])
	assert.Equal(t, TierDerived, res.Tiers[FeatureMonth])
	assert.Equal(t, Label("A"), res.Vector["Departure station"])
	assert.NotContains(t, res.Vector, "Unrelated")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnUnknownOverride, res.Warnings[0].Code)
}

func TestResolveRejectsNonNumericOverride(t *testing.T) {
	_, err := newResolver().Resolve(analysis.All(store(t)), Request{
		Route:     dataset.Route{Departure: "A", Arrival: "B"},
		Overrides: Vector{depDelay: Label("late")},
	})
	assert.ErrorIs(t, err, ErrInvalidOverride)
}

func TestResolveRejectsNonFiniteAndOutOfRangeOverrides(t *testing.T) {
	cases := map[string]Vector{
		"nan":            {depDelay: Label("NaN")},
		"inf":            {depDelay: Label("+Inf")},
		"negative inf":   {depDelay: Label("-inf")},
		"cause above":    {weather: Number(150)},
		"cause below":    {weather: Label("-1")},
		"cause nan case": {"pct delay due to weather": Label("nan")},
	}
	for name, ov := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newResolver().Resolve(analysis.All(store(t)), Request{
				Route:     dataset.Route{Departure: "A", Arrival: "B"},
				Overrides: ov,
			})
			assert.ErrorIs(t, err, ErrInvalidOverride)
		})
	}

	res, err := newResolver().Resolve(analysis.All(store(t)), Request{
		Route:     dataset.Route{Departure: "A", Arrival: "B"},
		Overrides: Vector{weather: Number(100), depDelay: Number(-3)},
	})
	require.NoError(t, err)
	assert.Equal(t, Number(100), res.Vector[weather])
	assert.Equal(t, Number(-3), res.Vector[depDelay], "delays may be negative (early trains)")
}

func TestResolveRouteFeatureFollowsSelection(t *testing.T) {
	r := NewResolver([]string{depDelay}, []string{"Route"}, WithClock(fixedClock))

	res, err := r.Resolve(analysis.All(store(t)), Request{Route: dataset.Route{Departure: "X", Arrival: "Y"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.RouteRecords)
	assert.Equal(t, Label("X - Y"), res.Vector["Route"])
	assert.Equal(t, TierOverride, res.Tiers["Route"])

	res, err = r.Resolve(analysis.All(store(t)), Request{
		Route:     dataset.Route{Departure: "A", Arrival: "B"},
		Overrides: Vector{"Route": Label("C - D")},
	})
	require.NoError(t, err)
	assert.Equal(t, Label("A - B"), res.Vector["Route"])
}

func TestResolveEmptyView(t *testing.T) {
	empty := analysis.Filter(store(t), analysis.Predicates{Station: "nowhere"})
	_, err := newResolver().Resolve(empty, Request{Route: dataset.Route{Departure: "A", Arrival: "B"}})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestResolveFallbackScope(t *testing.T) {
	st := store(t)
	onlyC := analysis.Filter(st, analysis.Predicates{Station: "C"})
	req := Request{Route: dataset.Route{Departure: "X", Arrival: "Y"}}

	res, err := newResolver().Resolve(onlyC, req)
	require.NoError(t, err)
	assert.Equal(t, Number(100), res.Vector[depDelay])

	res, err = newResolver(WithScope(ScopeStore)).Resolve(onlyC, req)
	require.NoError(t, err)
	assert.InDelta(t, 130.0/3, res.Vector[depDelay].Num, 1e-9)

	s, err := ParseScope("STORE")
	require.NoError(t, err)
	assert.Equal(t, ScopeStore, s)
	_, err = ParseScope("global")
	assert.Error(t, err)
}

func TestArrivalCandidates(t *testing.T) {
	v := analysis.All(store(t))
	assert.Equal(t, []string{"A", "C"}, Departures(v))

	got, warn := ArrivalCandidates(v, "A")
	assert.Equal(t, []string{"B"}, got)
	assert.Nil(t, warn)

	got, warn = ArrivalCandidates(v, "Z")
	assert.Equal(t, []string{"B", "D"}, got)
	require.NotNil(t, warn)
	assert.Equal(t, WarnNoConnections, warn.Code)
}

func TestRouteProfile(t *testing.T) {
	p := RouteProfile(analysis.All(store(t)), dataset.Route{Departure: "A", Arrival: "B"})
	assert.Equal(t, 2, p.Records)
	assert.Equal(t, analysis.Stat{Value: 15, Available: true}, p.DepartureDelay)
	assert.Equal(t, analysis.Stat{Value: 15, Available: true}, p.ArrivalDelay)
	assert.False(t, p.JourneyTime.Available)
}

func TestVectorJSON(t *testing.T) {
	var v Vector
	require.NoError(t, json.Unmarshal([]byte(`{"Month": 3, "Service": "TER"}`), &v))
	assert.Equal(t, Vector{"Month": Number(3), "Service": Label("TER")}, v)
	assert.Equal(t, []string{"Month", "Service"}, v.Names())

	out, err := json.Marshal(map[string]any{"v": v, "t": TierDataset})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":{"Month":3,"Service":"TER"},"t":"dataset"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"x": true}`), &v))
}
