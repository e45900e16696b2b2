package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tardis-cli/internal/analysis"
	"github.com/KaramelBytes/tardis-cli/internal/dataset"
	"github.com/KaramelBytes/tardis-cli/internal/features"
	"github.com/KaramelBytes/tardis-cli/internal/metrics"
	"github.com/KaramelBytes/tardis-cli/internal/model"
	"github.com/KaramelBytes/tardis-cli/internal/severity"
)

const trips = `Date,Departure station,Arrival station,Average delay of all trains at departure,Average delay of all trains at arrival
2023-01-10,A,B,10,11
2023-02-10,A,B,20,19
2023-03-10,C,D,100,95
`

const linear = `{"kind":"linear","intercept":0,"coefficients":{"Average delay of all trains at departure":1,"Year":0,"Month":0}}`

const info = `model_name: Linear
numerical_features: [Average delay of all trains at departure, Year, Month]
categorical_features: [Departure station, Arrival station]
`

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func loaded(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	e := New(Options{
		DatasetPath:   write(t, dir, "trips.csv", trips),
		ModelPath:     write(t, dir, "model.json", linear),
		ModelInfoPath: write(t, dir, "model_info.yaml", info),
		Clock:         func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	})
	st := e.Load()
	require.Empty(t, st.DatasetError)
	require.Empty(t, st.ModelError)
	require.Equal(t, "Linear", st.Model)
	require.Equal(t, 3, st.Dataset.Loaded)
	return e, dir
}

func TestPredictEndToEnd(t *testing.T) {
	e, _ := loaded(t)
	res, err := e.Predict(PredictRequest{Route: dataset.Route{Departure: "A", Arrival: "B"}})
	require.NoError(t, err)

	assert.InDelta(t, 15, res.Prediction.Minutes, 1e-9)
	assert.Equal(t, severity.Moderate, res.Prediction.Category)
	assert.Equal(t, features.TierRoute, res.Resolution.Tiers["Average delay of all trains at departure"])
	assert.Equal(t, features.Number(2025), res.Resolution.Vector["Year"])
	assert.Equal(t, model.GeneralFactors, res.Factors)
	assert.Equal(t, 2, res.Route.Records)
}

func TestPredictInsufficientData(t *testing.T) {
	e, _ := loaded(t)
	_, err := e.Predict(PredictRequest{
		Filters: analysis.Predicates{Station: "Z"},
		Route:   dataset.Route{Departure: "A", Arrival: "B"},
	})
	assert.ErrorIs(t, err, features.ErrInsufficientData)
}

func TestAnalyticsWithoutModel(t *testing.T) {
	dir := t.TempDir()
	e := New(Options{DatasetPath: write(t, dir, "trips.csv", trips)})
	st := e.Load()
	assert.Empty(t, st.DatasetError)
	assert.Equal(t, "no model configured", st.ModelError)

	v, err := e.View(analysis.Predicates{Station: "A"})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())

	_, err = e.Predict(PredictRequest{Route: dataset.Route{Departure: "A", Arrival: "B"}})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNothingLoaded(t *testing.T) {
	e := New(Options{})
	_, err := e.View(analysis.Predicates{})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = e.Model()
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestReloadSwapsAndKeepsPreviousOnFailure(t *testing.T) {
	e, dir := loaded(t)
	before, err := e.Store()
	require.NoError(t, err)

	write(t, dir, "trips.csv", trips+"2023-04-10,E,F,1,2\n")
	st := e.Reload()
	require.Empty(t, st.DatasetError)
	after, err := e.Store()
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, 4, after.Len())
	assert.Equal(t, 3, before.Len(), "old snapshot untouched")

	require.NoError(t, os.Remove(filepath.Join(dir, "trips.csv")))
	st = e.Reload()
	assert.NotEmpty(t, st.DatasetError)
	kept, err := e.Store()
	require.NoError(t, err)
	assert.Same(t, after, kept)
}

type failing struct{}

func (failing) Predict(features.Vector) (float64, error) { return 0, errors.New("model exploded") }

func TestPredictFailureSurfaces(t *testing.T) {
	e, _ := loaded(t)
	meta, err := model.LoadMetadata(e.opts.ModelInfoPath)
	require.NoError(t, err)
	a, err := model.NewAdapter(meta, failing{}, 0)
	require.NoError(t, err)
	e.SetModel(a)

	_, err = e.Predict(PredictRequest{Route: dataset.Route{Departure: "A", Arrival: "B"}})
	var pf *model.PredictionFailedError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, features.Label("A"), pf.Vector["Departure station"])
}

func TestArrivals(t *testing.T) {
	e, _ := loaded(t)
	arr, warn, err := e.Arrivals(analysis.Predicates{}, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, arr)
	assert.Nil(t, warn)
}

func TestPredictRecordsMetrics(t *testing.T) {
	e, _ := loaded(t)
	ok := testutil.ToFloat64(metrics.Predictions.WithLabelValues(metrics.OutcomeOK))
	noData := testutil.ToFloat64(metrics.Predictions.WithLabelValues(metrics.OutcomeNoData))
	moderate := testutil.ToFloat64(metrics.PredictionCategories.WithLabelValues("Moderate"))

	_, err := e.Predict(PredictRequest{Route: dataset.Route{Departure: "A", Arrival: "B"}})
	require.NoError(t, err)
	_, err = e.Predict(PredictRequest{
		Filters: analysis.Predicates{Station: "Nowhere"},
		Route:   dataset.Route{Departure: "A", Arrival: "B"},
	})
	require.ErrorIs(t, err, features.ErrInsufficientData)

	assert.Equal(t, ok+1, testutil.ToFloat64(metrics.Predictions.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, noData+1, testutil.ToFloat64(metrics.Predictions.WithLabelValues(metrics.OutcomeNoData)))
	assert.Equal(t, moderate+1, testutil.ToFloat64(metrics.PredictionCategories.WithLabelValues("Moderate")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.DatasetRecords))
}

func TestStatusDescribesCurrentStore(t *testing.T) {
	assert.Nil(t, New(Options{}).Status().Current)

	e, _ := loaded(t)
	cur := e.Status().Current
	require.NotNil(t, cur)
	assert.Equal(t, "trips.csv", cur.Name)
	assert.Equal(t, 3, cur.Records)
	assert.Equal(t, 4, cur.Stations)
	require.NotNil(t, cur.First)
	assert.Equal(t, time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), *cur.First)
	assert.Equal(t, time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC), *cur.Last)
}
