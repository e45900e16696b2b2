package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tardis-cli/internal/dataset"
	"github.com/KaramelBytes/tardis-cli/internal/engine"
	"github.com/KaramelBytes/tardis-cli/internal/features"
	"github.com/KaramelBytes/tardis-cli/internal/model"
)

var (
	header = []string{"Date", "Service", "Departure station", "Arrival station",
		"Average delay of all trains at departure", "Average delay of all trains at arrival"}
	rows = [][]string{
		{"2023-01-10", "National", "A", "B", "10", "12"},
		{"2023-02-10", "National", "A", "B", "20", "18"},
		{"2023-03-10", "International", "C", "D", "100", "90"},
	}
	meta = model.Metadata{
		ModelName:           "Echo",
		NumericalFeatures:   []string{"Average delay of all trains at departure", "Month"},
		CategoricalFeatures: []string{"Departure station", "Arrival station"},
	}
)

// echo predicts the resolved departure delay.
type echo struct{ err error }

func (e echo) Predict(v features.Vector) (float64, error) {
	if e.err != nil {
		return 0, e.err
	}
	return v["Average delay of all trains at departure"].Num, nil
}

func newEngine(t *testing.T, p model.Predictor) *engine.Engine {
	t.Helper()
	e := engine.New(engine.Options{})
	st, _, err := dataset.FromRows("trips.csv", header, rows, dataset.Options{})
	require.NoError(t, err)
	e.SetStore(st)
	if p != nil {
		a, err := model.NewAdapter(meta, p, 0)
		require.NoError(t, err)
		e.SetModel(a)
	}
	return e
}

func newServer(e *engine.Engine) http.Handler {
	return New(e, Options{Logger: log.New(io.Discard, "", 0)}).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	rec, body := do(t, newServer(engine.New(engine.Options{})), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", body["status"])

	rec, body = do(t, newServer(newEngine(t, nil)), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["records"])
	assert.Equal(t, "unavailable", body["model"])
}

func TestOverviewAndFilters(t *testing.T) {
	h := newServer(newEngine(t, nil))
	rec, body := do(t, h, http.MethodGet, "/api/overview?station=A", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["records"])
	avg := body["average_delay"].(map[string]any)
	assert.Equal(t, true, avg["available"])
	assert.Equal(t, float64(15), avg["value"])

	rec, _ = do(t, h, http.MethodGet, "/api/overview?start=2023-13-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/overview?start=2023-03-01&end=2023-01-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsWithoutDataset(t *testing.T) {
	rec, body := do(t, newServer(engine.New(engine.Options{})), http.MethodGet, "/api/delays", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, body["request_id"])
}

func TestAggregateEndpoint(t *testing.T) {
	h := newServer(newEngine(t, nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/aggregate?group=route&k=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var groups []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "C - D", groups[0]["key"])

	rec, _ = do(t, h, http.MethodGet, "/api/aggregate?group=weekday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := do(t, h, http.MethodGet, "/api/aggregate?group=route&metric=Nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "Nope")
}

func TestStationEndpoints(t *testing.T) {
	h := newServer(newEngine(t, nil))
	rec, body := do(t, h, http.MethodGet, "/api/stations?k=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["top_departure"], 1)

	rec, body = do(t, h, http.MethodGet, "/api/stations/A", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A", body["station"])

	rec, _ = do(t, h, http.MethodGet, "/api/stations/"+url.PathEscape("NOWHERE"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompareLimit(t *testing.T) {
	h := newServer(newEngine(t, nil))
	q := url.Values{}
	for _, r := range []string{"A - B", "C - D", "1 - 2", "3 - 4", "5 - 6", "7 - 8"} {
		q.Add("route", r)
	}
	rec, _ := do(t, h, http.MethodGet, "/api/routes/compare?"+q.Encode(), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := do(t, h, http.MethodGet, "/api/routes/compare?route="+url.QueryEscape("A - B"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["means"], 1)
}

func TestArrivals(t *testing.T) {
	h := newServer(newEngine(t, nil))
	rec, body := do(t, h, http.MethodGet, "/api/predict/arrivals?departure=Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"B", "D"}, body["arrivals"])
	assert.NotNil(t, body["warning"])

	rec, _ = do(t, h, http.MethodGet, "/api/predict/arrivals", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredict(t *testing.T) {
	h := newServer(newEngine(t, echo{}))
	rec, body := do(t, h, http.MethodPost, "/api/predict", `{"departure":"A","arrival":"B"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pred := body["prediction"].(map[string]any)
	assert.Equal(t, float64(15), pred["minutes"])
	assert.Equal(t, "Moderate", pred["category"])
	assert.Len(t, body["factors"], len(model.GeneralFactors))

	rec, _ = do(t, h, http.MethodPost, "/api/predict", `{"departure":"A","arrival":"B","station":"Z"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/predict", `{"departure":"A"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/predict", `{"departure":"A","arrival":"B","overrides":{"Average delay of all trains at departure":"late"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/predict", `{"departure":"A","arrival":"B","overrides":{"Average delay of all trains at departure":"NaN"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictStatusCodes(t *testing.T) {
	rec, _ := do(t, newServer(newEngine(t, nil)), http.MethodPost, "/api/predict", `{"departure":"A","arrival":"B"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, body := do(t, newServer(newEngine(t, echo{err: errors.New("boom")})), http.MethodPost, "/api/predict", `{"departure":"A","arrival":"B"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "boom")
}

func TestModelEndpoint(t *testing.T) {
	rec, body := do(t, newServer(newEngine(t, echo{})), http.MethodGet, "/api/model", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Echo", body["model_name"])
	assert.Equal(t, false, body["explains"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newServer(newEngine(t, nil))
	do(t, h, http.MethodGet, "/health", "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tardis_http_requests_total")
}
