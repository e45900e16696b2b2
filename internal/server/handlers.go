package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/KaramelBytes/tardis-cli/internal/analysis"
	"github.com/KaramelBytes/tardis-cli/internal/dataset"
	"github.com/KaramelBytes/tardis-cli/internal/engine"
	"github.com/KaramelBytes/tardis-cli/internal/features"
	"github.com/KaramelBytes/tardis-cli/internal/model"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return badRequest{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps engine errors to HTTP status codes.
func statusOf(err error) int {
	var br badRequest
	switch {
	case errors.Is(err, engine.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, features.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.As(err, &br), errors.Is(err, features.ErrInvalidOverride), errors.Is(err, analysis.ErrTooManyRoutes):
		return http.StatusBadRequest
	}
	// prediction failures and malformed vectors
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	id := uuid.NewString()
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		s.log.Printf("%s %s [%s]: %v", r.Method, r.URL.Path, id, err)
	}
	writeJSON(w, code, ErrorResponse{Error: err.Error(), RequestID: id})
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, badRequestf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return &t, nil
}

func predicates(start, end, station, service string) (analysis.Predicates, error) {
	var p analysis.Predicates
	var err error
	if p.Start, err = parseDay(start); err != nil {
		return p, err
	}
	if p.End, err = parseDay(end); err != nil {
		return p, err
	}
	if p.Start != nil && p.End != nil && p.End.Before(*p.Start) {
		return p, badRequestf("end %s is before start %s", end, start)
	}
	p.Station = strings.TrimSpace(station)
	p.Service = strings.TrimSpace(service)
	return p, nil
}

func (s *Server) view(r *http.Request) (analysis.View, error) {
	q := r.URL.Query()
	p, err := predicates(q.Get("start"), q.Get("end"), q.Get("station"), q.Get("service"))
	if err != nil {
		return analysis.View{}, err
	}
	return s.eng.View(p)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequestf("invalid %s %q", name, raw)
	}
	return n, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	st, err := s.eng.Store()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "error",
			"dataset":   "unavailable",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}
	modelName := "unavailable"
	if a, err := s.eng.Model(); err == nil {
		modelName = a.Metadata().ModelName
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"dataset":   st.Name(),
		"records":   st.Len(),
		"model":     modelName,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Status())
}

func (s *Server) overview(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis.BuildOverview(v))
}

func (s *Server) delays(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis.AnalyzeDelays(v))
}

func (s *Server) aggregate(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	key, err := analysis.ParseGroupKey(q.Get("group"))
	if err != nil {
		s.fail(w, r, badRequest{msg: err.Error()})
		return
	}
	red, err := analysis.ParseReducer(q.Get("reducer"))
	if err != nil {
		s.fail(w, r, badRequest{msg: err.Error()})
		return
	}
	k, err := intParam(r, "k", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	metric := analysis.ArrivalDelay
	if m := strings.TrimSpace(q.Get("metric")); m != "" {
		metric = analysis.Metric(m)
	}
	if key != analysis.ByCause && !v.HasColumn(string(metric)) {
		s.fail(w, r, badRequestf("unknown metric column %q", metric))
		return
	}
	if k == 0 {
		writeJSON(w, http.StatusOK, analysis.Aggregate(v, key, metric, red))
		return
	}
	order := analysis.Desc
	if strings.EqualFold(q.Get("order"), "asc") {
		order = analysis.Asc
	}
	writeJSON(w, http.StatusOK, analysis.TopK(v, key, metric, red, k, order))
}

func (s *Server) stations(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	k, err := intParam(r, "k", s.opt.TopK)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis.RankStations(v, k))
}

func (s *Server) station(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if un, err := url.PathUnescape(name); err == nil {
		name = un
	}
	v, err := s.view(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p := analysis.ProfileStation(v, name)
	if p.AsDeparture.Records == 0 && p.AsArrival.Records == 0 {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("no trips for station %q", name), RequestID: uuid.NewString()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) routes(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	k, err := intParam(r, "k", s.opt.TopK)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis.RankRoutes(v, k))
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	routes := r.URL.Query()["route"]
	if len(routes) == 0 {
		s.fail(w, r, badRequestf("at least one route parameter is required"))
		return
	}
	if len(routes) > s.opt.CompareMax {
		s.fail(w, r, fmt.Errorf("%w: %d requested, at most %d", analysis.ErrTooManyRoutes, len(routes), s.opt.CompareMax))
		return
	}
	v, err := s.view(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cmp, err := analysis.Compare(v, routes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// ModelResponse describes the loaded model.
type ModelResponse struct {
	model.Metadata
	Explains bool     `json:"explains"`
	Factors  []string `json:"factors,omitempty"`
}

func (s *Server) model(w http.ResponseWriter, r *http.Request) {
	a, err := s.eng.Model()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := ModelResponse{Metadata: a.Metadata(), Explains: a.Explains()}
	if !resp.Explains {
		resp.Factors = model.GeneralFactors
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) departures(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"departures": features.Departures(v)})
}

func (s *Server) arrivals(w http.ResponseWriter, r *http.Request) {
	dep := strings.TrimSpace(r.URL.Query().Get("departure"))
	if dep == "" {
		s.fail(w, r, badRequestf("departure is required"))
		return
	}
	v, err := s.view(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	arr, warn := features.ArrivalCandidates(v, dep)
	writeJSON(w, http.StatusOK, map[string]any{"arrivals": arr, "warning": warn})
}

func (s *Server) routeStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	route := dataset.Route{Departure: strings.TrimSpace(q.Get("departure")), Arrival: strings.TrimSpace(q.Get("arrival"))}
	if route.Departure == "" || route.Arrival == "" {
		s.fail(w, r, badRequestf("departure and arrival are required"))
		return
	}
	v, err := s.view(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, features.RouteProfile(v, route))
}

// PredictBody is the POST /api/predict payload.
type PredictBody struct {
	Start     string          `json:"start,omitempty"`
	End       string          `json:"end,omitempty"`
	Station   string          `json:"station,omitempty"`
	Service   string          `json:"service,omitempty"`
	Departure string          `json:"departure"`
	Arrival   string          `json:"arrival"`
	Overrides features.Vector `json:"overrides,omitempty"`
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	var body PredictBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.fail(w, r, badRequestf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(body.Departure) == "" || strings.TrimSpace(body.Arrival) == "" {
		s.fail(w, r, badRequestf("departure and arrival are required"))
		return
	}
	p, err := predicates(body.Start, body.End, body.Station, body.Service)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.eng.Predict(engine.PredictRequest{
		Filters:   p,
		Route:     dataset.Route{Departure: strings.TrimSpace(body.Departure), Arrival: strings.TrimSpace(body.Arrival)},
		Overrides: body.Overrides,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
