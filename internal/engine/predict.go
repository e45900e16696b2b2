package engine

import (
	"errors"
	"time"

	"github.com/KaramelBytes/tardis-cli/internal/analysis"
	"github.com/KaramelBytes/tardis-cli/internal/dataset"
	"github.com/KaramelBytes/tardis-cli/internal/features"
	"github.com/KaramelBytes/tardis-cli/internal/metrics"
	"github.com/KaramelBytes/tardis-cli/internal/model"
)

// PredictRequest is a route selection evaluated against the filtered history.
type PredictRequest struct {
	Filters   analysis.Predicates `json:"filters"`
	Route     dataset.Route       `json:"route"`
	Overrides features.Vector     `json:"overrides,omitempty"`
}

// PredictResult pairs the resolved inputs with the model output.
type PredictResult struct {
	Resolution *features.Resolution `json:"resolution"`
	Prediction *model.Prediction    `json:"prediction"`
	// Factors is set when the model gives no importances.
	Factors []string            `json:"factors,omitempty"`
	Route   features.RouteStats `json:"route_stats"`
}

// Predict filters the store, resolves the model's features for the route and runs
// the predictor.
func (e *Engine) Predict(req PredictRequest) (*PredictResult, error) {
	start := time.Now()
	defer func() { metrics.PredictLatency.Observe(time.Since(start).Seconds()) }()

	st, err := e.Store()
	if err != nil {
		metrics.Predictions.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		return nil, err
	}
	a, err := e.Model()
	if err != nil {
		metrics.Predictions.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		return nil, err
	}
	view := analysis.Filter(st, req.Filters)
	res, err := a.Resolver(features.WithClock(e.opts.Clock), features.WithScope(e.opts.Scope)).
		Resolve(view, features.Request{Route: req.Route, Overrides: req.Overrides})
	if err != nil {
		if errors.Is(err, features.ErrInsufficientData) {
			metrics.Predictions.WithLabelValues(metrics.OutcomeNoData).Inc()
		} else {
			metrics.Predictions.WithLabelValues(metrics.OutcomeInvalid).Inc()
		}
		return nil, err
	}
	for tier, n := range res.TierCounts() {
		metrics.ResolvedFeatures.WithLabelValues(tier.String()).Add(float64(n))
	}
	p, err := a.Predict(res.Vector)
	if err != nil {
		metrics.Predictions.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}
	metrics.Predictions.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.PredictionCategories.WithLabelValues(p.Category.String()).Inc()

	out := &PredictResult{
		Resolution: res,
		Prediction: p,
		Route:      features.RouteProfile(view, req.Route),
	}
	if p.Importances == nil {
		out.Factors = model.GeneralFactors
	}
	return out, nil
}

// Arrivals lists the arrival stations offered for a departure under the filters.
func (e *Engine) Arrivals(p analysis.Predicates, departure string) ([]string, *features.Warning, error) {
	v, err := e.View(p)
	if err != nil {
		return nil, nil, err
	}
	arr, warn := features.ArrivalCandidates(v, departure)
	return arr, warn, nil
}
