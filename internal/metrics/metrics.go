// Package metrics declares the Prometheus collectors exported by the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DatasetRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tardis_dataset_records",
			Help: "Records in the currently loaded dataset",
		},
	)

	DatasetLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tardis_dataset_loads_total",
			Help: "Dataset load attempts",
		},
		[]string{"status"},
	)

	RejectedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tardis_dataset_rejected_rows_total",
			Help: "Rows rejected while loading datasets",
		},
	)

	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tardis_model_loads_total",
			Help: "Model load attempts",
		},
		[]string{"status"},
	)

	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tardis_predictions_total",
			Help: "Prediction requests by outcome",
		},
		[]string{"outcome"},
	)

	PredictionCategories = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tardis_prediction_categories_total",
			Help: "Successful predictions by severity category",
		},
		[]string{"category"},
	)

	ResolvedFeatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tardis_resolved_features_total",
			Help: "Resolved feature values by fallback tier",
		},
		[]string{"tier"},
	)

	PredictLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tardis_predict_latency_seconds",
			Help:    "Filter, resolve and predict latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tardis_http_requests_total",
			Help: "API requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

// Prediction outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeNoData      = "insufficient_data"
	OutcomeInvalid     = "invalid"
	OutcomeFailed      = "failed"
)
