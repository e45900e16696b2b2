package model

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/KaramelBytes/tardis-cli/internal/features"
	"github.com/KaramelBytes/tardis-cli/internal/severity"
)

// DefaultTopImportances is how many importances a prediction reports.
const DefaultTopImportances = 5

// GeneralFactors are shown when the predictor cannot explain itself.
var GeneralFactors = []string{
	"Weather conditions",
	"Infrastructure issues",
	"Traffic management",
	"Rolling stock problems",
	"Station operations",
}

// Importance is the weight of one input feature in the model.
type Importance struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Prediction is the outcome of one adapter call.
type Prediction struct {
	ID       uuid.UUID         `json:"id"`
	Model    string            `json:"model"`
	Minutes  float64           `json:"minutes"`
	Category severity.Category `json:"category"`
	// Importances is nil when the predictor does not implement Explainer.
	Importances []Importance `json:"importances,omitempty"`
}

// Adapter validates vectors against the model metadata and invokes the predictor.
type Adapter struct {
	meta Metadata
	pred Predictor
	topN int
}

// NewAdapter pairs a predictor with its metadata. topN <= 0 means DefaultTopImportances.
func NewAdapter(meta Metadata, p Predictor, topN int) (*Adapter, error) {
	if p == nil {
		return nil, errors.New("nil predictor")
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = DefaultTopImportances
	}
	return &Adapter{meta: meta, pred: p, topN: topN}, nil
}

// Load reads the artifact and metadata files and builds an adapter.
func Load(artifactPath, metadataPath string, topN int) (*Adapter, error) {
	meta, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	p, err := LoadPredictor(artifactPath)
	if err != nil {
		return nil, err
	}
	return NewAdapter(meta, p, topN)
}

// Metadata returns the model description.
func (a *Adapter) Metadata() Metadata { return a.meta }

// Explains reports whether predictions carry importances.
func (a *Adapter) Explains() bool {
	_, ok := a.pred.(Explainer)
	return ok
}

// Resolver builds a feature resolver for the model's required features.
func (a *Adapter) Resolver(opts ...features.Option) *features.Resolver {
	return features.NewResolver(a.meta.NumericalFeatures, a.meta.CategoricalFeatures, opts...)
}

// Check verifies vec has exactly the required features.
func (a *Adapter) Check(vec features.Vector) error {
	required := map[string]bool{}
	var missing []string
	for _, name := range a.meta.Required() {
		required[name] = true
		if _, ok := vec[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingFeaturesError{Names: missing}
	}
	var extra []string
	for _, name := range vec.Names() {
		if !required[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		return &UnexpectedFeaturesError{Names: extra}
	}
	return nil
}

// Predict checks the vector, runs the predictor and categorizes the estimate. The
// estimate is returned as produced, negative values included.
func (a *Adapter) Predict(vec features.Vector) (*Prediction, error) {
	if err := a.Check(vec); err != nil {
		return nil, err
	}
	y, err := a.pred.Predict(vec)
	if err == nil && (math.IsNaN(y) || math.IsInf(y, 0)) {
		err = fmt.Errorf("non-finite estimate %v", y)
	}
	if err != nil {
		return nil, &PredictionFailedError{Vector: clone(vec), Err: err}
	}
	p := &Prediction{
		ID:       uuid.New(),
		Model:    a.meta.ModelName,
		Minutes:  y,
		Category: severity.Categorize(y),
	}
	if ex, ok := a.pred.(Explainer); ok {
		p.Importances = a.top(ex.Importances())
	}
	return p, nil
}

// top names the weights (numerical then categorical, "Unknown" past the end) and keeps
// the largest topN.
func (a *Adapter) top(weights []float64) []Importance {
	if len(weights) == 0 {
		return nil
	}
	names := a.meta.Required()
	out := make([]Importance, len(weights))
	for i, w := range weights {
		name := "Unknown"
		if i < len(names) {
			name = names[i]
		}
		out[i] = Importance{Feature: name, Weight: w}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	if len(out) > a.topN {
		out = out[:a.topN]
	}
	return out
}

func clone(vec features.Vector) features.Vector {
	out := make(features.Vector, len(vec))
	for k, v := range vec {
		out[k] = v
	}
	return out
}
