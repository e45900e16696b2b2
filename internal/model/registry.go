package model

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/KaramelBytes/tardis-cli/internal/features"
)

// Predictor maps a complete feature vector to an estimated arrival delay in minutes.
type Predictor interface {
	Predict(vec features.Vector) (float64, error)
}

// Explainer is implemented by predictors that expose per-feature importances, in
// numerical-then-categorical feature order.
type Explainer interface {
	Importances() []float64
}

// Factory builds a Predictor from an artifact. decode fills its argument from the
// artifact file.
type Factory func(decode func(any) error) (Predictor, error)

// Predictor kinds shipped with the binary.
const (
	KindLinear       = "linear"
	KindTreeEnsemble = "tree_ensemble"
)

var registry = map[string]Factory{}

// Register associates an artifact kind with its factory.
func Register(kind string, f Factory) { registry[strings.ToLower(kind)] = f }

// Lookup returns the factory for a kind if registered.
func Lookup(kind string) (Factory, bool) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(kind))]
	return f, ok
}

// Kinds lists registered kinds.
func Kinds() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoadPredictor reads a JSON or YAML artifact and builds the predictor of its kind.
func LoadPredictor(path string) (Predictor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var head struct {
		Kind string `json:"kind" yaml:"kind"`
	}
	if err := decodeBytes(path, b, &head); err != nil {
		return nil, fmt.Errorf("parse model artifact %s: %w", path, err)
	}
	f, ok := Lookup(head.Kind)
	if !ok {
		return nil, fmt.Errorf("unsupported model kind %q (available: %s)", head.Kind, strings.Join(Kinds(), ", "))
	}
	p, err := f(func(v any) error { return decodeBytes(path, b, v) })
	if err != nil {
		return nil, fmt.Errorf("build %s model: %w", head.Kind, err)
	}
	return p, nil
}

func init() {
	Register(KindLinear, newLinear)
	Register(KindTreeEnsemble, newTreeEnsemble)
}
