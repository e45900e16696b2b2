package model

import (
	"fmt"

	"github.com/KaramelBytes/tardis-cli/internal/features"
)

// Linear is an additive model: intercept, one coefficient per numerical feature and a
// weight per (categorical feature, level). Unknown levels contribute zero.
type Linear struct {
	Intercept    float64                       `json:"intercept" yaml:"intercept"`
	Coefficients map[string]float64            `json:"coefficients" yaml:"coefficients"`
	Levels       map[string]map[string]float64 `json:"levels" yaml:"levels"`
}

func newLinear(decode func(any) error) (Predictor, error) {
	var m Linear
	if err := decode(&m); err != nil {
		return nil, err
	}
	if len(m.Coefficients) == 0 && len(m.Levels) == 0 {
		return nil, fmt.Errorf("linear model has no coefficients")
	}
	return &m, nil
}

// Predict implements Predictor.
func (m *Linear) Predict(vec features.Vector) (float64, error) {
	y := m.Intercept
	for name, c := range m.Coefficients {
		v, ok := vec[name]
		if !ok {
			return 0, fmt.Errorf("feature %q not in input", name)
		}
		x, ok := v.Float()
		if !ok {
			return 0, fmt.Errorf("feature %q: %q is not numeric", name, v.Str)
		}
		y += c * x
	}
	for name, levels := range m.Levels {
		v, ok := vec[name]
		if !ok {
			return 0, fmt.Errorf("feature %q not in input", name)
		}
		y += levels[v.String()]
	}
	return y, nil
}
