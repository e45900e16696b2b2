package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/tardis-cli/internal/features"
)

// Node is one tree node. Inner nodes test Feature and go Left when the test holds:
// value <= Threshold for numeric splits, value == Equals for categorical ones.
type Node struct {
	Leaf      bool     `json:"leaf,omitempty" yaml:"leaf,omitempty"`
	Value     float64  `json:"value,omitempty" yaml:"value,omitempty"`
	Feature   string   `json:"feature,omitempty" yaml:"feature,omitempty"`
	Threshold *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Equals    *string  `json:"equals,omitempty" yaml:"equals,omitempty"`
	Left      int      `json:"left,omitempty" yaml:"left,omitempty"`
	Right     int      `json:"right,omitempty" yaml:"right,omitempty"`
}

// Tree is a flat node list rooted at index 0. Children always follow their parent.
type Tree struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// TreeEnsemble averages (or sums, for boosted ensembles) its trees on top of Base.
type TreeEnsemble struct {
	Aggregation string    `json:"aggregation" yaml:"aggregation"`
	Base        float64   `json:"base" yaml:"base"`
	Trees       []Tree    `json:"trees" yaml:"trees"`
	Weights     []float64 `json:"importances,omitempty" yaml:"importances,omitempty"`
}

func newTreeEnsemble(decode func(any) error) (Predictor, error) {
	var m TreeEnsemble
	if err := decode(&m); err != nil {
		return nil, err
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *TreeEnsemble) check() error {
	switch strings.ToLower(m.Aggregation) {
	case "", "mean", "sum":
	default:
		return fmt.Errorf("unknown aggregation %q (want mean or sum)", m.Aggregation)
	}
	if len(m.Trees) == 0 {
		return errors.New("tree ensemble has no trees")
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for i, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature == "" || (n.Threshold == nil) == (n.Equals == nil) {
				return fmt.Errorf("tree %d node %d: a split needs a feature and exactly one of threshold or equals", ti, i)
			}
			for _, c := range []int{n.Left, n.Right} {
				if c <= i || c >= len(t.Nodes) {
					return fmt.Errorf("tree %d node %d: child %d out of range", ti, i, c)
				}
			}
		}
	}
	return nil
}

// Predict implements Predictor.
func (m *TreeEnsemble) Predict(vec features.Vector) (float64, error) {
	var sum float64
	for ti := range m.Trees {
		v, err := m.Trees[ti].eval(vec)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", ti, err)
		}
		sum += v
	}
	if strings.EqualFold(m.Aggregation, "sum") {
		return m.Base + sum, nil
	}
	return m.Base + sum/float64(len(m.Trees)), nil
}

// Importances implements Explainer.
func (m *TreeEnsemble) Importances() []float64 {
	if len(m.Weights) == 0 {
		return nil
	}
	return append([]float64(nil), m.Weights...)
}

func (t Tree) eval(vec features.Vector) (float64, error) {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value, nil
		}
		v, ok := vec[n.Feature]
		if !ok {
			return 0, fmt.Errorf("feature %q not in input", n.Feature)
		}
		var left bool
		if n.Threshold != nil {
			x, ok := v.Float()
			if !ok {
				return 0, fmt.Errorf("feature %q: %q is not numeric", n.Feature, v.Str)
			}
			left = x <= *n.Threshold
		} else {
			left = v.String() == *n.Equals
		}
		if left {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
