// Package model loads trained delay predictors and adapts resolved feature vectors
// to them.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Metrics are the evaluation figures recorded at training time.
type Metrics struct {
	RMSE *float64 `json:"rmse,omitempty" yaml:"rmse,omitempty" validate:"omitempty,gte=0"`
	R2   *float64 `json:"r2,omitempty" yaml:"r2,omitempty" validate:"omitempty,lte=1"`
}

// Metadata describes the inputs a predictor expects.
type Metadata struct {
	ModelName           string   `json:"model_name" yaml:"model_name" validate:"required"`
	NumericalFeatures   []string `json:"numerical_features" yaml:"numerical_features" validate:"unique,dive,required"`
	CategoricalFeatures []string `json:"categorical_features" yaml:"categorical_features" validate:"unique,dive,required"`
	Metrics             *Metrics `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Required returns every feature name, numerical first.
func (m Metadata) Required() []string {
	return append(append([]string(nil), m.NumericalFeatures...), m.CategoricalFeatures...)
}

var validate = validator.New()

// Validate checks the metadata fields and that no feature is both numerical and
// categorical.
func (m Metadata) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid model metadata: %w", err)
	}
	if len(m.NumericalFeatures)+len(m.CategoricalFeatures) == 0 {
		return fmt.Errorf("invalid model metadata: no features declared")
	}
	num := map[string]bool{}
	for _, n := range m.NumericalFeatures {
		num[strings.ToLower(n)] = true
	}
	for _, c := range m.CategoricalFeatures {
		if num[strings.ToLower(c)] {
			return fmt.Errorf("invalid model metadata: feature %q is both numerical and categorical", c)
		}
	}
	return nil
}

// LoadMetadata reads a JSON or YAML metadata file and validates it.
func LoadMetadata(path string) (Metadata, error) {
	var m Metadata
	if err := decodeFile(path, &m); err != nil {
		return Metadata{}, fmt.Errorf("read model metadata: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// decodeFile decodes JSON for .json files and YAML otherwise (YAML also reads JSON).
func decodeFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return decodeBytes(path, b, v)
}

func decodeBytes(path string, b []byte, v any) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.NewDecoder(bytes.NewReader(b)).Decode(v)
	}
	return yaml.Unmarshal(b, v)
}
