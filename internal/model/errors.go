package model

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/tardis-cli/internal/features"
)

// MissingFeaturesError indicates a vector lacks features the model requires.
// It is a caller bug: resolution always produces a total vector.
type MissingFeaturesError struct {
	Names []string
}

func (e *MissingFeaturesError) Error() string {
	return fmt.Sprintf("missing required features: %s", strings.Join(e.Names, ", "))
}

// UnexpectedFeaturesError indicates a vector carries features the model does not know.
type UnexpectedFeaturesError struct {
	Names []string
}

func (e *UnexpectedFeaturesError) Error() string {
	return fmt.Sprintf("unexpected features: %s", strings.Join(e.Names, ", "))
}

// PredictionFailedError wraps a predictor failure and keeps the offending input.
type PredictionFailedError struct {
	Vector features.Vector
	Err    error
}

func (e *PredictionFailedError) Error() string {
	if e == nil {
		return "prediction failed"
	}
	return fmt.Sprintf("prediction failed: %v", e.Err)
}

func (e *PredictionFailedError) Unwrap() error { return e.Err }
