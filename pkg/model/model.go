// Package model defines the regression contract of the learning path
// and an in-tree implementation. The rest of the system depends only
// on the contract: any regressor able to fit a nonlinear multivariate
// target can replace the default ensemble.
package model

import (
	"errors"
	"math"

	"github.com/prognos/prognos/pkg/telemetry"
)

var (
	// ErrNotFound is returned when predicting against a dataset_id
	// that was never trained. Never resolved to a default prediction.
	ErrNotFound = errors.New("model not found")

	// ErrEmptyTraining is returned for a training call with no samples.
	ErrEmptyTraining = errors.New("empty training set")

	// ErrDegenerateLabels is returned when every training label is
	// identical: the fit would silently predict a constant.
	ErrDegenerateLabels = errors.New("degenerate training labels")

	// ErrShapeMismatch is returned when vectors and labels disagree in
	// length.
	ErrShapeMismatch = errors.New("feature/label length mismatch")
)

// Artifact is a trained, serializable model. Predictions are
// real-valued and may be negative; callers clamp if they need to.
type Artifact interface {
	Predict(vectors []telemetry.FeatureVector) []float64
	Marshal() ([]byte, error)
}

// Trainer fits an Artifact from labeled feature vectors. Training is a
// pure function of its inputs.
type Trainer interface {
	Train(vectors []telemetry.FeatureVector, labels []float64) (Artifact, error)
}

// Report summarizes a fit, evaluated on the training set itself.
type Report struct {
	Samples int     `json:"samples"`
	RMSE    float64 `json:"rmse"`
	R2      float64 `json:"r2"`
}

// Evaluate computes the training-set RMSE and R² of an artifact.
func Evaluate(a Artifact, vectors []telemetry.FeatureVector, labels []float64) Report {
	preds := a.Predict(vectors)
	n := float64(len(labels))

	var mean float64
	for _, y := range labels {
		mean += y
	}
	mean /= n

	var sse, sst float64
	for i, y := range labels {
		sse += (preds[i] - y) * (preds[i] - y)
		sst += (y - mean) * (y - mean)
	}

	r2 := 0.0
	if sst > 0 {
		r2 = 1 - sse/sst
	}
	return Report{
		Samples: len(labels),
		RMSE:    math.Sqrt(sse / n),
		R2:      r2,
	}
}

// validateTrainingSet enforces the shared preconditions of any Trainer.
func validateTrainingSet(vectors []telemetry.FeatureVector, labels []float64) error {
	if len(vectors) != len(labels) {
		return ErrShapeMismatch
	}
	if len(vectors) == 0 {
		return ErrEmptyTraining
	}
	first := labels[0]
	for _, y := range labels[1:] {
		if y != first {
			return nil
		}
	}
	return ErrDegenerateLabels
}
