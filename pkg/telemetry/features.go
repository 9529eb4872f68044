package telemetry

import (
	"fmt"
	"math"
)

// FeatureVector is the fixed-order numeric input to the regression
// step: the 3 operational settings followed by the 21 sensor channels.
// Derived from a Record and never mutated afterwards.
type FeatureVector [NumFeatures]float64

// Features builds the feature vector for a record. It fails on NaN or
// infinite values instead of substituting a default: silent imputation
// would corrupt the regression target.
func Features(r Record) (FeatureVector, error) {
	var v FeatureVector
	for i := 0; i < NumSettings; i++ {
		v[i] = r.Settings[i]
	}
	for i := 0; i < NumSensors; i++ {
		v[NumSettings+i] = r.Sensors[i]
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return FeatureVector{}, fmt.Errorf("non-finite value for %s", FeatureNames()[i])
		}
	}
	return v, nil
}

// FeatureMatrix builds feature vectors for a batch of records,
// dropping none: any invalid record fails the whole batch, since a
// training matrix with holes is worse than no matrix.
func FeatureMatrix(records []Record) ([]FeatureVector, error) {
	out := make([]FeatureVector, 0, len(records))
	for i, r := range records {
		v, err := Features(r)
		if err != nil {
			return nil, fmt.Errorf("record %d (unit %d cycle %d): %w", i, r.UnitNumber, r.Cycle, err)
		}
		out = append(out, v)
	}
	return out, nil
}
