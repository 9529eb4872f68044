package telemetry

import "fmt"

// Schema dimensions for C-MAPSS style telemetry rows.
const (
	NumSettings = 3
	NumSensors  = 21

	// NumFeatures is the width of a feature vector: settings then sensors.
	NumFeatures = NumSettings + NumSensors

	// MinFullFields is the minimum field count for full-schema jobs:
	// unit, cycle, 3 settings, 21 sensors.
	MinFullFields = 2 + NumFeatures

	// MinUnitFields is the minimum field count for unit-only jobs.
	MinUnitFields = 1
)

// Record is one per-cycle observation of one engine unit.
type Record struct {
	DatasetID  string
	UnitNumber int
	Cycle      int

	// Settings holds the 3 operational settings in file order.
	Settings [NumSettings]float64

	// Sensors holds the 21 sensor channel readings in file order.
	Sensors [NumSensors]float64
}

// FeatureNames returns the fixed, ordered feature names: op settings
// first, then sensor channels. Index i names the i-th vector element.
func FeatureNames() []string {
	names := make([]string, 0, NumFeatures)
	for i := 1; i <= NumSettings; i++ {
		names = append(names, fmt.Sprintf("op_setting_%d", i))
	}
	for i := 1; i <= NumSensors; i++ {
		names = append(names, fmt.Sprintf("sensor_%d", i))
	}
	return names
}

// Setting returns the n-th operational setting (1-based).
func (r *Record) Setting(n int) float64 {
	return r.Settings[n-1]
}

// Sensor returns the n-th sensor channel reading (1-based).
func (r *Record) Sensor(n int) float64 {
	return r.Sensors[n-1]
}

// Feature returns the value of the i-th feature (0-based, vector order).
func (r *Record) Feature(i int) float64 {
	if i < NumSettings {
		return r.Settings[i]
	}
	return r.Sensors[i-NumSettings]
}
