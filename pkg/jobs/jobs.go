// Package jobs defines the aggregation jobs as pluggable strategies
// over the shared mapreduce driver. Every job is a key-emission rule
// plus a per-key accumulator; the control flow lives entirely in
// pkg/mapreduce.
package jobs

import (
	"errors"
	"fmt"

	"github.com/prognos/prognos/pkg/degradation"
	"github.com/prognos/prognos/pkg/mapreduce"
	"github.com/prognos/prognos/pkg/telemetry"
)

// Job identifiers, the selection surface exposed to callers.
const (
	CycleCount         = "cycle-count"
	UnitRecordCount    = "unit-record-count"
	FeatureSummary     = "feature-summary"
	SensorStatistics   = "sensor-statistics"
	ConditionAverage   = "condition-average"
	DegradationMetrics = "degradation-metrics"
)

// ErrUnknown is returned for a job identifier outside the fixed set.
var ErrUnknown = errors.New("unknown job")

// Params carry per-run job configuration. Zero values mean defaults.
type Params struct {
	// DatasetID is attached to records whose input lines carry none.
	DatasetID string `json:"dataset_id"`

	// Sensor selects the channel for sensor-statistics (default 11)
	// and the averaged channel for condition-average (default 4).
	Sensor int `json:"sensor,omitempty"`

	// Window caps the degradation comparison windows (default 10).
	Window int `json:"window,omitempty"`
}

// Names lists the job identifiers in stable order.
func Names() []string {
	return []string{
		CycleCount,
		UnitRecordCount,
		FeatureSummary,
		SensorStatistics,
		ConditionAverage,
		DegradationMetrics,
	}
}

// New builds the job strategy for an identifier.
func New(name string, p Params) (mapreduce.Job, error) {
	if p.Sensor < 0 || p.Sensor > telemetry.NumSensors {
		return nil, fmt.Errorf("sensor channel %d out of range 1..%d", p.Sensor, telemetry.NumSensors)
	}
	switch name {
	case CycleCount:
		return newCycleCountJob(p), nil
	case UnitRecordCount:
		return newRecordCountJob(p), nil
	case FeatureSummary:
		return newFeatureSummaryJob(p), nil
	case SensorStatistics:
		return newSensorStatsJob(p), nil
	case ConditionAverage:
		return newConditionAverageJob(p), nil
	case DegradationMetrics:
		return newDegradationJob(p), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
}

func (p Params) sensorOr(def int) int {
	if p.Sensor > 0 {
		return p.Sensor
	}
	return def
}

func (p Params) window() int {
	if p.Window > 0 {
		return p.Window
	}
	return degradation.DefaultWindow
}
