// Package degradation compares an early-life window of a unit's sensor
// history against a late-life window and reduces the drift to per-sensor
// percentage changes plus one composite health index.
package degradation

import (
	"github.com/prognos/prognos/pkg/telemetry"
	"github.com/prognos/prognos/pkg/unit"
)

// DefaultWindow caps the number of records in each comparison window.
const DefaultWindow = 10

// Critical sensors for wear analysis, by 1-based sensor channel.
const (
	SensorHPCTemp     = 3  // HPC outlet temperature
	SensorFanSpeed    = 8  // physical fan speed
	SensorCoreSpeed   = 9  // physical core speed
	SensorHPCPressure = 11 // HPC static pressure
	SensorFuelRatio   = 12 // fuel flow ratio
)

// CriticalSensors maps indicator names to sensor channels. Every
// report carries a pct_change entry per indicator.
var CriticalSensors = map[string]int{
	"temp_hpc":     SensorHPCTemp,
	"fan_speed":    SensorFanSpeed,
	"core_speed":   SensorCoreSpeed,
	"pressure_hpc": SensorHPCPressure,
	"fuel_ratio":   SensorFuelRatio,
}

// Health index weighting. Temperature climbing is wear (penalized),
// pressure climbing is the engine holding compression (rewarded). The
// weights are policy, not contract: only the signs are load-bearing.
const (
	tempPenaltyWeight    = 1.0
	pressureRewardWeight = 1.0
)

// Verdict thresholds on the health index.
const (
	VerdictHealthy  = "healthy"
	VerdictDegraded = "degraded"
	VerdictCritical = "critical"

	degradedBelow = 0.0
	criticalBelow = -5.0
)

// Report is the finalized degradation analysis for one unit.
type Report struct {
	Key         unit.Key           `json:"key"`
	TotalCycles int                `json:"total_cycles"`
	WindowSize  int                `json:"window_size"`
	EarlyAvg    map[string]float64 `json:"early_avg"`
	LateAvg     map[string]float64 `json:"late_avg"`
	PctChange   map[string]float64 `json:"pct_change"`
	HealthIndex float64            `json:"health_index"`
	Verdict     string             `json:"verdict"`
}

// Analyzer computes degradation reports with a configured window cap.
type Analyzer struct {
	window int
}

// NewAnalyzer creates an analyzer. A non-positive window falls back to
// DefaultWindow.
func NewAnalyzer(window int) *Analyzer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Analyzer{window: window}
}

// Analyze produces the report for one unit from its cycle-sorted
// history. Returns ok=false for histories shorter than 2 records:
// drift over a single observation is undefined and the unit is
// excluded from the report, not treated as a failure.
//
// Window rule: min(W, n/4) records on each end, so the comparison
// stays sensible for both short (<40 cycle) and long (>300 cycle)
// histories. When n/4 rounds to zero the windows fall back to the
// single first and last record.
func (a *Analyzer) Analyze(key unit.Key, history []telemetry.Record) (Report, bool) {
	n := len(history)
	if n < 2 {
		return Report{}, false
	}

	w := n / 4
	if w > a.window {
		w = a.window
	}
	if w == 0 {
		w = 1
	}

	early := history[:w]
	late := history[n-w:]

	rep := Report{
		Key:         key,
		TotalCycles: history[n-1].Cycle,
		WindowSize:  w,
		EarlyAvg:    windowAverages(early),
		LateAvg:     windowAverages(late),
		PctChange:   make(map[string]float64, len(CriticalSensors)),
	}

	for name := range CriticalSensors {
		rep.PctChange[name] = PctChange(rep.EarlyAvg[name], rep.LateAvg[name])
	}

	rep.HealthIndex = healthIndex(rep.PctChange)
	rep.Verdict = verdict(rep.HealthIndex)
	return rep, true
}

// PctChange is the percentage drift from early to late, defined as 0
// when the early value is 0 so a cold sensor never divides the report
// by zero.
func PctChange(early, late float64) float64 {
	if early == 0 {
		return 0
	}
	return (late - early) / abs(early) * 100
}

func windowAverages(window []telemetry.Record) map[string]float64 {
	avgs := make(map[string]float64, len(CriticalSensors))
	n := float64(len(window))
	for name, channel := range CriticalSensors {
		var sum float64
		for _, r := range window {
			sum += r.Sensor(channel)
		}
		avgs[name] = sum / n
	}
	return avgs
}

// healthIndex combines the signed indicators: negative means the unit
// is trending toward failure (temperature rising, pressure falling).
func healthIndex(pctChange map[string]float64) float64 {
	return -tempPenaltyWeight*pctChange["temp_hpc"] + pressureRewardWeight*pctChange["pressure_hpc"]
}

func verdict(index float64) string {
	switch {
	case index < criticalBelow:
		return VerdictCritical
	case index < degradedBelow:
		return VerdictDegraded
	default:
		return VerdictHealthy
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
