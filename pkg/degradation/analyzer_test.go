package degradation

import (
	"math"
	"testing"

	"github.com/prognos/prognos/pkg/telemetry"
	"github.com/prognos/prognos/pkg/unit"
)

var testKey = unit.Key{DatasetID: "FD001", UnitNumber: 1}

// history builds n cycle-sorted records where the HPC temperature
// ramps linearly from tempStart to tempEnd and the HPC pressure from
// pressureStart to pressureEnd.
func history(n int, tempStart, tempEnd, pressureStart, pressureEnd float64) []telemetry.Record {
	out := make([]telemetry.Record, n)
	for i := 0; i < n; i++ {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		r := telemetry.Record{DatasetID: "FD001", UnitNumber: 1, Cycle: i + 1}
		r.Sensors[SensorHPCTemp-1] = tempStart + frac*(tempEnd-tempStart)
		r.Sensors[SensorHPCPressure-1] = pressureStart + frac*(pressureEnd-pressureStart)
		out[i] = r
	}
	return out
}

func TestAnalyzeStableUnit(t *testing.T) {
	a := NewAnalyzer(DefaultWindow)

	rep, ok := a.Analyze(testKey, history(100, 640, 640, 47, 47))
	if !ok {
		t.Fatal("expected report for 100-cycle unit")
	}
	if rep.PctChange["temp_hpc"] != 0 || rep.PctChange["pressure_hpc"] != 0 {
		t.Fatalf("constant sensors must show zero drift: %+v", rep.PctChange)
	}
	if rep.HealthIndex != 0 {
		t.Fatalf("got health index %v, want 0", rep.HealthIndex)
	}
	if rep.Verdict != VerdictHealthy {
		t.Fatalf("got verdict %q, want healthy", rep.Verdict)
	}
	if rep.TotalCycles != 100 {
		t.Fatalf("got total cycles %d, want 100", rep.TotalCycles)
	}
}

func TestAnalyzeDegradingUnit(t *testing.T) {
	a := NewAnalyzer(DefaultWindow)

	// Temperature up 10%, pressure down 10%: both indicators point at
	// wear, so the index must be clearly negative.
	rep, ok := a.Analyze(testKey, history(200, 600, 660, 50, 45))
	if !ok {
		t.Fatal("expected report")
	}
	if rep.PctChange["temp_hpc"] <= 0 {
		t.Fatalf("rising temperature must show positive drift: %v", rep.PctChange["temp_hpc"])
	}
	if rep.PctChange["pressure_hpc"] >= 0 {
		t.Fatalf("falling pressure must show negative drift: %v", rep.PctChange["pressure_hpc"])
	}
	if rep.HealthIndex >= 0 {
		t.Fatalf("degrading unit must score negative: %v", rep.HealthIndex)
	}
	if rep.Verdict != VerdictCritical {
		t.Fatalf("got verdict %q, want critical for index %v", rep.Verdict, rep.HealthIndex)
	}
}

func TestWindowRule(t *testing.T) {
	a := NewAnalyzer(10)

	cases := []struct {
		n    int
		want int
	}{
		{200, 10}, // long history capped by W
		{24, 6},   // short history uses n/4
		{5, 1},    // n/4 == 1
		{3, 1},    // n/4 == 0 falls back to single record
		{2, 1},
	}
	for _, tc := range cases {
		rep, ok := a.Analyze(testKey, history(tc.n, 600, 610, 50, 49))
		if !ok {
			t.Fatalf("n=%d: expected report", tc.n)
		}
		if rep.WindowSize != tc.want {
			t.Fatalf("n=%d: got window %d, want %d", tc.n, rep.WindowSize, tc.want)
		}
	}
}

func TestShortHistoryExcluded(t *testing.T) {
	a := NewAnalyzer(DefaultWindow)
	if _, ok := a.Analyze(testKey, history(1, 600, 600, 50, 50)); ok {
		t.Fatal("single-record unit must be excluded")
	}
	if _, ok := a.Analyze(testKey, nil); ok {
		t.Fatal("empty history must be excluded")
	}
}

func TestPctChange(t *testing.T) {
	if got := PctChange(100, 110); got != 10 {
		t.Fatalf("got %v, want 10", got)
	}
	if got := PctChange(100, 90); got != -10 {
		t.Fatalf("got %v, want -10", got)
	}
	// Sign convention holds for negative baselines too.
	if got := PctChange(-100, -90); got != 10 {
		t.Fatalf("got %v, want 10 for negative baseline moving up", got)
	}
	if got := PctChange(0, 55); got != 0 {
		t.Fatalf("zero baseline must define drift as 0, got %v", got)
	}
}

func TestNoNonFiniteLeaks(t *testing.T) {
	a := NewAnalyzer(DefaultWindow)
	rep, ok := a.Analyze(testKey, history(40, 0, 0, 0, 0))
	if !ok {
		t.Fatal("expected report")
	}
	for name, v := range rep.PctChange {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("%s leaked non-finite drift: %v", name, v)
		}
	}
	if math.IsNaN(rep.HealthIndex) {
		t.Fatal("health index is NaN")
	}
}
