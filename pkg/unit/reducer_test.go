package unit

import (
	"testing"

	"github.com/prognos/prognos/pkg/telemetry"
)

func record(dataset string, unitNumber, cycle int, sensor11 float64) telemetry.Record {
	r := telemetry.Record{DatasetID: dataset, UnitNumber: unitNumber, Cycle: cycle}
	r.Sensors[10] = sensor11
	return r
}

func TestGroupInterleavedUnits(t *testing.T) {
	records := []telemetry.Record{
		record("FD001", 1, 2, 20),
		record("FD001", 2, 1, 5),
		record("FD001", 1, 1, 10),
		record("FD002", 1, 1, 7),
		record("FD001", 1, 3, 30),
	}

	byUnit := Group(records)
	if len(byUnit) != 3 {
		t.Fatalf("got %d units, want 3", len(byUnit))
	}

	u1 := byUnit[Key{DatasetID: "FD001", UnitNumber: 1}]
	if u1 == nil || u1.Len() != 3 {
		t.Fatalf("FD001/unit 1 not grouped: %+v", u1)
	}
	lc := u1.Lifecycle()
	if lc.MaxCycle != 3 || lc.RecordCount != 3 {
		t.Fatalf("lifecycle %+v, want max_cycle=3 count=3", lc)
	}
}

func TestHistorySortsByCycle(t *testing.T) {
	u := NewReducer(Key{DatasetID: "FD001", UnitNumber: 9})
	for _, c := range []int{5, 1, 4, 2, 3} {
		u.Observe(record("FD001", 9, c, float64(c)))
	}

	hist := u.History()
	for i, r := range hist {
		if r.Cycle != i+1 {
			t.Fatalf("history not cycle-sorted: %v", hist)
		}
	}

	// History must not mutate the reducer's own order.
	if u.records[0].Cycle != 5 {
		t.Fatal("History sorted the reducer's internal slice")
	}
}

func TestFeatureSummaries(t *testing.T) {
	u := NewReducer(Key{DatasetID: "FD001", UnitNumber: 1})
	for c, v := range []float64{10, 20, 30, 40, 50} {
		u.Observe(record("FD001", 1, c+1, v))
	}

	sums := u.FeatureSummaries()
	s, ok := sums["sensor_11"]
	if !ok {
		t.Fatal("sensor_11 summary missing")
	}
	if s.Count != 5 || s.Min != 10 || s.Max != 50 || s.Mean != 30 {
		t.Fatalf("sensor_11 summary %+v", s)
	}
}

func TestMergePartialReducers(t *testing.T) {
	k := Key{DatasetID: "FD001", UnitNumber: 4}
	a := NewReducer(k)
	b := NewReducer(k)
	a.Observe(record("FD001", 4, 1, 1))
	a.Observe(record("FD001", 4, 2, 2))
	b.Observe(record("FD001", 4, 3, 3))

	a.Merge(b)
	if a.Len() != 3 {
		t.Fatalf("got %d records after merge, want 3", a.Len())
	}
	if a.Lifecycle().MaxCycle != 3 {
		t.Fatalf("max cycle %d after merge, want 3", a.Lifecycle().MaxCycle)
	}
	if s := a.FeatureSummaries()["sensor_11"]; s.Count != 3 || s.Mean != 2 {
		t.Fatalf("merged summary %+v", s)
	}
}
