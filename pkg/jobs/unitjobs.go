package jobs

import (
	"fmt"
	"strconv"

	"github.com/prognos/prognos/pkg/mapreduce"
	"github.com/prognos/prognos/pkg/telemetry"
)

// cycleCountJob finds the last observed cycle per engine unit. Units
// with unusual lifespans stand out in its output.
type cycleCountJob struct {
	dataset string
}

func newCycleCountJob(p Params) *cycleCountJob {
	return &cycleCountJob{dataset: p.DatasetID}
}

func (j *cycleCountJob) Name() string { return CycleCount }

func (j *cycleCountJob) Map(line string, emit func(string, mapreduce.Value)) {
	unitNumber, cycle, ok := telemetry.ParseUnitCycle(line)
	if !ok {
		return
	}
	emit(unitKey(j.dataset, unitNumber), cycle)
}

func (j *cycleCountJob) NewAccumulator() mapreduce.Accumulator { return &maxCycleAcc{} }

type maxCycleAcc struct {
	max int
}

func (a *maxCycleAcc) Observe(v mapreduce.Value) {
	if c := v.(int); c > a.max {
		a.max = c
	}
}

func (a *maxCycleAcc) Merge(other mapreduce.Accumulator) {
	if o := other.(*maxCycleAcc); o.max > a.max {
		a.max = o.max
	}
}

func (a *maxCycleAcc) Finalize() (interface{}, bool) {
	return map[string]int{"max_cycle": a.max}, true
}

// recordCountJob counts observations per engine unit. It accepts any
// line carrying at least a unit number, so it also works on partial
// extracts.
type recordCountJob struct {
	dataset string
}

func newRecordCountJob(p Params) *recordCountJob {
	return &recordCountJob{dataset: p.DatasetID}
}

func (j *recordCountJob) Name() string { return UnitRecordCount }

func (j *recordCountJob) Map(line string, emit func(string, mapreduce.Value)) {
	parts := telemetry.SplitFields(line)
	if len(parts) < telemetry.MinUnitFields {
		return
	}
	f, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || f <= 0 {
		return
	}
	emit(unitKey(j.dataset, int(f)), 1)
}

func (j *recordCountJob) NewAccumulator() mapreduce.Accumulator { return &countAcc{} }

type countAcc struct {
	n uint64
}

func (a *countAcc) Observe(mapreduce.Value) { a.n++ }

func (a *countAcc) Merge(other mapreduce.Accumulator) { a.n += other.(*countAcc).n }

func (a *countAcc) Finalize() (interface{}, bool) {
	return map[string]uint64{"count": a.n}, true
}

// unitKey formats the per-unit output key, dataset-qualified when the
// dataset is known.
func unitKey(dataset string, unitNumber int) string {
	if dataset == "" {
		return fmt.Sprintf("unit_%d", unitNumber)
	}
	return fmt.Sprintf("%s/unit_%d", dataset, unitNumber)
}
