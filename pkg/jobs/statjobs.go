package jobs

import (
	"fmt"
	"math"

	"github.com/prognos/prognos/pkg/mapreduce"
	"github.com/prognos/prognos/pkg/stats"
	"github.com/prognos/prognos/pkg/telemetry"
)

// statAcc adapts stats.Aggregate to the driver's accumulator contract.
// Shared by every job whose per-key reduction is plain statistics.
type statAcc struct {
	agg stats.Aggregate
}

func (a *statAcc) Observe(v mapreduce.Value) { a.agg.Add(v.(float64)) }

func (a *statAcc) Merge(other mapreduce.Accumulator) { a.agg.Merge(other.(*statAcc).agg) }

func (a *statAcc) Finalize() (interface{}, bool) {
	return a.agg.Finalize()
}

// featureSummaryJob emits every feature's value keyed by feature name,
// producing the full statistical summary of a dataset in one batch.
type featureSummaryJob struct {
	parser *telemetry.Parser
	names  []string
}

func newFeatureSummaryJob(p Params) *featureSummaryJob {
	return &featureSummaryJob{
		parser: telemetry.NewParser(p.DatasetID),
		names:  telemetry.FeatureNames(),
	}
}

func (j *featureSummaryJob) Name() string { return FeatureSummary }

func (j *featureSummaryJob) Map(line string, emit func(string, mapreduce.Value)) {
	rec, ok := j.parser.Parse(line)
	if !ok {
		return
	}
	for i := 0; i < telemetry.NumFeatures; i++ {
		emit(j.names[i], rec.Feature(i))
	}
}

func (j *featureSummaryJob) NewAccumulator() mapreduce.Accumulator { return &statAcc{} }

// sensorStatsJob summarizes a single sensor channel across all units.
type sensorStatsJob struct {
	parser *telemetry.Parser
	sensor int
}

func newSensorStatsJob(p Params) *sensorStatsJob {
	return &sensorStatsJob{
		parser: telemetry.NewParser(p.DatasetID),
		sensor: p.sensorOr(11),
	}
}

func (j *sensorStatsJob) Name() string { return SensorStatistics }

func (j *sensorStatsJob) Map(line string, emit func(string, mapreduce.Value)) {
	rec, ok := j.parser.Parse(line)
	if !ok {
		return
	}
	emit(fmt.Sprintf("sensor_%d", j.sensor), rec.Sensor(j.sensor))
}

func (j *sensorStatsJob) NewAccumulator() mapreduce.Accumulator { return &statAcc{} }

// conditionAverageJob buckets records by operating condition
// (op_setting_1 rounded to one decimal) and summarizes one sensor
// channel per bucket.
type conditionAverageJob struct {
	parser *telemetry.Parser
	sensor int
}

func newConditionAverageJob(p Params) *conditionAverageJob {
	return &conditionAverageJob{
		parser: telemetry.NewParser(p.DatasetID),
		sensor: p.sensorOr(4),
	}
}

func (j *conditionAverageJob) Name() string { return ConditionAverage }

func (j *conditionAverageJob) Map(line string, emit func(string, mapreduce.Value)) {
	rec, ok := j.parser.Parse(line)
	if !ok {
		return
	}
	bucket := math.Round(rec.Setting(1)*10) / 10
	emit(fmt.Sprintf("op_setting_1_%.1f", bucket), rec.Sensor(j.sensor))
}

func (j *conditionAverageJob) NewAccumulator() mapreduce.Accumulator { return &statAcc{} }
