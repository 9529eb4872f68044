package jobs

import (
	"github.com/prognos/prognos/pkg/degradation"
	"github.com/prognos/prognos/pkg/mapreduce"
	"github.com/prognos/prognos/pkg/telemetry"
	"github.com/prognos/prognos/pkg/unit"
)

// degradationJob keys full records by engine unit and reduces each
// unit's complete history to a degradation report. Units with fewer
// than two records finalize to ok=false and drop out of the output,
// which is exclusion, not failure.
type degradationJob struct {
	parser   *telemetry.Parser
	analyzer *degradation.Analyzer
}

func newDegradationJob(p Params) *degradationJob {
	return &degradationJob{
		parser:   telemetry.NewParser(p.DatasetID),
		analyzer: degradation.NewAnalyzer(p.window()),
	}
}

func (j *degradationJob) Name() string { return DegradationMetrics }

func (j *degradationJob) Map(line string, emit func(string, mapreduce.Value)) {
	rec, ok := j.parser.Parse(line)
	if !ok {
		return
	}
	emit(unit.KeyOf(rec).String(), rec)
}

func (j *degradationJob) NewAccumulator() mapreduce.Accumulator {
	return &degradationAcc{analyzer: j.analyzer}
}

// degradationAcc buffers one unit's records. The reducer is created on
// the first observation because the key's identity lives in the
// records themselves.
type degradationAcc struct {
	analyzer *degradation.Analyzer
	reducer  *unit.Reducer
}

func (a *degradationAcc) Observe(v mapreduce.Value) {
	rec := v.(telemetry.Record)
	if a.reducer == nil {
		a.reducer = unit.NewReducer(unit.KeyOf(rec))
	}
	a.reducer.Observe(rec)
}

func (a *degradationAcc) Merge(other mapreduce.Accumulator) {
	o := other.(*degradationAcc)
	if o.reducer == nil {
		return
	}
	if a.reducer == nil {
		a.reducer = o.reducer
		return
	}
	a.reducer.Merge(o.reducer)
}

func (a *degradationAcc) Finalize() (interface{}, bool) {
	if a.reducer == nil {
		return nil, false
	}
	// The analyzer requires cycle order; History sorts explicitly.
	rep, ok := a.analyzer.Analyze(a.reducer.Lifecycle().Key, a.reducer.History())
	if !ok {
		return nil, false
	}
	return rep, true
}
