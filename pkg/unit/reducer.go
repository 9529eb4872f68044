// Package unit groups telemetry records by engine unit and reduces
// each unit's history to its lifecycle summary. Arrival order is
// irrelevant for the aggregates; consumers that need cycle order (the
// degradation analyzer, the RUL labeler) get it through an explicit
// sort, never by assuming the input arrived sorted.
package unit

import (
	"fmt"
	"sort"

	"github.com/prognos/prognos/pkg/stats"
	"github.com/prognos/prognos/pkg/telemetry"
)

// Key identifies one engine unit within one dataset.
type Key struct {
	DatasetID  string `json:"dataset_id"`
	UnitNumber int    `json:"unit_number"`
}

// KeyOf returns the grouping key for a record.
func KeyOf(r telemetry.Record) Key {
	return Key{DatasetID: r.DatasetID, UnitNumber: r.UnitNumber}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/unit_%d", k.DatasetID, k.UnitNumber)
}

// Lifecycle is the per-unit summary owned by the reducer that saw the
// unit's full history. MaxCycle is the unit's end-of-trace point and
// must never be derived from a partial window.
type Lifecycle struct {
	Key         Key    `json:"key"`
	MaxCycle    int    `json:"max_cycle"`
	RecordCount uint64 `json:"record_count"`
}

// featureNames is computed once; Observe runs per record.
var featureNames = telemetry.FeatureNames()

// Reducer accumulates one unit's records.
type Reducer struct {
	key      Key
	records  []telemetry.Record
	features stats.MultiAggregate
}

// NewReducer creates a reducer for one unit key.
func NewReducer(key Key) *Reducer {
	return &Reducer{
		key:      key,
		features: make(stats.MultiAggregate),
	}
}

// Observe adds one record to the unit's history.
func (u *Reducer) Observe(r telemetry.Record) {
	u.records = append(u.records, r)
	for i := 0; i < telemetry.NumFeatures; i++ {
		u.features.Add(featureNames[i], r.Feature(i))
	}
}

// Merge folds another reducer for the same key into this one.
func (u *Reducer) Merge(other *Reducer) {
	u.records = append(u.records, other.records...)
	u.features.Merge(other.features)
}

// Lifecycle finalizes the unit's lifecycle summary.
func (u *Reducer) Lifecycle() Lifecycle {
	lc := Lifecycle{Key: u.key, RecordCount: uint64(len(u.records))}
	for _, r := range u.records {
		if r.Cycle > lc.MaxCycle {
			lc.MaxCycle = r.Cycle
		}
	}
	return lc
}

// FeatureSummaries finalizes per-feature statistics over the unit's
// full record set. Features never observed are absent from the map.
func (u *Reducer) FeatureSummaries() map[string]stats.Summary {
	out := make(map[string]stats.Summary, len(u.features))
	for name, agg := range u.features {
		if s, ok := agg.Finalize(); ok {
			out[name] = s
		}
	}
	return out
}

// History returns the unit's records sorted by cycle ascending. The
// sort is a local, explicit step over a copy; the reducer's own slice
// keeps arrival order.
func (u *Reducer) History() []telemetry.Record {
	out := make([]telemetry.Record, len(u.records))
	copy(out, u.records)
	sort.Slice(out, func(i, j int) bool { return out[i].Cycle < out[j].Cycle })
	return out
}

// Len returns the number of records observed for the unit.
func (u *Reducer) Len() int { return len(u.records) }

// Group partitions an interleaved record stream by unit key.
func Group(records []telemetry.Record) map[Key]*Reducer {
	byUnit := make(map[Key]*Reducer)
	for _, r := range records {
		k := KeyOf(r)
		red, ok := byUnit[k]
		if !ok {
			red = NewReducer(k)
			byUnit[k] = red
		}
		red.Observe(r)
	}
	return byUnit
}
