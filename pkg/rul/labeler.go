// Package rul derives the remaining-useful-life training label. RUL at
// a cycle is the distance to the unit's last observed cycle, so no
// record can be labeled until the unit's whole history has been seen:
// stage 1 reduces each unit to its lifecycle, stage 2 joins the records
// against that summary. The two passes are intrinsic to the label, not
// an implementation shortcut.
package rul

import (
	"fmt"

	"github.com/prognos/prognos/pkg/telemetry"
	"github.com/prognos/prognos/pkg/unit"
)

// Labeled pairs one record with its remaining-useful-life value.
type Labeled struct {
	Record telemetry.Record
	RUL    int
}

// Lifecycles runs stage 1: reduce an interleaved record stream to each
// unit's lifecycle summary.
func Lifecycles(records []telemetry.Record) map[unit.Key]unit.Lifecycle {
	out := make(map[unit.Key]unit.Lifecycle)
	for key, red := range unit.Group(records) {
		out[key] = red.Lifecycle()
	}
	return out
}

// Label runs stage 2: join every record against its unit's lifecycle
// and attach rul = max_cycle - cycle. A record whose unit is missing
// from the lifecycle map, or whose cycle exceeds the recorded maximum,
// means the two stages ran over different streams; that is a caller
// bug and fails loudly rather than emitting a negative label.
func Label(records []telemetry.Record, lifecycles map[unit.Key]unit.Lifecycle) ([]Labeled, error) {
	out := make([]Labeled, 0, len(records))
	for _, r := range records {
		key := unit.KeyOf(r)
		lc, ok := lifecycles[key]
		if !ok {
			return nil, fmt.Errorf("no lifecycle for %s: label stage ran over records the lifecycle stage never saw", key)
		}
		if r.Cycle > lc.MaxCycle {
			return nil, fmt.Errorf("%s cycle %d exceeds recorded max %d", key, r.Cycle, lc.MaxCycle)
		}
		out = append(out, Labeled{Record: r, RUL: lc.MaxCycle - r.Cycle})
	}
	return out, nil
}

// LabelAll runs both stages over one complete training stream.
func LabelAll(records []telemetry.Record) ([]Labeled, error) {
	return Label(records, Lifecycles(records))
}
