// Package stats implements the order-independent statistical
// accumulator shared by the aggregation jobs. An Aggregate can be fed
// values one at a time or merged with another Aggregate built over a
// disjoint slice of the stream; either path finalizes to the same
// summary, which is what makes local pre-aggregation (the combiner)
// safe.
package stats

import "math"

// Aggregate is the mergeable accumulator state for one feature:
// count, sum, sum of squares, min, max. The zero value is ready to use.
type Aggregate struct {
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
	SumSq float64 `json:"sum_sq"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Add accumulates one value in O(1).
func (a *Aggregate) Add(v float64) {
	if a.Count == 0 {
		a.Min = v
		a.Max = v
	} else {
		if v < a.Min {
			a.Min = v
		}
		if v > a.Max {
			a.Max = v
		}
	}
	a.Count++
	a.Sum += v
	a.SumSq += v * v
}

// Merge folds another accumulator into this one. Merge order does not
// affect the finalized result, so partial aggregates from concurrent
// map tasks can arrive in any order.
func (a *Aggregate) Merge(b Aggregate) {
	if b.Count == 0 {
		return
	}
	if a.Count == 0 {
		*a = b
		return
	}
	if b.Min < a.Min {
		a.Min = b.Min
	}
	if b.Max > a.Max {
		a.Max = b.Max
	}
	a.Count += b.Count
	a.Sum += b.Sum
	a.SumSq += b.SumSq
}

// Summary is the finalized view of an Aggregate.
type Summary struct {
	Count    uint64  `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	Std      float64 `json:"std"`
	Range    float64 `json:"range"`
}

// Finalize derives mean, population variance and std from the
// accumulated state. The variance comes from the sum-of-squares
// identity E[X^2] - E[X]^2 so it can be computed after merging without
// retaining the values. Returns ok=false for an empty accumulator
// instead of letting NaN leak downstream.
func (a Aggregate) Finalize() (Summary, bool) {
	if a.Count == 0 {
		return Summary{}, false
	}
	n := float64(a.Count)
	mean := a.Sum / n
	variance := a.SumSq/n - mean*mean
	if variance < 0 {
		// Floating-point cancellation can push a tiny negative here.
		variance = 0
	}
	return Summary{
		Count:    a.Count,
		Min:      a.Min,
		Max:      a.Max,
		Mean:     mean,
		Variance: variance,
		Std:      math.Sqrt(variance),
		Range:    a.Max - a.Min,
	}, true
}

// MultiAggregate accumulates many named features in parallel.
type MultiAggregate map[string]*Aggregate

// Add accumulates one value for one feature.
func (m MultiAggregate) Add(feature string, v float64) {
	agg, ok := m[feature]
	if !ok {
		agg = &Aggregate{}
		m[feature] = agg
	}
	agg.Add(v)
}

// Merge folds another multi-feature accumulator into this one.
func (m MultiAggregate) Merge(other MultiAggregate) {
	for feature, agg := range other {
		dst, ok := m[feature]
		if !ok {
			m[feature] = &Aggregate{Count: agg.Count, Sum: agg.Sum, SumSq: agg.SumSq, Min: agg.Min, Max: agg.Max}
			continue
		}
		dst.Merge(*agg)
	}
}
