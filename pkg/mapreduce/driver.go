// Package mapreduce is the shared control loop of the aggregation
// jobs: partitioned map over raw lines, optional per-partition
// combine, key-sharded shuffle, per-key reduce. Jobs plug in key
// emission and per-key accumulation; the loop never changes between
// job types, and the combine step is a pure volume optimization that
// cannot change finalized output.
package mapreduce

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Value is a job-specific mapped value flowing from Map to Reduce.
type Value interface{}

// Accumulator is the mergeable per-key reduction state. Observe and
// Merge must be order-independent: shuffle delivery order is
// unspecified.
type Accumulator interface {
	// Observe consumes one mapped value.
	Observe(v Value)

	// Merge folds another accumulator of the same key into this one.
	Merge(other Accumulator)

	// Finalize produces the key's JSON-serializable output value.
	// ok=false excludes the key from the output (insufficient data is
	// not a processing failure).
	Finalize() (interface{}, bool)
}

// Job defines one aggregation job's shape.
type Job interface {
	// Name is the stable job identifier.
	Name() string

	// Map parses one raw line and emits zero or more key/value pairs.
	// A line that cannot be parsed emits nothing; map never fails the
	// batch.
	Map(line string, emit func(key string, v Value))

	// NewAccumulator returns fresh per-key reduction state.
	NewAccumulator() Accumulator
}

// Options control execution, never output values.
type Options struct {
	// Parallelism is the number of concurrent map workers. 1 is the
	// single-process simulation mode; 0 defaults to 1.
	Parallelism int

	// Combine enables per-partition local pre-reduction before the
	// shuffle. Correctness must not depend on it, and the driver's
	// tests hold jobs to that.
	Combine bool

	// Shards is the number of reduce shards keys hash into. 0 defaults
	// to Parallelism.
	Shards int
}

// Result is one finalized output pair.
type Result struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// pair is a raw mapped emission crossing the shuffle uncombined.
type pair struct {
	key string
	val Value
}

// partitionOutput is everything one map task hands to the shuffle.
type partitionOutput struct {
	pairs    []pair
	combined map[string]Accumulator
}

// Run executes one batch. The batch either completes fully or fails;
// no partial results are returned on error.
func Run(ctx context.Context, job Job, partitions [][]string, opts Options) ([]Result, error) {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.Shards <= 0 {
		opts.Shards = opts.Parallelism
	}

	outputs, err := runMap(ctx, job, partitions, opts)
	if err != nil {
		return nil, fmt.Errorf("map phase: %w", err)
	}

	results, err := runReduce(ctx, job, outputs, opts)
	if err != nil {
		return nil, fmt.Errorf("reduce phase: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

// runMap fans partitions across workers. Workers share nothing; each
// produces an independent partitionOutput.
func runMap(ctx context.Context, job Job, partitions [][]string, opts Options) ([]partitionOutput, error) {
	outputs := make([]partitionOutput, len(partitions))
	work := make(chan int)

	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for w := 0; w < opts.Parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				// Keep draining after a cancellation so the feed loop
				// below never blocks on an unbuffered send.
				if err := ctx.Err(); err != nil {
					errOnce.Do(func() { firstErr = err })
					continue
				}
				outputs[idx] = mapPartition(job, partitions[idx], opts.Combine)
			}
		}()
	}

	for idx := range partitions {
		work <- idx
	}
	close(work)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return outputs, nil
}

// mapPartition runs Map over one partition's lines. With combine on,
// emissions fold into local accumulators instead of crossing the
// shuffle one value at a time.
func mapPartition(job Job, lines []string, combine bool) partitionOutput {
	var out partitionOutput
	if combine {
		out.combined = make(map[string]Accumulator)
		for _, line := range lines {
			job.Map(line, func(key string, v Value) {
				acc, ok := out.combined[key]
				if !ok {
					acc = job.NewAccumulator()
					out.combined[key] = acc
				}
				acc.Observe(v)
			})
		}
		return out
	}
	for _, line := range lines {
		job.Map(line, func(key string, v Value) {
			out.pairs = append(out.pairs, pair{key: key, val: v})
		})
	}
	return out
}

// runReduce shuffles map outputs into shards by key hash and reduces
// every shard independently. Within one key, inputs arrive in whatever
// order the partitions finished; the accumulator contract absorbs it.
func runReduce(ctx context.Context, job Job, outputs []partitionOutput, opts Options) ([]Result, error) {
	shards := make([]map[string]Accumulator, opts.Shards)
	for i := range shards {
		shards[i] = make(map[string]Accumulator)
	}
	shardOf := func(key string) int {
		return int(xxhash.Sum64String(key) % uint64(opts.Shards))
	}
	accFor := func(key string) Accumulator {
		shard := shards[shardOf(key)]
		acc, ok := shard[key]
		if !ok {
			acc = job.NewAccumulator()
			shard[key] = acc
		}
		return acc
	}

	// Shuffle. Single-threaded by design: this is the one
	// synchronization point of the batch.
	for _, out := range outputs {
		for _, p := range out.pairs {
			accFor(p.key).Observe(p.val)
		}
		for key, acc := range out.combined {
			accFor(key).Merge(acc)
		}
	}

	// Finalize shards concurrently; keys are disjoint across shards.
	resultCh := make(chan []Result, opts.Shards)
	var wg sync.WaitGroup
	for _, shard := range shards {
		wg.Add(1)
		go func(shard map[string]Accumulator) {
			defer wg.Done()
			var out []Result
			for key, acc := range shard {
				if v, ok := acc.Finalize(); ok {
					out = append(out, Result{Key: key, Value: v})
				}
			}
			resultCh <- out
		}(shard)
	}
	wg.Wait()
	close(resultCh)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []Result
	for out := range resultCh {
		results = append(results, out...)
	}
	return results, nil
}
