package mapreduce

import (
	"bytes"
	"context"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

// sumJob is a minimal job for driver tests: lines are "key value",
// output is {"sum":..,"count":..} per key. Keys whose sum is negative
// finalize to ok=false to exercise exclusion.
type sumJob struct{}

type sumAcc struct {
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

func (sumJob) Name() string { return "sum" }

func (sumJob) Map(line string, emit func(string, Value)) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return
	}
	emit(fields[0], v)
}

func (sumJob) NewAccumulator() Accumulator { return &sumAcc{} }

func (a *sumAcc) Observe(v Value) {
	a.Sum += v.(float64)
	a.Count++
}

func (a *sumAcc) Merge(other Accumulator) {
	o := other.(*sumAcc)
	a.Sum += o.Sum
	a.Count += o.Count
}

func (a *sumAcc) Finalize() (interface{}, bool) {
	if a.Sum < 0 {
		return nil, false
	}
	return *a, true
}

var testLines = []string{
	"a 1", "b 10", "a 2", "corrupt", "c -5", "b 20", "a 3", "", "b 30",
}

func runSum(t *testing.T, partitions [][]string, opts Options) []Result {
	t.Helper()
	results, err := Run(context.Background(), sumJob{}, partitions, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return results
}

func TestRunBasic(t *testing.T) {
	results := runSum(t, [][]string{testLines}, Options{})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (c excluded, corrupt lines dropped): %+v", len(results), results)
	}
	// Output sorted by key.
	if results[0].Key != "a" || results[1].Key != "b" {
		t.Fatalf("results not key-sorted: %+v", results)
	}
	a := results[0].Value.(sumAcc)
	if a.Sum != 6 || a.Count != 3 {
		t.Fatalf("key a: %+v", a)
	}
	b := results[1].Value.(sumAcc)
	if b.Sum != 60 || b.Count != 3 {
		t.Fatalf("key b: %+v", b)
	}
}

func TestCombineIsNoOpEquivalent(t *testing.T) {
	partitions := [][]string{testLines[:3], testLines[3:6], testLines[6:]}

	plain := runSum(t, partitions, Options{Combine: false})
	combined := runSum(t, partitions, Options{Combine: true})

	if !reflect.DeepEqual(plain, combined) {
		t.Fatalf("combine changed output:\nplain:    %+v\ncombined: %+v", plain, combined)
	}
}

func TestPartitioningDoesNotChangeOutput(t *testing.T) {
	want := runSum(t, [][]string{testLines}, Options{})

	splits := [][][]string{
		{testLines[:1], testLines[1:]},
		{testLines[:4], testLines[4:7], testLines[7:]},
	}
	for i, partitions := range splits {
		got := runSum(t, partitions, Options{Combine: i%2 == 0})
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split %d changed output: %+v vs %+v", i, got, want)
		}
	}
}

func TestExecutionModeDoesNotChangeOutput(t *testing.T) {
	partitions := [][]string{testLines[:3], testLines[3:6], testLines[6:]}

	want := runSum(t, partitions, Options{Parallelism: 1, Shards: 1})
	for _, parallelism := range []int{2, 4, 8} {
		got := runSum(t, partitions, Options{Parallelism: parallelism, Combine: true})
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("parallelism %d changed output: %+v vs %+v", parallelism, got, want)
		}
	}
}

func TestEmptyInput(t *testing.T) {
	results := runSum(t, nil, Options{})
	if len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, sumJob{}, [][]string{testLines}, Options{}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestCancelledContextMorePartitionsThanWorkers(t *testing.T) {
	// With a single worker and several partitions, the feed loop must
	// not block after the worker sees the cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	partitions := [][]string{testLines[:3], testLines[3:6], testLines[6:]}

	done := make(chan error, 1)
	go func() {
		_, err := Run(ctx, sumJob{}, partitions, Options{Parallelism: 1})
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error from cancelled context")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestPartitionLines(t *testing.T) {
	input := strings.Join([]string{"l1", "l2", "l3", "l4", "l5"}, "\n")
	partitions, err := PartitionLines(strings.NewReader(input), 2)
	if err != nil {
		t.Fatalf("PartitionLines: %v", err)
	}
	if len(partitions) != 3 {
		t.Fatalf("got %d partitions, want 3", len(partitions))
	}
	if len(partitions[2]) != 1 || partitions[2][0] != "l5" {
		t.Fatalf("tail partition wrong: %+v", partitions[2])
	}
}

func TestWriteResults(t *testing.T) {
	results := runSum(t, [][]string{testLines}, Options{})

	var buf bytes.Buffer
	if err := WriteResults(&buf, results); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d output lines, want 2", len(lines))
	}
	if lines[0] != "a\t{\"sum\":6,\"count\":3}" {
		t.Fatalf("unexpected output line: %q", lines[0])
	}
	for _, l := range lines {
		if !strings.Contains(l, "\t") {
			t.Fatalf("line missing tab separator: %q", l)
		}
	}
}
