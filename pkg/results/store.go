// Package results persists finalized job runs so the dashboard layer
// can fetch the latest output of a job without re-running the batch.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/prognos/prognos/pkg/mapreduce"
)

// ErrNoRuns is returned when a job has never completed a run.
var ErrNoRuns = errors.New("no completed runs")

// Line is one persisted key/value output pair. Value keeps the job's
// JSON form verbatim.
type Line struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Run is one completed batch.
type Run struct {
	Job        string        `json:"job"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	InputLines int           `json:"input_lines"`
	Lines      []Line        `json:"lines"`
}

// Store keeps runs in BadgerDB, keyed run/<job>/<started-at>.
type Store struct {
	db *badger.DB
}

// Config holds BadgerDB configuration for the run store.
type Config struct {
	Path     string
	InMemory bool
}

// Open opens the run store.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close shuts the store down.
func (s *Store) Close() error { return s.db.Close() }

// Save persists one completed run. Only whole batches are saved;
// failed batches never reach the store.
func (s *Store) Save(run Run, output []mapreduce.Result) error {
	run.Lines = make([]Line, 0, len(output))
	for _, r := range output {
		value, err := json.Marshal(r.Value)
		if err != nil {
			return fmt.Errorf("failed to encode value for key %q: %w", r.Key, err)
		}
		run.Lines = append(run.Lines, Line{Key: r.Key, Value: value})
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(run.Job, run.StartedAt), data)
	})
}

// Latest returns the most recent completed run of a job.
func (s *Store) Latest(job string) (Run, error) {
	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte("run/" + job + "/")
		// Reverse iteration starts just past the prefix range.
		seek := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return fmt.Errorf("%w: job %s", ErrNoRuns, job)
		}
		return it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// runKey orders runs of one job chronologically under a shared prefix.
// Fixed-width timestamp so lexicographic order is chronological order.
func runKey(job string, startedAt time.Time) []byte {
	return []byte(fmt.Sprintf("run/%s/%s", job, startedAt.UTC().Format("2006-01-02T15:04:05.000000000Z")))
}
