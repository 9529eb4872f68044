package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Registry stores trained model artifacts in BadgerDB, addressed by
// dataset_id. One model per dataset; retraining overwrites.
type Registry struct {
	db *badger.DB
}

// RegistryConfig holds BadgerDB configuration for the registry.
type RegistryConfig struct {
	// Path to store database files.
	Path string

	// InMemory mode (for testing).
	InMemory bool
}

// Entry is a stored artifact plus its training metadata.
type Entry struct {
	DatasetID string    `json:"dataset_id"`
	TrainedAt time.Time `json:"trained_at"`
	Report    Report    `json:"report"`
	Artifact  []byte    `json:"artifact"`
}

// Info is the listing view of an Entry, without the artifact bytes.
type Info struct {
	DatasetID string    `json:"dataset_id"`
	TrainedAt time.Time `json:"trained_at"`
	Report    Report    `json:"report"`
}

// OpenRegistry opens the model store.
func OpenRegistry(cfg RegistryConfig) (*Registry, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	// Model artifacts are few and small; keep Badger quiet and lean.
	opts = opts.WithLogger(nil).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open model registry: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close shuts the store down.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Put stores a trained artifact for a dataset.
func (r *Registry) Put(datasetID string, artifact Artifact, report Report) error {
	data, err := artifact.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode artifact for %s: %w", datasetID, err)
	}
	entry := Entry{
		DatasetID: datasetID,
		TrainedAt: time.Now().UTC(),
		Report:    report,
		Artifact:  data,
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode registry entry: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(modelKey(datasetID), value)
	})
}

// Get loads the entry for a dataset. Returns ErrNotFound when the
// dataset was never trained.
func (r *Registry) Get(datasetID string) (Entry, error) {
	var entry Entry
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(modelKey(datasetID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: dataset %s", ErrNotFound, datasetID)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Forest loads and decodes the trained forest for a dataset.
func (r *Registry) Forest(datasetID string) (*Forest, Entry, error) {
	entry, err := r.Get(datasetID)
	if err != nil {
		return nil, Entry{}, err
	}
	forest, err := UnmarshalForest(entry.Artifact)
	if err != nil {
		return nil, Entry{}, fmt.Errorf("corrupt artifact for %s: %w", datasetID, err)
	}
	return forest, entry, nil
}

// List returns metadata for every stored model.
func (r *Registry) List() ([]Info, error) {
	var out []Info
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("model/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				out = append(out, Info{
					DatasetID: entry.DatasetID,
					TrainedAt: entry.TrainedAt,
					Report:    entry.Report,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func modelKey(datasetID string) []byte {
	return []byte("model/" + datasetID)
}
