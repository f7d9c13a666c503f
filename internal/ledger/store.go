// Package ledger keeps a bbolt history of tree builds and derives scaling
// reports from it.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-sod/pkd/internal/database"
	bolt "go.etcd.io/bbolt"
)

const (
	datasetKeys = "dataset:keys:"
	prefix      = "run:"
)

type FilterFn func(run Run) bool

func New(db *database.DB) *Store {
	return &Store{sDB: db}
}

type Store struct {
	sDB *database.DB
}

func (s *Store) extractKey(key string) string {
	return strings.TrimPrefix(key, prefix)
}

// Datasets lists every dataset that has recorded runs.
func (s *Store) Datasets() ([]string, error) {
	var keys []string
	err := s.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(datasetKeys))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, s.extractKey(string(k)))
		}
		return nil
	})

	return keys, err
}

func put(tx *bolt.Tx, run Run) error {
	bytes, err := json.Marshal(run)
	if err != nil {
		return err
	}
	b, err := tx.CreateBucketIfNotExists([]byte(prefix + run.Dataset))
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	if err := b.Put([]byte(run.ID.String()), bytes); err != nil {
		return fmt.Errorf("put to bucket error: %w", err)
	}
	keys, err := tx.CreateBucketIfNotExists([]byte(datasetKeys))
	if err != nil {
		return fmt.Errorf("unable create datasets bucket: %w", err)
	}
	if err := keys.Put([]byte(prefix+run.Dataset), []byte{0x0}); err != nil {
		return fmt.Errorf("unable put to datasets bucket: %w", err)
	}
	return nil
}

func (s *Store) Store(_ context.Context, run Run) error {
	if err := s.sDB.DB.Update(func(tx *bolt.Tx) error {
		return put(tx, run)
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}

func (s *Store) AppendMany(_ context.Context, runs []Run) error {
	if err := s.sDB.DB.Batch(func(tx *bolt.Tx) error {
		for _, run := range runs {
			if err := put(tx, run); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("batch transaction error: %w", err)
	}

	return nil
}

func (s *Store) Delete(_ context.Context, run Run) error {
	if err := s.sDB.DB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + run.Dataset))
		if b == nil {
			return nil
		}

		return b.Delete([]byte(run.ID.String()))
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}

// FindByDataset returns the runs of one dataset accepted by filter, in id
// order. A nil filter accepts every run.
func (s *Store) FindByDataset(dataset string, filter FilterFn) ([]Run, error) {
	var list []Run
	if err := s.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + dataset))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("json unmarshal error, %q", err)
			}
			if filter == nil || filter(run) {
				list = append(list, run)
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}

	return list, nil
}

func (s *Store) FindAll(_ context.Context, filter FilterFn) ([]Run, error) {
	datasets, err := s.Datasets()
	if err != nil {
		return nil, err
	}
	var runs []Run
	for _, dataset := range datasets {
		list, err := s.FindByDataset(dataset, filter)
		if err != nil {
			return nil, err
		}
		runs = append(runs, list...)
	}

	return runs, nil
}

func (s *Store) CountByDataset(dataset string) (int, error) {
	var length int
	if err := s.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + dataset))
		if b == nil {
			return nil
		}
		length = b.Stats().KeyN
		return nil
	}); err != nil {
		return 0, fmt.Errorf("view transaction error: %w", err)
	}

	return length, nil
}
