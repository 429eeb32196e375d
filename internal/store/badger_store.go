package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"steemauth/internal/domain"
)

// BadgerStore is a string key-value store backed by a Badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger database in dir. An empty dir opens
// an in-memory database.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already opened database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get returns the value for key and whether it was present.
func (s *BadgerStore) Get(key string) (string, bool, error) {
	var (
		value []byte
		found bool
	)
	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not get value (key: %s): %w", key, err)
		}
		value, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("could not copy value (key: %s): %w", key, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return string(value), found, nil
}

// Set stores value under key.
func (s *BadgerStore) Set(key, value string) error {
	return s.db.Update(func(tx *badger.Txn) error {
		err := tx.Set([]byte(key), []byte(value))
		if err != nil {
			return fmt.Errorf("could not set value (key: %s): %w", key, err)
		}
		return nil
	})
}

// Delete removes key; a missing key is not an error.
func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(tx *badger.Txn) error {
		err := tx.Delete([]byte(key))
		if err != nil {
			return fmt.Errorf("could not delete value (key: %s): %w", key, err)
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Compile-time assertion that BadgerStore implements domain.Storage.
var _ domain.Storage = (*BadgerStore)(nil)
