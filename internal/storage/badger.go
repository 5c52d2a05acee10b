package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB implements DB using Badger, an embedded LSM-tree key-value
// store (spec.md §9's column-family store backend).
type BadgerDB struct {
	db *badger.DB
}

// NewBadger opens (creating if necessary) a Badger database at path.
func NewBadger(path string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("database at %s is locked by another process (is another cellnoded instance running?): %w", path, err)
		}
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	return &BadgerDB{db: db}, nil
}

// Get retrieves a value by key.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

// Put stores a key-value pair outside of a batch.
func (b *BadgerDB) Put(key, value []byte) error {
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}); err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Delete removes a key outside of a batch.
func (b *BadgerDB) Delete(key []byte) error {
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}); err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (b *BadgerDB) Has(key []byte) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger has: %w", err)
	}
	return exists, nil
}

// ForEach iterates over all keys with the given prefix, in ascending order.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

// NewBatch returns a Batch backed by Badger's native WriteBatch, which
// commits every queued operation in a single transaction.
func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{wb: b.db.NewWriteBatch()}
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}

type badgerBatch struct {
	wb  *badger.WriteBatch
	n   int
	err error
}

func (b *badgerBatch) Put(key, value []byte) {
	if b.err != nil {
		return
	}
	b.err = b.wb.Set(key, value)
	b.n++
}

func (b *badgerBatch) Delete(key []byte) {
	if b.err != nil {
		return
	}
	b.err = b.wb.Delete(key)
	b.n++
}

func (b *badgerBatch) Len() int { return b.n }

func (b *badgerBatch) Commit() error {
	defer b.wb.Cancel()
	if b.err != nil {
		return fmt.Errorf("badger batch queue: %w", b.err)
	}
	if err := b.wb.Flush(); err != nil {
		return fmt.Errorf("badger batch commit: %w", err)
	}
	return nil
}
