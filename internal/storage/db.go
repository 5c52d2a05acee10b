// Package storage provides the key-value database abstraction the chain
// store is built on: a flat byte-string keyspace with prefix iteration and
// atomic multi-key batches (spec.md §4.1/§9, "polymorphic store backends").
package storage

import "errors"

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("storage: key not found")

// DB is the interface every backend (Badger, in-memory) satisfies.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in ascending key
	// order. The callback receives a copy of the key and value. Returning a
	// non-nil error from fn stops iteration early and propagates the error.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	// NewBatch starts an atomic write batch: either every Put/Delete in the
	// batch becomes visible on Commit, or none do (spec.md §4.1, "either all
	// keys are visible after commit or none are").
	NewBatch() Batch
	Close() error
}

// Batch accumulates writes for atomic commit. A Batch is not safe for
// concurrent use.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Commit() error
	// Len reports the number of operations queued so far.
	Len() int
}
