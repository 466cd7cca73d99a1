package kvdb

import "io"

// KVReader wraps the Get method of a backing data store.
type KVReader interface {
	// Has retrieves if a key is present in the key-value data store.
	Has(key []byte) (bool, error)
	// Get retrieves the given key if it's present in the key-value data store.
	Get(key []byte) (value []byte, exists bool, err error)
}

// KVWriter wraps the Set and Delete methods of a backing data store.
type KVWriter interface {
	// Set inserts the given value into the key-value data store.
	Set(k, v []byte) error
	// Delete removes the key from the key-value data store.
	Delete(key []byte) error
}

// Batch is a write-only store that buffers changes to its host db
// until Write is called. A batch, once written, is applied atomically.
type Batch interface {
	KVWriter

	// Write flushes any accumulated data to disk.
	Write() error
}

// Batcher wraps the NewBatch method of a backing data store.
type Batcher interface {
	// NewBatch creates a write-only database that buffers changes to its host db
	// until a final write is called.
	NewBatch() Batch
}

// Iterator walks a sorted subset of the keys of a backing data store.
type Iterator interface {
	// Next moves the iterator to the next key/value pair.
	// It returns false if the iterator is exhausted.
	Next() bool

	// Key returns the key of the current key/value pair, or nil if done.
	// The caller should not modify the contents of the returned slice, and
	// its contents may change on the next call to Next.
	Key() []byte

	// Value returns the value of the current key/value pair, or nil if done.
	Value() []byte

	// Release releases associated resources. Release should always succeed
	// and can be called multiple times without causing error.
	Release()

	// Error returns any accumulated error.
	Error() error
}

// Iteratee wraps the NewIterator method of a backing data store.
type Iteratee interface {
	// NewIterator creates a binary-alphabetical iterator over a subset
	// of database content with a particular key prefix, starting at a particular
	// initial key (or after, if it does not exist).
	NewIterator(prefix, start []byte) Iterator
}

// Database contains all the methods required by the high level layers to
// access the key-value data store.
type Database interface {
	KVReader
	KVWriter
	Batcher
	Iteratee
	io.Closer
}
