package kvdb

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type levelBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelBatch) Set(k, v []byte) error {
	b.batch.Put(k, v)

	return nil
}

func (b *levelBatch) Delete(k []byte) error {
	b.batch.Delete(k)

	return nil
}

func (b *levelBatch) Write() error {
	return b.db.Write(b.batch, nil)
}

// levelDBKV is the leveldb implementation of the kv storage
type levelDBKV struct {
	db *leveldb.DB
}

// NewLevelDB creates a leveldb backed database at the given path
func NewLevelDB(path string) (Database, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}

	return &levelDBKV{db: db}, nil
}

func (kv *levelDBKV) NewBatch() Batch {
	return &levelBatch{db: kv.db, batch: &leveldb.Batch{}}
}

// Set sets the key-value pair in leveldb storage
func (kv *levelDBKV) Set(p []byte, v []byte) error {
	return kv.db.Put(p, v, nil)
}

// Delete removes the key from leveldb storage
func (kv *levelDBKV) Delete(p []byte) error {
	return kv.db.Delete(p, nil)
}

// Has checks for the key presence in leveldb storage
func (kv *levelDBKV) Has(p []byte) (bool, error) {
	return kv.db.Has(p, nil)
}

// Get retrieves the key-value pair in leveldb storage
func (kv *levelDBKV) Get(p []byte) ([]byte, bool, error) {
	data, err := kv.db.Get(p, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}

		return nil, false, err
	}

	return data, true, nil
}

// NewIterator creates a binary-alphabetical iterator over the key prefix
func (kv *levelDBKV) NewIterator(prefix, start []byte) Iterator {
	return kv.db.NewIterator(bytesPrefixRange(prefix, start), nil)
}

// Close closes the leveldb storage instance
func (kv *levelDBKV) Close() error {
	return kv.db.Close()
}

// bytesPrefixRange returns the key range that satisfies both a prefix and a
// start position
func bytesPrefixRange(prefix, start []byte) *util.Range {
	r := util.BytesPrefix(prefix)
	r.Start = append(r.Start, start...)

	return r
}
