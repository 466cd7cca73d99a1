package kvdb

import (
	"sort"
	"strings"
	"sync"
)

// memoryKV is an in-memory implementation of the kv storage, used by tests
// and throwaway chains
type memoryKV struct {
	mux sync.RWMutex
	db  map[string][]byte
}

// NewMemoryDB creates an in-memory database
func NewMemoryDB() Database {
	return &memoryKV{db: map[string][]byte{}}
}

func (m *memoryKV) Set(p []byte, v []byte) error {
	m.mux.Lock()
	defer m.mux.Unlock()

	buf := make([]byte, len(v))
	copy(buf, v)
	m.db[string(p)] = buf

	return nil
}

func (m *memoryKV) Delete(p []byte) error {
	m.mux.Lock()
	defer m.mux.Unlock()

	delete(m.db, string(p))

	return nil
}

func (m *memoryKV) Close() error {
	return nil
}

func (m *memoryKV) Has(p []byte) (bool, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()

	_, ok := m.db[string(p)]

	return ok, nil
}

func (m *memoryKV) Get(p []byte) ([]byte, bool, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()

	v, ok := m.db[string(p)]
	if !ok {
		return nil, false, nil
	}

	buf := make([]byte, len(v))
	copy(buf, v)

	return buf, true, nil
}

type memoryOp struct {
	key    string
	value  []byte
	delete bool
}

type memoryBatch struct {
	db  *memoryKV
	ops []memoryOp
}

func (m *memoryKV) NewBatch() Batch {
	return &memoryBatch{db: m}
}

func (b *memoryBatch) Set(k, v []byte) error {
	buf := make([]byte, len(v))
	copy(buf, v)
	b.ops = append(b.ops, memoryOp{key: string(k), value: buf})

	return nil
}

func (b *memoryBatch) Delete(k []byte) error {
	b.ops = append(b.ops, memoryOp{key: string(k), delete: true})

	return nil
}

func (b *memoryBatch) Write() error {
	b.db.mux.Lock()
	defer b.db.mux.Unlock()

	for _, op := range b.ops {
		if op.delete {
			delete(b.db.db, op.key)
		} else {
			b.db.db[op.key] = op.value
		}
	}

	b.ops = b.ops[:0]

	return nil
}

type memoryIterator struct {
	keys   []string
	values [][]byte
	index  int
}

func (m *memoryKV) NewIterator(prefix, start []byte) Iterator {
	m.mux.RLock()
	defer m.mux.RUnlock()

	var (
		pr = string(prefix)
		st = string(append(append([]byte{}, prefix...), start...))

		keys   []string
		values [][]byte
	)

	for key := range m.db {
		if strings.HasPrefix(key, pr) && key >= st {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	for _, key := range keys {
		values = append(values, m.db[key])
	}

	return &memoryIterator{keys: keys, values: values, index: -1}
}

func (it *memoryIterator) Next() bool {
	it.index++

	return it.index < len(it.keys)
}

func (it *memoryIterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}

	return []byte(it.keys[it.index])
}

func (it *memoryIterator) Value() []byte {
	if it.index < 0 || it.index >= len(it.values) {
		return nil
	}

	return it.values[it.index]
}

func (it *memoryIterator) Release() {}

func (it *memoryIterator) Error() error { return nil }
