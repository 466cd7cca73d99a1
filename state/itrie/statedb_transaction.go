package itrie

import (
	"errors"
	"fmt"

	"github.com/minichain-lab/minichain/helper/rawdb"
	"github.com/minichain-lab/minichain/types"
	"go.uber.org/atomic"
)

var ErrStateTransactionIsCancel = errors.New("state transaction is cancelled")

// StateDBTransaction buffers trie nodes and code until one atomic KV batch
// commits them. Reads see the buffered entries first.
type StateDBTransaction interface {
	NodeReader

	Set(k, v []byte) error
	Delete(k []byte) error

	GetCode(hash types.Hash) ([]byte, bool)
	SetCode(hash types.Hash, code []byte) error

	// NewTrieAt opens a trie at the given root, resolving nodes through
	// the uncommitted buffer first
	NewTrieAt(root types.Hash) (*Trie, error)

	Commit() error
	Rollback()
}

type txnPair struct {
	key    []byte
	value  []byte
	isCode bool
}

type stateDBTxn struct {
	db      map[string]*txnPair
	stateDB *stateDBImpl
	cancel  *atomic.Bool
}

func newStateDBTxn(stateDB *stateDBImpl) *stateDBTxn {
	return &stateDBTxn{
		db:      make(map[string]*txnPair),
		stateDB: stateDB,
		cancel:  atomic.NewBool(false),
	}
}

func (tx *stateDBTxn) Set(k, v []byte) error {
	pair := &txnPair{
		key:   append([]byte{}, k...),
		value: append([]byte{}, v...),
	}

	tx.db[string(k)] = pair

	return nil
}

func (tx *stateDBTxn) Delete(k []byte) error {
	delete(tx.db, string(k))

	return nil
}

// GetNode reads through the buffered nodes into the state database
func (tx *stateDBTxn) GetNode(hash []byte) (Node, bool, error) {
	if pair, ok := tx.db[string(rawdb.TrieNodeKey(hash))]; ok {
		return parseNode(pair.value)
	}

	return tx.stateDB.GetNode(hash)
}

func (tx *stateDBTxn) SetCode(hash types.Hash, code []byte) error {
	key := rawdb.CodeKey(hash)

	tx.db[string(key)] = &txnPair{
		key:    append([]byte{}, key...),
		value:  append([]byte{}, code...),
		isCode: true,
	}

	return nil
}

func (tx *stateDBTxn) GetCode(hash types.Hash) ([]byte, bool) {
	if pair, ok := tx.db[string(rawdb.CodeKey(hash))]; ok {
		return append([]byte{}, pair.value...), true
	}

	return tx.stateDB.GetCode(hash)
}

func (tx *stateDBTxn) NewTrieAt(root types.Hash) (*Trie, error) {
	if root == types.EmptyRootHash || root == types.ZeroHash {
		// empty storage trie
		return &Trie{stateDB: tx.stateDB}, nil
	}

	n, ok, err := tx.GetNode(root.Bytes())
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%w: state not found at hash %s", ErrCorruptNode, root)
	}

	return &Trie{stateDB: tx.stateDB, root: n}, nil
}

func (tx *stateDBTxn) Commit() error {
	if tx.cancel.Load() {
		return ErrStateTransactionIsCancel
	}

	batch := tx.stateDB.db.NewBatch()

	for _, pair := range tx.db {
		if err := batch.Set(pair.key, pair.value); err != nil {
			return err
		}
	}

	return batch.Write()
}

// Rollback discards any uncommitted entries
func (tx *stateDBTxn) Rollback() {
	if alreadyCancel := tx.cancel.Swap(true); alreadyCancel {
		return
	}

	tx.db = nil
}
