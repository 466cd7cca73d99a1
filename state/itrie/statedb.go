package itrie

import (
	"fmt"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/hashicorp/go-hclog"
	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/helper/rawdb"
	"github.com/minichain-lab/minichain/state"
	"github.com/minichain-lab/minichain/types"
)

const (
	nodeCacheSize = 32 * 1024 * 1024
	codeCacheSize = 16 * 1024 * 1024
)

// StateDB is the trie-backed state database: content-addressed trie nodes
// under the T prefix and contract code under the C prefix of one KV backend
type StateDB interface {
	NodeReader

	GetCode(hash types.Hash) ([]byte, bool)

	NewSnapshot() state.Snapshot
	NewSnapshotAt(types.Hash) (state.Snapshot, error)

	Transaction(execute func(st StateDBTransaction) error) error

	Logger() hclog.Logger
}

type stateDBImpl struct {
	logger hclog.Logger

	db        kvdb.Database
	cached    *fastcache.Cache
	codeCache *fastcache.Cache

	txnMux sync.Mutex
}

func NewStateDB(db kvdb.Database, logger hclog.Logger) StateDB {
	return &stateDBImpl{
		logger:    logger.Named("state"),
		db:        db,
		cached:    fastcache.New(nodeCacheSize),
		codeCache: fastcache.New(codeCacheSize),
	}
}

func (db *stateDBImpl) Logger() hclog.Logger {
	return db.logger
}

func (db *stateDBImpl) getNodeData(hash []byte) ([]byte, bool, error) {
	if enc := db.cached.Get(nil, hash); enc != nil {
		return enc, true, nil
	}

	v, ok, err := db.db.Get(rawdb.TrieNodeKey(hash))
	if err != nil {
		return nil, false, err
	}

	if ok {
		db.cached.Set(hash, v)
	}

	return v, ok, err
}

// GetNode resolves a trie node by its keccak-256 digest
func (db *stateDBImpl) GetNode(hash []byte) (Node, bool, error) {
	data, ok, err := db.getNodeData(hash)
	if err != nil || !ok {
		return nil, false, err
	}

	return parseNode(data)
}

func parseNode(data []byte) (Node, bool, error) {
	p := nodeParserPool.Get()
	defer nodeParserPool.Put(p)

	v, err := p.Parse(data)
	if err != nil {
		return nil, false, err
	}

	n, err := decodeNode(v)
	if err != nil {
		return nil, false, err
	}

	return n, true, nil
}

func (db *stateDBImpl) GetCode(hash types.Hash) ([]byte, bool) {
	if hash == types.EmptyCodeHash {
		return []byte{}, true
	}

	key := rawdb.CodeKey(hash)
	if enc := db.codeCache.Get(nil, key); enc != nil {
		return enc, true
	}

	v, ok, err := db.db.Get(key)
	if err != nil {
		db.logger.Error("failed to get code", "err", err)

		return []byte{}, false
	}

	if !ok {
		return []byte{}, false
	}

	db.codeCache.Set(key, v)

	return v, true
}

func (db *stateDBImpl) newTrie() *Trie {
	return &Trie{stateDB: db}
}

func (db *stateDBImpl) newTrieAt(root types.Hash) (*Trie, error) {
	if root == types.EmptyRootHash {
		// empty state
		return db.newTrie(), nil
	}

	n, ok, err := db.GetNode(root.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to get state root %s: %w", root, err)
	} else if !ok {
		return nil, fmt.Errorf("%w: state not found at hash %s", ErrCorruptNode, root)
	}

	t := db.newTrie()
	t.root = n

	return t, nil
}

func (db *stateDBImpl) NewSnapshot() state.Snapshot {
	return &Snapshot{stateDB: db, trie: db.newTrie()}
}

func (db *stateDBImpl) NewSnapshotAt(root types.Hash) (state.Snapshot, error) {
	t, err := db.newTrieAt(root)
	if err != nil {
		return nil, err
	}

	return &Snapshot{stateDB: db, trie: t}, nil
}

func (db *stateDBImpl) Transaction(execute func(st StateDBTransaction) error) error {
	db.txnMux.Lock()
	defer db.txnMux.Unlock()

	txn := newStateDBTxn(db)

	err := execute(txn)

	// write-back the cache only for committed entries
	if err == nil {
		for _, pair := range txn.db {
			if pair.isCode {
				db.codeCache.Set(pair.key, pair.value)
			} else {
				db.cached.Set(pair.key[len(rawdb.TriePrefix):], pair.value)
			}
		}
	}

	return err
}
