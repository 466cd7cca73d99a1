package itrie

import (
	"bytes"
	"errors"

	"github.com/minichain-lab/minichain/crypto"
	"github.com/minichain-lab/minichain/state"
	"github.com/minichain-lab/minichain/state/stypes"
	"github.com/minichain-lab/minichain/types"
	"github.com/umbracle/fastrlp"
)

// Snapshot is a read view over one committed state root
type Snapshot struct {
	stateDB StateDB
	trie    *Trie
}

func (s *Snapshot) GetAccount(addr types.Address) (*stypes.Account, error) {
	key := crypto.Keccak256(addr.Bytes())

	data, err := s.trie.Get(key, s.stateDB)
	if err != nil {
		return nil, err
	} else if data == nil {
		// not found
		return nil, nil
	}

	var account stypes.Account
	if err := account.UnmarshalRlp(data); err != nil {
		return nil, err
	}

	return &account, nil
}

func (s *Snapshot) GetStorage(addr types.Address, root types.Hash, rawkey types.Hash) (types.Hash, error) {
	var (
		err error
		ss  state.Snapshot
	)

	if root == types.EmptyRootHash || root == types.ZeroHash {
		return types.Hash{}, nil
	}

	ss, err = s.stateDB.NewSnapshotAt(root)
	if err != nil {
		return types.Hash{}, err
	}

	snapshot, ok := ss.(*Snapshot)
	if !ok {
		return types.Hash{}, errors.New("invalid snapshot type")
	}

	// slot to hash
	key := crypto.Keccak256(rawkey.Bytes())

	val, err := snapshot.trie.Get(key, s.stateDB)
	if err != nil {
		return types.Hash{}, err
	} else if len(val) == 0 {
		// not found
		return types.Hash{}, nil
	}

	p := storageParserPool.Get()
	defer storageParserPool.Put(p)

	v, err := p.Parse(val)
	if err != nil {
		return types.Hash{}, err
	}

	res, err := v.GetBytes(nil)
	if err != nil {
		return types.Hash{}, err
	}

	return types.BytesToHash(res), nil
}

func (s *Snapshot) GetCode(hash types.Hash) ([]byte, bool) {
	return s.stateDB.GetCode(hash)
}

var storageParserPool fastrlp.ParserPool

// Commit folds the dirty objects into the account and storage tries and
// persists all new trie nodes and code in one atomic KV batch. It returns
// the snapshot of the new root.
func (s *Snapshot) Commit(objs []*stypes.Object) (state.Snapshot, []byte, error) {
	var (
		root  []byte
		nTrie *Trie
	)

	err := s.stateDB.Transaction(func(st StateDBTransaction) error {
		tt := s.trie.TxnAt(st)

		arena := fastrlp.DefaultArenaPool.Get()
		defer fastrlp.DefaultArenaPool.Put(arena)

		ar1 := fastrlp.DefaultArenaPool.Get()
		defer fastrlp.DefaultArenaPool.Put(ar1)

		for _, obj := range objs {
			if obj.Deleted {
				if err := tt.Delete(crypto.Keccak256(obj.Address.Bytes())); err != nil {
					return err
				}

				continue
			}

			account := stypes.Account{
				Balance:     obj.Balance,
				Nonce:       obj.Nonce,
				CodeHash:    obj.CodeHash.Bytes(),
				StorageRoot: obj.Root, // old root
			}

			if len(obj.Storage) != 0 {
				localTrie, err := st.NewTrieAt(obj.Root)
				if err != nil {
					return err
				}

				localTxn := localTrie.TxnAt(st)

				for _, entry := range obj.Storage {
					k := crypto.Keccak256(entry.Key)

					if entry.Deleted {
						if err := localTxn.Delete(k); err != nil {
							return err
						}
					} else {
						vv := ar1.NewBytes(bytes.TrimLeft(entry.Val, "\x00"))
						if err := localTxn.Insert(k, vv.MarshalTo(nil)); err != nil {
							return err
						}

						ar1.Reset()
					}
				}

				accountStateRoot, err := localTxn.Hash(st)
				if err != nil {
					return err
				}

				account.StorageRoot = types.BytesToHash(accountStateRoot)

				// keep the object root fresh for any later reads
				obj.Root = account.StorageRoot
			}

			if obj.DirtyCode {
				if err := st.SetCode(obj.CodeHash, obj.Code); err != nil {
					return err
				}
			}

			vv := account.MarshalWith(arena)
			data := vv.MarshalTo(nil)

			if err := tt.Insert(crypto.Keccak256(obj.Address.Bytes()), data); err != nil {
				return err
			}

			arena.Reset()
		}

		var err error

		root, err = tt.Hash(st)
		if err != nil {
			return err
		}

		nTrie = &Trie{stateDB: s.stateDB, root: tt.root}

		// commit all entries to the database
		return st.Commit()
	})
	if err != nil {
		return nil, nil, err
	}

	return &Snapshot{stateDB: s.stateDB, trie: nTrie}, root, nil
}
