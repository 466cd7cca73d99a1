package itrie

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateDB(t *testing.T) StateDB {
	t.Helper()

	return NewStateDB(kvdb.NewMemoryDB(), hclog.NewNullLogger())
}

// commitKV writes a set of key/values starting from the given trie and
// returns the resulting root
func commitKV(t *testing.T, db StateDB, root types.Hash, kv map[string]string) types.Hash {
	t.Helper()

	var newRoot []byte

	err := db.Transaction(func(st StateDBTransaction) error {
		trie, err := st.NewTrieAt(root)
		if err != nil {
			return err
		}

		txn := trie.TxnAt(st)

		for k, v := range kv {
			if v == "" {
				if err := txn.Delete([]byte(k)); err != nil {
					return err
				}
			} else {
				if err := txn.Insert([]byte(k), []byte(v)); err != nil {
					return err
				}
			}
		}

		newRoot, err = txn.Hash(st)
		if err != nil {
			return err
		}

		return st.Commit()
	})
	require.NoError(t, err)

	return types.BytesToHash(newRoot)
}

func readKV(t *testing.T, db StateDB, root types.Hash, key string) []byte {
	t.Helper()

	trie, err := db.(*stateDBImpl).newTrieAt(root)
	require.NoError(t, err)

	val, err := trie.Get([]byte(key), db)
	require.NoError(t, err)

	return val
}

func TestTrie_EmptyRootHash(t *testing.T) {
	db := newTestStateDB(t)

	trie := db.(*stateDBImpl).newTrie()
	txn := trie.Txn()

	root, err := txn.Hash(kvdb.NewMemoryDB().NewBatch())
	require.NoError(t, err)

	assert.Equal(t, types.EmptyRootHash, types.BytesToHash(root))
}

func TestTrie_InsertAndLookup(t *testing.T) {
	db := newTestStateDB(t)

	root := commitKV(t, db, types.EmptyRootHash, map[string]string{
		"dog":    "puppy",
		"doge":   "coin",
		"horse":  "stallion",
		"almost": "empty",
	})

	assert.Equal(t, []byte("puppy"), readKV(t, db, root, "dog"))
	assert.Equal(t, []byte("coin"), readKV(t, db, root, "doge"))
	assert.Equal(t, []byte("stallion"), readKV(t, db, root, "horse"))
	assert.Nil(t, readKV(t, db, root, "cat"))
}

func TestTrie_RootIsDeterministic(t *testing.T) {
	kv := map[string]string{
		"a":   "1",
		"ab":  "2",
		"abc": "3",
		"b":   "4",
	}

	rootA := commitKV(t, newTestStateDB(t), types.EmptyRootHash, kv)
	rootB := commitKV(t, newTestStateDB(t), types.EmptyRootHash, kv)

	assert.Equal(t, rootA, rootB)
}

func TestTrie_OldRootsStayReadable(t *testing.T) {
	db := newTestStateDB(t)

	root1 := commitKV(t, db, types.EmptyRootHash, map[string]string{"key": "one"})
	root2 := commitKV(t, db, root1, map[string]string{"key": "two"})

	assert.Equal(t, []byte("one"), readKV(t, db, root1, "key"))
	assert.Equal(t, []byte("two"), readKV(t, db, root2, "key"))
}

func TestTrie_DeleteRestoresRoot(t *testing.T) {
	db := newTestStateDB(t)

	base := commitKV(t, db, types.EmptyRootHash, map[string]string{
		"alpha": "1",
		"beta":  "2",
	})

	// write then delete the same key, root must come back
	withKey := commitKV(t, db, base, map[string]string{"gamma": "3"})
	assert.NotEqual(t, base, withKey)

	restored := commitKV(t, db, withKey, map[string]string{"gamma": ""})
	assert.Equal(t, base, restored)
}

func TestTrie_UpdateWithSameValueKeepsRoot(t *testing.T) {
	db := newTestStateDB(t)

	root := commitKV(t, db, types.EmptyRootHash, map[string]string{"key": "value"})

	same := commitKV(t, db, root, map[string]string{"key": "value"})
	assert.Equal(t, root, same)
}

func TestTrie_MissingNodeIsCorrupt(t *testing.T) {
	db := newTestStateDB(t)

	// a root hash that was never stored
	missing := types.StringToHash("0x11223344556677889900aabbccddeeff11223344556677889900aabbccddeeff")

	_, err := db.NewSnapshotAt(missing)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptNode)
}

func TestTrie_Diff(t *testing.T) {
	db := newTestStateDB(t)

	rootA := commitKV(t, db, types.EmptyRootHash, map[string]string{
		"stay":   "same",
		"change": "before",
		"gone":   "deleted",
	})

	rootB := commitKV(t, db, rootA, map[string]string{
		"change": "after",
		"gone":   "",
		"fresh":  "added",
	})

	entries, err := Diff(db, rootA, rootB)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byKey := map[string]*DiffEntry{}
	for _, e := range entries {
		byKey[string(e.Key)] = e
	}

	assert.Equal(t, []byte("before"), byKey["change"].Old)
	assert.Equal(t, []byte("after"), byKey["change"].New)

	assert.Equal(t, []byte("deleted"), byKey["gone"].Old)
	assert.Nil(t, byKey["gone"].New)

	assert.Nil(t, byKey["fresh"].Old)
	assert.Equal(t, []byte("added"), byKey["fresh"].New)
}
