package itrie

import (
	"github.com/minichain-lab/minichain/helper/kvdb"
)

// Txn is a mutable view over a trie root. Mutations build fresh nodes;
// the nodes reachable from the original root are never modified, so old
// roots stay readable until explicitly pruned.
type Txn struct {
	reader NodeReader
	root   Node
}

func (t *Txn) Lookup(key []byte) ([]byte, error) {
	return lookupNode(t.reader, t.root, bytesToHexNibbles(key))
}

func (t *Txn) Insert(key, value []byte) error {
	root, err := insertNode(t.reader, t.root, bytesToHexNibbles(key), value)
	if err != nil {
		return err
	}

	t.root = root

	return nil
}

func (t *Txn) Delete(key []byte) error {
	root, ok, err := deleteNode(t.reader, t.root, bytesToHexNibbles(key))
	if err != nil {
		return err
	}

	if ok {
		t.root = root
	}

	return nil
}

// Hash persists all new nodes into the batch and returns the root hash
func (t *Txn) Hash(batch kvdb.KVWriter) ([]byte, error) {
	h := getHasher()
	defer putHasher(h)

	return h.hashRoot(t.root, batch)
}
