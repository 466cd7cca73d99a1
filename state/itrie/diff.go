package itrie

import (
	"bytes"
	"sort"

	"github.com/minichain-lab/minichain/types"
)

// DiffEntry is one changed key between two trie versions. Old is nil for
// insertions, New is nil for deletions.
type DiffEntry struct {
	Key []byte
	Old []byte
	New []byte
}

// Diff walks two roots of the same state database and returns the keys
// whose values differ, sorted by key. Keys are returned in their stored
// (hashed) form.
func Diff(db StateDB, rootA, rootB types.Hash) ([]*DiffEntry, error) {
	leavesA, err := collectLeaves(db, rootA)
	if err != nil {
		return nil, err
	}

	leavesB, err := collectLeaves(db, rootB)
	if err != nil {
		return nil, err
	}

	keys := map[string]struct{}{}
	for k := range leavesA {
		keys[k] = struct{}{}
	}

	for k := range leavesB {
		keys[k] = struct{}{}
	}

	entries := make([]*DiffEntry, 0, len(keys))

	for k := range keys {
		oldVal, newVal := leavesA[k], leavesB[k]
		if bytes.Equal(oldVal, newVal) {
			continue
		}

		entries = append(entries, &DiffEntry{Key: []byte(k), Old: oldVal, New: newVal})
	}

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})

	return entries, nil
}

func collectLeaves(db StateDB, root types.Hash) (map[string][]byte, error) {
	leaves := map[string][]byte{}

	if root == types.EmptyRootHash || root == types.ZeroHash {
		return leaves, nil
	}

	n, ok, err := db.GetNode(root.Bytes())
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrCorruptNode
	}

	if err := walkNode(db, n, nil, leaves); err != nil {
		return nil, err
	}

	return leaves, nil
}

func walkNode(db StateDB, node Node, path []byte, leaves map[string][]byte) error {
	switch n := node.(type) {
	case nil:
		return nil

	case *ValueNode:
		if n.hash {
			nc, err := resolveNode(db, n)
			if err != nil {
				return err
			}

			return walkNode(db, nc, path, leaves)
		}

		leaves[string(nibblesToKey(path))] = append([]byte{}, n.buf...)

		return nil

	case *ShortNode:
		return walkNode(db, n.child, concat(path, n.key), leaves)

	case *FullNode:
		for i, child := range n.children {
			if child == nil {
				continue
			}

			if err := walkNode(db, child, concat(path, []byte{byte(i)}), leaves); err != nil {
				return err
			}
		}

		if n.value != nil {
			return walkNode(db, n.value, concat(path, []byte{terminatorNibble}), leaves)
		}

		return nil

	default:
		return ErrCorruptNode
	}
}

func nibblesToKey(path []byte) []byte {
	if hasTerminator(path) {
		path = path[:len(path)-1]
	}

	key := make([]byte, len(path)/2)
	decodeNibbles(path, key)

	return key
}
