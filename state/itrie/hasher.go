package itrie

import (
	"fmt"
	"sync"

	"github.com/minichain-lab/minichain/helper/keccak"
	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/helper/rawdb"
	"github.com/umbracle/fastrlp"
)

type hasher struct {
	arena fastrlp.Arena
	tmp   []byte
}

var hasherPool = sync.Pool{
	New: func() interface{} {
		return new(hasher)
	},
}

func getHasher() *hasher {
	h, ok := hasherPool.Get().(*hasher)
	if !ok {
		panic("invalid type assertion") //nolint:gocritic
	}

	return h
}

func putHasher(h *hasher) {
	h.arena.Reset()
	hasherPool.Put(h)
}

// hashRoot folds the node tree into its root hash, persisting every node
// whose encoding is at least 32 bytes into the write batch. The root node
// is always persisted so that the trie can be reopened by its root hash.
func (h *hasher) hashRoot(node Node, batch kvdb.KVWriter) ([]byte, error) {
	if node == nil {
		return emptyRoot(), nil
	}

	v, err := h.hashNode(node, batch)
	if err != nil {
		return nil, err
	}

	if v.Type() == fastrlp.TypeBytes {
		if root, err := v.Bytes(); err == nil && len(root) == 32 {
			// the root was folded into a stored hash reference already
			return root, nil
		}
	}

	// small roots are still persisted so the trie reopens by hash
	data := v.MarshalTo(nil)
	root := keccak.Keccak256(nil, data)

	if err := batch.Set(rawdb.TrieNodeKey(root), data); err != nil {
		return nil, err
	}

	return root, nil
}

// hashNode returns either the RLP encoding of the node (when shorter than
// 32 bytes) or a byte string holding its keccak-256 reference.
func (h *hasher) hashNode(node Node, batch kvdb.KVWriter) (*fastrlp.Value, error) {
	ar := &h.arena

	switch n := node.(type) {
	case *ValueNode:
		// either a hash reference or a raw value carried in a branch slot
		return ar.NewCopyBytes(n.buf), nil

	case *ShortNode:
		var child *fastrlp.Value

		if hasTerminator(n.key) {
			// leaf: the child must hold the raw value
			vn, ok := n.child.(*ValueNode)
			if !ok || vn.hash {
				return nil, fmt.Errorf("leaf child is not a value")
			}

			child = ar.NewCopyBytes(vn.buf)
		} else {
			var err error

			child, err = h.hashNode(n.child, batch)
			if err != nil {
				return nil, err
			}
		}

		v := ar.NewArray()
		v.Set(ar.NewCopyBytes(encodeCompact(n.key)))
		v.Set(child)

		return h.fold(v, batch)

	case *FullNode:
		v := ar.NewArray()

		for _, i := range n.children {
			if i == nil {
				v.Set(ar.NewNull())
			} else {
				child, err := h.hashNode(i, batch)
				if err != nil {
					return nil, err
				}

				v.Set(child)
			}
		}

		if n.value == nil {
			v.Set(ar.NewNull())
		} else {
			vn, ok := n.value.(*ValueNode)
			if !ok || vn.hash {
				return nil, fmt.Errorf("branch value is not a value")
			}

			v.Set(ar.NewCopyBytes(vn.buf))
		}

		return h.fold(v, batch)

	default:
		return nil, fmt.Errorf("unknown node type %T", node)
	}
}

// fold replaces an encoding of 32 or more bytes with its stored hash reference
func (h *hasher) fold(v *fastrlp.Value, batch kvdb.KVWriter) (*fastrlp.Value, error) {
	h.tmp = v.MarshalTo(h.tmp[:0])

	if len(h.tmp) < 32 {
		return v, nil
	}

	hash := keccak.Keccak256(nil, h.tmp)

	if err := batch.Set(rawdb.TrieNodeKey(hash), h.tmp); err != nil {
		return nil, err
	}

	return h.arena.NewCopyBytes(hash), nil
}

func emptyRoot() []byte {
	// keccak256(rlp(""))
	return keccak.Keccak256(nil, []byte{0x80})
}
