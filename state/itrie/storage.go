package itrie

import (
	"errors"
	"fmt"

	"github.com/umbracle/fastrlp"
)

var (
	// ErrCorruptNode is returned when a referenced trie node is missing
	// from the backing store
	ErrCorruptNode = errors.New("corrupt trie node")

	// ErrMissingCode is returned when an account's code hash has no
	// matching entry in the code store
	ErrMissingCode = errors.New("missing contract code")
)

// NodeReader resolves trie nodes by their keccak-256 digest
type NodeReader interface {
	GetNode(hash []byte) (Node, bool, error)
}

var nodeParserPool fastrlp.ParserPool

// decodeNode rebuilds a node from its RLP encoding
func decodeNode(v *fastrlp.Value) (Node, error) {
	if v.Type() == fastrlp.TypeBytes {
		// a 32 byte string nested in another node is a hash reference
		buf, err := v.Bytes()
		if err != nil {
			return nil, err
		}

		return &ValueNode{hash: true, buf: buf}, nil
	}

	var err error

	ll := v.Elems()
	if ll == 2 {
		key := v.Get(0)
		if key.Type() != fastrlp.TypeBytes {
			return nil, fmt.Errorf("short node key expected to be bytes")
		}

		// this can be either a leaf or an extension node
		compact, err := key.GetBytes(nil)
		if err != nil {
			return nil, err
		}

		nc := &ShortNode{}
		nc.key = decodeCompact(compact)

		if hasTerminator(nc.key) {
			if v.Get(1).Type() != fastrlp.TypeBytes {
				return nil, fmt.Errorf("leaf value expected to be bytes")
			}

			vv := &ValueNode{}
			if vv.buf, err = v.Get(1).GetBytes(nil); err != nil {
				return nil, err
			}

			nc.child = vv
		} else {
			nc.child, err = decodeNode(v.Get(1))
			if err != nil {
				return nil, err
			}
		}

		return nc, nil
	} else if ll == 17 {
		nc := &FullNode{}

		for i := 0; i < 16; i++ {
			child := v.Get(i)
			if child.Type() == fastrlp.TypeBytes {
				buf, err := child.GetBytes(nil)
				if err != nil {
					return nil, err
				}

				if len(buf) == 0 {
					// empty child slot
					continue
				}
			}

			nc.children[i], err = decodeNode(child)
			if err != nil {
				return nil, err
			}
		}

		if v.Get(16).Type() != fastrlp.TypeBytes {
			return nil, fmt.Errorf("full node value expected to be bytes")
		}

		valueBuf, err := v.Get(16).GetBytes(nil)
		if err != nil {
			return nil, err
		}

		if len(valueBuf) != 0 {
			nc.value = &ValueNode{buf: valueBuf}
		}

		return nc, nil
	}

	return nil, fmt.Errorf("node has incorrect number of leafs")
}
