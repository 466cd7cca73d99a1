package itrie

import (
	"fmt"
)

// Node is a reference to one trie node, either loaded or by hash
type Node interface{}

// ValueNode either holds a leaf value or, when hash is set, a reference to
// a node stored under its keccak-256 digest
type ValueNode struct {
	hash bool
	buf  []byte
}

// ShortNode is an extension or leaf node
type ShortNode struct {
	key   []byte
	child Node
}

// FullNode is a branch with 16 children and a value slot
type FullNode struct {
	value    Node
	children [16]Node
}

func (f *FullNode) copy() *FullNode {
	nc := new(FullNode)
	nc.value = f.value
	copy(nc.children[:], f.children[:])

	return nc
}

func (f *FullNode) setEdge(idx byte, e Node) {
	if idx == 16 {
		f.value = e
	} else {
		f.children[idx] = e
	}
}

func (f *FullNode) getEdge(idx byte) Node {
	if idx == 16 {
		return f.value
	}

	return f.children[idx]
}

// resolveNode loads a hash-referenced node from storage. A referenced hash
// that cannot be found means the backing store lost a committed node.
func resolveNode(reader NodeReader, n *ValueNode) (Node, error) {
	nc, ok, err := reader.GetNode(n.buf)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrCorruptNode, n.buf)
	}

	return nc, nil
}

func lookupNode(reader NodeReader, node Node, key []byte) ([]byte, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil

	case *ValueNode:
		if n.hash {
			nc, err := resolveNode(reader, n)
			if err != nil {
				return nil, err
			}

			return lookupNode(reader, nc, key)
		}

		if len(key) == 0 {
			return n.buf, nil
		}

		return nil, nil

	case *ShortNode:
		plen := len(n.key)
		if plen > len(key) || !bytesEqual(key[:plen], n.key) {
			return nil, nil
		}

		return lookupNode(reader, n.child, key[plen:])

	case *FullNode:
		if len(key) == 0 {
			return lookupNode(reader, n.value, key)
		}

		return lookupNode(reader, n.getEdge(key[0]), key[1:])

	default:
		panic(fmt.Sprintf("unknown node type %v", n)) //nolint:gocritic
	}
}

func insertNode(reader NodeReader, node Node, search, value []byte) (Node, error) {
	switch n := node.(type) {
	case nil:
		if len(search) == 0 {
			return &ValueNode{buf: value}, nil
		}

		child, err := insertNode(reader, nil, nil, value)
		if err != nil {
			return nil, err
		}

		return &ShortNode{key: search, child: child}, nil

	case *ValueNode:
		if n.hash {
			nc, err := resolveNode(reader, n)
			if err != nil {
				return nil, err
			}

			return insertNode(reader, nc, search, value)
		}

		if len(search) == 0 {
			return &ValueNode{buf: value}, nil
		}

		// push the current value down into a branch value slot
		fn := &FullNode{value: n}

		return insertNode(reader, fn, search, value)

	case *ShortNode:
		plen := prefixLen(search, n.key)
		if plen == len(n.key) {
			// keep this node as is and insert into the child
			child, err := insertNode(reader, n.child, search[plen:], value)
			if err != nil {
				return nil, err
			}

			return &ShortNode{key: n.key, child: child}, nil
		}

		// introduce a new branch at the divergence point
		b := new(FullNode)

		if len(n.key) > plen+1 {
			b.setEdge(n.key[plen], &ShortNode{key: n.key[plen+1:], child: n.child})
		} else {
			b.setEdge(n.key[plen], n.child)
		}

		child, err := insertNode(reader, b, search[plen:], value)
		if err != nil {
			return nil, err
		}

		if plen == 0 {
			return child, nil
		}

		return &ShortNode{key: search[:plen], child: child}, nil

	case *FullNode:
		nc := n.copy()

		if len(search) == 0 {
			var err error
			nc.value, err = insertNode(reader, nc.value, nil, value)

			return nc, err
		}

		k := search[0]

		newChild, err := insertNode(reader, n.getEdge(k), search[1:], value)
		if err != nil {
			return nil, err
		}

		nc.setEdge(k, newChild)

		return nc, nil

	default:
		panic(fmt.Sprintf("unknown node type %v", n)) //nolint:gocritic
	}
}

func deleteNode(reader NodeReader, node Node, search []byte) (Node, bool, error) {
	switch n := node.(type) {
	case nil:
		return nil, false, nil

	case *ValueNode:
		if n.hash {
			nc, err := resolveNode(reader, n)
			if err != nil {
				return nil, false, err
			}

			return deleteNode(reader, nc, search)
		}

		if len(search) != 0 {
			return nil, false, nil
		}

		return nil, true, nil

	case *ShortNode:
		plen := prefixLen(search, n.key)
		if plen == len(search) && plen == len(n.key) {
			return nil, true, nil
		}

		if plen == 0 || plen < len(n.key) {
			return nil, false, nil
		}

		child, ok, err := deleteNode(reader, n.child, search[plen:])
		if err != nil || !ok {
			return nil, false, err
		}

		if child == nil {
			return nil, true, nil
		}

		if short, ok := child.(*ShortNode); ok {
			// merge the consecutive short nodes
			return &ShortNode{key: concat(n.key, short.key), child: short.child}, true, nil
		}

		return &ShortNode{key: n.key, child: child}, true, nil

	case *FullNode:
		n = n.copy()

		if len(search) == 0 {
			if n.value == nil {
				return n, false, nil
			}

			n.value = nil
		} else {
			key := search[0]

			newChild, ok, err := deleteNode(reader, n.getEdge(key), search[1:])
			if err != nil || !ok {
				return nil, false, err
			}

			n.setEdge(key, newChild)
		}

		// count the remaining edges to decide whether the branch collapses
		indx := -1

		var notEmpty bool

		for edge, i := range n.children {
			if i != nil {
				if indx != -1 {
					notEmpty = true

					break
				}

				indx = edge
			}
		}

		if indx != -1 && n.value != nil {
			notEmpty = true
		}

		if notEmpty {
			return n, true, nil
		}

		if indx == -1 {
			if n.value == nil {
				// everything is empty
				return nil, true, nil
			}

			// only the value slot is left
			return &ShortNode{key: []byte{terminatorNibble}, child: n.value}, true, nil
		}

		// a single child is left, fold the branch into a short node
		nc := n.children[indx]

		if vv, ok := nc.(*ValueNode); ok && vv.hash {
			aux, err := resolveNode(reader, vv)
			if err != nil {
				return nil, false, err
			}

			nc = aux
		}

		if obj, ok := nc.(*ShortNode); ok {
			return &ShortNode{key: concat([]byte{byte(indx)}, obj.key), child: obj.child}, true, nil
		}

		return &ShortNode{key: []byte{byte(indx)}, child: nc}, true, nil
	}

	panic("unreachable node type in delete") //nolint:gocritic
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i, v := range a {
		if v != b[i] {
			return false
		}
	}

	return true
}
