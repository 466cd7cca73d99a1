package itrie

// Trie is an immutable merkle-patricia trie anchored at one root node
type Trie struct {
	stateDB StateDB
	root    Node
}

func NewTrie() *Trie {
	return &Trie{}
}

// Get looks up a key in the trie using the given node reader
func (t *Trie) Get(k []byte, reader NodeReader) ([]byte, error) {
	txn := t.TxnAt(reader)

	return txn.Lookup(k)
}

// Txn opens a mutable view reading through the trie's state database
func (t *Trie) Txn() *Txn {
	return &Txn{reader: t.stateDB, root: t.root}
}

// TxnAt opens a mutable view reading through an explicit node reader,
// used while an uncommitted KV transaction holds fresh nodes
func (t *Trie) TxnAt(reader NodeReader) *Txn {
	return &Txn{reader: reader, root: t.root}
}
