package stypes

import (
	"math/big"

	"github.com/minichain-lab/minichain/types"
)

// Object is the flattened form of a dirty account, ready for the trie commit
type Object struct {
	Address  types.Address
	CodeHash types.Hash
	Balance  *big.Int
	Root     types.Hash
	Nonce    uint64
	Deleted  bool

	DirtyCode bool
	Code      []byte

	Storage []*StorageObject
}

// StorageObject is a dirty entry in the account storage
type StorageObject struct {
	Deleted bool
	Key     []byte
	Val     []byte
}
