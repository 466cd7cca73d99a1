package state

import (
	"bytes"
	"math/big"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/minichain-lab/minichain/state/stypes"
	"github.com/minichain-lab/minichain/types"
)

var emptyCodeHash = types.EmptyCodeHash.Bytes()

// State creates read views over committed world state roots
type State interface {
	NewSnapshot() Snapshot
	NewSnapshotAt(types.Hash) (Snapshot, error)
	GetCode(hash types.Hash) ([]byte, bool)
}

// Snapshot is a read view of one state root plus the atomic commit of a
// set of dirty objects into the next root
type Snapshot interface {
	GetAccount(addr types.Address) (*stypes.Account, error)
	GetStorage(addr types.Address, root types.Hash, key types.Hash) (types.Hash, error)
	GetCode(hash types.Hash) ([]byte, bool)

	Commit(objs []*stypes.Object) (Snapshot, []byte, error)
}

// StateObject is the live, in-overlay representation of an account
type StateObject struct {
	Account   *stypes.Account
	Code      []byte
	Suicide   bool
	Deleted   bool
	DirtyCode bool
	Txn       *iradix.Txn
}

func newStateObject(account *stypes.Account) *StateObject {
	if account.Balance == nil {
		account.Balance = new(big.Int)
	}

	if len(account.CodeHash) == 0 {
		account.CodeHash = emptyCodeHash
	}

	if account.StorageRoot == types.ZeroHash {
		account.StorageRoot = types.EmptyRootHash
	}

	return &StateObject{Account: account}
}

func (s *StateObject) Empty() bool {
	return s.Account.Nonce == 0 &&
		s.Account.Balance.Sign() == 0 &&
		bytes.Equal(s.Account.CodeHash, emptyCodeHash)
}

// Copy makes a copy of the state object
func (s *StateObject) Copy() *StateObject {
	ss := new(StateObject)

	ss.Account = s.Account.Copy()
	ss.Suicide = s.Suicide
	ss.Deleted = s.Deleted
	ss.DirtyCode = s.DirtyCode
	ss.Code = s.Code

	if s.Txn != nil {
		ss.Txn = s.Txn.CommitOnly().Txn()
	}

	return ss
}
