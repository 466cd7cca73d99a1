package state

import (
	"math/big"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/minichain-lab/minichain/crypto"
	"github.com/minichain-lab/minichain/state/runtime"
	"github.com/minichain-lab/minichain/state/stypes"
	"github.com/minichain-lab/minichain/types"
)

var (
	// logIndex is the radix key under which the pending logs live
	logIndex = types.BytesToHash([]byte{2}).Bytes()

	// refundIndex is the radix key of the accumulated gas refund
	refundIndex = types.BytesToHash([]byte{3}).Bytes()
)

var zeroHash types.Hash

// Txn is the overlay over one state snapshot: a checkpointable buffer of
// account, storage, code and suicide writes built during execution
type Txn struct {
	snapshot  Snapshot
	snapshots []*iradix.Tree
	txn       *iradix.Txn
}

func NewTxn(snapshot Snapshot) *Txn {
	return &Txn{
		snapshot:  snapshot,
		snapshots: []*iradix.Tree{},
		txn:       iradix.New().Txn(),
	}
}

// Snapshot opens a checkpoint at this point in time
func (txn *Txn) Snapshot() int {
	t := txn.txn.CommitOnly()

	id := len(txn.snapshots)
	txn.snapshots = append(txn.snapshots, t)

	return id
}

// RevertToSnapshot discards every write made after the given checkpoint
func (txn *Txn) RevertToSnapshot(id int) {
	if id > len(txn.snapshots) {
		panic("checkpoint out of range") //nolint:gocritic
	}

	tree := txn.snapshots[id]
	txn.txn = tree.Txn()
}

// GetAccount returns an account from the overlay or the snapshot below
func (txn *Txn) GetAccount(addr types.Address) (*stypes.Account, bool) {
	object, exists := txn.getStateObject(addr)
	if !exists {
		return nil, false
	}

	return object.Account, true
}

func (txn *Txn) getStateObject(addr types.Address) (*StateObject, bool) {
	if obj := txn.getDeletedStateObject(addr); obj != nil && !obj.Deleted {
		return obj, true
	}

	return nil, false
}

func (txn *Txn) getDeletedStateObject(addr types.Address) *StateObject {
	// overlay writes take precedence
	if val, exists := txn.txn.Get(addr.Bytes()); exists {
		obj := val.(*StateObject) //nolint:forcetypeassert

		return obj.Copy()
	}

	account, err := txn.snapshot.GetAccount(addr)
	if err != nil || account == nil {
		return nil
	}

	return newStateObject(account.Copy())
}

func (txn *Txn) upsertAccount(addr types.Address, create bool, f func(object *StateObject)) {
	object, exists := txn.getStateObject(addr)
	if !exists && create {
		object = newStateObject(&stypes.Account{})
	}

	// run the callback to modify the account
	f(object)

	if object != nil {
		txn.txn.Insert(addr.Bytes(), object)
	}
}

// AddBalance adds balance
func (txn *Txn) AddBalance(addr types.Address, balance *big.Int) {
	txn.upsertAccount(addr, true, func(object *StateObject) {
		object.Account.Balance.Add(object.Account.Balance, balance)
	})
}

// SubBalance reduces the balance at address addr by amount
func (txn *Txn) SubBalance(addr types.Address, amount *big.Int) error {
	// if we try to reduce balance by 0, then it's a noop
	if amount.Sign() == 0 {
		return nil
	}

	if balance := txn.GetBalance(addr); balance.Cmp(amount) < 0 {
		return runtime.ErrNotEnoughFunds
	}

	txn.upsertAccount(addr, true, func(object *StateObject) {
		object.Account.Balance.Sub(object.Account.Balance, amount)
	})

	return nil
}

// SetBalance sets the balance
func (txn *Txn) SetBalance(addr types.Address, balance *big.Int) {
	txn.upsertAccount(addr, true, func(object *StateObject) {
		object.Account.Balance.SetBytes(balance.Bytes())
	})
}

// GetBalance returns the balance of an address
func (txn *Txn) GetBalance(addr types.Address) *big.Int {
	object, exists := txn.getStateObject(addr)
	if !exists {
		return big.NewInt(0)
	}

	return object.Account.Balance
}

// EmitLog appends a log emitted by the running frame
func (txn *Txn) EmitLog(addr types.Address, topics []types.Hash, data []byte) {
	log := &types.Log{
		Address: addr,
		Topics:  topics,
	}
	log.Data = append(log.Data, data...)

	var logs []*types.Log

	val, exists := txn.txn.Get(logIndex)
	if !exists {
		logs = []*types.Log{}
	} else {
		logs = val.([]*types.Log) //nolint:forcetypeassert
	}

	logs = append(logs, log)
	txn.txn.Insert(logIndex, logs)
}

// SetStorage updates a storage slot and reports how the write is priced
func (txn *Txn) SetStorage(
	addr types.Address,
	key types.Hash,
	value types.Hash,
) runtime.StorageStatus {
	oldValue, err := txn.GetState(addr, key)
	if err != nil {
		return runtime.StorageReadFailed
	} else if oldValue == value {
		return runtime.StorageUnchanged
	}

	current := oldValue // storage dirtied by previous lines of this transaction

	original, err := txn.GetCommittedState(addr, key) // storage slot before this transaction started
	if err != nil {
		return runtime.StorageReadFailed
	}

	txn.SetState(addr, key, value)

	// net gas metering
	if original == current {
		if original == zeroHash { // create slot (2.1.1)
			return runtime.StorageAdded
		}

		if value == zeroHash { // delete slot (2.1.2b)
			txn.AddRefund(15000)

			return runtime.StorageDeleted
		}

		return runtime.StorageModified
	}

	if original != zeroHash { // the slot was populated before this transaction started
		if current == zeroHash { // recreate slot (2.2.1.1)
			txn.SubRefund(15000)
		} else if value == zeroHash { // delete slot (2.2.1.2)
			txn.AddRefund(15000)
		}
	}

	if original == value {
		if original == zeroHash { // reset to original nonexistent slot (2.2.2.1)
			txn.AddRefund(19200)
		} else { // reset to original existing slot (2.2.2.2)
			txn.AddRefund(4200)
		}
	}

	return runtime.StorageModifiedAgain
}

// SetState changes a storage slot of an address
func (txn *Txn) SetState(
	addr types.Address,
	key,
	value types.Hash,
) {
	txn.upsertAccount(addr, true, func(object *StateObject) {
		if object.Txn == nil {
			object.Txn = iradix.New().Txn()
		}

		if value == zeroHash {
			object.Txn.Insert(key.Bytes(), nil)
		} else {
			object.Txn.Insert(key.Bytes(), value.Bytes())
		}
	})
}

// GetState returns the state of the address at a given key
func (txn *Txn) GetState(addr types.Address, slot types.Hash) (types.Hash, error) {
	object, exists := txn.getStateObject(addr)
	if !exists {
		return types.Hash{}, nil
	}

	// overlay writes of this transaction take precedence
	if object.Txn != nil {
		if val, ok := object.Txn.Get(slot.Bytes()); ok {
			if val == nil {
				return types.Hash{}, nil
			}
			//nolint:forcetypeassert
			return types.BytesToHash(val.([]byte)), nil
		}
	}

	return txn.snapshot.GetStorage(addr, object.Account.StorageRoot, slot)
}

// GetCommittedState returns the state of the address in the committed trie
func (txn *Txn) GetCommittedState(addr types.Address, key types.Hash) (types.Hash, error) {
	obj, ok := txn.getStateObject(addr)
	if !ok {
		return types.Hash{}, nil
	}

	return txn.snapshot.GetStorage(addr, obj.Account.StorageRoot, key)
}

// Nonce

// IncrNonce increases the nonce of the address
func (txn *Txn) IncrNonce(addr types.Address) {
	txn.upsertAccount(addr, true, func(object *StateObject) {
		object.Account.Nonce++
	})
}

// SetNonce sets the nonce
func (txn *Txn) SetNonce(addr types.Address, nonce uint64) {
	txn.upsertAccount(addr, true, func(object *StateObject) {
		object.Account.Nonce = nonce
	})
}

// GetNonce returns the nonce of an addr
func (txn *Txn) GetNonce(addr types.Address) uint64 {
	object, exists := txn.getStateObject(addr)
	if !exists {
		return 0
	}

	return object.Account.Nonce
}

// Code

// SetCode sets the code for an address
func (txn *Txn) SetCode(addr types.Address, code []byte) {
	txn.upsertAccount(addr, true, func(object *StateObject) {
		object.Account.CodeHash = crypto.Keccak256(code)
		object.DirtyCode = true
		object.Code = code
	})
}

func (txn *Txn) GetCode(addr types.Address) []byte {
	object, exists := txn.getStateObject(addr)
	if !exists {
		return nil
	}

	if object.DirtyCode {
		return object.Code
	}

	code, _ := txn.snapshot.GetCode(types.BytesToHash(object.Account.CodeHash))

	return code
}

func (txn *Txn) GetCodeSize(addr types.Address) int {
	return len(txn.GetCode(addr))
}

func (txn *Txn) GetCodeHash(addr types.Address) types.Hash {
	object, exists := txn.getStateObject(addr)
	if !exists {
		return types.Hash{}
	}

	return types.BytesToHash(object.Account.CodeHash)
}

// Suicide marks the given account for destruction and clears its balance
func (txn *Txn) Suicide(addr types.Address) bool {
	var suicided bool

	txn.upsertAccount(addr, false, func(object *StateObject) {
		if object == nil || object.Suicide {
			suicided = false
		} else {
			suicided = true
			object.Suicide = true
		}

		if object != nil {
			object.Account.Balance = new(big.Int)
		}
	})

	return suicided
}

// HasSuicided returns true if the account is marked for destruction
func (txn *Txn) HasSuicided(addr types.Address) bool {
	object, exists := txn.getStateObject(addr)

	return exists && object.Suicide
}

// Refund

func (txn *Txn) AddRefund(gas uint64) {
	refund := txn.GetRefund() + gas
	txn.txn.Insert(refundIndex, refund)
}

func (txn *Txn) SubRefund(gas uint64) {
	refund := txn.GetRefund() - gas
	txn.txn.Insert(refundIndex, refund)
}

func (txn *Txn) GetRefund() uint64 {
	data, exists := txn.txn.Get(refundIndex)
	if !exists {
		return 0
	}

	//nolint:forcetypeassert
	return data.(uint64)
}

// Logs drains the logs collected during the transaction
func (txn *Txn) Logs() []*types.Log {
	data, exists := txn.txn.Get(logIndex)
	if !exists {
		return nil
	}

	txn.txn.Delete(logIndex)
	//nolint:forcetypeassert
	return data.([]*types.Log)
}

func (txn *Txn) Exist(addr types.Address) bool {
	_, exists := txn.getStateObject(addr)

	return exists
}

func (txn *Txn) Empty(addr types.Address) bool {
	obj, exists := txn.getStateObject(addr)
	if !exists {
		return true
	}

	return obj.Empty()
}

// TouchAccount makes sure the account exists in the overlay
func (txn *Txn) TouchAccount(addr types.Address) {
	txn.upsertAccount(addr, true, func(obj *StateObject) {})
}

// CreateAccount resets an account to an empty one, keeping the balance of
// any previous occupant
func (txn *Txn) CreateAccount(addr types.Address) {
	prev := txn.getDeletedStateObject(addr)

	newobj := newStateObject(&stypes.Account{})

	if prev != nil && !prev.Deleted {
		newobj.Account.Balance.SetBytes(prev.Account.Balance.Bytes())
	}

	txn.txn.Insert(addr.Bytes(), newobj)
}

// CleanDeleteObjects marks suicided (and optionally empty) accounts deleted
func (txn *Txn) CleanDeleteObjects(deleteEmptyObjects bool) {
	remove := [][]byte{}

	txn.txn.Root().Walk(func(k []byte, v interface{}) bool {
		a, ok := v.(*StateObject)
		if !ok {
			return false
		}

		if a.Suicide || a.Empty() && deleteEmptyObjects {
			remove = append(remove, k)
		}

		return false
	})

	for _, k := range remove {
		v, ok := txn.txn.Get(k)
		if !ok {
			continue
		}

		obj, ok := v.(*StateObject)
		if !ok {
			continue
		}

		obj2 := obj.Copy()
		obj2.Deleted = true
		txn.txn.Insert(k, obj2)
	}

	// delete refunds
	txn.txn.Delete(refundIndex)
}

// Commit linearises the overlay into dirty objects for the trie commit
func (txn *Txn) Commit(deleteEmptyObjects bool) []*stypes.Object {
	txn.CleanDeleteObjects(deleteEmptyObjects)

	x := txn.txn.Commit()

	objs := []*stypes.Object{}

	x.Root().Walk(func(k []byte, v interface{}) bool {
		a, ok := v.(*StateObject)
		if !ok {
			// logs and refunds also live in the radix tree, skip them
			return false
		}

		obj := &stypes.Object{
			Nonce:     a.Account.Nonce,
			Address:   types.BytesToAddress(k),
			Balance:   a.Account.Balance,
			Root:      a.Account.StorageRoot,
			CodeHash:  types.BytesToHash(a.Account.CodeHash),
			DirtyCode: a.DirtyCode,
			Code:      a.Code,
		}

		if a.Deleted {
			obj.Deleted = true
		} else if a.Txn != nil {
			a.Txn.Root().Walk(func(k []byte, v interface{}) bool {
				store := &stypes.StorageObject{Key: k}
				if v == nil {
					store.Deleted = true
				} else {
					store.Val = v.([]byte) //nolint:forcetypeassert
				}
				obj.Storage = append(obj.Storage, store)

				return false
			})
		}

		objs = append(objs, obj)

		return false
	})

	return objs
}
