package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/hashicorp/go-hclog"
	"github.com/minichain-lab/minichain/chain"
	"github.com/minichain-lab/minichain/crypto"
	"github.com/minichain-lab/minichain/state/runtime"
	"github.com/minichain-lab/minichain/state/runtime/evm"
	"github.com/minichain-lab/minichain/types"
)

const (
	// TxGas is the base gas cost of a transaction
	TxGas uint64 = 21000

	// TxGasContractCreation is the base gas cost of a create transaction
	TxGasContractCreation uint64 = 53000

	txDataZeroGas    uint64 = 4
	txDataNonZeroGas uint64 = 16
)

// ErrInvalidTransaction tags every pre-flight failure: such transactions
// mutate no state and append no block
var ErrInvalidTransaction = errors.New("invalid transaction")

var (
	ErrNonceIncorrect     = fmt.Errorf("%w: incorrect nonce", ErrInvalidTransaction)
	ErrNotEnoughFunds     = fmt.Errorf("%w: not enough funds", ErrInvalidTransaction)
	ErrIntrinsicGasTooLow = fmt.Errorf("%w: intrinsic gas too low", ErrInvalidTransaction)
	ErrBlockGasExceeded   = fmt.Errorf("%w: gas above block limit", ErrInvalidTransaction)
	ErrBadSignature       = fmt.Errorf("%w: malformed signature", ErrInvalidTransaction)
)

// GetHashByNumber looks up the hash of a sealed block
type GetHashByNumber = func(i uint64) types.Hash

// Executor drives transactions through the EVM against the world state
type Executor struct {
	logger hclog.Logger
	config *chain.Params
	state  State
	signer crypto.TxSigner

	// GetHash serves the BLOCKHASH opcode
	GetHash GetHashByNumber
}

func NewExecutor(config *chain.Params, st State, logger hclog.Logger) *Executor {
	return &Executor{
		logger: logger.Named("executor"),
		config: config,
		state:  st,
		signer: crypto.NewEIP155Signer(config.ChainID),
	}
}

// WriteGenesis seeds the world state with the genesis allocation and
// returns the resulting state root
func (e *Executor) WriteGenesis(alloc chain.GenesisAlloc) (types.Hash, error) {
	snap := e.state.NewSnapshot()
	txn := NewTxn(snap)

	for addr, account := range alloc {
		if account.Balance != nil {
			txn.SetBalance(addr, account.Balance)
		}

		if account.Nonce != 0 {
			txn.SetNonce(addr, account.Nonce)
		}

		if len(account.Code) != 0 {
			txn.SetCode(addr, account.Code)
		}

		for key, value := range account.Storage {
			txn.SetState(addr, key, value)
		}
	}

	objs := txn.Commit(false)

	_, root, err := snap.Commit(objs)
	if err != nil {
		return types.Hash{}, err
	}

	return types.BytesToHash(root), nil
}

// StateAt opens a read view at the given state root
func (e *Executor) StateAt(root types.Hash) (Snapshot, error) {
	return e.state.NewSnapshotAt(root)
}

// BeginTxn opens a transition against the given state root under the given
// block header
func (e *Executor) BeginTxn(parentRoot types.Hash, header *types.Header) (*Transition, error) {
	snap, err := e.state.NewSnapshotAt(parentRoot)
	if err != nil {
		return nil, err
	}

	txCtx := runtime.TxContext{
		Coinbase:  e.config.Coinbase,
		Timestamp: header.Timestamp,
		Number:    header.Number,
		GasLimit:  header.GasLimit,
		ChainID:   e.config.ChainID,
	}

	t := &Transition{
		logger:   e.logger,
		config:   e.config,
		ctx:      txCtx,
		state:    NewTxn(snap),
		snap:     snap,
		getHash:  e.GetHash,
		evm:      evm.NewEVM(),
		signer:   e.signer,
		gasPool:  header.GasLimit,
		receipts: []*types.Receipt{},
	}

	return t, nil
}

// Transition is one block-in-progress: an overlay on the parent state and
// the receipts of the transactions applied so far
type Transition struct {
	logger hclog.Logger
	config *chain.Params

	state   *Txn
	snap    Snapshot
	getHash GetHashByNumber
	ctx     runtime.TxContext
	evm     *evm.EVM
	signer  crypto.TxSigner

	gasPool  uint64
	totalGas uint64
	receipts []*types.Receipt
}

func (t *Transition) TotalGas() uint64 {
	return t.totalGas
}

func (t *Transition) Receipts() []*types.Receipt {
	return t.receipts
}

func (t *Transition) Txn() *Txn {
	return t.state
}

// ResolveSender returns the transaction sender: the explicit from address
// for unsigned transactions, the recovered signer otherwise
func (t *Transition) ResolveSender(msg *types.Transaction) (types.Address, error) {
	if msg.From != types.ZeroAddress {
		return msg.From, nil
	}

	if !msg.IsSigned() {
		return types.ZeroAddress, ErrBadSignature
	}

	sender, err := t.signer.Sender(msg)
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("%w: %s", ErrBadSignature, err)
	}

	return sender, nil
}

// Write drives one transaction through the full pipeline and records its
// receipt. Pre-flight failures leave the transition untouched.
func (t *Transition) Write(msg *types.Transaction) (*types.Receipt, error) {
	sender, err := t.ResolveSender(msg)
	if err != nil {
		return nil, err
	}

	msg = msg.Copy()
	msg.From = sender

	if msg.GasPrice == nil || msg.GasPrice.Sign() == 0 {
		msg.GasPrice = new(big.Int).SetUint64(t.config.GasPrice)
	}

	if msg.Value == nil {
		msg.Value = new(big.Int)
	}

	result, err := t.apply(msg)
	if err != nil {
		return nil, err
	}

	t.totalGas += result.GasUsed

	logs := t.state.Logs()

	receipt := &types.Receipt{
		TxHash:            msg.Hash(),
		From:              msg.From,
		To:                msg.To,
		GasUsed:           result.GasUsed,
		CumulativeGasUsed: t.totalGas,
		Logs:              logs,
	}

	if result.Failed() {
		receipt.Status = types.ReceiptFailed
	} else {
		receipt.Status = types.ReceiptSuccess
	}

	if msg.IsContractCreation() {
		receipt.SetContractAddress(crypto.CreateAddress(msg.From, msg.Nonce))
	}

	receipt.LogsBloom = types.CreateBloom([]*types.Receipt{receipt})
	t.receipts = append(t.receipts, receipt)

	return receipt, nil
}

// applyResult is the settled outcome of one transaction
type applyResult struct {
	ReturnValue []byte
	GasUsed     uint64
	Err         error
}

func (r *applyResult) Failed() bool { return r.Err != nil }

// apply implements the §state-transition rules: validate, pre-charge,
// execute, refund
func (t *Transition) apply(msg *types.Transaction) (*applyResult, error) {
	if err := t.preCheck(msg); err != nil {
		return nil, err
	}

	intrinsic := intrinsicGas(msg)
	if msg.Gas < intrinsic {
		return nil, ErrIntrinsicGasTooLow
	}

	// buy gas: the full limit is debited before execution
	upfront := new(big.Int).Mul(new(big.Int).SetUint64(msg.Gas), msg.GasPrice)

	if err := t.state.SubBalance(msg.From, upfront); err != nil {
		return nil, ErrNotEnoughFunds
	}

	t.state.IncrNonce(msg.From)
	t.gasPool -= msg.Gas

	gasLeft := msg.Gas - intrinsic

	txCtx := t.ctx
	txCtx.Origin = msg.From
	txCtx.GasPrice = types.BytesToHash(msg.GasPrice.Bytes())
	t.ctx = txCtx

	var result *runtime.ExecutionResult

	if msg.IsContractCreation() {
		// the address derives from the sender and its pre-transaction nonce
		address := crypto.CreateAddress(msg.From, msg.Nonce)
		contract := runtime.NewContractCreation(0, msg.From, msg.From, address, msg.Value, gasLeft, msg.Input)

		result = t.evm.Run(contract, t)
	} else {
		t.state.TouchAccount(*msg.To)

		contract := runtime.NewContractCall(
			0, msg.From, msg.From, *msg.To, msg.Value, gasLeft, t.state.GetCode(*msg.To), msg.Input,
		)

		result = t.evm.Run(contract, t)
	}

	var refund uint64
	if !result.Failed() {
		refund = t.state.GetRefund()
	}

	gasUsed := result.UpdateGasUsed(msg.Gas, refund)

	// refund the unused gas and pay the coinbase
	gasLeftover := new(big.Int).Mul(new(big.Int).SetUint64(msg.Gas-gasUsed), msg.GasPrice)
	t.state.AddBalance(msg.From, gasLeftover)

	fee := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), msg.GasPrice)
	t.state.AddBalance(t.ctx.Coinbase, fee)

	t.gasPool += msg.Gas - gasUsed

	return &applyResult{
		ReturnValue: result.ReturnValue,
		GasUsed:     gasUsed,
		Err:         result.Err,
	}, nil
}

func (t *Transition) preCheck(msg *types.Transaction) error {
	if msg.Gas > t.gasPool {
		return ErrBlockGasExceeded
	}

	nonce := t.state.GetNonce(msg.From)
	if nonce != msg.Nonce {
		return ErrNonceIncorrect
	}

	// balance must cover gas_limit * gas_price + value
	cost := new(big.Int).Mul(new(big.Int).SetUint64(msg.Gas), msg.GasPrice)
	cost.Add(cost, msg.Value)

	if balance := t.state.GetBalance(msg.From); balance.Cmp(cost) < 0 {
		return ErrNotEnoughFunds
	}

	return nil
}

func intrinsicGas(msg *types.Transaction) uint64 {
	var cost uint64

	if msg.IsContractCreation() {
		cost = TxGasContractCreation
	} else {
		cost = TxGas
	}

	for _, b := range msg.Input {
		if b == 0 {
			cost += txDataZeroGas
		} else {
			cost += txDataNonZeroGas
		}
	}

	return cost
}

// Call runs a read-only message against the transition overlay; nothing
// is committed
func (t *Transition) Call(msg *types.Transaction) *runtime.ExecutionResult {
	sender := msg.From

	gas := msg.Gas
	if gas == 0 {
		gas = t.ctx.GasLimit
	}

	value := msg.Value
	if value == nil {
		value = new(big.Int)
	}

	txCtx := t.ctx
	txCtx.Origin = sender
	t.ctx = txCtx

	if msg.To == nil {
		address := crypto.CreateAddress(sender, t.state.GetNonce(sender))
		contract := runtime.NewContractCreation(0, sender, sender, address, value, gas, msg.Input)

		return t.evm.Run(contract, t)
	}

	contract := runtime.NewContractCall(
		0, sender, sender, *msg.To, value, gas, t.state.GetCode(*msg.To), msg.Input,
	)

	return t.evm.Run(contract, t)
}

// Commit folds the transition into the world state, returning the snapshot
// and root of the new state
func (t *Transition) Commit() (Snapshot, types.Hash, error) {
	objs := t.state.Commit(true)

	snap, root, err := t.snap.Commit(objs)
	if err != nil {
		return nil, types.Hash{}, err
	}

	return snap, types.BytesToHash(root), nil
}

// runtime.Host implementation over the overlay

func (t *Transition) AccountExists(addr types.Address) bool {
	return t.state.Exist(addr)
}

func (t *Transition) Empty(addr types.Address) bool {
	return t.state.Empty(addr)
}

func (t *Transition) GetNonce(addr types.Address) uint64 {
	return t.state.GetNonce(addr)
}

func (t *Transition) IncrNonce(addr types.Address) {
	t.state.IncrNonce(addr)
}

func (t *Transition) GetStorage(addr types.Address, key types.Hash) types.Hash {
	val, err := t.state.GetState(addr, key)
	if err != nil {
		t.logger.Error("failed to read storage", "addr", addr, "err", err)

		return types.Hash{}
	}

	return val
}

func (t *Transition) SetStorage(
	addr types.Address,
	key types.Hash,
	value types.Hash,
) runtime.StorageStatus {
	return t.state.SetStorage(addr, key, value)
}

func (t *Transition) GetBalance(addr types.Address) *big.Int {
	return t.state.GetBalance(addr)
}

func (t *Transition) GetCodeSize(addr types.Address) int {
	return t.state.GetCodeSize(addr)
}

func (t *Transition) GetCodeHash(addr types.Address) types.Hash {
	return t.state.GetCodeHash(addr)
}

func (t *Transition) GetCode(addr types.Address) []byte {
	return t.state.GetCode(addr)
}

func (t *Transition) Selfdestruct(addr types.Address, beneficiary types.Address) {
	if !t.state.HasSuicided(addr) {
		balance := t.state.GetBalance(addr)
		t.state.AddBalance(beneficiary, balance)
		t.state.Suicide(addr)
	}
}

func (t *Transition) GetTxContext() runtime.TxContext {
	return t.ctx
}

func (t *Transition) GetBlockHash(number int64) (res types.Hash) {
	if t.getHash == nil {
		return types.ZeroHash
	}

	return t.getHash(uint64(number))
}

func (t *Transition) EmitLog(addr types.Address, topics []types.Hash, data []byte) {
	t.state.EmitLog(addr, topics, data)
}

func (t *Transition) Snapshot() int {
	return t.state.Snapshot()
}

func (t *Transition) RevertToSnapshot(id int) {
	t.state.RevertToSnapshot(id)
}

func (t *Transition) Transfer(from, to types.Address, amount *big.Int) error {
	if err := t.state.SubBalance(from, amount); err != nil {
		return runtime.ErrInsufficientBalance
	}

	t.state.AddBalance(to, amount)

	return nil
}

func (t *Transition) CreateAccount(addr types.Address) {
	t.state.CreateAccount(addr)
}

func (t *Transition) SetCodeDirect(addr types.Address, code []byte) {
	t.state.SetCode(addr, code)
}
