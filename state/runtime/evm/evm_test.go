package evm

import (
	"math/big"
	"testing"

	"github.com/minichain-lab/minichain/crypto"
	"github.com/minichain-lab/minichain/state/runtime"
	"github.com/minichain-lab/minichain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAccount is one account of the mock host
type mockAccount struct {
	balance *big.Int
	nonce   uint64
	code    []byte
	storage map[types.Hash]types.Hash
}

// mockHost is an in-memory runtime.Host with checkpoint support
type mockHost struct {
	accounts map[types.Address]*mockAccount
	logs     []*types.Log
	ctx      runtime.TxContext

	snapshots []map[types.Address]*mockAccount
}

func newMockHost() *mockHost {
	return &mockHost{accounts: map[types.Address]*mockAccount{}}
}

func (m *mockHost) account(addr types.Address) *mockAccount {
	acct, ok := m.accounts[addr]
	if !ok {
		acct = &mockAccount{balance: new(big.Int), storage: map[types.Hash]types.Hash{}}
		m.accounts[addr] = acct
	}

	return acct
}

func (m *mockHost) copyAccounts() map[types.Address]*mockAccount {
	cp := map[types.Address]*mockAccount{}

	for addr, acct := range m.accounts {
		storage := map[types.Hash]types.Hash{}
		for k, v := range acct.storage {
			storage[k] = v
		}

		cp[addr] = &mockAccount{
			balance: new(big.Int).Set(acct.balance),
			nonce:   acct.nonce,
			code:    acct.code,
			storage: storage,
		}
	}

	return cp
}

func (m *mockHost) AccountExists(addr types.Address) bool {
	_, ok := m.accounts[addr]

	return ok
}

func (m *mockHost) Empty(addr types.Address) bool {
	acct, ok := m.accounts[addr]
	if !ok {
		return true
	}

	return acct.nonce == 0 && acct.balance.Sign() == 0 && len(acct.code) == 0
}

func (m *mockHost) GetStorage(addr types.Address, key types.Hash) types.Hash {
	return m.account(addr).storage[key]
}

func (m *mockHost) SetStorage(addr types.Address, key types.Hash, value types.Hash) runtime.StorageStatus {
	acct := m.account(addr)

	old := acct.storage[key]
	if old == value {
		return runtime.StorageUnchanged
	}

	if value == types.ZeroHash {
		delete(acct.storage, key)

		return runtime.StorageDeleted
	}

	acct.storage[key] = value

	if old == types.ZeroHash {
		return runtime.StorageAdded
	}

	return runtime.StorageModified
}

func (m *mockHost) GetBalance(addr types.Address) *big.Int {
	return m.account(addr).balance
}

func (m *mockHost) GetCodeSize(addr types.Address) int {
	return len(m.account(addr).code)
}

func (m *mockHost) GetCodeHash(addr types.Address) types.Hash {
	acct := m.account(addr)
	if len(acct.code) == 0 {
		return types.EmptyCodeHash
	}

	return crypto.Keccak256Hash(acct.code)
}

func (m *mockHost) GetCode(addr types.Address) []byte {
	return m.account(addr).code
}

func (m *mockHost) GetNonce(addr types.Address) uint64 {
	return m.account(addr).nonce
}

func (m *mockHost) IncrNonce(addr types.Address) {
	m.account(addr).nonce++
}

func (m *mockHost) Selfdestruct(addr types.Address, beneficiary types.Address) {
	acct := m.account(addr)
	m.account(beneficiary).balance.Add(m.account(beneficiary).balance, acct.balance)
	delete(m.accounts, addr)
}

func (m *mockHost) GetTxContext() runtime.TxContext {
	return m.ctx
}

func (m *mockHost) GetBlockHash(number int64) types.Hash {
	return types.ZeroHash
}

func (m *mockHost) EmitLog(addr types.Address, topics []types.Hash, data []byte) {
	m.logs = append(m.logs, &types.Log{Address: addr, Topics: topics, Data: append([]byte{}, data...)})
}

func (m *mockHost) Snapshot() int {
	m.snapshots = append(m.snapshots, m.copyAccounts())

	return len(m.snapshots) - 1
}

func (m *mockHost) RevertToSnapshot(id int) {
	m.accounts = m.snapshots[id]
	m.snapshots = m.snapshots[:id]
}

func (m *mockHost) Transfer(from, to types.Address, amount *big.Int) error {
	src := m.account(from)
	if src.balance.Cmp(amount) < 0 {
		return runtime.ErrNotEnoughFunds
	}

	src.balance.Sub(src.balance, amount)
	m.account(to).balance.Add(m.account(to).balance, amount)

	return nil
}

func (m *mockHost) CreateAccount(addr types.Address) {
	balance := new(big.Int)
	if prev, ok := m.accounts[addr]; ok {
		balance = prev.balance
	}

	m.accounts[addr] = &mockAccount{balance: balance, storage: map[types.Hash]types.Hash{}}
}

func (m *mockHost) SetCodeDirect(addr types.Address, code []byte) {
	m.account(addr).code = append([]byte{}, code...)
}

var (
	caller = types.StringToAddress("0xaaaa")
	callee = types.StringToAddress("0xbbbb")
)

func runCode(t *testing.T, host *mockHost, code []byte, input []byte, gas uint64) *runtime.ExecutionResult {
	t.Helper()

	contract := runtime.NewContractCall(0, caller, caller, callee, new(big.Int), gas, code, input)

	return NewEVM().Run(contract, host)
}

func TestRun_ArithmeticAndReturn(t *testing.T) {
	// PUSH1 3, PUSH1 4, ADD, PUSH1 0, MSTORE, RETURN(0, 32)
	code := []byte{
		0x60, 0x03, 0x60, 0x04, 0x01,
		0x60, 0x00, 0x52,
		0x60, 0x20, 0x60, 0x00, 0xf3,
	}

	res := runCode(t, newMockHost(), code, nil, 100000)
	require.NoError(t, res.Err)

	assert.Equal(t, types.BytesToHash([]byte{7}).Bytes(), res.ReturnValue)
}

func TestRun_OutOfGasConsumesEverything(t *testing.T) {
	// a PUSH/POP jump loop that can never finish in the budget
	code := []byte{
		0x5b,             // JUMPDEST
		0x60, 0x01, 0x50, // PUSH1 1, POP
		0x60, 0x00, 0x56, // JUMP 0
	}

	res := runCode(t, newMockHost(), code, nil, 5000)
	assert.ErrorIs(t, res.Err, runtime.ErrOutOfGas)
	assert.Equal(t, uint64(0), res.GasLeft)
}

func TestRun_InvalidJumpConsumesEverything(t *testing.T) {
	// jump to offset 2, which holds the JUMP itself rather than a JUMPDEST
	code := []byte{
		0x60, 0x02, 0x56, // PUSH1 2, JUMP -> lands on the JUMP opcode
	}

	res := runCode(t, newMockHost(), code, nil, 100000)
	assert.ErrorIs(t, res.Err, runtime.ErrInvalidJump)
	assert.Equal(t, uint64(0), res.GasLeft)
}

func TestRun_JumpToJumpdestSucceeds(t *testing.T) {
	code := []byte{
		0x60, 0x04, 0x56, // PUSH1 4, JUMP
		0xfe,             // INVALID (skipped)
		0x5b,             // JUMPDEST at 4
		0x00,             // STOP
	}

	res := runCode(t, newMockHost(), code, nil, 100000)
	assert.NoError(t, res.Err)
}

func TestRun_InvalidOpcode(t *testing.T) {
	res := runCode(t, newMockHost(), []byte{0xfe}, nil, 100000)
	assert.ErrorIs(t, res.Err, runtime.ErrInvalidInstruction)
	assert.Equal(t, uint64(0), res.GasLeft)
}

func TestRun_RevertReturnsDataAndGas(t *testing.T) {
	// store a word ending in 0x42 and revert with all 32 bytes of it
	code := []byte{
		0x7f, // PUSH32
	}
	payload := make([]byte, 32)
	payload[31] = 0x42
	code = append(code, payload...)
	code = append(code,
		0x60, 0x00, 0x52, // MSTORE(0)
		0x60, 0x20, 0x60, 0x00, 0xfd, // REVERT(0, 32)
	)

	res := runCode(t, newMockHost(), code, nil, 100000)
	assert.ErrorIs(t, res.Err, runtime.ErrExecutionReverted)
	assert.Equal(t, payload, res.ReturnValue)
	assert.NotZero(t, res.GasLeft)
}

func TestRun_StackLimit(t *testing.T) {
	t.Run("1024 entries fit", func(t *testing.T) {
		code := []byte{}
		for i := 0; i < 1024; i++ {
			code = append(code, 0x60, 0x01) // PUSH1 1
		}
		code = append(code, 0x00)

		res := runCode(t, newMockHost(), code, nil, 100000)
		assert.NoError(t, res.Err)
	})

	t.Run("1025th entry overflows", func(t *testing.T) {
		code := []byte{}
		for i := 0; i < 1025; i++ {
			code = append(code, 0x60, 0x01)
		}
		code = append(code, 0x00)

		res := runCode(t, newMockHost(), code, nil, 100000)
		assert.ErrorIs(t, res.Err, runtime.ErrStackOverflow)
	})
}

func TestRun_StackUnderflow(t *testing.T) {
	res := runCode(t, newMockHost(), []byte{0x01}, nil, 100000) // ADD on empty stack
	assert.ErrorIs(t, res.Err, runtime.ErrStackUnderflow)
}

func TestRun_SstoreSloadRoundTrip(t *testing.T) {
	host := newMockHost()

	// SSTORE(5, 42); SLOAD(5); MSTORE(0); RETURN(0,32)
	code := []byte{
		0x60, 0x2a, 0x60, 0x05, 0x55, // SSTORE key=5 val=42
		0x60, 0x05, 0x54, // SLOAD 5
		0x60, 0x00, 0x52, // MSTORE
		0x60, 0x20, 0x60, 0x00, 0xf3, // RETURN
	}

	res := runCode(t, host, code, nil, 100000)
	require.NoError(t, res.Err)
	assert.Equal(t, types.BytesToHash([]byte{0x2a}).Bytes(), res.ReturnValue)
}

func TestRun_StaticContextRejectsWrites(t *testing.T) {
	host := newMockHost()

	contract := runtime.NewContractCall(
		0, caller, caller, callee, new(big.Int), 100000,
		[]byte{0x60, 0x01, 0x60, 0x00, 0x55}, // SSTORE
		nil,
	)
	contract.Static = true

	res := NewEVM().Run(contract, host)
	assert.ErrorIs(t, res.Err, runtime.ErrWriteProtection)
}

func TestRun_RecursiveCallUnwinds(t *testing.T) {
	host := newMockHost()

	// a contract that calls itself, forwarding all gas
	// CALL(gas=GAS, addr=self, value=0, in=0/0, out=0/0) then STOP
	self := types.StringToAddress("0xcccc")

	code := []byte{
		0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x60, 0x00, // retSize retOffset inSize inOffset
		0x60, 0x00, // value
		0x73, // PUSH20 self
	}
	code = append(code, self.Bytes()...)
	code = append(code,
		0x5a,       // GAS
		0xf1,       // CALL
		0x50, 0x00, // POP, STOP
	)

	// stack order for CALL: gas, addr, value, inOffset, inSize, retOffset, retSize
	host.account(self).code = code

	contract := runtime.NewContractCall(0, caller, caller, self, new(big.Int), 10000000, code, nil)

	res := NewEVM().Run(contract, host)

	// the recursion bottoms out when the forwarded gas runs out and unwinds cleanly
	assert.NoError(t, res.Err)
}

func TestRun_CreateDeploysCode(t *testing.T) {
	host := newMockHost()
	host.account(callee).balance = big.NewInt(0)

	// initcode returning a 1-byte runtime (STOP):
	//   CODECOPY the trailing STOP byte to memory, then RETURN it
	initcode := []byte{
		0x60, 0x01, 0x60, 0x0c, 0x60, 0x00, 0x39, // CODECOPY(0, 12, 1)
		0x60, 0x01, 0x60, 0x00, 0xf3, // RETURN(0, 1)
		0x00, // the runtime code
	}

	// caller contract: CREATE(value=0, offset=0, size=len(initcode)) after
	// copying initcode into memory with CODECOPY from its own tail
	deployer := []byte{
		0x60, byte(len(initcode)), // size
		0x60, 0x0f, // code offset of the embedded initcode
		0x60, 0x00, // memory offset
		0x39, // CODECOPY
		0x60, byte(len(initcode)), // size
		0x60, 0x00, // offset
		0x60, 0x00, // value
		0xf0, // CREATE
		0x00, // STOP
	}
	deployer = append(deployer, initcode...)

	contract := runtime.NewContractCall(0, caller, caller, callee, new(big.Int), 1000000, deployer, nil)

	res := NewEVM().Run(contract, host)
	require.NoError(t, res.Err)

	created := crypto.CreateAddress(callee, 0)
	assert.Equal(t, []byte{0x00}, host.account(created).code)
	assert.Equal(t, uint64(1), host.GetNonce(callee))
}
