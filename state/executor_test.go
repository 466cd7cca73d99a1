package state_test

import (
	"math/big"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/minichain-lab/minichain/chain"
	"github.com/minichain-lab/minichain/crypto"
	"github.com/minichain-lab/minichain/helper/hex"
	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/state"
	itrie "github.com/minichain-lab/minichain/state/itrie"
	"github.com/minichain-lab/minichain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sender   = types.StringToAddress("0x1010")
	receiver = types.StringToAddress("0x2020")

	oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// storeAndLogRuntime stores calldata[0:32] at slot 0 and emits a LOG1 with
// the same word as topic and data
var storeAndLogRuntime = hex.MustDecodeHex(
	"0x60003560005560003560005260003560206000a100",
)

// deployCode wraps runtime code in initcode that returns it
func deployCode(runtime []byte) []byte {
	l := byte(len(runtime))

	init := []byte{
		0x60, l, 0x60, 0x0c, 0x60, 0x00, 0x39, // CODECOPY(0, 12, l)
		0x60, l, 0x60, 0x00, 0xf3, // RETURN(0, l)
	}

	return append(init, runtime...)
}

type testEnv struct {
	executor *state.Executor
	root     types.Hash
	params   *chain.Params
}

func newTestEnv(t *testing.T, alloc chain.GenesisAlloc) *testEnv {
	t.Helper()

	params := &chain.Params{
		ChainID:       chain.DefaultChainID,
		GasPrice:      chain.DefaultGasPrice,
		BlockGasLimit: chain.DefaultBlockGasLimit,
	}

	db := itrie.NewStateDB(kvdb.NewMemoryDB(), hclog.NewNullLogger())
	executor := state.NewExecutor(params, db, hclog.NewNullLogger())

	root, err := executor.WriteGenesis(alloc)
	require.NoError(t, err)

	return &testEnv{executor: executor, root: root, params: params}
}

func (env *testEnv) begin(t *testing.T) *state.Transition {
	t.Helper()

	header := &types.Header{
		Number:   1,
		GasLimit: env.params.BlockGasLimit,
	}

	transition, err := env.executor.BeginTxn(env.root, header)
	require.NoError(t, err)

	return transition
}

func (env *testEnv) commit(t *testing.T, transition *state.Transition) state.Snapshot {
	t.Helper()

	snap, root, err := transition.Commit()
	require.NoError(t, err)

	env.root = root

	return snap
}

func balanceOf(t *testing.T, snap state.Snapshot, addr types.Address) *big.Int {
	t.Helper()

	account, err := snap.GetAccount(addr)
	require.NoError(t, err)

	if account == nil {
		return new(big.Int)
	}

	return account.Balance
}

func TestExecutor_TransferConservesValue(t *testing.T) {
	env := newTestEnv(t, chain.GenesisAlloc{
		sender: {Balance: new(big.Int).Mul(oneEther, big.NewInt(10))},
	})

	transition := env.begin(t)

	gasPrice := big.NewInt(1)

	receipt, err := transition.Write(&types.Transaction{
		From:     sender,
		To:       &receiver,
		Value:    big.NewInt(5000),
		Gas:      21000,
		GasPrice: gasPrice,
		Nonce:    0,
	})
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())
	assert.Equal(t, uint64(21000), receipt.GasUsed)

	snap := env.commit(t, transition)

	initial := new(big.Int).Mul(oneEther, big.NewInt(10))

	senderBalance := balanceOf(t, snap, sender)
	receiverBalance := balanceOf(t, snap, receiver)
	coinbaseBalance := balanceOf(t, snap, types.ZeroAddress)

	// the total supply moved between sender, receiver and coinbase only
	total := new(big.Int).Add(senderBalance, receiverBalance)
	total.Add(total, coinbaseBalance)
	assert.Equal(t, initial, total)

	assert.Equal(t, big.NewInt(5000), receiverBalance)
	assert.Equal(t, big.NewInt(21000), coinbaseBalance)
}

func TestExecutor_NonceMismatchLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t, chain.GenesisAlloc{
		sender: {Balance: oneEther},
	})

	transition := env.begin(t)

	_, err := transition.Write(&types.Transaction{
		From:     sender,
		To:       &receiver,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Nonce:    1, // current + 1
	})

	assert.ErrorIs(t, err, state.ErrInvalidTransaction)

	// nothing was applied
	assert.Equal(t, uint64(0), transition.Txn().GetNonce(sender))
	assert.Equal(t, oneEther, transition.Txn().GetBalance(sender))
	assert.Empty(t, transition.Receipts())
}

func TestExecutor_InsufficientFunds(t *testing.T) {
	env := newTestEnv(t, chain.GenesisAlloc{
		sender: {Balance: big.NewInt(100)},
	})

	transition := env.begin(t)

	_, err := transition.Write(&types.Transaction{
		From:     sender,
		To:       &receiver,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Nonce:    0,
	})

	assert.ErrorIs(t, err, state.ErrInvalidTransaction)
}

func TestExecutor_DeployAndCall(t *testing.T) {
	env := newTestEnv(t, chain.GenesisAlloc{
		sender: {Balance: oneEther},
	})

	// deploy
	transition := env.begin(t)

	receipt, err := transition.Write(&types.Transaction{
		From:     sender,
		Value:    new(big.Int),
		Gas:      1000000,
		GasPrice: big.NewInt(1),
		Input:    deployCode(storeAndLogRuntime),
		Nonce:    0,
	})
	require.NoError(t, err)
	require.True(t, receipt.Succeeded())
	require.NotNil(t, receipt.ContractAddress)

	contract := *receipt.ContractAddress
	assert.Equal(t, crypto.CreateAddress(sender, 0), contract)

	snap := env.commit(t, transition)

	account, err := snap.GetAccount(contract)
	require.NoError(t, err)
	require.NotNil(t, account)

	code, ok := snap.GetCode(types.BytesToHash(account.CodeHash))
	require.True(t, ok)
	assert.Equal(t, storeAndLogRuntime, code)

	// call: stores the word and emits a log
	word := types.StringToHash("0xbeef")

	transition = env.begin(t)

	receipt, err = transition.Write(&types.Transaction{
		From:     sender,
		To:       &contract,
		Value:    new(big.Int),
		Gas:      100000,
		GasPrice: big.NewInt(1),
		Input:    word.Bytes(),
		Nonce:    1,
	})
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())

	require.Len(t, receipt.Logs, 1)
	assert.Equal(t, contract, receipt.Logs[0].Address)
	require.Len(t, receipt.Logs[0].Topics, 1)
	assert.Equal(t, word, receipt.Logs[0].Topics[0])
	assert.Equal(t, word.Bytes(), receipt.Logs[0].Data)

	snap = env.commit(t, transition)

	stored, err := snap.GetStorage(contract, storageRootOf(t, snap, contract), types.ZeroHash)
	require.NoError(t, err)
	assert.Equal(t, word, stored)
}

func TestExecutor_OutOfGasRevertsButCharges(t *testing.T) {
	env := newTestEnv(t, chain.GenesisAlloc{
		sender: {Balance: oneEther},
	})

	transition := env.begin(t)

	receipt, err := transition.Write(&types.Transaction{
		From:     sender,
		Value:    new(big.Int),
		Gas:      1000000,
		GasPrice: big.NewInt(1),
		Input:    deployCode(storeAndLogRuntime),
		Nonce:    0,
	})
	require.NoError(t, err)
	contract := *receipt.ContractAddress

	env.commit(t, transition)

	// not enough gas for the SSTORE
	transition = env.begin(t)

	receipt, err = transition.Write(&types.Transaction{
		From:     sender,
		To:       &contract,
		Value:    new(big.Int),
		Gas:      21500,
		GasPrice: big.NewInt(1),
		Input:    types.StringToHash("0x1").Bytes(),
		Nonce:    1,
	})
	require.NoError(t, err)

	// the transaction failed but was charged in full and advanced the nonce
	assert.False(t, receipt.Succeeded())
	assert.Equal(t, uint64(21500), receipt.GasUsed)
	assert.Empty(t, receipt.Logs)
	assert.Equal(t, uint64(2), transition.Txn().GetNonce(sender))
}

func TestExecutor_CreateCollision(t *testing.T) {
	target := crypto.CreateAddress(sender, 0)

	env := newTestEnv(t, chain.GenesisAlloc{
		sender: {Balance: oneEther},
		target: {Code: []byte{0x00}},
	})

	transition := env.begin(t)

	receipt, err := transition.Write(&types.Transaction{
		From:     sender,
		Value:    new(big.Int),
		Gas:      1000000,
		GasPrice: big.NewInt(1),
		Input:    deployCode(storeAndLogRuntime),
		Nonce:    0,
	})
	require.NoError(t, err)

	// the creation failed, the nonce still advanced and gas was consumed
	assert.False(t, receipt.Succeeded())
	assert.Equal(t, uint64(1000000), receipt.GasUsed)
	assert.Equal(t, uint64(1), transition.Txn().GetNonce(sender))
}

func TestExecutor_ReExecutionIsDeterministic(t *testing.T) {
	alloc := chain.GenesisAlloc{
		sender: {Balance: oneEther},
	}

	tx := &types.Transaction{
		From:     sender,
		Value:    new(big.Int),
		Gas:      1000000,
		GasPrice: big.NewInt(1),
		Input:    deployCode(storeAndLogRuntime),
		Nonce:    0,
	}

	run := func() (types.Hash, *types.Receipt) {
		env := newTestEnv(t, alloc)
		transition := env.begin(t)

		receipt, err := transition.Write(tx.Copy())
		require.NoError(t, err)

		env.commit(t, transition)

		return env.root, receipt
	}

	rootA, receiptA := run()
	rootB, receiptB := run()

	assert.Equal(t, rootA, rootB)
	assert.Equal(t, receiptA.GasUsed, receiptB.GasUsed)
	assert.Equal(t, receiptA.Status, receiptB.Status)
}

func storageRootOf(t *testing.T, snap state.Snapshot, addr types.Address) types.Hash {
	t.Helper()

	account, err := snap.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, account)

	return account.StorageRoot
}
