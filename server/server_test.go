package server

import (
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	"github.com/minichain-lab/minichain/chain"
	"github.com/minichain-lab/minichain/helper/hex"
	"github.com/minichain-lab/minichain/jsonrpc"
	"github.com/minichain-lab/minichain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	accountA = types.StringToAddress("0xa0a0")
	accountB = types.StringToAddress("0xb0b0")

	oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// storeAndLogRuntime stores calldata[0:32] at slot 0 and emits a LOG1 with
// the stored word as both topic and data
var storeAndLogRuntime = hex.MustDecodeHex(
	"0x60003560005560003560005260003560206000a100",
)

// revertRuntime reverts with a fixed 32 byte payload
func revertRuntime() []byte {
	payload := make([]byte, 32)
	payload[30] = 0xde
	payload[31] = 0xad

	code := []byte{0x7f}
	code = append(code, payload...)
	code = append(code,
		0x60, 0x00, 0x52, // MSTORE(0)
		0x60, 0x20, 0x60, 0x00, 0xfd, // REVERT(0, 32)
	)

	return code
}

func deployCode(runtime []byte) []byte {
	l := byte(len(runtime))

	init := []byte{
		0x60, l, 0x60, 0x0c, 0x60, 0x00, 0x39,
		0x60, l, 0x60, 0x00, 0xf3,
	}

	return append(init, runtime...)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	config := chain.DefaultChain()
	config.Genesis.Alloc = chain.GenesisAlloc{
		accountA: {Balance: new(big.Int).Mul(oneEther, big.NewInt(100))},
		accountB: {Balance: new(big.Int).Mul(oneEther, big.NewInt(100))},
	}

	s, err := NewServer(&Config{Chain: config})
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close() //nolint:errcheck
	})

	return s
}

func sendTx(t *testing.T, s *Server, tx *types.Transaction) *types.Receipt {
	t.Helper()

	hash, err := s.SendTransaction(tx)
	require.NoError(t, err)

	receipt, err := s.GetReceipt(hash)
	require.NoError(t, err)

	return receipt
}

func deploy(t *testing.T, s *Server, from types.Address, runtime []byte) types.Address {
	t.Helper()

	nonce, err := s.GetNonce(from, jsonrpc.LatestBlockNumber)
	require.NoError(t, err)

	receipt := sendTx(t, s, &types.Transaction{
		From:     from,
		Value:    new(big.Int),
		Gas:      1000000,
		GasPrice: big.NewInt(chain.DefaultGasPrice),
		Input:    deployCode(runtime),
		Nonce:    nonce,
	})

	require.True(t, receipt.Succeeded())
	require.NotNil(t, receipt.ContractAddress)

	return *receipt.ContractAddress
}

func TestServer_TransferSealsBlock(t *testing.T) {
	s := newTestServer(t)

	receipt := sendTx(t, s, &types.Transaction{
		From:     accountA,
		To:       &accountB,
		Value:    big.NewInt(12345),
		Gas:      21000,
		GasPrice: big.NewInt(chain.DefaultGasPrice),
		Nonce:    0,
	})

	assert.True(t, receipt.Succeeded())
	assert.Equal(t, uint64(1), receipt.BlockNumber)
	assert.Equal(t, uint64(1), s.Header().Number)

	balance, err := s.GetBalance(accountB, jsonrpc.LatestBlockNumber)
	require.NoError(t, err)

	expected := new(big.Int).Add(new(big.Int).Mul(oneEther, big.NewInt(100)), big.NewInt(12345))
	assert.Equal(t, expected, balance)

	// historical state stays visible at the genesis block
	balance, err = s.GetBalance(accountB, jsonrpc.BlockNumber(0))
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Mul(oneEther, big.NewInt(100)), balance)

	nonce, err := s.GetNonce(accountA, jsonrpc.LatestBlockNumber)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestServer_NonceMismatchAppendsNothing(t *testing.T) {
	s := newTestServer(t)

	_, err := s.SendTransaction(&types.Transaction{
		From:     accountA,
		To:       &accountB,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(chain.DefaultGasPrice),
		Nonce:    1, // current + 1
	})

	assert.Error(t, err)
	assert.Equal(t, uint64(0), s.Header().Number)

	nonce, err := s.GetNonce(accountA, jsonrpc.LatestBlockNumber)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)
}

func TestServer_DeployAndQueryCode(t *testing.T) {
	s := newTestServer(t)

	contract := deploy(t, s, accountA, storeAndLogRuntime)

	code, err := s.GetCode(contract, jsonrpc.LatestBlockNumber)
	require.NoError(t, err)
	assert.Equal(t, storeAndLogRuntime, code)

	// before the deployment block the code is empty
	code, err = s.GetCode(contract, jsonrpc.BlockNumber(0))
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestServer_StateUpdateAndLogs(t *testing.T) {
	s := newTestServer(t)

	contract := deploy(t, s, accountA, storeAndLogRuntime)

	word := types.StringToHash("0xfeed")

	receipt := sendTx(t, s, &types.Transaction{
		From:     accountA,
		To:       &contract,
		Value:    new(big.Int),
		Gas:      100000,
		GasPrice: big.NewInt(chain.DefaultGasPrice),
		Input:    word.Bytes(),
		Nonce:    1,
	})

	require.True(t, receipt.Succeeded())
	require.Len(t, receipt.Logs, 1)

	stored, err := s.GetStorageAt(contract, types.ZeroHash, jsonrpc.LatestBlockNumber)
	require.NoError(t, err)
	assert.Equal(t, word, stored)
}

func TestServer_LogFilterByTopicSet(t *testing.T) {
	s := newTestServer(t)

	contract := deploy(t, s, accountA, storeAndLogRuntime)

	topicX := types.StringToHash("0x0f01")
	topicY := types.StringToHash("0x0f02")
	topicZ := types.StringToHash("0x0f03")

	for i, topic := range []types.Hash{topicX, topicY, topicZ} {
		sendTx(t, s, &types.Transaction{
			From:     accountA,
			To:       &contract,
			Value:    new(big.Int),
			Gas:      100000,
			GasPrice: big.NewInt(chain.DefaultGasPrice),
			Input:    topic.Bytes(),
			Nonce:    uint64(i + 1),
		})
	}

	// query through the dispatcher with a topic value set
	req := fmt.Sprintf(
		`{"jsonrpc":"2.0","id":1,"method":"eth_getLogs","params":[{"fromBlock":"0x0","toBlock":"latest","address":"%s","topics":[["%s","%s"]]}]}`,
		contract, topicX, topicZ,
	)

	respBody, err := s.JSONRPC().Dispatcher().Handle([]byte(req))
	require.NoError(t, err)

	var resp struct {
		Result []struct {
			Topics      []types.Hash `json:"topics"`
			BlockNumber string       `json:"blockNumber"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respBody, &resp))

	require.Len(t, resp.Result, 2)
	assert.Equal(t, topicX, resp.Result[0].Topics[0])
	assert.Equal(t, topicZ, resp.Result[1].Topics[0])
}

func TestServer_CallReturnsRevertData(t *testing.T) {
	s := newTestServer(t)

	contract := deploy(t, s, accountA, revertRuntime())

	// eth_call hands the revert payload back as-is
	result, err := s.ApplyCall(&types.Transaction{
		From: accountA,
		To:   &contract,
	}, jsonrpc.LatestBlockNumber)
	require.NoError(t, err)

	assert.True(t, result.Reverted())
	require.Len(t, result.ReturnValue, 32)
	assert.Equal(t, byte(0xde), result.ReturnValue[30])
	assert.Equal(t, byte(0xad), result.ReturnValue[31])

	// a transaction to the same contract produces a failed receipt with no
	// logs, and still advances the nonce in a new block
	receipt := sendTx(t, s, &types.Transaction{
		From:     accountA,
		To:       &contract,
		Value:    new(big.Int),
		Gas:      100000,
		GasPrice: big.NewInt(chain.DefaultGasPrice),
		Nonce:    1,
	})

	assert.False(t, receipt.Succeeded())
	assert.Empty(t, receipt.Logs)

	nonce, err := s.GetNonce(accountA, jsonrpc.LatestBlockNumber)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)
}

func TestServer_DispatcherBasics(t *testing.T) {
	s := newTestServer(t)

	// eth_gasPrice answers the configured constant
	resp, err := s.JSONRPC().Dispatcher().Handle(
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"eth_gasPrice","params":[]}`),
	)
	require.NoError(t, err)
	assert.Contains(t, string(resp), hex.EncodeUint64(chain.DefaultGasPrice))

	// unknown methods answer -32601
	resp, err = s.JSONRPC().Dispatcher().Handle(
		[]byte(`{"jsonrpc":"2.0","id":2,"method":"eth_unknown","params":[]}`),
	)
	require.NoError(t, err)
	assert.Contains(t, string(resp), `-32601`)

	// malformed params answer -32602
	resp, err = s.JSONRPC().Dispatcher().Handle(
		[]byte(`{"jsonrpc":"2.0","id":3,"method":"eth_getCode","params":["nonsense"]}`),
	)
	require.NoError(t, err)
	assert.Contains(t, string(resp), `-32602`)
}

func TestServer_PersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	config := chain.DefaultChain()
	config.Genesis.Alloc = chain.GenesisAlloc{
		accountA: {Balance: oneEther},
	}

	s, err := NewServer(&Config{Chain: config, DataDir: dir})
	require.NoError(t, err)

	sendTx(t, s, &types.Transaction{
		From:     accountA,
		To:       &accountB,
		Value:    big.NewInt(77),
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Nonce:    0,
	})

	head := s.Header()
	require.NoError(t, s.Close())

	// reopen over the same directory: head and state recover from the
	// meta pointers
	s2, err := NewServer(&Config{Chain: config, DataDir: dir})
	require.NoError(t, err)

	defer s2.Close() //nolint:errcheck

	assert.Equal(t, head.Number, s2.Header().Number)
	assert.Equal(t, head.Hash, s2.Header().Hash)

	balance, err := s2.GetBalance(accountB, jsonrpc.LatestBlockNumber)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(77), balance)
}
