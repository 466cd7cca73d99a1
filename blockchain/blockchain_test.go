package blockchain

import (
	"math/big"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/minichain-lab/minichain/chain"
	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	emitter = types.StringToAddress("0xbeef")

	sigTopic = types.StringToHash("0x5151")
	topicX   = types.StringToHash("0xaa01")
	topicY   = types.StringToHash("0xaa02")
	topicZ   = types.StringToHash("0xaa03")
)

func newTestBlockchain(t *testing.T) *Blockchain {
	t.Helper()

	b, err := NewBlockchain(hclog.NewNullLogger(), kvdb.NewMemoryDB(), chain.DefaultChain().Params, nil)
	require.NoError(t, err)

	require.NoError(t, b.ComputeGenesis(types.EmptyRootHash, 0))

	return b
}

// sealBlock appends a block with one transaction whose receipt holds the
// given logs
func sealBlock(t *testing.T, b *Blockchain, logs []*types.Log) *types.Receipt {
	t.Helper()

	parent := b.Header()

	tx := &types.Transaction{
		Nonce:    parent.Number,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &emitter,
		Value:    new(big.Int),
		From:     types.StringToAddress("0xcafe"),
	}

	receipt := &types.Receipt{
		TxHash:  tx.Hash(),
		From:    tx.From,
		To:      tx.To,
		GasUsed: 21000,
		Status:  types.ReceiptSuccess,
		Logs:    logs,
	}
	receipt.LogsBloom = types.CreateBloom([]*types.Receipt{receipt})

	header := &types.Header{
		Number:     parent.Number + 1,
		ParentHash: parent.Hash,
		Timestamp:  parent.Timestamp + 1,
		StateRoot:  parent.StateRoot,
		GasLimit:   parent.GasLimit,
		GasUsed:    21000,
		LogsBloom:  types.CreateBloom([]*types.Receipt{receipt}),
	}
	header.ComputeHash()

	block := &types.Block{Header: header, Transactions: []*types.Transaction{tx}}

	require.NoError(t, b.WriteBlock(block, []*types.Receipt{receipt}))

	return receipt
}

func log(topics ...types.Hash) *types.Log {
	return &types.Log{
		Address: emitter,
		Topics:  topics,
		Data:    []byte{0x1},
	}
}

func TestBlockchain_GenesisAndRecovery(t *testing.T) {
	db := kvdb.NewMemoryDB()

	b, err := NewBlockchain(hclog.NewNullLogger(), db, chain.DefaultChain().Params, nil)
	require.NoError(t, err)
	require.NoError(t, b.ComputeGenesis(types.EmptyRootHash, 100))

	assert.Equal(t, uint64(0), b.Header().Number)
	assert.Equal(t, types.EmptyRootHash, b.StateRoot())

	sealBlock(t, b, nil)

	// a second instance over the same db recovers the head
	b2, err := NewBlockchain(hclog.NewNullLogger(), db, chain.DefaultChain().Params, nil)
	require.NoError(t, err)
	require.NoError(t, b2.ComputeGenesis(types.ZeroHash, 0))

	assert.Equal(t, uint64(1), b2.Header().Number)
	assert.Equal(t, b.Header().Hash, b2.Header().Hash)
}

func TestBlockchain_ParentLinkage(t *testing.T) {
	b := newTestBlockchain(t)

	r1 := sealBlock(t, b, nil)
	sealBlock(t, b, nil)

	block1, err := b.GetBlockByNumber(1)
	require.NoError(t, err)

	block2, err := b.GetBlockByNumber(2)
	require.NoError(t, err)

	assert.Equal(t, block1.Hash(), block2.ParentHash())

	byHash, err := b.GetBlockByHash(block1.Hash())
	require.NoError(t, err)
	assert.Equal(t, block1.Number(), byHash.Number())

	receipt, err := b.GetReceipt(r1.TxHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.BlockNumber)
}

func TestBlockchain_RejectsBrokenLinkage(t *testing.T) {
	b := newTestBlockchain(t)

	header := &types.Header{
		Number:     5, // not head+1
		ParentHash: b.Header().Hash,
	}
	header.ComputeHash()

	err := b.WriteBlock(&types.Block{Header: header}, nil)
	assert.Error(t, err)
}

func TestBlockchain_UnknownLookups(t *testing.T) {
	b := newTestBlockchain(t)

	_, err := b.GetBlockByNumber(99)
	assert.ErrorIs(t, err, ErrUnknownBlock)

	_, err = b.GetBlockByHash(types.StringToHash("0x1"))
	assert.ErrorIs(t, err, ErrUnknownBlock)

	_, err = b.GetReceipt(types.StringToHash("0x2"))
	assert.ErrorIs(t, err, ErrUnknownTransaction)
}

func TestBlockchain_GetLogsByTopicSet(t *testing.T) {
	b := newTestBlockchain(t)

	// three blocks emitting sig/X, sig/Y, sig/Z
	sealBlock(t, b, []*types.Log{log(sigTopic, topicX)})
	sealBlock(t, b, []*types.Log{log(sigTopic, topicY)})
	sealBlock(t, b, []*types.Log{log(sigTopic, topicZ)})

	// topics [sig, [X, Z]] returns only the X and Z logs in block order
	logs, err := b.GetLogs(&LogFilter{
		FromBlock: 0,
		ToBlock:   3,
		Addresses: []types.Address{emitter},
		Topics:    [][]types.Hash{{sigTopic}, {topicX, topicZ}},
	})
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, topicX, logs[0].Topics[1])
	assert.Equal(t, uint64(1), logs[0].BlockNumber)
	assert.Equal(t, topicZ, logs[1].Topics[1])
	assert.Equal(t, uint64(3), logs[1].BlockNumber)
}

func TestBlockchain_GetLogsWildcardSlot(t *testing.T) {
	b := newTestBlockchain(t)

	sealBlock(t, b, []*types.Log{log(sigTopic, topicX)})
	sealBlock(t, b, []*types.Log{log(sigTopic, topicY)})

	// wildcard in slot 0, bound in slot 1
	logs, err := b.GetLogs(&LogFilter{
		FromBlock: 0,
		ToBlock:   2,
		Addresses: []types.Address{emitter},
		Topics:    [][]types.Hash{nil, {topicY}},
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, topicY, logs[0].Topics[1])
}

func TestBlockchain_GetLogsAddressOnly(t *testing.T) {
	b := newTestBlockchain(t)

	sealBlock(t, b, []*types.Log{log(sigTopic, topicX)})
	sealBlock(t, b, nil)
	sealBlock(t, b, []*types.Log{log(sigTopic, topicY)})

	logs, err := b.GetLogs(&LogFilter{
		FromBlock: 0,
		ToBlock:   3,
		Addresses: []types.Address{emitter},
	})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestBlockchain_GetLogsNoAddressScan(t *testing.T) {
	b := newTestBlockchain(t)

	sealBlock(t, b, []*types.Log{log(sigTopic, topicX)})
	sealBlock(t, b, []*types.Log{log(sigTopic, topicY)})

	logs, err := b.GetLogs(&LogFilter{
		FromBlock: 0,
		ToBlock:   2,
		Topics:    [][]types.Hash{{sigTopic}},
	})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestBlockchain_GetLogsBadRange(t *testing.T) {
	b := newTestBlockchain(t)

	sealBlock(t, b, nil)

	_, err := b.GetLogs(&LogFilter{FromBlock: 2, ToBlock: 1})
	assert.ErrorIs(t, err, ErrBadFilter)
}

func TestBlockchain_HeadSubscription(t *testing.T) {
	b := newTestBlockchain(t)

	sub := b.SubscribeHeaders()
	defer sub.Close()

	sealBlock(t, b, nil)

	header := <-sub.Ch()
	assert.Equal(t, uint64(1), header.Number)
}
