package blockchain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	"github.com/minichain-lab/minichain/chain"
	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/helper/rawdb"
	"github.com/minichain-lab/minichain/types"
)

var (
	// ErrUnknownBlock is returned when the queried block is not in the chain
	ErrUnknownBlock = errors.New("unknown block")

	// ErrUnknownTransaction is returned when no receipt exists for a hash
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrBadFilter is returned for malformed log queries
	ErrBadFilter = errors.New("bad filter")
)

const (
	blockCacheSize   = 256
	receiptCacheSize = 1024
)

// Blockchain is the append-only block log plus its receipt and log indices,
// all stored under one KV backend
type Blockchain struct {
	logger  hclog.Logger
	db      kvdb.Database
	config  *chain.Params
	metrics *Metrics

	mux    sync.RWMutex
	header *types.Header // the current head

	blockCache   *lru.Cache
	receiptCache *lru.Cache

	stream *eventStream
}

func NewBlockchain(
	logger hclog.Logger,
	db kvdb.Database,
	config *chain.Params,
	metrics *Metrics,
) (*Blockchain, error) {
	blockCache, err := lru.New(blockCacheSize)
	if err != nil {
		return nil, err
	}

	receiptCache, err := lru.New(receiptCacheSize)
	if err != nil {
		return nil, err
	}

	b := &Blockchain{
		logger:       logger.Named("blockchain"),
		db:           db,
		config:       config,
		metrics:      newDummyMetrics(metrics),
		blockCache:   blockCache,
		receiptCache: receiptCache,
		stream:       &eventStream{},
	}

	return b, nil
}

// ComputeGenesis recovers the chain head from the meta pointers, or seals
// block 0 with the given state root when the database is fresh
func (b *Blockchain) ComputeGenesis(stateRoot types.Hash, timestamp uint64) error {
	if head, ok := rawdb.ReadHeadNumber(b.db); ok {
		block, err := b.GetBlockByNumber(head)
		if err != nil {
			return fmt.Errorf("head block missing: %w", err)
		}

		b.header = block.Header

		b.logger.Info("chain recovered", "number", head, "hash", block.Hash())

		return nil
	}

	genesis := &types.Header{
		Number:     0,
		ParentHash: types.ZeroHash,
		Timestamp:  timestamp,
		StateRoot:  stateRoot,
		GasLimit:   b.config.BlockGasLimit,
	}
	genesis.ComputeHash()

	block := &types.Block{Header: genesis}

	if err := b.writeBlockData(block, nil); err != nil {
		return err
	}

	b.header = genesis

	b.logger.Info("genesis sealed", "hash", genesis.Hash, "root", stateRoot)

	return nil
}

// Header returns a copy of the current head header
func (b *Blockchain) Header() *types.Header {
	b.mux.RLock()
	defer b.mux.RUnlock()

	return b.header.Copy()
}

// StateRoot returns the world state root of the current head
func (b *Blockchain) StateRoot() types.Hash {
	return b.Header().StateRoot
}

// SubscribeHeaders registers a listener for sealed headers
func (b *Blockchain) SubscribeHeaders() *Subscription {
	return b.stream.subscribe()
}

// WriteBlock appends a sealed block with its receipts; the parent linkage
// and numbering invariants are enforced here
func (b *Blockchain) WriteBlock(block *types.Block, receipts []*types.Receipt) error {
	b.mux.Lock()
	defer b.mux.Unlock()

	header := block.Header

	if header.Number != b.header.Number+1 {
		return fmt.Errorf("block number %d does not extend head %d", header.Number, b.header.Number)
	}

	if header.ParentHash != b.header.Hash {
		return fmt.Errorf("block parent hash mismatch at %d", header.Number)
	}

	if err := b.writeBlockData(block, receipts); err != nil {
		return err
	}

	b.header = header

	b.metrics.blockWrittenInc()
	b.metrics.setBlockHeight(header.Number)

	b.stream.push(header.Copy())

	b.logger.Debug("block sealed", "number", header.Number, "hash", header.Hash, "txs", len(block.Transactions))

	return nil
}

// writeBlockData persists the block, its receipts and the log index shards
// in one atomic batch
func (b *Blockchain) writeBlockData(block *types.Block, receipts []*types.Receipt) error {
	batch := b.db.NewBatch()

	header := block.Header

	// stamp the chain context onto receipts and logs
	var logIndex uint64

	for txIndex, receipt := range receipts {
		receipt.BlockHash = header.Hash
		receipt.BlockNumber = header.Number
		receipt.TxIndex = uint64(txIndex)

		for _, log := range receipt.Logs {
			log.BlockNumber = header.Number
			log.BlockHash = header.Hash
			log.TxHash = receipt.TxHash
			log.TxIndex = uint64(txIndex)
			log.LogIndex = logIndex
			logIndex++
		}
	}

	if err := rawdb.WriteBlock(batch, block); err != nil {
		return err
	}

	if err := rawdb.WriteBlockNumberByHash(batch, header.Hash, header.Number); err != nil {
		return err
	}

	for _, receipt := range receipts {
		if err := rawdb.WriteReceipt(batch, receipt); err != nil {
			return err
		}
	}

	if err := b.writeLogIndex(batch, receipts); err != nil {
		return err
	}

	if err := rawdb.WriteHeadNumber(batch, header.Number); err != nil {
		return err
	}

	if err := rawdb.WriteStateRoot(batch, header.StateRoot); err != nil {
		return err
	}

	if err := batch.Write(); err != nil {
		return err
	}

	b.blockCache.Add(header.Number, block)

	for _, receipt := range receipts {
		b.receiptCache.Add(receipt.TxHash, receipt)
	}

	return nil
}

type logIndexKey struct {
	addr     types.Address
	topicIdx byte
	topic    types.Hash
}

// writeLogIndex extends the posting lists touched by the block's logs
func (b *Blockchain) writeLogIndex(batch kvdb.Batch, receipts []*types.Receipt) error {
	grouped := map[logIndexKey][]rawdb.Posting{}

	for _, receipt := range receipts {
		for _, log := range receipt.Logs {
			posting := rawdb.Posting{BlockNumber: log.BlockNumber, LogIndex: log.LogIndex}

			// address-only shard
			k := logIndexKey{addr: log.Address, topicIdx: rawdb.LogIndexAddressOnly}
			grouped[k] = append(grouped[k], posting)

			// one shard per topic position
			for idx, topic := range log.Topics {
				k := logIndexKey{addr: log.Address, topicIdx: byte(idx), topic: topic}
				grouped[k] = append(grouped[k], posting)
			}
		}
	}

	for k, postings := range grouped {
		if err := rawdb.AppendPostings(b.db, batch, k.addr, k.topicIdx, k.topic, postings); err != nil {
			return err
		}
	}

	return nil
}

// GetBlockByNumber returns the block at the given height
func (b *Blockchain) GetBlockByNumber(number uint64) (*types.Block, error) {
	if cached, ok := b.blockCache.Get(number); ok {
		if block, ok := cached.(*types.Block); ok {
			return block, nil
		}
	}

	block, err := rawdb.ReadBlock(b.db, number)
	if err != nil {
		if errors.Is(err, rawdb.ErrNotFound) {
			return nil, ErrUnknownBlock
		}

		return nil, err
	}

	b.blockCache.Add(number, block)

	return block, nil
}

// GetBlockByHash resolves a block hash and returns the block
func (b *Blockchain) GetBlockByHash(hash types.Hash) (*types.Block, error) {
	number, ok := rawdb.ReadBlockNumberByHash(b.db, hash)
	if !ok {
		return nil, ErrUnknownBlock
	}

	return b.GetBlockByNumber(number)
}

// GetBlockHash returns the hash of the block at the given height; used by
// the BLOCKHASH opcode
func (b *Blockchain) GetBlockHash(number uint64) types.Hash {
	block, err := b.GetBlockByNumber(number)
	if err != nil {
		return types.ZeroHash
	}

	return block.Hash()
}

// GetReceipt returns the receipt of the given transaction
func (b *Blockchain) GetReceipt(txHash types.Hash) (*types.Receipt, error) {
	if cached, ok := b.receiptCache.Get(txHash); ok {
		if receipt, ok := cached.(*types.Receipt); ok {
			return receipt, nil
		}
	}

	receipt, err := rawdb.ReadReceipt(b.db, txHash)
	if err != nil {
		if errors.Is(err, rawdb.ErrNotFound) {
			return nil, ErrUnknownTransaction
		}

		return nil, err
	}

	b.receiptCache.Add(txHash, receipt)

	return receipt, nil
}
