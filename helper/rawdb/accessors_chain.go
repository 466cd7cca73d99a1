package rawdb

import (
	"errors"

	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/types"
)

var ErrNotFound = errors.New("not found")

func readRLP(db kvdb.KVReader, key []byte, raw types.RLPUnmarshaler) error {
	data, ok, err := db.Get(key)
	if err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}

	return raw.UnmarshalRLP(data)
}

func writeRLP(db kvdb.KVWriter, key []byte, raw types.RLPMarshaler) error {
	return db.Set(key, raw.MarshalRLPTo(nil))
}

// BLOCKS //

// ReadBlock reads the block at the given height
func ReadBlock(db kvdb.KVReader, number uint64) (*types.Block, error) {
	block := new(types.Block)
	err := readRLP(db, blockKey(number), block)

	return block, err
}

// WriteBlock writes the block under its number
func WriteBlock(db kvdb.KVWriter, block *types.Block) error {
	return writeRLP(db, blockKey(block.Number()), block)
}

// ReadBlockNumberByHash resolves a block hash to its height
func ReadBlockNumberByHash(db kvdb.KVReader, hash types.Hash) (uint64, bool) {
	data, ok, err := db.Get(blockHashKey(hash))
	if err != nil || !ok || len(data) != 8 {
		return 0, false
	}

	return decodeUint(data), true
}

// WriteBlockNumberByHash maps the block hash to its height
func WriteBlockNumberByHash(db kvdb.KVWriter, hash types.Hash, number uint64) error {
	return db.Set(blockHashKey(hash), encodeUint(number))
}

// RECEIPTS //

// ReadReceipt reads the receipt of the given transaction
func ReadReceipt(db kvdb.KVReader, txHash types.Hash) (*types.Receipt, error) {
	receipt := new(types.Receipt)
	err := readRLP(db, receiptKey(txHash), receipt)

	return receipt, err
}

// WriteReceipt writes the receipt under its transaction hash
func WriteReceipt(db kvdb.KVWriter, receipt *types.Receipt) error {
	return writeRLP(db, receiptKey(receipt.TxHash), receipt)
}

// HEAD //

// ReadHeadNumber returns the number of the latest block
func ReadHeadNumber(db kvdb.KVReader) (uint64, bool) {
	data, ok, err := db.Get(headNumberFullKey())
	if err != nil || !ok || len(data) != 8 {
		return 0, false
	}

	return decodeUint(data), true
}

// WriteHeadNumber writes the number of the latest block
func WriteHeadNumber(db kvdb.KVWriter, number uint64) error {
	return db.Set(headNumberFullKey(), encodeUint(number))
}

// ReadStateRoot returns the world state root of the latest block
func ReadStateRoot(db kvdb.KVReader) (types.Hash, bool) {
	data, ok, err := db.Get(stateRootFullKey())
	if err != nil || !ok {
		return types.Hash{}, false
	}

	return types.BytesToHash(data), true
}

// WriteStateRoot writes the world state root of the latest block
func WriteStateRoot(db kvdb.KVWriter, root types.Hash) error {
	return db.Set(stateRootFullKey(), root.Bytes())
}
