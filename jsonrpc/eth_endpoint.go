package jsonrpc

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/minichain-lab/minichain/blockchain"
	"github.com/minichain-lab/minichain/helper/hex"
	"github.com/minichain-lab/minichain/state/runtime"
	"github.com/minichain-lab/minichain/types"
)

// ethStore is the server surface the eth endpoint operates on
type ethStore interface {
	Header() *types.Header
	GasPrice() uint64

	// SendTransaction executes the transaction immediately; the block and
	// receipt are available once it returns
	SendTransaction(tx *types.Transaction) (types.Hash, error)

	// ApplyCall runs a read-only call against the state of the given block
	ApplyCall(tx *types.Transaction, number BlockNumber) (*runtime.ExecutionResult, error)

	GetReceipt(hash types.Hash) (*types.Receipt, error)
	GetBalance(addr types.Address, number BlockNumber) (*big.Int, error)
	GetNonce(addr types.Address, number BlockNumber) (uint64, error)
	GetCode(addr types.Address, number BlockNumber) ([]byte, error)
	GetStorageAt(addr types.Address, slot types.Hash, number BlockNumber) (types.Hash, error)
	GetLogs(filter *blockchain.LogFilter) ([]*types.Log, error)
	GetBlockByNumber(number uint64) (*types.Block, error)
	GetBlockByHash(hash types.Hash) (*types.Block, error)
}

// Eth is the eth_ namespace endpoint
type Eth struct {
	store      ethStore
	chainID    uint64
	priceLimit uint64
}

// GasPrice returns the fixed gas price of the chain (eth_gasPrice)
func (e *Eth) GasPrice() (interface{}, Error) {
	return hex.EncodeUint64(e.store.GasPrice()), nil
}

// ChainID returns the chain id (eth_chainId)
func (e *Eth) ChainID() (interface{}, Error) {
	return hex.EncodeUint64(e.chainID), nil
}

// BlockNumber returns the head block number (eth_blockNumber)
func (e *Eth) BlockNumber() (interface{}, Error) {
	return hex.EncodeUint64(e.store.Header().Number), nil
}

func (e *Eth) handleSendTransaction(params []json.RawMessage) (interface{}, Error) {
	var args txnArgs
	if err := decodeParam(params, 0, &args); err != nil {
		return nil, err
	}

	txn, rpcErr := e.buildTransaction(&args)
	if rpcErr != nil {
		return nil, rpcErr
	}

	hash, err := e.store.SendTransaction(txn)
	if err != nil {
		return nil, NewGenericError(err.Error())
	}

	return hash.String(), nil
}

func (e *Eth) handleSendRawTransaction(params []json.RawMessage) (interface{}, Error) {
	var input argBytes
	if err := decodeParam(params, 0, &input); err != nil {
		return nil, err
	}

	txn := new(types.Transaction)
	if err := txn.UnmarshalRLP(input); err != nil {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid transaction encoding: %v", err))
	}

	hash, err := e.store.SendTransaction(txn)
	if err != nil {
		return nil, NewGenericError(err.Error())
	}

	return hash.String(), nil
}

func (e *Eth) handleCall(params []json.RawMessage) (interface{}, Error) {
	var args txnArgs
	if err := decodeParam(params, 0, &args); err != nil {
		return nil, err
	}

	number := LatestBlockNumber
	if len(params) > 1 {
		if err := json.Unmarshal(params[1], &number); err != nil {
			return nil, NewInvalidParamsError("invalid block number")
		}
	}

	txn, rpcErr := e.buildCall(&args)
	if rpcErr != nil {
		return nil, rpcErr
	}

	result, err := e.store.ApplyCall(txn, number)
	if err != nil {
		return nil, NewGenericError(err.Error())
	}

	if result.Reverted() {
		// the revert payload is handed back as-is
		return argBytesPtr(result.ReturnValue), nil
	}

	if result.Failed() {
		return nil, NewGenericErrorWithData(
			fmt.Sprintf("unable to execute call: %s", result.Err),
			hex.EncodeToHex(result.ReturnValue),
		)
	}

	return argBytesPtr(result.ReturnValue), nil
}

func (e *Eth) handleEstimateGas(params []json.RawMessage) (interface{}, Error) {
	var args txnArgs
	if err := decodeParam(params, 0, &args); err != nil {
		return nil, err
	}

	txn, rpcErr := e.buildCall(&args)
	if rpcErr != nil {
		return nil, rpcErr
	}

	header := e.store.Header()

	if txn.Gas == 0 {
		txn.Gas = header.GasLimit
	}

	result, err := e.store.ApplyCall(txn, LatestBlockNumber)
	if err != nil {
		return nil, NewGenericError(err.Error())
	}

	if result.Failed() {
		return nil, NewGenericError(fmt.Sprintf("execution failed: %s", result.Err))
	}

	// the estimate is what the execution consumed plus the intrinsic cost
	used := txn.Gas - result.GasLeft

	intrinsic := uint64(21000)
	if txn.To == nil {
		intrinsic = 53000
	}

	for _, b := range txn.Input {
		if b == 0 {
			intrinsic += 4
		} else {
			intrinsic += 16
		}
	}

	return hex.EncodeUint64(used + intrinsic), nil
}

func (e *Eth) handleGetTransactionReceipt(params []json.RawMessage) (interface{}, Error) {
	var hash types.Hash
	if err := decodeParam(params, 0, &hash); err != nil {
		return nil, err
	}

	receipt, err := e.store.GetReceipt(hash)
	if err != nil {
		if err == blockchain.ErrUnknownTransaction {
			// unknown transactions answer null, not an error
			return nil, nil
		}

		return nil, NewGenericError(err.Error())
	}

	return toReceipt(receipt), nil
}

func (e *Eth) handleGetCode(params []json.RawMessage) (interface{}, Error) {
	addr, number, rpcErr := addressBlockParams(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	code, err := e.store.GetCode(addr, number)
	if err != nil {
		return nil, NewGenericError(err.Error())
	}

	return argBytesPtr(code), nil
}

func (e *Eth) handleGetBalance(params []json.RawMessage) (interface{}, Error) {
	addr, number, rpcErr := addressBlockParams(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	balance, err := e.store.GetBalance(addr, number)
	if err != nil {
		return nil, NewGenericError(err.Error())
	}

	return argBigPtr(balance), nil
}

func (e *Eth) handleGetTransactionCount(params []json.RawMessage) (interface{}, Error) {
	addr, number, rpcErr := addressBlockParams(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	nonce, err := e.store.GetNonce(addr, number)
	if err != nil {
		return nil, NewGenericError(err.Error())
	}

	return hex.EncodeUint64(nonce), nil
}

func (e *Eth) handleGetStorageAt(params []json.RawMessage) (interface{}, Error) {
	var addr types.Address
	if err := decodeParam(params, 0, &addr); err != nil {
		return nil, err
	}

	var slot types.Hash
	if err := decodeParam(params, 1, &slot); err != nil {
		return nil, err
	}

	number := LatestBlockNumber
	if len(params) > 2 {
		if err := json.Unmarshal(params[2], &number); err != nil {
			return nil, NewInvalidParamsError("invalid block number")
		}
	}

	value, err := e.store.GetStorageAt(addr, slot, number)
	if err != nil {
		return nil, NewGenericError(err.Error())
	}

	return value.String(), nil
}

func (e *Eth) handleGetLogs(params []json.RawMessage) (interface{}, Error) {
	var req logQueryRequest
	if err := decodeParam(params, 0, &req); err != nil {
		return nil, err
	}

	filter, rpcErr := e.buildLogFilter(&req)
	if rpcErr != nil {
		return nil, rpcErr
	}

	logs, err := e.store.GetLogs(filter)
	if err != nil {
		return nil, NewGenericError(err.Error())
	}

	result := make([]*rpcLog, 0, len(logs))
	for _, log := range logs {
		result = append(result, toLog(log))
	}

	return result, nil
}

func (e *Eth) handleGetBlockByNumber(params []json.RawMessage) (interface{}, Error) {
	var number BlockNumber
	if err := decodeParam(params, 0, &number); err != nil {
		return nil, err
	}

	fullTx := false
	if len(params) > 1 {
		_ = json.Unmarshal(params[1], &fullTx)
	}

	resolved := e.resolveBlockNumber(number)

	block, err := e.store.GetBlockByNumber(resolved)
	if err != nil {
		if err == blockchain.ErrUnknownBlock {
			return nil, nil
		}

		return nil, NewGenericError(err.Error())
	}

	return toBlock(block, fullTx), nil
}

func (e *Eth) handleGetBlockByHash(params []json.RawMessage) (interface{}, Error) {
	var hash types.Hash
	if err := decodeParam(params, 0, &hash); err != nil {
		return nil, err
	}

	fullTx := false
	if len(params) > 1 {
		_ = json.Unmarshal(params[1], &fullTx)
	}

	block, err := e.store.GetBlockByHash(hash)
	if err != nil {
		if err == blockchain.ErrUnknownBlock {
			return nil, nil
		}

		return nil, NewGenericError(err.Error())
	}

	return toBlock(block, fullTx), nil
}

func (e *Eth) resolveBlockNumber(number BlockNumber) uint64 {
	switch number {
	case LatestBlockNumber, PendingBlockNumber:
		return e.store.Header().Number
	case EarliestBlockNumber:
		return 0
	default:
		return uint64(number)
	}
}

// buildTransaction converts the wire arguments into an executable
// transaction, filling the nonce from the sender account when absent
func (e *Eth) buildTransaction(args *txnArgs) (*types.Transaction, Error) {
	if args.From == nil {
		return nil, NewInvalidParamsError("from address is required")
	}

	txn := &types.Transaction{
		From:     *args.From,
		To:       args.To,
		Value:    new(big.Int),
		GasPrice: new(big.Int).SetUint64(e.store.GasPrice()),
		Gas:      e.store.Header().GasLimit,
	}

	if args.Value != nil {
		v := big.Int(*args.Value)
		txn.Value = &v
	}

	if args.GasPrice != nil {
		gp := big.Int(*args.GasPrice)
		txn.GasPrice = &gp
	}

	if args.Gas != nil {
		txn.Gas = uint64(*args.Gas)
	}

	if args.Input != nil {
		txn.Input = *args.Input
	} else if args.Data != nil {
		txn.Input = *args.Data
	}

	if args.hasNonce() {
		txn.Nonce = uint64(*args.Nonce)
	} else {
		nonce, err := e.store.GetNonce(*args.From, LatestBlockNumber)
		if err != nil {
			return nil, NewInternalError(err.Error())
		}

		txn.Nonce = nonce
	}

	return txn, nil
}

// buildCall converts the wire arguments into a read-only call message
func (e *Eth) buildCall(args *txnArgs) (*types.Transaction, Error) {
	txn := &types.Transaction{
		Value:    new(big.Int),
		GasPrice: new(big.Int),
	}

	if args.From != nil {
		txn.From = *args.From
	}

	txn.To = args.To

	if args.Value != nil {
		v := big.Int(*args.Value)
		txn.Value = &v
	}

	if args.Gas != nil {
		txn.Gas = uint64(*args.Gas)
	}

	if args.Input != nil {
		txn.Input = *args.Input
	} else if args.Data != nil {
		txn.Input = *args.Data
	}

	return txn, nil
}

func (e *Eth) buildLogFilter(req *logQueryRequest) (*blockchain.LogFilter, Error) {
	filter := &blockchain.LogFilter{}

	from, err := stringToBlockNumber(req.FromBlock)
	if err != nil {
		return nil, NewInvalidParamsError("invalid fromBlock")
	}

	to, err := stringToBlockNumber(req.ToBlock)
	if err != nil {
		return nil, NewInvalidParamsError("invalid toBlock")
	}

	head := e.store.Header().Number

	filter.FromBlock = resolveFilterBound(from, head, 0)
	filter.ToBlock = resolveFilterBound(to, head, head)

	if filter.Addresses, err = decodeAddresses(req.Address); err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}

	if filter.Topics, err = decodeTopics(req.Topics); err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}

	return filter, nil
}

func resolveFilterBound(number BlockNumber, head uint64, def uint64) uint64 {
	switch number {
	case LatestBlockNumber, PendingBlockNumber:
		return head
	case EarliestBlockNumber:
		return 0
	default:
		if number < 0 {
			return def
		}

		return uint64(number)
	}
}

// addressBlockParams decodes the common [address, block] parameter shape
func addressBlockParams(params []json.RawMessage) (types.Address, BlockNumber, Error) {
	var addr types.Address
	if err := decodeParam(params, 0, &addr); err != nil {
		return types.Address{}, 0, err
	}

	number := LatestBlockNumber
	if len(params) > 1 {
		if err := json.Unmarshal(params[1], &number); err != nil {
			return types.Address{}, 0, NewInvalidParamsError("invalid block number")
		}
	}

	return addr, number, nil
}

func decodeParam(params []json.RawMessage, index int, target interface{}) Error {
	if len(params) <= index {
		return NewInvalidParamsError(fmt.Sprintf("missing parameter %d", index))
	}

	if err := json.Unmarshal(params[index], target); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid parameter %d: %v", index, err))
	}

	return nil
}
