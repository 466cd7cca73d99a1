package jsonrpc

import (
	"github.com/minichain-lab/minichain/types"
)

// Wire views of the chain objects, encoded per the standard JSON-RPC
// conventions.

type rpcReceipt struct {
	TxHash            types.Hash     `json:"transactionHash"`
	TxIndex           argUint64      `json:"transactionIndex"`
	BlockHash         types.Hash     `json:"blockHash"`
	BlockNumber       argUint64      `json:"blockNumber"`
	From              types.Address  `json:"from"`
	To                *types.Address `json:"to"`
	ContractAddress   *types.Address `json:"contractAddress"`
	GasUsed           argUint64      `json:"gasUsed"`
	CumulativeGasUsed argUint64      `json:"cumulativeGasUsed"`
	Status            argUint64      `json:"status"`
	LogsBloom         argBytes       `json:"logsBloom"`
	Logs              []*rpcLog      `json:"logs"`
}

type rpcLog struct {
	Address     types.Address `json:"address"`
	Topics      []types.Hash  `json:"topics"`
	Data        argBytes      `json:"data"`
	BlockNumber argUint64     `json:"blockNumber"`
	TxHash      types.Hash    `json:"transactionHash"`
	TxIndex     argUint64     `json:"transactionIndex"`
	BlockHash   types.Hash    `json:"blockHash"`
	LogIndex    argUint64     `json:"logIndex"`
	Removed     bool          `json:"removed"`
}

type rpcBlock struct {
	Number     argUint64     `json:"number"`
	Hash       types.Hash    `json:"hash"`
	ParentHash types.Hash    `json:"parentHash"`
	Timestamp  argUint64     `json:"timestamp"`
	StateRoot  types.Hash    `json:"stateRoot"`
	Miner      types.Address `json:"miner"`
	GasLimit   argUint64     `json:"gasLimit"`
	GasUsed    argUint64     `json:"gasUsed"`
	LogsBloom  argBytes      `json:"logsBloom"`

	Transactions []interface{} `json:"transactions"`
}

type rpcTransaction struct {
	Hash     types.Hash     `json:"hash"`
	From     types.Address  `json:"from"`
	To       *types.Address `json:"to"`
	Nonce    argUint64      `json:"nonce"`
	Gas      argUint64      `json:"gas"`
	GasPrice *argBig        `json:"gasPrice"`
	Value    *argBig        `json:"value"`
	Input    argBytes       `json:"input"`

	BlockHash   types.Hash `json:"blockHash"`
	BlockNumber argUint64  `json:"blockNumber"`
	TxIndex     argUint64  `json:"transactionIndex"`
}

func toReceipt(receipt *types.Receipt) *rpcReceipt {
	res := &rpcReceipt{
		TxHash:            receipt.TxHash,
		TxIndex:           argUint64(receipt.TxIndex),
		BlockHash:         receipt.BlockHash,
		BlockNumber:       argUint64(receipt.BlockNumber),
		From:              receipt.From,
		To:                receipt.To,
		ContractAddress:   receipt.ContractAddress,
		GasUsed:           argUint64(receipt.GasUsed),
		CumulativeGasUsed: argUint64(receipt.CumulativeGasUsed),
		Status:            argUint64(receipt.Status),
		LogsBloom:         receipt.LogsBloom[:],
		Logs:              make([]*rpcLog, 0, len(receipt.Logs)),
	}

	for _, log := range receipt.Logs {
		res.Logs = append(res.Logs, toLog(log))
	}

	return res
}

func toLog(log *types.Log) *rpcLog {
	return &rpcLog{
		Address:     log.Address,
		Topics:      log.Topics,
		Data:        log.Data,
		BlockNumber: argUint64(log.BlockNumber),
		TxHash:      log.TxHash,
		TxIndex:     argUint64(log.TxIndex),
		BlockHash:   log.BlockHash,
		LogIndex:    argUint64(log.LogIndex),
	}
}

func toBlock(block *types.Block, fullTx bool) *rpcBlock {
	header := block.Header

	res := &rpcBlock{
		Number:       argUint64(header.Number),
		Hash:         header.Hash,
		ParentHash:   header.ParentHash,
		Timestamp:    argUint64(header.Timestamp),
		StateRoot:    header.StateRoot,
		Miner:        header.Miner,
		GasLimit:     argUint64(header.GasLimit),
		GasUsed:      argUint64(header.GasUsed),
		LogsBloom:    header.LogsBloom[:],
		Transactions: []interface{}{},
	}

	for indx, txn := range block.Transactions {
		if fullTx {
			res.Transactions = append(res.Transactions, toTransaction(txn, block, uint64(indx)))
		} else {
			res.Transactions = append(res.Transactions, txn.Hash())
		}
	}

	return res
}

func toTransaction(txn *types.Transaction, block *types.Block, index uint64) *rpcTransaction {
	return &rpcTransaction{
		Hash:        txn.Hash(),
		From:        txn.From,
		To:          txn.To,
		Nonce:       argUint64(txn.Nonce),
		Gas:         argUint64(txn.Gas),
		GasPrice:    argBigPtr(txn.GasPrice),
		Value:       argBigPtr(txn.Value),
		Input:       txn.Input,
		BlockHash:   block.Hash(),
		BlockNumber: argUint64(block.Number()),
		TxIndex:     argUint64(index),
	}
}
