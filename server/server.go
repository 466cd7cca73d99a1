package server

import (
	"errors"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/minichain-lab/minichain/blockchain"
	"github.com/minichain-lab/minichain/chain"
	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/helper/rawdb"
	"github.com/minichain-lab/minichain/jsonrpc"
	"github.com/minichain-lab/minichain/state"
	itrie "github.com/minichain-lab/minichain/state/itrie"
	"github.com/minichain-lab/minichain/state/runtime"
	"github.com/minichain-lab/minichain/types"
)

// Config configures the in-process chain
type Config struct {
	Chain *chain.Chain

	// DataDir is the leveldb path; empty runs fully in memory
	DataDir string

	// JSONRPCAddr optionally exposes the dispatcher over HTTP
	JSONRPCAddr *net.TCPAddr

	// EnableWS serves the dispatcher over /ws as well
	EnableWS bool

	Logger hclog.Logger
}

// Server is the in-process node substitute: world state, executor, chain
// and JSON-RPC dispatcher wired over one KV backend
type Server struct {
	logger hclog.Logger
	config *Config

	db         kvdb.Database
	stateDB    itrie.StateDB
	executor   *state.Executor
	blockchain *blockchain.Blockchain
	jsonrpc    *jsonrpc.JSONRPC

	// writes are serialised; reads run against immutable snapshot roots
	writeMux sync.Mutex
}

// NewServer boots the chain: opens the backend, recovers or seeds the
// genesis state, and starts the RPC front
func NewServer(config *Config) (*Server, error) {
	if config.Chain == nil {
		config.Chain = chain.DefaultChain()
	}

	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	logger = logger.Named("server")

	var (
		db  kvdb.Database
		err error
	)

	if config.DataDir == "" {
		db = kvdb.NewMemoryDB()
	} else {
		if db, err = kvdb.NewLevelDB(config.DataDir); err != nil {
			return nil, err
		}
	}

	s := &Server{
		logger: logger,
		config: config,
		db:     db,
	}

	s.stateDB = itrie.NewStateDB(db, logger)
	s.executor = state.NewExecutor(config.Chain.Params, s.stateDB, logger)

	if s.blockchain, err = blockchain.NewBlockchain(logger, db, config.Chain.Params, nil); err != nil {
		return nil, err
	}

	s.executor.GetHash = s.blockchain.GetBlockHash

	if err = s.initGenesis(); err != nil {
		return nil, err
	}

	if s.jsonrpc, err = jsonrpc.NewJSONRPC(logger, &jsonrpc.Config{
		Store:                    s,
		Addr:                     config.JSONRPCAddr,
		ChainID:                  config.Chain.Params.ChainID,
		EnableWS:                 config.EnableWS,
		AccessControlAllowOrigin: []string{"*"},
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// initGenesis recovers the chain pointers, or commits the genesis
// allocation when the database is fresh
func (s *Server) initGenesis() error {
	if _, ok := rawdb.ReadHeadNumber(s.db); ok {
		return s.blockchain.ComputeGenesis(types.ZeroHash, 0)
	}

	root, err := s.executor.WriteGenesis(s.config.Chain.Genesis.Alloc)
	if err != nil {
		return err
	}

	return s.blockchain.ComputeGenesis(root, s.config.Chain.Genesis.Timestamp)
}

// JSONRPC returns the RPC front for in-process dispatch
func (s *Server) JSONRPC() *jsonrpc.JSONRPC {
	return s.jsonrpc
}

// Close shuts the RPC front and the KV backend down
func (s *Server) Close() error {
	var result error

	if err := s.jsonrpc.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := s.db.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	return result
}

// jsonrpc store implementation

func (s *Server) Header() *types.Header {
	return s.blockchain.Header()
}

func (s *Server) GasPrice() uint64 {
	return s.config.Chain.Params.GasPrice
}

// SendTransaction executes the transaction against the head state and
// seals the next block holding it. Pre-flight failures seal nothing.
func (s *Server) SendTransaction(tx *types.Transaction) (types.Hash, error) {
	s.writeMux.Lock()
	defer s.writeMux.Unlock()

	parent := s.blockchain.Header()

	header := &types.Header{
		Number:     parent.Number + 1,
		ParentHash: parent.Hash,
		Timestamp:  nextTimestamp(parent.Timestamp),
		Miner:      s.config.Chain.Params.Coinbase,
		GasLimit:   s.config.Chain.Params.BlockGasLimit,
	}

	transition, err := s.executor.BeginTxn(parent.StateRoot, header)
	if err != nil {
		return types.Hash{}, err
	}

	receipt, err := transition.Write(tx)
	if err != nil {
		return types.Hash{}, err
	}

	_, root, err := transition.Commit()
	if err != nil {
		return types.Hash{}, err
	}

	receipts := transition.Receipts()

	header.StateRoot = root
	header.GasUsed = transition.TotalGas()
	header.LogsBloom = types.CreateBloom(receipts)
	header.ComputeHash()

	block := &types.Block{
		Header:       header,
		Transactions: []*types.Transaction{tx},
	}

	if err := s.blockchain.WriteBlock(block, receipts); err != nil {
		return types.Hash{}, err
	}

	return receipt.TxHash, nil
}

// ApplyCall runs a read-only call against the state of the given block;
// nothing is committed
func (s *Server) ApplyCall(tx *types.Transaction, number jsonrpc.BlockNumber) (*runtime.ExecutionResult, error) {
	header, err := s.resolveHeader(number)
	if err != nil {
		return nil, err
	}

	transition, err := s.executor.BeginTxn(header.StateRoot, header)
	if err != nil {
		return nil, err
	}

	return transition.Call(tx), nil
}

func (s *Server) GetReceipt(hash types.Hash) (*types.Receipt, error) {
	return s.blockchain.GetReceipt(hash)
}

func (s *Server) GetBalance(addr types.Address, number jsonrpc.BlockNumber) (*big.Int, error) {
	account, err := s.getAccount(addr, number)
	if err != nil || account == nil {
		return new(big.Int), err
	}

	return account.Balance, nil
}

func (s *Server) GetNonce(addr types.Address, number jsonrpc.BlockNumber) (uint64, error) {
	account, err := s.getAccount(addr, number)
	if err != nil || account == nil {
		return 0, err
	}

	return account.Nonce, nil
}

func (s *Server) GetCode(addr types.Address, number jsonrpc.BlockNumber) ([]byte, error) {
	account, err := s.getAccount(addr, number)
	if err != nil || account == nil {
		return []byte{}, err
	}

	code, ok := s.stateDB.GetCode(types.BytesToHash(account.CodeHash))
	if !ok {
		return nil, itrie.ErrMissingCode
	}

	return code, nil
}

func (s *Server) GetStorageAt(
	addr types.Address,
	slot types.Hash,
	number jsonrpc.BlockNumber,
) (types.Hash, error) {
	header, err := s.resolveHeader(number)
	if err != nil {
		return types.Hash{}, err
	}

	snap, err := s.executor.StateAt(header.StateRoot)
	if err != nil {
		return types.Hash{}, err
	}

	account, err := snap.GetAccount(addr)
	if err != nil {
		return types.Hash{}, err
	}

	if account == nil {
		return types.Hash{}, nil
	}

	return snap.GetStorage(addr, account.StorageRoot, slot)
}

func (s *Server) GetLogs(filter *blockchain.LogFilter) ([]*types.Log, error) {
	return s.blockchain.GetLogs(filter)
}

func (s *Server) GetBlockByNumber(number uint64) (*types.Block, error) {
	return s.blockchain.GetBlockByNumber(number)
}

func (s *Server) GetBlockByHash(hash types.Hash) (*types.Block, error) {
	return s.blockchain.GetBlockByHash(hash)
}

// helpers

func (s *Server) getAccount(addr types.Address, number jsonrpc.BlockNumber) (*accountView, error) {
	header, err := s.resolveHeader(number)
	if err != nil {
		return nil, err
	}

	snap, err := s.executor.StateAt(header.StateRoot)
	if err != nil {
		return nil, err
	}

	account, err := snap.GetAccount(addr)
	if err != nil {
		return nil, err
	}

	if account == nil {
		return nil, nil
	}

	return &accountView{
		Balance:  account.Balance,
		Nonce:    account.Nonce,
		CodeHash: account.CodeHash,
	}, nil
}

type accountView struct {
	Balance  *big.Int
	Nonce    uint64
	CodeHash []byte
}

func (s *Server) resolveHeader(number jsonrpc.BlockNumber) (*types.Header, error) {
	switch number {
	case jsonrpc.LatestBlockNumber, jsonrpc.PendingBlockNumber:
		return s.blockchain.Header(), nil
	case jsonrpc.EarliestBlockNumber:
		block, err := s.blockchain.GetBlockByNumber(0)
		if err != nil {
			return nil, err
		}

		return block.Header, nil
	default:
		if number < 0 {
			return nil, errors.New("invalid block number")
		}

		block, err := s.blockchain.GetBlockByNumber(uint64(number))
		if err != nil {
			return nil, err
		}

		return block.Header, nil
	}
}

func nextTimestamp(parent uint64) uint64 {
	now := uint64(time.Now().Unix())
	if now <= parent {
		return parent + 1
	}

	return now
}
