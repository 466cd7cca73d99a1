package chain

import (
	"encoding/json"
	"math/big"
	"os"

	"github.com/minichain-lab/minichain/helper/hex"
	"github.com/minichain-lab/minichain/types"
)

// Default chain parameters for the in-process chain
const (
	DefaultChainID       = 1337
	DefaultGasPrice      = 50000
	DefaultBlockGasLimit = 30000000 // 0x1c9c380
)

// Chain is the top-level chain configuration
type Chain struct {
	Name    string   `json:"name"`
	Genesis *Genesis `json:"genesis"`
	Params  *Params  `json:"params"`
}

// Params are the consensus-free execution parameters
type Params struct {
	ChainID uint64 `json:"chainID"`

	// GasPrice is the fixed price reported by eth_gasPrice and used
	// as the default for transactions that omit one
	GasPrice uint64 `json:"gasPrice"`

	// BlockGasLimit caps the gas of a single transaction block
	BlockGasLimit uint64 `json:"blockGasLimit"`

	// Coinbase collects transaction fees; may be the zero address
	Coinbase types.Address `json:"coinbase"`
}

// Genesis specifies the state of block 0
type Genesis struct {
	Timestamp uint64       `json:"timestamp"`
	Alloc     GenesisAlloc `json:"alloc,omitempty"`
}

// GenesisAlloc is the initial account state of the genesis block
type GenesisAlloc map[types.Address]*GenesisAccount

// GenesisAccount is an account in the state of the genesis block
type GenesisAccount struct {
	Code    []byte                    `json:"code,omitempty"`
	Storage map[types.Hash]types.Hash `json:"storage,omitempty"`
	Balance *big.Int                  `json:"balance"`
	Nonce   uint64                    `json:"nonce,omitempty"`
}

// DefaultChain returns a chain with no preallocated accounts
func DefaultChain() *Chain {
	return &Chain{
		Name: "minichain",
		Genesis: &Genesis{
			Alloc: GenesisAlloc{},
		},
		Params: &Params{
			ChainID:       DefaultChainID,
			GasPrice:      DefaultGasPrice,
			BlockGasLimit: DefaultBlockGasLimit,
		},
	}
}

// ImportFromFile imports a chain configuration from a JSON file
func ImportFromFile(filename string) (*Chain, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	return importChain(data)
}

func importChain(content []byte) (*Chain, error) {
	chain := new(Chain)
	if err := json.Unmarshal(content, chain); err != nil {
		return nil, err
	}

	if chain.Params == nil {
		chain.Params = DefaultChain().Params
	}

	if chain.Params.GasPrice == 0 {
		chain.Params.GasPrice = DefaultGasPrice
	}

	if chain.Params.BlockGasLimit == 0 {
		chain.Params.BlockGasLimit = DefaultBlockGasLimit
	}

	return chain, nil
}

type genesisAccountEncoder struct {
	Code    *string                   `json:"code,omitempty"`
	Storage map[types.Hash]types.Hash `json:"storage,omitempty"`
	Balance *string                   `json:"balance"`
	Nonce   *string                   `json:"nonce,omitempty"`
}

func (g *GenesisAccount) MarshalJSON() ([]byte, error) {
	obj := &genesisAccountEncoder{}

	if g.Code != nil {
		code := hex.EncodeToHex(g.Code)
		obj.Code = &code
	}

	if len(g.Storage) != 0 {
		obj.Storage = g.Storage
	}

	if g.Balance != nil {
		balance := hex.EncodeBig(g.Balance)
		obj.Balance = &balance
	}

	if g.Nonce != 0 {
		nonce := hex.EncodeUint64(g.Nonce)
		obj.Nonce = &nonce
	}

	return json.Marshal(obj)
}

func (g *GenesisAccount) UnmarshalJSON(data []byte) error {
	type decoder struct {
		Code    *string                   `json:"code,omitempty"`
		Storage map[types.Hash]types.Hash `json:"storage,omitempty"`
		Balance *string                   `json:"balance"`
		Nonce   *string                   `json:"nonce,omitempty"`
	}

	var dec decoder
	if err := json.Unmarshal(data, &dec); err != nil {
		return err
	}

	if dec.Code != nil {
		g.Code = types.StringToBytes(*dec.Code)
	}

	g.Storage = dec.Storage

	if dec.Balance != nil {
		b, err := hex.DecodeHexToBig(*dec.Balance)
		if err != nil {
			return err
		}

		g.Balance = b
	}

	if dec.Nonce != nil {
		n, err := hex.DecodeUint64(*dec.Nonce)
		if err != nil {
			return err
		}

		g.Nonce = n
	}

	return nil
}
