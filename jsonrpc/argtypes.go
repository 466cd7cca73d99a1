package jsonrpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/minichain-lab/minichain/helper/hex"
	"github.com/minichain-lab/minichain/types"
)

// Quantities are minimal hex ("0x0", no leading zeroes); byte strings are
// 0x-prefixed lowercase hex of exact length.

type argUint64 uint64

func (u argUint64) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeUint64(uint64(u))), nil
}

func (u *argUint64) UnmarshalText(input []byte) error {
	parsed, err := hex.DecodeUint64(string(input))
	if err != nil {
		return err
	}

	*u = argUint64(parsed)

	return nil
}

type argBytes []byte

func (b argBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToHex(b)), nil
}

func (b *argBytes) UnmarshalText(input []byte) error {
	hh, err := hex.DecodeHex(string(input))
	if err != nil {
		return err
	}

	*b = hh

	return nil
}

func argBytesPtr(b []byte) *argBytes {
	bb := argBytes(b)

	return &bb
}

type argBig big.Int

func (a argBig) MarshalText() ([]byte, error) {
	b := big.Int(a)

	return []byte(hex.EncodeBig(&b)), nil
}

func (a *argBig) UnmarshalText(input []byte) error {
	v, err := hex.DecodeHexToBig(string(input))
	if err != nil {
		return err
	}

	*a = argBig(*v)

	return nil
}

func argBigPtr(b *big.Int) *argBig {
	v := argBig(*b)

	return &v
}

// BlockNumber resolves the block parameter of the query methods
type BlockNumber int64

const (
	// PendingBlockNumber is the not-yet-sealed block; identical to the
	// latest state on this chain
	PendingBlockNumber = BlockNumber(-3)
	// LatestBlockNumber is the current head
	LatestBlockNumber = BlockNumber(-2)
	// EarliestBlockNumber is the genesis block
	EarliestBlockNumber = BlockNumber(-1)
)

func stringToBlockNumber(str string) (BlockNumber, error) {
	if str == "" {
		return LatestBlockNumber, nil
	}

	str = strings.Trim(str, "\"")

	switch str {
	case "pending":
		return PendingBlockNumber, nil
	case "latest":
		return LatestBlockNumber, nil
	case "earliest":
		return EarliestBlockNumber, nil
	}

	n, err := hex.DecodeUint64(str)
	if err != nil {
		return 0, err
	}

	return BlockNumber(n), nil
}

func (b *BlockNumber) UnmarshalJSON(buffer []byte) error {
	num, err := stringToBlockNumber(string(buffer))
	if err != nil {
		return err
	}

	*b = num

	return nil
}

// txnArgs is the object form of a transaction or call request
type txnArgs struct {
	From     *types.Address `json:"from"`
	To       *types.Address `json:"to"`
	Gas      *argUint64     `json:"gas"`
	GasPrice *argBig        `json:"gasPrice"`
	Value    *argBig        `json:"value"`
	Data     *argBytes      `json:"data"`
	Input    *argBytes      `json:"input"`
	Nonce    *argUint64     `json:"nonce"`
}

// hasNonce reports whether the caller pinned a nonce; absent nonces are
// filled from the sender account by the processor
func (args *txnArgs) hasNonce() bool {
	return args.Nonce != nil
}

// logQueryRequest is the wire form of an eth_getLogs filter
type logQueryRequest struct {
	FromBlock string          `json:"fromBlock"`
	ToBlock   string          `json:"toBlock"`
	Address   json.RawMessage `json:"address"`
	Topics    json.RawMessage `json:"topics"`
	BlockHash *types.Hash     `json:"blockhash"`
}

// decodeAddresses accepts a single address or an array of addresses
func decodeAddresses(data json.RawMessage) ([]types.Address, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var single types.Address
	if err := json.Unmarshal(data, &single); err == nil {
		return []types.Address{single}, nil
	}

	var multiple []types.Address
	if err := json.Unmarshal(data, &multiple); err != nil {
		return nil, fmt.Errorf("invalid address filter")
	}

	return multiple, nil
}

// decodeTopics accepts, per slot: null (wildcard), a single topic, or an
// array of accepted topics
func decodeTopics(data json.RawMessage) ([][]types.Hash, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid topic filter")
	}

	topics := make([][]types.Hash, len(raw))

	for indx, slot := range raw {
		if len(slot) == 0 || string(slot) == "null" {
			// wildcard slot
			continue
		}

		var single types.Hash
		if err := json.Unmarshal(slot, &single); err == nil {
			topics[indx] = []types.Hash{single}

			continue
		}

		var set []types.Hash
		if err := json.Unmarshal(slot, &set); err != nil {
			return nil, fmt.Errorf("invalid topic filter at slot %d", indx)
		}

		topics[indx] = set
	}

	return topics, nil
}
