package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/minichain-lab/minichain/helper/hex"
	"github.com/minichain-lab/minichain/helper/keccak"
	"github.com/minichain-lab/minichain/versioning"
)

// Web3 is the web3_ namespace endpoint
type Web3 struct {
	chainID uint64
}

var _clientVersionTemplate = "minichain [chain-id: %d] [version: %s]"

// ClientVersion returns the version of the client (web3_clientVersion)
func (w *Web3) ClientVersion() (interface{}, Error) {
	return fmt.Sprintf(
		_clientVersionTemplate,
		w.chainID,
		versioning.Version,
	), nil
}

// handleSha3 returns Keccak-256 (not the standardized SHA3-256) of the given data
func (w *Web3) handleSha3(params []json.RawMessage) (interface{}, Error) {
	var val string
	if err := decodeParam(params, 0, &val); err != nil {
		return nil, err
	}

	v, err := hex.DecodeHex(val)
	if err != nil {
		return nil, NewInvalidRequestError("Invalid hex string")
	}

	dst := keccak.Keccak256(nil, v)

	return hex.EncodeToHex(dst), nil
}
