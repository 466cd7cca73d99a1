package rawdb

import (
	"encoding/binary"

	"github.com/minichain-lab/minichain/types"
)

// All chain data shares one KV backend, namespaced by a fixed one-byte prefix.
var (
	// TriePrefix + node hash -> trie node
	TriePrefix = []byte("T")
	// CodePrefix + code hash -> contract code
	CodePrefix = []byte("C")
	// blockPrefix + be_uint64(number) -> block
	blockPrefix = []byte("B")
	// blockHashPrefix + block hash -> be_uint64(number)
	blockHashPrefix = []byte("H")
	// receiptPrefix + tx hash -> receipt
	receiptPrefix = []byte("R")
	// logIndexPrefix + address + topic_idx + topic hash -> posting list
	logIndexPrefix = []byte("L")
	// metaPrefix + subkey -> chain pointers
	metaPrefix = []byte("M")
)

// meta subkeys
var (
	headNumberKey = []byte("latest")
	stateRootKey  = []byte("state_root")
)

// topic index sentinel for the address-only shard of the log index
const LogIndexAddressOnly = byte(0xff)

func encodeUint(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b[:], n)

	return b[:]
}

func decodeUint(b []byte) uint64 {
	return binary.BigEndian.Uint64(b[:])
}

// TrieNodeKey = TriePrefix + hash
func TrieNodeKey(hash []byte) []byte {
	return append(TriePrefix, hash...)
}

// CodeKey = CodePrefix + hash
func CodeKey(hash types.Hash) []byte {
	return append(CodePrefix, hash.Bytes()...)
}

func blockKey(n uint64) []byte {
	return append(blockPrefix, encodeUint(n)...)
}

func blockHashKey(h types.Hash) []byte {
	return append(blockHashPrefix, h.Bytes()...)
}

func receiptKey(h types.Hash) []byte {
	return append(receiptPrefix, h.Bytes()...)
}

// logIndexKey = logIndexPrefix + address + topicIdx + topic
func logIndexKey(addr types.Address, topicIdx byte, topic types.Hash) []byte {
	key := make([]byte, 0, len(logIndexPrefix)+types.AddressLength+1+types.HashLength)
	key = append(key, logIndexPrefix...)
	key = append(key, addr.Bytes()...)
	key = append(key, topicIdx)

	if topicIdx != LogIndexAddressOnly {
		key = append(key, topic.Bytes()...)
	}

	return key
}

func headNumberFullKey() []byte {
	return append(metaPrefix, headNumberKey...)
}

func stateRootFullKey() []byte {
	return append(metaPrefix, stateRootKey...)
}
