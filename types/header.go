package types

import (
	"sync/atomic"
)

// Header is the immutable part of a block
type Header struct {
	Number     uint64
	ParentHash Hash
	Timestamp  uint64
	Miner      Address
	StateRoot  Hash
	GasLimit   uint64
	GasUsed    uint64
	LogsBloom  Bloom

	// cached hash of the header
	Hash Hash
}

func (h *Header) Copy() *Header {
	hh := new(Header)
	*hh = *h

	return hh
}

// Body is the payload of a block
type Body struct {
	Transactions []*Transaction
}

// Block is a header plus the executed transactions
type Block struct {
	Header       *Header
	Transactions []*Transaction

	// Cache
	size atomic.Value
}

func (b *Block) Hash() Hash {
	return b.Header.Hash
}

func (b *Block) Number() uint64 {
	return b.Header.Number
}

func (b *Block) ParentHash() Hash {
	return b.Header.ParentHash
}

func (b *Block) Body() *Body {
	return &Body{Transactions: b.Transactions}
}

func (b *Block) Size() uint64 {
	if size := b.size.Load(); size != nil {
		sizeVal, ok := size.(uint64)
		if !ok {
			return 0
		}

		return sizeVal
	}

	size := uint64(len(b.MarshalRLP()))
	b.size.Store(size)

	return size
}
