package types

import (
	"math/big"

	"github.com/umbracle/fastrlp"
)

var marshalArenaPool fastrlp.ArenaPool

type RLPMarshaler interface {
	MarshalRLPTo(dst []byte) []byte
}

type marshalRLPFunc func(ar *fastrlp.Arena) *fastrlp.Value

func MarshalRLPTo(obj marshalRLPFunc, dst []byte) []byte {
	ar := marshalArenaPool.Get()
	dst = obj(ar).MarshalTo(dst)
	marshalArenaPool.Put(ar)

	return dst
}

// Header

func (h *Header) MarshalRLP() []byte {
	return h.MarshalRLPTo(nil)
}

func (h *Header) MarshalRLPTo(dst []byte) []byte {
	return MarshalRLPTo(h.MarshalRLPWith, dst)
}

func (h *Header) MarshalRLPWith(ar *fastrlp.Arena) *fastrlp.Value {
	vv := ar.NewArray()

	vv.Set(ar.NewBytes(h.ParentHash.Bytes()))
	vv.Set(ar.NewBytes(h.Miner.Bytes()))
	vv.Set(ar.NewBytes(h.StateRoot.Bytes()))
	vv.Set(ar.NewBytes(h.LogsBloom[:]))
	vv.Set(ar.NewUint(h.Number))
	vv.Set(ar.NewUint(h.GasLimit))
	vv.Set(ar.NewUint(h.GasUsed))
	vv.Set(ar.NewUint(h.Timestamp))

	return vv
}

// ComputeHash computes the keccak-256 hash of the header and caches it
func (h *Header) ComputeHash() *Header {
	hash := keccakRlp(h.MarshalRLPWith)
	h.Hash = hash

	return h
}

// Block

func (b *Block) MarshalRLP() []byte {
	return b.MarshalRLPTo(nil)
}

func (b *Block) MarshalRLPTo(dst []byte) []byte {
	return MarshalRLPTo(b.MarshalRLPWith, dst)
}

func (b *Block) MarshalRLPWith(ar *fastrlp.Arena) *fastrlp.Value {
	vv := ar.NewArray()
	vv.Set(b.Header.MarshalRLPWith(ar))

	if len(b.Transactions) == 0 {
		vv.Set(ar.NewNullArray())
	} else {
		txs := ar.NewArray()
		for _, tx := range b.Transactions {
			txs.Set(tx.MarshalRLPWith(ar))
		}

		vv.Set(txs)
	}

	return vv
}

// Body

func (b *Body) MarshalRLPTo(dst []byte) []byte {
	return MarshalRLPTo(b.MarshalRLPWith, dst)
}

func (b *Body) MarshalRLPWith(ar *fastrlp.Arena) *fastrlp.Value {
	if len(b.Transactions) == 0 {
		return ar.NewNullArray()
	}

	vv := ar.NewArray()
	for _, tx := range b.Transactions {
		vv.Set(tx.MarshalRLPWith(ar))
	}

	return vv
}

// Transaction

func (t *Transaction) MarshalRLP() []byte {
	return t.MarshalRLPTo(nil)
}

func (t *Transaction) MarshalRLPTo(dst []byte) []byte {
	return MarshalRLPTo(t.MarshalRLPWith, dst)
}

var bigZero = new(big.Int)

func newBigInt(arena *fastrlp.Arena, b *big.Int) *fastrlp.Value {
	if b == nil {
		b = bigZero
	}

	return arena.NewBigInt(b)
}

// MarshalRLPWith marshals the transaction to RLP with the given arena
func (t *Transaction) MarshalRLPWith(arena *fastrlp.Arena) *fastrlp.Value {
	vv := arena.NewArray()

	vv.Set(arena.NewUint(t.Nonce))
	vv.Set(newBigInt(arena, t.GasPrice))
	vv.Set(arena.NewUint(t.Gas))

	// Address may be empty for contract creation
	if t.To != nil {
		vv.Set(arena.NewBytes(t.To.Bytes()))
	} else {
		vv.Set(arena.NewNull())
	}

	vv.Set(newBigInt(arena, t.Value))
	vv.Set(arena.NewCopyBytes(t.Input))

	// signature values; zero for unsigned transactions
	vv.Set(newBigInt(arena, t.V))
	vv.Set(newBigInt(arena, t.R))
	vv.Set(newBigInt(arena, t.S))

	// the explicit sender rides along so that unsigned transactions
	// round-trip through storage
	vv.Set(arena.NewBytes(t.From.Bytes()))

	return vv
}

// Receipts

func (r *Receipts) MarshalRLPTo(dst []byte) []byte {
	return MarshalRLPTo(r.MarshalRLPWith, dst)
}

func (r *Receipts) MarshalRLPWith(ar *fastrlp.Arena) *fastrlp.Value {
	if len(*r) == 0 {
		return ar.NewNullArray()
	}

	vv := ar.NewArray()
	for _, rr := range *r {
		vv.Set(rr.MarshalRLPWith(ar))
	}

	return vv
}

func (r *Receipt) MarshalRLP() []byte {
	return r.MarshalRLPTo(nil)
}

func (r *Receipt) MarshalRLPTo(dst []byte) []byte {
	return MarshalRLPTo(r.MarshalRLPWith, dst)
}

func (r *Receipt) MarshalRLPWith(ar *fastrlp.Arena) *fastrlp.Value {
	vv := ar.NewArray()

	vv.Set(ar.NewBytes(r.TxHash.Bytes()))
	vv.Set(ar.NewBytes(r.BlockHash.Bytes()))
	vv.Set(ar.NewUint(r.BlockNumber))
	vv.Set(ar.NewUint(r.TxIndex))
	vv.Set(ar.NewBytes(r.From.Bytes()))

	if r.To != nil {
		vv.Set(ar.NewBytes(r.To.Bytes()))
	} else {
		vv.Set(ar.NewNull())
	}

	if r.ContractAddress != nil {
		vv.Set(ar.NewBytes(r.ContractAddress.Bytes()))
	} else {
		vv.Set(ar.NewNull())
	}

	vv.Set(ar.NewUint(r.GasUsed))
	vv.Set(ar.NewUint(r.CumulativeGasUsed))
	vv.Set(ar.NewUint(uint64(r.Status)))
	vv.Set(ar.NewBytes(r.LogsBloom[:]))
	vv.Set(r.MarshalLogsWith(ar))

	return vv
}

// MarshalLogsWith marshals the logs of the receipt to RLP with the given arena
func (r *Receipt) MarshalLogsWith(ar *fastrlp.Arena) *fastrlp.Value {
	if len(r.Logs) == 0 {
		return ar.NewNullArray()
	}

	logs := ar.NewArray()
	for _, l := range r.Logs {
		logs.Set(l.MarshalRLPWith(ar))
	}

	return logs
}

func (l *Log) MarshalRLPWith(ar *fastrlp.Arena) *fastrlp.Value {
	v := ar.NewArray()
	v.Set(ar.NewBytes(l.Address.Bytes()))

	topics := ar.NewArray()
	for _, t := range l.Topics {
		topics.Set(ar.NewBytes(t.Bytes()))
	}

	v.Set(topics)
	v.Set(ar.NewCopyBytes(l.Data))
	v.Set(ar.NewUint(l.BlockNumber))
	v.Set(ar.NewUint(l.TxIndex))
	v.Set(ar.NewUint(l.LogIndex))
	v.Set(ar.NewBytes(l.TxHash.Bytes()))
	v.Set(ar.NewBytes(l.BlockHash.Bytes()))

	return v
}

func keccakRlp(obj marshalRLPFunc) Hash {
	ar := marshalArenaPool.Get()
	defer marshalArenaPool.Put(ar)

	return rlpHashValue(obj(ar))
}
