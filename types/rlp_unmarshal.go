package types

import (
	"fmt"
	"math/big"

	"github.com/minichain-lab/minichain/helper/keccak"
	"github.com/umbracle/fastrlp"
)

var unmarshalParserPool fastrlp.ParserPool

type RLPUnmarshaler interface {
	UnmarshalRLP(input []byte) error
}

type unmarshalRLPFunc func(p *fastrlp.Parser, v *fastrlp.Value) error

func UnmarshalRlp(obj unmarshalRLPFunc, input []byte) error {
	pr := unmarshalParserPool.Get()

	v, err := pr.Parse(input)
	if err != nil {
		unmarshalParserPool.Put(pr)

		return err
	}

	err = obj(pr, v)
	unmarshalParserPool.Put(pr)

	return err
}

func rlpHashValue(v *fastrlp.Value) (h Hash) {
	hash := keccak.DefaultKeccakPool.Get()
	hash.WriteRlp(h[:0], v)
	keccak.DefaultKeccakPool.Put(hash)

	return h
}

// Header

func (h *Header) UnmarshalRLP(input []byte) error {
	return UnmarshalRlp(h.UnmarshalRLPFrom, input)
}

func (h *Header) UnmarshalRLPFrom(p *fastrlp.Parser, v *fastrlp.Value) error {
	elems, err := v.GetElems()
	if err != nil {
		return err
	}

	if len(elems) < 8 {
		return fmt.Errorf("incorrect number of elements to decode header, expected 8 but found %d", len(elems))
	}

	if err = elems[0].GetHash(h.ParentHash[:]); err != nil {
		return err
	}

	if err = elems[1].GetAddr(h.Miner[:]); err != nil {
		return err
	}

	if err = elems[2].GetHash(h.StateRoot[:]); err != nil {
		return err
	}

	if _, err = elems[3].GetBytes(h.LogsBloom[:0], 256); err != nil {
		return err
	}

	if h.Number, err = elems[4].GetUint64(); err != nil {
		return err
	}

	if h.GasLimit, err = elems[5].GetUint64(); err != nil {
		return err
	}

	if h.GasUsed, err = elems[6].GetUint64(); err != nil {
		return err
	}

	if h.Timestamp, err = elems[7].GetUint64(); err != nil {
		return err
	}

	h.Hash = rlpHashValue(v)

	return nil
}

// Block

func (b *Block) UnmarshalRLP(input []byte) error {
	return UnmarshalRlp(b.UnmarshalRLPFrom, input)
}

func (b *Block) UnmarshalRLPFrom(p *fastrlp.Parser, v *fastrlp.Value) error {
	elems, err := v.GetElems()
	if err != nil {
		return err
	}

	if len(elems) < 2 {
		return fmt.Errorf("incorrect number of elements to decode block, expected 2 but found %d", len(elems))
	}

	b.Header = new(Header)
	if err = b.Header.UnmarshalRLPFrom(p, elems[0]); err != nil {
		return err
	}

	txns, err := elems[1].GetElems()
	if err != nil {
		return err
	}

	for _, txn := range txns {
		bTxn := new(Transaction)
		if err = bTxn.UnmarshalRLPFrom(p, txn); err != nil {
			return err
		}

		b.Transactions = append(b.Transactions, bTxn)
	}

	return nil
}

// Body

func (b *Body) UnmarshalRLP(input []byte) error {
	return UnmarshalRlp(b.UnmarshalRLPFrom, input)
}

func (b *Body) UnmarshalRLPFrom(p *fastrlp.Parser, v *fastrlp.Value) error {
	txns, err := v.GetElems()
	if err != nil {
		return err
	}

	for _, txn := range txns {
		bTxn := new(Transaction)
		if err = bTxn.UnmarshalRLPFrom(p, txn); err != nil {
			return err
		}

		b.Transactions = append(b.Transactions, bTxn)
	}

	return nil
}

// Transaction

func (t *Transaction) UnmarshalRLP(input []byte) error {
	return UnmarshalRlp(t.UnmarshalRLPFrom, input)
}

func (t *Transaction) UnmarshalRLPFrom(p *fastrlp.Parser, v *fastrlp.Value) error {
	elems, err := v.GetElems()
	if err != nil {
		return err
	}

	if len(elems) < 9 {
		return fmt.Errorf("incorrect number of elements to decode transaction, expected at least 9 but found %d",
			len(elems))
	}

	// nonce
	if t.Nonce, err = elems[0].GetUint64(); err != nil {
		return err
	}

	// gasPrice
	t.GasPrice = new(big.Int)
	if err = elems[1].GetBigInt(t.GasPrice); err != nil {
		return err
	}

	// gas
	if t.Gas, err = elems[2].GetUint64(); err != nil {
		return err
	}

	// to
	if vv, _ := v.Get(3).Bytes(); len(vv) == AddressLength {
		addr := BytesToAddress(vv)
		t.To = &addr
	} else {
		// contract creation
		t.To = nil
	}

	// value
	t.Value = new(big.Int)
	if err = elems[4].GetBigInt(t.Value); err != nil {
		return err
	}

	// input
	if t.Input, err = elems[5].GetBytes(t.Input[:0]); err != nil {
		return err
	}

	// V, R, S
	t.V = new(big.Int)
	if err = elems[6].GetBigInt(t.V); err != nil {
		return err
	}

	t.R = new(big.Int)
	if err = elems[7].GetBigInt(t.R); err != nil {
		return err
	}

	t.S = new(big.Int)
	if err = elems[8].GetBigInt(t.S); err != nil {
		return err
	}

	if t.V.Sign() == 0 && t.R.Sign() == 0 && t.S.Sign() == 0 {
		t.V, t.R, t.S = nil, nil, nil
	}

	// explicit sender
	if len(elems) > 9 {
		if err = elems[9].GetAddr(t.From[:]); err != nil {
			return err
		}
	}

	return nil
}

// Receipts

func (r *Receipts) UnmarshalRLP(input []byte) error {
	return UnmarshalRlp(r.UnmarshalRLPFrom, input)
}

func (r *Receipts) UnmarshalRLPFrom(p *fastrlp.Parser, v *fastrlp.Value) error {
	elems, err := v.GetElems()
	if err != nil {
		return err
	}

	for _, elem := range elems {
		rr := new(Receipt)
		if err = rr.UnmarshalRLPFrom(p, elem); err != nil {
			return err
		}

		*r = append(*r, rr)
	}

	return nil
}

func (r *Receipt) UnmarshalRLP(input []byte) error {
	return UnmarshalRlp(r.UnmarshalRLPFrom, input)
}

func (r *Receipt) UnmarshalRLPFrom(p *fastrlp.Parser, v *fastrlp.Value) error {
	elems, err := v.GetElems()
	if err != nil {
		return err
	}

	if len(elems) < 12 {
		return fmt.Errorf("incorrect number of elements to decode receipt, expected 12 but found %d", len(elems))
	}

	if err = elems[0].GetHash(r.TxHash[:]); err != nil {
		return err
	}

	if err = elems[1].GetHash(r.BlockHash[:]); err != nil {
		return err
	}

	if r.BlockNumber, err = elems[2].GetUint64(); err != nil {
		return err
	}

	if r.TxIndex, err = elems[3].GetUint64(); err != nil {
		return err
	}

	if err = elems[4].GetAddr(r.From[:]); err != nil {
		return err
	}

	if vv, _ := elems[5].Bytes(); len(vv) == AddressLength {
		addr := BytesToAddress(vv)
		r.To = &addr
	}

	if vv, _ := elems[6].Bytes(); len(vv) == AddressLength {
		addr := BytesToAddress(vv)
		r.ContractAddress = &addr
	}

	if r.GasUsed, err = elems[7].GetUint64(); err != nil {
		return err
	}

	if r.CumulativeGasUsed, err = elems[8].GetUint64(); err != nil {
		return err
	}

	var status uint64
	if status, err = elems[9].GetUint64(); err != nil {
		return err
	}

	r.Status = ReceiptStatus(status)

	if _, err = elems[10].GetBytes(r.LogsBloom[:0], 256); err != nil {
		return err
	}

	// logs
	logsElems, err := elems[11].GetElems()
	if err != nil {
		return err
	}

	for _, elem := range logsElems {
		log := new(Log)
		if err = log.UnmarshalRLPFrom(p, elem); err != nil {
			return err
		}

		r.Logs = append(r.Logs, log)
	}

	return nil
}

func (l *Log) UnmarshalRLPFrom(p *fastrlp.Parser, v *fastrlp.Value) error {
	elems, err := v.GetElems()
	if err != nil {
		return err
	}

	if len(elems) < 8 {
		return fmt.Errorf("incorrect number of elements to decode log, expected 8 but found %d", len(elems))
	}

	if err = elems[0].GetAddr(l.Address[:]); err != nil {
		return err
	}

	topicElems, err := elems[1].GetElems()
	if err != nil {
		return err
	}

	l.Topics = make([]Hash, len(topicElems))

	for indx, topic := range topicElems {
		if err = topic.GetHash(l.Topics[indx][:]); err != nil {
			return err
		}
	}

	if l.Data, err = elems[2].GetBytes(l.Data[:0]); err != nil {
		return err
	}

	if l.BlockNumber, err = elems[3].GetUint64(); err != nil {
		return err
	}

	if l.TxIndex, err = elems[4].GetUint64(); err != nil {
		return err
	}

	if l.LogIndex, err = elems[5].GetUint64(); err != nil {
		return err
	}

	if err = elems[6].GetHash(l.TxHash[:]); err != nil {
		return err
	}

	if err = elems[7].GetHash(l.BlockHash[:]); err != nil {
		return err
	}

	return nil
}
