package crypto

import (
	"math/big"

	"github.com/minichain-lab/minichain/helper/keccak"
	"github.com/minichain-lab/minichain/types"
	"github.com/umbracle/fastrlp"
)

// TxSigner recovers transaction senders
type TxSigner interface {
	// Hash computes the hash the sender signed
	Hash(tx *types.Transaction) types.Hash

	// Sender recovers the sender of the transaction
	Sender(tx *types.Transaction) (types.Address, error)
}

var signerArenaPool fastrlp.ArenaPool

// FrontierSigner implements the homestead signature scheme without replay
// protection
type FrontierSigner struct{}

func (f *FrontierSigner) Hash(tx *types.Transaction) (h types.Hash) {
	ar := signerArenaPool.Get()
	hash := keccak.DefaultKeccakPool.Get()

	defer func() {
		keccak.DefaultKeccakPool.Put(hash)
		signerArenaPool.Put(ar)
	}()

	v := ar.NewArray()
	v.Set(ar.NewUint(tx.Nonce))
	v.Set(ar.NewBigInt(tx.GasPrice))
	v.Set(ar.NewUint(tx.Gas))

	if tx.To == nil {
		v.Set(ar.NewNull())
	} else {
		v.Set(ar.NewCopyBytes((*tx.To).Bytes()))
	}

	v.Set(ar.NewBigInt(tx.Value))
	v.Set(ar.NewCopyBytes(tx.Input))

	hash.WriteRlp(h[:0], v)

	return h
}

func (f *FrontierSigner) Sender(tx *types.Transaction) (types.Address, error) {
	refV := big.NewInt(0)
	if tx.V != nil {
		refV.SetBytes(tx.V.Bytes())
	}

	refV.Sub(refV, big.NewInt(27))

	sig, err := encodeSignature(tx.R, tx.S, byte(refV.Int64()))
	if err != nil {
		return types.Address{}, err
	}

	pub, err := RecoverPubkey(sig, f.Hash(tx).Bytes())
	if err != nil {
		return types.Address{}, err
	}

	return PubKeyToAddress(pub), nil
}

// EIP155Signer implements replay-protected signatures (EIP-155)
type EIP155Signer struct {
	chainID uint64
}

// NewEIP155Signer returns a signer bound to the given chain id
func NewEIP155Signer(chainID uint64) *EIP155Signer {
	return &EIP155Signer{chainID: chainID}
}

func (e *EIP155Signer) Hash(tx *types.Transaction) (h types.Hash) {
	ar := signerArenaPool.Get()
	hash := keccak.DefaultKeccakPool.Get()

	defer func() {
		keccak.DefaultKeccakPool.Put(hash)
		signerArenaPool.Put(ar)
	}()

	v := ar.NewArray()
	v.Set(ar.NewUint(tx.Nonce))
	v.Set(ar.NewBigInt(tx.GasPrice))
	v.Set(ar.NewUint(tx.Gas))

	if tx.To == nil {
		v.Set(ar.NewNull())
	} else {
		v.Set(ar.NewCopyBytes((*tx.To).Bytes()))
	}

	v.Set(ar.NewBigInt(tx.Value))
	v.Set(ar.NewCopyBytes(tx.Input))

	// EIP-155 replay protection fields
	v.Set(ar.NewUint(e.chainID))
	v.Set(ar.NewUint(0))
	v.Set(ar.NewUint(0))

	hash.WriteRlp(h[:0], v)

	return h
}

func (e *EIP155Signer) Sender(tx *types.Transaction) (types.Address, error) {
	protected := true

	// legacy signatures (V of 27/28) are still accepted
	if vv := tx.V.Uint64(); bitLen(tx.V) <= 8 && (vv == 27 || vv == 28) {
		protected = false
	}

	if !protected {
		return (&FrontierSigner{}).Sender(tx)
	}

	v := new(big.Int).Sub(tx.V, big.NewInt(int64(e.chainID*2)))
	v.Sub(v, big.NewInt(35))

	sig, err := encodeSignature(tx.R, tx.S, byte(v.Int64()))
	if err != nil {
		return types.Address{}, err
	}

	pub, err := RecoverPubkey(sig, e.Hash(tx).Bytes())
	if err != nil {
		return types.Address{}, err
	}

	return PubKeyToAddress(pub), nil
}

func encodeSignature(r, s *big.Int, v byte) ([]byte, error) {
	if !ValidateSignatureValues(v, r, s) {
		return nil, ErrInvalidSignature
	}

	sig := make([]byte, 65)
	copy(sig[32-len(r.Bytes()):32], r.Bytes())
	copy(sig[64-len(s.Bytes()):64], s.Bytes())
	sig[64] = v

	return sig, nil
}

func bitLen(b *big.Int) int {
	if b == nil {
		return 0
	}

	return b.BitLen()
}
