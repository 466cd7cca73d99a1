package crypto

import (
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/minichain-lab/minichain/helper/keccak"
	"github.com/minichain-lab/minichain/types"
	"github.com/umbracle/fastrlp"
)

// S256 is the secp256k1 elliptic curve
var S256 = btcec.S256()

var (
	secp256k1N     = new(big.Int).SetBytes(types.StringToBytes("0xfffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"))
	secp256k1NHalf = new(big.Int).Div(secp256k1N, big.NewInt(2))

	// ErrInvalidSignature is returned when a signature fails the range check
	ErrInvalidSignature = errors.New("invalid signature")
)

// Keccak256 calculates the Keccak256 digest
func Keccak256(v ...[]byte) []byte {
	h := keccak.DefaultKeccakPool.Get()
	defer keccak.DefaultKeccakPool.Put(h)

	for _, i := range v {
		h.Write(i) //nolint:errcheck
	}

	return h.Sum(nil)
}

// Keccak256Hash calculates the Keccak256 digest as a Hash
func Keccak256Hash(v ...[]byte) types.Hash {
	return types.BytesToHash(Keccak256(v...))
}

// ValidateSignatureValues checks if the signature values are correct
func ValidateSignatureValues(v byte, r, s *big.Int) bool {
	if r == nil || s == nil {
		return false
	}

	if v > 1 {
		return false
	}

	if r.Sign() < 1 || s.Sign() < 1 {
		return false
	}

	// reject malleable signatures in the upper half of the curve order
	if s.Cmp(secp256k1NHalf) > 0 {
		return false
	}

	return r.Cmp(secp256k1N) < 0 && s.Cmp(secp256k1N) < 0
}

// RecoverPubkey verifies the compact signature "signature" of "hash" for the
// secp256k1 curve, returning the uncompressed public key
func RecoverPubkey(signature, hash []byte) ([]byte, error) {
	if len(signature) != 65 {
		return nil, ErrInvalidSignature
	}

	// btcec expects the recovery flag in the header byte
	compact := make([]byte, 65)
	compact[0] = signature[64] + 27
	copy(compact[1:], signature[:64])

	pub, _, err := btcecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, err
	}

	return pub.SerializeUncompressed(), nil
}

// PubKeyToAddress returns the address of the uncompressed public key
func PubKeyToAddress(pub []byte) types.Address {
	// drop the 0x04 uncompressed point marker
	buf := Keccak256(pub[1:])

	return types.BytesToAddress(buf[12:])
}

var createArenaPool fastrlp.ArenaPool

// CreateAddress computes the address of a contract created with CREATE:
// keccak256(rlp([sender, nonce]))[12:]
func CreateAddress(addr types.Address, nonce uint64) types.Address {
	ar := createArenaPool.Get()
	defer createArenaPool.Put(ar)

	v := ar.NewArray()
	v.Set(ar.NewBytes(addr.Bytes()))
	v.Set(ar.NewUint(nonce))

	dst := v.MarshalTo(nil)
	dst = Keccak256(dst)

	return types.BytesToAddress(dst[12:])
}

// CreateAddress2 computes the address of a contract created with CREATE2:
// keccak256(0xff || sender || salt || keccak256(initcode))[12:]
func CreateAddress2(addr types.Address, salt [32]byte, inithash []byte) types.Address {
	return types.BytesToAddress(
		Keccak256([]byte{0xff}, addr.Bytes(), salt[:], inithash)[12:],
	)
}
