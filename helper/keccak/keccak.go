package keccak

import (
	"hash"

	"github.com/umbracle/fastrlp"
	"golang.org/x/crypto/sha3"
)

// Keccak is a wrapper around the sha3 keccak-256 hasher that allows
// the hash state to be reused between calls
type Keccak struct {
	buf  []byte // buffer to store intermediate rlp marshal values
	tmp  []byte
	hash hash.Hash
}

// WriteRlp writes an RLP value into the hasher and appends the digest to dst
func (k *Keccak) WriteRlp(dst []byte, v *fastrlp.Value) []byte {
	k.buf = v.MarshalTo(k.buf[:0])
	k.Write(k.buf)

	return k.Sum(dst)
}

// Write implements the hash interface
func (k *Keccak) Write(b []byte) (int, error) {
	return k.hash.Write(b)
}

// Sum appends the current digest to dst
func (k *Keccak) Sum(dst []byte) []byte {
	k.tmp = k.hash.Sum(k.tmp[:0])
	dst = append(dst, k.tmp...)

	return dst
}

// Reset resets the hash state
func (k *Keccak) Reset() {
	k.buf = k.buf[:0]
	k.tmp = k.tmp[:0]
	k.hash.Reset()
}

func newKeccak256() *Keccak {
	return &Keccak{
		hash: sha3.NewLegacyKeccak256(),
	}
}

// Keccak256 hashes src with keccak-256 and appends the digest to dst
func Keccak256(dst, src []byte) []byte {
	k := DefaultKeccakPool.Get()
	k.Write(src) //nolint:errcheck
	dst = k.Sum(dst)
	DefaultKeccakPool.Put(k)

	return dst
}
