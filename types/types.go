package types

import (
	"fmt"

	"github.com/minichain-lab/minichain/helper/hex"
	"github.com/minichain-lab/minichain/helper/keccak"
)

const (
	HashLength    = 32
	AddressLength = 20
)

var (
	// ZeroAddress is the default zero address
	ZeroAddress = Address{}

	// ZeroHash is the default zero hash
	ZeroHash = Hash{}

	// EmptyRootHash is the root hash of an empty trie
	EmptyRootHash = StringToHash("0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

	// EmptyCodeHash is the keccak-256 hash of empty code
	EmptyCodeHash = StringToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
)

// Hash is a 32 byte keccak-256 digest, also used as the storage word
type Hash [HashLength]byte

// Address is a 20 byte account identifier
type Address [AddressLength]byte

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return hex.EncodeToHex(h[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) String() string {
	return hex.EncodeToHex(a[:])
}

func StringToHash(str string) Hash {
	return BytesToHash(StringToBytes(str))
}

func StringToAddress(str string) Address {
	return BytesToAddress(StringToBytes(str))
}

// BytesToHash converts b to a hash, left-padding or truncating from the left
func BytesToHash(b []byte) Hash {
	var h Hash

	size := len(b)
	min := min(size, HashLength)

	copy(h[HashLength-min:], b[len(b)-min:])

	return h
}

// BytesToAddress converts b to an address, left-padding or truncating from the left
func BytesToAddress(b []byte) Address {
	var a Address

	size := len(b)
	min := min(size, AddressLength)

	copy(a[AddressLength-min:], b[len(b)-min:])

	return a
}

func min(i, j int) int {
	if i < j {
		return i
	}

	return j
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (h *Hash) UnmarshalText(input []byte) error {
	buf := StringToBytes(string(input))
	if len(buf) != HashLength {
		return fmt.Errorf("incorrect hash length %d", len(buf))
	}

	copy(h[:], buf)

	return nil
}

func (a *Address) UnmarshalText(input []byte) error {
	buf := StringToBytes(string(input))
	if len(buf) != AddressLength {
		return fmt.Errorf("incorrect address length %d", len(buf))
	}

	copy(a[:], buf)

	return nil
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// AddressHash returns the keccak-256 hash of the address, the world trie key
func AddressHash(addr Address) Hash {
	return BytesToHash(keccak.Keccak256(nil, addr.Bytes()))
}
