package types

import (
	"github.com/minichain-lab/minichain/helper/keccak"
)

const BloomByteLength = 256

// Bloom is a 2048 bit log bloom filter
type Bloom [BloomByteLength]byte

// CreateBloom creates a new bloom filter from a set of receipts
func CreateBloom(receipts []*Receipt) (b Bloom) {
	h := keccak.DefaultKeccakPool.Get()
	defer keccak.DefaultKeccakPool.Put(h)

	for _, receipt := range receipts {
		for _, log := range receipt.Logs {
			b.setEncode(h, log.Address.Bytes())

			for _, topic := range log.Topics {
				b.setEncode(h, topic.Bytes())
			}
		}
	}

	return
}

func (b *Bloom) setEncode(hasher *keccak.Keccak, h []byte) {
	hasher.Reset()
	hasher.Write(h) //nolint:errcheck
	buf := hasher.Sum(nil)

	// take the first 3 pairs of bytes, each pair selects one of 2048 bits
	for i := 0; i < 6; i += 2 {
		bit := (uint(buf[i+1]) + (uint(buf[i]) << 8)) & 2047

		i := 256 - 1 - bit/8
		j := bit % 8
		b[i] |= 1 << j
	}
}

// Contains checks if the byte array has a possible presence in the bloom
// filter
func (b *Bloom) Contains(data []byte) bool {
	hasher := keccak.DefaultKeccakPool.Get()
	defer keccak.DefaultKeccakPool.Put(hasher)

	return b.isByteArrPresent(hasher, data)
}

// IsLogInBloom checks if the log has a possible presence in the bloom filter
func (b *Bloom) IsLogInBloom(log *Log) bool {
	hasher := keccak.DefaultKeccakPool.Get()
	defer keccak.DefaultKeccakPool.Put(hasher)

	// check if the log address is present
	addressPresent := b.isByteArrPresent(hasher, log.Address.Bytes())
	if !addressPresent {
		return false
	}

	// check if all the topics are present
	for _, topic := range log.Topics {
		topicsPresent := b.isByteArrPresent(hasher, topic.Bytes())
		if !topicsPresent {
			return false
		}
	}

	return true
}

// isByteArrPresent checks if the byte array is possibly present in the bloom filter
func (b *Bloom) isByteArrPresent(hasher *keccak.Keccak, data []byte) bool {
	hasher.Reset()
	hasher.Write(data) //nolint:errcheck
	buf := hasher.Sum(nil)

	for i := 0; i < 6; i += 2 {
		bit := (uint(buf[i+1]) + (uint(buf[i]) << 8)) & 2047

		i := 256 - 1 - bit/8
		j := bit % 8

		referenceByte := b[i]

		isSet := int(referenceByte & (1 << (j % 8)))

		if isSet == 0 {
			return false
		}
	}

	return true
}
