package crypto

import (
	"testing"

	"github.com/minichain-lab/minichain/types"
	"github.com/stretchr/testify/assert"
)

func TestKeccak256(t *testing.T) {
	// keccak-256 of the empty input
	assert.Equal(t,
		types.EmptyCodeHash,
		Keccak256Hash(nil),
	)

	assert.Equal(t,
		types.StringToHash("0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"),
		Keccak256Hash([]byte("abc")),
	)
}

func TestCreateAddress(t *testing.T) {
	sender := types.StringToAddress("0x970e8128ab834e8eac17ab8e3812f010678cf791")

	assert.Equal(t,
		types.StringToAddress("0x333c3310824b7c685133f2bedb2ca4b8b4df633d"),
		CreateAddress(sender, 0),
	)

	assert.Equal(t,
		types.StringToAddress("0x8bda78331c916a08481428e4b07c96d3e916d165"),
		CreateAddress(sender, 1),
	)
}

func TestCreateAddress2(t *testing.T) {
	// EIP-1014 example 1: address 0x0, salt 0x0, init code 0x00
	assert.Equal(t,
		types.StringToAddress("0x4D1A2e2bB4F88F0250f26Ffff098B0b30B26BF38"),
		CreateAddress2(
			types.StringToAddress("0x0000000000000000000000000000000000000000"),
			[32]byte{},
			Keccak256([]byte{0x00}),
		),
	)
}

func TestValidateSignatureValues(t *testing.T) {
	assert.False(t, ValidateSignatureValues(0, nil, nil))
	assert.False(t, ValidateSignatureValues(4, secp256k1N, secp256k1N))
}
