package hex

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeUint64(t *testing.T) {
	// quantities are minimal hex without leading zeroes
	assert.Equal(t, "0x0", EncodeUint64(0))
	assert.Equal(t, "0x1", EncodeUint64(1))
	assert.Equal(t, "0xc350", EncodeUint64(50000))
}

func TestDecodeUint64(t *testing.T) {
	v, err := DecodeUint64("0xc350")
	assert.NoError(t, err)
	assert.Equal(t, uint64(50000), v)

	_, err = DecodeUint64("0xzz")
	assert.Error(t, err)
}

func TestEncodeBig(t *testing.T) {
	assert.Equal(t, "0x0", EncodeBig(nil))
	assert.Equal(t, "0x0", EncodeBig(big.NewInt(0)))
	assert.Equal(t, "0xde0b6b3a7640000", EncodeBig(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)))
}

func TestDecodeHex_OddLength(t *testing.T) {
	buf, err := DecodeHex("0x123")
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x1, 0x23}, buf)
}

func TestEncodeToHex(t *testing.T) {
	assert.Equal(t, "0x0102", EncodeToHex([]byte{0x1, 0x2}))
	assert.Equal(t, "0x", EncodeToHex(nil))
}
