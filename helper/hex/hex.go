package hex

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const hexPrefix = "0x"

// DecodeError is returned when the given input cannot be parsed as hex
type DecodeError struct {
	input string
	err   error
}

func (d *DecodeError) Error() string {
	return fmt.Sprintf("could not decode hex input %q: %v", d.input, d.err)
}

// EncodeToString is the hex.EncodeToString passthrough
func EncodeToString(str []byte) string {
	return hex.EncodeToString(str)
}

// DecodeString is the hex.DecodeString passthrough
func DecodeString(str string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(str, hexPrefix))
}

// EncodeToHex generates a hex string based on the byte representation, with the '0x' prefix
func EncodeToHex(str []byte) string {
	return hexPrefix + hex.EncodeToString(str)
}

// DecodeHex converts a hex string to a byte array
func DecodeHex(str string) ([]byte, error) {
	str = strings.TrimPrefix(str, hexPrefix)

	if len(str)%2 == 1 {
		str = "0" + str
	}

	buf, err := hex.DecodeString(str)
	if err != nil {
		return nil, &DecodeError{input: str, err: err}
	}

	return buf, nil
}

// MustDecodeHex converts a hex string to a byte array, panics on failure
func MustDecodeHex(str string) []byte {
	buf, err := DecodeHex(str)
	if err != nil {
		panic(err)
	}

	return buf
}

// EncodeUint64 encodes a number as a hex string with the '0x' prefix
// and no leading zeroes
func EncodeUint64(i uint64) string {
	enc := make([]byte, 2, 10)
	copy(enc, hexPrefix)

	return string(strconv.AppendUint(enc, i, 16))
}

// DecodeUint64 decodes a '0x' prefixed hex string into a number
func DecodeUint64(str string) (uint64, error) {
	str = strings.TrimPrefix(str, hexPrefix)

	return strconv.ParseUint(str, 16, 64)
}

// EncodeBig encodes a big.Int as a minimal hex quantity with the '0x' prefix
func EncodeBig(b *big.Int) string {
	if b == nil || b.Sign() == 0 {
		return "0x0"
	}

	return hexPrefix + b.Text(16)
}

// DecodeHexToBig converts a hex number to a big.Int value
func DecodeHexToBig(str string) (*big.Int, error) {
	created, success := new(big.Int).SetString(strings.TrimPrefix(str, hexPrefix), 16)
	if !success {
		return nil, fmt.Errorf("unable to parse the hex value %s", str)
	}

	return created, nil
}
