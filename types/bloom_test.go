package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBloom_Membership(t *testing.T) {
	log := &Log{
		Address: StringToAddress("0x1"),
		Topics: []Hash{
			StringToHash("0xaa"),
			StringToHash("0xbb"),
		},
	}

	receipt := &Receipt{Logs: []*Log{log}}
	bloom := CreateBloom([]*Receipt{receipt})

	assert.True(t, bloom.IsLogInBloom(log))
	assert.True(t, bloom.Contains(log.Address.Bytes()))

	other := &Log{
		Address: StringToAddress("0x999999"),
		Topics:  []Hash{StringToHash("0xcc")},
	}
	assert.False(t, bloom.IsLogInBloom(other))
}

func TestBloom_EmptyMatchesNothing(t *testing.T) {
	var bloom Bloom

	assert.False(t, bloom.Contains([]byte("anything")))
}
