package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/minichain-lab/minichain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgUint64_RoundTrip(t *testing.T) {
	v := argUint64(50000)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `"0xc350"`, string(out))

	var parsed argUint64

	require.NoError(t, json.Unmarshal(out, &parsed))
	assert.Equal(t, v, parsed)
}

func TestBlockNumber_Tags(t *testing.T) {
	cases := []struct {
		input    string
		expected BlockNumber
	}{
		{`"latest"`, LatestBlockNumber},
		{`"earliest"`, EarliestBlockNumber},
		{`"pending"`, PendingBlockNumber},
		{`"0x10"`, BlockNumber(16)},
	}

	for _, c := range cases {
		var number BlockNumber

		require.NoError(t, json.Unmarshal([]byte(c.input), &number))
		assert.Equal(t, c.expected, number)
	}

	var number BlockNumber

	assert.Error(t, json.Unmarshal([]byte(`"0xzz"`), &number))
}

func TestDecodeAddresses(t *testing.T) {
	single, err := decodeAddresses(json.RawMessage(`"0x0000000000000000000000000000000000000001"`))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, types.StringToAddress("0x1"), single[0])

	multiple, err := decodeAddresses(json.RawMessage(
		`["0x0000000000000000000000000000000000000001","0x0000000000000000000000000000000000000002"]`,
	))
	require.NoError(t, err)
	assert.Len(t, multiple, 2)

	none, err := decodeAddresses(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDecodeTopics(t *testing.T) {
	topicA := "0x00000000000000000000000000000000000000000000000000000000000000aa"
	topicB := "0x00000000000000000000000000000000000000000000000000000000000000bb"

	topics, err := decodeTopics(json.RawMessage(
		`["` + topicA + `",null,["` + topicA + `","` + topicB + `"]]`,
	))
	require.NoError(t, err)
	require.Len(t, topics, 3)

	assert.Len(t, topics[0], 1)
	assert.Nil(t, topics[1])
	assert.Len(t, topics[2], 2)
}
