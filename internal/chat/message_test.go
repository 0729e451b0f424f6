package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEncodeUsesNumericTags(t *testing.T) {
	data, err := Encode(NewNameNotice("Alice"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, msgpack.Unmarshal(data, &raw))
	assert.EqualValues(t, 0, raw["type"])
	assert.Equal(t, "Alice", raw["name"])

	data, err = Encode(NewChatMessage("hello"))
	require.NoError(t, err)

	raw = nil
	require.NoError(t, msgpack.Unmarshal(data, &raw))
	assert.EqualValues(t, 1, raw["type"])
	assert.Equal(t, "hello", raw["message"])
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	data, err := msgpack.Marshal(map[string]any{"type": 7})
	require.NoError(t, err)

	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte{0xc1})
	assert.Error(t, err)
}
