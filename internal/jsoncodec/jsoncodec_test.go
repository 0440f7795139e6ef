package jsoncodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestEncodeAndDecode(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, Encode(buf, payload{ID: 7, Name: "kick"}))
	assert.Equal(t, byte('\n'), buf.Bytes()[buf.Len()-1])

	var out payload
	require.NoError(t, Decode(buf, &out))
	assert.Equal(t, payload{ID: 7, Name: "kick"}, out)
}

func TestDecodeValue(t *testing.T) {
	v, err := DecodeValue([]byte("  \n"))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = DecodeValue([]byte(`{"name":"kick","n":2}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "kick", "n": float64(2)}, v)

	_, err = DecodeValue([]byte(`{"name":`))
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	var out payload
	require.NoError(t, Convert(map[string]any{"id": 3, "name": "x"}, &out))
	assert.Equal(t, payload{ID: 3, Name: "x"}, out)
}
