package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshal_ArrayMessage(t *testing.T) {
	m := ArrayMessage{Values: []string{CmdSet, "key", "value"}}

	data, err := Marshal(m)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestMarshalUnmarshal_ErrorMessage(t *testing.T) {
	m := ErrorMessage{Err: "boom"}

	data, err := Marshal(m)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestMarshalUnmarshal_ErrorMessageNotFound(t *testing.T) {
	m := ErrorMessage{Err: `key "x" not found`, NotFound: true}

	data, err := Marshal(m)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestMarshal_EmptyArrayRoundTrips(t *testing.T) {
	m := ArrayMessage{Values: []string{}}

	data, err := Marshal(m)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, []string{}, decoded.(ArrayMessage).Values)
}

func TestWriteMessageThenReadMessage(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteMessage(&buf, ArrayMessage{Values: []string{CmdGet, "a"}}))
	require.NoError(t, WriteMessage(&buf, ArrayMessage{Values: []string{"v"}}))

	first, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, ArrayMessage{Values: []string{CmdGet, "a"}}, first)

	second, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, ArrayMessage{Values: []string{"v"}}, second)

	_, err = ReadMessage(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestUnmarshal_UnknownTagIsError(t *testing.T) {
	content, err := cbor.Marshal("anything")
	require.NoError(t, err)

	data, err := cbor.Marshal(envelope{Tag: "z", Content: content})
	require.NoError(t, err)

	_, err = Unmarshal(data)
	assert.Error(t, err)
}
