package record

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalDecodeOne_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		record Record
	}{
		{name: "set", record: Record{Kind: Set, Key: "key", Value: "value"}},
		{name: "remove", record: Record{Kind: Remove, Key: "key"}},
		{name: "empty key and value", record: Record{Kind: Set, Key: "", Value: ""}},
		{name: "unicode key and value", record: Record{Kind: Set, Key: "键", Value: "値"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.record)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			decoded, err := DecodeOne(data)
			require.NoError(t, err)
			assert.Equal(t, tt.record, decoded)
		})
	}
}

func TestMarshal_StableLength(t *testing.T) {
	r := Record{Kind: Set, Key: "a", Value: "1"}

	first, err := Marshal(r)
	require.NoError(t, err)

	second, err := Marshal(r)
	require.NoError(t, err)

	assert.Equal(t, len(first), len(second))
	assert.Equal(t, first, second)
}

func TestDecoder_SequentialRecords(t *testing.T) {
	records := []Record{
		{Kind: Set, Key: "a", Value: "1"},
		{Kind: Set, Key: "b", Value: "2"},
		{Kind: Remove, Key: "a"},
	}

	var buf bytes.Buffer
	for _, r := range records {
		data, err := Marshal(r)
		require.NoError(t, err)
		buf.Write(data)
	}

	dec := NewDecoder(&buf)
	var offset int64
	for i, want := range records {
		got, n, err := dec.Next()
		require.NoErrorf(t, err, "record %d", i)
		assert.Equal(t, want, got)
		assert.Greater(t, n, int64(0))
		offset += n
	}

	// Clean EOF at a record boundary.
	_, _, err := dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_TruncatedRecordIsNotCleanEOF(t *testing.T) {
	data, err := Marshal(Record{Kind: Set, Key: "a", Value: "value"})
	require.NoError(t, err)

	truncated := data[:len(data)-2]
	dec := NewDecoder(bytes.NewReader(truncated))

	_, _, err = dec.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestDecodeOne_EmptyDataIsError(t *testing.T) {
	_, err := DecodeOne(nil)
	assert.Error(t, err)
}
