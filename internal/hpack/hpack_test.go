package hpack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder()

	fields := []HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/a/b/c"},
		{Name: "x-custom", Value: "some-value-that-is-not-static"},
	}

	var block []byte
	for _, f := range fields {
		block = enc.EncodeField(block, f)
	}

	got, err := dec.DecodeBlock(block)
	require.NoError(t, err)
	require.Equal(t, fields, got)
}

func TestDynamicTableReuseShrinksEncoding(t *testing.T) {
	enc := NewEncoder()

	first := enc.EncodeField(nil, HeaderField{Name: ":authority", Value: "api.example.com"})
	first = enc.EncodeField(first, HeaderField{Name: ":path", Value: "/a"})

	second := enc.EncodeField(nil, HeaderField{Name: ":authority", Value: "api.example.com"})
	second = enc.EncodeField(second, HeaderField{Name: ":path", Value: "/b"})

	require.LessOrEqual(t, len(second), len(first))
}

func TestDecoderRejectsOversizedTableUpdate(t *testing.T) {
	dec := NewDecoder()
	dec.SetNegotiatedMaxSize(100)

	block := appendInt(nil, 5, patternTableSizeUpd, 200)
	_, err := dec.DecodeBlock(block)
	require.ErrorIs(t, err, ErrTableSizeExceeded)
}

func TestDecoderRejectsOutOfRangeIndex(t *testing.T) {
	dec := NewDecoder()
	block := appendInt(nil, 7, maskIndexed, 9999)
	_, err := dec.DecodeBlock(block)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestHuffmanRoundTrip(t *testing.T) {
	s := "www.example.com/some/path?query=value&other=1"
	enc := huffmanEncode(nil, []byte(s))
	dec, err := huffmanDecode(nil, enc)
	require.NoError(t, err)
	require.Equal(t, s, string(dec))
}

func TestIntegerCodec(t *testing.T) {
	for _, v := range []uint64{0, 1, 30, 31, 127, 128, 1000000} {
		for _, n := range []uint8{1, 4, 5, 6, 7, 8} {
			buf := appendInt(nil, n, 0, v)
			got, rest, err := readInt(n, buf)
			require.NoError(t, err)
			require.Empty(t, rest)
			require.Equal(t, v, got)
		}
	}
}
