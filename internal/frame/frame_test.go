package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	c := NewCodec()

	cases := []*Frame{
		NewData(1, []byte("hello"), true),
		NewHeaders(3, []byte{0x82, 0x86}, true, true),
		NewWindowUpdate(0, 65535),
		NewPing([]byte("12345678"), false),
		NewGoAway(7, 1, []byte("boom")),
		NewRSTStream(5, 8),
		NewSettings(nil, true),
	}

	for _, want := range cases {
		buf := c.Encode(nil, want)
		got, n, ok := c.Parse(buf)
		require.True(t, ok)
		require.Equal(t, len(buf), n)
		require.Equal(t, want.Type, got.Type)
		require.Equal(t, want.Flags, got.Flags)
		require.Equal(t, want.Stream, got.Stream)
		require.Equal(t, want.Payload, got.Payload)
		Release(got)
		Release(want)
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	c := NewCodec()
	buf := make([]byte, HeaderSize)
	buf[3] = 0xFF // unknown type
	_, _, ok := c.Parse(buf)
	require.False(t, ok)
}

func TestParseRejectsShortBuffer(t *testing.T) {
	c := NewCodec()
	_, _, ok := c.Parse(make([]byte, HeaderSize-1))
	require.False(t, ok)
}

func TestParseRejectsOversizedLength(t *testing.T) {
	c := NewCodec()
	c.MaxPayload = 16
	fr := NewData(1, make([]byte, 32), false)
	buf := c.Encode(nil, fr)
	_, _, ok := c.Parse(buf)
	require.False(t, ok)
}

func TestParseIncompleteFrameLeavesBufferUnconsumed(t *testing.T) {
	c := NewCodec()
	fr := NewData(1, []byte("abcdef"), false)
	buf := c.Encode(nil, fr)
	_, _, ok := c.Parse(buf[:len(buf)-1])
	require.False(t, ok)
}
