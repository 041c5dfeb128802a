package h1

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequestLineAndHeaders(t *testing.T) {
	raw := "GET /a/b?x=1 HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))

	req, err := ParseRequestLineAndHeaders(br)
	require.NoError(t, err)
	require.Equal(t, "GET", req.Method)
	require.Equal(t, "/a/b?x=1", req.Target)
	require.Equal(t, 1, req.Major)
	require.Equal(t, 1, req.Minor)

	host, ok := req.Get("Host")
	require.True(t, ok)
	require.Equal(t, "example.com", host)
}

func TestParseRejectsOversizedRequestLine(t *testing.T) {
	raw := "GET /" + strings.Repeat("a", MaxRequestLineBytes+10) + " HTTP/1.1\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	_, err := ParseRequestLineAndHeaders(br)
	require.ErrorIs(t, err, ErrRequestLineTooLong)
}

func TestParseRejectsInvalidHeaderToken(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nBad Header: x\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	_, err := ParseRequestLineAndHeaders(br)
	require.ErrorIs(t, err, ErrInvalidHeaderToken)
}

func TestDetermineBodyFramingContentLength(t *testing.T) {
	req := &Request{Major: 1, Minor: 1, Headers: []Header{{Name: "Content-Length", Value: "42"}}}
	framing, n, err := DetermineBodyFraming(req, false)
	require.NoError(t, err)
	require.Equal(t, FixedLength, framing)
	require.EqualValues(t, 42, n)
}

func TestDetermineBodyFramingRejectsNegativeLength(t *testing.T) {
	req := &Request{Major: 1, Minor: 1, Headers: []Header{{Name: "Content-Length", Value: "-1"}}}
	_, _, err := DetermineBodyFraming(req, false)
	require.ErrorIs(t, err, ErrInvalidContentLength)
}

func TestChunkedBodyDecoding(t *testing.T) {
	raw := "4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	r, err := BodyReader(br, Chunked, 0, 1024)
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "Wikipedia", string(body))
}

func TestChunkedBodyEnforcesMaxBody(t *testing.T) {
	raw := "a\r\n0123456789\r\n0\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	r, err := BodyReader(br, Chunked, 0, 5)
	require.NoError(t, err)

	_, err = io.ReadAll(r)
	require.ErrorIs(t, err, ErrBodyTooLarge)
}
