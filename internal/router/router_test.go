package router

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/domsolutions/corehttp/internal/h2conn"
)

func TestClassifyHTTP2Preface(t *testing.T) {
	br := bufio.NewReader(strings.NewReader(h2conn.Preface))
	proto, err := Classify(br, len(h2conn.Preface))
	require.NoError(t, err)
	require.Equal(t, ProtoHTTP2, proto)
}

func TestClassifyHTTP1Method(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("GET / HTTP/1.1\r\n\r\n"))
	proto, err := Classify(br, 16)
	require.NoError(t, err)
	require.Equal(t, ProtoHTTP1, proto)
}

func TestClassifyDefaultsToHTTP1(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("garbage input here"))
	proto, err := Classify(br, 16)
	require.NoError(t, err)
	require.Equal(t, ProtoHTTP1, proto)
}

func TestContainsTokenKeepAlive(t *testing.T) {
	require.True(t, containsToken("keep-alive", "keep-alive"))
	require.True(t, containsToken("Keep-Alive, Upgrade", "keep-alive"))
	require.False(t, containsToken("upgrade", "keep-alive"))
}

func TestKeepAliveHeaderValue(t *testing.T) {
	v := KeepAliveHeaderValue(KeepAliveMeta{TimeoutSeconds: 5, MaxRemaining: 99})
	require.Equal(t, "timeout=5, max=99", v)
}
