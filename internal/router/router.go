// Package router implements protocol classification and the HTTP/1.1
// keep-alive loop (spec §4.6 ProtocolRouter). It sits directly on the
// accepted net.Conn, peeks the opening bytes to decide HTTP/2 vs HTTP/1.x,
// then either hands off to internal/h2conn or drives repeated
// internal/h1 parses over the same connection.
//
// Grounded on dgrr-http2's server.go Serve/accept-loop shape, generalized
// from "always HTTP/2" to the spec's three-way classification.
package router

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/domsolutions/corehttp/internal/h1"
	"github.com/domsolutions/corehttp/internal/h2conn"
)

// Protocol identifies which layer should own a connection after peek.
type Protocol int

const (
	ProtoHTTP2 Protocol = iota
	ProtoHTTP1
)

var http1Methods = [][]byte{
	[]byte("GET "), []byte("POST "), []byte("HEAD "), []byte("PUT "),
	[]byte("DELETE "), []byte("OPTIONS "), []byte("PATCH "), []byte("TRACE "),
	[]byte("CONNECT "),
}

// Classify peeks (without consuming) the opening bytes of br and decides
// the protocol. Anything that isn't the HTTP/2 preface or a known HTTP/1
// method token defaults to HTTP/1.1, per spec §4.6, letting H1Parser
// produce the eventual 400.
func Classify(br *bufio.Reader, peekLen int) (Protocol, error) {
	peek, err := br.Peek(peekLen)
	if err != nil && len(peek) == 0 {
		return ProtoHTTP1, err
	}

	if len(peek) >= len(h2conn.Preface) && string(peek[:len(h2conn.Preface)]) == h2conn.Preface {
		return ProtoHTTP2, nil
	}
	for _, m := range http1Methods {
		if len(peek) >= len(m) && bytesEqual(peek[:len(m)], m) {
			return ProtoHTTP1, nil
		}
	}
	return ProtoHTTP1, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// KeepAliveConfig carries the negotiable HTTP/1.1 keep-alive knobs of
// spec §4.6/§6.
type KeepAliveConfig struct {
	Enabled     bool
	Timeout     time.Duration
	MaxRequests int
}

func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{Enabled: true, Timeout: 5 * time.Second, MaxRequests: 100}
}

// H1Handler processes one fully-parsed HTTP/1.x request and writes a
// response. It returns false when the connection must close regardless of
// keep-alive negotiation (e.g. a framing error it could not recover from).
type H1Handler func(ctx context.Context, req *h1.Request, body []byte, conn net.Conn, keepAlive bool, remaining KeepAliveMeta) bool

// KeepAliveMeta is the advertised remaining keep-alive budget for the
// response about to be written.
type KeepAliveMeta struct {
	TimeoutSeconds int
	MaxRemaining   int
}

// ServeHTTP1 drives the keep-alive loop for one HTTP/1.x connection per
// spec §4.6: honor Connection/Keep-Alive negotiation, the request-count
// budget, and the per-request read timeout.
func ServeHTTP1(ctx context.Context, conn net.Conn, br *bufio.Reader, cfg KeepAliveConfig, handler H1Handler, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	requestCount := 0

	for {
		if cfg.Enabled && cfg.Timeout > 0 {
			conn.SetReadDeadline(time.Now().Add(cfg.Timeout))
		}

		req, err := h1.ParseRequestLineAndHeaders(br)
		if err != nil {
			logger.Debug("h1 parse failed", zap.Error(err))
			return
		}
		requestCount++

		keepAlive := cfg.Enabled && wantsKeepAlive(req) && requestCount <= cfg.MaxRequests
		meta := KeepAliveMeta{
			TimeoutSeconds: int(cfg.Timeout / time.Second),
			MaxRemaining:   cfg.MaxRequests - requestCount,
		}

		cont := handler(ctx, req, nil, conn, keepAlive, meta)
		if !cont || !keepAlive {
			return
		}
	}
}

func wantsKeepAlive(req *h1.Request) bool {
	conn, hasConn := req.Get("Connection")
	if req.Minor == 1 {
		return !hasConn || !containsToken(conn, "close")
	}
	return hasConn && containsToken(conn, "keep-alive")
}

func containsToken(header, token string) bool {
	for _, part := range splitComma(header) {
		if equalFoldTrim(part, token) {
			return true
		}
	}
	return false
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func equalFoldTrim(a, token string) bool {
	i, j := 0, len(a)
	for i < j && (a[i] == ' ' || a[i] == '\t') {
		i++
	}
	for i < j && (a[j-1] == ' ' || a[j-1] == '\t') {
		j--
	}
	a = a[i:j]
	if len(a) != len(token) {
		return false
	}
	for k := 0; k < len(a); k++ {
		ca, cb := a[k], token[k]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// KeepAliveHeaderValue formats the advertised budget for a response, per
// spec §4.6: "Keep-Alive: timeout=T, max=M".
func KeepAliveHeaderValue(meta KeepAliveMeta) string {
	return "timeout=" + strconv.Itoa(meta.TimeoutSeconds) + ", max=" + strconv.Itoa(meta.MaxRemaining)
}
