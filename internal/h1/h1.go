// Package h1 implements an HTTP/1.0 and HTTP/1.1 request-line/header/body
// parser (spec §4.5 H1Parser). It is a pure decode layer: a *bufio.Reader
// goes in, a Request and a body io.Reader come out; keep-alive looping and
// response writing belong to internal/router.
//
// Grounded on dgrr-http2's request.go header-map shape and fasthttp's
// bufio-based line-at-a-time request line parsing style (the teacher pack's
// fasthttp dependency), generalized to the bounded/strict grammar the spec
// requires.
package h1

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"

	"golang.org/x/net/http/httpguts"
)

// Bounds from spec §4.5.
const (
	MaxRequestLineBytes = 8 * 1024
	MaxHeaderBlockBytes = 8 * 1024
)

var (
	ErrRequestLineTooLong = errors.New("h1: request line exceeds 8KB")
	ErrHeaderBlockTooLong = errors.New("h1: header block exceeds 8KB")
	ErrMalformedRequestLine = errors.New("h1: malformed request line")
	ErrUnsupportedVersion  = errors.New("h1: unsupported HTTP version")
	ErrInvalidHeaderToken  = errors.New("h1: invalid header field name")
	ErrInvalidHeaderValue  = errors.New("h1: invalid header field value")
	ErrMissingContentLength = errors.New("h1: body expected but Content-Length missing")
	ErrInvalidContentLength = errors.New("h1: invalid Content-Length")
	ErrBodyTooLarge        = errors.New("h1: declared body size exceeds max_body_bytes")
	ErrMalformedChunk      = errors.New("h1: malformed chunked encoding")
)

// Request is one parsed HTTP/1.x request (headers only; Body streams
// separately via BodyReader so large bodies are never buffered whole).
type Request struct {
	Method  string
	Target  string
	Major   int
	Minor   int
	Headers []Header
}

// Header preserves wire order and duplicate header lines, unlike a map.
type Header struct {
	Name  string
	Value string
}

func (r *Request) Get(name string) (string, bool) {
	return r.header(name)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func (r *Request) header(name string) (string, bool) {
	for _, h := range r.Headers {
		if equalFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// ParseRequestLineAndHeaders reads one request's start-line and header
// block from br, enforcing the 8KB bounds and token grammar of spec §4.5.
// It does not read the body.
func ParseRequestLineAndHeaders(br *bufio.Reader) (*Request, error) {
	line, err := readBoundedLine(br, MaxRequestLineBytes, ErrRequestLineTooLong)
	if err != nil {
		return nil, err
	}

	req, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	headerBudget := MaxHeaderBlockBytes
	for {
		line, err := readBoundedLine(br, headerBudget, ErrHeaderBlockTooLong)
		if err != nil {
			return nil, err
		}
		headerBudget -= len(line) + 2
		if headerBudget < 0 {
			return nil, ErrHeaderBlockTooLong
		}
		if len(line) == 0 {
			break
		}
		h, err := parseHeaderLine(line)
		if err != nil {
			return nil, err
		}
		req.Headers = append(req.Headers, h)
	}

	return req, nil
}

// readBoundedLine reads up to a CRLF (bare LF tolerated per RFC 7230 §3.5,
// but a bare CR inside a value is rejected by the caller's grammar check),
// never consuming more than limit bytes before giving up.
func readBoundedLine(br *bufio.Reader, limit int, tooLong error) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > limit {
			return nil, tooLong
		}
		if !isPrefix {
			break
		}
	}
	return line, nil
}

func parseRequestLine(line []byte) (*Request, error) {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return nil, ErrMalformedRequestLine
	}
	method, target, version := parts[0], parts[1], parts[2]

	if len(method) == 0 || !isValidToken(method) {
		return nil, ErrMalformedRequestLine
	}
	if len(target) == 0 {
		return nil, ErrMalformedRequestLine
	}

	major, minor, err := parseVersion(version)
	if err != nil {
		return nil, err
	}

	return &Request{
		Method: string(method),
		Target: string(target),
		Major:  major,
		Minor:  minor,
	}, nil
}

func parseVersion(v []byte) (major, minor int, err error) {
	if len(v) != 8 || string(v[:5]) != "HTTP/" || v[6] != '.' {
		return 0, 0, ErrUnsupportedVersion
	}
	major = int(v[5] - '0')
	minor = int(v[7] - '0')
	if major < 0 || major > 9 || minor < 0 || minor > 9 {
		return 0, 0, ErrUnsupportedVersion
	}
	if major != 1 {
		return 0, 0, ErrUnsupportedVersion
	}
	return major, minor, nil
}

func parseHeaderLine(line []byte) (Header, error) {
	idx := bytes.IndexByte(line, ':')
	if idx <= 0 {
		return Header{}, ErrInvalidHeaderToken
	}
	name := line[:idx]
	if !isValidToken(name) {
		return Header{}, ErrInvalidHeaderToken
	}
	value := bytes.TrimSpace(line[idx+1:])
	if bytes.IndexByte(value, '\r') >= 0 {
		return Header{}, ErrInvalidHeaderValue
	}
	if !httpguts.ValidHeaderFieldValue(string(value)) {
		return Header{}, ErrInvalidHeaderValue
	}
	return Header{Name: string(name), Value: string(value)}, nil
}

func isValidToken(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	return httpguts.ValidHeaderFieldName(string(b))
}

// BodyFraming describes how the request body is delimited, per spec §4.5.
type BodyFraming int

const (
	NoBody BodyFraming = iota
	FixedLength
	Chunked
)

// DetermineBodyFraming inspects Content-Length/Transfer-Encoding and
// returns the framing mode plus, for FixedLength, the declared length. A
// request with neither header is NoBody, whatever its method; the one
// exception is an HTTP/1.0 request when requireLengthForHTTP10 is set (the
// caller sets it when it expects a body), which yields
// ErrMissingContentLength.
func DetermineBodyFraming(req *Request, requireLengthForHTTP10 bool) (BodyFraming, int64, error) {
	if te, ok := req.header("Transfer-Encoding"); ok {
		if !equalFold(te, "chunked") {
			return NoBody, 0, ErrMalformedChunk
		}
		return Chunked, 0, nil
	}

	cl, ok := req.header("Content-Length")
	if !ok {
		if req.Minor == 0 && requireLengthForHTTP10 {
			return NoBody, 0, ErrMissingContentLength
		}
		return NoBody, 0, nil
	}

	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return NoBody, 0, ErrInvalidContentLength
	}
	return FixedLength, n, nil
}

// BodyReader returns an io.Reader yielding exactly the request body,
// enforcing maxBodyBytes against the declared or accumulated size.
func BodyReader(br *bufio.Reader, framing BodyFraming, declaredLength int64, maxBodyBytes int64) (io.Reader, error) {
	switch framing {
	case NoBody:
		return io.LimitReader(nil, 0), nil
	case FixedLength:
		if declaredLength > maxBodyBytes {
			return nil, ErrBodyTooLarge
		}
		return io.LimitReader(br, declaredLength), nil
	case Chunked:
		return &chunkedReader{br: br, maxBody: maxBodyBytes}, nil
	}
	return nil, ErrMalformedChunk
}

// chunkedReader decodes RFC 7230 §4.1 chunked transfer coding.
type chunkedReader struct {
	br      *bufio.Reader
	maxBody int64
	read    int64
	remain  int64
	done    bool
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}
	if c.remain == 0 {
		size, err := c.readChunkSize()
		if err != nil {
			return 0, err
		}
		if size == 0 {
			if err := c.consumeTrailers(); err != nil {
				return 0, err
			}
			c.done = true
			return 0, io.EOF
		}
		c.remain = size
	}

	if int64(len(p)) > c.remain {
		p = p[:c.remain]
	}
	n, err := c.br.Read(p)
	c.remain -= int64(n)
	c.read += int64(n)
	if c.read > c.maxBody {
		return n, ErrBodyTooLarge
	}
	if err != nil {
		return n, err
	}
	if c.remain == 0 {
		if _, err := readCRLF(c.br); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *chunkedReader) readChunkSize() (int64, error) {
	line, _, err := c.br.ReadLine()
	if err != nil {
		return 0, err
	}
	if semi := bytes.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return 0, ErrMalformedChunk
	}
	n, err := strconv.ParseInt(string(line), 16, 64)
	if err != nil || n < 0 {
		return 0, ErrMalformedChunk
	}
	return n, nil
}

func (c *chunkedReader) consumeTrailers() error {
	for {
		line, _, err := c.br.ReadLine()
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}
	}
}

func readCRLF(br *bufio.Reader) (int, error) {
	line, _, err := br.ReadLine()
	if err != nil {
		return 0, err
	}
	if len(line) != 0 {
		return 0, ErrMalformedChunk
	}
	return 0, nil
}
