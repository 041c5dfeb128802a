// Package compress implements the CompressionDecider (spec §4.8): decide
// whether and how to compress a response, and wrap the actual brotli/gzip
// codecs the decision selects.
//
// Grounded on fasthttp's gzip/brotli content-negotiation helpers (the
// teacher pack's fasthttp dependency) and wired to the ecosystem codecs
// the wider retrieval pack carries: github.com/andybalholm/brotli for br,
// github.com/klauspost/compress/gzip for gzip (a faster drop-in than
// compress/gzip, matching what a fasthttp-adjacent stack already pulls
// in).
package compress

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// Codec identifies the chosen content-coding.
type Codec int

const (
	None Codec = iota
	Gzip
	Brotli
)

func (c Codec) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Brotli:
		return "br"
	}
	return "identity"
}

// DefaultMinCompressBytes is the spec §4.8/§6 default threshold.
const DefaultMinCompressBytes = 256

var blockedExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
	"zip": {}, "gz": {}, "7z": {}, "rar": {}, "pdf": {},
	"mp3": {}, "mp4": {}, "mov": {}, "avi": {}, "woff": {}, "woff2": {},
}

var allowedMIMEPrefixes = []string{"text/"}

var allowedMIMEExact = map[string]struct{}{
	"application/json":       {},
	"application/javascript": {},
	"application/xml":        {},
	"application/xhtml+xml":  {},
	"image/svg+xml":          {},
}

// Decision is the outcome of Decide.
type Decision struct {
	Compress bool
	Codec    Codec
}

// BrotliAvailable reports whether a Brotli backend is wired in; this
// module always has one, but the knob exists so callers (and tests) can
// force gzip even when brotli is technically importable.
var BrotliAvailable = true

// Decide applies spec §4.8's ordered rule set.
func Decide(acceptEncoding, mimeType string, size int64, filename string, minCompressBytes int) Decision {
	offers := parseAcceptEncoding(acceptEncoding)
	if !offers.gzip && !offers.br {
		return Decision{}
	}
	if minCompressBytes <= 0 {
		minCompressBytes = DefaultMinCompressBytes
	}
	if size < int64(minCompressBytes) {
		return Decision{}
	}
	if ext := extensionOf(filename); blockedByExtension(ext) {
		return Decision{}
	}
	if !allowedMIME(mimeType) {
		return Decision{}
	}

	if offers.br && BrotliAvailable {
		return Decision{Compress: true, Codec: Brotli}
	}
	if offers.gzip {
		return Decision{Compress: true, Codec: Gzip}
	}
	return Decision{}
}

type offeredCodecs struct {
	gzip bool
	br   bool
}

// parseAcceptEncoding parses comma-separated coding;q=value tokens,
// disqualifying a codec whose quality is explicitly zero (spec §4.8).
func parseAcceptEncoding(header string) offeredCodecs {
	var out offeredCodecs
	for _, tok := range strings.Split(header, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, q := splitQuality(tok)
		if q == 0 {
			continue
		}
		switch strings.ToLower(name) {
		case "gzip":
			out.gzip = true
		case "br":
			out.br = true
		}
	}
	return out
}

func splitQuality(tok string) (name string, q float64) {
	parts := strings.Split(tok, ";")
	name = strings.TrimSpace(parts[0])
	q = 1
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "q=") {
			if v, err := strconv.ParseFloat(strings.TrimPrefix(p, "q="), 64); err == nil {
				q = v
			}
		}
	}
	return name, q
}

func extensionOf(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

func blockedByExtension(ext string) bool {
	_, blocked := blockedExtensions[ext]
	return blocked
}

func allowedMIME(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	base := mimeType
	if idx := strings.IndexByte(base, ';'); idx >= 0 {
		base = base[:idx]
	}
	base = strings.TrimSpace(strings.ToLower(base))

	for _, prefix := range allowedMIMEPrefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	_, ok := allowedMIMEExact[base]
	return ok
}

// Compress runs the chosen codec over src.
func Compress(codec Codec, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch codec {
	case Brotli:
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case Gzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return src, nil
	}
	return buf.Bytes(), nil
}
