// Package frame implements the HTTP/2 binary framing layer (RFC 7540 §4):
// wire-format encode/decode of the 9-byte frame header plus payload. It is
// a pure bytes<->record translator; semantic validation of frame sequences
// belongs to the connection layer (see internal/h2conn), not here.
//
// Grounded on dgrr-http2's frameHeader.go/frame.go pooled-struct style.
package frame

import (
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/domsolutions/corehttp/internal/bytesutil"
)

// HeaderSize is the fixed size of the HTTP/2 frame header.
const HeaderSize = 9

// Type identifies the frame type (RFC 7540 §6).
type Type uint8

const (
	TypeData         Type = 0x0
	TypeHeaders      Type = 0x1
	TypePriority     Type = 0x2
	TypeRSTStream    Type = 0x3
	TypeSettings     Type = 0x4
	TypePushPromise  Type = 0x5
	TypePing         Type = 0x6
	TypeGoAway       Type = 0x7
	TypeWindowUpdate Type = 0x8
	TypeContinuation Type = 0x9

	minType Type = TypeData
	maxType Type = TypeContinuation
)

func (t Type) Valid() bool { return t >= minType && t <= maxType }

func (t Type) String() string {
	switch t {
	case TypeData:
		return "DATA"
	case TypeHeaders:
		return "HEADERS"
	case TypePriority:
		return "PRIORITY"
	case TypeRSTStream:
		return "RST_STREAM"
	case TypeSettings:
		return "SETTINGS"
	case TypePushPromise:
		return "PUSH_PROMISE"
	case TypePing:
		return "PING"
	case TypeGoAway:
		return "GOAWAY"
	case TypeWindowUpdate:
		return "WINDOW_UPDATE"
	case TypeContinuation:
		return "CONTINUATION"
	}
	return "UNKNOWN"
}

// Flags is the 8-bit flags field. Meaning depends on Type.
type Flags uint8

const (
	FlagAck        Flags = 0x1
	FlagEndStream  Flags = 0x1
	FlagEndHeaders Flags = 0x4
	FlagPadded     Flags = 0x8
	FlagPriority   Flags = 0x20
)

func (f Flags) Has(flag Flags) bool { return f&flag == flag }

// MaxPayloadSize is the floor default for SETTINGS_MAX_FRAME_SIZE; the
// connection layer may negotiate this up to MaxAllowedPayloadSize.
const (
	MaxPayloadSize       = 1 << 14
	MaxAllowedPayloadSize = 1<<24 - 1
)

// Frame is a parsed HTTP/2 frame. Instances are pool-backed: acquire via
// Acquire, return via Release. A Frame MUST NOT be used by more than one
// goroutine at a time.
type Frame struct {
	Type    Type
	Flags   Flags
	Stream  uint32 // 31-bit stream identifier, reserved bit already masked off
	Payload []byte
}

var framePool = sync.Pool{
	New: func() interface{} { return new(Frame) },
}

// Acquire returns a zeroed Frame from the pool.
func Acquire() *Frame {
	return framePool.Get().(*Frame)
}

// Release resets fr and returns it to the pool.
func Release(fr *Frame) {
	fr.reset()
	framePool.Put(fr)
}

func (fr *Frame) reset() {
	fr.Type = 0
	fr.Flags = 0
	fr.Stream = 0
	fr.Payload = fr.Payload[:0]
}

// Codec parses and encodes frames against a negotiated max payload size.
// One Codec is owned per direction (inbound/outbound) of a connection; it
// holds no other state and is safe to reuse across frames serially.
type Codec struct {
	// MaxPayload bounds decode; 0 means MaxPayloadSize (the RFC default).
	MaxPayload uint32
}

func NewCodec() *Codec {
	return &Codec{MaxPayload: MaxPayloadSize}
}

func (c *Codec) maxPayload() uint32 {
	if c.MaxPayload == 0 {
		return MaxPayloadSize
	}
	return c.MaxPayload
}

// Parse consumes exactly HeaderSize+length bytes from the front of buf on
// success and returns the frame plus the number of bytes consumed. On any
// failure (short buffer, unknown type, oversized length) it returns
// (nil, 0, false) and buf is untouched by the caller's perspective — no
// partial frame is ever returned.
func (c *Codec) Parse(buf []byte) (*Frame, int, bool) {
	if len(buf) < HeaderSize {
		return nil, 0, false
	}

	length := bytesutil.BytesToUint24(buf[:3])
	typ := Type(buf[3])
	flags := Flags(buf[4])
	stream := bytesutil.BytesToUint32R31(buf[5:9])

	if !typ.Valid() {
		return nil, 0, false
	}
	if length > c.maxPayload() {
		return nil, 0, false
	}
	if len(buf) < HeaderSize+int(length) {
		return nil, 0, false
	}

	fr := Acquire()
	fr.Type = typ
	fr.Flags = flags
	fr.Stream = stream
	if length > 0 {
		fr.Payload = append(fr.Payload[:0], buf[HeaderSize:HeaderSize+int(length)]...)
	}

	return fr, HeaderSize + int(length), true
}

// Encode appends the wire representation of fr to dst and returns the
// extended slice. A nil Payload is treated as empty.
func (c *Codec) Encode(dst []byte, fr *Frame) []byte {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	var hdr [HeaderSize]byte
	bytesutil.Uint24ToBytes(hdr[:3], uint32(len(fr.Payload)))
	hdr[3] = byte(fr.Type)
	hdr[4] = byte(fr.Flags)
	bytesutil.Uint32ToBytes(hdr[5:9], fr.Stream)

	bb.Write(hdr[:])
	if len(fr.Payload) > 0 {
		bb.Write(fr.Payload)
	}

	return append(dst, bb.B...)
}
