package h2conn

import "errors"

// Error codes (RFC 7540 §7). Grounded on dgrr-http2's errors.go table.
const (
	NoError            uint32 = 0x0
	ProtocolError      uint32 = 0x1
	InternalError      uint32 = 0x2
	FlowControlError   uint32 = 0x3
	SettingsTimeout    uint32 = 0x4
	StreamClosed       uint32 = 0x5
	FrameSizeError     uint32 = 0x6
	RefusedStream      uint32 = 0x7
	Cancel             uint32 = 0x8
	CompressionError   uint32 = 0x9
	ConnectError       uint32 = 0xa
	EnhanceYourCalm    uint32 = 0xb
	InadequateSecurity uint32 = 0xc
	HTTP11Required     uint32 = 0xd
)

var errorNames = map[uint32]string{
	NoError:            "NO_ERROR",
	ProtocolError:      "PROTOCOL_ERROR",
	InternalError:      "INTERNAL_ERROR",
	FlowControlError:   "FLOW_CONTROL_ERROR",
	SettingsTimeout:    "SETTINGS_TIMEOUT",
	StreamClosed:       "STREAM_CLOSED",
	FrameSizeError:     "FRAME_SIZE_ERROR",
	RefusedStream:      "REFUSED_STREAM",
	Cancel:             "CANCEL",
	CompressionError:   "COMPRESSION_ERROR",
	ConnectError:       "CONNECT_ERROR",
	EnhanceYourCalm:    "ENHANCE_YOUR_CALM",
	InadequateSecurity: "INADEQUATE_SECURITY",
	HTTP11Required:     "HTTP_1_1_REQUIRED",
}

func errorName(code uint32) string {
	if n, ok := errorNames[code]; ok {
		return n
	}
	return "UNKNOWN_ERROR"
}

// ConnError is a connection-scoped error: the connection sends GOAWAY with
// Code and closes the transport (spec §4.4/§7 taxonomy (ii)).
type ConnError struct {
	Code  uint32
	Cause error
}

func (e *ConnError) Error() string { return errorName(e.Code) + ": " + e.Cause.Error() }
func (e *ConnError) Unwrap() error { return e.Cause }

func connErr(code uint32, msg string) *ConnError {
	return &ConnError{Code: code, Cause: errors.New(msg)}
}

// StreamError is scoped to a single stream: the connection sends
// RST_STREAM and closes only that stream, others continue (spec §4.4/§7
// taxonomy (iii)).
type StreamError struct {
	StreamID uint32
	Code     uint32
	Cause    error
}

func (e *StreamError) Error() string { return errorName(e.Code) + ": " + e.Cause.Error() }
func (e *StreamError) Unwrap() error { return e.Cause }

func streamErr(id uint32, code uint32, msg string) *StreamError {
	return &StreamError{StreamID: id, Code: code, Cause: errors.New(msg)}
}
