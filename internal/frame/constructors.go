package frame

import (
	"github.com/valyala/fastrand"

	"github.com/domsolutions/corehttp/internal/bytesutil"
)

// NewHeaders builds a HEADERS frame carrying an already-HPACK-encoded
// header block fragment.
func NewHeaders(stream uint32, headerBlock []byte, endStream, endHeaders bool) *Frame {
	fr := Acquire()
	fr.Type = TypeHeaders
	fr.Stream = stream
	fr.Payload = append(fr.Payload[:0], headerBlock...)
	if endStream {
		fr.Flags |= FlagEndStream
	}
	if endHeaders {
		fr.Flags |= FlagEndHeaders
	}
	return fr
}

// NewContinuation builds a CONTINUATION frame for a header block fragment
// that didn't fit the preceding HEADERS/CONTINUATION frame.
func NewContinuation(stream uint32, headerBlock []byte, endHeaders bool) *Frame {
	fr := Acquire()
	fr.Type = TypeContinuation
	fr.Stream = stream
	fr.Payload = append(fr.Payload[:0], headerBlock...)
	if endHeaders {
		fr.Flags |= FlagEndHeaders
	}
	return fr
}

// NewData builds a DATA frame.
func NewData(stream uint32, payload []byte, endStream bool) *Frame {
	fr := Acquire()
	fr.Type = TypeData
	fr.Stream = stream
	fr.Payload = append(fr.Payload[:0], payload...)
	if endStream {
		fr.Flags |= FlagEndStream
	}
	return fr
}

// SettingParam pairs a SETTINGS identifier with its 32-bit value.
type SettingParam struct {
	ID    uint16
	Value uint32
}

// NewSettings builds a SETTINGS frame (or its ACK when params is empty and
// ack is true) from the given parameters, 6 bytes each.
func NewSettings(params []SettingParam, ack bool) *Frame {
	fr := Acquire()
	fr.Type = TypeSettings
	if ack {
		fr.Flags |= FlagAck
		return fr
	}
	fr.Payload = fr.Payload[:0]
	for _, p := range params {
		var b [6]byte
		b[0] = byte(p.ID >> 8)
		b[1] = byte(p.ID)
		bytesutil.Uint32ToBytes(b[2:6], p.Value)
		fr.Payload = append(fr.Payload, b[:]...)
	}
	return fr
}

// NewWindowUpdate builds a WINDOW_UPDATE frame for stream (0 = connection).
func NewWindowUpdate(stream uint32, increment uint32) *Frame {
	fr := Acquire()
	fr.Type = TypeWindowUpdate
	fr.Stream = stream
	fr.Payload = bytesutil.Resize(fr.Payload, 4)
	bytesutil.Uint32ToBytes(fr.Payload, increment&(1<<31-1))
	return fr
}

// NewPing builds a PING frame carrying an 8-byte opaque payload. When data
// is nil, a random payload is generated (useful for RTT probes where the
// opaque value only needs to be unpredictable to a middlebox, not secret).
func NewPing(data []byte, ack bool) *Frame {
	fr := Acquire()
	fr.Type = TypePing
	if ack {
		fr.Flags |= FlagAck
	}
	fr.Payload = bytesutil.Resize(fr.Payload, 8)
	if data != nil {
		copy(fr.Payload, data)
	} else {
		for i := 0; i < 8; i += 4 {
			bytesutil.Uint32ToBytes(fr.Payload[i:i+4], fastrand.Uint32())
		}
	}
	return fr
}

// NewGoAway builds a GOAWAY frame.
func NewGoAway(lastStreamID uint32, errCode uint32, debug []byte) *Frame {
	fr := Acquire()
	fr.Type = TypeGoAway
	fr.Payload = bytesutil.Resize(fr.Payload, 8+len(debug))
	bytesutil.Uint32ToBytes(fr.Payload[0:4], lastStreamID&(1<<31-1))
	bytesutil.Uint32ToBytes(fr.Payload[4:8], errCode)
	copy(fr.Payload[8:], debug)
	return fr
}

// NewRSTStream builds a RST_STREAM frame.
func NewRSTStream(stream uint32, errCode uint32) *Frame {
	fr := Acquire()
	fr.Type = TypeRSTStream
	fr.Stream = stream
	fr.Payload = bytesutil.Resize(fr.Payload, 4)
	bytesutil.Uint32ToBytes(fr.Payload, errCode)
	return fr
}

// NewPriority builds a PRIORITY frame expressing an informational stream
// dependency (weak — a dependency cycle must never leak memory, see
// internal/stream).
func NewPriority(stream, dependsOn uint32, exclusive bool, weight uint8) *Frame {
	fr := Acquire()
	fr.Type = TypePriority
	fr.Stream = stream
	fr.Payload = bytesutil.Resize(fr.Payload, 5)
	dep := dependsOn & (1<<31 - 1)
	if exclusive {
		dep |= 1 << 31
	}
	bytesutil.Uint32ToBytes(fr.Payload[:4], dep)
	fr.Payload[4] = weight
	return fr
}
