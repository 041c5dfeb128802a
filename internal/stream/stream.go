// Package stream implements the HTTP/2 per-stream state machine and
// two-level flow-control windows (spec §3 Stream, §4.3 StreamTable). The
// state field, windows, accumulated data and headers of a Stream are all
// protected by a single mutex so that concurrent open/send/receive/
// update/close/reset/setPriority/setDependency calls serialize cleanly;
// "is this sequence of frames legal" validation lives one layer up, in
// h2conn, per spec §4.3's note that semantic validation is not this
// package's job.
//
// Grounded on dgrr-http2's stream.go/streams.go (id/window/state shape),
// generalized to the full state machine and dual windows the spec needs.
package stream

import "sync"

// State is the stream lifecycle state (RFC 7540 §5.1).
type State int8

const (
	Idle State = iota
	Open
	HalfClosedLocal
	HalfClosedRemote
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Open:
		return "open"
	case HalfClosedLocal:
		return "half-closed (local)"
	case HalfClosedRemote:
		return "half-closed (remote)"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// DefaultInitialWindow is RFC 7540's SETTINGS_INITIAL_WINDOW_SIZE default.
const DefaultInitialWindow = 65535

// Stream is one HTTP/2 stream. The zero value is not usable; use New.
type Stream struct {
	mu sync.Mutex

	id    uint32
	state State

	senderWindow   int64 // may go transiently negative after a SETTINGS resize
	receiverWindow int64

	priority uint8
	// dependsOn is a weak reference (another stream's id, 0 = none) rather
	// than an owning pointer, so a dependency cycle cannot leak memory
	// (spec §9: "stream points at parent" re-expressed as an index).
	dependsOn uint32
	exclusive bool

	headers  map[string]string
	data     []byte
	endRecvd bool
}

// New creates an IDLE stream with both windows set to initialWindow.
func New(id uint32, initialWindow int32) *Stream {
	return &Stream{
		id:             id,
		state:          Idle,
		senderWindow:   int64(initialWindow),
		receiverWindow: int64(initialWindow),
		headers:        make(map[string]string),
	}
}

func (s *Stream) ID() uint32 { return s.id }

// ClientInitiated reports whether this is a client-initiated stream
// (spec §3: client_initiated = id % 2 == 1).
func (s *Stream) ClientInitiated() bool { return s.id%2 == 1 }

func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open transitions IDLE -> OPEN (send or receive HEADERS without
// END_STREAM). A no-op once past IDLE.
func (s *Stream) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Idle {
		s.state = Open
	}
}

// CloseLocal records that this endpoint sent END_STREAM.
func (s *Stream) CloseLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionEnd(true)
}

// CloseRemote records that the peer sent END_STREAM.
func (s *Stream) CloseRemote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endRecvd = true
	s.transitionEnd(false)
}

// transitionEnd applies the OPEN->HALF_CLOSED->CLOSED transitions for one
// direction's END_STREAM event. Must be called with mu held.
func (s *Stream) transitionEnd(local bool) {
	switch s.state {
	case Idle:
		s.state = Open
		fallthrough
	case Open:
		if local {
			s.state = HalfClosedLocal
		} else {
			s.state = HalfClosedRemote
		}
	case HalfClosedLocal:
		if !local {
			s.state = Closed
		}
	case HalfClosedRemote:
		if local {
			s.state = Closed
		}
	}
}

// Reset forces the stream CLOSED unconditionally (RST_STREAM, or a
// GOAWAY-affected stream). Idempotent: closing twice behaves the same as
// closing once (spec §8 idempotent-close invariant).
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Closed
}

// Close is an alias of Reset, used for non-error completion.
func (s *Stream) Close() { s.Reset() }

// IsClosed reports whether the stream has reached CLOSED. Once true, it
// never becomes false again (spec §3 invariant).
func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Closed
}

// EndStreamReceived reports whether END_STREAM has arrived from the peer.
func (s *Stream) EndStreamReceived() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endRecvd
}

// --- Flow control -----------------------------------------------------

// SenderWindow returns the current sender-side window (bytes this endpoint
// may still send as DATA before blocking).
func (s *Stream) SenderWindow() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.senderWindow
}

func (s *Stream) ReceiverWindow() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receiverWindow
}

// SendData accounts for n bytes of outbound DATA, decrementing the sender
// window (it may go negative, e.g. immediately after a SETTINGS resize;
// the sender must simply stop sending further DATA while window <= 0).
func (s *Stream) SendData(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.senderWindow -= n
}

// RecvData accounts for n bytes of inbound DATA.
func (s *Stream) RecvData(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiverWindow -= n
}

// UpdateSenderWindow applies an inbound WINDOW_UPDATE increment. A
// zero increment is silently absorbed, per spec §4.3.
func (s *Stream) UpdateSenderWindow(increment int32) {
	if increment == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.senderWindow += int64(increment)
}

// UpdateReceiverWindow credits back bytes the application has consumed,
// used when the connection layer issues its own WINDOW_UPDATE to the peer.
func (s *Stream) UpdateReceiverWindow(increment int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiverWindow += int64(increment)
}

// ResizeSenderWindow adjusts the sender window by delta when the peer's
// SETTINGS_INITIAL_WINDOW_SIZE changes after the stream was created
// (RFC 7540 §6.9.2). The receiver window is not touched.
func (s *Stream) ResizeSenderWindow(delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.senderWindow += delta
}

// --- Headers / body accumulation --------------------------------------

func (s *Stream) SetHeader(k, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers[k] = v
}

func (s *Stream) Header(k string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.headers[k]
	return v, ok
}

func (s *Stream) Headers() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		out[k] = v
	}
	return out
}

func (s *Stream) AppendData(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, b...)
}

func (s *Stream) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// --- Priority / dependency (informational only) ------------------------

func (s *Stream) SetPriority(p uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priority = p
}

func (s *Stream) Priority() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priority
}

// SetDependency records a weak reference to the stream id this stream
// depends on. Stored as an id, never a pointer, so cyclic dependency
// graphs (a conformance test may construct one) cannot create a reference
// cycle or leak.
func (s *Stream) SetDependency(id uint32, exclusive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dependsOn = id
	s.exclusive = exclusive
}

func (s *Stream) Dependency() (id uint32, exclusive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dependsOn, s.exclusive
}
