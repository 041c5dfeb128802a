// Package h2conn wires internal/frame, internal/hpack and internal/stream
// into a single HTTP/2 connection: preface handshake, SETTINGS exchange,
// inbound frame dispatch with per-type semantic validation, HEADERS and
// CONTINUATION reassembly, flow control bookkeeping and the GOAWAY/
// RST_STREAM error taxonomy (spec §4 H2Connection). One Connection serves
// exactly one net.Conn; a single goroutine reads and dispatches frames, and
// every frame write (from that goroutine or from Handler goroutines) holds
// one write mutex, matching the one-reader/one-writer serialization the
// teacher's serverConn used around its frame loop.
package h2conn

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/domsolutions/corehttp/internal/frame"
	"github.com/domsolutions/corehttp/internal/hpack"
	"github.com/domsolutions/corehttp/internal/stream"
)

// Preface is the 24-byte client connection preface (RFC 7540 §3.5).
const Preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// Request is the fully-assembled view of one stream handed to Handler once
// its header block (and, for non-trailers, its body) is complete.
type Request struct {
	StreamID uint32
	Headers  []hpack.HeaderField
	Body     []byte
}

// ResponseWriter lets a Handler stream a response back on the same stream.
// Methods are safe to call from the goroutine Handler runs on only; the
// Connection serializes the actual frame writes internally.
type ResponseWriter interface {
	WriteHeaders(headers []hpack.HeaderField, endStream bool) error
	WriteData(p []byte, endStream bool) error
}

// Handler processes one complete request. It may block; the Connection
// runs each call in its own goroutine so a slow stream never stalls others
// (spec §9's re-expression of dynamic dispatch as a blocking function of
// (Request, ResponseWriter)).
type Handler func(ctx context.Context, req *Request, w ResponseWriter)

// Config bundles the knobs a Connection needs beyond RFC defaults.
type Config struct {
	Settings Settings
	Handler  Handler
	Logger   *zap.Logger
}

// Connection is one live HTTP/2 connection.
type Connection struct {
	rw     io.ReadWriter
	br     *bufio.Reader
	cfg    Config
	logger *zap.Logger

	local  Settings // what we have advertised
	remote Settings // what the peer has advertised

	streams *stream.Table
	enc     *hpack.Encoder
	dec     *hpack.Decoder
	codec   *frame.Codec

	writeMu      sync.Mutex
	connSendWin  int64
	connRecvWin  int64

	goAwaySent   bool
	goAwayRecvd  bool
	lastStreamID uint32

	// headerAssembly accumulates HEADERS+CONTINUATION fragments for the
	// stream currently mid-header-block; RFC 7540 §4.3 forbids any other
	// frame from interleaving until END_HEADERS.
	assemblingStream uint32
	headerAssembly   bytes.Buffer
	assemblingEnd    bool // END_STREAM seen on the opening HEADERS

	wg sync.WaitGroup
}

// New creates a Connection over rw. Call Serve to run it.
func New(rw io.ReadWriter, cfg Config) *Connection {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	local := cfg.Settings
	if (local == Settings{}) {
		local = DefaultSettings()
	}
	return &Connection{
		rw:          rw,
		br:          bufio.NewReaderSize(rw, 64*1024),
		cfg:         cfg,
		logger:      cfg.Logger,
		local:       local,
		remote:      DefaultSettings(),
		streams:     stream.NewTable(int32(local.InitialWindowSize)),
		enc:         hpack.NewEncoder(),
		dec:         hpack.NewDecoder(),
		codec:       frame.NewCodec(),
		connSendWin: int64(stream.DefaultInitialWindow),
		connRecvWin: int64(stream.DefaultInitialWindow),
	}
}

// Serve reads the client preface, exchanges SETTINGS and then dispatches
// frames until the connection closes or a connection-level error occurs.
func (c *Connection) Serve(ctx context.Context) error {
	if err := c.readPreface(); err != nil {
		return err
	}

	c.dec.SetNegotiatedMaxSize(int(c.local.HeaderTableSize))

	if err := c.writeFrame(frame.NewSettings(encodeSettingsPayload(c.local), false)); err != nil {
		return err
	}

	err := c.loop(ctx)
	c.streams.CloseAll()
	c.wg.Wait()
	return err
}

func (c *Connection) readPreface() error {
	buf := make([]byte, len(Preface))
	if _, err := io.ReadFull(c.br, buf); err != nil {
		return connErr(ProtocolError, "failed to read connection preface: "+err.Error())
	}
	if string(buf) != Preface {
		return connErr(ProtocolError, "invalid connection preface")
	}
	return nil
}

func (c *Connection) loop(ctx context.Context) error {
	var pending []byte

	for {
		chunk := make([]byte, 16*1024)
		n, err := c.br.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF && len(pending) == 0 {
				return nil
			}
			if err != io.EOF {
				return err
			}
		}

		for {
			fr, consumed, ok := c.codec.Parse(pending)
			if !ok {
				if len(pending) > frame.HeaderSize+int(c.local.MaxFrameSize) {
					return c.fail(connErr(FrameSizeError, "frame exceeds negotiated max frame size"))
				}
				break
			}
			pending = pending[consumed:]

			if derr := c.dispatch(ctx, fr); derr != nil {
				frame.Release(fr)
				if done := c.handleError(derr); done != nil {
					return done
				}
				continue
			}
			frame.Release(fr)
		}

		if err == io.EOF {
			return nil
		}
	}
}

// handleError turns a dispatch error into the right wire action: a
// ConnError triggers GOAWAY and terminates the loop; a StreamError resets
// just that stream and the loop continues (spec §4.4/§7 taxonomy).
func (c *Connection) handleError(err error) error {
	switch e := err.(type) {
	case *ConnError:
		return c.fail(e)
	case *StreamError:
		if s, ok := c.streams.Get(e.StreamID); ok {
			s.Reset()
		}
		_ = c.writeFrame(frame.NewRSTStream(e.StreamID, e.Code))
		c.logger.Warn("stream error", zap.Uint32("stream", e.StreamID), zap.String("code", errorName(e.Code)))
		return nil
	default:
		return err
	}
}

func (c *Connection) fail(e *ConnError) error {
	c.logger.Warn("connection error", zap.String("code", errorName(e.Code)), zap.Error(e.Cause))
	c.sendGoAway(e.Code, []byte(e.Cause.Error()))
	return e
}

func (c *Connection) sendGoAway(code uint32, debug []byte) {
	if c.goAwaySent {
		return
	}
	c.goAwaySent = true
	_ = c.writeFrame(frame.NewGoAway(c.lastStreamID, code, debug))
}

// dispatch validates and handles a single inbound frame. Validation rules
// (stream id must/must-not be zero, fixed or modular payload lengths) are
// spec §4.4.2's per-type table.
func (c *Connection) dispatch(ctx context.Context, fr *frame.Frame) error {
	// CONTINUATION must follow an in-progress header block with no other
	// frame interleaved (RFC 7540 §4.3), and vice versa.
	if c.assemblingStream != 0 && fr.Type != frame.TypeContinuation {
		return connErr(ProtocolError, "expected CONTINUATION to complete header block")
	}
	if fr.Type == frame.TypeContinuation && c.assemblingStream == 0 {
		return connErr(ProtocolError, "CONTINUATION without a preceding HEADERS")
	}

	switch fr.Type {
	case frame.TypeSettings:
		return c.handleSettings(fr)
	case frame.TypePing:
		return c.handlePing(fr)
	case frame.TypeGoAway:
		return c.handleGoAway(fr)
	case frame.TypeWindowUpdate:
		return c.handleWindowUpdate(fr)
	case frame.TypeHeaders:
		return c.handleHeaders(ctx, fr)
	case frame.TypeContinuation:
		return c.handleContinuation(ctx, fr)
	case frame.TypeData:
		return c.handleData(fr)
	case frame.TypeRSTStream:
		return c.handleRSTStream(fr)
	case frame.TypePriority:
		return c.handlePriority(fr)
	case frame.TypePushPromise:
		return connErr(ProtocolError, "server does not accept PUSH_PROMISE")
	default:
		return nil // unknown types already rejected by frame.Parse
	}
}

func (c *Connection) handleSettings(fr *frame.Frame) error {
	if fr.Stream != 0 {
		return connErr(ProtocolError, "SETTINGS must be on stream 0")
	}
	if fr.Flags.Has(frame.FlagAck) {
		if len(fr.Payload) != 0 {
			return connErr(FrameSizeError, "SETTINGS ACK must be empty")
		}
		return nil
	}
	if err := applySettingsPayload(&c.remote, fr.Payload); err != nil {
		return err
	}
	c.writeMu.Lock()
	c.enc.SetMaxTableSize(int(c.remote.HeaderTableSize))
	c.writeMu.Unlock()
	return c.writeFrame(frame.NewSettings(nil, true))
}

func (c *Connection) handlePing(fr *frame.Frame) error {
	if fr.Stream != 0 {
		return connErr(ProtocolError, "PING must be on stream 0")
	}
	if len(fr.Payload) != 8 {
		return connErr(FrameSizeError, "PING payload must be 8 bytes")
	}
	if fr.Flags.Has(frame.FlagAck) {
		return nil
	}
	return c.writeFrame(frame.NewPing(fr.Payload, true))
}

func (c *Connection) handleGoAway(fr *frame.Frame) error {
	if fr.Stream != 0 {
		return connErr(ProtocolError, "GOAWAY must be on stream 0")
	}
	if len(fr.Payload) < 8 {
		return connErr(FrameSizeError, "GOAWAY payload must be at least 8 bytes")
	}
	c.goAwayRecvd = true
	return nil
}

func (c *Connection) handleWindowUpdate(fr *frame.Frame) error {
	if len(fr.Payload) != 4 {
		return connErr(FrameSizeError, "WINDOW_UPDATE payload must be 4 bytes")
	}
	increment := int32(fr.Payload[0]&0x7f)<<24 | int32(fr.Payload[1])<<16 | int32(fr.Payload[2])<<8 | int32(fr.Payload[3])
	if increment == 0 {
		if fr.Stream == 0 {
			return connErr(ProtocolError, "WINDOW_UPDATE increment of 0 on the connection is a protocol error")
		}
		return streamErr(fr.Stream, ProtocolError, "WINDOW_UPDATE increment of 0 is a stream error")
	}
	if fr.Stream == 0 {
		c.connSendWin += int64(increment)
		return nil
	}
	s, ok := c.streams.Get(fr.Stream)
	if !ok {
		return nil // window update for a closed/unknown stream is ignorable
	}
	s.UpdateSenderWindow(increment)
	return nil
}

func (c *Connection) handlePriority(fr *frame.Frame) error {
	if fr.Stream == 0 {
		return connErr(ProtocolError, "PRIORITY must not be on stream 0")
	}
	if len(fr.Payload) != 5 {
		return streamErr(fr.Stream, FrameSizeError, "PRIORITY payload must be 5 bytes")
	}
	dep := uint32(fr.Payload[0]&0x7f)<<24 | uint32(fr.Payload[1])<<16 | uint32(fr.Payload[2])<<8 | uint32(fr.Payload[3])
	exclusive := fr.Payload[0]&0x80 != 0
	weight := fr.Payload[4]

	s, _, ok := c.streams.Open(fr.Stream, fr.Stream%2 == 1)
	if !ok {
		return connErr(ProtocolError, "PRIORITY on an id below the high-water mark")
	}
	s.SetDependency(dep, exclusive)
	s.SetPriority(weight)
	return nil
}

func (c *Connection) handleRSTStream(fr *frame.Frame) error {
	if fr.Stream == 0 {
		return connErr(ProtocolError, "RST_STREAM must not be on stream 0")
	}
	if len(fr.Payload) != 4 {
		return connErr(FrameSizeError, "RST_STREAM payload must be 4 bytes")
	}
	if s, ok := c.streams.Get(fr.Stream); ok {
		s.Reset()
	}
	return nil
}

func (c *Connection) handleHeaders(ctx context.Context, fr *frame.Frame) error {
	if fr.Stream == 0 {
		return connErr(ProtocolError, "HEADERS must not be on stream 0")
	}
	if c.goAwaySent {
		return streamErr(fr.Stream, RefusedStream, "no new streams accepted after GOAWAY")
	}

	s, created, ok := c.streams.Open(fr.Stream, fr.Stream%2 == 1)
	if !ok {
		return connErr(ProtocolError, "HEADERS on an id below the high-water mark")
	}
	if created {
		s.Open()
	}

	payload, err := stripPadding(fr)
	if err != nil {
		return streamErr(fr.Stream, ProtocolError, err.Error())
	}
	if fr.Flags.Has(frame.FlagPriority) {
		if len(payload) < 5 {
			return streamErr(fr.Stream, FrameSizeError, "HEADERS priority prefix truncated")
		}
		dep := uint32(payload[0]&0x7f)<<24 | uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
		s.SetDependency(dep, payload[0]&0x80 != 0)
		s.SetPriority(payload[4])
		payload = payload[5:]
	}

	c.assemblingStream = fr.Stream
	c.assemblingEnd = fr.Flags.Has(frame.FlagEndStream)
	c.headerAssembly.Reset()
	c.headerAssembly.Write(payload)

	if fr.Flags.Has(frame.FlagEndHeaders) {
		return c.finishHeaderBlock(ctx, s)
	}
	return nil
}

func (c *Connection) handleContinuation(ctx context.Context, fr *frame.Frame) error {
	if fr.Stream != c.assemblingStream {
		return connErr(ProtocolError, "CONTINUATION stream id mismatch")
	}
	c.headerAssembly.Write(fr.Payload)

	if fr.Flags.Has(frame.FlagEndHeaders) {
		s, ok := c.streams.Get(fr.Stream)
		if !ok {
			return connErr(InternalError, "stream vanished mid header block")
		}
		return c.finishHeaderBlock(ctx, s)
	}
	return nil
}

func (c *Connection) finishHeaderBlock(ctx context.Context, s *stream.Stream) error {
	block := append([]byte(nil), c.headerAssembly.Bytes()...)
	streamID := c.assemblingStream
	endStream := c.assemblingEnd

	c.assemblingStream = 0
	c.headerAssembly.Reset()
	c.assemblingEnd = false

	fields, err := c.dec.DecodeBlock(block)
	if err != nil {
		return connErr(CompressionError, "HPACK decode failed: "+err.Error())
	}
	for _, f := range fields {
		s.SetHeader(f.Name, f.Value)
	}

	if endStream {
		s.CloseRemote()
		if c.lastStreamID < streamID {
			c.lastStreamID = streamID
		}
		c.dispatchHandler(ctx, streamID, s, fields)
	}
	return nil
}

func (c *Connection) handleData(fr *frame.Frame) error {
	if fr.Stream == 0 {
		return connErr(ProtocolError, "DATA must not be on stream 0")
	}
	s, ok := c.streams.Get(fr.Stream)
	if !ok {
		return streamErr(fr.Stream, StreamClosed, "DATA on an unknown stream")
	}
	if s.EndStreamReceived() {
		return streamErr(fr.Stream, StreamClosed, "DATA received after END_STREAM")
	}

	payload, err := stripPadding(fr)
	if err != nil {
		return streamErr(fr.Stream, ProtocolError, err.Error())
	}

	n := int64(len(fr.Payload)) // flow control accounts the padded length
	s.RecvData(n)
	c.connRecvWin -= n
	s.AppendData(payload)

	if fr.Flags.Has(frame.FlagEndStream) {
		s.CloseRemote()
		fields := headerFields(s.Headers())
		c.dispatchHandlerBody(s, fields, s.Data())
	}

	// naive auto-replenish: credit back what was consumed so senders never
	// stall against a receiver that never reads application-level data.
	if n > 0 {
		s.UpdateReceiverWindow(int32(n))
		c.connRecvWin += n
		_ = c.writeFrame(frame.NewWindowUpdate(fr.Stream, uint32(n)))
		_ = c.writeFrame(frame.NewWindowUpdate(0, uint32(n)))
	}
	return nil
}

func (c *Connection) dispatchHandler(ctx context.Context, streamID uint32, s *stream.Stream, fields []hpack.HeaderField) {
	if s.State() != stream.HalfClosedRemote && s.State() != stream.Closed {
		return // request body still arriving via DATA frames
	}
	c.dispatchHandlerBody(s, fields, s.Data())
}

func (c *Connection) dispatchHandlerBody(s *stream.Stream, fields []hpack.HeaderField, body []byte) {
	if c.cfg.Handler == nil {
		return
	}
	req := &Request{StreamID: s.ID(), Headers: fields, Body: body}
	w := &responseWriter{conn: c, streamID: s.ID(), stream: s}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.cfg.Handler(context.Background(), req, w)
	}()
}

func headerFields(m map[string]string) []hpack.HeaderField {
	out := make([]hpack.HeaderField, 0, len(m))
	for k, v := range m {
		out = append(out, hpack.HeaderField{Name: k, Value: v})
	}
	return out
}

// stripPadding validates and removes RFC 7540 §6.1/§6.2 PADDED framing.
func stripPadding(fr *frame.Frame) ([]byte, error) {
	if !fr.Flags.Has(frame.FlagPadded) {
		return fr.Payload, nil
	}
	if len(fr.Payload) == 0 {
		return nil, errTruncatedPadding
	}
	padLen := int(fr.Payload[0])
	rest := fr.Payload[1:]
	if padLen > len(rest) {
		return nil, errTruncatedPadding
	}
	return rest[:len(rest)-padLen], nil
}

var errTruncatedPadding = errors.New("invalid PADDED frame: pad length exceeds payload")

// writeFrame serializes one frame onto the wire. All writers (the
// dispatch goroutine and Handler goroutines via responseWriter) funnel
// through here so the connection has exactly one writer at a time.
func (c *Connection) writeFrame(fr *frame.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	defer frame.Release(fr)

	buf := c.codec.Encode(nil, fr)
	_, err := c.rw.Write(buf)
	return err
}

type responseWriter struct {
	conn     *Connection
	streamID uint32
	stream   *stream.Stream
}

func (w *responseWriter) WriteHeaders(headers []hpack.HeaderField, endStream bool) error {
	// Encoding and writing share writeMu so the HPACK encoder's table
	// updates reach the wire in the order they were made.
	c := w.conn
	c.writeMu.Lock()
	var block []byte
	for _, f := range headers {
		block = c.enc.EncodeField(block, f)
	}
	fr := frame.NewHeaders(w.streamID, block, endStream, true)
	_, err := c.rw.Write(c.codec.Encode(nil, fr))
	frame.Release(fr)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}
	if endStream {
		w.stream.CloseLocal()
	}
	return nil
}

func (w *responseWriter) WriteData(p []byte, endStream bool) error {
	w.stream.SendData(int64(len(p)))
	if err := w.conn.writeFrame(frame.NewData(w.streamID, p, endStream)); err != nil {
		return err
	}
	if endStream {
		w.stream.CloseLocal()
	}
	return nil
}
