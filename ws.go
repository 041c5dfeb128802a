package corehttp

import (
	"bufio"
	"context"
	"net"
	"unicode/utf8"

	"github.com/domsolutions/corehttp/internal/h1"
	"github.com/domsolutions/corehttp/internal/ws"
)

// tryWebSocketUpgrade inspects req for an Upgrade: websocket request
// against a registered WSRoutes path and, if it matches, performs the
// RFC 6455 handshake and takes over conn for the lifetime of the
// WebSocket session. It reports whether it handled the request at all
// (true means the caller must not write any further HTTP response and
// must close the connection once this returns).
func (s *Server) tryWebSocketUpgrade(ctx context.Context, req *h1.Request, br *bufio.Reader, bw *bufio.Writer, conn net.Conn) bool {
	upgrade, _ := req.Get("Upgrade")
	if upgrade == "" {
		return false
	}
	handler, ok := s.WSRoutes[req.Target]
	if !ok {
		return false
	}

	connHdr, _ := req.Get("Connection")
	version, _ := req.Get("Sec-WebSocket-Version")
	key, _ := req.Get("Sec-WebSocket-Key")

	if err := ws.ValidateHandshake(ws.HandshakeRequest{
		Upgrade:    upgrade,
		Connection: connHdr,
		Version:    version,
		Key:        key,
	}); err != nil {
		writeH1Error(bw, 400, "Bad Request")
		return true
	}

	accept := ws.AcceptKey(key)
	bw.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	bw.WriteString("Upgrade: websocket\r\n")
	bw.WriteString("Connection: Upgrade\r\n")
	bw.WriteString("Sec-WebSocket-Accept: " + accept + "\r\n\r\n")
	bw.Flush()

	wsc := &wsConn{bw: bw, conn: conn}
	if handler.OnOpen != nil {
		handler.OnOpen(ctx, wsc)
	}
	s.runWebSocket(ctx, handler, wsc, br)
	return true
}

// runWebSocket drives the read loop for one upgraded connection until it
// closes, dispatching to the matched WSHandler's callbacks. Fragmented
// messages (an initiating Text/Binary frame with FIN=false followed by
// one or more Continuation frames) are reassembled before dispatch, per
// spec §4.12: the UTF-8 validity requirement on text frames only makes
// sense applied to the complete reassembled message.
func (s *Server) runWebSocket(ctx context.Context, handler WSHandler, wsc *wsConn, br *bufio.Reader) {
	var (
		assembling   bool
		assemblingOp ws.Opcode
		assembled    []byte
	)

	for {
		fr, err := ws.ReadFrame(br, true, ws.DefaultMaxFrameBytes)
		if err != nil {
			if handler.OnError != nil {
				handler.OnError(ctx, wsc, err)
			}
			return
		}

		switch fr.Opcode {
		case ws.OpText, ws.OpBinary:
			if fr.FIN {
				s.dispatchWSMessage(ctx, handler, wsc, fr.Opcode, fr.Payload)
				break
			}
			assembling = true
			assemblingOp = fr.Opcode
			assembled = append([]byte(nil), fr.Payload...)

		case ws.OpContinuation:
			if !assembling {
				if handler.OnError != nil {
					handler.OnError(ctx, wsc, ws.ErrUnexpectedContinuation)
				}
				return
			}
			assembled = append(assembled, fr.Payload...)
			if fr.FIN {
				if assemblingOp == ws.OpText && !utf8.Valid(assembled) {
					if handler.OnError != nil {
						handler.OnError(ctx, wsc, ws.ErrInvalidUTF8)
					}
					return
				}
				s.dispatchWSMessage(ctx, handler, wsc, assemblingOp, assembled)
				assembling = false
				assembled = nil
			}

		case ws.OpPing:
			_ = ws.WriteFrame(wsc.bw, &ws.Frame{FIN: true, Opcode: ws.OpPong, Payload: fr.Payload}, true)
			wsc.bw.Flush()
		case ws.OpClose:
			code, reason, _ := ws.ParseClosePayload(fr.Payload)
			if handler.OnClose != nil {
				handler.OnClose(ctx, wsc, int(code), reason)
			}
			_ = ws.WriteFrame(wsc.bw, &ws.Frame{FIN: true, Opcode: ws.OpClose, Payload: fr.Payload}, true)
			wsc.bw.Flush()
			return
		}
	}
}

// dispatchWSMessage invokes the OnText/OnBinary callback for one complete
// (possibly reassembled) message.
func (s *Server) dispatchWSMessage(ctx context.Context, handler WSHandler, wsc *wsConn, op ws.Opcode, payload []byte) {
	switch op {
	case ws.OpText:
		if handler.OnText != nil {
			handler.OnText(ctx, wsc, string(payload))
		}
	case ws.OpBinary:
		if handler.OnBinary != nil {
			handler.OnBinary(ctx, wsc, payload)
		}
	}
}

// wsConn implements WSConn over a hijacked HTTP/1.1 connection.
type wsConn struct {
	bw   *bufio.Writer
	conn net.Conn
}

func (c *wsConn) WriteText(s string) error {
	if err := ws.WriteFrame(c.bw, &ws.Frame{FIN: true, Opcode: ws.OpText, Payload: []byte(s)}, true); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *wsConn) WriteBinary(b []byte) error {
	if err := ws.WriteFrame(c.bw, &ws.Frame{FIN: true, Opcode: ws.OpBinary, Payload: b}, true); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *wsConn) Close(code int, reason string) error {
	payload := ws.EncodeClosePayload(ws.CloseCode(code), reason)
	if err := ws.WriteFrame(c.bw, &ws.Frame{FIN: true, Opcode: ws.OpClose, Payload: payload}, true); err != nil {
		return err
	}
	if err := c.bw.Flush(); err != nil {
		return err
	}
	return c.conn.Close()
}
