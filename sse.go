package corehttp

import (
	"bufio"
	"context"
	"errors"
	"time"

	"github.com/domsolutions/corehttp/internal/sse"
)

var errSSETopicFull = errors.New("corehttp: sse topic is at its connection cap")

// sseConnWriter adapts internal/sse.Writer to internal/sse.Connection so a
// raw response stream can be registered with the broker.
type sseConnWriter struct {
	w      *sse.Writer
	closed chan struct{}
}

func (c *sseConnWriter) Send(ev sse.Event) error { return c.w.WriteEvent(ev) }
func (c *sseConnWriter) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

// ServeSSE registers the current response as a subscriber of topic and
// blocks, writing every event the handler's caller (via s.SSE.Broadcast)
// sends, until ctx is cancelled or the connection fails. A Handler calls
// this instead of returning normally when it recognizes an SSE request
// (e.g. by Accept: text/event-stream), per spec §4.11.
func (s *Server) ServeSSE(ctx context.Context, bw *bufio.Writer, topic string, keepaliveInterval time.Duration) error {
	conn := &sseConnWriter{w: sse.NewWriter(bw), closed: make(chan struct{})}
	if !s.SSE.Register(topic, conn) {
		return errSSETopicFull
	}
	defer s.SSE.Unregister(conn)

	if keepaliveInterval <= 0 {
		keepaliveInterval = 15 * time.Second
	}
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.closed:
			return nil
		case <-ticker.C:
			if err := conn.w.WriteKeepalive(); err != nil {
				return err
			}
		}
	}
}
