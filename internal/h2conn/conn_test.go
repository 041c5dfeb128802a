package h2conn

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/domsolutions/corehttp/internal/frame"
	"github.com/domsolutions/corehttp/internal/hpack"
)

// loopback lets the test drive a Connection's Serve loop over an in-memory
// pipe without a real net.Conn.
type loopback struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (l *loopback) Read(p []byte) (int, error)  { return l.in.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.out.Write(p) }

func newClientPreface() []byte {
	b := []byte(Preface)
	b = frame.NewCodec().Encode(b, frame.NewSettings(nil, false))
	return b
}

func TestServeRejectsBadPreface(t *testing.T) {
	rw := &loopback{in: bytes.NewBufferString("GET / HTTP/1.1\r\n\r\n"), out: &bytes.Buffer{}}
	c := New(rw, Config{})
	err := c.Serve(context.Background())
	require.Error(t, err)
	var cerr *ConnError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ProtocolError, cerr.Code)
}

func TestServeHandshakeSendsSettings(t *testing.T) {
	in := bytes.NewBuffer(newClientPreface())
	rw := &loopback{in: in, out: &bytes.Buffer{}}

	done := make(chan error, 1)
	c := New(rw, Config{})
	go func() { done <- c.Serve(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
	}

	fr, _, ok := frame.NewCodec().Parse(rw.out.Bytes())
	require.True(t, ok)
	require.Equal(t, frame.TypeSettings, fr.Type)
}

func TestHandlerInvokedOnEndStream(t *testing.T) {
	enc := hpack.NewEncoder()
	var block []byte
	block = enc.EncodeField(block, hpack.HeaderField{Name: ":method", Value: "GET"})
	block = enc.EncodeField(block, hpack.HeaderField{Name: ":path", Value: "/"})

	payload := bytes.NewBuffer(newClientPreface())
	codec := frame.NewCodec()
	payload.Write(codec.Encode(nil, frame.NewHeaders(1, block, true, true)))

	rw := &loopback{in: payload, out: &bytes.Buffer{}}

	called := make(chan *Request, 1)
	c := New(rw, Config{Handler: func(ctx context.Context, req *Request, w ResponseWriter) {
		called <- req
		w.WriteHeaders([]hpack.HeaderField{{Name: ":status", Value: "200"}}, true)
	}})

	done := make(chan error, 1)
	go func() { done <- c.Serve(context.Background()) }()

	select {
	case req := <-called:
		require.Equal(t, uint32(1), req.StreamID)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}
