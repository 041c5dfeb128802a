package sse

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	name   string
	fail   bool
	closed bool
	recv   []Event
}

func (f *fakeConn) Send(ev Event) error {
	if f.fail {
		return errors.New("boom")
	}
	f.recv = append(f.recv, ev)
	return nil
}
func (f *fakeConn) Close() { f.closed = true }

func TestRegisterAndBroadcast(t *testing.T) {
	b := New(10)
	a := &fakeConn{name: "a"}
	c := &fakeConn{name: "c"}

	require.True(t, b.Register("topic1", a))
	require.True(t, b.Register("topic1", c))

	n := b.Broadcast("topic1", Event{Data: []string{"hello"}})
	require.Equal(t, 2, n)
	require.Len(t, a.recv, 1)
	require.Len(t, c.recv, 1)
}

func TestRegisterRespectsCap(t *testing.T) {
	b := New(1)
	require.True(t, b.Register("t", &fakeConn{}))
	require.False(t, b.Register("t", &fakeConn{}))
}

func TestFailingSendClosesRecipientNotBroadcast(t *testing.T) {
	b := New(10)
	bad := &fakeConn{fail: true}
	good := &fakeConn{}
	b.Register("t", bad)
	b.Register("t", good)

	n := b.Broadcast("t", Event{Data: []string{"x"}})
	require.Equal(t, 2, n)
	require.True(t, bad.closed)
	require.Len(t, good.recv, 1)
	require.Equal(t, 1, b.Count("t"))
}

func TestUnregisterGarbageCollectsEmptyTopic(t *testing.T) {
	b := New(10)
	a := &fakeConn{}
	b.Register("t", a)
	b.Unregister(a)
	require.NotContains(t, b.Topics(), "t")
}

func TestWriterRejectsEmptyData(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bufio.NewWriter(&buf))
	err := w.WriteEvent(Event{})
	require.ErrorIs(t, err, ErrEmptyData)
}

func TestWriterFormatsMultiLineData(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bufio.NewWriter(&buf))
	err := w.WriteEvent(Event{Name: "update", ID: "1", Data: []string{"line1", "line2"}})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "event: update\n")
	require.Contains(t, out, "id: 1\n")
	require.Contains(t, out, "data: line1\n")
	require.Contains(t, out, "data: line2\n")
}
