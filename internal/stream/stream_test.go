package stream

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlowControlArithmeticExact(t *testing.T) {
	s := New(1, 10000)

	var wg sync.WaitGroup
	var sent, credited int64

	for i := 0; i < 50; i++ {
		wg.Add(1)
		n := int64(rand.Intn(20))
		sent += n
		go func(n int64) {
			defer wg.Done()
			s.SendData(n)
		}(n)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		k := int32(rand.Intn(20))
		credited += int64(k)
		go func(k int32) {
			defer wg.Done()
			s.UpdateSenderWindow(k)
		}(k)
	}
	wg.Wait()

	require.Equal(t, 10000-sent+credited, s.SenderWindow())
}

func TestZeroIncrementAbsorbed(t *testing.T) {
	s := New(1, 100)
	s.UpdateSenderWindow(0)
	require.EqualValues(t, 100, s.SenderWindow())
}

func TestIdempotentClose(t *testing.T) {
	s := New(1, 100)
	s.Open()
	s.Close()
	require.True(t, s.IsClosed())
	s.Close()
	require.True(t, s.IsClosed())
}

func TestStateTransitions(t *testing.T) {
	s := New(1, 100)
	require.Equal(t, Idle, s.State())

	s.Open()
	require.Equal(t, Open, s.State())

	s.CloseLocal()
	require.Equal(t, HalfClosedLocal, s.State())

	s.CloseRemote()
	require.Equal(t, Closed, s.State())
}

func TestTableHighWaterMark(t *testing.T) {
	tbl := NewTable(65535)

	_, created, ok := tbl.Open(1, true)
	require.True(t, ok)
	require.True(t, created)

	_, created, ok = tbl.Open(3, true)
	require.True(t, ok)
	require.True(t, created)

	// a new stream arriving below the high-water mark is a protocol error.
	_, _, ok = tbl.Open(1, true)
	require.True(t, ok) // existing stream, found not re-created

	_, _, ok = tbl.Open(1, true)
	require.True(t, ok)

	// stream 3 already seen; a brand-new id of 2 (never seen, < hwm 3) must fail.
	tbl.Delete(3)
	_, _, ok = tbl.Open(2, true)
	require.False(t, ok)
}

func TestDependencyAsIndexNoCycleLeak(t *testing.T) {
	tbl := NewTable(65535)
	a, _, _ := tbl.Open(1, true)
	b, _, _ := tbl.Open(3, true)

	a.SetDependency(b.ID(), false)
	b.SetDependency(a.ID(), false)

	dep, _ := a.Dependency()
	require.Equal(t, b.ID(), dep)
}
