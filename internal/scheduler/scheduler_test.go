package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmitExecutesTask(t *testing.T) {
	s := New(10, 2, time.Second, nil)
	defer s.Shutdown()

	var ran int32
	var wg sync.WaitGroup
	wg.Add(1)
	_, err := s.Submit(func(ctx context.Context) {
		atomic.AddInt32(&ran, 1)
		wg.Done()
	})
	require.NoError(t, err)
	wg.Wait()
	require.EqualValues(t, 1, ran)
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	s := New(1, 0, time.Second, nil) // no workers drain the queue
	defer s.Shutdown()

	_, err := s.Submit(func(ctx context.Context) {})
	require.NoError(t, err)

	_, err = s.Submit(func(ctx context.Context) {})
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestCancelledTaskSkipped(t *testing.T) {
	s := New(10, 1, time.Second, nil)
	defer s.Shutdown()

	block := make(chan struct{})
	_, err := s.Submit(func(ctx context.Context) { <-block })
	require.NoError(t, err)

	var ran int32
	task, err := s.Submit(func(ctx context.Context) { atomic.AddInt32(&ran, 1) })
	require.NoError(t, err)
	task.Cancel()

	close(block)
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt32(&ran))
}

func TestTimeoutSkipsExecution(t *testing.T) {
	var timedOut int32
	s := New(10, 1, time.Millisecond, func(task *Task) {
		atomic.AddInt32(&timedOut, 1)
	})
	defer s.Shutdown()

	// occupy the only worker so the next task is still queued past its deadline
	block := make(chan struct{})
	_, err := s.Submit(func(ctx context.Context) { <-block })
	require.NoError(t, err)

	_, err = s.Submit(func(ctx context.Context) {})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	close(block)
	time.Sleep(50 * time.Millisecond)
	require.GreaterOrEqual(t, atomic.LoadInt32(&timedOut), int32(1))
}
