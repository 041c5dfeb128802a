// Package scheduler implements the bounded FIFO queue + fixed worker pool
// of spec §4.10: a process-global admission point between accepted
// connections and the handlers that serve them.
//
// Grounded on dgrr-http2's goroutine-per-stream dispatch generalized into
// an explicit, bounded pool (the spec requires admission control the
// teacher's unbounded per-stream goroutine model does not have).
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueFull is returned by Submit when the queue is at capacity (spec
// §4.10: "reject immediately with a service unavailable signal").
var ErrQueueFull = errors.New("scheduler: queue is full")

// DefaultRequestTimeout is the spec §4.10/§6 default deadline.
const DefaultRequestTimeout = 5 * time.Second

// Task is one unit of work submitted to the scheduler.
type Task struct {
	Arrival  time.Time
	Deadline time.Time
	Run      func(ctx context.Context)

	mu        sync.Mutex
	cancelled bool
}

// Cancel marks the task cancelled; a worker that dequeues it afterward
// skips execution (spec §4.10: "connection close cancels queued items").
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
}

func (t *Task) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Scheduler is a bounded FIFO queue fronting a fixed pool of workers.
type Scheduler struct {
	queue   chan *Task
	workers int
	timeout time.Duration

	onTimeout func(*Task)

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a Scheduler with the given queue capacity and worker count.
// onTimeout, if non-nil, is invoked (off the worker's hot path) when a
// dequeued task is discovered to be past its deadline.
func New(queueLimit, workerCount int, requestTimeout time.Duration, onTimeout func(*Task)) *Scheduler {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	s := &Scheduler{
		queue:     make(chan *Task, queueLimit),
		workers:   workerCount,
		timeout:   requestTimeout,
		onTimeout: onTimeout,
		stopCh:    make(chan struct{}),
	}
	s.start()
	return s
}

func (s *Scheduler) start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case task, ok := <-s.queue:
			if !ok {
				return
			}
			s.execute(task)
		}
	}
}

func (s *Scheduler) execute(task *Task) {
	if task.isCancelled() {
		return
	}
	if !task.Deadline.IsZero() && time.Now().After(task.Deadline) {
		if s.onTimeout != nil {
			s.onTimeout(task)
		}
		return
	}

	ctx, cancel := context.WithDeadline(context.Background(), task.Deadline)
	defer cancel()
	task.Run(ctx)
}

// Submit enqueues fn for execution, returning ErrQueueFull immediately if
// the queue is at capacity (spec §4.10 admission semantics). The returned
// *Task can be cancelled if its owning connection closes before it runs.
func (s *Scheduler) Submit(fn func(ctx context.Context)) (*Task, error) {
	now := time.Now()
	task := &Task{
		Arrival:  now,
		Deadline: now.Add(s.timeout),
		Run:      fn,
	}
	select {
	case s.queue <- task:
		return task, nil
	default:
		return nil, ErrQueueFull
	}
}

// Shutdown stops the workers and waits for in-flight tasks to finish;
// queued-but-undequeued tasks are abandoned. Submit does not check for
// shutdown: a task it queues afterwards is never run.
func (s *Scheduler) Shutdown() {
	close(s.stopCh)
	s.wg.Wait()
}

// QueueLen reports the number of tasks currently queued (not yet
// dequeued by a worker), for metrics.
func (s *Scheduler) QueueLen() int { return len(s.queue) }
