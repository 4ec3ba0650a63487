// Package dispatch runs frame deliveries on the consumer's execution context.
package dispatch

import (
	"container/heap"
	"context"
	"errors"
	"sync"
)

// ErrLoopClosed is returned when posting to a loop that has quit.
var ErrLoopClosed = errors.New("dispatch: loop closed")

// Priority orders pending tasks. Lower values run first.
type Priority int

const (
	PriorityHigh    Priority = -100
	PriorityDefault Priority = 0
	PriorityIdle    Priority = 200
	PriorityLow     Priority = 300
)

// Context is an execution context that runs posted tasks serially.
type Context interface {
	Post(task func()) error
}

// PriorityContext is a Context that also takes a priority per task.
type PriorityContext interface {
	Context
	PostPriority(p Priority, task func()) error
}

type task struct {
	prio Priority
	seq  uint64
	fn   func()
}

type taskQueue []task

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].prio != q[j].prio {
		return q[i].prio < q[j].prio
	}
	return q[i].seq < q[j].seq
}
func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *taskQueue) Push(x any)   { *q = append(*q, x.(task)) }
func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = task{}
	*q = old[:n-1]
	return t
}

// Loop is a serial task executor owned by one goroutine, the consumer's main
// loop. Tasks run in priority order, FIFO within a priority, one at a time.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  taskQueue
	seq    uint64
	closed bool
}

// NewLoop returns an idle loop. Tasks run once Run is called.
func NewLoop() *Loop {
	l := &Loop{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Post queues task at PriorityDefault.
func (l *Loop) Post(task func()) error {
	return l.PostPriority(PriorityDefault, task)
}

// PostPriority queues fn at priority p. It never blocks.
func (l *Loop) PostPriority(p Priority, fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLoopClosed
	}
	l.seq++
	heap.Push(&l.queue, task{prio: p, seq: l.seq, fn: fn})
	l.cond.Signal()
	return nil
}

// Run executes tasks on the calling goroutine until Quit is called or ctx is
// done. After Quit, tasks already queued still run before Run returns.
// Returns nil after Quit and ctx.Err() on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stop()

	for {
		l.mu.Lock()
		for l.queue.Len() == 0 && !l.closed && ctx.Err() == nil {
			l.cond.Wait()
		}
		if err := ctx.Err(); err != nil {
			l.mu.Unlock()
			return err
		}
		if l.queue.Len() == 0 {
			// closed and drained
			l.mu.Unlock()
			return nil
		}
		t := heap.Pop(&l.queue).(task)
		l.mu.Unlock()

		t.fn()
	}
}

// RunPending runs the tasks queued at the time of the call in priority order
// on the calling goroutine and returns how many ran. Tasks they queue wait for
// the next call. It is meant for consumers that drive the loop from their own
// frame clock instead of calling Run.
func (l *Loop) RunPending() int {
	l.mu.Lock()
	batch := make([]task, 0, l.queue.Len())
	for l.queue.Len() > 0 {
		batch = append(batch, heap.Pop(&l.queue).(task))
	}
	l.mu.Unlock()

	for _, t := range batch {
		t.fn()
	}
	return len(batch)
}

// Quit stops the loop from accepting tasks and wakes Run. Idempotent.
func (l *Loop) Quit() {
	l.mu.Lock()
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Closed reports whether Quit has been called.
func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}
