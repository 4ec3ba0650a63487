// Package framebox implements the single-slot handoff between the streaming
// thread that renders frames and the consumer context that displays them.
//
// One mutex guards the slot, the cancellation flag and the in-flight count.
// One condition variable carries both "frame released" and "canceled"
// wakeups, and every waiter re-checks the state after waking.
package framebox

import (
	"errors"
	"sync"

	"github.com/cbetz421/gst-wk/internal/frame"
)

var (
	// ErrCanceled is returned by Store while the box is canceled.
	ErrCanceled = errors.New("framebox: canceled")

	// ErrSlotOccupied is returned by Store when a frame is already pending.
	ErrSlotOccupied = errors.New("framebox: slot occupied")
)

// Outcome is the reason WaitForRelease returned.
type Outcome int

const (
	// Released means the frame was delivered and the consumer is done with it.
	Released Outcome = iota
	// Canceled means the box was canceled before delivery completed.
	Canceled
)

func (o Outcome) String() string {
	if o == Canceled {
		return "canceled"
	}
	return "released"
}

// Box is a single-slot frame mailbox with cancellation.
//
// Reference discipline:
//   - Store takes one reference on the frame
//   - that reference is dropped exactly once, by Finish after delivery or by
//     CancelAndDrain if the frame was never taken
//
// Thread-safety: all methods are safe for concurrent use. Store and
// WaitForRelease are expected from a single producer at a time.
type Box struct {
	mu   sync.Mutex
	cond *sync.Cond

	frame    *frame.Frame // pending frame (nil = empty)
	canceled bool
	inFlight int // frames taken but not yet finished
}

// New returns an empty, uncanceled box.
func New() *Box {
	b := &Box{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Store places f in the empty slot and takes a reference on it.
//
// Fails with ErrCanceled while canceled and with ErrSlotOccupied when a frame
// is already pending. Store does not notify anyone; scheduling the delivery is
// the caller's job.
func (b *Box) Store(f *frame.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.canceled {
		return ErrCanceled
	}
	if b.frame != nil {
		return ErrSlotOccupied
	}

	b.frame = f.Ref()
	return nil
}

// WaitForRelease blocks until the stored frame has been taken and finished,
// or until the box is canceled. The lock is released while blocked.
//
// Cancellation wins as soon as it is observed: a canceled wait does not wait
// for an in-flight delivery to finish.
func (b *Box) WaitForRelease() Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	for !b.canceled && (b.frame != nil || b.inFlight > 0) {
		b.cond.Wait()
	}

	if b.canceled {
		return Canceled
	}
	return Released
}

// TakeForDispatch removes and returns the pending frame, or nil when the slot
// is empty or the box is canceled. A returned frame counts as in flight until
// passed to Finish.
func (b *Box) TakeForDispatch() *frame.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.canceled || b.frame == nil {
		return nil
	}

	f := b.frame
	b.frame = nil
	b.inFlight++
	b.cond.Broadcast()
	return f
}

// Finish ends the delivery of f obtained from TakeForDispatch: it drops the
// box's reference and wakes the producer. A nil f only wakes waiters.
//
// The reference is dropped before the producer can observe the release, so a
// producer returning from WaitForRelease never races with the release hook.
func (b *Box) Finish(f *frame.Frame) {
	if f != nil {
		f.Unref()
	}

	b.mu.Lock()
	if f != nil {
		b.inFlight--
	}
	b.cond.Broadcast()
	b.mu.Unlock()
}

// CancelAndDrain marks the box canceled, drops any pending frame and wakes
// all waiters. It never waits for an in-flight delivery. Idempotent.
func (b *Box) CancelAndDrain() {
	b.mu.Lock()
	b.canceled = true
	f := b.frame
	b.frame = nil
	b.cond.Broadcast()
	b.mu.Unlock()

	if f != nil {
		f.Unref()
	}
}

// ClearCancellation re-arms the box. Callers must only do this with no
// producer blocked in WaitForRelease.
func (b *Box) ClearCancellation() {
	b.mu.Lock()
	b.canceled = false
	b.mu.Unlock()
}

// Reclaim removes a pending frame that will never be dispatched and drops the
// box's reference. It reports whether a frame was removed.
func (b *Box) Reclaim() bool {
	b.mu.Lock()
	f := b.frame
	b.frame = nil
	b.cond.Broadcast()
	b.mu.Unlock()

	if f == nil {
		return false
	}
	f.Unref()
	return true
}

// Canceled reports whether the box is canceled.
func (b *Box) Canceled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canceled
}

// Pending reports whether a frame is waiting to be taken.
func (b *Box) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame != nil
}

// InFlight returns the number of taken frames not yet finished.
func (b *Box) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight
}
