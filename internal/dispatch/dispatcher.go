package dispatch

import (
	"log/slog"
	"sync/atomic"

	"github.com/cbetz421/gst-wk/internal/frame"
	"github.com/cbetz421/gst-wk/internal/framebox"
)

// Handler receives each delivered frame on the consumer context. The frame is
// only valid until the handler returns; call Ref to keep it longer.
type Handler func(f *frame.Frame)

// Dispatcher schedules one delivery task per stored frame.
type Dispatcher struct {
	ctx    Context
	logger *slog.Logger

	scheduled atomic.Uint64
	delivered atomic.Uint64
	empty     atomic.Uint64
	panics    atomic.Uint64
}

// DispatcherStats is a snapshot of delivery counters.
type DispatcherStats struct {
	Scheduled uint64 // tasks posted
	Delivered uint64 // handler invocations that returned normally
	Empty     uint64 // tasks that found the box empty or canceled
	Panics    uint64 // handler invocations that panicked
}

// NewDispatcher returns a Dispatcher posting to ctx. A nil logger uses slog.Default().
func NewDispatcher(ctx Context, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{ctx: ctx, logger: logger}
}

// Schedule posts a task at default priority that takes the frame out of box,
// hands it to h and finishes it. The producer blocked on box is woken whether
// or not a frame was delivered.
func (d *Dispatcher) Schedule(box *framebox.Box, h Handler) error {
	run := func() { d.deliver(box, h) }

	var err error
	if pc, ok := d.ctx.(PriorityContext); ok {
		err = pc.PostPriority(PriorityDefault, run)
	} else {
		err = d.ctx.Post(run)
	}
	if err != nil {
		return err
	}
	d.scheduled.Add(1)
	return nil
}

func (d *Dispatcher) deliver(box *framebox.Box, h Handler) {
	f := box.TakeForDispatch()
	defer box.Finish(f)

	if f == nil {
		d.empty.Add(1)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.logger.Error("dispatch: frame handler panicked",
				"panic", r,
				"trace_id", f.TraceID,
			)
		}
	}()

	h(f)
	d.delivered.Add(1)
}

// Stats returns a snapshot of the delivery counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Scheduled: d.scheduled.Load(),
		Delivered: d.delivered.Load(),
		Empty:     d.empty.Load(),
		Panics:    d.panics.Load(),
	}
}
