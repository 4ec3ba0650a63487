package sink

import (
	"time"
)

// idleThreshold marks a started sink idle when nothing was delivered for
// this long. At 30fps that is ~900 missing frames; a paused pipeline shows
// up here too.
const idleThreshold = 30 * time.Second

// Stats returns a snapshot of the element counters. Safe to call from any
// goroutine while rendering.
func (e *Element) Stats() Stats {
	last := time.Unix(0, e.lastDelivered.Load())
	state := e.State()

	return Stats{
		State:           state,
		Format:          e.CurrentCaps(),
		Rendered:        e.rendered.Load(),
		Delivered:       e.delivered.Load(),
		Converted:       e.converted.Load(),
		Canceled:        e.canceled.Load(),
		Dropped:         e.dropped.Load(),
		FlowErrors:      e.flowErrors.Load(),
		Flushing:        e.flushing.Load(),
		Pending:         e.box.Pending(),
		InFlight:        e.box.InFlight(),
		LastDeliveredAt: last,
		IsIdle:          state != Stopped && time.Since(last) > idleThreshold,
		FPS:             e.window.Stats(),
	}
}
