package player

import (
	"context"
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"
)

// monitor polls the playbin bus until end of stream, an error or cancellation.
//
//   - EOS returns nil.
//   - Errors are classified and returned as *PlaybackError.
//   - State changes of the playbin itself are logged; reaching PLAYING resets
//     the retry budget. Those of internal elements are ignored.
//   - Buffering pauses playback below 100% and resumes it at 100%.
//
// Cancellation of ctx returns ctx.Err().
func (p *Player) monitor(ctx context.Context) error {
	bus := p.playbin.GetBus()
	if bus == nil {
		return fmt.Errorf("player: playbin has no bus")
	}
	name := p.playbin.GetName()
	buffering := false

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("player: context cancelled, stopping bus monitor")
			return ctx.Err()
		default:
		}

		msg := bus.TimedPop(pollInterval)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			p.logger.Info("player: end of stream",
				"uri", p.URI(),
				"rendered", p.sink.Stats().Rendered,
			)
			return nil

		case gst.MessageError:
			gerr := msg.ParseError()
			perr := &PlaybackError{
				URI:      p.URI(),
				Source:   msg.Source(),
				Message:  gerr.Error(),
				Debug:    gerr.DebugString(),
				Category: ClassifyGError(gerr),
			}
			p.logger.Error("player: pipeline error",
				"error", perr.Message,
				"debug", perr.Debug,
				"source", perr.Source,
				"category", perr.Category.String(),
				"uri", perr.URI,
				"retries", p.retry.Total(),
			)
			return perr

		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			p.logger.Warn("player: pipeline warning",
				"warning", gerr.Error(),
				"source", msg.Source(),
			)

		case gst.MessageStateChanged:
			if msg.Source() != name {
				continue
			}
			old, current := msg.ParseStateChanged()
			p.logger.Debug("player: state changed", "from", old.String(), "to", current.String())
			if current == gst.StatePlaying {
				p.retry.Reset()
			}

		case gst.MessageBuffering:
			percent := msg.ParseBuffering()
			switch {
			case percent < 100 && !buffering:
				buffering = true
				p.logger.Debug("player: buffering", "percent", percent)
				if err := changeState(p.playbin, gst.StatePaused); err != nil {
					p.logger.Warn("player: pause for buffering failed", "error", err)
				}
			case percent >= 100 && buffering:
				buffering = false
				p.logger.Debug("player: buffering done")
				if err := changeState(p.playbin, gst.StatePlaying); err != nil {
					p.logger.Warn("player: resume after buffering failed", "error", err)
				}
			}

		default:
			p.logger.Debug("player: unhandled message", "type", msg.TypeName())
		}
	}
}
