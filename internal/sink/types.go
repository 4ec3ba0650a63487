package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cbetz421/gst-wk/internal/convert"
	"github.com/cbetz421/gst-wk/internal/dispatch"
	"github.com/cbetz421/gst-wk/internal/format"
	"github.com/cbetz421/gst-wk/internal/fps"
	"github.com/cbetz421/gst-wk/internal/frame"
	"github.com/cbetz421/gst-wk/internal/framebox"
)

var (
	// ErrNotStarted is returned by Render before Start.
	ErrNotStarted = errors.New("videosink: render before start")

	// ErrNotNegotiated is returned by Render when no format has been negotiated.
	ErrNotNegotiated = errors.New("videosink: no negotiated format")

	// ErrInvalidConfig is returned by New for a config that fails validation.
	ErrInvalidConfig = errors.New("videosink: invalid config")
)

// FlowResult is the outcome of Render reported back to the pipeline.
type FlowResult int

const (
	// FlowOK means the frame was handled, including when it was dropped
	// because the sink is canceled.
	FlowOK FlowResult = iota
	// FlowError means this frame could not be handled. Later frames are unaffected.
	FlowError
	// FlowFlushing means the consumer context no longer accepts deliveries.
	FlowFlushing
)

func (r FlowResult) String() string {
	switch r {
	case FlowOK:
		return "ok"
	case FlowError:
		return "error"
	case FlowFlushing:
		return "flushing"
	default:
		return fmt.Sprintf("FlowResult(%d)", int(r))
	}
}

// State is the element lifecycle state. Canceled is a sub-state of Started.
type State int

const (
	Stopped State = iota
	Started
	Canceled
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Started:
		return "started"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Converter produces premultiplied copies of straight-alpha frames.
type Converter interface {
	Convert(src *frame.Frame, d format.Descriptor) (*frame.Frame, error)
}

// Scheduler posts the delivery of the frame stored in box to the consumer.
type Scheduler interface {
	Schedule(box *framebox.Box, h dispatch.Handler) error
}

// Config configures an Element. The zero value is usable.
type Config struct {
	// Logger receives lifecycle and error logs. nil uses slog.Default().
	Logger *slog.Logger

	// AlphaPosition is the byte layout of alpha-bearing frames. The zero
	// value resolves to the host's native layout.
	AlphaPosition convert.AlphaPosition

	// TextureUpload advertises that the consumer can take GL texture backed
	// frames, which are preferred during negotiation. The sink proposes no
	// allocation metas or pools upstream, so texture upload caps only
	// negotiate when an upstream element attaches the upload meta itself.
	TextureUpload bool

	// MaxFrameBytes bounds converted frame allocations. Zero means unbounded.
	MaxFrameBytes int

	// PoolDepth is the number of spare conversion buffers kept. Zero means
	// convert.DefaultPoolDepth.
	PoolDepth int

	// TraceFrames logs every rendered buffer's metadata at debug level.
	TraceFrames bool

	// Converter replaces the pooled premultiplying converter.
	Converter Converter

	// Scheduler replaces the Dispatcher built on Attach.
	Scheduler Scheduler
}

// Validate checks the config fail-fast.
func (c Config) Validate() error {
	if !c.AlphaPosition.Valid() {
		return fmt.Errorf("%w: alpha position %s", ErrInvalidConfig, c.AlphaPosition)
	}
	if c.MaxFrameBytes < 0 {
		return fmt.Errorf("%w: max frame bytes must be >= 0, got %d", ErrInvalidConfig, c.MaxFrameBytes)
	}
	if c.PoolDepth < 0 {
		return fmt.Errorf("%w: pool depth must be >= 0, got %d", ErrInvalidConfig, c.PoolDepth)
	}
	return nil
}

// Stats is a snapshot of element counters.
type Stats struct {
	State  State
	Format string // current caps, empty when not negotiated

	Rendered   uint64 // Render calls
	Delivered  uint64 // frames handed to the consumer
	Converted  uint64 // frames premultiplied
	Canceled   uint64 // frames dropped because the sink was canceled
	Dropped    uint64 // frames dropped because no consumer was attached
	FlowErrors uint64 // Render calls that returned FlowError
	Flushing   uint64 // Render calls that returned FlowFlushing

	Pending  bool // a frame is stored and not yet taken by the consumer
	InFlight int  // frames taken by the consumer and not yet released

	LastDeliveredAt time.Time
	// IsIdle is set once a started sink has not delivered for idleThreshold.
	IsIdle bool

	// FPS covers the most recent deliveries.
	FPS fps.Stats
}
