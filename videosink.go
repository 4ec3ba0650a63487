package videosink

import (
	"github.com/cbetz421/gst-wk/internal/convert"
	"github.com/cbetz421/gst-wk/internal/dispatch"
	"github.com/cbetz421/gst-wk/internal/format"
	"github.com/cbetz421/gst-wk/internal/frame"
	"github.com/cbetz421/gst-wk/internal/framebox"
	"github.com/cbetz421/gst-wk/internal/sink"
)

// Frame is a reference-counted video buffer with timing metadata.
type Frame = frame.Frame

// ClockTime is a pipeline timestamp in nanoseconds.
type ClockTime = frame.ClockTime

// ClockTimeNone marks an unknown timestamp.
const ClockTimeNone = frame.ClockTimeNone

// BufferFlags are per-buffer flags.
type BufferFlags = frame.BufferFlags

// NewFrame wraps data in a frame holding one reference. release runs when the
// last reference is dropped and may be nil.
func NewFrame(data []byte, release func()) *Frame {
	return frame.New(data, release)
}

// Format is the negotiated pixel format, size, aspect ratio and stride.
type Format = format.Descriptor

// PixelFormat is the pixel layout of a negotiated stream.
type PixelFormat = format.PixelFormat

// Caps is a parsed caps description.
type Caps = format.Caps

// ParseCaps parses the pipeline's caps serialization.
func ParseCaps(s string) (Caps, error) {
	return format.ParseCaps(s)
}

// AlphaPosition is the byte position of alpha in 32-bit pixels.
type AlphaPosition = convert.AlphaPosition

const (
	AlphaNative = convert.AlphaNative
	AlphaLast   = convert.AlphaLast
	AlphaFirst  = convert.AlphaFirst
)

// FlowResult is the outcome of Render.
type FlowResult = sink.FlowResult

const (
	FlowOK       = sink.FlowOK
	FlowError    = sink.FlowError
	FlowFlushing = sink.FlowFlushing
)

// State is the sink lifecycle state.
type State = sink.State

const (
	Stopped  = sink.Stopped
	Started  = sink.Started
	Canceled = sink.Canceled
)

// Config configures a Sink. The zero value is usable.
type Config = sink.Config

// Stats is a snapshot of sink counters.
type Stats = sink.Stats

// FrameHandler receives delivered frames on the consumer context.
type FrameHandler = dispatch.Handler

// DispatchContext runs delivery tasks serially on the consumer's side.
type DispatchContext = dispatch.Context

// Loop is a priority task loop usable as DispatchContext.
type Loop = dispatch.Loop

// NewLoop returns a Loop. Run it on the consumer goroutine.
func NewLoop() *Loop {
	return dispatch.NewLoop()
}

// Converter and Scheduler can replace the built-in conversion and delivery.
type (
	Converter = sink.Converter
	Scheduler = sink.Scheduler
	FrameBox  = framebox.Box
)

var (
	ErrUnsupportedFormat = format.ErrUnsupportedFormat
	ErrInvalidCaps       = format.ErrInvalidCaps
	ErrAllocation        = convert.ErrAllocation
	ErrShortBuffer       = convert.ErrShortBuffer
	ErrCanceled          = framebox.ErrCanceled
	ErrSlotOccupied      = framebox.ErrSlotOccupied
	ErrLoopClosed        = dispatch.ErrLoopClosed
	ErrNotStarted        = sink.ErrNotStarted
	ErrNotNegotiated     = sink.ErrNotNegotiated
	ErrInvalidConfig     = sink.ErrInvalidConfig
)

// Sink is a video sink that premultiplies straight-alpha frames and hands them
// one at a time to a consumer, blocking the streaming thread until each frame
// has been consumed.
type Sink interface {
	// Start moves Stopped to Started and clears cancellation.
	Start() error

	// Stop cancels pending deliveries, forgets the format and moves to Stopped.
	Stop() error

	// Unlock makes a blocked Render return and fails future deliveries fast.
	Unlock()

	// UnlockStop clears the cancellation set by Unlock.
	UnlockStop()

	// Negotiate selects the rendering format from candidate caps.
	Negotiate(candidates Caps) (Format, error)

	// SetCaps parses caps and negotiates from them.
	SetCaps(caps string) (Format, error)

	// ProposeAllocation takes the format from allocation query caps.
	ProposeAllocation(caps string) (Format, error)

	// Render delivers f and blocks until it is consumed or the sink is canceled.
	Render(f *Frame) (FlowResult, error)

	// Preroll behaves exactly like Render.
	Preroll(f *Frame) (FlowResult, error)

	// Attach sets the consumer. Deliveries are posted to ctx.
	Attach(ctx DispatchContext, h FrameHandler) error

	// Detach removes the consumer; later frames are dropped.
	Detach()

	// CurrentFormat returns the negotiated format.
	CurrentFormat() (Format, bool)

	// CurrentCaps returns the negotiated format as caps.
	CurrentCaps() string

	// SetTraceFrames toggles per-buffer debug logging.
	SetTraceFrames(on bool)

	State() State
	Stats() Stats
}

// New validates cfg and returns a stopped Sink.
func New(cfg Config) (Sink, error) {
	e, err := sink.New(cfg)
	if err != nil {
		return nil, err
	}
	return e, nil
}
