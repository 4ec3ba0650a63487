// Package sink implements the video sink state machine: format negotiation,
// the blocking render path and the unlock/unlock-stop cancellation protocol.
package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbetz421/gst-wk/internal/convert"
	"github.com/cbetz421/gst-wk/internal/dispatch"
	"github.com/cbetz421/gst-wk/internal/format"
	"github.com/cbetz421/gst-wk/internal/fps"
	"github.com/cbetz421/gst-wk/internal/frame"
	"github.com/cbetz421/gst-wk/internal/framebox"
)

// fpsWindow is the number of recent deliveries FPS stats are computed over.
const fpsWindow = 64

type consumer struct {
	sched   Scheduler
	handler dispatch.Handler
}

// Element is the pipeline-facing video sink.
//
// Render is called serially by the streaming thread. Start, Stop, Unlock and
// UnlockStop come from the pipeline's state changes and may run concurrently
// with a blocked Render. Deliveries run on the consumer context given to
// Attach.
type Element struct {
	logger *slog.Logger
	prefs  format.Preferences
	conv   Converter
	sched  Scheduler // optional override from Config
	box    *framebox.Box
	trace  atomic.Bool

	mu       sync.Mutex
	started  bool
	active   *format.Descriptor
	source   string // "caps" or "allocation"
	consumer *consumer

	rendered   atomic.Uint64
	delivered  atomic.Uint64
	converted  atomic.Uint64
	canceled   atomic.Uint64
	dropped    atomic.Uint64
	flowErrors atomic.Uint64
	flushing   atomic.Uint64

	lastDelivered atomic.Int64 // unix nanos
	window        *fps.Window
}

// New validates cfg and returns a stopped element.
func New(cfg Config) (*Element, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pos := cfg.AlphaPosition.Resolve()
	conv := cfg.Converter
	if conv == nil {
		conv = convert.NewConverter(convert.NewPoolAllocator(cfg.MaxFrameBytes, cfg.PoolDepth), pos)
	}

	e := &Element{
		logger: logger,
		prefs: format.Preferences{
			TextureUpload: cfg.TextureUpload,
			BigEndian:     pos == convert.AlphaFirst,
		},
		conv:   conv,
		sched:  cfg.Scheduler,
		box:    framebox.New(),
		window: fps.NewWindow(fpsWindow),
	}
	e.trace.Store(cfg.TraceFrames)

	logger.Debug("videosink: created",
		"alpha_position", pos.String(),
		"texture_upload", cfg.TextureUpload,
		"max_frame_bytes", cfg.MaxFrameBytes,
	)
	return e, nil
}

// Start moves Stopped to Started and clears any cancellation.
func (e *Element) Start() error {
	e.box.ClearCancellation()

	e.mu.Lock()
	e.started = true
	e.mu.Unlock()

	e.lastDelivered.Store(time.Now().UnixNano())
	e.logger.Info("videosink: started")
	return nil
}

// Stop cancels any pending delivery, returns to Stopped and forgets the
// negotiated format.
func (e *Element) Stop() error {
	e.box.CancelAndDrain()

	e.mu.Lock()
	e.started = false
	e.active = nil
	e.source = ""
	e.mu.Unlock()

	e.window.Reset()
	e.logger.Info("videosink: stopped")
	return nil
}

// Unlock cancels pending and future deliveries without leaving Started. A
// blocked Render returns promptly. It never waits for an in-flight delivery.
func (e *Element) Unlock() {
	e.box.CancelAndDrain()
	e.logger.Debug("videosink: unlocked")
}

// UnlockStop clears the cancellation set by Unlock.
func (e *Element) UnlockStop() {
	e.box.ClearCancellation()
	e.logger.Debug("videosink: unlock stopped")
}

// Negotiate selects the format to render with from candidates. On failure
// the current format is left unchanged.
func (e *Element) Negotiate(candidates format.Caps) (format.Descriptor, error) {
	d, err := format.Negotiate(candidates, e.prefs)
	if err != nil {
		e.logger.Warn("videosink: negotiation failed", "error", err)
		return format.Descriptor{}, err
	}
	e.setActive(d, "caps")
	return d, nil
}

// SetCaps parses caps and negotiates from them.
func (e *Element) SetCaps(caps string) (format.Descriptor, error) {
	parsed, err := format.ParseCaps(caps)
	if err != nil {
		e.logger.Warn("videosink: invalid caps", "caps", caps, "error", err)
		return format.Descriptor{}, fmt.Errorf("%w: %w", format.ErrUnsupportedFormat, err)
	}
	return e.Negotiate(parsed)
}

// ProposeAllocation derives the format from the caps of an allocation query.
// Whichever of SetCaps and ProposeAllocation succeeded last defines the
// format Render uses.
func (e *Element) ProposeAllocation(caps string) (format.Descriptor, error) {
	d, err := format.NegotiateString(caps, e.prefs)
	if err != nil {
		e.logger.Warn("videosink: allocation query caps rejected", "caps", caps, "error", err)
		return format.Descriptor{}, err
	}
	e.setActive(d, "allocation")
	return d, nil
}

func (e *Element) setActive(d format.Descriptor, source string) {
	e.mu.Lock()
	changed := e.active == nil || *e.active != d
	e.active = &d
	e.source = source
	e.mu.Unlock()

	if changed {
		e.logger.Info("videosink: format negotiated",
			"format", d.Format.String(),
			"width", d.Width,
			"height", d.Height,
			"par", fmt.Sprintf("%d/%d", d.PARNumerator, d.PARDenominator),
			"stride", d.Stride,
			"frame_bytes", d.FrameSize(),
			"source", source,
		)
	}
}

// CurrentFormat returns the negotiated format, if any.
func (e *Element) CurrentFormat() (format.Descriptor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return format.Descriptor{}, false
	}
	return *e.active, true
}

// CurrentCaps returns the negotiated format as caps, or "" when none.
func (e *Element) CurrentCaps() string {
	d, ok := e.CurrentFormat()
	if !ok {
		return ""
	}
	return d.Caps()
}

// State returns the lifecycle state.
func (e *Element) State() State {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()

	switch {
	case !started:
		return Stopped
	case e.box.Canceled():
		return Canceled
	default:
		return Started
	}
}

// SetTraceFrames toggles per-buffer debug logging.
func (e *Element) SetTraceFrames(on bool) {
	e.trace.Store(on)
}

// TraceFrames reports whether per-buffer debug logging is on.
func (e *Element) TraceFrames() bool {
	return e.trace.Load()
}

// Attach registers the consumer. Deliveries are posted to ctx and handed to h.
// A previous consumer is replaced.
func (e *Element) Attach(ctx dispatch.Context, h dispatch.Handler) error {
	if h == nil {
		return errors.New("videosink: nil frame handler")
	}
	sched := e.sched
	if sched == nil {
		if ctx == nil {
			return errors.New("videosink: nil dispatch context")
		}
		sched = dispatch.NewDispatcher(ctx, e.logger)
	}

	c := &consumer{sched: sched, handler: e.observe(h)}

	e.mu.Lock()
	replaced := e.consumer != nil
	e.consumer = c
	e.mu.Unlock()

	e.logger.Info("videosink: consumer attached", "replaced", replaced)
	return nil
}

// Detach removes the consumer. Frames rendered afterwards are dropped.
func (e *Element) Detach() {
	e.mu.Lock()
	e.consumer = nil
	e.mu.Unlock()
	e.logger.Info("videosink: consumer detached")
}

// observe wraps h with delivery accounting. It runs on the consumer context.
func (e *Element) observe(h dispatch.Handler) dispatch.Handler {
	return func(f *frame.Frame) {
		h(f)
		now := time.Now()
		e.delivered.Add(1)
		e.lastDelivered.Store(now.UnixNano())
		e.window.Add(now)
	}
}

// Render hands f to the consumer and blocks until the consumer is done with
// it or the sink is canceled.
//
// Steps:
//  1. canceled: return FlowOK without touching f
//  2. resolve the negotiated format (FlowError when missing)
//  3. premultiply into a new frame for straight-alpha formats
//  4. store into the box (canceled in between: FlowOK)
//  5. schedule delivery on the consumer context
//  6. wait for release or cancellation, both FlowOK
//
// The caller keeps its reference on f.
func (e *Element) Render(f *frame.Frame) (FlowResult, error) {
	e.rendered.Add(1)

	if e.box.Canceled() {
		e.canceled.Add(1)
		return FlowOK, nil
	}

	e.mu.Lock()
	started, active, cons := e.started, e.active, e.consumer
	e.mu.Unlock()

	if !started {
		return e.fail(f, ErrNotStarted)
	}
	if active == nil || !active.Valid() {
		return e.fail(f, ErrNotNegotiated)
	}
	d := *active

	if e.trace.Load() {
		e.logger.Debug("videosink: render", "buffer", f.Describe(), "format", d.Format.String(), "trace_id", f.TraceID)
	}

	out := f
	if d.Format.NeedsPremultiply() {
		conv, err := e.conv.Convert(f, d)
		if err != nil {
			return e.fail(f, fmt.Errorf("videosink: premultiply: %w", err))
		}
		defer conv.Unref()
		e.converted.Add(1)
		out = conv
	}

	if cons == nil {
		e.dropped.Add(1)
		return FlowOK, nil
	}

	if err := e.box.Store(out); err != nil {
		if errors.Is(err, framebox.ErrCanceled) {
			e.canceled.Add(1)
			return FlowOK, nil
		}
		return e.fail(f, err)
	}

	if err := cons.sched.Schedule(e.box, cons.handler); err != nil {
		e.box.Reclaim()
		if errors.Is(err, dispatch.ErrLoopClosed) {
			e.flushing.Add(1)
			e.logger.Debug("videosink: consumer context closed", "trace_id", f.TraceID)
			return FlowFlushing, err
		}
		return e.fail(f, fmt.Errorf("videosink: schedule delivery: %w", err))
	}

	if e.box.WaitForRelease() == framebox.Canceled {
		e.canceled.Add(1)
	}
	return FlowOK, nil
}

// Preroll handles the first frame before playback starts, exactly like Render.
func (e *Element) Preroll(f *frame.Frame) (FlowResult, error) {
	return e.Render(f)
}

func (e *Element) fail(f *frame.Frame, err error) (FlowResult, error) {
	e.flowErrors.Add(1)
	e.logger.Error("videosink: render failed", "error", err, "trace_id", f.TraceID)
	return FlowError, err
}
