package gstsink

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/base"

	"github.com/cbetz421/gst-wk/internal/sink"
)

var properties = []*glib.ParamSpec{
	glib.NewStringParam(
		"current-caps",
		"Current caps",
		"The caps of the currently negotiated format",
		nil,
		glib.ParameterReadable,
	),
	glib.NewBoolParam(
		"silent",
		"Silent",
		"Do not log per-buffer metadata",
		true,
		glib.ParameterReadWrite,
	),
	glib.NewStringParam(
		"sink-id",
		"Sink ID",
		"Identifier used to attach a frame consumer to this instance",
		nil,
		glib.ParameterReadable,
	),
}

// videoSink is one wkvsink instance. The base sink calls its vmethods from
// the streaming thread (Render, Preroll, SetCaps, ProposeAllocation) and from
// state changes (Start, Stop, Unlock, UnlockStop).
type videoSink struct {
	id     string
	core   *sink.Element
	logger *slog.Logger
}

// New is called by the type system once per element instance.
func (s *videoSink) New() glib.GoObjectSubclass {
	return newVideoSink(elementConfig)
}

// newVideoSink builds an instance from the registered config and records it
// in the registry. The silent property reads the core's trace flag, so it
// starts as the inverse of cfg.TraceFrames.
func newVideoSink(cfg sink.Config) *videoSink {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	core, err := sink.New(cfg)
	if err != nil {
		logger.Error("gstsink: invalid element config, using defaults", "error", err)
		core, _ = sink.New(sink.Config{Logger: cfg.Logger, TraceFrames: cfg.TraceFrames})
	}

	vs := &videoSink{
		id:     uuid.NewString(),
		core:   core,
		logger: logger,
	}
	instances.Store(vs.id, vs)
	logger.Debug("gstsink: instance created", "sink_id", vs.id, "silent", vs.silent())
	return vs
}

// ClassInit sets metadata, the pad template and properties.
func (s *videoSink) ClassInit(klass *glib.ObjectClass) {
	class := gst.ToElementClass(klass)
	class.SetMetadata(
		"WebKit video sink",
		"Sink/Video",
		"Premultiplies and hands decoded frames to a renderer main loop",
		"gst-wk",
	)
	class.AddPadTemplate(gst.NewPadTemplate(
		"sink",
		gst.PadDirectionSink,
		gst.PadPresenceAlways,
		gst.NewCapsFromString(templateCaps()),
	))
	class.InstallProperties(properties)
}

func (s *videoSink) SetProperty(self *glib.Object, id uint, value *glib.Value) {
	switch properties[id].Name() {
	case "silent":
		v, err := value.GoValue()
		if err != nil {
			s.logger.Warn("gstsink: invalid silent value", "error", err)
			return
		}
		if silent, ok := v.(bool); ok {
			s.core.SetTraceFrames(!silent)
		}
	}
}

func (s *videoSink) silent() bool { return !s.core.TraceFrames() }

func (s *videoSink) GetProperty(self *glib.Object, id uint) *glib.Value {
	var out interface{}
	switch properties[id].Name() {
	case "current-caps":
		out = s.core.CurrentCaps()
	case "silent":
		out = s.silent()
	case "sink-id":
		out = s.id
	default:
		return nil
	}

	val, err := glib.GValue(out)
	if err != nil {
		s.logger.Warn("gstsink: cannot convert property", "property", properties[id].Name(), "error", err)
		return nil
	}
	return val
}

func (s *videoSink) Start(self *base.GstBaseSink) bool {
	return s.core.Start() == nil
}

func (s *videoSink) Stop(self *base.GstBaseSink) bool {
	return s.core.Stop() == nil
}

func (s *videoSink) Unlock(self *base.GstBaseSink) bool {
	s.core.Unlock()
	return true
}

func (s *videoSink) UnlockStop(self *base.GstBaseSink) bool {
	s.core.UnlockStop()
	return true
}

func (s *videoSink) SetCaps(self *base.GstBaseSink, caps *gst.Caps) bool {
	if caps == nil {
		return false
	}
	_, err := s.core.SetCaps(caps.String())
	return err == nil
}

// ProposeAllocation records the format of the allocation query caps. No
// allocation metas are proposed.
func (s *videoSink) ProposeAllocation(self *base.GstBaseSink, query *gst.Query) bool {
	caps, _ := query.ParseAllocation()
	if caps == nil {
		s.logger.Debug("gstsink: allocation query without caps")
		return false
	}
	_, err := s.core.ProposeAllocation(caps.String())
	return err == nil
}

func (s *videoSink) Render(self *base.GstBaseSink, buffer *gst.Buffer) gst.FlowReturn {
	return s.render(buffer)
}

func (s *videoSink) Preroll(self *base.GstBaseSink, buffer *gst.Buffer) gst.FlowReturn {
	return s.render(buffer)
}

func (s *videoSink) render(buffer *gst.Buffer) gst.FlowReturn {
	f := wrapBuffer(buffer)
	if f == nil {
		s.logger.Warn("gstsink: empty buffer, skipping")
		return gst.FlowOK
	}
	defer f.Unref()

	r, _ := s.core.Render(f)
	return flowReturn(r)
}

func flowReturn(r sink.FlowResult) gst.FlowReturn {
	switch r {
	case sink.FlowOK:
		return gst.FlowOK
	case sink.FlowFlushing:
		return gst.FlowFlushing
	default:
		return gst.FlowError
	}
}
