package gstsink

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/cbetz421/gst-wk/internal/convert"
	"github.com/cbetz421/gst-wk/internal/format"
	"github.com/cbetz421/gst-wk/internal/frame"
	"github.com/cbetz421/gst-wk/internal/sink"
)

func TestFlowReturnMapping(t *testing.T) {
	cases := []struct {
		in   sink.FlowResult
		want gst.FlowReturn
	}{
		{sink.FlowOK, gst.FlowOK},
		{sink.FlowError, gst.FlowError},
		{sink.FlowFlushing, gst.FlowFlushing},
	}
	for _, c := range cases {
		if got := flowReturn(c.in); got != c.want {
			t.Errorf("flowReturn(%s)=%v, expected %v", c.in, got, c.want)
		}
	}
}

func TestClockTimeConversion(t *testing.T) {
	if got := clockTime(int64(-1)); got != frame.ClockTimeNone {
		t.Errorf("signed none → %d", uint64(got))
	}
	if got := clockTime(^uint64(0)); got != frame.ClockTimeNone {
		t.Errorf("unsigned none → %d", uint64(got))
	}
	if got := clockTime(int64(40)); got != 40 {
		t.Errorf("40 → %d", uint64(got))
	}
}

func TestTemplateCapsFollowsConfig(t *testing.T) {
	saved := elementConfig
	defer func() { elementConfig = saved }()

	elementConfig = sink.Config{AlphaPosition: convert.AlphaFirst, TextureUpload: true}
	tmpl := templateCaps()

	caps, err := format.ParseCaps(tmpl)
	if err != nil {
		t.Fatalf("template does not parse: %v", err)
	}
	if len(caps.Structures) != 2 {
		t.Fatalf("expected texture and packed structures: %s", tmpl)
	}
	if !strings.Contains(tmpl, "xRGB") || strings.Contains(tmpl, "BGRx") {
		t.Errorf("alpha-first template should offer xRGB/ARGB: %s", tmpl)
	}
}

func TestPropertiesDeclared(t *testing.T) {
	want := []string{"current-caps", "silent", "sink-id"}
	for i, name := range want {
		if got := properties[i].Name(); got != name {
			t.Errorf("property %d = %q, expected %q", i, got, name)
		}
	}
}

func TestNewVideoSinkSilentFollowsTraceFrames(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name        string
		traceFrames bool
		wantSilent  bool
	}{
		{"trace frames on", true, false},
		{"trace frames off", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := newVideoSink(sink.Config{TraceFrames: tt.traceFrames, Logger: quiet})
			defer instances.Delete(vs.id)

			if got := vs.silent(); got != tt.wantSilent {
				t.Errorf("silent=%v, expected %v", got, tt.wantSilent)
			}
			if got := vs.core.TraceFrames(); got != tt.traceFrames {
				t.Errorf("core trace=%v, expected %v", got, tt.traceFrames)
			}
			if _, ok := instances.Load(vs.id); !ok {
				t.Errorf("instance %s not registered", vs.id)
			}
		})
	}
	t.Logf("✅ silent property starts from the registered trace setting")
}

func TestNewVideoSinkInvalidConfigLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	vs := newVideoSink(sink.Config{MaxFrameBytes: -1, TraceFrames: true, Logger: logger})
	defer instances.Delete(vs.id)

	if vs.core == nil {
		t.Fatal("fallback core not built")
	}
	if vs.silent() {
		t.Errorf("fallback core dropped the trace setting")
	}
	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "invalid element config") {
		t.Errorf("config error not logged: %s", out)
	}
}
