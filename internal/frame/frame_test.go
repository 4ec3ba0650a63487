package frame

import (
	"strings"
	"testing"
	"time"
)

func TestRefCounting(t *testing.T) {
	released := 0
	f := New([]byte{1, 2, 3, 4}, func() { released++ })

	f.Ref()
	f.Ref()
	if got := f.Refs(); got != 3 {
		t.Fatalf("Refs()=%d, expected 3", got)
	}

	f.Unref()
	f.Unref()
	if released != 0 {
		t.Fatalf("release ran with references outstanding")
	}

	f.Unref()
	if released != 1 {
		t.Fatalf("release ran %d times, expected exactly once", released)
	}
}

func TestUnrefReleasedFramePanics(t *testing.T) {
	f := New(nil, nil)
	f.Unref()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on double unref")
		}
	}()
	f.Unref()
}

func TestClockTimeString(t *testing.T) {
	cases := []struct {
		in   ClockTime
		want string
	}{
		{ClockTimeNone, "none"},
		{0, "0:00:00.000000000"},
		{ClockTime(time.Hour + 2*time.Minute + 3*time.Second + 40*time.Millisecond), "1:02:03.040000000"},
	}

	for _, c := range cases {
		if got := c.in.String(); got != c.want {
			t.Errorf("ClockTime(%d).String()=%q, expected %q", uint64(c.in), got, c.want)
		}
	}
}

func TestBufferFlagsString(t *testing.T) {
	flags := FlagDiscont | FlagDeltaUnit | FlagInCaps
	if got := flags.String(); got != "discont delta-unit in-caps" {
		t.Errorf("flags.String()=%q", got)
	}
	if got := BufferFlags(0x3).String(); got != "" {
		t.Errorf("object flags should have no names, got %q", got)
	}
}

func TestCopyMetadataFrom(t *testing.T) {
	src := New([]byte{9, 9, 9, 9}, nil)
	src.PTS = ClockTime(40 * time.Millisecond)
	src.DTS = ClockTime(33 * time.Millisecond)
	src.Duration = ClockTime(33 * time.Millisecond)
	src.Flags = FlagMarker

	dst := New(make([]byte, 4), nil)
	dst.CopyMetadataFrom(src)

	if dst.PTS != src.PTS || dst.DTS != src.DTS || dst.Duration != src.Duration || dst.Flags != src.Flags {
		t.Errorf("metadata not copied: %s", dst.Describe())
	}
	if dst.TraceID != src.TraceID {
		t.Errorf("trace id not carried over")
	}
	if dst.Data[0] != 0 {
		t.Errorf("content must not be copied")
	}
}

func TestDescribe(t *testing.T) {
	f := New(make([]byte, 16), nil)
	f.Flags = FlagLive

	line := f.Describe()
	for _, want := range []string{"16 bytes", "dts: none", "pts: none", "live"} {
		if !strings.Contains(line, want) {
			t.Errorf("Describe()=%q missing %q", line, want)
		}
	}
}
