package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		debug   string
		want    ErrorCategory
	}{
		{"auth beats network", "Unauthorized", "souphttpsrc: HTTP 401", ErrCategoryAuth},
		{"forbidden", "Forbidden (403)", "", ErrCategoryAuth},
		{"codec", "Your GStreamer installation is missing a plug-in.", "missing plugin: no decoder available", ErrCategoryCodec},
		{"not negotiated", "Internal data stream error.", "streaming stopped, reason not-negotiated (-4)", ErrCategoryCodec},
		{"http not found", "Not Found (404)", "souphttpsrc.c: Not Found", ErrCategoryNetwork},
		{"could not read", "Could not read from resource.", "", ErrCategoryNetwork},
		{"timeout", "Connection timed out", "", ErrCategoryNetwork},
		{"unknown", "Internal data stream error.", "streaming stopped, reason error (-5)", ErrCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.message, tt.debug); got != tt.want {
				t.Errorf("Classify(%q, %q) = %s, expected %s", tt.message, tt.debug, got, tt.want)
			}
		})
	}
}

func TestClassifyNilGError(t *testing.T) {
	if got := ClassifyGError(nil); got != ErrCategoryUnknown {
		t.Errorf("ClassifyGError(nil) = %s, expected unknown", got)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := DefaultReconnectConfig()
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := calculateBackoff(i+1, cfg); got != w {
			t.Errorf("attempt %d: got %v, expected %v", i+1, got, w)
		}
	}
	if got := calculateBackoff(100, cfg); got != cfg.MaxRetryDelay {
		t.Errorf("large attempt: got %v, expected cap", got)
	}
}

func fastRetry(max int) ReconnectConfig {
	return ReconnectConfig{MaxRetries: max, RetryDelay: time.Millisecond, MaxRetryDelay: 2 * time.Millisecond}
}

func TestRunWithRetryRecovers(t *testing.T) {
	var state RetryState
	calls := 0
	err := RunWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &PlaybackError{Category: ErrCategoryNetwork, Message: "connection refused"}
		}
		return nil
	}, fastRetry(5), &state, nil)

	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if calls != 3 || state.Total() != 2 || state.Current() != 0 {
		t.Errorf("calls=%d total=%d current=%d", calls, state.Total(), state.Current())
	}
}

func TestRunWithRetryGivesUp(t *testing.T) {
	var state RetryState
	calls := 0
	err := RunWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return &PlaybackError{Category: ErrCategoryNetwork}
	}, fastRetry(2), &state, nil)

	if !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("expected ErrMaxRetries, got %v", err)
	}
	var perr *PlaybackError
	if !errors.As(err, &perr) {
		t.Errorf("last playback error should stay wrapped: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls=%d, expected initial attempt + 2 retries", calls)
	}
}

func TestRunWithRetryStopsOnFatal(t *testing.T) {
	var state RetryState
	calls := 0
	codec := &PlaybackError{Category: ErrCategoryCodec}
	err := RunWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return codec
	}, fastRetry(5), &state, nil)

	if err != codec || calls != 1 {
		t.Errorf("err=%v calls=%d, expected codec error after one call", err, calls)
	}

	plain := errors.New("boom")
	err = RunWithRetry(context.Background(), func(ctx context.Context) error { return plain }, fastRetry(5), &state, nil)
	if err != plain {
		t.Errorf("unclassified errors are not retried: %v", err)
	}
}

func TestRunWithRetryCancel(t *testing.T) {
	var state RetryState
	ctx, cancel := context.WithCancel(context.Background())
	cfg := ReconnectConfig{MaxRetries: 5, RetryDelay: time.Hour, MaxRetryDelay: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- RunWithRetry(ctx, func(ctx context.Context) error {
			return &PlaybackError{Category: ErrCategoryNetwork}
		}, cfg, &state, nil)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("backoff did not observe cancellation")
	}
}

type fakeElement struct {
	current gst.State
	fail    bool
	calls   []gst.State
}

func (f *fakeElement) GetState() gst.State { return f.current }

func (f *fakeElement) SetState(s gst.State) error {
	f.calls = append(f.calls, s)
	if f.fail {
		return errors.New("refused")
	}
	f.current = s
	return nil
}

func TestChangeState(t *testing.T) {
	t.Run("already there", func(t *testing.T) {
		e := &fakeElement{current: gst.StatePaused}
		if err := changeState(e, gst.StatePaused); err != nil || len(e.calls) != 0 {
			t.Errorf("err=%v calls=%v", err, e.calls)
		}
	})

	t.Run("success", func(t *testing.T) {
		e := &fakeElement{current: gst.StateNull}
		if err := changeState(e, gst.StatePaused); err != nil || e.current != gst.StatePaused {
			t.Errorf("err=%v current=%v", err, e.current)
		}
	})

	t.Run("failure tolerated from neighbour", func(t *testing.T) {
		e := &fakeElement{current: gst.StatePaused, fail: true}
		if err := changeState(e, gst.StatePlaying); err != nil {
			t.Errorf("paused → playing failure should be tolerated: %v", err)
		}
	})

	t.Run("failure reported", func(t *testing.T) {
		e := &fakeElement{current: gst.StateNull, fail: true}
		if err := changeState(e, gst.StatePaused); !errors.Is(err, errStateChange) {
			t.Errorf("expected errStateChange, got %v", err)
		}
	})
}

func TestGstElementIsStateElement(t *testing.T) {
	var elem stateElement = (*gst.Element)(nil)
	if _, ok := elem.(*gst.Element); !ok {
		t.Errorf("*gst.Element does not back stateElement")
	}
}

func TestToUint(t *testing.T) {
	for _, v := range []interface{}{uint(0x17), uint32(0x17), int(0x17), int64(0x17)} {
		if got, ok := toUint(v); !ok || got != 0x17 {
			t.Errorf("toUint(%T)=%d,%v", v, got, ok)
		}
	}
	if _, ok := toUint("flags"); ok {
		t.Error("string flags should not convert")
	}
	if _, ok := toUint(-1); ok {
		t.Error("negative flags should not convert")
	}
}
