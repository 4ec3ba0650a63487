package fps

import (
	"math"
	"testing"
	"time"
)

func evenTimes(n int, interval time.Duration) []time.Time {
	start := time.Unix(1700000000, 0)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * interval)
	}
	return out
}

func TestCalculateEmpty(t *testing.T) {
	s := Calculate(nil, time.Second)
	if s.Frames != 0 || s.Mean != 0 || s.Stable {
		t.Errorf("empty stats = %+v", s)
	}
}

func TestCalculateSingleFrame(t *testing.T) {
	s := Calculate(evenTimes(1, 0), time.Second)
	if s.Mean != 1 || s.Stable {
		t.Errorf("single frame stats = %+v", s)
	}
}

func TestWindowSteadyStream(t *testing.T) {
	w := NewWindow(64)
	for _, ts := range evenTimes(10, 100*time.Millisecond) {
		w.Add(ts)
	}

	s := w.Stats()
	if s.Frames != 10 {
		t.Errorf("Frames=%d", s.Frames)
	}
	if math.Abs(s.Mean-10) > 1e-9 {
		t.Errorf("Mean=%.3f, expected 10", s.Mean)
	}
	if s.StdDev > 1e-9 || s.JitterMax > 1e-9 {
		t.Errorf("steady stream has stddev=%.6f jitter=%.6f", s.StdDev, s.JitterMax)
	}
	if !s.Stable {
		t.Errorf("steady stream should be stable: %+v", s)
	}
	t.Logf("✅ mean %.1f fps, min %.1f, max %.1f", s.Mean, s.Min, s.Max)
}

func TestWindowUnsteadyStream(t *testing.T) {
	w := NewWindow(64)
	ts := time.Unix(1700000000, 0)
	for i := 0; i < 20; i++ {
		w.Add(ts)
		if i%2 == 0 {
			ts = ts.Add(50 * time.Millisecond)
		} else {
			ts = ts.Add(150 * time.Millisecond)
		}
	}

	s := w.Stats()
	if s.Stable {
		t.Errorf("alternating 50/150ms intervals reported stable: %+v", s)
	}
	if s.Min >= s.Max {
		t.Errorf("min %.2f should be below max %.2f", s.Min, s.Max)
	}
}

func TestWindowWrapsAround(t *testing.T) {
	w := NewWindow(4)
	for _, ts := range evenTimes(6, 10*time.Millisecond) {
		w.Add(ts)
	}

	s := w.Stats()
	if s.Frames != 4 {
		t.Errorf("Frames=%d, expected window size 4", s.Frames)
	}
	if s.Duration != 30*time.Millisecond {
		t.Errorf("Duration=%v, expected 30ms", s.Duration)
	}

	w.Reset()
	if s := w.Stats(); s.Frames != 0 {
		t.Errorf("Frames=%d after reset", s.Frames)
	}
}
