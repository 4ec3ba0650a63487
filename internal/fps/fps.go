// Package fps measures the rate at which frames reach the consumer.
package fps

import (
	"math"
	"sync"
	"time"
)

const (
	// stddevStabilityThreshold is the maximum FPS standard deviation as a
	// fraction of mean FPS. 30 FPS mean is stable below 4.5 FPS stddev.
	stddevStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of the
	// expected inter-frame interval. 30 FPS (33ms) is stable below 6.6ms.
	jitterStabilityThreshold = 0.20
)

// Stats summarizes delivery timing over a set of frames.
type Stats struct {
	Frames   int
	Duration time.Duration

	Mean   float64 // frames / duration
	StdDev float64 // of instantaneous FPS
	Min    float64 // lowest instantaneous FPS
	Max    float64 // highest instantaneous FPS

	JitterMean   float64 // seconds
	JitterStdDev float64 // seconds
	JitterMax    float64 // seconds

	Stable bool
}

// Calculate computes Stats from delivery timestamps spanning total.
//
// Stability requires both:
//   - FPS stddev < 15% of mean FPS
//   - mean jitter < 20% of the expected interval (1 / mean)
func Calculate(times []time.Time, total time.Duration) Stats {
	return calculate(times, total, len(times))
}

// calculate takes the frame count for the mean separately: a window of n
// timestamps measured between its ends spans n-1 frame intervals.
func calculate(times []time.Time, total time.Duration, frames int) Stats {
	n := len(times)
	if n == 0 || total <= 0 {
		return Stats{Frames: n, Duration: total}
	}

	s := Stats{
		Frames:   n,
		Duration: total,
		Mean:     float64(frames) / total.Seconds(),
	}

	inst := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if iv := times[i].Sub(times[i-1]).Seconds(); iv > 0 {
			inst = append(inst, 1.0/iv)
		}
	}
	if len(inst) == 0 {
		return s
	}

	s.Min, s.Max = inst[0], inst[0]
	var sq float64
	for _, v := range inst {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		d := v - s.Mean
		sq += d * d
	}
	s.StdDev = math.Sqrt(sq / float64(len(inst)))

	expected := 1.0 / s.Mean
	jitters := make([]float64, 0, n-1)
	var sum float64
	for i := 1; i < n; i++ {
		j := math.Abs(times[i].Sub(times[i-1]).Seconds() - expected)
		jitters = append(jitters, j)
		sum += j
		s.JitterMax = math.Max(s.JitterMax, j)
	}
	s.JitterMean = sum / float64(len(jitters))

	var jsq float64
	for _, j := range jitters {
		d := j - s.JitterMean
		jsq += d * d
	}
	s.JitterStdDev = math.Sqrt(jsq / float64(len(jitters)))

	s.Stable = s.StdDev < s.Mean*stddevStabilityThreshold &&
		s.JitterMean < expected*jitterStabilityThreshold
	return s
}

// Window keeps the timestamps of the most recent deliveries.
type Window struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	full  bool
}

// NewWindow returns a window over the last size deliveries.
func NewWindow(size int) *Window {
	if size < 2 {
		size = 2
	}
	return &Window{times: make([]time.Time, size)}
}

// Add records a delivery at t.
func (w *Window) Add(t time.Time) {
	w.mu.Lock()
	w.times[w.next] = t
	w.next = (w.next + 1) % len(w.times)
	if w.next == 0 {
		w.full = true
	}
	w.mu.Unlock()
}

// Stats computes Stats over the recorded deliveries. The duration is the span
// between the first and last recorded delivery.
func (w *Window) Stats() Stats {
	w.mu.Lock()
	var ordered []time.Time
	if w.full {
		ordered = append(ordered, w.times[w.next:]...)
		ordered = append(ordered, w.times[:w.next]...)
	} else {
		ordered = append(ordered, w.times[:w.next]...)
	}
	w.mu.Unlock()

	if len(ordered) < 2 {
		return Stats{Frames: len(ordered)}
	}
	span := ordered[len(ordered)-1].Sub(ordered[0])
	return calculate(ordered, span, len(ordered)-1)
}

// Reset forgets all recorded deliveries.
func (w *Window) Reset() {
	w.mu.Lock()
	w.next, w.full = 0, false
	w.mu.Unlock()
}
