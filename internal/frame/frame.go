// Package frame defines the reference-counted video frame shared between the
// pipeline adapter, the sink core and the frame consumer.
package frame

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ClockTime is a timestamp in nanoseconds using the pipeline's encoding:
// the all-ones value means "unknown".
type ClockTime uint64

// ClockTimeNone marks an absent timestamp.
const ClockTimeNone ClockTime = ^ClockTime(0)

// IsValid reports whether the timestamp is known.
func (c ClockTime) IsValid() bool {
	return c != ClockTimeNone
}

// Duration converts a valid timestamp to a time.Duration.
func (c ClockTime) Duration() time.Duration {
	if !c.IsValid() {
		return 0
	}
	return time.Duration(c)
}

// String renders h:mm:ss.nnnnnnnnn, or "none".
func (c ClockTime) String() string {
	if !c.IsValid() {
		return "none"
	}
	ns := uint64(c)
	const second = uint64(time.Second)
	h := ns / (3600 * second)
	m := (ns / (60 * second)) % 60
	s := (ns / second) % 60
	return fmt.Sprintf("%d:%02d:%02d.%09d", h, m, s, ns%second)
}

// BufferFlags carries per-buffer flags. Bits 0-3 belong to the framework's
// generic object flags and have no names here.
type BufferFlags uint32

const (
	FlagLive       BufferFlags = 1 << 4
	FlagDecodeOnly BufferFlags = 1 << 5
	FlagDiscont    BufferFlags = 1 << 6
	FlagResync     BufferFlags = 1 << 7
	FlagCorrupted  BufferFlags = 1 << 8
	FlagMarker     BufferFlags = 1 << 9
	FlagHeader     BufferFlags = 1 << 10
	FlagGap        BufferFlags = 1 << 11
	FlagDroppable  BufferFlags = 1 << 12
	FlagDeltaUnit  BufferFlags = 1 << 13
	FlagInCaps     BufferFlags = 1 << 14
)

var flagNames = [...]string{
	"", "", "", "", "live", "decode-only", "discont", "resync", "corrupted",
	"marker", "header", "gap", "droppable", "delta-unit", "in-caps",
}

// String lists the names of the set flags separated by spaces.
func (f BufferFlags) String() string {
	var names []string
	for i, name := range flagNames {
		if name != "" && f&(1<<uint(i)) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, " ")
}

// Frame is one decoded video buffer plus its timing metadata.
//
// Data is shared by reference and MUST NOT be modified once the frame has been
// handed to the sink. Lifetime is governed by Ref/Unref: the release hook runs
// exactly once, when the last reference is dropped.
type Frame struct {
	Data []byte

	PTS       ClockTime
	DTS       ClockTime
	Duration  ClockTime
	Offset    uint64
	OffsetEnd uint64
	Flags     BufferFlags

	// TraceID correlates log lines for one frame across producer and consumer.
	TraceID string

	refs    atomic.Int32
	release func()
}

// New wraps data in a frame holding one reference. release may be nil.
func New(data []byte, release func()) *Frame {
	f := &Frame{
		Data:      data,
		PTS:       ClockTimeNone,
		DTS:       ClockTimeNone,
		Duration:  ClockTimeNone,
		Offset:    uint64(ClockTimeNone),
		OffsetEnd: uint64(ClockTimeNone),
		TraceID:   uuid.NewString(),
		release:   release,
	}
	f.refs.Store(1)
	return f
}

// Size returns the payload length in bytes.
func (f *Frame) Size() int {
	return len(f.Data)
}

// Ref takes an additional reference and returns f for chaining.
func (f *Frame) Ref() *Frame {
	if f.refs.Add(1) <= 1 {
		panic("frame: ref of released frame")
	}
	return f
}

// Unref drops one reference, running the release hook on the last one.
func (f *Frame) Unref() {
	n := f.refs.Add(-1)
	switch {
	case n == 0:
		if f.release != nil {
			f.release()
		}
	case n < 0:
		panic("frame: unref of released frame")
	}
}

// Refs returns the current reference count.
func (f *Frame) Refs() int {
	return int(f.refs.Load())
}

// CopyMetadataFrom copies timestamps, offsets, flags and trace ID from src.
// Pixel content is left untouched.
func (f *Frame) CopyMetadataFrom(src *Frame) {
	f.PTS = src.PTS
	f.DTS = src.DTS
	f.Duration = src.Duration
	f.Offset = src.Offset
	f.OffsetEnd = src.OffsetEnd
	f.Flags = src.Flags
	f.TraceID = src.TraceID
}

// Describe renders the frame metadata on one line for debug logging.
func (f *Frame) Describe() string {
	return fmt.Sprintf("%d bytes, dts: %s, pts: %s, duration: %s, offset: %d, offset_end: %d, flags: %08x %s",
		len(f.Data), f.DTS, f.PTS, f.Duration,
		int64(f.Offset), int64(f.OffsetEnd), uint32(f.Flags), f.Flags)
}
