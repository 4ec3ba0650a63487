package gstsink

import (
	"github.com/tinyzimmer/go-gst/gst"

	"github.com/cbetz421/gst-wk/internal/frame"
)

// wrapBuffer copies a mapped buffer into a Frame along with its timing
// metadata. Returns nil for an empty buffer.
func wrapBuffer(buffer *gst.Buffer) *frame.Frame {
	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil
	}
	data := mapInfo.Bytes()
	buffer.Unmap()
	if len(data) == 0 {
		return nil
	}

	f := frame.New(data, nil)
	f.PTS = clockTime(buffer.PresentationTimestamp())
	f.DTS = clockTime(buffer.DecodingTimestamp())
	f.Duration = clockTime(buffer.Duration())
	f.Offset = uint64(buffer.Offset())
	f.OffsetEnd = uint64(buffer.OffsetEnd())
	f.Flags = frame.BufferFlags(buffer.GetFlags())
	return f
}

// clockTime converts a go-gst timestamp. The "none" value is all ones in
// both the signed and unsigned encodings.
func clockTime[T ~int64 | ~uint64](v T) frame.ClockTime {
	return frame.ClockTime(v)
}
