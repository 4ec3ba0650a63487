// Package convert turns straight-alpha 32-bit frames into premultiplied-alpha
// copies for the renderer.
package convert

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrShortBuffer is returned when a buffer cannot hold width x height pixels at stride.
	ErrShortBuffer = errors.New("convert: buffer too short for geometry")

	// ErrAllocation is returned when no destination buffer could be obtained.
	ErrAllocation = errors.New("convert: destination allocation failed")
)

// AlphaPosition says where the alpha byte sits inside a 4-byte pixel.
type AlphaPosition int

const (
	// AlphaNative resolves to the host's native layout.
	AlphaNative AlphaPosition = iota
	// AlphaLast is the B,G,R,A byte layout (BGRA on little-endian hosts).
	AlphaLast
	// AlphaFirst is the A,R,G,B byte layout (ARGB on big-endian hosts).
	AlphaFirst
)

func (p AlphaPosition) String() string {
	switch p {
	case AlphaLast:
		return "alpha-last"
	case AlphaFirst:
		return "alpha-first"
	case AlphaNative:
		return "native"
	default:
		return fmt.Sprintf("AlphaPosition(%d)", int(p))
	}
}

// Resolve maps AlphaNative to the host layout and returns other values as is.
func (p AlphaPosition) Resolve() AlphaPosition {
	if p == AlphaNative {
		return nativeAlpha
	}
	return p
}

// Valid reports whether p is one of the defined positions.
func (p AlphaPosition) Valid() bool {
	return p >= AlphaNative && p <= AlphaFirst
}

var nativeAlpha = func() AlphaPosition {
	var order [2]byte
	binary.NativeEndian.PutUint16(order[:], 1)
	if order[0] == 1 {
		return AlphaLast
	}
	return AlphaFirst
}()

// NativeAlphaPosition returns the alpha position of the host's native 32-bit
// pixel layout.
func NativeAlphaPosition() AlphaPosition {
	return nativeAlpha
}

const bytesPerPixel = 4

// Premultiply writes src premultiplied by its alpha into dst. Each color
// channel becomes (c*a + 128) / 255 with integer division and alpha is copied.
// Rows start every stride bytes in both buffers. Bytes past width*4 in a row
// are not written.
func Premultiply(dst, src []byte, width, height, stride int, pos AlphaPosition) error {
	if width <= 0 || height <= 0 || stride < width*bytesPerPixel {
		return fmt.Errorf("%w: %dx%d stride %d", ErrShortBuffer, width, height, stride)
	}
	need := (height-1)*stride + width*bytesPerPixel
	if len(src) < need || len(dst) < need {
		return fmt.Errorf("%w: need %d bytes, src %d dst %d", ErrShortBuffer, need, len(src), len(dst))
	}

	alpha, first := 3, 0
	if pos.Resolve() == AlphaFirst {
		alpha, first = 0, 1
	}

	for y := 0; y < height; y++ {
		row := y * stride
		for x := 0; x < width; x++ {
			p := row + x*bytesPerPixel
			a := uint16(src[p+alpha])
			for c := first; c < first+3; c++ {
				dst[p+c] = byte((uint16(src[p+c])*a + 128) / 255)
			}
			dst[p+alpha] = byte(a)
		}
	}
	return nil
}
