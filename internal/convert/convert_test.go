package convert

import (
	"bytes"
	"errors"
	"testing"

	"github.com/cbetz421/gst-wk/internal/format"
	"github.com/cbetz421/gst-wk/internal/frame"
)

func TestPremultiplyKnownValues(t *testing.T) {
	// 2x2 BGRA, every pixel R=200 G=100 B=50 A=128.
	src := bytes.Repeat([]byte{50, 100, 200, 128}, 4)
	dst := make([]byte, len(src))

	if err := Premultiply(dst, src, 2, 2, 8, AlphaLast); err != nil {
		t.Fatalf("Premultiply failed: %v", err)
	}

	want := bytes.Repeat([]byte{25, 50, 100, 128}, 4)
	if !bytes.Equal(dst, want) {
		t.Errorf("dst=%v, expected %v", dst, want)
	}
	t.Logf("✅ (200,100,50,128) → (%d,%d,%d,%d)", dst[2], dst[1], dst[0], dst[3])
}

func TestPremultiplyExhaustiveFormula(t *testing.T) {
	// Every (channel, alpha) pair once, as one 256x256 alpha-last image.
	const w, h = 256, 256
	src := make([]byte, w*h*4)
	for a := 0; a < h; a++ {
		for c := 0; c < w; c++ {
			p := (a*w + c) * 4
			src[p], src[p+1], src[p+2], src[p+3] = byte(c), byte(c), byte(c), byte(a)
		}
	}
	dst := make([]byte, len(src))
	if err := Premultiply(dst, src, w, h, w*4, AlphaLast); err != nil {
		t.Fatalf("Premultiply failed: %v", err)
	}

	for a := 0; a < h; a++ {
		for c := 0; c < w; c++ {
			p := (a*w + c) * 4
			want := byte((c*a + 128) / 255)
			if dst[p] != want || dst[p+1] != want || dst[p+2] != want || dst[p+3] != byte(a) {
				t.Fatalf("c=%d a=%d: got %v, expected %d", c, a, dst[p:p+4], want)
			}
		}
	}
}

func TestPremultiplyOpaqueIsIdentity(t *testing.T) {
	for _, pos := range []AlphaPosition{AlphaLast, AlphaFirst} {
		t.Run(pos.String(), func(t *testing.T) {
			src := make([]byte, 4*4*4)
			for i := range src {
				src[i] = byte(i * 7)
			}
			alpha := 3
			if pos == AlphaFirst {
				alpha = 0
			}
			for p := 0; p < len(src); p += 4 {
				src[p+alpha] = 255
			}

			dst := make([]byte, len(src))
			if err := Premultiply(dst, src, 4, 4, 16, pos); err != nil {
				t.Fatalf("Premultiply failed: %v", err)
			}
			if !bytes.Equal(dst, src) {
				t.Errorf("opaque frame changed:\n got %v\nwant %v", dst, src)
			}
		})
	}
}

func TestPremultiplyAlphaFirst(t *testing.T) {
	src := []byte{128, 200, 100, 50}
	dst := make([]byte, 4)

	if err := Premultiply(dst, src, 1, 1, 4, AlphaFirst); err != nil {
		t.Fatalf("Premultiply failed: %v", err)
	}
	if want := []byte{128, 100, 50, 25}; !bytes.Equal(dst, want) {
		t.Errorf("dst=%v, expected %v", dst, want)
	}
}

func TestPremultiplyHonorsStride(t *testing.T) {
	// 1x2 image with 8-byte rows; the padding must stay untouched.
	src := []byte{
		10, 20, 30, 0, 0xEE, 0xEE, 0xEE, 0xEE,
		10, 20, 30, 255, 0xEE, 0xEE, 0xEE, 0xEE,
	}
	dst := make([]byte, len(src))

	if err := Premultiply(dst, src, 1, 2, 8, AlphaLast); err != nil {
		t.Fatalf("Premultiply failed: %v", err)
	}
	want := []byte{
		0, 0, 0, 0, 0, 0, 0, 0,
		10, 20, 30, 255, 0, 0, 0, 0,
	}
	if !bytes.Equal(dst, want) {
		t.Errorf("dst=%v, expected %v", dst, want)
	}
}

func TestPremultiplyShortBuffer(t *testing.T) {
	cases := []struct {
		name                  string
		src, dst              int
		width, height, stride int
	}{
		{"short src", 15, 16, 2, 2, 8},
		{"short dst", 16, 15, 2, 2, 8},
		{"stride below row", 16, 16, 2, 2, 4},
		{"zero width", 16, 16, 0, 2, 8},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Premultiply(make([]byte, c.dst), make([]byte, c.src), c.width, c.height, c.stride, AlphaLast)
			if !errors.Is(err, ErrShortBuffer) {
				t.Errorf("err=%v, expected ErrShortBuffer", err)
			}
		})
	}
}

func TestNativeAlphaPosition(t *testing.T) {
	if NativeAlphaPosition() != NativeAlphaPosition() {
		t.Fatal("native alpha position must be stable")
	}
	t.Logf("native alpha position: %s", NativeAlphaPosition())
}

type failingAllocator struct{}

func (failingAllocator) Allocate(int) ([]byte, error) { return nil, ErrAllocation }
func (failingAllocator) Release([]byte)               {}

func TestConverterCopiesMetadataNotSource(t *testing.T) {
	src := frame.New(bytes.Repeat([]byte{50, 100, 200, 128}, 4), nil)
	src.PTS = 40
	src.Flags = frame.FlagDiscont
	orig := append([]byte(nil), src.Data...)

	conv := NewConverter(NewPoolAllocator(0, 2), AlphaLast)
	d := format.Descriptor{Format: format.BGRA, Width: 2, Height: 2, Stride: 8}

	dst, err := conv.Convert(src, d)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	defer dst.Unref()

	if !bytes.Equal(src.Data, orig) {
		t.Errorf("source frame was modified")
	}
	if dst.PTS != 40 || dst.Flags != frame.FlagDiscont || dst.TraceID != src.TraceID {
		t.Errorf("metadata not copied: %s", dst.Describe())
	}
	if dst.Size() != src.Size() {
		t.Errorf("size %d, expected %d", dst.Size(), src.Size())
	}
	if dst.Data[0] != 25 {
		t.Errorf("pixel not premultiplied: %v", dst.Data[:4])
	}
	if conv.Converted() != 1 {
		t.Errorf("Converted()=%d", conv.Converted())
	}
}

func TestConverterAllocationFailure(t *testing.T) {
	conv := NewConverter(failingAllocator{}, AlphaLast)
	src := frame.New(make([]byte, 16), nil)

	_, err := conv.Convert(src, format.Descriptor{Format: format.BGRA, Width: 2, Height: 2, Stride: 8})
	if !errors.Is(err, ErrAllocation) {
		t.Fatalf("err=%v, expected ErrAllocation", err)
	}
	if conv.Converted() != 0 {
		t.Errorf("failed conversion counted")
	}
}

func TestPoolAllocatorLimits(t *testing.T) {
	p := NewPoolAllocator(64, 1)

	if _, err := p.Allocate(65); !errors.Is(err, ErrAllocation) {
		t.Errorf("oversized allocation err=%v", err)
	}
	if _, err := p.Allocate(0); !errors.Is(err, ErrAllocation) {
		t.Errorf("empty allocation err=%v", err)
	}

	buf, err := p.Allocate(64)
	if err != nil || len(buf) != 64 {
		t.Fatalf("Allocate(64)=%d bytes, %v", len(buf), err)
	}
	buf[0] = 0xAB
	p.Release(buf)

	again, _ := p.Allocate(64)
	if &again[0] != &buf[0] {
		t.Errorf("released buffer not reused")
	}

	// A new size rebuilds the pool; stale buffers are not accepted back.
	small, _ := p.Allocate(32)
	p.Release(again)
	if reused, _ := p.Allocate(32); &reused[0] == &again[0] {
		t.Errorf("stale buffer handed out for new size")
	}
	p.Release(small)
}

func TestConvertedFrameReturnsBufferOnRelease(t *testing.T) {
	p := NewPoolAllocator(0, 1)
	conv := NewConverter(p, AlphaLast)
	d := format.Descriptor{Format: format.BGRA, Width: 1, Height: 1, Stride: 4}

	first, err := conv.Convert(frame.New([]byte{1, 2, 3, 255}, nil), d)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	ptr := &first.Data[0]
	first.Unref()

	second, err := conv.Convert(frame.New([]byte{4, 5, 6, 255}, nil), d)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	defer second.Unref()
	if &second.Data[0] != ptr {
		t.Errorf("buffer of released frame was not recycled")
	}
}
