// Package format derives the negotiated video format from caps descriptions and
// selects the conversion path the sink uses for each frame.
package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupportedFormat is returned when no candidate describes a usable fixed format.
var ErrUnsupportedFormat = errors.New("format: unsupported format")

// RawVideo is the media type of decoded host-memory video.
const RawVideo = "video/x-raw"

// FeatureTextureUpload marks frames that carry a GL texture upload meta.
const FeatureTextureUpload = "meta:GstVideoGLTextureUploadMeta"

// PixelFormat is the pixel layout of a negotiated stream.
type PixelFormat int

const (
	Unknown PixelFormat = iota
	BGRx
	BGRA
	XRGB
	ARGB
	NV12
)

var pixelFormatNames = map[PixelFormat]string{
	BGRx: "BGRx",
	BGRA: "BGRA",
	XRGB: "xRGB",
	ARGB: "ARGB",
	NV12: "NV12",
}

// ParsePixelFormat maps a caps format name to a PixelFormat.
func ParsePixelFormat(name string) PixelFormat {
	for f, n := range pixelFormatNames {
		if n == name {
			return f
		}
	}
	return Unknown
}

func (f PixelFormat) String() string {
	if n, ok := pixelFormatNames[f]; ok {
		return n
	}
	return "unknown"
}

// HasAlpha reports whether the format carries an alpha channel.
func (f PixelFormat) HasAlpha() bool {
	return f == BGRA || f == ARGB
}

// NeedsPremultiply reports whether frames arrive with straight alpha and must be
// premultiplied before the renderer sees them.
func (f PixelFormat) NeedsPremultiply() bool {
	return f.HasAlpha()
}

// BytesPerPixel returns the size of one pixel in the first plane.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case BGRx, BGRA, XRGB, ARGB:
		return 4
	case NV12:
		return 1
	default:
		return 0
	}
}

// Descriptor is the negotiated format of a stream. It is immutable once derived
// and replaced wholesale on renegotiation.
type Descriptor struct {
	Format         PixelFormat
	Width          int
	Height         int
	PARNumerator   int
	PARDenominator int
	Stride         int
	TextureUpload  bool
	Framerate      Fraction
}

// Fraction is a rational caps value such as a framerate or aspect ratio.
type Fraction struct {
	Num, Den int
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// Valid reports whether the descriptor can address pixel data.
func (d Descriptor) Valid() bool {
	return d.Format != Unknown && d.Width > 0 && d.Height > 0 && d.Stride > 0
}

// FrameSize returns the number of bytes a frame in this format occupies.
func (d Descriptor) FrameSize() int {
	if d.Format == NV12 {
		// Y plane plus interleaved half-resolution UV plane.
		return d.Stride*d.Height + d.Stride*((d.Height+1)/2)
	}
	return d.Stride * d.Height
}

// Caps renders the descriptor back to the caps serialization.
func (d Descriptor) Caps() string {
	if d.Format == Unknown {
		return ""
	}
	var b strings.Builder
	b.WriteString(RawVideo)
	if d.TextureUpload {
		b.WriteString("(" + FeatureTextureUpload + ")")
	}
	fmt.Fprintf(&b, ", format=(string)%s, width=(int)%d, height=(int)%d", d.Format, d.Width, d.Height)
	fmt.Fprintf(&b, ", pixel-aspect-ratio=(fraction)%d/%d", d.PARNumerator, d.PARDenominator)
	if d.Framerate.Den != 0 {
		fmt.Fprintf(&b, ", framerate=(fraction)%s", d.Framerate)
	}
	return b.String()
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %dx%d par=%d/%d stride=%d", d.Format, d.Width, d.Height, d.PARNumerator, d.PARDenominator, d.Stride)
}

// DescriptorFromStructure derives a descriptor from one fixed caps structure.
func DescriptorFromStructure(s Structure) (Descriptor, error) {
	if s.Name != RawVideo {
		return Descriptor{}, fmt.Errorf("%w: media type %q", ErrUnsupportedFormat, s.Name)
	}
	if !s.IsFixed() {
		return Descriptor{}, fmt.Errorf("%w: caps not fixed", ErrUnsupportedFormat)
	}

	fv, ok := s.Field("format")
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: no format field", ErrUnsupportedFormat)
	}
	pf := ParsePixelFormat(fv.Raw)
	if pf == Unknown {
		return Descriptor{}, fmt.Errorf("%w: pixel format %q", ErrUnsupportedFormat, fv.Raw)
	}

	width, err := intField(s, "width")
	if err != nil {
		return Descriptor{}, err
	}
	height, err := intField(s, "height")
	if err != nil {
		return Descriptor{}, err
	}

	d := Descriptor{
		Format:         pf,
		Width:          width,
		Height:         height,
		PARNumerator:   1,
		PARDenominator: 1,
		TextureUpload:  s.HasFeature(FeatureTextureUpload),
	}
	if v, ok := s.Field("pixel-aspect-ratio"); ok {
		par, err := parseFraction(v.Raw)
		if err != nil || par.Num <= 0 || par.Den <= 0 {
			return Descriptor{}, fmt.Errorf("%w: pixel-aspect-ratio %q", ErrUnsupportedFormat, v.Raw)
		}
		d.PARNumerator, d.PARDenominator = par.Num, par.Den
	}
	if v, ok := s.Field("framerate"); ok {
		if fr, err := parseFraction(v.Raw); err == nil {
			d.Framerate = fr
		}
	}

	// Plane 0 rows are padded to 4 bytes.
	d.Stride = (width*pf.BytesPerPixel() + 3) &^ 3
	return d, nil
}

func intField(s Structure, name string) (int, error) {
	v, ok := s.Field(name)
	if !ok {
		return 0, fmt.Errorf("%w: no %s field", ErrUnsupportedFormat, name)
	}
	n, err := strconv.Atoi(v.Raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrUnsupportedFormat, name, v.Raw)
	}
	return n, nil
}

func parseFraction(s string) (Fraction, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		den = "1"
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return Fraction{}, err
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil {
		return Fraction{}, err
	}
	return Fraction{Num: n, Den: d}, nil
}
