package format

import (
	"errors"
	"fmt"
	"strings"
)

// Preferences steer format selection.
type Preferences struct {
	// TextureUpload is set when the consumer can take GL texture backed frames.
	TextureUpload bool
	// BigEndian selects the alpha-first packed layouts (xRGB, ARGB) instead of
	// the alpha-last ones (BGRx, BGRA).
	BigEndian bool
}

// PackedFormats returns the host-memory formats accepted under p.
func (p Preferences) PackedFormats() []PixelFormat {
	if p.BigEndian {
		return []PixelFormat{XRGB, ARGB}
	}
	return []PixelFormat{BGRx, BGRA}
}

func (p Preferences) accepts(d Descriptor) bool {
	if d.Format == NV12 {
		return p.TextureUpload && d.TextureUpload
	}
	if d.TextureUpload {
		return false
	}
	for _, f := range p.PackedFormats() {
		if f == d.Format {
			return true
		}
	}
	return false
}

// Negotiate selects the descriptor to render with from a candidate set. A
// texture backed candidate wins when p allows it; otherwise the first packed
// candidate in native byte order is taken. Candidates that are not fixed are
// skipped.
func Negotiate(caps Caps, p Preferences) (Descriptor, error) {
	if caps.Any {
		return Descriptor{}, fmt.Errorf("%w: caps not fixed (ANY)", ErrUnsupportedFormat)
	}

	var (
		packed   *Descriptor
		texture  *Descriptor
		rejected []error
		fixed    int
	)
	for _, s := range caps.Structures {
		if !s.IsFixed() {
			continue
		}
		fixed++
		d, err := DescriptorFromStructure(s)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		if !p.accepts(d) {
			rejected = append(rejected, fmt.Errorf("%w: %s not accepted", ErrUnsupportedFormat, d.Format))
			continue
		}
		if d.Format == NV12 && texture == nil {
			texture = &d
		} else if d.Format != NV12 && packed == nil {
			packed = &d
		}
	}

	switch {
	case texture != nil:
		return *texture, nil
	case packed != nil:
		return *packed, nil
	case fixed == 0:
		return Descriptor{}, fmt.Errorf("%w: no fixed candidate", ErrUnsupportedFormat)
	default:
		return Descriptor{}, errors.Join(rejected...)
	}
}

// NegotiateString parses caps and negotiates in one step.
func NegotiateString(caps string, p Preferences) (Descriptor, error) {
	parsed, err := ParseCaps(caps)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	return Negotiate(parsed, p)
}

const rawVideoRanges = "width=(int)[ 1, 2147483647 ], height=(int)[ 1, 2147483647 ], framerate=(fraction)[ 0/1, 2147483647/1 ]"

// TemplateCaps returns the sink pad template for p.
func TemplateCaps(p Preferences) string {
	names := make([]string, 0, 2)
	for _, f := range p.PackedFormats() {
		names = append(names, f.String())
	}
	packed := fmt.Sprintf("%s, format=(string){ %s }, %s", RawVideo, strings.Join(names, ", "), rawVideoRanges)
	if !p.TextureUpload {
		return packed
	}
	texture := fmt.Sprintf("%s(%s), format=(string)%s, %s", RawVideo, FeatureTextureUpload, NV12, rawVideoRanges)
	return texture + "; " + packed
}
