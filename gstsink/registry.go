package gstsink

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"

	videosink "github.com/cbetz421/gst-wk"
)

// ErrUnknownSink is returned when an element is not a live wkvsink instance.
var ErrUnknownSink = errors.New("gstsink: not a registered sink instance")

// instances maps sink-id to *videoSink.
var instances sync.Map

// Lookup returns the core sink behind a wkvsink element.
func Lookup(elem *gst.Element) (videosink.Sink, error) {
	vs, err := lookup(elem)
	if err != nil {
		return nil, err
	}
	return vs.core, nil
}

// Attach sets the consumer of a wkvsink element: frames are posted to ctx and
// handed to h.
func Attach(elem *gst.Element, ctx videosink.DispatchContext, h videosink.FrameHandler) error {
	vs, err := lookup(elem)
	if err != nil {
		return err
	}
	return vs.core.Attach(ctx, h)
}

// Forget drops the registry entry of elem once the application is done with it.
func Forget(elem *gst.Element) {
	if id, err := sinkID(elem); err == nil {
		instances.Delete(id)
	}
}

func lookup(elem *gst.Element) (*videoSink, error) {
	id, err := sinkID(elem)
	if err != nil {
		return nil, err
	}
	v, ok := instances.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: sink-id %q", ErrUnknownSink, id)
	}
	return v.(*videoSink), nil
}

func sinkID(elem *gst.Element) (string, error) {
	if elem == nil {
		return "", fmt.Errorf("%w: nil element", ErrUnknownSink)
	}
	v, err := elem.GetProperty("sink-id")
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnknownSink, elem.GetName(), err)
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %s has no sink-id", ErrUnknownSink, elem.GetName())
	}
	return id, nil
}
