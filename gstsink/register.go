// Package gstsink registers the video sink as a GStreamer element ("wkvsink")
// and maps the base sink virtual methods onto the framework-agnostic core.
//
// Usage:
//
//	gst.Init(nil)
//	if err := gstsink.Register(videosink.Config{Logger: logger}); err != nil {
//	    return err
//	}
//	elem, _ := gst.NewElement(gstsink.ElementName)
//	gstsink.Attach(elem, loop, onFrame)
package gstsink

import (
	"fmt"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/base"

	"github.com/cbetz421/gst-wk/internal/convert"
	"github.com/cbetz421/gst-wk/internal/format"
	"github.com/cbetz421/gst-wk/internal/sink"
)

// ElementName is the factory name the sink is registered under.
const ElementName = "wkvsink"

var (
	registerOnce sync.Once
	registerErr  error

	// elementConfig is the config every new element instance is built with.
	elementConfig sink.Config
)

// Register validates cfg and registers the element factory. Only the first
// call registers; later calls return its result. gst.Init must have run.
func Register(cfg sink.Config) error {
	registerOnce.Do(func() {
		if err := cfg.Validate(); err != nil {
			registerErr = err
			return
		}
		elementConfig = cfg

		if !gst.RegisterElement(nil, ElementName, gst.RankPrimary, &videoSink{}, base.ExtendsBaseSink) {
			registerErr = fmt.Errorf("gstsink: failed to register element %q", ElementName)
		}
	})
	return registerErr
}

// templateCaps is the sink pad template for the registered config.
func templateCaps() string {
	return format.TemplateCaps(format.Preferences{
		TextureUpload: elementConfig.TextureUpload,
		BigEndian:     elementConfig.AlphaPosition.Resolve() == convert.AlphaFirst,
	})
}
