// Package videosink bridges decoded video frames from a media pipeline to a
// renderer running on its own main loop.
//
// # Design
//
// The sink holds exactly one frame at a time. Render stores the frame, posts
// a delivery task to the consumer's loop and blocks until the consumer has
// returned from its handler. The pipeline therefore never decodes faster than
// the renderer draws.
//
//	streaming thread                      consumer loop
//	Render(f) ─► premultiply ─► store ─► post ─► take ─► handler(f) ─► finish
//	    ▲                                                              │
//	    └──────────────────── wake ◄───────────────────────────────────┘
//
// Unlock cancels the handoff at any point: a blocked Render returns FlowOK
// immediately, pending frames are dropped, and further renders return FlowOK
// without work until UnlockStop.
//
// Straight-alpha formats (BGRA, ARGB) are copied into premultiplied buffers
// with (c*a + 128) / 255 per channel. The source frame is never written.
//
// # Basic Usage
//
//	loop := videosink.NewLoop()
//	s, err := videosink.New(videosink.Config{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	s.Attach(loop, func(f *videosink.Frame) {
//	    upload(f.Data)
//	})
//	go pipeline(s) // Start, SetCaps, Render...
//	loop.Run(ctx)
//
// The gstsink package registers the sink as a GStreamer element.
package videosink
