package convert

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/oxtoacart/bpool"

	"github.com/cbetz421/gst-wk/internal/format"
	"github.com/cbetz421/gst-wk/internal/frame"
)

// Allocator hands out destination buffers for converted frames.
type Allocator interface {
	// Allocate returns a buffer of exactly size bytes.
	Allocate(size int) ([]byte, error)
	// Release takes back a buffer obtained from Allocate.
	Release(buf []byte)
}

// DefaultPoolDepth is the number of spare buffers a PoolAllocator keeps.
const DefaultPoolDepth = 4

// PoolAllocator recycles destination buffers through a bpool.BytePool. The
// pool is rebuilt when the requested size changes, so a renegotiation to a new
// resolution drops the old buffers.
type PoolAllocator struct {
	// MaxFrameBytes bounds a single allocation. Zero means unbounded.
	MaxFrameBytes int
	// Depth is the number of idle buffers retained. Zero means DefaultPoolDepth.
	Depth int

	mu   sync.Mutex
	pool *bpool.BytePool
}

// NewPoolAllocator returns a PoolAllocator with the given bounds.
func NewPoolAllocator(maxFrameBytes, depth int) *PoolAllocator {
	return &PoolAllocator{MaxFrameBytes: maxFrameBytes, Depth: depth}
}

// Allocate returns a pooled buffer of size bytes.
func (p *PoolAllocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrAllocation, size)
	}
	if p.MaxFrameBytes > 0 && size > p.MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrAllocation, size, p.MaxFrameBytes)
	}

	p.mu.Lock()
	if p.pool == nil || p.pool.Width() != size {
		depth := p.Depth
		if depth <= 0 {
			depth = DefaultPoolDepth
		}
		p.pool = bpool.NewBytePool(depth, size)
	}
	pool := p.pool
	p.mu.Unlock()

	return pool.Get(), nil
}

// Release returns buf to the pool if it still matches the current size.
func (p *PoolAllocator) Release(buf []byte) {
	p.mu.Lock()
	pool := p.pool
	p.mu.Unlock()

	if pool != nil && cap(buf) == pool.Width() {
		pool.Put(buf)
	}
}

// Converter produces premultiplied copies of straight-alpha frames. The source
// frame is never written.
type Converter struct {
	alloc Allocator
	pos   AlphaPosition

	converted atomic.Uint64
}

// NewConverter returns a Converter drawing buffers from alloc. pos is resolved
// once here.
func NewConverter(alloc Allocator, pos AlphaPosition) *Converter {
	return &Converter{alloc: alloc, pos: pos.Resolve()}
}

// Convert allocates a frame of the same size as src, copies its metadata and
// fills it with src premultiplied. The returned frame holds one reference and
// gives its buffer back to the allocator when released.
func (c *Converter) Convert(src *frame.Frame, d format.Descriptor) (*frame.Frame, error) {
	buf, err := c.alloc.Allocate(len(src.Data))
	if err != nil {
		return nil, err
	}
	if err := Premultiply(buf, src.Data, d.Width, d.Height, d.Stride, c.pos); err != nil {
		c.alloc.Release(buf)
		return nil, err
	}

	dst := frame.New(buf, func() { c.alloc.Release(buf) })
	dst.CopyMetadataFrom(src)
	c.converted.Add(1)
	return dst, nil
}

// Converted returns the number of frames converted so far.
func (c *Converter) Converted() uint64 {
	return c.converted.Load()
}

// AlphaPosition returns the layout the converter was built for.
func (c *Converter) AlphaPosition() AlphaPosition {
	return c.pos
}
