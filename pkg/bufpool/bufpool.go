// Package bufpool reuses the byte slices image files are read into.
//
// Decoding a photo means reading the whole encoded file first, and a
// scroll through a large library reads thousands of files in quick
// succession. Buffers come from three size classes:
//   - Small (256 KiB): thumbnails, screenshots, small PNGs
//   - Medium (4 MiB): typical camera JPEGs
//   - Large (16 MiB): high-resolution PNG and TIFF files
//
// Larger requests are allocated directly and never pooled, so one huge
// file does not stay resident.
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
	"sync/atomic"
)

// Default size classes.
const (
	DefaultSmallSize  = 256 << 10
	DefaultMediumSize = 4 << 20
	DefaultLargeSize  = 16 << 20
)

// Config sets the size classes. Zero values take the defaults.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the default size classes.
func DefaultConfig() Config {
	return Config{
		SmallSize:  DefaultSmallSize,
		MediumSize: DefaultMediumSize,
		LargeSize:  DefaultLargeSize,
	}
}

// Stats counts how requests were served.
type Stats struct {
	Pooled   uint64 // served from a size class
	Oversize uint64 // allocated directly
	Returned uint64 // buffers accepted back by Put
}

type class struct {
	size int
	pool sync.Pool
}

func newClass(size int) *class {
	c := &class{size: size}
	c.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return c
}

// Pool is a set of size-classed buffer pools. It is safe for concurrent use.
type Pool struct {
	classes [3]*class

	pooled   atomic.Uint64
	oversize atomic.Uint64
	returned atomic.Uint64
}

// NewPool creates a pool. A nil cfg uses DefaultConfig.
func NewPool(cfg *Config) *Pool {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.SmallSize > 0 {
			c.SmallSize = cfg.SmallSize
		}
		if cfg.MediumSize > 0 {
			c.MediumSize = cfg.MediumSize
		}
		if cfg.LargeSize > 0 {
			c.LargeSize = cfg.LargeSize
		}
	}
	return &Pool{classes: [3]*class{
		newClass(c.SmallSize),
		newClass(c.MediumSize),
		newClass(c.LargeSize),
	}}
}

// Get returns a slice of length size. Its capacity may be larger. Sizes
// above the large class are allocated directly.
func (p *Pool) Get(size int) []byte {
	for _, c := range p.classes {
		if size <= c.size {
			p.pooled.Add(1)
			buf := *c.pool.Get().(*[]byte)
			return buf[:size]
		}
	}
	p.oversize.Add(1)
	return make([]byte, size)
}

// Put returns buf for reuse. Buffers whose capacity matches no size class
// are left to the garbage collector. buf must not be used afterwards.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	for _, c := range p.classes {
		if cap(buf) == c.size {
			full := buf[:c.size]
			c.pool.Put(&full)
			p.returned.Add(1)
			return
		}
	}
}

// Stats returns the pool's counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Pooled:   p.pooled.Load(),
		Oversize: p.oversize.Load(),
		Returned: p.returned.Load(),
	}
}

var globalPool = NewPool(nil)

// Get returns a buffer from the package-level pool.
func Get(size int) []byte { return globalPool.Get(size) }

// Put returns a buffer to the package-level pool.
func Put(buf []byte) { globalPool.Put(buf) }

// GlobalStats returns the package-level pool's counters.
func GlobalStats() Stats { return globalPool.Stats() }
