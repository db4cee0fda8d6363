package fs

import (
	"errors"
	"time"

	"github.com/marmos91/gridcache/pkg/catalog"
)

// Defaults for Config fields left zero.
const (
	DefaultWorkers       = 8
	DefaultDecodeTimeout = 10 * time.Second
	DefaultWatchDebounce = 500 * time.Millisecond
)

var (
	// ErrFileTooLarge is returned when a file exceeds Config.MaxFileSize.
	ErrFileTooLarge = errors.New("image file exceeds size limit")

	// ErrInvalidID is returned for asset IDs that escape the library root.
	ErrInvalidID = errors.New("invalid asset id")
)

// Config configures a directory catalog.
type Config struct {
	// Root is the library directory.
	Root string

	// Workers bounds concurrent decodes.
	Workers int

	// MaxFileSize skips files larger than this many bytes. Zero means no limit.
	MaxFileSize int64

	// DecodeTimeout bounds a single decode. A timed-out request delivers nil.
	DecodeTimeout time.Duration

	// WatchDebounce coalesces bursts of file events into one change signal.
	WatchDebounce time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.DecodeTimeout <= 0 {
		c.DecodeTimeout = DefaultDecodeTimeout
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = DefaultWatchDebounce
	}
}

// Metrics provides observability for the directory catalog.
// A nil Metrics disables collection.
type Metrics interface {
	// ObserveDecode records one image request: bytes read from disk, the
	// time from dequeue to delivery, and whether it failed.
	ObserveDecode(fidelity catalog.Fidelity, bytes int64, duration time.Duration, err error)

	// ObserveScan records a library listing.
	ObserveScan(assets, skipped int, duration time.Duration)

	// SetPending records the number of requests not yet delivered.
	SetPending(n int)
}
