package prefetch

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/marmos91/gridcache/pkg/asset"
)

// DefaultChunkSize is the number of indices fetched per chunk. It is also the
// upper bound on thumbnail requests the pipeline keeps in flight.
const DefaultChunkSize = 50

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrClosed is returned when a closed pipeline is used.
	ErrClosed = errors.New("prefetch pipeline is closed")

	// ErrInvalidRange is returned for a range whose end precedes its start.
	ErrInvalidRange = errors.New("invalid prefetch range")
)

// ============================================================================
// State
// ============================================================================

// State is the pipeline's position in its work loop.
//
//	Idle -> Running -> Draining -> Running ... -> Draining -> Idle
type State int32

const (
	// StateIdle means no range is being processed and the backlog is empty.
	StateIdle State = iota

	// StateRunning means a range is being fetched chunk by chunk.
	StateRunning

	// StateDraining means a range just finished and the loop is pulling the
	// next one from the backlog.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// ============================================================================
// Collaborators
// ============================================================================

// ThumbnailFetcher is the slice of the image cache the pipeline drives.
// *imagecache.Cache satisfies it.
type ThumbnailFetcher interface {
	Thumbnail(id string) (image.Image, bool)
	FetchThumbnail(ctx context.Context, a asset.Asset, onComplete func())
}

// Assets is the read side of the asset list.
type Assets interface {
	Count() int
	At(i int) (asset.Asset, bool)
}

// Metrics provides observability for the pipeline. A nil Metrics disables
// collection.
type Metrics interface {
	// RecordRange records a range request; queued reports whether it went
	// to the backlog.
	RecordRange(queued bool)

	// ObserveChunk records a finished chunk: fetches issued, cache hits
	// skipped, and time spent waiting on the barrier.
	ObserveChunk(issued, skipped int, duration time.Duration)

	// SetQueueDepth records the backlog length.
	SetQueueDepth(n int)

	// SetState records the pipeline state.
	SetState(s State)
}

// ============================================================================
// Configuration and stats
// ============================================================================

// Config tunes a Pipeline.
type Config struct {
	// ChunkSize is the number of indices per chunk. Zero means
	// DefaultChunkSize.
	ChunkSize int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize}
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	State     State
	Queued    int    // ranges waiting in the backlog
	Ranges    uint64 // ranges fully processed
	Chunks    uint64 // chunks fully processed
	Issued    uint64 // thumbnail fetches issued
	Skipped   uint64 // indices skipped as already cached
	OutOfList uint64 // indices skipped as out of the asset list
}
