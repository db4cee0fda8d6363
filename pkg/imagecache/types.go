package imagecache

import (
	"errors"
)

// DefaultThumbnailShortSide is the thumbnail short side in logical units.
// The long side follows the asset's aspect ratio.
const DefaultThumbnailShortSide = 50

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrClosed is returned when Close is called on a closed cache.
	ErrClosed = errors.New("image cache is closed")
)

// ============================================================================
// Tiers
// ============================================================================

// Tier selects one of the two independent cache tracks.
type Tier int

const (
	// TierThumbnail holds small low-fidelity images for the prefetch window.
	TierThumbnail Tier = iota

	// TierHighRes holds cell-sized high-fidelity images for visible cells.
	// A high-res entry takes priority over the thumbnail when rendering.
	TierHighRes
)

func (t Tier) String() string {
	switch t {
	case TierThumbnail:
		return "thumbnail"
	case TierHighRes:
		return "highres"
	default:
		return "unknown"
	}
}

// Tiers lists every tier, in a stable order.
var Tiers = []Tier{TierThumbnail, TierHighRes}

// ============================================================================
// Configuration and stats
// ============================================================================

// Config tunes a Cache.
type Config struct {
	// ThumbnailShortSide is the requested thumbnail short side. Zero means
	// DefaultThumbnailShortSide.
	ThumbnailShortSide float64
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{ThumbnailShortSide: DefaultThumbnailShortSide}
}

// TierStats is a point-in-time view of one tier.
type TierStats struct {
	Cached   int // images resident
	InFlight int // outstanding catalog requests

	Requests  uint64 // catalog requests issued
	Hits      uint64 // fetches answered from the cache
	Joined    uint64 // fetches attached to an outstanding request
	Empty     uint64 // completions without an image
	Cancelled uint64 // requests cancelled
	Evicted   uint64 // images evicted
}

// Stats is a point-in-time view of both tiers.
type Stats struct {
	Thumbnail TierStats
	HighRes   TierStats
}

// Tier returns the stats for t.
func (s Stats) Tier(t Tier) TierStats {
	if t == TierHighRes {
		return s.HighRes
	}
	return s.Thumbnail
}
