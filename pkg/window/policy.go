// Package window turns visibility changes in the grid into prefetch and
// eviction decisions.
//
// The policy is pure: it maps (visible indices, changed index, list length)
// to index ranges and single indices. Applying those decisions to a cache
// and pipeline is the job of package grid.
package window

import (
	"slices"

	"github.com/marmos91/gridcache/pkg/asset"
	"github.com/marmos91/gridcache/pkg/rangequeue"
)

// Default thresholds, in indices.
const (
	DefaultPrefetchWindow       = 1000
	DefaultThumbnailEvictOffset = 1000
	DefaultHighResEvictOffset   = 20
)

// Direction is the scroll direction inferred from a visibility change.
type Direction int

const (
	// DirectionNone means the changed index lies inside the visible span.
	DirectionNone Direction = iota

	// DirectionForward means the changed index lies after the last visible
	// index.
	DirectionForward

	// DirectionBackward means the changed index lies before the first
	// visible index.
	DirectionBackward
)

func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	default:
		return "none"
	}
}

// Thresholds are the distances the policy works with.
type Thresholds struct {
	// PrefetchWindow is the number of indices prefetched from the changed
	// index in the scroll direction.
	PrefetchWindow int

	// ThumbnailEvictOffset is the distance from a disappearing cell at which
	// a thumbnail is evicted.
	ThumbnailEvictOffset int

	// HighResEvictOffset is the distance from a disappearing cell at which a
	// high-res image is evicted. High-res images are expensive, so this is
	// much tighter than the thumbnail offset.
	HighResEvictOffset int
}

// DefaultThresholds returns the default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PrefetchWindow:       DefaultPrefetchWindow,
		ThumbnailEvictOffset: DefaultThumbnailEvictOffset,
		HighResEvictOffset:   DefaultHighResEvictOffset,
	}
}

// Policy computes window decisions.
type Policy struct {
	t Thresholds
}

// New returns a policy. Zero thresholds take their defaults.
func New(t Thresholds) *Policy {
	d := DefaultThresholds()
	if t.PrefetchWindow <= 0 {
		t.PrefetchWindow = d.PrefetchWindow
	}
	if t.ThumbnailEvictOffset <= 0 {
		t.ThumbnailEvictOffset = d.ThumbnailEvictOffset
	}
	if t.HighResEvictOffset <= 0 {
		t.HighResEvictOffset = d.HighResEvictOffset
	}
	return &Policy{t: t}
}

// Thresholds returns the thresholds in effect.
func (p *Policy) Thresholds() Thresholds { return p.t }

// Infer classifies a visibility change at index changed against the visible
// indices, which need not be sorted. An empty visible set yields
// DirectionNone.
func Infer(visible []int, changed int) Direction {
	if len(visible) == 0 {
		return DirectionNone
	}
	first, last := slices.Min(visible), slices.Max(visible)
	switch {
	case changed < first:
		return DirectionBackward
	case changed > last:
		return DirectionForward
	default:
		return DirectionNone
	}
}

// Eviction is what to drop after a cell disappears. An index of -1 means
// nothing to evict in that tier.
type Eviction struct {
	Direction Direction
	Thumbnail int
	HighRes   int
}

// None reports whether nothing is evicted.
func (e Eviction) None() bool { return e.Thumbnail < 0 && e.HighRes < 0 }

// Evictions returns the trailing eviction band for a cell at changed that
// just disappeared, in a list of count assets. Offsets that fall outside
// [0, count) are skipped.
func (p *Policy) Evictions(visible []int, changed, count int) Eviction {
	e := Eviction{Direction: Infer(visible, changed), Thumbnail: -1, HighRes: -1}

	var thumb, high int
	switch e.Direction {
	case DirectionForward:
		thumb = changed + p.t.ThumbnailEvictOffset
		high = changed + p.t.HighResEvictOffset
	case DirectionBackward:
		thumb = changed - p.t.ThumbnailEvictOffset
		high = changed - p.t.HighResEvictOffset
	default:
		return e
	}

	if inBounds(thumb, count) {
		e.Thumbnail = thumb
	}
	if inBounds(high, count) {
		e.HighRes = high
	}
	return e
}

// Prefetch returns the thumbnail range to fetch after a cell at changed
// appears, in a list of count assets:
//
//	forward:  [changed, min(changed+window, count-1))
//	backward: [max(changed-window, 0), changed)
//
// The forward end is clamped to the last index, exclusive, so the final
// asset of the list is left to the on-render fetch. It reports false when
// no direction can be inferred or the range is empty.
func (p *Policy) Prefetch(visible []int, changed, count int) (rangequeue.Range, Direction, bool) {
	dir := Infer(visible, changed)

	var r rangequeue.Range
	switch dir {
	case DirectionForward:
		r = rangequeue.Range{
			Start: max(changed, 0),
			End:   min(changed+p.t.PrefetchWindow, count-1),
		}
	case DirectionBackward:
		r = rangequeue.Range{
			Start: max(changed-p.t.PrefetchWindow, 0),
			End:   min(changed, count),
		}
	default:
		return rangequeue.Range{}, dir, false
	}

	if r.Empty() {
		return rangequeue.Range{}, dir, false
	}
	return r, dir, true
}

// RenderSize returns the high-res request size for an asset of intrinsic
// size a drawn in a cell of size cell: the asset scaled so its short side
// matches the cell's short side, aspect ratio preserved. Degenerate sizes
// fall back to the cell size.
func RenderSize(a, cell asset.Size) asset.Size {
	if a.IsZero() {
		return cell
	}
	if cell.IsZero() {
		return a
	}
	short := a.ShortSide()
	target := cell.ShortSide()
	return asset.Size{Width: a.Width * target / short, Height: a.Height * target / short}
}

func inBounds(i, count int) bool { return i >= 0 && i < count }
