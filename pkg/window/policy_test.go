package window

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/gridcache/pkg/asset"
	"github.com/marmos91/gridcache/pkg/rangequeue"
)

func span(first, last int) []int {
	out := make([]int, 0, last-first+1)
	for i := first; i <= last; i++ {
		out = append(out, i)
	}
	return out
}

func TestInfer(t *testing.T) {
	tests := []struct {
		name    string
		visible []int
		changed int
		want    Direction
	}{
		{"before first", span(100, 120), 95, DirectionBackward},
		{"after last", span(100, 120), 121, DirectionForward},
		{"inside", span(100, 120), 110, DirectionNone},
		{"on first", span(100, 120), 100, DirectionNone},
		{"on last", span(100, 120), 120, DirectionNone},
		{"unsorted", []int{120, 100, 110}, 99, DirectionBackward},
		{"empty visible", nil, 5, DirectionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Infer(tt.visible, tt.changed))
		})
	}
}

func TestEvictions(t *testing.T) {
	p := New(DefaultThresholds())

	tests := []struct {
		name    string
		visible []int
		changed int
		count   int
		want    Eviction
	}{
		{
			name:    "forward within bounds",
			visible: span(1180, 1199),
			changed: 1200,
			count:   5000,
			want:    Eviction{Direction: DirectionForward, Thumbnail: 2200, HighRes: 1220},
		},
		{
			name:    "forward thumbnail past end",
			visible: span(4480, 4499),
			changed: 4500,
			count:   5000,
			want:    Eviction{Direction: DirectionForward, Thumbnail: -1, HighRes: 4520},
		},
		{
			name:    "forward both past end",
			visible: span(4970, 4989),
			changed: 4990,
			count:   5000,
			want:    Eviction{Direction: DirectionForward, Thumbnail: -1, HighRes: -1},
		},
		{
			name:    "backward thumbnail below zero",
			visible: span(100, 120),
			changed: 95,
			count:   5000,
			want:    Eviction{Direction: DirectionBackward, Thumbnail: -1, HighRes: 75},
		},
		{
			name:    "backward both in bounds",
			visible: span(1500, 1520),
			changed: 1400,
			count:   5000,
			want:    Eviction{Direction: DirectionBackward, Thumbnail: 400, HighRes: 1380},
		},
		{
			name:    "backward lands on zero",
			visible: span(1001, 1020),
			changed: 1000,
			count:   5000,
			want:    Eviction{Direction: DirectionBackward, Thumbnail: 0, HighRes: 980},
		},
		{
			name:    "inside visible span",
			visible: span(100, 120),
			changed: 110,
			count:   5000,
			want:    Eviction{Direction: DirectionNone, Thumbnail: -1, HighRes: -1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Evictions(tt.visible, tt.changed, tt.count))
		})
	}

	assert.True(t, Eviction{Thumbnail: -1, HighRes: -1}.None())
	assert.False(t, Eviction{Thumbnail: 3, HighRes: -1}.None())
}

func TestPrefetch(t *testing.T) {
	p := New(DefaultThresholds())

	tests := []struct {
		name    string
		visible []int
		changed int
		count   int
		want    rangequeue.Range
		dir     Direction
		ok      bool
	}{
		{"forward clamped to last index", span(430, 449), 450, 500, rangequeue.Range{Start: 450, End: 499}, DirectionForward, true},
		{"forward full window", span(500, 520), 521, 3000, rangequeue.Range{Start: 521, End: 1521}, DirectionForward, true},
		{"backward full window", span(1500, 1520), 1499, 3000, rangequeue.Range{Start: 499, End: 1499}, DirectionBackward, true},
		{"backward clamped to zero", span(100, 120), 95, 3000, rangequeue.Range{Start: 0, End: 95}, DirectionBackward, true},
		{"backward at zero is empty", span(1, 20), 0, 3000, rangequeue.Range{}, DirectionBackward, false},
		{"forward on last index is empty", span(480, 498), 499, 500, rangequeue.Range{}, DirectionForward, false},
		{"no direction", span(100, 120), 110, 3000, rangequeue.Range{}, DirectionNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, dir, ok := p.Prefetch(tt.visible, tt.changed, tt.count)
			assert.Equal(t, tt.want, r)
			assert.Equal(t, tt.dir, dir)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Thresholds{HighResEvictOffset: 5})
	assert.Equal(t, Thresholds{
		PrefetchWindow:       DefaultPrefetchWindow,
		ThumbnailEvictOffset: DefaultThumbnailEvictOffset,
		HighResEvictOffset:   5,
	}, p.Thresholds())
}

func TestRenderSize(t *testing.T) {
	tests := []struct {
		name  string
		asset asset.Size
		cell  asset.Size
		want  asset.Size
	}{
		{"landscape into square", asset.Size{Width: 4000, Height: 3000}, asset.Size{Width: 120, Height: 120}, asset.Size{Width: 160, Height: 120}},
		{"portrait into wide cell", asset.Size{Width: 1000, Height: 2000}, asset.Size{Width: 300, Height: 100}, asset.Size{Width: 100, Height: 200}},
		{"upscale small asset", asset.Size{Width: 50, Height: 50}, asset.Size{Width: 100, Height: 100}, asset.Size{Width: 100, Height: 100}},
		{"unknown asset size", asset.Size{}, asset.Size{Width: 80, Height: 60}, asset.Size{Width: 80, Height: 60}},
		{"zero cell", asset.Size{Width: 10, Height: 20}, asset.Size{}, asset.Size{Width: 10, Height: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderSize(tt.asset, tt.cell))
		})
	}
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "forward", DirectionForward.String())
	assert.Equal(t, "backward", DirectionBackward.String())
	assert.Equal(t, "none", DirectionNone.String())
}
