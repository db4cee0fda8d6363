// Package asset defines the photo asset reference and the ordered asset list
// the engine addresses by index.
package asset

import (
	"fmt"
	"sync"
)

// Asset is one library entry.
type Asset struct {
	// ID is stable and unique within a library.
	ID string

	// Width and Height are the intrinsic pixel dimensions.
	Width  int
	Height int
}

// Size returns the intrinsic dimensions.
func (a Asset) Size() Size { return Size{Width: float64(a.Width), Height: float64(a.Height)} }

func (a Asset) String() string { return fmt.Sprintf("%s (%dx%d)", a.ID, a.Width, a.Height) }

// Size is a width/height pair. Target sizes handed to the catalog are
// fractional, so this is float64 rather than int.
type Size struct {
	Width  float64
	Height float64
}

// ShortSide returns the smaller of the two dimensions.
func (s Size) ShortSide() float64 { return min(s.Width, s.Height) }

// LongSide returns the larger of the two dimensions.
func (s Size) LongSide() float64 { return max(s.Width, s.Height) }

// IsZero reports whether either dimension is non-positive.
func (s Size) IsZero() bool { return s.Width <= 0 || s.Height <= 0 }

func (s Size) String() string { return fmt.Sprintf("%.1fx%.1f", s.Width, s.Height) }

// Provider is the read side of the asset list plus wholesale replacement.
type Provider interface {
	// Count returns the number of assets.
	Count() int

	// At returns the asset at index i, or false when i is out of range.
	At(i int) (Asset, bool)

	// ByID returns the asset with the given identifier and its index.
	ByID(id string) (Asset, int, bool)

	// Replace swaps the whole list.
	Replace(assets []Asset)
}

// List is the in-memory Provider. It is safe for concurrent use; Replace
// swaps the backing slice and index atomically, so readers see either the
// old list or the new one.
type List struct {
	mu     sync.RWMutex
	assets []Asset
	index  map[string]int
}

var _ Provider = (*List)(nil)

// NewList returns a list holding a copy of assets.
func NewList(assets []Asset) *List {
	l := &List{}
	l.Replace(assets)
	return l
}

// Count returns the number of assets.
func (l *List) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.assets)
}

// At returns the asset at index i.
func (l *List) At(i int) (Asset, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.assets) {
		return Asset{}, false
	}
	return l.assets[i], true
}

// ByID returns the asset with the given identifier and its current index.
func (l *List) ByID(id string) (Asset, int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[id]
	if !ok {
		return Asset{}, -1, false
	}
	return l.assets[i], i, true
}

// Replace swaps the list. The slice is copied. When ids repeat, the first
// occurrence wins the identifier lookup.
func (l *List) Replace(assets []Asset) {
	cp := make([]Asset, len(assets))
	copy(cp, assets)

	idx := make(map[string]int, len(cp))
	for i, a := range cp {
		if _, dup := idx[a.ID]; !dup {
			idx[a.ID] = i
		}
	}

	l.mu.Lock()
	l.assets = cp
	l.index = idx
	l.mu.Unlock()
}

// Snapshot returns a copy of the current list.
func (l *List) Snapshot() []Asset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := make([]Asset, len(l.assets))
	copy(cp, l.assets)
	return cp
}
