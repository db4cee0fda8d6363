// Package imagecache holds decoded images for one library-load session.
//
// The cache keeps two independent tiers per asset:
//   - Thumbnail: small, low-fidelity images kept for a wide window around the
//     viewport so scrolling never shows blank cells.
//   - HighRes: cell-sized, high-fidelity images for the cells on screen.
//
// Each tier pairs an image map with an in-flight table of outstanding catalog
// requests. Both live behind one rwstore.Store per tier.
//
// Key Design Principles:
//   - At most one catalog request per asset per tier. A fetch for an asset
//     that is cached completes immediately; a fetch for an asset that is
//     already in flight joins the outstanding request.
//   - The in-flight entry is reserved before the catalog is called, so two
//     near-simultaneous fetches cannot both miss.
//   - The in-flight entry is removed as soon as the request completes,
//     whether or not an image was produced.
//   - A nil image is a normal result. It is never retried here.
//
// A Cache is bound to the asset list it was created for. A new library
// session must build a new Cache.
package imagecache

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/marmos91/gridcache/internal/logger"
	"github.com/marmos91/gridcache/pkg/asset"
	"github.com/marmos91/gridcache/pkg/catalog"
	"github.com/marmos91/gridcache/pkg/rwstore"
)

// Cache is the per-session image cache. It is safe for concurrent use.
type Cache struct {
	catalog catalog.Catalog
	cfg     Config
	metrics Metrics

	tiers  [2]*rwstore.Store[tierState]
	counts [2]tierCounters
	closed atomic.Bool
}

// tierState is the value guarded by a tier's store.
type tierState struct {
	images   map[string]image.Image
	requests map[string]*inflight
}

// inflight is one outstanding catalog request. Fields are only touched with
// the owning tier's store held exclusively.
//
// The pointer identity is the token: completion removes the map entry only
// if the map still points at this request, so a late completion of a
// cancelled request cannot clear a newer one.
type inflight struct {
	id        catalog.RequestID
	hasID     bool
	cancelled bool
	finished  bool
	waiters   []func(image.Image)
}

type tierCounters struct {
	requests  atomic.Uint64
	hits      atomic.Uint64
	joined    atomic.Uint64
	empty     atomic.Uint64
	cancelled atomic.Uint64
	evicted   atomic.Uint64
}

// New creates a cache backed by cat. metrics may be nil.
func New(cat catalog.Catalog, cfg Config, metrics Metrics) *Cache {
	if cfg.ThumbnailShortSide <= 0 {
		cfg.ThumbnailShortSide = DefaultThumbnailShortSide
	}

	c := &Cache{
		catalog: cat,
		cfg:     cfg,
		metrics: metrics,
	}
	for i := range c.tiers {
		c.tiers[i] = rwstore.New(tierState{
			images:   make(map[string]image.Image),
			requests: make(map[string]*inflight),
		})
	}
	return c
}

// ============================================================================
// Fetch operations
// ============================================================================

// FetchThumbnail ensures a thumbnail for a is cached or being fetched.
//
// The request asks the catalog for low-fidelity delivery at ThumbnailSize(a).
// onComplete runs once the thumbnail is resident or the fetch produced
// nothing; callers re-query Thumbnail to find out which. It also runs,
// immediately, when the thumbnail is already cached. onComplete may be nil.
//
// FetchThumbnail does not block on the catalog.
func (c *Cache) FetchThumbnail(ctx context.Context, a asset.Asset, onComplete func()) {
	var cb func(image.Image)
	if onComplete != nil {
		cb = func(image.Image) { onComplete() }
	}
	c.fetch(ctx, TierThumbnail, a, c.ThumbnailSize(a), catalog.FidelityLow, cb)
}

// FetchHighRes ensures a high-res image of a at size is cached or being
// fetched. onComplete receives the image, or nil when the catalog produced
// none. It runs immediately with the cached image on a hit. onComplete may
// be nil.
//
// The size only applies to the request that populates the tier; a cached
// high-res image is returned regardless of the size it was fetched at.
func (c *Cache) FetchHighRes(ctx context.Context, a asset.Asset, size asset.Size, onComplete func(image.Image)) {
	c.fetch(ctx, TierHighRes, a, size, catalog.FidelityHigh, onComplete)
}

// ThumbnailSize returns the thumbnail request size for a: its short side is
// the configured short side and the long side follows the aspect ratio.
func (c *Cache) ThumbnailSize(a asset.Asset) asset.Size {
	side := c.cfg.ThumbnailShortSide
	size := a.Size()
	if size.IsZero() {
		return asset.Size{Width: side, Height: side}
	}
	if size.Width < size.Height {
		return asset.Size{Width: side, Height: size.Height * side / size.Width}
	}
	return asset.Size{Width: size.Width * side / size.Height, Height: side}
}

type lookup int

const (
	lookupIssue lookup = iota
	lookupHit
	lookupJoined
)

func (c *Cache) fetch(ctx context.Context, tier Tier, a asset.Asset, size asset.Size, fidelity catalog.Fidelity, cb func(image.Image)) {
	if c.closed.Load() {
		if cb != nil {
			cb(nil)
		}
		return
	}

	store := c.tiers[tier]
	counts := &c.counts[tier]

	var (
		cached image.Image
		req    *inflight
	)
	outcome := rwstore.Exclusive(store, func(s *tierState) lookup {
		if img, ok := s.images[a.ID]; ok {
			cached = img
			return lookupHit
		}
		if r, ok := s.requests[a.ID]; ok {
			if cb != nil {
				r.waiters = append(r.waiters, cb)
			}
			return lookupJoined
		}
		req = &inflight{}
		if cb != nil {
			req.waiters = append(req.waiters, cb)
		}
		s.requests[a.ID] = req
		return lookupIssue
	})

	switch outcome {
	case lookupHit:
		counts.hits.Add(1)
		c.recordLookup(tier, LookupHit)
		if cb != nil {
			cb(cached)
		}
		return
	case lookupJoined:
		counts.joined.Add(1)
		c.recordLookup(tier, LookupJoined)
		return
	}

	counts.requests.Add(1)
	c.recordLookup(tier, LookupMiss)
	c.refreshGauges(tier)

	logger.DebugCtx(ctx, "image request issued",
		logger.Tier(tier.String()),
		logger.AssetID(a.ID),
		logger.Fidelity(fidelity.String()))

	start := time.Now()
	id := c.catalog.RequestImage(ctx, a, size, fidelity, func(img image.Image) {
		c.complete(tier, a.ID, req, img, start)
	})

	// Record the handle. If the request was cancelled before the handle was
	// known, the catalog has not been told yet.
	cancelNow := rwstore.Exclusive(store, func(*tierState) bool {
		req.id = id
		req.hasID = true
		return req.cancelled && !req.finished
	})
	if cancelNow {
		c.catalog.Cancel(id)
	}
}

// complete handles delivery of a catalog request.
func (c *Cache) complete(tier Tier, assetID string, req *inflight, img image.Image, start time.Time) {
	store := c.tiers[tier]

	waiters := rwstore.Exclusive(store, func(s *tierState) []func(image.Image) {
		if req.finished {
			return nil
		}
		req.finished = true
		if s.requests[assetID] == req {
			delete(s.requests, assetID)
		}
		if req.cancelled {
			req.waiters = nil
			return nil
		}
		if img != nil && !c.closed.Load() {
			s.images[assetID] = img
		}
		w := req.waiters
		req.waiters = nil
		return w
	})

	if img == nil {
		c.counts[tier].empty.Add(1)
	}
	if c.metrics != nil {
		c.metrics.ObserveFetch(tier, img == nil, time.Since(start))
	}
	c.refreshGauges(tier)

	logger.Debug("image request completed",
		logger.Tier(tier.String()),
		logger.AssetID(assetID),
		logger.Empty(img == nil),
		logger.DurationMs(logger.Duration(start)))

	for _, w := range waiters {
		w(img)
	}
}

// ============================================================================
// Read operations
// ============================================================================

// Thumbnail returns the cached thumbnail for id.
func (c *Cache) Thumbnail(id string) (image.Image, bool) {
	return c.get(TierThumbnail, id)
}

// HighRes returns the cached high-res image for id.
func (c *Cache) HighRes(id string) (image.Image, bool) {
	return c.get(TierHighRes, id)
}

func (c *Cache) get(tier Tier, id string) (image.Image, bool) {
	var (
		img image.Image
		ok  bool
	)
	c.tiers[tier].Read(func(s *tierState) {
		img, ok = s.images[id]
	})
	return img, ok
}

// InFlight reports whether a request for id is outstanding in tier.
func (c *Cache) InFlight(tier Tier, id string) bool {
	return rwstore.Read(c.tiers[tier], func(s *tierState) bool {
		_, ok := s.requests[id]
		return ok
	})
}

// ============================================================================
// Cancellation and eviction
// ============================================================================

// CancelHighRes cancels the outstanding high-res request for a, if any, and
// clears its in-flight entry. Callbacks waiting on the request are dropped.
// Thumbnail requests are never cancelled.
func (c *Cache) CancelHighRes(a asset.Asset) {
	c.cancel(TierHighRes, a.ID)
}

func (c *Cache) cancel(tier Tier, assetID string) {
	var (
		id    catalog.RequestID
		hasID bool
	)
	found := rwstore.Exclusive(c.tiers[tier], func(s *tierState) bool {
		req, ok := s.requests[assetID]
		if !ok {
			return false
		}
		delete(s.requests, assetID)
		req.cancelled = true
		req.waiters = nil
		id, hasID = req.id, req.hasID
		return true
	})
	if !found {
		return
	}

	// A request without a handle yet is cancelled by fetch once the
	// catalog returns one.
	if hasID {
		c.catalog.Cancel(id)
	}

	c.counts[tier].cancelled.Add(1)
	if c.metrics != nil {
		c.metrics.RecordCancel(tier)
	}
	c.refreshGauges(tier)

	logger.Debug("image request cancelled",
		logger.Tier(tier.String()),
		logger.AssetID(assetID),
		logger.Request(string(id)))
}

// EvictThumbnail drops the cached thumbnail for a. An outstanding thumbnail
// request is left alone.
func (c *Cache) EvictThumbnail(a asset.Asset) {
	c.evict(TierThumbnail, a.ID)
}

// EvictHighRes drops the cached high-res image for a. An outstanding
// high-res request is left alone.
func (c *Cache) EvictHighRes(a asset.Asset) {
	c.evict(TierHighRes, a.ID)
}

func (c *Cache) evict(tier Tier, assetID string) {
	c.tiers[tier].Write(func(s *tierState) {
		if _, ok := s.images[assetID]; !ok {
			return
		}
		delete(s.images, assetID)
		c.counts[tier].evicted.Add(1)
		if c.metrics != nil {
			c.metrics.RecordEvictions(tier, 1)
			c.metrics.SetEntries(tier, len(s.images))
		}
	})
}

// EvictAllHighRes drops every cached high-res image. Thumbnails and
// outstanding requests are kept.
func (c *Cache) EvictAllHighRes() {
	c.tiers[TierHighRes].Write(func(s *tierState) {
		n := len(s.images)
		if n == 0 {
			return
		}
		clear(s.images)
		c.counts[TierHighRes].evicted.Add(uint64(n))
		if c.metrics != nil {
			c.metrics.RecordEvictions(TierHighRes, n)
			c.metrics.SetEntries(TierHighRes, 0)
		}
		logger.Debug("high-res tier cleared", logger.Evicted(n))
	})
}

// ============================================================================
// Lifecycle and introspection
// ============================================================================

// Sync blocks until every queued eviction has been applied.
func (c *Cache) Sync() {
	for _, s := range c.tiers {
		s.Sync()
	}
}

// Stats returns a snapshot of both tiers.
func (c *Cache) Stats() Stats {
	return Stats{
		Thumbnail: c.tierStats(TierThumbnail),
		HighRes:   c.tierStats(TierHighRes),
	}
}

func (c *Cache) tierStats(tier Tier) TierStats {
	var st TierStats
	c.tiers[tier].Read(func(s *tierState) {
		st.Cached = len(s.images)
		st.InFlight = len(s.requests)
	})
	counts := &c.counts[tier]
	st.Requests = counts.requests.Load()
	st.Hits = counts.hits.Load()
	st.Joined = counts.joined.Load()
	st.Empty = counts.empty.Load()
	st.Cancelled = counts.cancelled.Load()
	st.Evicted = counts.evicted.Load()
	return st
}

// Close cancels every outstanding high-res request and drops all images.
// Thumbnail requests still run to completion but their images are
// discarded. Fetches after Close complete immediately with no image.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	ids := rwstore.Read(c.tiers[TierHighRes], func(s *tierState) []string {
		out := make([]string, 0, len(s.requests))
		for id := range s.requests {
			out = append(out, id)
		}
		return out
	})
	for _, id := range ids {
		c.cancel(TierHighRes, id)
	}

	for _, s := range c.tiers {
		s.Write(func(s *tierState) { clear(s.images) })
	}
	c.Sync()
	for _, t := range Tiers {
		c.refreshGauges(t)
	}
	return nil
}

func (c *Cache) recordLookup(tier Tier, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordLookup(tier, outcome)
	}
}

func (c *Cache) refreshGauges(tier Tier) {
	if c.metrics == nil {
		return
	}
	var entries, inFlight int
	c.tiers[tier].Read(func(s *tierState) {
		entries, inFlight = len(s.images), len(s.requests)
	})
	c.metrics.SetEntries(tier, entries)
	c.metrics.SetInFlight(tier, inFlight)
}
