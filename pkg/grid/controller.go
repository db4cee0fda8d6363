// Package grid binds the window policy to a library session.
//
// A Controller owns the current session: the image cache and the prefetch
// pipeline built for the asset list that was loaded. The presentation layer
// reports visibility changes and render requests; the controller turns them
// into cache evictions, prefetch ranges and high-res fetches.
//
// Loading (or reloading) the library replaces the asset list wholesale and
// builds a fresh cache and pipeline. The previous session's cache is closed
// so no request for a stale asset list can land in the new one.
package grid

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/gridcache/internal/logger"
	"github.com/marmos91/gridcache/internal/telemetry"
	"github.com/marmos91/gridcache/pkg/asset"
	"github.com/marmos91/gridcache/pkg/catalog"
	"github.com/marmos91/gridcache/pkg/imagecache"
	"github.com/marmos91/gridcache/pkg/prefetch"
	"github.com/marmos91/gridcache/pkg/window"
)

var (
	// ErrNotAuthorized is returned by LoadLibrary when library access is
	// not granted.
	ErrNotAuthorized = errors.New("photo library access not authorized")

	// ErrNoSession is returned when no library has been loaded yet.
	ErrNoSession = errors.New("no library session")
)

// Config groups the engine settings.
type Config struct {
	Window   window.Thresholds
	Cache    imagecache.Config
	Prefetch prefetch.Config
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		Window:   window.DefaultThresholds(),
		Cache:    imagecache.DefaultConfig(),
		Prefetch: prefetch.DefaultConfig(),
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig sets the engine settings.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithAuthorizer gates LoadLibrary. Without one, access is assumed.
func WithAuthorizer(a catalog.Authorizer) Option {
	return func(c *Controller) { c.auth = a }
}

// WithCacheMetrics attaches metrics to every session's cache.
func WithCacheMetrics(m imagecache.Metrics) Option {
	return func(c *Controller) { c.cacheMetrics = m }
}

// WithPipelineMetrics attaches metrics to every session's pipeline.
func WithPipelineMetrics(m prefetch.Metrics) Option {
	return func(c *Controller) { c.pipelineMetrics = m }
}

// Controller is safe for concurrent use.
type Controller struct {
	catalog   catalog.Catalog
	lister    catalog.Lister
	assets    asset.Provider
	presenter Presenter
	auth      catalog.Authorizer

	cfg             Config
	policy          *window.Policy
	cacheMetrics    imagecache.Metrics
	pipelineMetrics prefetch.Metrics

	ctx context.Context

	// loadMu serialises LoadLibrary so sessions are built one at a time.
	loadMu sync.Mutex

	mu      sync.RWMutex
	session *Session
}

// Session is one library load: the cache and pipeline built for it.
type Session struct {
	ID       string
	Cache    *imagecache.Cache
	Pipeline *prefetch.Pipeline

	cancel context.CancelFunc
}

func (s *Session) close() {
	_ = s.Pipeline.Close()
	_ = s.Cache.Close()
	s.cancel()
}

// New creates a controller. ctx bounds every session it builds.
func New(ctx context.Context, cat catalog.Catalog, lister catalog.Lister, assets asset.Provider, presenter Presenter, opts ...Option) *Controller {
	c := &Controller{
		catalog:   cat,
		lister:    lister,
		assets:    assets,
		presenter: presenter,
		cfg:       DefaultConfig(),
		ctx:       ctx,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy = window.New(c.cfg.Window)
	return c
}

// ============================================================================
// Library lifecycle
// ============================================================================

// LoadLibrary checks access, lists the library, replaces the asset list and
// starts a new session. On denied access the presenter is shown
// AuthDeniedMessage and ErrNotAuthorized is returned.
func (c *Controller) LoadLibrary(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	ctx, span := telemetry.StartLibrarySpan(ctx, "load")
	defer span.End()

	if err := c.authorize(ctx); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	assets, err := c.lister.List(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("list library: %w", err)
	}

	// The old session must stop before the list it indexes is replaced.
	c.mu.Lock()
	prev := c.session
	c.session = nil
	c.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	c.assets.Replace(assets)

	id := uuid.NewString()
	sctx, cancel := context.WithCancel(logger.WithContext(c.ctx, logger.NewLogContext(id)))
	cache := imagecache.New(c.catalog, c.cfg.Cache, c.cacheMetrics)
	next := &Session{
		ID:       id,
		Cache:    cache,
		Pipeline: prefetch.New(sctx, cache, c.assets, c.cfg.Prefetch, c.pipelineMetrics),
		cancel:   cancel,
	}

	c.mu.Lock()
	c.session = next
	c.mu.Unlock()

	span.SetAttributes(telemetry.Count(len(assets)))
	logger.InfoCtx(sctx, "library loaded", logger.Count(len(assets)))

	c.presenter.ReloadAll()
	return nil
}

// Reload rebuilds the session after the library changed on disk.
func (c *Controller) Reload(ctx context.Context) error {
	logger.Info("library changed, reloading")
	return c.LoadLibrary(ctx)
}

func (c *Controller) authorize(ctx context.Context) error {
	if c.auth == nil {
		return nil
	}
	status, err := c.auth.Status(ctx)
	if err != nil {
		return fmt.Errorf("check library access: %w", err)
	}
	if status == catalog.AuthAuthorized {
		return nil
	}

	logger.WarnCtx(ctx, "library access not authorized", logger.State(status.String()))
	c.presenter.ShowAlert(AuthDeniedMessage)
	return ErrNotAuthorized
}

// Session returns the current session.
func (c *Controller) Session() (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, ErrNoSession
	}
	return c.session, nil
}

// Close stops the current session.
func (c *Controller) Close() error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.Lock()
	prev := c.session
	c.session = nil
	c.mu.Unlock()

	if prev != nil {
		prev.close()
	}
	return nil
}

// ============================================================================
// Visibility events
// ============================================================================

// RemoveImagesFromCache handles the cell at changed disappearing while
// visible is on screen. The disappearing asset's high-res request is
// cancelled whatever the direction; then the trailing band in the scroll
// direction is evicted. Indices outside the list are ignored.
func (c *Controller) RemoveImagesFromCache(visible []int, changed int) error {
	s, err := c.Session()
	if err != nil {
		return err
	}

	a, ok := c.assets.At(changed)
	if !ok {
		return nil
	}
	s.Cache.CancelHighRes(a)

	e := c.policy.Evictions(visible, changed, c.assets.Count())
	if e.Thumbnail >= 0 {
		if victim, ok := c.assets.At(e.Thumbnail); ok {
			s.Cache.EvictThumbnail(victim)
		}
	}
	if e.HighRes >= 0 {
		if victim, ok := c.assets.At(e.HighRes); ok {
			s.Cache.EvictHighRes(victim)
		}
	}

	if !e.None() {
		logger.Debug("evicted trailing band",
			logger.Index(changed),
			logger.Direction(e.Direction.String()),
			slog.Int("evict_thumbnail", e.Thumbnail),
			slog.Int("evict_highres", e.HighRes))
	}
	return nil
}

// FetchNewImages handles the cell at changed appearing while visible is on
// screen by prefetching thumbnails for the window in the scroll direction.
func (c *Controller) FetchNewImages(visible []int, changed int) error {
	s, err := c.Session()
	if err != nil {
		return err
	}

	r, dir, ok := c.policy.Prefetch(visible, changed, c.assets.Count())
	if !ok {
		return nil
	}

	logger.Debug("prefetch window",
		logger.Index(changed),
		logger.Direction(dir.String()),
		logger.Range(r.Start, r.End))
	return s.Pipeline.Request(r)
}

// SetImageInCell provides the image for the cell at index, of size cell.
//
// A cached high-res image is delivered synchronously. Otherwise a cached
// thumbnail, if any, is delivered synchronously as a placeholder and a
// high-res image sized for the cell is fetched; it is delivered when it
// arrives. Nothing is delivered for a fetch that yields no image. Indices
// outside the list are ignored.
func (c *Controller) SetImageInCell(ctx context.Context, index int, cell asset.Size, deliver func(assetID string, img image.Image)) error {
	s, err := c.Session()
	if err != nil {
		return err
	}

	a, ok := c.assets.At(index)
	if !ok {
		return nil
	}

	if img, ok := s.Cache.HighRes(a.ID); ok {
		deliver(a.ID, img)
		return nil
	}
	if img, ok := s.Cache.Thumbnail(a.ID); ok {
		deliver(a.ID, img)
	}

	size := window.RenderSize(a.Size(), cell)
	s.Cache.FetchHighRes(ctx, a, size, func(img image.Image) {
		if img != nil {
			deliver(a.ID, img)
		}
	})
	return nil
}

// ChangeSegment handles a layout mode change: every high-res image is
// evicted, since cell sizes change, and the presenter re-lays out.
// Thumbnails stay.
func (c *Controller) ChangeSegment() error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	s.Cache.EvictAllHighRes()
	c.presenter.Relayout()
	return nil
}

// ============================================================================
// Introspection
// ============================================================================

// Stats is a snapshot of the current session.
type Stats struct {
	SessionID string
	Assets    int
	Cache     imagecache.Stats
	Pipeline  prefetch.Stats
}

// Stats returns a snapshot of the current session.
func (c *Controller) Stats() (Stats, error) {
	s, err := c.Session()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		SessionID: s.ID,
		Assets:    c.assets.Count(),
		Cache:     s.Cache.Stats(),
		Pipeline:  s.Pipeline.Stats(),
	}, nil
}

// WaitIdle blocks until the current session's pipeline is idle.
func (c *Controller) WaitIdle(ctx context.Context) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	return s.Pipeline.WaitIdle(ctx)
}
