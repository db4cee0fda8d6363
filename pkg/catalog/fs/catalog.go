// Package fs implements a photo library backed by a directory tree.
//
// Every image file under the root becomes an asset whose ID is its
// slash-separated path relative to the root. Listing reads only image
// headers; full decodes happen on request, on a bounded set of workers, and
// are scaled down to the requested size before delivery.
package fs

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/marmos91/gridcache/internal/logger"
	"github.com/marmos91/gridcache/internal/telemetry"
	"github.com/marmos91/gridcache/pkg/asset"
	"github.com/marmos91/gridcache/pkg/catalog"
)

// Catalog is a directory-backed catalog.Catalog and catalog.Lister.
// It is safe for concurrent use.
type Catalog struct {
	cfg     Config
	metrics Metrics
	sem     *semaphore.Weighted

	mu      sync.Mutex
	pending map[catalog.RequestID]*request
	closed  bool

	wg sync.WaitGroup
}

var (
	_ catalog.Catalog = (*Catalog)(nil)
	_ catalog.Lister  = (*Catalog)(nil)
	_ catalog.Authorizer = (*Catalog)(nil)
)

type request struct {
	id       catalog.RequestID
	asset    asset.Asset
	size     asset.Size
	fidelity catalog.Fidelity
	done     catalog.DoneFunc

	ctx    context.Context
	cancel context.CancelFunc

	// cancelled is set under Catalog.mu by Cancel.
	cancelled bool
}

// New opens the library at cfg.Root. metrics may be nil.
func New(cfg Config, metrics Metrics) (*Catalog, error) {
	cfg.applyDefaults()

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve library root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", root, catalog.ErrNotFound)
		}
		return nil, fmt.Errorf("stat library root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root %s is not a directory", root)
	}
	cfg.Root = root

	return &Catalog{
		cfg:     cfg,
		metrics: metrics,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		pending: make(map[catalog.RequestID]*request),
	}, nil
}

// Root returns the absolute library directory.
func (c *Catalog) Root() string { return c.cfg.Root }

// Status reports whether the library directory can be read.
func (c *Catalog) Status(ctx context.Context) (catalog.AuthStatus, error) {
	f, err := os.Open(c.cfg.Root)
	switch {
	case err == nil:
		_ = f.Close()
		return catalog.AuthAuthorized, nil
	case errors.Is(err, fs.ErrPermission):
		return catalog.AuthDenied, nil
	case errors.Is(err, fs.ErrNotExist):
		return catalog.AuthRestricted, nil
	default:
		return catalog.AuthNotDetermined, err
	}
}

// ============================================================================
// Listing
// ============================================================================

type listed struct {
	asset asset.Asset
	mtime time.Time
}

// List scans the library. Assets come newest first by modification time,
// ties broken by ID. Hidden entries, non-image files, oversized files and
// files whose header cannot be decoded are skipped.
func (c *Catalog) List(ctx context.Context) ([]asset.Asset, error) {
	ctx, span := telemetry.StartCatalogSpan(ctx, telemetry.SpanCatalogScan, telemetry.Path(c.cfg.Root))
	defer span.End()

	start := time.Now()
	var (
		found   []listed
		skipped int
	)

	err := filepath.WalkDir(c.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == c.cfg.Root {
				return err
			}
			logger.DebugCtx(ctx, "skipping unreadable entry", logger.Path(path), logger.Err(err))
			skipped++
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != c.cfg.Root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isImageFile(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			skipped++
			return nil
		}
		if c.cfg.MaxFileSize > 0 && info.Size() > c.cfg.MaxFileSize {
			logger.DebugCtx(ctx, "skipping oversized image", logger.Path(path), "size", info.Size())
			skipped++
			return nil
		}

		hdr, err := decodeConfig(path)
		if err != nil {
			logger.DebugCtx(ctx, "skipping undecodable image", logger.Path(path), logger.Err(err))
			skipped++
			return nil
		}

		rel, err := filepath.Rel(c.cfg.Root, path)
		if err != nil {
			return err
		}
		found = append(found, listed{
			asset: asset.Asset{ID: filepath.ToSlash(rel), Width: hdr.Width, Height: hdr.Height},
			mtime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("scan %s: %w", c.cfg.Root, err)
	}

	slices.SortFunc(found, func(a, b listed) int {
		if n := b.mtime.Compare(a.mtime); n != 0 {
			return n
		}
		return strings.Compare(a.asset.ID, b.asset.ID)
	})

	out := make([]asset.Asset, len(found))
	for i, l := range found {
		out[i] = l.asset
	}

	if c.metrics != nil {
		c.metrics.ObserveScan(len(out), skipped, time.Since(start))
	}
	span.SetAttributes(telemetry.Count(len(out)))
	logger.InfoCtx(ctx, "library scanned",
		logger.Path(c.cfg.Root),
		logger.Count(len(out)),
		"skipped", skipped,
		logger.DurationMs(logger.Duration(start)))
	return out, nil
}

// resolve maps an asset ID back to a file under the root.
func (c *Catalog) resolve(id string) (string, error) {
	rel := filepath.FromSlash(id)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	return filepath.Join(c.cfg.Root, rel), nil
}

// ============================================================================
// Requests
// ============================================================================

// RequestImage schedules a decode of a scaled to size. done runs exactly once
// on a worker goroutine unless the request is cancelled first; failures
// deliver nil. After Close, done receives nil.
func (c *Catalog) RequestImage(ctx context.Context, a asset.Asset, size asset.Size, fidelity catalog.Fidelity, done catalog.DoneFunc) catalog.RequestID {
	id := catalog.RequestID(uuid.NewString())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		go done(nil)
		return id
	}
	rctx, cancel := context.WithCancel(ctx)
	r := &request{
		id:       id,
		asset:    a,
		size:     size,
		fidelity: fidelity,
		done:     done,
		ctx:      rctx,
		cancel:   cancel,
	}
	c.pending[id] = r
	n := len(c.pending)
	c.wg.Add(1)
	c.mu.Unlock()

	c.setPending(n)
	go c.serve(r)
	return id
}

// Cancel drops a request that has not been delivered. Its done never runs.
func (c *Catalog) Cancel(id catalog.RequestID) {
	c.mu.Lock()
	r, ok := c.pending[id]
	if ok {
		r.cancelled = true
		delete(c.pending, id)
	}
	n := len(c.pending)
	c.mu.Unlock()

	if ok {
		r.cancel()
		c.setPending(n)
	}
}

func (c *Catalog) serve(r *request) {
	defer c.wg.Done()
	defer r.cancel()

	if err := c.sem.Acquire(r.ctx, 1); err != nil {
		c.finish(r, nil, 0, 0, err)
		return
	}
	defer c.sem.Release(1)

	start := time.Now()
	ctx, span := telemetry.StartCatalogSpan(r.ctx, telemetry.SpanCatalogDecode,
		telemetry.AssetID(r.asset.ID),
		telemetry.Fidelity(r.fidelity.String()))
	defer span.End()

	path, err := c.resolve(r.asset.ID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		c.finish(r, nil, 0, time.Since(start), err)
		return
	}

	dctx, cancel := context.WithTimeout(ctx, c.cfg.DecodeTimeout)
	defer cancel()

	d := decodeScaled(dctx, path, c.cfg.MaxFileSize, r.size, r.fidelity)
	if d.err != nil {
		telemetry.RecordError(ctx, d.err)
	}
	span.SetAttributes(telemetry.Size(d.bytes))
	c.finish(r, d.img, d.bytes, time.Since(start), d.err)
}

// finish delivers the result unless the request was cancelled.
func (c *Catalog) finish(r *request, img image.Image, n int64, d time.Duration, err error) {
	c.mu.Lock()
	cancelled := r.cancelled
	if !cancelled {
		delete(c.pending, r.id)
	}
	pending := len(c.pending)
	c.mu.Unlock()

	if cancelled {
		return
	}
	c.setPending(pending)

	if c.metrics != nil {
		c.metrics.ObserveDecode(r.fidelity, n, d, err)
	}
	if err != nil {
		logger.Debug("image request failed",
			logger.AssetID(r.asset.ID),
			logger.Fidelity(r.fidelity.String()),
			logger.Err(err))
		img = nil
	}
	r.done(img)
}

func (c *Catalog) setPending(n int) {
	if c.metrics != nil {
		c.metrics.SetPending(n)
	}
}

// Pending returns the number of requests not yet delivered.
func (c *Catalog) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close aborts outstanding requests, which deliver nil, and waits for the
// workers to return. Returns catalog.ErrClosed on the second call.
func (c *Catalog) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return catalog.ErrClosed
	}
	c.closed = true
	inflight := make([]*request, 0, len(c.pending))
	for _, r := range c.pending {
		inflight = append(inflight, r)
	}
	c.mu.Unlock()

	for _, r := range inflight {
		r.cancel()
	}
	c.wg.Wait()
	return nil
}
