// Package prefetch fetches thumbnails for index ranges a chunk at a time.
//
// A Pipeline runs at most one work loop. A range requested while the loop is
// busy joins a FIFO backlog; when the current range is exhausted the loop
// pulls the next one, and goes idle once the backlog is empty.
//
// Within a range, indices are taken in chunks of ChunkSize. Indices whose
// thumbnail is already cached are skipped, the rest are fetched, and the loop
// waits on a Barrier until every fetch in the chunk has reported back before
// moving on. A fetch that yields no image still reports back, so one bad
// asset cannot stall a range. The chunk size therefore bounds the number of
// thumbnail requests in flight.
package prefetch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/gridcache/internal/logger"
	"github.com/marmos91/gridcache/internal/telemetry"
	"github.com/marmos91/gridcache/pkg/asset"
	"github.com/marmos91/gridcache/pkg/rangequeue"
)

// Range is a half-open span of asset indices.
type Range = rangequeue.Range

// Pipeline drives a ThumbnailFetcher over requested ranges.
type Pipeline struct {
	fetcher ThumbnailFetcher
	assets  Assets
	cfg     Config
	metrics Metrics
	queue   *rangequeue.Queue

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	state  State
	idle   chan struct{} // closed while idle
	closed bool

	ranges    atomic.Uint64
	chunks    atomic.Uint64
	issued    atomic.Uint64
	skipped   atomic.Uint64
	outOfList atomic.Uint64
}

// New creates an idle pipeline. ctx bounds the pipeline's lifetime and its
// values (log context, trace) flow into every fetch. metrics may be nil.
func New(ctx context.Context, fetcher ThumbnailFetcher, assets Assets, cfg Config, metrics Metrics) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	idle := make(chan struct{})
	close(idle)

	ctx, cancel := context.WithCancel(ctx)
	return &Pipeline{
		fetcher: fetcher,
		assets:  assets,
		cfg:     cfg,
		metrics: metrics,
		queue:   rangequeue.New(),
		ctx:     ctx,
		cancel:  cancel,
		state:   StateIdle,
		idle:    idle,
	}
}

// Request asks for thumbnails of every index in r. It returns immediately.
// If the pipeline is idle the range starts now; otherwise it is queued
// behind the ranges already waiting. Indices outside the asset list are
// skipped when reached.
func (p *Pipeline) Request(r Range) error {
	if r.End < r.Start {
		return ErrInvalidRange
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.state != StateIdle {
		if !p.queue.Enqueue(r) {
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		p.recordRange(true)
		logger.DebugCtx(p.ctx, "prefetch range queued", logger.Range(r.Start, r.End))
		return nil
	}
	p.setStateLocked(StateRunning)
	p.idle = make(chan struct{})
	p.mu.Unlock()

	p.recordRange(false)
	go p.run(r)
	return nil
}

// run is the work loop. Exactly one instance runs while the pipeline is not
// idle.
func (p *Pipeline) run(r Range) {
	for {
		p.processRange(r)

		p.mu.Lock()
		p.setStateLocked(StateDraining)
		next, ok := p.queue.Dequeue()
		if !ok || p.closed {
			p.setStateLocked(StateIdle)
			close(p.idle)
			p.mu.Unlock()
			logger.DebugCtx(p.ctx, "prefetch pipeline idle")
			return
		}
		p.setStateLocked(StateRunning)
		p.mu.Unlock()

		r = next
	}
}

func (p *Pipeline) processRange(r Range) {
	telemetry.WithRangeLabels(p.ctx, r.Start, r.End, func(ctx context.Context) {
		p.fetchRange(ctx, r)
	})
}

// fetchRange walks r a chunk at a time.
func (p *Pipeline) fetchRange(ctx context.Context, r Range) {
	ctx, span := telemetry.StartPrefetchSpan(ctx, r.Start, r.End)
	defer span.End()

	start := time.Now()
	logger.DebugCtx(ctx, "prefetch range started", logger.Range(r.Start, r.End))

	cursor := r.Start
	for cursor < r.End {
		if ctx.Err() != nil {
			logger.DebugCtx(ctx, "prefetch range abandoned",
				logger.Range(r.Start, r.End), logger.ChunkStart(cursor))
			return
		}

		end := min(cursor+p.cfg.ChunkSize, r.End)
		if err := p.processChunk(ctx, cursor, end); err != nil {
			telemetry.RecordError(ctx, err)
			return
		}
		cursor = end
	}

	p.ranges.Add(1)
	logger.DebugCtx(ctx, "prefetch range done",
		logger.Range(r.Start, r.End),
		logger.DurationMs(logger.Duration(start)))
}

// processChunk fetches [start, end) and waits for every issued fetch.
func (p *Pipeline) processChunk(ctx context.Context, start, end int) error {
	count := p.assets.Count()
	todo := make([]asset.Asset, 0, end-start)
	skipped := 0
	for i := start; i < end; i++ {
		if i < 0 || i >= count {
			p.outOfList.Add(1)
			continue
		}
		a, ok := p.assets.At(i)
		if !ok {
			p.outOfList.Add(1)
			continue
		}
		if _, hit := p.fetcher.Thumbnail(a.ID); hit {
			skipped++
			continue
		}
		todo = append(todo, a)
	}

	began := time.Now()
	barrier := NewBarrier(len(todo))
	for _, a := range todo {
		p.fetcher.FetchThumbnail(ctx, a, barrier.Done)
	}

	err := barrier.Wait(ctx)

	p.issued.Add(uint64(len(todo)))
	p.skipped.Add(uint64(skipped))
	if err != nil {
		return err
	}
	p.chunks.Add(1)
	if p.metrics != nil {
		p.metrics.ObserveChunk(len(todo), skipped, time.Since(began))
	}
	logger.DebugCtx(ctx, "prefetch chunk done",
		logger.ChunkStart(start),
		logger.Count(len(todo)),
		logger.DurationMs(logger.Duration(began)))
	return nil
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// WaitIdle blocks until the pipeline is idle or ctx is done.
func (p *Pipeline) WaitIdle(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		State:     p.State(),
		Queued:    p.queue.Len(),
		Ranges:    p.ranges.Load(),
		Chunks:    p.chunks.Load(),
		Issued:    p.issued.Load(),
		Skipped:   p.skipped.Load(),
		OutOfList: p.outOfList.Load(),
	}
}

// Close drops the backlog, abandons the running range after its current
// chunk and waits for the loop to stop. Fetches already issued are left to
// the image cache.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	p.queue.Clear()
	idle := p.idle
	p.mu.Unlock()

	p.cancel()
	<-idle
	p.setQueueDepth()
	return nil
}

// setStateLocked must be called with mu held.
func (p *Pipeline) setStateLocked(s State) {
	p.state = s
	if p.metrics != nil {
		p.metrics.SetState(s)
	}
}

func (p *Pipeline) recordRange(queued bool) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordRange(queued)
	p.setQueueDepth()
}

func (p *Pipeline) setQueueDepth() {
	if p.metrics != nil {
		p.metrics.SetQueueDepth(p.queue.Len())
	}
}
