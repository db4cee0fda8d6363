package logger

import (
	"log/slog"
)

// Standard field keys. Use these consistently so log lines from the cache,
// the pipeline and the catalog can be joined on the same attributes.
const (
	// Correlation
	KeySessionID = "session_id" // library-load session
	KeyTraceID   = "trace_id"   // OpenTelemetry trace ID
	KeySpanID    = "span_id"    // OpenTelemetry span ID
	KeyOperation = "operation"  // prefetch, render, evict, load

	// Assets
	KeyAssetID = "asset_id" // stable asset identifier
	KeyIndex   = "index"    // ordinal position in the asset list
	KeyCount   = "count"    // number of assets in the list
	KeyWidth   = "width"    // pixel or point width
	KeyHeight  = "height"   // pixel or point height
	KeyPath    = "path"     // file path (directory catalog)

	// Cache
	KeyTier     = "tier"      // thumbnail or highres
	KeyCacheHit = "cache_hit" // cache hit indicator
	KeyInFlight = "in_flight" // outstanding catalog requests
	KeyEvicted  = "evicted"   // entries evicted
	KeyRequest  = "request"   // catalog request handle
	KeyFidelity = "fidelity"  // low or high
	KeyEmpty    = "empty"     // request completed without an image

	// Window / pipeline
	KeyDirection  = "direction"   // forward, backward, none
	KeyVisible    = "visible"     // visible index span
	KeyRangeStart = "range_start" // pending range start (inclusive)
	KeyRangeEnd   = "range_end"   // pending range end (exclusive)
	KeyChunkStart = "chunk_start" // first index of the chunk
	KeyChunkSize  = "chunk_size"  // indices in the chunk
	KeyQueued     = "queued"      // ranges waiting in the backlog
	KeyState      = "state"       // pipeline state

	// Generic
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeySource     = "source"
)

// SessionID returns a slog.Attr for the session identifier
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// Operation returns a slog.Attr for the operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// AssetID returns a slog.Attr for an asset identifier
func AssetID(id string) slog.Attr {
	return slog.String(KeyAssetID, id)
}

// Index returns a slog.Attr for a list index
func Index(i int) slog.Attr {
	return slog.Int(KeyIndex, i)
}

// Count returns a slog.Attr for an asset count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Path returns a slog.Attr for a file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Tier returns a slog.Attr for the cache tier
func Tier(t string) slog.Attr {
	return slog.String(KeyTier, t)
}

// CacheHit returns a slog.Attr for cache hit indicator
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// InFlight returns a slog.Attr for the number of outstanding requests
func InFlight(n int) slog.Attr {
	return slog.Int(KeyInFlight, n)
}

// Evicted returns a slog.Attr for number of entries evicted
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// Request returns a slog.Attr for a catalog request handle
func Request(id string) slog.Attr {
	return slog.String(KeyRequest, id)
}

// Fidelity returns a slog.Attr for the requested delivery fidelity
func Fidelity(f string) slog.Attr {
	return slog.String(KeyFidelity, f)
}

// Empty returns a slog.Attr marking a completion that carried no image
func Empty(empty bool) slog.Attr {
	return slog.Bool(KeyEmpty, empty)
}

// Direction returns a slog.Attr for the inferred scroll direction
func Direction(d string) slog.Attr {
	return slog.String(KeyDirection, d)
}

// Range returns the start/end pair of a half-open index range as a group.
func Range(start, end int) slog.Attr {
	return slog.Group("range",
		slog.Int("start", start),
		slog.Int("end", end),
	)
}

// ChunkStart returns a slog.Attr for the first index of a chunk
func ChunkStart(i int) slog.Attr {
	return slog.Int(KeyChunkStart, i)
}

// Queued returns a slog.Attr for the backlog length
func Queued(n int) slog.Attr {
	return slog.Int(KeyQueued, n)
}

// State returns a slog.Attr for a pipeline state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error. A nil error yields an empty Attr,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Source returns a slog.Attr for data source
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}
