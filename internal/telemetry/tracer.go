package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys.
const (
	AttrAssetID    = "asset.id"
	AttrAssetIndex = "asset.index"
	AttrCacheTier  = "cache.tier"
	AttrCacheHit   = "cache.hit"
	AttrFidelity   = "catalog.fidelity"
	AttrRequestID  = "catalog.request_id"
	AttrRangeStart = "prefetch.range_start"
	AttrRangeEnd   = "prefetch.range_end"
	AttrChunks     = "prefetch.chunks"
	AttrCount      = "library.count"
	AttrOperation  = "library.operation"
	AttrPath       = "fs.path"
	AttrSize       = "fs.size"
)

// Span names. Format: <component>.<operation>
const (
	SpanPrefetchRange = "prefetch.range"
	SpanCatalogDecode = "catalog.decode"
	SpanCatalogScan   = "catalog.scan"
	SpanLibraryLoad   = "library.load"
)

// AssetID returns an attribute for an asset identifier.
func AssetID(id string) attribute.KeyValue {
	return attribute.String(AttrAssetID, id)
}

// AssetIndex returns an attribute for a position in the asset list.
func AssetIndex(i int) attribute.KeyValue {
	return attribute.Int(AttrAssetIndex, i)
}

// Tier returns an attribute for a cache tier.
func Tier(t string) attribute.KeyValue {
	return attribute.String(AttrCacheTier, t)
}

// CacheHit returns an attribute for a cache hit/miss.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// Fidelity returns an attribute for a catalog request fidelity.
func Fidelity(f string) attribute.KeyValue {
	return attribute.String(AttrFidelity, f)
}

// RequestID returns an attribute for a catalog request handle.
func RequestID(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

// Chunks returns an attribute for the number of chunks a range was split in.
func Chunks(n int) attribute.KeyValue {
	return attribute.Int(AttrChunks, n)
}

// Count returns an attribute for the number of assets in a library.
func Count(n int) attribute.KeyValue {
	return attribute.Int(AttrCount, n)
}

// Path returns an attribute for a file path.
func Path(p string) attribute.KeyValue {
	return attribute.String(AttrPath, p)
}

// Size returns an attribute for a file size in bytes.
func Size(n int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, n)
}

// StartPrefetchSpan starts a span covering one prefetch range [start, end).
// The returned context also carries the trace IDs for log correlation.
func StartPrefetchSpan(ctx context.Context, start, end int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.Int(AttrRangeStart, start),
		attribute.Int(AttrRangeEnd, end),
	}, attrs...)
	ctx, span := StartSpan(ctx, SpanPrefetchRange, trace.WithAttributes(all...))
	return withLogTrace(ctx), span
}

// StartLibrarySpan starts a span for a library operation such as "load".
func StartLibrarySpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(AttrOperation, operation)}, attrs...)
	ctx, span := StartSpan(ctx, SpanLibraryLoad, trace.WithAttributes(all...))
	return withLogTrace(ctx), span
}

// StartCatalogSpan starts a span for a catalog operation, named
// SpanCatalogDecode or SpanCatalogScan.
func StartCatalogSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name, trace.WithAttributes(attrs...))
}
