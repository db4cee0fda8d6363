package imagecache

import (
	"time"
)

// Lookup outcomes passed to Metrics.RecordLookup.
const (
	LookupHit    = "hit"
	LookupMiss   = "miss"
	LookupJoined = "joined"
)

// Metrics provides observability for image cache operations.
//
// This is optional: a nil Metrics disables collection. See pkg/metrics for
// the Prometheus-backed implementation.
type Metrics interface {
	// RecordLookup records the outcome of a fetch call (hit, miss, joined).
	RecordLookup(tier Tier, outcome string)

	// ObserveFetch records a completed catalog request and its latency.
	ObserveFetch(tier Tier, empty bool, duration time.Duration)

	// RecordCancel records a cancelled request.
	RecordCancel(tier Tier)

	// RecordEvictions records n evicted images.
	RecordEvictions(tier Tier, n int)

	// SetEntries records the number of resident images.
	SetEntries(tier Tier, n int)

	// SetInFlight records the number of outstanding requests.
	SetInFlight(tier Tier, n int)
}
