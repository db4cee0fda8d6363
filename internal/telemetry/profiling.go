package telemetry

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/grafana/pyroscope-go"

	"github.com/marmos91/gridcache/internal/logger"
)

// ProfilingConfig configures Pyroscope continuous profiling of the engine.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the Pyroscope server URL, e.g. "http://localhost:4040".
	Endpoint string

	// ProfileTypes names the profiles to upload. See profileTypes for the
	// accepted names.
	ProfileTypes []string

	// Library is the photo library root, attached to every profile so runs
	// over different libraries can be compared.
	Library string

	// ChunkSize is the prefetch chunk size in effect. Zero omits the tag.
	ChunkSize int
}

// profileTypes maps configuration names to Pyroscope profile types.
var profileTypes = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

// Sampling rates applied when contention profiles are requested.
const (
	mutexProfileFraction = 5
	blockProfileRate     = 5
)

var profilingEnabled atomic.Bool

// InitProfiling starts the Pyroscope profiler and returns its stop function.
// When profiling is disabled the stop function is a no-op.
func InitProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	if !cfg.Enabled {
		profilingEnabled.Store(false)
		return func() error { return nil }, nil
	}

	types, err := parseProfileTypes(cfg.ProfileTypes)
	if err != nil {
		return nil, err
	}
	if slices.ContainsFunc(types, isMutexProfile) {
		runtime.SetMutexProfileFraction(mutexProfileFraction)
	}
	if slices.ContainsFunc(types, isBlockProfile) {
		runtime.SetBlockProfileRate(blockProfileRate)
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags:            cfg.tags(),
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope profiler: %w", err)
	}
	profilingEnabled.Store(true)
	logger.Info("profiling enabled",
		"endpoint", cfg.Endpoint,
		"profiles", len(types),
		logger.Path(cfg.Library))

	return func() error {
		profilingEnabled.Store(false)
		return profiler.Stop()
	}, nil
}

// IsProfilingEnabled reports whether the profiler is running.
func IsProfilingEnabled() bool {
	return profilingEnabled.Load()
}

// WithRangeLabels runs fn with profiler labels naming the prefetch range
// [start, end), so CPU and allocation samples taken while fetching it can be
// filtered per range. The labels apply whether or not the profiler runs.
func WithRangeLabels(ctx context.Context, start, end int, fn func(context.Context)) {
	pyroscope.TagWrapper(ctx, pyroscope.Labels(
		"prefetch_range", fmt.Sprintf("%d-%d", start, end),
	), fn)
}

func (cfg ProfilingConfig) tags() map[string]string {
	tags := map[string]string{"version": cfg.ServiceVersion}
	if cfg.Library != "" {
		tags["library"] = cfg.Library
	}
	if cfg.ChunkSize > 0 {
		tags["chunk_size"] = strconv.Itoa(cfg.ChunkSize)
	}
	return tags
}

func parseProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	types := make([]pyroscope.ProfileType, 0, len(names))
	for _, name := range names {
		pt, ok := profileTypes[name]
		if !ok {
			return nil, fmt.Errorf("invalid profile type %q", name)
		}
		types = append(types, pt)
	}
	return types, nil
}

func isMutexProfile(pt pyroscope.ProfileType) bool {
	return pt == pyroscope.ProfileMutexCount || pt == pyroscope.ProfileMutexDuration
}

func isBlockProfile(pt pyroscope.ProfileType) bool {
	return pt == pyroscope.ProfileBlockCount || pt == pyroscope.ProfileBlockDuration
}
