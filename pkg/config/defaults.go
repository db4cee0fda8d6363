package config

import (
	"strings"
	"time"

	"github.com/marmos91/gridcache/internal/bytesize"
	"github.com/marmos91/gridcache/pkg/catalog/fs"
	"github.com/marmos91/gridcache/pkg/imagecache"
	"github.com/marmos91/gridcache/pkg/prefetch"
	"github.com/marmos91/gridcache/pkg/window"
)

// DefaultMaxFileSize is the default catalog file size limit.
const DefaultMaxFileSize = 64 * bytesize.MiB

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyPrefetchDefaults(&cfg.Prefetch)
	applyEvictionDefaults(&cfg.Eviction)
	applyThumbnailDefaults(&cfg.Thumbnail)
	applyCatalogDefaults(&cfg.Catalog)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		// Mutex contention is where the cache stores spend their time.
		cfg.Profiling.ProfileTypes = []string{
			"cpu",
			"alloc_space",
			"inuse_space",
			"goroutines",
			"mutex_duration",
		}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyPrefetchDefaults(cfg *PrefetchConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = prefetch.DefaultChunkSize
	}
	if cfg.Window == 0 {
		cfg.Window = window.DefaultPrefetchWindow
	}
}

func applyEvictionDefaults(cfg *EvictionConfig) {
	if cfg.ThumbnailOffset == 0 {
		cfg.ThumbnailOffset = window.DefaultThumbnailEvictOffset
	}
	if cfg.HighResOffset == 0 {
		cfg.HighResOffset = window.DefaultHighResEvictOffset
	}
}

func applyThumbnailDefaults(cfg *ThumbnailConfig) {
	if cfg.ShortSide == 0 {
		cfg.ShortSide = imagecache.DefaultThumbnailShortSide
	}
}

func applyCatalogDefaults(cfg *CatalogConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = fs.DefaultWorkers
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.DecodeTimeout == 0 {
		cfg.DecodeTimeout = fs.DefaultDecodeTimeout
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// Booleans that default to true are set here rather than in ApplyDefaults,
// where an explicit false could not be told apart from a missing value.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{Insecure: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
