package config

import (
	"github.com/marmos91/gridcache/internal/logger"
	"github.com/marmos91/gridcache/internal/telemetry"
	"github.com/marmos91/gridcache/pkg/catalog/fs"
	"github.com/marmos91/gridcache/pkg/grid"
	"github.com/marmos91/gridcache/pkg/imagecache"
	"github.com/marmos91/gridcache/pkg/prefetch"
	"github.com/marmos91/gridcache/pkg/window"
)

// Engine returns the cache, pipeline and window settings.
func (c *Config) Engine() grid.Config {
	return grid.Config{
		Window: window.Thresholds{
			PrefetchWindow:       c.Prefetch.Window,
			ThumbnailEvictOffset: c.Eviction.ThumbnailOffset,
			HighResEvictOffset:   c.Eviction.HighResOffset,
		},
		Cache:    imagecache.Config{ThumbnailShortSide: c.Thumbnail.ShortSide},
		Prefetch: prefetch.Config{ChunkSize: c.Prefetch.ChunkSize},
	}
}

// CatalogConfig returns the directory catalog settings.
func (c *Config) CatalogConfig() fs.Config {
	return fs.Config{
		Root:          c.Catalog.Path,
		Workers:       c.Catalog.Workers,
		MaxFileSize:   c.Catalog.MaxFileSize.Int64(),
		DecodeTimeout: c.Catalog.DecodeTimeout,
	}
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// TracingConfig returns the OpenTelemetry settings, tagged with version.
func (c *Config) TracingConfig(version string) telemetry.Config {
	t := telemetry.DefaultConfig()
	t.Enabled = c.Telemetry.Enabled
	t.Endpoint = c.Telemetry.Endpoint
	t.Insecure = c.Telemetry.Insecure
	t.SampleRate = c.Telemetry.SampleRate
	t.ServiceVersion = version
	return t
}

// ProfilingConfig returns the Pyroscope settings, tagged with version, library
// root and chunk size.
func (c *Config) ProfilingConfig(version string) telemetry.ProfilingConfig {
	p := telemetry.DefaultProfilingConfig()
	p.Enabled = c.Telemetry.Profiling.Enabled
	p.Endpoint = c.Telemetry.Profiling.Endpoint
	p.ProfileTypes = c.Telemetry.Profiling.ProfileTypes
	p.Library = c.Catalog.Path
	p.ChunkSize = c.Prefetch.ChunkSize
	p.ServiceVersion = version
	return p
}
