package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/gridcache/internal/logger"
	"github.com/marmos91/gridcache/internal/telemetry"
	"github.com/marmos91/gridcache/pkg/config"
	"github.com/marmos91/gridcache/pkg/metrics"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initObservability starts tracing, profiling and the metrics registry as
// configured. The returned function stops whatever was started.
func initObservability(ctx context.Context, cfg *config.Config) (func(), error) {
	telemetryShutdown, err := telemetry.Init(ctx, cfg.TracingConfig(Version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	profilingShutdown, err := telemetry.InitProfiling(cfg.ProfilingConfig(Version))
	if err != nil {
		_ = telemetryShutdown(ctx)
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Debug("Telemetry disabled")
	}

	// The registry must exist before any component asks for its metrics.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		metrics.Disable()
		logger.Debug("Metrics collection disabled")
	}

	return func() {
		// ctx may already be cancelled; exporters need time to flush.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}, nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
