package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/gridcache/internal/cli/output"
	"github.com/marmos91/gridcache/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the gridcache configuration file.

Checks for syntax errors and invalid values, then warns about settings that
will stop simulate from running.

Examples:
  # Validate default config
  gridcache config validate

  # Validate specific config file
  gridcache config validate --config /etc/gridcache/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := warningsFor(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	return output.KeyValues(out, [][2]string{
		{"Library", cfg.Catalog.Path},
		{"Prefetch window", fmt.Sprintf("%d (chunks of %d)", cfg.Prefetch.Window, cfg.Prefetch.ChunkSize)},
		{"Evict thumbnails at", fmt.Sprintf("%d", cfg.Eviction.ThumbnailOffset)},
		{"Evict high-res at", fmt.Sprintf("%d", cfg.Eviction.HighResOffset)},
		{"Max file size", cfg.Catalog.MaxFileSize.String()},
		{"Log level", cfg.Logging.Level},
	})
}

func warningsFor(cfg *config.Config) []string {
	var warnings []string
	if cfg.Catalog.Path == "" {
		warnings = append(warnings, "catalog.path not set; simulate needs --library")
	} else if fi, err := os.Stat(cfg.Catalog.Path); err != nil {
		warnings = append(warnings, fmt.Sprintf("library %s is not accessible: %v", cfg.Catalog.Path, err))
	} else if !fi.IsDir() {
		warnings = append(warnings, fmt.Sprintf("library %s is not a directory", cfg.Catalog.Path))
	}
	if cfg.Prefetch.ChunkSize > cfg.Prefetch.Window {
		warnings = append(warnings, "prefetch.chunk_size exceeds prefetch.window; every range is one chunk")
	}
	return warnings
}
