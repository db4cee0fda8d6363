package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/gridcache/internal/cli/output"
	"github.com/marmos91/gridcache/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the effective gridcache configuration: defaults, then the config
file if one exists, then GRIDCACHE_* environment overrides.

Examples:
  # Show as YAML
  gridcache config show

  # Show as JSON
  gridcache config show --output json

  # See an environment override take effect
  GRIDCACHE_PREFETCH_CHUNK_SIZE=100 gridcache config show`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}
