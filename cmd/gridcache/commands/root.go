// Package commands implements the gridcache CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/gridcache/cmd/gridcache/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gridcache",
	Short: "gridcache - scroll-driven image prefetch and cache engine",
	Long: `gridcache keeps a two-tier image cache (thumbnails and high-res) in step
with a scrolling grid of photos. Visibility changes drive thumbnail prefetching
in the scroll direction, trailing-band eviction, and cancellation of high-res
requests for cells that scrolled away.

The simulate command replays a scroll over a directory of images and reports
what the cache did.

Use "gridcache [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/gridcache/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(config.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}
