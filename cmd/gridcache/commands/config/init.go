package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/gridcache/internal/cli/prompt"
	"github.com/marmos91/gridcache/pkg/config"
)

var (
	initForce   bool
	initLibrary string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Long: `Write a gridcache configuration file with default values.

By default, the file is created at $XDG_CONFIG_HOME/gridcache/config.yaml.
Use --config to choose another path.

Examples:
  # Initialize with default location
  gridcache config init --library ~/Pictures

  # Initialize with custom path
  gridcache config init --config /etc/gridcache/config.yaml

  # Force overwrite existing config
  gridcache config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().StringVar(&initLibrary, "library", "", "Library directory to store as catalog.path")
}

func runInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		ok, err := prompt.ConfirmOverwrite(path, initForce)
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				return nil
			}
			return err
		}
		if !ok {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := config.GetDefaultConfig()
	cfg.Catalog.Path = initLibrary
	if err := config.SaveConfig(cfg, path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Set catalog.path to your photo directory (or pass --library)")
	_, _ = fmt.Fprintf(out, "  2. Run a scroll: gridcache simulate --config %s\n", path)
	return nil
}
