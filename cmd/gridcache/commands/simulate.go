package commands

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/gridcache/internal/cli/output"
	"github.com/marmos91/gridcache/internal/logger"
	"github.com/marmos91/gridcache/internal/server"
	"github.com/marmos91/gridcache/pkg/asset"
	"github.com/marmos91/gridcache/pkg/catalog/fs"
	"github.com/marmos91/gridcache/pkg/config"
	"github.com/marmos91/gridcache/pkg/grid"
	"github.com/marmos91/gridcache/pkg/metrics"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/gridcache/pkg/metrics/prometheus"
)

var (
	simLibrary string
	simFrom    int
	simTo      int
	simStep    int
	simVisible int
	simCell    float64
	simHold    bool
	simOutput  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a scroll over a directory of images",
	Long: `Load a directory of images as a photo library and replay a scroll over it.

The viewport shows --visible cells of --cell points. Its first cell moves from
--from to --to, --step indices at a time. Each cell that appears prefetches
thumbnails in the scroll direction and requests a high-res image; each cell
that disappears cancels its high-res request and evicts the trailing band.

When the scroll ends and prefetching has drained, a summary of the cache is
printed. With --hold the process keeps serving metrics until interrupted.

Examples:
  # Scroll through the first 3000 photos, 30 at a time
  gridcache simulate --library ~/Pictures --to 3000 --step 30

  # Scroll back up, printing JSON
  gridcache simulate --library ~/Pictures --from 3000 --to 0 -o json

  # Keep the metrics endpoint up after the run
  GRIDCACHE_METRICS_ENABLED=true gridcache simulate --library ~/Pictures --hold`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simLibrary, "library", "", "Library directory (overrides catalog.path)")
	simulateCmd.Flags().IntVar(&simFrom, "from", 0, "Index of the first visible cell at the start")
	simulateCmd.Flags().IntVar(&simTo, "to", 1000, "Index of the first visible cell at the end")
	simulateCmd.Flags().IntVar(&simStep, "step", 12, "Cells scrolled per step")
	simulateCmd.Flags().IntVar(&simVisible, "visible", 24, "Cells visible at once")
	simulateCmd.Flags().Float64Var(&simCell, "cell", 120, "Cell side length in points")
	simulateCmd.Flags().BoolVar(&simHold, "hold", false, "Keep running after the scroll until interrupted")
	simulateCmd.Flags().StringVarP(&simOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if simLibrary != "" {
		cfg.Catalog.Path = simLibrary
	}
	if cfg.Catalog.Path == "" {
		return errors.New("no library directory: pass --library or set catalog.path")
	}

	format, err := output.ParseFormat(simOutput)
	if err != nil {
		return err
	}
	script := scrollScript{
		From:    simFrom,
		To:      simTo,
		Step:    simStep,
		Visible: simVisible,
		Cell:    asset.Size{Width: simCell, Height: simCell},
	}
	if err := script.validate(); err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	report, err := simulate(ctx, cfg, script, simHold)
	if err != nil {
		return err
	}
	return report.print(cmd.OutOrStdout(), format)
}

// simulate loads the library, replays script and reports. With hold it
// returns only when ctx is cancelled.
func simulate(ctx context.Context, cfg *config.Config, script scrollScript, hold bool) (*simulationReport, error) {
	cat, err := fs.New(cfg.CatalogConfig(), metrics.NewCatalogMetrics())
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	defer func() { _ = cat.Close() }()

	presenter := grid.NewDispatcher(logPresenter{})
	defer presenter.Close()

	ctrl := grid.New(ctx, cat, cat, asset.NewList(nil), presenter,
		grid.WithConfig(cfg.Engine()),
		grid.WithAuthorizer(cat),
		grid.WithCacheMetrics(metrics.NewImageCacheMetrics()),
		grid.WithPipelineMetrics(metrics.NewPipelineMetrics()),
	)
	defer func() { _ = ctrl.Close() }()

	if err := ctrl.LoadLibrary(ctx); err != nil {
		return nil, err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Metrics.Enabled {
		srv := server.New(server.Config{Port: cfg.Metrics.Port}, ctrl)
		g.Go(func() error { return srv.Start(gctx) })
	}

	if cfg.Catalog.Watch {
		g.Go(func() error {
			return cat.Watch(gctx, func() {
				if err := ctrl.Reload(gctx); err != nil {
					logger.Warn("library reload failed", logger.Err(err))
				}
			})
		})
	}

	var (
		report    *simulationReport
		delivered atomic.Int64
	)
	g.Go(func() error {
		if !hold {
			defer cancelRun()
		}

		start := time.Now()
		stats, err := ctrl.Stats()
		if err != nil {
			return err
		}
		res, err := script.run(gctx, ctrl, stats.Assets, func(string, image.Image) { delivered.Add(1) })
		if err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := ctrl.WaitIdle(gctx); err != nil {
			return fmt.Errorf("wait for prefetch: %w", err)
		}

		stats, err = ctrl.Stats()
		if err != nil {
			return err
		}
		report = newSimulationReport(cat.Root(), stats, res, delivered.Load(), time.Since(start))
		logger.Info("scroll finished",
			"steps", res.Steps,
			"thumbnails", stats.Cache.Thumbnail.Cached,
			"highres", stats.Cache.HighRes.Cached)

		if hold {
			logger.Info("Holding. Press Ctrl+C to stop.")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	if report == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("simulation interrupted")
	}
	return report, nil
}

// logPresenter stands in for a grid view.
type logPresenter struct{}

func (logPresenter) ReloadAll() { logger.Debug("presenter: reload all") }
func (logPresenter) Relayout()  { logger.Debug("presenter: relayout") }
func (logPresenter) ShowAlert(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
}
