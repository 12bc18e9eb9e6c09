package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mr1hm/abandoned-explorer/internal/config"
	"github.com/mr1hm/abandoned-explorer/internal/ingestion"
	"github.com/mr1hm/abandoned-explorer/internal/models"
)

var (
	geocodeMode   string
	allowUnscoped bool
)

var bboxCmd = &cobra.Command{
	Use:   "bbox SOUTH,WEST,NORTH,EAST",
	Short: "Scrape one bounding box",
	Example: `  abandoned-explorer bbox 42.2,-83.3,42.5,-82.9
  abandoned-explorer bbox -- -34.0,18.3,-33.8,18.6`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		box, err := models.ParseBBox(strings.Join(args, ","))
		if err != nil {
			return err
		}

		return withScraper(cmd, func(ctx context.Context, a *app) error {
			return reportScopes(ctx, cmd.OutOrStdout(), a, a.manager.ScrapeBBox(ctx, box))
		})
	},
}

var placeCmd = &cobra.Command{
	Use:   "place NAME [NAME...]",
	Short: "Geocode places and scrape the area around each",
	Example: `  abandoned-explorer place "Detroit, Michigan, USA"
  abandoned-explorer place --mode accurate "Gary, Indiana, USA" "Flint, Michigan, USA"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScraper(cmd, func(ctx context.Context, a *app) error {
			if len(args) == 1 {
				return reportScopes(ctx, cmd.OutOrStdout(), a, a.manager.ScrapePlace(ctx, args[0]))
			}
			summary := a.manager.ScrapePlaces(ctx, args)
			printSummary(cmd.OutOrStdout(), summary)
			return summaryErr(summary)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{bboxCmd, placeCmd, regionsCmd} {
		c.Flags().StringVar(&geocodeMode, "mode", "", "Address mode: fast (coordinates) or accurate (reverse geocode); overrides GEOCODE_MODE")
		c.Flags().BoolVar(&allowUnscoped, "allow-unscoped", false, "Run the global query when a place cannot be geocoded")
		rootCmd.AddCommand(c)
	}
}

// withScraper applies scrape flags, builds the app and runs fn under a
// context cancelled by SIGINT or SIGTERM.
func withScraper(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	if cmd.Flags().Changed("mode") {
		mode := config.GeocodeMode(strings.ToLower(geocodeMode))
		if mode != config.GeocodeFast && mode != config.GeocodeAccurate {
			return fmt.Errorf("invalid --mode %q: want fast or accurate", geocodeMode)
		}
		cfg.Geocode.Mode = mode
	}
	if allowUnscoped {
		cfg.Scraper.AbortOnDegraded = false
	}

	a, err := newApp(cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("scrape starting", "geocode_mode", cfg.Geocode.Mode, "db_driver", cfg.DB.Driver)
	return fn(ctx, a)
}

// reportScopes folds scope results into a summary, fills in store totals
// and prints the report.
func reportScopes(ctx context.Context, w io.Writer, a *app, results ...ingestion.ScopeResult) error {
	summary := &ingestion.RunSummary{}
	for _, r := range results {
		summary.Add(r)
	}
	if categories, err := a.store.CountByCategory(ctx); err == nil {
		summary.Categories = categories
	}
	if total, err := a.store.Count(ctx); err == nil {
		summary.Total = total
	}

	printSummary(w, *summary)
	return summaryErr(*summary)
}

func summaryErr(s ingestion.RunSummary) error {
	if s.Failed > 0 {
		return fmt.Errorf("%d of %d scopes failed: %s", s.Failed, len(s.Scopes), strings.Join(s.FailedScopes(), "; "))
	}
	return nil
}
