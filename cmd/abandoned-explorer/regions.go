package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mr1hm/abandoned-explorer/internal/regions"
)

var regionsCmd = &cobra.Command{
	Use:   "regions NAME [NAME...]",
	Short: "Scrape named regions from the catalog",
	Long: `Scrape named regions: "targets" (curated city list), a bounding box such as
detroit_metro, a country (bulgaria is scraped city by city, other countries as
one box), "usa" (every configured city of every state), a state name, or
us:<state>. Run "regions list" for every name.`,
	Example: `  abandoned-explorer regions detroit_metro
  abandoned-explorer regions bulgaria romania
  abandoned-explorer regions us:west_virginia`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScraper(cmd, func(ctx context.Context, a *app) error {
			summary, err := a.manager.ScrapeRegions(ctx, args)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			return summaryErr(summary)
		})
	},
}

var regionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every region name the catalog resolves",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := regions.Load(cfg.Scraper.RegionsFile)
		if err != nil {
			return err
		}
		for _, name := range catalog.Names() {
			targets, err := catalog.Resolve(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-28s %d scope(s)\n", name, len(targets))
		}
		return nil
	},
}

func init() {
	regionsCmd.AddCommand(regionsListCmd)
}
