package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/mr1hm/abandoned-explorer/internal/repository"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored location counts by category and risk level",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := repository.Open(cfg.DB.Driver, cfg.DB.Path, cfg.DB.URL, clockwork.NewRealClock(), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		total, err := store.Count(ctx)
		if err != nil {
			return err
		}
		categories, err := store.CountByCategory(ctx)
		if err != nil {
			return err
		}
		risks, err := store.CountByRisk(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total locations: %d\n", total)
		printCategories(out, categories)

		if len(risks) > 0 {
			fmt.Fprintf(out, "\nRisk Breakdown\n")
			fmt.Fprintf(out, "--------------\n")
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, r := range risks {
				fmt.Fprintf(tw, "%s\t%d\n", r.RiskLevel.Name(), r.Count)
			}
			tw.Flush()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
