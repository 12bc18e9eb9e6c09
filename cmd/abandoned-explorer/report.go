package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mr1hm/abandoned-explorer/internal/ingestion"
	"github.com/mr1hm/abandoned-explorer/internal/repository"
)

func printSummary(w io.Writer, s ingestion.RunSummary) {
	fmt.Fprintf(w, "\nScrape Summary\n")
	fmt.Fprintf(w, "==============\n")
	fmt.Fprintf(w, "Scopes succeeded:   %d\n", s.Succeeded)
	fmt.Fprintf(w, "Scopes failed:      %d\n", s.Failed)
	fmt.Fprintf(w, "New locations:      %d\n", s.Inserted)
	fmt.Fprintf(w, "Already stored:     %d\n", s.Skipped)
	fmt.Fprintf(w, "Failed records:     %d\n", s.FailedRecords)
	fmt.Fprintf(w, "Skipped elements:   %d\n", s.ElementsSkipped)

	for _, name := range s.FailedScopes() {
		fmt.Fprintf(w, "  failed: %s\n", name)
	}

	if s.Total > 0 {
		fmt.Fprintf(w, "\nTotal locations in database: %d\n", s.Total)
		printCategories(w, s.Categories)
	}
}

func printCategories(w io.Writer, counts []repository.CategoryCount) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "\nCategory Breakdown\n")
	fmt.Fprintf(w, "------------------\n")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.Category.Name(), c.Count)
	}
	tw.Flush()
}
