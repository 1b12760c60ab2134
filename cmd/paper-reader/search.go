// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-reader/internal/reader"
	"github.com/pdiddy/paper-reader/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search arXiv for papers",
	Long: `Search queries the arXiv API and ranks the results. The default "smart"
ranking fetches a wider pool ordered by relevance and reorders it by a blend
of relevance and publication recency. The other policies keep arXiv's order.

Common categories for --category:
` + categoryHelp(),
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	if !cmd.Flags().Changed("max-results") {
		maxResults = a.cfg.Search.DefaultMaxResults
	}
	sortBy, _ := cmd.Flags().GetString("sort")
	order, _ := cmd.Flags().GetString("order")
	category, _ := cmd.Flags().GetString("category")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req := reader.SearchRequest{
		Query:      strings.Join(args, " "),
		MaxResults: maxResults,
		SortBy:     sortBy,
		SortOrder:  order,
		Category:   category,
	}

	out := cmd.OutOrStdout()
	if !jsonOutput {
		fmt.Fprintln(out, a.service.SearchPapers(cmd.Context(), a.token, req))
		return nil
	}

	if err := a.service.Authorize(a.token); err != nil {
		return err
	}
	resp, err := a.service.Search(cmd.Context(), req)
	if err != nil {
		return err
	}
	return search.FormatJSON(out, resp.Results)
}

func categoryHelp() string {
	var b strings.Builder
	for _, c := range search.Categories {
		fmt.Fprintf(&b, "  %-8s %s\n", c.Code, c.Name)
	}
	return b.String()
}

func init() {
	searchCmd.Flags().Int("max-results", 10, "maximum number of results to return (capped at search.max_results_cap)")
	searchCmd.Flags().String("sort", "", "ranking policy: smart, relevance, submitted, updated (default search.default_sort)")
	searchCmd.Flags().String("order", "descending", "sort order for submitted/updated: descending or ascending")
	searchCmd.Flags().String("category", "", "restrict results to an arXiv category, e.g. cs.AI")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}
