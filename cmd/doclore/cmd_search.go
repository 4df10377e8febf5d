package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Semantic search over indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		scope, err := a.scope()
		if err != nil {
			return err
		}
		query := strings.Join(args, " ")

		queryVec, err := a.engine.Embed(cmd.Context(), query)
		if err != nil {
			return err
		}
		results, err := a.store.VectorSearch(cmd.Context(), scope, queryVec, searchLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No matches.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("%d. %s (chunk %d, similarity %.3f)\n", i+1, r.FileName, r.Index, r.Similarity)
			fmt.Printf("   %s\n", excerpt(r.Text, 200))
		}
		return nil
	},
}

var researchMax int

var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Research a query on the web",
	Long: `Queries the configured search provider, fetches the top pages, indexes
them into the web cache, and prints the most relevant sources. Repeat
queries within the cache TTL are served from the cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.research == nil {
			return fmt.Errorf("web research is not configured")
		}
		query := strings.Join(args, " ")

		result, err := a.research.Research(cmd.Context(), query, researchMax)
		if err != nil {
			return err
		}

		if result.FromCache {
			fmt.Printf("(cached) %d sources via %s\n", len(result.Sources), result.Provider)
		} else {
			fmt.Printf("%d sources via %s\n", len(result.Sources), result.Provider)
		}
		for i, src := range result.Sources {
			fmt.Printf("%d. %s\n   %s\n   %s\n", i+1, src.Title, src.URL, excerpt(src.Snippet, 200))
		}
		return nil
	},
}

// excerpt trims text to a single display line.
func excerpt(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > max {
		return text[:max] + "…"
	}
	return text
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum results")
	researchCmd.Flags().IntVarP(&researchMax, "max", "n", 5, "maximum pages to fetch")
}
