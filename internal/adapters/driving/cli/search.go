package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
)

var (
	searchLimit  int
	searchSource string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed issues and questions",
	Long: `Performs a BM25 keyword search over the indexed GitHub issues and
StackOverflow questions, optionally restricted to one source.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVarP(&searchSource, "source", "s", "", "restrict to github or stackoverflow")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if app == nil || app.Search == nil {
		return errors.New("search service not configured")
	}

	var source domain.Source
	if searchSource != "" {
		s, err := domain.ParseSource(searchSource)
		if err != nil {
			return err
		}
		source = s
	}

	opts := driving.SearchOptions{Source: source, Limit: searchLimit}
	results, err := app.Search.Search(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.ScoredDocument) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.ScoredDocument) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		doc := &results[i].Document
		title := doc.Title
		if title == "" {
			title = doc.ID
		}

		// Format: [N] Title (Score)
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, results[i].Score)
		status := "open"
		if doc.Resolved {
			status = "resolved"
		}
		cmd.Printf("      %s, %s\n", doc.Source.Label(), status)
		if doc.URL != "" {
			cmd.Printf("      %s\n", doc.URL)
		}
		cmd.Println()
	}
	return nil
}
