package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

var (
	statsJSON   bool
	statsTopics int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage and index statistics",
	Long: `Shows answered query counts, feedback ratings, indexed documents,
refresh state and remaining API budget per source, and the most asked-about topics.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	statsCmd.Flags().IntVarP(&statsTopics, "topics", "t", 5, "number of popular topics to show")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if app == nil || app.Feedback == nil {
		return errors.New("feedback service not configured")
	}
	ctx := cmd.Context()

	stats, err := app.Feedback.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}
	topics, err := app.Feedback.PopularTopics(ctx, statsTopics)
	if err != nil {
		return fmt.Errorf("popular topics failed: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(struct {
			*domain.UsageStats
			Topics []domain.TopicCount `json:"popular_topics"`
		}{stats, topics}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	in := stats.Interactions
	cmd.Println("Queries:")
	cmd.Printf("  Total:              %d\n", in.TotalQueries)
	cmd.Printf("  Fallback:           %d\n", in.FallbackCount)
	cmd.Printf("  Cached:             %d\n", in.CachedCount)
	cmd.Printf("  Average confidence: %.2f\n", in.AverageConfidence)
	cmd.Printf("  Feedback:           %d (average rating %.1f)\n", in.FeedbackCount, in.AverageRating)

	cmd.Println()
	cmd.Println("Sources:")
	for _, source := range domain.AllSources() {
		cmd.Printf("  %s: %d documents\n", source.Label(), stats.Documents[source])
		var state domain.SyncState
		for _, s := range stats.Sync {
			if s.Source == source {
				state = s
			}
		}
		printSyncState(cmd, state)
		for _, b := range stats.Budgets {
			if b.Source == source {
				cmd.Printf("      Budget: %d of %d remaining\n", b.Remaining, b.Limit)
			}
		}
	}

	if len(topics) > 0 {
		cmd.Println()
		cmd.Println("Popular topics:")
		for _, t := range topics {
			cmd.Printf("  %-20s %d\n", t.Topic, t.Count)
		}
	}
	return nil
}

func printSyncState(cmd *cobra.Command, s domain.SyncState) {
	if s.LastRun.IsZero() {
		cmd.Println("      Never refreshed")
		return
	}
	cmd.Printf("      Last refresh: %s\n", s.LastRun.Format(time.RFC3339))
	if !s.Watermark.IsZero() {
		cmd.Printf("      Watermark:    %s\n", s.Watermark.Format(time.RFC3339))
	}
	if s.LastError != "" {
		cmd.Printf("      Last error:   %s\n", s.LastError)
	}
}
