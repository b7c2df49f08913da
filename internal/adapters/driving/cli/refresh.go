package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [source]",
	Short: "Refresh the index from the sources",
	Long: `Fetches issues and questions updated since the last refresh.
If a source (github or stackoverflow) is provided, only that source is refreshed.
Otherwise, all configured sources are refreshed in parallel.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if app == nil || app.Refresh == nil {
		return errors.New("refresh service not configured")
	}
	ctx := cmd.Context()

	if len(args) > 0 {
		source, err := domain.ParseSource(args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Refreshing %s...\n", source.Label())
		result, err := app.Refresh.RefreshSource(ctx, source)
		printRefreshResult(cmd, result)
		if err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}
		return nil
	}

	cmd.Println("Refreshing all sources...")
	results, err := app.Refresh.RefreshAll(ctx)
	for i := range results {
		printRefreshResult(cmd, results[i])
	}
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	return nil
}

func printRefreshResult(cmd *cobra.Command, r domain.RefreshResult) {
	if r.Err != nil {
		cmd.Printf("  %s: failed after %d documents: %v\n", r.Source.Label(), r.Upserted, r.Err)
		return
	}
	elapsed := r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond)
	cmd.Printf("  %s: %d upserted, %d skipped in %s\n", r.Source.Label(), r.Upserted, r.Skipped, elapsed)
}
