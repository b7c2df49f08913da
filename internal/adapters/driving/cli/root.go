// Package cli is the supportbot command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/config"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// skipBootstrap marks commands that run without the engine.
const skipBootstrap = "skip-bootstrap"

var (
	version = "dev"

	configPath string
	verbose    bool

	// app holds the wired engine. Tests assign it directly.
	app *App
)

var rootCmd = &cobra.Command{
	Use:   "supportbot",
	Short: "Answer technical support questions from GitHub and StackOverflow",
	Long: `supportbot answers software troubleshooting questions by searching
GitHub issues and StackOverflow questions, ranking what it finds by relevance
and trust, and composing an answer that cites its sources.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.supportbot/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command and releases the engine afterwards.
func Execute(ctx context.Context) error {
	defer teardown()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	defer func() {
		if verbose {
			logger.SetVerbose(true)
		}
	}()
	if app != nil || cmd.Annotations[skipBootstrap] == "true" {
		return nil
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	a, err := Bootstrap(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	app = a
	return nil
}

func teardown() {
	if app == nil {
		return
	}
	if err := app.Close(); err != nil {
		logger.Warn("shutdown: %v", err)
	}
	app = nil
}
