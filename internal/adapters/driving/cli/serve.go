package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driving/api"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API together with the background refresh scheduler
and the config file watcher. Stops cleanly on interrupt.

Routes:
  POST /query            answer a question
  POST /feedback         rate an answer
  GET  /search           search the index
  POST /refresh          refresh one or all sources
  GET  /stats            usage statistics
  GET  /popular-topics   most asked-about topics
  GET  /health           liveness and configured sources
  GET  /metrics          Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if app == nil || app.Answer == nil {
		return errors.New("engine not configured")
	}

	cfg := app.Config.Server
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}

	server, err := api.New(api.Config{
		Addr:           cfg.Addr,
		RequestTimeout: cfg.RequestTimeout,
		AllowAll:       cfg.AllowAllOrigins,
		AllowedOrigins: cfg.AllowedOrigins,
	}, &api.Ports{
		Answer:   app.Answer,
		Search:   app.Search,
		Feedback: app.Feedback,
		Refresh:  app.Refresh,
		Metrics:  app.Metrics,
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	if app.Scheduler != nil {
		g.Go(func() error {
			return ignoreCancel(app.Scheduler.Start(ctx))
		})
		g.Go(func() error {
			<-ctx.Done()
			return app.Scheduler.Stop()
		})
	}
	if app.Watcher != nil {
		g.Go(func() error {
			app.Watcher.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		return server.Run(ctx)
	})

	err = g.Wait()
	logger.Info("Server stopped")
	return err
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
