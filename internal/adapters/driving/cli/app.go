package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/ai"
	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/config"
	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/governor"
	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/metrics"
	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/storage/memory"
	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/storage/sqlite"
	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/vector"
	"github.com/Odushhh/tech-support-chatbot/internal/connectors/github"
	"github.com/Odushhh/tech-support-chatbot/internal/connectors/retry"
	"github.com/Odushhh/tech-support-chatbot/internal/connectors/stackoverflow"
	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
	"github.com/Odushhh/tech-support-chatbot/internal/core/services"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
	"github.com/Odushhh/tech-support-chatbot/internal/normalisers"
)

// App is the wired engine shared by every command.
type App struct {
	Config *config.Config

	Answer    driving.AnswerService
	Search    driving.SearchService
	Feedback  driving.FeedbackService
	Refresh   driving.RefreshService
	Scheduler driving.Scheduler

	// Watcher hot-reloads ranking settings. Nil when the config file cannot be watched.
	Watcher *config.Watcher

	// Metrics serves the Prometheus registry.
	Metrics http.Handler

	closers []func() error
}

// Close releases every resource in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Bootstrap loads configuration from path and wires the engine.
func Bootstrap(ctx context.Context, path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	a := &App{Config: cfg}
	if err := a.wire(ctx, path); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, path string) error {
	cfg := a.Config

	recorder := metrics.New()
	a.Metrics = recorder.Handler()

	gov := governor.New(governorConfig(cfg))
	gov.SetMetrics(recorder)
	a.onClose(gov.Close)

	connectors, err := newConnectors(ctx, cfg, gov)
	if err != nil {
		return err
	}
	for _, c := range connectors {
		a.onClose(c.Close)
	}

	embedding := ai.InitEmbedder(ctx, ai.EmbeddingSettings{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	})
	embedder := embedding.Embedder
	vectors := vector.NewChromemIndex(embedder)

	var (
		index        driven.DocumentIndex
		syncStore    driven.SyncStateStore
		schedStore   driven.SchedulerStore
		interactions driven.InteractionStore
	)
	switch cfg.Storage.Backend {
	case "memory":
		index = memory.NewIndex(embedder, vectors)
		syncStore = memory.NewSyncStateStore()
		schedStore = memory.NewSchedulerStore()
		interactions = memory.NewInteractionStore()
	default:
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		a.onClose(store.Close)
		idx, err := store.DocumentIndex(ctx, embedder, vectors)
		if err != nil {
			return fmt.Errorf("opening index: %w", err)
		}
		index = idx
		syncStore = store.SyncStateStore()
		schedStore = store.SchedulerStore()
		interactions = store.InteractionStore()
		logger.Debug("Using database %s", store.Path())
	}
	a.onClose(index.Close)

	var settings driven.RankingSettings = cfg.Ranking.ToDomain()
	if w, err := config.NewWatcher(path, cfg); err != nil {
		logger.Warn("Ranking settings will not reload: %v", err)
	} else {
		a.Watcher = w
		settings = w
		a.onClose(w.Close)
	}

	understanding := services.NewUnderstandingService(services.UnderstandingConfig{
		MinTokens:   cfg.Understanding.MinTokens,
		IntentFloor: cfg.Understanding.IntentFloor,
		MaxKeywords: cfg.Understanding.MaxKeywords,
		Vocabulary:  cfg.Understanding.Vocabulary,
	}, normalisers.NewAuto(), embedder)
	retrieval := services.NewRetrievalService(index, connectors, settings, recorder)
	refresh := services.NewRefreshService(connectors, index, syncStore, recorder,
		services.WithRefreshTimeout(cfg.Refresh.Timeout))

	a.Answer = services.NewEngine(
		understanding,
		retrieval,
		services.NewSynthesizer(settings),
		gov,
		services.WithInteractionStore(interactions),
		services.WithMetrics(recorder),
		services.WithCacheTTL(cfg.Cache.TTL),
	)
	a.Search = services.NewSearchService(index)
	a.Feedback = services.NewFeedbackService(interactions, index, syncStore, gov)
	a.Refresh = refresh
	a.Scheduler = services.NewScheduler(domain.SchedulerConfig{
		Enabled:  cfg.Refresh.Enabled,
		Interval: cfg.Refresh.Interval,
	}, schedStore, refresh)

	logger.Debug("Engine ready: sources %v, storage %s, embeddings %s",
		refresh.Sources(), cfg.Storage.Backend, embedder.Name())
	return nil
}

func governorConfig(cfg *config.Config) governor.Config {
	quota := func(q config.QuotaConfig) governor.Quota {
		return governor.Quota{Requests: q.Requests, Window: q.Window, Burst: q.Burst}
	}
	return governor.Config{
		Quotas: map[domain.Source]governor.Quota{
			domain.SourceGitHub:                quota(cfg.GitHub.Quota),
			domain.SourceGitHub.SearchBudget(): quota(cfg.GitHub.SearchQuota),
			domain.SourceStackOverflow:         quota(cfg.StackOverflow.Quota),
		},
		MaxWait:         cfg.RateLimit.MaxWait,
		CacheTTL:        cfg.Cache.TTL,
		CacheMaxEntries: cfg.Cache.MaxEntries,
	}
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		Multiplier: cfg.Multiplier,
		Jitter:     cfg.Jitter,
		MaxDelay:   cfg.MaxDelay,
	}
}

// newConnectors builds a connector for every enabled source.
func newConnectors(ctx context.Context, cfg *config.Config, gov driven.RateGovernor) ([]driven.SourceConnector, error) {
	policy := retryPolicy(cfg.Retry)
	var connectors []driven.SourceConnector

	if cfg.GitHub.Enabled {
		repos := make([]github.Repo, 0, len(cfg.GitHub.Repos))
		for _, r := range cfg.GitHub.Repos {
			repo, err := github.ParseRepo(r)
			if err != nil {
				return nil, err
			}
			repos = append(repos, repo)
		}
		ghCfg := github.Config{
			Token:     cfg.GitHub.Token,
			BaseURL:   cfg.GitHub.BaseURL,
			Repos:     repos,
			MaxIssues: cfg.GitHub.MaxIssues,
		}
		client, err := github.NewClient(ctx, ghCfg, gov, policy)
		if err != nil {
			return nil, fmt.Errorf("github: %w", err)
		}
		connectors = append(connectors, github.New(ghCfg, client))
	}

	if cfg.StackOverflow.Enabled {
		soCfg := stackoverflow.Config{
			Key:          cfg.StackOverflow.Key,
			BaseURL:      cfg.StackOverflow.BaseURL,
			Site:         cfg.StackOverflow.Site,
			Tags:         cfg.StackOverflow.Tags,
			MaxQuestions: cfg.StackOverflow.MaxQuestions,
		}
		client := stackoverflow.NewClient(soCfg, gov, policy)
		connectors = append(connectors, stackoverflow.New(soCfg, client))
	}

	if len(connectors) == 0 {
		logger.Warn("No sources enabled; answers come from the existing index only")
	}
	return connectors, nil
}
