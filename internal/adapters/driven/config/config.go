package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "SUPPORTBOT_"

// Config is the complete engine configuration.
type Config struct {
	DataDir  string `koanf:"data_dir" validate:"required"`
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Server        ServerConfig        `koanf:"server"`
	Storage       StorageConfig       `koanf:"storage"`
	GitHub        GitHubConfig        `koanf:"github"`
	StackOverflow StackOverflowConfig `koanf:"stackoverflow"`
	RateLimit     RateLimitConfig     `koanf:"rate_limit"`
	Retry         RetryConfig         `koanf:"retry"`
	Ranking       RankingConfig       `koanf:"ranking"`
	Understanding UnderstandingConfig `koanf:"understanding"`
	Cache         CacheConfig         `koanf:"cache"`
	Refresh       RefreshConfig       `koanf:"refresh"`
	Embedding     EmbeddingConfig     `koanf:"embedding"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	AllowAllOrigins bool          `koanf:"allow_all_origins"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

// StorageConfig selects the document index backend.
type StorageConfig struct {
	// Backend is "sqlite" (persistent) or "memory" (ephemeral).
	Backend string `koanf:"backend" validate:"oneof=sqlite memory"`
}

// QuotaConfig is a request budget of Requests per Window.
type QuotaConfig struct {
	Requests int           `koanf:"requests" validate:"gt=0"`
	Window   time.Duration `koanf:"window" validate:"gt=0"`
	Burst    int           `koanf:"burst" validate:"gte=1"`
}

// GitHubConfig configures the GitHub Issues connector.
type GitHubConfig struct {
	Enabled bool   `koanf:"enabled"`
	Token   string `koanf:"token"`
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`

	// Repos are "owner/name" pairs refreshed in the background.
	Repos []string `koanf:"repos" validate:"dive,contains=/"`

	// MaxIssues caps documents per refresh and per query lookup. Zero means no cap.
	MaxIssues int `koanf:"max_issues" validate:"gte=0"`

	Quota QuotaConfig `koanf:"quota"`

	// SearchQuota is GitHub's separate budget for the search endpoints.
	SearchQuota QuotaConfig `koanf:"search_quota"`
}

// StackOverflowConfig configures the StackExchange connector.
type StackOverflowConfig struct {
	Enabled bool   `koanf:"enabled"`
	Key     string `koanf:"key"`
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`
	Site    string `koanf:"site" validate:"required"`

	// Tags restrict background refresh to questions carrying any of these tags.
	Tags []string `koanf:"tags"`

	// MaxQuestions caps documents per refresh and per query lookup. Zero means no cap.
	MaxQuestions int `koanf:"max_questions" validate:"gte=0"`

	Quota QuotaConfig `koanf:"quota"`
}

// RateLimitConfig bounds how long a caller waits for budget.
type RateLimitConfig struct {
	MaxWait time.Duration `koanf:"max_wait" validate:"gt=0"`
}

// RetryConfig is the connector retry policy.
type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries" validate:"gte=0"`
	BaseDelay  time.Duration `koanf:"base_delay" validate:"gt=0"`
	Multiplier float64       `koanf:"multiplier" validate:"gte=1"`
	Jitter     float64       `koanf:"jitter" validate:"gte=0,lt=1"`
	MaxDelay   time.Duration `koanf:"max_delay" validate:"gtefield=BaseDelay"`
}

// RankingConfig holds weights and thresholds. Reloaded live.
type RankingConfig struct {
	LexicalWeight      float64       `koanf:"lexical_weight" validate:"gte=0"`
	SemanticWeight     float64       `koanf:"semantic_weight" validate:"gte=0"`
	TrustWeight        float64       `koanf:"trust_weight" validate:"gte=0"`
	MinRelevance       float64       `koanf:"min_relevance" validate:"gte=0,lte=1"`
	SemanticFloor      float64       `koanf:"semantic_floor" validate:"gte=0,lte=1"`
	MatchFloor         float64       `koanf:"match_floor" validate:"gte=0,lte=1"`
	SynthesisThreshold float64       `koanf:"synthesis_threshold" validate:"gte=0,lte=1"`
	Margin             float64       `koanf:"margin" validate:"gte=0,lte=1"`
	TopK               int           `koanf:"top_k" validate:"gte=1"`
	CandidateLimit     int           `koanf:"candidate_limit" validate:"gte=1"`
	SourceTimeout      time.Duration `koanf:"source_timeout" validate:"gt=0"`
	LiveLookup         bool          `koanf:"live_lookup"`
}

// UnderstandingConfig tunes query understanding.
type UnderstandingConfig struct {
	MinTokens   int     `koanf:"min_tokens" validate:"gte=1"`
	IntentFloor float64 `koanf:"intent_floor" validate:"gte=0,lte=1"`
	MaxKeywords int     `koanf:"max_keywords" validate:"gte=1"`

	// Vocabulary extends the built-in library and framework names.
	Vocabulary []string `koanf:"vocabulary"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	TTL        time.Duration `koanf:"ttl" validate:"gt=0"`
	MaxEntries int           `koanf:"max_entries" validate:"gte=0"`
}

// RefreshConfig configures background index refresh.
type RefreshConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// Timeout bounds one refresh run of a source.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `koanf:"provider" validate:"oneof=hashing openai ollama"`
	Model      string        `koanf:"model"`
	BaseURL    string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey     string        `koanf:"api_key"`
	Dimensions int           `koanf:"dimensions" validate:"gte=0"`
	Timeout    time.Duration `koanf:"timeout" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	rank := domain.DefaultRankingConfig()
	return &Config{
		DataDir:  defaultDataDir(),
		LogLevel: "info",
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 30 * time.Second,
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Storage: StorageConfig{Backend: "sqlite"},
		GitHub: GitHubConfig{
			Enabled:     true,
			MaxIssues:   500,
			Quota:       QuotaConfig{Requests: 5000, Window: time.Hour, Burst: 10},
			SearchQuota: QuotaConfig{Requests: 30, Window: time.Minute, Burst: 5},
		},
		StackOverflow: StackOverflowConfig{
			Enabled:      true,
			Site:         "stackoverflow",
			MaxQuestions: 500,
			Quota:        QuotaConfig{Requests: 10000, Window: 24 * time.Hour, Burst: 5},
		},
		RateLimit: RateLimitConfig{MaxWait: time.Second},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  500 * time.Millisecond,
			Multiplier: 2,
			Jitter:     0.2,
			MaxDelay:   5 * time.Second,
		},
		Ranking: RankingConfig{
			LexicalWeight:      rank.LexicalWeight,
			SemanticWeight:     rank.SemanticWeight,
			TrustWeight:        rank.TrustWeight,
			MinRelevance:       rank.MinRelevance,
			SemanticFloor:      rank.SemanticFloor,
			MatchFloor:         rank.MatchFloor,
			SynthesisThreshold: rank.SynthesisThreshold,
			Margin:             rank.Margin,
			TopK:               rank.TopK,
			CandidateLimit:     rank.CandidateLimit,
			SourceTimeout:      rank.SourceTimeout,
			LiveLookup:         rank.LiveLookup,
		},
		Understanding: UnderstandingConfig{
			MinTokens:   2,
			IntentFloor: 0.5,
			MaxKeywords: 10,
		},
		Cache:   CacheConfig{TTL: 15 * time.Minute, MaxEntries: 10000},
		Refresh: RefreshConfig{Enabled: true, Interval: 10 * time.Minute, Timeout: 10 * time.Minute},
		Embedding: EmbeddingConfig{
			Provider:   "hashing",
			Dimensions: 256,
		},
	}
}

// ToDomain converts the ranking section into the core type.
func (r RankingConfig) ToDomain() domain.RankingConfig {
	return domain.RankingConfig{
		LexicalWeight:      r.LexicalWeight,
		SemanticWeight:     r.SemanticWeight,
		TrustWeight:        r.TrustWeight,
		MinRelevance:       r.MinRelevance,
		SemanticFloor:      r.SemanticFloor,
		MatchFloor:         r.MatchFloor,
		SynthesisThreshold: r.SynthesisThreshold,
		Margin:             r.Margin,
		TopK:               r.TopK,
		CandidateLimit:     r.CandidateLimit,
		SourceTimeout:      r.SourceTimeout,
		LiveLookup:         r.LiveLookup,
	}
}

// EnabledSources lists the sources switched on.
func (c *Config) EnabledSources() []domain.Source {
	var sources []domain.Source
	if c.GitHub.Enabled {
		sources = append(sources, domain.SourceGitHub)
	}
	if c.StackOverflow.Enabled {
		sources = append(sources, domain.SourceStackOverflow)
	}
	return sources
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".supportbot"
	}
	return filepath.Join(home, ".supportbot")
}
