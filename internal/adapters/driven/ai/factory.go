// Package ai selects and validates the embedding provider.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/embedding/openai"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// pingTimeout is the maximum time to wait for provider connectivity validation.
const pingTimeout = 5 * time.Second

// Embedding providers.
const (
	ProviderHashing = "hashing"
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
)

// EmbeddingSettings selects and configures an embedding provider.
type EmbeddingSettings struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
	Timeout    time.Duration
}

// InitResult contains the result of embedder initialisation.
type InitResult struct {
	Embedder driven.Embedder
	Warnings []string // Non-fatal issues that caused fallback.
	FellBack bool     // True if fell back to the local hashing embedder.
}

// CreateEmbedder creates the embedder named by settings.Provider.
// An empty provider selects the hashing embedder.
func CreateEmbedder(settings EmbeddingSettings) (driven.Embedder, error) {
	switch settings.Provider {
	case ProviderHashing, "":
		return hashing.New(settings.Dimensions), nil

	case ProviderOllama:
		return ollamaembed.New(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			Dimensions: settings.Dimensions,
		}), nil

	case ProviderOpenAI:
		e, err := openaiembed.New(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			Dimensions: settings.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// Ping embeds a short sample text to check the provider is reachable.
func Ping(ctx context.Context, e driven.Embedder) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	vecs, err := e.Embed(ctx, []string{"ping"})
	if err != nil {
		return err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("%s returned an empty embedding", e.Name())
	}
	return nil
}

// InitEmbedder creates the configured embedder and validates remote providers.
// An unreachable or misconfigured remote provider falls back to the hashing
// embedder so the engine still starts; the reason is reported in Warnings.
func InitEmbedder(ctx context.Context, settings EmbeddingSettings) *InitResult {
	result := &InitResult{}

	e, err := CreateEmbedder(settings)
	if err == nil && settings.Provider != ProviderHashing && settings.Provider != "" {
		if pingErr := Ping(ctx, e); pingErr != nil {
			err = fmt.Errorf("%s unreachable: %w", settings.Provider, pingErr)
		}
	}
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("embeddings: %v; using local hashing embedder", err))
		result.FellBack = true
		e = hashing.New(0)
		logger.Warn("Embedding provider %q unavailable, falling back to hashing: %v", settings.Provider, err)
	}

	result.Embedder = e
	return result
}
