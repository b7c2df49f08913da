package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from the TOML file at path, then overlays
// environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), TOML()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.applyConventionalEnv()
	cfg.splitLists()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps SUPPORTBOT_RANKING__TRUST_WEIGHT to ranking.trust_weight.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) applyConventionalEnv() {
	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if c.StackOverflow.Key == "" {
		c.StackOverflow.Key = os.Getenv("STACKOVERFLOW_KEY")
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// splitLists expands comma-separated values that arrive as a single env string.
func (c *Config) splitLists() {
	c.GitHub.Repos = splitList(c.GitHub.Repos)
	c.StackOverflow.Tags = splitList(c.StackOverflow.Tags)
	c.Understanding.Vocabulary = splitList(c.Understanding.Vocabulary)
	c.Server.AllowedOrigins = splitList(c.Server.AllowedOrigins)
}

func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	r := c.Ranking
	if r.LexicalWeight+r.SemanticWeight+r.TrustWeight <= 0 {
		return errors.New("invalid config: ranking weights must not all be zero")
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return errors.New("invalid config: embedding.api_key is required for the openai provider")
	}
	return nil
}
