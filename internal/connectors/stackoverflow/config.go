package stackoverflow

import "time"

const (
	// DefaultBaseURL is the StackExchange API root.
	DefaultBaseURL = "https://api.stackexchange.com/2.3"

	// DefaultSite is the StackExchange site queried.
	DefaultSite = "stackoverflow"

	// DefaultMaxQuestions caps questions per tag per refresh.
	DefaultMaxQuestions = 300

	// DefaultLookupLimit caps questions returned by one live query.
	DefaultLookupLimit = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// maxPageSize is the API's page size ceiling.
	maxPageSize = 100

	// maxIDsPerRequest is the API's vectorised id ceiling.
	maxIDsPerRequest = 100

	// maxQueryTerms caps the terms sent to /search/advanced.
	maxQueryTerms = 6
)

// Config holds the connector configuration.
type Config struct {
	// Key is an optional app key; it raises the daily quota.
	Key string

	// BaseURL overrides the API root.
	BaseURL string

	// Site is the StackExchange site, "stackoverflow" by default.
	Site string

	// Tags limit refreshes to questions carrying one of these tags.
	// Empty means all recent activity on the site.
	Tags []string

	// MaxQuestions caps questions per tag per refresh.
	MaxQuestions int

	// LookupLimit caps questions returned by a live query.
	LookupLimit int

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Site == "" {
		c.Site = DefaultSite
	}
	if c.MaxQuestions <= 0 {
		c.MaxQuestions = DefaultMaxQuestions
	}
	if c.LookupLimit <= 0 {
		c.LookupLimit = DefaultLookupLimit
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
