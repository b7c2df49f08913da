package github

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMaxIssues caps issues fetched per repository per refresh.
	DefaultMaxIssues = 500

	// DefaultLookupLimit caps issues fetched by one live query.
	DefaultLookupLimit = 10

	// DefaultMaxComments caps comments fetched per issue.
	DefaultMaxComments = 50

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second
)

// Repo names one repository.
type Repo struct {
	Owner string
	Name  string
}

// String returns "owner/name".
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// Config holds the connector configuration.
type Config struct {
	// Token is an optional personal access token.
	Token string

	// BaseURL overrides the API root. Empty means api.github.com.
	BaseURL string

	// Repos are the repositories to read issues from.
	Repos []Repo

	// MaxIssues caps issues per repository per refresh.
	MaxIssues int

	// LookupLimit caps issues returned by a live query.
	LookupLimit int

	// MaxComments caps comments fetched per issue.
	MaxComments int

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// ParseRepo parses "owner/name".
func ParseRepo(s string) (Repo, error) {
	s = strings.TrimSpace(s)
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, fmt.Errorf("%w: %q", ErrInvalidRepo, s)
	}
	return Repo{Owner: owner, Name: name}, nil
}

// ParseRepos parses a list of "owner/name" strings.
func ParseRepos(values []string) ([]Repo, error) {
	repos := make([]Repo, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		r, err := ParseRepo(v)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, nil
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.MaxIssues <= 0 {
		c.MaxIssues = DefaultMaxIssues
	}
	if c.LookupLimit <= 0 {
		c.LookupLimit = DefaultLookupLimit
	}
	if c.MaxComments <= 0 {
		c.MaxComments = DefaultMaxComments
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
