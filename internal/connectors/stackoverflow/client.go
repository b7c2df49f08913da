package stackoverflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/connectors/retry"
	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// envelope is the common wrapper around every API response.
type envelope[T any] struct {
	Items          []T    `json:"items"`
	HasMore        bool   `json:"has_more"`
	QuotaMax       int    `json:"quota_max"`
	QuotaRemaining int    `json:"quota_remaining"`
	Backoff        int    `json:"backoff"`
	ErrorID        int    `json:"error_id"`
	ErrorName      string `json:"error_name"`
	ErrorMessage   string `json:"error_message"`
}

type owner struct {
	DisplayName string `json:"display_name"`
}

type question struct {
	QuestionID       int      `json:"question_id"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	Tags             []string `json:"tags"`
	Score            int      `json:"score"`
	IsAnswered       bool     `json:"is_answered"`
	AcceptedAnswerID int      `json:"accepted_answer_id"`
	AnswerCount      int      `json:"answer_count"`
	Link             string   `json:"link"`
	CreationDate     int64    `json:"creation_date"`
	LastActivityDate int64    `json:"last_activity_date"`
	Owner            owner    `json:"owner"`
}

type answer struct {
	AnswerID     int    `json:"answer_id"`
	QuestionID   int    `json:"question_id"`
	Body         string `json:"body"`
	Score        int    `json:"score"`
	IsAccepted   bool   `json:"is_accepted"`
	CreationDate int64  `json:"creation_date"`
	Owner        owner  `json:"owner"`
}

// Client talks to the StackExchange API.
type Client struct {
	http     *http.Client
	baseURL  string
	site     string
	key      string
	governor driven.RateGovernor
	policy   retry.Policy

	mu           sync.Mutex
	backoffUntil map[string]time.Time
	now          func() time.Time
}

// NewClient creates a StackExchange API client.
// governor may be nil, in which case requests are not budgeted.
func NewClient(cfg Config, governor driven.RateGovernor, policy retry.Policy) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		http:         &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		site:         cfg.Site,
		key:          cfg.Key,
		governor:     governor,
		policy:       policy,
		backoffUntil: make(map[string]time.Time),
		now:          time.Now,
	}
}

// ActiveQuestions pages through questions active since the given time,
// oldest activity first. tag may be empty.
func (c *Client) ActiveQuestions(ctx context.Context, tag string, since time.Time, max int) ([]question, error) {
	params := url.Values{}
	params.Set("order", "asc")
	params.Set("sort", "activity")
	if !since.IsZero() {
		params.Set("min", strconv.FormatInt(since.Unix(), 10))
	}
	if tag != "" {
		params.Set("tagged", tag)
	}
	return collectPages[question](ctx, c, "questions", "/questions", params, max)
}

// Search runs /search/advanced and returns up to max questions with at
// least one answer, most relevant first.
func (c *Client) Search(ctx context.Context, q string, max int) ([]question, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("order", "desc")
	params.Set("sort", "relevance")
	params.Set("answers", "1")
	return collectPages[question](ctx, c, "search", "/search/advanced", params, max)
}

// Answers fetches every answer to the given questions, grouped by question id.
func (c *Client) Answers(ctx context.Context, questionIDs []int) (map[int][]answer, error) {
	out := make(map[int][]answer)
	for start := 0; start < len(questionIDs); start += maxIDsPerRequest {
		end := min(start+maxIDsPerRequest, len(questionIDs))
		ids := make([]string, 0, end-start)
		for _, id := range questionIDs[start:end] {
			ids = append(ids, strconv.Itoa(id))
		}

		params := url.Values{}
		params.Set("order", "desc")
		params.Set("sort", "votes")
		answers, err := collectPages[answer](ctx, c, "answers", "/questions/"+strings.Join(ids, ";")+"/answers", params, 0)
		if err != nil {
			return out, err
		}
		for _, a := range answers {
			out[a.QuestionID] = append(out[a.QuestionID], a)
		}
	}
	return out, nil
}

// collectPages follows has_more until max items are collected.
// max <= 0 means no cap.
func collectPages[T any](ctx context.Context, c *Client, method, path string, params url.Values, max int) ([]T, error) {
	pageSize := maxPageSize
	if max > 0 && max < pageSize {
		pageSize = max
	}
	params.Set("pagesize", strconv.Itoa(pageSize))

	var items []T
	for page := 1; ; page++ {
		params.Set("page", strconv.Itoa(page))
		env, err := get[T](ctx, c, method, path, params)
		if err != nil {
			return items, err
		}
		items = append(items, env.Items...)
		if max > 0 && len(items) >= max {
			return items[:max], nil
		}
		if !env.HasMore || len(env.Items) == 0 {
			return items, nil
		}
	}
}

// get performs one API call under the retry policy.
func get[T any](ctx context.Context, c *Client, method, path string, params url.Values) (*envelope[T], error) {
	params.Set("site", c.site)
	params.Set("filter", "withbody")
	if c.key != "" {
		params.Set("key", c.key)
	}
	endpoint := c.baseURL + path + "?" + params.Encode()

	return retry.Do(ctx, c.policy, "stackoverflow "+method, func() (*envelope[T], error) {
		if err := c.waitBackoff(ctx, method); err != nil {
			return nil, retry.Permanent(err)
		}
		if c.governor != nil {
			if err := c.governor.Acquire(ctx, domain.SourceStackOverflow); err != nil {
				return nil, retry.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: read body: %w", method, err)
		}

		var env envelope[T]
		if err := json.Unmarshal(body, &env); err != nil {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			if resp.StatusCode == http.StatusOK {
				return nil, retry.Permanent(fmt.Errorf("%s: decode: %w", method, err))
			}
			if apiErr.Temporary() {
				return nil, apiErr
			}
			return nil, retry.Permanent(apiErr)
		}

		c.observe(method, env.Backoff, env.QuotaMax, env.QuotaRemaining)

		if env.ErrorID != 0 || resp.StatusCode != http.StatusOK {
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				ID:         env.ErrorID,
				Name:       env.ErrorName,
				Message:    env.ErrorMessage,
			}
			if apiErr.Temporary() {
				return nil, apiErr
			}
			return nil, retry.Permanent(apiErr)
		}
		return &env, nil
	})
}

// observe records a method backoff and reports the daily quota.
func (c *Client) observe(method string, backoff, quotaMax, quotaRemaining int) {
	now := c.now()
	if backoff > 0 {
		c.mu.Lock()
		c.backoffUntil[method] = now.Add(time.Duration(backoff) * time.Second)
		c.mu.Unlock()
	}
	if c.governor != nil && quotaMax > 0 {
		c.governor.Observe(domain.SourceStackOverflow, quotaRemaining, nextUTCMidnight(now))
	}
}

// waitBackoff blocks until a backoff requested for method has elapsed.
func (c *Client) waitBackoff(ctx context.Context, method string) error {
	c.mu.Lock()
	until := c.backoffUntil[method]
	c.mu.Unlock()

	wait := until.Sub(c.now())
	if wait <= 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
		return fmt.Errorf("%w: %s backoff for %s", domain.ErrRateLimited, method, wait.Round(time.Second))
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextUTCMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
}
