// Package github implements the GitHub Issues source connector.
//
// The connector reads issues and their comments from a configured list of
// repositories and emits them as domain documents. Pull requests returned by
// the issues endpoint are skipped.
//
// # Architecture
//
// The connector follows the driven port pattern defined in
// [driven.SourceConnector]. It comprises the following components:
//
//   - Connector: streams documents and manages lifecycle
//   - Client: wraps go-github with budget accounting and retries
//   - Config: repositories, limits and credentials
//
// # Authentication
//
// A personal access token raises the budget to 5,000 requests per hour.
// Without a token the connector runs anonymously at 60 requests per hour,
// which is only useful for small repository lists.
//
// # Rate Limiting
//
// Every request first takes a slot from the shared [driven.RateGovernor].
// X-RateLimit-Remaining and X-RateLimit-Reset from each core API response
// are fed back to the governor so it tracks the server's view of the budget.
// Search API responses carry their own, smaller budget and are not fed back.
//
// # Operations
//
//   - FetchRecent: issues updated since a watermark, oldest first, per repo
//   - FetchByQuery: live issue search restricted to the configured repos
//
// Transient failures are retried with exponential backoff. 4xx responses
// other than rate limits are not retried.
//
// # Example Usage
//
//	client, _ := github.NewClient(ctx, cfg, governor, retry.DefaultPolicy())
//	connector := github.New(cfg, client)
//
//	docs, errs := connector.FetchRecent(ctx, since)
//	for doc := range docs {
//	    // Process document
//	}
//	if err := <-errs; err != nil {
//	    return err
//	}
package github
