// Package stackoverflow implements the StackOverflow source connector
// over the StackExchange API v2.3.
//
// Questions are fetched with their bodies and answers. The accepted answer,
// when present, becomes the document's accepted answer; every answer is kept
// as a comment.
//
// # Rate Limiting
//
// Requests take a slot from the shared [driven.RateGovernor] first. The
// quota_remaining field of each response is reported back to the governor,
// with the quota resetting at UTC midnight. A backoff field in a response
// is honoured for that API method before the next call.
//
// # Operations
//
//   - FetchRecent: questions active since a watermark, per configured tag
//   - FetchByQuery: live /search/advanced lookup
package stackoverflow
