// Package governor is the shared cache and rate governor.
//
// One Governor is constructed at startup and passed by reference to every
// connector and to the answer service. It owns:
//
//   - a token bucket per source (golang.org/x/time/rate) for proactive throttling
//   - the budget reported by upstream headers, decremented under a mutex
//     so concurrent requests never overrun the real quota
//   - the TTL response cache keyed by normalised query text and intent
//
// Close stops the cache janitor and fails subsequent Acquire calls.
package governor
