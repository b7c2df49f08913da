// Package api serves the query engine over HTTP.
//
// Routes:
//
//	POST /query            answer a question
//	POST /feedback         rate a previous answer
//	GET  /search           lexical search over the index
//	POST /refresh          refresh one source (?source=) or all
//	GET  /stats            usage, index and budget statistics
//	GET  /popular-topics   most asked-about topics
//	GET  /health           liveness and configured sources
//	GET  /metrics          Prometheus metrics, when a handler is configured
package api
