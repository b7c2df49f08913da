// Package mcp provides an MCP (Model Context Protocol) server adapter for the
// query engine. It lets AI assistants ask support questions and search the index.
package mcp

import "errors"

var (
	// ErrMissingAnswerService is returned when the answer service is not provided.
	ErrMissingAnswerService = errors.New("mcp: answer service is required")

	// ErrMissingSearchService is returned when the search service is not provided.
	ErrMissingSearchService = errors.New("mcp: search service is required")
)
