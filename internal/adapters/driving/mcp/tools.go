package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Text string `json:"text" jsonschema:"the technical support question, code blocks allowed"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer          string            `json:"answer"`
	Citations       []domain.Citation `json:"citations"`
	Confidence      float64           `json:"confidence"`
	Fallback        bool              `json:"fallback"`
	PartialCoverage bool              `json:"partial_coverage"`
	QueryID         string            `json:"query_id,omitempty"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"keywords to search issues and questions for"`
	Source string `json:"source,omitempty" jsonschema:"restrict to one source: github or stackoverflow"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	Source   string  `json:"source"`
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Score    float64 `json:"score"`
	Resolved bool    `json:"resolved"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a software troubleshooting question from GitHub issues and StackOverflow",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed GitHub issues and StackOverflow questions",
	}, s.handleSearch)
}

// handleAsk handles the ask tool invocation.
// A too-short question is reported as a tool error so the assistant can rephrase.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Answer.Ask(ctx, input.Text)
	if err != nil {
		if errors.Is(err, domain.ErrQueryTooShort) {
			return toolError("The question is too short. Add the error message or more detail."), AskOutput{}, nil
		}
		return nil, AskOutput{}, err
	}

	resp := answer.Response
	citations := resp.Citations
	if citations == nil {
		citations = []domain.Citation{}
	}
	return nil, AskOutput{
		Answer:          resp.Text,
		Citations:       citations,
		Confidence:      resp.Confidence,
		Fallback:        resp.FallbackUsed,
		PartialCoverage: resp.PartialCoverage,
		QueryID:         answer.InteractionID,
	}, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := driving.SearchOptions{Source: domain.Source(input.Source), Limit: limit}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, fmt.Errorf("search: %w", err)
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		doc := &results[i].Document
		output.Results[i] = SearchResultOutput{
			Source:   string(doc.Source),
			ID:       doc.ID,
			Title:    doc.Title,
			URL:      doc.URL,
			Score:    results[i].Score,
			Resolved: doc.Resolved,
		}
	}

	return nil, output, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
