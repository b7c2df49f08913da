package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for engine resources.
	uriScheme = "supportbot://"

	topicsResourceLimit = 20
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "stats",
		Name:        "stats",
		Description: "Usage, index and rate budget statistics",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "popular-topics",
		Name:        "popular-topics",
		Description: "Most frequently asked-about topics",
		MIMEType:    "application/json",
	}, s.handleTopicsResource)
}

// handleStatsResource returns usage statistics.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Feedback == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	stats, err := s.ports.Feedback.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	return jsonResource(req.Params.URI, stats)
}

// handleTopicsResource returns the most asked-about topics.
func (s *Server) handleTopicsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Feedback == nil {
		return jsonResource(req.Params.URI, []struct{}{})
	}
	topics, err := s.ports.Feedback.PopularTopics(ctx, topicsResourceLimit)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	return jsonResource(req.Params.URI, topics)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
