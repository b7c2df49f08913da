package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCmd_PrintsSummary(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("stats")

	require.NoError(t, err)
	assert.Contains(t, out, "Total:              12")
	assert.Contains(t, out, "Fallback:           2")
	assert.Contains(t, out, "Average confidence: 0.64")
	assert.Contains(t, out, "GitHub: 40 documents")
	assert.Contains(t, out, "Last refresh: 2026-10-01T12:00:00Z")
	assert.Contains(t, out, "Last error:   rate limited")
	assert.Contains(t, out, "StackOverflow: 55 documents")
	assert.Contains(t, out, "Never refreshed")
	assert.Contains(t, out, "Budget: 9000 of 10000 remaining")
	assert.Contains(t, out, "Popular topics:")
	assert.Contains(t, out, "npm")
}

func TestStatsCmd_JSONOutput(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defer func() { statsJSON = false }()

	out, err := execute("stats", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"total_queries": 12`)
	assert.Contains(t, out, `"popular_topics"`)
}

func TestStatsCmd_ServiceError(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()
	svc.feedback.err = errors.New("db closed")

	_, err := execute("stats")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stats failed")
}
