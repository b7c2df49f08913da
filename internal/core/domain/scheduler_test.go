package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Interval)
}

func TestRefreshTaskID(t *testing.T) {
	assert.Equal(t, "refresh:github", RefreshTaskID(SourceGitHub))
	assert.Equal(t, "refresh:stackoverflow", RefreshTaskID(SourceStackOverflow))
}
