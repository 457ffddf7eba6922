package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 1000, cfg.MatchCap)
	assert.Greater(t, cfg.SearchWorkers, 0)
}

func TestApplyKDLOverridesOnlySetFields(t *testing.T) {
	cfg := Default()
	err := applyKDL(cfg, `
match_cap 250
search_workers 4
`)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.MatchCap)
	assert.Equal(t, 4, cfg.SearchWorkers)
	assert.Equal(t, time.Second, cfg.PollInterval) // untouched default
}

func TestApplyKDLIgnoresUnknownNodes(t *testing.T) {
	cfg := Default()
	err := applyKDL(cfg, `future_knob "whatever"`)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
