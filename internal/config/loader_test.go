package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"ANTHROPIC_MODEL", "REDIS_ADDR", "QDRANT_PORT", "CRAWLER_MAX_SUBMIT_TRIES"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "claude-sonnet-4-5", cfg.Anthropic.Model)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 6334, cfg.Qdrant.Port)
	require.Equal(t, 5, cfg.Crawler.MaxSubmitTries)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_MODEL", "claude-opus-4")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("QDRANT_USE_TLS", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "claude-opus-4", cfg.Anthropic.Model)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	require.True(t, cfg.Qdrant.UseTLS)
}
