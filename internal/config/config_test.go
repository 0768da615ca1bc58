package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRateLimitConfig_Normalizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestLoadAIRateLimitConfig(t *testing.T) {
	t.Setenv("AI_RATE_LIMIT_CAPACITY", "3")
	cfg := LoadAIRateLimitConfig()
	assert.Equal(t, 3, cfg.Capacity)
	assert.Equal(t, "user_route", cfg.KeyStrategy)
	assert.Contains(t, cfg.Prefix, ":ai")
}

func TestLoadIntegrations_RenderMockWithoutKey(t *testing.T) {
	t.Setenv("RENDER_API_KEY", "")
	t.Setenv("RENDER_MOCK", "false")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://other/")

	in := LoadIntegrations()
	assert.True(t, in.RenderMock)
	assert.Equal(t, "amqp://other/", in.AMQPURL)
	assert.False(t, in.StripeEnabled())
}

func TestParseMethods(t *testing.T) {
	m := parseMethods(" get, head ,,")
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, m)
}

func TestEnvBool(t *testing.T) {
	t.Setenv("X_FLAG", "on")
	assert.True(t, envBool("X_FLAG", false))
	t.Setenv("X_FLAG", "nonsense")
	assert.True(t, envBool("X_FLAG", true))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SMARTVID_DOTENV_TEST=hello\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SMARTVID_DOTENV_TEST") })

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	assert.Equal(t, "hello", os.Getenv("SMARTVID_DOTENV_TEST"))
}
