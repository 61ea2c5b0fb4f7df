package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8012, cfg.HTTPPort)
	assert.Equal(t, "http://localhost:8000", cfg.CartAPIURL)
	assert.Equal(t, 10*time.Second, cfg.CartAPITimeout)
	assert.Equal(t, 0, cfg.CartAPIMaxRetries)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 30*time.Minute, cfg.ManagerIdleTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.Empty(t, cfg.PprofCIDRs)
}

func TestLoad_KafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	t.Setenv("CARTSYNC_HTTP_PORT", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_RelativeCartAPIURL(t *testing.T) {
	t.Setenv("CART_API_URL", "/cart")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CART_API_URL")
}

func TestLoad_InvalidBreakerRatio(t *testing.T) {
	t.Setenv("CART_API_BREAKER_FAILURE_RATIO", "1.5")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILURE_RATIO")
}

func TestLoad_InvalidOTELSampleRate(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATE", "2.0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTEL_SAMPLE_RATE must be between 0.0 and 1.0")
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("CART_API_TIMEOUT", "soon")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load cartsync config")
}

func TestLoad_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cartsync.env")
	require.NoError(t, os.WriteFile(path, []byte("CART_API_URL=http://cart.internal:9000\n"), 0o600))
	t.Setenv("CARTSYNC_DOTENV", path)
	t.Cleanup(func() { _ = os.Unsetenv("CART_API_URL") })

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://cart.internal:9000", cfg.CartAPIURL)
}

func TestLoad_ProcessEnvBeatsDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cartsync.env")
	require.NoError(t, os.WriteFile(path, []byte("REDIS_ADDR=redis.dotenv:6379\n"), 0o600))
	t.Setenv("CARTSYNC_DOTENV", path)
	t.Setenv("REDIS_ADDR", "redis.prod:6380")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "redis.prod:6380", cfg.RedisAddr)
}
