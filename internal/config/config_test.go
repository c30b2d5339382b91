package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, ":50051", cfg.Server.GRPCAddr)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 60*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 200, cfg.Sync.PageSize)
	assert.Equal(t, "stop", cfg.Batch.Policy)
	assert.Equal(t, 15, cfg.Advisory.Threshold)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_addr: ":9090"
  request_timeout: 2s
storage:
  backend: memory
kafka:
  enabled: true
  brokers: ["kafka-1:9092"]
sync:
  poll_interval: 30s
batch:
  policy: continue
`), 0o600))

	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("ADVISORY_THRESHOLD", "25")
	t.Setenv("REDIS_ENABLED", "not-a-bool")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.HTTPAddr)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, "continue", cfg.Batch.Policy)
	assert.Equal(t, 25, cfg.Advisory.Threshold)
	assert.False(t, cfg.Redis.Enabled, "unparsable values keep the previous setting")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Run("backend", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "postgres")
		_, err := Load("")
		assert.ErrorContains(t, err, "storage backend")
	})

	t.Run("policy", func(t *testing.T) {
		t.Setenv("BATCH_POLICY", "retry")
		_, err := Load("")
		assert.ErrorContains(t, err, "batch policy")
	})

	t.Run("kafka without brokers", func(t *testing.T) {
		cfg := Default()
		cfg.Kafka.Enabled = true
		cfg.Kafka.Brokers = nil
		assert.Error(t, cfg.Validate())
	})
}
