package bootstrap

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/track-analysis-api/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("json by default with service attribute", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(&buf, "", "")
		logger.Debug("hidden")
		logger.Info("job created", "job_id", "j1")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "job created", line["msg"])
		assert.Equal(t, "track-analysis", line["service"])
		assert.Equal(t, "j1", line["job_id"])
	})

	t.Run("text format and debug level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(&buf, "debug", "TEXT")
		logger.Debug("polling")
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "msg=polling")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(&buf, "verbose", "json")
		logger.Debug("hidden")
		assert.Empty(t, buf.String())
	})
}

func TestLoadConfig_EnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("QUEUE_DRIVER=postgres\nWORKER_CONCURRENCY=3\n"), 0o600))

	t.Setenv("ENV_FILE", path+", "+filepath.Join(dir, "missing.env"))
	t.Setenv("WORKER_CONCURRENCY", "5")
	t.Cleanup(func() { os.Unsetenv("QUEUE_DRIVER") })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.QueueDriverPostgres, cfg.Queue.Driver)
	assert.Equal(t, 5, cfg.Worker.Concurrency, "environment wins over the file")
}

func TestValidateServiceConfig(t *testing.T) {
	require.Error(t, ValidateServiceConfig(nil))

	cfg := &config.AppConfig{Services: "http,analysis-worker"}
	require.NoError(t, ValidateServiceConfig(cfg))
	assert.Equal(t, []string{"http", "analysis-worker"}, GetEnabledServices(cfg))

	cfg.Services = "bogus"
	require.Error(t, ValidateServiceConfig(cfg))
	assert.Empty(t, GetEnabledServices(cfg))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a.env", "b.env"}, splitList(" a.env, ,b.env "))
	assert.Nil(t, splitList(""))
}
