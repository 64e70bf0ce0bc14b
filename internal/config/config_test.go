package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "structural", cfg.ViewportRefit)
	assert.Equal(t, 40, cfg.ViewportPadding)
	assert.Equal(t, 15*time.Second, cfg.OptimizerTimeout)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
redis_addr: redis:6379
viewport_refit: tick
viewport_padding: 60
optimizer_url: http://optimizer:8000
optimizer_timeout: 3s
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("VIEWPORT_PADDING", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "tick", cfg.ViewportRefit)
	assert.Equal(t, 25, cfg.ViewportPadding, "env wins over file")
	assert.Equal(t, "http://optimizer:8000", cfg.OptimizerURL)
	assert.Equal(t, 3*time.Second, cfg.OptimizerTimeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	t.Setenv("VIEWPORT_REFIT", "always")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("VIEWPORT_REFIT", "")
	t.Setenv("REDIS_DB", "x")
	_, err = Load()
	assert.Error(t, err)
}
