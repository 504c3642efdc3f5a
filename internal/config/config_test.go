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
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "Downloads", "ZortosHub"), cfg.DownloadDir)
	assert.Equal(t, "/Volumes/", cfg.MountRoot)
	assert.Equal(t, 3, cfg.MountAttempts)
	assert.Equal(t, 2*time.Second, cfg.BusyRetryDelay)
	assert.Equal(t, 32*1024, cfg.ChunkSize)
	assert.Equal(t, time.Minute, cfg.InactivityTimeout)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
catalog: ~/apps.yaml
mount-attempts: 5
busy-retry-delay: 500ms
progress-step: 5
`), 0644))
	t.Setenv("ZORTOSHUB_DOWNLOAD_DIR", "/tmp/zh")

	cfg, err := Load(New(), file)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "apps.yaml"), cfg.Catalog)
	assert.Equal(t, 5, cfg.MountAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.BusyRetryDelay)
	assert.Equal(t, 5, cfg.ProgressStep)
	assert.Equal(t, "/tmp/zh", cfg.DownloadDir)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(New(), "")
		require.NoError(t, err)
		return cfg
	}

	tests := map[string]func(*Config){
		"empty download dir": func(c *Config) { c.DownloadDir = "" },
		"zero attempts":      func(c *Config) { c.MountAttempts = 0 },
		"negative delay":     func(c *Config) { c.SettleDelay = -time.Second },
		"zero chunk":         func(c *Config) { c.ChunkSize = 0 },
		"step too large":     func(c *Config) { c.ProgressStep = 101 },
		"empty mount root":   func(c *Config) { c.MountRoot = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
