package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GenivalfSilva/Sistema-Compras/internal/storage"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "default", cfg.CurrentProfile)
	assert.NotNil(t, cfg.Profiles)
	assert.Empty(t, cfg.Profiles)
	assert.Equal(t, DefaultAPIURL, cfg.Defaults.APIURL)
	assert.Equal(t, storage.BackendFile, cfg.Storage.Backend)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.CurrentProfile)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL(""))
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_WithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `current_profile: producao
profiles:
  producao:
    api_url: https://compras.example.com/api/
storage:
  backend: redis
  redis_url: redis://localhost:6379/2
events:
  nats_url: nats://localhost:4222
logging:
  level: debug
  format: json
http:
  timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "producao", cfg.CurrentProfile)
	assert.Equal(t, "https://compras.example.com/api", cfg.APIURL(""))
	assert.Equal(t, DefaultAPIURL, cfg.APIURL("outro"))
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "nats://localhost:4222", cfg.Events.NATSURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)

	opts := cfg.StorageOptions("")
	assert.Equal(t, "redis", opts.Backend)
	assert.Equal(t, "redis://localhost:6379/2", opts.RedisURL)
	assert.Equal(t, "producao", opts.Prefix)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [unclosed"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COMPRAS_API_URL", "http://10.0.0.5:8000/api")
	t.Setenv("COMPRAS_STORAGE_BACKEND", "memory")
	t.Setenv("COMPRAS_NATS_URL", "nats://bus:4222")
	t.Setenv("COMPRAS_LOG_LEVEL", "error")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8000/api", cfg.APIURL(""))
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "nats://bus:4222", cfg.Events.NATSURL)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoad_ConfigDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COMPRAS_CONFIG_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("current_profile: local\n"), 0600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.CurrentProfile)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.Path())
	assert.Equal(t, filepath.Join(dir, "sessions", "local.yaml"), cfg.StorageOptions("").Path)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, cfg.SetProfile("homolog", "http://homolog:8000/api"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "homolog", reloaded.CurrentProfile)
	assert.Equal(t, "http://homolog:8000/api", reloaded.APIURL(""))
	assert.Equal(t, 30*time.Second, reloaded.HTTP.Timeout)

	require.NoError(t, reloaded.RemoveProfile("homolog"))
	assert.Empty(t, reloaded.CurrentProfile)
	assert.Equal(t, "default", reloaded.ProfileName(""))
	assert.Error(t, reloaded.RemoveProfile("homolog"))
}

func TestGetProfile(t *testing.T) {
	cfg := Default()
	cfg.Profiles["a"] = &Profile{APIURL: "http://a"}
	cfg.CurrentProfile = "a"

	p, err := cfg.GetProfile("")
	require.NoError(t, err)
	assert.Equal(t, "http://a", p.APIURL)

	_, err = cfg.GetProfile("b")
	assert.Error(t, err)
}
