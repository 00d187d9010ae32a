package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	defaults := Default()
	assert.Equal(t, defaults.APIDir, config.APIDir)
	assert.Equal(t, defaults.ListenAddr, config.ListenAddr)
	assert.Equal(t, 200*time.Millisecond, config.Debounce())
	assert.Equal(t, 10*time.Second, config.ReloadTimeout())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reflex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
root: /srv/app
api_dir: src/pages/api
debounce_ms: 50
max_retries: 5
config_files:
  - custom.config.js
`), 0o644))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/app", config.Root)
	assert.Equal(t, "src/pages/api", config.APIDir)
	assert.Equal(t, 50*time.Millisecond, config.Debounce())
	assert.Equal(t, 5, config.MaxRetries)
	assert.Equal(t, []string{"custom.config.js"}, config.ConfigFiles)
	// Unset keys keep their defaults.
	assert.Equal(t, "/api", config.APIPrefix)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reflex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root: [unterminated"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REFLEX_ROOT", "/env/app")
	t.Setenv("REFLEX_DEBOUNCE_MS", "75")
	t.Setenv("REFLEX_ALLOWED_ORIGINS", "app.example, dashboard.example")
	t.Setenv("REFLEX_MAX_RETRIES", "not-a-number")

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/app", config.Root)
	assert.Equal(t, 75, config.DebounceMS)
	assert.Equal(t, []string{"app.example", "dashboard.example"}, config.AllowedOrigins)
	// Unparsable overrides are ignored, not fatal.
	assert.Equal(t, Default().MaxRetries, config.MaxRetries)
}

func TestNormalizePrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reflex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_prefix: api/v2/\napi_dir: /pages/api/\n"), 0o644))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/api/v2", config.APIPrefix)
	assert.Equal(t, "pages/api", config.APIDir)
}

func TestValidate(t *testing.T) {
	config := Default()
	require.NoError(t, config.Validate())

	bad := Default()
	bad.ReloadTimeoutMS = 0
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.DebounceMS = -1
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.APIPrefix = "api"
	assert.Error(t, bad.Validate())
}
