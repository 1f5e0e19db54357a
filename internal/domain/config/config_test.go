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
	t.Parallel()

	cfg := Default()
	assert.Equal(t, "mods", cfg.ModsRoot)
	assert.Equal(t, ".wasm", cfg.CodeExt)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.NotEmpty(t, cfg.Platform)
	require.NoError(t, cfg.Validate())
}

func TestParse_LayersOverDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
modsRoot: /srv/mods
platform: windows
hostVersion: 2.1.0
log:
  level: debug
  json: true
watch:
  debounce: 2s
`))
	require.NoError(t, err)

	assert.Equal(t, "/srv/mods", cfg.ModsRoot)
	assert.Equal(t, "windows", cfg.Platform)
	assert.Equal(t, "2.1.0", cfg.HostVersion)
	assert.Equal(t, ".wasm", cfg.CodeExt, "unset fields keep their defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("modsRoot: [not, a, string]"))
	assert.Error(t, err)

	_, err = Parse([]byte("log:\n  level: loud"))
	assert.Error(t, err)

	_, err = Parse([]byte(`modsRoot: ""`))
	assert.Error(t, err)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("modsRoot: custom"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.ModsRoot)
}
