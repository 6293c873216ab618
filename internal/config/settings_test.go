package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	settings, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	defaults := DefaultSettings()
	assert.Equal(t, defaults.ListenAddr, settings.ListenAddr)
	assert.Equal(t, defaults.HashConcurrency, settings.HashConcurrency)
	assert.Equal(t, "sha1", settings.HashAlgorithm)
}

func TestLoadSettingsOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	payload := []byte("listen_addr: \":9000\"\nmods_dir: /srv/mods\nhash_concurrency: 4\nlog_level: debug\n")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", settings.ListenAddr)
	assert.Equal(t, "/srv/mods", settings.ModsDir)
	assert.Equal(t, 4, settings.HashConcurrency)
	assert.Equal(t, "debug", settings.LogLevel)
	// Untouched fields keep their defaults.
	assert.Equal(t, "flame", settings.Provider)
}

func TestLoadSettingsNormalizesBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hash_concurrency: -2\n"), 0o644))

	settings, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().HashConcurrency, settings.HashConcurrency)
}

func TestLoadSettingsRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [\n"), 0o644))

	_, err := LoadSettings(path)
	assert.Error(t, err)
}
