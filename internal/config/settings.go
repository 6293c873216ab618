// Package config loads runtime settings and the blocked-mod list.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings are the tunables of a modwatch session. All fields have
// working defaults; a missing settings file is not an error.
type Settings struct {
	ListenAddr      string `yaml:"listen_addr"`
	AuthToken       string `yaml:"auth_token"`
	DownloadsDir    string `yaml:"downloads_dir"`
	ModsDir         string `yaml:"mods_dir"`
	HashConcurrency int    `yaml:"hash_concurrency"`
	HashAlgorithm   string `yaml:"hash_algorithm"`
	Provider        string `yaml:"provider"`
	LogLevel        string `yaml:"log_level"`
}

func DefaultSettings() Settings {
	return Settings{
		ListenAddr:      ":8713",
		DownloadsDir:    defaultDownloadsDir(),
		HashConcurrency: 10,
		HashAlgorithm:   "sha1",
		Provider:        "flame",
		LogLevel:        "info",
	}
}

// LoadSettings reads a YAML settings file over the defaults. An empty
// path or a missing file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(payload, &settings); err != nil {
		return settings, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return normalizeSettings(settings), nil
}

func normalizeSettings(settings Settings) Settings {
	defaults := DefaultSettings()
	if settings.ListenAddr == "" {
		settings.ListenAddr = defaults.ListenAddr
	}
	if settings.DownloadsDir == "" {
		settings.DownloadsDir = defaults.DownloadsDir
	}
	if settings.HashConcurrency <= 0 {
		settings.HashConcurrency = defaults.HashConcurrency
	}
	if settings.HashAlgorithm == "" {
		settings.HashAlgorithm = defaults.HashAlgorithm
	}
	if settings.Provider == "" {
		settings.Provider = defaults.Provider
	}
	if settings.LogLevel == "" {
		settings.LogLevel = defaults.LogLevel
	}
	return settings
}

func defaultDownloadsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Downloads")
}
