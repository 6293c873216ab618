package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"modwatch/internal/registry"
)

type blocklistFile struct {
	Mods []registry.BlockedMod `yaml:"mods"`
}

// LoadBlocklist reads the ordered blocked-mod list the installer
// produced. Every entry needs a name and an expected hash; order is
// preserved because it is the match tie-break.
func LoadBlocklist(path string) ([]registry.BlockedMod, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blocklist %s: %w", path, err)
	}
	return ParseBlocklist(payload)
}

// ParseBlocklist decodes and validates blocklist YAML.
func ParseBlocklist(payload []byte) ([]registry.BlockedMod, error) {
	var file blocklistFile
	if err := yaml.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("parse blocklist: %w", err)
	}
	for i, mod := range file.Mods {
		if mod.Name == "" {
			return nil, fmt.Errorf("blocklist entry %d: name is required", i)
		}
		if mod.ExpectedHash == "" {
			return nil, fmt.Errorf("blocklist entry %d (%s): hash is required", i, mod.Name)
		}
	}
	return file.Mods, nil
}
