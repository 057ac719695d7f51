package config

import (
	"os"
	"path/filepath"

	"video-pipeline/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		PluginDir: filepath.Join(homeDir, ".video-pipeline", "plugins"),
		ModelDir:  filepath.Join(homeDir, ".video-pipeline", "models"),
		Plugins:   map[string]domain.PluginConfig{},
	}
}

// DefaultSettingsPath returns the standard settings file location.
func DefaultSettingsPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".video-pipeline", "settings.json")
}
