package domain

import "video-pipeline/internal/setting"

// JobStatus tracks the lifecycle of a single pipeline run.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// PluginConfig holds the persisted per-plugin user configuration. Setting
// values are stored as raw strings and coerced back through the plugin's
// schema at run time.
type PluginConfig struct {
	Enabled  bool              `json:"enabled"`
	Settings map[string]string `json:"settings,omitempty"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	PluginDir string                  `json:"pluginDir"`
	ModelDir  string                  `json:"modelDir"`
	OutputDir string                  `json:"outputDir,omitempty"`
	Plugins   map[string]PluginConfig `json:"plugins,omitempty"`
}

// PluginState returns the stored config for a plugin, enabled by default.
func (s Settings) PluginState(name string) PluginConfig {
	if cfg, ok := s.Plugins[name]; ok {
		return cfg
	}
	return PluginConfig{Enabled: true}
}

// Job stores the current run identity and lifecycle status.
type Job struct {
	ID         string    `json:"id"`
	Status     JobStatus `json:"status"`
	InputPath  string    `json:"inputPath,omitempty"`
	OutputPath string    `json:"outputPath,omitempty"`
}

// PluginDescriptor is the UI-facing snapshot of one discovered plugin.
type PluginDescriptor struct {
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	Icon              string            `json:"icon"`
	Schema            []setting.Schema  `json:"schema"`
	Enabled           bool              `json:"enabled"`
	Settings          map[string]string `json:"settings"`
	DependenciesOK    bool              `json:"dependenciesOk"`
	DependencyMessage string            `json:"dependencyMessage"`
}
