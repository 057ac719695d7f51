package cli

import (
	"video-pipeline/internal/config"
	"video-pipeline/internal/domain"
	"video-pipeline/internal/registry"
)

// environment bundles settings with a built registry for one command run.
type environment struct {
	store    config.Store
	settings domain.Settings
	registry *registry.Registry
}

func newEnvironment(store config.Store, settings domain.Settings) *environment {
	reg := registry.Builtin(registry.Options{
		ModelDir: func() string { return settings.ModelDir },
	})
	if settings.PluginDir != "" {
		_ = reg.Discover(settings.PluginDir)
	}
	return &environment{store: store, settings: settings, registry: reg}
}
