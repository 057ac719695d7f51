package cli

import (
	"context"
	"testing"

	"video-pipeline/internal/domain"
	"video-pipeline/internal/plugin"
	"video-pipeline/internal/registry"
	"video-pipeline/internal/setting"
)

// fakePlugin is a schema-only registry entry for stage selection tests.
type fakePlugin struct {
	name   string
	schema []setting.Schema
}

func (p *fakePlugin) Name() string        { return p.name }
func (p *fakePlugin) Description() string { return "fake" }
func (p *fakePlugin) Icon() string        { return "🧪" }

func (p *fakePlugin) SettingsSchema() []setting.Schema { return p.schema }

func (p *fakePlugin) CheckDependencies(context.Context) plugin.Health {
	return plugin.Health{OK: true}
}

func (p *fakePlugin) Process(_ context.Context, req plugin.ProcessRequest) (string, error) {
	return req.OutputPath, nil
}

func newTestRegistry(t *testing.T, names ...string) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, name := range names {
		if err := reg.Register(&fakePlugin{name: name}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	return reg
}

// TestSelectStagesHonorsEnabledFlags skips disabled plugins.
func TestSelectStagesHonorsEnabledFlags(t *testing.T) {
	reg := newTestRegistry(t, "Silence Removal", "Blur PII")
	settings := domain.Settings{
		Plugins: map[string]domain.PluginConfig{
			"Blur PII": {Enabled: false},
		},
	}

	stages, err := selectStages(reg, settings, nil)
	if err != nil {
		t.Fatalf("select stages: %v", err)
	}
	if len(stages) != 1 {
		t.Fatalf("stages = %d, want 1", len(stages))
	}
	if stages[0].Plugin.Name() != "Silence Removal" {
		t.Fatalf("stage = %s, want Silence Removal", stages[0].Plugin.Name())
	}
}

// TestSelectStagesOnlyOverridesEnabledFlags runs named plugins even when disabled.
func TestSelectStagesOnlyOverridesEnabledFlags(t *testing.T) {
	reg := newTestRegistry(t, "Silence Removal", "Blur PII")
	settings := domain.Settings{
		Plugins: map[string]domain.PluginConfig{
			"Blur PII": {Enabled: false},
		},
	}

	stages, err := selectStages(reg, settings, []string{"Blur PII"})
	if err != nil {
		t.Fatalf("select stages: %v", err)
	}
	if len(stages) != 1 || stages[0].Plugin.Name() != "Blur PII" {
		t.Fatalf("stages = %v, want only Blur PII", stages)
	}
}

// TestSelectStagesRejectsUnknownOnlyName fails fast on typos.
func TestSelectStagesRejectsUnknownOnlyName(t *testing.T) {
	reg := newTestRegistry(t, "Silence Removal")
	if _, err := selectStages(reg, domain.Settings{}, []string{"Silense Removal"}); err == nil {
		t.Fatal("expected error for unknown plugin name")
	}
}

// TestSelectStagesRequiresAtLeastOnePlugin rejects an all-disabled set.
func TestSelectStagesRequiresAtLeastOnePlugin(t *testing.T) {
	reg := newTestRegistry(t, "Silence Removal")
	settings := domain.Settings{
		Plugins: map[string]domain.PluginConfig{
			"Silence Removal": {Enabled: false},
		},
	}
	if _, err := selectStages(reg, settings, nil); err == nil {
		t.Fatal("expected error when nothing is enabled")
	}
}

// TestSelectStagesValidatesStoredSettings surfaces coercion failures by plugin.
func TestSelectStagesValidatesStoredSettings(t *testing.T) {
	reg := registry.New()
	schema := []setting.Schema{
		{Key: "pad_seconds", Kind: setting.KindFloat, Default: setting.FloatValue(0.25)},
	}
	if err := reg.Register(&fakePlugin{name: "Profanity Removal", schema: schema}); err != nil {
		t.Fatalf("register: %v", err)
	}

	settings := domain.Settings{
		Plugins: map[string]domain.PluginConfig{
			"Profanity Removal": {Enabled: true, Settings: map[string]string{"pad_seconds": "lots"}},
		},
	}
	if _, err := selectStages(reg, settings, nil); err == nil {
		t.Fatal("expected error for invalid stored setting")
	}
}
