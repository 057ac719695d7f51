package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"video-pipeline/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.PluginDir == "" {
		t.Fatal("expected non-empty plugin dir")
	}
	if cfg.ModelDir == "" {
		t.Fatal("expected non-empty model dir")
	}
	if cfg.Plugins == nil {
		t.Fatal("expected non-nil plugins map")
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.PluginDir == "" {
		t.Fatal("expected default plugin dir")
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := domain.Settings{
		PluginDir: "/plugins",
		ModelDir:  "/models",
		OutputDir: "/out",
		Plugins: map[string]domain.PluginConfig{
			"Silence Removal": {
				Enabled:  true,
				Settings: map[string]string{"silent_threshold": "0.05"},
			},
			"Blur PII": {Enabled: false},
		},
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}

// TestPluginStateDefaultsToEnabled covers unknown plugin names.
func TestPluginStateDefaultsToEnabled(t *testing.T) {
	cfg := DefaultSettings()
	state := cfg.PluginState("Never Configured")
	if !state.Enabled {
		t.Fatal("unknown plugins should default to enabled")
	}

	cfg.Plugins["Blur PII"] = domain.PluginConfig{Enabled: false}
	if cfg.PluginState("Blur PII").Enabled {
		t.Fatal("stored disabled state should win")
	}
}
