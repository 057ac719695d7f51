package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"video-pipeline/internal/domain"
)

// TestGetWhisperModelByID verifies known model lookup.
func TestGetWhisperModelByID(t *testing.T) {
	model, found := getWhisperModelByID("base.en")
	if !found {
		t.Fatal("expected base.en model to exist")
	}
	if model.FileName != "ggml-base.en.bin" {
		t.Fatalf("filename = %s, want ggml-base.en.bin", model.FileName)
	}

	if _, found := getWhisperModelByID("colossal"); found {
		t.Fatal("expected unknown model id to be rejected")
	}
}

// TestResolveKnownModelDirsIncludesConfiguredDir verifies the settings dir is scanned.
func TestResolveKnownModelDirsIncludesConfiguredDir(t *testing.T) {
	root := t.TempDir()
	settings := domain.Settings{ModelDir: root}

	dirs := resolveKnownModelDirs(settings, true)
	found := false
	for _, dir := range dirs {
		if dir == filepath.Clean(root) {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("dirs = %v, expected to include %s", dirs, root)
	}
}

// TestResolveKnownModelDirsSkipsEmptySetting verifies blank model dirs are ignored.
func TestResolveKnownModelDirsSkipsEmptySetting(t *testing.T) {
	dirs := resolveKnownModelDirs(domain.Settings{}, true)
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			t.Fatalf("dirs = %v, contains empty entry", dirs)
		}
	}
}

// TestMarkDownloadedModels marks catalog models when the file exists in a known dir.
func TestMarkDownloadedModels(t *testing.T) {
	root := t.TempDir()
	modelPath := filepath.Join(root, "ggml-base.en.bin")
	if err := os.WriteFile(modelPath, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}

	models := []domain.WhisperModelOption{
		{ID: "base.en", FileName: "ggml-base.en.bin"},
		{ID: "small", FileName: "ggml-small.bin"},
	}
	markDownloadedModels(models, []string{root})

	if !models[0].Downloaded {
		t.Fatal("expected base.en to be marked downloaded")
	}
	if models[0].LocalPath != modelPath {
		t.Fatalf("localPath = %s, want %s", models[0].LocalPath, modelPath)
	}
	if models[1].Downloaded {
		t.Fatal("expected small to remain not downloaded")
	}
}
