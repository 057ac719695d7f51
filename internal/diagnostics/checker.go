package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"video-pipeline/internal/domain"
	"video-pipeline/internal/plugin"
)

// Checker validates external tools, plugin health, and required paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report. Plugin
// health is gathered from each plugin's own dependency check.
func (c *Checker) Run(ctx context.Context, settings domain.Settings, plugins []plugin.Plugin) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg"),
		c.checkTool("ffprobe"),
	}
	for _, p := range plugins {
		items = append(items, c.checkPlugin(ctx, p))
	}
	items = append(items,
		c.checkModelDir(settings.ModelDir),
		c.checkPluginDir(settings.PluginDir),
		c.checkOutputDir(settings.OutputDir),
	)

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a required CLI executable is on PATH.
func (c *Checker) checkTool(name string) domain.DiagnosticItem {
	path, err := c.lookPath(name)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      "tool_" + name,
			Name:    name,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", name),
			Hint:    "Install it and ensure the binary is available on PATH before starting a run.",
		}
	}

	return domain.DiagnosticItem{
		ID:      "tool_" + name,
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkPlugin surfaces one plugin's dependency self-report.
func (c *Checker) checkPlugin(ctx context.Context, p plugin.Plugin) domain.DiagnosticItem {
	health := p.CheckDependencies(ctx)
	item := domain.DiagnosticItem{
		ID:      "plugin_" + slugID(p.Name()),
		Name:    p.Name(),
		Message: health.Message,
	}
	if health.OK {
		item.Status = domain.DiagnosticStatusPass
		return item
	}
	item.Status = domain.DiagnosticStatusFail
	item.Hint = "Install the missing tools or disable this plugin."
	return item
}

// checkModelDir validates the whisper model directory.
func (c *Checker) checkModelDir(modelDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model_dir",
		Name: "Model directory",
	}

	if strings.TrimSpace(modelDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model directory is empty."
		item.Hint = "Set a directory for downloaded whisper models."
		return item
	}

	info, err := c.stat(modelDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Model directory does not exist: %s", modelDir)
		} else {
			item.Message = fmt.Sprintf("Cannot access model directory: %s", modelDir)
		}
		item.Hint = "Download a whisper model from the diagnostics panel to create it."
		return item
	}
	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Model path is not a directory: %s", modelDir)
		item.Hint = "Point the model directory setting at a folder."
		return item
	}

	entries, err := c.readDir(modelDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read model directory: %s", modelDir)
		item.Hint = "Check permissions for the model directory."
		return item
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Model directory is valid: %s", modelDir)
			return item
		}
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("No model files found in directory: %s", modelDir)
	item.Hint = "Download a whisper model; the profanity plugin needs one."
	return item
}

// checkPluginDir verifies the plugin directory exists or can be created.
func (c *Checker) checkPluginDir(pluginDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "plugin_dir",
		Name: "Plugin directory",
	}

	if strings.TrimSpace(pluginDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Plugin directory is empty."
		item.Hint = "Set a directory for installed plugins."
		return item
	}

	if err := c.mkdirAll(pluginDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create plugin directory: %s", pluginDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Plugin directory is ready: %s", pluginDir)
	return item
}

// checkOutputDir validates write access to the optional output override.
// When unset, outputs land beside the input file and there is nothing to
// verify up front.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Outputs are written beside each input file."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for processed videos."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// slugID converts a plugin display name into a stable item ID token.
func slugID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteByte('_')
		}
	}
	return b.String()
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
