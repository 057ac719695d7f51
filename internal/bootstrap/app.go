package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"video-pipeline/internal/config"
	"video-pipeline/internal/diagnostics"
	"video-pipeline/internal/domain"
	"video-pipeline/internal/jobs"
	"video-pipeline/internal/pipeline"
	"video-pipeline/internal/plugin"
	"video-pipeline/internal/registry"
	"video-pipeline/internal/setting"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var videoDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Video files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.webm;*.m4v",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, plugins, jobs, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Jobs        *jobs.Manager
	Runner      pipelineRunner
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	installer   pluginInstaller

	mu          sync.Mutex
	registry    *registry.Registry
	watcher     *registry.Watcher
	activeJobID string
	cancel      context.CancelFunc
	events      *jobs.EventBus
	runtimeCtx  context.Context
}

// pipelineRunner isolates the stage runner behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// pluginInstaller isolates plugin installation behind an interface.
type pluginInstaller interface {
	Install(ctx context.Context, source string) (string, error)
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewJSONStore(config.DefaultSettingsPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	app := &App{
		Settings: settings,
		Store:    store,
		Jobs:     jobs.NewManager(),
		Runner:   pipeline.NewRunner(),
		assets:   assets,
		checker:  diagnostics.NewChecker(),
		events:   jobs.NewEventBus(1000),
	}
	app.installer = registry.NewInstaller(settings.PluginDir)
	app.registry = app.buildRegistry(settings.PluginDir)
	app.Diagnostics = app.checker.Run(context.Background(), settings, app.registry.Plugins())

	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Video Pipeline",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
			if a.watcher != nil {
				_ = a.watcher.Close()
				a.watcher = nil
			}
		},
		Bind: []interface{}{a},
	})
}

// Startup stores the Wails runtime context and begins watching the
// plugin directory for changes.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	pluginDir := a.Settings.PluginDir
	a.mu.Unlock()

	a.startPluginWatcher(pluginDir)
}

// startPluginWatcher triggers rediscovery when the plugin dir changes.
func (a *App) startPluginWatcher(pluginDir string) {
	if strings.TrimSpace(pluginDir) == "" {
		return
	}
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		return
	}

	watcher, err := registry.WatchDir(pluginDir, 500*time.Millisecond)
	if err != nil {
		return
	}

	a.mu.Lock()
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	a.watcher = watcher
	a.mu.Unlock()

	go func() {
		for range watcher.Changes() {
			if _, err := a.RediscoverPlugins(); err != nil {
				continue
			}
			a.mu.Lock()
			ctx := a.runtimeCtx
			a.mu.Unlock()
			if ctx != nil {
				wailsruntime.EventsEmit(ctx, "plugins:changed")
			}
		}
	}()
}

// buildRegistry assembles built-in plugins plus manifest discoveries. The
// model dir is resolved through a closure so registry rebuilds are not
// needed when only the setting changes.
func (a *App) buildRegistry(pluginDir string) *registry.Registry {
	reg := registry.Builtin(registry.Options{
		ModelDir: func() string {
			a.mu.Lock()
			defer a.mu.Unlock()
			return a.Settings.ModelDir
		},
	})
	if strings.TrimSpace(pluginDir) != "" {
		_ = reg.Discover(pluginDir)
	}
	return reg
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	plugins := a.registry.Plugins()
	a.mu.Unlock()

	report := a.checker.Run(context.Background(), settings, plugins)
	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()
	return report, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then rebuilds the plugin
// registry and diagnostics against the new paths.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	pluginDirChanged := a.Settings.PluginDir != normalized.PluginDir
	a.Settings = normalized
	a.mu.Unlock()

	reg := a.buildRegistry(normalized.PluginDir)
	report := a.checker.Run(context.Background(), normalized, reg.Plugins())

	a.mu.Lock()
	a.registry = reg
	a.installer = registry.NewInstaller(normalized.PluginDir)
	a.Diagnostics = report
	a.mu.Unlock()

	if pluginDirChanged {
		a.startPluginWatcher(normalized.PluginDir)
	}

	return normalized, nil
}

// GetPlugins returns UI descriptors for every registered plugin, merging
// schema defaults with the user's stored values.
func (a *App) GetPlugins() []domain.PluginDescriptor {
	a.mu.Lock()
	reg := a.registry
	settings := a.Settings
	a.mu.Unlock()

	plugins := reg.Plugins()
	descriptors := make([]domain.PluginDescriptor, 0, len(plugins))
	for _, p := range plugins {
		state := settings.PluginState(p.Name())
		schema := p.SettingsSchema()

		raw := setting.Raw(schema, plugin.DefaultSettings(p))
		for key, value := range state.Settings {
			raw[key] = value
		}

		health := p.CheckDependencies(context.Background())
		descriptors = append(descriptors, domain.PluginDescriptor{
			Name:              p.Name(),
			Description:       p.Description(),
			Icon:              p.Icon(),
			Schema:            schema,
			Enabled:           state.Enabled,
			Settings:          raw,
			DependenciesOK:    health.OK,
			DependencyMessage: health.Message,
		})
	}
	return descriptors
}

// SetPluginEnabled toggles one plugin and persists the change.
func (a *App) SetPluginEnabled(name string, enabled bool) error {
	a.mu.Lock()
	_, known := a.registry.Lookup(name)
	a.mu.Unlock()
	if !known {
		return fmt.Errorf("unknown plugin: %s", name)
	}

	return a.mutatePluginConfig(name, func(cfg *domain.PluginConfig) {
		cfg.Enabled = enabled
	})
}

// UpdatePluginSettings validates raw values against the plugin schema and
// persists the normalized result.
func (a *App) UpdatePluginSettings(name string, raw map[string]string) error {
	a.mu.Lock()
	p, known := a.registry.Lookup(name)
	a.mu.Unlock()
	if !known {
		return fmt.Errorf("unknown plugin: %s", name)
	}

	schema := p.SettingsSchema()
	values, err := setting.Coerce(schema, raw)
	if err != nil {
		return fmt.Errorf("invalid settings for %s: %w", name, err)
	}
	normalized := setting.Raw(schema, values)

	return a.mutatePluginConfig(name, func(cfg *domain.PluginConfig) {
		cfg.Settings = normalized
	})
}

// mutatePluginConfig applies one change to a plugin's stored config and
// saves the settings file.
func (a *App) mutatePluginConfig(name string, mutate func(*domain.PluginConfig)) error {
	settings, err := a.Store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if settings.Plugins == nil {
		settings.Plugins = map[string]domain.PluginConfig{}
	}

	cfg := settings.PluginState(name)
	mutate(&cfg)
	settings.Plugins[name] = cfg

	if err := a.Store.Save(settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()
	return nil
}

// RediscoverPlugins rebuilds the registry from the plugin directory and
// returns the refreshed descriptors.
func (a *App) RediscoverPlugins() ([]domain.PluginDescriptor, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	reg := a.buildRegistry(settings.PluginDir)
	a.mu.Lock()
	a.Settings = settings
	a.registry = reg
	a.mu.Unlock()

	return a.GetPlugins(), nil
}

// PluginDiscoveryErrors reports manifests skipped by the last discovery.
func (a *App) PluginDiscoveryErrors() []registry.DiscoveryError {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.DiscoveryErrors()
}

// InstallPlugin fetches a plugin from a repository URL or package name,
// then rediscovers the plugin directory.
func (a *App) InstallPlugin(source string) ([]domain.PluginDescriptor, error) {
	a.mu.Lock()
	installer := a.installer
	a.mu.Unlock()

	ctx, cancelInstall := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelInstall()

	if _, err := installer.Install(ctx, source); err != nil {
		return nil, err
	}
	return a.RediscoverPlugins()
}

// StartPipeline creates a run over the enabled plugins and executes it
// asynchronously.
func (a *App) StartPipeline(inputPath string) (domain.Job, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Job{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	reg := a.registry
	a.mu.Unlock()

	stages, err := buildStages(reg, settings)
	if err != nil {
		return domain.Job{}, err
	}

	jobID := uuid.NewString()
	if err := a.Jobs.Start(jobID, inputPath); err != nil {
		return domain.Job{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.activeJobID = jobID
	a.cancel = cancel
	a.mu.Unlock()

	a.publishStatus(jobID, domain.JobStatusRunning, "Pipeline started")

	go a.runPipelineJob(ctx, jobID, inputPath, stages)
	return a.Jobs.Current(), nil
}

// CancelPipeline cancels the currently running pipeline, if any.
func (a *App) CancelPipeline() error {
	a.mu.Lock()
	cancel := a.cancel
	activeJobID := a.activeJobID
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoActiveRun
	}

	cancel()
	if err := a.Jobs.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoActiveRun) {
		return err
	}

	if activeJobID != "" {
		a.publishStatus(activeJobID, domain.JobStatusCancelled, "Cancellation requested")
	}
	return nil
}

// CurrentJob returns current run metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// buildStages collects enabled plugins in registry order with their
// coerced settings.
func buildStages(reg *registry.Registry, settings domain.Settings) ([]pipeline.Stage, error) {
	var stages []pipeline.Stage
	for _, p := range reg.Plugins() {
		state := settings.PluginState(p.Name())
		if !state.Enabled {
			continue
		}
		values, err := setting.Coerce(p.SettingsSchema(), state.Settings)
		if err != nil {
			return nil, fmt.Errorf("settings for %s: %w", p.Name(), err)
		}
		stages = append(stages, pipeline.Stage{Plugin: p, Settings: values})
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("no plugins are enabled")
	}
	return stages, nil
}

// runPipelineJob executes the run and maps outcomes to job events.
func (a *App) runPipelineJob(ctx context.Context, jobID, inputPath string, stages []pipeline.Stage) {
	req := pipeline.Request{
		InputPath: inputPath,
		Stages:    stages,
		OnStage: func(index int, name string) {
			a.publishEvent(jobs.Event{
				JobID:      jobID,
				Type:       jobs.EventTypeStage,
				Status:     domain.JobStatusRunning,
				Message:    "Running " + name,
				StageIndex: index,
				PluginName: name,
			})
		},
		OnLog: func(message string) {
			a.publishEvent(jobs.Event{
				JobID:   jobID,
				Type:    jobs.EventTypeLog,
				Message: message,
			})
		},
	}

	result, err := a.Runner.Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_ = a.Jobs.Transition(domain.JobStatusCancelled)
			a.publishStatus(jobID, domain.JobStatusCancelled, "Run cancelled")
			a.clearActiveJob(jobID)
			return
		}

		_ = a.Jobs.Transition(domain.JobStatusFailed)
		a.publishStatus(jobID, domain.JobStatusFailed, "Run failed")

		event := jobs.Event{
			JobID:   jobID,
			Type:    jobs.EventTypeError,
			Status:  domain.JobStatusFailed,
			Message: err.Error(),
		}
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			event.StageIndex = stageErr.Index
			event.PluginName = stageErr.Stage
		}
		a.publishEvent(event)
		a.clearActiveJob(jobID)
		return
	}

	a.Jobs.SetOutputPath(result.OutputPath)
	if err := a.Jobs.Transition(domain.JobStatusSucceeded); err == nil {
		a.publishStatus(jobID, domain.JobStatusSucceeded, "Run completed")
	}
	a.publishEvent(jobs.Event{
		JobID:      jobID,
		Type:       jobs.EventTypeResult,
		Status:     domain.JobStatusSucceeded,
		Message:    "Processed video written",
		OutputPath: result.OutputPath,
	})
	a.clearActiveJob(jobID)
}

// PickInputFile opens a native file dialog for video selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select video file",
		Filters: videoDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickPluginDirectory opens a native directory picker for the plugin dir.
func (a *App) PickPluginDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select plugin directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickModelDirectory opens a native directory picker for model folders.
func (a *App) PickModelDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select model directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for the optional
// output dir override.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or the last run's output) in the
// platform file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		target = a.Jobs.Current().OutputPath
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, status domain.JobStatus, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// clearActiveJob clears cancellation handles for completed run IDs.
func (a *App) clearActiveJob(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeJobID == jobID {
		a.activeJobID = ""
		a.cancel = nil
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and restores required defaults.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.PluginDir = strings.TrimSpace(settings.PluginDir)
	settings.ModelDir = strings.TrimSpace(settings.ModelDir)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)

	defaults := config.DefaultSettings()
	if settings.PluginDir == "" {
		settings.PluginDir = defaults.PluginDir
	}
	if settings.ModelDir == "" {
		settings.ModelDir = defaults.ModelDir
	}
	if settings.Plugins == nil {
		settings.Plugins = map[string]domain.PluginConfig{}
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
