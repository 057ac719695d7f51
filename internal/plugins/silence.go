package plugins

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"video-pipeline/internal/plugin"
	"video-pipeline/internal/setting"
)

// Silence removes silent pauses using the auto-editor CLI.
type Silence struct {
	autoEditorPath string
	runner         plugin.Runner
	lookPath       func(string) (string, error)
	stat           func(string) (os.FileInfo, error)
	mkdirAll       func(string, os.FileMode) error
}

// NewSilence constructs the silence removal plugin with OS dependencies.
func NewSilence() *Silence {
	return &Silence{
		autoEditorPath: "auto-editor",
		runner:         &plugin.ExecRunner{},
		lookPath:       exec.LookPath,
		stat:           os.Stat,
		mkdirAll:       os.MkdirAll,
	}
}

// Name returns the plugin display name.
func (p *Silence) Name() string { return "Silence Removal" }

// Description returns the plugin card description.
func (p *Silence) Description() string {
	return "Removes silent pauses automatically using auto-editor"
}

// Icon returns the plugin card icon.
func (p *Silence) Icon() string { return "🔇" }

// SettingsSchema declares the configurable auto-editor parameters.
func (p *Silence) SettingsSchema() []setting.Schema {
	zero := 0.0
	one := 1.0
	return []setting.Schema{
		{
			Key:     "silent_threshold",
			Label:   "Silent Threshold",
			Kind:    setting.KindFloat,
			Default: setting.FloatValue(0.04),
			Help:    "Audio level below which a frame is considered silent (0.0-1.0)",
			Min:     &zero,
			Max:     &one,
		},
		{
			Key:     "margin",
			Label:   "Margin Around Speech (seconds)",
			Kind:    setting.KindFloat,
			Default: setting.FloatValue(0.2),
			Help:    "Seconds of padding kept around non-silent segments",
			Min:     &zero,
		},
		{
			Key:     "min_clip_length",
			Label:   "Minimum Clip Length (seconds)",
			Kind:    setting.KindFloat,
			Default: setting.FloatValue(0.5),
			Help:    "Clips shorter than this are discarded",
			Min:     &zero,
		},
		{
			Key:     "video_speed",
			Label:   "Loud Speed",
			Kind:    setting.KindFloat,
			Default: setting.FloatValue(1.0),
			Help:    "Playback speed for non-silent sections (1.0 = normal)",
		},
		{
			Key:     "silent_speed",
			Label:   "Silent Speed",
			Kind:    setting.KindFloat,
			Default: setting.FloatValue(99999),
			Help:    "Speed for silent sections (99999 effectively removes them)",
		},
	}
}

// CheckDependencies reports whether auto-editor is on PATH.
func (p *Silence) CheckDependencies(ctx context.Context) plugin.Health {
	if _, err := p.lookPath(p.autoEditorPath); err != nil {
		return plugin.Health{
			OK:      false,
			Message: "auto-editor not found in PATH. Install it with: pip install auto-editor",
		}
	}
	return plugin.Health{OK: true, Message: "OK"}
}

// Process runs auto-editor to cut silent sections from the input.
func (p *Silence) Process(ctx context.Context, req plugin.ProcessRequest) (string, error) {
	plugin.Log(p.Name(), "Starting silence removal...", req.Logf)

	if err := ensureParentDir(req.OutputPath, p.mkdirAll); err != nil {
		return "", &plugin.ProcessError{
			Plugin:  p.Name(),
			Message: fmt.Sprintf("cannot create output directory for %s", req.OutputPath),
			Err:     err,
		}
	}

	args, err := buildAutoEditorArgs(req.InputPath, req.OutputPath, req.Settings)
	if err != nil {
		return "", &plugin.ProcessError{Plugin: p.Name(), Message: err.Error(), Err: err}
	}

	result, runErr := p.runner.Run(ctx, p.autoEditorPath, args...)
	log := plugin.LogFor(p.autoEditorPath, args, result)
	if runErr != nil {
		return "", &plugin.ProcessError{
			Plugin:     p.Name(),
			Message:    "auto-editor failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	if _, err := p.stat(req.OutputPath); err != nil {
		return "", &plugin.ProcessError{
			Plugin:     p.Name(),
			Message:    "auto-editor completed but output file is missing",
			CommandLog: log,
			Err:        err,
		}
	}

	plugin.Log(p.Name(), "Silence removal complete.", req.Logf)
	return req.OutputPath, nil
}

// buildAutoEditorArgs builds the auto-editor CLI argument list.
func buildAutoEditorArgs(inputPath, outputPath string, settings setting.Values) ([]string, error) {
	threshold, err := settings.Float("silent_threshold")
	if err != nil {
		return nil, err
	}
	margin, err := settings.Float("margin")
	if err != nil {
		return nil, err
	}
	minClip, err := settings.Float("min_clip_length")
	if err != nil {
		return nil, err
	}
	videoSpeed, err := settings.Float("video_speed")
	if err != nil {
		return nil, err
	}
	silentSpeed, err := settings.Float("silent_speed")
	if err != nil {
		return nil, err
	}

	return []string{
		inputPath,
		"--output", outputPath,
		"--edit", fmt.Sprintf("audio:threshold=%s", formatFloat(threshold)),
		"--margin", formatFloat(margin) + "sec",
		"--min-clip-length", formatFloat(minClip) + "sec",
		"--video-speed", formatFloat(videoSpeed),
		"--silent-speed", formatFloat(silentSpeed),
		"--no-open",
	}, nil
}

// NewSilenceForTests constructs the plugin with injectable dependencies.
func NewSilenceForTests(
	autoEditorPath string,
	runner plugin.Runner,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
) *Silence {
	return &Silence{
		autoEditorPath: autoEditorPath,
		runner:         runner,
		lookPath:       lookPath,
		stat:           stat,
		mkdirAll:       os.MkdirAll,
	}
}
