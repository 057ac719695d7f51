package plugins

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"video-pipeline/internal/plugin"
	"video-pipeline/internal/setting"
)

// Profanity transcribes audio with whisper.cpp and mutes profanity
// segments with cleanvid.
type Profanity struct {
	ffmpegPath   string
	whisperPath  string
	cleanvidPath string
	modelDir     func() string
	runner       plugin.Runner
	lookPath     func(string) (string, error)
	stat         func(string) (os.FileInfo, error)
	readDir      func(string) ([]os.DirEntry, error)
	mkdirAll     func(string, os.FileMode) error
	mkdirTemp    func(dir, pattern string) (string, error)
	removeAll    func(string) error
}

// NewProfanity constructs the profanity removal plugin. modelDir supplies
// the directory holding whisper.cpp models at run time.
func NewProfanity(modelDir func() string) *Profanity {
	return &Profanity{
		ffmpegPath:   "ffmpeg",
		whisperPath:  "whisper.cpp",
		cleanvidPath: "cleanvid",
		modelDir:     modelDir,
		runner:       &plugin.ExecRunner{},
		lookPath:     exec.LookPath,
		stat:         os.Stat,
		readDir:      os.ReadDir,
		mkdirAll:     os.MkdirAll,
		mkdirTemp:    os.MkdirTemp,
		removeAll:    os.RemoveAll,
	}
}

// Name returns the plugin display name.
func (p *Profanity) Name() string { return "Profanity Removal" }

// Description returns the plugin card description.
func (p *Profanity) Description() string {
	return "Transcribes audio with whisper.cpp and mutes profanity using cleanvid"
}

// Icon returns the plugin card icon.
func (p *Profanity) Icon() string { return "🤬" }

// SettingsSchema declares transcription and muting parameters.
func (p *Profanity) SettingsSchema() []setting.Schema {
	zero := 0.0
	return []setting.Schema{
		{
			Key:     "whisper_model",
			Label:   "Whisper Model",
			Kind:    setting.KindChoice,
			Default: setting.ChoiceValue("base"),
			Help:    "Larger models are more accurate but slower",
			Choices: []string{"tiny", "base", "small", "medium", "large"},
		},
		{
			Key:     "pad_seconds",
			Label:   "Mute Padding (seconds)",
			Kind:    setting.KindFloat,
			Default: setting.FloatValue(0.25),
			Help:    "Extra seconds of silence before/after each profanity hit",
			Min:     &zero,
		},
		{
			Key:     "embed_subs",
			Label:   "Embed Subtitles in Output",
			Kind:    setting.KindBool,
			Default: setting.BoolValue(false),
			Help:    "Embed the cleaned subtitle track into the output video",
		},
		{
			Key:     "swears_file",
			Label:   "Custom Swears List (optional)",
			Kind:    setting.KindFile,
			Default: setting.FileValue(""),
			Help:    "Path to a custom profanity word list .txt file",
		},
		{
			Key:     "language",
			Label:   "Language",
			Kind:    setting.KindString,
			Default: setting.StringValue("en"),
			Help:    "Language code for transcription (e.g. en, es, fr)",
		},
	}
}

// CheckDependencies reports which of whisper.cpp, cleanvid, ffmpeg are missing.
func (p *Profanity) CheckDependencies(ctx context.Context) plugin.Health {
	var missing []string
	for _, tool := range []string{p.whisperPath, p.cleanvidPath, p.ffmpegPath} {
		if _, err := p.lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return plugin.Health{OK: false, Message: missingTools(missing)}
	}
	return plugin.Health{OK: true, Message: "OK"}
}

// Process extracts audio, transcribes it to SRT, and runs cleanvid.
func (p *Profanity) Process(ctx context.Context, req plugin.ProcessRequest) (string, error) {
	plugin.Log(p.Name(), "Starting profanity removal...", req.Logf)

	modelPath, err := p.resolveModel(req.Settings)
	if err != nil {
		return "", &plugin.ProcessError{Plugin: p.Name(), Message: err.Error(), Err: err}
	}

	if err := ensureParentDir(req.OutputPath, p.mkdirAll); err != nil {
		return "", &plugin.ProcessError{
			Plugin:  p.Name(),
			Message: fmt.Sprintf("cannot create output directory for %s", req.OutputPath),
			Err:     err,
		}
	}

	workDir, err := p.mkdirTemp("", "vidpipe-profanity-*")
	if err != nil {
		return "", &plugin.ProcessError{
			Plugin:  p.Name(),
			Message: "failed to create transcription workspace",
			Err:     err,
		}
	}
	defer func() { _ = p.removeAll(workDir) }()

	srtPath, perr := p.generateSRT(ctx, req, workDir, modelPath)
	if perr != nil {
		return "", perr
	}

	if perr := p.runCleanvid(ctx, req, srtPath); perr != nil {
		return "", perr
	}

	plugin.Log(p.Name(), "Profanity removal complete.", req.Logf)
	return req.OutputPath, nil
}

// generateSRT converts the input audio and transcribes it to an SRT file.
func (p *Profanity) generateSRT(ctx context.Context, req plugin.ProcessRequest, workDir, modelPath string) (string, *plugin.ProcessError) {
	model, _ := req.Settings.String("whisper_model")
	plugin.Log(p.Name(), fmt.Sprintf("Transcribing with whisper.cpp (%s)...", model), req.Logf)

	wavPath := filepath.Join(workDir, "audio-16k-mono.wav")
	ffmpegArgs := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", req.InputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		wavPath,
	}

	result, runErr := p.runner.Run(ctx, p.ffmpegPath, ffmpegArgs...)
	if runErr != nil {
		return "", &plugin.ProcessError{
			Plugin:     p.Name(),
			Message:    "ffmpeg audio extraction failed",
			CommandLog: plugin.LogFor(p.ffmpegPath, ffmpegArgs, result),
			Err:        runErr,
		}
	}

	srtBase := filepath.Join(workDir, "transcript")
	whisperArgs := []string{
		"-m", modelPath,
		"-f", wavPath,
		"-of", srtBase,
		"-osrt",
	}
	if lang, _ := req.Settings.String("language"); strings.TrimSpace(lang) != "" {
		whisperArgs = append(whisperArgs, "-l", strings.TrimSpace(lang))
	}

	result, runErr = p.runner.Run(ctx, p.whisperPath, whisperArgs...)
	log := plugin.LogFor(p.whisperPath, whisperArgs, result)
	if runErr != nil {
		return "", &plugin.ProcessError{
			Plugin:     p.Name(),
			Message:    "whisper.cpp transcription failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	srtPath := srtBase + ".srt"
	if _, err := p.stat(srtPath); err != nil {
		return "", &plugin.ProcessError{
			Plugin:     p.Name(),
			Message:    "whisper.cpp completed but SRT file is missing",
			CommandLog: log,
			Err:        err,
		}
	}

	plugin.Log(p.Name(), "Transcript ready: "+srtPath, req.Logf)
	return srtPath, nil
}

// runCleanvid mutes profanity segments described by the SRT transcript.
func (p *Profanity) runCleanvid(ctx context.Context, req plugin.ProcessRequest, srtPath string) *plugin.ProcessError {
	plugin.Log(p.Name(), "Running cleanvid...", req.Logf)

	args := []string{
		"-i", req.InputPath,
		"-o", req.OutputPath,
		"-s", srtPath,
		"--offline",
	}
	if pad, _ := req.Settings.Float("pad_seconds"); pad > 0 {
		args = append(args, "-p", formatFloat(pad))
	}
	if embed, _ := req.Settings.Bool("embed_subs"); embed {
		args = append(args, "-e")
	}
	if swears, _ := req.Settings.String("swears_file"); swears != "" {
		args = append(args, "-w", swears)
	}

	result, runErr := p.runner.Run(ctx, p.cleanvidPath, args...)
	log := plugin.LogFor(p.cleanvidPath, args, result)
	if runErr != nil {
		return &plugin.ProcessError{
			Plugin:     p.Name(),
			Message:    "cleanvid failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	if _, err := p.stat(req.OutputPath); err != nil {
		return &plugin.ProcessError{
			Plugin:     p.Name(),
			Message:    "cleanvid completed but output file is missing",
			CommandLog: log,
			Err:        err,
		}
	}
	return nil
}

// resolveModel finds a whisper.cpp model file matching the selected preset.
func (p *Profanity) resolveModel(settings setting.Values) (string, error) {
	model, err := settings.String("whisper_model")
	if err != nil {
		return "", err
	}

	dir := ""
	if p.modelDir != nil {
		dir = strings.TrimSpace(p.modelDir())
	}
	if dir == "" {
		return "", fmt.Errorf("whisper model directory is not configured")
	}

	entries, err := p.readDir(dir)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", dir)
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".bin" && ext != ".gguf" {
			continue
		}
		if strings.HasPrefix(name, "ggml-"+model) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no %q whisper model found in %s (download one from the diagnostics panel)", model, dir)
	}

	sort.Strings(candidates)
	return filepath.Join(dir, candidates[0]), nil
}

// NewProfanityForTests constructs the plugin with injectable dependencies.
func NewProfanityForTests(
	ffmpegPath, whisperPath, cleanvidPath string,
	modelDir func() string,
	runner plugin.Runner,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
) *Profanity {
	return &Profanity{
		ffmpegPath:   ffmpegPath,
		whisperPath:  whisperPath,
		cleanvidPath: cleanvidPath,
		modelDir:     modelDir,
		runner:       runner,
		lookPath:     lookPath,
		stat:         stat,
		readDir:      readDir,
		mkdirAll:     os.MkdirAll,
		mkdirTemp:    os.MkdirTemp,
		removeAll:    os.RemoveAll,
	}
}
