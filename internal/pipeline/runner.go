// Package pipeline chains enabled plugins over a scratch workspace and
// promotes the final artifact next to the original input.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"video-pipeline/internal/plugin"
	"video-pipeline/internal/setting"
)

// Stage pairs a plugin with its coerced settings for one run.
type Stage struct {
	Plugin   plugin.Plugin
	Settings setting.Values
}

// Request contains the input media, the ordered stages, and callbacks.
type Request struct {
	InputPath string
	Stages    []Stage
	OnStage   func(index int, name string)
	OnLog     func(message string)
}

// Result contains the promoted output path and per-stage artifacts. The
// stage outputs live in the scratch directory and are gone by the time
// Run returns; the paths are kept for logging only.
type Result struct {
	OutputPath   string
	StageOutputs []string
}

// StageError is a stage-aware run failure with optional command context.
type StageError struct {
	Stage      string            `json:"stage"`
	Index      int               `json:"index"`
	Message    string            `json:"message"`
	CommandLog plugin.CommandLog `json:"commandLog"`
	Err        error             `json:"-"`
}

// Error formats run failures for logs and UI.
func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Runner executes plugin stages strictly in order, one run at a time.
type Runner struct {
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	stat      func(name string) (os.FileInfo, error)
	mkdirAll  func(path string, perm os.FileMode) error
	copyFile  func(src, dst string) error
}

// NewRunner constructs the production runner with OS dependencies.
func NewRunner() *Runner {
	return &Runner{
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		stat:      os.Stat,
		mkdirAll:  os.MkdirAll,
		copyFile:  copyFile,
	}
}

// Run threads the input through every stage and writes the final artifact
// beside the original input as <stem>_processed<ext>. All intermediates
// live in a scratch directory that is removed on success and on failure.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return Result{}, &StageError{
			Stage:   "setup",
			Message: "input media path is required",
		}
	}
	if _, err := r.stat(req.InputPath); err != nil {
		return Result{}, &StageError{
			Stage:   "setup",
			Message: fmt.Sprintf("cannot access input media: %s", req.InputPath),
			Err:     err,
		}
	}
	if len(req.Stages) == 0 {
		return Result{}, &StageError{
			Stage:   "setup",
			Message: "no plugins are enabled",
		}
	}

	scratch, err := r.mkdirTemp("", "video-pipeline-*")
	if err != nil {
		return Result{}, &StageError{
			Stage:   "setup",
			Message: "failed to create scratch workspace",
			Err:     err,
		}
	}

	current := req.InputPath
	ext := suffixOrMP4(req.InputPath)
	outputs := make([]string, 0, len(req.Stages))

	for i, stage := range req.Stages {
		name := stage.Plugin.Name()
		if err := ctx.Err(); err != nil {
			_ = r.removeAll(scratch)
			return Result{}, &StageError{
				Stage:   name,
				Index:   i,
				Message: "run cancelled",
				Err:     err,
			}
		}

		emitStage(req.OnStage, i, name)
		stepPath := filepath.Join(scratch, fmt.Sprintf("step_%02d_%s%s", i+1, slug(name), ext))

		produced, err := stage.Plugin.Process(ctx, plugin.ProcessRequest{
			InputPath:    current,
			OutputPath:   stepPath,
			OriginalPath: req.InputPath,
			Settings:     stage.Settings,
			Logf:         req.OnLog,
		})
		if err != nil {
			_ = r.removeAll(scratch)
			return Result{}, wrapStageError(name, i, err)
		}

		if _, err := r.stat(produced); err != nil {
			_ = r.removeAll(scratch)
			return Result{}, &StageError{
				Stage:   name,
				Index:   i,
				Message: fmt.Sprintf("stage reported success but %s is missing", produced),
				Err:     err,
			}
		}

		outputs = append(outputs, produced)
		current = produced
	}

	finalPath := ProcessedPath(req.InputPath)
	if err := r.copyFile(current, finalPath); err != nil {
		_ = r.removeAll(scratch)
		return Result{}, &StageError{
			Stage:   "finalize",
			Index:   len(req.Stages),
			Message: fmt.Sprintf("failed to write final output %s", finalPath),
			Err:     err,
		}
	}

	if err := r.removeAll(scratch); err != nil {
		return Result{}, &StageError{
			Stage:   "finalize",
			Index:   len(req.Stages),
			Message: "failed to remove scratch workspace",
			Err:     err,
		}
	}

	return Result{OutputPath: finalPath, StageOutputs: outputs}, nil
}

// NewRunnerForTests constructs a runner with injectable dependencies.
func NewRunnerForTests(
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
	stat func(name string) (os.FileInfo, error),
	copyFile func(src, dst string) error,
) *Runner {
	return &Runner{
		mkdirTemp: mkdirTemp,
		removeAll: removeAll,
		stat:      stat,
		mkdirAll:  os.MkdirAll,
		copyFile:  copyFile,
	}
}

// ProcessedPath builds the final artifact path beside the original input.
func ProcessedPath(inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(inputPath), stem+"_processed"+suffixOrMP4(inputPath))
}

// wrapStageError preserves the plugin's command context when present.
func wrapStageError(name string, index int, err error) *StageError {
	var perr *plugin.ProcessError
	if errors.As(err, &perr) {
		return &StageError{
			Stage:      name,
			Index:      index,
			Message:    perr.Message,
			CommandLog: perr.CommandLog,
			Err:        err,
		}
	}
	return &StageError{
		Stage:   name,
		Index:   index,
		Message: err.Error(),
		Err:     err,
	}
}

// emitStage forwards stage updates when the callback is configured.
func emitStage(cb func(int, string), index int, name string) {
	if cb != nil {
		cb(index, name)
	}
}

// slug converts a plugin display name into a filename-safe token.
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "stage"
	}
	return b.String()
}

// suffixOrMP4 returns the input extension, defaulting to .mp4.
func suffixOrMP4(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		return ext
	}
	return ".mp4"
}

// copyFile copies src to dst, creating parent directories as needed.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}
