// Package plugin defines the contract every pipeline stage implements.
package plugin

import (
	"context"
	"fmt"

	"video-pipeline/internal/setting"
)

// Health is a plugin's self-report on its external tool dependencies.
type Health struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// ProcessRequest carries the per-stage inputs for one Process call.
// OriginalPath is the user's source file, unchanged across stages, for
// plugins that write side artifacts beside it.
type ProcessRequest struct {
	InputPath    string
	OutputPath   string
	OriginalPath string
	Settings     setting.Values
	Logf         func(message string)
}

// Plugin is one pipeline stage wrapping an external video tool.
//
// SettingsSchema must be deterministic and cheap; it is called repeatedly
// to rebuild UI editors. CheckDependencies never returns an error: missing
// tools are reported, not fatal. Process must leave a valid media file at
// the returned path before returning.
type Plugin interface {
	Name() string
	Description() string
	Icon() string
	SettingsSchema() []setting.Schema
	CheckDependencies(ctx context.Context) Health
	Process(ctx context.Context, req ProcessRequest) (string, error)
}

// DefaultSettings maps a plugin's schema to its declared default values.
func DefaultSettings(p Plugin) setting.Values {
	schemas := p.SettingsSchema()
	values := make(setting.Values, len(schemas))
	for _, s := range schemas {
		values[s.Key] = s.Default
	}
	return values
}

// Log forwards a prefixed message to the callback when one is configured.
func Log(name, message string, logf func(string)) {
	if logf == nil {
		return
	}
	logf(fmt.Sprintf("[%s] %s", name, message))
}

// ProcessError is a stage failure with optional command context.
type ProcessError struct {
	Plugin     string     `json:"plugin"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats stage failures for logs and UI.
func (e *ProcessError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Plugin, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Plugin,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *ProcessError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
