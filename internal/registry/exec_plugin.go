package registry

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"video-pipeline/internal/plugin"
	"video-pipeline/internal/setting"
)

// ExecPlugin adapts a manifest into the plugin contract. Every call runs
// the declared command in a subprocess; nothing from the manifest executes
// inside this process.
type ExecPlugin struct {
	manifest *Manifest
	schemas  []setting.Schema

	runner   plugin.Runner
	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
	mkdirAll func(string, os.FileMode) error
}

// NewExecPlugin validates the manifest and builds its runtime adapter.
func NewExecPlugin(m *Manifest) (*ExecPlugin, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	schemas, err := m.Schemas()
	if err != nil {
		return nil, err
	}
	return &ExecPlugin{
		manifest: m,
		schemas:  schemas,
		runner:   &plugin.ExecRunner{},
		lookPath: exec.LookPath,
		stat:     os.Stat,
		mkdirAll: os.MkdirAll,
	}, nil
}

// Name returns the manifest-declared plugin name.
func (p *ExecPlugin) Name() string { return p.manifest.Name }

// Description returns the manifest-declared description.
func (p *ExecPlugin) Description() string { return p.manifest.Description }

// Icon returns the manifest-declared icon, defaulting to a plug.
func (p *ExecPlugin) Icon() string {
	if p.manifest.Icon == "" {
		return "🔌"
	}
	return p.manifest.Icon
}

// SettingsSchema returns the typed schema parsed from the manifest.
func (p *ExecPlugin) SettingsSchema() []setting.Schema {
	out := make([]setting.Schema, len(p.schemas))
	copy(out, p.schemas)
	return out
}

// CheckDependencies runs the manifest's check command, falling back to a
// PATH lookup of the run command when no check is declared.
func (p *ExecPlugin) CheckDependencies(ctx context.Context) plugin.Health {
	if p.manifest.Check.Command == "" {
		if _, err := p.lookPath(p.manifest.Run.Command); err != nil {
			return plugin.Health{
				OK:      false,
				Message: fmt.Sprintf("%s not found in PATH", p.manifest.Run.Command),
			}
		}
		return plugin.Health{OK: true, Message: "OK"}
	}

	result, err := p.runner.Run(ctx, p.manifest.Check.Command, p.manifest.Check.Args...)
	if err != nil {
		msg := strings.TrimSpace(result.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("check command %s failed", p.manifest.Check.Command)
		}
		return plugin.Health{OK: false, Message: msg}
	}
	return plugin.Health{OK: true, Message: "OK"}
}

// Process expands the argv template and runs the declared command.
func (p *ExecPlugin) Process(ctx context.Context, req plugin.ProcessRequest) (string, error) {
	plugin.Log(p.Name(), "Starting...", req.Logf)

	if err := p.mkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return "", &plugin.ProcessError{
			Plugin:  p.Name(),
			Message: fmt.Sprintf("cannot create output directory for %s", req.OutputPath),
			Err:     err,
		}
	}

	args := expandArgs(p.manifest.Run.Args, p.schemas, req)
	result, runErr := p.runner.Run(ctx, p.manifest.Run.Command, args...)
	log := plugin.LogFor(p.manifest.Run.Command, args, result)
	if runErr != nil {
		return "", &plugin.ProcessError{
			Plugin:     p.Name(),
			Message:    fmt.Sprintf("%s failed", p.manifest.Run.Command),
			CommandLog: log,
			Err:        runErr,
		}
	}

	if _, err := p.stat(req.OutputPath); err != nil {
		return "", &plugin.ProcessError{
			Plugin:     p.Name(),
			Message:    "command completed but output file is missing",
			CommandLog: log,
			Err:        err,
		}
	}

	plugin.Log(p.Name(), "Done.", req.Logf)
	return req.OutputPath, nil
}

// expandArgs substitutes {input}, {output} and one {key} placeholder per
// declared setting into the argv template.
func expandArgs(template []string, schemas []setting.Schema, req plugin.ProcessRequest) []string {
	pairs := []string{
		"{input}", req.InputPath,
		"{output}", req.OutputPath,
	}
	for key, raw := range setting.Raw(schemas, req.Settings) {
		pairs = append(pairs, "{"+key+"}", raw)
	}
	replacer := strings.NewReplacer(pairs...)

	out := make([]string, len(template))
	for i, arg := range template {
		out[i] = replacer.Replace(arg)
	}
	return out
}
