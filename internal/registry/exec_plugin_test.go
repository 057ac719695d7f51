package registry

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-pipeline/internal/plugin"
	"video-pipeline/internal/setting"
)

func newExecHarness(t *testing.T, runner *fakeRunner) *ExecPlugin {
	t.Helper()
	p, err := NewExecPlugin(mustManifest(t, validManifest))
	require.NoError(t, err)
	p.runner = runner
	p.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	p.stat = func(string) (os.FileInfo, error) { return nil, nil }
	p.mkdirAll = func(string, os.FileMode) error { return nil }
	return p
}

// TestExecPluginProcessExpandsTemplate substitutes paths and settings.
func TestExecPluginProcessExpandsTemplate(t *testing.T) {
	runner := &fakeRunner{}
	p := newExecHarness(t, runner)

	settings := plugin.DefaultSettings(p)
	settings["opacity"] = setting.FloatValue(0.8)

	out, err := p.Process(context.Background(), plugin.ProcessRequest{
		InputPath:  "/work/in.mp4",
		OutputPath: "/work/out.mp4",
		Settings:   settings,
	})
	require.NoError(t, err)
	assert.Equal(t, "/work/out.mp4", out)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"watermark-tool",
		"--input", "/work/in.mp4",
		"--output", "/work/out.mp4",
		"--opacity", "0.8",
	}, runner.calls[0])
}

// TestExecPluginProcessWrapsFailure carries the command log upward.
func TestExecPluginProcessWrapsFailure(t *testing.T) {
	runner := &fakeRunner{
		res: plugin.CommandResult{Stderr: "bad input", ExitCode: 3},
		err: errors.New("exit status 3"),
	}
	p := newExecHarness(t, runner)

	_, err := p.Process(context.Background(), plugin.ProcessRequest{
		InputPath:  "/work/in.mp4",
		OutputPath: "/work/out.mp4",
		Settings:   plugin.DefaultSettings(p),
	})
	var perr *plugin.ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Watermark", perr.Plugin)
	assert.Equal(t, "watermark-tool", perr.CommandLog.Command)
	assert.Equal(t, 3, perr.CommandLog.ExitCode)
}

// TestExecPluginCheckDependenciesRunsCheckCommand covers both outcomes.
func TestExecPluginCheckDependenciesRunsCheckCommand(t *testing.T) {
	healthy := newExecHarness(t, &fakeRunner{})
	assert.True(t, healthy.CheckDependencies(context.Background()).OK)

	broken := newExecHarness(t, &fakeRunner{
		res: plugin.CommandResult{Stderr: "watermark-tool: command not found"},
		err: errors.New("exit status 127"),
	})
	health := broken.CheckDependencies(context.Background())
	assert.False(t, health.OK)
	assert.Contains(t, health.Message, "watermark-tool")
}

// TestManifestValidation rejects the contract violations discovery must catch.
func TestManifestValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "run:\n  command: tool\n  args: [\"{output}\"]\n",
			wantErr: "no name",
		},
		{
			name:    "missing run command",
			content: "name: X\n",
			wantErr: "no run command",
		},
		{
			name:    "no output placeholder",
			content: "name: X\nrun:\n  command: tool\n  args: [\"{input}\"]\n",
			wantErr: "{output}",
		},
		{
			name: "bad setting kind",
			content: "name: X\nsettings:\n  - key: k\n    kind: decimal\n    default: \"1\"\n" +
				"run:\n  command: tool\n  args: [\"{output}\"]\n",
			wantErr: "unknown setting kind",
		},
		{
			name: "bad default",
			content: "name: X\nsettings:\n  - key: k\n    kind: int\n    default: \"abc\"\n" +
				"run:\n  command: tool\n  args: [\"{output}\"]\n",
			wantErr: "invalid int default",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeManifestFile(t, t.TempDir(), "x_plugin.yaml", tc.content)
			_, err := LoadManifest(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// TestManifestSchemasRoundTrip parses typed defaults out of string form.
func TestManifestSchemasRoundTrip(t *testing.T) {
	m := mustManifest(t, validManifest)
	schemas, err := m.Schemas()
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	assert.Equal(t, "opacity", schemas[0].Key)
	assert.Equal(t, setting.KindFloat, schemas[0].Kind)
	v, err := schemas[0].Default.AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
}
