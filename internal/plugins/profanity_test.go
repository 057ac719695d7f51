package plugins

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-pipeline/internal/plugin"
	"video-pipeline/internal/setting"
)

// newProfanityHarness wires a Profanity instance to fakes plus a real
// model directory under t.TempDir.
func newProfanityHarness(t *testing.T, runner *fakeRunner, stat func(string) (os.FileInfo, error)) (*Profanity, string) {
	t.Helper()
	modelDir := t.TempDir()
	workDir := t.TempDir()
	p := &Profanity{
		ffmpegPath:   "ffmpeg",
		whisperPath:  "whisper.cpp",
		cleanvidPath: "cleanvid",
		modelDir:     func() string { return modelDir },
		runner:       runner,
		lookPath:     lookPathOK,
		stat:         stat,
		readDir:      os.ReadDir,
		mkdirAll:     mkdirAllOK,
		mkdirTemp:    func(string, string) (string, error) { return workDir, nil },
		removeAll:    func(string) error { return nil },
	}
	return p, workDir
}

func writeModelFile(t *testing.T, p *Profanity, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(p.modelDir(), name), []byte("x"), 0o644))
}

// TestProfanityProcessRunsExtractTranscribeMute verifies the three-step command chain.
func TestProfanityProcessRunsExtractTranscribeMute(t *testing.T) {
	runner := &fakeRunner{}
	p, workDir := newProfanityHarness(t, runner, statOK)
	writeModelFile(t, p, "ggml-base.en.bin")

	out, err := p.Process(context.Background(), plugin.ProcessRequest{
		InputPath:  "/work/in.mp4",
		OutputPath: "/work/out.mp4",
		Settings:   plugin.DefaultSettings(p),
	})
	require.NoError(t, err)
	assert.Equal(t, "/work/out.mp4", out)

	require.Len(t, runner.calls, 3)
	assert.Equal(t, "ffmpeg", runner.calls[0].name)
	assert.Contains(t, runner.calls[0].args, "-ar")
	assert.Contains(t, runner.calls[0].args, "16000")

	assert.Equal(t, "whisper.cpp", runner.calls[1].name)
	assert.Contains(t, runner.calls[1].args, filepath.Join(p.modelDir(), "ggml-base.en.bin"))
	assert.Contains(t, runner.calls[1].args, "-osrt")
	assert.Contains(t, runner.calls[1].args, "en")

	assert.Equal(t, "cleanvid", runner.calls[2].name)
	assert.Contains(t, runner.calls[2].args, filepath.Join(workDir, "transcript.srt"))
	assert.Contains(t, runner.calls[2].args, "--offline")
	assert.Contains(t, runner.calls[2].args, "-p")
}

// TestProfanityProcessOptionalCleanvidFlags checks embed and custom list wiring.
func TestProfanityProcessOptionalCleanvidFlags(t *testing.T) {
	runner := &fakeRunner{}
	p, _ := newProfanityHarness(t, runner, statOK)
	writeModelFile(t, p, "ggml-base.bin")

	settings := plugin.DefaultSettings(p)
	settings["embed_subs"] = setting.BoolValue(true)
	settings["swears_file"] = setting.FileValue("/lists/swears.txt")

	_, err := p.Process(context.Background(), plugin.ProcessRequest{
		InputPath:  "/work/in.mp4",
		OutputPath: "/work/out.mp4",
		Settings:   settings,
	})
	require.NoError(t, err)

	args := runner.calls[2].args
	assert.Contains(t, args, "-e")
	assert.Contains(t, args, "-w")
	assert.Contains(t, args, "/lists/swears.txt")
}

// TestProfanityProcessFailsWithoutModel reports a download hint.
func TestProfanityProcessFailsWithoutModel(t *testing.T) {
	runner := &fakeRunner{}
	p, _ := newProfanityHarness(t, runner, statOK)

	_, err := p.Process(context.Background(), plugin.ProcessRequest{
		InputPath:  "/work/in.mp4",
		OutputPath: "/work/out.mp4",
		Settings:   plugin.DefaultSettings(p),
	})
	var perr *plugin.ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "no \"base\" whisper model")
	assert.Empty(t, runner.calls)
}

// TestProfanityResolveModelPicksLexicallyFirstMatch pins candidate ordering.
func TestProfanityResolveModelPicksLexicallyFirstMatch(t *testing.T) {
	p, _ := newProfanityHarness(t, &fakeRunner{}, statOK)
	writeModelFile(t, p, "ggml-base.en.bin")
	writeModelFile(t, p, "ggml-base.bin")
	writeModelFile(t, p, "ggml-large.bin")
	writeModelFile(t, p, "notes.txt")

	path, err := p.resolveModel(plugin.DefaultSettings(p))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.modelDir(), "ggml-base.bin"), path)
}

// TestProfanityProcessWrapsWhisperFailure surfaces the transcription command log.
func TestProfanityProcessWrapsWhisperFailure(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]plugin.CommandResult{
			"whisper.cpp": {Stderr: "model load failed", ExitCode: 1},
		},
		errs: map[string]error{"whisper.cpp": errors.New("exit status 1")},
	}
	p, _ := newProfanityHarness(t, runner, statOK)
	writeModelFile(t, p, "ggml-base.bin")

	_, err := p.Process(context.Background(), plugin.ProcessRequest{
		InputPath:  "/work/in.mp4",
		OutputPath: "/work/out.mp4",
		Settings:   plugin.DefaultSettings(p),
	})
	var perr *plugin.ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "whisper.cpp", perr.CommandLog.Command)
	assert.Contains(t, perr.Message, "transcription failed")
}

// TestProfanityCheckDependenciesListsAllMissingTools aggregates the report.
func TestProfanityCheckDependenciesListsAllMissingTools(t *testing.T) {
	p, _ := newProfanityHarness(t, &fakeRunner{}, statOK)
	p.lookPath = lookPathMissing("whisper.cpp", "cleanvid")

	health := p.CheckDependencies(context.Background())
	assert.False(t, health.OK)
	assert.Contains(t, health.Message, "whisper.cpp")
	assert.Contains(t, health.Message, "cleanvid")
	assert.NotContains(t, health.Message, "ffmpeg")
}
