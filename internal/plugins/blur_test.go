package plugins

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-pipeline/internal/plugin"
)

// newBlurHarness wires a Blur instance to fakes.
func newBlurHarness(runner *fakeRunner, lookPath func(string) (string, error), readFile func(string) ([]byte, error)) *Blur {
	return &Blur{
		ffmpegPath:   "ffmpeg",
		detectorPath: "pii-detect",
		runner:       runner,
		lookPath:     lookPath,
		stat:         statOK,
		mkdirAll:     mkdirAllOK,
		mkdirTemp:    os.MkdirTemp,
		removeAll:    os.RemoveAll,
		readFile:     readFile,
	}
}

// TestBlurProcessCopiesInputWhenDetectorMissing degrades to passthrough.
func TestBlurProcessCopiesInputWhenDetectorMissing(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	output := filepath.Join(dir, "out.mp4")
	require.NoError(t, os.WriteFile(input, []byte("video-bytes"), 0o644))

	runner := &fakeRunner{}
	b := newBlurHarness(runner, lookPathMissing("pii-detect"), os.ReadFile)

	out, err := b.Process(context.Background(), plugin.ProcessRequest{
		InputPath:  input,
		OutputPath: output,
		Settings:   plugin.DefaultSettings(b),
	})
	require.NoError(t, err)
	assert.Equal(t, output, out)
	assert.Empty(t, runner.calls)

	copied, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), copied)
}

// TestBlurProcessRendersDetectedRegions runs detector then ffmpeg.
func TestBlurProcessRendersDetectedRegions(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	require.NoError(t, os.WriteFile(input, []byte("video"), 0o644))

	report := `{"regions":[{"x":10,"y":20,"w":100,"h":50,"startFrame":0,"endFrame":120,"kind":"face"}]}`
	runner := &fakeRunner{}
	b := newBlurHarness(runner, lookPathOK, func(string) ([]byte, error) { return []byte(report), nil })

	out, err := b.Process(context.Background(), plugin.ProcessRequest{
		InputPath:  input,
		OutputPath: filepath.Join(dir, "out.mp4"),
		Settings:   plugin.DefaultSettings(b),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.mp4"), out)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "pii-detect", runner.calls[0].name)
	assert.Contains(t, runner.calls[0].args, "--faces")
	assert.Contains(t, runner.calls[0].args, "--text")

	assert.Equal(t, "ffmpeg", runner.calls[1].name)
	joined := strings.Join(runner.calls[1].args, " ")
	assert.Contains(t, joined, "crop=100:50:10:20")
	assert.Contains(t, joined, "boxblur=25:25")
	assert.Contains(t, joined, "between(n,0,120)")
}

// TestBlurProcessSkipsRenderWithoutRegions still produces an output file.
func TestBlurProcessSkipsRenderWithoutRegions(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	output := filepath.Join(dir, "out.mp4")
	require.NoError(t, os.WriteFile(input, []byte("video"), 0o644))

	runner := &fakeRunner{}
	b := newBlurHarness(runner, lookPathOK, func(string) ([]byte, error) { return []byte(`{"regions":[]}`), nil })

	_, err := b.Process(context.Background(), plugin.ProcessRequest{
		InputPath:  input,
		OutputPath: output,
		Settings:   plugin.DefaultSettings(b),
	})
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "pii-detect", runner.calls[0].name)
	_, statErr := os.Stat(output)
	assert.NoError(t, statErr)
}

// TestBlurProcessRejectsMalformedReport surfaces the detector command log.
func TestBlurProcessRejectsMalformedReport(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	require.NoError(t, os.WriteFile(input, []byte("video"), 0o644))

	runner := &fakeRunner{}
	b := newBlurHarness(runner, lookPathOK, func(string) ([]byte, error) { return []byte("not json"), nil })

	_, err := b.Process(context.Background(), plugin.ProcessRequest{
		InputPath:  input,
		OutputPath: filepath.Join(dir, "out.mp4"),
		Settings:   plugin.DefaultSettings(b),
	})
	var perr *plugin.ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "not valid JSON")
	assert.Equal(t, "pii-detect", perr.CommandLog.Command)
}

// TestBuildBlurArgsChainsRegionsWithSplit pins the filter graph shape.
func TestBuildBlurArgsChainsRegionsWithSplit(t *testing.T) {
	regions := []blurRegion{
		{X: 0, Y: 0, Width: 64, Height: 64, StartFrame: 0, EndFrame: 30},
		{X: 200, Y: 100, Width: 32, Height: 16, StartFrame: 30, EndFrame: 60},
	}
	args := buildBlurArgs("in.mp4", "out.mp4", regions, 10)

	var filter string
	for i, a := range args {
		if a == "-filter_complex" {
			filter = args[i+1]
		}
	}
	require.NotEmpty(t, filter)
	assert.Contains(t, filter, "[0:v]split[base0][src0]")
	assert.Contains(t, filter, "[src0]crop=64:64:0:0,boxblur=10:10[blur0]")
	assert.Contains(t, filter, "[v0]split[base1][src1]")
	assert.Contains(t, filter, "overlay=200:100:enable='between(n,30,60)'[v1]")
	assert.Contains(t, args, "[v1]")
	assert.Contains(t, args, "0:a?")
}

// TestBlurCheckDependencies treats a missing detector as degraded, not broken.
func TestBlurCheckDependencies(t *testing.T) {
	full := newBlurHarness(&fakeRunner{}, lookPathOK, os.ReadFile)
	assert.True(t, full.CheckDependencies(context.Background()).OK)

	degraded := newBlurHarness(&fakeRunner{}, lookPathMissing("pii-detect"), os.ReadFile)
	health := degraded.CheckDependencies(context.Background())
	assert.True(t, health.OK)
	assert.Contains(t, health.Message, "pii-detect")

	broken := newBlurHarness(&fakeRunner{}, lookPathMissing("ffmpeg"), os.ReadFile)
	assert.False(t, broken.CheckDependencies(context.Background()).OK)
}
