package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"video-pipeline/internal/plugin"
	"video-pipeline/internal/setting"
)

// fakePlugin is a minimal stage whose Process behavior is injectable.
type fakePlugin struct {
	name    string
	process func(ctx context.Context, req plugin.ProcessRequest) (string, error)
}

func (p *fakePlugin) Name() string                    { return p.name }
func (p *fakePlugin) Description() string             { return "fake" }
func (p *fakePlugin) Icon() string                    { return "🧪" }
func (p *fakePlugin) SettingsSchema() []setting.Schema { return nil }
func (p *fakePlugin) CheckDependencies(ctx context.Context) plugin.Health {
	return plugin.Health{OK: true, Message: "OK"}
}
func (p *fakePlugin) Process(ctx context.Context, req plugin.ProcessRequest) (string, error) {
	return p.process(ctx, req)
}

// writeOutput is the default stage behavior: materialize the output file.
func writeOutput(ctx context.Context, req plugin.ProcessRequest) (string, error) {
	if err := os.WriteFile(req.OutputPath, []byte(req.InputPath), 0o644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

// trackingRunner wraps NewRunner but records the scratch directory.
func trackingRunner(scratch *string) *Runner {
	r := NewRunner()
	inner := r.mkdirTemp
	r.mkdirTemp = func(dir, pattern string) (string, error) {
		path, err := inner(dir, pattern)
		*scratch = path
		return path, err
	}
	return r
}

func writeInput(t *testing.T, name string) string {
	t.Helper()
	input := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(input, []byte("source"), 0o644))
	return input
}

// TestRunThreadsStagesAndPromotesFinalOutput covers the success path.
func TestRunThreadsStagesAndPromotesFinalOutput(t *testing.T) {
	input := writeInput(t, "talk.mp4")

	var stages []string
	req := Request{
		InputPath: input,
		Stages: []Stage{
			{Plugin: &fakePlugin{name: "Silence Removal", process: writeOutput}},
			{Plugin: &fakePlugin{name: "Blur PII", process: writeOutput}},
		},
		OnStage: func(index int, name string) {
			stages = append(stages, fmt.Sprintf("%d:%s", index, name))
		},
	}

	var scratch string
	result, err := trackingRunner(&scratch).Run(context.Background(), req)
	require.NoError(t, err)

	expected := filepath.Join(filepath.Dir(input), "talk_processed.mp4")
	assert.Equal(t, expected, result.OutputPath)
	assert.Equal(t, []string{"0:Silence Removal", "1:Blur PII"}, stages)

	require.Len(t, result.StageOutputs, 2)
	assert.Equal(t, "step_01_silence_removal.mp4", filepath.Base(result.StageOutputs[0]))
	assert.Equal(t, "step_02_blur_pii.mp4", filepath.Base(result.StageOutputs[1]))

	// The final artifact holds the last stage's content.
	content, err := os.ReadFile(expected)
	require.NoError(t, err)
	assert.Equal(t, result.StageOutputs[0], string(content))

	// Scratch is gone; the input is untouched.
	_, statErr := os.Stat(scratch)
	assert.True(t, os.IsNotExist(statErr))
	original, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, []byte("source"), original)
}

// TestRunRemovesScratchOnStageFailure also checks error context.
func TestRunRemovesScratchOnStageFailure(t *testing.T) {
	input := writeInput(t, "talk.mp4")

	boom := &plugin.ProcessError{
		Plugin:     "Blur PII",
		Message:    "ffmpeg blur render failed",
		CommandLog: plugin.CommandLog{Command: "ffmpeg", ExitCode: 1},
		Err:        errors.New("exit status 1"),
	}
	req := Request{
		InputPath: input,
		Stages: []Stage{
			{Plugin: &fakePlugin{name: "Silence Removal", process: writeOutput}},
			{Plugin: &fakePlugin{name: "Blur PII", process: func(context.Context, plugin.ProcessRequest) (string, error) {
				return "", boom
			}}},
		},
	}

	var scratch string
	_, err := trackingRunner(&scratch).Run(context.Background(), req)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Blur PII", serr.Stage)
	assert.Equal(t, 1, serr.Index)
	assert.Equal(t, "ffmpeg blur render failed", serr.Message)
	assert.Equal(t, "ffmpeg", serr.CommandLog.Command)

	_, statErr := os.Stat(scratch)
	assert.True(t, os.IsNotExist(statErr))

	// No partial output beside the input.
	_, statErr = os.Stat(ProcessedPath(input))
	assert.True(t, os.IsNotExist(statErr))
}

// TestRunValidatesRequest rejects empty input, missing input, no stages.
func TestRunValidatesRequest(t *testing.T) {
	r := NewRunner()

	_, err := r.Run(context.Background(), Request{})
	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, "input media path is required")

	_, err = r.Run(context.Background(), Request{InputPath: "/nope/missing.mp4"})
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, "cannot access input media")

	input := writeInput(t, "talk.mp4")
	_, err = r.Run(context.Background(), Request{InputPath: input})
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, "no plugins are enabled")
}

// TestRunStopsAfterCancellation skips remaining stages and cleans up.
func TestRunStopsAfterCancellation(t *testing.T) {
	input := writeInput(t, "talk.mp4")
	ctx, cancel := context.WithCancel(context.Background())

	secondRan := false
	req := Request{
		InputPath: input,
		Stages: []Stage{
			{Plugin: &fakePlugin{name: "Silence Removal", process: func(ctx context.Context, req plugin.ProcessRequest) (string, error) {
				cancel()
				return writeOutput(ctx, req)
			}}},
			{Plugin: &fakePlugin{name: "Blur PII", process: func(ctx context.Context, req plugin.ProcessRequest) (string, error) {
				secondRan = true
				return writeOutput(ctx, req)
			}}},
		},
	}

	var scratch string
	_, err := trackingRunner(&scratch).Run(ctx, req)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, serr.Message, "cancelled")
	assert.False(t, secondRan)

	_, statErr := os.Stat(scratch)
	assert.True(t, os.IsNotExist(statErr))
}

// TestRunLeavesSideArtifactsInPlace mirrors a clip-export run: the stage
// writes a clips folder beside the original and the run promotes the
// final file, removing only the scratch directory.
func TestRunLeavesSideArtifactsInPlace(t *testing.T) {
	input := writeInput(t, "clip.mp4")
	clipsDir := filepath.Join(filepath.Dir(input), "clip_clips")

	req := Request{
		InputPath: input,
		Stages: []Stage{
			{Plugin: &fakePlugin{name: "Silence Removal", process: writeOutput}},
			{Plugin: &fakePlugin{name: "Auto Clip & Reels", process: func(ctx context.Context, req plugin.ProcessRequest) (string, error) {
				if err := os.MkdirAll(clipsDir, 0o755); err != nil {
					return "", err
				}
				if err := os.WriteFile(filepath.Join(clipsDir, "segment_01.mp4"), []byte("clip"), 0o644); err != nil {
					return "", err
				}
				return writeOutput(ctx, req)
			}}},
		},
	}

	var scratch string
	result, err := trackingRunner(&scratch).Run(context.Background(), req)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(filepath.Dir(input), "clip_processed.mp4"))
	assert.FileExists(t, filepath.Join(clipsDir, "segment_01.mp4"))
	assert.Equal(t, filepath.Join(filepath.Dir(input), "clip_processed.mp4"), result.OutputPath)
	_, statErr := os.Stat(scratch)
	assert.True(t, os.IsNotExist(statErr))
}

// TestRunOrderingProperty checks that every stage consumes its
// predecessor's output, for arbitrary pipeline lengths.
func TestRunOrderingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 6).Draw(rt, "stages")

		dir, err := os.MkdirTemp("", "pipeline-prop-*")
		if err != nil {
			rt.Fatalf("temp dir: %v", err)
		}
		defer os.RemoveAll(dir)

		input := filepath.Join(dir, "in.mp4")
		if err := os.WriteFile(input, []byte("source"), 0o644); err != nil {
			rt.Fatalf("write input: %v", err)
		}

		var seenInputs []string
		stages := make([]Stage, count)
		for i := range stages {
			stages[i] = Stage{Plugin: &fakePlugin{
				name: fmt.Sprintf("Stage %d", i),
				process: func(ctx context.Context, req plugin.ProcessRequest) (string, error) {
					seenInputs = append(seenInputs, req.InputPath)
					return writeOutput(ctx, req)
				},
			}}
		}

		result, err := NewRunner().Run(context.Background(), Request{InputPath: input, Stages: stages})
		if err != nil {
			rt.Fatalf("run: %v", err)
		}

		if seenInputs[0] != input {
			rt.Fatalf("first stage read %q, want %q", seenInputs[0], input)
		}
		for i := 1; i < count; i++ {
			if seenInputs[i] != result.StageOutputs[i-1] {
				rt.Fatalf("stage %d read %q, want %q", i, seenInputs[i], result.StageOutputs[i-1])
			}
		}
	})
}

// TestProcessedPathNaming pins the output naming rule.
func TestProcessedPathNaming(t *testing.T) {
	assert.Equal(t, "/v/talk_processed.mp4", ProcessedPath("/v/talk.mp4"))
	assert.Equal(t, "/v/talk_processed.mov", ProcessedPath("/v/talk.mov"))
	assert.Equal(t, "/v/raw_processed.mp4", ProcessedPath("/v/raw"))
}
