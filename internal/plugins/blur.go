package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"video-pipeline/internal/plugin"
	"video-pipeline/internal/setting"
)

// blurRegion is one rectangle to blur, in pixels, over a frame range.
type blurRegion struct {
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Width      int    `json:"w"`
	Height     int    `json:"h"`
	StartFrame int    `json:"startFrame"`
	EndFrame   int    `json:"endFrame"`
	Kind       string `json:"kind"`
}

// Blur detects faces and on-screen PII with an external detector and
// blurs the reported regions with ffmpeg.
type Blur struct {
	ffmpegPath   string
	detectorPath string
	runner       plugin.Runner
	lookPath     func(string) (string, error)
	stat         func(string) (os.FileInfo, error)
	mkdirAll     func(string, os.FileMode) error
	mkdirTemp    func(dir, pattern string) (string, error)
	removeAll    func(string) error
	readFile     func(string) ([]byte, error)
}

// NewBlur constructs the PII blur plugin.
func NewBlur() *Blur {
	return &Blur{
		ffmpegPath:   "ffmpeg",
		detectorPath: "pii-detect",
		runner:       &plugin.ExecRunner{},
		lookPath:     exec.LookPath,
		stat:         os.Stat,
		mkdirAll:     os.MkdirAll,
		mkdirTemp:    os.MkdirTemp,
		removeAll:    os.RemoveAll,
		readFile:     os.ReadFile,
	}
}

// Name returns the plugin display name.
func (b *Blur) Name() string { return "Blur PII" }

// Description returns the plugin card description.
func (b *Blur) Description() string {
	return "Detects faces and on-screen personal information and blurs them"
}

// Icon returns the plugin card icon.
func (b *Blur) Icon() string { return "🕶️" }

// SettingsSchema declares detection and blur parameters.
func (b *Blur) SettingsSchema() []setting.Schema {
	strengthMin, strengthMax := 1.0, 50.0
	strideMin := 1.0
	confMin, confMax := 0.0, 1.0
	return []setting.Schema{
		{
			Key:     "blur_faces",
			Label:   "Blur Faces",
			Kind:    setting.KindBool,
			Default: setting.BoolValue(true),
			Help:    "Detect and blur human faces",
		},
		{
			Key:     "blur_text_pii",
			Label:   "Blur On-Screen Text PII",
			Kind:    setting.KindBool,
			Default: setting.BoolValue(true),
			Help:    "Detect and blur emails, phone numbers and similar text",
		},
		{
			Key:     "blur_strength",
			Label:   "Blur Strength",
			Kind:    setting.KindInt,
			Default: setting.IntValue(25),
			Help:    "Higher values blur harder",
			Min:     &strengthMin,
			Max:     &strengthMax,
		},
		{
			Key:     "process_every_n_frames",
			Label:   "Detect Every N Frames",
			Kind:    setting.KindInt,
			Default: setting.IntValue(5),
			Help:    "Run detection on every Nth frame and interpolate between",
			Min:     &strideMin,
		},
		{
			Key:     "ocr_confidence",
			Label:   "OCR Confidence Threshold",
			Kind:    setting.KindFloat,
			Default: setting.FloatValue(0.5),
			Help:    "Minimum confidence for a text region to be blurred",
			Min:     &confMin,
			Max:     &confMax,
		},
	}
}

// CheckDependencies requires ffmpeg; the detector is optional and the
// plugin degrades to full-frame passthrough without it.
func (b *Blur) CheckDependencies(ctx context.Context) plugin.Health {
	var missing []string
	if _, err := b.lookPath(b.ffmpegPath); err != nil {
		missing = append(missing, b.ffmpegPath)
	}
	if len(missing) > 0 {
		return plugin.Health{OK: false, Message: missingTools(missing)}
	}
	if _, err := b.lookPath(b.detectorPath); err != nil {
		return plugin.Health{OK: true, Message: "OK (pii-detect not found; regions will not be detected)"}
	}
	return plugin.Health{OK: true, Message: "OK"}
}

// Process detects PII regions and renders a blurred copy of the input.
func (b *Blur) Process(ctx context.Context, req plugin.ProcessRequest) (string, error) {
	plugin.Log(b.Name(), "Starting PII blur...", req.Logf)

	if err := ensureParentDir(req.OutputPath, b.mkdirAll); err != nil {
		return "", &plugin.ProcessError{
			Plugin:  b.Name(),
			Message: fmt.Sprintf("cannot create output directory for %s", req.OutputPath),
			Err:     err,
		}
	}

	regions, perr := b.detectRegions(ctx, req)
	if perr != nil {
		return "", perr
	}

	if len(regions) == 0 {
		plugin.Log(b.Name(), "No PII regions found; copying input unchanged.", req.Logf)
		if err := copyFile(req.InputPath, req.OutputPath); err != nil {
			return "", &plugin.ProcessError{
				Plugin:  b.Name(),
				Message: "failed to copy input to output",
				Err:     err,
			}
		}
		return req.OutputPath, nil
	}

	plugin.Log(b.Name(), fmt.Sprintf("Blurring %d region(s)...", len(regions)), req.Logf)

	strength, _ := req.Settings.Int("blur_strength")
	args := buildBlurArgs(req.InputPath, req.OutputPath, regions, strength)
	result, runErr := b.runner.Run(ctx, b.ffmpegPath, args...)
	log := plugin.LogFor(b.ffmpegPath, args, result)
	if runErr != nil {
		return "", &plugin.ProcessError{
			Plugin:     b.Name(),
			Message:    "ffmpeg blur render failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	if _, err := b.stat(req.OutputPath); err != nil {
		return "", &plugin.ProcessError{
			Plugin:     b.Name(),
			Message:    "ffmpeg completed but output file is missing",
			CommandLog: log,
			Err:        err,
		}
	}

	plugin.Log(b.Name(), "PII blur complete.", req.Logf)
	return req.OutputPath, nil
}

// detectRegions runs the external detector and parses its JSON report.
// A missing detector binary yields zero regions rather than a failure.
func (b *Blur) detectRegions(ctx context.Context, req plugin.ProcessRequest) ([]blurRegion, *plugin.ProcessError) {
	if _, err := b.lookPath(b.detectorPath); err != nil {
		plugin.Log(b.Name(), "pii-detect is not installed; skipping detection.", req.Logf)
		return nil, nil
	}

	workDir, err := b.mkdirTemp("", "vidpipe-blur-*")
	if err != nil {
		return nil, &plugin.ProcessError{
			Plugin:  b.Name(),
			Message: "failed to create detection workspace",
			Err:     err,
		}
	}
	defer func() { _ = b.removeAll(workDir) }()

	reportPath := workDir + "/regions.json"
	faces, _ := req.Settings.Bool("blur_faces")
	text, _ := req.Settings.Bool("blur_text_pii")
	stride, _ := req.Settings.Int("process_every_n_frames")
	confidence, _ := req.Settings.Float("ocr_confidence")

	args := []string{
		"--input", req.InputPath,
		"--output", reportPath,
		"--every-n-frames", fmt.Sprintf("%d", stride),
		"--ocr-confidence", formatFloat(confidence),
	}
	if faces {
		args = append(args, "--faces")
	}
	if text {
		args = append(args, "--text")
	}
	if !faces && !text {
		plugin.Log(b.Name(), "Both face and text detection disabled; nothing to do.", req.Logf)
		return nil, nil
	}

	result, runErr := b.runner.Run(ctx, b.detectorPath, args...)
	log := plugin.LogFor(b.detectorPath, args, result)
	if runErr != nil {
		return nil, &plugin.ProcessError{
			Plugin:     b.Name(),
			Message:    "pii-detect failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	raw, err := b.readFile(reportPath)
	if err != nil {
		return nil, &plugin.ProcessError{
			Plugin:     b.Name(),
			Message:    "pii-detect completed but region report is missing",
			CommandLog: log,
			Err:        err,
		}
	}

	var report struct {
		Regions []blurRegion `json:"regions"`
	}
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, &plugin.ProcessError{
			Plugin:     b.Name(),
			Message:    "pii-detect region report is not valid JSON",
			CommandLog: log,
			Err:        err,
		}
	}
	return report.Regions, nil
}

// buildBlurArgs assembles an ffmpeg filter_complex that boxblurs each
// region crop and overlays it back over its frame range.
func buildBlurArgs(inputPath, outputPath string, regions []blurRegion, strength int) []string {
	var filter strings.Builder
	last := "[0:v]"
	for i, r := range regions {
		base := fmt.Sprintf("[base%d]", i)
		source := fmt.Sprintf("[src%d]", i)
		blurred := fmt.Sprintf("[blur%d]", i)
		out := fmt.Sprintf("[v%d]", i)
		fmt.Fprintf(&filter, "%ssplit%s%s;", last, base, source)
		fmt.Fprintf(&filter, "%scrop=%d:%d:%d:%d,boxblur=%d:%d%s;",
			source, r.Width, r.Height, r.X, r.Y, strength, strength, blurred)
		fmt.Fprintf(&filter, "%s%soverlay=%d:%d:enable='between(n,%d,%d)'%s",
			base, blurred, r.X, r.Y, r.StartFrame, r.EndFrame, out)
		if i < len(regions)-1 {
			filter.WriteString(";")
		}
		last = out
	}

	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-filter_complex", filter.String(),
		"-map", last,
		"-map", "0:a?",
		"-c:a", "copy",
		outputPath,
	}
}

// NewBlurForTests constructs the plugin with injectable dependencies.
func NewBlurForTests(
	ffmpegPath, detectorPath string,
	runner plugin.Runner,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readFile func(string) ([]byte, error),
) *Blur {
	return &Blur{
		ffmpegPath:   ffmpegPath,
		detectorPath: detectorPath,
		runner:       runner,
		lookPath:     lookPath,
		stat:         stat,
		mkdirAll:     os.MkdirAll,
		mkdirTemp:    os.MkdirTemp,
		removeAll:    os.RemoveAll,
		readFile:     readFile,
	}
}
