package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"video-pipeline/internal/plugin"
	"video-pipeline/internal/setting"
)

// clipEntry is one exported clip recorded in clips_manifest.json.
type clipEntry struct {
	File     string  `json:"file"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

var showinfoPTS = regexp.MustCompile(`pts_time:([0-9]+(?:\.[0-9]+)?)`)

// AutoClip detects scene changes (or fixed intervals) and exports each
// segment as a standalone clip. The pipeline stage output is an untouched
// copy of the input; the clips are side artifacts.
type AutoClip struct {
	ffmpegPath  string
	ffprobePath string
	runner      plugin.Runner
	lookPath    func(string) (string, error)
	stat        func(string) (os.FileInfo, error)
	mkdirAll    func(string, os.FileMode) error
	writeFile   func(string, []byte, os.FileMode) error
}

// NewAutoClip constructs the auto clip plugin.
func NewAutoClip() *AutoClip {
	return &AutoClip{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		runner:      &plugin.ExecRunner{},
		lookPath:    exec.LookPath,
		stat:        os.Stat,
		mkdirAll:    os.MkdirAll,
		writeFile:   os.WriteFile,
	}
}

// Name returns the plugin display name.
func (a *AutoClip) Name() string { return "Auto Clip & Reels" }

// Description returns the plugin card description.
func (a *AutoClip) Description() string {
	return "Splits the video into clips at scene changes or fixed intervals"
}

// Icon returns the plugin card icon.
func (a *AutoClip) Icon() string { return "🎬" }

// SettingsSchema declares clip detection and export parameters.
func (a *AutoClip) SettingsSchema() []setting.Schema {
	sceneMin, sceneMax := 0.0, 1.0
	durMin := 0.0
	countMin := 0.0
	intervalMin := 1.0
	return []setting.Schema{
		{
			Key:     "clip_mode",
			Label:   "Clip Detection Mode",
			Kind:    setting.KindChoice,
			Default: setting.ChoiceValue("scene_detect"),
			Help:    "Cut at detected scene changes or at a fixed interval",
			Choices: []string{"scene_detect", "fixed_interval"},
		},
		{
			Key:     "scene_threshold",
			Label:   "Scene Change Threshold",
			Kind:    setting.KindFloat,
			Default: setting.FloatValue(0.3),
			Help:    "Lower values cut more often (scene_detect mode)",
			Min:     &sceneMin,
			Max:     &sceneMax,
		},
		{
			Key:     "interval_seconds",
			Label:   "Clip Interval (seconds)",
			Kind:    setting.KindFloat,
			Default: setting.FloatValue(60),
			Help:    "Clip length in fixed_interval mode",
			Min:     &intervalMin,
		},
		{
			Key:     "min_clip_duration",
			Label:   "Minimum Clip Duration (seconds)",
			Kind:    setting.KindFloat,
			Default: setting.FloatValue(3),
			Help:    "Segments shorter than this are skipped",
			Min:     &durMin,
		},
		{
			Key:     "max_clip_duration",
			Label:   "Maximum Clip Duration (seconds)",
			Kind:    setting.KindFloat,
			Default: setting.FloatValue(90),
			Help:    "Longer segments are truncated to this length (0 = no limit)",
			Min:     &durMin,
		},
		{
			Key:     "max_clips",
			Label:   "Maximum Number of Clips",
			Kind:    setting.KindInt,
			Default: setting.IntValue(0),
			Help:    "Stop after this many clips (0 = no limit)",
			Min:     &countMin,
		},
		{
			Key:     "reels_format",
			Label:   "Export as Vertical Reels (1080x1920)",
			Kind:    setting.KindBool,
			Default: setting.BoolValue(false),
			Help:    "Re-encode each clip cropped and scaled to 9:16",
		},
		{
			Key:     "output_dir",
			Label:   "Clips Output Directory (optional)",
			Kind:    setting.KindString,
			Default: setting.StringValue(""),
			Help:    "Defaults to a <video>_clips folder beside the original input",
		},
	}
}

// CheckDependencies requires both ffmpeg and ffprobe.
func (a *AutoClip) CheckDependencies(ctx context.Context) plugin.Health {
	var missing []string
	for _, tool := range []string{a.ffmpegPath, a.ffprobePath} {
		if _, err := a.lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return plugin.Health{OK: false, Message: missingTools(missing)}
	}
	return plugin.Health{OK: true, Message: "OK"}
}

// Process exports clips and passes the input video through unchanged.
func (a *AutoClip) Process(ctx context.Context, req plugin.ProcessRequest) (string, error) {
	plugin.Log(a.Name(), "Starting clip export...", req.Logf)

	if err := ensureParentDir(req.OutputPath, a.mkdirAll); err != nil {
		return "", &plugin.ProcessError{
			Plugin:  a.Name(),
			Message: fmt.Sprintf("cannot create output directory for %s", req.OutputPath),
			Err:     err,
		}
	}

	duration, perr := a.probeDuration(ctx, req.InputPath)
	if perr != nil {
		return "", perr
	}

	cuts, perr := a.detectCuts(ctx, req, duration)
	if perr != nil {
		return "", perr
	}

	minDur, _ := req.Settings.Float("min_clip_duration")
	maxDur, _ := req.Settings.Float("max_clip_duration")
	maxClips, _ := req.Settings.Int("max_clips")
	segments := buildSegments(cuts, duration, minDur, maxDur, maxClips)

	clipsDir, perr := a.clipsDir(req)
	if perr != nil {
		return "", perr
	}

	var manifest []clipEntry
	reels, _ := req.Settings.Bool("reels_format")
	for i, seg := range segments {
		name := fmt.Sprintf("segment_%02d%s", i+1, suffixOrMP4(req.InputPath))
		if reels {
			name = fmt.Sprintf("segment_%02d.mp4", i+1)
		}
		clipPath := filepath.Join(clipsDir, name)
		plugin.Log(a.Name(), fmt.Sprintf("Exporting %s (%.1fs - %.1fs)...", name, seg.start, seg.end), req.Logf)

		args := buildClipArgs(req.InputPath, clipPath, seg, reels)
		result, runErr := a.runner.Run(ctx, a.ffmpegPath, args...)
		if runErr != nil {
			return "", &plugin.ProcessError{
				Plugin:     a.Name(),
				Message:    fmt.Sprintf("clip export failed for %s", name),
				CommandLog: plugin.LogFor(a.ffmpegPath, args, result),
				Err:        runErr,
			}
		}
		manifest = append(manifest, clipEntry{
			File:     name,
			Start:    seg.start,
			End:      seg.end,
			Duration: seg.end - seg.start,
		})
	}

	if perr := a.writeManifest(clipsDir, manifest); perr != nil {
		return "", perr
	}

	if err := copyFile(req.InputPath, req.OutputPath); err != nil {
		return "", &plugin.ProcessError{
			Plugin:  a.Name(),
			Message: "failed to pass input through to output",
			Err:     err,
		}
	}

	plugin.Log(a.Name(), fmt.Sprintf("Exported %d clip(s) to %s.", len(manifest), clipsDir), req.Logf)
	return req.OutputPath, nil
}

type segment struct {
	start float64
	end   float64
}

// probeDuration asks ffprobe for the container duration in seconds.
func (a *AutoClip) probeDuration(ctx context.Context, inputPath string) (float64, *plugin.ProcessError) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	}
	result, runErr := a.runner.Run(ctx, a.ffprobePath, args...)
	log := plugin.LogFor(a.ffprobePath, args, result)
	if runErr != nil {
		return 0, &plugin.ProcessError{
			Plugin:     a.Name(),
			Message:    "ffprobe failed to read video duration",
			CommandLog: log,
			Err:        runErr,
		}
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(result.Stdout), 64)
	if err != nil || duration <= 0 {
		return 0, &plugin.ProcessError{
			Plugin:     a.Name(),
			Message:    fmt.Sprintf("ffprobe reported an unusable duration: %q", strings.TrimSpace(result.Stdout)),
			CommandLog: log,
			Err:        err,
		}
	}
	return duration, nil
}

// detectCuts returns ascending cut timestamps strictly inside (0, duration).
func (a *AutoClip) detectCuts(ctx context.Context, req plugin.ProcessRequest, duration float64) ([]float64, *plugin.ProcessError) {
	mode, _ := req.Settings.String("clip_mode")
	if mode == "fixed_interval" {
		interval, _ := req.Settings.Float("interval_seconds")
		var cuts []float64
		for t := interval; t < duration; t += interval {
			cuts = append(cuts, t)
		}
		return cuts, nil
	}

	threshold, _ := req.Settings.Float("scene_threshold")
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-i", req.InputPath,
		"-vf", fmt.Sprintf("select='gt(scene,%s)',showinfo", formatFloat(threshold)),
		"-f", "null",
		"-",
	}
	result, runErr := a.runner.Run(ctx, a.ffmpegPath, args...)
	if runErr != nil {
		return nil, &plugin.ProcessError{
			Plugin:     a.Name(),
			Message:    "ffmpeg scene detection failed",
			CommandLog: plugin.LogFor(a.ffmpegPath, args, result),
			Err:        runErr,
		}
	}
	return parseSceneTimestamps(result.Stderr, duration), nil
}

// parseSceneTimestamps extracts pts_time values from showinfo output,
// dropping duplicates and cuts at or beyond the end of the video.
func parseSceneTimestamps(stderr string, duration float64) []float64 {
	var cuts []float64
	seen := -1.0
	for _, match := range showinfoPTS.FindAllStringSubmatch(stderr, -1) {
		t, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		if t <= seen || t <= 0 || t >= duration {
			continue
		}
		cuts = append(cuts, t)
		seen = t
	}
	return cuts
}

// buildSegments turns cut timestamps into exportable segments, applying
// duration filters and the clip count limit.
func buildSegments(cuts []float64, duration, minDur, maxDur float64, maxClips int) []segment {
	boundaries := append([]float64{0}, cuts...)
	boundaries = append(boundaries, duration)

	var segments []segment
	for i := 0; i+1 < len(boundaries); i++ {
		seg := segment{start: boundaries[i], end: boundaries[i+1]}
		if seg.end-seg.start < minDur {
			continue
		}
		if maxDur > 0 && seg.end-seg.start > maxDur {
			seg.end = seg.start + maxDur
		}
		segments = append(segments, seg)
		if maxClips > 0 && len(segments) >= maxClips {
			break
		}
	}
	return segments
}

// buildClipArgs assembles the ffmpeg invocation for one clip. Original
// format clips are stream-copied; reels clips are re-encoded to 9:16.
func buildClipArgs(inputPath, clipPath string, seg segment, reels bool) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-ss", formatFloat(seg.start),
		"-i", inputPath,
		"-t", formatFloat(seg.end - seg.start),
	}
	if reels {
		args = append(args,
			"-vf", "crop=ih*9/16:ih,scale=1080:1920",
			"-c:v", "libx264",
			"-preset", "fast",
			"-c:a", "aac",
		)
	} else {
		args = append(args, "-c", "copy")
	}
	return append(args, clipPath)
}

// clipsDir resolves and creates the directory that receives the clips.
func (a *AutoClip) clipsDir(req plugin.ProcessRequest) (string, *plugin.ProcessError) {
	dir, _ := req.Settings.String("output_dir")
	if strings.TrimSpace(dir) == "" {
		base := req.OriginalPath
		if base == "" {
			base = req.InputPath
		}
		stem := strings.TrimSuffix(filepath.Base(base), filepath.Ext(base))
		dir = filepath.Join(filepath.Dir(base), stem+"_clips")
	}
	if err := a.mkdirAll(dir, 0o755); err != nil {
		return "", &plugin.ProcessError{
			Plugin:  a.Name(),
			Message: fmt.Sprintf("cannot create clips directory %s", dir),
			Err:     err,
		}
	}
	return dir, nil
}

// writeManifest records the exported clips as clips_manifest.json.
func (a *AutoClip) writeManifest(clipsDir string, manifest []clipEntry) *plugin.ProcessError {
	if manifest == nil {
		manifest = []clipEntry{}
	}
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return &plugin.ProcessError{Plugin: a.Name(), Message: "failed to encode clips manifest", Err: err}
	}
	path := filepath.Join(clipsDir, "clips_manifest.json")
	if err := a.writeFile(path, payload, 0o644); err != nil {
		return &plugin.ProcessError{Plugin: a.Name(), Message: "failed to write clips manifest", Err: err}
	}
	return nil
}

// NewAutoClipForTests constructs the plugin with injectable dependencies.
func NewAutoClipForTests(
	ffmpegPath, ffprobePath string,
	runner plugin.Runner,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	writeFile func(string, []byte, os.FileMode) error,
) *AutoClip {
	return &AutoClip{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
		lookPath:    lookPath,
		stat:        stat,
		mkdirAll:    mkdirAll,
		writeFile:   writeFile,
	}
}
