package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"video-pipeline/internal/domain"
	"video-pipeline/internal/pipeline"
	"video-pipeline/internal/registry"
	"video-pipeline/internal/setting"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Process one video through the enabled plugins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args[0])
		},
	}

	cmd.Flags().StringSlice("only", nil, "Run only these plugins, in registry order")
	cmd.Flags().Bool("verbose", false, "Print every tool log line")
	return cmd
}

func runPipeline(cmd *cobra.Command, input string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	only, _ := cmd.Flags().GetStringSlice("only")
	verbose, _ := cmd.Flags().GetBool("verbose")

	stages, err := selectStages(env.registry, env.settings, only)
	if err != nil {
		return err
	}

	absInput, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	magenta := color.New(color.FgMagenta)

	fmt.Println()
	_, _ = cyan.Println("PIPELINE")
	fmt.Printf("  %s %s\n", color.New(color.Bold).Sprint("Input:"), absInput)
	for i, stage := range stages {
		fmt.Printf("  %s %d. %s\n", magenta.Sprint("›"), i+1, stage.Plugin.Name())
	}
	fmt.Println()

	bar := progressbar.NewOptions(len(stages),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	req := pipeline.Request{
		InputPath: absInput,
		Stages:    stages,
		OnStage: func(index int, name string) {
			bar.Describe(name)
			if index > 0 {
				_ = bar.Add(1)
			}
		},
		OnLog: func(message string) {
			if verbose {
				_, _ = fmt.Fprintln(os.Stderr, message)
			}
		},
	}

	runner := pipeline.NewRunner()
	result, err := runner.Run(ctx, req)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	fmt.Println()
	_, _ = green.Printf("Done: %s\n", result.OutputPath)
	return nil
}

// selectStages collects enabled plugins in registry order. An --only list
// overrides the stored enabled flags but keeps stored settings.
func selectStages(reg *registry.Registry, settings domain.Settings, only []string) ([]pipeline.Stage, error) {
	wanted := map[string]bool{}
	for _, name := range only {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, known := reg.Lookup(trimmed); !known {
			return nil, fmt.Errorf("unknown plugin: %s", trimmed)
		}
		wanted[trimmed] = true
	}

	var stages []pipeline.Stage
	for _, p := range reg.Plugins() {
		state := settings.PluginState(p.Name())
		if len(wanted) > 0 {
			if !wanted[p.Name()] {
				continue
			}
		} else if !state.Enabled {
			continue
		}

		values, err := setting.Coerce(p.SettingsSchema(), state.Settings)
		if err != nil {
			return nil, fmt.Errorf("settings for %s: %w", p.Name(), err)
		}
		stages = append(stages, pipeline.Stage{Plugin: p, Settings: values})
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("no plugins are enabled")
	}
	return stages, nil
}
