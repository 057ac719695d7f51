package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"video-pipeline/internal/diagnostics"
	"video-pipeline/internal/domain"
)

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, plugin dependencies, and paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

func runDoctor(cmd *cobra.Command) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(cmd.Context(), env.settings, env.registry.Plugins())

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed, color.Bold)
	faint := color.New(color.Faint)

	for _, item := range report.Items {
		mark := green.Sprint("✔")
		if item.Status == domain.DiagnosticStatusFail {
			mark = red.Sprint("✘")
		}
		fmt.Printf("%s %s: %s\n", mark, item.Name, item.Message)
		if item.Hint != "" {
			fmt.Printf("  %s\n", faint.Sprint(item.Hint))
		}
	}

	if report.HasFailures {
		return fmt.Errorf("some checks failed")
	}
	return nil
}
