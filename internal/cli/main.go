// Package cli is the headless companion to the desktop app: the same
// plugin registry and stage runner driven from the terminal.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"video-pipeline/internal/config"
)

// Main builds the command tree and executes it.
func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "vidpipe",
		Short:        "Run the video processing pipeline from the terminal",
		SilenceUsage: true,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().String("settings", config.DefaultSettingsPath(), "Settings file")

	root.AddCommand(newRunCommand())
	root.AddCommand(newPluginsCommand())
	root.AddCommand(newDoctorCommand())
	root.AddCommand(newInstallCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEnvironment resolves settings and the registry for one invocation.
func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	settingsPath, _ := cmd.Flags().GetString("settings")
	store := config.NewJSONStore(settingsPath)
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return newEnvironment(store, settings), nil
}
