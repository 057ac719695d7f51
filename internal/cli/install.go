package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"video-pipeline/internal/registry"
)

func newInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install <name-or-repo>",
		Short: "Install a plugin from the index or a git repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return installPlugin(cmd, args[0])
		},
	}
}

func installPlugin(cmd *cobra.Command, source string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	if env.settings.PluginDir == "" {
		return fmt.Errorf("plugin directory is not configured")
	}

	installer := registry.NewInstaller(env.settings.PluginDir)
	path, err := installer.Install(cmd.Context(), source)
	if err != nil {
		return err
	}

	_, _ = color.New(color.FgGreen).Printf("Installed %s\n", path)
	return nil
}
