package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"video-pipeline/internal/setting"
)

func newPluginsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List discovered plugins with their settings and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listPlugins(cmd)
		},
	}
}

func listPlugins(cmd *cobra.Command) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed, color.Bold)
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	for _, p := range env.registry.Plugins() {
		state := env.settings.PluginState(p.Name())
		health := p.CheckDependencies(cmd.Context())

		enabled := faint.Sprint("disabled")
		if state.Enabled {
			enabled = green.Sprint("enabled")
		}
		status := green.Sprint("ok")
		if !health.OK {
			status = red.Sprint("missing deps")
		}

		fmt.Printf("%s %s  [%s, %s]\n", p.Icon(), bold.Sprint(p.Name()), enabled, status)
		fmt.Printf("   %s\n", p.Description())
		if health.Message != "" {
			fmt.Printf("   %s\n", faint.Sprint(health.Message))
		}
		for _, schema := range p.SettingsSchema() {
			value := setting.Raw([]setting.Schema{schema}, setting.Values{schema.Key: schema.Default})[schema.Key]
			if stored, ok := state.Settings[schema.Key]; ok {
				value = stored
			}
			fmt.Printf("   %s = %s\n", schema.Key, value)
		}
		fmt.Println()
	}

	for _, discErr := range env.registry.DiscoveryErrors() {
		fmt.Printf("%s %s: %s\n", red.Sprint("skipped"), discErr.Path, discErr.Message)
	}
	return nil
}
