package cmd

import (
	"github.com/spf13/cobra"

	"github.com/G-Research/bitingest/internal/common"
	"github.com/G-Research/bitingest/internal/ingester/configuration"
)

const (
	configFlag        = "config"
	defaultConfigPath = "./config/bitingest"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bitingest",
		Short:        "bitingest puts every file a locator finds into a storage collection",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringSlice(
		configFlag,
		[]string{},
		"Fully qualified path to application configuration files, merged over the defaults in order")

	cmd.AddCommand(
		runCmd(),
		locateCmd(),
	)
	return cmd
}

func loadConfig(cmd *cobra.Command) (configuration.IngesterConfiguration, error) {
	var config configuration.IngesterConfiguration
	overrides, err := cmd.Flags().GetStringSlice(configFlag)
	if err != nil {
		return config, err
	}
	if _, err := common.ReadConfig(&config, defaultConfigPath, overrides); err != nil {
		return config, err
	}
	if err := common.SetLogLevel(config.LogLevel); err != nil {
		return config, err
	}
	return config, nil
}
