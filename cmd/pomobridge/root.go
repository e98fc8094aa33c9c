package main

import (
	"github.com/spf13/cobra"

	"pomobridge/internal/config"
)

const defaultConfigPath = "~/.pomo/pomobridge.yaml"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "pomobridge",
		Short:         "Bridge pomodoro timer status to local notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "config file (json, yaml or toml); missing means defaults")

	root.AddCommand(
		serveCmd(opts),
		sendCmd(opts),
		decodeCmd(),
		historyCmd(opts),
	)
	return root
}

// loadConfig parses and validates the config without watching it.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.NewConfigManager(o.configPath).Load()
}
