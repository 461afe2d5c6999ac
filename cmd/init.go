package cmd

import (
	"github.com/josephlewis42/forksh/core/config"
	"github.com/josephlewis42/forksh/core/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// initCmd creates a configuration directory
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the shell configuration in the --config directory, or the current one.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		name := logLevel
		if name == "" {
			name = "info"
		}
		level, err := logger.ParseLevel(name)
		if err != nil {
			return err
		}
		return config.Initialize(afero.NewOsFs(), configDir(), logger.New(cmd.ErrOrStderr(), level))
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
