package cmd

import (
	"os"

	"github.com/josephlewis42/forksh/core"
	"github.com/josephlewis42/forksh/core/config"
	"github.com/josephlewis42/forksh/core/jobs"
	"github.com/josephlewis42/forksh/core/vos"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var handoffFd int

// childCmd is how a shell runs a subshell or pipeline stage in a new process.
var childCmd = &cobra.Command{
	Use:    core.ChildCommand,
	Short:  "Run a script handed over by a parent shell.",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := os.NewFile(uintptr(handoffFd), "handoff")
		handoff, err := core.DecodeHandoff(f)
		f.Close()
		if err != nil {
			return err
		}

		configuration := config.Default()
		if handoff.ConfigDir != "" {
			if loaded, err := config.Load(afero.NewOsFs(), handoff.ConfigDir); err == nil {
				configuration = loaded
			}
		}
		diag, err := newDiagLogger(cmd.ErrOrStderr(), configuration)
		if err != nil {
			return err
		}
		audit, closeAudit := openAudit(configuration, handoff.SessionID, diag)
		defer closeAudit()

		sys := vos.NewHostOS()
		env := core.ChildEnv(sys, handoff, core.InheritedFile,
			jobs.WithOutput(cmd.ErrOrStderr()),
			jobs.WithLogger(diag),
			jobs.OnFinish(core.JobRecorder(audit, diag)))

		shell := core.NewShell(sys, env,
			core.WithLogger(diag),
			core.WithAudit(audit),
			core.WithConfigDir(handoff.ConfigDir))
		return exitStatus(shell.RunHandoff(handoff))
	},
}

func init() {
	rootCmd.AddCommand(childCmd)
	childCmd.Flags().IntVar(&handoffFd, core.HandoffFlag, 3, "descriptor to read the handoff from")
}
