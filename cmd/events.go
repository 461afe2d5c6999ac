package cmd

import (
	"fmt"

	"github.com/josephlewis42/forksh/core/config"
	"github.com/josephlewis42/forksh/core/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Explore the audit log.",
}

// reportOn builds a command that feeds every audit log entry to update and
// prints report as YAML.
func reportOn(use, short string, newReport func() (report interface{}, update func(*logger.LogEntry))) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			configuration, err := config.Load(afero.NewOsFs(), configDir())
			if err != nil {
				return err
			}
			fd, err := configuration.ReadAppLog()
			if err != nil {
				return err
			}
			defer fd.Close()

			report, update := newReport()
			if err := logger.ReadJSONLinesLog(fd, update); err != nil {
				return err
			}

			out, err := yaml.Marshal(report)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.AddCommand(reportOn("report", "Summarize sessions, commands and jobs.", func() (interface{}, func(*logger.LogEntry)) {
		var report logger.Report
		return &report, report.Update
	}))
	eventsCmd.AddCommand(reportOn("bugs", "List shell errors and commands that couldn't be found.", func() (interface{}, func(*logger.LogEntry)) {
		report := logger.NewBugReport()
		return report, report.Update
	}))
	eventsCmd.AddCommand(reportOn("interactions", "Show what each session ran, in order.", func() (interface{}, func(*logger.LogEntry)) {
		var report logger.InteractionReport
		return &report, report.Update
	}))
}
