package cmd

import (
	"os"
	"time"

	"github.com/josephlewis42/forksh/core/ttylog"
	"github.com/spf13/cobra"
)

var (
	idleTimeLimit time.Duration
	castWidth     int
	castHeight    int
)

var logsCmd = &cobra.Command{
	Use:     "logs",
	Aliases: []string{"log"},
	Short:   "Explore terminal recordings of SSH sessions.",
}

// playCommand replays a recording with its original timing
var playCommand = &cobra.Command{
	Use:   "play RECORDING",
	Short: "Replay a recorded interactive session in the terminal.",
	Long:  `Plays a recorded interactive session back to the current terminal.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		sink := ttylog.NewClientOutput(cmd.OutOrStdout())
		sink = ttylog.NewRealTimePlayback(idleTimeLimit, sink)
		return ttylog.Replay(ttylog.NewLogSource(args[0], fd), sink)
	},
}

// catCommand prints a recording's output at once
var catCommand = &cobra.Command{
	Use:   "cat RECORDING",
	Short: "Print full output of recorded log to a terminal.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		sink := ttylog.NewClientOutput(cmd.OutOrStdout())
		return ttylog.Replay(ttylog.NewLogSource(args[0], fd), ttylog.NewNewlineAdapter(sink))
	},
}

// asciicastCmd converts a log to the asciicast format
var asciicastCmd = &cobra.Command{
	Use:   "asciicast INPUT.log > OUTPUT.cast",
	Short: "Convert a recording to asciicast (asciinema) format.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		sink := ttylog.NewAsciicastLogSink(cmd.OutOrStdout(), castWidth, castHeight)
		return ttylog.Replay(ttylog.NewLogSource(args[0], fd), sink)
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(playCommand)
	logsCmd.AddCommand(asciicastCmd)
	logsCmd.AddCommand(catCommand)

	// cat doesn't allow idle time
	playCommand.Flags().DurationVarP(&idleTimeLimit, "idle-time-limit", "i", 3*time.Second, "Maximum time output can be idle. (e.g. 3s, 2m, 100ms)")

	asciicastCmd.Flags().IntVar(&castWidth, "width", 80, "terminal width to record")
	asciicastCmd.Flags().IntVar(&castHeight, "height", 24, "terminal height to record")
}
