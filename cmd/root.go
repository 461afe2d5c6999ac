package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/josephlewis42/forksh/commands"
	"github.com/josephlewis42/forksh/core"
	"github.com/josephlewis42/forksh/core/config"
	"github.com/josephlewis42/forksh/core/jobs"
	"github.com/josephlewis42/forksh/core/logger"
	"github.com/josephlewis42/forksh/core/vos"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfgPath     string
	logLevel    string
	command     string
	interactive bool
	sessionID   string
)

// exitStatus ends the process with a status and no message.
type exitStatus int

func (e exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// loadConfig loads the configuration directory, or the built-in defaults if
// none was given.
func loadConfig() (*config.Configuration, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	configuration, err := config.Load(afero.NewOsFs(), cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("couldn't load config, did you run init? %w", err)
	}
	return configuration, err
}

// configDir is where init and serve keep their files.
func configDir() string {
	if cfgPath == "" {
		return "."
	}
	return cfgPath
}

func newDiagLogger(w io.Writer, configuration *config.Configuration) (*log.Logger, error) {
	name := logLevel
	if name == "" {
		name = configuration.LogLevel
	}
	level, err := logger.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return logger.New(w, level), nil
}

// openAudit returns the audit session for this process. It records nothing
// when auditing is off or there's no configuration directory.
func openAudit(configuration *config.Configuration, id string, diag *log.Logger) (*logger.SessionLogger, func()) {
	if !configuration.AuditLog || configuration.Dir() == "" {
		return nil, func() {}
	}
	f, err := configuration.OpenAppLog()
	if err != nil {
		diag.Warn("couldn't open audit log", "err", err)
		return nil, func() {}
	}
	recorder := logger.NewJsonLinesLogRecorder(f)
	if id == "" {
		return recorder.NewSession(), func() { f.Close() }
	}
	return recorder.Session(id), func() { f.Close() }
}

var rootCmd = &cobra.Command{
	Use:   "forksh [flags] [SCRIPT [ARG ...]]",
	Short: "A job control shell.",
	Long: `forksh runs commands from a string, a script file, standard input or an
interactive prompt. Subshells and pipeline stages run in copies of forksh
started with the shell's state.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		configuration, err := loadConfig()
		if err != nil {
			return err
		}
		diag, err := newDiagLogger(cmd.ErrOrStderr(), configuration)
		if err != nil {
			return err
		}
		audit, closeAudit := openAudit(configuration, sessionID, diag)
		defer closeAudit()

		sys := vos.NewHostOS()
		isTerminal := term.IsTerminal(int(os.Stdin.Fd()))
		isInteractive := interactive || (command == "" && len(args) == 0 && isTerminal)
		if isInteractive {
			if err := core.TakeTerminal(sys, int(os.Stdin.Fd())); err != nil {
				diag.Warn("couldn't take the terminal, job control is off", "err", err)
			}
		}

		if sessionID == "" {
			err := audit.Record(&logger.SessionStart{
				Username:    os.Getenv(core.EnvUser),
				Term:        os.Getenv("TERM"),
				IsPty:       isTerminal,
				Interactive: isInteractive,
				Args:        os.Args[1:],
			})
			if err != nil {
				diag.Warn("couldn't record session start", "err", err)
			}
		}

		jobOpts := []jobs.Option{
			jobs.WithOutput(cmd.ErrOrStderr()),
			jobs.WithLogger(diag),
			jobs.OnFinish(core.JobRecorder(audit, diag)),
		}
		if isInteractive {
			jobOpts = append(jobOpts, jobs.WithTerminal(int(os.Stdin.Fd())))
		}

		// With -c the first argument is $0 like for a script.
		arg0 := os.Args[0]
		var params []string
		if len(args) > 0 {
			arg0, params = args[0], args[1:]
		}

		env := core.NewEnv(sys, arg0, jobOpts...)
		env.Interactive = isInteractive
		env.Vars.SetParams(params)
		if _, ok := env.Vars.Lookup(commands.EnvPath); !ok {
			env.Vars.Export(commands.EnvPath, configuration.DefaultPath)
		}
		for name, body := range configuration.Aliases {
			env.Logic.SetAlias(name, body)
		}

		shell := core.NewShell(sys, env,
			core.WithLogger(diag),
			core.WithAudit(audit),
			core.WithConfigDir(configuration.Dir()))

		var exit *commands.ExitRequest
		switch {
		case command != "":
			exit = shell.Run("-c", command)
		case len(args) > 0:
			src, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", core.Name, err)
				return exitStatus(127)
			}
			exit = shell.Run(args[0], string(src))
		case isInteractive:
			repl, err := core.NewREPL(shell, configuration, os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer repl.Close()
			return exitStatus(repl.Run())
		default:
			src, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			exit = shell.Run("stdin", string(src))
		}

		if exit != nil {
			return exitStatus(exit.Status)
		}
		return exitStatus(env.Vars.Status())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	var status exitStatus
	switch {
	case errors.As(err, &status):
		os.Exit(int(status))
	case err != nil:
		fmt.Fprintf(os.Stderr, "%s: %v\n", core.Name, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "configuration directory, built-in defaults if empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "diagnostics level (debug|info|warn|error)")

	flags := rootCmd.Flags()
	flags.SetInterspersed(false)
	flags.StringVarP(&command, "command", "c", "", "run COMMAND instead of reading a script")
	flags.BoolVarP(&interactive, "interactive", "i", false, "force an interactive prompt")
	flags.StringVar(&sessionID, core.SessionFlag, "", "continue an existing audit session")
	_ = flags.MarkHidden(core.SessionFlag)
}
