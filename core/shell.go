// Package core runs parsed command trees as operating system processes.
package core

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/josephlewis42/forksh/commands"
	"github.com/josephlewis42/forksh/core/ast"
	"github.com/josephlewis42/forksh/core/jobs"
	"github.com/josephlewis42/forksh/core/logger"
	"github.com/josephlewis42/forksh/core/parse"
	"github.com/josephlewis42/forksh/core/shellerr"
	"github.com/josephlewis42/forksh/core/state"
	"github.com/josephlewis42/forksh/core/vos"
)

// Name is used as the prefix of error messages.
const Name = "forksh"

// Shell executes syntax trees against an ExecEnv.
type Shell struct {
	OS  vos.VOS
	Env *state.ExecEnv

	parser  *parse.Parser
	log     *log.Logger
	audit   *logger.SessionLogger
	history commands.History

	// configDir is passed on to child shells.
	configDir string

	// source is the text of the tree being walked, node spans index it.
	source string
}

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the diagnostics logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Shell) {
		s.log = l
	}
}

// WithAudit records dispatched commands and errors to session.
func WithAudit(session *logger.SessionLogger) Option {
	return func(s *Shell) {
		s.audit = session
	}
}

// WithHistory exposes the interactive history to the history builtin.
func WithHistory(h commands.History) Option {
	return func(s *Shell) {
		s.history = h
	}
}

// WithConfigDir sets the configuration directory child shells load.
func WithConfigDir(dir string) Option {
	return func(s *Shell) {
		s.configDir = dir
	}
}

// NewShell creates a shell.
func NewShell(sys vos.VOS, env *state.ExecEnv, opts ...Option) *Shell {
	s := &Shell{
		OS:     sys,
		Env:    env,
		parser: parse.New(parse.WithBuiltins(commands.IsBuiltin)),
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewEnv creates the environment of a top level shell from the process's
// own environment.
func NewEnv(sys vos.VOS, arg0 string, opts ...jobs.Option) *state.ExecEnv {
	vars := state.NewVarsFromEnviron(sys.Environ())
	vars.SetArg0(arg0)
	vars.SetPid(sys.Getpid())
	return state.New(vars, jobs.NewTable(sys, opts...))
}

// JobRecorder returns a jobs.OnFinish callback that audits finished jobs.
func JobRecorder(session *logger.SessionLogger, l *log.Logger) func(*jobs.Job) {
	return func(job *jobs.Job) {
		err := session.Record(&logger.JobFinished{
			Command: job.Command,
			Pgid:    job.Pgid,
			Pids:    job.Pids(),
			Status:  job.Status(),
		})
		if err != nil {
			l.Warn("couldn't record job", "err", err)
		}
	}
}

// Parse parses src, flagging builtin commands.
func (s *Shell) Parse(name, src string) (*ast.SynTree, error) {
	return s.parser.Parse(name, src)
}

// Run parses and runs src.
func (s *Shell) Run(name, src string) *commands.ExitRequest {
	tree, err := s.Parse(name, src)
	if err != nil {
		s.Report(err)
		return nil
	}
	return s.RunTree(tree)
}

// RunTree walks tree. A failing list is reported and the walk resumes with
// the next one. It returns early only when the shell is asked to exit.
func (s *Shell) RunTree(tree *ast.SynTree) *commands.ExitRequest {
	for {
		err := s.Walk(tree, state.MustFork)
		if err == nil {
			return nil
		}
		var exit *commands.ExitRequest
		if errors.As(err, &exit) {
			return exit
		}
		s.Report(err)
	}
}

// Report prints err to the shell's stderr, sets $? from it and records it.
func (s *Shell) Report(err error) {
	s.Env.Vars.SetStatus(shellerr.StatusOf(err))
	s.printError(err)

	event := &logger.ShellError{Kind: shellerr.Internal.String(), Message: err.Error()}
	var shErr *shellerr.Error
	if errors.As(err, &shErr) {
		event.Kind = shErr.Kind.String()
		event.Line = shErr.Span.Line
		event.Col = shErr.Span.Col
	}
	if recErr := s.audit.Record(event); recErr != nil {
		s.log.Warn("couldn't record shell error", "err", recErr)
	}
}

func (s *Shell) printError(err error) {
	out := s.Env.Ctx.Stderr()
	if out == nil {
		return
	}
	msg := fmt.Sprintf("%s: %v", Name, err)
	if s.OS.IsTerminal(int(out.Fd())) {
		commands.ColorBoldRed.EnableColor()
		msg = commands.ColorBoldRed.Sprint(msg)
	}
	fmt.Fprintln(out, msg)
}

func (s *Shell) stderr() io.Writer {
	if out := s.Env.Ctx.Stderr(); out != nil {
		return out
	}
	return io.Discard
}

func (s *Shell) recordRun(c *call) {
	event := &logger.RunCommand{Command: c.argv, ResolvedCommandPath: c.path}
	switch c.kind {
	case callFunction:
		event.Kind = logger.KindFunction
	case callBuiltin:
		event.Kind = logger.KindBuiltin
	default:
		event.Kind = logger.KindExternal
	}
	if err := s.audit.Record(event); err != nil {
		s.log.Warn("couldn't record command", "err", err)
	}
}

func (s *Shell) recordUnknown(c *call, err *shellerr.Error) {
	unplaced := *err
	unplaced.Span = ast.Span{}
	event := &logger.UnknownCommand{
		Command:      c.argv,
		Status:       err.Status(),
		ErrorMessage: unplaced.Error(),
	}
	if recErr := s.audit.Record(event); recErr != nil {
		s.log.Warn("couldn't record unknown command", "err", recErr)
	}
}
