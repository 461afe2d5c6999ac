package core

import (
	"errors"
	"strings"

	"github.com/josephlewis42/forksh/commands"
	"github.com/josephlewis42/forksh/core/ast"
	"github.com/josephlewis42/forksh/core/jobs"
	"github.com/josephlewis42/forksh/core/logger"
	"github.com/josephlewis42/forksh/core/shellerr"
	"github.com/josephlewis42/forksh/core/state"
)

// callFunction runs a function body in the current process. Everything the
// body changes except $? is rolled back when it returns, even on error.
func (s *Shell) callFunction(c *call) error {
	body, _ := s.Env.Logic.Func(c.argv[0])

	ctx, release, err := s.redirect(c.node.Redirs, s.Env.Ctx)
	if err != nil {
		return err
	}
	defer release()

	snap := s.Env.Snapshot()
	defer func() {
		status := s.Env.Vars.Status()
		s.Env.Restore(snap)
		s.Env.Vars.SetStatus(status)
	}()

	s.Env.Ctx = ctx
	s.Env.Vars.SetParams(c.argv[1:])

	tree, err := s.Parse(c.argv[0], body)
	if err != nil {
		return shellerr.Wrap(shellerr.Parse, err, "function %s", c.argv[0])
	}
	return s.Walk(tree, state.MustFork)
}

// execSubshell runs a parenthesized body in isolation. Unless the process
// is already isolated, the body runs in a child shell.
func (s *Shell) execSubshell(sub *ast.Subshell, mode state.ExecMode) error {
	body := subshellBody(sub.Body)
	if err := s.audit.Record(&logger.RunCommand{Command: []string{sub.Body}, Kind: logger.KindSubshell}); err != nil {
		s.log.Warn("couldn't record subshell", "err", err)
	}

	if mode == state.AlreadyIsolated {
		s.runIsolated(sub, body)
		return nil
	}

	pid, err := s.startSubshell(sub, body)
	if err != nil {
		return err
	}
	job := jobs.NewBuilder().
		WithChildren(jobs.NewChildProc(pid, "subshell", pid)).
		WithCommand("anonymous subshell").
		Build()
	return s.Env.Jobs.WaitFg(job, s.Env.Vars)
}

func (s *Shell) startSubshell(sub *ast.Subshell, body string) (int, error) {
	snap := s.Env.Snapshot()
	defer s.Env.Restore(snap)

	ctx, release, err := s.redirect(sub.Redirs, s.Env.Ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	return s.forkShell(ModeBody, body, ctx, 0)
}

// runIsolated walks body in this process and exits with its status.
func (s *Shell) runIsolated(sub *ast.Subshell, body string) {
	code := func() int {
		ctx, release, err := s.redirect(sub.Redirs, s.Env.Ctx)
		if err != nil {
			s.Report(err)
			return shellerr.StatusFailure
		}
		defer release()
		s.Env.Ctx = ctx

		tree, err := s.Parse("subshell", body)
		if err != nil {
			s.Report(shellerr.Wrap(shellerr.Parse, err, "subshell"))
			return shellerr.StatusFailure
		}

		var exit *commands.ExitRequest
		switch err := s.Walk(tree, state.MustFork); {
		case err == nil:
			return s.Env.Vars.Status()
		case errors.As(err, &exit):
			return exit.Status
		default:
			s.Report(err)
			return shellerr.StatusFailure
		}
	}()
	s.log.Debug("isolated subshell exiting", "code", code)
	s.OS.Exit(code)
}

func subshellBody(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "(")
	text = strings.TrimSuffix(text, ")")
	return text
}
