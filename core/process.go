package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/josephlewis42/forksh/core/ast"
	"github.com/josephlewis42/forksh/core/jobs"
	"github.com/josephlewis42/forksh/core/shellerr"
	"github.com/josephlewis42/forksh/core/state"
	"github.com/josephlewis42/forksh/core/vos"
)

func (s *Shell) runExternal(c *call, mode state.ExecMode) error {
	if mode == state.AlreadyIsolated {
		return s.execInPlace(c)
	}

	ctx, release, err := s.redirect(c.node.Redirs, s.Env.Ctx)
	if err != nil {
		return err
	}
	pid, err := s.spawnExternal(c, ctx, 0)
	release()
	if err != nil {
		return err
	}

	job := jobs.NewBuilder().
		WithChildren(jobs.NewChildProc(pid, c.argv[0], pid)).
		WithCommand(s.text(c.node)).
		Build()
	return s.Env.Jobs.WaitFg(job, s.Env.Vars)
}

// spawnExternal starts the program of c with the descriptors of ctx.
func (s *Shell) spawnExternal(c *call, ctx *state.Ctx, pgid int) (int, error) {
	pid, err := s.OS.StartProcess(c.path, c.argv, &vos.ProcAttr{
		Env:   s.Env.Vars.Environ(),
		Files: ctx.Files(),
		Pgid:  pgid,
	})
	if err != nil {
		return 0, s.execError(c, err)
	}
	s.log.Debug("started process", "pid", pid, "path", c.path, "pgid", pgid)
	return pid, nil
}

func (s *Shell) execError(c *call, err error) error {
	if errors.Is(err, syscall.ENOENT) {
		shErr := &shellerr.Error{Kind: shellerr.CmdNotFound, Msg: c.argv[0], Span: c.node.Span}
		s.recordUnknown(c, shErr)
		return shErr
	}
	return &shellerr.Error{Kind: shellerr.ExecFailed, Msg: c.argv[0], Span: c.node.Span, Err: err}
}

// execInPlace replaces the current process with the program of c.
func (s *Shell) execInPlace(c *call) error {
	ctx, release, err := s.redirect(c.node.Redirs, s.Env.Ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := s.installFds(s.Env.Ctx.Fds(), ctx); err != nil {
		return err
	}
	s.log.Debug("exec", "path", c.path, "argv", c.argv)
	if err := s.OS.Exec(c.path, c.argv, s.Env.Vars.Environ()); err != nil {
		return s.execError(c, err)
	}
	return nil
}

// installFds arranges the process's descriptors to match next before an
// exec. Sources that a later Dup2 would clobber are first moved above the
// table; descriptors in prev that next doesn't bind are closed.
func (s *Shell) installFds(prev []int, next *state.Ctx) error {
	files := next.Files()
	src := make([]int, len(files))
	for i, f := range files {
		src[i] = -1
		if f == nil {
			continue
		}
		fd := int(f.Fd())
		if fd < len(files) {
			moved, err := s.OS.DupAbove(fd, len(files))
			if err != nil {
				return shellerr.Wrap(shellerr.IO, err, "dup %d", fd)
			}
			fd = moved
		}
		src[i] = fd
	}

	for i, fd := range src {
		if fd < 0 {
			continue
		}
		if err := s.OS.Dup2(fd, i); err != nil {
			return shellerr.Wrap(shellerr.IO, err, "dup %d to %d", fd, i)
		}
	}

	for _, fd := range prev {
		if fd < len(files) && files[fd] != nil {
			continue
		}
		if err := s.OS.Close(fd); err != nil {
			s.log.Warn("couldn't close descriptor", "fd", fd, "err", err)
		}
	}
	return nil
}

// spawnStage starts node with the descriptors of base in process group
// pgid. External commands are started directly, everything else runs in a
// child shell. A stage that can't be set up here still gets a child shell,
// which reports the failure and exits nonzero without stopping its
// neighbours.
func (s *Shell) spawnStage(node ast.Node, base *state.Ctx, pgid int) (*jobs.ChildProc, error) {
	var redirs []*ast.Redir
	var script string
	switch n := node.(type) {
	case *ast.Command:
		redirs = n.Redirs
		script = rawWords(n.Argv)
	case *ast.Subshell:
		redirs = n.Redirs
		script = n.Body
	default:
		script = s.text(node)
	}

	ctx, release, err := s.redirect(redirs, base)
	if err != nil {
		s.log.Debug("stage redirection failed, deferring to child", "err", err)
		return s.spawnStageShell(s.text(node), base, pgid)
	}
	defer release()

	if cmd, ok := node.(*ast.Command); ok {
		c, err := s.resolve(cmd)
		if err == nil && c.kind == callExternal && c.lookErr == nil {
			s.recordRun(c)
			pid, err := s.spawnExternal(c, ctx, pgid)
			if err != nil {
				return nil, err
			}
			return jobs.NewChildProc(pid, c.argv[0], pgid), nil
		}
		if err != nil {
			s.log.Debug("stage resolution failed, deferring to child", "err", err)
		}
	}
	return s.spawnStageShell(script, ctx, pgid)
}

func (s *Shell) spawnStageShell(script string, ctx *state.Ctx, pgid int) (*jobs.ChildProc, error) {
	pid, err := s.forkShell(ModeStage, script, ctx, pgid)
	if err != nil {
		return nil, err
	}
	return jobs.NewChildProc(pid, firstWord(script), pgid), nil
}

// execPipeline starts every stage before waiting on any of them. All stages
// join the process group of the first.
func (s *Shell) execPipeline(p *ast.Pipeline, background bool) error {
	var children []*jobs.ChildProc
	pgid := 0
	stdin := s.Env.Ctx.Stdin()
	// pending is the read end of the last pipe, open until its reader is
	// started.
	var pending *os.File

	abandon := func(err error) error {
		if pending != nil {
			pending.Close()
		}
		if len(children) > 0 {
			job := jobs.NewBuilder().WithChildren(children...).WithPgid(pgid).Build()
			if waitErr := s.Env.Jobs.WaitFg(job, nil); waitErr != nil {
				s.log.Warn("couldn't wait for partial pipeline", "err", waitErr)
			}
		}
		return err
	}

	for i, stage := range p.Cmds {
		ctx := s.Env.Ctx.Clone()
		ctx.Set(0, stdin)

		var r, w *os.File
		if i < len(p.Cmds)-1 {
			var err error
			if r, w, err = s.OS.Pipe(); err != nil {
				return abandon(shellerr.Wrap(shellerr.IO, err, "pipe"))
			}
			ctx.Set(1, w)
			stdin = r
		}

		child, err := s.spawnStage(stage, ctx, pgid)
		if w != nil {
			w.Close()
		}
		if pending != nil {
			pending.Close()
		}
		pending = r
		if err != nil {
			return abandon(err)
		}
		if pgid == 0 {
			pgid = child.Pid
			child.Pgid = pgid
		}
		children = append(children, child)
	}

	job := jobs.NewBuilder().
		WithChildren(children...).
		WithPgid(pgid).
		WithCommand(s.text(p)).
		Build()
	if background {
		s.startBackground(job)
		return nil
	}
	return s.Env.Jobs.WaitFg(job, s.Env.Vars)
}

// background starts node without waiting for it.
func (s *Shell) background(node ast.Node) error {
	if p, ok := node.(*ast.Pipeline); ok {
		return s.execPipeline(p, true)
	}

	child, err := s.spawnStage(node, s.Env.Ctx, 0)
	if err != nil {
		return err
	}
	child.Pgid = child.Pid
	job := jobs.NewBuilder().
		WithChildren(child).
		WithCommand(s.text(node)).
		Build()
	s.startBackground(job)
	return nil
}

func (s *Shell) startBackground(job *jobs.Job) {
	id := s.Env.Jobs.Add(job)
	pids := job.Pids()
	last := pids[len(pids)-1]
	s.Env.Vars.SetLastBackground(last)
	s.Env.Vars.SetStatus(0)
	s.log.Debug("started background job", "id", id, "pgid", job.Pgid)
	if s.Env.Interactive {
		fmt.Fprintf(s.stderr(), "[%d] %d\n", id, last)
	}
}

// text returns the source of node in the tree being walked, without the
// list operator that may end it.
func (s *Shell) text(node ast.Node) string {
	text := strings.TrimSpace(node.Pos().Slice(s.source))
	if n := len(text); n > 1 && (text[n-1] == '&' || text[n-1] == ';') &&
		text[n-2] != '\\' && text[n-2] != '&' {
		text = strings.TrimSpace(text[:n-1])
	}
	return text
}

func rawWords(toks []*ast.Token) string {
	words := make([]string, len(toks))
	for i, tok := range toks {
		words[i] = tok.Raw
	}
	return strings.Join(words, " ")
}

func firstWord(script string) string {
	if fields := strings.Fields(script); len(fields) > 0 {
		return fields[0]
	}
	return script
}
