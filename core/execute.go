package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/josephlewis42/forksh/commands"
	"github.com/josephlewis42/forksh/core/ast"
	"github.com/josephlewis42/forksh/core/expand"
	"github.com/josephlewis42/forksh/core/shellerr"
	"github.com/josephlewis42/forksh/core/state"
	"github.com/josephlewis42/forksh/core/vos"
)

// Walk runs the lists of tree in order. The first error stops the walk and
// is returned blamed on its list; a later Walk of the same tree resumes
// after that list.
func (s *Shell) Walk(tree *ast.SynTree, mode state.ExecMode) error {
	prev := s.source
	s.source = tree.Source
	defer func() { s.source = prev }()

	for list := tree.NextNode(); list != nil; list = tree.NextNode() {
		s.log.Debug("walking list", "tree", tree.Name, "span", list.Span, "mode", mode)
		if err := s.execList(list, mode); err != nil {
			return blame(err, list.Span)
		}
	}
	return nil
}

// blame attaches span to shell errors, leaving exit requests alone.
func blame(err error, span ast.Span) error {
	var exit *commands.ExitRequest
	if errors.As(err, &exit) {
		return err
	}
	return shellerr.Blame(err, span)
}

func (s *Shell) execList(list *ast.CmdList, mode state.ExecMode) error {
	for _, item := range list.Items {
		status := s.Env.Vars.Status()
		if (item.Guard == ast.GuardAnd && status != 0) || (item.Guard == ast.GuardOr && status == 0) {
			s.log.Debug("guard skipped item", "guard", item.Guard, "status", status)
			continue
		}

		var err error
		if item.Background {
			err = s.background(item.Node)
		} else {
			err = s.exec(item.Node, mode)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Shell) exec(node ast.Node, mode state.ExecMode) error {
	switch n := node.(type) {
	case *ast.Command:
		return s.execCommand(n, mode)
	case *ast.Pipeline:
		return s.execPipeline(n, false)
	case *ast.Subshell:
		return s.execSubshell(n, mode)
	case *ast.FuncDef:
		return s.defineFunc(n)
	case *ast.Assignment:
		return s.execAssignment(n, mode)
	default:
		panic(fmt.Sprintf("can't execute node of type %T", node))
	}
}

type callKind int

const (
	callExternal callKind = iota
	callFunction
	callBuiltin
)

// call is a command resolved to what will run it.
type call struct {
	node *ast.Command
	argv []string
	kind callKind

	// path is the executable of an external call, empty if the search
	// failed with lookErr.
	path    string
	lookErr error
}

// resolve expands a command and classifies it: functions first, then
// builtins, then programs on $PATH.
func (s *Shell) resolve(cmd *ast.Command) (*call, error) {
	argv, err := expand.ExpandTokens(cmd.Argv, s.Env.Vars)
	if err != nil {
		return nil, err
	}
	argv, aliased, err := s.substituteAlias(argv)
	if err != nil {
		return nil, shellerr.Blame(err, cmd.Span)
	}
	if len(argv) == 0 {
		return nil, shellerr.Full(shellerr.Syntax, "command expanded to nothing", cmd.Span)
	}

	c := &call{node: cmd, argv: argv}
	name := argv[0]
	_, isFunc := s.Env.Logic.Func(name)
	switch {
	case isFunc:
		c.kind = callFunction
	case cmd.IsBuiltin() && !aliased:
		if !commands.IsBuiltin(name) {
			panic(fmt.Sprintf("command %q flagged as a builtin isn't one", name))
		}
		c.kind = callBuiltin
	case commands.IsBuiltin(name):
		c.kind = callBuiltin
	default:
		c.path, c.lookErr = vos.LookPath(s.OS, s.Env.Vars.Get(commands.EnvPath), name)
	}
	return c, nil
}

// substituteAlias replaces the first word while it names an alias. Each
// alias is used at most once so recursive definitions terminate.
func (s *Shell) substituteAlias(argv []string) ([]string, bool, error) {
	seen := make(map[string]bool)
	aliased := false
	for len(argv) > 0 {
		body, ok := s.Env.Logic.Alias(argv[0])
		if !ok || seen[argv[0]] {
			break
		}
		seen[argv[0]] = true

		words, err := shlex.Split(body, true)
		if err != nil {
			return nil, false, shellerr.Wrap(shellerr.Syntax, err, "alias %s", argv[0])
		}
		s.log.Debug("substituted alias", "name", argv[0], "words", words)
		argv = append(words, argv[1:]...)
		aliased = true
	}
	return argv, aliased, nil
}

// notFound converts a failed path search into a shell error.
func (s *Shell) notFound(c *call) error {
	name := c.argv[0]
	shErr := &shellerr.Error{Kind: shellerr.CmdNotFound, Msg: name, Span: c.node.Span}
	if !errors.Is(c.lookErr, vos.ErrNotFound) {
		shErr = &shellerr.Error{Kind: shellerr.ExecFailed, Msg: name, Span: c.node.Span, Err: c.lookErr}
	}
	s.recordUnknown(c, shErr)
	return shErr
}

func (s *Shell) execCommand(cmd *ast.Command, mode state.ExecMode) error {
	c, err := s.resolve(cmd)
	if err != nil {
		return err
	}
	if c.lookErr != nil {
		return s.notFound(c)
	}

	s.recordRun(c)
	switch c.kind {
	case callFunction:
		return s.callFunction(c)
	case callBuiltin:
		return s.runBuiltin(c)
	default:
		return s.runExternal(c, mode)
	}
}

func (s *Shell) runBuiltin(c *call) error {
	builtin, ok := commands.AllBuiltins[c.argv[0]]
	if !ok {
		panic(fmt.Sprintf("no builtin named %q", c.argv[0]))
	}

	ctx, release, err := s.redirect(c.node.Redirs, s.Env.Ctx)
	if err != nil {
		return err
	}
	defer release()

	saved := s.Env.Ctx
	s.Env.Ctx = ctx
	err = builtin(&commands.Invocation{
		Node:    c.node,
		Args:    c.argv,
		Env:     s.Env,
		OS:      s.OS,
		History: s.history,
	})
	s.Env.Ctx = saved

	var reported commands.StatusError
	switch {
	case err == nil:
		s.Env.Vars.SetStatus(0)
		return nil
	case errors.As(err, &reported):
		s.Env.Vars.SetStatus(int(reported))
		return nil
	default:
		s.Env.Vars.SetStatus(shellerr.StatusOf(err))
		return err
	}
}

func (s *Shell) defineFunc(def *ast.FuncDef) error {
	name := strings.TrimSuffix(def.Name, "()")
	body := strings.TrimSpace(def.Body)
	body = strings.TrimPrefix(body, "{")
	body = strings.TrimSuffix(body, "}")
	body = strings.TrimSpace(body)

	s.log.Debug("defined function", "name", name)
	s.Env.Logic.SetFunc(name, body)
	s.Env.Vars.SetStatus(0)
	return nil
}

// execAssignment sets shell variables, or exports them for the duration of
// a command.
func (s *Shell) execAssignment(a *ast.Assignment, mode state.ExecMode) error {
	type saved struct {
		name     string
		value    string
		set      bool
		exported bool
	}
	var restore []saved

	defer func() {
		for i := len(restore) - 1; i >= 0; i-- {
			r := restore[i]
			vars := s.Env.Vars
			if !r.set {
				vars.Unset(r.name)
				continue
			}
			vars.Set(r.name, r.value)
			if !r.exported {
				vars.Unexport(r.name)
			}
		}
	}()

	for _, tok := range a.Assignments {
		name, raw, _ := strings.Cut(tok.Raw, "=")
		if !expand.ValidName(name) {
			return shellerr.Full(shellerr.Syntax, fmt.Sprintf("`%s': not a valid identifier", name), tok.Span)
		}
		value, err := expand.ExpandWord(raw, s.Env.Vars)
		if err != nil {
			return shellerr.Blame(err, tok.Span)
		}

		vars := s.Env.Vars
		if a.Cmd == nil {
			vars.Set(name, value)
			continue
		}
		old, set := vars.Lookup(name)
		restore = append(restore, saved{name: name, value: old, set: set, exported: vars.IsExported(name)})
		vars.Export(name, value)
	}

	if a.Cmd == nil {
		s.Env.Vars.SetStatus(0)
		return nil
	}
	return s.execCommand(a.Cmd, mode)
}
