package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/josephlewis42/forksh/core/ast"
	"github.com/josephlewis42/forksh/core/expand"
	"github.com/josephlewis42/forksh/core/shellerr"
	"github.com/josephlewis42/forksh/core/state"
)

var redirFlags = map[ast.RedirKind]int{
	ast.RedirInput:     os.O_RDONLY,
	ast.RedirOutput:    os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
	ast.RedirClobber:   os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
	ast.RedirAppend:    os.O_WRONLY | os.O_CREATE | os.O_APPEND,
	ast.RedirReadWrite: os.O_RDWR | os.O_CREATE,
}

// redirect applies redirs in order to a copy of base. The returned release
// func closes every file the redirections opened.
func (s *Shell) redirect(redirs []*ast.Redir, base *state.Ctx) (*state.Ctx, func(), error) {
	if len(redirs) == 0 {
		return base, func() {}, nil
	}

	ctx := base.Clone()
	var opened []*os.File
	release := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, r := range redirs {
		f, err := s.redirTarget(r, ctx)
		if err != nil {
			release()
			return nil, nil, shellerr.Blame(err, r.Span)
		}
		switch {
		case r.Target.Close:
			ctx.Unset(r.Fd)
		case r.Kind == ast.RedirDupIn || r.Kind == ast.RedirDupOut:
			ctx.Set(r.Fd, f)
		default:
			opened = append(opened, f)
			ctx.Set(r.Fd, f)
		}
		s.log.Debug("redirected", "redir", r.String())
	}
	return ctx, release, nil
}

// redirTarget returns the file r points at. Duplicated descriptors are
// shared with ctx, everything else is newly opened.
func (s *Shell) redirTarget(r *ast.Redir, ctx *state.Ctx) (*os.File, error) {
	vars := s.Env.Vars
	switch r.Kind {
	case ast.RedirDupIn, ast.RedirDupOut:
		if r.Target.Close {
			return nil, nil
		}
		f := ctx.Fd(r.Target.Fd)
		if f == nil {
			return nil, shellerr.Full(shellerr.IO, fmt.Sprintf("%d: bad file descriptor", r.Target.Fd), r.Span)
		}
		return f, nil

	case ast.RedirHeredoc:
		body := r.Target.Heredoc
		if !r.Target.Quoted {
			var err error
			if body, err = expand.ExpandHeredoc(body, vars); err != nil {
				return nil, err
			}
		}
		return s.memFile("heredoc", body)

	case ast.RedirHereString:
		word, err := expand.ExpandWord(r.Target.Path.Raw, vars)
		if err != nil {
			return nil, err
		}
		return s.memFile("herestring", word+"\n")
	}

	flags, ok := redirFlags[r.Kind]
	if !ok {
		panic(fmt.Sprintf("unknown redirection kind %v", r.Kind))
	}
	words, err := expand.ExpandToken(r.Target.Path, vars)
	if err != nil {
		return nil, err
	}
	if len(words) != 1 {
		return nil, shellerr.Full(shellerr.IO, fmt.Sprintf("%s: ambiguous redirect", r.Target.Path.Raw), r.Span)
	}

	f, err := s.OS.OpenRedir(words[0], flags, 0666)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			err = pathErr.Err
		}
		return nil, shellerr.Wrap(shellerr.IO, err, "%s", words[0])
	}
	return f, nil
}

func (s *Shell) memFile(name, content string) (*os.File, error) {
	f, err := s.OS.MemFile(name, []byte(content))
	if err != nil {
		return nil, shellerr.Wrap(shellerr.IO, err, "%s", name)
	}
	return f, nil
}
