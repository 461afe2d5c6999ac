// Package shellerr holds the error kinds raised while parsing, expanding and
// executing commands.
package shellerr

import (
	"errors"
	"fmt"

	"github.com/josephlewis42/forksh/core/ast"
)

// Kind classifies a shell error.
type Kind int

const (
	// Internal marks a broken invariant between the parser and the executor.
	Internal Kind = iota
	// Syntax marks malformed builtin arguments or unclosed constructs.
	Syntax
	// Parse marks failures re-parsing nested bodies or arithmetic.
	Parse
	// CmdNotFound marks a failed path search.
	CmdNotFound
	// ExecFailed marks the OS rejecting an exec or spawn.
	ExecFailed
	// IO marks failures opening redirection targets or pipes.
	IO
)

// Conventional exit statuses.
const (
	StatusFailure     = 1
	StatusNotExecable = 126
	StatusNotFound    = 127
	StatusSignalBase  = 128
)

func (k Kind) String() string {
	switch k {
	case Syntax:
		return "syntax error"
	case Parse:
		return "parse error"
	case CmdNotFound:
		return "command not found"
	case ExecFailed:
		return "exec failed"
	case IO:
		return "i/o error"
	default:
		return "internal error"
	}
}

// Error is a shell error, optionally blamed on a source span.
type Error struct {
	Kind Kind
	Msg  string
	Span ast.Span
	// Err is the wrapped cause, if any.
	Err error
}

var _ error = (*Error)(nil)

// New creates an error without a span.
func New(kind Kind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...)}
}

// Full creates an error blamed on the given span.
func Full(kind Kind, msg string, span ast.Span) *Error {
	return &Error{Kind: kind, Msg: msg, Span: span}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...), Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Kind == CmdNotFound {
		msg = fmt.Sprintf("%s: %s", e.Msg, e.Kind)
	}
	switch {
	case e.Err != nil && msg == "":
		msg = e.Err.Error()
	case e.Err != nil:
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Span.IsZero() {
		return msg
	}
	return fmt.Sprintf("%d:%d: %s", e.Span.Line, e.Span.Col, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status is the exit status a process reports for this error.
func (e *Error) Status() int {
	switch e.Kind {
	case CmdNotFound:
		return StatusNotFound
	case ExecFailed:
		return StatusNotExecable
	default:
		return StatusFailure
	}
}

// Blame attaches span to err if it doesn't already carry one. Errors that
// aren't shell errors are wrapped as Internal.
func Blame(err error, span ast.Span) error {
	if err == nil {
		return nil
	}

	var shErr *Error
	if !errors.As(err, &shErr) {
		return &Error{Kind: Internal, Err: err, Span: span}
	}
	if shErr.Span.IsZero() {
		shErr.Span = span
	}
	return err
}

// StatusOf returns the exit status to report for err, 0 for nil.
func StatusOf(err error) int {
	if err == nil {
		return 0
	}

	var exitErr interface{ ExitStatus() int }
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus()
	}
	var shErr *Error
	if errors.As(err, &shErr) {
		return shErr.Status()
	}
	return StatusFailure
}

// IsKind reports whether err is a shell error of the given kind.
func IsKind(err error, kind Kind) bool {
	var shErr *Error
	return errors.As(err, &shErr) && shErr.Kind == kind
}
