package ast

import (
	"fmt"
	"strconv"
)

// RedirKind is the direction and mode of a redirection.
type RedirKind int

const (
	RedirInput RedirKind = iota
	RedirOutput
	RedirAppend
	RedirReadWrite
	RedirClobber
	RedirDupIn
	RedirDupOut
	RedirHeredoc
	RedirHereString
)

var redirOps = map[RedirKind]string{
	RedirInput:      "<",
	RedirOutput:     ">",
	RedirAppend:     ">>",
	RedirReadWrite:  "<>",
	RedirClobber:    ">|",
	RedirDupIn:      "<&",
	RedirDupOut:     ">&",
	RedirHeredoc:    "<<",
	RedirHereString: "<<<",
}

func (k RedirKind) String() string {
	if op, ok := redirOps[k]; ok {
		return op
	}
	return fmt.Sprintf("RedirKind(%d)", int(k))
}

// DefaultFd is the descriptor a redirection applies to when none is given.
func (k RedirKind) DefaultFd() int {
	switch k {
	case RedirInput, RedirReadWrite, RedirDupIn, RedirHeredoc, RedirHereString:
		return 0
	default:
		return 1
	}
}

// RedirTarget is what a redirection points at. Exactly one of Path, Fd >= 0,
// Close or the heredoc fields is meaningful, depending on the Redir kind.
type RedirTarget struct {
	Path  *Token
	Fd    int
	Close bool

	// Heredoc holds a heredoc body. Here-strings use Path.
	Heredoc string
	// Quoted heredoc delimiters disable expansion of the body.
	Quoted bool
}

// Redir redirects a file descriptor.
type Redir struct {
	Span   Span
	Fd     int
	Kind   RedirKind
	Target RedirTarget
}

// NewRedir creates a redirection of fd to another descriptor.
func NewRedir(fd int, kind RedirKind, target RedirTarget) *Redir {
	return &Redir{Fd: fd, Kind: kind, Target: target}
}

func (r *Redir) String() string {
	var dst string
	switch {
	case r.Target.Close:
		dst = "-"
	case r.Target.Path != nil:
		dst = r.Target.Path.Raw
	case r.Kind == RedirHeredoc:
		dst = strconv.Quote(r.Target.Heredoc)
	default:
		dst = strconv.Itoa(r.Target.Fd)
	}
	return fmt.Sprintf("%d%s%s", r.Fd, r.Kind, dst)
}
