// Package ast defines the command tree the executor walks.
//
// The node set is closed: Command, Pipeline, Subshell, FuncDef, Assignment
// and CmdList are the only implementations of Node.
package ast

import (
	"fmt"
	"strings"
)

// Span locates a node or token in its source text.
type Span struct {
	// Byte offsets into the source, End is exclusive.
	Offset, End int
	// 1-based line and column of Offset.
	Line, Col int
}

// IsZero reports whether the span was never set.
func (s Span) IsZero() bool {
	return s == Span{}
}

// Slice returns the text the span covers in src.
func (s Span) Slice(src string) string {
	if s.Offset < 0 || s.End > len(src) || s.Offset > s.End {
		return ""
	}
	return src[s.Offset:s.End]
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.Line, s.Col)
}

// Node is an element of the command tree.
type Node interface {
	Pos() Span
	node()
}

// NodeFlags are classification hints set by the parser.
type NodeFlags uint8

const (
	// FlagBuiltin is set when a command's first word names a builtin.
	FlagBuiltin NodeFlags = 1 << iota
)

// Command is a simple command.
type Command struct {
	Span   Span
	Argv   []*Token
	Redirs []*Redir
	Flags  NodeFlags
}

// Pipeline connects the stdout of each stage to the stdin of the next.
type Pipeline struct {
	Span Span
	// Cmds holds *Command or *Subshell stages.
	Cmds []Node
}

// Subshell runs its body in an isolated copy of the environment.
type Subshell struct {
	Span Span
	// Body is the literal text, parentheses included.
	Body   string
	Redirs []*Redir
}

// FuncDef defines a function.
type FuncDef struct {
	Span Span
	// Name as written, possibly with a trailing "()".
	Name string
	// Body is the literal text, braces included.
	Body string
}

// Assignment sets variables, either standalone or scoped to Cmd.
type Assignment struct {
	Span        Span
	Assignments []*Token
	Cmd         *Command
}

// Guard gates a list item on the previous exit status.
type Guard int

const (
	GuardNone Guard = iota
	// GuardAnd runs the item only if the previous status was zero.
	GuardAnd
	// GuardOr runs the item only if the previous status was nonzero.
	GuardOr
)

func (g Guard) String() string {
	switch g {
	case GuardAnd:
		return "&&"
	case GuardOr:
		return "||"
	default:
		return ""
	}
}

// ListItem is one guarded element of a CmdList.
type ListItem struct {
	Guard      Guard
	Node       Node
	Background bool
}

// CmdList is an and-or list.
type CmdList struct {
	Span  Span
	Items []ListItem
}

func (n *Command) Pos() Span    { return n.Span }
func (n *Pipeline) Pos() Span   { return n.Span }
func (n *Subshell) Pos() Span   { return n.Span }
func (n *FuncDef) Pos() Span    { return n.Span }
func (n *Assignment) Pos() Span { return n.Span }
func (n *CmdList) Pos() Span    { return n.Span }

func (*Command) node()    {}
func (*Pipeline) node()   {}
func (*Subshell) node()   {}
func (*FuncDef) node()    {}
func (*Assignment) node() {}
func (*CmdList) node()    {}

// Name returns the raw text of the first word, or "" for an empty command.
func (n *Command) Name() string {
	if len(n.Argv) == 0 {
		return ""
	}
	return n.Argv[0].String()
}

// IsBuiltin reports whether the parser flagged the command as a builtin.
func (n *Command) IsBuiltin() bool {
	return n.Flags&FlagBuiltin != 0
}

// SynTree is a parsed program: a sequence of lists run in order.
type SynTree struct {
	Name   string
	Source string
	Lists  []*CmdList

	next int
}

// NextNode returns the next list to execute, or nil when exhausted.
func (t *SynTree) NextNode() *CmdList {
	if t.next >= len(t.Lists) {
		return nil
	}
	list := t.Lists[t.next]
	t.next++
	return list
}

// Text returns the source text covered by n.
func (t *SynTree) Text(n Node) string {
	return n.Pos().Slice(t.Source)
}

// Describe renders a node on one line for logs and golden tests.
func Describe(n Node) string {
	var sb strings.Builder
	describe(&sb, n)
	return sb.String()
}

func describe(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Command:
		sb.WriteString("Command[")
		writeTokens(sb, n.Argv)
		sb.WriteString("]")
		if n.IsBuiltin() {
			sb.WriteString("{builtin}")
		}
		writeRedirs(sb, n.Redirs)
	case *Pipeline:
		sb.WriteString("Pipeline(")
		for i, c := range n.Cmds {
			if i > 0 {
				sb.WriteString(" | ")
			}
			describe(sb, c)
		}
		sb.WriteString(")")
	case *Subshell:
		fmt.Fprintf(sb, "Subshell%q", n.Body)
		writeRedirs(sb, n.Redirs)
	case *FuncDef:
		fmt.Fprintf(sb, "FuncDef %s %q", n.Name, n.Body)
	case *Assignment:
		sb.WriteString("Assignment[")
		writeTokens(sb, n.Assignments)
		sb.WriteString("]")
		if n.Cmd != nil {
			sb.WriteString(" ")
			describe(sb, n.Cmd)
		}
	case *CmdList:
		sb.WriteString("List(")
		for i, item := range n.Items {
			if i > 0 {
				sb.WriteString(" ")
			}
			if item.Guard != GuardNone {
				sb.WriteString(item.Guard.String())
				sb.WriteString(" ")
			}
			describe(sb, item.Node)
			if item.Background {
				sb.WriteString(" &")
			}
		}
		sb.WriteString(")")
	default:
		fmt.Fprintf(sb, "%T", n)
	}
}

func writeTokens(sb *strings.Builder, toks []*Token) {
	for i, tok := range toks {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(tok.String())
	}
}

func writeRedirs(sb *strings.Builder, redirs []*Redir) {
	for _, r := range redirs {
		sb.WriteString(" ")
		sb.WriteString(r.String())
	}
}
