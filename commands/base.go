// Package commands holds the shell's builtins.
package commands

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/josephlewis42/forksh/core/ast"
	"github.com/josephlewis42/forksh/core/state"
	"github.com/josephlewis42/forksh/core/vos"
	getopt "github.com/pborman/getopt/v2"
)

// Builtin runs in the shell's own process.
//
// Builtins report their own failures to stderr and return a StatusError.
// Shell errors and ExitRequest are returned to the caller.
type Builtin func(inv *Invocation) error

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]Builtin)

func addBuiltin(name string, b Builtin) {
	if _, ok := AllBuiltins[name]; ok {
		panic(fmt.Sprintf("builtin %q registered twice", name))
	}
	AllBuiltins[name] = b
}

// IsBuiltin reports whether name is a builtin.
func IsBuiltin(name string) bool {
	_, ok := AllBuiltins[name]
	return ok
}

// Names returns the builtin names, sorted.
func Names() []string {
	var out []string
	for k := range AllBuiltins {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// History is the interactive line history.
type History interface {
	Lines() []string
	Clear() error
}

// Invocation is a single builtin call.
type Invocation struct {
	// Node is the command being run, nil when the call has no source.
	Node *ast.Command
	// Args are the expanded arguments, Args[0] is the builtin's name.
	Args []string
	Env  *state.ExecEnv
	OS   vos.VOS
	// History is nil for non-interactive shells.
	History History
}

func (inv *Invocation) Stdin() *os.File {
	return inv.Env.Ctx.Stdin()
}

func (inv *Invocation) Stdout() io.Writer {
	if f := inv.Env.Ctx.Stdout(); f != nil {
		return f
	}
	return io.Discard
}

func (inv *Invocation) Stderr() io.Writer {
	if f := inv.Env.Ctx.Stderr(); f != nil {
		return f
	}
	return io.Discard
}

// Errorf prints "name: msg" to stderr and returns status 1.
func (inv *Invocation) Errorf(format string, a ...interface{}) error {
	fmt.Fprintf(inv.Stderr(), "%s: %s\n", inv.Args[0], fmt.Sprintf(format, a...))
	return StatusError(1)
}

// ArgSpan returns the source span of Args[i], or the command's span when
// expansion changed the number of words.
func (inv *Invocation) ArgSpan(i int) ast.Span {
	if inv.Node == nil {
		return ast.Span{}
	}
	if len(inv.Node.Argv) == len(inv.Args) {
		return inv.Node.Argv[i].Span
	}
	return inv.Node.Span
}

// StatusError is a failure that was already reported.
type StatusError int

func (e StatusError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func (e StatusError) ExitStatus() int {
	return int(e)
}

// ExitRequest asks the shell to exit.
type ExitRequest struct {
	Status int
}

func (e *ExitRequest) Error() string {
	return fmt.Sprintf("exit %d", e.Status)
}

func (e *ExitRequest) ExitStatus() int {
	return e.Status
}

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was successful call the callback.
func (s *SimpleCommand) Run(inv *Invocation, callback func() error) error {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	if err := opts.Getopt(inv.Args, nil); err != nil {
		fmt.Fprintf(inv.Stderr(), "%s: %s\n\n", inv.Args[0], err)
		s.PrintHelp(inv.Stderr())
		return StatusError(2)
	}

	if *s.ShowHelp {
		s.PrintHelp(inv.Stdout())
		return nil
	}

	return callback()
}

const (
	colorAlways = "always"
	colorAuto   = "auto"
	colorNever  = "never"
)

var (
	ColorBoldBlue   = color.New(color.FgBlue, color.Bold)
	ColorBoldGreen  = color.New(color.FgGreen, color.Bold)
	ColorBoldYellow = color.New(color.FgYellow, color.Bold)
	ColorBoldRed    = color.New(color.FgRed, color.Bold)
)

type ColorPrinter struct {
	value *string
	inv   *Invocation
}

// Init sets up the flag and invocation to determine the color output.
func (c *ColorPrinter) Init(flags *getopt.Set, inv *Invocation) {
	c.inv = inv
	c.value = flags.EnumLong(
		"color",
		rune(0), // No short flag.
		[]string{colorAlways, colorAuto, colorNever},
		colorAuto,
		"colorize the output (always|auto|never)")
}

func (c *ColorPrinter) ShouldColor() bool {
	switch {
	case *c.value == colorNever:
		return false
	case *c.value == colorAlways:
		return true
	default:
		out := c.inv.Env.Ctx.Stdout()
		return out != nil && c.inv.OS.IsTerminal(int(out.Fd()))
	}
}

func (c *ColorPrinter) Sprintf(clr *color.Color, format string, a ...interface{}) string {
	if c.ShouldColor() {
		clr.EnableColor()
		return clr.Sprintf(format, a...)
	}
	return fmt.Sprintf(format, a...)
}
