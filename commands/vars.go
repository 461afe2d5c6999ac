package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/josephlewis42/forksh/core/expand"
	"github.com/josephlewis42/forksh/core/state"
)

// Export marks variables for the environment of child processes.
func Export(inv *Invocation) error {
	cmd := &SimpleCommand{
		Use:   "export [-n] [-p] [NAME[=VALUE] ...]",
		Short: "Set export attribute for shell variables.",
	}
	opts := cmd.Flags()
	unexport := opts.Bool('n', "remove the export property from each NAME")
	list := opts.Bool('p', "display all exported variables")

	return cmd.Run(inv, func() error {
		vars := inv.Env.Vars
		args := opts.Args()
		if len(args) == 0 || *list {
			for _, entry := range vars.Environ() {
				name, value := state.SplitEnv(entry)
				fmt.Fprintf(inv.Stdout(), "export %s=%s\n", name, strconv.Quote(value))
			}
			return nil
		}

		var err error
		for _, arg := range args {
			name, value := state.SplitEnv(arg)
			if !expand.ValidName(name) {
				err = inv.Errorf("`%s': not a valid identifier", arg)
				continue
			}
			switch {
			case *unexport:
				vars.Unexport(name)
			case strings.Contains(arg, "="):
				vars.Export(name, value)
			default:
				vars.MarkExported(name)
			}
		}
		return err
	})
}

// Unset removes variables or functions.
func Unset(inv *Invocation) error {
	cmd := &SimpleCommand{
		Use:   "unset [-f] [-v] [NAME ...]",
		Short: "Unset values and attributes of shell variables and functions.",
	}
	opts := cmd.Flags()
	funcs := opts.Bool('f', "treat each NAME as a shell function")
	vars := opts.Bool('v', "treat each NAME as a shell variable")

	return cmd.Run(inv, func() error {
		env := inv.Env
		for _, name := range opts.Args() {
			_, isVar := env.Vars.Lookup(name)
			switch {
			case *funcs:
				env.Logic.UnsetFunc(name)
			case *vars || isVar:
				env.Vars.Unset(name)
			default:
				env.Logic.UnsetFunc(name)
			}
		}
		return nil
	})
}

// Set replaces the positional parameters, or lists variables.
func Set(inv *Invocation) error {
	args := inv.Args[1:]
	if len(args) == 0 {
		vars := inv.Env.Vars
		for _, name := range vars.Names() {
			fmt.Fprintf(inv.Stdout(), "%s=%s\n", name, quoteValue(vars.Get(name)))
		}
		return nil
	}

	if args[0] == "--" {
		args = args[1:]
	} else if strings.HasPrefix(args[0], "-") {
		return inv.Errorf("%s: invalid option\nusage: set [-- ARG ...]", args[0])
	}
	inv.Env.Vars.SetParams(args)
	return nil
}

// Shift drops positional parameters.
func Shift(inv *Invocation) error {
	cmd := &SimpleCommand{
		Use:   "shift [N]",
		Short: "Shift positional parameters, N defaults to 1.",
	}

	return cmd.Run(inv, func() error {
		n := 1
		switch args := cmd.Flags().Args(); len(args) {
		case 0:
		case 1:
			var err error
			if n, err = strconv.Atoi(args[0]); err != nil {
				return inv.Errorf("%s: numeric argument required", args[0])
			}
		default:
			return inv.Errorf("too many arguments")
		}

		if err := inv.Env.Vars.Shift(n); err != nil {
			fmt.Fprintln(inv.Stderr(), err)
			return StatusError(1)
		}
		return nil
	})
}

// Read reads one line from stdin and splits it into variables.
func Read(inv *Invocation) error {
	cmd := &SimpleCommand{
		Use:   "read [-r] [-p PROMPT] [NAME ...]",
		Short: "Read a line from standard input and split it into fields.",
	}
	opts := cmd.Flags()
	raw := opts.Bool('r', "do not allow backslashes to escape any characters")
	prompt := opts.String('p', "", "output PROMPT without a trailing newline before reading")

	return cmd.Run(inv, func() error {
		names := opts.Args()
		if len(names) == 0 {
			names = []string{"REPLY"}
		}
		for _, name := range names {
			if !expand.ValidName(name) {
				return inv.Errorf("`%s': not a valid identifier", name)
			}
		}

		if *prompt != "" {
			fmt.Fprint(inv.Stderr(), *prompt)
		}

		stdin := inv.Stdin()
		if stdin == nil {
			return inv.Errorf("read error: stdin is closed")
		}
		line, err := readLine(stdin, *raw)
		if err != nil && err != io.EOF {
			return inv.Errorf("%v", err)
		}

		ifs, ok := inv.Env.Vars.Lookup(EnvIFS)
		if !ok {
			ifs = expand.DefaultIFS
		}
		fields := splitFields(line, ifs, len(names))
		for i, name := range names {
			value := ""
			if i < len(fields) {
				value = fields[i]
			}
			inv.Env.Vars.Set(name, value)
		}
		if err == io.EOF {
			return StatusError(1)
		}
		return nil
	})
}

// readLine reads up to a newline one byte at a time so nothing past the
// line is consumed from a shared descriptor.
func readLine(r io.Reader, raw bool) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	escaped := false
	for {
		n, err := r.Read(buf)
		if n == 0 {
			if err == nil {
				continue
			}
			return sb.String(), err
		}

		ch := buf[0]
		switch {
		case escaped:
			escaped = false
			if ch != '\n' {
				sb.WriteByte(ch)
			}
		case ch == '\\' && !raw:
			escaped = true
		case ch == '\n':
			return sb.String(), nil
		default:
			sb.WriteByte(ch)
		}
	}
}

// splitFields splits line on ifs into at most n fields, the last holding
// the remainder with trailing separators removed.
func splitFields(line, ifs string, n int) []string {
	isSep := func(r rune) bool {
		return strings.ContainsRune(ifs, r)
	}

	var out []string
	rest := strings.TrimLeftFunc(line, isSep)
	for rest != "" && len(out) < n-1 {
		end := strings.IndexFunc(rest, isSep)
		if end < 0 {
			break
		}
		out = append(out, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], isSep)
	}
	if rest = strings.TrimRightFunc(rest, isSep); rest != "" {
		out = append(out, rest)
	}
	return out
}

func quoteValue(value string) string {
	if value != "" && strings.IndexFunc(value, func(r rune) bool {
		return !(r == '_' || r == '/' || r == '.' || r == '-' || r == ':' ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'))
	}) < 0 {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

func init() {
	addBuiltin("export", Export)
	addBuiltin("unset", Unset)
	addBuiltin("set", Set)
	addBuiltin("shift", Shift)
	addBuiltin("read", Read)
}
