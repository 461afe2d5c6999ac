package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/josephlewis42/forksh/core/vos"
)

// Exit asks the shell to exit with the given status, $? by default.
func Exit(inv *Invocation) error {
	status := inv.Env.Vars.Status()
	switch args := inv.Args[1:]; len(args) {
	case 0:
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(inv.Stderr(), "exit: %s: numeric argument required\n", args[0])
			return &ExitRequest{Status: 2}
		}
		status = n & 0xff
	default:
		return inv.Errorf("too many arguments")
	}
	return &ExitRequest{Status: status}
}

// Help lists the builtins.
func Help(inv *Invocation) error {
	w := inv.Stdout()
	fmt.Fprintln(w, "forksh, a job control shell")
	fmt.Fprintln(w, "These shell commands are defined internally. Run `NAME --help' to find")
	fmt.Fprintln(w, "out more about the command NAME.")
	fmt.Fprintln(w)

	names := Names()
	const columns = 4
	for i := 0; i < len(names); i += columns {
		end := i + columns
		if end > len(names) {
			end = len(names)
		}
		row := names[i:end]
		for j, name := range row {
			if j == len(row)-1 {
				fmt.Fprintln(w, name)
			} else {
				fmt.Fprintf(w, "%-12s", name)
			}
		}
	}
	return nil
}

// Type describes how each name would be run.
func Type(inv *Invocation) error {
	cmd := &SimpleCommand{
		Use:   "type NAME ...",
		Short: "Display information about command type.",
	}

	return cmd.Run(inv, func() error {
		env := inv.Env
		var err error
		for _, name := range cmd.Flags().Args() {
			if body, ok := env.Logic.Alias(name); ok {
				fmt.Fprintf(inv.Stdout(), "%s is aliased to `%s'\n", name, body)
				continue
			}
			if body, ok := env.Logic.Func(name); ok {
				fmt.Fprintf(inv.Stdout(), "%s is a function\n%s () { %s; }\n", name, name, strings.TrimRight(body, "; \n"))
				continue
			}
			if IsBuiltin(name) {
				fmt.Fprintf(inv.Stdout(), "%s is a shell builtin\n", name)
				continue
			}
			if path, lookErr := vos.LookPath(inv.OS, env.Vars.Get(EnvPath), name); lookErr == nil {
				fmt.Fprintf(inv.Stdout(), "%s is %s\n", name, path)
				continue
			}
			err = inv.Errorf("%s: not found", name)
		}
		return err
	})
}

// True does nothing, successfully.
func True(inv *Invocation) error {
	return nil
}

// False does nothing, unsuccessfully.
func False(inv *Invocation) error {
	return StatusError(1)
}

// HistoryCmd shows the interactive history.
func HistoryCmd(inv *Invocation) error {
	cmd := &SimpleCommand{
		Use:   "history [-c]",
		Short: "Display the history list with line numbers.",
	}
	clearAll := cmd.Flags().Bool('c', "clear the history by deleting all entries")

	return cmd.Run(inv, func() error {
		if inv.History == nil {
			return nil
		}
		if *clearAll {
			if err := inv.History.Clear(); err != nil {
				return inv.Errorf("%v", err)
			}
			return nil
		}
		for i, line := range inv.History.Lines() {
			fmt.Fprintf(inv.Stdout(), "% 5d  %s\n", i+1, line)
		}
		return nil
	})
}

func init() {
	addBuiltin("exit", Exit)
	addBuiltin("help", Help)
	addBuiltin("type", Type)
	addBuiltin("true", True)
	addBuiltin(":", True)
	addBuiltin("false", False)
	addBuiltin("history", HistoryCmd)
}
