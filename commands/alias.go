package commands

import (
	"fmt"
	"strings"

	"github.com/josephlewis42/forksh/core/shellerr"
)

// Alias defines aliases, or prints them when called without arguments.
//
// Every argument must be an assignment; anything else is a syntax error
// blamed on that argument.
func Alias(inv *Invocation) error {
	logic := inv.Env.Logic
	args := inv.Args[1:]
	if len(args) == 0 {
		for _, name := range logic.AliasNames() {
			body, _ := logic.Alias(name)
			fmt.Fprintf(inv.Stdout(), "alias %s=%s\n", name, quoteValue(body))
		}
		return nil
	}

	for i, arg := range args {
		name, body, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return shellerr.Full(shellerr.Syntax, "expected an assignment in alias args", inv.ArgSpan(i+1))
		}
		logic.SetAlias(name, trimQuotes(body))
	}
	return nil
}

// Unalias removes aliases.
func Unalias(inv *Invocation) error {
	cmd := &SimpleCommand{
		Use:   "unalias [-a] NAME ...",
		Short: "Remove each NAME from the list of defined aliases.",
	}
	all := cmd.Flags().Bool('a', "remove all alias definitions")

	return cmd.Run(inv, func() error {
		logic := inv.Env.Logic
		if *all {
			logic.ClearAliases()
			return nil
		}

		var err error
		for _, name := range cmd.Flags().Args() {
			if !logic.UnsetAlias(name) {
				err = inv.Errorf("%s: not found", name)
			}
		}
		return err
	})
}

// trimQuotes drops one pair of matching outer quotes left after expansion
// of a body such as 'ls -l'.
func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func init() {
	addBuiltin("alias", Alias)
	addBuiltin("unalias", Unalias)
}
