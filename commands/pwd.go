package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

const (
	EnvHome   = "HOME"
	EnvPWD    = "PWD"
	EnvOldPWD = "OLDPWD"
	EnvPath   = "PATH"
	EnvIFS    = "IFS"
)

// Pwd prints the working directory.
func Pwd(inv *Invocation) error {
	cmd := &SimpleCommand{
		Use:   "pwd",
		Short: "Print the name of the current working directory.",
	}

	return cmd.Run(inv, func() error {
		wd, err := inv.OS.Getwd()
		if err != nil {
			return inv.Errorf("%v", err)
		}
		fmt.Fprintln(inv.Stdout(), wd)
		return nil
	})
}

// Cd changes the working directory of the shell.
func Cd(inv *Invocation) error {
	cmd := &SimpleCommand{
		Use:   "cd [DIR]",
		Short: "Change the shell working directory. DIR defaults to $HOME, - is $OLDPWD.",
	}

	return cmd.Run(inv, func() error {
		vars := inv.Env.Vars
		args := cmd.Flags().Args()

		var dir string
		switch len(args) {
		case 0:
			dir = vars.Get(EnvHome)
			if dir == "" {
				return inv.Errorf("HOME not set")
			}
		case 1:
			dir = args[0]
		default:
			return inv.Errorf("too many arguments")
		}

		printDir := false
		if dir == "-" {
			dir = vars.Get(EnvOldPWD)
			if dir == "" {
				return inv.Errorf("OLDPWD not set")
			}
			printDir = true
		}

		old, _ := inv.OS.Getwd()
		if err := inv.OS.Chdir(dir); err != nil {
			return inv.Errorf("%s: %v", dir, unwrapPathError(err))
		}
		wd, err := inv.OS.Getwd()
		if err != nil {
			wd = filepath.Clean(dir)
		}

		vars.Set(EnvOldPWD, old)
		vars.Set(EnvPWD, wd)
		if printDir {
			fmt.Fprintln(inv.Stdout(), wd)
		}
		return nil
	})
}

// unwrapPathError drops the operations and paths, the caller already prints
// the path it was given.
func unwrapPathError(err error) error {
	for {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return err
		}
		err = pathErr.Err
	}
}

func init() {
	addBuiltin("pwd", Pwd)
	addBuiltin("cd", Cd)
}
