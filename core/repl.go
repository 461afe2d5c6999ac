package core

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/abiosoft/readline"
	"github.com/josephlewis42/forksh/commands"
	"github.com/josephlewis42/forksh/core/config"
	"github.com/josephlewis42/forksh/core/parse"
	"github.com/josephlewis42/forksh/core/vos"
)

const (
	EnvPrompt   = "PS1"
	EnvUser     = "USER"
	EnvHostname = "HOSTNAME"

	// ContinuationPrompt is shown while a command is incomplete.
	ContinuationPrompt = "> "
)

// REPL reads commands interactively.
type REPL struct {
	shell    *Shell
	readline *readline.Instance
	history  *lineHistory

	// defaultPrompt is used when PS1 is unset.
	defaultPrompt string
}

// NewREPL creates a prompt for s reading from stdin.
func NewREPL(s *Shell, cfg *config.Configuration, stdin io.Reader, stdout, stderr io.Writer) (*REPL, error) {
	history := &lineHistory{limit: cfg.HistoryLimit}
	if path := cfg.HistoryPath(); path != "" {
		history.load(s.OS, path)
	}

	rlConfig := &readline.Config{
		Stdin:                  readline.NewCancelableStdin(stdin),
		Stdout:                 stdout,
		Stderr:                 stderr,
		HistoryFile:            cfg.HistoryPath(),
		HistoryLimit:           cfg.HistoryLimit,
		DisableAutoSaveHistory: true,
		AutoComplete:           readline.NewPrefixCompleter(readline.PcItemDynamic(s.completions)),
		FuncIsTerminal: func() bool {
			return s.OS.IsTerminal(int(os.Stdin.Fd()))
		},
	}
	if err := rlConfig.Init(); err != nil {
		return nil, err
	}
	rl, err := readline.NewEx(rlConfig)
	if err != nil {
		return nil, err
	}
	history.readline = rl
	s.history = history

	return &REPL{
		shell:         s,
		readline:      rl,
		history:       history,
		defaultPrompt: cfg.Prompt,
	}, nil
}

// Close releases the terminal.
func (r *REPL) Close() error {
	return r.readline.Close()
}

// Prompt expands PS1. \u, \h, \w and \$ are replaced first, then the
// remaining backslash escapes are interpreted like echo -e.
func (r *REPL) Prompt() string {
	vars := r.shell.Env.Vars
	prompt, ok := vars.Lookup(EnvPrompt)
	if !ok {
		prompt = r.defaultPrompt
	}

	host := vars.Get(EnvHostname)
	if host == "" {
		host, _ = os.Hostname()
	}
	pwd, err := r.shell.OS.Getwd()
	if err != nil {
		pwd = vars.Get(commands.EnvPWD)
	}
	if home := vars.Get(commands.EnvHome); home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	prompt = strings.ReplaceAll(prompt, `\u`, vars.Get(EnvUser))
	prompt = strings.ReplaceAll(prompt, `\h`, host)
	prompt = strings.ReplaceAll(prompt, `\w`, pwd)
	if os.Geteuid() == 0 {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}
	return commands.Unescape(prompt)
}

// Run reads and runs commands until end of input or exit. Lines are
// accumulated while the parser reports the input as incomplete.
func (r *REPL) Run() int {
	var pending strings.Builder
	for {
		r.shell.Env.Jobs.Reap()
		if pending.Len() == 0 {
			r.readline.SetPrompt(r.Prompt())
		} else {
			r.readline.SetPrompt(ContinuationPrompt)
		}

		line, err := r.readline.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			pending.Reset()
			continue
		case err == io.EOF:
			return r.shell.Env.Vars.Status()
		case err != nil:
			r.shell.log.Error("couldn't read line", "err", err)
			return r.shell.Env.Vars.Status()
		}

		pending.WriteString(line)
		pending.WriteByte('\n')
		src := pending.String()
		if strings.TrimSpace(src) == "" {
			pending.Reset()
			continue
		}

		tree, err := r.shell.Parse("stdin", src)
		if parse.IsIncomplete(err) {
			continue
		}
		pending.Reset()
		if err := r.history.add(strings.TrimSpace(src)); err != nil {
			r.shell.log.Warn("couldn't save history", "err", err)
		}

		if err != nil {
			r.shell.Report(err)
			continue
		}
		if exit := r.shell.RunTree(tree); exit != nil {
			return exit.Status
		}
	}
}

// completions lists the names the shell can run without a path search.
func (s *Shell) completions(string) []string {
	names := commands.Names()
	names = append(names, s.Env.Logic.AliasNames()...)
	names = append(names, s.Env.Logic.FuncNames()...)
	sort.Strings(names)
	return names
}

// lineHistory is the history builtin's view of readline's history.
type lineHistory struct {
	readline *readline.Instance
	limit    int
	lines    []string
}

var _ commands.History = (*lineHistory)(nil)

func (h *lineHistory) load(fsys vos.VFS, path string) {
	f, err := fsys.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		h.append(scanner.Text())
	}
}

func (h *lineHistory) append(line string) {
	h.lines = append(h.lines, line)
	if h.limit > 0 && len(h.lines) > h.limit {
		h.lines = h.lines[len(h.lines)-h.limit:]
	}
}

func (h *lineHistory) add(line string) error {
	h.append(line)
	if h.readline == nil {
		return nil
	}
	return h.readline.SaveHistory(line)
}

func (h *lineHistory) Lines() []string {
	return h.lines
}

func (h *lineHistory) Clear() error {
	h.lines = nil
	if h.readline != nil {
		h.readline.Operation.ResetHistory()
	}
	return nil
}

// TakeTerminal puts an interactive shell in its own process group in the
// foreground of the terminal on fd.
func TakeTerminal(sys vos.VOS, fd int) error {
	// Taking the terminal back from a job needs SIGTTOU ignored. The stop
	// signals are caught rather than ignored so children still get the
	// default disposition.
	signal.Ignore(syscall.SIGTTOU)
	signal.Notify(make(chan os.Signal, 1), syscall.SIGTSTP, syscall.SIGTTIN)
	if !sys.IsTerminal(fd) {
		return nil
	}
	if sys.Getpgrp() != sys.Getpid() {
		if err := sys.Setpgid(0, 0); err != nil {
			return err
		}
	}
	return sys.Tcsetpgrp(fd, sys.Getpgrp())
}
