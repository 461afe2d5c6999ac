// Package state holds the interpreter state threaded through execution.
package state

import (
	"os"
	"sort"

	"github.com/josephlewis42/forksh/core/jobs"
)

// ExecMode says whether the current process may be consumed by the command
// it is about to run.
type ExecMode int

const (
	// MustFork commands run in a new process, the shell keeps running.
	MustFork ExecMode = iota
	// AlreadyIsolated commands run in a process that exists only for them
	// and may replace its image.
	AlreadyIsolated
)

func (m ExecMode) String() string {
	if m == AlreadyIsolated {
		return "already-isolated"
	}
	return "must-fork"
}

// ExecEnv is the mutable interpreter state.
type ExecEnv struct {
	Vars  *Vars
	Logic *Logic
	Ctx   *Ctx
	// Jobs is shared by snapshots.
	Jobs *jobs.Table

	Interactive bool
}

// New creates an environment bound to the process's standard streams.
func New(vars *Vars, table *jobs.Table) *ExecEnv {
	return &ExecEnv{
		Vars:  vars,
		Logic: NewLogic(),
		Ctx:   NewCtx(os.Stdin, os.Stdout, os.Stderr),
		Jobs:  table,
	}
}

// Snapshot is a saved copy of an ExecEnv.
type Snapshot struct {
	vars  *Vars
	logic *Logic
	ctx   *Ctx
}

// Snapshot copies the environment. The job table is not copied.
func (e *ExecEnv) Snapshot() *Snapshot {
	return &Snapshot{
		vars:  e.Vars.Clone(),
		logic: e.Logic.Clone(),
		ctx:   e.Ctx.Clone(),
	}
}

// Restore puts back the state saved by Snapshot.
func (e *ExecEnv) Restore(s *Snapshot) {
	e.Vars = s.vars
	e.Logic = s.logic
	e.Ctx = s.ctx
}

// Image is the serialized form of an ExecEnv handed to child shells.
type Image struct {
	Vars           map[string]string `json:"vars"`
	Exported       []string          `json:"exported"`
	Arg0           string            `json:"arg0"`
	Params         []string          `json:"params"`
	Status         int               `json:"status"`
	LastBackground int               `json:"last_background,omitempty"`
	Funcs          map[string]string `json:"funcs"`
	Aliases        map[string]string `json:"aliases"`
	// Fds lists the descriptors the child inherits at the same numbers.
	Fds []int `json:"fds"`
}

// Image captures the environment for a child shell.
func (e *ExecEnv) Image() *Image {
	v := e.Vars
	img := &Image{
		Vars:           copyMap(v.vars),
		Arg0:           v.arg0,
		Params:         v.Params(),
		Status:         v.status,
		LastBackground: v.lastBg,
		Funcs:          copyMap(e.Logic.funcs),
		Aliases:        copyMap(e.Logic.aliases),
		Fds:            e.Ctx.Fds(),
	}
	for name := range v.exported {
		img.Exported = append(img.Exported, name)
	}
	sort.Strings(img.Exported)
	return img
}

// FromImage rebuilds an environment. open returns the inherited file for a
// descriptor number.
func FromImage(img *Image, table *jobs.Table, open func(fd int) *os.File) *ExecEnv {
	vars := NewVars()
	for k, val := range img.Vars {
		vars.Set(k, val)
	}
	for _, name := range img.Exported {
		vars.MarkExported(name)
	}
	vars.SetArg0(img.Arg0)
	vars.SetParams(img.Params)
	vars.SetStatus(img.Status)
	vars.SetLastBackground(img.LastBackground)

	logic := NewLogic()
	for k, body := range img.Funcs {
		logic.SetFunc(k, body)
	}
	for k, val := range img.Aliases {
		logic.SetAlias(k, val)
	}

	ctx := &Ctx{fds: make(map[int]*os.File)}
	for _, fd := range img.Fds {
		ctx.Set(fd, open(fd))
	}

	return &ExecEnv{Vars: vars, Logic: logic, Ctx: ctx, Jobs: table}
}
