// Package vos is the boundary between the shell and the operating system.
//
// The orchestrator never calls os or unix process functions directly, it goes
// through VOS so tests can record spawns, pipes and waits.
package vos

import (
	"os"
	"syscall"
)

// VTerm controls the terminal the shell runs on.
type VTerm interface {
	// IsTerminal reports whether fd refers to a terminal.
	IsTerminal(fd int) bool
	// Tcsetpgrp makes pgid the foreground process group of the terminal.
	Tcsetpgrp(fd, pgid int) error
	// Tcgetpgrp returns the foreground process group of the terminal.
	Tcgetpgrp(fd int) (int, error)
}

// VProc manages processes and descriptors.
type VProc interface {
	Getpid() int
	Getpgrp() int
	Getwd() (string, error)
	Chdir(dir string) error
	// Environ returns the environment the shell was started with.
	Environ() []string
	// Executable returns the path of the running shell binary.
	Executable() (string, error)

	// Pipe returns a connected pair of files.
	Pipe() (r, w *os.File, err error)
	// OpenRedir opens a redirection target.
	OpenRedir(name string, flag int, perm os.FileMode) (*os.File, error)
	// MemFile returns a readable file holding content, positioned at the
	// start.
	MemFile(name string, content []byte) (*os.File, error)

	// StartProcess starts path in a new process and returns its pid.
	StartProcess(path string, argv []string, attr *ProcAttr) (int, error)
	// Exec replaces the current process image. It only returns on failure.
	Exec(path string, argv, env []string) error
	// Dup2 makes newfd a copy of oldfd in the current process.
	Dup2(oldfd, newfd int) error
	// DupAbove copies fd to the lowest free close-on-exec descriptor >= min.
	DupAbove(fd, min int) (int, error)
	// Close closes a raw descriptor in the current process.
	Close(fd int) error
	// Wait waits for a child to change state.
	Wait(pid int, flags WaitFlags) (ProcStatus, error)
	// Kill sends sig to pid, or to the group -pid.
	Kill(pid int, sig syscall.Signal) error
	// Setpgid moves pid into the process group pgid.
	Setpgid(pid, pgid int) error
	// Exit terminates the current process.
	Exit(code int)
}

// VOS provides the operating system to the shell.
type VOS interface {
	VFS
	VProc
	VTerm
}
