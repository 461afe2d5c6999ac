// Package vostest provides a recording VOS for tests.
package vostest

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/josephlewis42/forksh/core/vos"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// ShellPath is the executable path reported by FakeOS.
const ShellPath = "/usr/bin/forksh"

// ShellPid is the pid reported for the shell itself.
const ShellPid = 100

// StartCall records a StartProcess call.
type StartCall struct {
	Pid  int
	Pgid int
	Path string
	Argv []string
	Env  []string
	// Files are duplicates of the files handed to the child, indexed by
	// child descriptor. They stay open until the test ends.
	Files []*os.File
}

// ExecCall records an Exec call.
type ExecCall struct {
	Path string
	Argv []string
	Env  []string
}

// KillCall records a Kill call.
type KillCall struct {
	Pid    int
	Signal syscall.Signal
}

// FakeOS records process operations instead of performing them. Files,
// pipes and memory files are real so descriptor handling can be checked.
type FakeOS struct {
	afero.Fs

	mu sync.Mutex
	t  testing.TB

	// Env is the environment the shell starts with.
	Env []string
	// Wd is the working directory.
	Wd string
	// Terminal makes every descriptor a terminal.
	Terminal bool
	// Statuses maps a program's base name to its exit status.
	Statuses map[string]int
	// StopOnce lists base names whose first wait reports a stop.
	StopOnce map[string]bool
	// Busy lists base names that never change state under WaitNoHang.
	Busy map[string]bool
	// StartErr fails every StartProcess call when set.
	StartErr error

	nextPid    int
	Started    []*StartCall
	Execs      []ExecCall
	Dups       [][2]int
	Closed     []int
	Kills      []KillCall
	Pipes      int
	Waited     []int
	Exits      []int
	Foreground []int

	reported map[int]bool
}

var _ vos.VOS = (*FakeOS)(nil)

// NewFakeOS creates a FakeOS whose PATH contains /bin with the given
// executables.
func NewFakeOS(t testing.TB, programs ...string) *FakeOS {
	f := &FakeOS{
		Fs:       afero.NewMemMapFs(),
		t:        t,
		Env:      []string{"PATH=/bin", "HOME=/home/user"},
		Wd:       "/home/user",
		Statuses: make(map[string]int),
		StopOnce: make(map[string]bool),
		Busy:     make(map[string]bool),
		nextPid:  1000,
		reported: make(map[int]bool),
	}
	_ = f.Fs.MkdirAll("/home/user", 0755)
	_ = f.Fs.MkdirAll("/bin", 0755)
	for _, p := range programs {
		f.AddProgram(p)
	}
	return f
}

// AddProgram installs an executable at /bin/name.
func (f *FakeOS) AddProgram(name string) {
	if err := afero.WriteFile(f.Fs, filepath.Join("/bin", name), []byte("#!/bin/true\n"), 0755); err != nil {
		f.t.Fatal(err)
	}
}

func (f *FakeOS) Getpid() int  { return ShellPid }
func (f *FakeOS) Getpgrp() int { return ShellPid }

func (f *FakeOS) Getwd() (string, error) {
	return f.Wd, nil
}

func (f *FakeOS) Chdir(dir string) error {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(f.Wd, dir)
	}
	fi, err := f.Fs.Stat(dir)
	if err != nil {
		return &os.PathError{Op: "chdir", Path: dir, Err: err}
	}
	if !fi.IsDir() {
		return &os.PathError{Op: "chdir", Path: dir, Err: syscall.ENOTDIR}
	}
	f.Wd = dir
	return nil
}

func (f *FakeOS) Environ() []string {
	return append([]string(nil), f.Env...)
}

func (f *FakeOS) Executable() (string, error) {
	return ShellPath, nil
}

func (f *FakeOS) track(files ...*os.File) {
	f.t.Cleanup(func() {
		for _, file := range files {
			file.Close()
		}
	})
}

// Pipe implements VProc.Pipe with a real pipe.
func (f *FakeOS) Pipe() (*os.File, *os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	f.mu.Lock()
	f.Pipes++
	f.mu.Unlock()
	return r, w, nil
}

// OpenRedir opens a real file.
func (f *FakeOS) OpenRedir(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

// MemFile uses a temporary file.
func (f *FakeOS) MemFile(name string, content []byte) (*os.File, error) {
	file, err := os.CreateTemp(f.t.TempDir(), name)
	if err != nil {
		return nil, err
	}
	if _, err := file.Write(content); err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, 0); err != nil {
		return nil, err
	}
	return file, nil
}

// StartProcess records the call and assigns the next pid.
func (f *FakeOS) StartProcess(path string, argv []string, attr *vos.ProcAttr) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StartErr != nil {
		return 0, f.StartErr
	}
	if attr == nil {
		attr = &vos.ProcAttr{}
	}

	f.nextPid++
	call := &StartCall{
		Pid:  f.nextPid,
		Pgid: attr.Pgid,
		Path: path,
		Argv: append([]string(nil), argv...),
		Env:  append([]string(nil), attr.Env...),
	}
	if call.Pgid == 0 {
		call.Pgid = call.Pid
	}
	for _, file := range attr.Files {
		if file == nil {
			call.Files = append(call.Files, nil)
			continue
		}
		fd, err := unix.Dup(int(file.Fd()))
		if err != nil {
			return 0, err
		}
		dup := os.NewFile(uintptr(fd), file.Name())
		f.track(dup)
		call.Files = append(call.Files, dup)
	}
	f.Started = append(f.Started, call)
	return call.Pid, nil
}

// Exec records the call and returns nil as if the image was replaced.
func (f *FakeOS) Exec(path string, argv, env []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Execs = append(f.Execs, ExecCall{Path: path, Argv: argv, Env: env})
	return nil
}

// Dup2 records the call.
func (f *FakeOS) Dup2(oldfd, newfd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Dups = append(f.Dups, [2]int{oldfd, newfd})
	return nil
}

// DupAbove returns min without copying anything.
func (f *FakeOS) DupAbove(fd, min int) (int, error) {
	return min, nil
}

// Close records the call.
func (f *FakeOS) Close(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = append(f.Closed, fd)
	return nil
}

// Wait reports the configured status of a started process.
func (f *FakeOS) Wait(pid int, flags vos.WaitFlags) (vos.ProcStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.find(pid)
	if call == nil || f.reported[pid] {
		return vos.ProcStatus{}, os.NewSyscallError("wait4", syscall.ECHILD)
	}
	name := filepath.Base(call.Argv[0])
	if f.Busy[name] && flags&vos.WaitNoHang != 0 {
		return vos.ProcStatus{}, nil
	}
	f.Waited = append(f.Waited, pid)

	if f.StopOnce[name] && flags&vos.WaitUntraced != 0 {
		delete(f.StopOnce, name)
		return vos.ProcStatus{Pid: pid, Stopped: true, Signal: syscall.SIGTSTP}, nil
	}
	f.reported[pid] = true
	return vos.ExitedWith(pid, f.Statuses[name]), nil
}

func (f *FakeOS) find(pid int) *StartCall {
	for _, call := range f.Started {
		if call.Pid == pid {
			return call
		}
	}
	return nil
}

// Kill records the call.
func (f *FakeOS) Kill(pid int, sig syscall.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Kills = append(f.Kills, KillCall{Pid: pid, Signal: sig})
	return nil
}

// Setpgid is a no-op, StartProcess records the group.
func (f *FakeOS) Setpgid(pid, pgid int) error {
	return nil
}

// Exit records the status.
func (f *FakeOS) Exit(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Exits = append(f.Exits, code)
}

func (f *FakeOS) IsTerminal(fd int) bool {
	return f.Terminal
}

func (f *FakeOS) Tcsetpgrp(fd, pgid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Foreground = append(f.Foreground, pgid)
	return nil
}

func (f *FakeOS) Tcgetpgrp(fd int) (int, error) {
	return ShellPid, nil
}

// Names returns argv[0] of each started process in order.
func (f *FakeOS) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, call := range f.Started {
		out = append(out, call.Argv[0])
	}
	return out
}
