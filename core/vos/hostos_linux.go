package vos

import (
	"errors"
	"os"
	"syscall"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// HostOS is the real operating system.
type HostOS struct {
	afero.Fs
}

var _ VOS = (*HostOS)(nil)

// NewHostOS creates a VOS backed by the host.
func NewHostOS() *HostOS {
	return &HostOS{Fs: afero.NewOsFs()}
}

func (*HostOS) Getpid() int                       { return os.Getpid() }
func (*HostOS) Getpgrp() int                      { return unix.Getpgrp() }
func (*HostOS) Getwd() (string, error)            { return os.Getwd() }
func (*HostOS) Chdir(dir string) error            { return os.Chdir(dir) }
func (*HostOS) Environ() []string                 { return os.Environ() }
func (*HostOS) Executable() (string, error)       { return os.Executable() }
func (*HostOS) Pipe() (*os.File, *os.File, error) { return os.Pipe() }
func (*HostOS) Exit(code int)                     { os.Exit(code) }

// OpenRedir implements VProc.OpenRedir.
func (*HostOS) OpenRedir(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

// MemFile implements VProc.MemFile with an anonymous memory file.
func (*HostOS) MemFile(name string, content []byte) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("memfd_create", err)
	}
	f := os.NewFile(uintptr(fd), name)
	if _, err := f.Write(content); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// StartProcess implements VProc.StartProcess.
func (h *HostOS) StartProcess(path string, argv []string, attr *ProcAttr) (int, error) {
	if attr == nil {
		attr = &ProcAttr{}
	}
	start := func(pgid int) (*os.Process, error) {
		return os.StartProcess(path, argv, &os.ProcAttr{
			Dir:   attr.Dir,
			Env:   attr.Env,
			Files: attr.Files,
			Sys:   &syscall.SysProcAttr{Setpgid: true, Pgid: pgid},
		})
	}

	proc, err := start(attr.Pgid)
	if err != nil && attr.Pgid != 0 && errors.Is(err, syscall.EPERM) {
		// The group is gone; lead a new one instead.
		proc, err = start(0)
	}
	if err != nil {
		return 0, err
	}

	pid := proc.Pid
	// Waiting happens by pid through Wait.
	_ = proc.Release()

	// Also set from the parent, the child may not have run yet.
	pgid := attr.Pgid
	if pgid == 0 {
		pgid = pid
	}
	_ = unix.Setpgid(pid, pgid)

	return pid, nil
}

// Exec implements VProc.Exec.
func (*HostOS) Exec(path string, argv, env []string) error {
	return unix.Exec(path, argv, env)
}

// Dup2 implements VProc.Dup2.
func (*HostOS) Dup2(oldfd, newfd int) error {
	if oldfd == newfd {
		// dup3 rejects equal descriptors; clear close-on-exec instead.
		_, err := unix.FcntlInt(uintptr(oldfd), unix.F_SETFD, 0)
		return err
	}
	return unix.Dup3(oldfd, newfd, 0)
}

// DupAbove implements VProc.DupAbove.
func (*HostOS) DupAbove(fd, min int) (int, error) {
	return unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, min)
}

// Close implements VProc.Close.
func (*HostOS) Close(fd int) error {
	return unix.Close(fd)
}

// Wait implements VProc.Wait.
func (*HostOS) Wait(pid int, flags WaitFlags) (ProcStatus, error) {
	options := 0
	if flags&WaitUntraced != 0 {
		options |= unix.WUNTRACED
	}
	if flags&WaitNoHang != 0 {
		options |= unix.WNOHANG
	}

	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, options, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return ProcStatus{}, os.NewSyscallError("wait4", err)
		}
		if wpid == 0 {
			return ProcStatus{}, nil
		}
		return convertWaitStatus(wpid, ws), nil
	}
}

func convertWaitStatus(pid int, ws unix.WaitStatus) ProcStatus {
	switch {
	case ws.Stopped():
		return ProcStatus{Pid: pid, Stopped: true, Signal: syscall.Signal(ws.StopSignal())}
	case ws.Signaled():
		return ProcStatus{Pid: pid, Signaled: true, Signal: syscall.Signal(ws.Signal())}
	default:
		return ExitedWith(pid, ws.ExitStatus())
	}
}

// Kill implements VProc.Kill.
func (*HostOS) Kill(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}

// Setpgid implements VProc.Setpgid.
func (*HostOS) Setpgid(pid, pgid int) error {
	return unix.Setpgid(pid, pgid)
}

// IsTerminal implements VTerm.IsTerminal.
func (*HostOS) IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// Tcsetpgrp implements VTerm.Tcsetpgrp.
func (*HostOS) Tcsetpgrp(fd, pgid int) error {
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, pgid)
}

// Tcgetpgrp implements VTerm.Tcgetpgrp.
func (*HostOS) Tcgetpgrp(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCGPGRP)
}
