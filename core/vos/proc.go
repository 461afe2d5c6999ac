package vos

import (
	"fmt"
	"os"
	"syscall"
)

// ProcAttr holds the attributes of a new process.
type ProcAttr struct {
	// Dir is the working directory, the shell's when empty.
	Dir string
	// Env entries are "key=value".
	Env []string
	// Files maps child descriptors to files by index; nil entries are closed
	// in the child.
	Files []*os.File
	// Pgid is the process group to join, 0 to lead a new one.
	Pgid int
}

// WaitFlags modify Wait.
type WaitFlags int

const (
	// WaitUntraced also reports stopped children.
	WaitUntraced WaitFlags = 1 << iota
	// WaitNoHang returns a zero ProcStatus if no child changed state.
	WaitNoHang
)

// ProcStatus is a child's change of state.
type ProcStatus struct {
	// Pid is 0 when WaitNoHang found nothing to report.
	Pid int

	Exited bool
	Code   int

	Signaled bool
	Stopped  bool
	// Signal is the terminating or stopping signal.
	Signal syscall.Signal
}

// ExitStatus converts the state to a shell status.
func (p ProcStatus) ExitStatus() int {
	if p.Signaled || p.Stopped {
		return 128 + int(p.Signal)
	}
	return p.Code
}

func (p ProcStatus) String() string {
	switch {
	case p.Stopped:
		return fmt.Sprintf("stopped (%v)", p.Signal)
	case p.Signaled:
		return fmt.Sprintf("killed (%v)", p.Signal)
	default:
		return fmt.Sprintf("exit %d", p.Code)
	}
}

// ExitedWith creates a ProcStatus for a normal exit.
func ExitedWith(pid, code int) ProcStatus {
	return ProcStatus{Pid: pid, Exited: true, Code: code}
}
