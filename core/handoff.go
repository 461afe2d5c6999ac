package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/josephlewis42/forksh/commands"
	"github.com/josephlewis42/forksh/core/jobs"
	"github.com/josephlewis42/forksh/core/shellerr"
	"github.com/josephlewis42/forksh/core/state"
	"github.com/josephlewis42/forksh/core/vos"
)

const (
	// ChildCommand is the hidden subcommand child shells are started with.
	ChildCommand = "__child"
	// HandoffFlag names the descriptor the child reads its Handoff from.
	HandoffFlag = "handoff-fd"
)

// Mode selects how a child shell runs its script.
type Mode string

const (
	// ModeStage runs a single pipeline stage or background command. The
	// child may replace itself with the command.
	ModeStage Mode = "stage"
	// ModeBody runs a subshell body like a script.
	ModeBody Mode = "body"
)

// Handoff is what a parent shell sends a child over the handoff pipe.
type Handoff struct {
	Mode      Mode         `json:"mode"`
	Script    string       `json:"script"`
	Image     *state.Image `json:"image"`
	Pid       int          `json:"pid"`
	SessionID string       `json:"session_id,omitempty"`
	// ConfigDir locates the audit log the child appends to.
	ConfigDir string `json:"config_dir,omitempty"`
}

// forkShell starts a copy of the shell running script with the descriptors
// of ctx. The environment travels as JSON over a pipe placed just above the
// child's last descriptor.
func (s *Shell) forkShell(mode Mode, script string, ctx *state.Ctx, pgid int) (int, error) {
	exe, err := s.OS.Executable()
	if err != nil {
		return 0, shellerr.Wrap(shellerr.ExecFailed, err, "find shell executable")
	}
	r, w, err := s.OS.Pipe()
	if err != nil {
		return 0, shellerr.Wrap(shellerr.IO, err, "handoff pipe")
	}
	defer w.Close()

	files := ctx.Files()
	handoffFd := len(files)
	files = append(files, r)

	img := s.Env.Image()
	img.Fds = ctx.Fds()
	handoff := &Handoff{
		Mode:      mode,
		Script:    script,
		Image:     img,
		Pid:       s.Env.Vars.Pid(),
		SessionID: s.audit.ID(),
		ConfigDir: s.configDir,
	}

	argv := []string{s.Env.Vars.Arg0(), ChildCommand, "--" + HandoffFlag, strconv.Itoa(handoffFd)}
	pid, err := s.OS.StartProcess(exe, argv, &vos.ProcAttr{
		Env:   s.Env.Vars.Environ(),
		Files: files,
		Pgid:  pgid,
	})
	r.Close()
	if err != nil {
		return 0, shellerr.Wrap(shellerr.ExecFailed, err, "start child shell")
	}
	s.log.Debug("forked shell", "pid", pid, "mode", mode, "script", script)

	if err := json.NewEncoder(w).Encode(handoff); err != nil {
		// The child sees a truncated handoff and exits.
		s.log.Warn("couldn't send handoff", "pid", pid, "err", err)
	}
	return pid, nil
}

// DecodeHandoff reads a handoff sent by forkShell.
func DecodeHandoff(r io.Reader) (*Handoff, error) {
	var h Handoff
	if err := json.NewDecoder(r).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode handoff: %w", err)
	}
	if h.Image == nil {
		return nil, errors.New("decode handoff: missing image")
	}
	switch h.Mode {
	case ModeStage, ModeBody:
	default:
		return nil, fmt.Errorf("decode handoff: unknown mode %q", h.Mode)
	}
	return &h, nil
}

// ChildEnv rebuilds the parent's environment in a child shell. open returns
// the inherited file for a descriptor.
func ChildEnv(sys vos.VOS, h *Handoff, open func(fd int) *os.File, opts ...jobs.Option) *state.ExecEnv {
	env := state.FromImage(h.Image, jobs.NewTable(sys, opts...), open)
	env.Vars.SetPid(h.Pid)
	return env
}

// InheritedFile wraps a descriptor inherited from the parent shell.
func InheritedFile(fd int) *os.File {
	return os.NewFile(uintptr(fd), "fd"+strconv.Itoa(fd))
}

// RunHandoff runs the script of a child shell and returns its exit status.
func (s *Shell) RunHandoff(h *Handoff) int {
	tree, err := s.Parse(fmt.Sprintf("%s(%s)", ChildCommand, h.Mode), h.Script)
	if err != nil {
		s.Report(err)
		return shellerr.StatusOf(err)
	}

	mode := state.AlreadyIsolated
	if h.Mode == ModeBody {
		mode = state.MustFork
	}
	err = s.Walk(tree, mode)

	var exit *commands.ExitRequest
	switch {
	case err == nil:
		return s.Env.Vars.Status()
	case errors.As(err, &exit):
		return exit.Status
	case h.Mode == ModeBody:
		s.Report(err)
		return shellerr.StatusFailure
	default:
		s.Report(err)
		return shellerr.StatusOf(err)
	}
}
