// Package jobs tracks the processes the shell spawned and implements
// foreground waits, stopped jobs and background completion notices.
package jobs

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/josephlewis42/forksh/core/shellerr"
	"github.com/josephlewis42/forksh/core/vos"
)

// State of a process or job.
type State int

const (
	Running State = iota
	Stopped
	Done
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	default:
		return "Running"
	}
}

// ChildProc is one spawned process.
type ChildProc struct {
	Pid    int
	Name   string
	Pgid   int
	State  State
	Status vos.ProcStatus
}

// NewChildProc creates a running child.
func NewChildProc(pid int, name string, pgid int) *ChildProc {
	return &ChildProc{Pid: pid, Name: name, Pgid: pgid}
}

// Job is a group of children sharing a process group.
type Job struct {
	// ID is the job number, 0 until the job enters a Table.
	ID       int
	Pgid     int
	Command  string
	Children []*ChildProc
}

// State is Stopped if any child is stopped, Done if every child finished
// and Running otherwise.
func (j *Job) State() State {
	done := true
	for _, c := range j.Children {
		switch c.State {
		case Stopped:
			return Stopped
		case Running:
			done = false
		}
	}
	if done {
		return Done
	}
	return Running
}

// Status is the shell status of the last child.
func (j *Job) Status() int {
	if len(j.Children) == 0 {
		return 0
	}
	return j.Children[len(j.Children)-1].Status.ExitStatus()
}

// Pids lists the children's pids in spawn order.
func (j *Job) Pids() []int {
	var out []int
	for _, c := range j.Children {
		out = append(out, c.Pid)
	}
	return out
}

// Builder assembles a Job.
type Builder struct {
	job Job
}

// NewBuilder starts an empty job.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithChildren appends children to the job.
func (b *Builder) WithChildren(children ...*ChildProc) *Builder {
	b.job.Children = append(b.job.Children, children...)
	return b
}

// WithPgid sets the process group. It defaults to the first child's pid.
func (b *Builder) WithPgid(pgid int) *Builder {
	b.job.Pgid = pgid
	return b
}

// WithCommand sets the text shown in job listings.
func (b *Builder) WithCommand(cmd string) *Builder {
	b.job.Command = cmd
	return b
}

// Build returns the job.
func (b *Builder) Build() *Job {
	job := b.job
	if job.Pgid == 0 && len(job.Children) > 0 {
		job.Pgid = job.Children[0].Pid
	}
	if job.Command == "" {
		var names []string
		for _, c := range job.Children {
			names = append(names, c.Name)
		}
		job.Command = strings.Join(names, " | ")
	}
	return &job
}

// StatusSink receives the status of a finished foreground job.
type StatusSink interface {
	SetStatus(status int)
}

// OS is the part of vos.VOS job control needs.
type OS interface {
	Wait(pid int, flags vos.WaitFlags) (vos.ProcStatus, error)
	Kill(pid int, sig syscall.Signal) error
	IsTerminal(fd int) bool
	Tcsetpgrp(fd, pgid int) error
	Getpgrp() int
}

// Option configures a Table.
type Option func(*Table)

// WithOutput sets where job notices are printed.
func WithOutput(w io.Writer) Option {
	return func(t *Table) {
		t.out = w
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *log.Logger) Option {
	return func(t *Table) {
		t.log = l
	}
}

// WithTerminal enables terminal handoff on fd for foreground jobs.
func WithTerminal(fd int) Option {
	return func(t *Table) {
		t.tty = fd
		t.interactive = true
	}
}

// OnFinish is called once for every job that completes.
func OnFinish(fn func(*Job)) Option {
	return func(t *Table) {
		t.onFinish = fn
	}
}

// Table holds background and stopped jobs.
type Table struct {
	os  OS
	out io.Writer
	log *log.Logger

	interactive bool
	tty         int
	shellPgid   int

	onFinish func(*Job)

	jobs    []*Job
	current int
}

// NewTable creates an empty job table.
func NewTable(sys OS, opts ...Option) *Table {
	t := &Table{
		os:        sys,
		out:       io.Discard,
		log:       log.New(io.Discard),
		shellPgid: sys.Getpgrp(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Table) ownsTerminal() bool {
	return t.interactive && t.os.IsTerminal(t.tty)
}

// WaitFg waits for a foreground job and reports its status to sink. A job
// that stops is kept in the table and reports 128+signal.
func (t *Table) WaitFg(job *Job, sink StatusSink) error {
	if t.ownsTerminal() {
		if err := t.os.Tcsetpgrp(t.tty, job.Pgid); err != nil {
			t.log.Warn("couldn't hand over terminal", "pgid", job.Pgid, "err", err)
		}
		defer func() {
			if err := t.os.Tcsetpgrp(t.tty, t.shellPgid); err != nil {
				t.log.Warn("couldn't take back terminal", "pgid", t.shellPgid, "err", err)
			}
		}()
	}

	t.log.Debug("waiting for job", "pgid", job.Pgid, "pids", job.Pids())
	for _, child := range job.Children {
		if child.State != Running {
			continue
		}
		st, err := t.os.Wait(child.Pid, vos.WaitUntraced)
		if err != nil {
			return shellerr.Wrap(shellerr.Internal, err, "wait for %d", child.Pid)
		}
		t.update(child, st)
	}

	status := job.Status()
	if job.State() == Stopped {
		for _, c := range job.Children {
			if c.State == Stopped {
				status = c.Status.ExitStatus()
			}
		}
		if job.ID == 0 {
			t.Add(job)
		}
		t.current = job.ID
		fmt.Fprintln(t.out, t.Line(job, false))
	} else {
		t.finish(job)
	}
	if sink != nil {
		sink.SetStatus(status)
	}
	return nil
}

func (t *Table) update(child *ChildProc, st vos.ProcStatus) {
	child.Status = st
	if st.Stopped {
		child.State = Stopped
	} else {
		child.State = Done
	}
	t.log.Debug("child changed state", "pid", child.Pid, "status", st)
}

func (t *Table) finish(job *Job) {
	if job.ID != 0 {
		t.Remove(job)
	}
	if t.onFinish != nil {
		t.onFinish(job)
	}
}

// Add registers a job and makes it current. It returns the job number.
func (t *Table) Add(job *Job) int {
	id := 1
	for _, j := range t.jobs {
		if j.ID >= id {
			id = j.ID + 1
		}
	}
	job.ID = id
	t.jobs = append(t.jobs, job)
	t.current = id
	return id
}

// Remove drops a job from the table.
func (t *Table) Remove(job *Job) {
	for i, j := range t.jobs {
		if j == job {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			break
		}
	}
	if t.current == job.ID {
		t.current = 0
		for _, j := range t.jobs {
			if j.ID > t.current {
				t.current = j.ID
			}
		}
	}
}

// List returns the jobs ordered by number.
func (t *Table) List() []*Job {
	out := append([]*Job(nil), t.jobs...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Get resolves a job spec: "", "%+" and "%%" name the current job, "%n" and
// "n" name job n.
func (t *Table) Get(spec string) (*Job, error) {
	switch spec {
	case "", "%", "%+", "%%":
		for _, j := range t.jobs {
			if j.ID == t.current {
				return j, nil
			}
		}
		return nil, shellerr.New(shellerr.Syntax, "current: no such job")
	}

	id, err := strconv.Atoi(strings.TrimPrefix(spec, "%"))
	if err != nil {
		return nil, shellerr.New(shellerr.Syntax, "%s: no such job", spec)
	}
	for _, j := range t.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, shellerr.New(shellerr.Syntax, "%s: no such job", spec)
}

// Marker is "+" for the current job and " " otherwise.
func (t *Table) Marker(job *Job) string {
	if job.ID == t.current {
		return "+"
	}
	return " "
}

// Line formats a job the way the jobs builtin lists it.
func (t *Table) Line(job *Job, withPids bool) string {
	state := job.State().String()
	if st := job.Status(); job.State() == Done && st != 0 {
		state = fmt.Sprintf("Exit %d", st)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d]%s  ", job.ID, t.Marker(job))
	if withPids {
		fmt.Fprintf(&sb, "%d ", job.Pgid)
	}
	fmt.Fprintf(&sb, "%-24s%s", state, job.Command)
	return sb.String()
}

// Reap collects finished background jobs without blocking and prints a
// notice for each.
func (t *Table) Reap() {
	for _, job := range t.List() {
		before := job.State()
		for _, child := range job.Children {
			if child.State == Done {
				continue
			}
			st, err := t.os.Wait(child.Pid, vos.WaitNoHang|vos.WaitUntraced)
			if errors.Is(err, syscall.ECHILD) {
				child.State = Done
				continue
			}
			if err != nil {
				t.log.Warn("reap failed", "pid", child.Pid, "err", err)
				continue
			}
			if st.Pid == 0 {
				continue
			}
			t.update(child, st)
		}

		switch after := job.State(); {
		case after == Done:
			fmt.Fprintln(t.out, t.Line(job, false))
			t.finish(job)
		case after == Stopped && before != Stopped:
			fmt.Fprintln(t.out, t.Line(job, false))
		}
	}
}

// Continue resumes a job with SIGCONT. In the foreground it is waited for
// like any other foreground job.
func (t *Table) Continue(job *Job, fg bool, sink StatusSink) error {
	if err := t.os.Kill(-job.Pgid, syscall.SIGCONT); err != nil {
		return shellerr.Wrap(shellerr.ExecFailed, err, "continue job %d", job.ID)
	}
	for _, c := range job.Children {
		if c.State == Stopped {
			c.State = Running
		}
	}
	t.current = job.ID

	if !fg {
		fmt.Fprintf(t.out, "[%d]%s %s &\n", job.ID, t.Marker(job), job.Command)
		return nil
	}
	fmt.Fprintln(t.out, job.Command)
	return t.WaitFg(job, sink)
}
