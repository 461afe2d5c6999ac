package jobs

import (
	"bytes"
	"syscall"
	"testing"

	"github.com/josephlewis42/forksh/core/vos"
	"github.com/josephlewis42/forksh/core/vos/vostest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusRecorder struct {
	status int
	calls  int
}

func (s *statusRecorder) SetStatus(status int) {
	s.status = status
	s.calls++
}

func start(t *testing.T, sys *vostest.FakeOS, name string, pgid int) *ChildProc {
	t.Helper()
	pid, err := sys.StartProcess("/bin/"+name, []string{name}, &vos.ProcAttr{Pgid: pgid})
	require.NoError(t, err)
	if pgid == 0 {
		pgid = pid
	}
	return NewChildProc(pid, name, pgid)
}

func TestBuilder(t *testing.T) {
	job := NewBuilder().
		WithChildren(NewChildProc(10, "a", 10), NewChildProc(11, "b", 10)).
		Build()

	assert.Equal(t, 10, job.Pgid)
	assert.Equal(t, "a | b", job.Command)
	assert.Equal(t, []int{10, 11}, job.Pids())
	assert.Equal(t, Running, job.State())

	job = NewBuilder().WithPgid(3).WithCommand("sleep 1").Build()
	assert.Equal(t, 3, job.Pgid)
	assert.Equal(t, "sleep 1", job.Command)
	assert.Equal(t, Done, job.State())
}

func TestTable_WaitFg(t *testing.T) {
	sys := vostest.NewFakeOS(t, "false")
	sys.Statuses["false"] = 1

	var finished []*Job
	table := NewTable(sys, OnFinish(func(j *Job) { finished = append(finished, j) }))
	job := NewBuilder().WithChildren(start(t, sys, "false", 0)).Build()

	sink := &statusRecorder{}
	require.NoError(t, table.WaitFg(job, sink))

	assert.Equal(t, 1, sink.status)
	assert.Equal(t, Done, job.State())
	assert.Empty(t, table.List())
	assert.Equal(t, []*Job{job}, finished)
	assert.Empty(t, sys.Foreground, "no terminal handoff when not interactive")
}

func TestTable_WaitFg_stopped(t *testing.T) {
	sys := vostest.NewFakeOS(t, "sleep")
	sys.StopOnce["sleep"] = true

	out := &bytes.Buffer{}
	table := NewTable(sys, WithOutput(out))
	job := NewBuilder().WithChildren(start(t, sys, "sleep", 0)).WithCommand("sleep 10").Build()

	sink := &statusRecorder{}
	require.NoError(t, table.WaitFg(job, sink))

	assert.Equal(t, 148, sink.status)
	assert.Equal(t, "[1]+  Stopped                 sleep 10\n", out.String())
	assert.Equal(t, []*Job{job}, table.List())

	// Resume in the foreground; the second wait reports the exit.
	out.Reset()
	require.NoError(t, table.Continue(job, true, sink))
	assert.Equal(t, "sleep 10\n", out.String())
	assert.Equal(t, 0, sink.status)
	assert.Empty(t, table.List())
	assert.Equal(t, []vostest.KillCall{{Pid: -job.Pgid, Signal: syscall.SIGCONT}}, sys.Kills)
}

func TestTable_WaitFg_terminal(t *testing.T) {
	sys := vostest.NewFakeOS(t, "vi")
	sys.Terminal = true

	table := NewTable(sys, WithTerminal(0))
	job := NewBuilder().WithChildren(start(t, sys, "vi", 0)).Build()
	require.NoError(t, table.WaitFg(job, nil))

	assert.Equal(t, []int{job.Pgid, vostest.ShellPid}, sys.Foreground)
}

func TestTable_WaitFg_sharedGroup(t *testing.T) {
	sys := vostest.NewFakeOS(t, "a", "b")
	table := NewTable(sys)

	first := start(t, sys, "a", 0)
	second := start(t, sys, "b", first.Pid)
	for _, c := range []*ChildProc{first, second} {
		job := NewBuilder().WithChildren(c).WithPgid(first.Pid).Build()
		require.NoError(t, table.WaitFg(job, nil))
	}

	assert.Equal(t, []int{first.Pid, second.Pid}, sys.Waited)
	assert.Equal(t, first.Pid, sys.Started[1].Pgid)
}

func TestTable_Get(t *testing.T) {
	sys := vostest.NewFakeOS(t)
	table := NewTable(sys)

	_, err := table.Get("")
	assert.Error(t, err)

	one := NewBuilder().WithPgid(1).WithCommand("one").Build()
	two := NewBuilder().WithPgid(2).WithCommand("two").Build()
	assert.Equal(t, 1, table.Add(one))
	assert.Equal(t, 2, table.Add(two))

	cases := map[string]struct {
		spec     string
		expected *Job
	}{
		"empty":   {"", two},
		"plus":    {"%+", two},
		"percent": {"%%", two},
		"number":  {"%1", one},
		"bare":    {"1", one},
	}
	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			actual, err := table.Get(tc.spec)
			require.NoError(t, err)
			assert.Same(t, tc.expected, actual)
		})
	}

	_, err = table.Get("%9")
	assert.EqualError(t, err, "%9: no such job")

	table.Remove(two)
	current, err := table.Get("%+")
	require.NoError(t, err)
	assert.Same(t, one, current)
	assert.Equal(t, 2, table.Add(two), "numbers are reused once free")
}

func TestTable_Reap(t *testing.T) {
	sys := vostest.NewFakeOS(t, "make")
	sys.Statuses["make"] = 2

	out := &bytes.Buffer{}
	table := NewTable(sys, WithOutput(out))
	job := NewBuilder().WithChildren(start(t, sys, "make", 0)).WithCommand("make all").Build()
	table.Add(job)

	table.Reap()
	assert.Equal(t, "[1]+  Exit 2                  make all\n", out.String())
	assert.Empty(t, table.List())

	out.Reset()
	table.Reap()
	assert.Empty(t, out.String())
}

func TestTable_Continue_background(t *testing.T) {
	sys := vostest.NewFakeOS(t)
	out := &bytes.Buffer{}
	table := NewTable(sys, WithOutput(out))

	job := NewBuilder().WithChildren(&ChildProc{Pid: 7, Pgid: 7, State: Stopped}).WithCommand("top").Build()
	table.Add(job)

	require.NoError(t, table.Continue(job, false, nil))
	assert.Equal(t, "[1]+ top &\n", out.String())
	assert.Equal(t, Running, job.State())
}

func TestTable_Line(t *testing.T) {
	sys := vostest.NewFakeOS(t)
	table := NewTable(sys)
	job := NewBuilder().WithChildren(NewChildProc(42, "cat", 42)).WithCommand("cat").Build()
	table.Add(job)

	assert.Equal(t, "[1]+  Running                 cat", table.Line(job, false))
	assert.Equal(t, "[1]+  42 Running                 cat", table.Line(job, true))
}
