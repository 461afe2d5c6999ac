package commands

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/josephlewis42/forksh/core/jobs"
	"github.com/josephlewis42/forksh/core/state"
	"github.com/josephlewis42/forksh/core/vos/vostest"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testInvocation runs builtins against files so output can be inspected.
type testInvocation struct {
	t   *testing.T
	sys *vostest.FakeOS
	env *state.ExecEnv

	stdout *os.File
	stderr *os.File
}

func newTestInvocation(t *testing.T, stdin string) *testInvocation {
	t.Helper()

	dir := t.TempDir()
	in := tempFile(t, dir, "stdin", stdin)
	out := tempFile(t, dir, "stdout", "")
	errOut := tempFile(t, dir, "stderr", "")

	sys := vostest.NewFakeOS(t)
	env := state.New(state.NewVarsFromEnviron(sys.Environ()), jobs.NewTable(sys))
	env.Ctx = state.NewCtx(in, out, errOut)

	return &testInvocation{t: t, sys: sys, env: env, stdout: out, stderr: errOut}
}

func tempFile(t *testing.T, dir, name, contents string) *os.File {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func (ti *testInvocation) Run(args ...string) error {
	ti.t.Helper()
	builtin, ok := AllBuiltins[args[0]]
	require.True(ti.t, ok, "unknown builtin %q", args[0])
	return builtin(&Invocation{Args: args, Env: ti.env, OS: ti.sys})
}

func readAll(t *testing.T, f *os.File) string {
	t.Helper()
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return string(data)
}

func (ti *testInvocation) Stdout() string {
	return readAll(ti.t, ti.stdout)
}

func (ti *testInvocation) Stderr() string {
	return readAll(ti.t, ti.stderr)
}

func TestAllBuiltins(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			if AllBuiltins[name] == nil {
				t.Fatal("nil builtin", name)
			}
		})
	}
	assert.True(t, IsBuiltin("cd"))
	assert.False(t, IsBuiltin("ls"))
}

func TestHelp(t *testing.T) {
	ti := newTestInvocation(t, "")
	require.NoError(t, ti.Run("help"))

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)
	g.Assert(t, "help", []byte(ti.Stdout()))
}

func TestSimpleCommand_help(t *testing.T) {
	ti := newTestInvocation(t, "")
	require.NoError(t, ti.Run("pwd", "--help"))
	assert.True(t, strings.HasPrefix(ti.Stdout(), "usage: pwd\nPrint the name of the current working directory.\n\nFlags:\n"))
}

func TestSimpleCommand_badFlag(t *testing.T) {
	ti := newTestInvocation(t, "")
	err := ti.Run("jobs", "-z")
	assert.Equal(t, StatusError(2), err)
	assert.True(t, strings.HasPrefix(ti.Stderr(), "jobs: "))
	assert.Contains(t, ti.Stderr(), "usage: jobs [-l] [-p]")
}

func TestPwdCd(t *testing.T) {
	ti := newTestInvocation(t, "")
	require.NoError(t, ti.sys.MkdirAll("/tmp/work", 0755))

	require.NoError(t, ti.Run("cd", "/tmp/work"))
	assert.Equal(t, "/tmp/work", ti.sys.Wd)
	assert.Equal(t, "/home/user", ti.env.Vars.Get("OLDPWD"))
	assert.Equal(t, "/tmp/work", ti.env.Vars.Get("PWD"))

	require.NoError(t, ti.Run("cd", "-"))
	assert.Equal(t, "/home/user", ti.sys.Wd)
	assert.Equal(t, "/home/user\n", ti.Stdout())

	require.NoError(t, ti.Run("cd", "/tmp/work"))
	require.NoError(t, ti.Run("cd"))
	assert.Equal(t, "/home/user", ti.sys.Wd, "no argument goes home")

	require.NoError(t, ti.Run("pwd"))
	assert.Equal(t, "/home/user\n/home/user\n", ti.Stdout())

	assert.Equal(t, StatusError(1), ti.Run("cd", "/missing"))
	assert.Equal(t, "cd: /missing: file does not exist\n", ti.Stderr())
}

func TestExport(t *testing.T) {
	ti := newTestInvocation(t, "")
	vars := ti.env.Vars

	vars.Set("LOCAL", "1")
	require.NoError(t, ti.Run("export", "LOCAL", "NEW=a b"))
	assert.True(t, vars.IsExported("LOCAL"))
	assert.Equal(t, "a b", vars.Get("NEW"))

	require.NoError(t, ti.Run("export", "-n", "LOCAL"))
	assert.False(t, vars.IsExported("LOCAL"))
	assert.Equal(t, "1", vars.Get("LOCAL"))

	require.NoError(t, ti.Run("export"))
	assert.Equal(t, "export HOME=\"/home/user\"\nexport NEW=\"a b\"\nexport PATH=\"/bin\"\n", ti.Stdout())

	assert.Equal(t, StatusError(1), ti.Run("export", "1x=2"))
	assert.Equal(t, "export: `1x=2': not a valid identifier\n", ti.Stderr())
}

func TestUnset(t *testing.T) {
	ti := newTestInvocation(t, "")
	ti.env.Vars.Export("A", "1")
	ti.env.Logic.SetFunc("f", "true")
	ti.env.Logic.SetFunc("A", "true")

	require.NoError(t, ti.Run("unset", "A"))
	_, ok := ti.env.Vars.Lookup("A")
	assert.False(t, ok)
	_, ok = ti.env.Logic.Func("A")
	assert.True(t, ok, "variables are unset before functions")

	require.NoError(t, ti.Run("unset", "f"))
	_, ok = ti.env.Logic.Func("f")
	assert.False(t, ok)

	require.NoError(t, ti.Run("unset", "-f", "A"))
	assert.Empty(t, ti.env.Logic.FuncNames())
}

func TestSetShift(t *testing.T) {
	ti := newTestInvocation(t, "")
	vars := ti.env.Vars

	require.NoError(t, ti.Run("set", "--", "a", "b", "c"))
	assert.Equal(t, []string{"a", "b", "c"}, vars.Params())

	require.NoError(t, ti.Run("shift"))
	assert.Equal(t, []string{"b", "c"}, vars.Params())

	require.NoError(t, ti.Run("shift", "2"))
	assert.Empty(t, vars.Params())

	assert.Equal(t, StatusError(1), ti.Run("shift"))
	assert.Equal(t, "shift: 1: shift count out of range\n", ti.Stderr())

	require.NoError(t, ti.Run("set", "x", "y"))
	assert.Equal(t, []string{"x", "y"}, vars.Params())

	require.NoError(t, ti.Run("set", "--"))
	assert.Empty(t, vars.Params())
}

func TestSet_list(t *testing.T) {
	ti := newTestInvocation(t, "")
	ti.env.Vars = state.NewVars()
	ti.env.Vars.Set("B", "it's")
	ti.env.Vars.Set("A", "plain")

	require.NoError(t, ti.Run("set"))
	assert.Equal(t, "A=plain\nB='it'\\''s'\n", ti.Stdout())
}

func TestRead(t *testing.T) {
	cases := map[string]struct {
		input    string
		args     []string
		expected map[string]string
		err      error
	}{
		"reply": {
			input:    "hello world\n",
			args:     []string{"read"},
			expected: map[string]string{"REPLY": "hello world"},
		},
		"fields": {
			input:    "  one two three four\n",
			args:     []string{"read", "a", "b"},
			expected: map[string]string{"a": "one", "b": "two three four"},
		},
		"too few fields": {
			input:    "one\n",
			args:     []string{"read", "a", "b"},
			expected: map[string]string{"a": "one", "b": ""},
		},
		"backslash": {
			input:    `a\ b` + "\n",
			args:     []string{"read", "x"},
			expected: map[string]string{"x": "a b"},
		},
		"raw": {
			input:    `a\ b` + "\n",
			args:     []string{"read", "-r", "x"},
			expected: map[string]string{"x": `a\ b`},
		},
		"continuation": {
			input:    "a\\\nb\n",
			args:     []string{"read", "x"},
			expected: map[string]string{"x": "ab"},
		},
		"eof without newline": {
			input:    "tail",
			args:     []string{"read", "x"},
			expected: map[string]string{"x": "tail"},
			err:      StatusError(1),
		},
		"empty": {
			input:    "",
			args:     []string{"read", "x"},
			expected: map[string]string{"x": ""},
			err:      StatusError(1),
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			ti := newTestInvocation(t, tc.input)
			assert.Equal(t, tc.err, ti.Run(tc.args...))
			for name, value := range tc.expected {
				assert.Equal(t, value, ti.env.Vars.Get(name), name)
			}
		})
	}
}

func TestRead_onlyConsumesOneLine(t *testing.T) {
	ti := newTestInvocation(t, "first\nsecond\n")
	require.NoError(t, ti.Run("read", "-p", "> ", "x"))
	assert.Equal(t, "> ", ti.Stderr())

	rest, err := io.ReadAll(ti.env.Ctx.Stdin())
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(rest))
}

func TestAlias(t *testing.T) {
	ti := newTestInvocation(t, "")

	require.NoError(t, ti.Run("alias", "ll=ls -l", "g='git status'"))
	body, _ := ti.env.Logic.Alias("g")
	assert.Equal(t, "git status", body)

	require.NoError(t, ti.Run("alias"))
	assert.Equal(t, "alias g='git status'\nalias ll='ls -l'\n", ti.Stdout())

	err := ti.Run("alias", "ok=1", "broken")
	assert.EqualError(t, err, "expected an assignment in alias args")

	require.NoError(t, ti.Run("unalias", "ll"))
	assert.Equal(t, StatusError(1), ti.Run("unalias", "ll"))
	assert.Equal(t, "unalias: ll: not found\n", ti.Stderr())

	require.NoError(t, ti.Run("unalias", "-a"))
	assert.Empty(t, ti.env.Logic.AliasNames())
}

func TestEcho(t *testing.T) {
	cases := map[string]struct {
		args     []string
		expected string
	}{
		"plain":      {[]string{"echo", "a", "b"}, "a b\n"},
		"empty":      {[]string{"echo"}, "\n"},
		"no newline": {[]string{"echo", "-n", "a"}, "a"},
		"escapes":    {[]string{"echo", "-e", `a\tb`}, "a\tb\n"},
		"literal":    {[]string{"echo", `a\tb`}, `a\tb` + "\n"},
		"combined":   {[]string{"echo", "-ne", `x\n`}, "x\n"},
		"cut":        {[]string{"echo", "-e", `a\cb`, "c"}, "a"},
		"raw wins":   {[]string{"echo", "-eE", `a\tb`}, `a\tb` + "\n"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			ti := newTestInvocation(t, "")
			require.NoError(t, ti.Run(tc.args...))
			assert.Equal(t, tc.expected, ti.Stdout())
		})
	}
}

func TestExit(t *testing.T) {
	ti := newTestInvocation(t, "")
	ti.env.Vars.SetStatus(3)

	assert.Equal(t, &ExitRequest{Status: 3}, ti.Run("exit"))
	assert.Equal(t, &ExitRequest{Status: 0}, ti.Run("exit", "256"))
	assert.Equal(t, &ExitRequest{Status: 2}, ti.Run("exit", "abc"))
	assert.Equal(t, "exit: abc: numeric argument required\n", ti.Stderr())
	assert.Equal(t, StatusError(1), ti.Run("exit", "1", "2"))
}

func TestType(t *testing.T) {
	ti := newTestInvocation(t, "")
	ti.sys.AddProgram("ls")
	ti.env.Logic.SetAlias("ll", "ls -l")
	ti.env.Logic.SetFunc("greet", "echo hi")

	assert.Equal(t, StatusError(1), ti.Run("type", "ll", "greet", "cd", "ls", "nope"))
	assert.Equal(t, "ll is aliased to `ls -l'\n"+
		"greet is a function\ngreet () { echo hi; }\n"+
		"cd is a shell builtin\n"+
		"ls is /bin/ls\n", ti.Stdout())
	assert.Equal(t, "type: nope: not found\n", ti.Stderr())
}

func TestTrueFalse(t *testing.T) {
	ti := newTestInvocation(t, "")
	assert.NoError(t, ti.Run("true"))
	assert.NoError(t, ti.Run(":"))
	assert.Equal(t, StatusError(1), ti.Run("false"))
}

type fakeHistory struct {
	lines   []string
	cleared bool
}

func (h *fakeHistory) Lines() []string { return h.lines }
func (h *fakeHistory) Clear() error {
	h.cleared = true
	return nil
}

func TestHistory(t *testing.T) {
	ti := newTestInvocation(t, "")
	history := &fakeHistory{lines: []string{"ls", "cd /"}}
	inv := &Invocation{Args: []string{"history"}, Env: ti.env, OS: ti.sys, History: history}

	require.NoError(t, HistoryCmd(inv))
	assert.Equal(t, "    1  ls\n    2  cd /\n", ti.Stdout())

	inv.Args = []string{"history", "-c"}
	require.NoError(t, HistoryCmd(inv))
	assert.True(t, history.cleared)
}

func TestJobs(t *testing.T) {
	ti := newTestInvocation(t, "")
	ti.sys.AddProgram("vim")
	ti.sys.Busy["vim"] = true
	pid, err := ti.sys.StartProcess("/bin/vim", []string{"vim", "notes"}, nil)
	require.NoError(t, err)

	child := jobs.NewChildProc(pid, "vim", pid)
	child.State = jobs.Stopped
	job := jobs.NewBuilder().WithChildren(child).WithCommand("vim notes").Build()
	ti.env.Jobs.Add(job)

	require.NoError(t, ti.Run("jobs"))
	require.NoError(t, ti.Run("jobs", "-p"))
	assert.Equal(t, "[1]+  Stopped                 vim notes\n"+strconv.Itoa(pid)+"\n", ti.Stdout())

	assert.Equal(t, StatusError(1), ti.Run("fg", "%4"))
	assert.Equal(t, "fg: %4: no such job\n", ti.Stderr())

	require.NoError(t, ti.Run("bg"))
	assert.Equal(t, jobs.Running, job.State())
	require.Len(t, ti.sys.Kills, 1)
	assert.Equal(t, -pid, ti.sys.Kills[0].Pid)
}

func TestJobs_noJobControl(t *testing.T) {
	ti := newTestInvocation(t, "")
	ti.env.Jobs = nil
	assert.Equal(t, StatusError(1), ti.Run("fg"))
	assert.Equal(t, "fg: no job control\n", ti.Stderr())
}
