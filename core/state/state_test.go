package state

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVars_localAndExported(t *testing.T) {
	v := NewVarsFromEnviron([]string{"PATH=/bin", "HOME=/root", "EMPTY", "=bad"})

	v.Set("FOO", "bar")
	assert.Equal(t, "bar", v.Get("FOO"))
	assert.Equal(t, []string{"EMPTY=", "HOME=/root", "PATH=/bin"}, v.Environ())

	v.MarkExported("FOO")
	assert.Equal(t, []string{"EMPTY=", "FOO=bar", "HOME=/root", "PATH=/bin"}, v.Environ())

	v.Set("FOO", "baz")
	assert.Contains(t, v.Environ(), "FOO=baz", "exported variables stay exported")

	v.Unexport("FOO")
	assert.NotContains(t, v.Environ(), "FOO=baz")
	assert.Equal(t, "baz", v.Get("FOO"))

	v.Unset("HOME")
	_, ok := v.Lookup("HOME")
	assert.False(t, ok)
	assert.Equal(t, []string{"EMPTY", "FOO", "PATH"}, v.Names())
}

func TestVars_Lookup_special(t *testing.T) {
	v := NewVars()
	v.SetArg0("forksh")
	v.SetParams([]string{"a", "b c"})
	v.SetStatus(3)
	v.SetPid(99)

	cases := map[string]struct {
		name  string
		value string
		ok    bool
	}{
		"status":        {"?", "3", true},
		"pid":           {"$", "99", true},
		"count":         {"#", "2", true},
		"all":           {"@", "a b c", true},
		"star":          {"*", "a b c", true},
		"arg0":          {"0", "forksh", true},
		"first":         {"1", "a", true},
		"second":        {"2", "b c", true},
		"out of range":  {"3", "", false},
		"no background": {"!", "", false},
	}
	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			value, ok := v.Lookup(tc.name)
			assert.Equal(t, tc.value, value)
			assert.Equal(t, tc.ok, ok)
		})
	}

	v.SetLastBackground(1234)
	assert.Equal(t, "1234", v.Get("!"))
}

func TestVars_Shift(t *testing.T) {
	v := NewVars()
	v.SetParams([]string{"a", "b", "c"})

	require.NoError(t, v.Shift(1))
	assert.Equal(t, []string{"b", "c"}, v.Params())

	assert.EqualError(t, v.Shift(5), "shift: 5: shift count out of range")
	assert.Equal(t, []string{"b", "c"}, v.Params())

	require.NoError(t, v.Shift(2))
	assert.Empty(t, v.Params())
}

func TestLogic(t *testing.T) {
	l := NewLogic()
	l.SetFunc("greet", "echo hi")
	l.SetAlias("ll", "ls -l")
	l.SetAlias("la", "ls -a")

	body, ok := l.Func("greet")
	assert.True(t, ok)
	assert.Equal(t, "echo hi", body)
	assert.Equal(t, []string{"la", "ll"}, l.AliasNames())

	clone := l.Clone()
	assert.True(t, l.UnsetAlias("ll"))
	assert.False(t, l.UnsetAlias("ll"))
	l.UnsetFunc("greet")

	_, ok = clone.Alias("ll")
	assert.True(t, ok, "clones are independent")
	assert.Equal(t, []string{"greet"}, clone.FuncNames())

	l.ClearAliases()
	assert.Empty(t, l.AliasNames())
}

func TestCtx_Files(t *testing.T) {
	ctx := NewCtx(os.Stdin, os.Stdout, os.Stderr)
	assert.Equal(t, []int{0, 1, 2}, ctx.Fds())

	ctx.Set(5, os.Stdout)
	files := ctx.Files()
	require.Len(t, files, 6)
	assert.Nil(t, files[3])
	assert.Nil(t, files[4])
	assert.Same(t, os.Stdout, files[5])

	clone := ctx.Clone()
	ctx.Set(1, nil)
	assert.Nil(t, ctx.Stdout())
	assert.Same(t, os.Stdout, clone.Stdout())
}

func TestExecEnv_SnapshotRestore(t *testing.T) {
	env := New(NewVars(), nil)
	env.Vars.SetParams([]string{"outer"})
	env.Vars.Set("X", "1")

	snap := env.Snapshot()
	env.Vars.SetParams([]string{"inner", "args"})
	env.Vars.Set("X", "2")
	env.Vars.Export("Y", "3")
	env.Logic.SetFunc("f", "true")
	env.Ctx.Set(1, os.Stderr)
	env.Restore(snap)

	assert.Equal(t, []string{"outer"}, env.Vars.Params())
	assert.Equal(t, "1", env.Vars.Get("X"))
	assert.Empty(t, env.Vars.Environ())
	_, ok := env.Logic.Func("f")
	assert.False(t, ok)
	assert.Same(t, os.Stdout, env.Ctx.Stdout())
}

func TestExecEnv_Image(t *testing.T) {
	env := New(NewVarsFromEnviron([]string{"PATH=/bin"}), nil)
	env.Vars.Set("LOCAL", "x")
	env.Vars.SetArg0("script.sh")
	env.Vars.SetParams([]string{"one"})
	env.Vars.SetStatus(4)
	env.Logic.SetFunc("f", "echo f")
	env.Logic.SetAlias("l", "ls")
	env.Ctx.Set(7, os.Stdout)

	data, err := json.Marshal(env.Image())
	require.NoError(t, err)

	var img Image
	require.NoError(t, json.Unmarshal(data, &img))
	assert.Equal(t, []int{0, 1, 2, 7}, img.Fds)

	var opened []int
	child := FromImage(&img, nil, func(fd int) *os.File {
		opened = append(opened, fd)
		return os.Stdout
	})

	assert.Equal(t, []int{0, 1, 2, 7}, opened)
	assert.Equal(t, []string{"PATH=/bin"}, child.Vars.Environ())
	assert.Equal(t, "x", child.Vars.Get("LOCAL"))
	assert.Equal(t, "script.sh", child.Vars.Arg0())
	assert.Equal(t, []string{"one"}, child.Vars.Params())
	assert.Equal(t, 4, child.Vars.Status())
	body, _ := child.Logic.Func("f")
	assert.Equal(t, "echo f", body)
	alias, _ := child.Logic.Alias("l")
	assert.Equal(t, "ls", alias)
	assert.Same(t, os.Stdout, child.Ctx.Fd(7))
}

func TestExecMode_String(t *testing.T) {
	assert.Equal(t, "must-fork", MustFork.String())
	assert.Equal(t, "already-isolated", AlreadyIsolated.String())
}
