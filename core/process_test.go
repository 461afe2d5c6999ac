package core

import (
	"testing"

	"github.com/josephlewis42/forksh/core/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShell_installFds(t *testing.T) {
	ts := newTestShell(t)
	next := state.NewCtx(ts.stdout, ts.stderr, ts.stdout)
	next.Unset(2)

	require.NoError(t, ts.shell.installFds([]int{0, 1, 2, 5}, next))

	assert.Equal(t, [][2]int{
		{int(ts.stdout.Fd()), 0},
		{int(ts.stderr.Fd()), 1},
	}, ts.sys.Dups)
	assert.Equal(t, []int{2, 5}, ts.sys.Closed)
}

func TestShell_text(t *testing.T) {
	cases := map[string]string{
		"sleep 5 &":       "sleep 5",
		"ls | wc -l;":     "ls | wc -l",
		"echo done":       "echo done",
		"(cd /tmp; ls) &": "(cd /tmp; ls)",
	}
	for src, want := range cases {
		t.Run(src, func(t *testing.T) {
			ts := newTestShell(t)
			tree, err := ts.shell.Parse("test", src)
			require.NoError(t, err)
			list := tree.NextNode()
			require.NotNil(t, list)
			require.NotEmpty(t, list.Items)

			ts.shell.source = tree.Source
			assert.Equal(t, want, ts.shell.text(list.Items[0].Node))
		})
	}
}

func TestFirstWord(t *testing.T) {
	assert.Equal(t, "echo", firstWord("  echo hi"))
	assert.Equal(t, "", firstWord(""))
}
