package expand

import (
	"errors"
	"fmt"
	"testing"

	"github.com/josephlewis42/forksh/core/ast"
	"github.com/josephlewis42/forksh/core/expand/arith"
	"github.com/josephlewis42/forksh/core/shellerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ExampleFields() {
	vars := MapLookup{"X": "1", "Y": "two words"}

	for _, raw := range []string{`"a$X b"`, `a$X b`, `$Y`, `"$Y"`, `'$X'`, `$((2 + 3 * 4))`} {
		words, _ := Fields(raw, vars)
		fmt.Printf("%-16s %q\n", raw, words)
	}

	// Output: "a$X b"          ["a1 b"]
	// a$X b            ["a1" "b"]
	// $Y               ["two" "words"]
	// "$Y"             ["two words"]
	// '$X'             ["$X"]
	// $((2 + 3 * 4))   ["14"]
}

func TestFields(t *testing.T) {
	vars := MapLookup{
		"X":     "1",
		"EMPTY": "",
		"SPACY": "  a   b  ",
		"HOME":  "/home/user",
		"?":     "3",
		"1":     "first",
		"$":     "42",
	}

	cases := []struct {
		raw      string
		expected []string
	}{
		{"plain", []string{"plain"}},
		{"a b", []string{"a", "b"}},
		{"a   b", []string{"a", "b"}},
		{`a\ b`, []string{"a b"}},
		{`\$X`, []string{"$X"}},
		{`"\$X"`, []string{"$X"}},
		{`"a\"b"`, []string{`a"b`}},
		{`"a\nb"`, []string{`a\nb`}},
		{`''`, []string{""}},
		{`""`, []string{""}},
		{`$EMPTY`, nil},
		{`"$EMPTY"`, []string{""}},
		{`$UNSET`, nil},
		{`$SPACY`, []string{"a", "b"}},
		{`"$SPACY"`, []string{"  a   b  "}},
		{`${X}y`, []string{"1y"}},
		{`$Xy`, nil},
		{`$?`, []string{"3"}},
		{`$1x`, []string{"firstx"}},
		{`$`, []string{"$"}},
		{`a$`, []string{"a$"}},
		{`$-`, nil},
		{`"$ x"`, []string{"$ x"}},
		{`'a'"b"c`, []string{"abc"}},
		{`"'$X'"`, []string{"'1'"}},
		{`"a$X"b`, []string{"a1b"}},
		{`"$HOME"/bin`, []string{"/home/user/bin"}},
		{`"a"'b'"c"`, []string{"abc"}},
		{`$$`, []string{"42"}},
		{`"$$"x`, []string{"42x"}},
		{`$$$X`, []string{"421"}},
		{`~`, []string{"/home/user"}},
		{`~/bin`, []string{"/home/user/bin"}},
		{`a~`, []string{"a~"}},
		{`$(($X + 1))`, []string{"2"}},
		{`x$((7 // 2))y`, []string{"x3y"}},
		{`$((2*(3+4)))`, []string{"14"}},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			actual, err := Fields(tc.raw, vars)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestFields_customIFS(t *testing.T) {
	vars := MapLookup{"IFS": ":", "P": "/bin:/usr/bin::/sbin"}

	actual, err := Fields("$P", vars)
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin", "/usr/bin", "/sbin"}, actual)
}

func TestFields_errors(t *testing.T) {
	cases := map[string]struct {
		raw  string
		kind shellerr.Kind
	}{
		"reserved":     {"a\uFDD0b", shellerr.Syntax},
		"single quote": {"'abc", shellerr.Syntax},
		"double quote": {`"abc`, shellerr.Syntax},
		"brace":        {"${abc", shellerr.Syntax},
		"bad name":     {"${a-b}", shellerr.Syntax},
		"arith":        {"$((1 + ))", shellerr.Parse},
		"unterminated": {"$((1 + 2", shellerr.Syntax},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			_, err := Fields(tc.raw, MapLookup{})
			require.Error(t, err)
			assert.True(t, shellerr.IsKind(err, tc.kind), "got %v", err)
		})
	}
}

func TestFields_divideByZero(t *testing.T) {
	_, err := Fields("$((5 / 0))", MapLookup{})
	assert.True(t, errors.Is(err, arith.ErrDivideByZero))
}

func TestExpandToken_idempotent(t *testing.T) {
	vars := MapLookup{"X": "a b"}
	tok := ast.NewToken(`pre$X"$X"`, ast.Span{Offset: 0, End: 9, Line: 1, Col: 1})

	first, err := ExpandToken(tok, vars)
	require.NoError(t, err)
	assert.Equal(t, []string{"prea", "ba b"}, first)
	assert.True(t, tok.IsExpanded())

	// A changed variable must not affect an already expanded token.
	vars["X"] = "changed"
	second, err := ExpandToken(tok, vars)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, first, tok.GetWords())
}

func TestExpandToken_blamesSpan(t *testing.T) {
	span := ast.Span{Offset: 4, End: 8, Line: 2, Col: 5}
	tok := ast.NewToken(`"abc`, span)

	_, err := ExpandToken(tok, MapLookup{})

	var shErr *shellerr.Error
	require.True(t, errors.As(err, &shErr))
	assert.Equal(t, span, shErr.Span)
	assert.False(t, tok.IsExpanded())
}

func TestExpandTokens(t *testing.T) {
	toks := []*ast.Token{
		ast.NewToken("echo", ast.Span{}),
		ast.NewToken("$X", ast.Span{}),
		ast.NewToken(`"$X"`, ast.Span{}),
	}

	words, err := ExpandTokens(toks, MapLookup{"X": "1 2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "1", "2", "1 2"}, words)
}

func TestExpandWord(t *testing.T) {
	vars := MapLookup{"X": "a  b"}

	cases := []struct {
		raw      string
		expected string
	}{
		{"$X", "a  b"},
		{`"$X"c`, "a  bc"},
		{`'$X'`, "$X"},
		{"out.$((1+1))", "out.2"},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			actual, err := ExpandWord(tc.raw, vars)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestExpandHeredoc(t *testing.T) {
	vars := MapLookup{"NAME": "world"}

	actual, err := ExpandHeredoc("hello '$NAME'\ncost: \\$5\n", vars)
	require.NoError(t, err)
	assert.Equal(t, "hello 'world'\ncost: $5\n", actual)
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("FOO"))
	assert.True(t, ValidName("_a1"))
	assert.False(t, ValidName("1a"))
	assert.False(t, ValidName("a-b"))
	assert.False(t, ValidName("?"))
	assert.False(t, ValidName(""))
}
