package arith

import (
	"errors"
	"fmt"
	"testing"

	"github.com/josephlewis42/forksh/core/shellerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ExampleEval() {
	for _, expr := range []string{"2 + 3 * 4", "7 // 2", "7 / 2", "2 ** 3 ** 2", "(1 + 2) * 3"} {
		v, _ := Eval(expr)
		fmt.Println(expr, "=", Format(v))
	}

	// Output: 2 + 3 * 4 = 14
	// 7 // 2 = 3
	// 7 / 2 = 3.5
	// 2 ** 3 ** 2 = 512
	// (1 + 2) * 3 = 9
}

func TestEval(t *testing.T) {
	cases := []struct {
		expr     string
		expected string
	}{
		{"1", "1"},
		{"1+1", "2"},
		{"10 - 4 - 3", "3"},
		{"100 / 10 / 5", "2"},
		{"2 * (3 + 4)", "14"},
		{"((2))", "2"},
		{"7 % 3", "1"},
		{"2 ** 10", "1024"},
		{"1.5 + 1.25", "2.75"},
		{"9 // 2.5", "4"},
	}

	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			v, err := Eval(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, Format(v))
		})
	}
}

func TestEval_divideByZero(t *testing.T) {
	for _, expr := range []string{"5 / 0", "5 // 0", "5 % 0", "5 // 0.5", "1 / (2 - 2)"} {
		t.Run(expr, func(t *testing.T) {
			_, err := Eval(expr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDivideByZero))
			assert.True(t, shellerr.IsKind(err, shellerr.Parse))
		})
	}
}

func TestEval_errors(t *testing.T) {
	cases := map[string]struct {
		expr    string
		message string
	}{
		"bad char":       {"1 + a", `unexpected character 'a'`},
		"unclosed":       {"(1 + 2", "mismatched parenthesis"},
		"unopened":       {"1 + 2)", "mismatched parenthesis"},
		"dangling op":    {"1 +", "not enough operands"},
		"empty":          {"   ", "empty expression"},
		"missing op":     {"1 2", "missing operator"},
		"leading op":     {"* 3", "not enough operands"},
		"empty parens":   {"()", "empty expression"},
		"trailing paren": {"(", "mismatched parenthesis"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			_, err := Eval(tc.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
			assert.True(t, shellerr.IsKind(err, shellerr.Parse))
		})
	}
}

func TestToPostfix(t *testing.T) {
	cases := []struct {
		expr     string
		expected string
	}{
		{"2 + 3 * 4", "2 3 4 * +"},
		{"2 * 3 + 4", "2 3 * 4 +"},
		{"2 - 3 - 4", "2 3 - 4 -"},
		{"2 ** 3 ** 4", "2 3 4 ** **"},
		{"(2 + 3) * 4", "2 3 + 4 *"},
	}

	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			tokens, err := Tokenize(tc.expr)
			require.NoError(t, err)
			postfix, err := ToPostfix(tokens)
			require.NoError(t, err)

			var out string
			for i, tok := range postfix {
				if i > 0 {
					out += " "
				}
				out += tok.String()
			}
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestTokenize(t *testing.T) {
	tokens, err := Tokenize("12.5//3**(1%2)")
	require.NoError(t, err)

	assert.Equal(t, []Token{
		num(12.5), op(IntDiv), num(3), op(Pow),
		{Kind: OpenParen}, num(1), op(Mod), num(2), {Kind: CloseParen},
	}, tokens)
}
