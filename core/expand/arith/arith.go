// Package arith evaluates the arithmetic expressions found in $(( )).
package arith

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/josephlewis42/forksh/core/shellerr"
)

// ErrDivideByZero is returned for /, // or % with a zero divisor.
var ErrDivideByZero = errors.New("attempt to divide by zero")

// Op is a binary operator.
type Op int

const (
	Add Op = iota
	Sub
	Mul
	Div
	IntDiv
	Mod
	Pow
)

var opNames = [...]string{
	Add:    "+",
	Sub:    "-",
	Mul:    "*",
	Div:    "/",
	IntDiv: "//",
	Mod:    "%",
	Pow:    "**",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

func (o Op) precedence() int {
	switch o {
	case Add, Sub:
		return 1
	case Pow:
		return 3
	default:
		return 2
	}
}

func (o Op) leftAssociative() bool {
	return o != Pow
}

// Kind identifies what a Token holds.
type Kind int

const (
	Number Kind = iota
	Operator
	OpenParen
	CloseParen
)

// Token is an element of an arithmetic expression.
type Token struct {
	Kind  Kind
	Value float64
	Op    Op
}

func (t Token) String() string {
	switch t.Kind {
	case Number:
		return Format(t.Value)
	case Operator:
		return t.Op.String()
	case OpenParen:
		return "("
	default:
		return ")"
	}
}

func num(v float64) Token { return Token{Kind: Number, Value: v} }
func op(o Op) Token       { return Token{Kind: Operator, Op: o} }

func parseErr(format string, a ...interface{}) error {
	return shellerr.New(shellerr.Parse, "arithmetic expansion: "+format, a...)
}

// Tokenize splits expr into numbers, operators and parentheses.
func Tokenize(expr string) ([]Token, error) {
	var out []Token
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		next := byte(0)
		if i+1 < len(expr) {
			next = expr[i+1]
		}

		switch {
		case ch == ' ' || ch == '\t' || ch == '\n':
		case ch == '+':
			out = append(out, op(Add))
		case ch == '-':
			out = append(out, op(Sub))
		case ch == '*' && next == '*':
			out = append(out, op(Pow))
			i++
		case ch == '*':
			out = append(out, op(Mul))
		case ch == '/' && next == '/':
			out = append(out, op(IntDiv))
			i++
		case ch == '/':
			out = append(out, op(Div))
		case ch == '%':
			out = append(out, op(Mod))
		case ch == '(':
			out = append(out, Token{Kind: OpenParen})
		case ch == ')':
			out = append(out, Token{Kind: CloseParen})
		case isDigit(ch):
			start := i
			for i+1 < len(expr) && isDigit(expr[i+1]) {
				i++
			}
			if i+2 < len(expr) && expr[i+1] == '.' && isDigit(expr[i+2]) {
				i++
				for i+1 < len(expr) && isDigit(expr[i+1]) {
					i++
				}
			}
			v, err := strconv.ParseFloat(expr[start:i+1], 64)
			if err != nil {
				return nil, parseErr("bad number %q", expr[start:i+1])
			}
			out = append(out, num(v))
		default:
			return nil, parseErr("unexpected character %q", rune(ch))
		}
	}
	return out, nil
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// ToPostfix reorders infix tokens into postfix order.
func ToPostfix(tokens []Token) ([]Token, error) {
	var sorted, ops []Token
	for _, tok := range tokens {
		switch tok.Kind {
		case Number:
			sorted = append(sorted, tok)
		case Operator:
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.Kind != Operator {
					break
				}
				p, tp := tok.Op.precedence(), top.Op.precedence()
				if (tok.Op.leftAssociative() && p <= tp) || (!tok.Op.leftAssociative() && p < tp) {
					sorted = append(sorted, top)
					ops = ops[:len(ops)-1]
					continue
				}
				break
			}
			ops = append(ops, tok)
		case OpenParen:
			ops = append(ops, tok)
		case CloseParen:
			matched := false
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				ops = ops[:len(ops)-1]
				if top.Kind == OpenParen {
					matched = true
					break
				}
				sorted = append(sorted, top)
			}
			if !matched {
				return nil, parseErr("mismatched parenthesis")
			}
		}
	}

	for len(ops) > 0 {
		top := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if top.Kind != Operator {
			return nil, parseErr("mismatched parenthesis")
		}
		sorted = append(sorted, top)
	}
	return sorted, nil
}

// EvalPostfix runs a postfix token stream on a stack machine.
func EvalPostfix(tokens []Token) (float64, error) {
	var stack []float64
	for _, tok := range tokens {
		if tok.Kind == Number {
			stack = append(stack, tok.Value)
			continue
		}
		if tok.Kind != Operator {
			return 0, parseErr("unexpected %s", tok)
		}
		if len(stack) < 2 {
			return 0, parseErr("not enough operands")
		}
		lhs, rhs := stack[len(stack)-2], stack[len(stack)-1]
		stack = stack[:len(stack)-2]

		res, err := apply(tok.Op, lhs, rhs)
		if err != nil {
			return 0, err
		}
		stack = append(stack, res)
	}

	switch len(stack) {
	case 0:
		return 0, parseErr("empty expression")
	case 1:
		return stack[0], nil
	default:
		return 0, parseErr("missing operator")
	}
}

func apply(o Op, lhs, rhs float64) (float64, error) {
	switch o {
	case Add:
		return lhs + rhs, nil
	case Sub:
		return lhs - rhs, nil
	case Mul:
		return lhs * rhs, nil
	case Pow:
		return math.Pow(lhs, rhs), nil
	}

	if rhs == 0 {
		return 0, shellerr.Wrap(shellerr.Parse, ErrDivideByZero, "arithmetic expansion")
	}
	switch o {
	case Div:
		return lhs / rhs, nil
	case IntDiv:
		if int64(rhs) == 0 {
			return 0, shellerr.Wrap(shellerr.Parse, ErrDivideByZero, "arithmetic expansion")
		}
		return float64(int64(lhs) / int64(rhs)), nil
	case Mod:
		return math.Mod(lhs, rhs), nil
	default:
		return 0, parseErr("unknown operator %s", o)
	}
}

// Eval evaluates an infix expression.
func Eval(expr string) (float64, error) {
	tokens, err := Tokenize(expr)
	if err != nil {
		return 0, err
	}
	postfix, err := ToPostfix(tokens)
	if err != nil {
		return 0, err
	}
	return EvalPostfix(postfix)
}

// Format renders a result the way it is substituted into a command line.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
