package ast

import "fmt"

// TokenClass is the lexical classification of a token.
type TokenClass int

const (
	ClassLiteral TokenClass = iota
	ClassAssignment
	ClassOperator
	ClassKeyword
	// ClassExpanded tokens own their materialized words.
	ClassExpanded
)

func (c TokenClass) String() string {
	switch c {
	case ClassLiteral:
		return "literal"
	case ClassAssignment:
		return "assignment"
	case ClassOperator:
		return "operator"
	case ClassKeyword:
		return "keyword"
	case ClassExpanded:
		return "expanded"
	default:
		return fmt.Sprintf("TokenClass(%d)", int(c))
	}
}

// TokenFlags carry parser hints about a token.
type TokenFlags uint8

const (
	// TokenBuiltin marks a word naming a known builtin.
	TokenBuiltin TokenFlags = 1 << iota
	// TokenQuoted marks a word containing any quoting.
	TokenQuoted
)

// Token is a word of source text.
type Token struct {
	Span  Span
	Class TokenClass
	Flags TokenFlags
	// Raw is the source text of the token.
	Raw string
	// Words is set once Class is ClassExpanded.
	Words []string
}

// NewToken creates a literal token.
func NewToken(raw string, span Span) *Token {
	return &Token{Span: span, Class: ClassLiteral, Raw: raw}
}

// IsExpanded reports whether the token already holds its expansion.
func (t *Token) IsExpanded() bool {
	return t.Class == ClassExpanded
}

// SetExpanded replaces the token's classification with its expansion.
func (t *Token) SetExpanded(words []string) {
	t.Class = ClassExpanded
	t.Words = words
}

// GetWords returns the expansion if present, otherwise the raw text.
func (t *Token) GetWords() []string {
	if t.IsExpanded() {
		return t.Words
	}
	return []string{t.Raw}
}

func (t *Token) String() string {
	return t.Raw
}
