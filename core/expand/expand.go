// Package expand turns raw command words into argument lists.
//
// Expansion runs in three passes over a marked-up copy of the word:
// Unescape strips one layer of escaping and rewrites quoting and "$" into
// reserved noncharacters, Substitute replaces variable and arithmetic
// references, and Split breaks the result into fields.
package expand

import (
	"strings"
	"unicode/utf8"

	"github.com/josephlewis42/forksh/core/ast"
	"github.com/josephlewis42/forksh/core/expand/arith"
	"github.com/josephlewis42/forksh/core/shellerr"
)

// Reserved markers. Source text may not contain them.
const (
	VarSub   = '\uFDD0'
	DubQuote = '\uFDD1'
	SngQuote = '\uFDD2'
)

// DefaultIFS is used when IFS is unset.
const DefaultIFS = " \t\n"

// Lookup resolves variable names, including special parameters.
type Lookup interface {
	Lookup(name string) (string, bool)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(name string) (string, bool)

func (f LookupFunc) Lookup(name string) (string, bool) {
	return f(name)
}

// MapLookup resolves names from a map.
type MapLookup map[string]string

func (m MapLookup) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func isMarker(r rune) bool {
	return r == VarSub || r == DubQuote || r == SngQuote
}

func checkReserved(raw string) error {
	if strings.IndexFunc(raw, isMarker) >= 0 {
		return shellerr.New(shellerr.Syntax, "input contains a reserved character")
	}
	return nil
}

// Unescape removes one layer of escaping and replaces quotes and "$" with
// markers.
func Unescape(raw string) (string, error) {
	if err := checkReserved(raw); err != nil {
		return "", err
	}

	var sb strings.Builder
	if raw == "~" || strings.HasPrefix(raw, "~/") {
		sb.WriteRune(VarSub)
		sb.WriteString("{HOME}")
		raw = raw[1:]
	}

	for i := 0; i < len(raw); i++ {
		switch ch := raw[i]; ch {
		case '\\':
			if i+1 == len(raw) {
				sb.WriteByte('\\')
				continue
			}
			r, size := utf8.DecodeRuneInString(raw[i+1:])
			i += size
			if r == '\n' {
				continue
			}
			// An escaped character is quoted so Split keeps it.
			sb.WriteRune(SngQuote)
			sb.WriteRune(r)
			sb.WriteRune(SngQuote)
		case '\'':
			end := strings.IndexByte(raw[i+1:], '\'')
			if end < 0 {
				return "", shellerr.New(shellerr.Syntax, "unterminated single quote")
			}
			sb.WriteRune(SngQuote)
			sb.WriteString(raw[i+1 : i+1+end])
			sb.WriteRune(SngQuote)
			i += end + 1
		case '"':
			n, err := unescapeDouble(&sb, raw[i+1:])
			if err != nil {
				return "", err
			}
			i += n
		case '$':
			sb.WriteRune(VarSub)
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String(), nil
}

// unescapeDouble writes the double quoted text at the start of s and returns
// how many bytes it consumed, closing quote included.
func unescapeDouble(sb *strings.Builder, s string) (int, error) {
	sb.WriteRune(DubQuote)
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '"':
			sb.WriteRune(DubQuote)
			return i + 1, nil
		case '$':
			sb.WriteRune(VarSub)
		case '\\':
			if i+1 < len(s) {
				switch next := s[i+1]; next {
				case '$', '"', '\\':
					sb.WriteByte(next)
					i++
					continue
				case '\n':
					i++
					continue
				}
			}
			sb.WriteByte('\\')
		default:
			sb.WriteByte(ch)
		}
	}
	return 0, shellerr.New(shellerr.Syntax, "unterminated double quote")
}

// Substitute replaces each variable marker with the value it references.
// Unset variables expand to nothing.
func Substitute(s string, vars Lookup) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r != VarSub {
			sb.WriteRune(r)
			continue
		}

		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, "(("):
			n, err := substituteArith(&sb, rest, vars)
			if err != nil {
				return "", err
			}
			i += n
		case strings.HasPrefix(rest, "{"):
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				return "", shellerr.New(shellerr.Syntax, "bad substitution: missing '}'")
			}
			name := rest[1:end]
			if !validName(name) && !isSpecial(name) {
				return "", shellerr.New(shellerr.Syntax, "${%s}: bad substitution", name)
			}
			sb.WriteString(get(vars, name))
			i += end + 1
		case strings.HasPrefix(rest, string(VarSub)):
			// $$, both dollars were marked.
			sb.WriteString(get(vars, "$"))
			i += utf8.RuneLen(VarSub)
		default:
			name := scanName(rest)
			if name == "" {
				sb.WriteByte('$')
				continue
			}
			sb.WriteString(get(vars, name))
			i += len(name)
		}
	}
	return sb.String(), nil
}

// substituteArith evaluates the $((expr)) at the start of s, which begins
// with "((", and returns the bytes consumed.
func substituteArith(sb *strings.Builder, s string, vars Lookup) (int, error) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 1 && i+1 < len(s) && s[i+1] == ')' {
				inner, err := Substitute(s[2:i], vars)
				if err != nil {
					return 0, err
				}
				v, err := arith.Eval(StripMarkers(inner))
				if err != nil {
					return 0, err
				}
				sb.WriteString(arith.Format(v))
				return i + 2, nil
			}
		}
	}
	return 0, shellerr.New(shellerr.Syntax, "unterminated arithmetic expansion")
}

func get(vars Lookup, name string) string {
	if vars == nil {
		return ""
	}
	v, _ := vars.Lookup(name)
	return v
}

func isSpecial(name string) bool {
	if len(name) != 1 {
		return false
	}
	return strings.IndexByte("?$#@*!-", name[0]) >= 0 || isDigit(name[0])
}

// scanName returns the parameter name at the start of s.
func scanName(s string) string {
	if s == "" {
		return ""
	}
	if isSpecial(s[:1]) {
		return s[:1]
	}
	end := 0
	for end < len(s) && (isNameStart(s[end]) || (end > 0 && isDigit(s[end]))) {
		end++
	}
	return s[:end]
}

func validName(name string) bool {
	return name != "" && scanName(name) == name && !isSpecial(name)
}

// ValidName reports whether name can be assigned to.
func ValidName(name string) bool {
	return validName(name)
}

func isNameStart(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// Split breaks s into fields on unquoted runs of ifs characters. Quoted
// text is copied verbatim with its markers dropped; an empty quoted string
// still produces a field.
func Split(s, ifs string) []string {
	var (
		words   []string
		cur     strings.Builder
		started bool
	)
	flush := func() {
		if started {
			words = append(words, cur.String())
		}
		cur.Reset()
		started = false
	}

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == DubQuote || r == SngQuote:
			started = true
			end := strings.IndexRune(s[i:], r)
			if end < 0 {
				end = len(s) - i
			}
			cur.WriteString(s[i : i+end])
			i += end + utf8.RuneLen(r)
		case strings.ContainsRune(ifs, r):
			flush()
		default:
			started = true
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// StripMarkers removes quote and substitution markers from s.
func StripMarkers(s string) string {
	return strings.Map(func(r rune) rune {
		if isMarker(r) {
			return -1
		}
		return r
	}, s)
}

// Fields fully expands raw into its list of words.
func Fields(raw string, vars Lookup) ([]string, error) {
	marked, err := Unescape(raw)
	if err != nil {
		return nil, err
	}
	subbed, err := Substitute(marked, vars)
	if err != nil {
		return nil, err
	}

	ifs := DefaultIFS
	if vars != nil {
		if v, ok := vars.Lookup("IFS"); ok {
			ifs = v
		}
	}
	return Split(subbed, ifs), nil
}

// ExpandToken expands tok, caching the result on the token. A token that
// was already expanded is returned unchanged.
func ExpandToken(tok *ast.Token, vars Lookup) ([]string, error) {
	if tok.IsExpanded() {
		return tok.Words, nil
	}
	words, err := Fields(tok.Raw, vars)
	if err != nil {
		return nil, shellerr.Blame(err, tok.Span)
	}
	tok.SetExpanded(words)
	return words, nil
}

// ExpandTokens expands each token in order and concatenates the words.
func ExpandTokens(toks []*ast.Token, vars Lookup) ([]string, error) {
	var out []string
	for _, tok := range toks {
		words, err := ExpandToken(tok, vars)
		if err != nil {
			return nil, err
		}
		out = append(out, words...)
	}
	return out, nil
}

// ExpandWord expands raw to a single string without field splitting.
func ExpandWord(raw string, vars Lookup) (string, error) {
	marked, err := Unescape(raw)
	if err != nil {
		return "", err
	}
	subbed, err := Substitute(marked, vars)
	if err != nil {
		return "", err
	}
	return StripMarkers(subbed), nil
}

// ExpandHeredoc substitutes variables in a heredoc body. Quotes in the body
// are literal; "\$" yields a literal dollar sign.
func ExpandHeredoc(body string, vars Lookup) (string, error) {
	if err := checkReserved(body); err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		switch ch := body[i]; {
		case ch == '\\' && i+1 < len(body) && (body[i+1] == '$' || body[i+1] == '\\'):
			sb.WriteByte(body[i+1])
			i++
		case ch == '$':
			sb.WriteRune(VarSub)
		default:
			sb.WriteByte(ch)
		}
	}
	subbed, err := Substitute(sb.String(), vars)
	if err != nil {
		return "", err
	}
	return StripMarkers(subbed), nil
}
