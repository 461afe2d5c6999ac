// Package parse turns shell source into the command tree walked by the
// executor.
//
// Parsing is delegated to mvdan.cc/sh; this package translates the subset of
// its syntax the shell runs and rejects everything else with a syntax error
// pointing at the construct.
package parse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/josephlewis42/forksh/core/ast"
	"github.com/josephlewis42/forksh/core/shellerr"
	"mvdan.cc/sh/v3/syntax"
)

// ErrIncomplete is wrapped by syntax errors caused by input ending early,
// such as an unclosed quote.
var ErrIncomplete = errors.New("unexpected end of input")

// IsIncomplete reports whether more input could complete the source.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}

// Option configures a Parser.
type Option func(*Parser)

// WithBuiltins flags commands whose first word satisfies isBuiltin.
func WithBuiltins(isBuiltin func(name string) bool) Option {
	return func(p *Parser) {
		p.isBuiltin = isBuiltin
	}
}

// Parser converts source text into syntax trees.
type Parser struct {
	isBuiltin func(name string) bool
}

// New creates a parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		isBuiltin: func(string) bool { return false },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses src. The name is used in error messages.
func (p *Parser) Parse(name, src string) (*ast.SynTree, error) {
	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(maskIntDiv(src)), name)
	if err != nil {
		return nil, convertError(err)
	}

	tr := &translator{src: src, isBuiltin: p.isBuiltin}
	tree := &ast.SynTree{Name: name, Source: src}
	for _, stmt := range file.Stmts {
		list, err := tr.list(stmt)
		if err != nil {
			return nil, err
		}
		tree.Lists = append(tree.Lists, list)
	}
	return tree, nil
}

// Tokenize splits src into the words it contains without interpreting them.
func Tokenize(src string) ([]*ast.Token, error) {
	tr := &translator{src: src}
	var (
		out    []*ast.Token
		badErr error
	)
	err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Words(strings.NewReader(maskIntDiv(src)), func(w *syntax.Word) bool {
		tok, err := tr.word(w)
		if err != nil {
			badErr = err
			return false
		}
		out = append(out, tok)
		return true
	})
	if err != nil {
		return nil, convertError(err)
	}
	return out, badErr
}

// maskIntDiv replaces each "//" inside $(( )) with "**", which the parser
// accepts. Offsets don't change and words are sliced from the unmasked
// source, so the arithmetic evaluator still sees "//".
func maskIntDiv(src string) string {
	if !strings.Contains(src, "//") {
		return src
	}
	b := []byte(src)
	depth := 0
	for i := 0; i < len(b); i++ {
		switch {
		case depth == 0:
			if strings.HasPrefix(src[i:], "$((") {
				depth = 2
				i += 2
			}
		case b[i] == '(':
			depth++
		case b[i] == ')':
			depth--
		case b[i] == '/' && i+1 < len(b) && b[i+1] == '/':
			b[i], b[i+1] = '*', '*'
			i++
		}
	}
	return string(b)
}

func convertError(err error) error {
	var perr syntax.ParseError
	if errors.As(err, &perr) {
		shErr := shellerr.Full(shellerr.Syntax, perr.Text, posSpan(perr.Pos))
		if perr.Incomplete {
			shErr.Err = ErrIncomplete
		}
		return shErr
	}
	return shellerr.Wrap(shellerr.Syntax, err, "")
}

func posSpan(pos syntax.Pos) ast.Span {
	off := int(pos.Offset())
	return ast.Span{Offset: off, End: off, Line: int(pos.Line()), Col: int(pos.Col())}
}

func nodeSpan(n syntax.Node) ast.Span {
	span := posSpan(n.Pos())
	span.End = int(n.End().Offset())
	return span
}

type translator struct {
	src       string
	isBuiltin func(string) bool
}

func (tr *translator) text(n syntax.Node) string {
	return nodeSpan(n).Slice(tr.src)
}

func unsupported(n syntax.Node, what string) error {
	return shellerr.Full(shellerr.Syntax, what+" is not supported", nodeSpan(n))
}

func (tr *translator) list(stmt *syntax.Stmt) (*ast.CmdList, error) {
	list := &ast.CmdList{Span: nodeSpan(stmt)}
	if err := tr.flatten(list, stmt, ast.GuardNone); err != nil {
		return nil, err
	}
	if stmt.Background {
		if len(list.Items) > 1 {
			return nil, unsupported(stmt, "running an and-or list in the background")
		}
		list.Items[0].Background = true
	}
	return list, nil
}

// flatten appends the and-or chain rooted at stmt to list.
func (tr *translator) flatten(list *ast.CmdList, stmt *syntax.Stmt, guard ast.Guard) error {
	if bin, ok := stmt.Cmd.(*syntax.BinaryCmd); ok && len(stmt.Redirs) == 0 {
		switch bin.Op {
		case syntax.AndStmt, syntax.OrStmt:
			if err := tr.flatten(list, bin.X, guard); err != nil {
				return err
			}
			next := ast.GuardAnd
			if bin.Op == syntax.OrStmt {
				next = ast.GuardOr
			}
			return tr.flatten(list, bin.Y, next)
		}
	}

	node, err := tr.stmt(stmt)
	if err != nil {
		return err
	}
	list.Items = append(list.Items, ast.ListItem{Guard: guard, Node: node})
	return nil
}

func (tr *translator) stmt(stmt *syntax.Stmt) (ast.Node, error) {
	switch {
	case stmt.Negated:
		return nil, unsupported(stmt, "negation")
	case stmt.Coprocess:
		return nil, unsupported(stmt, "coproc")
	case stmt.Cmd == nil:
		return nil, shellerr.Full(shellerr.Syntax, "missing command", nodeSpan(stmt))
	}

	redirs, err := tr.redirs(stmt.Redirs)
	if err != nil {
		return nil, err
	}

	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		return tr.call(stmt, cmd, redirs)
	case *syntax.Subshell:
		return &ast.Subshell{
			Span:   nodeSpan(stmt),
			Body:   tr.src[cmd.Lparen.Offset() : cmd.Rparen.Offset()+1],
			Redirs: redirs,
		}, nil
	case *syntax.BinaryCmd:
		if len(redirs) > 0 {
			return nil, unsupported(stmt, "redirecting a compound command")
		}
		switch cmd.Op {
		case syntax.Pipe, syntax.PipeAll:
			pipe := &ast.Pipeline{Span: nodeSpan(stmt)}
			if err := tr.pipeline(pipe, cmd); err != nil {
				return nil, err
			}
			return pipe, nil
		}
		return nil, unsupported(stmt, "a nested and-or list")
	case *syntax.FuncDecl:
		if len(redirs) > 0 {
			return nil, unsupported(stmt, "redirecting a function definition")
		}
		return tr.funcDecl(stmt, cmd)
	case *syntax.DeclClause:
		if cmd.Variant.Value != "export" {
			return nil, unsupported(stmt, cmd.Variant.Value)
		}
		return tr.export(stmt, cmd, redirs)
	default:
		return nil, unsupported(stmt, describeCommand(cmd))
	}
}

func (tr *translator) pipeline(pipe *ast.Pipeline, bin *syntax.BinaryCmd) error {
	if err := tr.stage(pipe, bin.X); err != nil {
		return err
	}
	left := pipe.Cmds[len(pipe.Cmds)-1]
	if err := tr.stage(pipe, bin.Y); err != nil {
		return err
	}

	if bin.Op == syntax.PipeAll {
		// |& also sends the left side's stderr down the pipe.
		dup := ast.NewRedir(2, ast.RedirDupOut, ast.RedirTarget{Fd: 1})
		switch left := left.(type) {
		case *ast.Command:
			left.Redirs = append(left.Redirs, dup)
		case *ast.Subshell:
			left.Redirs = append(left.Redirs, dup)
		}
	}
	return nil
}

func (tr *translator) stage(pipe *ast.Pipeline, side *syntax.Stmt) error {
	if inner, ok := side.Cmd.(*syntax.BinaryCmd); ok && len(side.Redirs) == 0 &&
		(inner.Op == syntax.Pipe || inner.Op == syntax.PipeAll) {
		return tr.pipeline(pipe, inner)
	}

	node, err := tr.stmt(side)
	if err != nil {
		return err
	}
	switch node.(type) {
	case *ast.Command, *ast.Subshell:
	default:
		return unsupported(side, "this pipeline stage")
	}
	pipe.Cmds = append(pipe.Cmds, node)
	return nil
}

func (tr *translator) call(stmt *syntax.Stmt, call *syntax.CallExpr, redirs []*ast.Redir) (ast.Node, error) {
	var assigns []*ast.Token
	for _, as := range call.Assigns {
		if as.Append || as.Array != nil || as.Index != nil || as.Naked {
			return nil, unsupported(as, "this form of assignment")
		}
		if as.Value != nil {
			if err := tr.checkWord(as.Value); err != nil {
				return nil, err
			}
		}
		tok := ast.NewToken(tr.text(as), nodeSpan(as))
		tok.Class = ast.ClassAssignment
		assigns = append(assigns, tok)
	}

	var cmd *ast.Command
	if len(call.Args) > 0 {
		cmd = &ast.Command{Span: nodeSpan(stmt), Redirs: redirs}
		for _, w := range call.Args {
			tok, err := tr.word(w)
			if err != nil {
				return nil, err
			}
			cmd.Argv = append(cmd.Argv, tok)
		}
		if lit := call.Args[0].Lit(); lit != "" && tr.isBuiltin != nil && tr.isBuiltin(lit) {
			cmd.Flags |= ast.FlagBuiltin
			cmd.Argv[0].Flags |= ast.TokenBuiltin
		}
	}

	switch {
	case len(assigns) > 0:
		if cmd == nil && len(redirs) > 0 {
			return nil, unsupported(stmt, "redirecting an assignment")
		}
		return &ast.Assignment{Span: nodeSpan(stmt), Assignments: assigns, Cmd: cmd}, nil
	case cmd == nil:
		return nil, shellerr.Full(shellerr.Syntax, "missing command", nodeSpan(stmt))
	default:
		return cmd, nil
	}
}

// export turns the declaration back into a plain command so the export
// builtin sees its arguments as words.
func (tr *translator) export(stmt *syntax.Stmt, decl *syntax.DeclClause, redirs []*ast.Redir) (ast.Node, error) {
	cmd := &ast.Command{Span: nodeSpan(stmt), Redirs: redirs}
	cmd.Argv = append(cmd.Argv, ast.NewToken(decl.Variant.Value, nodeSpan(decl.Variant)))
	for _, as := range decl.Args {
		if as.Append || as.Array != nil || as.Index != nil {
			return nil, unsupported(as, "this form of assignment")
		}
		tok := ast.NewToken(tr.text(as), nodeSpan(as))
		if as.Value != nil {
			if err := tr.checkWord(as.Value); err != nil {
				return nil, err
			}
			if isQuoted(as.Value) {
				tok.Flags |= ast.TokenQuoted
			}
		}
		cmd.Argv = append(cmd.Argv, tok)
	}
	if tr.isBuiltin != nil && tr.isBuiltin(decl.Variant.Value) {
		cmd.Flags |= ast.FlagBuiltin
		cmd.Argv[0].Flags |= ast.TokenBuiltin
	}
	return cmd, nil
}

func (tr *translator) funcDecl(stmt *syntax.Stmt, fn *syntax.FuncDecl) (ast.Node, error) {
	if _, ok := fn.Body.Cmd.(*syntax.Block); !ok || len(fn.Body.Redirs) > 0 {
		return nil, unsupported(fn.Body, "a function body that is not a { } group")
	}
	name := fn.Name.Value
	if fn.Parens {
		name += "()"
	}
	return &ast.FuncDef{
		Span: nodeSpan(stmt),
		Name: name,
		Body: tr.text(fn.Body),
	}, nil
}

func (tr *translator) word(w *syntax.Word) (*ast.Token, error) {
	if err := tr.checkWord(w); err != nil {
		return nil, err
	}
	tok := ast.NewToken(tr.text(w), nodeSpan(w))
	for _, part := range w.Parts {
		switch part := part.(type) {
		case *syntax.SglQuoted, *syntax.DblQuoted:
			tok.Flags |= ast.TokenQuoted
		case *syntax.Lit:
			if strings.Contains(part.Value, `\`) {
				tok.Flags |= ast.TokenQuoted
			}
		}
	}
	return tok, nil
}

// checkWord rejects word parts the expansion engine can't handle.
func (tr *translator) checkWord(w *syntax.Word) error {
	return checkParts(w.Parts)
}

func checkParts(parts []syntax.WordPart) error {
	for _, part := range parts {
		switch part := part.(type) {
		case *syntax.Lit, *syntax.SglQuoted, *syntax.ArithmExp:
			if sq, ok := part.(*syntax.SglQuoted); ok && sq.Dollar {
				return unsupported(part, "$'...' quoting")
			}
		case *syntax.DblQuoted:
			if part.Dollar {
				return unsupported(part, `$"..." quoting`)
			}
			if err := checkParts(part.Parts); err != nil {
				return err
			}
		case *syntax.ParamExp:
			if part.Excl || part.Length || part.Width || part.Index != nil ||
				part.Slice != nil || part.Repl != nil || part.Exp != nil {
				return unsupported(part, "this parameter expansion")
			}
		case *syntax.CmdSubst:
			return unsupported(part, "command substitution")
		case *syntax.ProcSubst:
			return unsupported(part, "process substitution")
		default:
			return unsupported(part, fmt.Sprintf("%T", part))
		}
	}
	return nil
}

func (tr *translator) redirs(in []*syntax.Redirect) ([]*ast.Redir, error) {
	var out []*ast.Redir
	for _, rd := range in {
		converted, err := tr.redir(rd)
		if err != nil {
			return nil, err
		}
		out = append(out, converted...)
	}
	return out, nil
}

var redirKinds = map[syntax.RedirOperator]ast.RedirKind{
	syntax.RdrOut:   ast.RedirOutput,
	syntax.AppOut:   ast.RedirAppend,
	syntax.RdrIn:    ast.RedirInput,
	syntax.RdrInOut: ast.RedirReadWrite,
	syntax.ClbOut:   ast.RedirClobber,
	syntax.DplIn:    ast.RedirDupIn,
	syntax.DplOut:   ast.RedirDupOut,
	syntax.Hdoc:     ast.RedirHeredoc,
	syntax.DashHdoc: ast.RedirHeredoc,
	syntax.WordHdoc: ast.RedirHereString,
	syntax.RdrAll:   ast.RedirOutput,
	syntax.AppAll:   ast.RedirAppend,
}

func (tr *translator) redir(rd *syntax.Redirect) ([]*ast.Redir, error) {
	kind, ok := redirKinds[rd.Op]
	if !ok {
		return nil, unsupported(rd, fmt.Sprintf("redirection %q", rd.Op.String()))
	}

	out := &ast.Redir{Span: nodeSpan(rd), Kind: kind, Fd: kind.DefaultFd()}
	if rd.N != nil {
		fd, err := strconv.Atoi(rd.N.Value)
		if err != nil {
			return nil, shellerr.Full(shellerr.Syntax, fmt.Sprintf("bad file descriptor %q", rd.N.Value), nodeSpan(rd))
		}
		out.Fd = fd
	}

	switch kind {
	case ast.RedirHeredoc:
		out.Target.Quoted = isQuoted(rd.Word)
		out.Target.Heredoc = tr.heredoc(rd)
		if rd.Op == syntax.DashHdoc {
			out.Target.Heredoc = trimTabs(out.Target.Heredoc)
		}
		return []*ast.Redir{out}, nil
	case ast.RedirDupIn, ast.RedirDupOut:
		target := rd.Word.Lit()
		switch {
		case target == "-":
			out.Target.Close = true
		case target != "" && strings.Trim(target, "0123456789") == "":
			out.Target.Fd, _ = strconv.Atoi(target)
		default:
			return nil, shellerr.Full(shellerr.Syntax, fmt.Sprintf("%s: ambiguous redirect", tr.text(rd.Word)), nodeSpan(rd))
		}
		return []*ast.Redir{out}, nil
	}

	tok, err := tr.word(rd.Word)
	if err != nil {
		return nil, err
	}
	out.Target.Path = tok

	if rd.Op == syntax.RdrAll || rd.Op == syntax.AppAll {
		out.Fd = 1
		dup := ast.NewRedir(2, ast.RedirDupOut, ast.RedirTarget{Fd: 1})
		dup.Span = out.Span
		return []*ast.Redir{out, dup}, nil
	}
	return []*ast.Redir{out}, nil
}

// heredoc returns the body of a here-document, every line up to but not
// including the delimiter.
func (tr *translator) heredoc(rd *syntax.Redirect) string {
	if rd.Hdoc == nil || len(rd.Hdoc.Parts) == 0 {
		return ""
	}
	delim := strings.NewReplacer(`'`, "", `"`, "", `\`, "").Replace(tr.text(rd.Word))

	var body strings.Builder
	rest := tr.src[rd.Hdoc.Pos().Offset():]
	for rest != "" {
		line, next := rest, ""
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line, next = rest[:i+1], rest[i+1:]
		}
		bare := strings.TrimSuffix(line, "\n")
		if rd.Op == syntax.DashHdoc {
			bare = strings.TrimLeft(bare, "\t")
		}
		if bare == delim {
			break
		}
		body.WriteString(line)
		rest = next
	}
	return body.String()
}

func isQuoted(w *syntax.Word) bool {
	if w == nil {
		return false
	}
	for _, part := range w.Parts {
		switch part := part.(type) {
		case *syntax.SglQuoted, *syntax.DblQuoted:
			return true
		case *syntax.Lit:
			if strings.Contains(part.Value, `\`) {
				return true
			}
		}
	}
	return false
}

func trimTabs(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, "\t")
	}
	return strings.Join(lines, "\n")
}

func describeCommand(cmd syntax.Command) string {
	switch cmd := cmd.(type) {
	case *syntax.IfClause:
		return "if"
	case *syntax.WhileClause:
		if cmd.Until {
			return "until"
		}
		return "while"
	case *syntax.ForClause:
		return "for"
	case *syntax.CaseClause:
		return "case"
	case *syntax.Block:
		return "{ } grouping"
	case *syntax.ArithmCmd:
		return "(( ))"
	case *syntax.TestClause:
		return "[[ ]]"
	case *syntax.DeclClause:
		return cmd.Variant.Value
	case *syntax.LetClause:
		return "let"
	case *syntax.TimeClause:
		return "time"
	default:
		return fmt.Sprintf("%T", cmd)
	}
}
