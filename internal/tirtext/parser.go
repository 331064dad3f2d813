package tirtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/orizon-lang/tirguard/internal/tir"
)

// Operator precedence, lowest first. Mirrors the printer.
const (
	precLowest = iota
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
)

var precedences = map[TokenType]int{
	TokenOr:    precOr,
	TokenAnd:   precAnd,
	TokenEq:    precEquality,
	TokenNe:    precEquality,
	TokenLt:    precRelational,
	TokenLe:    precRelational,
	TokenGt:    precRelational,
	TokenGe:    precRelational,
	TokenPlus:  precAdditive,
	TokenMinus: precAdditive,
	TokenMul:   precMultiplicative,
	TokenDiv:   precMultiplicative,
	TokenMod:   precMultiplicative,
}

// Parser builds tir functions from tokens. A parser stops at the first
// error.
type Parser struct {
	lexer    *Lexer
	filename string
	current  Token
	peek     Token

	// Buffers are resolved per function without scoping: re-allocating a
	// name reuses its identity.
	buffers map[string]*tir.Var
	scopes  []map[string]*tir.Var

	// Integer and float literals written without a suffix adopt the type of
	// the operand they are combined with.
	untyped map[tir.Expr]bool
}

type bailout struct{ err error }

// NewParser returns a parser over src. filename is used in error positions.
func NewParser(src, filename string) *Parser {
	p := &Parser{lexer: NewLexer(src), filename: filename}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses every function in src.
func Parse(src, filename string) (*tir.Module, error) {
	return NewParser(src, filename).ParseModule()
}

// ParseModule parses functions until the end of input.
func (p *Parser) ParseModule() (m *tir.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			m, err = nil, b.err
		}
	}()

	m = &tir.Module{}
	seen := map[string]bool{}
	for !p.currentTokenIs(TokenEOF) {
		pos := p.current.Pos
		f := p.parseFunc()
		if seen[f.Name] {
			p.errorf(pos, "function %s redeclared", f.Name)
		}
		seen[f.Name] = true
		m.Funcs = append(m.Funcs, f)
	}
	return m, nil
}

func (p *Parser) nextToken() {
	p.current = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) currentTokenIs(t TokenType) bool { return p.current.Type == t }

func (p *Parser) keywordIs(word string) bool {
	return p.current.Type == TokenIdent && p.current.Literal == word
}

func (p *Parser) errorf(pos Position, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	panic(bailout{errors.Errorf("%s:%d:%d: %s", p.filename, pos.Line, pos.Column, msg)})
}

// expect consumes a token of type t.
func (p *Parser) expect(t TokenType) Token {
	tok := p.current
	if tok.Type != t {
		p.unexpected(t.String())
	}
	p.nextToken()
	return tok
}

func (p *Parser) expectKeyword(word string) {
	if !p.keywordIs(word) {
		p.unexpected(strconv.Quote(word))
	}
	p.nextToken()
}

func (p *Parser) unexpected(want string) {
	got := p.current.Literal
	if p.current.Type == TokenEOF {
		got = "EOF"
	}
	p.errorf(p.current.Pos, "expected %s, got %q", want, got)
}

func (p *Parser) parseDType() tir.DType {
	tok := p.expect(TokenIdent)
	t, ok := tir.ParseDType(tok.Literal)
	if !ok {
		p.errorf(tok.Pos, "unknown type %q", tok.Literal)
	}
	return t
}

func (p *Parser) parseFunc() *tir.Func {
	p.expectKeyword("func")
	name := p.expect(TokenIdent).Literal
	p.buffers = map[string]*tir.Var{}
	p.scopes = []map[string]*tir.Var{{}}
	p.untyped = map[tir.Expr]bool{}

	f := &tir.Func{Name: name}
	p.expect(TokenLParen)
	for !p.currentTokenIs(TokenRParen) {
		if len(f.Params) > 0 {
			p.expect(TokenComma)
		}
		tok := p.expect(TokenIdent)
		p.expect(TokenColon)
		t := p.parseDType()
		if p.lookup(tok.Literal) != nil {
			p.errorf(tok.Pos, "parameter %s redeclared", tok.Literal)
		}
		var v *tir.Var
		if p.currentTokenIs(TokenMul) {
			p.nextToken()
			v = tir.NewBuffer(tok.Literal, t)
			p.buffers[v.Name] = v
		} else {
			v = tir.NewVar(tok.Literal, t)
			p.scopes[0][v.Name] = v
		}
		f.Params = append(f.Params, v)
	}
	p.expect(TokenRParen)
	f.Body = p.parseBlock()
	return f
}

// parseBlock parses "{ stmts }". A single statement is returned bare.
func (p *Parser) parseBlock() tir.Stmt {
	p.expect(TokenLBrace)
	var stmts []tir.Stmt
	for !p.currentTokenIs(TokenRBrace) {
		if p.currentTokenIs(TokenEOF) {
			p.unexpected("}")
		}
		stmts = append(stmts, p.parseStmt())
	}
	p.nextToken()
	if len(stmts) == 1 {
		return stmts[0]
	}
	return &tir.Seq{Stmts: stmts}
}

func (p *Parser) parseStmt() tir.Stmt {
	if !p.currentTokenIs(TokenIdent) {
		p.unexpected("statement")
	}
	switch p.current.Literal {
	case "for":
		return p.parseFor()
	case "if":
		return p.parseIf()
	case "alloc":
		return p.parseAlloc()
	case "attr":
		return p.parseAttr()
	case "assert":
		return p.parseAssert()
	case "eval":
		p.nextToken()
		return &tir.Evaluate{Value: p.parseExpression()}
	}
	return p.parseStore()
}

func (p *Parser) parseFor() tir.Stmt {
	p.nextToken()
	p.expect(TokenLParen)
	name := p.expect(TokenIdent).Literal
	t := tir.I32
	if p.currentTokenIs(TokenColon) {
		p.nextToken()
		t = p.parseDType()
	}
	if !t.IsInteger() || !t.IsScalar() {
		p.errorf(p.current.Pos, "loop variable %s must be a scalar integer, got %s", name, t)
	}
	p.expect(TokenComma)
	pos := p.current.Pos
	lo := p.coerce(p.parseExpression(), t, pos)
	p.expect(TokenComma)
	pos = p.current.Pos
	extent := p.coerce(p.parseExpression(), t, pos)
	p.expect(TokenRParen)

	v := tir.NewVar(name, t)
	p.scopes = append(p.scopes, map[string]*tir.Var{name: v})
	body := p.parseBlock()
	p.scopes = p.scopes[:len(p.scopes)-1]
	return &tir.For{Var: v, Min: lo, Extent: extent, Body: body}
}

func (p *Parser) parseIf() tir.Stmt {
	p.nextToken()
	pos := p.current.Pos
	cond := p.parseExpression()
	if cond.Type() != tir.Bool {
		p.errorf(pos, "condition must be bool, got %s", cond.Type())
	}
	s := &tir.IfThenElse{Cond: cond, Then: p.parseBlock()}
	if p.keywordIs("else") {
		p.nextToken()
		if p.keywordIs("if") {
			s.Else = p.parseIf()
		} else {
			s.Else = p.parseBlock()
		}
	}
	return s
}

func (p *Parser) parseAlloc() tir.Stmt {
	p.nextToken()
	tok := p.expect(TokenIdent)
	p.expect(TokenColon)
	t := p.parseDType()
	if t.IsHandle() {
		p.errorf(tok.Pos, "cannot allocate handles")
	}
	p.expect(TokenLBracket)
	var extents []tir.Expr
	for !p.currentTokenIs(TokenRBracket) {
		if len(extents) > 0 {
			p.expect(TokenComma)
		}
		pos := p.current.Pos
		e := p.parseExpression()
		if !e.Type().IsInteger() || !e.Type().IsScalar() {
			p.errorf(pos, "extent must be a scalar integer, got %s", e.Type())
		}
		extents = append(extents, e)
	}
	p.expect(TokenRBracket)

	buf, ok := p.buffers[tok.Literal]
	switch {
	case !ok:
		if p.lookupScalar(tok.Literal) != nil {
			p.errorf(tok.Pos, "%s is not a buffer", tok.Literal)
		}
		buf = tir.NewBuffer(tok.Literal, t.Element())
		p.buffers[buf.Name] = buf
	case buf.Elem != t.Element():
		p.errorf(tok.Pos, "buffer %s reallocated with element type %s, was %s", buf.Name, t.Element(), buf.Elem)
	}
	return &tir.Allocate{Buffer: buf, DType: t, Extents: extents, Body: p.parseBlock()}
}

func (p *Parser) parseAttr() tir.Stmt {
	p.nextToken()
	s := &tir.AttrStmt{Key: p.expect(TokenIdent).Literal}
	if p.currentTokenIs(TokenLParen) {
		p.nextToken()
		tok := p.expect(TokenIdent)
		s.Node = p.lookup(tok.Literal)
		if s.Node == nil {
			p.errorf(tok.Pos, "undefined: %s", tok.Literal)
		}
		p.expect(TokenRParen)
	}
	p.expect(TokenAssign)
	s.Value = p.parseExpression()
	s.Body = p.parseBlock()
	return s
}

func (p *Parser) parseAssert() tir.Stmt {
	p.nextToken()
	p.expect(TokenLParen)
	pos := p.current.Pos
	cond := p.parseExpression()
	if cond.Type() != tir.Bool {
		p.errorf(pos, "assert condition must be bool, got %s", cond.Type())
	}
	p.expect(TokenComma)
	tok := p.expect(TokenString)
	msg, err := strconv.Unquote(tok.Literal)
	if err != nil {
		p.errorf(tok.Pos, "bad string literal %s", tok.Literal)
	}
	p.expect(TokenRParen)
	var body tir.Stmt
	if p.currentTokenIs(TokenLBrace) {
		body = p.parseBlock()
	}
	return tir.MakeAssert(cond, msg, body)
}

func (p *Parser) parseStore() tir.Stmt {
	tok := p.expect(TokenIdent)
	buf := p.buffer(tok)
	p.expect(TokenLBracket)
	pos := p.current.Pos
	index := p.parseIndex(pos)
	p.expect(TokenRBracket)
	p.expect(TokenAssign)

	want := buf.Elem.WithLanes(index.Type().Lanes)
	pos = p.current.Pos
	s := &tir.Store{Buffer: buf, Index: index, Value: p.coerce(p.parseExpression(), want, pos)}
	if p.keywordIs("when") {
		p.nextToken()
		pos = p.current.Pos
		s.Predicate = p.coerce(p.parseExpression(), tir.Bool.WithLanes(want.Lanes), pos)
	}
	return s
}

func (p *Parser) parseIndex(pos Position) tir.Expr {
	index := p.parseExpression()
	if !index.Type().IsInteger() {
		p.errorf(pos, "index must be an integer, got %s", index.Type())
	}
	return index
}

func (p *Parser) lookupScalar(name string) *tir.Var {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if v, ok := p.scopes[i][name]; ok {
			return v
		}
	}
	return nil
}

func (p *Parser) lookup(name string) *tir.Var {
	if v := p.lookupScalar(name); v != nil {
		return v
	}
	return p.buffers[name]
}

func (p *Parser) buffer(tok Token) *tir.Var {
	v := p.lookup(tok.Literal)
	if v == nil {
		p.errorf(tok.Pos, "undefined: %s", tok.Literal)
	}
	if !v.DType.IsHandle() {
		p.errorf(tok.Pos, "%s is not a buffer", tok.Literal)
	}
	return v
}

func (p *Parser) parseExpression() tir.Expr {
	return p.parseBinary(precOr)
}

func (p *Parser) parseBinary(minPrec int) tir.Expr {
	left := p.parseUnary()
	for {
		prec, ok := precedences[p.current.Type]
		if !ok || prec < minPrec {
			return left
		}
		op := p.current
		p.nextToken()
		right := p.parseBinary(prec + 1)
		left = p.combine(op, left, right)
	}
}

func (p *Parser) combine(op Token, a, b tir.Expr) tir.Expr {
	a, b = p.unify(a, b, op.Pos)
	t := a.Type()
	switch op.Type {
	case TokenAnd, TokenOr:
		if !t.IsBool() {
			p.errorf(op.Pos, "operator %s needs bool operands, got %s", op.Literal, t)
		}
		if op.Type == TokenAnd {
			return tir.And(a, b)
		}
		return tir.Or(a, b)
	case TokenEq:
		return tir.EQ(a, b)
	case TokenNe:
		return tir.NE(a, b)
	}
	if t.IsBool() || t.IsHandle() {
		p.errorf(op.Pos, "operator %s not defined on %s", op.Literal, t)
	}
	switch op.Type {
	case TokenLt:
		return tir.LT(a, b)
	case TokenLe:
		return tir.LE(a, b)
	case TokenGt:
		return tir.GT(a, b)
	case TokenGe:
		return tir.GE(a, b)
	case TokenPlus:
		return tir.Add(a, b)
	case TokenMinus:
		return tir.Sub(a, b)
	case TokenMul:
		return tir.Mul(a, b)
	case TokenDiv:
		return tir.Div(a, b)
	default:
		if t.IsFloat() {
			p.errorf(op.Pos, "operator %% not defined on %s", t)
		}
		return tir.Mod(a, b)
	}
}

// unify gives an untyped literal the type of the other operand and then
// requires both operands to have the same type.
func (p *Parser) unify(a, b tir.Expr, pos Position) (tir.Expr, tir.Expr) {
	switch {
	case a.Type() == b.Type():
	case p.untyped[a] && !p.untyped[b]:
		a = p.coerce(a, b.Type(), pos)
	case p.untyped[b]:
		b = p.coerce(b, a.Type(), pos)
	}
	if a.Type() != b.Type() {
		p.errorf(pos, "mismatched types %s and %s", a.Type(), b.Type())
	}
	return a, b
}

// coerce converts an untyped literal to t and checks that e has type t.
func (p *Parser) coerce(e tir.Expr, t tir.DType, pos Position) tir.Expr {
	if e.Type() == t {
		return e
	}
	if p.untyped[e] && t.IsScalar() {
		switch c := e.(type) {
		case *tir.IntImm:
			switch {
			case t.IsInteger():
				return tir.IntConst(t, c.Value)
			case t.IsFloat():
				return tir.FloatConst(t, float64(c.Value))
			}
		case *tir.FloatImm:
			if t.IsFloat() {
				return tir.FloatConst(t, c.Value)
			}
		}
	}
	p.errorf(pos, "cannot use %s as %s", e.Type(), t)
	return nil
}

func (p *Parser) parseUnary() tir.Expr {
	switch p.current.Type {
	case TokenMinus:
		pos := p.current.Pos
		p.nextToken()
		if p.currentTokenIs(TokenInt) || p.currentTokenIs(TokenFloat) {
			return p.parseNumber(true)
		}
		x := p.parseUnary()
		if !x.Type().IsScalar() || !(x.Type().IsInteger() || x.Type().IsFloat()) {
			p.errorf(pos, "cannot negate %s", x.Type())
		}
		return tir.Sub(tir.Zero(x.Type()), x)
	case TokenNot:
		pos := p.current.Pos
		p.nextToken()
		x := p.parseUnary()
		if !x.Type().IsBool() {
			p.errorf(pos, "operator ! needs a bool operand, got %s", x.Type())
		}
		return &tir.Not{A: x}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() tir.Expr {
	tok := p.current
	switch tok.Type {
	case TokenInt, TokenFloat:
		return p.parseNumber(false)
	case TokenLParen:
		p.nextToken()
		e := p.parseExpression()
		p.expect(TokenRParen)
		return e
	case TokenExtern:
		p.nextToken()
		t := tir.I32
		if p.currentTokenIs(TokenColon) {
			p.nextToken()
			t = p.parseDType()
		}
		return &tir.Call{DType: t, Name: tok.Literal, Args: p.parseArgs(), Kind: tir.CallExtern}
	case TokenIdent:
		p.nextToken()
		switch {
		case tok.Literal == "true" || tok.Literal == "false":
			return tir.BoolConst(tok.Literal == "true")
		case p.currentTokenIs(TokenLParen):
			return p.parseBuiltin(tok)
		case p.currentTokenIs(TokenLBracket):
			buf := p.buffer(tok)
			p.nextToken()
			index := p.parseIndex(p.current.Pos)
			p.expect(TokenRBracket)
			return tir.NewLoad(buf, index)
		}
		v := p.lookup(tok.Literal)
		if v == nil {
			p.errorf(tok.Pos, "undefined: %s", tok.Literal)
		}
		return v
	}
	p.unexpected("expression")
	return nil
}

func (p *Parser) parseArgs() []tir.Expr {
	p.expect(TokenLParen)
	var args []tir.Expr
	for !p.currentTokenIs(TokenRParen) {
		if len(args) > 0 {
			p.expect(TokenComma)
		}
		args = append(args, p.parseExpression())
	}
	p.nextToken()
	return args
}

func (p *Parser) parseBuiltin(name Token) tir.Expr {
	pos := p.current.Pos
	args := p.parseArgs()
	arity := func(n int) {
		if len(args) != n {
			p.errorf(name.Pos, "%s takes %d arguments, got %d", name.Literal, n, len(args))
		}
	}
	lanes := func(e tir.Expr) int {
		c, ok := e.(*tir.IntImm)
		if !ok || !c.DType.IsInteger() || c.Value < 1 {
			p.errorf(pos, "%s lanes must be a positive integer literal", name.Literal)
		}
		return int(c.Value)
	}

	switch name.Literal {
	case "ramp":
		arity(3)
		base, stride := p.unify(args[0], args[1], pos)
		if !base.Type().IsScalar() || !base.Type().IsInteger() {
			p.errorf(pos, "ramp needs scalar integer base and stride, got %s", base.Type())
		}
		return &tir.Ramp{Base: base, Stride: stride, Lanes: lanes(args[2])}
	case "broadcast":
		arity(2)
		if !args[0].Type().IsScalar() {
			p.errorf(pos, "broadcast needs a scalar, got %s", args[0].Type())
		}
		return &tir.Broadcast{Value: args[0], Lanes: lanes(args[1])}
	case "min", "max":
		arity(2)
		a, b := p.unify(args[0], args[1], pos)
		if !a.Type().IsInteger() && !a.Type().IsFloat() {
			p.errorf(pos, "%s not defined on %s", name.Literal, a.Type())
		}
		if name.Literal == "min" {
			return tir.Min(a, b)
		}
		return tir.Max(a, b)
	case tir.IntrinsicSelect:
		arity(3)
		a, b := p.unify(args[1], args[2], pos)
		if args[0].Type() != tir.Bool.WithLanes(a.Type().Lanes) {
			p.errorf(pos, "select condition must be bool, got %s", args[0].Type())
		}
		return tir.Select(args[0], a, b)
	case tir.IntrinsicLikely:
		arity(1)
		return &tir.Call{DType: args[0].Type(), Name: tir.IntrinsicLikely, Args: args, Kind: tir.CallIntrinsic}
	}

	t, ok := tir.ParseDType(name.Literal)
	if !ok || t.IsHandle() {
		p.errorf(name.Pos, "unknown function %s", name.Literal)
	}
	arity(1)
	if args[0].Type().Lanes != t.Lanes {
		p.errorf(pos, "cannot convert %s to %s", args[0].Type(), t)
	}
	return &tir.Cast{To: t, Value: args[0]}
}

// parseNumber parses an integer or float literal with an optional type
// suffix.
func (p *Parser) parseNumber(negative bool) tir.Expr {
	tok := p.current
	p.nextToken()

	digits, suffix := splitSuffix(tok.Literal)
	var t tir.DType
	if suffix != "" {
		var ok bool
		t, ok = tir.ParseDType(suffix)
		if !ok || !t.IsScalar() || !(t.IsInteger() || t.IsFloat()) {
			p.errorf(tok.Pos, "bad literal suffix %q", suffix)
		}
	} else if tok.Type == TokenFloat {
		t = tir.F32
	} else {
		t = tir.I32
	}

	var e tir.Expr
	if t.IsFloat() {
		v, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			p.errorf(tok.Pos, "bad float literal %s", tok.Literal)
		}
		if negative {
			v = -v
		}
		e = tir.FloatConst(t, v)
	} else {
		if tok.Type == TokenFloat {
			p.errorf(tok.Pos, "bad integer literal %s", tok.Literal)
		}
		mag, err := strconv.ParseUint(digits, 10, 64)
		if err != nil {
			p.errorf(tok.Pos, "bad integer literal %s", tok.Literal)
		}
		v := int64(mag)
		if negative {
			v = -v
		}
		e = tir.IntConst(t, v)
	}
	if suffix == "" {
		p.untyped[e] = true
	}
	return e
}

// splitSuffix separates "16u64" into "16" and "u64". Exponent markers belong
// to the digits.
func splitSuffix(lit string) (string, string) {
	i := strings.IndexFunc(lit, func(r rune) bool {
		return r != 'e' && r != 'E' && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_')
	})
	if i < 0 {
		return lit, ""
	}
	return lit[:i], lit[i:]
}
