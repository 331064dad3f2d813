package tir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Operator precedence used by the printer; the text parser mirrors it.
const (
	precOr = iota + 1
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

func exprPrec(e Expr) int {
	switch e := e.(type) {
	case *Binary:
		switch e.Op {
		case OpAdd, OpSub:
			return precAdditive
		case OpMul, OpDiv, OpMod:
			return precMultiplicative
		}
	case *Compare:
		if e.Op == OpEQ || e.Op == OpNE {
			return precEquality
		}
		return precRelational
	case *Logical:
		if e.Op == OpOr {
			return precOr
		}
		return precAnd
	case *Not:
		return precUnary
	case *IntImm:
		if e.Value < 0 && !e.DType.IsUInt() {
			return precUnary
		}
	case *FloatImm:
		if e.Value < 0 || math.Signbit(e.Value) {
			return precUnary
		}
	}
	return precPrimary
}

// ExprString renders e in the textual IR syntax.
func ExprString(e Expr) string {
	var b strings.Builder
	writeExpr(&b, e)
	return b.String()
}

func writeOperand(b *strings.Builder, e Expr, minPrec int) {
	if exprPrec(e) < minPrec {
		b.WriteByte('(')
		writeExpr(b, e)
		b.WriteByte(')')
		return
	}
	writeExpr(b, e)
}

func writeInfix(b *strings.Builder, prec int, op string, a, c Expr) {
	writeOperand(b, a, prec)
	b.WriteString(" " + op + " ")
	// Left associative: an equal-precedence right operand needs parentheses.
	writeOperand(b, c, prec+1)
}

func writeArgs(b *strings.Builder, args ...Expr) {
	b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		writeExpr(b, a)
	}
	b.WriteByte(')')
}

func writeExpr(b *strings.Builder, e Expr) {
	switch e := e.(type) {
	case nil:
		b.WriteString("<nil>")
	case *IntImm:
		b.WriteString(intLiteral(e))
	case *FloatImm:
		b.WriteString(floatLiteral(e))
	case *Var:
		b.WriteString(e.Name)
	case *Binary:
		switch e.Op {
		case OpMin, OpMax:
			b.WriteString(e.Op.String())
			writeArgs(b, e.A, e.B)
		default:
			writeInfix(b, exprPrec(e), e.Op.String(), e.A, e.B)
		}
	case *Compare:
		writeInfix(b, exprPrec(e), e.Op.String(), e.A, e.B)
	case *Logical:
		writeInfix(b, exprPrec(e), e.Op.String(), e.A, e.B)
	case *Not:
		b.WriteByte('!')
		writeOperand(b, e.A, precUnary)
	case *Cast:
		b.WriteString(e.To.String())
		writeArgs(b, e.Value)
	case *Ramp:
		b.WriteString("ramp")
		writeArgs(b, e.Base, e.Stride, IntConst(I32, int64(e.Lanes)))
	case *Broadcast:
		b.WriteString("broadcast")
		writeArgs(b, e.Value, IntConst(I32, int64(e.Lanes)))
	case *Load:
		b.WriteString(e.Buffer.Name)
		b.WriteByte('[')
		writeExpr(b, e.Index)
		b.WriteByte(']')
	case *Call:
		if e.Kind == CallExtern {
			b.WriteString("@" + e.Name)
			if e.DType != I32 {
				b.WriteString(":" + e.DType.String())
			}
		} else {
			b.WriteString(e.Name)
		}
		writeArgs(b, e.Args...)
	default:
		fmt.Fprintf(b, "<%T>", e)
	}
}

func intLiteral(e *IntImm) string {
	switch {
	case e.DType == Bool:
		if e.Value != 0 {
			return "true"
		}
		return "false"
	case e.DType.IsUInt():
		return strconv.FormatUint(uint64(e.Value), 10) + e.DType.String()
	case e.DType == I32:
		return strconv.FormatInt(e.Value, 10)
	default:
		return strconv.FormatInt(e.Value, 10) + e.DType.String()
	}
}

func floatLiteral(e *FloatImm) string {
	bits := 64
	if e.DType.Bits == 32 {
		bits = 32
	}
	s := strconv.FormatFloat(e.Value, 'f', -1, bits)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	if e.DType != F32 {
		s += e.DType.String()
	}
	return s
}

// StmtString renders s in the textual IR syntax at indentation zero.
func StmtString(s Stmt) string {
	p := printer{}
	p.stmt(s)
	return p.b.String()
}

// Print renders a function.
func Print(f *Func) string {
	p := printer{}
	p.fn(f)
	return p.b.String()
}

// PrintModule renders every function of m separated by blank lines.
func PrintModule(m *Module) string {
	p := printer{}
	for i, f := range m.Funcs {
		if i > 0 {
			p.b.WriteByte('\n')
		}
		p.fn(f)
	}
	return p.b.String()
}

type printer struct {
	b      strings.Builder
	indent int
}

func (p *printer) line(format string, args ...any) {
	p.b.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.b, format, args...)
	p.b.WriteByte('\n')
}

func (p *printer) fn(f *Func) {
	params := make([]string, len(f.Params))
	for i, v := range f.Params {
		if v.DType.IsHandle() {
			params[i] = v.Name + ": " + v.Elem.String() + "*"
		} else {
			params[i] = v.Name + ": " + v.DType.String()
		}
	}
	p.line("func %s(%s) {", f.Name, strings.Join(params, ", "))
	p.body(f.Body)
	p.line("}")
}

func (p *printer) body(s Stmt) {
	p.indent++
	p.stmt(s)
	p.indent--
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case nil:
	case *Seq:
		for _, st := range s.Stmts {
			p.stmt(st)
		}
	case *IfThenElse:
		p.line("if %s {", ExprString(s.Cond))
		p.body(s.Then)
		if s.Else != nil {
			p.line("} else {")
			p.body(s.Else)
		}
		p.line("}")
	case *For:
		v := s.Var.Name
		if s.Var.DType != I32 {
			v += ": " + s.Var.DType.String()
		}
		p.line("for (%s, %s, %s) {", v, ExprString(s.Min), ExprString(s.Extent))
		p.body(s.Body)
		p.line("}")
	case *Store:
		text := fmt.Sprintf("%s[%s] = %s", s.Buffer.Name, ExprString(s.Index), ExprString(s.Value))
		if s.Predicate != nil {
			text += " when " + ExprString(s.Predicate)
		}
		p.line("%s", text)
	case *Allocate:
		ext := make([]string, len(s.Extents))
		for i, e := range s.Extents {
			ext[i] = ExprString(e)
		}
		p.line("alloc %s: %s[%s] {", s.Buffer.Name, s.DType, strings.Join(ext, ", "))
		p.body(s.Body)
		p.line("}")
	case *AttrStmt:
		head := "attr " + s.Key
		if s.Node != nil {
			head += "(" + s.Node.Name + ")"
		}
		p.line("%s = %s {", head, ExprString(s.Value))
		p.body(s.Body)
		p.line("}")
	case *AssertStmt:
		head := fmt.Sprintf("assert(%s, %s)", ExprString(s.Cond), strconv.Quote(s.Message))
		if IsNop(s.Body) {
			p.line("%s", head)
			return
		}
		p.line("%s {", head)
		p.body(s.Body)
		p.line("}")
	case *Evaluate:
		p.line("eval %s", ExprString(s.Value))
	default:
		p.line("<%T>", s)
	}
}
