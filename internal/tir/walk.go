package tir

// InspectExpr traverses e in depth-first pre-order. If f returns false the
// children of the current node are skipped.
func InspectExpr(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	switch e := e.(type) {
	case *IntImm, *FloatImm, *Var:
	case *Binary:
		InspectExpr(e.A, f)
		InspectExpr(e.B, f)
	case *Compare:
		InspectExpr(e.A, f)
		InspectExpr(e.B, f)
	case *Logical:
		InspectExpr(e.A, f)
		InspectExpr(e.B, f)
	case *Not:
		InspectExpr(e.A, f)
	case *Cast:
		InspectExpr(e.Value, f)
	case *Ramp:
		InspectExpr(e.Base, f)
		InspectExpr(e.Stride, f)
	case *Broadcast:
		InspectExpr(e.Value, f)
	case *Load:
		InspectExpr(e.Index, f)
	case *Call:
		for _, a := range e.Args {
			InspectExpr(a, f)
		}
	}
}

// Inspect traverses every statement and expression reachable from s in
// pre-order. Returning false from f prunes the subtree.
func Inspect(s Stmt, f func(Node) bool) {
	if s == nil || !f(s) {
		return
	}
	expr := func(e Expr) {
		InspectExpr(e, func(x Expr) bool { return f(x) })
	}
	switch s := s.(type) {
	case *Seq:
		for _, st := range s.Stmts {
			Inspect(st, f)
		}
	case *IfThenElse:
		expr(s.Cond)
		Inspect(s.Then, f)
		Inspect(s.Else, f)
	case *For:
		expr(s.Min)
		expr(s.Extent)
		Inspect(s.Body, f)
	case *Store:
		expr(s.Index)
		expr(s.Value)
		expr(s.Predicate)
	case *Allocate:
		for _, e := range s.Extents {
			expr(e)
		}
		Inspect(s.Body, f)
	case *AttrStmt:
		expr(s.Value)
		Inspect(s.Body, f)
	case *AssertStmt:
		expr(s.Cond)
		Inspect(s.Body, f)
	case *Evaluate:
		expr(s.Value)
	}
}

// MapExprs rebuilds s with every top-level expression replaced by f(e).
// Statements whose expressions are unchanged are returned as is.
func MapExprs(s Stmt, f func(Expr) Expr) Stmt {
	if s == nil {
		return nil
	}
	mapE := func(e Expr) Expr {
		if e == nil {
			return nil
		}
		return f(e)
	}
	switch s := s.(type) {
	case *Seq:
		out := make([]Stmt, len(s.Stmts))
		changed := false
		for i, st := range s.Stmts {
			out[i] = MapExprs(st, f)
			changed = changed || out[i] != st
		}
		if !changed {
			return s
		}
		return &Seq{Stmts: out}
	case *IfThenElse:
		cond, then, els := mapE(s.Cond), MapExprs(s.Then, f), MapExprs(s.Else, f)
		if cond == s.Cond && then == s.Then && els == s.Else {
			return s
		}
		return &IfThenElse{Cond: cond, Then: then, Else: els}
	case *For:
		lo, extent, body := mapE(s.Min), mapE(s.Extent), MapExprs(s.Body, f)
		if lo == s.Min && extent == s.Extent && body == s.Body {
			return s
		}
		return &For{Var: s.Var, Min: lo, Extent: extent, Body: body}
	case *Store:
		index, value, pred := mapE(s.Index), mapE(s.Value), mapE(s.Predicate)
		if index == s.Index && value == s.Value && pred == s.Predicate {
			return s
		}
		return &Store{Buffer: s.Buffer, Index: index, Value: value, Predicate: pred}
	case *Allocate:
		ext := make([]Expr, len(s.Extents))
		changed := false
		for i, e := range s.Extents {
			ext[i] = mapE(e)
			changed = changed || ext[i] != e
		}
		body := MapExprs(s.Body, f)
		if !changed && body == s.Body {
			return s
		}
		return &Allocate{Buffer: s.Buffer, DType: s.DType, Extents: ext, Body: body}
	case *AttrStmt:
		value, body := mapE(s.Value), MapExprs(s.Body, f)
		if value == s.Value && body == s.Body {
			return s
		}
		return &AttrStmt{Node: s.Node, Key: s.Key, Value: value, Body: body}
	case *AssertStmt:
		cond, body := mapE(s.Cond), MapExprs(s.Body, f)
		if cond == s.Cond && body == s.Body {
			return s
		}
		return &AssertStmt{Cond: cond, Message: s.Message, Body: body}
	case *Evaluate:
		value := mapE(s.Value)
		if value == s.Value {
			return s
		}
		return &Evaluate{Value: value}
	}
	return s
}
