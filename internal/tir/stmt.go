package tir

// Stmt is a statement node.
type Stmt interface {
	Node
	isStmt()
}

// Seq executes statements in order.
type Seq struct {
	Stmts []Stmt
}

// IfThenElse branches on Cond. Else may be nil.
type IfThenElse struct {
	Cond Expr
	Then Stmt
	Else Stmt
}

// For iterates Var over [Min, Min+Extent).
type For struct {
	Var    *Var
	Min    Expr
	Extent Expr
	Body   Stmt
}

// Store writes Value into Buffer at Index. Predicate, when set, masks lanes.
type Store struct {
	Buffer    *Var
	Index     Expr
	Value     Expr
	Predicate Expr
}

// Allocate declares Buffer with the given element type and extents for the
// duration of Body.
type Allocate struct {
	Buffer  *Var
	DType   DType
	Extents []Expr
	Body    Stmt
}

// Attribute keys understood by the compiler.
const (
	// AttrBufferBound annotates Node with the element-count upper bound Value.
	AttrBufferBound = "buffer_bound"
)

// AttrStmt attaches a keyed fact about Node to Body.
type AttrStmt struct {
	Node  *Var
	Key   string
	Value Expr
	Body  Stmt
}

// AssertStmt aborts with Message when Cond is false, then runs Body.
type AssertStmt struct {
	Cond    Expr
	Message string
	Body    Stmt
}

// Evaluate computes Value for its side effects.
type Evaluate struct {
	Value Expr
}

func (*Seq) isNode()        {}
func (*IfThenElse) isNode() {}
func (*For) isNode()        {}
func (*Store) isNode()      {}
func (*Allocate) isNode()   {}
func (*AttrStmt) isNode()   {}
func (*AssertStmt) isNode() {}
func (*Evaluate) isNode()   {}

func (*Seq) isStmt()        {}
func (*IfThenElse) isStmt() {}
func (*For) isStmt()        {}
func (*Store) isStmt()      {}
func (*Allocate) isStmt()   {}
func (*AttrStmt) isStmt()   {}
func (*AssertStmt) isStmt() {}
func (*Evaluate) isStmt()   {}

// Nop returns a statement with no effect.
func Nop() Stmt { return &Evaluate{Value: IntConst(I32, 0)} }

// IsNop reports whether s has no effect.
func IsNop(s Stmt) bool {
	switch s := s.(type) {
	case nil:
		return true
	case *Evaluate:
		_, ok := s.Value.(*IntImm)
		return ok
	case *Seq:
		for _, st := range s.Stmts {
			if !IsNop(st) {
				return false
			}
		}
		return true
	}
	return false
}

// MakeAssert builds an assertion that aborts with message when cond is false.
// A nil body falls through to a no-op.
func MakeAssert(cond Expr, message string, body Stmt) Stmt {
	if body == nil {
		body = Nop()
	}
	return &AssertStmt{Cond: cond, Message: message, Body: body}
}

// Func is one compilation unit.
type Func struct {
	Name   string
	Params []*Var
	Body   Stmt
}

// Module groups the functions of one source file.
type Module struct {
	Version string
	Funcs   []*Func
}

// Func returns the function with the given name.
func (m *Module) Func(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
