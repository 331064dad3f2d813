package tir

// Node is implemented by every expression and statement.
type Node interface{ isNode() }

// Expr is an immutable expression node.
type Expr interface {
	Node
	Type() DType
	isExpr()
}

// IntImm is an integer or boolean constant. Unsigned values are stored as
// their bit pattern.
type IntImm struct {
	DType DType
	Value int64
}

// FloatImm is a floating point constant.
type FloatImm struct {
	DType DType
	Value float64
}

// Var is a named variable. Buffer variables have DType Handle and carry the
// type of their elements in Elem. Buffers are identified by pointer, never by
// name.
type Var struct {
	Name  string
	DType DType
	Elem  DType
}

// BinaryOp enumerates arithmetic operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpMin
	OpMax
)

var binaryOpNames = map[BinaryOp]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpMod: "%",
	OpMin: "min",
	OpMax: "max",
}

func (op BinaryOp) String() string { return binaryOpNames[op] }

// Binary is an arithmetic operation on operands of the same type.
type Binary struct {
	Op   BinaryOp
	A, B Expr
}

// CompareOp enumerates comparison operators.
type CompareOp int

const (
	OpEQ CompareOp = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
)

var compareOpNames = map[CompareOp]string{
	OpEQ: "==",
	OpNE: "!=",
	OpLT: "<",
	OpLE: "<=",
	OpGT: ">",
	OpGE: ">=",
}

func (op CompareOp) String() string { return compareOpNames[op] }

// Compare produces a boolean with the lane count of its operands.
type Compare struct {
	Op   CompareOp
	A, B Expr
}

// LogicalOp is either conjunction or disjunction.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

func (op LogicalOp) String() string {
	if op == OpOr {
		return "||"
	}
	return "&&"
}

// Logical combines boolean operands.
type Logical struct {
	Op   LogicalOp
	A, B Expr
}

// Not negates a boolean.
type Not struct {
	A Expr
}

// Cast converts Value to the type To.
type Cast struct {
	To    DType
	Value Expr
}

// Ramp is the vector base + stride*k for k in [0, Lanes).
type Ramp struct {
	Base   Expr
	Stride Expr
	Lanes  int
}

// Broadcast replicates a scalar across Lanes lanes.
type Broadcast struct {
	Value Expr
	Lanes int
}

// Load reads Buffer at Index.
type Load struct {
	DType  DType
	Buffer *Var
	Index  Expr
}

// CallKind distinguishes compiler intrinsics from external functions.
type CallKind int

const (
	CallIntrinsic CallKind = iota
	CallExtern
)

// Intrinsic names.
const (
	IntrinsicSelect = "select"
	IntrinsicLikely = "likely"
)

// Call invokes an intrinsic or an external function.
type Call struct {
	DType DType
	Name  string
	Args  []Expr
	Kind  CallKind
}

// IsIntrinsic reports whether c is the intrinsic with the given name.
func (c *Call) IsIntrinsic(name string) bool {
	return c.Kind == CallIntrinsic && c.Name == name
}

func (e *IntImm) Type() DType   { return e.DType }
func (e *FloatImm) Type() DType { return e.DType }
func (e *Var) Type() DType      { return e.DType }
func (e *Binary) Type() DType   { return e.A.Type() }
func (e *Compare) Type() DType  { return Bool.WithLanes(e.A.Type().Lanes) }
func (e *Logical) Type() DType  { return Bool.WithLanes(e.A.Type().Lanes) }
func (e *Not) Type() DType      { return e.A.Type() }
func (e *Cast) Type() DType     { return e.To }
func (e *Ramp) Type() DType     { return e.Base.Type().WithLanes(e.Lanes) }
func (e *Broadcast) Type() DType {
	return e.Value.Type().WithLanes(e.Value.Type().Lanes * e.Lanes)
}
func (e *Load) Type() DType { return e.DType }
func (e *Call) Type() DType { return e.DType }

func (*IntImm) isNode()    {}
func (*FloatImm) isNode()  {}
func (*Var) isNode()       {}
func (*Binary) isNode()    {}
func (*Compare) isNode()   {}
func (*Logical) isNode()   {}
func (*Not) isNode()       {}
func (*Cast) isNode()      {}
func (*Ramp) isNode()      {}
func (*Broadcast) isNode() {}
func (*Load) isNode()      {}
func (*Call) isNode()      {}

func (*IntImm) isExpr()    {}
func (*FloatImm) isExpr()  {}
func (*Var) isExpr()       {}
func (*Binary) isExpr()    {}
func (*Compare) isExpr()   {}
func (*Logical) isExpr()   {}
func (*Not) isExpr()       {}
func (*Cast) isExpr()      {}
func (*Ramp) isExpr()      {}
func (*Broadcast) isExpr() {}
func (*Load) isExpr()      {}
func (*Call) isExpr()      {}

// NewVar creates a scalar variable.
func NewVar(name string, t DType) *Var { return &Var{Name: name, DType: t} }

// NewBuffer creates a buffer variable whose elements have type elem.
func NewBuffer(name string, elem DType) *Var {
	return &Var{Name: name, DType: Handle, Elem: elem}
}

// IntConst builds an integer constant of type t, wrapped to its width.
func IntConst(t DType, v int64) *IntImm {
	return &IntImm{DType: t, Value: Truncate(t, v)}
}

// FloatConst builds a floating point constant.
func FloatConst(t DType, v float64) *FloatImm {
	return &FloatImm{DType: t, Value: v}
}

// BoolConst builds a boolean constant.
func BoolConst(v bool) *IntImm {
	if v {
		return &IntImm{DType: Bool, Value: 1}
	}
	return &IntImm{DType: Bool, Value: 0}
}

// Zero returns the zero constant of a scalar numeric type.
func Zero(t DType) Expr {
	if t.IsFloat() {
		return FloatConst(t, 0)
	}
	return IntConst(t, 0)
}

// NewLoad builds a load whose type follows the index lanes.
func NewLoad(buf *Var, index Expr) *Load {
	t := buf.Elem
	if lanes := index.Type().Lanes; lanes > 1 {
		t = t.WithLanes(lanes)
	}
	return &Load{DType: t, Buffer: buf, Index: index}
}

// Select builds the value-level conditional intrinsic.
func Select(cond, a, b Expr) *Call {
	return &Call{DType: a.Type(), Name: IntrinsicSelect, Args: []Expr{cond, a, b}, Kind: CallIntrinsic}
}

func Add(a, b Expr) Expr { return &Binary{Op: OpAdd, A: a, B: b} }
func Sub(a, b Expr) Expr { return &Binary{Op: OpSub, A: a, B: b} }
func Mul(a, b Expr) Expr { return &Binary{Op: OpMul, A: a, B: b} }
func Div(a, b Expr) Expr { return &Binary{Op: OpDiv, A: a, B: b} }
func Mod(a, b Expr) Expr { return &Binary{Op: OpMod, A: a, B: b} }
func Min(a, b Expr) Expr { return &Binary{Op: OpMin, A: a, B: b} }
func Max(a, b Expr) Expr { return &Binary{Op: OpMax, A: a, B: b} }

func EQ(a, b Expr) Expr { return &Compare{Op: OpEQ, A: a, B: b} }
func NE(a, b Expr) Expr { return &Compare{Op: OpNE, A: a, B: b} }
func LT(a, b Expr) Expr { return &Compare{Op: OpLT, A: a, B: b} }
func LE(a, b Expr) Expr { return &Compare{Op: OpLE, A: a, B: b} }
func GT(a, b Expr) Expr { return &Compare{Op: OpGT, A: a, B: b} }
func GE(a, b Expr) Expr { return &Compare{Op: OpGE, A: a, B: b} }

func And(a, b Expr) Expr { return &Logical{Op: OpAnd, A: a, B: b} }
func Or(a, b Expr) Expr  { return &Logical{Op: OpOr, A: a, B: b} }

// CastTo converts e to t, returning e unchanged when it already has type t.
func CastTo(t DType, e Expr) Expr {
	if e.Type() == t {
		return e
	}
	return &Cast{To: t, Value: e}
}

// Equal reports structural equality. Variables compare by identity.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *IntImm:
		y, ok := b.(*IntImm)
		return ok && x.DType == y.DType && x.Value == y.Value
	case *FloatImm:
		y, ok := b.(*FloatImm)
		return ok && x.DType == y.DType && x.Value == y.Value
	case *Var:
		y, ok := b.(*Var)
		return ok && x == y
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && Equal(x.A, y.A) && Equal(x.B, y.B)
	case *Compare:
		y, ok := b.(*Compare)
		return ok && x.Op == y.Op && Equal(x.A, y.A) && Equal(x.B, y.B)
	case *Logical:
		y, ok := b.(*Logical)
		return ok && x.Op == y.Op && Equal(x.A, y.A) && Equal(x.B, y.B)
	case *Not:
		y, ok := b.(*Not)
		return ok && Equal(x.A, y.A)
	case *Cast:
		y, ok := b.(*Cast)
		return ok && x.To == y.To && Equal(x.Value, y.Value)
	case *Ramp:
		y, ok := b.(*Ramp)
		return ok && x.Lanes == y.Lanes && Equal(x.Base, y.Base) && Equal(x.Stride, y.Stride)
	case *Broadcast:
		y, ok := b.(*Broadcast)
		return ok && x.Lanes == y.Lanes && Equal(x.Value, y.Value)
	case *Load:
		y, ok := b.(*Load)
		return ok && x.Buffer == y.Buffer && x.DType == y.DType && Equal(x.Index, y.Index)
	case *Call:
		y, ok := b.(*Call)
		if !ok || x.Name != y.Name || x.Kind != y.Kind || x.DType != y.DType || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Equal(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}
