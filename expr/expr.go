// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

// Package expr implements the arena-scoped symbolic scalar IR used by the
// kernel compiler: typed scalar expressions (immediates, variables,
// arithmetic, compares, intrinsics, casts, buffer loads) and statements
// (loops, guards, stores).
//
// All nodes live in an Arena and are referenced by lightweight handles
// (Expr, Stmt, Buffer). The tree is acyclic by construction. Once a kernel
// has been code-generated the whole arena is discarded with Arena.Finalize;
// handles must not be used past that point.
//
// Only Int32 and Float32 are valid node dtypes. Mixed-dtype arithmetic is a
// caller bug: numeric promotion is the job of the lowering layer, and the
// constructors here panic rather than promote silently.
package expr

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// ExprKind discriminates the expression node types.
type ExprKind uint8

const (
	KindInvalid ExprKind = iota
	KindIntImm
	KindFloatImm
	KindVar
	KindBinary
	KindCompareSelect
	KindIfThenElse
	KindCast
	KindIntrinsic
	KindLoad
)

// BinaryOp enumerates the arithmetic binary operators.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpMin
	OpMax
)

var binaryOpSymbols = [...]string{"+", "-", "*", "/", "%", "min", "max"}

// CompareOp enumerates the comparison modes of CompareSelect.
type CompareOp uint8

const (
	CmpEQ CompareOp = iota
	CmpNE
	CmpGT
	CmpGE
	CmpLT
	CmpLE
)

var compareOpSymbols = [...]string{"==", "!=", ">", ">=", "<", "<="}

// Intrinsic enumerates the scalar math intrinsics. All of them take and
// return Float32; Pow, Atan2 and Fmod are binary, the rest unary.
type Intrinsic uint8

const (
	IntrSqrt Intrinsic = iota
	IntrRsqrt
	IntrExp
	IntrExpm1
	IntrLog
	IntrLog2
	IntrLog10
	IntrSin
	IntrCos
	IntrTan
	IntrAsin
	IntrAcos
	IntrAtan
	IntrSinh
	IntrCosh
	IntrTanh
	IntrErf
	IntrErfc
	IntrAbs
	IntrCeil
	IntrFloor
	IntrRound
	IntrTrunc
	IntrLgamma
	IntrPow
	IntrAtan2
	IntrFmod
)

var intrinsicNames = [...]string{
	"sqrt", "rsqrt", "exp", "expm1", "log", "log2", "log10",
	"sin", "cos", "tan", "asin", "acos", "atan", "sinh", "cosh", "tanh",
	"erf", "erfc", "abs", "ceil", "floor", "round", "trunc", "lgamma",
	"pow", "atan2", "fmod",
}

// Name returns the lower-case name of the intrinsic, e.g. "sqrt".
func (i Intrinsic) Name() string { return intrinsicNames[i] }

// Arity returns the number of operands the intrinsic takes.
func (i Intrinsic) Arity() int {
	switch i {
	case IntrPow, IntrAtan2, IntrFmod:
		return 2
	}
	return 1
}

type exprNode struct {
	kind  ExprKind
	dtype dtypes.DType
	op    uint8 // BinaryOp, CompareOp or Intrinsic, depending on kind.
	args  [4]int32
	nArgs uint8
	ival  int32
	fval  float32
	name  string
	buf   int32 // Buffer id for KindLoad.
}

// Arena owns every expression, statement and buffer node created during one
// kernel compilation. It is not safe for concurrent use.
type Arena struct {
	exprs     []exprNode
	stmts     []stmtNode
	bufs      []bufferNode
	finalized bool
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Finalize drops all node storage. Every handle into the arena becomes
// invalid; using one afterwards panics.
func (a *Arena) Finalize() {
	a.exprs = nil
	a.stmts = nil
	a.bufs = nil
	a.finalized = true
}

// NumExprs returns the number of expression nodes allocated so far.
func (a *Arena) NumExprs() int { return len(a.exprs) }

func (a *Arena) alive() {
	if a == nil {
		exceptions.Panicf("expr: nil Arena")
	}
	if a.finalized {
		exceptions.Panicf("expr: Arena already finalized, no symbolic expression may outlive code generation")
	}
}

func (a *Arena) newExpr(n exprNode) Expr {
	a.alive()
	a.exprs = append(a.exprs, n)
	return Expr{a: a, id: int32(len(a.exprs) - 1)}
}

// Expr is a handle to one expression node in an Arena.
// The zero value is invalid.
type Expr struct {
	a  *Arena
	id int32
}

// Valid reports whether e refers to a node.
func (e Expr) Valid() bool { return e.a != nil }

func (e Expr) node() *exprNode {
	e.a.alive()
	return &e.a.exprs[e.id]
}

// Kind returns the node kind.
func (e Expr) Kind() ExprKind { return e.node().kind }

// DType returns the scalar type of the expression.
func (e Expr) DType() dtypes.DType { return e.node().dtype }

// Arena returns the owning arena.
func (e Expr) Arena() *Arena { return e.a }

func checkDType(dtype dtypes.DType) {
	if dtype != dtypes.Int32 && dtype != dtypes.Float32 {
		exceptions.Panicf("expr: unhandled datatype %s, only Int32 and Float32 are supported", dtype)
	}
}

// IntImm creates an Int32 immediate.
func (a *Arena) IntImm(value int32) Expr {
	return a.newExpr(exprNode{kind: KindIntImm, dtype: dtypes.Int32, ival: value})
}

// FloatImm creates a Float32 immediate.
func (a *Arena) FloatImm(value float32) Expr {
	return a.newExpr(exprNode{kind: KindFloatImm, dtype: dtypes.Float32, fval: value})
}

// Var creates a named scalar variable of the given dtype.
// Each call creates a distinct variable, even under the same name.
func (a *Arena) Var(name string, dtype dtypes.DType) Expr {
	checkDType(dtype)
	return a.newExpr(exprNode{kind: KindVar, dtype: dtype, name: name})
}

// Cast converts e to dtype. Casting to the same dtype returns e unchanged.
// Float-to-int casts truncate.
func (a *Arena) Cast(dtype dtypes.DType, e Expr) Expr {
	checkDType(dtype)
	if e.DType() == dtype {
		return e
	}
	n := exprNode{kind: KindCast, dtype: dtype, nArgs: 1}
	n.args[0] = e.id
	return a.newExpr(n)
}

func (a *Arena) binary(op BinaryOp, lhs, rhs Expr) Expr {
	if lhs.DType() != rhs.DType() {
		exceptions.Panicf("expr: binary %q with mixed dtypes %s vs %s (promotion is the lowering layer's job)",
			binaryOpSymbols[op], lhs.DType(), rhs.DType())
	}
	// Integer immediates fold, so shape arithmetic over constant dimensions
	// stays a constant.
	if lhs.Kind() == KindIntImm && rhs.Kind() == KindIntImm {
		return a.IntImm(foldIntBinary(op, lhs.IntImmValue(), rhs.IntImmValue()))
	}
	n := exprNode{kind: KindBinary, dtype: lhs.DType(), op: uint8(op), nArgs: 2}
	n.args[0], n.args[1] = lhs.id, rhs.id
	return a.newExpr(n)
}

func foldIntBinary(op BinaryOp, a, b int32) int32 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpMod:
		return a % b
	case OpMin:
		return min(a, b)
	case OpMax:
		return max(a, b)
	}
	exceptions.Panicf("expr: unhandled binary op %d", op)
	return 0
}

// Add returns e + o.
func (e Expr) Add(o Expr) Expr { return e.a.binary(OpAdd, e, o) }

// Sub returns e - o.
func (e Expr) Sub(o Expr) Expr { return e.a.binary(OpSub, e, o) }

// Mul returns e * o.
func (e Expr) Mul(o Expr) Expr { return e.a.binary(OpMul, e, o) }

// Div returns e / o.
func (e Expr) Div(o Expr) Expr { return e.a.binary(OpDiv, e, o) }

// Mod returns e % o (integer remainder).
func (e Expr) Mod(o Expr) Expr { return e.a.binary(OpMod, e, o) }

// Min returns min(e, o).
func (e Expr) Min(o Expr) Expr { return e.a.binary(OpMin, e, o) }

// Max returns max(e, o).
func (e Expr) Max(o Expr) Expr { return e.a.binary(OpMax, e, o) }

// CompareSelect returns ifTrue when `lhs cmp rhs` holds, ifFalse otherwise.
// lhs/rhs must share a dtype, and so must ifTrue/ifFalse; the result takes
// the dtype of the selected values.
func (a *Arena) CompareSelect(lhs, rhs, ifTrue, ifFalse Expr, cmp CompareOp) Expr {
	if lhs.DType() != rhs.DType() {
		exceptions.Panicf("expr: CompareSelect compares mixed dtypes %s vs %s", lhs.DType(), rhs.DType())
	}
	if ifTrue.DType() != ifFalse.DType() {
		exceptions.Panicf("expr: CompareSelect selects mixed dtypes %s vs %s", ifTrue.DType(), ifFalse.DType())
	}
	n := exprNode{kind: KindCompareSelect, dtype: ifTrue.DType(), op: uint8(cmp), nArgs: 4}
	n.args[0], n.args[1], n.args[2], n.args[3] = lhs.id, rhs.id, ifTrue.id, ifFalse.id
	return a.newExpr(n)
}

// IfThenElse selects onTrue when cond is non-zero, onFalse otherwise.
func (a *Arena) IfThenElse(cond, onTrue, onFalse Expr) Expr {
	if onTrue.DType() != onFalse.DType() {
		exceptions.Panicf("expr: IfThenElse branches with mixed dtypes %s vs %s", onTrue.DType(), onFalse.DType())
	}
	n := exprNode{kind: KindIfThenElse, dtype: onTrue.DType(), nArgs: 3}
	n.args[0], n.args[1], n.args[2] = cond.id, onTrue.id, onFalse.id
	return a.newExpr(n)
}

// Intrinsic creates a call to a scalar math intrinsic.
// All intrinsics operate on Float32 operands only.
func (a *Arena) Intrinsic(op Intrinsic, args ...Expr) Expr {
	if len(args) != op.Arity() {
		exceptions.Panicf("expr: intrinsic %s takes %d operands, got %d", op.Name(), op.Arity(), len(args))
	}
	n := exprNode{kind: KindIntrinsic, dtype: dtypes.Float32, op: uint8(op), nArgs: uint8(len(args))}
	for i, arg := range args {
		if arg.DType() != dtypes.Float32 {
			exceptions.Panicf("expr: intrinsic %s operand #%d is %s, want Float32", op.Name(), i, arg.DType())
		}
		n.args[i] = arg.id
	}
	return a.newExpr(n)
}

// Buffer is a handle to a named linear buffer of a fixed dtype, the formal
// parameter kind through which kernels read inputs and write outputs.
type Buffer struct {
	a  *Arena
	id int32
}

type bufferNode struct {
	name  string
	dtype dtypes.DType
}

// NewBuffer declares a buffer parameter.
func (a *Arena) NewBuffer(name string, dtype dtypes.DType) Buffer {
	a.alive()
	checkDType(dtype)
	a.bufs = append(a.bufs, bufferNode{name: name, dtype: dtype})
	return Buffer{a: a, id: int32(len(a.bufs) - 1)}
}

// Valid reports whether b refers to a declared buffer.
func (b Buffer) Valid() bool { return b.a != nil }

// Name returns the buffer's name.
func (b Buffer) Name() string {
	b.a.alive()
	return b.a.bufs[b.id].name
}

// DType returns the buffer's element type.
func (b Buffer) DType() dtypes.DType {
	b.a.alive()
	return b.a.bufs[b.id].dtype
}

// Load reads b at the given Int32 flat index.
func (a *Arena) Load(b Buffer, index Expr) Expr {
	if index.DType() != dtypes.Int32 {
		exceptions.Panicf("expr: Load index must be Int32, got %s", index.DType())
	}
	n := exprNode{kind: KindLoad, dtype: b.DType(), nArgs: 1, buf: b.id}
	n.args[0] = index.id
	return a.newExpr(n)
}

// --- Inspection API, used by rewriters, code generators and the lowering
// --- table's literal-recognition rules (pow strength reduction).

// NumArgs returns the number of child expressions.
func (e Expr) NumArgs() int { return int(e.node().nArgs) }

// Arg returns the i-th child expression.
func (e Expr) Arg(i int) Expr {
	n := e.node()
	if i < 0 || i >= int(n.nArgs) {
		exceptions.Panicf("expr: Arg(%d) out of range, node has %d args", i, n.nArgs)
	}
	return Expr{a: e.a, id: n.args[i]}
}

// Args returns all child expressions.
func (e Expr) Args() []Expr {
	n := e.node()
	out := make([]Expr, n.nArgs)
	for i := range out {
		out[i] = Expr{a: e.a, id: n.args[i]}
	}
	return out
}

// IntImmValue returns the value of a KindIntImm node.
func (e Expr) IntImmValue() int32 {
	if e.Kind() != KindIntImm {
		exceptions.Panicf("expr: IntImmValue on %v node", e.Kind())
	}
	return e.node().ival
}

// FloatImmValue returns the value of a KindFloatImm node.
func (e Expr) FloatImmValue() float32 {
	if e.Kind() != KindFloatImm {
		exceptions.Panicf("expr: FloatImmValue on %v node", e.Kind())
	}
	return e.node().fval
}

// IsIntImm reports whether e is an Int32 immediate of the given value.
func (e Expr) IsIntImm(value int32) bool {
	return e.Kind() == KindIntImm && e.node().ival == value
}

// Name returns the name of a KindVar node.
func (e Expr) Name() string {
	if e.Kind() != KindVar {
		exceptions.Panicf("expr: Name on %v node", e.Kind())
	}
	return e.node().name
}

// BinaryOp returns the operator of a KindBinary node.
func (e Expr) BinaryOp() BinaryOp {
	if e.Kind() != KindBinary {
		exceptions.Panicf("expr: BinaryOp on %v node", e.Kind())
	}
	return BinaryOp(e.node().op)
}

// CompareOp returns the comparison mode of a KindCompareSelect node.
func (e Expr) CompareOp() CompareOp {
	if e.Kind() != KindCompareSelect {
		exceptions.Panicf("expr: CompareOp on %v node", e.Kind())
	}
	return CompareOp(e.node().op)
}

// IntrinsicOp returns the intrinsic of a KindIntrinsic node.
func (e Expr) IntrinsicOp() Intrinsic {
	if e.Kind() != KindIntrinsic {
		exceptions.Panicf("expr: IntrinsicOp on %v node", e.Kind())
	}
	return Intrinsic(e.node().op)
}

// LoadBuffer returns the buffer read by a KindLoad node.
func (e Expr) LoadBuffer() Buffer {
	if e.Kind() != KindLoad {
		exceptions.Panicf("expr: LoadBuffer on %v node", e.Kind())
	}
	return Buffer{a: e.a, id: e.node().buf}
}
