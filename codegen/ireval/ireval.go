// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

// Package ireval implements the interpreted code generation backend: a
// direct tree-walking evaluator over the lowered statement tree. It is the
// slowest backend but has no platform requirements, and serves as the
// reference semantics the other backends are tested against.
//
// GPU-bound loops are executed as ordinary sequential loops.
package ireval

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/tensorfuse/tensorfuse/codegen"
	"github.com/tensorfuse/tensorfuse/expr"
)

// Name under which this backend registers itself.
const Name = "ireval"

func init() {
	codegen.Register(Name, newEvaluator)
}

// The evaluator snapshots the statement tree into plain index-linked nodes
// at construction, so the source arena can be finalized afterwards.

type xnode struct {
	kind    expr.ExprKind
	isFloat bool
	binOp   expr.BinaryOp
	cmpOp   expr.CompareOp
	intrOp  expr.Intrinsic
	args    []int
	ival    int32
	fval    float32
	slot    int // Var slot for KindVar, buffer slot for KindLoad.
	name    string
}

type snode struct {
	kind     expr.StmtKind
	children []int // Block children, or single For/If body.
	loopSlot int   // Var slot of the loop variable.
	extent   int   // Expr index.
	cond     int
	bufSlot  int
	index    int
	value    int
}

type value struct {
	i int32
	f float32
}

type evaluator struct {
	name   string
	exprs  []xnode
	stmts  []snode
	root   int
	params []paramBinding

	numVarSlots int
	bufFloat    []bool // Per buffer slot, whether the element type is Float32.
}

type paramBinding struct {
	isBuffer bool
	isFloat  bool
	slot     int
	name     string
}

type frame struct {
	vars    []value
	f32bufs [][]float32
	i32bufs [][]int32
}

type snapshotter struct {
	ev       *evaluator
	exprMemo map[expr.Expr]int
	varSlots map[expr.Expr]int
	bufSlots map[expr.Buffer]int
}

func newEvaluator(kernelName string, stmt expr.Stmt, params []codegen.Param) (codegen.CodeGen, error) {
	ev := &evaluator{name: kernelName}
	sn := &snapshotter{
		ev:       ev,
		exprMemo: map[expr.Expr]int{},
		varSlots: map[expr.Expr]int{},
		bufSlots: map[expr.Buffer]int{},
	}
	for _, p := range params {
		if p.Kind == codegen.ParamBuffer {
			if _, dup := sn.bufSlots[p.Buffer]; dup {
				return nil, errors.Errorf("buffer %q bound to two parameters", p.Buffer.Name())
			}
			slot := len(sn.bufSlots)
			sn.bufSlots[p.Buffer] = slot
			isFloat := p.Buffer.DType() == dtypes.Float32
			ev.bufFloat = append(ev.bufFloat, isFloat)
			ev.params = append(ev.params, paramBinding{
				isBuffer: true,
				isFloat:  isFloat,
				slot:     slot,
				name:     p.Buffer.Name(),
			})
		} else {
			if _, dup := sn.varSlots[p.Var]; dup {
				return nil, errors.Errorf("variable %q bound to two parameters", p.Var.Name())
			}
			slot := len(sn.varSlots)
			sn.varSlots[p.Var] = slot
			ev.params = append(ev.params, paramBinding{
				isFloat: p.Var.DType() == dtypes.Float32,
				slot:    slot,
				name:    p.Var.Name(),
			})
		}
	}
	ev.root = sn.stmt(stmt)
	ev.numVarSlots = len(sn.varSlots)
	klog.V(1).Infof("ireval: kernel %q snapshotted, %d exprs, %d stmts, %d vars, %d buffers",
		kernelName, len(ev.exprs), len(ev.stmts), ev.numVarSlots, len(ev.bufFloat))
	return ev, nil
}

func (sn *snapshotter) varSlot(v expr.Expr) int {
	if slot, found := sn.varSlots[v]; found {
		return slot
	}
	slot := len(sn.varSlots)
	sn.varSlots[v] = slot
	return slot
}

func (sn *snapshotter) expr(e expr.Expr) int {
	if idx, found := sn.exprMemo[e]; found {
		return idx
	}
	n := xnode{kind: e.Kind(), isFloat: e.DType() == dtypes.Float32}
	switch e.Kind() {
	case expr.KindIntImm:
		n.ival = e.IntImmValue()
	case expr.KindFloatImm:
		n.fval = e.FloatImmValue()
	case expr.KindVar:
		n.slot = sn.varSlot(e)
		n.name = e.Name()
	case expr.KindBinary:
		n.binOp = e.BinaryOp()
	case expr.KindCompareSelect:
		n.cmpOp = e.CompareOp()
	case expr.KindIntrinsic:
		n.intrOp = e.IntrinsicOp()
	case expr.KindLoad:
		buf := e.LoadBuffer()
		slot, found := sn.bufSlots[buf]
		if !found {
			exceptions.Panicf("ireval: load from buffer %q which is not a kernel parameter", buf.Name())
		}
		n.slot = slot
		n.name = buf.Name()
	}
	for _, arg := range e.Args() {
		n.args = append(n.args, sn.expr(arg))
	}
	sn.ev.exprs = append(sn.ev.exprs, n)
	idx := len(sn.ev.exprs) - 1
	sn.exprMemo[e] = idx
	return idx
}

func (sn *snapshotter) stmt(s expr.Stmt) int {
	n := snode{kind: s.Kind()}
	switch s.Kind() {
	case expr.StmtBlock:
		for _, child := range s.Body() {
			n.children = append(n.children, sn.stmt(child))
		}
	case expr.StmtFor:
		n.loopSlot = sn.varSlot(s.LoopVar())
		n.extent = sn.expr(s.LoopExtent())
		n.children = []int{sn.stmt(s.LoopBody())}
	case expr.StmtIf:
		n.cond = sn.expr(s.IfCond())
		n.children = []int{sn.stmt(s.IfBody())}
	case expr.StmtStore:
		buf := s.StoreBuffer()
		slot, found := sn.bufSlots[buf]
		if !found {
			exceptions.Panicf("ireval: store to buffer %q which is not a kernel parameter", buf.Name())
		}
		n.bufSlot = slot
		n.index = sn.expr(s.StoreIndex())
		n.value = sn.expr(s.StoreValue())
	default:
		exceptions.Panicf("ireval: unhandled statement kind %d", s.Kind())
	}
	sn.ev.stmts = append(sn.ev.stmts, n)
	return len(sn.ev.stmts) - 1
}

// Name implements codegen.CodeGen.
func (ev *evaluator) Name() string { return Name }

// Call implements codegen.CodeGen.
func (ev *evaluator) Call(args []codegen.CallArg) {
	if len(args) != len(ev.params) {
		exceptions.Panicf("ireval: kernel %q called with %d arguments, wants %d",
			ev.name, len(args), len(ev.params))
	}
	f := &frame{
		vars:    make([]value, ev.numVarSlots),
		f32bufs: make([][]float32, len(ev.bufFloat)),
		i32bufs: make([][]int32, len(ev.bufFloat)),
	}
	for i, p := range ev.params {
		arg := args[i]
		switch {
		case p.isBuffer && p.isFloat:
			if arg.Kind != codegen.ArgFloat32s {
				exceptions.Panicf("ireval: argument %d (%s) must be a float32 buffer", i, p.name)
			}
			f.f32bufs[p.slot] = arg.Float32s
		case p.isBuffer:
			if arg.Kind != codegen.ArgInt32s {
				exceptions.Panicf("ireval: argument %d (%s) must be an int32 buffer", i, p.name)
			}
			f.i32bufs[p.slot] = arg.Int32s
		case p.isFloat:
			if arg.Kind != codegen.ArgF32 {
				exceptions.Panicf("ireval: argument %d (%s) must be a float32 scalar", i, p.name)
			}
			f.vars[p.slot] = value{f: arg.F32}
		default:
			if arg.Kind != codegen.ArgI32 {
				exceptions.Panicf("ireval: argument %d (%s) must be an int32 scalar", i, p.name)
			}
			f.vars[p.slot] = value{i: arg.I32}
		}
	}
	ev.run(f, ev.root)
}

func (ev *evaluator) run(f *frame, id int) {
	s := &ev.stmts[id]
	switch s.kind {
	case expr.StmtBlock:
		for _, child := range s.children {
			ev.run(f, child)
		}
	case expr.StmtFor:
		extent := ev.eval(f, s.extent).i
		body := s.children[0]
		for v := int32(0); v < extent; v++ {
			f.vars[s.loopSlot] = value{i: v}
			ev.run(f, body)
		}
	case expr.StmtIf:
		if ev.eval(f, s.cond).i != 0 {
			ev.run(f, s.children[0])
		}
	case expr.StmtStore:
		idx := ev.eval(f, s.index).i
		v := ev.eval(f, s.value)
		if ev.bufFloat[s.bufSlot] {
			f.f32bufs[s.bufSlot][idx] = v.f
		} else {
			f.i32bufs[s.bufSlot][idx] = v.i
		}
	}
}

func (ev *evaluator) eval(f *frame, id int) value {
	n := &ev.exprs[id]
	switch n.kind {
	case expr.KindIntImm:
		return value{i: n.ival}
	case expr.KindFloatImm:
		return value{f: n.fval}
	case expr.KindVar:
		return f.vars[n.slot]
	case expr.KindBinary:
		return ev.evalBinary(f, n)
	case expr.KindCompareSelect:
		lhs, rhs := ev.eval(f, n.args[0]), ev.eval(f, n.args[1])
		var hit bool
		if ev.exprs[n.args[0]].isFloat {
			hit = compareF32(n.cmpOp, lhs.f, rhs.f)
		} else {
			hit = compareI32(n.cmpOp, lhs.i, rhs.i)
		}
		if hit {
			return ev.eval(f, n.args[2])
		}
		return ev.eval(f, n.args[3])
	case expr.KindIfThenElse:
		if ev.eval(f, n.args[0]).i != 0 {
			return ev.eval(f, n.args[1])
		}
		return ev.eval(f, n.args[2])
	case expr.KindCast:
		v := ev.eval(f, n.args[0])
		if n.isFloat {
			if ev.exprs[n.args[0]].isFloat {
				return v
			}
			return value{f: float32(v.i)}
		}
		if ev.exprs[n.args[0]].isFloat {
			return value{i: int32(v.f)} // Truncates toward zero.
		}
		return v
	case expr.KindIntrinsic:
		return ev.evalIntrinsic(f, n)
	case expr.KindLoad:
		idx := ev.eval(f, n.args[0]).i
		if ev.bufFloat[n.slot] {
			return value{f: f.f32bufs[n.slot][idx]}
		}
		return value{i: f.i32bufs[n.slot][idx]}
	}
	exceptions.Panicf("ireval: unhandled expression kind %d", n.kind)
	return value{}
}

func compareF32(op expr.CompareOp, a, b float32) bool {
	switch op {
	case expr.CmpEQ:
		return a == b
	case expr.CmpNE:
		return a != b
	case expr.CmpGE:
		return a >= b
	case expr.CmpGT:
		return a > b
	case expr.CmpLE:
		return a <= b
	case expr.CmpLT:
		return a < b
	}
	exceptions.Panicf("ireval: unhandled compare op %d", op)
	return false
}

func compareI32(op expr.CompareOp, a, b int32) bool {
	switch op {
	case expr.CmpEQ:
		return a == b
	case expr.CmpNE:
		return a != b
	case expr.CmpGE:
		return a >= b
	case expr.CmpGT:
		return a > b
	case expr.CmpLE:
		return a <= b
	case expr.CmpLT:
		return a < b
	}
	exceptions.Panicf("ireval: unhandled compare op %d", op)
	return false
}

func (ev *evaluator) evalBinary(f *frame, n *xnode) value {
	lhs, rhs := ev.eval(f, n.args[0]), ev.eval(f, n.args[1])
	if n.isFloat {
		a, b := lhs.f, rhs.f
		switch n.binOp {
		case expr.OpAdd:
			return value{f: a + b}
		case expr.OpSub:
			return value{f: a - b}
		case expr.OpMul:
			return value{f: a * b}
		case expr.OpDiv:
			return value{f: a / b}
		case expr.OpMod:
			return value{f: float32(math.Mod(float64(a), float64(b)))}
		case expr.OpMin:
			return value{f: float32(math.Min(float64(a), float64(b)))}
		case expr.OpMax:
			return value{f: float32(math.Max(float64(a), float64(b)))}
		}
	} else {
		a, b := lhs.i, rhs.i
		switch n.binOp {
		case expr.OpAdd:
			return value{i: a + b}
		case expr.OpSub:
			return value{i: a - b}
		case expr.OpMul:
			return value{i: a * b}
		case expr.OpDiv:
			return value{i: a / b}
		case expr.OpMod:
			return value{i: a % b}
		case expr.OpMin:
			return value{i: min(a, b)}
		case expr.OpMax:
			return value{i: max(a, b)}
		}
	}
	exceptions.Panicf("ireval: unhandled binary op %d", n.binOp)
	return value{}
}

func (ev *evaluator) evalIntrinsic(f *frame, n *xnode) value {
	x := float64(ev.eval(f, n.args[0]).f)
	if n.intrOp.Arity() == 2 {
		y := float64(ev.eval(f, n.args[1]).f)
		var r float64
		switch n.intrOp {
		case expr.IntrPow:
			r = math.Pow(x, y)
		case expr.IntrAtan2:
			r = math.Atan2(x, y)
		case expr.IntrFmod:
			r = math.Mod(x, y)
		default:
			exceptions.Panicf("ireval: unhandled intrinsic %s", n.intrOp.Name())
		}
		return value{f: float32(r)}
	}
	var r float64
	switch n.intrOp {
	case expr.IntrSqrt:
		r = math.Sqrt(x)
	case expr.IntrRsqrt:
		r = 1 / math.Sqrt(x)
	case expr.IntrExp:
		r = math.Exp(x)
	case expr.IntrExpm1:
		r = math.Expm1(x)
	case expr.IntrLog:
		r = math.Log(x)
	case expr.IntrLog2:
		r = math.Log2(x)
	case expr.IntrLog10:
		r = math.Log10(x)
	case expr.IntrSin:
		r = math.Sin(x)
	case expr.IntrCos:
		r = math.Cos(x)
	case expr.IntrTan:
		r = math.Tan(x)
	case expr.IntrAsin:
		r = math.Asin(x)
	case expr.IntrAcos:
		r = math.Acos(x)
	case expr.IntrAtan:
		r = math.Atan(x)
	case expr.IntrSinh:
		r = math.Sinh(x)
	case expr.IntrCosh:
		r = math.Cosh(x)
	case expr.IntrTanh:
		r = math.Tanh(x)
	case expr.IntrErf:
		r = math.Erf(x)
	case expr.IntrErfc:
		r = math.Erfc(x)
	case expr.IntrAbs:
		r = math.Abs(x)
	case expr.IntrCeil:
		r = math.Ceil(x)
	case expr.IntrFloor:
		r = math.Floor(x)
	case expr.IntrRound:
		r = math.RoundToEven(x)
	case expr.IntrTrunc:
		r = math.Trunc(x)
	case expr.IntrLgamma:
		r, _ = math.Lgamma(x)
	default:
		exceptions.Panicf("ireval: unhandled intrinsic %s", n.intrOp.Name())
	}
	return value{f: float32(r)}
}

var _ codegen.CodeGen = (*evaluator)(nil)
