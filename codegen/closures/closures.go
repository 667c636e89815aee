// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

// Package closures implements the native CPU code generation backend. At
// construction it compiles the lowered statement tree into a graph of Go
// closures, one per expression node, so that kernel execution pays no
// dispatch on kinds or operators. It evaluates identically to the
// interpreted backend, only faster.
//
// Like every CPU backend, GPU-bound loops run as sequential loops.
package closures

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
const Name = "closures"

func init() {
	codegen.Register(Name, newProgram)
}

type frame struct {
	ivars   []int32
	fvars   []float32
	f32bufs [][]float32
	i32bufs [][]int32
}

type iFn func(*frame) int32
type fFn func(*frame) float32
type stmtFn func(*frame)

type program struct {
	name    string
	run     stmtFn
	params  []paramBinding
	numIVar int
	numFVar int
	numBuf  int
}

type paramBinding struct {
	isBuffer bool
	isFloat  bool
	slot     int
	name     string
}

type compiler struct {
	iMemo    map[expr.Expr]iFn
	fMemo    map[expr.Expr]fFn
	iSlots   map[expr.Expr]int
	fSlots   map[expr.Expr]int
	bufSlots map[expr.Buffer]int
	bufFloat []bool
}

func newProgram(kernelName string, stmt expr.Stmt, params []codegen.Param) (codegen.CodeGen, error) {
	c := &compiler{
		iMemo:    map[expr.Expr]iFn{},
		fMemo:    map[expr.Expr]fFn{},
		iSlots:   map[expr.Expr]int{},
		fSlots:   map[expr.Expr]int{},
		bufSlots: map[expr.Buffer]int{},
	}
	p := &program{name: kernelName}
	for _, param := range params {
		if param.Kind == codegen.ParamBuffer {
			if _, dup := c.bufSlots[param.Buffer]; dup {
				return nil, errors.Errorf("buffer %q bound to two parameters", param.Buffer.Name())
			}
			slot := len(c.bufSlots)
			c.bufSlots[param.Buffer] = slot
			isFloat := param.Buffer.DType() == dtypes.Float32
			c.bufFloat = append(c.bufFloat, isFloat)
			p.params = append(p.params, paramBinding{isBuffer: true, isFloat: isFloat, slot: slot, name: param.Buffer.Name()})
		} else if param.Var.DType() == dtypes.Float32 {
			if _, dup := c.fSlots[param.Var]; dup {
				return nil, errors.Errorf("variable %q bound to two parameters", param.Var.Name())
			}
			slot := len(c.fSlots)
			c.fSlots[param.Var] = slot
			p.params = append(p.params, paramBinding{isFloat: true, slot: slot, name: param.Var.Name()})
		} else {
			if _, dup := c.iSlots[param.Var]; dup {
				return nil, errors.Errorf("variable %q bound to two parameters", param.Var.Name())
			}
			slot := len(c.iSlots)
			c.iSlots[param.Var] = slot
			p.params = append(p.params, paramBinding{slot: slot, name: param.Var.Name()})
		}
	}
	p.run = c.stmt(stmt)
	p.numIVar = len(c.iSlots)
	p.numFVar = len(c.fSlots)
	p.numBuf = len(c.bufSlots)
	klog.V(1).Infof("closures: kernel %q compiled, %d int vars, %d float vars, %d buffers",
		kernelName, p.numIVar, p.numFVar, p.numBuf)
	return p, nil
}

func (c *compiler) iSlot(v expr.Expr) int {
	if slot, found := c.iSlots[v]; found {
		return slot
	}
	slot := len(c.iSlots)
	c.iSlots[v] = slot
	return slot
}

// compileI compiles an Int32-typed expression.
func (c *compiler) compileI(e expr.Expr) iFn {
	if fn, found := c.iMemo[e]; found {
		return fn
	}
	if e.DType() != dtypes.Int32 {
		exceptions.Panicf("closures: expected Int32 expression, got %s", e.DType())
	}
	var fn iFn
	switch e.Kind() {
	case expr.KindIntImm:
		v := e.IntImmValue()
		fn = func(*frame) int32 { return v }
	case expr.KindVar:
		slot := c.iSlot(e)
		fn = func(f *frame) int32 { return f.ivars[slot] }
	case expr.KindBinary:
		lhs, rhs := c.compileI(e.Arg(0)), c.compileI(e.Arg(1))
		switch e.BinaryOp() {
		case expr.OpAdd:
			fn = func(f *frame) int32 { return lhs(f) + rhs(f) }
		case expr.OpSub:
			fn = func(f *frame) int32 { return lhs(f) - rhs(f) }
		case expr.OpMul:
			fn = func(f *frame) int32 { return lhs(f) * rhs(f) }
		case expr.OpDiv:
			fn = func(f *frame) int32 { return lhs(f) / rhs(f) }
		case expr.OpMod:
			fn = func(f *frame) int32 { return lhs(f) % rhs(f) }
		case expr.OpMin:
			fn = func(f *frame) int32 { return min(lhs(f), rhs(f)) }
		case expr.OpMax:
			fn = func(f *frame) int32 { return max(lhs(f), rhs(f)) }
		default:
			exceptions.Panicf("closures: unhandled binary op %d", e.BinaryOp())
		}
	case expr.KindCompareSelect:
		cond := c.compileCompare(e)
		ifTrue, ifFalse := c.compileI(e.Arg(2)), c.compileI(e.Arg(3))
		fn = func(f *frame) int32 {
			if cond(f) {
				return ifTrue(f)
			}
			return ifFalse(f)
		}
	case expr.KindIfThenElse:
		cond := c.compileI(e.Arg(0))
		ifTrue, ifFalse := c.compileI(e.Arg(1)), c.compileI(e.Arg(2))
		fn = func(f *frame) int32 {
			if cond(f) != 0 {
				return ifTrue(f)
			}
			return ifFalse(f)
		}
	case expr.KindCast:
		from := c.compileF(e.Arg(0)) // Same-type casts are elided at build time.
		fn = func(f *frame) int32 { return int32(from(f)) }
	case expr.KindLoad:
		slot := c.bufSlot(e.LoadBuffer())
		idx := c.compileI(e.Arg(0))
		fn = func(f *frame) int32 { return f.i32bufs[slot][idx(f)] }
	default:
		exceptions.Panicf("closures: unhandled expression kind %d", e.Kind())
	}
	c.iMemo[e] = fn
	return fn
}

// compileF compiles a Float32-typed expression.
func (c *compiler) compileF(e expr.Expr) fFn {
	if fn, found := c.fMemo[e]; found {
		return fn
	}
	if e.DType() != dtypes.Float32 {
		exceptions.Panicf("closures: expected Float32 expression, got %s", e.DType())
	}
	var fn fFn
	switch e.Kind() {
	case expr.KindFloatImm:
		v := e.FloatImmValue()
		fn = func(*frame) float32 { return v }
	case expr.KindVar:
		slot, found := c.fSlots[e]
		if !found {
			slot = len(c.fSlots)
			c.fSlots[e] = slot
		}
		fn = func(f *frame) float32 { return f.fvars[slot] }
	case expr.KindBinary:
		lhs, rhs := c.compileF(e.Arg(0)), c.compileF(e.Arg(1))
		switch e.BinaryOp() {
		case expr.OpAdd:
			fn = func(f *frame) float32 { return lhs(f) + rhs(f) }
		case expr.OpSub:
			fn = func(f *frame) float32 { return lhs(f) - rhs(f) }
		case expr.OpMul:
			fn = func(f *frame) float32 { return lhs(f) * rhs(f) }
		case expr.OpDiv:
			fn = func(f *frame) float32 { return lhs(f) / rhs(f) }
		case expr.OpMod:
			fn = func(f *frame) float32 { return float32(math.Mod(float64(lhs(f)), float64(rhs(f)))) }
		case expr.OpMin:
			fn = func(f *frame) float32 { return float32(math.Min(float64(lhs(f)), float64(rhs(f)))) }
		case expr.OpMax:
			fn = func(f *frame) float32 { return float32(math.Max(float64(lhs(f)), float64(rhs(f)))) }
		default:
			exceptions.Panicf("closures: unhandled binary op %d", e.BinaryOp())
		}
	case expr.KindCompareSelect:
		cond := c.compileCompare(e)
		ifTrue, ifFalse := c.compileF(e.Arg(2)), c.compileF(e.Arg(3))
		fn = func(f *frame) float32 {
			if cond(f) {
				return ifTrue(f)
			}
			return ifFalse(f)
		}
	case expr.KindIfThenElse:
		cond := c.compileI(e.Arg(0))
		ifTrue, ifFalse := c.compileF(e.Arg(1)), c.compileF(e.Arg(2))
		fn = func(f *frame) float32 {
			if cond(f) != 0 {
				return ifTrue(f)
			}
			return ifFalse(f)
		}
	case expr.KindCast:
		from := c.compileI(e.Arg(0))
		fn = func(f *frame) float32 { return float32(from(f)) }
	case expr.KindIntrinsic:
		fn = c.compileIntrinsic(e)
	case expr.KindLoad:
		slot := c.bufSlot(e.LoadBuffer())
		idx := c.compileI(e.Arg(0))
		fn = func(f *frame) float32 { return f.f32bufs[slot][idx(f)] }
	default:
		exceptions.Panicf("closures: unhandled expression kind %d", e.Kind())
	}
	c.fMemo[e] = fn
	return fn
}

func (c *compiler) bufSlot(b expr.Buffer) int {
	slot, found := c.bufSlots[b]
	if !found {
		exceptions.Panicf("closures: buffer %q is not a kernel parameter", b.Name())
	}
	return slot
}

func (c *compiler) compileCompare(e expr.Expr) func(*frame) bool {
	op := e.CompareOp()
	if e.Arg(0).DType() == dtypes.Float32 {
		lhs, rhs := c.compileF(e.Arg(0)), c.compileF(e.Arg(1))
		switch op {
		case expr.CmpEQ:
			return func(f *frame) bool { return lhs(f) == rhs(f) }
		case expr.CmpNE:
			return func(f *frame) bool { return lhs(f) != rhs(f) }
		case expr.CmpGT:
			return func(f *frame) bool { return lhs(f) > rhs(f) }
		case expr.CmpGE:
			return func(f *frame) bool { return lhs(f) >= rhs(f) }
		case expr.CmpLT:
			return func(f *frame) bool { return lhs(f) < rhs(f) }
		case expr.CmpLE:
			return func(f *frame) bool { return lhs(f) <= rhs(f) }
		}
	} else {
		lhs, rhs := c.compileI(e.Arg(0)), c.compileI(e.Arg(1))
		switch op {
		case expr.CmpEQ:
			return func(f *frame) bool { return lhs(f) == rhs(f) }
		case expr.CmpNE:
			return func(f *frame) bool { return lhs(f) != rhs(f) }
		case expr.CmpGT:
			return func(f *frame) bool { return lhs(f) > rhs(f) }
		case expr.CmpGE:
			return func(f *frame) bool { return lhs(f) >= rhs(f) }
		case expr.CmpLT:
			return func(f *frame) bool { return lhs(f) < rhs(f) }
		case expr.CmpLE:
			return func(f *frame) bool { return lhs(f) <= rhs(f) }
		}
	}
	exceptions.Panicf("closures: unhandled compare op %d", op)
	return nil
}

func (c *compiler) compileIntrinsic(e expr.Expr) fFn {
	x := c.compileF(e.Arg(0))
	if e.IntrinsicOp().Arity() == 2 {
		y := c.compileF(e.Arg(1))
		var op func(a, b float64) float64
		switch e.IntrinsicOp() {
		case expr.IntrPow:
			op = math.Pow
		case expr.IntrAtan2:
			op = math.Atan2
		case expr.IntrFmod:
			op = math.Mod
		default:
			exceptions.Panicf("closures: unhandled intrinsic %s", e.IntrinsicOp().Name())
		}
		return func(f *frame) float32 { return float32(op(float64(x(f)), float64(y(f)))) }
	}
	var op func(float64) float64
	switch e.IntrinsicOp() {
	case expr.IntrSqrt:
		op = math.Sqrt
	case expr.IntrRsqrt:
		op = func(v float64) float64 { return 1 / math.Sqrt(v) }
	case expr.IntrExp:
		op = math.Exp
	case expr.IntrExpm1:
		op = math.Expm1
	case expr.IntrLog:
		op = math.Log
	case expr.IntrLog2:
		op = math.Log2
	case expr.IntrLog10:
		op = math.Log10
	case expr.IntrSin:
		op = math.Sin
	case expr.IntrCos:
		op = math.Cos
	case expr.IntrTan:
		op = math.Tan
	case expr.IntrAsin:
		op = math.Asin
	case expr.IntrAcos:
		op = math.Acos
	case expr.IntrAtan:
		op = math.Atan
	case expr.IntrSinh:
		op = math.Sinh
	case expr.IntrCosh:
		op = math.Cosh
	case expr.IntrTanh:
		op = math.Tanh
	case expr.IntrErf:
		op = math.Erf
	case expr.IntrErfc:
		op = math.Erfc
	case expr.IntrAbs:
		op = math.Abs
	case expr.IntrCeil:
		op = math.Ceil
	case expr.IntrFloor:
		op = math.Floor
	case expr.IntrRound:
		op = math.RoundToEven
	case expr.IntrTrunc:
		op = math.Trunc
	case expr.IntrLgamma:
		op = func(v float64) float64 { r, _ := math.Lgamma(v); return r }
	default:
		exceptions.Panicf("closures: unhandled intrinsic %s", e.IntrinsicOp().Name())
	}
	return func(f *frame) float32 { return float32(op(float64(x(f)))) }
}

func (c *compiler) stmt(s expr.Stmt) stmtFn {
	switch s.Kind() {
	case expr.StmtBlock:
		children := s.Body()
		fns := make([]stmtFn, len(children))
		for i, child := range children {
			fns[i] = c.stmt(child)
		}
		if len(fns) == 1 {
			return fns[0]
		}
		return func(f *frame) {
			for _, fn := range fns {
				fn(f)
			}
		}
	case expr.StmtFor:
		slot := c.iSlot(s.LoopVar())
		extent := c.compileI(s.LoopExtent())
		body := c.stmt(s.LoopBody())
		return func(f *frame) {
			n := extent(f)
			for v := int32(0); v < n; v++ {
				f.ivars[slot] = v
				body(f)
			}
		}
	case expr.StmtIf:
		cond := c.compileI(s.IfCond())
		body := c.stmt(s.IfBody())
		return func(f *frame) {
			if cond(f) != 0 {
				body(f)
			}
		}
	case expr.StmtStore:
		buf := s.StoreBuffer()
		slot := c.bufSlot(buf)
		idx := c.compileI(s.StoreIndex())
		if buf.DType() == dtypes.Float32 {
			val := c.compileF(s.StoreValue())
			return func(f *frame) { f.f32bufs[slot][idx(f)] = val(f) }
		}
		val := c.compileI(s.StoreValue())
		return func(f *frame) { f.i32bufs[slot][idx(f)] = val(f) }
	}
	exceptions.Panicf("closures: unhandled statement kind %d", s.Kind())
	return nil
}

// Name implements codegen.CodeGen.
func (p *program) Name() string { return Name }

// Call implements codegen.CodeGen.
func (p *program) Call(args []codegen.CallArg) {
	if len(args) != len(p.params) {
		exceptions.Panicf("closures: kernel %q called with %d arguments, wants %d",
			p.name, len(args), len(p.params))
	}
	f := &frame{
		ivars:   make([]int32, p.numIVar),
		fvars:   make([]float32, p.numFVar),
		f32bufs: make([][]float32, p.numBuf),
		i32bufs: make([][]int32, p.numBuf),
	}
	for i, param := range p.params {
		arg := args[i]
		switch {
		case param.isBuffer && param.isFloat:
			if arg.Kind != codegen.ArgFloat32s {
				exceptions.Panicf("closures: argument %d (%s) must be a float32 buffer", i, param.name)
			}
			f.f32bufs[param.slot] = arg.Float32s
		case param.isBuffer:
			if arg.Kind != codegen.ArgInt32s {
				exceptions.Panicf("closures: argument %d (%s) must be an int32 buffer", i, param.name)
			}
			f.i32bufs[param.slot] = arg.Int32s
		case param.isFloat:
			if arg.Kind != codegen.ArgF32 {
				exceptions.Panicf("closures: argument %d (%s) must be a float32 scalar", i, param.name)
			}
			f.fvars[param.slot] = arg.F32
		default:
			if arg.Kind != codegen.ArgI32 {
				exceptions.Panicf("closures: argument %d (%s) must be an int32 scalar", i, param.name)
			}
			f.ivars[param.slot] = arg.I32
		}
	}
	p.run(f)
}

var _ codegen.CodeGen = (*program)(nil)
