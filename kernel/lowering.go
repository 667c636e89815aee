// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/tensorfuse/tensorfuse/expr"
	"github.com/tensorfuse/tensorfuse/graph"
)

// lowerCtx carries the per-compilation lowering state: the arena and the
// symbolic tensor or scalar expression produced so far for each graph value.
type lowerCtx struct {
	a       *expr.Arena
	tensors map[*graph.Value]*expr.Tensor
	scalars map[*graph.Value]expr.Expr
}

// lowerFunc lowers one graph node, recording a symbolic tensor for each of
// its used outputs in the context.
type lowerFunc func(ctx *lowerCtx, n *graph.Node)

// template builds the per-element scalar expression of a generic
// elementwise operator from its (already promoted) operand expressions.
type template func(a *expr.Arena, args []expr.Expr) expr.Expr

// lowerings dispatches on operator identity. Populated in init; coverage
// extensions register here instead of growing a central switch.
var lowerings = map[graph.OpKind]lowerFunc{}

// Unary operators that lower to a float intrinsic over the cast operand.
var intrinsicFor = map[graph.OpKind]expr.Intrinsic{
	graph.OpLog:    expr.IntrLog,
	graph.OpLog10:  expr.IntrLog10,
	graph.OpLog2:   expr.IntrLog2,
	graph.OpExp:    expr.IntrExp,
	graph.OpExpm1:  expr.IntrExpm1,
	graph.OpErf:    expr.IntrErf,
	graph.OpErfc:   expr.IntrErfc,
	graph.OpCos:    expr.IntrCos,
	graph.OpSin:    expr.IntrSin,
	graph.OpTan:    expr.IntrTan,
	graph.OpAcos:   expr.IntrAcos,
	graph.OpAsin:   expr.IntrAsin,
	graph.OpAtan:   expr.IntrAtan,
	graph.OpCosh:   expr.IntrCosh,
	graph.OpSinh:   expr.IntrSinh,
	graph.OpTanh:   expr.IntrTanh,
	graph.OpSqrt:   expr.IntrSqrt,
	graph.OpRsqrt:  expr.IntrRsqrt,
	graph.OpAbs:    expr.IntrAbs,
	graph.OpCeil:   expr.IntrCeil,
	graph.OpFloor:  expr.IntrFloor,
	graph.OpRound:  expr.IntrRound,
	graph.OpTrunc:  expr.IntrTrunc,
	graph.OpLgamma: expr.IntrLgamma,
}

var compareFor = map[graph.OpKind]expr.CompareOp{
	graph.OpEq: expr.CmpEQ,
	graph.OpNe: expr.CmpNE,
	graph.OpGe: expr.CmpGE,
	graph.OpGt: expr.CmpGT,
	graph.OpLe: expr.CmpLE,
	graph.OpLt: expr.CmpLT,
}

func init() {
	for kind, intr := range intrinsicFor {
		intr := intr
		lowerings[kind] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
			return a.Intrinsic(intr, toFloat(a, args[0]))
		})
	}
	for kind, cmp := range compareFor {
		cmp := cmp
		lowerings[kind] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
			return a.CompareSelect(args[0], args[1],
				immOf(a, args[0].DType(), 1), immOf(a, args[0].DType(), 0), cmp)
		})
	}

	// lhs op alpha*rhs, the trailing blend-weight form.
	lowerings[graph.OpAdd] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return args[0].Add(args[2].Mul(args[1]))
	})
	lowerings[graph.OpSub] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return args[0].Sub(args[2].Mul(args[1]))
	})

	lowerings[graph.OpMul] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return args[0].Mul(args[1])
	})
	lowerings[graph.OpDiv] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return args[0].Div(args[1])
	})
	lowerings[graph.OpAddcmul] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return args[0].Add(args[3].Mul(args[1]).Mul(args[2]))
	})
	lowerings[graph.OpMin] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return args[0].Min(args[1])
	})
	lowerings[graph.OpMax] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return args[0].Max(args[1])
	})
	lowerings[graph.OpThreshold] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return a.CompareSelect(args[0], args[1], args[2], args[0], expr.CmpLE)
	})
	lowerings[graph.OpLerp] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return args[0].Add(args[2].Mul(args[1].Sub(args[0])))
	})
	lowerings[graph.OpSigmoid] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		x := toFloat(a, args[0])
		one := a.FloatImm(1)
		return one.Div(one.Add(a.Intrinsic(expr.IntrExp, a.FloatImm(0).Sub(x))))
	})
	lowerings[graph.OpReciprocal] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return a.FloatImm(1).Div(toFloat(a, args[0]))
	})
	lowerings[graph.OpNeg] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return immOf(a, args[0].DType(), 0).Sub(args[0])
	})
	lowerings[graph.OpRelu] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return args[0].Max(immOf(a, args[0].DType(), 0))
	})
	lowerings[graph.OpFrac] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		// x - floor(x), so the result is always in [0, 1).
		x := toFloat(a, args[0])
		return x.Sub(a.Intrinsic(expr.IntrFloor, x))
	})
	lowerings[graph.OpAtan2] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return a.Intrinsic(expr.IntrAtan2, toFloat(a, args[0]), toFloat(a, args[1]))
	})
	lowerings[graph.OpFmod] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return args[0].Mod(args[1])
	})
	lowerings[graph.OpRemainder] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return args[0].Mod(args[1]).Add(args[1]).Mod(args[1])
	})
	lowerings[graph.OpPow] = nary(lowerPow)
	lowerings[graph.OpSigmoidBackward] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		grad, out := args[0], args[1]
		return grad.Mul(out).Mul(immOf(a, out.DType(), 1).Sub(out))
	})
	lowerings[graph.OpTanhBackward] = nary(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		grad, out := args[0], args[1]
		return grad.Mul(immOf(a, out.DType(), 1).Sub(out.Mul(out)))
	})

	// Casts run on the raw operands, promotion would defeat them.
	lowerings[graph.OpCastFloat] = naryRaw(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return a.Cast(dtypes.Float32, args[0])
	})
	lowerings[graph.OpTypeAs] = naryRaw(func(a *expr.Arena, args []expr.Expr) expr.Expr {
		return a.Cast(args[1].DType(), args[0])
	})

	lowerings[graph.OpClamp] = lowerClamp
	lowerings[graph.OpCat] = lowerCat
	lowerings[graph.OpSlice] = lowerSlice
	lowerings[graph.OpUnsqueeze] = lowerUnsqueeze
	lowerings[graph.OpConstantChunk] = lowerChunk
}

// nary wraps a template in the generic elementwise combinator, with integer
// operands promoted to float when any operand is float.
func nary(t template) lowerFunc {
	return func(ctx *lowerCtx, n *graph.Node) {
		ctx.lowerNary(n, n.Inputs(), true, t)
	}
}

// naryRaw is nary without type promotion.
func naryRaw(t template) lowerFunc {
	return func(ctx *lowerCtx, n *graph.Node) {
		ctx.lowerNary(n, n.Inputs(), false, t)
	}
}

// lowerNary is the single generic combinator behind every elementwise
// operator: broadcast the operand shapes, read each operand at the
// broadcast-adjusted indices, promote, apply the template, and demote to
// the declared output type.
func (ctx *lowerCtx) lowerNary(n *graph.Node, operands []*graph.Value, promote bool, t template) {
	out := n.Outputs()[0]
	shapes := make([][]expr.Expr, len(operands))
	for i, v := range operands {
		shapes[i] = ctx.shapeOf(v)
	}
	outShape := broadcastShapes(shapes)
	ctx.tensors[out] = ctx.a.Compute(tensorName(out), expr.DimArgsFromExprs(outShape),
		func(axes []expr.Expr) expr.Expr {
			args := make([]expr.Expr, len(operands))
			for i, v := range operands {
				args[i] = ctx.operandExpr(v, axes)
			}
			if promote {
				promoteToFloat(ctx.a, args)
			}
			return demote(ctx.a, t(ctx.a, args), declaredDType(out))
		})
}

// shapeOf returns a value's symbolic shape; values with no symbolic tensor
// (bare scalars, constants) are treated as shape [1].
func (ctx *lowerCtx) shapeOf(v *graph.Value) []expr.Expr {
	if t, found := ctx.tensors[v]; found {
		return t.Dims()
	}
	return []expr.Expr{ctx.a.IntImm(1)}
}

// operandExpr reads one operand at the broadcast-adjusted axis indices:
// shapes align at the trailing dimension, and an axis of constant extent 1
// is pinned to index 0 regardless of the output's axis variable.
func (ctx *lowerCtx) operandExpr(v *graph.Value, axes []expr.Expr) expr.Expr {
	if t, found := ctx.tensors[v]; found {
		indices := make([]expr.Expr, t.Rank())
		for j := 0; j < t.Rank(); j++ {
			if t.Dim(j).IsIntImm(1) {
				indices[j] = ctx.a.IntImm(0)
				continue
			}
			indices[j] = axes[len(axes)-t.Rank()+j]
		}
		return t.Call(indices)
	}
	if s, found := ctx.scalars[v]; found {
		return s
	}
	if p := v.Producer(); p != nil && p.Kind() == graph.OpConstant {
		exceptions.Panicf("kernel: unhandled datatype in constant %s", p.Literal())
	}
	exceptions.Panicf("kernel: no lowering produced a value for %q", v.Name())
	return expr.Expr{}
}

// broadcastShapes applies the trailing-aligned elementwise broadcast rule.
// Two non-1 dimensions at the same position are assumed compatible without
// a runtime check; validation is the upstream graph producer's job.
func broadcastShapes(shapes [][]expr.Expr) []expr.Expr {
	rank := 0
	for _, s := range shapes {
		if len(s) > rank {
			rank = len(s)
		}
	}
	out := make([]expr.Expr, rank)
	for pos := 1; pos <= rank; pos++ {
		var dim expr.Expr
		for _, s := range shapes {
			if pos > len(s) {
				continue
			}
			d := s[len(s)-pos]
			if !dim.Valid() || dim.IsIntImm(1) {
				dim = d
			}
		}
		out[rank-pos] = dim
	}
	return out
}

// promoteToFloat casts every integer operand to float when at least one
// operand is already float.
func promoteToFloat(a *expr.Arena, args []expr.Expr) {
	anyFloat := false
	for _, arg := range args {
		if arg.DType() == dtypes.Float32 {
			anyFloat = true
			break
		}
	}
	if !anyFloat {
		return
	}
	for i, arg := range args {
		if arg.DType() == dtypes.Int32 {
			args[i] = a.Cast(dtypes.Float32, arg)
		}
	}
}

// demote truncates a float result back to integer when the graph declares
// the output as integer-typed.
func demote(a *expr.Arena, e expr.Expr, declared dtypes.DType) expr.Expr {
	if declared == dtypes.Int32 && e.DType() == dtypes.Float32 {
		return a.Cast(dtypes.Int32, e)
	}
	return e
}

func toFloat(a *expr.Arena, e expr.Expr) expr.Expr {
	return a.Cast(dtypes.Float32, e)
}

func immOf(a *expr.Arena, dtype dtypes.DType, v int32) expr.Expr {
	if dtype == dtypes.Float32 {
		return a.FloatImm(float32(v))
	}
	return a.IntImm(v)
}

func declaredDType(v *graph.Value) dtypes.DType {
	switch t := v.Type().(type) {
	case graph.TensorType:
		return t.DType
	case graph.ScalarType:
		return t.DType
	}
	exceptions.Panicf("kernel: value %q has no declared numeric type", v.Name())
	return dtypes.InvalidDType
}

func tensorName(v *graph.Value) string {
	return strings.ReplaceAll(v.Name(), ".", "_")
}

// lowerPow strength-reduces literal exponents. The non-cast float-literal
// cases are checked before the cast-from-int-literal cases; anything else
// falls back to the pow intrinsic.
func lowerPow(a *expr.Arena, args []expr.Expr) expr.Expr {
	x, y := args[0], args[1]
	if y.Kind() == expr.KindFloatImm {
		switch y.FloatImmValue() {
		case 1:
			return x
		case 2:
			return x.Mul(x)
		case 3:
			return x.Mul(x).Mul(x)
		case 4:
			s := x.Mul(x)
			return s.Mul(s)
		case 0.5:
			return a.Intrinsic(expr.IntrSqrt, x)
		case 0:
			return a.FloatImm(1)
		case -0.5:
			return a.Intrinsic(expr.IntrRsqrt, x)
		case -1:
			return a.FloatImm(1).Div(x)
		case -2:
			return a.FloatImm(1).Div(x.Mul(x))
		}
	} else if y.Kind() == expr.KindCast && y.Arg(0).Kind() == expr.KindIntImm {
		switch y.Arg(0).IntImmValue() {
		case 1:
			return x
		case 2:
			return x.Mul(x)
		case 3:
			return x.Mul(x).Mul(x)
		case 4:
			s := x.Mul(x)
			return s.Mul(s)
		case 0:
			return a.FloatImm(1)
		case -1:
			return a.FloatImm(1).Div(x)
		case -2:
			return a.FloatImm(1).Div(x.Mul(x))
		}
	}
	return a.Intrinsic(expr.IntrPow, toFloat(a, x), toFloat(a, y))
}

// isNone reports whether a value is the typed "absent" constant marker.
func isNone(v *graph.Value) bool {
	p := v.Producer()
	return p != nil && p.Kind() == graph.OpConstant && p.Literal().Kind == graph.LiteralNone
}

// lowerClamp specializes on which bounds are present. The check is a
// compile-time structural inspection of the node's literal operands, not a
// runtime branch.
func lowerClamp(ctx *lowerCtx, n *graph.Node) {
	x, lo, hi := n.Input(0), n.Input(1), n.Input(2)
	noMin, noMax := isNone(lo), isNone(hi)
	switch {
	case noMin && noMax:
		ctx.lowerNary(n, []*graph.Value{x}, true, func(a *expr.Arena, args []expr.Expr) expr.Expr {
			return args[0]
		})
	case noMin:
		ctx.lowerNary(n, []*graph.Value{x, hi}, true, func(a *expr.Arena, args []expr.Expr) expr.Expr {
			return args[0].Min(args[1])
		})
	case noMax:
		ctx.lowerNary(n, []*graph.Value{x, lo}, true, func(a *expr.Arena, args []expr.Expr) expr.Expr {
			return args[0].Max(args[1])
		})
	default:
		ctx.lowerNary(n, []*graph.Value{x, lo, hi}, true, func(a *expr.Arena, args []expr.Expr) expr.Expr {
			return args[0].Max(args[1]).Min(args[2])
		})
	}
}

// tensorOf returns the symbolic tensor of a value that must be tensor-valued.
func (ctx *lowerCtx) tensorOf(v *graph.Value) *expr.Tensor {
	t, found := ctx.tensors[v]
	if !found {
		exceptions.Panicf("kernel: operand %q must be a tensor", v.Name())
	}
	return t
}

// intLiteral extracts an integer constant operand.
func intLiteral(v *graph.Value) int {
	p := v.Producer()
	if p == nil || p.Kind() != graph.OpConstant || p.Literal().Kind != graph.LiteralInt {
		exceptions.Panicf("kernel: unhandled datatype for operand %q, want integer constant", v.Name())
	}
	return int(p.Literal().I)
}

// intLiteralOr is intLiteral with a default for the none marker.
func intLiteralOr(v *graph.Value, def int) int {
	if isNone(v) {
		return def
	}
	return intLiteral(v)
}

// lowerCat concatenates the tensors of a ListConstruct operand along an
// axis: a chain of conditional selects keyed on the running cumulative
// offset, each segment read at the output index minus the offset of all
// prior segments.
func lowerCat(ctx *lowerCtx, n *graph.Node) {
	a := ctx.a
	list := n.Input(0).Producer()
	if list == nil || list.Kind() != graph.OpListConstruct {
		exceptions.Panicf("kernel: cat expects a list-construct operand, got %q", n.Input(0).Name())
	}
	segs := make([]*expr.Tensor, len(list.Inputs()))
	anyFloat := false
	for i, v := range list.Inputs() {
		segs[i] = ctx.tensorOf(v)
		anyFloat = anyFloat || segs[i].DType() == dtypes.Float32
	}
	if len(segs) == 0 {
		exceptions.Panicf("kernel: cat with no inputs")
	}
	rank := segs[0].Rank()
	dim := intLiteral(n.Input(1))
	if dim < 0 {
		dim += rank
	}

	outDims := make([]expr.Expr, rank)
	copy(outDims, segs[0].Dims())
	total := segs[0].Dim(dim)
	for _, seg := range segs[1:] {
		total = total.Add(seg.Dim(dim))
	}
	outDims[dim] = total

	read := func(seg *expr.Tensor, axes []expr.Expr, offset expr.Expr) expr.Expr {
		indices := make([]expr.Expr, rank)
		copy(indices, axes)
		indices[dim] = axes[dim].Sub(offset)
		e := seg.Call(indices)
		if anyFloat && e.DType() == dtypes.Int32 {
			e = a.Cast(dtypes.Float32, e)
		}
		return e
	}

	out := n.Outputs()[0]
	ctx.tensors[out] = a.Compute(tensorName(out), expr.DimArgsFromExprs(outDims),
		func(axes []expr.Expr) expr.Expr {
			result := read(segs[0], axes, a.IntImm(0))
			offset := segs[0].Dim(dim)
			for _, seg := range segs[1:] {
				inPrior := a.CompareSelect(axes[dim], offset, a.IntImm(1), a.IntImm(0), expr.CmpLT)
				result = a.IfThenElse(inPrior, result, read(seg, axes, offset))
				offset = offset.Add(seg.Dim(dim))
			}
			return demote(a, result, declaredDType(out))
		})
}

// lowerSlice reads the input at axes[dim]*step + start; the output extent
// along the sliced axis comes from the node's declared type.
func lowerSlice(ctx *lowerCtx, n *graph.Node) {
	a := ctx.a
	in := ctx.tensorOf(n.Input(0))
	dim := intLiteral(n.Input(1))
	if dim < 0 {
		dim += in.Rank()
	}
	start := intLiteralOr(n.Input(2), 0)
	// Input 3 is the end bound; it only shapes the declared output type.
	step := intLiteralOr(n.Input(4), 1)

	out := n.Outputs()[0]
	typ, ok := out.Type().(graph.TensorType)
	if !ok {
		exceptions.Panicf("kernel: slice output %q must declare a tensor type", out.Name())
	}
	outDims := make([]expr.Expr, in.Rank())
	copy(outDims, in.Dims())
	if typ.Sizes[dim] < 0 {
		exceptions.Panicf("kernel: slice along a dynamic dimension is not supported")
	}
	outDims[dim] = a.IntImm(int32(typ.Sizes[dim]))

	ctx.tensors[out] = a.Compute(tensorName(out), expr.DimArgsFromExprs(outDims),
		func(axes []expr.Expr) expr.Expr {
			indices := make([]expr.Expr, in.Rank())
			copy(indices, axes)
			indices[dim] = axes[dim].Mul(a.IntImm(int32(step))).Add(a.IntImm(int32(start)))
			return in.Call(indices)
		})
}

// lowerUnsqueeze inserts a size-1 axis; the element read simply erases it.
func lowerUnsqueeze(ctx *lowerCtx, n *graph.Node) {
	a := ctx.a
	in := ctx.tensorOf(n.Input(0))
	dim := intLiteral(n.Input(1))
	if dim < 0 {
		dim += in.Rank() + 1
	}

	outDims := make([]expr.Expr, 0, in.Rank()+1)
	outDims = append(outDims, in.Dims()[:dim]...)
	outDims = append(outDims, a.IntImm(1))
	outDims = append(outDims, in.Dims()[dim:]...)

	out := n.Outputs()[0]
	ctx.tensors[out] = a.Compute(tensorName(out), expr.DimArgsFromExprs(outDims),
		func(axes []expr.Expr) expr.Expr {
			indices := make([]expr.Expr, 0, in.Rank())
			indices = append(indices, axes[:dim]...)
			indices = append(indices, axes[dim+1:]...)
			return in.Call(indices)
		})
}

// lowerChunk splits the input into equal parts along an axis, one symbolic
// tensor per output value, each reading at axes[dim] + outputIndex*chunkSize.
func lowerChunk(ctx *lowerCtx, n *graph.Node) {
	a := ctx.a
	in := ctx.tensorOf(n.Input(0))
	dim := n.ChunkDim()
	if dim < 0 {
		dim += in.Rank()
	}
	if in.Dim(dim).Kind() != expr.KindIntImm {
		exceptions.Panicf("kernel: chunk along a dynamic dimension is not supported")
	}
	chunkSize := in.Dim(dim).IntImmValue() / int32(n.ChunkChunks())

	outDims := make([]expr.Expr, in.Rank())
	copy(outDims, in.Dims())
	outDims[dim] = a.IntImm(chunkSize)

	for _, out := range n.Outputs() {
		if !out.HasUses() {
			continue
		}
		offset := a.IntImm(int32(out.OutputIndex()) * chunkSize)
		ctx.tensors[out] = a.Compute(tensorName(out), expr.DimArgsFromExprs(outDims),
			func(axes []expr.Expr) expr.Expr {
				indices := make([]expr.Expr, in.Rank())
				copy(indices, axes)
				indices[dim] = axes[dim].Add(offset)
				return in.Call(indices)
			})
	}
}
