// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package wgsl

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorfuse/tensorfuse/codegen"
	"github.com/tensorfuse/tensorfuse/expr"
)

// tiledKernel is a [10] elementwise nest split by 4 and bound to the GPU
// axes, with one float scalar parameter.
func tiledKernel(a *expr.Arena) (expr.Stmt, []codegen.Param) {
	src := a.NewBuffer("src", dtypes.Float32)
	dst := a.NewBuffer("dst", dtypes.Float32)
	scale := a.Var("scale", dtypes.Float32)
	tsr := a.Compute("dst", []expr.DimArg{{Dim: a.IntImm(10), Name: "i"}},
		func(axes []expr.Expr) expr.Expr {
			return a.Load(src, axes[0]).Mul(scale)
		})
	s := expr.NewSchedule(a, []*expr.Tensor{tsr}, []expr.Buffer{dst})
	outer, inner := s.SplitWithMask(0, 0, 4)
	s.BindGPU(0, outer, inner)
	params := []codegen.Param{
		codegen.BufferParam(src),
		codegen.VarParam(scale),
		codegen.BufferParam(dst),
	}
	return s.Lower(), params
}

func TestSourceStructure(t *testing.T) {
	a := expr.NewArena()
	stmt, params := tiledKernel(a)
	source, err := Source("scale10", stmt, params)
	require.NoError(t, err)

	// Buffers bind in parameter order; only the stored one is writable.
	assert.Contains(t, source, "@group(0) @binding(0) var<storage, read> src: array<f32>;")
	assert.Contains(t, source, "@group(0) @binding(1) var<storage, read_write> dst: array<f32>;")
	// Scalars travel in one uniform struct after the buffers.
	assert.Contains(t, source, "struct Params {")
	assert.Contains(t, source, "scale: f32,")
	assert.Contains(t, source, "@group(0) @binding(2) var<uniform> params: Params;")
	assert.Contains(t, source, "params.scale")

	// The thread-bound extent becomes the workgroup size.
	assert.Contains(t, source, "@compute @workgroup_size(4)")
	assert.Contains(t, source, "i32(workgroup_id.x)")
	assert.Contains(t, source, "i32(local_invocation_id.x)")
	// 10 does not divide 4, so the split's guard survives into the shader.
	assert.Contains(t, source, "!= 0i")
}

func TestSequentialNestRunsOnce(t *testing.T) {
	// A nest with no GPU-bound loop (dynamic extent) executes on a single
	// invocation, guarded against every other thread.
	a := expr.NewArena()
	src := a.NewBuffer("src", dtypes.Float32)
	dst := a.NewBuffer("dst", dtypes.Float32)
	n := a.Var("n", dtypes.Int32)
	tsr := a.Compute("dst", []expr.DimArg{{Dim: n, Name: "i"}},
		func(axes []expr.Expr) expr.Expr { return a.Load(src, axes[0]) })
	stmt := expr.NewSchedule(a, []*expr.Tensor{tsr}, []expr.Buffer{dst}).Lower()
	params := []codegen.Param{
		codegen.BufferParam(src),
		codegen.VarParam(n),
		codegen.BufferParam(dst),
	}

	source, err := Source("copy_dyn", stmt, params)
	require.NoError(t, err)
	assert.Contains(t, source, "if (workgroup_id.x == 0u && local_invocation_id.x == 0u) {")
	assert.Contains(t, source, "for (var i: i32 = 0; i < params.n; i++) {")
}

func TestCompareSelectUsesSelect(t *testing.T) {
	a := expr.NewArena()
	dst := a.NewBuffer("dst", dtypes.Float32)
	tsr := a.Compute("dst", []expr.DimArg{{Dim: a.IntImm(4), Name: "i"}},
		func(axes []expr.Expr) expr.Expr {
			return a.CompareSelect(axes[0], a.IntImm(2), a.FloatImm(1), a.FloatImm(0), expr.CmpLT)
		})
	stmt := expr.NewSchedule(a, []*expr.Tensor{tsr}, []expr.Buffer{dst}).Lower()
	source, err := Source("sel", stmt, []codegen.Param{codegen.BufferParam(dst)})
	require.NoError(t, err)
	// WGSL select takes the false branch first.
	assert.Contains(t, source, "select(0.0f, 1.0f, (i < 2i))")
}

func TestIntrinsicTranslation(t *testing.T) {
	a := expr.NewArena()
	dst := a.NewBuffer("dst", dtypes.Float32)
	x := a.Var("x", dtypes.Float32)
	tsr := a.Compute("dst", []expr.DimArg{{Dim: a.IntImm(1), Name: "i"}},
		func(axes []expr.Expr) expr.Expr {
			return a.Intrinsic(expr.IntrRsqrt, x).Add(a.Intrinsic(expr.IntrLog10, x))
		})
	stmt := expr.NewSchedule(a, []*expr.Tensor{tsr}, []expr.Buffer{dst}).Lower()
	source, err := Source("intr", stmt, []codegen.Param{codegen.VarParam(x), codegen.BufferParam(dst)})
	require.NoError(t, err)
	assert.Contains(t, source, "inverseSqrt(params.x)")
	// log10 has no builtin; it lowers through log.
	assert.Contains(t, source, "log(params.x)")
}

func TestUnsupportedIntrinsicFails(t *testing.T) {
	a := expr.NewArena()
	dst := a.NewBuffer("dst", dtypes.Float32)
	x := a.Var("x", dtypes.Float32)
	tsr := a.Compute("dst", []expr.DimArg{{Dim: a.IntImm(1), Name: "i"}},
		func(axes []expr.Expr) expr.Expr {
			return a.Intrinsic(expr.IntrErf, x)
		})
	stmt := expr.NewSchedule(a, []*expr.Tensor{tsr}, []expr.Buffer{dst}).Lower()
	_, err := Source("erf", stmt, []codegen.Param{codegen.VarParam(x), codegen.BufferParam(dst)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "erf")
}

func TestThreadExtentMustBeConstant(t *testing.T) {
	a := expr.NewArena()
	dst := a.NewBuffer("dst", dtypes.Float32)
	n := a.Var("n", dtypes.Int32)
	v := a.Var("i", dtypes.Int32)
	loop := a.For(v, n, a.Store(dst, v, a.FloatImm(1)))
	loop.BindGPUAxis(expr.AxisThread)
	_, err := Source("dyn_thread", a.Block(loop),
		[]codegen.Param{codegen.VarParam(n), codegen.BufferParam(dst)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thread-bound loop extent must be constant")
}

func TestBlockExtentEvaluatesOnHost(t *testing.T) {
	a := expr.NewArena()
	dst := a.NewBuffer("dst", dtypes.Float32)
	n := a.Var("n", dtypes.Int32)
	v := a.Var("b", dtypes.Int32)
	extent := n.Add(a.IntImm(3)).Div(a.IntImm(4))
	loop := a.For(v, extent, a.Store(dst, v, a.FloatImm(1)))
	loop.BindGPUAxis(expr.AxisBlock)
	params := []codegen.Param{codegen.VarParam(n), codegen.BufferParam(dst)}

	g, err := newGenerator("host_extent", a.Block(loop), params)
	require.NoError(t, err)
	require.Len(t, g.blockExtents, 1)
	args := []codegen.CallArg{codegen.I32Arg(10), codegen.F32sArg(nil)}
	assert.Equal(t, int32(3), g.blockExtents[0].eval(args))
}

func TestPackScalarsLayout(t *testing.T) {
	a := expr.NewArena()
	stmt, params := tiledKernel(a)
	g, err := newGenerator("pack", stmt, params)
	require.NoError(t, err)
	k := &kernel{name: "pack", gen: g}

	packed := k.packScalars([]codegen.CallArg{
		codegen.F32sArg(nil),
		codegen.F32Arg(1.0),
		codegen.F32sArg(nil),
	})
	// One 4-byte field, padded to the 16-byte uniform stride.
	require.Len(t, packed, 16)
	// 1.0f little-endian.
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, packed[:4])
}

func TestCallPlanSurvivesArenaTeardown(t *testing.T) {
	// The arena is finalized right after code generation, so every value
	// the call path touches must have been snapshotted into plain data.
	a := expr.NewArena()
	stmt, params := tiledKernel(a)
	g, err := newGenerator("teardown", stmt, params)
	require.NoError(t, err)
	a.Finalize()

	require.Equal(t, 3, g.numParams)
	require.Len(t, g.bindings, 2)
	assert.Equal(t, bufBinding{argIdx: 0, name: "src", isFloat: true, writable: false}, g.bindings[0])
	assert.Equal(t, bufBinding{argIdx: 2, name: "dst", isFloat: true, writable: true}, g.bindings[1])

	in := []float32{1, 2}
	data := bufferBytes(codegen.F32sArg(in), g.bindings[0])
	assert.Len(t, data, 8)
	assert.Panics(t, func() { bufferBytes(codegen.I32sArg(nil), g.bindings[0]) })

	// Dispatch counts and the uniform block also evaluate arena-free.
	args := []codegen.CallArg{codegen.F32sArg(in), codegen.F32Arg(2.0), codegen.F32sArg(nil)}
	require.Len(t, g.blockExtents, 1)
	assert.Equal(t, int32(3), g.blockExtents[0].eval(args))
	k := &kernel{name: "teardown", gen: g}
	assert.Len(t, k.packScalars(args), 16)
}

func TestFormatF32(t *testing.T) {
	assert.Equal(t, "2.0f", formatF32(2))
	assert.Equal(t, "0.5f", formatF32(0.5))
	assert.Equal(t, "1e+10f", formatF32(1e10))
}
