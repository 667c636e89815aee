// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"fmt"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndPrint(t *testing.T) {
	a := NewArena()
	x := a.Var("x", dtypes.Float32)
	y := a.Var("y", dtypes.Float32)
	e := x.Add(y).Mul(a.FloatImm(2))
	assert.Equal(t, dtypes.Float32, e.DType())
	assert.Equal(t, "((x + y) * 2f)", e.String())

	i := a.Var("i", dtypes.Int32)
	sel := a.CompareSelect(i, a.IntImm(3), a.IntImm(1), a.IntImm(0), CmpLT)
	assert.Equal(t, "select(i < 3, 1, 0)", sel.String())

	sq := a.Intrinsic(IntrSqrt, x)
	assert.Equal(t, "sqrt(x)", sq.String())
	assert.Equal(t, dtypes.Float32, sq.DType())
}

func TestMixedDTypePanics(t *testing.T) {
	a := NewArena()
	x := a.Var("x", dtypes.Float32)
	i := a.Var("i", dtypes.Int32)
	require.Panics(t, func() { x.Add(i) })
	require.Panics(t, func() { a.Intrinsic(IntrExp, i) })
	require.Panics(t, func() { a.Var("h", dtypes.Float16) })
}

func TestCastElidesSameDType(t *testing.T) {
	a := NewArena()
	x := a.Var("x", dtypes.Float32)
	assert.Equal(t, x, a.Cast(dtypes.Float32, x))
	c := a.Cast(dtypes.Int32, x)
	assert.Equal(t, KindCast, c.Kind())
	assert.Equal(t, dtypes.Int32, c.DType())
}

func TestIntImmFolding(t *testing.T) {
	a := NewArena()
	e := a.IntImm(6).Add(a.IntImm(4)).Mul(a.IntImm(3))
	require.Equal(t, KindIntImm, e.Kind())
	assert.Equal(t, int32(30), e.IntImmValue())

	// Folding must not reach past immediates.
	v := a.Var("n", dtypes.Int32)
	assert.Equal(t, KindBinary, v.Add(a.IntImm(1)).Kind())
}

func TestSubstitute(t *testing.T) {
	a := NewArena()
	x := a.Var("x", dtypes.Int32)
	y := a.Var("y", dtypes.Int32)
	e := x.Mul(a.IntImm(10)).Add(y)
	got := a.Substitute(e, map[Expr]Expr{x: a.IntImm(2), y: a.IntImm(5)})
	require.Equal(t, KindIntImm, got.Kind())
	assert.Equal(t, int32(25), got.IntImmValue())
}

func TestFinalizePanics(t *testing.T) {
	a := NewArena()
	x := a.Var("x", dtypes.Float32)
	a.Finalize()
	require.Panics(t, func() { _ = x.Kind() })
	require.Panics(t, func() { a.IntImm(1) })
}

func TestComputeInlinesOnCall(t *testing.T) {
	a := NewArena()
	buf := a.NewBuffer("in", dtypes.Float32)
	src := a.Compute("src", []DimArg{{Dim: a.IntImm(4), Name: "i"}},
		func(axes []Expr) Expr {
			return a.Load(buf, axes[0]).Mul(a.FloatImm(3))
		})
	doubled := a.Compute("doubled", []DimArg{{Dim: a.IntImm(4), Name: "i"}},
		func(axes []Expr) Expr {
			return src.Call(axes).Add(src.Call(axes))
		})
	// The consumer's body reads the producer's expression directly; no
	// reference to an intermediate buffer remains.
	e := doubled.Call([]Expr{a.IntImm(2)})
	assert.Equal(t, "((in[2] * 3f) + (in[2] * 3f))", e.String())
}

func buildNest(t *testing.T, a *Arena, extents ...int32) (*Schedule, Buffer) {
	t.Helper()
	buf := a.NewBuffer("out", dtypes.Float32)
	in := a.NewBuffer("in", dtypes.Float32)
	dims := make([]DimArg, len(extents))
	for i, n := range extents {
		dims[i] = DimArg{Dim: a.IntImm(n), Name: fmt.Sprintf("v%d", i)}
	}
	tensor := a.Compute("out", dims, func(axes []Expr) Expr {
		return a.Load(in, axes[len(axes)-1])
	})
	return NewSchedule(a, []*Tensor{tensor}, []Buffer{buf}), buf
}

func TestSplitWithMaskUneven(t *testing.T) {
	a := NewArena()
	s, _ := buildNest(t, a, 10)
	outer, inner := s.SplitWithMask(0, 0, 4)
	assert.Equal(t, 0, outer)
	assert.Equal(t, 1, inner)
	require.Equal(t, 2, s.NumLoops(0))

	root := s.Lower()
	require.Equal(t, StmtBlock, root.Kind())
	outerLoop := root.Body()[0]
	require.Equal(t, StmtFor, outerLoop.Kind())
	// ceil(10/4) folds to a constant.
	assert.Equal(t, int32(3), outerLoop.LoopExtent().IntImmValue())
	innerLoop := outerLoop.LoopBody()
	require.Equal(t, StmtFor, innerLoop.Kind())
	assert.Equal(t, int32(4), innerLoop.LoopExtent().IntImmValue())
	// The uneven split guards the body.
	assert.Equal(t, StmtIf, innerLoop.LoopBody().Kind())
}

func TestSplitWithMaskEvenHasNoGuard(t *testing.T) {
	a := NewArena()
	s, _ := buildNest(t, a, 12)
	s.SplitWithMask(0, 0, 4)
	root := s.Lower()
	body := root.Body()[0].LoopBody().LoopBody()
	assert.Equal(t, StmtStore, body.Kind())
}

func TestBindGPU(t *testing.T) {
	a := NewArena()
	s, _ := buildNest(t, a, 100)
	outer, inner := s.SplitWithMask(0, 0, 8)
	s.BindGPU(0, outer, inner)
	root := s.Lower()
	blockLoop := root.Body()[0]
	assert.Equal(t, AxisBlock, blockLoop.LoopGPUAxis())
	assert.Equal(t, AxisThread, blockLoop.LoopBody().LoopGPUAxis())
}

func TestScheduleRowMajorIndex(t *testing.T) {
	a := NewArena()
	s, _ := buildNest(t, a, 2, 3)
	root := s.Lower()
	store := root.Body()[0].LoopBody().LoopBody()
	require.Equal(t, StmtStore, store.Kind())
	// Flat index is row-major over the output axes.
	assert.Equal(t, "((v0 * 3) + v1)", store.StoreIndex().String())
}
