// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraph(t *testing.T) {
	g := New("f")
	x := g.Input("x", MakeTensorType(dtypes.Float32, 2, 3))
	y := g.Input("y", MakeTensorType(dtypes.Float32, 3))
	alpha := g.Constant(FloatLit(1))
	sum := g.Apply(OpAdd, MakeTensorType(dtypes.Float32, 2, 3), x, y, alpha)
	g.Output(sum)

	assert.Equal(t, "f", g.Name())
	assert.Len(t, g.Inputs(), 2)
	assert.Len(t, g.Nodes(), 2) // Constant plus the add.
	assert.Len(t, g.Outputs(), 1)

	assert.True(t, x.HasUses())
	assert.True(t, alpha.HasUses())
	assert.True(t, sum.HasUses()) // Being an output counts as a use.
	require.NotNil(t, sum.Producer())
	assert.Equal(t, OpAdd, sum.Producer().Kind())
	assert.Same(t, x, sum.Producer().Input(0))
}

func TestInputRequiresType(t *testing.T) {
	g := New("g")
	require.Panics(t, func() { g.Input("x", nil) })
}

func TestOutputMustBeTensor(t *testing.T) {
	g := New("g")
	s := g.Input("s", ScalarType{DType: dtypes.Float32})
	require.Panics(t, func() { g.Output(s) })
}

func TestChunkOutputs(t *testing.T) {
	g := New("g")
	x := g.Input("x", MakeTensorType(dtypes.Float32, 6))
	half := MakeTensorType(dtypes.Float32, 3)
	parts := g.Chunk(x, 0, 2, []Type{half, half})
	require.Len(t, parts, 2)
	assert.Equal(t, 0, parts[0].OutputIndex())
	assert.Equal(t, 1, parts[1].OutputIndex())
	assert.Same(t, parts[0].Producer(), parts[1].Producer())
	assert.Equal(t, 0, parts[0].Producer().ChunkDim())
	assert.Equal(t, 2, parts[0].Producer().ChunkChunks())

	require.Panics(t, func() { g.Chunk(x, 0, 3, []Type{half}) })
}

func TestTypeStrings(t *testing.T) {
	tt := MakeTensorType(dtypes.Float32, DynamicSize, 3)
	assert.Equal(t, []int{DynamicSize, 3}, tt.Sizes)
	assert.Equal(t, 2, tt.Rank())

	withStrides := MakeTensorType(dtypes.Float32, 2, 3).WithContiguity(false, true)
	require.Len(t, withStrides.Contiguity, 2)
	assert.False(t, withStrides.Contiguity[0])

	assert.Equal(t, LiteralNone, NoneLit().Kind)
	assert.Equal(t, int64(4), IntLit(4).I)
	assert.Equal(t, 2.5, FloatLit(2.5).F)
}
