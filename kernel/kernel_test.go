// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"math"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/tensorfuse/tensorfuse/codegen/register"
	"github.com/tensorfuse/tensorfuse/graph"
	"github.com/tensorfuse/tensorfuse/tensor"
)

// runKernel executes g once on the CPU and returns the outputs in declared
// order.
func runKernel(t *testing.T, g *graph.Graph, operands ...any) []*tensor.Tensor {
	t.Helper()
	k := New(g)
	stack := NewStack(operands...)
	k.Run(stack)
	outs := make([]*tensor.Tensor, stack.Len())
	for i := len(outs) - 1; i >= 0; i-- {
		outs[i] = stack.PopTensor()
	}
	return outs
}

func f32Type(sizes ...int) graph.TensorType {
	return graph.MakeTensorType(dtypes.Float32, sizes...)
}

func i32Type(sizes ...int) graph.TensorType {
	return graph.MakeTensorType(dtypes.Int32, sizes...)
}

func TestFusedAddRelu(t *testing.T) {
	g := graph.New("add_relu")
	x := g.Input("x", f32Type(2, 3))
	y := g.Input("y", f32Type(3))
	alpha := g.Input("alpha", graph.ScalarType{DType: dtypes.Float32})
	sum := g.Apply(graph.OpAdd, f32Type(2, 3), x, y, alpha)
	g.Output(g.Apply(graph.OpRelu, f32Type(2, 3), sum))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{1, -2, 3, -4, 5, -6}, 2, 3)
	yT := tensor.FromFlat(tensor.DeviceCPU, []float32{0.5, 1, -10}, 3)

	k := New(g)
	stack := NewStack(xT, yT, 1.0)
	k.Run(stack)
	require.Equal(t, 1, stack.Len())
	out := stack.PopTensor()

	assert.Equal(t, BackendCPUNative, k.BackendType())
	assert.Equal(t, []int{2, 3}, out.Dims())
	assert.InDeltaSlice(t, []float32{1.5, 0, 0, 0, 6, 0}, out.Float32s(), 1e-6)
}

func TestBroadcastColumnTimesRow(t *testing.T) {
	g := graph.New("outer")
	x := g.Input("x", f32Type(5, 1))
	y := g.Input("y", f32Type(3))
	g.Output(g.Apply(graph.OpMul, f32Type(5, 3), x, y))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{1, 2, 3, 4, 5}, 5, 1)
	yT := tensor.FromFlat(tensor.DeviceCPU, []float32{10, 20, 30}, 3)
	out := runKernel(t, g, xT, yT)[0]

	require.Equal(t, []int{5, 3}, out.Dims())
	want := make([]float32, 0, 15)
	for r := 1; r <= 5; r++ {
		for _, c := range []float32{10, 20, 30} {
			want = append(want, float32(r)*c)
		}
	}
	assert.InDeltaSlice(t, want, out.Float32s(), 1e-6)
}

func TestStridedInput(t *testing.T) {
	// Rows padded to stride 4; the padding slots must never be read.
	g := graph.New("strided_relu")
	x := g.Input("x", f32Type(2, 3).WithContiguity(false, true))
	g.Output(g.Apply(graph.OpRelu, f32Type(2, 3), x))

	flat := []float32{1, -2, 3, 99, -4, 5, -6, 99}
	xT := tensor.FromFlatWithStrides(tensor.DeviceCPU, flat, []int{2, 3}, []int{4, 1})
	out := runKernel(t, g, xT)[0]

	assert.Equal(t, []int{2, 3}, out.Dims())
	assert.InDeltaSlice(t, []float32{1, 0, 3, 0, 5, 0}, out.Float32s(), 1e-6)
}

func TestStridedInnerAxis(t *testing.T) {
	// A view that skips every other element: strides [6, 2] over a [2, 3]
	// shape. The outer axis is contiguous relative to the inner one
	// (6 == 2*3), so only the inner stride is passed at run time and the
	// outer step must be derived from it.
	g := graph.New("strided_view")
	x := g.Input("x", f32Type(2, 3).WithContiguity(true, false))
	g.Output(g.Apply(graph.OpRelu, f32Type(2, 3), x))

	flat := []float32{0, 99, 1, 99, 2, 99, 3, 99, 4, 99, 5, 99}
	xT := tensor.FromFlatWithStrides(tensor.DeviceCPU, flat, []int{2, 3}, []int{6, 2})
	out := runKernel(t, g, xT)[0]

	assert.Equal(t, []int{2, 3}, out.Dims())
	assert.InDeltaSlice(t, []float32{0, 1, 2, 3, 4, 5}, out.Float32s(), 1e-6)
}

func TestIntPromotesToFloat(t *testing.T) {
	g := graph.New("mixed_mul")
	x := g.Input("x", i32Type(3))
	y := g.Input("y", f32Type(3))
	g.Output(g.Apply(graph.OpMul, f32Type(3), x, y))

	xT := tensor.FromFlat(tensor.DeviceCPU, []int32{1, 2, 3}, 3)
	yT := tensor.FromFlat(tensor.DeviceCPU, []float32{0.5, 0.5, 0.5}, 3)
	out := runKernel(t, g, xT, yT)[0]

	require.Equal(t, dtypes.Float32, out.DType())
	assert.InDeltaSlice(t, []float32{0.5, 1, 1.5}, out.Float32s(), 1e-6)
}

func TestDeclaredIntOutputTruncates(t *testing.T) {
	g := graph.New("demote")
	x := g.Input("x", f32Type(4))
	y := g.Input("y", f32Type(4))
	g.Output(g.Apply(graph.OpMul, i32Type(4), x, y))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{7.9, -3.5, 2.2, 0.4}, 4)
	yT := tensor.FromFlat(tensor.DeviceCPU, []float32{1, 1, 1, 1}, 4)
	out := runKernel(t, g, xT, yT)[0]

	require.Equal(t, dtypes.Int32, out.DType())
	assert.Equal(t, []int32{7, -3, 2, 0}, out.Int32s())
}

func TestIntOnlyStaysInt(t *testing.T) {
	g := graph.New("int_add")
	x := g.Input("x", i32Type(3))
	y := g.Input("y", i32Type(3))
	alpha := g.Constant(graph.IntLit(2))
	g.Output(g.Apply(graph.OpAdd, i32Type(3), x, y, alpha))

	xT := tensor.FromFlat(tensor.DeviceCPU, []int32{1, 2, 3}, 3)
	yT := tensor.FromFlat(tensor.DeviceCPU, []int32{10, 20, 30}, 3)
	out := runKernel(t, g, xT, yT)[0]

	require.Equal(t, dtypes.Int32, out.DType())
	assert.Equal(t, []int32{21, 42, 63}, out.Int32s())
}

func TestDynamicShapeRecompileNotNeeded(t *testing.T) {
	g := graph.New("dyn_relu")
	x := g.Input("x", f32Type(graph.DynamicSize, 2))
	g.Output(g.Apply(graph.OpRelu, f32Type(graph.DynamicSize, 2), x))
	k := New(g)

	for _, rows := range []int{4, 9} {
		flat := make([]float32, rows*2)
		for i := range flat {
			flat[i] = float32(i%3) - 1 // -1, 0, 1 pattern.
		}
		stack := NewStack(tensor.FromFlat(tensor.DeviceCPU, flat, rows, 2))
		k.Run(stack)
		out := stack.PopTensor()
		require.Equal(t, []int{rows, 2}, out.Dims())
		for i, v := range out.Float32s() {
			want := flat[i]
			if want < 0 {
				want = 0
			}
			assert.Equal(t, want, v, "element %d", i)
		}
	}
}

func TestBackendLockIn(t *testing.T) {
	g := graph.New("locked")
	x := g.Input("x", f32Type(2))
	g.Output(g.Apply(graph.OpRelu, f32Type(2), x))
	k := New(g)

	stack := NewStack(tensor.FromFlat(tensor.DeviceCPU, []float32{1, -1}, 2))
	k.Run(stack)
	require.Equal(t, BackendCPUNative, k.BackendType())

	gpuT := tensor.FromFlat(tensor.DeviceWebGPU, []float32{1, -1}, 2)
	require.Panics(t, func() { k.Run(NewStack(gpuT)) })
}

func TestNoTensorOperandsPanics(t *testing.T) {
	g := graph.New("scalar_only")
	s := g.Input("s", graph.ScalarType{DType: dtypes.Float32})
	g.Output(g.Apply(graph.OpRelu, f32Type(1), s))
	k := New(g)
	require.Panics(t, func() { k.Run(NewStack(2.0)) })
}

func TestSigmoidValues(t *testing.T) {
	g := graph.New("sigmoid")
	x := g.Input("x", f32Type(3))
	g.Output(g.Apply(graph.OpSigmoid, f32Type(3), x))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{0, 2, -2}, 3)
	out := runKernel(t, g, xT)[0]
	assert.InDeltaSlice(t, []float32{0.5, 0.8807971, 0.1192029}, out.Float32s(), 1e-6)
}

func TestFracIsNonNegative(t *testing.T) {
	// frac is x - floor(x), so negative inputs wrap into [0, 1).
	g := graph.New("frac")
	x := g.Input("x", f32Type(4))
	g.Output(g.Apply(graph.OpFrac, f32Type(4), x))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{1.25, -1.5, -0.25, 3}, 4)
	out := runKernel(t, g, xT)[0]
	assert.InDeltaSlice(t, []float32{0.25, 0.5, 0.75, 0}, out.Float32s(), 1e-6)
}

func TestCompareProducesMask(t *testing.T) {
	g := graph.New("lt")
	x := g.Input("x", f32Type(4))
	y := g.Input("y", f32Type(4))
	g.Output(g.Apply(graph.OpLt, f32Type(4), x, y))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{1, 5, 3, 0}, 4)
	yT := tensor.FromFlat(tensor.DeviceCPU, []float32{2, 2, 3, 1}, 4)
	out := runKernel(t, g, xT, yT)[0]
	assert.InDeltaSlice(t, []float32{1, 0, 0, 1}, out.Float32s(), 0)
}

func TestClampVariants(t *testing.T) {
	g := graph.New("clamp_all")
	x := g.Input("x", f32Type(4))
	none := g.Constant(graph.NoneLit())
	lo := g.Constant(graph.FloatLit(-1))
	hi := g.Constant(graph.FloatLit(1))
	g.Output(g.Apply(graph.OpClamp, f32Type(4), x, none, none))
	g.Output(g.Apply(graph.OpClamp, f32Type(4), x, none, hi))
	g.Output(g.Apply(graph.OpClamp, f32Type(4), x, lo, none))
	g.Output(g.Apply(graph.OpClamp, f32Type(4), x, lo, hi))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{-5, -0.2, 0.5, 5}, 4)
	outs := runKernel(t, g, xT)
	require.Len(t, outs, 4)
	assert.InDeltaSlice(t, []float32{-5, -0.2, 0.5, 5}, outs[0].Float32s(), 1e-6)
	assert.InDeltaSlice(t, []float32{-5, -0.2, 0.5, 1}, outs[1].Float32s(), 1e-6)
	assert.InDeltaSlice(t, []float32{-1, -0.2, 0.5, 5}, outs[2].Float32s(), 1e-6)
	assert.InDeltaSlice(t, []float32{-1, -0.2, 0.5, 1}, outs[3].Float32s(), 1e-6)
}

func TestCatAlongFirstAxis(t *testing.T) {
	g := graph.New("cat0")
	x := g.Input("x", f32Type(2, 2))
	y := g.Input("y", f32Type(3, 2))
	list := g.Apply(graph.OpListConstruct, nil, x, y)
	dim := g.Constant(graph.IntLit(0))
	g.Output(g.Apply(graph.OpCat, f32Type(5, 2), list, dim))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{1, 2, 3, 4}, 2, 2)
	yT := tensor.FromFlat(tensor.DeviceCPU, []float32{5, 6, 7, 8, 9, 10}, 3, 2)
	out := runKernel(t, g, xT, yT)[0]

	require.Equal(t, []int{5, 2}, out.Dims())
	assert.InDeltaSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, out.Float32s(), 0)
}

func TestCatNegativeDim(t *testing.T) {
	g := graph.New("cat_neg")
	x := g.Input("x", f32Type(2, 1))
	y := g.Input("y", f32Type(2, 2))
	list := g.Apply(graph.OpListConstruct, nil, x, y)
	dim := g.Constant(graph.IntLit(-1))
	g.Output(g.Apply(graph.OpCat, f32Type(2, 3), list, dim))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{1, 2}, 2, 1)
	yT := tensor.FromFlat(tensor.DeviceCPU, []float32{10, 20, 30, 40}, 2, 2)
	out := runKernel(t, g, xT, yT)[0]
	assert.InDeltaSlice(t, []float32{1, 10, 20, 2, 30, 40}, out.Float32s(), 0)
}

func TestSlice(t *testing.T) {
	g := graph.New("slice")
	x := g.Input("x", f32Type(5))
	g.Output(g.Apply(graph.OpSlice, f32Type(3), x,
		g.Constant(graph.IntLit(0)), g.Constant(graph.IntLit(1)),
		g.Constant(graph.IntLit(4)), g.Constant(graph.IntLit(1))))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{10, 11, 12, 13, 14}, 5)
	out := runKernel(t, g, xT)[0]
	require.Equal(t, []int{3}, out.Dims())
	assert.InDeltaSlice(t, []float32{11, 12, 13}, out.Float32s(), 0)
}

func TestSliceWithStep(t *testing.T) {
	g := graph.New("slice_step")
	x := g.Input("x", f32Type(5))
	none := g.Constant(graph.NoneLit())
	g.Output(g.Apply(graph.OpSlice, f32Type(3), x,
		g.Constant(graph.IntLit(0)), none, none, g.Constant(graph.IntLit(2))))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{10, 11, 12, 13, 14}, 5)
	out := runKernel(t, g, xT)[0]
	assert.InDeltaSlice(t, []float32{10, 12, 14}, out.Float32s(), 0)
}

func TestUnsqueeze(t *testing.T) {
	g := graph.New("unsqueeze")
	x := g.Input("x", f32Type(3))
	g.Output(g.Apply(graph.OpUnsqueeze, f32Type(1, 3), x, g.Constant(graph.IntLit(0))))
	g.Output(g.Apply(graph.OpUnsqueeze, f32Type(3, 1), x, g.Constant(graph.IntLit(-1))))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{1, 2, 3}, 3)
	outs := runKernel(t, g, xT)
	require.Equal(t, []int{1, 3}, outs[0].Dims())
	require.Equal(t, []int{3, 1}, outs[1].Dims())
	assert.InDeltaSlice(t, []float32{1, 2, 3}, outs[0].Float32s(), 0)
	assert.InDeltaSlice(t, []float32{1, 2, 3}, outs[1].Float32s(), 0)
}

func TestChunk(t *testing.T) {
	g := graph.New("chunk")
	x := g.Input("x", f32Type(6))
	parts := g.Chunk(x, 0, 2, []graph.Type{f32Type(3), f32Type(3)})
	g.Output(parts[0])
	g.Output(parts[1])

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{1, 2, 3, 4, 5, 6}, 6)
	outs := runKernel(t, g, xT)
	assert.InDeltaSlice(t, []float32{1, 2, 3}, outs[0].Float32s(), 0)
	assert.InDeltaSlice(t, []float32{4, 5, 6}, outs[1].Float32s(), 0)
}

func TestChunkPartialUse(t *testing.T) {
	g := graph.New("chunk_tail")
	x := g.Input("x", f32Type(2, 4))
	parts := g.Chunk(x, 1, 2, []graph.Type{f32Type(2, 2), f32Type(2, 2)})
	g.Output(parts[1])

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{1, 2, 3, 4, 5, 6, 7, 8}, 2, 4)
	out := runKernel(t, g, xT)[0]
	assert.InDeltaSlice(t, []float32{3, 4, 7, 8}, out.Float32s(), 0)
}

func TestFusedChainStaysSingleKernel(t *testing.T) {
	// sigmoid(x) * tanh(x), a classic fusion target: every intermediate
	// inlines, the compiled kernel writes only the final output.
	g := graph.New("mish_like")
	x := g.Input("x", f32Type(4))
	s := g.Apply(graph.OpSigmoid, f32Type(4), x)
	th := g.Apply(graph.OpTanh, f32Type(4), x)
	g.Output(g.Apply(graph.OpMul, f32Type(4), s, th))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{-1, 0, 0.5, 2}, 4)
	out := runKernel(t, g, xT)[0]

	sig := func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }
	want := make([]float32, 4)
	for i, v := range []float64{-1, 0, 0.5, 2} {
		want[i] = float32(sig(v) * math.Tanh(v))
	}
	assert.InDeltaSlice(t, want, out.Float32s(), 1e-5)
}

func TestUnusedNodeIsSkipped(t *testing.T) {
	g := graph.New("dead_branch")
	x := g.Input("x", f32Type(2))
	g.Apply(graph.OpExp, f32Type(2), x) // Dead; must not be lowered.
	g.Output(g.Apply(graph.OpRelu, f32Type(2), x))

	xT := tensor.FromFlat(tensor.DeviceCPU, []float32{-3, 3}, 2)
	out := runKernel(t, g, xT)[0]
	assert.InDeltaSlice(t, []float32{0, 3}, out.Float32s(), 0)
}
