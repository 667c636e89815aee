// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package tensor

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestNewIsZeroedAndContiguous(t *testing.T) {
	x := New(dtypes.Float32, DeviceCPU, 2, 3)
	assert.Equal(t, []int{2, 3}, x.Dims())
	assert.Equal(t, []int{3, 1}, x.Strides())
	assert.Equal(t, 6, x.NumElements())
	assert.True(t, x.IsContiguous())
	for _, v := range x.Float32s() {
		assert.Zero(t, v)
	}
}

func TestFromFlat(t *testing.T) {
	x := FromFlat(DeviceCPU, []int32{1, 2, 3, 4}, 2, 2)
	assert.Equal(t, dtypes.Int32, x.DType())
	assert.Equal(t, []int32{1, 2, 3, 4}, x.Int32s())

	require.Panics(t, func() { FromFlat(DeviceCPU, []float32{1, 2, 3}, 2, 2) })
}

func TestFromFlatWithStrides(t *testing.T) {
	// Rows padded to stride 4.
	flat := []float32{1, 2, 3, 0, 4, 5, 6, 0}
	x := FromFlatWithStrides(DeviceCPU, flat, []int{2, 3}, []int{4, 1})
	assert.Equal(t, []int{4, 1}, x.Strides())
	assert.False(t, x.IsContiguous())
	assert.Len(t, x.Float32s(), 8)

	require.Panics(t, func() {
		FromFlatWithStrides(DeviceCPU, flat, []int{2, 3}, []int{4})
	})
}

func TestViewsAliasStorage(t *testing.T) {
	x := New(dtypes.Float32, DeviceCPU, 4)
	x.Float32s()[2] = 1.5
	assert.Equal(t, float32(1.5), x.Float32s()[2])
	assert.NotEqual(t, byte(0), x.Bytes()[11]) // High byte of element 2.

	require.Panics(t, func() { x.Int32s() })
}

func TestFlat(t *testing.T) {
	f := FromFlat(DeviceCPU, []float32{1, 2}, 2)
	assert.Equal(t, []float32{1, 2}, f.Flat())
	i := FromFlat(DeviceCPU, []int32{3, 4}, 2)
	assert.Equal(t, []int32{3, 4}, i.Flat())
}

func TestFromFloat16Widens(t *testing.T) {
	x := FromFloat16(DeviceCPU, []float16.Float16{
		float16.Fromfloat32(1.5),
		float16.Fromfloat32(-2),
	}, 2)
	assert.Equal(t, dtypes.Float32, x.DType())
	assert.InDeltaSlice(t, []float32{1.5, -2}, x.Float32s(), 0)
}

func TestUnsupportedDTypePanics(t *testing.T) {
	require.Panics(t, func() { New(dtypes.Float64, DeviceCPU, 2) })
}
