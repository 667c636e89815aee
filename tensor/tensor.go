// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

// Package tensor provides the dense host tensor exchanged with compiled
// kernels: a flat byte buffer plus dtype, dimensions, element strides and a
// device tag. Only Int32 and Float32 element types are supported (Float16
// inputs are widened on construction).
package tensor

import (
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
)

// Tensor is a dense n-dimensional array in host memory. Strides are in
// elements, not bytes, and need not describe a contiguous layout.
type Tensor struct {
	dtype   dtypes.DType
	dims    []int
	strides []int
	device  Device
	data    []byte
}

func checkDType(dtype dtypes.DType) {
	if dtype != dtypes.Int32 && dtype != dtypes.Float32 {
		exceptions.Panicf("tensor: unhandled datatype %s", dtype)
	}
}

func contiguousStrides(dims []int) []int {
	strides := make([]int, len(dims))
	stride := 1
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= dims[i]
	}
	return strides
}

func numElements(dims []int) int {
	n := 1
	for _, d := range dims {
		if d < 0 {
			exceptions.Panicf("tensor: negative dimension %d", d)
		}
		n *= d
	}
	return n
}

// New creates a zero-filled contiguous tensor on the given device.
func New(dtype dtypes.DType, device Device, dims ...int) *Tensor {
	checkDType(dtype)
	return &Tensor{
		dtype:   dtype,
		dims:    append([]int(nil), dims...),
		strides: contiguousStrides(dims),
		device:  device,
		data:    make([]byte, numElements(dims)*dtype.Size()),
	}
}

// FromFlat creates a contiguous tensor initialized from a flat []float32 or
// []int32 slice in row-major order. The data is copied.
func FromFlat[T float32 | int32](device Device, flat []T, dims ...int) *Tensor {
	if len(flat) != numElements(dims) {
		exceptions.Panicf("tensor: %d elements given for shape %v (want %d)",
			len(flat), dims, numElements(dims))
	}
	return FromFlatWithStrides(device, flat, dims, contiguousStrides(dims))
}

// FromFlatWithStrides creates a tensor over a copy of flat with explicit
// element strides. The flat slice must cover every addressable element.
func FromFlatWithStrides[T float32 | int32](device Device, flat []T, dims, strides []int) *Tensor {
	if len(dims) != len(strides) {
		exceptions.Panicf("tensor: %d dims but %d strides", len(dims), len(strides))
	}
	var dtype dtypes.DType
	switch any(flat).(type) {
	case []float32:
		dtype = dtypes.Float32
	case []int32:
		dtype = dtypes.Int32
	}
	data := make([]byte, len(flat)*dtype.Size())
	if len(flat) > 0 {
		copy(data, unsafe.Slice((*byte)(unsafe.Pointer(&flat[0])), len(data)))
	}
	return &Tensor{
		dtype:   dtype,
		dims:    append([]int(nil), dims...),
		strides: append([]int(nil), strides...),
		device:  device,
		data:    data,
	}
}

// FromFloat16 creates a contiguous Float32 tensor by widening half-precision
// input values.
func FromFloat16(device Device, flat []float16.Float16, dims ...int) *Tensor {
	wide := make([]float32, len(flat))
	for i, h := range flat {
		wide[i] = h.Float32()
	}
	return FromFlat(device, wide, dims...)
}

// DType returns the element type.
func (t *Tensor) DType() dtypes.DType { return t.dtype }

// Device returns the device tag.
func (t *Tensor) Device() Device { return t.device }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.dims) }

// Dims returns the tensor's dimensions. The slice is owned by the tensor.
func (t *Tensor) Dims() []int { return t.dims }

// Dim returns the size of axis i.
func (t *Tensor) Dim(i int) int { return t.dims[i] }

// Strides returns the element strides. The slice is owned by the tensor.
func (t *Tensor) Strides() []int { return t.strides }

// Stride returns the element stride of axis i.
func (t *Tensor) Stride(i int) int { return t.strides[i] }

// NumElements returns the product of the dimensions.
func (t *Tensor) NumElements() int { return numElements(t.dims) }

// Bytes returns the raw backing storage.
func (t *Tensor) Bytes() []byte { return t.data }

// Float32s returns the backing storage viewed as []float32.
func (t *Tensor) Float32s() []float32 {
	if t.dtype != dtypes.Float32 {
		exceptions.Panicf("tensor: Float32s called on %s tensor", t.dtype)
	}
	if len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), len(t.data)/4)
}

// Int32s returns the backing storage viewed as []int32.
func (t *Tensor) Int32s() []int32 {
	if t.dtype != dtypes.Int32 {
		exceptions.Panicf("tensor: Int32s called on %s tensor", t.dtype)
	}
	if len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&t.data[0])), len(t.data)/4)
}

// Flat returns the backing storage as []float32 or []int32 depending on the
// element type.
func (t *Tensor) Flat() any {
	if t.dtype == dtypes.Float32 {
		return t.Float32s()
	}
	return t.Int32s()
}

// IsContiguous reports whether the strides describe a dense row-major layout.
func (t *Tensor) IsContiguous() bool {
	stride := 1
	for i := len(t.dims) - 1; i >= 0; i-- {
		if t.strides[i] != stride {
			return false
		}
		stride *= t.dims[i]
	}
	return true
}
