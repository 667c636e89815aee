// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// DimArg names one dimension of a symbolic tensor. Dim is the extent, either
// an Int32 immediate or a named dynamic-size variable. Name, if set, names
// the axis variable created for it.
type DimArg struct {
	Dim  Expr
	Name string
}

// DimArgsFromExprs wraps plain extents into DimArgs with default axis names.
func DimArgsFromExprs(dims []Expr) []DimArg {
	out := make([]DimArg, len(dims))
	for i, d := range dims {
		out[i] = DimArg{Dim: d, Name: fmt.Sprintf("i%d", i)}
	}
	return out
}

// Tensor is a symbolic tensor: a named, shaped, scalar-valued function from
// integer axis variables to a scalar expression. It never materializes as
// storage by itself; consumers inline its element expression via Call.
type Tensor struct {
	a    *Arena
	name string
	axes []Expr // One Int32 Var per dimension.
	dims []Expr
	body Expr
}

// Compute creates a symbolic tensor whose element at axis variables
// (i0, .., iN-1) is given by fn. fn runs exactly once, at creation.
func (a *Arena) Compute(name string, dims []DimArg, fn func(axes []Expr) Expr) *Tensor {
	a.alive()
	t := &Tensor{
		a:    a,
		name: name,
		axes: make([]Expr, len(dims)),
		dims: make([]Expr, len(dims)),
	}
	for i, d := range dims {
		axisName := d.Name
		if axisName == "" {
			axisName = fmt.Sprintf("i%d", i)
		}
		t.axes[i] = a.Var(axisName, dtypes.Int32)
		t.dims[i] = d.Dim
	}
	t.body = fn(t.axes)
	if !t.body.Valid() {
		exceptions.Panicf("expr: Compute(%q) element function returned an invalid expression", name)
	}
	return t
}

// Name returns the tensor's name.
func (t *Tensor) Name() string { return t.name }

// Rank returns the number of axes.
func (t *Tensor) Rank() int { return len(t.dims) }

// Dim returns the extent expression of the given axis.
func (t *Tensor) Dim(axis int) Expr { return t.dims[axis] }

// Dims returns the extent expressions of all axes.
func (t *Tensor) Dims() []Expr { return t.dims }

// Axis returns the axis variable of the given axis.
func (t *Tensor) Axis(axis int) Expr { return t.axes[axis] }

// DType returns the scalar type of the element expression.
func (t *Tensor) DType() dtypes.DType { return t.body.DType() }

// HasDynamicDims reports whether any dimension is not a compile-time
// constant.
func (t *Tensor) HasDynamicDims() bool {
	for _, d := range t.dims {
		if d.Kind() != KindIntImm {
			return true
		}
	}
	return false
}

// Call reads the tensor at the given indices: it substitutes the indices
// for the tensor's axis variables in its element expression. Because reads
// inline the producer's expression, a tensor that is only ever read through
// Call never becomes a separate loop nest or buffer.
func (t *Tensor) Call(indices []Expr) Expr {
	if len(indices) != len(t.axes) {
		exceptions.Panicf("expr: tensor %q has rank %d, called with %d indices", t.name, len(t.axes), len(indices))
	}
	if len(indices) == 0 {
		return t.body
	}
	subs := make(map[Expr]Expr, len(indices))
	for i, axisVar := range t.axes {
		subs[axisVar] = indices[i]
	}
	return t.a.Substitute(t.body, subs)
}
