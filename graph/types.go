// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Type is the declared logical type of a graph value: a tensor with shape
// and contiguity, or a float/int scalar. Anything else presented to the
// kernel compiler is an unsupported-input-type configuration error.
type Type interface {
	isType()
	String() string
}

// DynamicSize is the sentinel marking a tensor axis whose size is unknown
// until run time. Any negative size is treated as dynamic; this constant is
// the canonical spelling.
const DynamicSize = -1

// TensorType declares a tensor-valued graph value.
type TensorType struct {
	DType dtypes.DType

	// Sizes per axis; a negative entry means the size is dynamic and is
	// bound from the live tensor on every invocation.
	Sizes []int

	// Contiguity per axis; a false entry means the stride along that axis
	// must be passed to the kernel at run time.
	Contiguity []bool
}

func (TensorType) isType() {}

// MakeTensorType declares a fully contiguous tensor type.
func MakeTensorType(dtype dtypes.DType, sizes ...int) TensorType {
	contiguity := make([]bool, len(sizes))
	for i := range contiguity {
		contiguity[i] = true
	}
	return TensorType{DType: dtype, Sizes: slices.Clone(sizes), Contiguity: contiguity}
}

// WithContiguity returns a copy of the type with the given per-axis
// contiguity flags.
func (t TensorType) WithContiguity(flags ...bool) TensorType {
	if len(flags) != len(t.Sizes) {
		exceptions.Panicf("graph: WithContiguity got %d flags for a rank-%d tensor type", len(flags), len(t.Sizes))
	}
	t.Contiguity = slices.Clone(flags)
	return t
}

// Rank returns the number of axes.
func (t TensorType) Rank() int { return len(t.Sizes) }

func (t TensorType) String() string {
	parts := make([]string, len(t.Sizes))
	for i, s := range t.Sizes {
		if s < 0 {
			parts[i] = "?"
		} else {
			parts[i] = fmt.Sprintf("%d", s)
		}
		if !t.Contiguity[i] {
			parts[i] += "*"
		}
	}
	return fmt.Sprintf("%s[%s]", t.DType, strings.Join(parts, " "))
}

// ScalarType declares a scalar graph value (float or int).
type ScalarType struct {
	DType dtypes.DType
}

func (ScalarType) isType() {}

func (t ScalarType) String() string { return t.DType.String() }

// LiteralKind discriminates constant literal payloads.
type LiteralKind uint8

const (
	LiteralFloat LiteralKind = iota
	LiteralInt

	// LiteralNone is the typed "absent" marker, e.g. the missing min/max
	// bound of clamp.
	LiteralNone
)

// Literal is the payload of a Constant node.
type Literal struct {
	Kind LiteralKind
	F    float64
	I    int64
}

// FloatLit returns a float literal.
func FloatLit(v float64) Literal { return Literal{Kind: LiteralFloat, F: v} }

// IntLit returns an int literal.
func IntLit(v int64) Literal { return Literal{Kind: LiteralInt, I: v} }

// NoneLit returns the absent-value marker.
func NoneLit() Literal { return Literal{Kind: LiteralNone} }

func (l Literal) String() string {
	switch l.Kind {
	case LiteralFloat:
		return fmt.Sprintf("%gf", l.F)
	case LiteralInt:
		return fmt.Sprintf("%d", l.I)
	default:
		return "none"
	}
}
