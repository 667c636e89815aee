// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package graph

// OpKind identifies the operator of a graph node. The kernel compiler's
// lowering table is keyed on it; kinds outside the table fail compilation
// with an unhandled-node-kind error.
type OpKind int

//go:generate go tool enumer -type=OpKind -trimprefix=Op -output=gen_opkind_enumer.go opkind.go

const (
	OpInvalid OpKind = iota

	// Structural markers: carry no computation and are skipped by the
	// lowering loop. Constant nodes hold a Literal; ListConstruct groups
	// the operands of Cat.
	OpConstant
	OpListConstruct

	// OpConstantChunk splits its input into equal chunks along an axis,
	// one output value per chunk. Dim and Chunks are node attributes.
	OpConstantChunk

	// Binary with a trailing blend-weight operand: lhs ± alpha*rhs.
	OpAdd
	OpSub

	OpMul
	OpDiv
	OpAddcmul

	OpEq
	OpNe
	OpGe
	OpGt
	OpLe
	OpLt

	OpMin
	OpMax
	OpClamp
	OpThreshold
	OpLerp

	OpSigmoid
	OpReciprocal
	OpNeg
	OpRelu

	OpLog
	OpLog10
	OpLog2
	OpExp
	OpExpm1
	OpErf
	OpErfc

	OpCos
	OpSin
	OpTan
	OpAcos
	OpAsin
	OpAtan
	OpAtan2
	OpCosh
	OpSinh
	OpTanh

	OpSqrt
	OpRsqrt
	OpAbs
	OpCeil
	OpFloor
	OpRound
	OpTrunc
	OpFrac
	OpLgamma

	OpFmod
	OpRemainder
	OpPow

	OpCastFloat
	OpTypeAs

	OpSigmoidBackward
	OpTanhBackward

	// Shape-rearranging operators with custom indexing rules.
	OpCat
	OpSlice
	OpUnsqueeze

	// OpKindLast is a marker, not an operator.
	OpKindLast
)
