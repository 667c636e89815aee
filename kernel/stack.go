// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"github.com/gomlx/exceptions"

	"github.com/tensorfuse/tensorfuse/tensor"
)

// Stack is the operand stack Run consumes from and produces to. Operands
// are *tensor.Tensor values or numeric Go scalars. Run takes the top
// len(inputs) operands, with the deepest of them matching the graph's first
// input, and replaces them with the output tensors.
type Stack struct {
	items []any
}

// NewStack creates a stack holding the given operands, bottom first.
func NewStack(operands ...any) *Stack {
	s := &Stack{}
	for _, op := range operands {
		s.Push(op)
	}
	return s
}

// Push adds one operand on top.
func (s *Stack) Push(op any) {
	switch op.(type) {
	case *tensor.Tensor, float64, float32, int, int32, int64:
		s.items = append(s.items, op)
	default:
		exceptions.Panicf("kernel: %T is not a valid stack operand", op)
	}
}

// Pop removes and returns the top operand.
func (s *Stack) Pop() any {
	if len(s.items) == 0 {
		exceptions.Panicf("kernel: pop from empty stack")
	}
	op := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return op
}

// PopTensor removes the top operand, which must be a tensor.
func (s *Stack) PopTensor() *tensor.Tensor {
	t, ok := s.Pop().(*tensor.Tensor)
	if !ok {
		exceptions.Panicf("kernel: top of stack is not a tensor")
	}
	return t
}

// Len returns the number of operands on the stack.
func (s *Stack) Len() int { return len(s.items) }

func (s *Stack) peek(n int) []any {
	return s.items[len(s.items)-n:]
}

func (s *Stack) drop(n int) {
	s.items = s.items[:len(s.items)-n]
}
