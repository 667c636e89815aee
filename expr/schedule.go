// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Schedule turns a set of output symbolic tensors into nested loop
// statements, one loop nest per output, storing each element into the
// output's buffer at its row-major flat index.
//
// Loop transformations (SplitWithMask, BindGPU) restructure a nest before
// Lower freezes it into a statement tree.
type Schedule struct {
	a     *Arena
	nests []*loopNest
}

type loopInfo struct {
	v      Expr // Int32 loop variable.
	extent Expr
	axis   GPUAxis
}

type loopNest struct {
	loops []loopInfo // Outermost first.
	buf   Buffer
	index Expr
	value Expr
	masks []Expr // Out-of-range guards introduced by splits.
}

// NewSchedule builds the default loop nest for every output tensor: one
// loop per axis, outermost first, storing into the corresponding buffer.
func NewSchedule(a *Arena, outputs []*Tensor, buffers []Buffer) *Schedule {
	if len(outputs) != len(buffers) {
		exceptions.Panicf("expr: NewSchedule got %d outputs but %d buffers", len(outputs), len(buffers))
	}
	s := &Schedule{a: a}
	for i, t := range outputs {
		nest := &loopNest{buf: buffers[i], value: t.body}
		index := a.IntImm(0)
		for axis := 0; axis < t.Rank(); axis++ {
			nest.loops = append(nest.loops, loopInfo{v: t.axes[axis], extent: t.dims[axis]})
			if axis == 0 {
				index = t.axes[axis]
			} else {
				index = index.Mul(t.dims[axis]).Add(t.axes[axis])
			}
		}
		nest.index = index
		s.nests = append(s.nests, nest)
	}
	return s
}

// NumLoops returns the current number of loops of the given output's nest.
func (s *Schedule) NumLoops(output int) int {
	return len(s.nests[output].loops)
}

// SplitWithMask splits the given loop of an output's nest by factor,
// producing an outer loop of extent ceil(extent/factor) and an inner loop
// of extent factor. The original loop variable is replaced everywhere by
// outer*factor+inner. When the split does not divide the extent evenly (or
// the extent is not a compile-time constant), an out-of-range guard is
// added around the nest's body. Returns the indices of the outer and inner
// loops.
func (s *Schedule) SplitWithMask(output, loop, factor int) (outer, inner int) {
	if factor <= 0 {
		exceptions.Panicf("expr: SplitWithMask factor must be positive, got %d", factor)
	}
	a := s.a
	nest := s.nests[output]
	l := nest.loops[loop]

	outerVar := a.Var(l.v.Name()+"_outer", dtypes.Int32)
	innerVar := a.Var(l.v.Name()+"_inner", dtypes.Int32)
	factorImm := a.IntImm(int32(factor))
	combined := outerVar.Mul(factorImm).Add(innerVar)

	subs := map[Expr]Expr{l.v: combined}
	nest.index = a.Substitute(nest.index, subs)
	nest.value = a.Substitute(nest.value, subs)
	for i, mask := range nest.masks {
		nest.masks[i] = a.Substitute(mask, subs)
	}

	var outerExtent Expr
	needMask := true
	if l.extent.Kind() == KindIntImm {
		n := l.extent.IntImmValue()
		outerExtent = a.IntImm((n + int32(factor) - 1) / int32(factor))
		needMask = n%int32(factor) != 0
	} else {
		outerExtent = l.extent.Add(factorImm.Sub(a.IntImm(1))).Div(factorImm)
	}
	if needMask {
		nest.masks = append(nest.masks,
			a.CompareSelect(combined, l.extent, a.IntImm(1), a.IntImm(0), CmpLT))
	}

	replacement := []loopInfo{
		{v: outerVar, extent: outerExtent},
		{v: innerVar, extent: factorImm},
	}
	nest.loops = append(nest.loops[:loop], append(replacement, nest.loops[loop+1:]...)...)
	return loop, loop + 1
}

// BindGPU binds two loops of an output's nest to the GPU block and thread
// axes. The thread loop's extent becomes the workgroup size and the block
// loop's extent the dispatch count.
func (s *Schedule) BindGPU(output, blockLoop, threadLoop int) {
	nest := s.nests[output]
	nest.loops[blockLoop].axis = AxisBlock
	nest.loops[threadLoop].axis = AxisThread
}

// Lower freezes the schedule into a statement tree: per output, the store
// wrapped in its masks (innermost) and loops (outermost first).
func (s *Schedule) Lower() Stmt {
	a := s.a
	roots := make([]Stmt, len(s.nests))
	for i, nest := range s.nests {
		body := a.Store(nest.buf, nest.index, nest.value)
		for m := len(nest.masks) - 1; m >= 0; m-- {
			body = a.If(nest.masks[m], body)
		}
		for l := len(nest.loops) - 1; l >= 0; l-- {
			loop := nest.loops[l]
			f := a.For(loop.v, loop.extent, body)
			if loop.axis != AxisNone {
				f.BindGPUAxis(loop.axis)
			}
			body = f
		}
		roots[i] = body
	}
	return a.Block(roots...)
}
