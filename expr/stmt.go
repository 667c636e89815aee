// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// StmtKind discriminates the statement node types.
type StmtKind uint8

const (
	StmtInvalid StmtKind = iota
	StmtBlock
	StmtFor
	StmtIf
	StmtStore
)

// GPUAxis marks a loop as bound to a GPU execution axis. Loops bound to an
// axis are not emitted as loops by GPU code generators: their variable is
// taken from the corresponding hardware index. CPU code generators execute
// them as ordinary sequential loops.
type GPUAxis uint8

const (
	AxisNone GPUAxis = iota
	AxisBlock
	AxisThread
)

type stmtNode struct {
	kind    StmtKind
	body    []int32 // Block children, or single body for For/If.
	loopVar int32
	extent  int32
	cond    int32
	buf     int32
	index   int32
	value   int32
	axis    GPUAxis
}

// Stmt is a handle to one statement node in an Arena.
// The zero value is invalid.
type Stmt struct {
	a  *Arena
	id int32
}

// Valid reports whether s refers to a node.
func (s Stmt) Valid() bool { return s.a != nil }

func (s Stmt) node() *stmtNode {
	s.a.alive()
	return &s.a.stmts[s.id]
}

func (a *Arena) newStmt(n stmtNode) Stmt {
	a.alive()
	a.stmts = append(a.stmts, n)
	return Stmt{a: a, id: int32(len(a.stmts) - 1)}
}

// Block groups statements to run in order.
func (a *Arena) Block(stmts ...Stmt) Stmt {
	n := stmtNode{kind: StmtBlock, body: make([]int32, len(stmts))}
	for i, s := range stmts {
		n.body[i] = s.id
	}
	return a.newStmt(n)
}

// For runs body with loopVar taking values 0, 1, ..., extent-1.
// Every loop in this engine starts at zero.
func (a *Arena) For(loopVar, extent Expr, body Stmt) Stmt {
	if loopVar.Kind() != KindVar || loopVar.DType() != dtypes.Int32 {
		exceptions.Panicf("expr: For loop variable must be an Int32 Var")
	}
	return a.newStmt(stmtNode{kind: StmtFor, loopVar: loopVar.id, extent: extent.id, body: []int32{body.id}})
}

// If runs then only when cond evaluates to a non-zero value.
// Used for the out-of-range masks introduced by SplitWithMask.
func (a *Arena) If(cond Expr, then Stmt) Stmt {
	return a.newStmt(stmtNode{kind: StmtIf, cond: cond.id, body: []int32{then.id}})
}

// Store writes value into buffer at the given Int32 flat index.
func (a *Arena) Store(buffer Buffer, index, value Expr) Stmt {
	if index.DType() != dtypes.Int32 {
		exceptions.Panicf("expr: Store index must be Int32, got %s", index.DType())
	}
	if value.DType() != buffer.DType() {
		exceptions.Panicf("expr: Store of %s value into %s buffer %q", value.DType(), buffer.DType(), buffer.Name())
	}
	return a.newStmt(stmtNode{kind: StmtStore, buf: buffer.id, index: index.id, value: value.id})
}

// BindGPUAxis marks a For loop as bound to the given GPU axis.
func (s Stmt) BindGPUAxis(axis GPUAxis) {
	n := s.node()
	if n.kind != StmtFor {
		exceptions.Panicf("expr: BindGPUAxis on non-For statement")
	}
	n.axis = axis
}

// Kind returns the statement kind.
func (s Stmt) Kind() StmtKind { return s.node().kind }

// Body returns the children of a Block.
func (s Stmt) Body() []Stmt {
	n := s.node()
	if n.kind != StmtBlock {
		exceptions.Panicf("expr: Body on %v statement", n.kind)
	}
	out := make([]Stmt, len(n.body))
	for i, id := range n.body {
		out[i] = Stmt{a: s.a, id: id}
	}
	return out
}

// LoopVar returns the loop variable of a For.
func (s Stmt) LoopVar() Expr {
	n := s.node()
	if n.kind != StmtFor {
		exceptions.Panicf("expr: LoopVar on %v statement", n.kind)
	}
	return Expr{a: s.a, id: n.loopVar}
}

// LoopExtent returns the (exclusive) upper bound of a For.
func (s Stmt) LoopExtent() Expr {
	n := s.node()
	if n.kind != StmtFor {
		exceptions.Panicf("expr: LoopExtent on %v statement", n.kind)
	}
	return Expr{a: s.a, id: n.extent}
}

// LoopBody returns the body of a For.
func (s Stmt) LoopBody() Stmt {
	n := s.node()
	if n.kind != StmtFor {
		exceptions.Panicf("expr: LoopBody on %v statement", n.kind)
	}
	return Stmt{a: s.a, id: n.body[0]}
}

// LoopGPUAxis returns the GPU axis binding of a For.
func (s Stmt) LoopGPUAxis() GPUAxis { return s.node().axis }

// IfCond returns the condition of an If.
func (s Stmt) IfCond() Expr {
	n := s.node()
	if n.kind != StmtIf {
		exceptions.Panicf("expr: IfCond on %v statement", n.kind)
	}
	return Expr{a: s.a, id: n.cond}
}

// IfBody returns the guarded statement of an If.
func (s Stmt) IfBody() Stmt {
	n := s.node()
	if n.kind != StmtIf {
		exceptions.Panicf("expr: IfBody on %v statement", n.kind)
	}
	return Stmt{a: s.a, id: n.body[0]}
}

// StoreBuffer returns the destination buffer of a Store.
func (s Stmt) StoreBuffer() Buffer {
	n := s.node()
	if n.kind != StmtStore {
		exceptions.Panicf("expr: StoreBuffer on %v statement", n.kind)
	}
	return Buffer{a: s.a, id: n.buf}
}

// StoreIndex returns the flat index expression of a Store.
func (s Stmt) StoreIndex() Expr {
	n := s.node()
	if n.kind != StmtStore {
		exceptions.Panicf("expr: StoreIndex on %v statement", n.kind)
	}
	return Expr{a: s.a, id: n.index}
}

// StoreValue returns the stored expression of a Store.
func (s Stmt) StoreValue() Expr {
	n := s.node()
	if n.kind != StmtStore {
		exceptions.Panicf("expr: StoreValue on %v statement", n.kind)
	}
	return Expr{a: s.a, id: n.value}
}
