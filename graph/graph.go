// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

// Package graph defines the acyclic dataflow subgraph the kernel compiler
// consumes: an ordered list of typed input values, interior operator nodes,
// and ordered tensor-valued outputs.
//
// Graphs are produced upstream (e.g. by a pattern-substitution pass over a
// larger program) and are read-only for the whole compilation. The builder
// methods here exist for that producer and for tests; they do no shape or
// type inference; correctness of the incoming graph is the producer's job.
package graph

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// Value is one edge of the dataflow graph: a graph input or a node output.
type Value struct {
	id        int
	name      string
	typ       Type
	producer  *Node // nil for graph inputs.
	outputIdx int   // Index among the producer's outputs.
	uses      int
}

// ID returns a graph-unique identifier for the value.
func (v *Value) ID() int { return v.id }

// Name returns the value's debug name.
func (v *Value) Name() string { return v.name }

// Type returns the declared logical type.
func (v *Value) Type() Type { return v.typ }

// Producer returns the node that computes this value, or nil for inputs.
func (v *Value) Producer() *Node { return v.producer }

// OutputIndex returns the value's index among its producer's outputs
// (e.g. which chunk of a ConstantChunk).
func (v *Value) OutputIndex() int { return v.outputIdx }

// HasUses reports whether the value feeds any node or graph output.
func (v *Value) HasUses() bool { return v.uses > 0 }

// Node is one operator application.
type Node struct {
	kind    OpKind
	inputs  []*Value
	outputs []*Value

	literal     *Literal // Payload of Constant nodes.
	dim, chunks int      // Attributes of ConstantChunk nodes.
}

// Kind returns the operator identity.
func (n *Node) Kind() OpKind { return n.kind }

// Inputs returns the ordered operand values.
func (n *Node) Inputs() []*Value { return n.inputs }

// Input returns the i-th operand value.
func (n *Node) Input(i int) *Value { return n.inputs[i] }

// Outputs returns the ordered produced values.
func (n *Node) Outputs() []*Value { return n.outputs }

// Literal returns the constant payload, or nil for non-Constant nodes.
func (n *Node) Literal() *Literal { return n.literal }

// ChunkDim returns the split axis of a ConstantChunk node.
func (n *Node) ChunkDim() int { return n.dim }

// ChunkChunks returns the number of chunks of a ConstantChunk node.
func (n *Node) ChunkChunks() int { return n.chunks }

// Graph is an acyclic dataflow of elementwise/broadcast operators.
type Graph struct {
	name    string
	inputs  []*Value
	nodes   []*Node
	outputs []*Value
	nextID  int
}

// New creates an empty graph.
func New(name string) *Graph {
	return &Graph{name: name}
}

// Name returns the graph's name.
func (g *Graph) Name() string { return g.name }

// Inputs returns the declared inputs, in declaration order.
func (g *Graph) Inputs() []*Value { return g.inputs }

// Nodes returns the interior nodes in topological (insertion) order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Outputs returns the declared outputs, in declaration order.
func (g *Graph) Outputs() []*Value { return g.outputs }

func (g *Graph) newValue(name string, typ Type, producer *Node, outputIdx int) *Value {
	v := &Value{id: g.nextID, name: name, typ: typ, producer: producer, outputIdx: outputIdx}
	g.nextID++
	return v
}

// Input declares a graph input of the given type and returns its value.
func (g *Graph) Input(name string, typ Type) *Value {
	if typ == nil {
		exceptions.Panicf("graph: input %q declared with nil type", name)
	}
	v := g.newValue(name, typ, nil, 0)
	g.inputs = append(g.inputs, v)
	return v
}

// Constant adds a constant node holding the given literal.
func (g *Graph) Constant(lit Literal) *Value {
	n := &Node{kind: OpConstant, literal: &lit}
	v := g.newValue(lit.String(), nil, n, 0)
	n.outputs = []*Value{v}
	g.nodes = append(g.nodes, n)
	return v
}

// Apply adds a single-output node of the given kind. typ declares the
// output's logical type; it may be nil for structural nodes whose output
// type is never consulted (ListConstruct).
func (g *Graph) Apply(kind OpKind, typ Type, inputs ...*Value) *Value {
	n := &Node{kind: kind, inputs: inputs}
	for _, in := range inputs {
		in.uses++
	}
	v := g.newValue(fmt.Sprintf("%s.%d", kind, g.nextID), typ, n, 0)
	n.outputs = []*Value{v}
	g.nodes = append(g.nodes, n)
	return v
}

// Chunk adds a ConstantChunk node splitting input into chunks equal parts
// along axis dim, returning one value per chunk with the declared types.
func (g *Graph) Chunk(input *Value, dim, chunks int, typs []Type) []*Value {
	if len(typs) != chunks {
		exceptions.Panicf("graph: Chunk into %d parts declared %d output types", chunks, len(typs))
	}
	n := &Node{kind: OpConstantChunk, inputs: []*Value{input}, dim: dim, chunks: chunks}
	input.uses++
	out := make([]*Value, chunks)
	for i := range out {
		out[i] = g.newValue(fmt.Sprintf("chunk.%d.%d", g.nextID, i), typs[i], n, i)
		n.outputs = append(n.outputs, out[i])
	}
	g.nodes = append(g.nodes, n)
	return out
}

// Output marks a value as a graph output. Outputs must be tensor-typed.
func (g *Graph) Output(v *Value) {
	if _, ok := v.typ.(TensorType); !ok {
		exceptions.Panicf("graph: output %q must be tensor-typed, got %v", v.name, v.typ)
	}
	v.uses++
	g.outputs = append(g.outputs, v)
}
