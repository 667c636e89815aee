// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

// Package codegen defines the code generation interface shared by the
// statement-tree backends, and a registry of named backend constructors.
//
// Backends register themselves during initialization, typically by having
// their package blank-imported (see codegen/register). The kernel compiler
// then instantiates one by name via New.
package codegen

import (
	"github.com/pkg/errors"

	"github.com/tensorfuse/tensorfuse/expr"
)

// ParamKind distinguishes the kinds of values a compiled kernel accepts.
type ParamKind int

const (
	// ParamBuffer is a flat data buffer, loaded and/or stored by the kernel.
	ParamBuffer ParamKind = iota
	// ParamVar is a scalar passed by value, e.g. a dynamic size or stride.
	ParamVar
)

// Param declares one argument of a compiled kernel, in call order.
type Param struct {
	Kind   ParamKind
	Buffer expr.Buffer // Set when Kind == ParamBuffer.
	Var    expr.Expr   // Set when Kind == ParamVar; a KindVar expression.
}

// BufferParam returns a buffer-valued parameter declaration.
func BufferParam(b expr.Buffer) Param { return Param{Kind: ParamBuffer, Buffer: b} }

// VarParam returns a scalar parameter declaration.
func VarParam(v expr.Expr) Param { return Param{Kind: ParamVar, Var: v} }

// Name returns the parameter's name, for diagnostics and shader emission.
func (p Param) Name() string {
	if p.Kind == ParamBuffer {
		return p.Buffer.Name()
	}
	return p.Var.Name()
}

// ArgKind tags a CallArg's payload.
type ArgKind int

const (
	ArgFloat32s ArgKind = iota
	ArgInt32s
	ArgI32
	ArgF32
)

// CallArg carries one runtime argument to CodeGen.Call, matched positionally
// against the Params the backend was built with.
type CallArg struct {
	Kind     ArgKind
	Float32s []float32
	Int32s   []int32
	I32      int32
	F32      float32
}

// F32sArg wraps a float32 buffer argument.
func F32sArg(data []float32) CallArg { return CallArg{Kind: ArgFloat32s, Float32s: data} }

// I32sArg wraps an int32 buffer argument.
func I32sArg(data []int32) CallArg { return CallArg{Kind: ArgInt32s, Int32s: data} }

// I32Arg wraps a scalar int32 argument.
func I32Arg(v int32) CallArg { return CallArg{Kind: ArgI32, I32: v} }

// F32Arg wraps a scalar float32 argument.
func F32Arg(v float32) CallArg { return CallArg{Kind: ArgF32, F32: v} }

// CodeGen executes a compiled kernel. Implementations hold no reference to
// the expression arena after construction; the caller may finalize it.
type CodeGen interface {
	// Name returns the backend registration name.
	Name() string

	// Call runs the kernel over the given arguments, one per Param in
	// declaration order. Output buffers are written in place.
	Call(args []CallArg)
}

// Constructor builds a backend instance from a lowered statement tree and
// its parameter declarations. It must capture everything it needs from the
// arena before returning.
type Constructor func(kernelName string, stmt expr.Stmt, params []Param) (CodeGen, error)

var registered = map[string]Constructor{}

// Register makes a backend constructor available under the given name.
// It is expected to be called from a backend package's init.
func Register(name string, ctor Constructor) {
	if _, found := registered[name]; found {
		panic(errors.Errorf("codegen backend %q registered twice", name))
	}
	registered[name] = ctor
}

// Has reports whether a backend with the given name is registered.
func Has(name string) bool {
	_, found := registered[name]
	return found
}

// New instantiates the named backend for the given kernel.
func New(name, kernelName string, stmt expr.Stmt, params []Param) (CodeGen, error) {
	ctor, found := registered[name]
	if !found {
		return nil, errors.Errorf("codegen backend %q not registered (missing import of its package?)", name)
	}
	cg, err := ctor(kernelName, stmt, params)
	if err != nil {
		return nil, errors.WithMessagef(err, "building %q codegen for kernel %q", name, kernelName)
	}
	return cg, nil
}
