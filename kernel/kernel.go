// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

// Package kernel compiles an acyclic dataflow graph of elementwise and
// broadcastable tensor operators into one fused callable, and runs it.
//
// Compilation happens on the first Run: the kernel binds each graph input
// to a symbolic buffer or scalar, lowers every node to a scalar expression
// per output element (broadcasting and promoting types as it goes), picks
// a backend from the device of the first tensor argument, restructures the
// loops for that backend, and hands the resulting statement tree to the
// backend's code generator. Subsequent runs only bind live shapes, strides
// and data to the compiled callable.
//
// A Kernel locks onto its backend at the first Run. Callers must serialize
// the first invocation; afterwards the compiled kernel may be invoked
// concurrently if the backend supports it.
package kernel

import (
	"fmt"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"k8s.io/klog/v2"

	"github.com/tensorfuse/tensorfuse/codegen"
	"github.com/tensorfuse/tensorfuse/expr"
	"github.com/tensorfuse/tensorfuse/graph"
	"github.com/tensorfuse/tensorfuse/tensor"
)

// Kernel is one compiled fused operator. Create with New, execute with Run.
type Kernel struct {
	g    *graph.Graph
	name string

	compileOnce sync.Once
	state       backendState

	cg   codegen.CodeGen
	plan *runPlan
}

// New wraps a graph for fused compilation. No work happens until the first
// Run, which compiles for the backend implied by the call's tensor devices.
func New(g *graph.Graph) *Kernel {
	return &Kernel{g: g, name: g.Name()}
}

// BackendType returns the locked backend, or BackendUninitialized before
// the first Run.
func (k *Kernel) BackendType() BackendType { return k.state.backendType }

// runPlan is the plain-data residue of compilation: how to turn live
// operands into the compiled callable's argument list and how to shape the
// outputs. It deliberately holds no expression handles, so the arena can be
// finalized as soon as code generation ends.
type runPlan struct {
	args    []argSpec
	outputs []outputSpec
}

type axisVar struct {
	axis int
	key  int // Size-variable key, for resolving output shapes.
}

type argSpec struct {
	isTensor   bool
	isFloat    bool
	sizeAxes   []axisVar // Axes bound to dynamic-size variables.
	strideAxes []int     // Axes bound to stride variables, in walk order.
}

type dimSpec struct {
	key      int // Size-variable key, or -1 for a constant.
	constVal int
}

type outputSpec struct {
	isFloat bool
	dims    []dimSpec
}

// binder maps graph inputs to symbolic tensors or scalar parameters and
// accumulates the compiled kernel's formal parameter list.
type binder struct {
	ctx      *lowerCtx
	params   []codegen.Param
	args     []argSpec
	sizeKeys map[expr.Expr]int
}

func (b *binder) bind(v *graph.Value) {
	a := b.ctx.a
	switch typ := v.Type().(type) {
	case graph.TensorType:
		buf := a.NewBuffer(v.Name(), typ.DType)
		spec := argSpec{isTensor: true, isFloat: typ.DType == dtypes.Float32}

		dims := make([]expr.Expr, typ.Rank())
		var sizeVars []expr.Expr
		for axis, size := range typ.Sizes {
			if size >= 0 {
				dims[axis] = a.IntImm(int32(size))
				continue
			}
			sv := a.Var(fmt.Sprintf("%s_size%d", v.Name(), axis), dtypes.Int32)
			key := len(b.sizeKeys)
			b.sizeKeys[sv] = key
			spec.sizeAxes = append(spec.sizeAxes, axisVar{axis: axis, key: key})
			sizeVars = append(sizeVars, sv)
			dims[axis] = sv
		}

		var strideVars []expr.Expr
		b.ctx.tensors[v] = a.Compute(v.Name(), expr.DimArgsFromExprs(dims),
			func(axes []expr.Expr) expr.Expr {
				// Walk axes innermost to outermost, accumulating
				// index += axis*stride with the running stride growing by
				// each axis's extent. A non-contiguous axis replaces the
				// running stride with a fresh run-time variable, and the
				// accumulation continues from that variable outward.
				index := a.IntImm(0)
				stride := a.IntImm(1)
				for i := typ.Rank() - 1; i >= 0; i-- {
					if typ.Contiguity != nil && !typ.Contiguity[i] {
						sv := a.Var(fmt.Sprintf("%s_stride%d", v.Name(), i), dtypes.Int32)
						spec.strideAxes = append(spec.strideAxes, i)
						strideVars = append(strideVars, sv)
						stride = sv
					}
					index = index.Add(axes[i].Mul(stride))
					stride = stride.Mul(dims[i])
				}
				return a.Load(buf, index)
			})

		b.params = append(b.params, codegen.BufferParam(buf))
		for _, sv := range sizeVars {
			b.params = append(b.params, codegen.VarParam(sv))
		}
		for _, sv := range strideVars {
			b.params = append(b.params, codegen.VarParam(sv))
		}
		b.args = append(b.args, spec)

	case graph.ScalarType:
		sv := a.Var(v.Name(), typ.DType)
		b.ctx.scalars[v] = sv
		b.params = append(b.params, codegen.VarParam(sv))
		b.args = append(b.args, argSpec{isFloat: typ.DType == dtypes.Float32})

	default:
		exceptions.Panicf("kernel: unsupported input type %v for %q", v.Type(), v.Name())
	}
}

// compile lowers the graph, restructures for the locked backend and builds
// the compiled callable plus the run plan. It runs exactly once, from Run.
func (k *Kernel) compile() {
	a := expr.NewArena()
	defer a.Finalize()

	ctx := &lowerCtx{
		a:       a,
		tensors: map[*graph.Value]*expr.Tensor{},
		scalars: map[*graph.Value]expr.Expr{},
	}
	b := &binder{ctx: ctx, sizeKeys: map[expr.Expr]int{}}
	for _, in := range k.g.Inputs() {
		b.bind(in)
	}

	for _, n := range k.g.Nodes() {
		switch n.Kind() {
		case graph.OpConstant:
			v := n.Outputs()[0]
			switch lit := n.Literal(); lit.Kind {
			case graph.LiteralFloat:
				ctx.scalars[v] = a.FloatImm(float32(lit.F))
			case graph.LiteralInt:
				ctx.scalars[v] = a.IntImm(int32(lit.I))
			case graph.LiteralNone:
				// Absent-bound marker; consumers inspect it structurally.
			}
		case graph.OpListConstruct:
			// Structural marker; cat reads through it.
		default:
			used := false
			for _, out := range n.Outputs() {
				used = used || out.HasUses()
			}
			if !used {
				continue
			}
			lower, found := lowerings[n.Kind()]
			if !found {
				exceptions.Panicf("kernel: unhandled node kind %s", n.Kind())
			}
			lower(ctx, n)
		}
	}

	outputs := k.g.Outputs()
	outTensors := make([]*expr.Tensor, len(outputs))
	outBuffers := make([]expr.Buffer, len(outputs))
	outSpecs := make([]outputSpec, len(outputs))
	params := b.params
	for i, v := range outputs {
		t, found := ctx.tensors[v]
		if !found {
			exceptions.Panicf("kernel: output %q was never lowered", v.Name())
		}
		outTensors[i] = t
		outBuffers[i] = a.NewBuffer(t.Name()+"_out", t.DType())
		outSpecs[i] = k.outputSpecOf(t, b.sizeKeys)
		params = append(params, codegen.BufferParam(outBuffers[i]))
	}

	var sched *expr.Schedule
	if k.state.backendType == BackendGPU {
		sched = lowerGPU(a, outTensors, outBuffers)
	} else {
		sched = expr.NewSchedule(a, outTensors, outBuffers)
	}
	stmt := sched.Lower()

	cg, err := codegen.New(backendName(k.state.backendType), k.name, stmt, params)
	if err != nil {
		exceptions.Panicf("kernel %q: %v", k.name, err)
	}
	k.cg = cg
	k.plan = &runPlan{args: b.args, outputs: outSpecs}
	klog.V(1).Infof("kernel %q compiled for backend %s on device %s",
		k.name, k.state.backendType, k.state.device)
}

// outputSpecOf captures an output's shape as plain data: constants stay
// constants, dynamic-size variables become keys resolved per call from the
// observed input sizes.
func (k *Kernel) outputSpecOf(t *expr.Tensor, sizeKeys map[expr.Expr]int) outputSpec {
	spec := outputSpec{isFloat: t.DType() == dtypes.Float32}
	for i := 0; i < t.Rank(); i++ {
		d := t.Dim(i)
		switch d.Kind() {
		case expr.KindIntImm:
			spec.dims = append(spec.dims, dimSpec{key: -1, constVal: int(d.IntImmValue())})
		case expr.KindVar:
			key, found := sizeKeys[d]
			if !found {
				exceptions.Panicf("kernel %q: output %q dimension %d uses a size variable no input binds",
					k.name, t.Name(), i)
			}
			spec.dims = append(spec.dims, dimSpec{key: key})
		default:
			exceptions.Panicf("kernel %q: output %q dimension %d (%s) is not resolvable at run time",
				k.name, t.Name(), i, d)
		}
	}
	return spec
}

// Run consumes the top len(inputs) operands of the stack and replaces them
// with the kernel's outputs, in declared order. The first call compiles;
// every call validates that the operand device still maps to the locked
// backend.
func (k *Kernel) Run(stack *Stack) {
	nIn := len(k.g.Inputs())
	if stack.Len() < nIn {
		exceptions.Panicf("kernel %q: stack has %d operands, want %d", k.name, stack.Len(), nIn)
	}
	operands := stack.peek(nIn)

	device := tensor.DeviceInvalid
	for _, op := range operands {
		if t, ok := op.(*tensor.Tensor); ok {
			device = t.Device()
			break
		}
	}
	if device == tensor.DeviceInvalid {
		exceptions.Panicf("kernel %q: no tensor inputs to infer a device from", k.name)
	}
	want := pickBackend(device)

	k.compileOnce.Do(func() {
		k.state = backendState{backendType: want, device: device}
		k.compile()
	})
	if want != k.state.backendType {
		exceptions.Panicf("kernel %q: inconsistent backend: locked to %s, but device %s requires %s",
			k.name, k.state.backendType, device, want)
	}

	sizeValues := map[int]int32{}
	var args []codegen.CallArg
	for i, spec := range k.plan.args {
		if !spec.isTensor {
			args = append(args, scalarArg(k.name, operands[i], spec.isFloat))
			continue
		}
		t, ok := operands[i].(*tensor.Tensor)
		if !ok {
			exceptions.Panicf("kernel %q: operand %d must be a tensor, got %T", k.name, i, operands[i])
		}
		if spec.isFloat != (t.DType() == dtypes.Float32) {
			exceptions.Panicf("kernel %q: operand %d has dtype %s, which does not match the compiled kernel",
				k.name, i, t.DType())
		}
		if spec.isFloat {
			args = append(args, codegen.F32sArg(t.Float32s()))
		} else {
			args = append(args, codegen.I32sArg(t.Int32s()))
		}
		for _, sv := range spec.sizeAxes {
			live := int32(t.Dim(sv.axis))
			sizeValues[sv.key] = live
			args = append(args, codegen.I32Arg(live))
		}
		for _, axis := range spec.strideAxes {
			args = append(args, codegen.I32Arg(int32(t.Stride(axis))))
		}
	}

	outs := make([]*tensor.Tensor, len(k.plan.outputs))
	for i, spec := range k.plan.outputs {
		dims := make([]int, len(spec.dims))
		for j, d := range spec.dims {
			if d.key < 0 {
				dims[j] = d.constVal
				continue
			}
			live, found := sizeValues[d.key]
			if !found {
				exceptions.Panicf("kernel %q: output %d dimension %d depends on an unbound size variable",
					k.name, i, j)
			}
			dims[j] = int(live)
		}
		dtype := dtypes.Int32
		if spec.isFloat {
			dtype = dtypes.Float32
		}
		outs[i] = tensor.New(dtype, k.state.device, dims...)
		if spec.isFloat {
			args = append(args, codegen.F32sArg(outs[i].Float32s()))
		} else {
			args = append(args, codegen.I32sArg(outs[i].Int32s()))
		}
	}

	k.cg.Call(args)

	stack.drop(nIn)
	for _, out := range outs {
		stack.Push(out)
	}
}

func scalarArg(name string, op any, isFloat bool) codegen.CallArg {
	if isFloat {
		switch v := op.(type) {
		case float64:
			return codegen.F32Arg(float32(v))
		case float32:
			return codegen.F32Arg(v)
		case int:
			return codegen.F32Arg(float32(v))
		case int64:
			return codegen.F32Arg(float32(v))
		}
		exceptions.Panicf("kernel %q: operand %v (%T) is not convertible to a float scalar", name, op, op)
	}
	switch v := op.(type) {
	case int:
		return codegen.I32Arg(int32(v))
	case int32:
		return codegen.I32Arg(v)
	case int64:
		return codegen.I32Arg(int32(v))
	}
	exceptions.Panicf("kernel %q: operand %v (%T) is not convertible to an integer scalar", name, op, op)
	return codegen.CallArg{}
}
