// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

// Package wgsl implements the GPU code generation backend. It translates the
// lowered statement tree into a WGSL compute shader and dispatches it
// through WebGPU (github.com/go-webgpu/webgpu), uploading buffer arguments
// per call and reading written buffers back to host memory.
//
// Loops bound to the block axis map to workgroup_id.x and loops bound to
// the thread axis to local_invocation_id.x; unbound loops run sequentially
// inside the shader. The workgroup size is the (constant) extent of the
// thread-bound loops, and the dispatch count is the largest block-loop
// extent across the kernel's outputs, evaluated on the host per call.
package wgsl

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/tensorfuse/tensorfuse/codegen"
	"github.com/tensorfuse/tensorfuse/expr"
)

// Name under which this backend registers itself.
const Name = "wgsl"

func init() {
	codegen.Register(Name, newKernel)
}

// Source translates a lowered statement tree into WGSL shader source
// without touching any GPU device. Exposed for inspection and tests.
func Source(kernelName string, stmt expr.Stmt, params []codegen.Param) (string, error) {
	g, err := newGenerator(kernelName, stmt, params)
	if err != nil {
		return "", err
	}
	return g.source, nil
}

// generator holds everything derived from the statement tree at build time:
// the shader text, the scalar layout of the uniform block, and host-side
// expressions for the per-call dispatch count.
type generator struct {
	kernelName string
	source     string

	params        []codegen.Param
	bufNames      map[expr.Buffer]string
	scalarFields  map[expr.Expr]string
	scalarOrder   []scalarField
	localNames    map[expr.Expr]string
	used          map[string]bool
	stored        map[expr.Buffer]bool
	workgroupSize int32
	blockExtents  []*hostExpr // One per block-bound nest.

	// Plain-data call plan. The source arena is torn down after code
	// generation, so nothing evaluated per call may touch params again.
	numParams int
	bindings  []bufBinding
}

type scalarField struct {
	name    string
	isFloat bool
	argIdx  int // Position in the CallArg slice.
}

// bufBinding is the per-call snapshot of one buffer parameter, in binding
// order.
type bufBinding struct {
	argIdx   int // Position in the CallArg slice.
	name     string
	isFloat  bool
	writable bool
}

func newGenerator(kernelName string, stmt expr.Stmt, params []codegen.Param) (*generator, error) {
	g := &generator{
		kernelName:    kernelName,
		params:        params,
		bufNames:      map[expr.Buffer]string{},
		scalarFields:  map[expr.Expr]string{},
		localNames:    map[expr.Expr]string{},
		used:          map[string]bool{},
		stored:        map[expr.Buffer]bool{},
		workgroupSize: 1,
	}
	for i, p := range params {
		if p.Kind == codegen.ParamBuffer {
			g.bufNames[p.Buffer] = g.unique(p.Buffer.Name())
		} else {
			name := g.unique(p.Var.Name())
			g.scalarFields[p.Var] = name
			g.scalarOrder = append(g.scalarOrder, scalarField{
				name:    name,
				isFloat: p.Var.DType() == dtypes.Float32,
				argIdx:  i,
			})
		}
	}
	if err := g.analyze(stmt); err != nil {
		return nil, err
	}
	body, err := g.emitTopLevel(stmt)
	if err != nil {
		return nil, err
	}
	g.assemble(body)
	g.numParams = len(params)
	for i, p := range params {
		if p.Kind != codegen.ParamBuffer {
			continue
		}
		g.bindings = append(g.bindings, bufBinding{
			argIdx:   i,
			name:     g.bufNames[p.Buffer],
			isFloat:  p.Buffer.DType() == dtypes.Float32,
			writable: g.stored[p.Buffer],
		})
	}
	return g, nil
}

func (g *generator) unique(name string) string {
	clean := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return '_'
	}, name)
	if clean == "" || clean[0] >= '0' && clean[0] <= '9' {
		clean = "v" + clean
	}
	candidate := clean
	for i := 2; g.used[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d", clean, i)
	}
	g.used[candidate] = true
	return candidate
}

// analyze walks the tree once to find stored buffers, the workgroup size
// and the block-loop extents for host dispatch.
func (g *generator) analyze(s expr.Stmt) error {
	switch s.Kind() {
	case expr.StmtBlock:
		for _, child := range s.Body() {
			if err := g.analyze(child); err != nil {
				return err
			}
		}
	case expr.StmtFor:
		switch s.LoopGPUAxis() {
		case expr.AxisThread:
			extent := s.LoopExtent()
			if extent.Kind() != expr.KindIntImm {
				return errors.Errorf("wgsl: thread-bound loop extent must be constant, got %s", extent)
			}
			if extent.IntImmValue() > g.workgroupSize {
				g.workgroupSize = extent.IntImmValue()
			}
		case expr.AxisBlock:
			h, err := g.hostCompile(s.LoopExtent())
			if err != nil {
				return err
			}
			g.blockExtents = append(g.blockExtents, h)
		}
		return g.analyze(s.LoopBody())
	case expr.StmtIf:
		return g.analyze(s.IfBody())
	case expr.StmtStore:
		g.stored[s.StoreBuffer()] = true
	}
	return nil
}

// emitTopLevel treats the root block's children as independent output loop
// nests. Nests with no GPU-bound loop are executed by a single invocation.
func (g *generator) emitTopLevel(stmt expr.Stmt) (string, error) {
	nests := []expr.Stmt{stmt}
	if stmt.Kind() == expr.StmtBlock {
		nests = stmt.Body()
	}
	var b strings.Builder
	for _, nest := range nests {
		if hasGPULoop(nest) {
			if err := g.emitStmt(&b, nest, 1); err != nil {
				return "", err
			}
			continue
		}
		fmt.Fprintf(&b, "  if (workgroup_id.x == 0u && local_invocation_id.x == 0u) {\n")
		if err := g.emitStmt(&b, nest, 2); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "  }\n")
	}
	return b.String(), nil
}

func hasGPULoop(s expr.Stmt) bool {
	switch s.Kind() {
	case expr.StmtBlock:
		for _, child := range s.Body() {
			if hasGPULoop(child) {
				return true
			}
		}
	case expr.StmtFor:
		if s.LoopGPUAxis() != expr.AxisNone {
			return true
		}
		return hasGPULoop(s.LoopBody())
	case expr.StmtIf:
		return hasGPULoop(s.IfBody())
	}
	return false
}

func (g *generator) emitStmt(b *strings.Builder, s expr.Stmt, depth int) error {
	indent := strings.Repeat("  ", depth)
	switch s.Kind() {
	case expr.StmtBlock:
		for _, child := range s.Body() {
			if err := g.emitStmt(b, child, depth); err != nil {
				return err
			}
		}
	case expr.StmtFor:
		v := g.loopVarName(s.LoopVar())
		extent, err := g.emitExpr(s.LoopExtent())
		if err != nil {
			return err
		}
		switch s.LoopGPUAxis() {
		case expr.AxisBlock:
			fmt.Fprintf(b, "%slet %s = i32(workgroup_id.x);\n", indent, v)
			fmt.Fprintf(b, "%sif (%s < %s) {\n", indent, v, extent)
		case expr.AxisThread:
			fmt.Fprintf(b, "%slet %s = i32(local_invocation_id.x);\n", indent, v)
			fmt.Fprintf(b, "%sif (%s < %s) {\n", indent, v, extent)
		default:
			fmt.Fprintf(b, "%sfor (var %s: i32 = 0; %s < %s; %s++) {\n", indent, v, v, extent, v)
		}
		if err := g.emitStmt(b, s.LoopBody(), depth+1); err != nil {
			return err
		}
		fmt.Fprintf(b, "%s}\n", indent)
	case expr.StmtIf:
		cond, err := g.emitExpr(s.IfCond())
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "%sif (%s != 0i) {\n", indent, cond)
		if err := g.emitStmt(b, s.IfBody(), depth+1); err != nil {
			return err
		}
		fmt.Fprintf(b, "%s}\n", indent)
	case expr.StmtStore:
		name, found := g.bufNames[s.StoreBuffer()]
		if !found {
			return errors.Errorf("wgsl: store to buffer %q which is not a kernel parameter", s.StoreBuffer().Name())
		}
		idx, err := g.emitExpr(s.StoreIndex())
		if err != nil {
			return err
		}
		val, err := g.emitExpr(s.StoreValue())
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "%s%s[%s] = %s;\n", indent, name, idx, val)
	default:
		return errors.Errorf("wgsl: unhandled statement kind %d", s.Kind())
	}
	return nil
}

func (g *generator) loopVarName(v expr.Expr) string {
	if name, found := g.localNames[v]; found {
		return name
	}
	name := g.unique(v.Name())
	g.localNames[v] = name
	return name
}

var binarySymbols = map[expr.BinaryOp]string{
	expr.OpAdd: "+",
	expr.OpSub: "-",
	expr.OpMul: "*",
	expr.OpDiv: "/",
	expr.OpMod: "%",
}

var compareSymbols = map[expr.CompareOp]string{
	expr.CmpEQ: "==",
	expr.CmpNE: "!=",
	expr.CmpGT: ">",
	expr.CmpGE: ">=",
	expr.CmpLT: "<",
	expr.CmpLE: "<=",
}

func (g *generator) emitExpr(e expr.Expr) (string, error) {
	switch e.Kind() {
	case expr.KindIntImm:
		return fmt.Sprintf("%di", e.IntImmValue()), nil
	case expr.KindFloatImm:
		return formatF32(e.FloatImmValue()), nil
	case expr.KindVar:
		if name, found := g.localNames[e]; found {
			return name, nil
		}
		if field, found := g.scalarFields[e]; found {
			return "params." + field, nil
		}
		return "", errors.Errorf("wgsl: free variable %q is not a kernel parameter", e.Name())
	case expr.KindBinary:
		lhs, err := g.emitExpr(e.Arg(0))
		if err != nil {
			return "", err
		}
		rhs, err := g.emitExpr(e.Arg(1))
		if err != nil {
			return "", err
		}
		switch e.BinaryOp() {
		case expr.OpMin:
			return fmt.Sprintf("min(%s, %s)", lhs, rhs), nil
		case expr.OpMax:
			return fmt.Sprintf("max(%s, %s)", lhs, rhs), nil
		default:
			return fmt.Sprintf("(%s %s %s)", lhs, binarySymbols[e.BinaryOp()], rhs), nil
		}
	case expr.KindCompareSelect:
		lhs, err := g.emitExpr(e.Arg(0))
		if err != nil {
			return "", err
		}
		rhs, err := g.emitExpr(e.Arg(1))
		if err != nil {
			return "", err
		}
		ifTrue, err := g.emitExpr(e.Arg(2))
		if err != nil {
			return "", err
		}
		ifFalse, err := g.emitExpr(e.Arg(3))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("select(%s, %s, (%s %s %s))",
			ifFalse, ifTrue, lhs, compareSymbols[e.CompareOp()], rhs), nil
	case expr.KindIfThenElse:
		cond, err := g.emitExpr(e.Arg(0))
		if err != nil {
			return "", err
		}
		ifTrue, err := g.emitExpr(e.Arg(1))
		if err != nil {
			return "", err
		}
		ifFalse, err := g.emitExpr(e.Arg(2))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("select(%s, %s, (%s != 0i))", ifFalse, ifTrue, cond), nil
	case expr.KindCast:
		arg, err := g.emitExpr(e.Arg(0))
		if err != nil {
			return "", err
		}
		if e.DType() == dtypes.Float32 {
			return fmt.Sprintf("f32(%s)", arg), nil
		}
		return fmt.Sprintf("i32(%s)", arg), nil
	case expr.KindIntrinsic:
		return g.emitIntrinsic(e)
	case expr.KindLoad:
		name, found := g.bufNames[e.LoadBuffer()]
		if !found {
			return "", errors.Errorf("wgsl: load from buffer %q which is not a kernel parameter", e.LoadBuffer().Name())
		}
		idx, err := g.emitExpr(e.Arg(0))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s]", name, idx), nil
	}
	return "", errors.Errorf("wgsl: unhandled expression kind %d", e.Kind())
}

// WGSL builtins for the intrinsics that have a direct equivalent.
var intrinsicBuiltins = map[expr.Intrinsic]string{
	expr.IntrSqrt:  "sqrt",
	expr.IntrRsqrt: "inverseSqrt",
	expr.IntrExp:   "exp",
	expr.IntrLog:   "log",
	expr.IntrLog2:  "log2",
	expr.IntrSin:   "sin",
	expr.IntrCos:   "cos",
	expr.IntrTan:   "tan",
	expr.IntrAsin:  "asin",
	expr.IntrAcos:  "acos",
	expr.IntrAtan:  "atan",
	expr.IntrSinh:  "sinh",
	expr.IntrCosh:  "cosh",
	expr.IntrTanh:  "tanh",
	expr.IntrAbs:   "abs",
	expr.IntrCeil:  "ceil",
	expr.IntrFloor: "floor",
	expr.IntrRound: "round",
	expr.IntrTrunc: "trunc",
	expr.IntrPow:   "pow",
	expr.IntrAtan2: "atan2",
}

func (g *generator) emitIntrinsic(e expr.Expr) (string, error) {
	op := e.IntrinsicOp()
	x, err := g.emitExpr(e.Arg(0))
	if err != nil {
		return "", err
	}
	if builtin, found := intrinsicBuiltins[op]; found {
		if op.Arity() == 2 {
			y, err := g.emitExpr(e.Arg(1))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s(%s, %s)", builtin, x, y), nil
		}
		return fmt.Sprintf("%s(%s)", builtin, x), nil
	}
	switch op {
	case expr.IntrLog10:
		// log10(x) = log(x) / ln(10).
		return fmt.Sprintf("(log(%s) * 0.43429448190325176f)", x), nil
	case expr.IntrFmod:
		// WGSL float % is truncating, same as fmod.
		y, err := g.emitExpr(e.Arg(1))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %% %s)", x, y), nil
	}
	return "", errors.Errorf("wgsl: intrinsic %s has no WGSL equivalent", op.Name())
}

func formatF32(v float32) string {
	s := fmt.Sprintf("%g", v)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s + "f"
}

func (g *generator) assemble(body string) {
	var b strings.Builder
	fmt.Fprintf(&b, "// Kernel %q.\n", g.kernelName)
	binding := 0
	for _, p := range g.params {
		if p.Kind != codegen.ParamBuffer {
			continue
		}
		access := "read"
		if g.stored[p.Buffer] {
			access = "read_write"
		}
		elem := "f32"
		if p.Buffer.DType() == dtypes.Int32 {
			elem = "i32"
		}
		fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, %s> %s: array<%s>;\n",
			binding, access, g.bufNames[p.Buffer], elem)
		binding++
	}
	if len(g.scalarOrder) > 0 {
		b.WriteString("\nstruct Params {\n")
		for _, field := range g.scalarOrder {
			typ := "i32"
			if field.isFloat {
				typ = "f32"
			}
			fmt.Fprintf(&b, "    %s: %s,\n", field.name, typ)
		}
		b.WriteString("}\n")
		fmt.Fprintf(&b, "@group(0) @binding(%d) var<uniform> params: Params;\n", binding)
	}
	fmt.Fprintf(&b, "\n@compute @workgroup_size(%d)\n", g.workgroupSize)
	b.WriteString("fn main(\n")
	b.WriteString("    @builtin(workgroup_id) workgroup_id: vec3<u32>,\n")
	b.WriteString("    @builtin(local_invocation_id) local_invocation_id: vec3<u32>,\n")
	b.WriteString(") {\n")
	b.WriteString(body)
	b.WriteString("}\n")
	g.source = b.String()
}
