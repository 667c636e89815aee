// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package wgsl

import (
	"encoding/binary"
	"math"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/tensorfuse/tensorfuse/codegen"
	"github.com/tensorfuse/tensorfuse/expr"
)

// hostExpr is a plain-data snapshot of an Int32 extent expression, kept so
// the dispatch count can be evaluated on the host after the source arena is
// gone. Only the shapes block-loop extents take are supported: immediates,
// scalar parameters and integer arithmetic.
type hostExpr struct {
	kind   expr.ExprKind
	ival   int32
	argIdx int // CallArg position, for KindVar.
	op     expr.BinaryOp
	args   []*hostExpr
}

func (g *generator) hostCompile(e expr.Expr) (*hostExpr, error) {
	switch e.Kind() {
	case expr.KindIntImm:
		return &hostExpr{kind: expr.KindIntImm, ival: e.IntImmValue()}, nil
	case expr.KindVar:
		for i, p := range g.params {
			if p.Kind == codegen.ParamVar && p.Var == e {
				return &hostExpr{kind: expr.KindVar, argIdx: i}, nil
			}
		}
		return nil, errors.Errorf("wgsl: block extent references variable %q which is not a kernel parameter", e.Name())
	case expr.KindBinary:
		lhs, err := g.hostCompile(e.Arg(0))
		if err != nil {
			return nil, err
		}
		rhs, err := g.hostCompile(e.Arg(1))
		if err != nil {
			return nil, err
		}
		return &hostExpr{kind: expr.KindBinary, op: e.BinaryOp(), args: []*hostExpr{lhs, rhs}}, nil
	}
	return nil, errors.Errorf("wgsl: block extent %s is not host-evaluable", e)
}

func (h *hostExpr) eval(args []codegen.CallArg) int32 {
	switch h.kind {
	case expr.KindIntImm:
		return h.ival
	case expr.KindVar:
		return args[h.argIdx].I32
	case expr.KindBinary:
		a, b := h.args[0].eval(args), h.args[1].eval(args)
		switch h.op {
		case expr.OpAdd:
			return a + b
		case expr.OpSub:
			return a - b
		case expr.OpMul:
			return a * b
		case expr.OpDiv:
			return a / b
		case expr.OpMod:
			return a % b
		case expr.OpMin:
			return min(a, b)
		case expr.OpMax:
			return max(a, b)
		}
	}
	exceptions.Panicf("wgsl: unhandled host expression")
	return 0
}

// Shared WebGPU device state, acquired on first kernel call.
var (
	deviceOnce sync.Once
	deviceErr  error
	gpuDevice  *wgpu.Device
	gpuQueue   *wgpu.Queue
)

func acquireDevice() (*wgpu.Device, *wgpu.Queue, error) {
	deviceOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				deviceErr = errors.Errorf("wgsl: native WebGPU library not available: %v", r)
			}
		}()
		instance, err := wgpu.CreateInstance(nil)
		if err != nil {
			deviceErr = errors.WithMessage(err, "wgsl: creating instance")
			return
		}
		adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreferenceHighPerformance,
		})
		if err != nil {
			deviceErr = errors.WithMessage(err, "wgsl: requesting adapter")
			return
		}
		device, err := adapter.RequestDevice(nil)
		if err != nil {
			deviceErr = errors.WithMessage(err, "wgsl: requesting device")
			return
		}
		gpuDevice = device
		gpuQueue = device.GetQueue()
		klog.V(1).Info("wgsl: WebGPU device acquired")
	})
	return gpuDevice, gpuQueue, deviceErr
}

// kernel is the compiled form: shader source plus the parameter layout and
// the host dispatch plan. The pipeline is built lazily on first call so
// that compiling a kernel never requires a GPU.
type kernel struct {
	name string
	gen  *generator

	pipelineOnce sync.Once
	pipeline     *wgpu.ComputePipeline
	pipelineErr  error
}

func newKernel(kernelName string, stmt expr.Stmt, params []codegen.Param) (codegen.CodeGen, error) {
	g, err := newGenerator(kernelName, stmt, params)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("wgsl: kernel %q shader:\n%s", kernelName, g.source)
	return &kernel{name: kernelName, gen: g}, nil
}

// Name implements codegen.CodeGen.
func (k *kernel) Name() string { return Name }

// Source returns the generated WGSL shader text.
func (k *kernel) Source() string { return k.gen.source }

func (k *kernel) ensurePipeline(device *wgpu.Device) error {
	k.pipelineOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				k.pipelineErr = errors.Errorf("wgsl: building pipeline for kernel %q: %v", k.name, r)
			}
		}()
		shader := device.CreateShaderModuleWGSL(k.gen.source)
		k.pipeline = device.CreateComputePipelineSimple(nil, shader, "main")
	})
	return k.pipelineErr
}

// Call implements codegen.CodeGen. Buffer arguments are uploaded, the
// shader dispatched, and written buffers copied back into the argument
// slices.
func (k *kernel) Call(args []codegen.CallArg) {
	if len(args) != k.gen.numParams {
		exceptions.Panicf("wgsl: kernel %q called with %d arguments, wants %d",
			k.name, len(args), k.gen.numParams)
	}
	device, queue, err := acquireDevice()
	if err != nil {
		panic(err)
	}
	if err := k.ensurePipeline(device); err != nil {
		panic(err)
	}

	type boundBuffer struct {
		gpu      *wgpu.Buffer
		size     uint64
		arg      int
		writable bool
	}
	var bound []boundBuffer
	var entries []wgpu.BindGroupEntry
	binding := uint32(0)
	for _, bb := range k.gen.bindings {
		data := bufferBytes(args[bb.argIdx], bb)
		usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
		if bb.writable {
			usage |= wgpu.BufferUsageCopySrc
		}
		size := uint64(len(data))
		if size == 0 {
			size = 4
		}
		buf := device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage:            usage,
			Size:             size,
			MappedAtCreation: wgpu.True,
		})
		mapped := unsafe.Slice((*byte)(buf.GetMappedRange(0, size)), size)
		copy(mapped, data)
		buf.Unmap()
		bound = append(bound, boundBuffer{gpu: buf, size: size, arg: bb.argIdx, writable: bb.writable})
		entries = append(entries, wgpu.BufferBindingEntry(binding, buf, 0, size))
		binding++
	}
	defer func() {
		for _, bb := range bound {
			bb.gpu.Release()
		}
	}()

	if len(k.gen.scalarOrder) > 0 {
		params := k.packScalars(args)
		size := uint64(len(params))
		ubuf := device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			Size:             size,
			MappedAtCreation: wgpu.True,
		})
		mapped := unsafe.Slice((*byte)(ubuf.GetMappedRange(0, size)), size)
		copy(mapped, params)
		ubuf.Unmap()
		defer ubuf.Release()
		entries = append(entries, wgpu.BufferBindingEntry(binding, ubuf, 0, size))
	}

	layout := k.pipeline.GetBindGroupLayout(0)
	bindGroup := device.CreateBindGroupSimple(layout, entries)
	defer bindGroup.Release()

	dispatch := int32(1)
	for _, extent := range k.gen.blockExtents {
		if n := extent.eval(args); n > dispatch {
			dispatch = n
		}
	}

	encoder := device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32(dispatch), 1, 1)
	pass.End()
	queue.Submit(encoder.Finish(nil))

	for _, bb := range bound {
		if !bb.writable {
			continue
		}
		k.readBack(device, queue, bb.gpu, bb.size, args[bb.arg])
	}
}

func bufferBytes(arg codegen.CallArg, bb bufBinding) []byte {
	if bb.isFloat {
		if arg.Kind != codegen.ArgFloat32s {
			exceptions.Panicf("wgsl: argument %d (%s) must be a float32 buffer", bb.argIdx, bb.name)
		}
		if len(arg.Float32s) == 0 {
			return nil
		}
		return unsafe.Slice((*byte)(unsafe.Pointer(&arg.Float32s[0])), len(arg.Float32s)*4)
	}
	if arg.Kind != codegen.ArgInt32s {
		exceptions.Panicf("wgsl: argument %d (%s) must be an int32 buffer", bb.argIdx, bb.name)
	}
	if len(arg.Int32s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&arg.Int32s[0])), len(arg.Int32s)*4)
}

// packScalars lays out the uniform block: one 4-byte field per scalar in
// parameter order, padded to the required 16-byte multiple.
func (k *kernel) packScalars(args []codegen.CallArg) []byte {
	size := (len(k.gen.scalarOrder)*4 + 15) &^ 15
	out := make([]byte, size)
	for i, field := range k.gen.scalarOrder {
		arg := args[field.argIdx]
		if field.isFloat {
			if arg.Kind != codegen.ArgF32 {
				exceptions.Panicf("wgsl: argument %d (%s) must be a float32 scalar", field.argIdx, field.name)
			}
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(arg.F32))
		} else {
			if arg.Kind != codegen.ArgI32 {
				exceptions.Panicf("wgsl: argument %d (%s) must be an int32 scalar", field.argIdx, field.name)
			}
			binary.LittleEndian.PutUint32(out[i*4:], uint32(arg.I32))
		}
	}
	return out
}

func (k *kernel) readBack(device *wgpu.Device, queue *wgpu.Queue, src *wgpu.Buffer, size uint64, arg codegen.CallArg) {
	staging := device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(device, wgpu.MapModeRead, 0, size); err != nil {
		exceptions.Panicf("wgsl: kernel %q: mapping result buffer: %v", k.name, err)
	}
	mapped := unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size)
	switch arg.Kind {
	case codegen.ArgFloat32s:
		if len(arg.Float32s) > 0 {
			copy(unsafe.Slice((*byte)(unsafe.Pointer(&arg.Float32s[0])), len(arg.Float32s)*4), mapped)
		}
	case codegen.ArgInt32s:
		if len(arg.Int32s) > 0 {
			copy(unsafe.Slice((*byte)(unsafe.Pointer(&arg.Int32s[0])), len(arg.Int32s)*4), mapped)
		}
	}
	staging.Unmap()
}

var _ codegen.CodeGen = (*kernel)(nil)
