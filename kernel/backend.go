// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"os"
	"strconv"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/tensorfuse/tensorfuse/codegen"
	"github.com/tensorfuse/tensorfuse/expr"
	"github.com/tensorfuse/tensorfuse/tensor"
)

// Backend registration names. Referenced as strings so that linking a
// backend in (usually via codegen/register) is what makes it available;
// the kernel package itself pulls none of them in.
const (
	irevalBackend   = "ireval"
	closuresBackend = "closures"
	wgslBackend     = "wgsl"
)

//go:generate go tool enumer -type=BackendType -trimprefix=Backend -output=gen_backendtype_enumer.go backend.go

// BackendType identifies the execution strategy a kernel locks onto at its
// first invocation.
type BackendType int

const (
	BackendUninitialized BackendType = iota
	BackendInterpreted
	BackendCPUNative
	BackendGPU
)

// GPU tiling knobs, read once per kernel at backend-lowering time. A
// negative value means "use the built-in default". Each can be set through
// the environment: TENSORFUSE_GPU_LOOP_LEVELS, TENSORFUSE_GPU_BLOCK_COUNT
// and TENSORFUSE_GPU_BLOCK_SIZE.
var (
	GPULoopLevels = -1
	GPUBlockCount = -1
	GPUBlockSize  = -1
)

func init() {
	knobFromEnv("TENSORFUSE_GPU_LOOP_LEVELS", &GPULoopLevels)
	knobFromEnv("TENSORFUSE_GPU_BLOCK_COUNT", &GPUBlockCount)
	knobFromEnv("TENSORFUSE_GPU_BLOCK_SIZE", &GPUBlockSize)
}

func knobFromEnv(key string, knob *int) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		klog.Warningf("kernel: ignoring %s=%q: %v", key, value, err)
		return
	}
	*knob = parsed
}

// backendState is the once-initialized backend lock of a kernel instance.
type backendState struct {
	backendType BackendType
	device      tensor.Device
}

// pickBackend maps a device to the backend that would serve it. It is pure;
// the lock-in mutation lives in Kernel.Run behind a sync.Once.
func pickBackend(device tensor.Device) BackendType {
	switch device {
	case tensor.DeviceCPU:
		if codegen.Has(closuresBackend) {
			return BackendCPUNative
		}
		return BackendInterpreted
	case tensor.DeviceWebGPU:
		return BackendGPU
	}
	exceptions.Panicf("kernel: invalid device %s", device)
	return BackendUninitialized
}

func backendName(t BackendType) string {
	switch t {
	case BackendInterpreted:
		return irevalBackend
	case BackendCPUNative:
		return closuresBackend
	case BackendGPU:
		return wgslBackend
	}
	exceptions.Panicf("kernel: invalid backend type %s", t)
	return ""
}

// lowerGPU restructures the output tensors for GPU execution: each output's
// index space is flattened to one linear index (row-major), and the
// flattened loop is tiled into block/thread levels per the knobs. Outputs
// with dynamic dimensions are left as untiled sequential nests, a known
// limitation.
func lowerGPU(a *expr.Arena, outputs []*expr.Tensor, buffers []expr.Buffer) *expr.Schedule {
	loopLevels := GPULoopLevels
	if loopLevels < 0 {
		loopLevels = 2
	}
	lowered := make([]*expr.Tensor, len(outputs))
	tiled := make([]bool, len(outputs))
	for i, t := range outputs {
		if t.HasDynamicDims() {
			klog.V(1).Infof("kernel: output %q has dynamic dimensions, skipping GPU tiling", t.Name())
			lowered[i] = t
			continue
		}
		lowered[i] = flattenIndex(a, t)
		tiled[i] = true
	}
	s := expr.NewSchedule(a, lowered, buffers)
	for i := range lowered {
		if !tiled[i] {
			continue
		}
		switch loopLevels {
		case 2:
			blockSize := GPUBlockSize
			if blockSize < 0 {
				blockSize = 512
			}
			outer, inner := s.SplitWithMask(i, 0, blockSize)
			s.BindGPU(i, outer, inner)
		case 3:
			blockCount := GPUBlockCount
			if blockCount < 0 {
				blockCount = 1280
			}
			blockSize := GPUBlockSize
			if blockSize < 0 {
				blockSize = 256
			}
			_, inner := s.SplitWithMask(i, 0, blockCount*blockSize)
			inner1, inner2 := s.SplitWithMask(i, inner, blockSize)
			s.BindGPU(i, inner1, inner2)
		default:
			exceptions.Panicf("kernel: invalid GPU loop level count %d (only 2 and 3 are supported)", loopLevels)
		}
	}
	return s
}

// flattenIndex rewrites an output tensor as an equivalent one-dimensional
// tensor over a single flat index, recovering the original axis values by
// successive modulo/divide from the innermost axis outwards.
func flattenIndex(a *expr.Arena, t *expr.Tensor) *expr.Tensor {
	size := int32(1)
	dims := make([]int32, t.Rank())
	for i := 0; i < t.Rank(); i++ {
		dims[i] = t.Dim(i).IntImmValue()
		size *= dims[i]
	}
	return a.Compute(t.Name()+"_flat", []expr.DimArg{{Dim: a.IntImm(size), Name: "i"}},
		func(axes []expr.Expr) expr.Expr {
			rem := axes[0]
			indices := make([]expr.Expr, t.Rank())
			for i := t.Rank() - 1; i >= 0; i-- {
				d := a.IntImm(dims[i])
				indices[i] = rem.Mod(d)
				rem = rem.Div(d)
			}
			return t.Call(indices)
		})
}
