// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package tensor

//go:generate go tool enumer -type=Device -trimprefix=Device -output=gen_device_enumer.go device.go

// Device identifies where a tensor's computation should happen. Tensor data
// itself always lives in host memory; a WebGPU-tagged tensor is uploaded to
// the device per kernel invocation.
type Device int

const (
	DeviceInvalid Device = iota
	DeviceCPU
	DeviceWebGPU
)
