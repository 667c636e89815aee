// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

//go:build !nogpu

package register

import _ "github.com/tensorfuse/tensorfuse/codegen/wgsl"
