// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

// Package register includes the default code generation backends: the
// interpreted evaluator, the compiled-closures CPU backend and the WGSL
// GPU backend.
//
// To use it simply include:
//
//	import _ "github.com/tensorfuse/tensorfuse/codegen/register"
//
// If you add the tag `nogpu` it will not include wgsl -- useful if you don't
// want to link the WebGPU bindings.
package register

import (
	_ "github.com/tensorfuse/tensorfuse/codegen/closures"
	_ "github.com/tensorfuse/tensorfuse/codegen/ireval"
)
