// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package codegen

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorfuse/tensorfuse/expr"
)

type fakeCodeGen struct{}

func (fakeCodeGen) Name() string        { return "fake" }
func (fakeCodeGen) Call(args []CallArg) {}

func fakeConstructor(kernelName string, stmt expr.Stmt, params []Param) (CodeGen, error) {
	return fakeCodeGen{}, nil
}

func TestRegistry(t *testing.T) {
	Register("fake", fakeConstructor)
	assert.True(t, Has("fake"))
	assert.False(t, Has("missing"))

	cg, err := New("fake", "k", expr.Stmt{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fake", cg.Name())

	_, err = New("missing", "k", expr.Stmt{}, nil)
	require.Error(t, err)

	require.Panics(t, func() { Register("fake", fakeConstructor) })
}

func TestParamAndArgConstructors(t *testing.T) {
	a := expr.NewArena()
	buf := a.NewBuffer("data", dtypes.Float32)
	v := a.Var("n", dtypes.Int32)

	bp := BufferParam(buf)
	assert.Equal(t, ParamBuffer, bp.Kind)
	assert.Equal(t, "data", bp.Name())
	vp := VarParam(v)
	assert.Equal(t, ParamVar, vp.Kind)
	assert.Equal(t, "n", vp.Name())

	assert.Equal(t, ArgFloat32s, F32sArg(nil).Kind)
	assert.Equal(t, ArgInt32s, I32sArg(nil).Kind)
	assert.Equal(t, int32(3), I32Arg(3).I32)
	assert.Equal(t, float32(0.5), F32Arg(0.5).F32)
}
