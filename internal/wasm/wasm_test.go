package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeValueType(t *testing.T) {
	for _, c := range []struct {
		b   byte
		exp ValueType
	}{
		{b: 0x7f, exp: ValueTypeI32},
		{b: 0x7e, exp: ValueTypeI64},
		{b: 0x7d, exp: ValueTypeF32},
		{b: 0x7c, exp: ValueTypeF64},
		{b: 0x40, exp: ValueTypeNone},
	} {
		vt, err := DecodeValueType(c.b)
		require.NoError(t, err)
		require.Equal(t, c.exp, vt)
	}

	_, err := DecodeValueType(0x70)
	require.Error(t, err)
}

func TestValueType_Properties(t *testing.T) {
	require.True(t, ValueTypeI64.Is64Bit())
	require.True(t, ValueTypeF64.Is64Bit())
	require.False(t, ValueTypeI32.Is64Bit())
	require.False(t, ValueTypeF32.Is64Bit())

	require.True(t, ValueTypeF32.IsFp())
	require.True(t, ValueTypeF64.IsFp())
	require.False(t, ValueTypeI32.IsFp())

	require.True(t, ValueTypeI32.IsInt())
	require.True(t, ValueTypeI64.IsInt())
	require.False(t, ValueTypeF64.IsInt())
}

func TestFunctionType_String(t *testing.T) {
	ft := &FunctionType{Args: []ValueType{ValueTypeI32, ValueTypeI64}, Results: []ValueType{ValueTypeF64}}
	require.Equal(t, "(i32,i64)->(f64)", ft.String())
	require.Equal(t, 2, ft.NumArgs())
	require.Equal(t, 1, ft.NumResults())
}

func TestRuntime_BlockTypes(t *testing.T) {
	r := NewRuntime()
	require.Equal(t, 0, r.BlockType(ValueTypeNone).NumResults())
	require.Equal(t, []ValueType{ValueTypeI64}, r.BlockType(ValueTypeI64).Results)
}

func TestRuntime_CodePages(t *testing.T) {
	r := NewRuntime()

	p1 := r.AcquireCodePage(8)
	require.NotNil(t, p1)
	p2 := r.AcquireCodePage(8)
	require.NotNil(t, p2)
	require.NotEqual(t, p1.Base(), p2.Base())
	require.Equal(t, 2, r.NumCodePages())

	// A released page with free words is recycled.
	p1.EmitWord(1)
	r.ReleaseCodePage(p1)
	p3 := r.AcquireCodePage(8)
	require.Same(t, p1, p3)
	require.Equal(t, 2, r.NumCodePages())

	// The page keeps its emitted words across recycling.
	require.Equal(t, []uint64{1}, p3.Words())
}

func TestRuntime_PageLimit(t *testing.T) {
	r := &Runtime{PageLimit: 1}
	require.NotNil(t, r.AcquireCodePage(8))
	require.Nil(t, r.AcquireCodePage(8))
}

func TestModule_Accessors(t *testing.T) {
	r := NewRuntime()
	m := &Module{Name: "test"}
	r.AddModule(m)
	require.Same(t, r, m.Runtime)

	ft := &FunctionType{Results: []ValueType{ValueTypeI32}}
	fn := m.AddFunction("f", ft, []byte{0x00, 0x0b})
	require.Same(t, fn, m.GetFunction(0))
	require.Nil(t, m.GetFunction(1))
	require.Equal(t, uint32(0), fn.NumArgsAndLocals())

	g := m.AddGlobal("g", ValueTypeI64, true)
	require.Same(t, g, m.Globals[0])
}
