package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/szsam/wasm3/internal/engine/codepage"
	"github.com/szsam/wasm3/internal/leb128"
	"github.com/szsam/wasm3/internal/wasm"
)

var (
	v_v      = &wasm.FunctionType{}
	v_i32    = &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	i32i32_v = &wasm.FunctionType{Args: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}}
)

const pageBase = codepage.PageCellCount // base PC of the first page

// funcBody builds a code entry: an empty locals vector followed by the
// expression parts.
func funcBody(parts ...[]byte) []byte {
	return bodyWithLocals([]byte{0x00}, parts...)
}

func bodyWithLocals(locals []byte, parts ...[]byte) []byte {
	body := append([]byte{}, locals...)
	for _, p := range parts {
		body = append(body, p...)
	}
	return body
}

// localDecls renders (count, encodedType) pairs as a locals vector.
func localDecls(decls ...byte) []byte {
	out := []byte{byte(len(decls) / 2)}
	return append(out, decls...)
}

func i32Const(v int32) []byte {
	return append([]byte{0x41}, leb128.EncodeInt32(v)...)
}

func i64Const(v int64) []byte {
	return append([]byte{0x42}, leb128.EncodeInt64(v)...)
}

func op(bytes ...byte) []byte { return bytes }

func newTestModule(t *testing.T) (*wasm.Runtime, *wasm.Module) {
	t.Helper()
	rt := wasm.NewRuntime()
	m := &wasm.Module{Name: "test"}
	rt.AddModule(m)
	return rt, m
}

func compileTestFunc(t *testing.T, ft *wasm.FunctionType, body []byte) (*wasm.Function, *wasm.Runtime) {
	t.Helper()
	rt, m := newTestModule(t)
	fn := m.AddFunction("test", ft, body)
	require.NoError(t, CompileFunction(fn))
	return fn, rt
}

func pageWords(t *testing.T, rt *wasm.Runtime, base codepage.PC) []uint64 {
	t.Helper()
	for _, p := range rt.Pages() {
		if p.Base() == base {
			return p.Words()
		}
	}
	t.Fatalf("no page with base %d", base)
	return nil
}

func TestCompile_EmptyFunction(t *testing.T) {
	fn, rt := compileTestFunc(t, v_v, funcBody(op(0x0b)))

	require.Equal(t, codepage.PC(pageBase), fn.Compiled)
	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
	require.Equal(t, uint16(0), fn.NumRetSlots)
	require.Equal(t, uint32(0), fn.NumConstantBytes)
}

// The copy-on-write preservation scenario: re-setting a local whose old
// value is still live on the stack reroutes the live copy to a fresh
// slot via a preserve operation.
func TestCompile_LocalPreservation(t *testing.T) {
	body := bodyWithLocals(
		localDecls(0x01, 0x7f), // (local i32)
		i32Const(7), op(0x21, 0x00), // local.set 0
		op(0x20, 0x00),              // local.get 0        ;; live copy of slot L=2
		i32Const(1), op(0x22, 0x00), // local.tee 0        ;; must preserve the copy
		op(0x6a),                    // i32.add            ;; 7 + 1
		op(0x0b),
	)
	fn, rt := compileTestFunc(t, v_i32, body)

	// L = slot 2 (the local), constants at slots 3 and 4, preservation
	// slot P = 5 (first dynamic).
	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opCopySlot32), 2, 3, // local.set 0   <- const 7
		uint64(opPreserveCopySlot32), 2, 4, 5, // local.tee 0, old value saved to 5
		uint64(variantOp(0x6a, 2)), 4, 5, // i32.add_ss
		uint64(opSetSlotI32), 0, // return value from register
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))

	require.Equal(t, uint16(2), fn.NumRetSlots)
	require.Equal(t, uint16(2), fn.NumRetAndArgSlots)
	require.Equal(t, uint32(4), fn.NumLocalBytes)
	require.Equal(t, uint16(6), fn.MaxStackSlots)
	require.Equal(t, uint32(8), fn.NumConstantBytes)
	require.Equal(t, []byte{7, 0, 0, 0, 1, 0, 0, 0}, fn.Constants)
}

// Forward branch patching: a br out of a block reserves a target cell
// that end patches to the post-block pc; code after the br is still
// compiled in the then-polymorphic scope.
func TestCompile_ForwardBranchPatching(t *testing.T) {
	body := funcBody(
		op(0x02, 0x7f), // block (result i32)
		i32Const(5),
		op(0x0c, 0x00), // br 0
		i32Const(99),   // unreachable but still compiled
		op(0x0b),       // end (block)
		op(0x0b),
	)
	fn, rt := compileTestFunc(t, v_i32, body)

	words := pageWords(t, rt, pageBase)
	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opCopySlot32), 4, 2, // resolve the block result into topSlot 4
		uint64(opBranch), pageBase + 7, // patched to the post-block pc
		uint64(opCopySlot32), 0, 4, // function return value
		uint64(opReturn),
	}, words)

	// Both constants were interned even though 99 is unreachable.
	require.Equal(t, uint32(8), fn.NumConstantBytes)
}

// Loop continue: br to a loop emits ContinueLoop with the loop's entry
// pc; no forward patch is involved.
func TestCompile_LoopContinue(t *testing.T) {
	body := funcBody(
		op(0x03, 0x40), // loop
		op(0x0c, 0x00), // br 0
		op(0x0b),       // end (loop)
		op(0x0b),
	)
	_, rt := compileTestFunc(t, v_v, body)

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opLoop),
		uint64(opContinueLoop), pageBase + 3, // pc right after the Loop op
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

// Constant pool overflow: the first maxConstantTableSize constants share
// the pool; the next one is emitted inline with a fresh dynamic slot.
func TestCompile_ConstantPoolOverflow(t *testing.T) {
	var parts [][]byte
	for k := int32(0); k <= maxConstantTableSize; k++ {
		parts = append(parts, i32Const(k), op(0x1a)) // const, drop
	}
	parts = append(parts, op(0x0b))
	fn, rt := compileTestFunc(t, v_v, funcBody(parts...))

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opConst32), maxConstantTableSize, maxConstantTableSize,
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))

	require.Equal(t, uint32(maxConstantTableSize*4), fn.NumConstantBytes)
	for k := 0; k < maxConstantTableSize; k++ {
		require.Equal(t, byte(k), fn.Constants[k*4])
	}
}

// Constant interning: the same literal twice shares one pool slot.
func TestCompile_ConstantInterning(t *testing.T) {
	body := funcBody(
		i32Const(7), op(0x1a),
		i32Const(7), op(0x1a),
		op(0x0b),
	)
	fn, rt := compileTestFunc(t, v_v, body)

	require.Equal(t, uint32(4), fn.NumConstantBytes) // one slot for both
	require.Equal(t, []byte{7, 0, 0, 0}, fn.Constants)
	require.Len(t, pageWords(t, rt, pageBase), 3) // Entry, index, Return
}

// Register preservation before a block: a value living in the int
// register is parked in a slot when the block is entered.
func TestCompile_RegisterPreservedBeforeBlock(t *testing.T) {
	body := funcBody(
		i64Const(1), i64Const(2), op(0x7c), // i64.add -> int register
		op(0x02, 0x40), // block
		op(0x0b),       // end (block)
		op(0x1a),       // drop
		op(0x0b),
	)
	_, rt := compileTestFunc(t, v_v, body)

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(variantOp(0x7c, 2)), 2, 0, // i64.add_ss on const slots
		uint64(opSetSlotI64), 4, // preserved into the first dynamic slot
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

// Multi-value result resolution: both results land at the block's
// topSlot base, the i64 even-aligned.
func TestCompile_MultiValueBlockResults(t *testing.T) {
	rt, m := newTestModule(t)
	m.FuncTypes = []*wasm.FunctionType{
		{Results: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI64}},
	}
	body := funcBody(
		op(0x02, 0x00), // block (type 0: -> i32 i64)
		i32Const(1),
		i64Const(2),
		op(0x0b),       // end (block)
		op(0x1a),       // drop (i64)
		op(0x1a),       // drop (i32)
		op(0x0b),
	)
	fn := m.AddFunction("test", v_v, body)
	require.NoError(t, CompileFunction(fn))

	// topSlot T = 4: i32 to T, i64 to T+2 (even-aligned).
	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opCopySlot32), 4, 0,
		uint64(opCopySlot64), 6, 2,
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

// An if with an else compiles the else body onto a fresh page, reached
// through the if's reserved pointer and branching back afterwards.
func TestCompile_IfElsePageLayout(t *testing.T) {
	body := funcBody(
		i32Const(1),
		op(0x04, 0x7f), // if (result i32)
		i32Const(2),
		op(0x05), // else
		i32Const(3),
		op(0x0b), // end (if)
		op(0x0b),
	)
	_, rt := compileTestFunc(t, v_i32, body)

	elseBase := codepage.PC(2 * codepage.PageCellCount)

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opIfS), 2, uint64(elseBase), // condition slot, else target
		uint64(opCopySlot32), 6, 3, // then-path result into topSlot 6
		uint64(opCopySlot32), 0, 6, // function return value
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))

	require.Equal(t, []uint64{
		uint64(opCopySlot32), 6, 4, // else-path result into topSlot 6
		uint64(opBranch), pageBase + 8, // back into the parent page
	}, pageWords(t, rt, elseBase))
}

func TestCompile_BranchIf(t *testing.T) {
	body := funcBody(
		op(0x02, 0x40), // block
		i32Const(1),
		op(0x0d, 0x00), // br_if 0
		op(0x0b),       // end (block)
		op(0x0b),
	)
	_, rt := compileTestFunc(t, v_v, body)

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opBranchIfPrologueS), 0, pageBase + 7, // condition, not-taken continuation
		uint64(opBranch), pageBase + 7, // patched at the block's end
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

// Each br_table target gets its own page holding the branch, stitched
// into the main stream as an absolute pc.
func TestCompile_BranchTable(t *testing.T) {
	body := funcBody(
		op(0x02, 0x40), // block (outer)
		op(0x02, 0x40), // block (inner)
		i32Const(0),
		op(0x0e, 0x02, 0x00, 0x01, 0x01), // br_table 0 1, default 1
		op(0x0b),                         // end (inner)
		op(0x0b),                         // end (outer)
		op(0x0b),
	)
	_, rt := compileTestFunc(t, v_v, body)

	targetBase := codepage.PC(2 * codepage.PageCellCount)
	endPC := pageBase + 8 // both blocks' ends resolve to the final Return

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opBranchTable), 0, 2, // index slot, target count
		uint64(targetBase), uint64(targetBase + 2), uint64(targetBase + 4),
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))

	require.Equal(t, []uint64{
		uint64(opBranch), uint64(endPC),
		uint64(opBranch), uint64(endPC),
		uint64(opBranch), uint64(endPC),
	}, pageWords(t, rt, targetBase))
}

func TestCompile_CallDeferred(t *testing.T) {
	rt, m := newTestModule(t)
	caller := m.AddFunction("caller", v_v, funcBody(op(0x10, 0x01), op(0x0b)))
	m.AddFunction("callee", v_v, funcBody(op(0x0b)))

	require.NoError(t, CompileFunction(caller))

	// The callee isn't compiled yet: a Compile operation carries its
	// function index; the frame base is the 64-bit-aligned slot 2.
	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opCompile), 1, 2,
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

func TestCompile_CallCompiled(t *testing.T) {
	rt, m := newTestModule(t)
	caller := m.AddFunction("caller", v_v, funcBody(op(0x10, 0x01), op(0x0b)))
	callee := m.AddFunction("callee", v_v, funcBody(op(0x0b)))

	require.NoError(t, CompileFunction(callee))
	require.NoError(t, CompileFunction(caller))

	// Both functions share the first page; the caller starts after the
	// callee's three cells and enters it directly by pc.
	words := pageWords(t, rt, pageBase)
	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opCall), uint64(callee.Compiled), 2,
		uint64(opReturn),
	}, words[3:])
	require.Equal(t, codepage.PC(pageBase+3), caller.Compiled)
}

func TestCompile_CallArgsAndResult(t *testing.T) {
	rt, m := newTestModule(t)
	caller := m.AddFunction("caller", v_v, funcBody(
		i32Const(1), i32Const(2), op(0x10, 0x01), op(0x0b)))
	m.AddFunction("callee", i32i32_v, funcBody(op(0x0b)))

	require.NoError(t, CompileFunction(caller))

	// Args are copied top-down into the frame's io slots above the
	// constant area.
	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opCopySlot32), 4, 1,
		uint64(opCopySlot32), 2, 0,
		uint64(opCompile), 1, 2,
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

func TestCompile_CallResultPushed(t *testing.T) {
	rt, m := newTestModule(t)
	caller := m.AddFunction("caller", v_v, funcBody(op(0x10, 0x01), op(0x1a), op(0x0b)))
	m.AddFunction("callee", v_i32, funcBody(op(0x0b)))

	require.NoError(t, CompileFunction(caller))

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opCompile), 1, 2,
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
	require.Equal(t, uint16(3), caller.MaxStackSlots) // result slot 2 counted
}

func TestCompile_CallIndirect(t *testing.T) {
	rt, m := newTestModule(t)
	m.FuncTypes = []*wasm.FunctionType{v_v}
	fn := m.AddFunction("test", v_v, funcBody(
		i32Const(0),
		op(0x11, 0x00, 0x00), // call_indirect type 0
		op(0x0b)))
	require.NoError(t, CompileFunction(fn))

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opCallIndirect), 0, 0, 0, 2, // table slot, module, type, frame base
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

func TestCompile_Globals(t *testing.T) {
	rt, m := newTestModule(t)
	m.AddGlobal("g0", wasm.ValueTypeI32, false)
	m.AddGlobal("g1", wasm.ValueTypeI64, true)
	fn := m.AddFunction("test", v_v, funcBody(
		op(0x23, 0x00), op(0x1a), // global.get 0, drop
		i64Const(5), op(0x24, 0x01), // global.set 1
		op(0x0b)))
	require.NoError(t, CompileFunction(fn))

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opGetGlobalS32), 0, 2,
		uint64(opSetGlobalS64), 1, 0,
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

func TestCompile_Select(t *testing.T) {
	body := funcBody(
		i32Const(1), i32Const(2), i32Const(0),
		op(0x1b), // select
		op(0x1a), // drop
		op(0x0b),
	)
	_, rt := compileTestFunc(t, v_v, body)

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opSelectI32Sss), 2, 1, 0, // selector, rhs, lhs slots
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

func TestCompile_MemorySizeGrow(t *testing.T) {
	body := funcBody(
		op(0x3f, 0x00), op(0x1a), // memory.size, drop
		i32Const(1),
		op(0x40, 0x00), op(0x1a), // memory.grow, drop
		op(0x0b),
	)
	_, rt := compileTestFunc(t, v_v, body)

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opMemSize),
		uint64(opSetRegisterI32), 0, // grow operand moved to the register
		uint64(opMemGrow),
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

func TestCompile_Convert(t *testing.T) {
	body := funcBody(
		i32Const(1),
		op(0xb7),  // f64.convert_s/i32
		op(0x1a),  // drop
		op(0x0b),
	)
	_, rt := compileTestFunc(t, v_v, body)

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(variantOp(0xb7, 1)), 0, // _r_s: source slot, dest register
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

func TestCompile_ExtendedOpcode(t *testing.T) {
	body := funcBody(
		i32Const(1),
		op(0xb7),       // f64.convert_s/i32 -> fp register
		op(0xfc, 0x02), // i32.trunc_s:sat/f64
		op(0x1a),
		op(0x0b),
	)
	_, rt := compileTestFunc(t, v_v, body)

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(variantOp(0xb7, 1)), 0,
		uint64(variantOp(0xFC02, 0)), // _r_r: fp register in, int register out
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

func TestCompile_LoadWithOffset(t *testing.T) {
	body := funcBody(
		i32Const(0),
		op(0x28, 0x02, 0x04), // i32.load align=4 offset=4
		op(0x1a),
		op(0x0b),
	)
	_, rt := compileTestFunc(t, v_v, body)

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(variantOp(0x28, 1)), 0, 4, // _s variant, address slot, offset
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

// Code after unreachable compiles in a polymorphic scope: pops succeed
// vacuously and operand cells degrade to the unused-slot sentinel.
func TestCompile_UnreachablePolymorphic(t *testing.T) {
	body := funcBody(
		op(0x00), // unreachable
		op(0x6a), // i32.add on the polymorphic stack
		op(0x0b),
	)
	_, rt := compileTestFunc(t, v_v, body)

	require.Equal(t, []uint64{
		uint64(opEntry), 0,
		uint64(opUnreachable),
		uint64(variantOp(0x6a, 2)), uint64(slotUnused), uint64(slotUnused),
		uint64(opReturn),
	}, pageWords(t, rt, pageBase))
}

// Compiling the same function in fresh sessions yields identical word
// sequences and constant pools.
func TestCompile_Deterministic(t *testing.T) {
	body := bodyWithLocals(
		localDecls(0x01, 0x7f),
		i32Const(7), op(0x21, 0x00),
		op(0x20, 0x00),
		i32Const(1), op(0x22, 0x00),
		op(0x6a),
		op(0x0b),
	)
	fn1, rt1 := compileTestFunc(t, v_i32, body)
	fn2, rt2 := compileTestFunc(t, v_i32, body)

	require.Equal(t, pageWords(t, rt1, pageBase), pageWords(t, rt2, pageBase))
	require.Equal(t, fn1.Constants, fn2.Constants)
	require.Equal(t, fn1.MaxStackSlots, fn2.MaxStackSlots)
}

// Wrapping a statement sequence in an empty-typed block is free when no
// registers are live at the boundary.
func TestCompile_EmptyBlockWrapIsFree(t *testing.T) {
	plain := bodyWithLocals(
		localDecls(0x01, 0x7f),
		i32Const(7), op(0x21, 0x00),
		i32Const(1), op(0x21, 0x00),
		op(0x0b),
	)
	wrapped := bodyWithLocals(
		localDecls(0x01, 0x7f),
		i32Const(7), op(0x21, 0x00),
		op(0x02, 0x40), op(0x01), op(0x0b), // block nop end
		i32Const(1), op(0x21, 0x00),
		op(0x0b),
	)
	_, rt1 := compileTestFunc(t, v_v, plain)
	_, rt2 := compileTestFunc(t, v_v, wrapped)

	require.Equal(t, pageWords(t, rt1, pageBase), pageWords(t, rt2, pageBase))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		funcType *wasm.FunctionType
		body     []byte
		setup    func(*wasm.Module)
		expected error
	}{
		{
			name:     "unknown opcode",
			funcType: v_v,
			body:     funcBody(op(0x06), op(0x0b)),
			expected: ErrUnknownOpcode,
		},
		{
			name:     "stack underrun",
			funcType: v_v,
			body:     funcBody(op(0x1a), op(0x0b)), // drop on empty stack
			expected: ErrStackUnderrun,
		},
		{
			name:     "block result type mismatch",
			funcType: v_v,
			body:     funcBody(op(0x02, 0x7f), i64Const(1), op(0x0b), op(0x1a), op(0x0b)),
			expected: ErrTypeMismatch,
		},
		{
			name:     "block result count mismatch",
			funcType: v_v,
			body:     funcBody(op(0x02, 0x7f), op(0x0b), op(0x1a), op(0x0b)),
			expected: ErrTypeCountMismatch,
		},
		{
			name:     "local index out of bounds",
			funcType: v_v,
			body:     funcBody(op(0x20, 0x00), op(0x1a), op(0x0b)),
			expected: ErrLocalIndexOutOfBounds,
		},
		{
			name:     "global index out of bounds",
			funcType: v_v,
			body:     funcBody(op(0x23, 0x00), op(0x1a), op(0x0b)),
			expected: ErrGlobalIndexOutOfBounds,
		},
		{
			name:     "setting immutable global",
			funcType: v_v,
			body:     funcBody(i32Const(1), op(0x24, 0x00), op(0x0b)),
			setup: func(m *wasm.Module) {
				m.AddGlobal("g", wasm.ValueTypeI32, false)
			},
			expected: ErrSettingImmutableGlobal,
		},
		{
			name:     "invalid branch depth",
			funcType: v_v,
			body:     funcBody(op(0x0c, 0x05), op(0x0b)),
			expected: ErrInvalidBlockDepth,
		},
		{
			name:     "function lookup failed",
			funcType: v_v,
			body:     funcBody(op(0x10, 0x07), op(0x0b)),
			expected: ErrFunctionLookupFailed,
		},
		{
			name:     "func type index out of bounds",
			funcType: v_v,
			body:     funcBody(i32Const(0), op(0x11, 0x03, 0x00), op(0x0b)),
			expected: ErrFuncTypeIndexOutOfBounds,
		},
		{
			name:     "missing end",
			funcType: v_v,
			body:     funcBody(op(0x01)),
			expected: ErrWasmMalformed,
		},
		{
			name:     "else outside if",
			funcType: v_v,
			body:     funcBody(op(0x05), op(0x0b)),
			expected: ErrWasmMalformed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, m := newTestModule(t)
			if tc.setup != nil {
				tc.setup(m)
			}
			fn := m.AddFunction("test", tc.funcType, tc.body)
			err := CompileFunction(fn)
			require.ErrorIs(t, err, tc.expected)
			require.Equal(t, codepage.PC(0), fn.Compiled) // no partial code exposed
		})
	}
}

func TestCompile_CodePageExhausted(t *testing.T) {
	rt := wasm.NewRuntime()
	rt.PageLimit = 1
	m := &wasm.Module{Name: "test"}
	rt.AddModule(m)

	// The else body needs a second page, which the runtime refuses.
	fn := m.AddFunction("test", v_v, funcBody(
		i32Const(1),
		op(0x04, 0x40), // if
		op(0x05),       // else
		op(0x0b),       // end (if)
		op(0x0b)))
	require.ErrorIs(t, CompileFunction(fn), ErrCodePageFull)
}

func TestCompile_FunctionImportMissing(t *testing.T) {
	_, m := newTestModule(t)
	fn := m.AddFunction("test", v_v, funcBody(op(0x10, 0x01), op(0x0b)))
	m.Functions = append(m.Functions, &wasm.Function{
		Name: "imported", Index: 1, FuncType: v_v, // no Module: unresolved import
	})
	require.ErrorIs(t, CompileFunction(fn), ErrFunctionImportMissing)
}

func TestCompileConstantExpression(t *testing.T) {
	_, m := newTestModule(t)
	g := m.AddGlobal("g", wasm.ValueTypeI32, false)
	g.Value = 7

	v, err := CompileConstantExpression(m, wasm.ValueTypeI32, append(i32Const(42), 0x0b))
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)

	v, err = CompileConstantExpression(m, wasm.ValueTypeI32, []byte{0x23, 0x00, 0x0b})
	require.NoError(t, err)
	require.Equal(t, uint64(7), v)

	_, err = CompileConstantExpression(m, wasm.ValueTypeI32, []byte{0x01, 0x0b})
	require.ErrorIs(t, err, ErrRestrictedOpcode)

	_, err = CompileConstantExpression(m, wasm.ValueTypeI32, append(i64Const(1), 0x0b))
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = CompileConstantExpression(m, wasm.ValueTypeI32, i32Const(42))
	require.ErrorIs(t, err, ErrWasmMalformed)
}
