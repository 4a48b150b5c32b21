package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/szsam/wasm3/internal/wasm"
)

func TestNumSlotsForType(t *testing.T) {
	require.Equal(t, uint16(1), numSlotsForType(wasm.ValueTypeI32))
	require.Equal(t, uint16(1), numSlotsForType(wasm.ValueTypeF32))
	require.Equal(t, uint16(2), numSlotsForType(wasm.ValueTypeI64))
	require.Equal(t, uint16(2), numSlotsForType(wasm.ValueTypeF64))
}

func TestAlignSlotToType(t *testing.T) {
	slot := uint16(3)
	alignSlotToType(&slot, wasm.ValueTypeI64)
	require.Equal(t, uint16(4), slot)

	slot = 3
	alignSlotToType(&slot, wasm.ValueTypeI32)
	require.Equal(t, uint16(3), slot)
}

func TestAllocateSlots_EvenAlignment(t *testing.T) {
	c := &compiler{}
	c.slotFirstDynamicIndex = 1

	slot, err := c.allocateSlots(wasm.ValueTypeI64)
	require.NoError(t, err)
	require.Equal(t, uint16(2), slot) // rounded up from 1
	require.Equal(t, uint8(1), c.slots[2])
	require.Equal(t, uint8(1), c.slots[3])

	// A 1-slot value fills the hole the alignment left.
	slot, err = c.allocateSlots(wasm.ValueTypeI32)
	require.NoError(t, err)
	require.Equal(t, uint16(1), slot)
}

func TestAllocateSlotsWithinRange_Overflow(t *testing.T) {
	c := &compiler{}
	c.slots[0] = 1

	_, err := c.allocateSlotsWithinRange(wasm.ValueTypeI32, 0, 1)
	require.ErrorIs(t, err, ErrFunctionStackOverflow)
}

func TestIncrementSlotUsageCount_Overflow(t *testing.T) {
	c := &compiler{}
	c.slots[3] = 1

	require.NoError(t, c.incrementSlotUsageCount(3))
	require.Equal(t, uint8(2), c.slots[3])

	c.slots[3] = 0xff
	require.ErrorIs(t, c.incrementSlotUsageCount(3), ErrSlotUsageOverflow)
}

func TestGetMaxUsedSlotPlusOne_Compaction(t *testing.T) {
	c := &compiler{}
	c.slotFirstDynamicIndex = 2
	c.markSlotAllocated(2)
	c.markSlotAllocated(5)
	require.Equal(t, uint16(6), c.getMaxUsedSlotPlusOne())

	c.slots[5] = 0
	require.Equal(t, uint16(3), c.getMaxUsedSlotPlusOne())
}

func TestPushPop_RegisterAliases(t *testing.T) {
	c := &compiler{}

	require.NoError(t, c.pushRegister(wasm.ValueTypeI32))
	require.True(t, c.isRegisterAllocated(0))
	require.True(t, c.isStackTopInRegister())
	require.Equal(t, 0, c.registerStackIndex(0))

	require.NoError(t, c.pushRegister(wasm.ValueTypeF64))
	require.True(t, c.isRegisterAllocated(1))

	require.NoError(t, c.pop())
	require.False(t, c.isRegisterAllocated(1))
	require.NoError(t, c.pop())
	require.False(t, c.isRegisterAllocated(0))
}

func TestPushPop_SlotRefCounts(t *testing.T) {
	c := &compiler{}
	c.slotFirstDynamicIndex = 2

	slot, err := c.allocateSlots(wasm.ValueTypeI64)
	require.NoError(t, err)
	require.NoError(t, c.push(wasm.ValueTypeI64, slot))

	require.NoError(t, c.pop())
	require.Equal(t, uint8(0), c.slots[slot])
	require.Equal(t, uint8(0), c.slots[slot+1])
}

func TestPop_Underrun(t *testing.T) {
	c := &compiler{}
	require.ErrorIs(t, c.pop(), ErrStackUnderrun)

	// A polymorphic scope pops vacuously.
	c.block.isPolymorphic = true
	require.NoError(t, c.pop())
	require.Equal(t, 0, c.stackIndex)
}

func TestPopType_Mismatch(t *testing.T) {
	c := &compiler{}
	require.NoError(t, c.pushRegister(wasm.ValueTypeI32))
	require.ErrorIs(t, c.popType(wasm.ValueTypeI64), ErrTypeMismatch)
	require.NoError(t, c.popType(wasm.ValueTypeI32))
}

func TestPreserveRegisterIfOccupied(t *testing.T) {
	c := &compiler{}
	c.slotFirstDynamicIndex = 4

	require.NoError(t, c.pushRegister(wasm.ValueTypeI64))
	require.True(t, c.isRegisterAllocated(0))

	// No page is attached, so only the bookkeeping happens: the entry is
	// rerouted to a freshly allocated slot and the register freed.
	require.NoError(t, c.preserveRegisterIfOccupied(wasm.ValueTypeI32))
	require.False(t, c.isRegisterAllocated(0))
	require.Equal(t, uint16(4), c.wasmStack[0])
	require.Equal(t, uint8(1), c.slots[4])
	require.Equal(t, uint8(1), c.slots[5])
}

func TestPush_StackHeightOverflow(t *testing.T) {
	c := &compiler{}
	c.stackIndex = maxFunctionStackHeight
	require.ErrorIs(t, c.push(wasm.ValueTypeI32, 0), ErrFunctionStackOverflow)
}

func TestOperationString(t *testing.T) {
	require.Equal(t, "i32.add_ss", variantOp(0x6a, 2).String())
	require.Equal(t, "i64.add_rs", variantOp(0x7c, 0).String())
	require.Equal(t, "f64.convert_s/i32_r_s", variantOp(0xb7, 1).String())
	require.Equal(t, "i32.trunc_s:sat/f64_s_s", variantOp(0xFC02, 3).String())
	require.Equal(t, "SetSlot_i64", opSetSlotI64.String())
	require.Equal(t, "Branch", opBranch.String())

	require.Equal(t, "", OperationName(1<<32))
	require.Equal(t, "Entry", OperationName(uint64(opEntry)))
}

func TestGetOpInfo(t *testing.T) {
	require.Nil(t, getOpInfo(0x06))   // reserved
	require.Nil(t, getOpInfo(0xFC08)) // beyond the FC table
	require.Nil(t, getOpInfo(0x200))

	require.Equal(t, "i32.add", getOpInfo(0x6a).name)
	require.Equal(t, "i64.trunc_u:sat/f64", getOpInfo(0xFC07).name)

	// The commutative lists leave the _sr variant empty.
	require.Equal(t, opNone, getOpInfo(0x6a).ops[1])
	require.NotEqual(t, opNone, getOpInfo(0x6b).ops[1])
}
