package compiler

import "github.com/szsam/wasm3/internal/wasm"

// numSlotsForType returns how many slots a value of the type occupies.
func numSlotsForType(vt wasm.ValueType) uint16 {
	if use32BitSlots && vt.Is64Bit() {
		return 2
	}
	return 1
}

// alignSlotToType rounds the slot up so 64-bit values land even-aligned.
func alignSlotToType(slot *uint16, vt wasm.ValueType) {
	mask := numSlotsForType(vt) - 1
	*slot = (*slot + mask) &^ mask
}

func isRegisterSlotAlias(slot uint16) bool {
	return slot >= regIntSlotAlias && slot != slotUnused
}

func isFpRegisterSlotAlias(slot uint16) bool { return slot == regFpSlotAlias }

// registerIndexForType selects the pseudo-register a type lives in:
// 0 for the int register, 1 for fp.
func registerIndexForType(vt wasm.ValueType) int {
	if vt.IsFp() {
		return 1
	}
	return 0
}

func isValidSlot(slot uint16) bool { return slot < maxFunctionSlots }

// ---- slot table (C2) -------------------------------------------------

func (c *compiler) isSlotAllocated(slot uint16) bool {
	return c.slots[slot] != 0
}

func (c *compiler) markSlotAllocated(slot uint16) {
	c.slots[slot] = 1
	if slot+1 > c.slotMaxAllocatedIndexPlusOne {
		c.slotMaxAllocatedIndexPlusOne = slot + 1
	}
	// The entry operation uses this to detect stack overflow.
	if c.function != nil && slot+1 > c.function.MaxStackSlots {
		c.function.MaxStackSlots = slot + 1
	}
}

// allocateSlotsWithinRange linearly scans [startSlot, endSlot) for one or
// two consecutive free slots, keeping 64-bit allocations even-aligned.
func (c *compiler) allocateSlotsWithinRange(vt wasm.ValueType, startSlot, endSlot uint16) (uint16, error) {
	numSlots := numSlotsForType(vt)
	searchOffset := numSlots - 1

	alignSlotToType(&startSlot, vt)

	for i := startSlot; i+searchOffset < endSlot; i += numSlots {
		if c.slots[i] == 0 && c.slots[i+searchOffset] == 0 {
			c.markSlotAllocated(i)
			if numSlots == 2 {
				c.markSlotAllocated(i + 1)
			}
			return i, nil
		}
	}
	return slotUnused, ErrFunctionStackOverflow
}

func (c *compiler) allocateSlots(vt wasm.ValueType) (uint16, error) {
	return c.allocateSlotsWithinRange(vt, c.slotFirstDynamicIndex, maxFunctionSlots)
}

func (c *compiler) allocateConstantSlots(vt wasm.ValueType) (uint16, error) {
	return c.allocateSlotsWithinRange(vt, c.slotFirstConstIndex, c.slotFirstDynamicIndex)
}

// incrementSlotUsageCount bumps a live slot's reference count, used by the
// copy-on-write local paths. Constant reuse does not count references.
func (c *compiler) incrementSlotUsageCount(slot uint16) error {
	if c.slots[slot] == 0xFF {
		return ErrSlotUsageOverflow
	}
	c.slots[slot]++
	return nil
}

func (c *compiler) deallocateSlot(slot uint16, vt wasm.ValueType) {
	for i := uint16(0); i < numSlotsForType(vt); i++ {
		c.slots[slot+i]--
	}
}

// getMaxUsedSlotPlusOne trims the high-water mark past trailing free
// slots and returns it.
func (c *compiler) getMaxUsedSlotPlusOne() uint16 {
	for c.slotMaxAllocatedIndexPlusOne > c.slotFirstDynamicIndex {
		if c.isSlotAllocated(c.slotMaxAllocatedIndexPlusOne - 1) {
			break
		}
		c.slotMaxAllocatedIndexPlusOne--
	}
	return c.slotMaxAllocatedIndexPlusOne
}

// ---- register model (C3) ---------------------------------------------

func (c *compiler) isRegisterAllocated(reg int) bool {
	return c.regStackIndexPlusOne[reg] != 0
}

func (c *compiler) isRegisterTypeAllocated(vt wasm.ValueType) bool {
	return c.isRegisterAllocated(registerIndexForType(vt))
}

func (c *compiler) allocateRegister(reg int, stackIndex int) {
	c.regStackIndexPlusOne[reg] = stackIndex + 1
}

func (c *compiler) deallocateRegister(reg int) {
	c.regStackIndexPlusOne[reg] = 0
}

func (c *compiler) registerStackIndex(reg int) int {
	return c.regStackIndexPlusOne[reg] - 1
}

// preserveRegisterIfOccupied moves the value currently holding the
// register of the given type out to a freshly allocated slot, emitting
// the set-slot operation, so the register becomes free.
func (c *compiler) preserveRegisterIfOccupied(vt wasm.ValueType) error {
	reg := registerIndexForType(vt)
	if !c.isRegisterAllocated(reg) {
		return nil
	}

	stackIndex := c.registerStackIndex(reg)
	c.deallocateRegister(reg)

	valueType := c.stackTypeFromBottom(stackIndex)

	slot, err := c.allocateSlots(valueType)
	if err != nil {
		return err
	}
	c.wasmStack[stackIndex] = slot

	if err = c.emitOp(setSlotOps[valueType]); err != nil {
		return err
	}
	c.emitSlot(slot)
	return nil
}

// preserveRegisters parks both registers in slots. All values must be in
// slots before entering loop, if, and else blocks; otherwise they would
// get preserve-copied inside the block to different locations on each
// path.
func (c *compiler) preserveRegisters() error {
	if err := c.preserveRegisterIfOccupied(wasm.ValueTypeF64); err != nil {
		return err
	}
	return c.preserveRegisterIfOccupied(wasm.ValueTypeI64)
}

// preserveNonTopRegisters parks any register not bound to the stack top.
func (c *compiler) preserveNonTopRegisters() error {
	stackTop := c.stackTopIndex()
	if stackTop < 0 {
		return nil
	}

	if c.isRegisterAllocated(0) && c.registerStackIndex(0) != stackTop {
		if err := c.preserveRegisterIfOccupied(wasm.ValueTypeI64); err != nil {
			return err
		}
	}
	if c.isRegisterAllocated(1) && c.registerStackIndex(1) != stackTop {
		if err := c.preserveRegisterIfOccupied(wasm.ValueTypeF64); err != nil {
			return err
		}
	}
	return nil
}

// Operation lookup tables indexed by value type.
var setSlotOps = [5]operation{opNone, opSetSlotI32, opSetSlotI64, opSetSlotF32, opSetSlotF64}

var setRegisterOps = [5]operation{opNone, opSetRegisterI32, opSetRegisterI64, opSetRegisterF32, opSetRegisterF64}

var preserveSetSlotOps = [5]operation{opNone, opPreserveSetSlotI32, opPreserveSetSlotI64, opPreserveSetSlotF32, opPreserveSetSlotF64}

var setGlobalOps = [5]operation{opNone, opSetGlobalI32, opSetGlobalI64, opSetGlobalF32, opSetGlobalF64}

var intSelectOps = [2][4]operation{
	{opSelectI32Rss, opSelectI32Srs, opSelectI32Ssr, opSelectI32Sss},
	{opSelectI64Rss, opSelectI64Srs, opSelectI64Ssr, opSelectI64Sss},
}

var fpSelectOps = [2][2][3]operation{
	{ // f32
		{opSelectF32Sss, opSelectF32Srs, opSelectF32Ssr}, // selector in slot
		{opSelectF32Rss, opSelectF32Rrs, opSelectF32Rsr}, // selector in reg
	},
	{ // f64
		{opSelectF64Sss, opSelectF64Srs, opSelectF64Ssr},
		{opSelectF64Rss, opSelectF64Rrs, opSelectF64Rsr},
	},
}
