package compiler

import "github.com/szsam/wasm3/internal/wasm"

// ---- value stack queries (C4) ----------------------------------------

func (c *compiler) stackTopIndex() int {
	return c.stackIndex - 1
}

func (c *compiler) numBlockValuesOnStack() int {
	return c.stackIndex - c.block.initStackIndex
}

func (c *compiler) stackTopTypeAtOffset(offset int) wasm.ValueType {
	offset++
	if c.stackIndex >= offset {
		return c.typeStack[c.stackIndex-offset]
	}
	return wasm.ValueTypeNone
}

func (c *compiler) stackTopType() wasm.ValueType {
	return c.stackTopTypeAtOffset(0)
}

func (c *compiler) stackTypeFromBottom(offset int) wasm.ValueType {
	if offset < c.stackIndex {
		return c.typeStack[offset]
	}
	return wasm.ValueTypeNone
}

func (c *compiler) isStackIndexInRegister(stackIndex int) bool {
	if stackIndex >= 0 && stackIndex < c.stackIndex {
		return c.wasmStack[stackIndex] >= regIntSlotAlias
	}
	return false
}

func (c *compiler) isStackTopInRegister() bool {
	return c.isStackIndexInRegister(c.stackTopIndex())
}

func (c *compiler) isStackTopMinus1InRegister() bool {
	return c.isStackIndexInRegister(c.stackTopIndex() - 1)
}

func (c *compiler) isStackTopMinus2InRegister() bool {
	return c.isStackIndexInRegister(c.stackTopIndex() - 2)
}

func (c *compiler) isStackTopInSlot() bool {
	return !c.isStackTopInRegister()
}

func (c *compiler) stackTopSlotNumber() uint16 {
	if i := c.stackTopIndex(); i >= 0 {
		return c.wasmStack[i]
	}
	return slotUnused
}

// slotForStackIndex returns the slot of the stack entry, counted from the
// bottom.
func (c *compiler) slotForStackIndex(stackIndex int) uint16 {
	if stackIndex < c.stackIndex {
		return c.wasmStack[stackIndex]
	}
	return slotUnused
}

// extraSlotForStackIndex returns the entry's last slot: the base for
// 1-slot values, base+1 for 64-bit ones.
func (c *compiler) extraSlotForStackIndex(stackIndex int) uint16 {
	baseSlot := c.slotForStackIndex(stackIndex)
	if baseSlot != slotUnused {
		baseSlot += numSlotsForType(c.stackTypeFromBottom(stackIndex)) - 1
	}
	return baseSlot
}

// ---- push / pop (C4) -------------------------------------------------

// push records a value on the stack. A register-alias slot allocates the
// matching register to this entry.
func (c *compiler) push(vt wasm.ValueType, slot uint16) error {
	if !hasFloat && vt.IsFp() {
		return ErrUnknownOpcode
	}

	stackIndex := c.stackIndex
	if stackIndex >= maxFunctionStackHeight {
		return ErrFunctionStackOverflow
	}
	c.stackIndex++

	c.wasmStack[stackIndex] = slot
	c.typeStack[stackIndex] = vt

	if isRegisterSlotAlias(slot) {
		reg := 0
		if isFpRegisterSlotAlias(slot) {
			reg = 1
		}
		c.allocateRegister(reg, stackIndex)
	} else if c.function != nil {
		// The entry operation uses this to detect stack overflow.
		if slot+1 > c.function.MaxStackSlots {
			c.function.MaxStackSlots = slot + 1
		}
	}
	return nil
}

func (c *compiler) pushRegister(vt wasm.ValueType) error {
	location := regIntSlotAlias
	if vt.IsFp() {
		location = regFpSlotAlias
	}
	return c.push(vt, location)
}

func (c *compiler) pop() error {
	if c.stackIndex > c.block.initStackIndex {
		c.stackIndex--

		slot := c.wasmStack[c.stackIndex]
		vt := c.typeStack[c.stackIndex]

		if isRegisterSlotAlias(slot) {
			reg := 0
			if isFpRegisterSlotAlias(slot) {
				reg = 1
			}
			c.deallocateRegister(reg)
		} else if slot >= c.slotFirstDynamicIndex {
			c.deallocateSlot(slot, vt)
		}
		return nil
	}
	if !c.isStackPolymorphic() {
		return ErrStackUnderrun
	}
	return nil
}

func (c *compiler) popType(vt wasm.ValueType) error {
	if vt != c.stackTopType() && !c.block.isPolymorphic {
		return ErrTypeMismatch
	}
	return c.pop()
}

func (c *compiler) pushAllocatedSlotAndEmitOpt(vt wasm.ValueType, doEmit bool) error {
	slot, err := c.allocateSlots(vt)
	if err != nil {
		return err
	}
	if err = c.push(vt, slot); err != nil {
		return err
	}
	if doEmit {
		c.emitSlot(slot)
	}
	return nil
}

func (c *compiler) pushAllocatedSlotAndEmit(vt wasm.ValueType) error {
	return c.pushAllocatedSlotAndEmitOpt(vt, true)
}

func (c *compiler) pushAllocatedSlot(vt wasm.ValueType) error {
	return c.pushAllocatedSlotAndEmitOpt(vt, false)
}

// emitSlotNumOfStackTopAndPop emits the top's slot offset (nothing when
// it lives in a register) and pops it.
func (c *compiler) emitSlotNumOfStackTopAndPop() error {
	if c.isStackTopInSlot() {
		c.emitSlot(c.stackTopSlotNumber())
	}
	return c.pop()
}

func (c *compiler) unwindBlockStack() error {
	initStackIndex := c.block.initStackIndex
	popCount := 0
	for c.stackIndex > initStackIndex {
		if err := c.pop(); err != nil {
			return err
		}
		popCount++
	}
	if popCount > 0 {
		log.Tracef("unwound stack top: %d", popCount)
	}
	return nil
}

func (c *compiler) isStackPolymorphic() bool {
	return c.block.isPolymorphic
}

func (c *compiler) setStackPolymorphic() error {
	c.block.isPolymorphic = true
	log.Tracef("stack set polymorphic")
	return c.unwindBlockStack()
}

// patchBranches resolves every pending forward branch of the current
// scope to the current pc.
func (c *compiler) patchBranches() bool {
	pc := c.pc()
	patches := c.block.patches
	c.block.patches = nil

	for _, patch := range patches {
		log.Tracef("patching branch to pc: %d", pc)
		patch.Set(pc)
	}
	return len(patches) > 0
}

// ---- constant pool (C5) ----------------------------------------------

// pushConst interns a constant into the pool, reusing a matching slot if
// one exists. When the pool is exhausted it falls back to an inline
// const operation writing a freshly allocated dynamic slot.
func (c *compiler) pushConst(word uint64, vt wasm.ValueType) error {
	// Constant expressions record the value instead of emitting.
	if c.page == nil {
		c.exprValue = word
		return c.pushAllocatedSlot(vt)
	}

	matchFound := false
	is64BitType := vt.Is64Bit()

	numRequiredSlots := numSlotsForType(vt)
	numUsedConstSlots := c.slotMaxConstIndex - c.slotFirstConstIndex

	// Search for a duplicate constant slot to reuse.
	if numRequiredSlots == 2 && numUsedConstSlots >= 2 {
		firstConstSlot := c.slotFirstConstIndex
		alignSlotToType(&firstConstSlot, wasm.ValueTypeI64)

		for slot := firstConstSlot; slot+1 < c.slotMaxConstIndex; slot += 2 {
			if c.isSlotAllocated(slot) && c.isSlotAllocated(slot+1) {
				constant := c.constantAt64(slot - c.slotFirstConstIndex)
				if constant == word {
					matchFound = true
					if err := c.push(vt, slot); err != nil {
						return err
					}
					break
				}
			}
		}
	} else if numRequiredSlots == 1 {
		for i := uint16(0); i < numUsedConstSlots; i++ {
			slot := c.slotFirstConstIndex + i
			if c.isSlotAllocated(slot) {
				if uint64(c.constants[i]) == word {
					matchFound = true
					if err := c.push(vt, slot); err != nil {
						return err
					}
					break
				}
			}
		}
	}

	if matchFound {
		return nil
	}

	slot, err := c.allocateConstantSlots(vt)
	if err != nil {
		// No more constant table space; use an inline constant.
		if is64BitType {
			if err = c.emitOp(opConst64); err != nil {
				return err
			}
			c.emitWord64(word)
		} else {
			if err = c.emitOp(opConst32); err != nil {
				return err
			}
			c.emitWord32(uint32(word))
		}
		return c.pushAllocatedSlotAndEmit(vt)
	}

	constTableIndex := slot - c.slotFirstConstIndex
	if is64BitType {
		c.constants[constTableIndex] = uint32(word)
		c.constants[constTableIndex+1] = uint32(word >> 32)
	} else {
		c.constants[constTableIndex] = uint32(word)
	}

	if err = c.push(vt, slot); err != nil {
		return err
	}

	if slot+numRequiredSlots > c.slotMaxConstIndex {
		c.slotMaxConstIndex = slot + numRequiredSlots
	}
	return nil
}

func (c *compiler) constantAt64(constTableIndex uint16) uint64 {
	return uint64(c.constants[constTableIndex]) | uint64(c.constants[constTableIndex+1])<<32
}
