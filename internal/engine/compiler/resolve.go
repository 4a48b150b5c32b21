package compiler

import "github.com/szsam/wasm3/internal/wasm"

// ---- copies between slots and registers ------------------------------

// copyStackIndexToSlot emits the operation that writes the stack entry's
// value into destSlot, without touching the stack.
func (c *compiler) copyStackIndexToSlot(stackIndex int, destSlot uint16) error {
	vt := c.stackTypeFromBottom(stackIndex)
	inRegister := c.isStackIndexInRegister(stackIndex)

	var op operation
	if inRegister {
		op = setSlotOps[vt]
	} else if vt.Is64Bit() {
		op = opCopySlot64
	} else {
		op = opCopySlot32
	}

	if err := c.emitOp(op); err != nil {
		return err
	}
	c.emitSlot(destSlot)

	if !inRegister {
		c.emitSlot(c.slotForStackIndex(stackIndex))
	}
	return nil
}

func (c *compiler) copyStackTopToSlot(destSlot uint16) error {
	return c.copyStackIndexToSlot(c.stackTopIndex(), destSlot)
}

// A copy-on-write strategy is used with locals: local.get only points the
// stack entry at the local's slot. When a referenced local is re-set, the
// old value must be preserved for those references.
//
// preservedCopyTopSlot writes the new value into destSlot while saving
// the old contents into preserveSlot, in one operation.
func (c *compiler) preservedCopyTopSlot(destSlot, preserveSlot uint16) error {
	vt := c.stackTopType()

	var op operation
	if c.isStackTopInRegister() {
		op = preserveSetSlotOps[vt]
	} else if vt.Is64Bit() {
		op = opPreserveCopySlot64
	} else {
		op = opPreserveCopySlot32
	}

	if err := c.emitOp(op); err != nil {
		return err
	}
	c.emitSlot(destSlot)

	if c.isStackTopInSlot() {
		c.emitSlot(c.stackTopSlotNumber())
	}
	c.emitSlot(preserveSlot)
	return nil
}

// copyStackTopToRegister moves the top into its type's register. With
// updateStack the stack entry is re-pointed at the register; otherwise
// only code is emitted.
func (c *compiler) copyStackTopToRegister(updateStack bool) error {
	if !c.isStackTopInSlot() {
		return nil
	}

	vt := c.stackTopType()

	if updateStack {
		if err := c.preserveRegisterIfOccupied(vt); err != nil {
			return err
		}
	}

	if err := c.emitOp(setRegisterOps[vt]); err != nil {
		return err
	}
	c.emitSlot(c.stackTopSlotNumber())

	if updateStack {
		if err := c.popType(vt); err != nil {
			return err
		}
		return c.pushRegister(vt)
	}
	return nil
}

// returnStackTop writes the top into a return slot and pops it.
func (c *compiler) returnStackTop(returnSlot uint16, vt wasm.ValueType) error {
	top := c.stackTopIndex()
	if top >= c.stackFirstDynamicIndex {
		if err := c.copyStackTopToSlot(returnSlot); err != nil {
			return err
		}
		return c.popType(vt)
	}
	if !c.isStackPolymorphic() {
		return ErrStackUnderrun
	}
	return nil
}

// ---- copy-on-write locals --------------------------------------------

// findReferencedLocalWithinCurrentBlock walks the current block's portion
// of the value stack (stopping at the first non-block outer scope) for
// live copies of the local's slot, rerouting every one to a freshly
// allocated preservation slot. Returns the local's own slot when it is
// unreferenced.
func (c *compiler) findReferencedLocalWithinCurrentBlock(localSlot uint16) (uint16, error) {
	sc := &c.block
	startIndex := sc.initStackIndex

	for sc.opcode == opcodeBlock {
		sc = sc.outer
		if sc == nil {
			break
		}
		startIndex = sc.initStackIndex
	}

	preservedSlot := localSlot

	for i := startIndex; i < c.stackIndex; i++ {
		if c.wasmStack[i] != localSlot {
			continue
		}
		if preservedSlot == localSlot {
			vt := c.stackTypeFromBottom(i)
			slot, err := c.allocateSlots(vt)
			if err != nil {
				return slotUnused, err
			}
			preservedSlot = slot
		} else {
			if err := c.incrementSlotUsageCount(preservedSlot); err != nil {
				return slotUnused, err
			}
		}
		c.wasmStack[i] = preservedSlot
	}
	return preservedSlot, nil
}

// preserveArgsAndLocals reroutes every still-referenced arg and local to
// a preservation slot before a new scope is entered, so cross-block slot
// identity holds on every path.
func (c *compiler) preserveArgsAndLocals() error {
	if c.stackIndex <= c.stackFirstDynamicIndex {
		return nil
	}

	numArgsAndLocals := int(c.function.NumArgsAndLocals())
	for i := 0; i < numArgsAndLocals; i++ {
		slot := c.slotForStackIndex(i)

		preservedSlot, err := c.findReferencedLocalWithinCurrentBlock(slot)
		if err != nil {
			return err
		}
		if preservedSlot == slot {
			continue
		}

		vt := c.stackTypeFromBottom(i)
		op := opCopySlot32
		if vt.Is64Bit() {
			op = opCopySlot64
		}
		if err = c.emitOp(op); err != nil {
			return err
		}
		c.emitSlot(preservedSlot)
		c.emitSlot(slot)
	}
	return nil
}

// ---- scope chain -----------------------------------------------------

// blockScope resolves a branch depth to its target scope.
func (c *compiler) blockScope(depth uint32) (*scope, error) {
	sc := &c.block
	for ; depth > 0; depth-- {
		sc = sc.outer
		if sc == nil {
			return nil, ErrInvalidBlockDepth
		}
	}
	return sc, nil
}

// ---- block result resolution (spec 4.7.6) ----------------------------

// moveStackSlots permutes the stack entries [stackIndex, endStackIndex)
// into consecutive slots starting at targetSlot. Entries later in the
// range that occupy a destination are first evicted to temp slots above
// the high-water mark. Without commitToStack the entries' recorded slots
// are restored on the way back out, for branch paths that fall through.
func (c *compiler) moveStackSlots(targetSlot uint16, stackIndex, endStackIndex int, fillInSlot, tempSlot uint16, commitToStack bool) error {
	if stackIndex >= endStackIndex {
		return nil
	}

	srcSlot := c.slotForStackIndex(stackIndex)

	vt := c.stackTypeFromBottom(stackIndex)
	numSlots := numSlotsForType(vt)
	extraSlot := numSlots - 1

	destSlot := targetSlot
	if numSlots == 1 {
		// An alignment hole left earlier takes the next 1-slot value;
		// the target index doesn't advance.
		if fillInSlot != slotUnused {
			destSlot = fillInSlot
			fillInSlot = slotUnused
		} else {
			targetSlot++
		}
	} else {
		alignSlotToType(&destSlot, vt)
		if destSlot != targetSlot {
			fillInSlot = targetSlot
		}
		targetSlot = destSlot + numSlots
	}

	preserveIndex := stackIndex
	collisionSlot := srcSlot

	if destSlot != srcSlot {
		// Search for a later entry sitting on the destination.
		for checkIndex := stackIndex + 1; checkIndex < endStackIndex; checkIndex++ {
			otherSlot1 := c.slotForStackIndex(checkIndex)
			otherSlot2 := c.extraSlotForStackIndex(checkIndex)

			if destSlot == otherSlot1 || destSlot == otherSlot2 ||
				destSlot+extraSlot == otherSlot1 {
				if tempSlot >= maxFunctionSlots {
					return ErrFunctionStackOverflow
				}

				if err := c.copyStackIndexToSlot(checkIndex, tempSlot); err != nil {
					return err
				}
				c.wasmStack[checkIndex] = tempSlot
				tempSlot += numSlotsForType(wasm.ValueTypeI64)
				if tempSlot > c.function.MaxStackSlots {
					c.function.MaxStackSlots = tempSlot
				}

				// restore this on the way back down
				preserveIndex = checkIndex
				collisionSlot = otherSlot1
				break
			}
		}

		if err := c.copyStackIndexToSlot(stackIndex, destSlot); err != nil {
			return err
		}
	}

	if err := c.moveStackSlots(targetSlot, stackIndex+1, endStackIndex, fillInSlot, tempSlot, commitToStack); err != nil {
		return err
	}

	if !commitToStack {
		// restore the stack state
		c.wasmStack[stackIndex] = srcSlot
		c.wasmStack[preserveIndex] = collisionSlot
	}
	return nil
}

// resolveBlockResults places the block's results into the target scope's
// topSlot layout, keeping a final fp result in the fp register.
func (c *compiler) resolveBlockResults(targetBlock *scope, commitToStack bool) error {
	numResults := targetBlock.blockType.NumResults()
	blockHeight := c.numBlockValuesOnStack()

	if c.isStackPolymorphic() {
		if blockHeight < numResults {
			return ErrTypeCountMismatch
		}
	} else if blockHeight != numResults {
		return ErrTypeCountMismatch
	}

	if numResults == 0 {
		return nil
	}

	stackTop := c.stackTopIndex()
	endIndex := stackTop + 1

	if c.stackTopType().IsFp() {
		if err := c.copyStackTopToRegister(commitToStack); err != nil {
			return err
		}
		endIndex--
	}

	tempSlot := c.getMaxUsedSlotPlusOne()
	alignSlotToType(&tempSlot, wasm.ValueTypeI64)

	return c.moveStackSlots(targetBlock.topSlot, stackTop-(numResults-1), endIndex, slotUnused, tempSlot, commitToStack)
}

// commitBlockResults replaces the block's stack entries with entries
// referencing the scope's result layout: freshly allocated slots at the
// topSlot base, with a final fp result left in the register.
func (c *compiler) commitBlockResults() error {
	if err := c.unwindBlockStack(); err != nil {
		return err
	}

	numResults := c.block.blockType.NumResults()
	for i := 0; i < numResults; i++ {
		vt := c.block.blockType.ResultType(i)
		if vt.IsFp() && i == numResults-1 {
			if err := c.pushRegister(vt); err != nil {
				return err
			}
		} else {
			slot, err := c.allocateSlotsWithinRange(vt, c.block.topSlot, maxFunctionSlots)
			if err != nil {
				return err
			}
			if err = c.push(vt, slot); err != nil {
				return err
			}
		}
	}
	return nil
}

// returnValues writes the function's declared results into the reserved
// return-slot range, popping them in reverse order. Return slots, like
// args, are 64-bit aligned.
func (c *compiler) returnValues() error {
	body, err := c.blockScope(uint32(c.block.depth))
	if err != nil {
		return err
	}

	numReturns := body.blockType.NumResults()
	blockHeight := c.numBlockValuesOnStack()

	if c.isStackPolymorphic() {
		if blockHeight < numReturns {
			return ErrTypeCountMismatch
		}
	} else if blockHeight != numReturns {
		return ErrTypeCountMismatch
	}

	returnSlotIndex := uint16(numReturns) * ioSlotCount
	for i := 0; i < numReturns; i++ {
		returnSlotIndex -= ioSlotCount
		returnType := body.blockType.ResultType(numReturns - 1 - i)
		if err := c.returnStackTop(returnSlotIndex, returnType); err != nil {
			return err
		}
	}
	return nil
}

// copyReturnValues is the non-destructive variant used by a conditional
// branch targeting the function scope: the results are written into the
// return slots but stay live for the fall-through path.
func (c *compiler) copyReturnValues() error {
	body, err := c.blockScope(uint32(c.block.depth))
	if err != nil {
		return err
	}

	numReturns := body.blockType.NumResults()
	blockHeight := c.numBlockValuesOnStack()

	if c.isStackPolymorphic() {
		if blockHeight < numReturns {
			return ErrTypeCountMismatch
		}
	} else if blockHeight != numReturns {
		return ErrTypeCountMismatch
	}

	returnSlotIndex := uint16(numReturns) * ioSlotCount
	for i := 0; i < numReturns; i++ {
		returnSlotIndex -= ioSlotCount
		stackIndex := c.stackTopIndex() - i
		if stackIndex < c.stackFirstDynamicIndex {
			if c.isStackPolymorphic() {
				break
			}
			return ErrStackUnderrun
		}
		if err := c.copyStackIndexToSlot(stackIndex, returnSlotIndex); err != nil {
			return err
		}
	}
	return nil
}
