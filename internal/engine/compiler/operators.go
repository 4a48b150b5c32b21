package compiler

import (
	"fmt"

	"github.com/szsam/wasm3/internal/wasm"
)

// ---- constants -------------------------------------------------------

func (c *compiler) compileConstI32(opc opcode) error {
	value, err := c.readLEBI32()
	if err != nil {
		return err
	}
	log.Tracef("  (const i32 = %d)", value)
	return c.pushConst(uint64(uint32(value)), wasm.ValueTypeI32)
}

func (c *compiler) compileConstI64(opc opcode) error {
	value, err := c.readLEBI64()
	if err != nil {
		return err
	}
	log.Tracef("  (const i64 = %d)", value)
	return c.pushConst(uint64(value), wasm.ValueTypeI64)
}

func (c *compiler) compileConstF32(opc opcode) error {
	bits, err := c.readF32()
	if err != nil {
		return err
	}
	return c.pushConst(uint64(bits), wasm.ValueTypeF32)
}

func (c *compiler) compileConstF64(opc opcode) error {
	bits, err := c.readF64()
	if err != nil {
		return err
	}
	return c.pushConst(bits, wasm.ValueTypeF64)
}

// ---- locals ----------------------------------------------------------

func (c *compiler) compileGetLocal(opc opcode) error {
	localIndex, err := c.readLEBU32()
	if err != nil {
		return err
	}
	if localIndex >= c.function.NumArgsAndLocals() {
		return ErrLocalIndexOutOfBounds
	}

	// No code: the stack entry just references the local's fixed slot.
	vt := c.stackTypeFromBottom(int(localIndex))
	slot := c.slotForStackIndex(int(localIndex))
	return c.push(vt, slot)
}

func (c *compiler) compileSetLocal(opc opcode) error {
	localIndex, err := c.readLEBU32()
	if err != nil {
		return err
	}
	if localIndex >= c.function.NumArgsAndLocals() {
		return ErrLocalIndexOutOfBounds
	}

	localSlot := c.slotForStackIndex(int(localIndex))

	// The preserve slot differs from the local's when live copies exist.
	preserveSlot, err := c.findReferencedLocalWithinCurrentBlock(localSlot)
	if err != nil {
		return err
	}

	if preserveSlot == localSlot {
		err = c.copyStackTopToSlot(localSlot)
	} else {
		err = c.preservedCopyTopSlot(localSlot, preserveSlot)
	}
	if err != nil {
		return err
	}

	if opc != opcodeLocalTee {
		return c.pop()
	}
	return nil
}

// ---- globals ---------------------------------------------------------

func (c *compiler) compileGetGlobal(globalIndex uint32, global *wasm.Global) error {
	op := opGetGlobalS32
	if global.Type.Is64Bit() {
		op = opGetGlobalS64
	}
	if err := c.emitOp(op); err != nil {
		return err
	}
	c.emitWord64(uint64(globalIndex))

	if c.function == nil {
		c.exprValue = global.Value
	}
	return c.pushAllocatedSlotAndEmit(global.Type)
}

func (c *compiler) compileSetGlobal(globalIndex uint32, global *wasm.Global) error {
	if !global.Mutable {
		return ErrSettingImmutableGlobal
	}

	vt := c.stackTopType()
	var op operation
	if c.isStackTopInRegister() {
		op = setGlobalOps[vt]
	} else if vt.Is64Bit() {
		op = opSetGlobalS64
	} else {
		op = opSetGlobalS32
	}

	if err := c.emitOp(op); err != nil {
		return err
	}
	c.emitWord64(uint64(globalIndex))

	if c.isStackTopInSlot() {
		c.emitSlot(c.stackTopSlotNumber())
	}
	return c.pop()
}

func (c *compiler) compileGetSetGlobal(opc opcode) error {
	globalIndex, err := c.readLEBU32()
	if err != nil {
		return err
	}
	if globalIndex >= uint32(len(c.module.Globals)) {
		return ErrGlobalIndexOutOfBounds
	}

	global := c.module.Globals[globalIndex]
	if opc == opcodeGlobalGet {
		return c.compileGetGlobal(globalIndex, global)
	}
	return c.compileSetGlobal(globalIndex, global)
}

// ---- calls -----------------------------------------------------------

// compileCallArgsAndReturn lays out the call frame above the slot
// high-water mark: args copied in reverse into their 64-bit-aligned io
// slots, then the declared returns pushed onto the stack at the frame
// base.
func (c *compiler) compileCallArgsAndReturn(funcType *wasm.FunctionType, isIndirect bool) (uint16, error) {
	topSlot := c.getMaxUsedSlotPlusOne()

	// Force use of at least one slot so the interpreter stack overflows
	// (and traps) before the native stack can.
	if topSlot < 1 {
		topSlot = 1
	}

	// the call frame is 64-bit aligned
	alignSlotToType(&topSlot, wasm.ValueTypeI64)

	// Popping the table index waits until here so the topSlot search
	// stays correct.
	if isIndirect {
		if err := c.pop(); err != nil {
			return 0, err
		}
	}

	numArgs := funcType.NumArgs()
	numRets := funcType.NumResults()

	argTop := topSlot + uint16(numArgs+numRets)*ioSlotCount

	for k := numArgs; k > 0; k-- {
		argTop -= ioSlotCount
		if err := c.copyStackTopToSlot(argTop); err != nil {
			return 0, err
		}
		if err := c.pop(); err != nil {
			return 0, err
		}
	}

	for i := 0; i < numRets; i++ {
		vt := funcType.ResultType(i)
		retSlot := topSlot + uint16(i)*ioSlotCount
		for s := uint16(0); s < numSlotsForType(vt); s++ {
			c.markSlotAllocated(retSlot + s)
		}
		if err := c.push(vt, retSlot); err != nil {
			return 0, err
		}
	}

	return topSlot, nil
}

func (c *compiler) compileCall(opc opcode) error {
	functionIndex, err := c.readLEBU32()
	if err != nil {
		return err
	}

	function := c.module.GetFunction(functionIndex)
	if function == nil {
		return ErrFunctionLookupFailed
	}
	if function.Module == nil {
		return fmt.Errorf("%w: %s", ErrFunctionImportMissing, function.Name)
	}
	log.Tracef("  (func= '%s'; args= %d)", function.Name, function.FuncType.NumArgs())

	slotTop, err := c.compileCallArgsAndReturn(function.FuncType, false)
	if err != nil {
		return err
	}

	// An already-compiled callee is entered directly; otherwise emit a
	// deferred-compilation operation carrying the function reference.
	var op operation
	var operand uint64
	if function.Compiled != 0 {
		op = opCall
		operand = uint64(function.Compiled)
	} else {
		op = opCompile
		operand = uint64(function.Index)
	}

	if err = c.emitOp(op); err != nil {
		return err
	}
	c.emitWord64(operand)
	c.emitSlot(slotTop)
	return nil
}

func (c *compiler) compileCallIndirect(opc opcode) error {
	typeIndex, err := c.readLEBU32()
	if err != nil {
		return err
	}
	if _, err = c.readByte(); err != nil { // reserved table index
		return err
	}

	if typeIndex >= uint32(len(c.module.FuncTypes)) {
		return ErrFuncTypeIndexOutOfBounds
	}

	if c.isStackTopInRegister() {
		if err = c.preserveRegisterIfOccupied(wasm.ValueTypeI32); err != nil {
			return err
		}
	}
	tableIndexSlot := c.stackTopSlotNumber()

	funcType := c.module.FuncTypes[typeIndex]
	execTop, err := c.compileCallArgsAndReturn(funcType, true)
	if err != nil {
		return err
	}

	if err = c.emitOp(opCallIndirect); err != nil {
		return err
	}
	c.emitSlot(tableIndexSlot)
	c.emitWord64(uint64(c.module.Index))
	c.emitWord64(uint64(typeIndex))
	c.emitSlot(execTop)
	return nil
}

// ---- memory ----------------------------------------------------------

func (c *compiler) compileMemorySize(opc opcode) error {
	if _, err := c.readByte(); err != nil { // reserved memory index
		return err
	}
	if err := c.preserveRegisterIfOccupied(wasm.ValueTypeI32); err != nil {
		return err
	}
	if err := c.emitOp(opMemSize); err != nil {
		return err
	}
	return c.pushRegister(wasm.ValueTypeI32)
}

func (c *compiler) compileMemoryGrow(opc opcode) error {
	if _, err := c.readByte(); err != nil { // reserved memory index
		return err
	}
	if err := c.copyStackTopToRegister(false); err != nil {
		return err
	}
	if err := c.pop(); err != nil {
		return err
	}
	if err := c.emitOp(opMemGrow); err != nil {
		return err
	}
	return c.pushRegister(wasm.ValueTypeI32)
}

// ---- select / drop / nop / unreachable -------------------------------

func (c *compiler) compileSelect(opc opcode) error {
	slots := [3]uint16{slotUnused, slotUnused, slotUnused}

	// type of the selected operands, under the selector
	vt := c.stackTopTypeAtOffset(1)

	var op operation

	switch {
	case vt.IsFp():
		if !hasFloat {
			return ErrUnknownOpcode
		}
		// Not consuming the fp register, so protect its contents.
		if !c.isStackTopMinus1InRegister() && !c.isStackTopMinus2InRegister() {
			if err := c.preserveRegisterIfOccupied(vt); err != nil {
				return err
			}
		}

		selectorInReg := 0
		if c.isStackTopInRegister() {
			selectorInReg = 1
		}
		slots[0] = c.stackTopSlotNumber()
		if err := c.pop(); err != nil {
			return err
		}

		opIndex := 0
		for i := 1; i <= 2; i++ {
			if c.isStackTopInRegister() {
				opIndex = i
			} else {
				slots[i] = c.stackTopSlotNumber()
			}
			if err := c.pop(); err != nil {
				return err
			}
		}

		op = fpSelectOps[vt-wasm.ValueTypeF32][selectorInReg][opIndex]

	case vt.IsInt():
		// The _sss variant doesn't consume a register, so protect its
		// contents.
		if !c.isStackTopInRegister() && !c.isStackTopMinus1InRegister() && !c.isStackTopMinus2InRegister() {
			if err := c.preserveRegisterIfOccupied(vt); err != nil {
				return err
			}
		}

		opIndex := 3 // Select_*_sss
		for i := 0; i < 3; i++ {
			if c.isStackTopInRegister() {
				opIndex = i
			} else {
				slots[i] = c.stackTopSlotNumber()
			}
			if err := c.pop(); err != nil {
				return err
			}
		}

		op = intSelectOps[vt-wasm.ValueTypeI32][opIndex]

	default:
		if !c.isStackPolymorphic() {
			return ErrStackUnderrun
		}
		for i := 0; i < 3; i++ {
			if err := c.pop(); err != nil {
				return err
			}
		}
		return nil
	}

	if err := c.emitOp(op); err != nil {
		return err
	}
	for _, slot := range slots {
		if isValidSlot(slot) {
			c.emitSlot(slot)
		}
	}
	return c.pushRegister(vt)
}

func (c *compiler) compileDrop(opc opcode) error {
	return c.pop()
}

func (c *compiler) compileNop(opc opcode) error {
	return nil
}

func (c *compiler) compileUnreachable(opc opcode) error {
	if err := c.emitOp(opUnreachable); err != nil {
		return err
	}
	return c.setStackPolymorphic()
}

// ---- generic operators -----------------------------------------------

// compileOperator is the generic path for the arithmetic, comparison,
// memory, and plain conversion opcodes: pick the operation variant for
// the operand placement, emit the consumed slot offsets top-down, and
// push the register result.
func (c *compiler) compileOperator(opc opcode) error {
	info := getOpInfo(opc)

	var op operation

	// An fp compare produces its result in the int register; move that
	// register's current tenant out of the way up front, since the
	// operation will overwrite it.
	if c.stackTopType().IsFp() && info.valueType.IsInt() {
		if err := c.preserveRegisterIfOccupied(info.valueType); err != nil {
			return err
		}
	}

	if info.stackOffset == 0 {
		if c.isStackTopInRegister() {
			op = info.ops[0] // _r
		} else {
			if err := c.preserveRegisterIfOccupied(info.valueType); err != nil {
				return err
			}
			op = info.ops[1] // _s
		}
	} else {
		if c.isStackTopInRegister() {
			op = info.ops[0] // _rs
			if c.isStackTopMinus1InRegister() {
				op = info.ops[3] // _rr, fp.store only
			}
		} else if c.isStackTopMinus1InRegister() {
			op = info.ops[1] // _sr
			if op == opNone {
				// must be commutative, then
				op = info.ops[0]
			}
		} else {
			if err := c.preserveRegisterIfOccupied(info.valueType); err != nil {
				return err
			}
			op = info.ops[2] // _ss
		}
	}

	if op == opNone {
		return fmt.Errorf("%w: no operation for '%s'", ErrUnknownOpcode, info.name)
	}

	if err := c.emitOp(op); err != nil {
		return err
	}
	if err := c.emitSlotNumOfStackTopAndPop(); err != nil {
		return err
	}
	if info.stackOffset < 0 {
		if err := c.emitSlotNumOfStackTopAndPop(); err != nil {
			return err
		}
	}
	if info.valueType != none {
		return c.pushRegister(info.valueType)
	}
	return nil
}

// compileConvert handles the conversions with a 4-way variant table
// indexed by destination and source placement. The destination goes to a
// register unless that register already holds another value.
func (c *compiler) compileConvert(opc opcode) error {
	info := getOpInfo(opc)

	destInSlot := c.isRegisterTypeAllocated(info.valueType)
	sourceInSlot := c.isStackTopInSlot()

	var variant int
	if destInSlot {
		variant += 2
	}
	if sourceInSlot {
		variant++
	}
	op := info.ops[variant]

	if err := c.emitOp(op); err != nil {
		return err
	}
	if err := c.emitSlotNumOfStackTopAndPop(); err != nil {
		return err
	}

	if destInSlot {
		return c.pushAllocatedSlotAndEmit(info.valueType)
	}
	return c.pushRegister(info.valueType)
}

// compileLoadStore reads the alignment hint and offset immediates, runs
// the generic operator, then appends the memory offset.
func (c *compiler) compileLoadStore(opc opcode) error {
	if _, err := c.readLEBU32(); err != nil { // alignment hint
		return err
	}
	memoryOffset, err := c.readLEBU32()
	if err != nil {
		return err
	}
	log.Tracef("  (offset = %d)", memoryOffset)

	info := getOpInfo(opc)

	if info.valueType.IsFp() {
		if err = c.preserveRegisterIfOccupied(wasm.ValueTypeF64); err != nil {
			return err
		}
	}

	if err = c.compileOperator(opc); err != nil {
		return err
	}

	c.emitWord32(memoryOffset)
	return nil
}
