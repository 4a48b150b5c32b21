// Package compiler translates Wasm function bodies into threaded code in
// a single forward pass. Validation, constant interning, register and
// slot allocation, and emission happen together, one opcode at a time;
// no intermediate representation is built.
package compiler

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/szsam/wasm3/internal/engine/codepage"
	"github.com/szsam/wasm3/internal/leb128"
	"github.com/szsam/wasm3/internal/wasm"
)

var log = logrus.WithField("subsystem", "compiler")

// scope is one control scope: the function body, a block, loop, if, or
// else. Scopes chain outward; the innermost lives by value on the
// compilation session.
type scope struct {
	outer *scope

	// pc is the code-page address at scope entry, the branch target for
	// a loop.
	pc codepage.PC

	// patches are the reserved branch-target cells to resolve when the
	// scope's end is reached.
	patches []codepage.Ref

	blockType *wasm.FunctionType

	// initStackIndex is the stack depth at scope entry, excluding any
	// pre-consumed operands.
	initStackIndex int

	// topSlot is the base slot the scope's results must land in.
	topSlot uint16

	depth  int
	opcode opcode

	// isPolymorphic is set after an unconditional transfer; typed pops
	// then succeed vacuously.
	isPolymorphic bool
}

// compiler is one compilation session. It is reset per function and owns
// no resources beyond the code page it is currently emitting into.
type compiler struct {
	runtime  *wasm.Runtime
	module   *wasm.Module
	function *wasm.Function

	wasm []byte
	pos  int

	page *codepage.Page

	previousOpcode opcode

	block scope

	// The value stack: two parallel sequences of equal length.
	stackIndex             int
	stackFirstDynamicIndex int
	wasmStack              [maxFunctionStackHeight]uint16
	typeStack              [maxFunctionStackHeight]wasm.ValueType

	// The slot table: 0 is free, otherwise the reference count.
	slots                        [maxFunctionSlots]uint8
	slotFirstConstIndex          uint16
	slotMaxConstIndex            uint16
	slotFirstLocalIndex          uint16
	slotFirstDynamicIndex        uint16
	slotMaxAllocatedIndexPlusOne uint16

	// Zero means unallocated; otherwise stackIndex+1 of the value the
	// register holds. Index 0 is the int register, 1 the fp register.
	regStackIndexPlusOne [2]int

	// constants is the pool buffer, one cell per constant slot.
	constants [maxConstantTableSize]uint32

	// exprValue captures the result of a constant-expression compile.
	exprValue uint64
}

var compilationPool = sync.Pool{New: func() interface{} { return new(compiler) }}

// CompileFunction compiles fn.Wasm (locals vector plus expression) into
// threaded code on the runtime's code pages, filling in fn.Compiled,
// fn.Constants, and the slot accounting fields. The first error aborts
// compilation; no partial code is exposed.
func CompileFunction(fn *wasm.Function) error {
	c := compilationPool.Get().(*compiler)
	defer compilationPool.Put(c)
	*c = compiler{}
	return c.compileFunction(fn)
}

// CompileConstantExpression validates a constant expression (a global
// initializer or data-segment offset) and returns its value bits. Only
// the const opcodes, global.get, and end are admitted; nothing is
// emitted.
func CompileConstantExpression(m *wasm.Module, expectedType wasm.ValueType, expr []byte) (uint64, error) {
	c := compilationPool.Get().(*compiler)
	defer compilationPool.Put(c)
	*c = compiler{}

	c.runtime = m.Runtime
	c.module = m
	c.wasm = expr
	c.block.blockType = m.Runtime.BlockType(expectedType)

	if err := c.compileBlockStatements(); err != nil {
		return 0, err
	}
	if c.previousOpcode != opcodeEnd {
		return 0, fmt.Errorf("%w: constant expression missing end", ErrWasmMalformed)
	}
	return c.exprValue, nil
}

func (c *compiler) compileFunction(fn *wasm.Function) (err error) {
	if fn.Wasm == nil {
		return fmt.Errorf("%w: function body is missing", ErrWasmMalformed)
	}

	funcType := fn.FuncType
	log.Tracef("compiling [%d] %s %s; wasm-size: %d", fn.Index, fn.Name, funcType, len(fn.Wasm))

	fn.NumLocals = 0
	fn.Compiled = 0
	fn.Constants = nil
	fn.NumConstantBytes = 0
	fn.MaxStackSlots = 0
	fn.CodePageRefs = nil

	c.runtime = fn.Module.Runtime
	c.module = fn.Module
	c.function = fn
	c.wasm = fn.Wasm
	c.block.blockType = funcType

	c.page, err = c.acquireCodePage(codePageFreeWordsThreshold)
	if err != nil {
		return err
	}
	defer c.releaseCodePage()

	pc := c.page.PC()

	numRetSlots := uint16(funcType.NumResults()) * ioSlotCount
	for i := uint16(0); i < numRetSlots; i++ {
		c.markSlotAllocated(i)
	}
	fn.NumRetSlots = numRetSlots
	c.slotFirstDynamicIndex = numRetSlots

	// Arguments get their slots pushed one by one; advancing the dynamic
	// base in lock-step keeps the allocator from filling in between them.
	for i := 0; i < funcType.NumArgs(); i++ {
		if err = c.pushAllocatedSlot(funcType.ArgType(i)); err != nil {
			return err
		}
		c.slotFirstDynamicIndex += ioSlotCount
	}

	c.slotMaxAllocatedIndexPlusOne = c.slotFirstDynamicIndex
	c.slotFirstLocalIndex = c.slotFirstDynamicIndex
	fn.NumRetAndArgSlots = c.slotFirstDynamicIndex

	if err = c.compileLocals(); err != nil {
		return err
	}

	maxSlot := c.getMaxUsedSlotPlusOne()
	fn.NumLocalBytes = uint32(maxSlot-c.slotFirstLocalIndex) * slotByteSize

	c.slotFirstConstIndex = maxSlot
	c.slotMaxConstIndex = maxSlot

	if err = c.reserveConstants(); err != nil {
		return err
	}

	// Track the max slot used from here on so the entry operation can
	// detect stack overflow precisely.
	c.slotMaxAllocatedIndexPlusOne = c.slotFirstDynamicIndex
	fn.MaxStackSlots = c.slotFirstDynamicIndex

	c.block.topSlot = c.slotFirstDynamicIndex
	c.block.initStackIndex = c.stackIndex
	c.stackFirstDynamicIndex = c.stackIndex
	log.Tracef("start stack index: %d; top slot: %d", c.stackFirstDynamicIndex, c.block.topSlot)

	if err = c.emitOp(opEntry); err != nil {
		return err
	}
	c.emitWord64(uint64(fn.Index))

	if err = c.compileBlockStatements(); err != nil {
		return err
	}
	if c.previousOpcode != opcodeEnd {
		return fmt.Errorf("%w: function body not terminated by end", ErrWasmMalformed)
	}

	fn.Compiled = pc

	numConstantSlots := c.slotMaxConstIndex - c.slotFirstConstIndex
	log.Tracef("unique constant slots: %d; unused slots: %d",
		numConstantSlots, c.slotFirstDynamicIndex-c.slotMaxConstIndex)

	fn.NumConstantBytes = uint32(numConstantSlots) * slotByteSize
	if numConstantSlots > 0 {
		fn.Constants = make([]byte, fn.NumConstantBytes)
		for i := uint16(0); i < numConstantSlots; i++ {
			binary.LittleEndian.PutUint32(fn.Constants[i*4:], c.constants[i])
		}
	}
	return nil
}

// compileLocals reads the locals vector, pushing one freshly allocated
// slot per declared local.
func (c *compiler) compileLocals() error {
	numLocalBlocks, err := c.readLEBU32()
	if err != nil {
		return err
	}
	for l := uint32(0); l < numLocalBlocks; l++ {
		varCount, err := c.readLEBU32()
		if err != nil {
			return err
		}
		localType, err := c.readValueType()
		if err != nil {
			return err
		}
		log.Tracef("pushing locals. count: %d; type: %s", varCount, localType)
		for ; varCount > 0; varCount-- {
			if err = c.pushAllocatedSlot(localType); err != nil {
				return err
			}
			c.function.NumLocals++
		}
	}
	return nil
}

// reserveConstants sizes the constant pool with a blind byte scan of the
// remaining body: any byte that looks like a const opcode counts. The
// estimate only overshoots, and it is capped; overflowing constants fall
// back to inline immediates.
func (c *compiler) reserveConstants() error {
	numConstantSlots := uint16(0)
	for _, code := range c.wasm[c.pos:] {
		switch opcode(code) {
		case opcodeI32Const, opcodeF32Const:
			numConstantSlots++
		case opcodeI64Const, opcodeF64Const:
			numConstantSlots += numSlotsForType(wasm.ValueTypeI64)
		}
		if numConstantSlots >= maxConstantTableSize {
			numConstantSlots = maxConstantTableSize
			break
		}
	}

	alignSlotToType(&numConstantSlots, wasm.ValueTypeI64)
	log.Tracef("reserved constant slots: %d", numConstantSlots)

	c.slotFirstDynamicIndex = c.slotFirstConstIndex + numConstantSlots
	if c.slotFirstDynamicIndex >= maxFunctionSlots {
		return ErrFunctionStackOverflow
	}
	return nil
}

// compileBlockStatements drives the opcode loop until the current block's
// end (or else) is consumed.
func (c *compiler) compileBlockStatements() error {
	validEnd := false

	for c.pos < len(c.wasm) {
		opc, err := c.readOpcode()
		if err != nil {
			return err
		}
		log.Tracef("%*s%s", c.block.depth*2, "", opcodeName(opc))

		// Constant expressions admit almost nothing.
		if c.function == nil {
			switch opc {
			case opcodeI32Const, opcodeI64Const, opcodeF32Const, opcodeF64Const,
				opcodeGlobalGet, opcodeEnd:
			default:
				return ErrRestrictedOpcode
			}
		}

		info := getOpInfo(opc)
		if info == nil {
			return fmt.Errorf("%w: 0x%x", ErrUnknownOpcode, uint16(opc))
		}

		if info.compiler != nil {
			err = info.compiler(c, opc)
		} else {
			err = c.compileOperator(opc)
		}
		if err != nil {
			return err
		}

		c.previousOpcode = opc

		if opc == opcodeElse {
			if c.block.opcode != opcodeIf {
				return fmt.Errorf("%w: else outside if", ErrWasmMalformed)
			}
			validEnd = true
			break
		} else if opc == opcodeEnd {
			validEnd = true
			break
		}
	}
	if !validEnd {
		return fmt.Errorf("%w: block not terminated", ErrWasmMalformed)
	}
	return nil
}

// compileBlock compiles one nested scope: snapshot the outer scope,
// install the new one, run the statement loop, then settle results and
// patch pending branches.
func (c *compiler) compileBlock(blockType *wasm.FunctionType, blockOpcode opcode) error {
	outerScope := c.block

	c.block = scope{
		outer:          &outerScope,
		pc:             c.pc(),
		blockType:      blockType,
		initStackIndex: c.stackIndex,
		topSlot:        c.getMaxUsedSlotPlusOne(),
		depth:          outerScope.depth + 1,
		opcode:         blockOpcode,
	}

	err := c.compileBlockStatements()
	if err != nil {
		return err
	}

	if c.function != nil { // skip for expressions
		if err = c.validateBlockEnd(); err != nil {
			return err
		}
		if err = c.resolveBlockResults(&c.block, false); err != nil {
			return err
		}
		if c.previousOpcode == opcodeElse {
			err = c.unwindBlockStack()
		} else {
			err = c.commitBlockResults()
		}
		if err != nil {
			return err
		}
	}

	c.patchBranches()

	c.block = outerScope
	return nil
}

func opcodeName(opc opcode) string {
	if info := getOpInfo(opc); info != nil {
		return info.name
	}
	return fmt.Sprintf("0x%x", uint16(opc))
}

// ---- bytecode cursor -------------------------------------------------

func (c *compiler) readByte() (byte, error) {
	if c.pos >= len(c.wasm) {
		return 0, fmt.Errorf("%w: unexpected end of body", ErrWasmMalformed)
	}
	b := c.wasm[c.pos]
	c.pos++
	return b, nil
}

func (c *compiler) readOpcode() (opcode, error) {
	b, err := c.readByte()
	if err != nil {
		return 0, err
	}
	if compileExtendedOpcode && opcode(b) == opcodePrefixFC {
		sub, err := c.readByte()
		if err != nil {
			return 0, err
		}
		return 0xFC00 | opcode(sub), nil
	}
	return opcode(b), nil
}

func (c *compiler) readLEBU32() (uint32, error) {
	v, n, err := leb128.LoadUint32(c.wasm[c.pos:])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWasmMalformed, err)
	}
	c.pos += int(n)
	return v, nil
}

func (c *compiler) readLEBI32() (int32, error) {
	v, n, err := leb128.LoadInt32(c.wasm[c.pos:])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWasmMalformed, err)
	}
	c.pos += int(n)
	return v, nil
}

func (c *compiler) readLEBI64() (int64, error) {
	v, n, err := leb128.LoadInt64(c.wasm[c.pos:])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWasmMalformed, err)
	}
	c.pos += int(n)
	return v, nil
}

func (c *compiler) readLEBI33() (int64, error) {
	v, n, err := leb128.LoadInt33AsInt64(c.wasm[c.pos:])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWasmMalformed, err)
	}
	c.pos += int(n)
	return v, nil
}

func (c *compiler) readF32() (uint32, error) {
	if c.pos+4 > len(c.wasm) {
		return 0, fmt.Errorf("%w: truncated f32 literal", ErrWasmMalformed)
	}
	v := binary.LittleEndian.Uint32(c.wasm[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *compiler) readF64() (uint64, error) {
	if c.pos+8 > len(c.wasm) {
		return 0, fmt.Errorf("%w: truncated f64 literal", ErrWasmMalformed)
	}
	v := binary.LittleEndian.Uint64(c.wasm[c.pos:])
	c.pos += 8
	return v, nil
}

func (c *compiler) readValueType() (wasm.ValueType, error) {
	b, err := c.readByte()
	if err != nil {
		return 0, err
	}
	vt, err := wasm.DecodeValueType(b)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWasmMalformed, err)
	}
	return vt, nil
}

// readBlockType reads a block-type immediate: negative values are value
// types, non-negative ones index the module's type section.
func (c *compiler) readBlockType() (*wasm.FunctionType, error) {
	raw, err := c.readLEBI33()
	if err != nil {
		return nil, err
	}
	if raw < 0 {
		vt, err := wasm.DecodeValueType(byte(raw & 0x7f))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWasmMalformed, err)
		}
		return c.runtime.BlockType(vt), nil
	}
	if raw >= int64(len(c.module.FuncTypes)) {
		return nil, ErrFuncTypeIndexOutOfBounds
	}
	return c.module.FuncTypes[raw], nil
}

// ---- code-page plumbing ----------------------------------------------

func (c *compiler) acquireCodePage(minFree int) (*codepage.Page, error) {
	page := c.runtime.AcquireCodePage(minFree)
	if page == nil {
		return nil, ErrCodePageFull
	}
	if enableCodePageRefCounting && c.function != nil {
		c.function.CodePageRefs = append(c.function.CodePageRefs, page)
	}
	return page, nil
}

func (c *compiler) releaseCodePage() {
	c.runtime.ReleaseCodePage(c.page)
}

// ensureCapacity guarantees numWords free cells on the current page, or
// moves to a fresh page stitched in with a trailing branch. The page
// boundary is invisible to callers.
func (c *compiler) ensureCapacity(numWords int) error {
	if c.page == nil {
		return nil
	}
	if c.page.NumFreeWords() >= numWords+2 {
		return nil
	}
	next, err := c.acquireCodePage(numWords + 2)
	if err != nil {
		return err
	}
	c.page.EmitWord(uint64(opBranch))
	c.page.EmitWord(uint64(next.PC()))
	c.runtime.ReleaseCodePage(c.page)
	c.page = next
	return nil
}

func (c *compiler) emitOp(op operation) error {
	if c.page == nil {
		return nil
	}
	if err := c.ensureCapacity(codePageFreeWordsThreshold); err != nil {
		return err
	}
	log.Tracef("  emit %v", op)
	c.page.EmitWord(uint64(op))
	return nil
}

func (c *compiler) emitSlot(slot uint16) {
	if c.page == nil {
		return
	}
	c.page.EmitWord(uint64(slot))
}

func (c *compiler) emitWord32(w uint32) {
	if c.page == nil {
		return
	}
	c.page.EmitWord32(w)
}

func (c *compiler) emitWord64(w uint64) {
	if c.page == nil {
		return
	}
	c.page.EmitWord64(w)
}

func (c *compiler) emitPC(pc codepage.PC) {
	if c.page == nil {
		return
	}
	c.page.EmitWord(uint64(pc))
}

func (c *compiler) reservePC() codepage.Ref {
	if c.page == nil {
		return codepage.Ref{}
	}
	return c.page.Reserve()
}

// pc returns the address of the next cell to be emitted.
func (c *compiler) pc() codepage.PC {
	if c.page == nil {
		return 0
	}
	return c.page.PC()
}
