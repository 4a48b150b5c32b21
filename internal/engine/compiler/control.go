package compiler

import (
	"fmt"

	"github.com/szsam/wasm3/internal/engine/codepage"
	"github.com/szsam/wasm3/internal/wasm"
)

func (c *compiler) compileLoopOrBlock(opc opcode) error {
	if err := c.preserveRegisters(); err != nil {
		return err
	}
	if err := c.preserveArgsAndLocals(); err != nil {
		return err
	}

	blockType, err := c.readBlockType()
	if err != nil {
		return err
	}

	if opc == opcodeLoop {
		if err = c.emitOp(opLoop); err != nil {
			return err
		}
	}

	return c.compileBlock(blockType, opc)
}

// compileElseBlock compiles the else body onto a fresh page, ending with
// a branch back into the parent page, and returns the else entry pc for
// the if's reserved pointer.
func (c *compiler) compileElseBlock(blockType *wasm.FunctionType) (codepage.PC, error) {
	elsePage, err := c.acquireCodePage(codePageFreeWordsThreshold)
	if err != nil {
		return 0, err
	}

	startPC := elsePage.PC()

	savedPage := c.page
	c.page = elsePage

	if err = c.compileBlock(blockType, opcodeElse); err != nil {
		return 0, err
	}

	if err = c.emitOp(opBranch); err != nil {
		return 0, err
	}
	c.emitPC(savedPage.PC())

	c.releaseCodePage()
	c.page = savedPage
	return startPC, nil
}

//	[   If    ]
//	[<else-pc>]  ---->  [ ..else.. ]
//	[  ..if.. ]         [ ..block..]
//	[ ..block.]         [  Branch  ]
//	[   end   ] <-----  [ <end-pc> ]
func (c *compiler) compileIf(opc opcode) error {
	if err := c.preserveNonTopRegisters(); err != nil {
		return err
	}
	if err := c.preserveArgsAndLocals(); err != nil {
		return err
	}

	op := opIfS
	if c.isStackTopInRegister() {
		op = opIfR
	}
	if err := c.emitOp(op); err != nil {
		return err
	}
	if err := c.emitSlotNumOfStackTopAndPop(); err != nil {
		return err
	}

	ref := c.reservePC()

	blockType, err := c.readBlockType()
	if err != nil {
		return err
	}

	if err = c.compileBlock(blockType, opc); err != nil {
		return err
	}

	if c.previousOpcode == opcodeElse {
		elsePC, err := c.compileElseBlock(blockType)
		if err != nil {
			return err
		}
		ref.Set(elsePC)
	} else {
		ref.Set(c.pc())
	}
	return nil
}

// validateBlockEnd settles the stack when the scope closes. A polymorphic
// stack is unwound and the declared results re-pushed (the last fp result
// in the register); otherwise the produced count and types are checked
// against the declaration.
func (c *compiler) validateBlockEnd() error {
	numResults := c.block.blockType.NumResults()

	if c.isStackPolymorphic() {
		if err := c.unwindBlockStack(); err != nil {
			return err
		}
		for i := 0; i < numResults; i++ {
			vt := c.block.blockType.ResultType(i)
			if i == numResults-1 && vt.IsFp() {
				return c.pushRegister(vt)
			}
			if err := c.pushAllocatedSlot(vt); err != nil {
				return err
			}
		}
		return nil
	}

	if c.numBlockValuesOnStack() != numResults {
		return ErrTypeCountMismatch
	}
	for i := 0; i < numResults; i++ {
		produced := c.stackTypeFromBottom(c.block.initStackIndex + i)
		if produced != c.block.blockType.ResultType(i) {
			return fmt.Errorf("%w: block result %d is %s, expected %s",
				ErrTypeMismatch, i, produced, c.block.blockType.ResultType(i))
		}
	}
	return nil
}

func (c *compiler) compileEnd(opc opcode) error {
	// Anything below the function scope is handled by compileBlock.
	if c.block.depth != 0 {
		return nil
	}

	if err := c.validateBlockEnd(); err != nil {
		return err
	}
	if c.function != nil {
		if err := c.returnValues(); err != nil {
			return err
		}
	}
	return c.emitOp(opReturn)
}

func (c *compiler) compileReturn(opc opcode) error {
	if err := c.returnValues(); err != nil {
		return err
	}
	if err := c.emitOp(opReturn); err != nil {
		return err
	}
	return c.setStackPolymorphic()
}

// emitPatchingBranch emits a branch whose target cell is linked into the
// scope's patch list, resolved at the scope's end.
func (c *compiler) emitPatchingBranch(sc *scope) error {
	if err := c.emitOp(opBranch); err != nil {
		return err
	}
	ref := c.reservePC()
	if ref.IsValid() {
		sc.patches = append(sc.patches, ref)
	}
	return nil
}

func (c *compiler) compileBranch(opc opcode) error {
	depth, err := c.readLEBU32()
	if err != nil {
		return err
	}

	sc, err := c.blockScope(depth)
	if err != nil {
		return err
	}

	// The branch target is a loop: continue.
	if sc.opcode == opcodeLoop {
		var op operation
		if opc == opcodeBrIf {
			op = opContinueLoopIf
			// move the condition to a register
			if err = c.copyStackTopToRegister(false); err != nil {
				return err
			}
			if err = c.popType(wasm.ValueTypeI32); err != nil {
				return err
			}
		} else {
			op = opContinueLoop
			c.block.isPolymorphic = true
		}

		if err = c.emitOp(op); err != nil {
			return err
		}
		c.emitPC(sc.pc)
		return nil
	}

	// Forward branch.
	var jumpTo codepage.Ref
	if opc == opcodeBrIf {
		op := opBranchIfPrologueS
		if c.isStackTopInRegister() {
			op = opBranchIfPrologueR
		}
		if err = c.emitOp(op); err != nil {
			return err
		}
		if err = c.emitSlotNumOfStackTopAndPop(); err != nil { // condition
			return err
		}
		// continuation point when the branch isn't taken
		jumpTo = c.reservePC()
	}

	if sc.depth == 0 {
		// Branching to the function scope returns.
		if opc == opcodeBrIf {
			if err = c.copyReturnValues(); err != nil {
				return err
			}
		} else if err = c.returnValues(); err != nil {
			return err
		}
		if err = c.emitOp(opReturn); err != nil {
			return err
		}
	} else {
		if err = c.resolveBlockResults(sc, false); err != nil {
			return err
		}
		if err = c.emitPatchingBranch(sc); err != nil {
			return err
		}
	}

	if jumpTo.IsValid() {
		jumpTo.Set(c.pc())
		return nil
	}
	return c.setStackPolymorphic()
}

func (c *compiler) compileBranchTable(opc opcode) error {
	targetCount, err := c.readLEBU32()
	if err != nil {
		return err
	}

	// move the branch operand to a slot
	if err = c.preserveRegisterIfOccupied(wasm.ValueTypeI64); err != nil {
		return err
	}
	slot := c.stackTopSlotNumber()
	if err = c.pop(); err != nil {
		return err
	}

	// Keep the whole table on one page: operation + slot + count +
	// targetCount+1 entries.
	if err = c.ensureCapacity(int(targetCount) + 4); err != nil {
		return err
	}

	if err = c.emitOp(opBranchTable); err != nil {
		return err
	}
	c.emitSlot(slot)
	c.emitWord32(targetCount)

	targetCount++ // include the default target
	for i := uint32(0); i < targetCount; i++ {
		target, err := c.readLEBU32()
		if err != nil {
			return err
		}

		sc, err := c.blockScope(target)
		if err != nil {
			return err
		}

		// Each target entry gets its own page, stitched into the main
		// stream as an absolute pc.
		targetPage, err := c.acquireCodePage(codePageFreeWordsThreshold)
		if err != nil {
			return err
		}

		startPC := targetPage.PC()
		savedPage := c.page
		c.page = targetPage

		if sc.opcode == opcodeLoop {
			if err = c.emitOp(opContinueLoop); err != nil {
				return err
			}
			c.emitPC(sc.pc)
		} else if sc.depth == 0 {
			// A function-scope target returns.
			if err = c.copyReturnValues(); err != nil {
				return err
			}
			if err = c.emitOp(opReturn); err != nil {
				return err
			}
		} else {
			if err = c.resolveBlockResults(sc, false); err != nil {
				return err
			}
			if err = c.emitPatchingBranch(sc); err != nil {
				return err
			}
		}

		c.releaseCodePage()
		c.page = savedPage

		c.emitPC(startPC)
	}

	return c.setStackPolymorphic()
}
