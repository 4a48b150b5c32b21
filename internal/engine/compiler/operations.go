package compiler

import "fmt"

// operation identifies one threaded-code operation. An emitted operation
// cell is its value zero-extended to a machine word; the executing VM
// dispatches on it.
//
// Structural operations get named constants. The specialized variants of
// the arithmetic, comparison, memory, and conversion opcodes are packed
// from the Wasm opcode and a variant index so the dispatch table stays
// four words per opcode.
type operation uint16

const (
	opNone operation = iota

	opUnreachable
	opEntry
	opLoop
	opBranch
	opBranchIfPrologueR
	opBranchIfPrologueS
	opBranchTable
	opContinueLoop
	opContinueLoopIf
	opIfR
	opIfS
	opReturn
	opCall
	opCompile
	opCallIndirect
	opMemSize
	opMemGrow
	opConst32
	opConst64

	opGetGlobalS32
	opGetGlobalS64
	opSetGlobalS32
	opSetGlobalS64
	opSetGlobalI32
	opSetGlobalI64
	opSetGlobalF32
	opSetGlobalF64

	opSetSlotI32
	opSetSlotI64
	opSetSlotF32
	opSetSlotF64
	opSetRegisterI32
	opSetRegisterI64
	opSetRegisterF32
	opSetRegisterF64
	opPreserveSetSlotI32
	opPreserveSetSlotI64
	opPreserveSetSlotF32
	opPreserveSetSlotF64

	opCopySlot32
	opCopySlot64
	opPreserveCopySlot32
	opPreserveCopySlot64

	opSelectI32Rss
	opSelectI32Srs
	opSelectI32Ssr
	opSelectI32Sss
	opSelectI64Rss
	opSelectI64Srs
	opSelectI64Ssr
	opSelectI64Sss

	opSelectF32Sss
	opSelectF32Srs
	opSelectF32Ssr
	opSelectF32Rss
	opSelectF32Rrs
	opSelectF32Rsr
	opSelectF64Sss
	opSelectF64Srs
	opSelectF64Ssr
	opSelectF64Rss
	opSelectF64Rrs
	opSelectF64Rsr
)

// Packed variant encodings. Bit 14 marks a one-byte opcode variant, bit
// 15 an 0xFC-prefixed one; the low bits carry opcode<<2 | variant.
const (
	opVariantBase    operation = 0x4000
	opVariantExtBase operation = 0x8000
)

func variantOp(opc opcode, variant int) operation {
	if opc>>8 == 0xFC {
		return opVariantExtBase | operation(opc&0xff)<<2 | operation(variant)
	}
	return opVariantBase | operation(opc)<<2 | operation(variant)
}

func (op operation) isVariant() bool {
	return op&(opVariantBase|opVariantExtBase) != 0
}

func (op operation) variantOpcode() (opcode, int) {
	if op&opVariantExtBase != 0 {
		return 0xFC00 | (opcode(op>>2) & 0xff), int(op & 3)
	}
	return opcode(op>>2) & 0xff, int(op & 3)
}

var opNames = map[operation]string{
	opNone:               "None",
	opUnreachable:        "Unreachable",
	opEntry:              "Entry",
	opLoop:               "Loop",
	opBranch:             "Branch",
	opBranchIfPrologueR:  "BranchIfPrologue_r",
	opBranchIfPrologueS:  "BranchIfPrologue_s",
	opBranchTable:        "BranchTable",
	opContinueLoop:       "ContinueLoop",
	opContinueLoopIf:     "ContinueLoopIf",
	opIfR:                "If_r",
	opIfS:                "If_s",
	opReturn:             "Return",
	opCall:               "Call",
	opCompile:            "Compile",
	opCallIndirect:       "CallIndirect",
	opMemSize:            "MemSize",
	opMemGrow:            "MemGrow",
	opConst32:            "Const32",
	opConst64:            "Const64",
	opGetGlobalS32:       "GetGlobal_s32",
	opGetGlobalS64:       "GetGlobal_s64",
	opSetGlobalS32:       "SetGlobal_s32",
	opSetGlobalS64:       "SetGlobal_s64",
	opSetGlobalI32:       "SetGlobal_i32",
	opSetGlobalI64:       "SetGlobal_i64",
	opSetGlobalF32:       "SetGlobal_f32",
	opSetGlobalF64:       "SetGlobal_f64",
	opSetSlotI32:         "SetSlot_i32",
	opSetSlotI64:         "SetSlot_i64",
	opSetSlotF32:         "SetSlot_f32",
	opSetSlotF64:         "SetSlot_f64",
	opSetRegisterI32:     "SetRegister_i32",
	opSetRegisterI64:     "SetRegister_i64",
	opSetRegisterF32:     "SetRegister_f32",
	opSetRegisterF64:     "SetRegister_f64",
	opPreserveSetSlotI32: "PreserveSetSlot_i32",
	opPreserveSetSlotI64: "PreserveSetSlot_i64",
	opPreserveSetSlotF32: "PreserveSetSlot_f32",
	opPreserveSetSlotF64: "PreserveSetSlot_f64",
	opCopySlot32:         "CopySlot_32",
	opCopySlot64:         "CopySlot_64",
	opPreserveCopySlot32: "PreserveCopySlot_32",
	opPreserveCopySlot64: "PreserveCopySlot_64",
	opSelectI32Rss:       "Select_i32_rss",
	opSelectI32Srs:       "Select_i32_srs",
	opSelectI32Ssr:       "Select_i32_ssr",
	opSelectI32Sss:       "Select_i32_sss",
	opSelectI64Rss:       "Select_i64_rss",
	opSelectI64Srs:       "Select_i64_srs",
	opSelectI64Ssr:       "Select_i64_ssr",
	opSelectI64Sss:       "Select_i64_sss",
	opSelectF32Sss:       "Select_f32_sss",
	opSelectF32Srs:       "Select_f32_srs",
	opSelectF32Ssr:       "Select_f32_ssr",
	opSelectF32Rss:       "Select_f32_rss",
	opSelectF32Rrs:       "Select_f32_rrs",
	opSelectF32Rsr:       "Select_f32_rsr",
	opSelectF64Sss:       "Select_f64_sss",
	opSelectF64Srs:       "Select_f64_srs",
	opSelectF64Ssr:       "Select_f64_ssr",
	opSelectF64Rss:       "Select_f64_rss",
	opSelectF64Rrs:       "Select_f64_rrs",
	opSelectF64Rsr:       "Select_f64_rsr",
}

// String returns a wasm3-style operation name, e.g. "i32.add_ss".
func (op operation) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	if op.isVariant() {
		opc, variant := op.variantOpcode()
		if info := getOpInfo(opc); info != nil && info.suffixes != nil {
			return info.name + info.suffixes[variant]
		}
	}
	return fmt.Sprintf("op(%#x)", uint16(op))
}

// OperationName resolves an emitted operation cell back to its name, for
// traces and code-page dumps. Returns "" for cells that cannot be an
// operation.
func OperationName(cell uint64) string {
	if cell > 0xffff {
		return ""
	}
	return operation(cell).String()
}
