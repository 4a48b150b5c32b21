package wasm

import (
	"fmt"
	"strings"
)

// ValueType is a Wasm 1.0 value type in its normalized form: a small
// enum the compiler can index tables with, rather than the raw
// 0x7f..0x7c binary encoding.
type ValueType byte

const (
	ValueTypeNone ValueType = iota
	ValueTypeI32
	ValueTypeI64
	ValueTypeF32
	ValueTypeF64
)

// Binary encodings of the value types (and the empty block type) per the
// Wasm 1.0 binary format.
const (
	encodedValueTypeI32   = 0x7f
	encodedValueTypeI64   = 0x7e
	encodedValueTypeF32   = 0x7d
	encodedValueTypeF64   = 0x7c
	encodedBlockTypeEmpty = 0x40
)

// DecodeValueType normalizes a value type byte read from the binary format.
func DecodeValueType(b byte) (ValueType, error) {
	switch b {
	case encodedValueTypeI32:
		return ValueTypeI32, nil
	case encodedValueTypeI64:
		return ValueTypeI64, nil
	case encodedValueTypeF32:
		return ValueTypeF32, nil
	case encodedValueTypeF64:
		return ValueTypeF64, nil
	case encodedBlockTypeEmpty:
		return ValueTypeNone, nil
	}
	return ValueTypeNone, fmt.Errorf("invalid value type 0x%x", b)
}

// Is64Bit returns true for the types whose values span two slots in a
// 32-bit-slot build.
func (vt ValueType) Is64Bit() bool {
	return vt == ValueTypeI64 || vt == ValueTypeF64
}

// IsFp returns true for the floating-point types, which share the fp
// pseudo-register.
func (vt ValueType) IsFp() bool {
	return vt == ValueTypeF32 || vt == ValueTypeF64
}

// IsInt returns true for the integer types, which share the int
// pseudo-register.
func (vt ValueType) IsInt() bool {
	return vt == ValueTypeI32 || vt == ValueTypeI64
}

func (vt ValueType) String() string {
	switch vt {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeNone:
		return "none"
	}
	return "unknown"
}

// FunctionType is a function signature over normalized value types. Block
// types are represented the same way, so a block's expected operands and
// results reuse this struct.
type FunctionType struct {
	Args    []ValueType
	Results []ValueType
}

func (ft *FunctionType) NumArgs() int    { return len(ft.Args) }
func (ft *FunctionType) NumResults() int { return len(ft.Results) }

func (ft *FunctionType) ArgType(i int) ValueType    { return ft.Args[i] }
func (ft *FunctionType) ResultType(i int) ValueType { return ft.Results[i] }

func (ft *FunctionType) String() string {
	args := make([]string, len(ft.Args))
	for i, a := range ft.Args {
		args[i] = a.String()
	}
	results := make([]string, len(ft.Results))
	for i, r := range ft.Results {
		results[i] = r.String()
	}
	return fmt.Sprintf("(%s)->(%s)", strings.Join(args, ","), strings.Join(results, ","))
}
