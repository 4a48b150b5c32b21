package wasm

import "github.com/szsam/wasm3/internal/engine/codepage"

// Global is a module global. Value is its runtime storage cell; the
// compiler emits the global's index and the executing VM resolves it back
// through the module.
type Global struct {
	Name    string
	Type    ValueType
	Mutable bool
	// Value holds the cell bits. For constant-expression evaluation the
	// compiler reads it directly.
	Value uint64
}

// Function is one function of a module. Wasm holds the code entry body
// starting at the locals vector and ending with the terminal `end` byte;
// the compiler consumes it and fills in the compiled-code fields.
type Function struct {
	Name     string
	Index    uint32
	Module   *Module
	FuncType *FunctionType

	Wasm []byte

	// NumLocals is the count of declared locals, set while the locals
	// vector is compiled.
	NumLocals uint32

	// Compiled is the entry pc of the threaded code. Zero means not yet
	// compiled (page bases start at codepage.PageCellCount).
	Compiled codepage.PC

	// Constants is the function's interned constant pool, copied out of
	// the compilation session.
	Constants        []byte
	NumConstantBytes uint32
	NumLocalBytes    uint32

	NumRetSlots       uint16
	NumRetAndArgSlots uint16

	// MaxStackSlots is the high-water slot count, used by the entry
	// operation to detect stack overflow before the native stack can.
	MaxStackSlots uint16

	// CodePageRefs tracks the pages this function emitted into, when
	// page ref-counting is enabled.
	CodePageRefs []*codepage.Page
}

// NumArgsAndLocals returns the combined argument and local count, the
// bound for local.get / local.set indices.
func (f *Function) NumArgsAndLocals() uint32 {
	return uint32(f.FuncType.NumArgs()) + f.NumLocals
}

// Module is the compile-time view of a Wasm module: just enough for the
// compiler to resolve call targets, globals, and function types. Binary
// section parsing populates it elsewhere.
type Module struct {
	Name    string
	Index   uint32
	Runtime *Runtime

	FuncTypes []*FunctionType
	Functions []*Function
	Globals   []*Global
}

// GetFunction returns the function at index i, or nil when out of range.
func (m *Module) GetFunction(i uint32) *Function {
	if i >= uint32(len(m.Functions)) {
		return nil
	}
	return m.Functions[i]
}

// AddFunction appends a function, wiring its back-references.
func (m *Module) AddFunction(name string, ft *FunctionType, body []byte) *Function {
	f := &Function{
		Name:     name,
		Index:    uint32(len(m.Functions)),
		Module:   m,
		FuncType: ft,
		Wasm:     body,
	}
	m.Functions = append(m.Functions, f)
	return f
}

// AddGlobal appends a global and returns it.
func (m *Module) AddGlobal(name string, vt ValueType, mutable bool) *Global {
	g := &Global{Name: name, Type: vt, Mutable: mutable}
	m.Globals = append(m.Globals, g)
	return g
}
