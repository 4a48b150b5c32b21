package compiler

import "errors"

// Compilation errors. Every primitive returns one of these (possibly
// wrapped with context); the first failure aborts the function's
// compilation and no partial code is exposed.
var (
	ErrUnknownOpcode            = errors.New("unknown opcode")
	ErrTypeMismatch             = errors.New("type mismatch")
	ErrTypeCountMismatch        = errors.New("type count mismatch")
	ErrStackUnderrun            = errors.New("stack underrun")
	ErrFunctionStackOverflow    = errors.New("function stack overflow")
	ErrSlotUsageOverflow        = errors.New("slot usage count overflow")
	ErrGlobalIndexOutOfBounds   = errors.New("global index out of bounds")
	ErrSettingImmutableGlobal   = errors.New("setting immutable global")
	ErrLocalIndexOutOfBounds    = errors.New("local index out of bounds")
	ErrRestrictedOpcode         = errors.New("restricted opcode in constant expression")
	ErrInvalidBlockDepth        = errors.New("invalid block depth")
	ErrFunctionLookupFailed     = errors.New("function lookup failed")
	ErrFunctionImportMissing    = errors.New("function import missing")
	ErrFuncTypeIndexOutOfBounds = errors.New("function type index out of bounds")
	ErrCodePageFull             = errors.New("could not acquire code page")
	ErrWasmMalformed            = errors.New("malformed wasm")
)
