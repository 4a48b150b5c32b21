package compiler

// Build-time configuration. These mirror the tunables of the C original
// and are fixed per build rather than per runtime.
const (
	// use32BitSlots makes each slot 32 bits wide, so 64-bit typed values
	// occupy two consecutive even-aligned slots.
	use32BitSlots = true

	// hasFloat compiles the floating-point opcodes. When false they fail
	// as unknown opcodes.
	hasFloat = true

	// compileExtendedOpcode admits the 0xFC saturating-truncation prefix.
	compileExtendedOpcode = true

	// enableCodePageRefCounting records, per function, the pages it
	// emitted into, so pages can be reclaimed when functions are freed.
	enableCodePageRefCounting = false

	// maxFunctionStackHeight bounds the value-stack depth of a single
	// function.
	maxFunctionStackHeight = 2000

	// maxFunctionSlots bounds slot indices. Needs twice the stack height
	// in a 32-bit-slot build.
	maxFunctionSlots = maxFunctionStackHeight * 2

	// maxConstantTableSize caps the slots pre-reserved for the constant
	// pool; constants beyond it are emitted inline.
	maxConstantTableSize = 120
)

const (
	// slotByteSize is the width of one slot in bytes. Keep in step with
	// use32BitSlots: 4 when slots are 32-bit, 8 otherwise.
	slotByteSize = 4

	// ioSlotCount is the slots-per-value for args and returns, which are
	// always 64-bit aligned.
	ioSlotCount = 8 / slotByteSize

	// Slot numbers above maxFunctionSlots alias the two pseudo-registers.
	regIntSlotAlias uint16 = maxFunctionSlots + 1
	regFpSlotAlias  uint16 = maxFunctionSlots + 2

	slotUnused uint16 = 0xffff

	// codePageFreeWordsThreshold is the emitter headroom checked before
	// each operation: enough for the operation, its operands, and a
	// stitching branch to a fresh page.
	codePageFreeWordsThreshold = 8
)
