package compiler

import "github.com/szsam/wasm3/internal/wasm"

// opcode is a Wasm opcode, with 0xFC-prefixed opcodes carried as
// 0xFC00|sub.
type opcode uint16

const (
	opcodeUnreachable opcode = 0x00
	opcodeNop         opcode = 0x01
	opcodeBlock       opcode = 0x02
	opcodeLoop        opcode = 0x03
	opcodeIf          opcode = 0x04
	opcodeElse        opcode = 0x05
	opcodeEnd         opcode = 0x0b
	opcodeBr          opcode = 0x0c
	opcodeBrIf        opcode = 0x0d
	opcodeBrTable     opcode = 0x0e
	opcodeReturn      opcode = 0x0f
	opcodeCall        opcode = 0x10
	opcodeLocalGet    opcode = 0x20
	opcodeLocalSet    opcode = 0x21
	opcodeLocalTee    opcode = 0x22
	opcodeGlobalGet   opcode = 0x23
	opcodeGlobalSet   opcode = 0x24
	opcodeI32Const    opcode = 0x41
	opcodeI64Const    opcode = 0x42
	opcodeF32Const    opcode = 0x43
	opcodeF64Const    opcode = 0x44
	opcodePrefixFC    opcode = 0xfc
)

// typeAny marks table rows whose result type depends on immediates; such
// rows always carry their own compiler.
const typeAny wasm.ValueType = 0xff

type compileFunc func(c *compiler, opc opcode) error

// opInfo is one dispatch-table row: the opcode's stack delta, result
// type, up to four specialized operation variants, and an optional
// compiler callback. Rows without a callback go through the generic
// operator compiler.
type opInfo struct {
	name        string
	stackOffset int8
	valueType   wasm.ValueType
	fp          bool
	ops         [4]operation
	suffixes    *[4]string
	compiler    compileFunc
}

var (
	unarySuffixes   = [4]string{"_r", "_s", "", ""}
	binSuffixes     = [4]string{"_rs", "_sr", "_ss", "_rr"}
	convertSuffixes = [4]string{"_r_r", "_r_s", "_s_r", "_s_s"}
)

func unaryOpList(opc opcode) ([4]operation, *[4]string) {
	return [4]operation{variantOp(opc, 0), variantOp(opc, 1)}, &unarySuffixes
}

func binOpList(opc opcode) ([4]operation, *[4]string) {
	return [4]operation{variantOp(opc, 0), variantOp(opc, 1), variantOp(opc, 2)}, &binSuffixes
}

// commutativeBinOpList omits the _sr variant; the generic compiler falls
// back to _rs with the operands exchanged.
func commutativeBinOpList(opc opcode) ([4]operation, *[4]string) {
	return [4]operation{variantOp(opc, 0), opNone, variantOp(opc, 2)}, &binSuffixes
}

// storeFpOpList carries the extra _rr variant for fp stores, whose two
// operands can occupy both registers at once.
func storeFpOpList(opc opcode) ([4]operation, *[4]string) {
	return [4]operation{variantOp(opc, 0), variantOp(opc, 1), variantOp(opc, 2), variantOp(opc, 3)}, &binSuffixes
}

func convertOpList(opc opcode) ([4]operation, *[4]string) {
	return [4]operation{variantOp(opc, 0), variantOp(opc, 1), variantOp(opc, 2), variantOp(opc, 3)}, &convertSuffixes
}

func row(name string, stackOffset int8, vt wasm.ValueType, compiler compileFunc) opInfo {
	return opInfo{name: name, stackOffset: stackOffset, valueType: vt, compiler: compiler}
}

func opRow(name string, stackOffset int8, vt wasm.ValueType, lister func(opcode) ([4]operation, *[4]string), opc opcode, compiler compileFunc) opInfo {
	ops, suffixes := lister(opc)
	return opInfo{name: name, stackOffset: stackOffset, valueType: vt, ops: ops, suffixes: suffixes, compiler: compiler}
}

func fpRow(info opInfo) opInfo {
	info.fp = true
	return info
}

const (
	i32  = wasm.ValueTypeI32
	i64  = wasm.ValueTypeI64
	f32  = wasm.ValueTypeF32
	f64  = wasm.ValueTypeF64
	none = wasm.ValueTypeNone
)

// opTable maps the one-byte Wasm 1.0 opcodes. Unnamed entries are
// reserved encodings and fail as unknown opcodes.
var opTable [0xc5]opInfo

// opTableFC maps the 0xFC-prefixed saturating truncations.
var opTableFC [8]opInfo

// init populates the dispatch tables. Building them in an init func
// (rather than directly in the var declarations) avoids a spurious
// initialization cycle: several rows store compiler callbacks whose
// bodies transitively call opcodeName/getOpInfo, which read these
// tables.
func init() {
	opTable = [0xc5]opInfo{
		opcodeUnreachable: {name: "unreachable", valueType: none, ops: [4]operation{opUnreachable}, compiler: (*compiler).compileUnreachable},
		opcodeNop:         row("nop", 0, none, (*compiler).compileNop),
		opcodeBlock:       row("block", 0, none, (*compiler).compileLoopOrBlock),
		opcodeLoop:        {name: "loop", valueType: none, ops: [4]operation{opLoop}, compiler: (*compiler).compileLoopOrBlock},
		opcodeIf:          row("if", -1, none, (*compiler).compileIf),
		opcodeElse:        row("else", 0, none, (*compiler).compileNop),

		opcodeEnd:     row("end", 0, none, (*compiler).compileEnd),
		opcodeBr:      {name: "br", valueType: none, ops: [4]operation{opBranch}, compiler: (*compiler).compileBranch},
		opcodeBrIf:    {name: "br_if", stackOffset: -1, valueType: none, ops: [4]operation{opBranchIfPrologueR, opBranchIfPrologueS}, compiler: (*compiler).compileBranch},
		opcodeBrTable: {name: "br_table", stackOffset: -1, valueType: none, ops: [4]operation{opBranchTable}, compiler: (*compiler).compileBranchTable},
		opcodeReturn:  {name: "return", valueType: typeAny, ops: [4]operation{opReturn}, compiler: (*compiler).compileReturn},
		opcodeCall:    {name: "call", valueType: typeAny, ops: [4]operation{opCall}, compiler: (*compiler).compileCall},
		0x11:          {name: "call_indirect", valueType: typeAny, ops: [4]operation{opCallIndirect}, compiler: (*compiler).compileCallIndirect},
		0x12:          row("return_call", 0, typeAny, (*compiler).compileCall),
		0x13:          row("return_call_indirect", 0, typeAny, (*compiler).compileCallIndirect),

		0x1a: row("drop", -1, none, (*compiler).compileDrop),
		0x1b: row("select", -2, typeAny, (*compiler).compileSelect),

		opcodeLocalGet:  row("local.get", 1, typeAny, (*compiler).compileGetLocal),
		opcodeLocalSet:  row("local.set", 1, none, (*compiler).compileSetLocal),
		opcodeLocalTee:  row("local.tee", 0, typeAny, (*compiler).compileSetLocal),
		opcodeGlobalGet: row("global.get", 1, none, (*compiler).compileGetSetGlobal),
		opcodeGlobalSet: row("global.set", 1, none, (*compiler).compileGetSetGlobal),

		0x28: opRow("i32.load", 0, i32, unaryOpList, 0x28, (*compiler).compileLoadStore),
		0x29: opRow("i64.load", 0, i64, unaryOpList, 0x29, (*compiler).compileLoadStore),
		0x2a: fpRow(opRow("f32.load", 0, f32, unaryOpList, 0x2a, (*compiler).compileLoadStore)),
		0x2b: fpRow(opRow("f64.load", 0, f64, unaryOpList, 0x2b, (*compiler).compileLoadStore)),

		0x2c: opRow("i32.load8_s", 0, i32, unaryOpList, 0x2c, (*compiler).compileLoadStore),
		0x2d: opRow("i32.load8_u", 0, i32, unaryOpList, 0x2d, (*compiler).compileLoadStore),
		0x2e: opRow("i32.load16_s", 0, i32, unaryOpList, 0x2e, (*compiler).compileLoadStore),
		0x2f: opRow("i32.load16_u", 0, i32, unaryOpList, 0x2f, (*compiler).compileLoadStore),

		0x30: opRow("i64.load8_s", 0, i64, unaryOpList, 0x30, (*compiler).compileLoadStore),
		0x31: opRow("i64.load8_u", 0, i64, unaryOpList, 0x31, (*compiler).compileLoadStore),
		0x32: opRow("i64.load16_s", 0, i64, unaryOpList, 0x32, (*compiler).compileLoadStore),
		0x33: opRow("i64.load16_u", 0, i64, unaryOpList, 0x33, (*compiler).compileLoadStore),
		0x34: opRow("i64.load32_s", 0, i64, unaryOpList, 0x34, (*compiler).compileLoadStore),
		0x35: opRow("i64.load32_u", 0, i64, unaryOpList, 0x35, (*compiler).compileLoadStore),

		0x36: opRow("i32.store", -2, none, binOpList, 0x36, (*compiler).compileLoadStore),
		0x37: opRow("i64.store", -2, none, binOpList, 0x37, (*compiler).compileLoadStore),
		0x38: fpRow(opRow("f32.store", -2, none, storeFpOpList, 0x38, (*compiler).compileLoadStore)),
		0x39: fpRow(opRow("f64.store", -2, none, storeFpOpList, 0x39, (*compiler).compileLoadStore)),

		0x3a: opRow("i32.store8", -2, none, binOpList, 0x3a, (*compiler).compileLoadStore),
		0x3b: opRow("i32.store16", -2, none, binOpList, 0x3b, (*compiler).compileLoadStore),

		0x3c: opRow("i64.store8", -2, none, binOpList, 0x3c, (*compiler).compileLoadStore),
		0x3d: opRow("i64.store16", -2, none, binOpList, 0x3d, (*compiler).compileLoadStore),
		0x3e: opRow("i64.store32", -2, none, binOpList, 0x3e, (*compiler).compileLoadStore),

		0x3f: {name: "memory.size", stackOffset: 1, valueType: i32, ops: [4]operation{opMemSize}, compiler: (*compiler).compileMemorySize},
		0x40: {name: "memory.grow", stackOffset: 1, valueType: i32, ops: [4]operation{opMemGrow}, compiler: (*compiler).compileMemoryGrow},

		opcodeI32Const: {name: "i32.const", stackOffset: 1, valueType: i32, ops: [4]operation{opConst32}, compiler: (*compiler).compileConstI32},
		opcodeI64Const: {name: "i64.const", stackOffset: 1, valueType: i64, ops: [4]operation{opConst64}, compiler: (*compiler).compileConstI64},
		opcodeF32Const: fpRow(row("f32.const", 1, f32, (*compiler).compileConstF32)),
		opcodeF64Const: fpRow(row("f64.const", 1, f64, (*compiler).compileConstF64)),

		0x45: opRow("i32.eqz", 0, i32, unaryOpList, 0x45, nil),
		0x46: opRow("i32.eq", -1, i32, commutativeBinOpList, 0x46, nil),
		0x47: opRow("i32.ne", -1, i32, commutativeBinOpList, 0x47, nil),
		0x48: opRow("i32.lt_s", -1, i32, binOpList, 0x48, nil),
		0x49: opRow("i32.lt_u", -1, i32, binOpList, 0x49, nil),
		0x4a: opRow("i32.gt_s", -1, i32, binOpList, 0x4a, nil),
		0x4b: opRow("i32.gt_u", -1, i32, binOpList, 0x4b, nil),
		0x4c: opRow("i32.le_s", -1, i32, binOpList, 0x4c, nil),
		0x4d: opRow("i32.le_u", -1, i32, binOpList, 0x4d, nil),
		0x4e: opRow("i32.ge_s", -1, i32, binOpList, 0x4e, nil),
		0x4f: opRow("i32.ge_u", -1, i32, binOpList, 0x4f, nil),

		0x50: opRow("i64.eqz", 0, i32, unaryOpList, 0x50, nil),
		0x51: opRow("i64.eq", -1, i32, commutativeBinOpList, 0x51, nil),
		0x52: opRow("i64.ne", -1, i32, commutativeBinOpList, 0x52, nil),
		0x53: opRow("i64.lt_s", -1, i32, binOpList, 0x53, nil),
		0x54: opRow("i64.lt_u", -1, i32, binOpList, 0x54, nil),
		0x55: opRow("i64.gt_s", -1, i32, binOpList, 0x55, nil),
		0x56: opRow("i64.gt_u", -1, i32, binOpList, 0x56, nil),
		0x57: opRow("i64.le_s", -1, i32, binOpList, 0x57, nil),
		0x58: opRow("i64.le_u", -1, i32, binOpList, 0x58, nil),
		0x59: opRow("i64.ge_s", -1, i32, binOpList, 0x59, nil),
		0x5a: opRow("i64.ge_u", -1, i32, binOpList, 0x5a, nil),

		0x5b: fpRow(opRow("f32.eq", -1, i32, commutativeBinOpList, 0x5b, nil)),
		0x5c: fpRow(opRow("f32.ne", -1, i32, commutativeBinOpList, 0x5c, nil)),
		0x5d: fpRow(opRow("f32.lt", -1, i32, binOpList, 0x5d, nil)),
		0x5e: fpRow(opRow("f32.gt", -1, i32, binOpList, 0x5e, nil)),
		0x5f: fpRow(opRow("f32.le", -1, i32, binOpList, 0x5f, nil)),
		0x60: fpRow(opRow("f32.ge", -1, i32, binOpList, 0x60, nil)),

		0x61: fpRow(opRow("f64.eq", -1, i32, commutativeBinOpList, 0x61, nil)),
		0x62: fpRow(opRow("f64.ne", -1, i32, commutativeBinOpList, 0x62, nil)),
		0x63: fpRow(opRow("f64.lt", -1, i32, binOpList, 0x63, nil)),
		0x64: fpRow(opRow("f64.gt", -1, i32, binOpList, 0x64, nil)),
		0x65: fpRow(opRow("f64.le", -1, i32, binOpList, 0x65, nil)),
		0x66: fpRow(opRow("f64.ge", -1, i32, binOpList, 0x66, nil)),

		0x67: opRow("i32.clz", 0, i32, unaryOpList, 0x67, nil),
		0x68: opRow("i32.ctz", 0, i32, unaryOpList, 0x68, nil),
		0x69: opRow("i32.popcnt", 0, i32, unaryOpList, 0x69, nil),

		0x6a: opRow("i32.add", -1, i32, commutativeBinOpList, 0x6a, nil),
		0x6b: opRow("i32.sub", -1, i32, binOpList, 0x6b, nil),
		0x6c: opRow("i32.mul", -1, i32, commutativeBinOpList, 0x6c, nil),
		0x6d: opRow("i32.div_s", -1, i32, binOpList, 0x6d, nil),
		0x6e: opRow("i32.div_u", -1, i32, binOpList, 0x6e, nil),
		0x6f: opRow("i32.rem_s", -1, i32, binOpList, 0x6f, nil),
		0x70: opRow("i32.rem_u", -1, i32, binOpList, 0x70, nil),
		0x71: opRow("i32.and", -1, i32, commutativeBinOpList, 0x71, nil),
		0x72: opRow("i32.or", -1, i32, commutativeBinOpList, 0x72, nil),
		0x73: opRow("i32.xor", -1, i32, commutativeBinOpList, 0x73, nil),
		0x74: opRow("i32.shl", -1, i32, binOpList, 0x74, nil),
		0x75: opRow("i32.shr_s", -1, i32, binOpList, 0x75, nil),
		0x76: opRow("i32.shr_u", -1, i32, binOpList, 0x76, nil),
		0x77: opRow("i32.rotl", -1, i32, binOpList, 0x77, nil),
		0x78: opRow("i32.rotr", -1, i32, binOpList, 0x78, nil),

		0x79: opRow("i64.clz", 0, i64, unaryOpList, 0x79, nil),
		0x7a: opRow("i64.ctz", 0, i64, unaryOpList, 0x7a, nil),
		0x7b: opRow("i64.popcnt", 0, i64, unaryOpList, 0x7b, nil),

		0x7c: opRow("i64.add", -1, i64, commutativeBinOpList, 0x7c, nil),
		0x7d: opRow("i64.sub", -1, i64, binOpList, 0x7d, nil),
		0x7e: opRow("i64.mul", -1, i64, commutativeBinOpList, 0x7e, nil),
		0x7f: opRow("i64.div_s", -1, i64, binOpList, 0x7f, nil),
		0x80: opRow("i64.div_u", -1, i64, binOpList, 0x80, nil),
		0x81: opRow("i64.rem_s", -1, i64, binOpList, 0x81, nil),
		0x82: opRow("i64.rem_u", -1, i64, binOpList, 0x82, nil),
		0x83: opRow("i64.and", -1, i64, commutativeBinOpList, 0x83, nil),
		0x84: opRow("i64.or", -1, i64, commutativeBinOpList, 0x84, nil),
		0x85: opRow("i64.xor", -1, i64, commutativeBinOpList, 0x85, nil),
		0x86: opRow("i64.shl", -1, i64, binOpList, 0x86, nil),
		0x87: opRow("i64.shr_s", -1, i64, binOpList, 0x87, nil),
		0x88: opRow("i64.shr_u", -1, i64, binOpList, 0x88, nil),
		0x89: opRow("i64.rotl", -1, i64, binOpList, 0x89, nil),
		0x8a: opRow("i64.rotr", -1, i64, binOpList, 0x8a, nil),

		0x8b: fpRow(opRow("f32.abs", 0, f32, unaryOpList, 0x8b, nil)),
		0x8c: fpRow(opRow("f32.neg", 0, f32, unaryOpList, 0x8c, nil)),
		0x8d: fpRow(opRow("f32.ceil", 0, f32, unaryOpList, 0x8d, nil)),
		0x8e: fpRow(opRow("f32.floor", 0, f32, unaryOpList, 0x8e, nil)),
		0x8f: fpRow(opRow("f32.trunc", 0, f32, unaryOpList, 0x8f, nil)),
		0x90: fpRow(opRow("f32.nearest", 0, f32, unaryOpList, 0x90, nil)),
		0x91: fpRow(opRow("f32.sqrt", 0, f32, unaryOpList, 0x91, nil)),

		0x92: fpRow(opRow("f32.add", -1, f32, commutativeBinOpList, 0x92, nil)),
		0x93: fpRow(opRow("f32.sub", -1, f32, binOpList, 0x93, nil)),
		0x94: fpRow(opRow("f32.mul", -1, f32, commutativeBinOpList, 0x94, nil)),
		0x95: fpRow(opRow("f32.div", -1, f32, binOpList, 0x95, nil)),
		0x96: fpRow(opRow("f32.min", -1, f32, commutativeBinOpList, 0x96, nil)),
		0x97: fpRow(opRow("f32.max", -1, f32, commutativeBinOpList, 0x97, nil)),
		0x98: fpRow(opRow("f32.copysign", -1, f32, binOpList, 0x98, nil)),

		0x99: fpRow(opRow("f64.abs", 0, f64, unaryOpList, 0x99, nil)),
		0x9a: fpRow(opRow("f64.neg", 0, f64, unaryOpList, 0x9a, nil)),
		0x9b: fpRow(opRow("f64.ceil", 0, f64, unaryOpList, 0x9b, nil)),
		0x9c: fpRow(opRow("f64.floor", 0, f64, unaryOpList, 0x9c, nil)),
		0x9d: fpRow(opRow("f64.trunc", 0, f64, unaryOpList, 0x9d, nil)),
		0x9e: fpRow(opRow("f64.nearest", 0, f64, unaryOpList, 0x9e, nil)),
		0x9f: fpRow(opRow("f64.sqrt", 0, f64, unaryOpList, 0x9f, nil)),

		0xa0: fpRow(opRow("f64.add", -1, f64, commutativeBinOpList, 0xa0, nil)),
		0xa1: fpRow(opRow("f64.sub", -1, f64, binOpList, 0xa1, nil)),
		0xa2: fpRow(opRow("f64.mul", -1, f64, commutativeBinOpList, 0xa2, nil)),
		0xa3: fpRow(opRow("f64.div", -1, f64, binOpList, 0xa3, nil)),
		0xa4: fpRow(opRow("f64.min", -1, f64, commutativeBinOpList, 0xa4, nil)),
		0xa5: fpRow(opRow("f64.max", -1, f64, commutativeBinOpList, 0xa5, nil)),
		0xa6: fpRow(opRow("f64.copysign", -1, f64, binOpList, 0xa6, nil)),

		0xa7: opRow("i32.wrap/i64", 0, i32, unaryOpList, 0xa7, nil),
		0xa8: fpRow(opRow("i32.trunc_s/f32", 0, i32, convertOpList, 0xa8, (*compiler).compileConvert)),
		0xa9: fpRow(opRow("i32.trunc_u/f32", 0, i32, convertOpList, 0xa9, (*compiler).compileConvert)),
		0xaa: fpRow(opRow("i32.trunc_s/f64", 0, i32, convertOpList, 0xaa, (*compiler).compileConvert)),
		0xab: fpRow(opRow("i32.trunc_u/f64", 0, i32, convertOpList, 0xab, (*compiler).compileConvert)),

		0xac: opRow("i64.extend_s/i32", 0, i64, unaryOpList, 0xac, nil),
		0xad: opRow("i64.extend_u/i32", 0, i64, unaryOpList, 0xad, nil),

		0xae: fpRow(opRow("i64.trunc_s/f32", 0, i64, convertOpList, 0xae, (*compiler).compileConvert)),
		0xaf: fpRow(opRow("i64.trunc_u/f32", 0, i64, convertOpList, 0xaf, (*compiler).compileConvert)),
		0xb0: fpRow(opRow("i64.trunc_s/f64", 0, i64, convertOpList, 0xb0, (*compiler).compileConvert)),
		0xb1: fpRow(opRow("i64.trunc_u/f64", 0, i64, convertOpList, 0xb1, (*compiler).compileConvert)),

		0xb2: fpRow(opRow("f32.convert_s/i32", 0, f32, convertOpList, 0xb2, (*compiler).compileConvert)),
		0xb3: fpRow(opRow("f32.convert_u/i32", 0, f32, convertOpList, 0xb3, (*compiler).compileConvert)),
		0xb4: fpRow(opRow("f32.convert_s/i64", 0, f32, convertOpList, 0xb4, (*compiler).compileConvert)),
		0xb5: fpRow(opRow("f32.convert_u/i64", 0, f32, convertOpList, 0xb5, (*compiler).compileConvert)),

		0xb6: fpRow(opRow("f32.demote/f64", 0, f32, unaryOpList, 0xb6, nil)),

		0xb7: fpRow(opRow("f64.convert_s/i32", 0, f64, convertOpList, 0xb7, (*compiler).compileConvert)),
		0xb8: fpRow(opRow("f64.convert_u/i32", 0, f64, convertOpList, 0xb8, (*compiler).compileConvert)),
		0xb9: fpRow(opRow("f64.convert_s/i64", 0, f64, convertOpList, 0xb9, (*compiler).compileConvert)),
		0xba: fpRow(opRow("f64.convert_u/i64", 0, f64, convertOpList, 0xba, (*compiler).compileConvert)),

		0xbb: fpRow(opRow("f64.promote/f32", 0, f64, unaryOpList, 0xbb, nil)),

		0xbc: fpRow(opRow("i32.reinterpret/f32", 0, i32, convertOpList, 0xbc, (*compiler).compileConvert)),
		0xbd: fpRow(opRow("i64.reinterpret/f64", 0, i64, convertOpList, 0xbd, (*compiler).compileConvert)),
		0xbe: fpRow(opRow("f32.reinterpret/i32", 0, f32, convertOpList, 0xbe, (*compiler).compileConvert)),
		0xbf: fpRow(opRow("f64.reinterpret/i64", 0, f64, convertOpList, 0xbf, (*compiler).compileConvert)),

		0xc0: opRow("i32.extend8_s", 0, i32, unaryOpList, 0xc0, nil),
		0xc1: opRow("i32.extend16_s", 0, i32, unaryOpList, 0xc1, nil),
		0xc2: opRow("i64.extend8_s", 0, i64, unaryOpList, 0xc2, nil),
		0xc3: opRow("i64.extend16_s", 0, i64, unaryOpList, 0xc3, nil),
		0xc4: opRow("i64.extend32_s", 0, i64, unaryOpList, 0xc4, nil),
	}

	opTableFC = [8]opInfo{
		0x00: fpRow(opRow("i32.trunc_s:sat/f32", 0, i32, convertOpList, 0xFC00, (*compiler).compileConvert)),
		0x01: fpRow(opRow("i32.trunc_u:sat/f32", 0, i32, convertOpList, 0xFC01, (*compiler).compileConvert)),
		0x02: fpRow(opRow("i32.trunc_s:sat/f64", 0, i32, convertOpList, 0xFC02, (*compiler).compileConvert)),
		0x03: fpRow(opRow("i32.trunc_u:sat/f64", 0, i32, convertOpList, 0xFC03, (*compiler).compileConvert)),
		0x04: fpRow(opRow("i64.trunc_s:sat/f32", 0, i64, convertOpList, 0xFC04, (*compiler).compileConvert)),
		0x05: fpRow(opRow("i64.trunc_u:sat/f32", 0, i64, convertOpList, 0xFC05, (*compiler).compileConvert)),
		0x06: fpRow(opRow("i64.trunc_s:sat/f64", 0, i64, convertOpList, 0xFC06, (*compiler).compileConvert)),
		0x07: fpRow(opRow("i64.trunc_u:sat/f64", 0, i64, convertOpList, 0xFC07, (*compiler).compileConvert)),
	}
}

// getOpInfo returns the dispatch row for an opcode, or nil when the
// opcode is unknown, reserved, or disabled by build options.
func getOpInfo(opc opcode) *opInfo {
	var info *opInfo
	switch opc >> 8 {
	case 0x00:
		if int(opc) < len(opTable) {
			info = &opTable[opc]
		}
	case 0xFC:
		if sub := int(opc & 0xff); sub < len(opTableFC) {
			info = &opTableFC[sub]
		}
	}
	if info == nil || info.name == "" {
		return nil
	}
	if info.fp && !hasFloat {
		return nil
	}
	return info
}
